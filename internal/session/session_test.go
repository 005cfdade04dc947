package session

import (
	"context"
	"errors"
	"testing"

	"brokerd/internal/brokererr"
	"brokerd/internal/obs"
	"brokerd/internal/proto"
	"brokerd/internal/upstream"
)

func TestEstablishTransitionsToReady(t *testing.T) {
	client := upstream.NewSimulated(nil)
	s := New(client, 3, obs.NewMetrics())
	if s.State() != StateStarting {
		t.Fatalf("expected initial state starting, got %s", s.State())
	}
	if err := s.Establish(context.Background()); err != nil {
		t.Fatalf("establish: %v", err)
	}
	if s.State() != StateReady {
		t.Fatalf("expected ready after establish, got %s", s.State())
	}
}

func TestEstablishExhaustsRetriesIntoDegraded(t *testing.T) {
	client := upstream.NewSimulated(nil)
	client.FailLogin = errors.New("auth rejected")
	s := New(client, 2, obs.NewMetrics())

	if err := s.Establish(context.Background()); err == nil {
		t.Fatalf("expected establish to fail")
	}
	if s.State() != StateDegraded {
		t.Fatalf("expected degraded after exhausting retries, got %s", s.State())
	}
}

func TestDispatchFailsFastWhenNotReady(t *testing.T) {
	client := upstream.NewSimulated(nil)
	s := New(client, 1, obs.NewMetrics())

	called := false
	err := s.Dispatch(context.Background(), func(c upstream.Client) error {
		called = true
		return nil
	})
	if called {
		t.Fatalf("expected fn to never run before the session is ready")
	}
	if !errors.Is(err, brokererr.ErrSessionNotReady) {
		t.Fatalf("expected ErrSessionNotReady, got %v", err)
	}
}

func TestDispatchHealsOnTransientFailure(t *testing.T) {
	client := upstream.NewSimulated([]proto.SymbolInfo{{Symbol: "TMF2512"}})
	s := New(client, 3, obs.NewMetrics())
	if err := s.Establish(context.Background()); err != nil {
		t.Fatalf("establish: %v", err)
	}

	client.InjectTransientOnce(errors.New("socket dropped"))
	err := s.Dispatch(context.Background(), func(c upstream.Client) error {
		_, err := c.ListPositions(context.Background())
		return err
	})
	if !errors.Is(err, brokererr.ErrUpstreamTransient) {
		t.Fatalf("expected the original transient error surfaced to the caller, got %v", err)
	}
	if s.State() != StateReady {
		t.Fatalf("expected the session to have healed back to ready, got %s", s.State())
	}

	// A subsequent dispatch must succeed now that the session has healed.
	if err := s.Dispatch(context.Background(), func(c upstream.Client) error {
		_, err := c.ListPositions(context.Background())
		return err
	}); err != nil {
		t.Fatalf("expected a healed dispatch to succeed, got %v", err)
	}
}
