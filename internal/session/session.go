// Package session owns the Worker Session Manager: the sole brokerage
// connection this process holds, modeled as a state machine:
// starting → ready ⇄ reconnecting → degraded → (ready on success).
package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yanun0323/logs"

	"brokerd/internal/brokererr"
	"brokerd/internal/obs"
	"brokerd/internal/upstream"
)

// State is one of the Worker Session Manager's four lifecycle states.
type State int32

const (
	StateStarting State = iota
	StateReady
	StateReconnecting
	StateDegraded
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateReady:
		return "ready"
	case StateReconnecting:
		return "reconnecting"
	case StateDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

const (
	backoffBase = 250 * time.Millisecond
	backoffMax  = 10 * time.Second
)

// Session serializes all access to a single upstream.Client: only one
// handler dispatch runs at a time, and no new dispatch is admitted
// while a reconnect is in flight.
type Session struct {
	client   upstream.Client
	metrics  *obs.Metrics
	maxRetry int

	state atomic.Int32
	mu    sync.Mutex // held for the duration of one dispatch or one reconnect
}

// New builds a Session around client. maxRetry bounds the login
// back-off before the manager gives up and enters degraded.
func New(client upstream.Client, maxRetry int, metrics *obs.Metrics) *Session {
	if maxRetry <= 0 {
		maxRetry = 5
	}
	s := &Session{client: client, maxRetry: maxRetry, metrics: metrics}
	s.state.Store(int32(StateStarting))
	return s
}

// State reports the manager's current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) setState(next State) {
	prev := State(s.state.Swap(int32(next)))
	if prev == next {
		return
	}
	logs.Infof("session: %s -> %s", prev, next)
	switch next {
	case StateReconnecting:
		s.metrics.IncSessionReconnect()
	case StateDegraded:
		s.metrics.IncSessionDegraded()
	}
}

// Establish performs the initial login with exponential back-off. On
// exhaustion it transitions to degraded and returns the last error;
// every future handler call then fails fast with SessionNotReady
// instead of blocking on a dead connection.
func (s *Session) Establish(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loginWithBackoff(ctx)
}

// loginWithBackoff must be called with s.mu held.
func (s *Session) loginWithBackoff(ctx context.Context) error {
	var lastErr error
	wait := backoffBase
	for attempt := 1; attempt <= s.maxRetry; attempt++ {
		if err := s.client.Login(ctx); err == nil {
			s.setState(StateReady)
			return nil
		} else {
			lastErr = err
		}
		select {
		case <-ctx.Done():
			s.setState(StateDegraded)
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
		if wait > backoffMax {
			wait = backoffMax
		}
	}
	s.setState(StateDegraded)
	return lastErr
}

// Dispatch runs fn against the single upstream client, serially with
// every other Dispatch call. If the session is not ready, fn never
// runs and a retryable SessionNotReady error is returned immediately —
// callers never block indefinitely waiting for a session to recover.
// fn is expected to already classify raw upstream errors into the
// brokererr taxonomy
// (Client implementations do this); when the result unwraps to
// ErrUpstreamTransient the in-flight caller is failed with a retryable
// error and the manager transitions through reconnecting, healing in
// the same call so subsequent dispatches see the outcome.
func (s *Session) Dispatch(ctx context.Context, fn func(upstream.Client) error) error {
	if s.State() != StateReady {
		return brokererr.SessionNotReady("worker session is " + s.State().String())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Re-check after acquiring the lock: a concurrent Dispatch may have
	// just driven the session into reconnecting/degraded.
	if s.State() != StateReady {
		return brokererr.SessionNotReady("worker session is " + s.State().String())
	}

	err := fn(s.client)
	if err == nil {
		return nil
	}
	if !errors.Is(err, brokererr.ErrUpstreamTransient) {
		return err
	}

	s.setState(StateReconnecting)
	healErr := s.loginWithBackoff(ctx)
	if healErr != nil {
		logs.Errorf("session: heal failed, err: %+v", healErr)
	}
	return err
}
