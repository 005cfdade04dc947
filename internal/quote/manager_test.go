package quote

import (
	"context"
	"sync"
	"testing"

	"brokerd/internal/bus"
	"brokerd/internal/obs"
	"brokerd/internal/proto"
	"brokerd/internal/session"
	"brokerd/internal/upstream"
)

func newReadySession(t *testing.T, client upstream.Client) *session.Session {
	t.Helper()
	sess := session.New(client, 1, obs.NewMetrics())
	if err := sess.Establish(context.Background()); err != nil {
		t.Fatalf("establish: %v", err)
	}
	return sess
}

type capturingSubscriber struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (c *capturingSubscriber) Deliver(channel string, payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payloads = append(c.payloads, payload)
}

func TestManagerRepeatSubscribeRaisesRefcount(t *testing.T) {
	client := upstream.NewSimulated([]proto.SymbolInfo{{Symbol: "TMF2512"}})
	sess := newReadySession(t, client)
	catalog := NewStaticCatalog(nil)
	b := bus.New(8)
	m := New(sess, client, catalog, b, obs.NewMetrics())

	if err := m.Subscribe(context.Background(), "TMF2512"); err != nil {
		t.Fatalf("first subscribe: %v", err)
	}
	if err := m.Subscribe(context.Background(), "TMF2512"); err != nil {
		t.Fatalf("second subscribe: %v", err)
	}
	if got := m.Refcount("TMF2512"); got != 2 {
		t.Fatalf("expected refcount 2, got %d", got)
	}
}

func TestManagerUnsubscribeTearsDownOnLastRelease(t *testing.T) {
	client := upstream.NewSimulated([]proto.SymbolInfo{{Symbol: "TMF2512"}})
	sess := newReadySession(t, client)
	catalog := NewStaticCatalog(nil)
	b := bus.New(8)
	m := New(sess, client, catalog, b, obs.NewMetrics())

	if err := m.Subscribe(context.Background(), "TMF2512"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := m.Unsubscribe(context.Background(), "TMF2512"); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	if got := m.Refcount("TMF2512"); got != 0 {
		t.Fatalf("expected refcount 0 after teardown, got %d", got)
	}
}

func TestManagerPublishesNormalizedQuoteOntoBus(t *testing.T) {
	client := upstream.NewSimulated([]proto.SymbolInfo{{Symbol: "TMF2512"}})
	sess := newReadySession(t, client)
	catalog := NewStaticCatalog(nil)
	b := bus.New(8)
	m := New(sess, client, catalog, b, obs.NewMetrics())

	if err := m.Subscribe(context.Background(), "TMF2512"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	sub := &capturingSubscriber{}
	b.Subscribe(bus.QuoteChannel("TMF2512"), sub)

	// A non-alias symbol's exchange code is the symbol itself (Simulated's
	// SubscribeQuote only synthesizes a code for pseudo-symbols).
	m.onUpstreamQuote("TMF2512", &proto.Tick{Volume: 1}, nil)

	sub.mu.Lock()
	defer sub.mu.Unlock()
	if len(sub.payloads) != 1 {
		t.Fatalf("expected one published quote, got %d", len(sub.payloads))
	}
}

func TestManagerBindsDynamicAliasByFamilyPrefix(t *testing.T) {
	client := upstream.NewSimulated([]proto.SymbolInfo{{Symbol: "TMFR1", IsAlias: true}})
	sess := newReadySession(t, client)
	catalog := NewStaticCatalog([]ProductFamily{{Prefix: "TMF", NearMonth: "TMFR1", NextMonth: "TMFR2"}})
	b := bus.New(8)
	m := New(sess, client, catalog, b, obs.NewMetrics())

	if err := m.Subscribe(context.Background(), "TMFR1"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	alias, ok := m.bindDynamically("TMF2512")
	if !ok || alias != "TMFR1" {
		t.Fatalf("expected TMF2512 to dynamically bind to TMFR1, got %q, %v", alias, ok)
	}
	if resolved, ok := m.table.ResolveCode("TMF2512"); !ok || resolved != "TMFR1" {
		t.Fatalf("expected the binding to be recorded in the table, got %q, %v", resolved, ok)
	}
}

