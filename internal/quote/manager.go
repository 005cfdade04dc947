package quote

import (
	"context"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/logs"

	"brokerd/internal/bus"
	"brokerd/internal/obs"
	"brokerd/internal/proto"
	"brokerd/internal/session"
	"brokerd/internal/upstream"
)

// Manager is the Quote Manager: it drives upstream subscribe/unsubscribe
// through the single Worker Session (refcounted per alias), and fans
// out normalized ticks/bidasks onto the Correlation Bus.
type Manager struct {
	session *session.Session
	table   *Table
	catalog Catalog
	bus     *bus.Bus
	metrics *obs.Metrics
}

// New builds a Manager and registers its callback with client so
// upstream pushes are normalized and published. sess and client must
// refer to the same underlying session.
func New(sess *session.Session, client upstream.Client, catalog Catalog, b *bus.Bus, metrics *obs.Metrics) *Manager {
	m := &Manager{session: sess, table: NewTable(), catalog: catalog, bus: b, metrics: metrics}
	client.SetQuoteCallback(m.onUpstreamQuote)
	return m
}

// Subscribe increments alias's refcount. The first subscriber for an
// alias triggers the upstream subscribe call; subsequent subscribers
// are free.
func (m *Manager) Subscribe(ctx context.Context, alias string) error {
	wasZero := m.table.Acquire(alias)
	if !wasZero {
		return nil
	}
	var exchangeCode string
	err := m.session.Dispatch(ctx, func(c upstream.Client) error {
		code, err := c.SubscribeQuote(ctx, alias)
		if err != nil {
			return err
		}
		exchangeCode = code
		return nil
	})
	if err != nil {
		// Roll back the optimistic acquire so a failed first-subscribe
		// doesn't leave refcount stuck above zero with no upstream leg.
		m.table.Release(alias)
		return err
	}
	m.table.BindExchangeCode(alias, exchangeCode)
	return nil
}

// Unsubscribe decrements alias's refcount. Reaching zero tears down
// the upstream subscription and clears every reverse-map entry the
// alias accumulated across contract rolls.
func (m *Manager) Unsubscribe(ctx context.Context, alias string) error {
	exchangeCode, reachedZero := m.table.Release(alias)
	if !reachedZero {
		return nil
	}
	if exchangeCode == "" {
		return nil
	}
	return m.session.Dispatch(ctx, func(c upstream.Client) error {
		return c.UnsubscribeQuote(ctx, exchangeCode)
	})
}

// onUpstreamQuote is the upstream.QuoteCallback: it resolves
// exchangeCode to a client alias (attempting dynamic binding for an
// unresolved near/next-month pseudo-symbol), normalizes, and publishes.
func (m *Manager) onUpstreamQuote(exchangeCode string, tick *proto.Tick, bidAsk *proto.BidAsk) {
	alias, ok := m.table.ResolveCode(exchangeCode)
	if !ok {
		alias, ok = m.bindDynamically(exchangeCode)
	}
	if !ok {
		logs.Infof("quote: dropping callback for unresolved exchange code %s", exchangeCode)
		m.metrics.IncQuoteDrop()
		return
	}

	switch {
	case tick != nil:
		t := *tick
		t.QuoteType = proto.QuoteKindTick
		t.Symbol = alias
		t.ExchangeCode = exchangeCode
		m.publish(alias, t)
	case bidAsk != nil:
		b := *bidAsk
		b.QuoteType = proto.QuoteKindBidAsk
		b.Symbol = alias
		b.ExchangeCode = exchangeCode
		m.publish(alias, b)
	}
}

// bindDynamically resolves an unrecognized exchange code to a pseudo
// symbol: among currently subscribed pseudo-aliases whose family prefix
// matches exchangeCode's product prefix, adopt the first match and
// record the binding so future callbacks resolve in O(1).
func (m *Manager) bindDynamically(exchangeCode string) (string, bool) {
	codePrefix := m.catalog.FamilyPrefix(exchangeCode)
	if codePrefix == "" {
		return "", false
	}
	candidates := m.table.SubscribedPseudoAliases(m.catalog.IsPseudoAlias)
	for _, alias := range candidates {
		if m.catalog.FamilyPrefix(alias) == codePrefix {
			m.table.BindExchangeCode(alias, exchangeCode)
			return alias, true
		}
	}
	return "", false
}

func (m *Manager) publish(alias string, payload any) {
	data, err := sonic.ConfigFastest.Marshal(payload)
	if err != nil {
		logs.Errorf("quote: marshal publish payload, err: %+v", err)
		return
	}
	m.bus.Publish(bus.QuoteChannel(alias), data)
	m.metrics.IncQuoteTick()
}

// Refcount exposes the live refcount for alias, for tests and
// diagnostics asserting it equals the number of distinct subscribing
// client sessions.
func (m *Manager) Refcount(alias string) int { return m.table.Refcount(alias) }
