// Package upstream defines the single collaborator this system ever
// talks to: one brokerage session. The interface below is the contract
// a Worker Session (internal/session) drives; internal/upstream/sim.go
// is the deterministic fake used by tests and simulation-mode requests,
// internal/upstream/rest.go is a real signed-REST implementation.
package upstream

import (
	"context"

	"brokerd/internal/proto"
)

// QuoteCallback is invoked by the Client for every tick or bid/ask
// update it receives for a subscribed exchange code, after login.
type QuoteCallback func(exchangeCode string, tick *proto.Tick, bidAsk *proto.BidAsk)

// Client is the single upstream brokerage session contract. Errors are
// brokererr taxonomy errors matched with errors.Is (the simulated client
// returns UpstreamTransient, UpstreamRefused, NoAction or
// SessionNotReady; the REST client wraps its failures as
// UpstreamTransient); callers never substring-match error text.
type Client interface {
	// Login establishes the session. Called once at worker startup and
	// again on every reconnect attempt.
	Login(ctx context.Context) error
	// Logout tears the session down cleanly on shutdown.
	Logout(ctx context.Context) error

	PlaceOrder(ctx context.Context, payload proto.PlaceOrderPayload) (proto.OrderResult, error)
	CancelOrder(ctx context.Context, payload proto.CancelOrderPayload) error
	RecheckOrder(ctx context.Context, payload proto.RecheckOrderPayload) (proto.OrderStatusResult, error)

	ListPositions(ctx context.Context) ([]proto.Position, error)
	QueryMargin(ctx context.Context) (proto.Margin, error)
	QueryProfitLoss(ctx context.Context) (proto.ProfitLoss, error)
	ListTrades(ctx context.Context) ([]proto.Trade, error)
	ListSettlements(ctx context.Context) ([]proto.Settlement, error)
	QueryUsage(ctx context.Context) (proto.Usage, error)

	ListSymbols(ctx context.Context) ([]proto.SymbolInfo, error)
	SymbolInfo(ctx context.Context, symbol string) (proto.SymbolInfo, error)
	SymbolSnapshot(ctx context.Context, symbol string) (proto.Tick, error)

	// SubscribeQuote places (or renews) an upstream subscription for
	// contract and returns the exchange code the upstream assigned it.
	// SetQuoteCallback must be called once before the first subscribe.
	SubscribeQuote(ctx context.Context, contract string) (exchangeCode string, err error)
	UnsubscribeQuote(ctx context.Context, exchangeCode string) error
	SetQuoteCallback(cb QuoteCallback)
}

// Credentials authenticate a Client against the upstream brokerage.
type Credentials struct {
	APIKey string
	Secret string
}
