// Package dispatcher is the single worker pulling requests off the
// Correlation Bus and routing them, serially, through the one Worker
// Session: it writes the bus reply for every dispatched command, records
// the audit row for place_order and reconciles it on recheck_order.
package dispatcher

import (
	"context"
	"time"

	"github.com/yanun0323/logs"

	"brokerd/internal/audit"
	"brokerd/internal/brokererr"
	"brokerd/internal/bus"
	"brokerd/internal/obs"
	"brokerd/internal/proto"
	"brokerd/internal/quote"
	"brokerd/internal/risk"
	"brokerd/internal/session"
)

// Dispatcher is the sole consumer of the Correlation Bus's request
// queue: it never accepts concurrent callers.
type Dispatcher struct {
	bus     *bus.Bus
	session *session.Session
	quotes  *quote.Manager
	risk    *risk.Engine
	audit   *audit.Store
	metrics *obs.Metrics
}

// New assembles a Dispatcher. audit may be nil, in which case audit
// rows are skipped (useful for tests without a database).
func New(b *bus.Bus, sess *session.Session, quotes *quote.Manager, riskEngine *risk.Engine, auditStore *audit.Store, metrics *obs.Metrics) *Dispatcher {
	return &Dispatcher{bus: b, session: sess, quotes: quotes, risk: riskEngine, audit: auditStore, metrics: metrics}
}

// Run is the worker-pool-of-one loop: it blocks until ctx is canceled
// or the bus's queue is closed.
func (d *Dispatcher) Run(ctx context.Context) {
	d.bus.Dequeue(ctx, func(req proto.Request) {
		d.handle(ctx, req)
	})
}

func (d *Dispatcher) handle(ctx context.Context, req proto.Request) {
	start := time.Now()
	resp := d.route(ctx, req)
	failed := resp.Status == proto.StatusFailed
	d.metrics.ObserveCommand(req.Command, failed, time.Since(start))
	d.bus.Reply(resp, req.ResponseTTL)
}

func (d *Dispatcher) route(ctx context.Context, req proto.Request) proto.Response {
	if !req.Command.IsValid() {
		return proto.Failed(req.RequestID, "unknown command", false)
	}
	switch req.Command {
	case proto.CommandPlaceOrder:
		return d.handlePlaceOrder(ctx, req)
	case proto.CommandCancelOrder:
		return d.handleCancelOrder(ctx, req)
	case proto.CommandRecheckOrder:
		return d.handleRecheckOrder(ctx, req)
	case proto.CommandListPositions:
		return d.handleListPositions(ctx, req)
	case proto.CommandQueryMargin:
		return d.handleQueryMargin(ctx, req)
	case proto.CommandQueryProfitLoss:
		return d.handleQueryProfitLoss(ctx, req)
	case proto.CommandListTrades:
		return d.handleListTrades(ctx, req)
	case proto.CommandListSettlements:
		return d.handleListSettlements(ctx, req)
	case proto.CommandListSymbols:
		return d.handleListSymbols(ctx, req)
	case proto.CommandSymbolInfo:
		return d.handleSymbolInfo(ctx, req)
	case proto.CommandSymbolSnapshot:
		return d.handleSymbolSnapshot(ctx, req)
	case proto.CommandQueryUsage:
		return d.handleQueryUsage(ctx, req)
	case proto.CommandSubscribeQuote:
		return d.handleSubscribeQuote(ctx, req)
	case proto.CommandUnsubscribeQuote:
		return d.handleUnsubscribeQuote(ctx, req)
	default:
		return proto.Failed(req.RequestID, "unhandled command", false)
	}
}

// classify turns an error from the session/upstream boundary into a
// Response, marking it retryable per brokererr.IsRetryable
// (session-not-ready / upstream-transient / bus-unreachable).
func classify(requestID string, err error) proto.Response {
	logs.Errorf("dispatcher: command failed, err: %+v", err)
	return proto.Failed(requestID, err.Error(), brokererr.IsRetryable(err))
}
