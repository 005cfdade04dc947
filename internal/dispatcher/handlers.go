package dispatcher

import (
	"context"
	"errors"
	"time"

	"github.com/yanun0323/logs"

	"brokerd/internal/audit"
	"brokerd/internal/brokererr"
	"brokerd/internal/proto"
	"brokerd/internal/risk"
	"brokerd/internal/upstream"
)

func mode(req proto.Request) string {
	if req.Simulation {
		return "simulation"
	}
	return "live"
}

func (d *Dispatcher) handlePlaceOrder(ctx context.Context, req proto.Request) proto.Response {
	payload, ok := req.Payload.(proto.PlaceOrderPayload)
	if !ok {
		return proto.Failed(req.RequestID, "place_order: malformed payload", false)
	}
	if payload.Symbol == "" || payload.Quantity <= 0 {
		return proto.Failed(req.RequestID, "place_order: symbol and a positive quantity are required", false)
	}
	if payload.PriceType == "" {
		payload.PriceType = proto.PriceTypeMarket
	}
	if payload.PriceType == proto.PriceTypeLimit && (payload.Price.IsZero() || payload.Price.IsNegative()) {
		return proto.Failed(req.RequestID, "place_order: limit orders require a positive price", false)
	}

	var result proto.OrderResult
	var riskDecision risk.Decision
	err := d.session.Dispatch(ctx, func(c upstream.Client) error {
		state, err := d.riskStateFor(ctx, c, payload.Symbol)
		if err != nil {
			return err
		}
		if !payload.Direction.IsEntry() && !exitMatchesPosition(payload.Direction, state.Position) {
			return brokererr.NoAction("no matching position to exit")
		}
		riskDecision = d.risk.Evaluate(payload, state)
		if !riskDecision.Allow {
			return brokererr.UpstreamRefused("risk guard: " + string(riskDecision.Reason))
		}
		result, err = c.PlaceOrder(ctx, payload)
		return err
	})

	if errors.Is(err, brokererr.ErrNoAction) {
		return proto.NoAction(req.RequestID, err.Error())
	}

	d.recordPlaceOrder(ctx, req, payload, result, err)

	if err != nil {
		if !riskDecision.Allow && riskDecision.Reason != "" {
			return proto.Failed(req.RequestID, "order rejected: "+string(riskDecision.Reason), false)
		}
		return classify(req.RequestID, err)
	}
	return proto.OK(req.RequestID, result)
}

// exitMatchesPosition reports whether the current net position (signed:
// positive long, negative short) supports the exit direction. A
// long_exit needs an existing long position; a short_exit needs an
// existing short position. Flat or opposite-sign positions have
// nothing for the exit to close.
func exitMatchesPosition(dir proto.Direction, netPosition int64) bool {
	if dir.IsLong() {
		return netPosition > 0
	}
	return netPosition < 0
}

func (d *Dispatcher) riskStateFor(ctx context.Context, c upstream.Client, symbol string) (risk.State, error) {
	positions, err := c.ListPositions(ctx)
	if err != nil {
		return risk.State{}, err
	}
	pnl, err := c.QueryProfitLoss(ctx)
	if err != nil {
		return risk.State{}, err
	}
	state := risk.State{DailyPnL: pnl.Realized.Add(pnl.Unrealized), Now: time.Now().UTC()}
	for _, p := range positions {
		if p.Symbol == symbol {
			state.Position = p.Quantity
			state.ReferencePrice = p.AveragePrice
			break
		}
	}
	return state, nil
}

func (d *Dispatcher) recordPlaceOrder(ctx context.Context, req proto.Request, payload proto.PlaceOrderPayload, result proto.OrderResult, err error) {
	if d.audit == nil {
		return
	}
	var row audit.OrderAuditRow
	if err != nil {
		row = audit.RowFromFailure(mode(req), payload, err.Error())
	} else {
		row = audit.RowFromOrderResult(mode(req), payload, result)
	}
	if writeErr := d.audit.Record(ctx, row); writeErr != nil {
		logs.Errorf("dispatcher: audit record, request %s, err: %+v", req.RequestID, writeErr)
	}
}

func (d *Dispatcher) handleCancelOrder(ctx context.Context, req proto.Request) proto.Response {
	payload, ok := req.Payload.(proto.CancelOrderPayload)
	if !ok {
		return proto.Failed(req.RequestID, "cancel_order: malformed payload", false)
	}
	if payload.OrderID == "" {
		return proto.Failed(req.RequestID, "cancel_order: order_id is required", false)
	}
	err := d.session.Dispatch(ctx, func(c upstream.Client) error {
		return c.CancelOrder(ctx, payload)
	})
	if err != nil {
		if errors.Is(err, brokererr.ErrNoAction) {
			return proto.NoAction(req.RequestID, err.Error())
		}
		return classify(req.RequestID, err)
	}
	return proto.OK(req.RequestID, nil)
}

func (d *Dispatcher) handleRecheckOrder(ctx context.Context, req proto.Request) proto.Response {
	payload, ok := req.Payload.(proto.RecheckOrderPayload)
	if !ok {
		return proto.Failed(req.RequestID, "recheck_order: malformed payload", false)
	}
	var result proto.OrderStatusResult
	err := d.session.Dispatch(ctx, func(c upstream.Client) error {
		var err error
		result, err = c.RecheckOrder(ctx, payload)
		return err
	})
	if err != nil {
		return classify(req.RequestID, err)
	}

	if d.audit != nil {
		if writeErr := d.audit.UpdateStatus(ctx, payload.OrderID, result); writeErr != nil {
			logs.Errorf("dispatcher: audit reconcile, request %s, err: %+v", req.RequestID, writeErr)
		}
	}

	return proto.OK(req.RequestID, result)
}

func (d *Dispatcher) handleListPositions(ctx context.Context, req proto.Request) proto.Response {
	var result []proto.Position
	err := d.session.Dispatch(ctx, func(c upstream.Client) error {
		var err error
		result, err = c.ListPositions(ctx)
		return err
	})
	if err != nil {
		return classify(req.RequestID, err)
	}
	return proto.OK(req.RequestID, result)
}

func (d *Dispatcher) handleQueryMargin(ctx context.Context, req proto.Request) proto.Response {
	var result proto.Margin
	err := d.session.Dispatch(ctx, func(c upstream.Client) error {
		var err error
		result, err = c.QueryMargin(ctx)
		return err
	})
	if err != nil {
		return classify(req.RequestID, err)
	}
	return proto.OK(req.RequestID, result)
}

func (d *Dispatcher) handleQueryProfitLoss(ctx context.Context, req proto.Request) proto.Response {
	var result proto.ProfitLoss
	err := d.session.Dispatch(ctx, func(c upstream.Client) error {
		var err error
		result, err = c.QueryProfitLoss(ctx)
		return err
	})
	if err != nil {
		return classify(req.RequestID, err)
	}
	return proto.OK(req.RequestID, result)
}

func (d *Dispatcher) handleListTrades(ctx context.Context, req proto.Request) proto.Response {
	var result []proto.Trade
	err := d.session.Dispatch(ctx, func(c upstream.Client) error {
		var err error
		result, err = c.ListTrades(ctx)
		return err
	})
	if err != nil {
		return classify(req.RequestID, err)
	}
	return proto.OK(req.RequestID, result)
}

func (d *Dispatcher) handleListSettlements(ctx context.Context, req proto.Request) proto.Response {
	var result []proto.Settlement
	err := d.session.Dispatch(ctx, func(c upstream.Client) error {
		var err error
		result, err = c.ListSettlements(ctx)
		return err
	})
	if err != nil {
		return classify(req.RequestID, err)
	}
	return proto.OK(req.RequestID, result)
}

func (d *Dispatcher) handleListSymbols(ctx context.Context, req proto.Request) proto.Response {
	var result []proto.SymbolInfo
	err := d.session.Dispatch(ctx, func(c upstream.Client) error {
		var err error
		result, err = c.ListSymbols(ctx)
		return err
	})
	if err != nil {
		return classify(req.RequestID, err)
	}
	return proto.OK(req.RequestID, result)
}

func (d *Dispatcher) handleSymbolInfo(ctx context.Context, req proto.Request) proto.Response {
	payload, ok := req.Payload.(proto.SymbolPayload)
	if !ok {
		return proto.Failed(req.RequestID, "symbol_info: malformed payload", false)
	}
	var result proto.SymbolInfo
	err := d.session.Dispatch(ctx, func(c upstream.Client) error {
		var err error
		result, err = c.SymbolInfo(ctx, payload.Symbol)
		return err
	})
	if err != nil {
		return classify(req.RequestID, err)
	}
	return proto.OK(req.RequestID, result)
}

func (d *Dispatcher) handleSymbolSnapshot(ctx context.Context, req proto.Request) proto.Response {
	payload, ok := req.Payload.(proto.SymbolPayload)
	if !ok {
		return proto.Failed(req.RequestID, "symbol_snapshot: malformed payload", false)
	}
	var result proto.Tick
	err := d.session.Dispatch(ctx, func(c upstream.Client) error {
		var err error
		result, err = c.SymbolSnapshot(ctx, payload.Symbol)
		return err
	})
	if err != nil {
		return classify(req.RequestID, err)
	}
	return proto.OK(req.RequestID, result)
}

func (d *Dispatcher) handleQueryUsage(ctx context.Context, req proto.Request) proto.Response {
	var result proto.Usage
	err := d.session.Dispatch(ctx, func(c upstream.Client) error {
		var err error
		result, err = c.QueryUsage(ctx)
		return err
	})
	if err != nil {
		return classify(req.RequestID, err)
	}
	return proto.OK(req.RequestID, result)
}

func (d *Dispatcher) handleSubscribeQuote(ctx context.Context, req proto.Request) proto.Response {
	payload, ok := req.Payload.(proto.SymbolPayload)
	if !ok {
		return proto.Failed(req.RequestID, "subscribe_quote: malformed payload", false)
	}
	if err := d.quotes.Subscribe(ctx, payload.Symbol); err != nil {
		return classify(req.RequestID, err)
	}
	return proto.OK(req.RequestID, nil)
}

func (d *Dispatcher) handleUnsubscribeQuote(ctx context.Context, req proto.Request) proto.Response {
	payload, ok := req.Payload.(proto.SymbolPayload)
	if !ok {
		return proto.Failed(req.RequestID, "unsubscribe_quote: malformed payload", false)
	}
	if err := d.quotes.Unsubscribe(ctx, payload.Symbol); err != nil {
		return classify(req.RequestID, err)
	}
	return proto.OK(req.RequestID, nil)
}
