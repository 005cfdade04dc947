// Package risk evaluates order intents against the mutable limits an
// operator configures (internal/config.RiskLimits): kill switch, order
// rate limiting, daily trade count and loss caps, max order quantity,
// price-deviation band, max notional, and max position.
package risk

import (
	"time"

	"github.com/yanun0323/decimal"

	"brokerd/internal/config"
	"brokerd/internal/proto"
)

// Reason names why an order intent was denied.
type Reason string

const (
	ReasonNone          Reason = ""
	ReasonKillSwitch    Reason = "kill_switch"
	ReasonRateLimit     Reason = "rate_limit"
	ReasonMaxQty        Reason = "max_qty"
	ReasonMaxNotional   Reason = "max_notional"
	ReasonPositionLimit Reason = "position_limit"
	ReasonPriceBand     Reason = "price_band"
	ReasonDailyLoss     Reason = "daily_loss"
	ReasonDailyTrades   Reason = "daily_trades"
)

// Decision is the outcome of evaluating one order intent.
type Decision struct {
	Allow  bool
	Reason Reason
}

// State is the position/PnL snapshot the guard checks an intent
// against; the dispatcher assembles this from the position and
// profit/loss queries. The dispatcher leaves DailyTrades at zero, so the
// daily trade cap does not deny orders placed through it.
type State struct {
	Position       int64
	ReferencePrice decimal.Decimal
	DailyPnL       decimal.Decimal
	DailyTrades    int
	Now            time.Time
}

// Engine evaluates order intents against the currently loaded
// RiskLimits. It has no internal locking; Evaluate, the only method that
// mutates rate-limit bookkeeping, is called from the single dispatcher
// goroutine.
type Engine struct {
	limits          func() config.RiskLimits
	rateWindowStart time.Time
	rateCount       int
}

// NewEngine builds an Engine that re-reads limits from currentLimits on
// every Evaluate call, so a hot-reloaded config.Watcher takes effect
// without restarting the dispatcher.
func NewEngine(currentLimits func() config.RiskLimits) *Engine {
	return &Engine{limits: currentLimits}
}

// Evaluate applies the configured limits to a place-order payload.
func (e *Engine) Evaluate(payload proto.PlaceOrderPayload, state State) Decision {
	limits := e.limits()

	if limits.KillSwitch {
		return Decision{Reason: ReasonKillSwitch}
	}

	now := state.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	if limits.OrderRateLimit > 0 && limits.OrderRateWindowMS > 0 {
		window := time.Duration(limits.OrderRateWindowMS) * time.Millisecond
		if e.rateWindowStart.IsZero() || now.Sub(e.rateWindowStart) >= window {
			e.rateWindowStart = now
			e.rateCount = 0
		}
		e.rateCount++
		if e.rateCount > limits.OrderRateLimit {
			return Decision{Reason: ReasonRateLimit}
		}
	}

	if limits.MaxDailyTrades > 0 && state.DailyTrades >= limits.MaxDailyTrades {
		return Decision{Reason: ReasonDailyTrades}
	}

	if !limits.MaxDailyLoss.IsZero() && state.DailyPnL.IsNegative() && state.DailyPnL.Abs().Cmp(limits.MaxDailyLoss) >= 0 {
		return Decision{Reason: ReasonDailyLoss}
	}

	if limits.MaxOrderQty > 0 && payload.Quantity > limits.MaxOrderQty {
		return Decision{Reason: ReasonMaxQty}
	}

	if limits.MaxPriceDeviationBps > 0 && payload.PriceType == proto.PriceTypeLimit && !payload.Price.IsZero() && !state.ReferencePrice.IsZero() {
		if exceedsDeviation(payload.Price, state.ReferencePrice, limits.MaxPriceDeviationBps) {
			return Decision{Reason: ReasonPriceBand}
		}
	}

	notional := payload.Price.Mul(decimal.NewFromInt(payload.Quantity))
	if !limits.MaxOrderNotional.IsZero() && notional.Cmp(limits.MaxOrderNotional) > 0 {
		return Decision{Reason: ReasonMaxNotional}
	}

	nextPos := applyDirection(state.Position, payload.Direction, payload.Quantity)
	if limits.MaxPosition > 0 && absInt64(nextPos) > limits.MaxPosition {
		return Decision{Reason: ReasonPositionLimit}
	}

	return Decision{Allow: true}
}

func applyDirection(pos int64, dir proto.Direction, qty int64) int64 {
	if dir == proto.DirectionLongEntry || dir == proto.DirectionShortExit {
		return pos + qty
	}
	return pos - qty
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func exceedsDeviation(price, ref decimal.Decimal, bps int64) bool {
	diff := price.Sub(ref).Abs()
	if diff.IsZero() {
		return false
	}
	// diff/ref > bps/10000  <=>  diff*10000 > ref*bps
	lhs := diff.Mul(decimal.NewFromInt(10000))
	rhs := ref.Mul(decimal.NewFromInt(bps))
	return lhs.Cmp(rhs) > 0
}
