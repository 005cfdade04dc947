package upstream

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yanun0323/decimal"

	"brokerd/internal/brokererr"
	"brokerd/internal/proto"
)

// Simulated is a deterministic, in-memory Client used by tests and by
// requests carrying proto.Request.Simulation == true. It never makes a
// network call; fills happen synchronously at the requested price
// (market orders fill at zero).
type Simulated struct {
	mu         sync.Mutex
	loggedIn   bool
	nextOrder  uint64
	orders     map[string]proto.OrderStatusResult
	positions  map[string]proto.Position
	trades     []proto.Trade
	symbols    map[string]proto.SymbolInfo
	subs       map[string]string // exchangeCode -> contract
	cb         QuoteCallback
	usageCalls uint64

	// FailLogin, when set, makes Login return it instead of succeeding —
	// used to drive the Worker Session into the degraded state once its
	// login attempts are exhausted.
	FailLogin error

	// injectTransient, when non-nil, is consumed by the next call that
	// checks requireLogin and returned as an ErrUpstreamTransient
	// instead of proceeding — used by tests to exercise the session
	// heal path: a session-heal-mid-flight scenario.
	injectTransient error
}

// InjectTransientOnce arms a one-shot upstream-transient failure: the
// next call made through this client fails with it instead of
// succeeding, then the session is clean again.
func (s *Simulated) InjectTransientOnce(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.injectTransient = brokererr.UpstreamTransient(err.Error())
}

// NewSimulated builds a Simulated client seeded with symbols.
func NewSimulated(symbols []proto.SymbolInfo) *Simulated {
	s := &Simulated{
		orders:    make(map[string]proto.OrderStatusResult),
		positions: make(map[string]proto.Position),
		symbols:   make(map[string]proto.SymbolInfo),
		subs:      make(map[string]string),
	}
	for _, sym := range symbols {
		s.symbols[sym.Symbol] = sym
	}
	return s
}

func (s *Simulated) SetQuoteCallback(cb QuoteCallback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cb = cb
}

func (s *Simulated) Login(ctx context.Context) error {
	if s.FailLogin != nil {
		return s.FailLogin
	}
	s.mu.Lock()
	s.loggedIn = true
	s.mu.Unlock()
	return nil
}

func (s *Simulated) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.loggedIn = false
	s.mu.Unlock()
	return nil
}

func (s *Simulated) requireLogin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.injectTransient != nil {
		err := s.injectTransient
		s.injectTransient = nil
		return err
	}
	if !s.loggedIn {
		return brokererr.SessionNotReady("upstream: not logged in")
	}
	return nil
}

func (s *Simulated) PlaceOrder(ctx context.Context, payload proto.PlaceOrderPayload) (proto.OrderResult, error) {
	if err := s.requireLogin(); err != nil {
		return proto.OrderResult{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sym, ok := s.symbols[payload.Symbol]
	if !ok {
		return proto.OrderResult{}, brokererr.UpstreamRefused(fmt.Sprintf("unknown symbol %q", payload.Symbol))
	}
	if sym.IsAlias {
		return proto.OrderResult{}, brokererr.UpstreamRefused("cannot trade a pseudo-symbol directly")
	}

	orderID := fmt.Sprintf("SIM-%d", atomic.AddUint64(&s.nextOrder, 1))
	fillPrice := payload.Price
	if payload.PriceType == proto.PriceTypeMarket {
		fillPrice = decimal.NewFromInt(0)
	}
	status := proto.OrderStatusResult{
		OrderID:       orderID,
		CurrentStatus: "filled",
		FillQuantity:  payload.Quantity,
		FillPrice:     fillPrice,
		Deals: []proto.Deal{{
			Quantity: payload.Quantity,
			Price:    fillPrice,
			Time:     time.Now().UnixNano(),
		}},
	}
	s.orders[orderID] = status

	pos := s.positions[payload.Symbol]
	pos.Symbol = payload.Symbol
	pos.Direction = string(payload.Direction)
	if payload.Direction == proto.DirectionLongEntry || payload.Direction == proto.DirectionShortExit {
		pos.Quantity += payload.Quantity
	} else {
		pos.Quantity -= payload.Quantity
	}
	pos.AveragePrice = fillPrice
	s.positions[payload.Symbol] = pos

	s.trades = append(s.trades, proto.Trade{
		OrderID:   orderID,
		Symbol:    payload.Symbol,
		Direction: string(payload.Direction),
		Quantity:  payload.Quantity,
		Price:     fillPrice,
		Time:      time.Now().UnixNano(),
	})

	return proto.OrderResult{OrderID: orderID}, nil
}

func (s *Simulated) CancelOrder(ctx context.Context, payload proto.CancelOrderPayload) error {
	if err := s.requireLogin(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	status, ok := s.orders[payload.OrderID]
	if !ok {
		return brokererr.UpstreamRefused(fmt.Sprintf("unknown order %q", payload.OrderID))
	}
	if status.CurrentStatus == "filled" {
		return brokererr.NoAction("order already filled, nothing to cancel")
	}
	status.CurrentStatus = "canceled"
	s.orders[payload.OrderID] = status
	return nil
}

func (s *Simulated) RecheckOrder(ctx context.Context, payload proto.RecheckOrderPayload) (proto.OrderStatusResult, error) {
	if err := s.requireLogin(); err != nil {
		return proto.OrderStatusResult{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	status, ok := s.orders[payload.OrderID]
	if !ok {
		return proto.OrderStatusResult{}, brokererr.UpstreamRefused(fmt.Sprintf("unknown order %q", payload.OrderID))
	}
	return status, nil
}

func (s *Simulated) ListPositions(ctx context.Context) ([]proto.Position, error) {
	if err := s.requireLogin(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]proto.Position, 0, len(s.positions))
	for _, p := range s.positions {
		if p.Quantity != 0 {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Simulated) QueryMargin(ctx context.Context) (proto.Margin, error) {
	if err := s.requireLogin(); err != nil {
		return proto.Margin{}, err
	}
	return proto.Margin{
		Equity:            decimal.NewFromInt(1_000_000),
		AvailableMargin:   decimal.NewFromInt(900_000),
		MaintenanceMargin: decimal.NewFromInt(100_000),
	}, nil
}

func (s *Simulated) QueryProfitLoss(ctx context.Context) (proto.ProfitLoss, error) {
	if err := s.requireLogin(); err != nil {
		return proto.ProfitLoss{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	realized := decimal.NewFromInt(0)
	for _, t := range s.trades {
		realized = realized.Add(t.Price.Mul(decimal.NewFromInt(t.Quantity)))
	}
	return proto.ProfitLoss{Realized: realized, Unrealized: decimal.NewFromInt(0)}, nil
}

func (s *Simulated) ListTrades(ctx context.Context) ([]proto.Trade, error) {
	if err := s.requireLogin(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]proto.Trade, len(s.trades))
	copy(out, s.trades)
	return out, nil
}

func (s *Simulated) ListSettlements(ctx context.Context) ([]proto.Settlement, error) {
	if err := s.requireLogin(); err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *Simulated) QueryUsage(ctx context.Context) (proto.Usage, error) {
	if err := s.requireLogin(); err != nil {
		return proto.Usage{}, err
	}
	used := atomic.AddUint64(&s.usageCalls, 1)
	return proto.Usage{
		CallsUsed:      int(used),
		CallsRemaining: 10000 - int(used),
		WindowResetsAt: time.Now().Add(time.Hour).Unix(),
	}, nil
}

func (s *Simulated) ListSymbols(ctx context.Context) ([]proto.SymbolInfo, error) {
	if err := s.requireLogin(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]proto.SymbolInfo, 0, len(s.symbols))
	for _, sym := range s.symbols {
		out = append(out, sym)
	}
	return out, nil
}

func (s *Simulated) SymbolInfo(ctx context.Context, symbol string) (proto.SymbolInfo, error) {
	if err := s.requireLogin(); err != nil {
		return proto.SymbolInfo{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sym, ok := s.symbols[symbol]
	if !ok {
		return proto.SymbolInfo{}, brokererr.UpstreamRefused(fmt.Sprintf("unknown symbol %q", symbol))
	}
	return sym, nil
}

func (s *Simulated) SymbolSnapshot(ctx context.Context, symbol string) (proto.Tick, error) {
	if err := s.requireLogin(); err != nil {
		return proto.Tick{}, err
	}
	s.mu.Lock()
	sym, ok := s.symbols[symbol]
	s.mu.Unlock()
	if !ok {
		return proto.Tick{}, brokererr.UpstreamRefused(fmt.Sprintf("unknown symbol %q", symbol))
	}
	return proto.Tick{
		QuoteType:      proto.QuoteKindTick,
		Symbol:         symbol,
		ExchangeCode:   sym.ExchangeCode,
		Last:           decimal.NewFromInt(100),
		UpstreamTimeNS: time.Now().UnixNano(),
	}, nil
}

// SubscribeQuote resolves contract (a client alias or a real exchange
// code) to an exchange code. For a pseudo-symbol it hands back a
// synthetic "near month" code deterministically derived from the
// alias, the way a real venue would bind a role-based alias to today's
// front contract.
func (s *Simulated) SubscribeQuote(ctx context.Context, contract string) (string, error) {
	if err := s.requireLogin(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sym, ok := s.symbols[contract]
	code := contract
	if ok && sym.IsAlias {
		code = sym.ExchangeCode
		if code == "" {
			code = contract + "-FRONT"
		}
	}
	s.subs[code] = contract
	return code, nil
}

func (s *Simulated) UnsubscribeQuote(ctx context.Context, exchangeCode string) error {
	if err := s.requireLogin(); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.subs, exchangeCode)
	s.mu.Unlock()
	return nil
}

// PushTick lets a test simulate an upstream push for exchangeCode. It
// does nothing if no quote callback has been registered with
// SetQuoteCallback.
func (s *Simulated) PushTick(exchangeCode string, tick proto.Tick) {
	s.mu.Lock()
	cb := s.cb
	s.mu.Unlock()
	if cb == nil {
		return
	}
	tick.ExchangeCode = exchangeCode
	cb(exchangeCode, &tick, nil)
}

// PushBidAsk lets a test simulate an upstream bid/ask push.
func (s *Simulated) PushBidAsk(exchangeCode string, ba proto.BidAsk) {
	s.mu.Lock()
	cb := s.cb
	s.mu.Unlock()
	if cb == nil {
		return
	}
	cb(exchangeCode, nil, &ba)
}
