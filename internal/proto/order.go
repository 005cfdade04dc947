package proto

import "github.com/yanun0323/decimal"

// Direction is the directional intent of an order command.
type Direction string

const (
	DirectionLongEntry  Direction = "long_entry"
	DirectionLongExit   Direction = "long_exit"
	DirectionShortEntry Direction = "short_entry"
	DirectionShortExit  Direction = "short_exit"
)

// IsEntry reports whether the direction opens a new position.
func (d Direction) IsEntry() bool {
	return d == DirectionLongEntry || d == DirectionShortEntry
}

// IsLong reports whether the direction is on the long side.
func (d Direction) IsLong() bool {
	return d == DirectionLongEntry || d == DirectionLongExit
}

// PriceType selects market or limit pricing.
type PriceType string

const (
	PriceTypeMarket PriceType = "market"
	PriceTypeLimit  PriceType = "limit"
)

// OrderType is the upstream time-in-force style.
type OrderType string

const (
	OrderTypeDay OrderType = "day"
	OrderTypeFOK OrderType = "fok"
	OrderTypeIOC OrderType = "ioc"
)

// PlaceOrderPayload is the payload for CommandPlaceOrder.
type PlaceOrderPayload struct {
	Direction Direction       `json:"direction"`
	Symbol    string          `json:"symbol"`
	Quantity  int64           `json:"quantity"`
	Price     decimal.Decimal `json:"price,omitempty"`
	PriceType PriceType       `json:"price_type"`
	OrderType OrderType       `json:"order_type"`
}

// CancelOrderPayload is the payload for CommandCancelOrder.
type CancelOrderPayload struct {
	OrderID string `json:"order_id"`
}

// RecheckOrderPayload is the payload for CommandRecheckOrder.
type RecheckOrderPayload struct {
	OrderID string `json:"order_id"`
}

// SymbolPayload is the payload for commands keyed by a single symbol.
type SymbolPayload struct {
	Symbol string `json:"symbol"`
}

// OrderResult is the data payload of a successful place_order response.
type OrderResult struct {
	OrderID string `json:"order_id"`
}

// OrderStatusResult is the data payload of a recheck_order response.
type OrderStatusResult struct {
	OrderID        string          `json:"order_id"`
	CurrentStatus  string          `json:"current_status"`
	FillQuantity   int64           `json:"fill_quantity"`
	FillPrice      decimal.Decimal `json:"fill_price,omitempty"`
	Deals          []Deal          `json:"deals,omitempty"`
}

// Deal is one partial or full fill against an order.
type Deal struct {
	Quantity int64           `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Time     int64           `json:"time_unix_nano"`
}

// Position is one net position row.
type Position struct {
	Symbol       string          `json:"symbol"`
	Direction    string          `json:"direction"`
	Quantity     int64           `json:"quantity"`
	AveragePrice decimal.Decimal `json:"average_price"`
	PnL          decimal.Decimal `json:"pnl"`
}

// Margin is the account margin snapshot.
type Margin struct {
	Equity         decimal.Decimal `json:"equity"`
	AvailableMargin decimal.Decimal `json:"available_margin"`
	MaintenanceMargin decimal.Decimal `json:"maintenance_margin"`
}

// ProfitLoss is the realized/unrealized PnL snapshot.
type ProfitLoss struct {
	Realized   decimal.Decimal `json:"realized"`
	Unrealized decimal.Decimal `json:"unrealized"`
}

// Trade is one executed trade row.
type Trade struct {
	OrderID  string          `json:"order_id"`
	Symbol   string          `json:"symbol"`
	Direction string         `json:"direction"`
	Quantity int64           `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Time     int64           `json:"time_unix_nano"`
}

// Settlement is one settlement row.
type Settlement struct {
	Date   string          `json:"date"`
	Amount decimal.Decimal `json:"amount"`
}

// Usage is the API-call/rate-budget snapshot (query_usage).
type Usage struct {
	CallsUsed      int   `json:"calls_used"`
	CallsRemaining int   `json:"calls_remaining"`
	WindowResetsAt int64 `json:"window_resets_at_unix"`
	BytesSent      int64 `json:"bytes_sent"`
	BytesReceived  int64 `json:"bytes_received"`
}

// SymbolInfo is one catalog entry (list_symbols / symbol_info).
type SymbolInfo struct {
	Symbol        string `json:"symbol"`
	ExchangeCode  string `json:"exchange_code,omitempty"`
	ProductFamily string `json:"product_family"`
	IsAlias       bool   `json:"is_alias"`
}
