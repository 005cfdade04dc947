package proto

import "github.com/yanun0323/decimal"

// QuoteKind discriminates the two normalized quote shapes.
type QuoteKind string

const (
	QuoteKindTick    QuoteKind = "tick"
	QuoteKindBidAsk  QuoteKind = "bidask"
)

// Tick is a normalized last-trade update. Symbol is always the
// client-facing alias, never the upstream exchange code.
type Tick struct {
	QuoteType      QuoteKind       `json:"quote_type"`
	Symbol         string          `json:"symbol"`
	ExchangeCode   string          `json:"exchange_code"`
	Last           decimal.Decimal `json:"last"`
	Open           decimal.Decimal `json:"open"`
	High           decimal.Decimal `json:"high"`
	Low            decimal.Decimal `json:"low"`
	Change         decimal.Decimal `json:"change"`
	ChangePercent  decimal.Decimal `json:"change_percent"`
	Volume         int64           `json:"volume"`
	TotalVolume    int64           `json:"total_volume"`
	UpstreamTimeNS int64           `json:"upstream_time_unix_nano"`
}

// BidAsk is a normalized best bid/ask update.
type BidAsk struct {
	QuoteType      QuoteKind       `json:"quote_type"`
	Symbol         string          `json:"symbol"`
	ExchangeCode   string          `json:"exchange_code"`
	BidPrice       decimal.Decimal `json:"bid_price"`
	BidVolume      int64           `json:"bid_volume"`
	AskPrice       decimal.Decimal `json:"ask_price"`
	AskVolume      int64           `json:"ask_volume"`
	UpstreamTimeNS int64           `json:"upstream_time_unix_nano"`
}
