package config

import "github.com/yanun0323/decimal"

// RiskLimits is the mutable subset of configuration: the part the risk
// guard (internal/risk) consults on every order intent and that an
// operator may change without restarting the process.
type RiskLimits struct {
	Version          uint16          `json:"version"`
	KillSwitch       bool            `json:"killSwitch"`
	MaxOrderQty      int64           `json:"maxOrderQty"`
	MaxOrderNotional decimal.Decimal `json:"maxOrderNotional"`
	MaxPosition      int64           `json:"maxPosition"`
	MaxDailyLoss     decimal.Decimal `json:"maxDailyLoss"`
	MaxDailyTrades   int             `json:"maxDailyTrades"`
	OrderRateLimit   int             `json:"orderRateLimit"`
	OrderRateWindowMS int64          `json:"orderRateWindowMs"`
	MaxPriceDeviationBps int64       `json:"maxPriceDeviationBps"`
}

// FeatureFlags are resolved, hot-reloadable runtime toggles.
type FeatureFlags struct {
	EnableOrderFlow bool `json:"enableOrderFlow"`
	EnableQuotes    bool `json:"enableQuotes"`
}

// RiskFile is the on-disk JSON shape a RiskConfigPath file holds.
type RiskFile struct {
	Risk     RiskLimits   `json:"risk"`
	Features FeatureFlags `json:"features"`
}

// DefaultRiskFile returns permissive limits for a deployment that does
// not configure a risk file: no caps, kill switch off, all flags on.
func DefaultRiskFile() RiskFile {
	return RiskFile{
		Features: FeatureFlags{EnableOrderFlow: true, EnableQuotes: true},
	}
}
