package obs

import (
	"sync/atomic"
	"time"

	"brokerd/internal/proto"
)

// commandSlots maps each proto.Command to a dense index for the
// counters array below.
var commandSlots = map[proto.Command]int{
	proto.CommandPlaceOrder:       0,
	proto.CommandCancelOrder:      1,
	proto.CommandRecheckOrder:     2,
	proto.CommandListPositions:    3,
	proto.CommandQueryMargin:      4,
	proto.CommandQueryProfitLoss:  5,
	proto.CommandListTrades:       6,
	proto.CommandListSettlements:  7,
	proto.CommandListSymbols:      8,
	proto.CommandSymbolInfo:       9,
	proto.CommandSymbolSnapshot:   10,
	proto.CommandQueryUsage:       11,
	proto.CommandSubscribeQuote:   12,
	proto.CommandUnsubscribeQuote: 13,
}

const commandSlotCount = 14

// Metrics collects lightweight counters and latency stats for the
// command dispatcher, the session state machine, and the quote
// pipeline.
type Metrics struct {
	commandCounts [commandSlotCount]uint64
	commandErrors [commandSlotCount]uint64

	queueDrops      uint64
	queueClosed     uint64
	sessionReconnects uint64
	sessionDegraded   uint64
	quoteTicks        uint64
	quoteDrops        uint64

	dispatchLatency LatencyStats
	upstreamLatency LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	CommandCounts     map[proto.Command]uint64
	CommandErrors     map[proto.Command]uint64
	QueueDrops        uint64
	QueueClosed       uint64
	SessionReconnects uint64
	SessionDegraded   uint64
	QuoteTicks        uint64
	QuoteDrops        uint64
	DispatchLatency   LatencySnapshot
	UpstreamLatency   LatencySnapshot
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// ObserveCommand records a dispatched command and its outcome/latency.
func (m *Metrics) ObserveCommand(cmd proto.Command, failed bool, d time.Duration) {
	if m == nil {
		return
	}
	if idx, ok := commandSlots[cmd]; ok {
		atomic.AddUint64(&m.commandCounts[idx], 1)
		if failed {
			atomic.AddUint64(&m.commandErrors[idx], 1)
		}
	}
	m.dispatchLatency.Observe(d)
}

// ObserveUpstreamCall measures upstream round-trip latency.
func (m *Metrics) ObserveUpstreamCall(d time.Duration) {
	if m == nil {
		return
	}
	m.upstreamLatency.Observe(d)
}

// IncQueueDrop records a bus submission rejected for a full queue.
func (m *Metrics) IncQueueDrop() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.queueDrops, 1)
}

// IncQueueClosed records a bus submission rejected for a closed queue.
func (m *Metrics) IncQueueClosed() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.queueClosed, 1)
}

// IncSessionReconnect records a transition into the reconnecting state.
func (m *Metrics) IncSessionReconnect() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.sessionReconnects, 1)
}

// IncSessionDegraded records a transition into the degraded state.
func (m *Metrics) IncSessionDegraded() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.sessionDegraded, 1)
}

// IncQuoteTick records a normalized tick or bid/ask published to a
// subscriber channel.
func (m *Metrics) IncQuoteTick() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.quoteTicks, 1)
}

// IncQuoteDrop records a quote that never reached a client: an upstream
// update whose exchange code resolves to no subscribed alias, or a frame
// dropped because a client's send queue was full.
func (m *Metrics) IncQuoteDrop() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.quoteDrops, 1)
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	counts := make(map[proto.Command]uint64)
	errs := make(map[proto.Command]uint64)
	for cmd, idx := range commandSlots {
		if v := atomic.LoadUint64(&m.commandCounts[idx]); v > 0 {
			counts[cmd] = v
		}
		if v := atomic.LoadUint64(&m.commandErrors[idx]); v > 0 {
			errs[cmd] = v
		}
	}
	return Snapshot{
		CommandCounts:     counts,
		CommandErrors:     errs,
		QueueDrops:        atomic.LoadUint64(&m.queueDrops),
		QueueClosed:       atomic.LoadUint64(&m.queueClosed),
		SessionReconnects: atomic.LoadUint64(&m.sessionReconnects),
		SessionDegraded:   atomic.LoadUint64(&m.sessionDegraded),
		QuoteTicks:        atomic.LoadUint64(&m.quoteTicks),
		QuoteDrops:        atomic.LoadUint64(&m.quoteDrops),
		DispatchLatency:   m.dispatchLatency.Snapshot(),
		UpstreamLatency:   m.upstreamLatency.Snapshot(),
	}
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}

	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	min := atomic.LoadUint64(&l.min)
	max := atomic.LoadUint64(&l.max)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(min),
		Max:   time.Duration(max),
		Avg:   time.Duration(sum / count),
	}
}
