package obs

import (
	"testing"
	"time"

	"brokerd/internal/proto"
)

func TestObserveCommandTracksCountsAndErrors(t *testing.T) {
	m := NewMetrics()
	m.ObserveCommand(proto.CommandPlaceOrder, false, 10*time.Millisecond)
	m.ObserveCommand(proto.CommandPlaceOrder, true, 20*time.Millisecond)
	m.ObserveCommand(proto.CommandListPositions, false, 5*time.Millisecond)

	snap := m.Snapshot()
	if snap.CommandCounts[proto.CommandPlaceOrder] != 2 {
		t.Fatalf("expected 2 place_order counts, got %+v", snap.CommandCounts)
	}
	if snap.CommandErrors[proto.CommandPlaceOrder] != 1 {
		t.Fatalf("expected 1 place_order error, got %+v", snap.CommandErrors)
	}
	if _, ok := snap.CommandCounts[proto.CommandCancelOrder]; ok {
		t.Fatalf("expected no entry for a command that was never observed")
	}
}

func TestLatencyStatsSnapshotTracksMinMaxAvg(t *testing.T) {
	m := NewMetrics()
	m.ObserveCommand(proto.CommandListPositions, false, 10*time.Millisecond)
	m.ObserveCommand(proto.CommandListPositions, false, 30*time.Millisecond)

	snap := m.Snapshot().DispatchLatency
	if snap.Count != 2 {
		t.Fatalf("expected count 2, got %d", snap.Count)
	}
	if snap.Min != 10*time.Millisecond {
		t.Fatalf("expected min 10ms, got %s", snap.Min)
	}
	if snap.Max != 30*time.Millisecond {
		t.Fatalf("expected max 30ms, got %s", snap.Max)
	}
	if snap.Avg != 20*time.Millisecond {
		t.Fatalf("expected avg 20ms, got %s", snap.Avg)
	}
}

func TestNilMetricsMethodsAreNoOps(t *testing.T) {
	var m *Metrics
	m.ObserveCommand(proto.CommandPlaceOrder, true, time.Second)
	m.IncQueueDrop()
	m.IncSessionReconnect()
	if snap := m.Snapshot(); snap.QueueDrops != 0 {
		t.Fatalf("expected a nil Metrics to yield an empty snapshot, got %+v", snap)
	}
}

func TestIncrementCountersAccumulate(t *testing.T) {
	m := NewMetrics()
	m.IncQueueDrop()
	m.IncQueueDrop()
	m.IncSessionReconnect()
	m.IncSessionDegraded()
	m.IncQuoteTick()
	m.IncQuoteDrop()

	snap := m.Snapshot()
	if snap.QueueDrops != 2 {
		t.Fatalf("expected 2 queue drops, got %d", snap.QueueDrops)
	}
	if snap.SessionReconnects != 1 || snap.SessionDegraded != 1 {
		t.Fatalf("expected 1 reconnect and 1 degraded transition, got %+v", snap)
	}
	if snap.QuoteTicks != 1 || snap.QuoteDrops != 1 {
		t.Fatalf("expected 1 quote tick and 1 quote drop, got %+v", snap)
	}
}
