package audit

import (
	"context"
	"testing"

	"brokerd/internal/proto"
)

func TestRowFromOrderResultBuildsAnOKRow(t *testing.T) {
	row := RowFromOrderResult("live", proto.PlaceOrderPayload{Symbol: "TMF2512", Quantity: 3}, proto.OrderResult{OrderID: "abc123"})
	if row.Mode != "live" || row.Symbol != "TMF2512" || row.Quantity != 3 {
		t.Fatalf("unexpected row: %+v", row)
	}
	if row.Status != string(proto.StatusOK) {
		t.Fatalf("expected status ok, got %s", row.Status)
	}
	if row.UpstreamOrderID != "abc123" {
		t.Fatalf("expected the upstream order id to be carried over, got %s", row.UpstreamOrderID)
	}
	if row.FailureMessage != "" {
		t.Fatalf("expected no failure message on a successful row, got %s", row.FailureMessage)
	}
}

func TestRowFromFailureBuildsAFailedRow(t *testing.T) {
	row := RowFromFailure("simulation", proto.PlaceOrderPayload{Symbol: "MXF2512", Quantity: 1}, "upstream refused")
	if row.Status != string(proto.StatusFailed) {
		t.Fatalf("expected status failed, got %s", row.Status)
	}
	if row.FailureMessage != "upstream refused" {
		t.Fatalf("expected the failure message to be carried over, got %s", row.FailureMessage)
	}
	if row.UpstreamOrderID != "" {
		t.Fatalf("expected no upstream order id on a failed row, got %s", row.UpstreamOrderID)
	}
}

func TestUpdateStatusSkipsEmptyOrderID(t *testing.T) {
	s := &Store{}
	if err := s.UpdateStatus(context.Background(), "", proto.OrderStatusResult{CurrentStatus: "filled"}); err != nil {
		t.Fatalf("expected a no-op for an empty upstream order id, got %v", err)
	}
}

func TestTableNameIsPinned(t *testing.T) {
	if got := (OrderAuditRow{}).TableName(); got != "order_audit_rows" {
		t.Fatalf("expected a pinned table name, got %s", got)
	}
}
