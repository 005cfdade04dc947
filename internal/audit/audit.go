// Package audit persists one row per dispatched order command, using
// gorm.io/gorm over the shared Postgres connection pool pkg/conn wraps.
package audit

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"brokerd/internal/proto"
)

// OrderAuditRow is one persisted audit record for a dispatched order
// command.
type OrderAuditRow struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt       time.Time `gorm:"index"`
	Mode            string    `gorm:"size:16;not null"` // "live" or "simulation"
	Symbol          string    `gorm:"size:32;not null"`
	ExchangeCode    string    `gorm:"size:32"`
	Action          string    `gorm:"size:32;not null"` // command name, e.g. place_order
	Quantity        int64
	Status          string `gorm:"size:16;not null"` // ok / failed / no_action / terminal upstream status after recheck
	FillQuantity    int64
	FillPrice       string `gorm:"size:64"`    // decimal.Decimal stored as text
	Deals           string `gorm:"type:text"`  // JSON-encoded []proto.Deal
	UpstreamOrderID string `gorm:"size:64;index"`
	FailureMessage  string `gorm:"type:text"`
}

// TableName pins the table name regardless of gorm's pluralization rules.
func (OrderAuditRow) TableName() string { return "order_audit_rows" }

// Store persists one audit row per dispatched order command.
type Store struct {
	db *gorm.DB
}

// New wraps db for audit writes. Migrate must be called once at
// startup before Record is used against a fresh database.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates/updates the order_audit_rows table.
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&OrderAuditRow{})
}

// Record inserts an audit row. Failures to write the audit trail never
// block the caller's response — the dispatcher logs and continues.
func (s *Store) Record(ctx context.Context, row OrderAuditRow) error {
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

// RowFromOrderResult builds an audit row for a successful place_order.
func RowFromOrderResult(mode string, payload proto.PlaceOrderPayload, result proto.OrderResult) OrderAuditRow {
	return OrderAuditRow{
		Mode:            mode,
		Symbol:          payload.Symbol,
		Action:          string(proto.CommandPlaceOrder),
		Quantity:        payload.Quantity,
		Status:          string(proto.StatusOK),
		UpstreamOrderID: result.OrderID,
	}
}

// UpdateStatus reconciles the audit row for upstreamOrderID with a
// recheck_order result: status, fill quantity/price, and the deal list.
// It is a no-op (returns nil) if no row for that order exists yet, since
// recheck can be called for orders placed before the audit store was
// wired up or while no audit store was configured.
func (s *Store) UpdateStatus(ctx context.Context, upstreamOrderID string, result proto.OrderStatusResult) error {
	if upstreamOrderID == "" {
		return nil
	}
	dealsJSON, err := sonic.MarshalString(result.Deals)
	if err != nil {
		return err
	}
	updates := map[string]any{
		"status":        result.CurrentStatus,
		"fill_quantity": result.FillQuantity,
		"fill_price":    result.FillPrice.String(),
		"deals":         dealsJSON,
	}
	return s.db.WithContext(ctx).Model(&OrderAuditRow{}).
		Where("upstream_order_id = ?", upstreamOrderID).
		Updates(updates).Error
}

// RowFromFailure builds an audit row for a failed place_order attempt.
func RowFromFailure(mode string, payload proto.PlaceOrderPayload, failureMessage string) OrderAuditRow {
	return OrderAuditRow{
		Mode:           mode,
		Symbol:         payload.Symbol,
		Action:         string(proto.CommandPlaceOrder),
		Quantity:       payload.Quantity,
		Status:         string(proto.StatusFailed),
		FailureMessage: failureMessage,
	}
}
