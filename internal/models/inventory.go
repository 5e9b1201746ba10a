package models

// InventoryItem represents a mirrored stock item.
//
// CurrentQuantity is always the final, already-adjusted quantity. Queued
// updates carry this absolute value and the remote quantity is overwritten
// with it on sync; deltas are never propagated.
type InventoryItem struct {
	ID              string  `db:"id" json:"id"`
	Name            string  `db:"name" json:"name"`
	Unit            string  `db:"unit" json:"unit"`
	CurrentQuantity float64 `db:"current_quantity" json:"current_quantity"`
	MinThreshold    float64 `db:"min_threshold" json:"min_threshold"`
	UpdatedAt       int64   `db:"updated_at" json:"updated_at"`
}

// TableName returns the table name for InventoryItem.
func (InventoryItem) TableName() string {
	return TableInventoryItems.String()
}

// ActivityLog represents an audit trail entry for inventory changes.
type ActivityLog struct {
	ID        string `db:"id" json:"id"`
	UserID    string `db:"user_id" json:"user_id"`
	Action    string `db:"action" json:"action"`
	Detail    string `db:"detail" json:"detail"`
	CreatedAt int64  `db:"created_at" json:"created_at"`
}

// TableName returns the table name for ActivityLog.
func (ActivityLog) TableName() string {
	return TableActivityLog.String()
}
