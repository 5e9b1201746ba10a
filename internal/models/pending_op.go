package models

import (
	"encoding/json"
	"time"
)

// PendingOperation represents an entry in the operation log: a mutation
// performed locally that has not yet been confirmed against the remote store.
type PendingOperation struct {
	ID        string          `db:"id" json:"id"`
	Kind      OpKind          `db:"operation_kind" json:"operation_kind"`
	Table     EntityTable     `db:"entity_table" json:"entity_table"`
	Payload   json.RawMessage `db:"payload" json:"payload"`
	CreatedAt int64           `db:"created_at" json:"created_at"`
	SyncedAt  *int64          `db:"synced_at" json:"synced_at,omitempty"`
	IsSynced  bool            `db:"is_synced" json:"is_synced"`
}

// TableName returns the table name for PendingOperation.
func (PendingOperation) TableName() string {
	return "operation_log"
}

// Age returns how long ago the operation was enqueued.
func (op *PendingOperation) Age(now time.Time) time.Duration {
	return now.Sub(time.Unix(op.CreatedAt, 0))
}
