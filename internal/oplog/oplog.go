// Package oplog provides the durable operation log: an ordered record of
// local mutations awaiting propagation to the remote store.
//
// The log shares the mirror store's SQLite handle and inherits its
// single-writer constraint. Entries survive process restarts; replay order is
// strictly FIFO by enqueue time.
package oplog

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dnugroho/possync/internal/db"
	"github.com/dnugroho/possync/internal/models"
)

// ErrNotFound is returned when a requested log entry does not exist.
var ErrNotFound = errors.New("operation not found")

// DefaultRetention is how long synced entries are kept before Cleanup
// deletes them.
const DefaultRetention = 7 * 24 * time.Hour

// Log is the durable operation log.
type Log struct {
	db     *sql.DB
	logger zerolog.Logger
}

// New creates a Log on an initialized database.
func New(database *db.DB, logger zerolog.Logger) *Log {
	return &Log{
		db:     database.DB,
		logger: logger.With().Str("component", "oplog").Logger(),
	}
}

// Stats summarizes the state of the log.
type Stats struct {
	Total   int `json:"total"`
	Pending int `json:"pending"`
	Synced  int `json:"synced"`
}

// Enqueue records a mutation for later propagation.
//
// If an unsynced entry with the same (kind, table) already exists, its payload
// and timestamp are overwritten in place instead of appending a duplicate.
// This is a deliberate last-write-wins collapse within one sync cycle: with
// absolute-quantity semantics the latest snapshot is the only state that
// matters.
func (l *Log) Enqueue(kind models.OpKind, table models.EntityTable, payload json.RawMessage) (*models.PendingOperation, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("invalid operation kind %q", kind)
	}
	if table == models.TableUnknown {
		return nil, fmt.Errorf("invalid entity table")
	}

	now := time.Now().Unix()

	// Single local writer, so check-then-write is safe here.
	var existingID string
	err := l.db.QueryRow(`
	SELECT id FROM operation_log
	WHERE operation_kind = ? AND entity_table = ? AND is_synced = 0`,
		string(kind), table.String()).Scan(&existingID)

	switch {
	case err == nil:
		_, err = l.db.Exec(`
		UPDATE operation_log SET payload = ?, created_at = ? WHERE id = ?`,
			string(payload), now, existingID)
		if err != nil {
			return nil, fmt.Errorf("failed to collapse pending operation: %w", err)
		}

		l.logger.Debug().
			Str("id", existingID).
			Str("kind", string(kind)).
			Str("table", table.String()).
			Msg("collapsed pending operation")

		return &models.PendingOperation{
			ID:        existingID,
			Kind:      kind,
			Table:     table,
			Payload:   payload,
			CreatedAt: now,
		}, nil

	case errors.Is(err, sql.ErrNoRows):
		op := &models.PendingOperation{
			ID:        uuid.New().String(),
			Kind:      kind,
			Table:     table,
			Payload:   payload,
			CreatedAt: now,
		}

		_, err = l.db.Exec(`
		INSERT INTO operation_log (id, operation_kind, entity_table, payload, created_at, is_synced)
		VALUES (?, ?, ?, ?, ?, 0)`,
			op.ID, string(op.Kind), op.Table.String(), string(op.Payload), op.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to enqueue operation: %w", err)
		}

		l.logger.Debug().
			Str("id", op.ID).
			Str("kind", string(kind)).
			Str("table", table.String()).
			Msg("enqueued operation")

		return op, nil

	default:
		return nil, err
	}
}

// GetPending returns all unsynced entries, oldest first. This ordering
// defines the replay order during push.
func (l *Log) GetPending() ([]*models.PendingOperation, error) {
	rows, err := l.db.Query(`
	SELECT id, operation_kind, entity_table, payload, created_at, synced_at, is_synced
	FROM operation_log WHERE is_synced = 0
	ORDER BY created_at ASC, rowid ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanOperations(rows)
}

// Get retrieves one entry by ID.
func (l *Log) Get(id string) (*models.PendingOperation, error) {
	row := l.db.QueryRow(`
	SELECT id, operation_kind, entity_table, payload, created_at, synced_at, is_synced
	FROM operation_log WHERE id = ?`, id)

	op, err := scanOperation(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return op, err
}

// MarkSynced flags an entry as confirmed against the remote store. The
// synced flag transitions false to true exactly once; calling MarkSynced on
// an already-synced entry keeps the original synced timestamp.
func (l *Log) MarkSynced(id string) error {
	res, err := l.db.Exec(`
	UPDATE operation_log
	SET is_synced = 1, synced_at = COALESCE(synced_at, ?)
	WHERE id = ?`, time.Now().Unix(), id)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountPending returns the number of unsynced entries.
func (l *Log) CountPending() (int, error) {
	var n int
	err := l.db.QueryRow(`SELECT COUNT(*) FROM operation_log WHERE is_synced = 0`).Scan(&n)
	return n, err
}

// Cleanup deletes synced entries older than the retention window and returns
// the number deleted. Unsynced entries are never touched.
func (l *Log) Cleanup(retention time.Duration) (int64, error) {
	if retention <= 0 {
		retention = DefaultRetention
	}
	cutoff := time.Now().Add(-retention).Unix()

	res, err := l.db.Exec(`
	DELETE FROM operation_log WHERE is_synced = 1 AND synced_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		l.logger.Info().Int64("deleted", deleted).Msg("cleaned up synced operations")
	}
	return deleted, nil
}

// GetStats returns a breakdown of log entries by state.
func (l *Log) GetStats() (*Stats, error) {
	var stats Stats
	err := l.db.QueryRow(`
	SELECT COUNT(*),
	       COALESCE(SUM(CASE WHEN is_synced = 0 THEN 1 ELSE 0 END), 0),
	       COALESCE(SUM(CASE WHEN is_synced = 1 THEN 1 ELSE 0 END), 0)
	FROM operation_log`).Scan(&stats.Total, &stats.Pending, &stats.Synced)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func scanOperations(rows *sql.Rows) ([]*models.PendingOperation, error) {
	var ops []*models.PendingOperation
	for rows.Next() {
		op, err := scanOperation(rows.Scan)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

func scanOperation(scan func(...interface{}) error) (*models.PendingOperation, error) {
	var (
		op       models.PendingOperation
		kind     string
		table    string
		payload  string
		syncedAt sql.NullInt64
	)
	if err := scan(&op.ID, &kind, &table, &payload, &op.CreatedAt, &syncedAt, &op.IsSynced); err != nil {
		return nil, err
	}
	op.Kind = models.OpKind(kind)
	op.Table = models.ParseEntityTable(table)
	op.Payload = json.RawMessage(payload)
	if syncedAt.Valid {
		v := syncedAt.Int64
		op.SyncedAt = &v
	}
	return &op, nil
}
