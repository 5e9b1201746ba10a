package oplog

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dnugroho/possync/internal/db"
	"github.com/dnugroho/possync/internal/models"
)

func setupLog(t *testing.T) *Log {
	t.Helper()

	database, err := db.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	require.NoError(t, database.Init())

	return New(database, zerolog.Nop())
}

func TestEnqueueAndGetPending(t *testing.T) {
	l := setupLog(t)

	op, err := l.Enqueue(models.OpUpdate, models.TableInventoryItems,
		json.RawMessage(`{"id":"item-1","current_quantity":7}`))
	require.NoError(t, err)
	require.NotEmpty(t, op.ID)
	assert.False(t, op.IsSynced)

	pending, err := l.GetPending()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, op.ID, pending[0].ID)
	assert.Equal(t, models.OpUpdate, pending[0].Kind)
	assert.Equal(t, models.TableInventoryItems, pending[0].Table)
	assert.JSONEq(t, `{"id":"item-1","current_quantity":7}`, string(pending[0].Payload))
}

func TestEnqueueRejectsInvalidInput(t *testing.T) {
	l := setupLog(t)

	_, err := l.Enqueue(models.OpKind("delete"), models.TableProducts, json.RawMessage(`{}`))
	assert.Error(t, err)

	_, err = l.Enqueue(models.OpUpdate, models.TableUnknown, json.RawMessage(`{}`))
	assert.Error(t, err)
}

func TestEnqueueDedupCollapse(t *testing.T) {
	l := setupLog(t)

	first, err := l.Enqueue(models.OpUpdate, models.TableInventoryItems,
		json.RawMessage(`{"id":"item-1","current_quantity":9}`))
	require.NoError(t, err)

	second, err := l.Enqueue(models.OpUpdate, models.TableInventoryItems,
		json.RawMessage(`{"id":"item-1","current_quantity":7}`))
	require.NoError(t, err)

	// Same (kind, table) pair collapses onto the existing entry
	assert.Equal(t, first.ID, second.ID)

	pending, err := l.GetPending()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.JSONEq(t, `{"id":"item-1","current_quantity":7}`, string(pending[0].Payload))
}

func TestEnqueueDistinctPairsDoNotCollapse(t *testing.T) {
	l := setupLog(t)

	_, err := l.Enqueue(models.OpUpdate, models.TableInventoryItems, json.RawMessage(`{"a":1}`))
	require.NoError(t, err)
	_, err = l.Enqueue(models.OpInsert, models.TableInventoryItems, json.RawMessage(`{"b":2}`))
	require.NoError(t, err)
	_, err = l.Enqueue(models.OpUpdate, models.TableProducts, json.RawMessage(`{"c":3}`))
	require.NoError(t, err)

	n, err := l.CountPending()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestGetPendingFIFOOrder(t *testing.T) {
	l := setupLog(t)

	op1, err := l.Enqueue(models.OpUpdate, models.TableInventoryItems, json.RawMessage(`{}`))
	require.NoError(t, err)
	op2, err := l.Enqueue(models.OpInsert, models.TableProducts, json.RawMessage(`{}`))
	require.NoError(t, err)
	op3, err := l.Enqueue(models.OpInsert, models.TableActivityLog, json.RawMessage(`{}`))
	require.NoError(t, err)

	// Backdate to force distinct timestamps regardless of clock resolution
	backdate(t, l, op1.ID, -3*time.Minute)
	backdate(t, l, op2.ID, -2*time.Minute)
	backdate(t, l, op3.ID, -time.Minute)

	pending, err := l.GetPending()
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, op1.ID, pending[0].ID)
	assert.Equal(t, op2.ID, pending[1].ID)
	assert.Equal(t, op3.ID, pending[2].ID)
}

func TestMarkSyncedIdempotent(t *testing.T) {
	l := setupLog(t)

	op, err := l.Enqueue(models.OpUpdate, models.TableInventoryItems, json.RawMessage(`{}`))
	require.NoError(t, err)

	require.NoError(t, l.MarkSynced(op.ID))

	got, err := l.Get(op.ID)
	require.NoError(t, err)
	require.True(t, got.IsSynced)
	require.NotNil(t, got.SyncedAt)
	firstSyncedAt := *got.SyncedAt

	// Second call is a no-op; the original timestamp is preserved
	require.NoError(t, l.MarkSynced(op.ID))

	got, err = l.Get(op.ID)
	require.NoError(t, err)
	assert.True(t, got.IsSynced)
	assert.Equal(t, firstSyncedAt, *got.SyncedAt)
}

func TestMarkSyncedUnknownID(t *testing.T) {
	l := setupLog(t)
	assert.ErrorIs(t, l.MarkSynced("no-such-id"), ErrNotFound)
}

func TestSyncedEntryLeavesPendingSet(t *testing.T) {
	l := setupLog(t)

	op, err := l.Enqueue(models.OpUpdate, models.TableInventoryItems, json.RawMessage(`{}`))
	require.NoError(t, err)
	require.NoError(t, l.MarkSynced(op.ID))

	pending, err := l.GetPending()
	require.NoError(t, err)
	assert.Empty(t, pending)

	// A new enqueue after sync creates a fresh entry, not a collapse
	op2, err := l.Enqueue(models.OpUpdate, models.TableInventoryItems, json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.NotEqual(t, op.ID, op2.ID)
}

func TestCleanupRetention(t *testing.T) {
	l := setupLog(t)

	oldOp, err := l.Enqueue(models.OpUpdate, models.TableInventoryItems, json.RawMessage(`{}`))
	require.NoError(t, err)
	recentOp, err := l.Enqueue(models.OpInsert, models.TableProducts, json.RawMessage(`{}`))
	require.NoError(t, err)
	pendingOp, err := l.Enqueue(models.OpInsert, models.TableActivityLog, json.RawMessage(`{}`))
	require.NoError(t, err)

	require.NoError(t, l.MarkSynced(oldOp.ID))
	require.NoError(t, l.MarkSynced(recentOp.ID))

	setSyncedAt(t, l, oldOp.ID, time.Now().Add(-8*24*time.Hour))
	setSyncedAt(t, l, recentOp.ID, time.Now().Add(-6*24*time.Hour))

	deleted, err := l.Cleanup(7 * 24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = l.Get(oldOp.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = l.Get(recentOp.ID)
	assert.NoError(t, err)

	// Unsynced entries are never deleted regardless of age
	_, err = l.Get(pendingOp.ID)
	assert.NoError(t, err)
}

func TestGetStats(t *testing.T) {
	l := setupLog(t)

	op, err := l.Enqueue(models.OpUpdate, models.TableInventoryItems, json.RawMessage(`{}`))
	require.NoError(t, err)
	_, err = l.Enqueue(models.OpInsert, models.TableProducts, json.RawMessage(`{}`))
	require.NoError(t, err)
	require.NoError(t, l.MarkSynced(op.ID))

	stats, err := l.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, 1, stats.Synced)
}

func backdate(t *testing.T, l *Log, id string, offset time.Duration) {
	t.Helper()
	_, err := l.db.Exec(`UPDATE operation_log SET created_at = ? WHERE id = ?`,
		time.Now().Add(offset).Unix(), id)
	require.NoError(t, err)
}

func setSyncedAt(t *testing.T, l *Log, id string, at time.Time) {
	t.Helper()
	_, err := l.db.Exec(`UPDATE operation_log SET synced_at = ? WHERE id = ?`,
		at.Unix(), id)
	require.NoError(t, err)
}
