// Package syncer provides the sync coordinator: the pull / push / cleanup
// reconciliation cycle between the local mirror store and the remote
// authoritative store.
package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/dnugroho/possync/internal/connectivity"
	"github.com/dnugroho/possync/internal/db"
	"github.com/dnugroho/possync/internal/models"
	"github.com/dnugroho/possync/internal/oplog"
	"github.com/dnugroho/possync/internal/remote"
)

// Config holds coordinator tuning knobs.
type Config struct {
	// CycleTimeout bounds one whole pull+push+cleanup cycle.
	CycleTimeout time.Duration

	// Retention is how long synced log entries are kept before cleanup.
	Retention time.Duration

	// SyncInterval is how often Run triggers a periodic cycle while
	// connected, in addition to reconnect-triggered cycles.
	SyncInterval time.Duration
}

// DefaultConfig returns the coordinator defaults.
func DefaultConfig() Config {
	return Config{
		CycleTimeout: 2 * time.Minute,
		Retention:    oplog.DefaultRetention,
		SyncInterval: 15 * time.Minute,
	}
}

// Coordinator orchestrates reconciliation cycles. At most one cycle runs at
// a time; concurrent triggers are rejected with ErrSyncInProgress.
type Coordinator struct {
	store   *db.Store
	log     *oplog.Log
	remote  remote.Client
	monitor *connectivity.Monitor
	logger  zerolog.Logger
	cfg     Config

	// OnStatus, when set, receives progress signals during a cycle.
	// Must be set before the first Sync call.
	OnStatus func(StatusUpdate)

	running atomic.Bool

	mu         sync.Mutex
	lastResult *Result

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a Coordinator.
func New(store *db.Store, log *oplog.Log, rc remote.Client, monitor *connectivity.Monitor, cfg Config, logger zerolog.Logger) *Coordinator {
	if cfg.CycleTimeout <= 0 {
		cfg.CycleTimeout = DefaultConfig().CycleTimeout
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultConfig().Retention
	}
	if cfg.SyncInterval <= 0 {
		cfg.SyncInterval = DefaultConfig().SyncInterval
	}
	return &Coordinator{
		store:   store,
		log:     log,
		remote:  rc,
		monitor: monitor,
		logger:  logger.With().Str("component", "syncer").Logger(),
		cfg:     cfg,
		stopCh:  make(chan struct{}),
	}
}

// LastResult returns the result of the most recent cycle, or nil.
func (c *Coordinator) LastResult() *Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastResult
}

// Sync runs one reconciliation cycle: pull authoritative entities into the
// mirror, push pending operations in FIFO order, then clean up old synced
// entries.
//
// The single-flight guard is an atomic compare-and-swap: a trigger arriving
// while a cycle runs gets ErrSyncInProgress and causes no side effects.
func (c *Coordinator) Sync(ctx context.Context) (*Result, error) {
	if !c.running.CompareAndSwap(false, true) {
		return nil, ErrSyncInProgress
	}
	defer c.running.Store(false)

	result := &Result{StartedAt: time.Now()}
	defer func() {
		result.Duration = time.Since(result.StartedAt)
		c.mu.Lock()
		c.lastResult = result
		c.mu.Unlock()
	}()

	// Connectivity guards: exit before touching the log, reporting the
	// specific reason.
	if !c.monitor.IsConnected() {
		result.Status = StatusNoNetwork
		result.Message = "no network connection"
		return result, ErrNoNetwork
	}

	probeCtx, cancelProbe := context.WithTimeout(ctx, connectivity.DefaultProbeTimeout)
	err := c.remote.Ping(probeCtx)
	cancelProbe()
	if err != nil {
		result.Status = StatusRemoteUnreachable
		result.Message = fmt.Sprintf("remote store unreachable: %v", err)
		return result, ErrRemoteUnreachable
	}

	cycleCtx, cancel := context.WithTimeout(ctx, c.cfg.CycleTimeout)
	defer cancel()

	c.emit(StatusUpdate{Progress: 0, Message: "sync started"})
	c.logger.Info().Msg("sync cycle started")

	c.pull(cycleCtx, result)
	c.push(cycleCtx, result)

	// Cleanup runs regardless of push outcome
	cleaned, err := c.log.Cleanup(c.cfg.Retention)
	if err != nil {
		c.logger.Error().Err(err).Msg("cleanup failed")
	}
	result.Cleaned = cleaned

	if remaining, err := c.log.CountPending(); err == nil {
		result.RemainingPending = remaining
	}

	c.emit(StatusUpdate{Progress: 100, Synced: result.Synced, Message: "sync finished"})

	if cycleCtx.Err() != nil {
		result.Status = StatusTimedOut
		result.Message = fmt.Sprintf("cycle timed out after %s; %d synced, %d left pending",
			c.cfg.CycleTimeout, result.Synced, result.RemainingPending)
		c.logger.Warn().Int("synced", result.Synced).Msg("sync cycle timed out")
		return result, ErrCycleTimeout
	}

	if result.Failed == 0 && result.PullErrors == 0 {
		result.Status = StatusCompleted
		result.Success = true
	} else {
		result.Status = StatusPartial
	}
	result.Message = fmt.Sprintf("%d pulled, %d pushed, %d failed, %d awaiting manual sync, %d cleaned",
		result.Pulled, result.Synced, result.Failed, result.NotSyncable, result.Cleaned)

	c.logger.Info().
		Int("pulled", result.Pulled).
		Int("synced", result.Synced).
		Int("failed", result.Failed).
		Int("not_syncable", result.NotSyncable).
		Int("remaining", result.RemainingPending).
		Msg("sync cycle finished")

	return result, nil
}

// pull refreshes the local mirror from the remote store. Each entity type is
// wrapped independently: one type failing does not abort the others.
func (c *Coordinator) pull(ctx context.Context, result *Result) {
	pulls := []struct {
		name string
		fn   func(context.Context) (int, error)
	}{
		{"users", c.pullUsers},
		{"products", c.pullProducts},
		{"inventory_items", c.pullInventoryItems},
	}

	for _, p := range pulls {
		if ctx.Err() != nil {
			return
		}
		n, err := p.fn(ctx)
		result.Pulled += n
		if err != nil {
			result.PullErrors++
			c.logger.Error().Err(err).Str("entity", p.name).Msg("pull failed")
			continue
		}
		c.logger.Debug().Str("entity", p.name).Int("rows", n).Msg("pulled")
	}
}

func (c *Coordinator) pullUsers(ctx context.Context) (int, error) {
	users, err := c.remote.GetAllUsers(ctx)
	if err != nil {
		return 0, err
	}
	for i, u := range users {
		if err := c.store.SaveUser(u); err != nil {
			return i, err
		}
	}
	return len(users), nil
}

func (c *Coordinator) pullProducts(ctx context.Context) (int, error) {
	products, err := c.remote.GetAllProducts(ctx)
	if err != nil {
		return 0, err
	}
	for i, p := range products {
		if err := c.store.SaveProduct(p); err != nil {
			return i, err
		}
	}
	return len(products), nil
}

func (c *Coordinator) pullInventoryItems(ctx context.Context) (int, error) {
	items, err := c.remote.GetAllInventoryItems(ctx)
	if err != nil {
		return 0, err
	}
	for i, item := range items {
		if err := c.store.SaveInventoryItem(item); err != nil {
			return i, err
		}
	}
	return len(items), nil
}

// push replays pending operations in FIFO order. Each entry is marked synced
// immediately after its remote write succeeds, before moving on; an
// interruption between the write and the mark means the entry replays next
// cycle, so every apply routine is idempotent. A failing entry never blocks
// the rest of the queue.
func (c *Coordinator) push(ctx context.Context, result *Result) {
	pending, err := c.log.GetPending()
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to read pending operations")
		result.Failed++
		return
	}

	total := len(pending)
	for _, op := range pending {
		if ctx.Err() != nil {
			return
		}

		err := c.apply(ctx, op)
		switch {
		case err == nil:
			if err := c.log.MarkSynced(op.ID); err != nil {
				c.logger.Error().Err(err).Str("op", op.ID).Msg("failed to mark operation synced")
				result.Failed++
				continue
			}
			result.Synced++

		case errors.Is(err, ErrNotSyncable):
			result.NotSyncable++
			c.logger.Warn().
				Str("op", op.ID).
				Str("table", op.Table.String()).
				Msg("operation awaits manual reconciliation")

		default:
			result.Failed++
			c.logger.Error().Err(err).
				Str("op", op.ID).
				Str("table", op.Table.String()).
				Str("kind", string(op.Kind)).
				Msg("push failed, will retry next cycle")
		}

		processed := result.Synced + result.Failed + result.NotSyncable
		c.emit(StatusUpdate{
			Progress: float64(processed) / float64(total) * 100,
			Synced:   result.Synced,
			Total:    total,
			Message:  fmt.Sprintf("pushed %d/%d", processed, total),
		})
	}
}

// apply dispatches one pending operation to its type-specific remote write.
// Dispatch is on the closed EntityTable enum; tables with no apply routine
// return ErrNotSyncable and stay pending.
func (c *Coordinator) apply(ctx context.Context, op *models.PendingOperation) error {
	switch op.Table {
	case models.TableInventoryItems:
		var item models.InventoryItem
		if err := json.Unmarshal(op.Payload, &item); err != nil {
			return fmt.Errorf("corrupt payload for operation %s: %w", op.ID, err)
		}
		if op.Kind == models.OpInsert {
			return c.remote.SaveInventoryItem(ctx, &item)
		}
		// Absolute overwrite: the payload quantity is already adjusted.
		// Re-applying the same value on replay is a no-op remotely.
		return c.remote.UpdateInventoryQuantity(ctx, item.ID, item.CurrentQuantity)

	case models.TableProducts:
		var p models.Product
		if err := json.Unmarshal(op.Payload, &p); err != nil {
			return fmt.Errorf("corrupt payload for operation %s: %w", op.ID, err)
		}
		return c.remote.SaveProduct(ctx, &p)

	case models.TableActivityLog:
		var entry models.ActivityLog
		if err := json.Unmarshal(op.Payload, &entry); err != nil {
			return fmt.Errorf("corrupt payload for operation %s: %w", op.ID, err)
		}
		return c.remote.AppendActivity(ctx, &entry)

	case models.TableUsers, models.TableTransactions,
		models.TableProductIngredients, models.TableProductAddons:
		// No remote apply routine defined; left pending for manual
		// reconciliation rather than silently dropped.
		return ErrNotSyncable

	default:
		return fmt.Errorf("operation %s: unknown entity table: %w", op.ID, ErrNotSyncable)
	}
}

func (c *Coordinator) emit(u StatusUpdate) {
	if c.OnStatus != nil {
		c.OnStatus(u)
	}
}

// Run consumes connectivity transitions and triggers a cycle on every
// offline-to-online edge, plus a periodic cycle while connected. Spurious
// repeated "connected" signals are absorbed by the single-flight guard and
// by the monitor's edge suppression.
func (c *Coordinator) Run(ctx context.Context) {
	transitions := c.monitor.Subscribe()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		ticker := time.NewTicker(c.cfg.SyncInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-c.stopCh:
				return

			case connected := <-transitions:
				if !connected {
					continue
				}
				c.trigger(ctx, "reconnect")

			case <-ticker.C:
				if !c.monitor.IsConnected() {
					continue
				}
				c.trigger(ctx, "periodic")
			}
		}
	}()
}

// Stop halts the Run loop and waits for it to exit.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.wg.Wait()
}

func (c *Coordinator) trigger(ctx context.Context, reason string) {
	_, err := c.Sync(ctx)
	if err != nil && !errors.Is(err, ErrSyncInProgress) {
		c.logger.Warn().Err(err).Str("reason", reason).Msg("sync trigger failed")
	}
}
