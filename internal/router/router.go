// Package router provides the hybrid online/offline routing layer used by
// application logic for every domain mutation and read.
//
// Mutations always land in the local mirror first, so the application stays
// responsive and correct offline. Propagation to the remote store is either
// immediate (connected and the remote write succeeds) or deferred through the
// operation log; the caller never sees a remote failure as an error.
package router

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dnugroho/possync/internal/connectivity"
	"github.com/dnugroho/possync/internal/db"
	"github.com/dnugroho/possync/internal/models"
	"github.com/dnugroho/possync/internal/oplog"
	"github.com/dnugroho/possync/internal/remote"
)

// Router decides per call whether an operation goes online-first or into the
// offline queue.
type Router struct {
	store   *db.Store
	log     *oplog.Log
	remote  remote.Client
	monitor *connectivity.Monitor
	logger  zerolog.Logger
}

// New creates a Router.
func New(store *db.Store, log *oplog.Log, rc remote.Client, monitor *connectivity.Monitor, logger zerolog.Logger) *Router {
	return &Router{
		store:   store,
		log:     log,
		remote:  rc,
		monitor: monitor,
		logger:  logger.With().Str("component", "router").Logger(),
	}
}

// propagate attempts the remote write when connected and falls back to the
// operation log when offline or when the remote write fails. The local state
// is already correct by the time propagate runs; only propagation is at
// stake, so a queue fallback is never an error for the caller.
func (r *Router) propagate(ctx context.Context, kind models.OpKind, table models.EntityTable, entity interface{}, remoteWrite func(context.Context) error) error {
	if r.monitor.IsConnected() {
		err := remoteWrite(ctx)
		if err == nil {
			return nil
		}
		r.logger.Warn().Err(err).
			Str("table", table.String()).
			Msg("remote write failed, queueing for sync")
	}

	payload, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}
	if _, err := r.log.Enqueue(kind, table, payload); err != nil {
		return fmt.Errorf("failed to queue operation: %w", err)
	}
	return nil
}

// SaveTransaction records a sale locally and propagates it.
func (r *Router) SaveTransaction(ctx context.Context, txn *models.Transaction) error {
	if err := r.store.SaveTransaction(txn); err != nil {
		return err
	}
	return r.propagate(ctx, models.OpInsert, models.TableTransactions, txn,
		func(ctx context.Context) error { return r.remote.SaveTransaction(ctx, txn) })
}

// SaveProduct writes a product locally and propagates it.
func (r *Router) SaveProduct(ctx context.Context, p *models.Product) error {
	if err := r.store.SaveProduct(p); err != nil {
		return err
	}
	return r.propagate(ctx, models.OpUpdate, models.TableProducts, p,
		func(ctx context.Context) error { return r.remote.SaveProduct(ctx, p) })
}

// UpdateInventoryQuantity overwrites an item's quantity with an absolute
// value locally, then propagates the absolute value. The sync layer only
// ever carries final quantities, never deltas.
func (r *Router) UpdateInventoryQuantity(ctx context.Context, id string, absoluteQuantity float64) error {
	if err := r.store.UpdateInventoryQuantity(id, absoluteQuantity); err != nil {
		return err
	}

	item, err := r.store.GetInventoryItem(id)
	if err != nil {
		return err
	}

	return r.propagate(ctx, models.OpUpdate, models.TableInventoryItems, item,
		func(ctx context.Context) error {
			return r.remote.UpdateInventoryQuantity(ctx, id, absoluteQuantity)
		})
}

// DeductInventory subtracts amount from the mirrored quantity, flooring at
// zero, and routes the resulting absolute value through
// UpdateInventoryQuantity. Deduction logic lives here, above the sync
// boundary. Returns the new absolute quantity.
func (r *Router) DeductInventory(ctx context.Context, id string, amount float64, userID string) (float64, error) {
	item, err := r.store.GetInventoryItem(id)
	if err != nil {
		return 0, err
	}

	newQuantity := item.CurrentQuantity - amount
	if newQuantity < 0 {
		newQuantity = 0
	}

	if err := r.UpdateInventoryQuantity(ctx, id, newQuantity); err != nil {
		return 0, err
	}

	entry := &models.ActivityLog{
		UserID: userID,
		Action: "inventory_deduct",
		Detail: fmt.Sprintf("%s: %.2f -> %.2f", item.Name, item.CurrentQuantity, newQuantity),
	}
	if err := r.RecordActivity(ctx, entry); err != nil {
		r.logger.Error().Err(err).Str("item", id).Msg("failed to record deduction activity")
	}

	return newQuantity, nil
}

// RecordActivity appends an audit entry locally and propagates it.
func (r *Router) RecordActivity(ctx context.Context, entry *models.ActivityLog) error {
	if err := r.store.SaveActivityLog(entry); err != nil {
		return err
	}
	return r.propagate(ctx, models.OpInsert, models.TableActivityLog, entry,
		func(ctx context.Context) error { return r.remote.AppendActivity(ctx, entry) })
}

// GetAllProducts prefers the remote store when connected, refreshing the
// mirror as a side effect, and falls back to the mirror on any failure or
// when offline.
func (r *Router) GetAllProducts(ctx context.Context) ([]*models.Product, error) {
	if r.monitor.IsConnected() {
		products, err := r.remote.GetAllProducts(ctx)
		if err == nil {
			for _, p := range products {
				if err := r.store.SaveProduct(p); err != nil {
					r.logger.Error().Err(err).Str("product", p.ID).Msg("mirror refresh failed")
				}
			}
			return products, nil
		}
		r.logger.Warn().Err(err).Msg("remote product read failed, serving mirror")
	}
	return r.store.GetAllProducts()
}

// GetAllInventoryItems prefers the remote store when connected, refreshing
// the mirror as a side effect, and falls back to the mirror otherwise.
func (r *Router) GetAllInventoryItems(ctx context.Context) ([]*models.InventoryItem, error) {
	if r.monitor.IsConnected() {
		items, err := r.remote.GetAllInventoryItems(ctx)
		if err == nil {
			for _, item := range items {
				if err := r.store.SaveInventoryItem(item); err != nil {
					r.logger.Error().Err(err).Str("item", item.ID).Msg("mirror refresh failed")
				}
			}
			return items, nil
		}
		r.logger.Warn().Err(err).Msg("remote inventory read failed, serving mirror")
	}
	return r.store.GetAllInventoryItems()
}

// PendingCount reports how many operations await sync, for status display.
func (r *Router) PendingCount() (int, error) {
	return r.log.CountPending()
}
