// Package remote provides the gateway to the authoritative backend store.
//
// Only the CRUD contract matters to the sync engine; the HTTP implementation
// here is one possible transport behind the Client interface.
package remote

import (
	"context"

	"github.com/dnugroho/possync/internal/models"
)

// Client is the abstracted CRUD gateway to the remote authoritative store.
//
// Save calls are insert-or-update by primary key. UpdateInventoryQuantity
// overwrites the remote quantity with an absolute value; implementations must
// never interpret it as a delta. All methods must be safe to re-invoke with
// the same arguments, since interrupted sync cycles replay operations.
type Client interface {
	GetAllUsers(ctx context.Context) ([]*models.User, error)
	GetAllProducts(ctx context.Context) ([]*models.Product, error)
	GetAllInventoryItems(ctx context.Context) ([]*models.InventoryItem, error)
	GetInventoryItemByID(ctx context.Context, id string) (*models.InventoryItem, error)

	SaveUser(ctx context.Context, u *models.User) error
	SaveProduct(ctx context.Context, p *models.Product) error
	SaveInventoryItem(ctx context.Context, item *models.InventoryItem) error
	SaveTransaction(ctx context.Context, txn *models.Transaction) error
	UpdateInventoryQuantity(ctx context.Context, id string, absoluteQuantity float64) error
	AppendActivity(ctx context.Context, entry *models.ActivityLog) error

	// Ping verifies the remote store itself is reachable, beyond generic
	// network availability.
	Ping(ctx context.Context) error
}
