package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/dnugroho/possync/internal/models"
)

// DefaultRequestTimeout bounds a single remote call.
const DefaultRequestTimeout = 10 * time.Second

// HTTPClient implements Client over a JSON/HTTP backend exposing per-entity
// collection endpoints.
type HTTPClient struct {
	baseURL string
	token   string
	http    *http.Client
	logger  zerolog.Logger
}

// NewHTTPClient creates an HTTPClient for the given base URL. token may be
// empty for unauthenticated backends.
func NewHTTPClient(baseURL, token string, logger zerolog.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: DefaultRequestTimeout},
		logger:  logger.With().Str("component", "remote").Logger(),
	}
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("remote %s %s: status %d: %s", method, path, resp.StatusCode, data)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// GetAllUsers fetches every user from the remote store.
func (c *HTTPClient) GetAllUsers(ctx context.Context) ([]*models.User, error) {
	var users []*models.User
	if err := c.do(ctx, http.MethodGet, "/users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// GetAllProducts fetches every product from the remote store.
func (c *HTTPClient) GetAllProducts(ctx context.Context) ([]*models.Product, error) {
	var products []*models.Product
	if err := c.do(ctx, http.MethodGet, "/products", nil, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// GetAllInventoryItems fetches every inventory item from the remote store.
func (c *HTTPClient) GetAllInventoryItems(ctx context.Context) ([]*models.InventoryItem, error) {
	var items []*models.InventoryItem
	if err := c.do(ctx, http.MethodGet, "/inventory", nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// GetInventoryItemByID fetches a single inventory item.
func (c *HTTPClient) GetInventoryItemByID(ctx context.Context, id string) (*models.InventoryItem, error) {
	var item models.InventoryItem
	if err := c.do(ctx, http.MethodGet, "/inventory/"+url.PathEscape(id), nil, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// SaveUser inserts or updates a user remotely.
func (c *HTTPClient) SaveUser(ctx context.Context, u *models.User) error {
	return c.do(ctx, http.MethodPut, "/users/"+url.PathEscape(u.ID), u, nil)
}

// SaveProduct inserts or updates a product remotely.
func (c *HTTPClient) SaveProduct(ctx context.Context, p *models.Product) error {
	return c.do(ctx, http.MethodPut, "/products/"+url.PathEscape(p.ID), p, nil)
}

// SaveInventoryItem inserts or updates an inventory item remotely.
func (c *HTTPClient) SaveInventoryItem(ctx context.Context, item *models.InventoryItem) error {
	return c.do(ctx, http.MethodPut, "/inventory/"+url.PathEscape(item.ID), item, nil)
}

// SaveTransaction inserts or updates a transaction (with lines) remotely.
func (c *HTTPClient) SaveTransaction(ctx context.Context, txn *models.Transaction) error {
	return c.do(ctx, http.MethodPut, "/transactions/"+url.PathEscape(txn.ID), txn, nil)
}

// UpdateInventoryQuantity overwrites the remote quantity with an absolute
// value.
func (c *HTTPClient) UpdateInventoryQuantity(ctx context.Context, id string, absoluteQuantity float64) error {
	body := map[string]float64{"current_quantity": absoluteQuantity}
	return c.do(ctx, http.MethodPut, "/inventory/"+url.PathEscape(id)+"/quantity", body, nil)
}

// AppendActivity appends an audit entry to the remote activity log.
func (c *HTTPClient) AppendActivity(ctx context.Context, entry *models.ActivityLog) error {
	return c.do(ctx, http.MethodPost, "/activity", entry, nil)
}

// Ping verifies the remote store is reachable and responding.
func (c *HTTPClient) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}
