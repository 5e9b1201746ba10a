package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dnugroho/possync/internal/models"
)

func TestGetAllInventoryItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/inventory", r.URL.Path)
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		json.NewEncoder(w).Encode([]*models.InventoryItem{
			{ID: "item-1", Name: "Coffee Beans", Unit: "kg", CurrentQuantity: 12},
		})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "secret", zerolog.Nop())
	items, err := c.GetAllInventoryItems(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "item-1", items[0].ID)
	assert.Equal(t, 12.0, items[0].CurrentQuantity)
}

func TestUpdateInventoryQuantitySendsAbsoluteValue(t *testing.T) {
	var got map[string]float64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/inventory/item-42/quantity", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", zerolog.Nop())
	require.NoError(t, c.UpdateInventoryQuantity(context.Background(), "item-42", 7))
	assert.Equal(t, 7.0, got["current_quantity"])
}

func TestSaveProductNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", zerolog.Nop())
	err := c.SaveProduct(context.Background(), &models.Product{ID: "p1", SKU: "SKU1", Name: "Latte"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", zerolog.Nop())
	assert.NoError(t, c.Ping(context.Background()))

	srv.Close()
	assert.Error(t, c.Ping(context.Background()))
}

func TestAppendActivity(t *testing.T) {
	var got models.ActivityLog
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/activity", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", zerolog.Nop())
	err := c.AppendActivity(context.Background(), &models.ActivityLog{
		ID: "a1", Action: "inventory_deduct", Detail: "item-42 -> 7",
	})
	require.NoError(t, err)
	assert.Equal(t, "inventory_deduct", got.Action)
}
