package db

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dnugroho/possync/internal/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store provides CRUD operations for all mirrored entities.
//
// The store assumes a single local writer; callers are serialized through the
// single database connection configured in Open. Storage errors propagate to
// the caller unchanged; the store performs no retry.
type Store struct {
	db *sql.DB

	// Prepared statement cache for frequently used queries.
	// Statements are prepared on first use and reused afterwards.
	stmtCache sync.Map // map[string]*sql.Stmt
}

// NewStore creates a new Store on an initialized database.
func NewStore(db *DB) *Store {
	return &Store{db: db.DB}
}

// prepare gets or creates a prepared statement from the cache.
func (s *Store) prepare(query string) (*sql.Stmt, error) {
	if stmt, ok := s.stmtCache.Load(query); ok {
		return stmt.(*sql.Stmt), nil
	}

	stmt, err := s.db.Prepare(query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}

	actual, loaded := s.stmtCache.LoadOrStore(query, stmt)
	if loaded {
		// Another goroutine already prepared this, close our duplicate
		stmt.Close()
		return actual.(*sql.Stmt), nil
	}

	return stmt, nil
}

// Close closes all cached prepared statements.
func (s *Store) Close() error {
	var firstErr error
	s.stmtCache.Range(func(key, value interface{}) bool {
		stmt := value.(*sql.Stmt)
		if err := stmt.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		return true
	})
	return firstErr
}

func mapNoRows(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// =====================================================
// User Operations
// =====================================================

// SaveUser inserts or replaces a user by primary key.
func (s *Store) SaveUser(u *models.User) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.CreatedAt == 0 {
		u.CreatedAt = time.Now().Unix()
	}
	u.UpdatedAt = time.Now().Unix()

	query := `
	INSERT OR REPLACE INTO users (id, username, full_name, role, is_active, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query, u.ID, u.Username, u.FullName, u.Role, u.IsActive,
		u.CreatedAt, u.UpdatedAt)
	return err
}

// GetUser retrieves a user by ID.
func (s *Store) GetUser(id string) (*models.User, error) {
	query := `
	SELECT id, username, full_name, role, is_active, created_at, updated_at
	FROM users WHERE id = ?
	`
	stmt, err := s.prepare(query)
	if err != nil {
		return nil, err
	}

	var u models.User
	err = stmt.QueryRow(id).Scan(&u.ID, &u.Username, &u.FullName, &u.Role,
		&u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, mapNoRows(err)
	}
	return &u, nil
}

// GetUserByUsername retrieves a user by unique username.
func (s *Store) GetUserByUsername(username string) (*models.User, error) {
	query := `
	SELECT id, username, full_name, role, is_active, created_at, updated_at
	FROM users WHERE username = ?
	`
	stmt, err := s.prepare(query)
	if err != nil {
		return nil, err
	}

	var u models.User
	err = stmt.QueryRow(username).Scan(&u.ID, &u.Username, &u.FullName, &u.Role,
		&u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, mapNoRows(err)
	}
	return &u, nil
}

// GetAllUsers returns all mirrored users.
func (s *Store) GetAllUsers() ([]*models.User, error) {
	query := `
	SELECT id, username, full_name, role, is_active, created_at, updated_at
	FROM users ORDER BY username
	`
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.FullName, &u.Role,
			&u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}

// =====================================================
// Product Operations
// =====================================================

// SaveProduct inserts or replaces a product by primary key.
func (s *Store) SaveProduct(p *models.Product) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt == 0 {
		p.CreatedAt = time.Now().Unix()
	}
	p.UpdatedAt = time.Now().Unix()

	query := `
	INSERT OR REPLACE INTO products (id, sku, name, category, price, is_active, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query, p.ID, p.SKU, p.Name, p.Category, p.Price,
		p.IsActive, p.CreatedAt, p.UpdatedAt)
	return err
}

// GetProduct retrieves a product by ID.
func (s *Store) GetProduct(id string) (*models.Product, error) {
	query := `
	SELECT id, sku, name, category, price, is_active, created_at, updated_at
	FROM products WHERE id = ?
	`
	stmt, err := s.prepare(query)
	if err != nil {
		return nil, err
	}

	var p models.Product
	err = stmt.QueryRow(id).Scan(&p.ID, &p.SKU, &p.Name, &p.Category, &p.Price,
		&p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, mapNoRows(err)
	}
	return &p, nil
}

// GetProductBySKU retrieves a product by unique SKU.
func (s *Store) GetProductBySKU(sku string) (*models.Product, error) {
	query := `
	SELECT id, sku, name, category, price, is_active, created_at, updated_at
	FROM products WHERE sku = ?
	`
	stmt, err := s.prepare(query)
	if err != nil {
		return nil, err
	}

	var p models.Product
	err = stmt.QueryRow(sku).Scan(&p.ID, &p.SKU, &p.Name, &p.Category, &p.Price,
		&p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, mapNoRows(err)
	}
	return &p, nil
}

// GetAllProducts returns all mirrored products.
func (s *Store) GetAllProducts() ([]*models.Product, error) {
	query := `
	SELECT id, sku, name, category, price, is_active, created_at, updated_at
	FROM products ORDER BY name
	`
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []*models.Product
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.Category, &p.Price,
			&p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		products = append(products, &p)
	}
	return products, rows.Err()
}

// =====================================================
// Inventory Operations
// =====================================================

// SaveInventoryItem inserts or replaces an inventory item by primary key.
func (s *Store) SaveInventoryItem(item *models.InventoryItem) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	item.UpdatedAt = time.Now().Unix()

	query := `
	INSERT OR REPLACE INTO inventory_items (id, name, unit, current_quantity, min_threshold, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query, item.ID, item.Name, item.Unit,
		item.CurrentQuantity, item.MinThreshold, item.UpdatedAt)
	return err
}

// GetInventoryItem retrieves an inventory item by ID.
func (s *Store) GetInventoryItem(id string) (*models.InventoryItem, error) {
	query := `
	SELECT id, name, unit, current_quantity, min_threshold, updated_at
	FROM inventory_items WHERE id = ?
	`
	stmt, err := s.prepare(query)
	if err != nil {
		return nil, err
	}

	var item models.InventoryItem
	err = stmt.QueryRow(id).Scan(&item.ID, &item.Name, &item.Unit,
		&item.CurrentQuantity, &item.MinThreshold, &item.UpdatedAt)
	if err != nil {
		return nil, mapNoRows(err)
	}
	return &item, nil
}

// GetAllInventoryItems returns all mirrored inventory items.
func (s *Store) GetAllInventoryItems() ([]*models.InventoryItem, error) {
	query := `
	SELECT id, name, unit, current_quantity, min_threshold, updated_at
	FROM inventory_items ORDER BY name
	`
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*models.InventoryItem
	for rows.Next() {
		var item models.InventoryItem
		if err := rows.Scan(&item.ID, &item.Name, &item.Unit,
			&item.CurrentQuantity, &item.MinThreshold, &item.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, &item)
	}
	return items, rows.Err()
}

// UpdateInventoryQuantity overwrites an item's quantity with an absolute
// value. The value must be the final, already-adjusted quantity; the store
// never applies deltas.
func (s *Store) UpdateInventoryQuantity(id string, absoluteQuantity float64) error {
	query := `UPDATE inventory_items SET current_quantity = ?, updated_at = ? WHERE id = ?`
	stmt, err := s.prepare(query)
	if err != nil {
		return err
	}

	res, err := stmt.Exec(absoluteQuantity, time.Now().Unix(), id)
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

// =====================================================
// Transaction Operations
// =====================================================

// SaveTransaction inserts or replaces a transaction together with its line
// items in a single database transaction.
func (s *Store) SaveTransaction(txn *models.Transaction) error {
	if txn.ID == "" {
		txn.ID = uuid.New().String()
	}
	if txn.CreatedAt == 0 {
		txn.CreatedAt = time.Now().Unix()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
	INSERT OR REPLACE INTO transactions (id, receipt_no, user_id, total, paid_amount, change_amount, status, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		txn.ID, txn.ReceiptNo, txn.UserID, txn.Total, txn.PaidAmount,
		txn.ChangeAmount, txn.Status, txn.CreatedAt)
	if err != nil {
		return err
	}

	// Replace line items wholesale so re-saving the same transaction is safe
	if _, err := tx.Exec(`DELETE FROM transaction_lines WHERE transaction_id = ?`, txn.ID); err != nil {
		return err
	}

	for i := range txn.Lines {
		line := &txn.Lines[i]
		if line.ID == "" {
			line.ID = uuid.New().String()
		}
		line.TransactionID = txn.ID

		_, err := tx.Exec(`
		INSERT INTO transaction_lines (id, transaction_id, product_id, quantity, unit_price, subtotal)
		VALUES (?, ?, ?, ?, ?, ?)`,
			line.ID, line.TransactionID, line.ProductID, line.Quantity,
			line.UnitPrice, line.Subtotal)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetTransaction retrieves a transaction and its line items by ID.
func (s *Store) GetTransaction(id string) (*models.Transaction, error) {
	query := `
	SELECT id, receipt_no, user_id, total, paid_amount, change_amount, status, created_at
	FROM transactions WHERE id = ?
	`
	stmt, err := s.prepare(query)
	if err != nil {
		return nil, err
	}

	var txn models.Transaction
	err = stmt.QueryRow(id).Scan(&txn.ID, &txn.ReceiptNo, &txn.UserID,
		&txn.Total, &txn.PaidAmount, &txn.ChangeAmount, &txn.Status, &txn.CreatedAt)
	if err != nil {
		return nil, mapNoRows(err)
	}

	rows, err := s.db.Query(`
	SELECT id, transaction_id, product_id, quantity, unit_price, subtotal
	FROM transaction_lines WHERE transaction_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var line models.TransactionLine
		if err := rows.Scan(&line.ID, &line.TransactionID, &line.ProductID,
			&line.Quantity, &line.UnitPrice, &line.Subtotal); err != nil {
			return nil, err
		}
		txn.Lines = append(txn.Lines, line)
	}
	return &txn, rows.Err()
}

// GetAllTransactions returns all mirrored transaction headers (no lines).
func (s *Store) GetAllTransactions() ([]*models.Transaction, error) {
	query := `
	SELECT id, receipt_no, user_id, total, paid_amount, change_amount, status, created_at
	FROM transactions ORDER BY created_at DESC
	`
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txns []*models.Transaction
	for rows.Next() {
		var txn models.Transaction
		if err := rows.Scan(&txn.ID, &txn.ReceiptNo, &txn.UserID, &txn.Total,
			&txn.PaidAmount, &txn.ChangeAmount, &txn.Status, &txn.CreatedAt); err != nil {
			return nil, err
		}
		txns = append(txns, &txn)
	}
	return txns, rows.Err()
}

// =====================================================
// Ingredient / Addon Link Operations
// =====================================================

// SaveProductIngredient inserts or replaces a product-ingredient link.
func (s *Store) SaveProductIngredient(link *models.ProductIngredient) error {
	if link.ID == "" {
		link.ID = uuid.New().String()
	}

	query := `
	INSERT OR REPLACE INTO product_ingredients (id, product_id, inventory_item_id, quantity_used)
	VALUES (?, ?, ?, ?)
	`
	_, err := s.db.Exec(query, link.ID, link.ProductID, link.InventoryItemID, link.QuantityUsed)
	return err
}

// GetIngredientsForProduct returns the ingredient links for a product.
func (s *Store) GetIngredientsForProduct(productID string) ([]*models.ProductIngredient, error) {
	query := `
	SELECT id, product_id, inventory_item_id, quantity_used
	FROM product_ingredients WHERE product_id = ?
	`
	rows, err := s.db.Query(query, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []*models.ProductIngredient
	for rows.Next() {
		var link models.ProductIngredient
		if err := rows.Scan(&link.ID, &link.ProductID, &link.InventoryItemID,
			&link.QuantityUsed); err != nil {
			return nil, err
		}
		links = append(links, &link)
	}
	return links, rows.Err()
}

// SaveProductAddon inserts or replaces a product addon.
func (s *Store) SaveProductAddon(addon *models.ProductAddon) error {
	if addon.ID == "" {
		addon.ID = uuid.New().String()
	}

	query := `
	INSERT OR REPLACE INTO product_addons (id, product_id, name, price)
	VALUES (?, ?, ?, ?)
	`
	_, err := s.db.Exec(query, addon.ID, addon.ProductID, addon.Name, addon.Price)
	return err
}

// GetAddonsForProduct returns the addons for a product.
func (s *Store) GetAddonsForProduct(productID string) ([]*models.ProductAddon, error) {
	query := `
	SELECT id, product_id, name, price
	FROM product_addons WHERE product_id = ?
	`
	rows, err := s.db.Query(query, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var addons []*models.ProductAddon
	for rows.Next() {
		var addon models.ProductAddon
		if err := rows.Scan(&addon.ID, &addon.ProductID, &addon.Name, &addon.Price); err != nil {
			return nil, err
		}
		addons = append(addons, &addon)
	}
	return addons, rows.Err()
}

// =====================================================
// Activity Log Operations
// =====================================================

// SaveActivityLog appends an audit entry to the local activity log.
func (s *Store) SaveActivityLog(entry *models.ActivityLog) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt == 0 {
		entry.CreatedAt = time.Now().Unix()
	}

	query := `
	INSERT OR REPLACE INTO activity_log (id, user_id, action, detail, created_at)
	VALUES (?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query, entry.ID, entry.UserID, entry.Action,
		entry.Detail, entry.CreatedAt)
	return err
}

// GetRecentActivity returns the most recent audit entries, newest first.
func (s *Store) GetRecentActivity(limit int) ([]*models.ActivityLog, error) {
	query := `
	SELECT id, user_id, action, detail, created_at
	FROM activity_log ORDER BY created_at DESC LIMIT ?
	`
	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.ActivityLog
	for rows.Next() {
		var entry models.ActivityLog
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.Action,
			&entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}
