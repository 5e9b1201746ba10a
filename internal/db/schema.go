package db

import "fmt"

// schema holds the CREATE TABLE statements for every mirrored entity plus the
// operation log. All statements use IF NOT EXISTS so Init is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		full_name TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT 'cashier',
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);`,

	`CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		sku TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		price REAL NOT NULL DEFAULT 0,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);`,

	`CREATE TABLE IF NOT EXISTS inventory_items (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		unit TEXT NOT NULL DEFAULT '',
		current_quantity REAL NOT NULL DEFAULT 0,
		min_threshold REAL NOT NULL DEFAULT 0,
		updated_at INTEGER NOT NULL
	);`,

	`CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		receipt_no TEXT NOT NULL,
		user_id TEXT NOT NULL,
		total REAL NOT NULL DEFAULT 0,
		paid_amount REAL NOT NULL DEFAULT 0,
		change_amount REAL NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'completed',
		created_at INTEGER NOT NULL
	);`,

	`CREATE TABLE IF NOT EXISTS transaction_lines (
		id TEXT PRIMARY KEY,
		transaction_id TEXT NOT NULL REFERENCES transactions(id),
		product_id TEXT NOT NULL,
		quantity REAL NOT NULL DEFAULT 0,
		unit_price REAL NOT NULL DEFAULT 0,
		subtotal REAL NOT NULL DEFAULT 0
	);`,

	`CREATE TABLE IF NOT EXISTS product_ingredients (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL,
		inventory_item_id TEXT NOT NULL,
		quantity_used REAL NOT NULL DEFAULT 0,
		UNIQUE(product_id, inventory_item_id)
	);`,

	`CREATE TABLE IF NOT EXISTS product_addons (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL,
		name TEXT NOT NULL,
		price REAL NOT NULL DEFAULT 0
	);`,

	`CREATE TABLE IF NOT EXISTS activity_log (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL DEFAULT '',
		action TEXT NOT NULL,
		detail TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	);`,

	`CREATE TABLE IF NOT EXISTS operation_log (
		id TEXT PRIMARY KEY,
		operation_kind TEXT NOT NULL,
		entity_table TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		synced_at INTEGER,
		is_synced INTEGER NOT NULL DEFAULT 0
	);`,

	`CREATE INDEX IF NOT EXISTS idx_operation_log_pending
		ON operation_log(is_synced, created_at);`,

	`CREATE INDEX IF NOT EXISTS idx_transaction_lines_txn
		ON transaction_lines(transaction_id);`,
}

// Init creates all tables if they do not exist. Safe to call on every start.
func (db *DB) Init() error {
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}
