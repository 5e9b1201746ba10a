// Package models provides data model definitions for the POS sync engine.
package models

// OpKind identifies the kind of a queued mutation.
type OpKind string

const (
	OpInsert OpKind = "insert"
	OpUpdate OpKind = "update"
)

// Valid reports whether k is a known operation kind.
func (k OpKind) Valid() bool {
	return k == OpInsert || k == OpUpdate
}

// EntityTable identifies a logical entity collection. It is a closed set so
// that push dispatch is compiler-checked instead of string-matched.
type EntityTable int

const (
	TableUnknown EntityTable = iota
	TableUsers
	TableProducts
	TableInventoryItems
	TableTransactions
	TableActivityLog
	TableProductIngredients
	TableProductAddons
)

var tableNames = map[EntityTable]string{
	TableUsers:              "users",
	TableProducts:           "products",
	TableInventoryItems:     "inventory_items",
	TableTransactions:       "transactions",
	TableActivityLog:        "activity_log",
	TableProductIngredients: "product_ingredients",
	TableProductAddons:      "product_addons",
}

// String returns the persisted name of the table.
func (t EntityTable) String() string {
	if name, ok := tableNames[t]; ok {
		return name
	}
	return "unknown"
}

// ParseEntityTable resolves a persisted table name back to its enum value.
// Unknown names yield TableUnknown; callers must treat that as a per-entry
// failure, not a crash.
func ParseEntityTable(name string) EntityTable {
	for t, n := range tableNames {
		if n == name {
			return t
		}
	}
	return TableUnknown
}
