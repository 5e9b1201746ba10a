package models

// Product represents a mirrored sellable product.
type Product struct {
	ID        string  `db:"id" json:"id"`
	SKU       string  `db:"sku" json:"sku"`
	Name      string  `db:"name" json:"name"`
	Category  string  `db:"category" json:"category"`
	Price     float64 `db:"price" json:"price"`
	IsActive  bool    `db:"is_active" json:"is_active"`
	CreatedAt int64   `db:"created_at" json:"created_at"`
	UpdatedAt int64   `db:"updated_at" json:"updated_at"`
}

// TableName returns the table name for Product.
func (Product) TableName() string {
	return TableProducts.String()
}

// ProductIngredient links a product to the inventory item it consumes.
// Local-relevant only; never pushed to the remote store.
type ProductIngredient struct {
	ID              string  `db:"id" json:"id"`
	ProductID       string  `db:"product_id" json:"product_id"`
	InventoryItemID string  `db:"inventory_item_id" json:"inventory_item_id"`
	QuantityUsed    float64 `db:"quantity_used" json:"quantity_used"`
}

// TableName returns the table name for ProductIngredient.
func (ProductIngredient) TableName() string {
	return TableProductIngredients.String()
}

// ProductAddon is an optional extra sold with a product. Local-relevant only.
type ProductAddon struct {
	ID        string  `db:"id" json:"id"`
	ProductID string  `db:"product_id" json:"product_id"`
	Name      string  `db:"name" json:"name"`
	Price     float64 `db:"price" json:"price"`
}

// TableName returns the table name for ProductAddon.
func (ProductAddon) TableName() string {
	return TableProductAddons.String()
}
