package models

// Transaction represents a mirrored sale transaction header.
type Transaction struct {
	ID           string  `db:"id" json:"id"`
	ReceiptNo    string  `db:"receipt_no" json:"receipt_no"`
	UserID       string  `db:"user_id" json:"user_id"`
	Total        float64 `db:"total" json:"total"`
	PaidAmount   float64 `db:"paid_amount" json:"paid_amount"`
	ChangeAmount float64 `db:"change_amount" json:"change_amount"`
	Status       string  `db:"status" json:"status"` // completed, voided
	CreatedAt    int64   `db:"created_at" json:"created_at"`

	Lines []TransactionLine `db:"-" json:"lines,omitempty"`
}

// TableName returns the table name for Transaction.
func (Transaction) TableName() string {
	return TableTransactions.String()
}

// TransactionLine represents one sold item within a transaction.
type TransactionLine struct {
	ID            string  `db:"id" json:"id"`
	TransactionID string  `db:"transaction_id" json:"transaction_id"`
	ProductID     string  `db:"product_id" json:"product_id"`
	Quantity      float64 `db:"quantity" json:"quantity"`
	UnitPrice     float64 `db:"unit_price" json:"unit_price"`
	Subtotal      float64 `db:"subtotal" json:"subtotal"`
}

// TableName returns the table name for TransactionLine.
func (TransactionLine) TableName() string {
	return "transaction_lines"
}
