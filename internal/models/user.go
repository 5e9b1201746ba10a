package models

// User represents a mirrored application user.
type User struct {
	ID        string `db:"id" json:"id"`
	Username  string `db:"username" json:"username"`
	FullName  string `db:"full_name" json:"full_name"`
	Role      string `db:"role" json:"role"` // admin, cashier
	IsActive  bool   `db:"is_active" json:"is_active"`
	CreatedAt int64  `db:"created_at" json:"created_at"`
	UpdatedAt int64  `db:"updated_at" json:"updated_at"`
}

// TableName returns the table name for User.
func (User) TableName() string {
	return TableUsers.String()
}
