package entity

import "time"

// Warehouse representa una bodega o local donde se almacena stock.
type Warehouse struct {
	ID        string
	UserID    string
	Name      string
	Address   string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
