package dto

import "time"

// CreateMovementRequest body para POST /api/stock/movements.
type CreateMovementRequest struct {
	ProductID       string `json:"product_id" validate:"required,uuid"`
	Type            string `json:"type" validate:"required,oneof=IN OUT TRANSFER ADJUST"`
	Quantity        int64  `json:"quantity" validate:"required,gt=0"`
	WarehouseFromID string `json:"warehouse_from_id,omitempty"`
	WarehouseToID   string `json:"warehouse_to_id,omitempty"`
	Reference       string `json:"reference,omitempty"`
	Reason          string `json:"reason,omitempty"`
}

// UpdateMovementRequest body para PUT /api/stock/movements/{id}.
// Campos en nil no se tocan; tipo, cantidad y bodegas pueden cambiar todos.
type UpdateMovementRequest struct {
	ProductID       *string `json:"product_id"`
	Type            *string `json:"type"`
	Quantity        *int64  `json:"quantity"`
	WarehouseFromID *string `json:"warehouse_from_id"`
	WarehouseToID   *string `json:"warehouse_to_id"`
	Reference       *string `json:"reference"`
	Reason          *string `json:"reason"`
}

// MovementResponse salida de un movimiento de stock.
type MovementResponse struct {
	ID              string    `json:"id"`
	ProductID       string    `json:"product_id"`
	Type            string    `json:"type"`
	Quantity        int64     `json:"quantity"`
	WarehouseFromID string    `json:"warehouse_from_id,omitempty"`
	WarehouseToID   string    `json:"warehouse_to_id,omitempty"`
	Reference       string    `json:"reference,omitempty"`
	Reason          string    `json:"reason,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// MovementListResponse lista paginada de movimientos (más recientes primero).
type MovementListResponse struct {
	Items []MovementResponse `json:"items"`
	Page  PageResponse       `json:"page"`
}

// BalanceResponse saldo de un producto en una bodega.
type BalanceResponse struct {
	ProductID   string    `json:"product_id"`
	WarehouseID string    `json:"warehouse_id"`
	Quantity    int64     `json:"quantity"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// LowStockItemDTO producto por debajo de su stock mínimo.
type LowStockItemDTO struct {
	ProductID    string `json:"product_id"`
	SKU          string `json:"sku"`
	ProductName  string `json:"product_name"`
	CurrentStock int64  `json:"current_stock"`
	MinStock     int64  `json:"min_stock"`
	Deficit      int64  `json:"deficit"`
}
