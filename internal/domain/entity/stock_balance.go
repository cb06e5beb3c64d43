package entity

import "time"

// StockBalance representa el saldo actual de un producto en una bodega,
// derivado de los movimientos. Clave compuesta (ProductID, WarehouseID);
// la ausencia de fila se lee igual que saldo 0. La fila se materializa con el
// primer comando que toca el par y, una vez creada, se conserva aunque quede
// en 0.
type StockBalance struct {
	ProductID   string
	WarehouseID string
	Quantity    int64 // invariante: nunca negativo
	UpdatedAt   time.Time
}
