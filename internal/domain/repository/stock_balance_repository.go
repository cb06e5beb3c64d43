package repository

import (
	"context"

	"github.com/jhoicas/Kardex-api/internal/domain/entity"
)

// LowStockItem resultado crudo del repositorio para un producto bajo su mínimo.
type LowStockItem struct {
	ProductID    string
	SKU          string
	ProductName  string
	CurrentStock int64
	MinStock     int64
}

// StockBalanceRepository define el puerto para consultar/actualizar saldos
// por par (producto, bodega). Solo el motor de reconciliación escribe aquí;
// los handlers consumen únicamente las lecturas.
type StockBalanceRepository interface {
	// Get devuelve nil, nil si el par no tiene fila (saldo 0).
	Get(productID, warehouseID string) (*entity.StockBalance, error)
	// EnsureRow materializa la fila del par con saldo 0 si no existe
	// (INSERT ... ON CONFLICT DO NOTHING). FOR UPDATE no bloquea filas
	// inexistentes, así que el motor la crea antes de bloquearla.
	EnsureRow(productID, warehouseID string) error
	// GetForUpdate bloquea la fila del par (SELECT FOR UPDATE) dentro de la
	// transacción en curso. Devuelve nil, nil si el par no tiene fila.
	GetForUpdate(productID, warehouseID string) (*entity.StockBalance, error)
	Upsert(balance *entity.StockBalance) error
	// ListByOwner devuelve los saldos de productos y bodegas del usuario.
	ListByOwner(userID string) ([]*entity.StockBalance, error)
	// ListBelowMinStock devuelve los productos del usuario cuyo stock actual
	// (en la bodega indicada, o agregado si warehouseID es vacío) está por
	// debajo de su min_stock, ordenados por mayor déficit primero.
	ListBelowMinStock(ctx context.Context, userID, warehouseID string) ([]LowStockItem, error)
}
