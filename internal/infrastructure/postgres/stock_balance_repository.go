package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/Kardex-api/internal/domain/entity"
	"github.com/jhoicas/Kardex-api/internal/domain/repository"
)

var _ repository.StockBalanceRepository = (*StockBalanceRepo)(nil)

// StockBalanceRepo implementación de StockBalanceRepository sobre PostgreSQL
// (usable con pool o tx).
type StockBalanceRepo struct {
	q Querier
}

// NewStockBalanceRepository construye el adaptador de saldos. Pasar pool o tx (Querier).
func NewStockBalanceRepository(q Querier) *StockBalanceRepo {
	return &StockBalanceRepo{q: q}
}

// Get obtiene el saldo de un producto en una bodega. Devuelve nil, nil si el
// par no tiene fila (saldo 0).
func (r *StockBalanceRepo) Get(productID, warehouseID string) (*entity.StockBalance, error) {
	query := `
		SELECT product_id, warehouse_id, quantity, updated_at
		FROM stock_balances WHERE product_id = $1 AND warehouse_id = $2`
	var b entity.StockBalance
	err := r.q.QueryRow(context.Background(), query, productID, warehouseID).Scan(
		&b.ProductID, &b.WarehouseID, &b.Quantity, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get stock balance: %w", err)
	}
	return &b, nil
}

// EnsureRow materializa la fila del par con saldo 0 si no existe todavía.
// Dos transacciones concurrentes sobre un par nuevo se serializan aquí: la
// segunda espera el commit de la primera y el GetForUpdate posterior ya
// encuentra una fila que bloquear.
func (r *StockBalanceRepo) EnsureRow(productID, warehouseID string) error {
	query := `
		INSERT INTO stock_balances (product_id, warehouse_id, quantity, updated_at)
		VALUES ($1, $2, 0, now())
		ON CONFLICT (product_id, warehouse_id) DO NOTHING`
	_, err := r.q.Exec(context.Background(), query, productID, warehouseID)
	if err != nil {
		return fmt.Errorf("ensure stock balance row: %w", err)
	}
	return nil
}

// GetForUpdate obtiene el saldo y bloquea la fila (SELECT FOR UPDATE) dentro
// de la transacción en curso. Devuelve nil, nil si el par no tiene fila.
func (r *StockBalanceRepo) GetForUpdate(productID, warehouseID string) (*entity.StockBalance, error) {
	query := `
		SELECT product_id, warehouse_id, quantity, updated_at
		FROM stock_balances WHERE product_id = $1 AND warehouse_id = $2
		FOR UPDATE`
	var b entity.StockBalance
	err := r.q.QueryRow(context.Background(), query, productID, warehouseID).Scan(
		&b.ProductID, &b.WarehouseID, &b.Quantity, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get stock balance for update: %w", err)
	}
	return &b, nil
}

// Upsert inserta o actualiza el saldo del par (producto, bodega).
func (r *StockBalanceRepo) Upsert(balance *entity.StockBalance) error {
	query := `
		INSERT INTO stock_balances (product_id, warehouse_id, quantity, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (product_id, warehouse_id)
		DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = EXCLUDED.updated_at`
	_, err := r.q.Exec(context.Background(), query,
		balance.ProductID, balance.WarehouseID, balance.Quantity, balance.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert stock balance: %w", err)
	}
	return nil
}

// ListByOwner devuelve los saldos del usuario, del más recientemente
// actualizado al más antiguo. Producto y bodega deben ser ambos del usuario.
func (r *StockBalanceRepo) ListByOwner(userID string) ([]*entity.StockBalance, error) {
	query := `
		SELECT b.product_id, b.warehouse_id, b.quantity, b.updated_at
		FROM stock_balances b
		JOIN products p ON p.id = b.product_id
		JOIN warehouses w ON w.id = b.warehouse_id
		WHERE p.user_id = $1 AND w.user_id = $1
		ORDER BY b.updated_at DESC`
	rows, err := r.q.Query(context.Background(), query, userID)
	if err != nil {
		return nil, fmt.Errorf("list stock balances: %w", err)
	}
	defer rows.Close()

	var list []*entity.StockBalance
	for rows.Next() {
		var b entity.StockBalance
		if err := rows.Scan(&b.ProductID, &b.WarehouseID, &b.Quantity, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan stock balance: %w", err)
		}
		list = append(list, &b)
	}
	return list, rows.Err()
}

// ListBelowMinStock devuelve los productos del usuario cuyo stock actual
// (en la bodega indicada) está por debajo de su mínimo.
// Si warehouseID es vacío, considera el stock agregado de todas las bodegas.
// Ordena por déficit descendente (mayor quiebre primero).
func (r *StockBalanceRepo) ListBelowMinStock(ctx context.Context, userID, warehouseID string) ([]repository.LowStockItem, error) {
	var (
		query string
		args  []any
	)

	if warehouseID != "" {
		query = `
			SELECT
				p.id,
				p.sku,
				p.name,
				COALESCE(b.quantity, 0) AS current_stock,
				p.min_stock
			FROM products p
			LEFT JOIN stock_balances b ON b.product_id = p.id AND b.warehouse_id = $2
			WHERE p.user_id   = $1
			  AND p.min_stock > 0
			  AND COALESCE(b.quantity, 0) < p.min_stock
			ORDER BY (p.min_stock - COALESCE(b.quantity, 0)) DESC`
		args = []any{userID, warehouseID}
	} else {
		query = `
			SELECT
				p.id,
				p.sku,
				p.name,
				COALESCE(SUM(b.quantity), 0) AS current_stock,
				p.min_stock
			FROM products p
			LEFT JOIN stock_balances b ON b.product_id = p.id
			WHERE p.user_id   = $1
			  AND p.min_stock > 0
			GROUP BY p.id, p.sku, p.name, p.min_stock
			HAVING COALESCE(SUM(b.quantity), 0) < p.min_stock
			ORDER BY (p.min_stock - COALESCE(SUM(b.quantity), 0)) DESC`
		args = []any{userID}
	}

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products below min stock: %w", err)
	}
	defer rows.Close()

	var items []repository.LowStockItem
	for rows.Next() {
		var item repository.LowStockItem
		if err := rows.Scan(
			&item.ProductID, &item.SKU, &item.ProductName,
			&item.CurrentStock, &item.MinStock,
		); err != nil {
			return nil, fmt.Errorf("scan low stock item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
