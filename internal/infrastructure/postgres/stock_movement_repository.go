package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/Kardex-api/internal/domain"
	"github.com/jhoicas/Kardex-api/internal/domain/entity"
	"github.com/jhoicas/Kardex-api/internal/domain/repository"
)

var _ repository.StockMovementRepository = (*StockMovementRepo)(nil)

// StockMovementRepo implementación de StockMovementRepository sobre PostgreSQL
// (usable con pool o tx).
type StockMovementRepo struct {
	q Querier
}

// NewStockMovementRepository construye el adaptador de movimientos. Pasar pool o tx (Querier).
func NewStockMovementRepository(q Querier) *StockMovementRepo {
	return &StockMovementRepo{q: q}
}

const movementColumns = `id, user_id, product_id, type, quantity,
	COALESCE(warehouse_from_id, ''), COALESCE(warehouse_to_id, ''),
	reference, reason, created_at`

// Create persiste un movimiento nuevo.
func (r *StockMovementRepo) Create(movement *entity.StockMovement) error {
	query := `
		INSERT INTO stock_movements (id, user_id, product_id, type, quantity, warehouse_from_id, warehouse_to_id, reference, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8, $9, $10)`
	_, err := r.q.Exec(context.Background(), query,
		movement.ID, movement.UserID, movement.ProductID, movement.Type, movement.Quantity,
		movement.WarehouseFromID, movement.WarehouseToID, movement.Reference, movement.Reason,
		movement.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert stock movement: %w", err)
	}
	return nil
}

// GetByIDForOwner obtiene un movimiento del usuario. Devuelve nil, nil si no
// existe o pertenece a otro usuario.
func (r *StockMovementRepo) GetByIDForOwner(id, userID string) (*entity.StockMovement, error) {
	query := `
		SELECT ` + movementColumns + `
		FROM stock_movements WHERE id = $1 AND user_id = $2`
	var m entity.StockMovement
	err := r.q.QueryRow(context.Background(), query, id, userID).Scan(
		&m.ID, &m.UserID, &m.ProductID, &m.Type, &m.Quantity,
		&m.WarehouseFromID, &m.WarehouseToID, &m.Reference, &m.Reason, &m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get stock movement: %w", err)
	}
	return &m, nil
}

// Update reescribe los campos mutables del movimiento. CreatedAt se conserva.
func (r *StockMovementRepo) Update(movement *entity.StockMovement) error {
	query := `
		UPDATE stock_movements
		SET product_id = $2, type = $3, quantity = $4,
		    warehouse_from_id = NULLIF($5, ''), warehouse_to_id = NULLIF($6, ''),
		    reference = $7, reason = $8
		WHERE id = $1`
	cmd, err := r.q.Exec(context.Background(), query,
		movement.ID, movement.ProductID, movement.Type, movement.Quantity,
		movement.WarehouseFromID, movement.WarehouseToID, movement.Reference, movement.Reason,
	)
	if err != nil {
		return fmt.Errorf("update stock movement: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete elimina un movimiento por ID.
func (r *StockMovementRepo) Delete(id string) error {
	cmd, err := r.q.Exec(context.Background(), `DELETE FROM stock_movements WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete stock movement: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListByOwner lista los movimientos del usuario del más reciente al más
// antiguo, opcionalmente acotados por un intervalo cerrado sobre created_at.
func (r *StockMovementRepo) ListByOwner(userID string, from, to *time.Time, limit, offset int) ([]*entity.StockMovement, error) {
	query := `
		SELECT ` + movementColumns + `
		FROM stock_movements WHERE user_id = $1`
	args := []any{userID}
	if from != nil {
		args = append(args, *from)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if to != nil {
		args = append(args, *to)
		query += fmt.Sprintf(" AND created_at <= $%d", len(args))
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.q.Query(context.Background(), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list stock movements: %w", err)
	}
	defer rows.Close()

	var list []*entity.StockMovement
	for rows.Next() {
		var m entity.StockMovement
		if err := rows.Scan(
			&m.ID, &m.UserID, &m.ProductID, &m.Type, &m.Quantity,
			&m.WarehouseFromID, &m.WarehouseToID, &m.Reference, &m.Reason, &m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan stock movement: %w", err)
		}
		list = append(list, &m)
	}
	return list, rows.Err()
}
