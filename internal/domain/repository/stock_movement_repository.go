package repository

import (
	"time"

	"github.com/jhoicas/Kardex-api/internal/domain/entity"
)

// StockMovementRepository define el puerto de persistencia para movimientos
// de stock. Create/Update/Delete se invocan siempre dentro de la misma
// transacción que la reconciliación de saldos.
type StockMovementRepository interface {
	Create(movement *entity.StockMovement) error
	// GetByIDForOwner devuelve nil, nil si el movimiento no existe o
	// pertenece a otro usuario (no se distingue hacia el caller).
	GetByIDForOwner(id, userID string) (*entity.StockMovement, error)
	Update(movement *entity.StockMovement) error
	Delete(id string) error
	// ListByOwner lista los movimientos del usuario, opcionalmente acotados
	// por un intervalo cerrado sobre created_at, del más reciente al más antiguo.
	ListByOwner(userID string, from, to *time.Time, limit, offset int) ([]*entity.StockMovement, error)
}
