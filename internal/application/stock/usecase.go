package stock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/Kardex-api/internal/application/dto"
	"github.com/jhoicas/Kardex-api/internal/domain"
	"github.com/jhoicas/Kardex-api/internal/domain/entity"
	"github.com/jhoicas/Kardex-api/internal/domain/ledger"
	"github.com/jhoicas/Kardex-api/internal/domain/repository"
)

// Intentos máximos ante fallos de serialización antes de devolver ErrConflict.
const maxTxAttempts = 3

// LedgerUseCase es el manejador de comandos de movimientos de stock: crear,
// editar, borrar y consultar, manteniendo los saldos consistentes. Cada
// comando de escritura corre como una transacción: revert del efecto viejo,
// mutación del registro y apply del efecto nuevo se confirman juntos.
type LedgerUseCase struct {
	txRunner      TxRunner
	movementRepo  repository.StockMovementRepository
	balanceRepo   repository.StockBalanceRepository
	productRepo   repository.ProductRepository
	warehouseRepo repository.WarehouseRepository
}

// NewLedgerUseCase construye el caso de uso. movementRepo y balanceRepo son
// las instancias atadas al pool (solo lecturas); las escrituras pasan por
// txRunner con repos atados a la transacción.
func NewLedgerUseCase(
	txRunner TxRunner,
	movementRepo repository.StockMovementRepository,
	balanceRepo repository.StockBalanceRepository,
	productRepo repository.ProductRepository,
	warehouseRepo repository.WarehouseRepository,
) *LedgerUseCase {
	return &LedgerUseCase{
		txRunner:      txRunner,
		movementRepo:  movementRepo,
		balanceRepo:   balanceRepo,
		productRepo:   productRepo,
		warehouseRepo: warehouseRepo,
	}
}

// runTx ejecuta fn en transacción, reintentando ante fallos de serialización
// o deadlock (la BD aborta una de las transacciones en conflicto). Tras
// agotar los intentos devuelve ErrConflict al caller.
func (uc *LedgerUseCase) runTx(ctx context.Context, fn func(
	movRepo repository.StockMovementRepository,
	balanceRepo repository.StockBalanceRepository,
) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = uc.txRunner.Run(ctx, fn)
		if err == nil || !errors.Is(err, domain.ErrSerialization) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", domain.ErrConflict, err)
}

// checkProductOwned valida que el producto exista y sea del usuario.
func (uc *LedgerUseCase) checkProductOwned(productID, userID string) error {
	product, err := uc.productRepo.GetByID(productID)
	if err != nil {
		return err
	}
	if product == nil || product.UserID != userID {
		return domain.ErrNotFound
	}
	return nil
}

// checkWarehousesOwned valida que las bodegas referenciadas por el movimiento
// existan y sean del usuario.
func (uc *LedgerUseCase) checkWarehousesOwned(m *entity.StockMovement, userID string) error {
	for _, id := range []string{m.WarehouseFromID, m.WarehouseToID} {
		if id == "" {
			continue
		}
		wh, err := uc.warehouseRepo.GetByID(id)
		if err != nil {
			return err
		}
		if wh == nil || wh.UserID != userID {
			return domain.ErrNotFound
		}
	}
	return nil
}

// CreateMovement valida el movimiento, lo persiste y aplica sus deltas de
// saldo en una sola transacción. Un débito (OUT/TRANSFER) por encima del
// stock disponible se rechaza con ErrInsufficientStock.
func (uc *LedgerUseCase) CreateMovement(ctx context.Context, userID string, in dto.CreateMovementRequest) (*dto.MovementResponse, error) {
	m := &entity.StockMovement{
		ID:              uuid.New().String(),
		UserID:          userID,
		ProductID:       in.ProductID,
		Type:            entity.MovementType(in.Type),
		Quantity:        in.Quantity,
		WarehouseFromID: in.WarehouseFromID,
		WarehouseToID:   in.WarehouseToID,
		Reference:       in.Reference,
		Reason:          in.Reason,
		CreatedAt:       time.Now(),
	}
	if err := ledger.Validate(m); err != nil {
		return nil, err
	}
	if err := uc.checkProductOwned(m.ProductID, userID); err != nil {
		return nil, err
	}
	if err := uc.checkWarehousesOwned(m, userID); err != nil {
		return nil, err
	}
	deltas, err := ledger.Deltas(m)
	if err != nil {
		return nil, err
	}

	err = uc.runTx(ctx, func(
		movRepo repository.StockMovementRepository,
		balanceRepo repository.StockBalanceRepository,
	) error {
		sheet := newBalanceSheet(balanceRepo)
		if err := sheet.lock(deltas); err != nil {
			return err
		}
		if err := sheet.apply(deltas, true); err != nil {
			return err
		}
		if err := sheet.flush(m.CreatedAt); err != nil {
			return err
		}
		return movRepo.Create(m)
	})
	if err != nil {
		return nil, err
	}
	return toMovementResponse(m), nil
}

// UpdateMovement edita un movimiento existente con el patrón revert-old /
// apply-new: dentro de una misma transacción se deshace el efecto del
// registro actual, se fusionan los campos recibidos (tipo, cantidad y bodegas
// pueden cambiar todos) y se aplica el efecto nuevo. El revert fija en 0 un
// saldo que quedaría negativo; el apply nuevo sí rechaza stock insuficiente.
func (uc *LedgerUseCase) UpdateMovement(ctx context.Context, userID, id string, in dto.UpdateMovementRequest) (*dto.MovementResponse, error) {
	var updated entity.StockMovement

	err := uc.runTx(ctx, func(
		movRepo repository.StockMovementRepository,
		balanceRepo repository.StockBalanceRepository,
	) error {
		existing, err := movRepo.GetByIDForOwner(id, userID)
		if err != nil {
			return err
		}
		if existing == nil {
			return domain.ErrNotFound
		}
		oldDeltas, err := ledger.Deltas(existing)
		if err != nil {
			return err
		}

		updated = *existing
		mergeMovement(&updated, in)
		if err := ledger.Validate(&updated); err != nil {
			return err
		}
		if err := uc.checkProductOwned(updated.ProductID, userID); err != nil {
			return err
		}
		if err := uc.checkWarehousesOwned(&updated, userID); err != nil {
			return err
		}
		newDeltas, err := ledger.Deltas(&updated)
		if err != nil {
			return err
		}

		now := time.Now()
		sheet := newBalanceSheet(balanceRepo)
		if err := sheet.lock(oldDeltas, newDeltas); err != nil {
			return err
		}
		if err := sheet.apply(ledger.Invert(oldDeltas), false); err != nil {
			return err
		}
		if err := sheet.apply(newDeltas, true); err != nil {
			return err
		}
		if err := sheet.flush(now); err != nil {
			return err
		}
		return movRepo.Update(&updated)
	})
	if err != nil {
		return nil, err
	}
	return toMovementResponse(&updated), nil
}

// DeleteMovement deshace el efecto del movimiento sobre los saldos y elimina
// el registro, en una sola transacción. Borrar un movimiento ya borrado
// devuelve ErrNotFound sin tocar ningún saldo.
func (uc *LedgerUseCase) DeleteMovement(ctx context.Context, userID, id string) error {
	return uc.runTx(ctx, func(
		movRepo repository.StockMovementRepository,
		balanceRepo repository.StockBalanceRepository,
	) error {
		existing, err := movRepo.GetByIDForOwner(id, userID)
		if err != nil {
			return err
		}
		if existing == nil {
			return domain.ErrNotFound
		}
		deltas, err := ledger.Deltas(existing)
		if err != nil {
			return err
		}
		sheet := newBalanceSheet(balanceRepo)
		if err := sheet.lock(deltas); err != nil {
			return err
		}
		if err := sheet.apply(ledger.Invert(deltas), false); err != nil {
			return err
		}
		if err := sheet.flush(time.Now()); err != nil {
			return err
		}
		return movRepo.Delete(id)
	})
}

// GetBalances devuelve los saldos de los productos y bodegas del usuario.
// Lectura directa, sin efectos de reconciliación.
func (uc *LedgerUseCase) GetBalances(ctx context.Context, userID string) ([]dto.BalanceResponse, error) {
	balances, err := uc.balanceRepo.ListByOwner(userID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.BalanceResponse, 0, len(balances))
	for _, b := range balances {
		out = append(out, dto.BalanceResponse{
			ProductID:   b.ProductID,
			WarehouseID: b.WarehouseID,
			Quantity:    b.Quantity,
			UpdatedAt:   b.UpdatedAt,
		})
	}
	return out, nil
}

// GetMovements lista los movimientos del usuario, opcionalmente acotados por
// un intervalo cerrado [from, to] sobre created_at, más recientes primero.
func (uc *LedgerUseCase) GetMovements(ctx context.Context, userID string, from, to *time.Time, limit, offset int) ([]dto.MovementResponse, error) {
	movements, err := uc.movementRepo.ListByOwner(userID, from, to, limit, offset)
	if err != nil {
		return nil, err
	}
	out := make([]dto.MovementResponse, 0, len(movements))
	for _, m := range movements {
		out = append(out, *toMovementResponse(m))
	}
	return out, nil
}

// GetLowStock devuelve los productos del usuario por debajo de su stock
// mínimo, en la bodega indicada o agregado global si warehouseID es vacío.
func (uc *LedgerUseCase) GetLowStock(ctx context.Context, userID, warehouseID string) ([]dto.LowStockItemDTO, error) {
	items, err := uc.balanceRepo.ListBelowMinStock(ctx, userID, warehouseID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.LowStockItemDTO, 0, len(items))
	for _, it := range items {
		out = append(out, dto.LowStockItemDTO{
			ProductID:    it.ProductID,
			SKU:          it.SKU,
			ProductName:  it.ProductName,
			CurrentStock: it.CurrentStock,
			MinStock:     it.MinStock,
			Deficit:      it.MinStock - it.CurrentStock,
		})
	}
	return out, nil
}

// mergeMovement fusiona los campos no nil del request sobre el registro.
func mergeMovement(m *entity.StockMovement, in dto.UpdateMovementRequest) {
	if in.ProductID != nil {
		m.ProductID = *in.ProductID
	}
	if in.Type != nil {
		m.Type = entity.MovementType(*in.Type)
	}
	if in.Quantity != nil {
		m.Quantity = *in.Quantity
	}
	if in.WarehouseFromID != nil {
		m.WarehouseFromID = *in.WarehouseFromID
	}
	if in.WarehouseToID != nil {
		m.WarehouseToID = *in.WarehouseToID
	}
	if in.Reference != nil {
		m.Reference = *in.Reference
	}
	if in.Reason != nil {
		m.Reason = *in.Reason
	}
}

func toMovementResponse(m *entity.StockMovement) *dto.MovementResponse {
	return &dto.MovementResponse{
		ID:              m.ID,
		ProductID:       m.ProductID,
		Type:            string(m.Type),
		Quantity:        m.Quantity,
		WarehouseFromID: m.WarehouseFromID,
		WarehouseToID:   m.WarehouseToID,
		Reference:       m.Reference,
		Reason:          m.Reason,
		CreatedAt:       m.CreatedAt,
	}
}
