package stock

import (
	"fmt"
	"sort"
	"time"

	"github.com/jhoicas/Kardex-api/internal/domain"
	"github.com/jhoicas/Kardex-api/internal/domain/entity"
	"github.com/jhoicas/Kardex-api/internal/domain/ledger"
	"github.com/jhoicas/Kardex-api/internal/domain/repository"
)

type pairKey struct {
	productID   string
	warehouseID string
}

type sheetRow struct {
	balance *entity.StockBalance
	dirty   bool
}

// balanceSheet mantiene en memoria las filas de saldo bloqueadas durante un
// comando. Se bloquean todas las filas afectadas al inicio, en orden
// determinista de par, para que dos comandos concurrentes sobre los mismos
// pares se serialicen sin interbloquearse.
type balanceSheet struct {
	repo repository.StockBalanceRepository
	rows map[pairKey]*sheetRow
}

func newBalanceSheet(repo repository.StockBalanceRepository) *balanceSheet {
	return &balanceSheet{repo: repo, rows: make(map[pairKey]*sheetRow)}
}

// lock toma SELECT FOR UPDATE sobre la unión de pares tocados por los deltas,
// ordenada por (product_id, warehouse_id). FOR UPDATE no bloquea una fila que
// no existe, así que cada par se materializa primero con saldo 0: sin eso, el
// primer movimiento de un par corre sin bloqueo y dos comandos concurrentes
// pueden pisarse el saldo.
func (s *balanceSheet) lock(deltaSets ...[]ledger.Delta) error {
	seen := make(map[pairKey]struct{})
	var pairs []pairKey
	for _, deltas := range deltaSets {
		for _, d := range deltas {
			k := pairKey{productID: d.ProductID, warehouseID: d.WarehouseID}
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			pairs = append(pairs, k)
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].productID != pairs[j].productID {
			return pairs[i].productID < pairs[j].productID
		}
		return pairs[i].warehouseID < pairs[j].warehouseID
	})

	for _, k := range pairs {
		if err := s.repo.EnsureRow(k.productID, k.warehouseID); err != nil {
			return err
		}
		b, err := s.repo.GetForUpdate(k.productID, k.warehouseID)
		if err != nil {
			return err
		}
		if b == nil {
			b = &entity.StockBalance{ProductID: k.productID, WarehouseID: k.warehouseID}
		}
		s.rows[k] = &sheetRow{balance: b}
	}
	return nil
}

// apply suma los deltas sobre las filas bloqueadas. Con strict=true un
// resultado negativo rechaza el comando (débito de usuario sin stock); con
// strict=false (revert de historial) el resultado se fija en 0, que es el
// único lugar donde sobrevive el clamp.
func (s *balanceSheet) apply(deltas []ledger.Delta, strict bool) error {
	for _, d := range deltas {
		row, ok := s.rows[pairKey{productID: d.ProductID, warehouseID: d.WarehouseID}]
		if !ok {
			return fmt.Errorf("par (%s, %s) no bloqueado antes de aplicar", d.ProductID, d.WarehouseID)
		}
		next := row.balance.Quantity + d.Quantity
		if next < 0 {
			if strict {
				return domain.ErrInsufficientStock
			}
			next = 0
		}
		row.balance.Quantity = next
		row.dirty = true
	}
	return nil
}

// flush persiste las filas modificadas. La lectura trata la ausencia y el
// saldo 0 igual, así que una fila materializada que terminó en 0 no cambia
// ningún resultado observable.
func (s *balanceSheet) flush(now time.Time) error {
	for _, row := range s.rows {
		if !row.dirty {
			continue
		}
		row.balance.UpdatedAt = now
		if err := s.repo.Upsert(row.balance); err != nil {
			return err
		}
	}
	return nil
}
