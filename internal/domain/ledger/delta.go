// Package ledger contiene el motor de reconciliación de saldos: funciones
// puras que traducen un movimiento de stock en deltas firmados por par
// (producto, bodega). No toca persistencia; eso es del caso de uso.
package ledger

import (
	"fmt"

	"github.com/jhoicas/Kardex-api/internal/domain"
	"github.com/jhoicas/Kardex-api/internal/domain/entity"
)

// Delta es el efecto firmado de un movimiento sobre un par (producto, bodega).
type Delta struct {
	ProductID   string
	WarehouseID string
	Quantity    int64 // positivo suma, negativo resta
}

// Deltas traduce un movimiento en sus deltas de saldo según el tipo:
//
//	IN, ADJUST  -> +Quantity en (producto, bodega destino)
//	OUT         -> -Quantity en (producto, bodega origen)
//	TRANSFER    -> -Quantity en origen y +Quantity en destino
//
// El switch es exhaustivo: un tipo fuera del conjunto cerrado devuelve error.
func Deltas(m *entity.StockMovement) ([]Delta, error) {
	switch m.Type {
	case entity.MovementTypeIN, entity.MovementTypeADJUST:
		return []Delta{{ProductID: m.ProductID, WarehouseID: m.WarehouseToID, Quantity: m.Quantity}}, nil
	case entity.MovementTypeOUT:
		return []Delta{{ProductID: m.ProductID, WarehouseID: m.WarehouseFromID, Quantity: -m.Quantity}}, nil
	case entity.MovementTypeTRANSFER:
		return []Delta{
			{ProductID: m.ProductID, WarehouseID: m.WarehouseFromID, Quantity: -m.Quantity},
			{ProductID: m.ProductID, WarehouseID: m.WarehouseToID, Quantity: m.Quantity},
		}, nil
	default:
		return nil, fmt.Errorf("%w: tipo de movimiento desconocido %q", domain.ErrInvalidInput, m.Type)
	}
}

// Invert devuelve la negación exacta de los deltas: aplicar Invert(Deltas(m))
// deshace el efecto de m sobre los saldos.
func Invert(deltas []Delta) []Delta {
	inverted := make([]Delta, len(deltas))
	for i, d := range deltas {
		inverted[i] = Delta{ProductID: d.ProductID, WarehouseID: d.WarehouseID, Quantity: -d.Quantity}
	}
	return inverted
}

// Validate verifica cantidad y bodegas requeridas por el tipo de movimiento.
func Validate(m *entity.StockMovement) error {
	if m.ProductID == "" {
		return fmt.Errorf("%w: product_id es requerido", domain.ErrInvalidInput)
	}
	if m.Quantity <= 0 {
		return fmt.Errorf("%w: quantity debe ser mayor que cero", domain.ErrInvalidInput)
	}
	switch m.Type {
	case entity.MovementTypeIN, entity.MovementTypeADJUST:
		if m.WarehouseToID == "" {
			return fmt.Errorf("%w: %s requiere warehouse_to_id", domain.ErrInvalidInput, m.Type)
		}
	case entity.MovementTypeOUT:
		if m.WarehouseFromID == "" {
			return fmt.Errorf("%w: OUT requiere warehouse_from_id", domain.ErrInvalidInput)
		}
	case entity.MovementTypeTRANSFER:
		if m.WarehouseFromID == "" || m.WarehouseToID == "" {
			return fmt.Errorf("%w: TRANSFER requiere warehouse_from_id y warehouse_to_id", domain.ErrInvalidInput)
		}
		if m.WarehouseFromID == m.WarehouseToID {
			return fmt.Errorf("%w: TRANSFER con bodega origen igual a destino", domain.ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: tipo de movimiento desconocido %q", domain.ErrInvalidInput, m.Type)
	}
	return nil
}
