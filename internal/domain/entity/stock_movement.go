package entity

import "time"

// MovementType es el tipo cerrado de movimiento de stock. El motor de
// reconciliación hace switch exhaustivo sobre estos valores; un tipo
// desconocido nunca pasa silenciosamente (ver domain/ledger).
type MovementType string

// Tipos de movimiento de stock.
const (
	MovementTypeIN       MovementType = "IN"       // entrada a bodega destino
	MovementTypeOUT      MovementType = "OUT"      // salida desde bodega origen
	MovementTypeTRANSFER MovementType = "TRANSFER" // traslado origen -> destino
	MovementTypeADJUST   MovementType = "ADJUST"   // corrección, suma en destino
)

// Valid reporta si el tipo pertenece al conjunto cerrado.
func (t MovementType) Valid() bool {
	switch t {
	case MovementTypeIN, MovementTypeOUT, MovementTypeTRANSFER, MovementTypeADJUST:
		return true
	}
	return false
}

// StockMovement representa un evento discreto que altera el stock de un
// producto en una o dos bodegas. El registro es del usuario que lo creó
// (UserID) y puede editarse o borrarse; cada mutación dispara la
// reconciliación de saldos correspondiente.
type StockMovement struct {
	ID              string
	UserID          string // dueño del registro, para filtrado/autorización
	ProductID       string
	Type            MovementType
	Quantity        int64  // siempre > 0; el signo lo aporta el tipo
	WarehouseFromID string // requerido para OUT y TRANSFER
	WarehouseToID   string // requerido para IN, ADJUST y TRANSFER
	Reference       string // factura, orden, nota de ajuste, etc.
	Reason          string
	CreatedAt       time.Time
}
