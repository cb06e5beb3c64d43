package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product representa un producto o SKU del catálogo del usuario.
// El stock no vive aquí: se materializa por bodega en StockBalance.
type Product struct {
	ID          string
	UserID      string
	CategoryID  string // vacío si no tiene categoría
	SKU         string // único por usuario
	Name        string
	Description string
	Price       decimal.Decimal // precio de venta
	Cost        decimal.Decimal // costo unitario de referencia
	Unit        string          // un, kg, lt, ...
	MinStock    int64           // umbral para el reporte de stock bajo
	ImageURL    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
