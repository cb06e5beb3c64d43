package ledger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Kardex-api/internal/domain"
	"github.com/jhoicas/Kardex-api/internal/domain/entity"
	"github.com/jhoicas/Kardex-api/internal/domain/ledger"
)

func movement(t entity.MovementType, qty int64, from, to string) *entity.StockMovement {
	return &entity.StockMovement{
		ID:              "mov-1",
		UserID:          "user-1",
		ProductID:       "prod-1",
		Type:            t,
		Quantity:        qty,
		WarehouseFromID: from,
		WarehouseToID:   to,
	}
}

func TestDeltas_PorTipo(t *testing.T) {
	cases := []struct {
		name string
		mov  *entity.StockMovement
		want []ledger.Delta
	}{
		{
			name: "IN suma en destino",
			mov:  movement(entity.MovementTypeIN, 10, "", "w1"),
			want: []ledger.Delta{{ProductID: "prod-1", WarehouseID: "w1", Quantity: 10}},
		},
		{
			name: "ADJUST se comporta como IN",
			mov:  movement(entity.MovementTypeADJUST, 3, "", "w1"),
			want: []ledger.Delta{{ProductID: "prod-1", WarehouseID: "w1", Quantity: 3}},
		},
		{
			name: "OUT resta en origen",
			mov:  movement(entity.MovementTypeOUT, 4, "w1", ""),
			want: []ledger.Delta{{ProductID: "prod-1", WarehouseID: "w1", Quantity: -4}},
		},
		{
			name: "TRANSFER resta origen y suma destino",
			mov:  movement(entity.MovementTypeTRANSFER, 6, "w1", "w2"),
			want: []ledger.Delta{
				{ProductID: "prod-1", WarehouseID: "w1", Quantity: -6},
				{ProductID: "prod-1", WarehouseID: "w2", Quantity: 6},
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ledger.Deltas(tc.mov)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDeltas_TipoDesconocido(t *testing.T) {
	_, err := ledger.Deltas(movement("LOST", 1, "w1", "w2"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

// Invert(Deltas(m)) debe ser la negación exacta: la suma de ambos conjuntos
// es cero para cada par, para cualquier tipo de movimiento.
func TestInvert_RoundTrip(t *testing.T) {
	movs := []*entity.StockMovement{
		movement(entity.MovementTypeIN, 10, "", "w1"),
		movement(entity.MovementTypeOUT, 4, "w1", ""),
		movement(entity.MovementTypeTRANSFER, 6, "w1", "w2"),
		movement(entity.MovementTypeADJUST, 2, "", "w2"),
	}
	for _, m := range movs {
		deltas, err := ledger.Deltas(m)
		require.NoError(t, err)
		inverted := ledger.Invert(deltas)
		require.Len(t, inverted, len(deltas))

		net := map[string]int64{}
		for _, d := range deltas {
			net[d.ProductID+"/"+d.WarehouseID] += d.Quantity
		}
		for _, d := range inverted {
			net[d.ProductID+"/"+d.WarehouseID] += d.Quantity
		}
		for pair, sum := range net {
			assert.Zero(t, sum, "el par %s debe quedar neto en cero para %s", pair, m.Type)
		}
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mov     *entity.StockMovement
		wantErr bool
	}{
		{"IN válido", movement(entity.MovementTypeIN, 10, "", "w1"), false},
		{"OUT válido", movement(entity.MovementTypeOUT, 1, "w1", ""), false},
		{"TRANSFER válido", movement(entity.MovementTypeTRANSFER, 5, "w1", "w2"), false},
		{"ADJUST válido", movement(entity.MovementTypeADJUST, 5, "", "w1"), false},
		{"cantidad cero", movement(entity.MovementTypeIN, 0, "", "w1"), true},
		{"cantidad negativa", movement(entity.MovementTypeOUT, -3, "w1", ""), true},
		{"IN sin destino", movement(entity.MovementTypeIN, 1, "", ""), true},
		{"OUT sin origen", movement(entity.MovementTypeOUT, 1, "", "w1"), true},
		{"TRANSFER sin destino", movement(entity.MovementTypeTRANSFER, 1, "w1", ""), true},
		{"TRANSFER origen igual destino", movement(entity.MovementTypeTRANSFER, 1, "w1", "w1"), true},
		{"tipo desconocido", movement("MYSTERY", 1, "w1", "w2"), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ledger.Validate(tc.mov)
			if tc.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidInput)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidate_SinProducto(t *testing.T) {
	m := movement(entity.MovementTypeIN, 1, "", "w1")
	m.ProductID = ""
	assert.ErrorIs(t, ledger.Validate(m), domain.ErrInvalidInput)
}
