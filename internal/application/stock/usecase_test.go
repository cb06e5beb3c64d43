package stock_test

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Kardex-api/internal/application/dto"
	"github.com/jhoicas/Kardex-api/internal/application/stock"
	"github.com/jhoicas/Kardex-api/internal/domain"
	"github.com/jhoicas/Kardex-api/internal/domain/entity"
	"github.com/jhoicas/Kardex-api/internal/domain/ledger"
	"github.com/jhoicas/Kardex-api/internal/domain/repository"
)

// ──────────────────────────────────────────────────────────────────────────────
// Fakes en memoria (mismos puertos que los adaptadores postgres)
// ──────────────────────────────────────────────────────────────────────────────

type balKey struct{ productID, warehouseID string }

type memMovementRepo struct {
	items map[string]*entity.StockMovement
}

func newMemMovementRepo() *memMovementRepo {
	return &memMovementRepo{items: make(map[string]*entity.StockMovement)}
}

func (r *memMovementRepo) Create(m *entity.StockMovement) error {
	cp := *m
	r.items[m.ID] = &cp
	return nil
}

func (r *memMovementRepo) GetByIDForOwner(id, userID string) (*entity.StockMovement, error) {
	m, ok := r.items[id]
	if !ok || m.UserID != userID {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (r *memMovementRepo) Update(m *entity.StockMovement) error {
	cp := *m
	r.items[m.ID] = &cp
	return nil
}

func (r *memMovementRepo) Delete(id string) error {
	delete(r.items, id)
	return nil
}

func (r *memMovementRepo) ListByOwner(userID string, from, to *time.Time, limit, offset int) ([]*entity.StockMovement, error) {
	var list []*entity.StockMovement
	for _, m := range r.items {
		if m.UserID != userID {
			continue
		}
		if from != nil && m.CreatedAt.Before(*from) {
			continue
		}
		if to != nil && m.CreatedAt.After(*to) {
			continue
		}
		cp := *m
		list = append(list, &cp)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	if offset >= len(list) {
		return nil, nil
	}
	list = list[offset:]
	if limit > 0 && limit < len(list) {
		list = list[:limit]
	}
	return list, nil
}

type memProductRepo struct {
	items map[string]*entity.Product
}

func newMemProductRepo() *memProductRepo { return &memProductRepo{items: make(map[string]*entity.Product)} }

func (r *memProductRepo) Create(p *entity.Product) error { r.items[p.ID] = p; return nil }
func (r *memProductRepo) GetByID(id string) (*entity.Product, error) {
	p, ok := r.items[id]
	if !ok {
		return nil, nil
	}
	return p, nil
}
func (r *memProductRepo) GetByOwnerAndSKU(userID, sku string) (*entity.Product, error) {
	for _, p := range r.items {
		if p.UserID == userID && p.SKU == sku {
			return p, nil
		}
	}
	return nil, nil
}
func (r *memProductRepo) Update(p *entity.Product) error { r.items[p.ID] = p; return nil }
func (r *memProductRepo) ListByOwner(userID string, limit, offset int) ([]*entity.Product, error) {
	var list []*entity.Product
	for _, p := range r.items {
		if p.UserID == userID {
			list = append(list, p)
		}
	}
	return list, nil
}
func (r *memProductRepo) Delete(id string) error { delete(r.items, id); return nil }

type memWarehouseRepo struct {
	items map[string]*entity.Warehouse
}

func newMemWarehouseRepo() *memWarehouseRepo {
	return &memWarehouseRepo{items: make(map[string]*entity.Warehouse)}
}

func (r *memWarehouseRepo) Create(w *entity.Warehouse) error { r.items[w.ID] = w; return nil }
func (r *memWarehouseRepo) GetByID(id string) (*entity.Warehouse, error) {
	w, ok := r.items[id]
	if !ok {
		return nil, nil
	}
	return w, nil
}
func (r *memWarehouseRepo) Update(w *entity.Warehouse) error { r.items[w.ID] = w; return nil }
func (r *memWarehouseRepo) ListByOwner(userID string, limit, offset int) ([]*entity.Warehouse, error) {
	var list []*entity.Warehouse
	for _, w := range r.items {
		if w.UserID == userID {
			list = append(list, w)
		}
	}
	return list, nil
}
func (r *memWarehouseRepo) Delete(id string) error { delete(r.items, id); return nil }

type memBalanceRepo struct {
	items      map[balKey]*entity.StockBalance
	products   *memProductRepo
	warehouses *memWarehouseRepo
}

func newMemBalanceRepo(products *memProductRepo, warehouses *memWarehouseRepo) *memBalanceRepo {
	return &memBalanceRepo{
		items:      make(map[balKey]*entity.StockBalance),
		products:   products,
		warehouses: warehouses,
	}
}

func (r *memBalanceRepo) Get(productID, warehouseID string) (*entity.StockBalance, error) {
	b, ok := r.items[balKey{productID, warehouseID}]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (r *memBalanceRepo) EnsureRow(productID, warehouseID string) error {
	k := balKey{productID, warehouseID}
	if _, ok := r.items[k]; !ok {
		r.items[k] = &entity.StockBalance{ProductID: productID, WarehouseID: warehouseID}
	}
	return nil
}

func (r *memBalanceRepo) GetForUpdate(productID, warehouseID string) (*entity.StockBalance, error) {
	return r.Get(productID, warehouseID)
}

func (r *memBalanceRepo) Upsert(b *entity.StockBalance) error {
	cp := *b
	r.items[balKey{b.ProductID, b.WarehouseID}] = &cp
	return nil
}

func (r *memBalanceRepo) ListByOwner(userID string) ([]*entity.StockBalance, error) {
	var list []*entity.StockBalance
	for _, b := range r.items {
		p, _ := r.products.GetByID(b.ProductID)
		w, _ := r.warehouses.GetByID(b.WarehouseID)
		if p == nil || w == nil || p.UserID != userID || w.UserID != userID {
			continue
		}
		cp := *b
		list = append(list, &cp)
	}
	return list, nil
}

func (r *memBalanceRepo) ListBelowMinStock(ctx context.Context, userID, warehouseID string) ([]repository.LowStockItem, error) {
	totals := make(map[string]int64)
	for k, b := range r.items {
		if warehouseID != "" && k.warehouseID != warehouseID {
			continue
		}
		totals[k.productID] += b.Quantity
	}
	var out []repository.LowStockItem
	for _, p := range r.products.items {
		if p.UserID != userID || p.MinStock <= 0 {
			continue
		}
		current := totals[p.ID]
		if current < p.MinStock {
			out = append(out, repository.LowStockItem{
				ProductID:    p.ID,
				SKU:          p.SKU,
				ProductName:  p.Name,
				CurrentStock: current,
				MinStock:     p.MinStock,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].MinStock-out[i].CurrentStock > out[j].MinStock-out[j].CurrentStock
	})
	return out, nil
}

// memTxRunner serializa los comandos con un mutex, emulando el aislamiento de
// la transacción (los fakes no necesitan rollback: el use case no escribe
// nada hasta que todos los applies pasaron).
type memTxRunner struct {
	mu        sync.Mutex
	movements *memMovementRepo
	balances  *memBalanceRepo
}

func (r *memTxRunner) Run(ctx context.Context, fn func(
	movRepo repository.StockMovementRepository,
	balanceRepo repository.StockBalanceRepository,
) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(r.movements, r.balances)
}

// flakyTxRunner falla con ErrSerialization un número de veces antes de delegar.
type flakyTxRunner struct {
	delegate stock.TxRunner
	failures int
	calls    int
}

func (r *flakyTxRunner) Run(ctx context.Context, fn func(
	movRepo repository.StockMovementRepository,
	balanceRepo repository.StockBalanceRepository,
) error) error {
	r.calls++
	if r.calls <= r.failures {
		return domain.ErrSerialization
	}
	return r.delegate.Run(ctx, fn)
}

// ──────────────────────────────────────────────────────────────────────────────
// Fixture
// ──────────────────────────────────────────────────────────────────────────────

const (
	ownerID  = "00000000-0000-0000-0000-0000000000aa"
	otherID  = "00000000-0000-0000-0000-0000000000bb"
	prodP1   = "00000000-0000-0000-0000-0000000000p1"
	whW1     = "00000000-0000-0000-0000-0000000000w1"
	whW2     = "00000000-0000-0000-0000-0000000000w2"
)

type fixture struct {
	uc         *stock.LedgerUseCase
	movements  *memMovementRepo
	balances   *memBalanceRepo
	products   *memProductRepo
	warehouses *memWarehouseRepo
	runner     *memTxRunner
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	products := newMemProductRepo()
	warehouses := newMemWarehouseRepo()
	movements := newMemMovementRepo()
	balances := newMemBalanceRepo(products, warehouses)
	runner := &memTxRunner{movements: movements, balances: balances}

	require.NoError(t, products.Create(&entity.Product{
		ID: prodP1, UserID: ownerID, SKU: "SKU-P1", Name: "Producto 1",
		Price: decimal.NewFromInt(100), MinStock: 5,
	}))
	require.NoError(t, warehouses.Create(&entity.Warehouse{ID: whW1, UserID: ownerID, Name: "Bodega 1", IsActive: true}))
	require.NoError(t, warehouses.Create(&entity.Warehouse{ID: whW2, UserID: ownerID, Name: "Bodega 2", IsActive: true}))

	uc := stock.NewLedgerUseCase(runner, movements, balances, products, warehouses)
	return &fixture{uc: uc, movements: movements, balances: balances, products: products, warehouses: warehouses, runner: runner}
}

func (f *fixture) balance(t *testing.T, productID, warehouseID string) int64 {
	t.Helper()
	b, err := f.balances.Get(productID, warehouseID)
	require.NoError(t, err)
	if b == nil {
		return 0
	}
	return b.Quantity
}

func (f *fixture) createIN(t *testing.T, qty int64) *dto.MovementResponse {
	t.Helper()
	out, err := f.uc.CreateMovement(context.Background(), ownerID, dto.CreateMovementRequest{
		ProductID: prodP1, Type: "IN", Quantity: qty, WarehouseToID: whW1,
	})
	require.NoError(t, err)
	return out
}

// ──────────────────────────────────────────────────────────────────────────────
// Escenarios del ledger
// ──────────────────────────────────────────────────────────────────────────────

// Escenario A: IN de 10 a W1 deja saldo (P1, W1) = 10.
func TestCreateMovement_IN(t *testing.T) {
	f := newFixture(t)
	out := f.createIN(t, 10)

	assert.Equal(t, "IN", out.Type)
	assert.NotEmpty(t, out.ID)
	assert.EqualValues(t, 10, f.balance(t, prodP1, whW1))
}

// Escenario B: tras IN 10, un OUT de 4 deja saldo 6.
func TestCreateMovement_OUT(t *testing.T) {
	f := newFixture(t)
	f.createIN(t, 10)

	_, err := f.uc.CreateMovement(context.Background(), ownerID, dto.CreateMovementRequest{
		ProductID: prodP1, Type: "OUT", Quantity: 4, WarehouseFromID: whW1,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 6, f.balance(t, prodP1, whW1))
}

// Escenario C: TRANSFER de 6 de W1 a W2 deja W1 en 0 y W2 en 6, atómico.
func TestCreateMovement_TRANSFER(t *testing.T) {
	f := newFixture(t)
	f.createIN(t, 10)
	_, err := f.uc.CreateMovement(context.Background(), ownerID, dto.CreateMovementRequest{
		ProductID: prodP1, Type: "OUT", Quantity: 4, WarehouseFromID: whW1,
	})
	require.NoError(t, err)

	_, err = f.uc.CreateMovement(context.Background(), ownerID, dto.CreateMovementRequest{
		ProductID: prodP1, Type: "TRANSFER", Quantity: 6, WarehouseFromID: whW1, WarehouseToID: whW2,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 0, f.balance(t, prodP1, whW1))
	assert.EqualValues(t, 6, f.balance(t, prodP1, whW2))
}

func TestCreateMovement_ADJUST(t *testing.T) {
	f := newFixture(t)
	_, err := f.uc.CreateMovement(context.Background(), ownerID, dto.CreateMovementRequest{
		ProductID: prodP1, Type: "ADJUST", Quantity: 7, WarehouseToID: whW1,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 7, f.balance(t, prodP1, whW1))
}

// Escenario D: editar el IN de 10 a cantidad 3 deja el saldo en 3
// (revert de 10, apply de 3, misma transacción).
func TestUpdateMovement_CambioDeCantidad(t *testing.T) {
	f := newFixture(t)
	created := f.createIN(t, 10)

	qty := int64(3)
	out, err := f.uc.UpdateMovement(context.Background(), ownerID, created.ID, dto.UpdateMovementRequest{
		Quantity: &qty,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 3, out.Quantity)
	assert.EqualValues(t, 3, f.balance(t, prodP1, whW1))
}

// La edición puede cambiar tipo y bodegas a la vez: un IN a W1 editado a
// TRANSFER W1->W2 debe fallar por stock (el revert deja W1 en 0) — y un IN
// editado a IN sobre otra bodega mueve el saldo completo.
func TestUpdateMovement_CambioDeTipoYBodega(t *testing.T) {
	f := newFixture(t)
	created := f.createIN(t, 10)

	toW2 := whW2
	out, err := f.uc.UpdateMovement(context.Background(), ownerID, created.ID, dto.UpdateMovementRequest{
		WarehouseToID: &toW2,
	})
	require.NoError(t, err)
	assert.Equal(t, whW2, out.WarehouseToID)
	assert.EqualValues(t, 0, f.balance(t, prodP1, whW1))
	assert.EqualValues(t, 10, f.balance(t, prodP1, whW2))
}

func TestUpdateMovement_NoEncontrado(t *testing.T) {
	f := newFixture(t)
	qty := int64(1)
	_, err := f.uc.UpdateMovement(context.Background(), ownerID, uuid.New().String(), dto.UpdateMovementRequest{Quantity: &qty})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// Un movimiento de otro usuario no es visible ni editable: ErrNotFound.
func TestUpdateMovement_DeOtroUsuario(t *testing.T) {
	f := newFixture(t)
	created := f.createIN(t, 10)

	qty := int64(1)
	_, err := f.uc.UpdateMovement(context.Background(), otherID, created.ID, dto.UpdateMovementRequest{Quantity: &qty})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.EqualValues(t, 10, f.balance(t, prodP1, whW1))
}

// Escenario E (rediseño): un OUT por encima del stock disponible se rechaza
// con stock insuficiente y no muta ningún saldo, en lugar de clampear.
func TestCreateMovement_OUTSinStock(t *testing.T) {
	f := newFixture(t)
	_, err := f.uc.CreateMovement(context.Background(), ownerID, dto.CreateMovementRequest{
		ProductID: prodP1, Type: "OUT", Quantity: 100, WarehouseFromID: whW1,
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.EqualValues(t, 0, f.balance(t, prodP1, whW1))
	assert.Empty(t, f.movements.items, "un comando rechazado no debe persistir el movimiento")
}

func TestCreateMovement_TRANSFERSinStock(t *testing.T) {
	f := newFixture(t)
	f.createIN(t, 5)
	_, err := f.uc.CreateMovement(context.Background(), ownerID, dto.CreateMovementRequest{
		ProductID: prodP1, Type: "TRANSFER", Quantity: 6, WarehouseFromID: whW1, WarehouseToID: whW2,
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.EqualValues(t, 5, f.balance(t, prodP1, whW1))
	assert.EqualValues(t, 0, f.balance(t, prodP1, whW2))
}

// Escenario F: borrar el único IN devuelve el saldo a 0 (la fila puede quedar
// en 0 o ausente; ambas se leen como 0).
func TestDeleteMovement_RevierteSaldo(t *testing.T) {
	f := newFixture(t)
	created := f.createIN(t, 10)

	require.NoError(t, f.uc.DeleteMovement(context.Background(), ownerID, created.ID))
	assert.EqualValues(t, 0, f.balance(t, prodP1, whW1))
	assert.Empty(t, f.movements.items)
}

// Idempotencia del borrado: repetir el delete devuelve ErrNotFound sin tocar saldos.
func TestDeleteMovement_Idempotente(t *testing.T) {
	f := newFixture(t)
	f.createIN(t, 10)
	created := f.createIN(t, 4)

	require.NoError(t, f.uc.DeleteMovement(context.Background(), ownerID, created.ID))
	before := f.balance(t, prodP1, whW1)

	err := f.uc.DeleteMovement(context.Background(), ownerID, created.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, before, f.balance(t, prodP1, whW1))
}

// El revert de historial clampea en 0: tras IN 10 y OUT 6, borrar el IN deja
// el saldo en 0 (no en -6), y el ledger queda marcado por la pérdida.
func TestDeleteMovement_RevertClampeaEnCero(t *testing.T) {
	f := newFixture(t)
	created := f.createIN(t, 10)
	_, err := f.uc.CreateMovement(context.Background(), ownerID, dto.CreateMovementRequest{
		ProductID: prodP1, Type: "OUT", Quantity: 6, WarehouseFromID: whW1,
	})
	require.NoError(t, err)

	require.NoError(t, f.uc.DeleteMovement(context.Background(), ownerID, created.ID))
	assert.EqualValues(t, 0, f.balance(t, prodP1, whW1))
}

// ──────────────────────────────────────────────────────────────────────────────
// Validación y referencias
// ──────────────────────────────────────────────────────────────────────────────

func TestCreateMovement_Validacion(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		name string
		in   dto.CreateMovementRequest
	}{
		{"cantidad cero", dto.CreateMovementRequest{ProductID: prodP1, Type: "IN", Quantity: 0, WarehouseToID: whW1}},
		{"IN sin destino", dto.CreateMovementRequest{ProductID: prodP1, Type: "IN", Quantity: 1}},
		{"OUT sin origen", dto.CreateMovementRequest{ProductID: prodP1, Type: "OUT", Quantity: 1}},
		{"TRANSFER sin destino", dto.CreateMovementRequest{ProductID: prodP1, Type: "TRANSFER", Quantity: 1, WarehouseFromID: whW1}},
		{"tipo desconocido", dto.CreateMovementRequest{ProductID: prodP1, Type: "SIDEWAYS", Quantity: 1, WarehouseToID: whW1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.uc.CreateMovement(context.Background(), ownerID, tc.in)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
	assert.Empty(t, f.movements.items, "ningún request inválido debe persistir")
}

func TestCreateMovement_ProductoAjeno(t *testing.T) {
	f := newFixture(t)
	_, err := f.uc.CreateMovement(context.Background(), otherID, dto.CreateMovementRequest{
		ProductID: prodP1, Type: "IN", Quantity: 1, WarehouseToID: whW1,
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateMovement_BodegaInexistente(t *testing.T) {
	f := newFixture(t)
	_, err := f.uc.CreateMovement(context.Background(), ownerID, dto.CreateMovementRequest{
		ProductID: prodP1, Type: "IN", Quantity: 1, WarehouseToID: uuid.New().String(),
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// ──────────────────────────────────────────────────────────────────────────────
// Propiedades del ledger
// ──────────────────────────────────────────────────────────────────────────────

// El saldo materializado debe coincidir con la reconstrucción desde cero a
// partir del log de movimientos vigentes, tras una mezcla de comandos.
func TestRebuild_CoincideConSaldosMaterializados(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.createIN(t, 10)
	f.createIN(t, 5)
	_, err := f.uc.CreateMovement(ctx, ownerID, dto.CreateMovementRequest{
		ProductID: prodP1, Type: "OUT", Quantity: 4, WarehouseFromID: whW1,
	})
	require.NoError(t, err)
	_, err = f.uc.CreateMovement(ctx, ownerID, dto.CreateMovementRequest{
		ProductID: prodP1, Type: "TRANSFER", Quantity: 3, WarehouseFromID: whW1, WarehouseToID: whW2,
	})
	require.NoError(t, err)
	qty := int64(8)
	_, err = f.uc.UpdateMovement(ctx, ownerID, a.ID, dto.UpdateMovementRequest{Quantity: &qty})
	require.NoError(t, err)

	rebuilt := make(map[balKey]int64)
	for _, m := range f.movements.items {
		deltas, derr := ledger.Deltas(m)
		require.NoError(t, derr)
		for _, d := range deltas {
			rebuilt[balKey{d.ProductID, d.WarehouseID}] += d.Quantity
		}
	}
	for k, want := range rebuilt {
		assert.Equal(t, want, f.balance(t, k.productID, k.warehouseID), "par %v", k)
	}
	// Invariante: ningún saldo negativo en ningún estado alcanzable.
	for _, b := range f.balances.items {
		assert.GreaterOrEqual(t, b.Quantity, int64(0))
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Concurrencia: reintentos acotados ante fallos de serialización
// ──────────────────────────────────────────────────────────────────────────────

func TestRunTx_ReintentaYLuegoConcluye(t *testing.T) {
	f := newFixture(t)
	flaky := &flakyTxRunner{delegate: f.runner, failures: 2}
	uc := stock.NewLedgerUseCase(flaky, f.movements, f.balances, f.products, f.warehouses)

	_, err := uc.CreateMovement(context.Background(), ownerID, dto.CreateMovementRequest{
		ProductID: prodP1, Type: "IN", Quantity: 10, WarehouseToID: whW1,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, flaky.calls, "dos fallos de serialización + un intento exitoso")
	assert.EqualValues(t, 10, f.balance(t, prodP1, whW1))
}

func TestRunTx_AgotaReintentosYDevuelveConflicto(t *testing.T) {
	f := newFixture(t)
	flaky := &flakyTxRunner{delegate: f.runner, failures: 10}
	uc := stock.NewLedgerUseCase(flaky, f.movements, f.balances, f.products, f.warehouses)

	_, err := uc.CreateMovement(context.Background(), ownerID, dto.CreateMovementRequest{
		ProductID: prodP1, Type: "IN", Quantity: 10, WarehouseToID: whW1,
	})
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.EqualValues(t, 0, f.balance(t, prodP1, whW1))
}

// lockedBalanceRow fila de saldo con su propio candado, como una fila de
// stock_balances bajo FOR UPDATE.
type lockedBalanceRow struct {
	mu  sync.Mutex
	bal entity.StockBalance
}

// lockingBalanceTable emula la semántica de bloqueo de filas de Postgres:
// GetForUpdate solo puede bloquear una fila que existe; EnsureRow es lo único
// que materializa la fila de un par nuevo. missBarrier, si está presente,
// retiene a toda transacción que encuentre el par sin fila hasta que todas
// lo hayan visto así, forzando la carrera del primer movimiento.
type lockingBalanceTable struct {
	mu          sync.Mutex
	rows        map[balKey]*lockedBalanceRow
	missBarrier *sync.WaitGroup
}

func newLockingBalanceTable() *lockingBalanceTable {
	return &lockingBalanceTable{rows: make(map[balKey]*lockedBalanceRow)}
}

// lockingBalanceRepo vista de la tabla atada a una transacción: registra las
// filas bloqueadas y el runner las libera al terminar.
type lockingBalanceRepo struct {
	table *lockingBalanceTable
	held  []*lockedBalanceRow
}

func (r *lockingBalanceRepo) EnsureRow(productID, warehouseID string) error {
	r.table.mu.Lock()
	defer r.table.mu.Unlock()
	k := balKey{productID, warehouseID}
	if _, ok := r.table.rows[k]; !ok {
		r.table.rows[k] = &lockedBalanceRow{bal: entity.StockBalance{ProductID: productID, WarehouseID: warehouseID}}
	}
	return nil
}

func (r *lockingBalanceRepo) Get(productID, warehouseID string) (*entity.StockBalance, error) {
	r.table.mu.Lock()
	row, ok := r.table.rows[balKey{productID, warehouseID}]
	r.table.mu.Unlock()
	if !ok {
		return nil, nil
	}
	cp := row.bal
	return &cp, nil
}

func (r *lockingBalanceRepo) GetForUpdate(productID, warehouseID string) (*entity.StockBalance, error) {
	r.table.mu.Lock()
	row, ok := r.table.rows[balKey{productID, warehouseID}]
	r.table.mu.Unlock()
	if !ok {
		// Sin fila no hay nada que bloquear: la transacción sigue sin candado.
		if r.table.missBarrier != nil {
			r.table.missBarrier.Done()
			r.table.missBarrier.Wait()
		}
		return nil, nil
	}
	row.mu.Lock()
	r.held = append(r.held, row)
	cp := row.bal
	return &cp, nil
}

func (r *lockingBalanceRepo) Upsert(b *entity.StockBalance) error {
	r.table.mu.Lock()
	k := balKey{b.ProductID, b.WarehouseID}
	row, ok := r.table.rows[k]
	if !ok {
		row = &lockedBalanceRow{}
		r.table.rows[k] = row
	}
	r.table.mu.Unlock()
	row.bal = *b
	return nil
}

func (r *lockingBalanceRepo) ListByOwner(userID string) ([]*entity.StockBalance, error) {
	return nil, nil
}

func (r *lockingBalanceRepo) ListBelowMinStock(ctx context.Context, userID, warehouseID string) ([]repository.LowStockItem, error) {
	return nil, nil
}

// safeMovementRepo protege el repo de movimientos para usarlo desde varias
// goroutines.
type safeMovementRepo struct {
	mu    sync.Mutex
	inner *memMovementRepo
}

func (r *safeMovementRepo) Create(m *entity.StockMovement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inner.Create(m)
}

func (r *safeMovementRepo) GetByIDForOwner(id, userID string) (*entity.StockMovement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inner.GetByIDForOwner(id, userID)
}

func (r *safeMovementRepo) Update(m *entity.StockMovement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inner.Update(m)
}

func (r *safeMovementRepo) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inner.Delete(id)
}

func (r *safeMovementRepo) ListByOwner(userID string, from, to *time.Time, limit, offset int) ([]*entity.StockMovement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inner.ListByOwner(userID, from, to, limit, offset)
}

// lockingTxRunner corre cada comando con su propia vista de la tabla y libera
// los candados de fila al terminar, como el commit de la transacción.
type lockingTxRunner struct {
	table     *lockingBalanceTable
	movements *safeMovementRepo
}

func (r *lockingTxRunner) Run(ctx context.Context, fn func(
	movRepo repository.StockMovementRepository,
	balanceRepo repository.StockBalanceRepository,
) error) error {
	balances := &lockingBalanceRepo{table: r.table}
	defer func() {
		for _, row := range balances.held {
			row.mu.Unlock()
		}
	}()
	return fn(r.movements, balances)
}

// El primer movimiento de un par no tiene fila de saldo: si el motor no la
// materializa antes del FOR UPDATE, dos comandos concurrentes leen ambos
// saldo 0 y el segundo commit pisa al primero. La barrera obliga a ambas
// transacciones a observar el par sin fila antes de que cualquiera escriba;
// con la materialización previa ese camino nunca se toma y los dos IN se
// serializan sobre la fila en 0.
func TestCreateMovement_PrimerMovimientoDelPar_NoPierdeDeltas(t *testing.T) {
	f := newFixture(t)
	table := newLockingBalanceTable()
	var barrier sync.WaitGroup
	barrier.Add(2)
	table.missBarrier = &barrier
	runner := &lockingTxRunner{table: table, movements: &safeMovementRepo{inner: f.movements}}
	uc := stock.NewLedgerUseCase(runner, f.movements, f.balances, f.products, f.warehouses)

	var wg sync.WaitGroup
	for _, qty := range []int64{10, 5} {
		wg.Add(1)
		go func(qty int64) {
			defer wg.Done()
			_, err := uc.CreateMovement(context.Background(), ownerID, dto.CreateMovementRequest{
				ProductID: prodP1, Type: "IN", Quantity: qty, WarehouseToID: whW1,
			})
			assert.NoError(t, err)
		}(qty)
	}
	wg.Wait()

	reader := &lockingBalanceRepo{table: table}
	b, err := reader.Get(prodP1, whW1)
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.EqualValues(t, 15, b.Quantity)
}

// Comandos concurrentes sobre el mismo par no pierden deltas.
func TestCreateMovement_ConcurrenciaSinPerdidas(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const n = 20

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := f.uc.CreateMovement(ctx, ownerID, dto.CreateMovementRequest{
				ProductID: prodP1, Type: "IN", Quantity: 1, WarehouseToID: whW1,
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.EqualValues(t, n, f.balance(t, prodP1, whW1))
}

// ──────────────────────────────────────────────────────────────────────────────
// Lecturas
// ──────────────────────────────────────────────────────────────────────────────

func TestGetBalances_SoloDelUsuario(t *testing.T) {
	f := newFixture(t)
	f.createIN(t, 10)

	balances, err := f.uc.GetBalances(context.Background(), ownerID)
	require.NoError(t, err)
	require.Len(t, balances, 1)
	assert.Equal(t, prodP1, balances[0].ProductID)
	assert.EqualValues(t, 10, balances[0].Quantity)

	balances, err = f.uc.GetBalances(context.Background(), otherID)
	require.NoError(t, err)
	assert.Empty(t, balances)
}

// El alcance por dueño cubre producto Y bodega: un saldo cuyo warehouse es de
// otro usuario no aparece, aunque el producto sí sea del consultante.
func TestGetBalances_ExcluyeBodegasAjenas(t *testing.T) {
	f := newFixture(t)
	f.createIN(t, 10)

	whAjena := uuid.New().String()
	require.NoError(t, f.warehouses.Create(&entity.Warehouse{ID: whAjena, UserID: otherID, Name: "Bodega ajena", IsActive: true}))
	require.NoError(t, f.balances.Upsert(&entity.StockBalance{
		ProductID: prodP1, WarehouseID: whAjena, Quantity: 9, UpdatedAt: time.Now(),
	}))

	balances, err := f.uc.GetBalances(context.Background(), ownerID)
	require.NoError(t, err)
	require.Len(t, balances, 1)
	assert.Equal(t, whW1, balances[0].WarehouseID)
}

func TestGetMovements_OrdenYRango(t *testing.T) {
	f := newFixture(t)
	f.createIN(t, 1)
	f.createIN(t, 2)
	f.createIN(t, 3)

	movs, err := f.uc.GetMovements(context.Background(), ownerID, nil, nil, 50, 0)
	require.NoError(t, err)
	require.Len(t, movs, 3)
	for i := 1; i < len(movs); i++ {
		assert.False(t, movs[i-1].CreatedAt.Before(movs[i].CreatedAt), "orden más reciente primero")
	}

	// Intervalo cerrado que excluye todo lo creado.
	past := time.Now().Add(-48 * time.Hour)
	pastEnd := past.Add(time.Hour)
	movs, err = f.uc.GetMovements(context.Background(), ownerID, &past, &pastEnd, 50, 0)
	require.NoError(t, err)
	assert.Empty(t, movs)
}

func TestGetLowStock(t *testing.T) {
	f := newFixture(t)
	f.createIN(t, 2) // MinStock del fixture es 5

	items, err := f.uc.GetLowStock(context.Background(), ownerID, "")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "SKU-P1", items[0].SKU)
	assert.EqualValues(t, 2, items[0].CurrentStock)
	assert.EqualValues(t, 3, items[0].Deficit)
}
