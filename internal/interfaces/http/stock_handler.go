package http

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/Kardex-api/internal/application/dto"
	"github.com/jhoicas/Kardex-api/internal/application/stock"
	"github.com/jhoicas/Kardex-api/internal/domain"
)

// StockHandler maneja las peticiones HTTP del ledger de stock (protegido).
type StockHandler struct {
	uc *stock.LedgerUseCase
}

// NewStockHandler construye el handler.
func NewStockHandler(uc *stock.LedgerUseCase) *StockHandler {
	return &StockHandler{uc: uc}
}

// mapLedgerError traduce errores de dominio del ledger a respuestas HTTP.
func mapLedgerError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "recurso no encontrado"})
	case errors.Is(err, domain.ErrInsufficientStock):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "INSUFFICIENT_STOCK", Message: "stock insuficiente"})
	case errors.Is(err, domain.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "CONCURRENCY_CONFLICT", Message: "conflicto de concurrencia, reintente"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
}

// CreateMovement godoc
// @Summary      Registrar movimiento de stock
// @Tags         stock
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreateMovementRequest  true  "product_id, type (IN|OUT|TRANSFER|ADJUST), quantity, bodegas según tipo"
// @Success      201   {object}  dto.MovementResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Failure      422   {object}  dto.ErrorResponse
// @Router       /api/stock/movements [post]
func (h *StockHandler) CreateMovement(c *fiber.Ctx) error {
	userID := GetUserID(c)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	var in dto.CreateMovementRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	out, err := h.uc.CreateMovement(c.Context(), userID, in)
	if err != nil {
		return mapLedgerError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// UpdateMovement godoc
// @Summary      Editar movimiento de stock
// @Description  Revierte el efecto anterior del movimiento y aplica el nuevo en una sola transacción.
// @Tags         stock
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string  true  "ID del movimiento"
// @Param        body  body  dto.UpdateMovementRequest  true  "campos a cambiar (los omitidos se conservan)"
// @Success      200   {object}  dto.MovementResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Failure      422   {object}  dto.ErrorResponse
// @Router       /api/stock/movements/{id} [put]
func (h *StockHandler) UpdateMovement(c *fiber.Ctx) error {
	userID := GetUserID(c)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	var in dto.UpdateMovementRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	out, err := h.uc.UpdateMovement(c.Context(), userID, c.Params("id"), in)
	if err != nil {
		return mapLedgerError(c, err)
	}
	return c.JSON(out)
}

// DeleteMovement godoc
// @Summary      Eliminar movimiento de stock
// @Description  Borra el movimiento y revierte su efecto sobre los saldos.
// @Tags         stock
// @Security     Bearer
// @Param        id  path  string  true  "ID del movimiento"
// @Success      204
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/stock/movements/{id} [delete]
func (h *StockHandler) DeleteMovement(c *fiber.Ctx) error {
	userID := GetUserID(c)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	if err := h.uc.DeleteMovement(c.Context(), userID, c.Params("id")); err != nil {
		return mapLedgerError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ListMovements godoc
// @Summary      Listar movimientos de stock
// @Tags         stock
// @Security     Bearer
// @Produce      json
// @Param        start   query  string  false  "Fecha inicial (RFC3339 o YYYY-MM-DD), inclusive"
// @Param        end     query  string  false  "Fecha final (RFC3339 o YYYY-MM-DD), inclusive"
// @Param        limit   query  int     false  "Máximo de resultados (default 20)"
// @Param        offset  query  int     false  "Desplazamiento"
// @Success      200  {object}  dto.MovementListResponse
// @Failure      422  {object}  dto.ErrorResponse
// @Router       /api/stock/movements [get]
func (h *StockHandler) ListMovements(c *fiber.Ctx) error {
	userID := GetUserID(c)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	from, err := parseTimeParam(c.Query("start"), false)
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "start inválido: usar RFC3339 o YYYY-MM-DD"})
	}
	to, err := parseTimeParam(c.Query("end"), true)
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "end inválido: usar RFC3339 o YYYY-MM-DD"})
	}
	var page dto.PageRequest
	if err := c.QueryParser(&page); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_QUERY", Message: "query inválida"})
	}
	page.DefaultPage()

	items, err := h.uc.GetMovements(c.Context(), userID, from, to, page.Limit, page.Offset)
	if err != nil {
		return mapLedgerError(c, err)
	}
	return c.JSON(dto.MovementListResponse{
		Items: items,
		Page:  dto.PageResponse{Limit: page.Limit, Offset: page.Offset},
	})
}

// GetBalances godoc
// @Summary      Saldos actuales de stock
// @Description  Devuelve el saldo por par (producto, bodega) de los productos del usuario.
// @Tags         stock
// @Security     Bearer
// @Produce      json
// @Success      200  {array}  dto.BalanceResponse
// @Router       /api/stock/balances [get]
func (h *StockHandler) GetBalances(c *fiber.Ctx) error {
	userID := GetUserID(c)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	balances, err := h.uc.GetBalances(c.Context(), userID)
	if err != nil {
		return mapLedgerError(c, err)
	}
	return c.JSON(balances)
}

// GetLowStock godoc
// @Summary      Productos bajo stock mínimo
// @Tags         stock
// @Security     Bearer
// @Produce      json
// @Param        warehouse_id  query  string  false  "Filtrar por bodega. Vacío = stock agregado."
// @Success      200  {array}  dto.LowStockItemDTO
// @Router       /api/stock/low-stock [get]
func (h *StockHandler) GetLowStock(c *fiber.Ctx) error {
	userID := GetUserID(c)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	items, err := h.uc.GetLowStock(c.Context(), userID, c.Query("warehouse_id"))
	if err != nil {
		return mapLedgerError(c, err)
	}
	return c.JSON(items)
}

// parseTimeParam acepta RFC3339 o fecha sola (YYYY-MM-DD). Para el extremo
// final del rango, una fecha sola se amplía al último instante de ese día
// para que el intervalo sea cerrado.
func parseTimeParam(s string, endOfDay bool) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}
