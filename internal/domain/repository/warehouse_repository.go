package repository

import "github.com/jhoicas/Kardex-api/internal/domain/entity"

// WarehouseRepository define el puerto de persistencia para Warehouse (DIP).
type WarehouseRepository interface {
	Create(warehouse *entity.Warehouse) error
	GetByID(id string) (*entity.Warehouse, error)
	Update(warehouse *entity.Warehouse) error
	ListByOwner(userID string, limit, offset int) ([]*entity.Warehouse, error)
	Delete(id string) error
}
