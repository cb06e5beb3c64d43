package repository

import "github.com/jhoicas/Kardex-api/internal/domain/entity"

// ProductRepository define el puerto de persistencia para Product (DIP).
type ProductRepository interface {
	Create(product *entity.Product) error
	GetByID(id string) (*entity.Product, error)
	GetByOwnerAndSKU(userID, sku string) (*entity.Product, error)
	Update(product *entity.Product) error
	ListByOwner(userID string, limit, offset int) ([]*entity.Product, error)
	Delete(id string) error
}
