package repository

import "github.com/jhoicas/Kardex-api/internal/domain/entity"

// CategoryRepository define el puerto de persistencia para Category (DIP).
type CategoryRepository interface {
	Create(category *entity.Category) error
	GetByID(id string) (*entity.Category, error)
	Update(category *entity.Category) error
	ListByOwner(userID string) ([]*entity.Category, error)
	Delete(id string) error
}
