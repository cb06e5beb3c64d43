package usecase

import (
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/Kardex-api/internal/application/dto"
	"github.com/jhoicas/Kardex-api/internal/domain"
	"github.com/jhoicas/Kardex-api/internal/domain/entity"
	"github.com/jhoicas/Kardex-api/internal/domain/repository"
)

// ProductUseCase casos de uso CRUD de productos.
type ProductUseCase struct {
	repo repository.ProductRepository
}

// NewProductUseCase construye el caso de uso.
func NewProductUseCase(repo repository.ProductRepository) *ProductUseCase {
	return &ProductUseCase{repo: repo}
}

// Create persiste un producto nuevo. SKU único por usuario (ErrDuplicate).
func (uc *ProductUseCase) Create(userID string, in dto.CreateProductRequest) (*dto.ProductResponse, error) {
	existing, err := uc.repo.GetByOwnerAndSKU(userID, in.SKU)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrDuplicate
	}
	now := time.Now()
	unit := in.Unit
	if unit == "" {
		unit = "un"
	}
	product := &entity.Product{
		ID:          uuid.New().String(),
		UserID:      userID,
		CategoryID:  in.CategoryID,
		SKU:         in.SKU,
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Cost:        in.Cost,
		Unit:        unit,
		MinStock:    in.MinStock,
		ImageURL:    in.ImageURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := uc.repo.Create(product); err != nil {
		return nil, err
	}
	return toProductResponse(product), nil
}

// GetByID devuelve un producto del usuario, o nil si no existe o es ajeno.
func (uc *ProductUseCase) GetByID(userID, id string) (*dto.ProductResponse, error) {
	product, err := uc.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if product == nil || product.UserID != userID {
		return nil, nil
	}
	return toProductResponse(product), nil
}

// Update actualiza los campos recibidos de un producto del usuario.
func (uc *ProductUseCase) Update(userID, id string, in dto.UpdateProductRequest) (*dto.ProductResponse, error) {
	product, err := uc.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if product == nil || product.UserID != userID {
		return nil, domain.ErrNotFound
	}
	if in.Name != nil {
		product.Name = *in.Name
	}
	if in.Description != nil {
		product.Description = *in.Description
	}
	if in.Price != nil {
		product.Price = *in.Price
	}
	if in.Cost != nil {
		product.Cost = *in.Cost
	}
	if in.Unit != nil {
		product.Unit = *in.Unit
	}
	if in.MinStock != nil {
		product.MinStock = *in.MinStock
	}
	if in.ImageURL != nil {
		product.ImageURL = *in.ImageURL
	}
	if in.CategoryID != nil {
		product.CategoryID = *in.CategoryID
	}
	product.UpdatedAt = time.Now()
	if err := uc.repo.Update(product); err != nil {
		return nil, err
	}
	return toProductResponse(product), nil
}

// List lista los productos del usuario con paginación.
func (uc *ProductUseCase) List(userID string, limit, offset int) (*dto.ProductListResponse, error) {
	products, err := uc.repo.ListByOwner(userID, limit, offset)
	if err != nil {
		return nil, err
	}
	items := make([]dto.ProductResponse, 0, len(products))
	for _, p := range products {
		items = append(items, *toProductResponse(p))
	}
	return &dto.ProductListResponse{
		Items: items,
		Page:  dto.PageResponse{Limit: limit, Offset: offset},
	}, nil
}

// Delete elimina un producto del usuario.
func (uc *ProductUseCase) Delete(userID, id string) error {
	product, err := uc.repo.GetByID(id)
	if err != nil {
		return err
	}
	if product == nil || product.UserID != userID {
		return domain.ErrNotFound
	}
	return uc.repo.Delete(id)
}

func toProductResponse(p *entity.Product) *dto.ProductResponse {
	return &dto.ProductResponse{
		ID:          p.ID,
		SKU:         p.SKU,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Cost:        p.Cost,
		Unit:        p.Unit,
		MinStock:    p.MinStock,
		ImageURL:    p.ImageURL,
		CategoryID:  p.CategoryID,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}
