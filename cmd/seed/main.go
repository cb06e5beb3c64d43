// seed puebla la base con datos de demostración: un usuario, dos bodegas,
// una categoría y productos de ejemplo con stock mínimo configurado.
//
// Uso: go run ./cmd/seed
// Lee la misma configuración que cmd/api (DATABASE_URL o DB_*).
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/jhoicas/Kardex-api/internal/domain"
	"github.com/jhoicas/Kardex-api/internal/domain/entity"
	"github.com/jhoicas/Kardex-api/internal/infrastructure/postgres"
	"github.com/jhoicas/Kardex-api/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "cargar configuración: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "conexión a PostgreSQL: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	userRepo := postgres.NewUserRepository(pool)
	warehouseRepo := postgres.NewWarehouseRepository(pool)
	categoryRepo := postgres.NewCategoryRepository(pool)
	productRepo := postgres.NewProductRepository(pool)

	now := time.Now()

	hash, err := bcrypt.GenerateFromPassword([]byte("demo-password"), bcrypt.DefaultCost)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bcrypt: %v\n", err)
		os.Exit(1)
	}
	user := &entity.User{
		ID:           uuid.New().String(),
		Email:        "demo@kardex.local",
		PasswordHash: string(hash),
		Name:         "Usuario demo",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := userRepo.Create(user); err != nil {
		if errors.Is(err, domain.ErrEmailAlreadyExists) {
			fmt.Println("el usuario demo ya existe, nada que hacer")
			return
		}
		fmt.Fprintf(os.Stderr, "crear usuario: %v\n", err)
		os.Exit(1)
	}

	warehouses := []*entity.Warehouse{
		{ID: uuid.New().String(), UserID: user.ID, Name: "Bodega central", Address: "Calle 10 #20-30", IsActive: true, CreatedAt: now, UpdatedAt: now},
		{ID: uuid.New().String(), UserID: user.ID, Name: "Local norte", Address: "Av. 68 #100-15", IsActive: true, CreatedAt: now, UpdatedAt: now},
	}
	for _, w := range warehouses {
		if err := warehouseRepo.Create(w); err != nil {
			fmt.Fprintf(os.Stderr, "crear bodega %s: %v\n", w.Name, err)
			os.Exit(1)
		}
	}

	category := &entity.Category{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		Name:      "Alimentos",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := categoryRepo.Create(category); err != nil {
		fmt.Fprintf(os.Stderr, "crear categoría: %v\n", err)
		os.Exit(1)
	}

	products := []*entity.Product{
		{SKU: "CAFE-500", Name: "Café molido 500g", Price: decimal.NewFromInt(18500), Cost: decimal.NewFromInt(12000), Unit: "un", MinStock: 10},
		{SKU: "AZUC-1K", Name: "Azúcar 1kg", Price: decimal.NewFromInt(5200), Cost: decimal.NewFromInt(3600), Unit: "un", MinStock: 20},
		{SKU: "ARRZ-5K", Name: "Arroz 5kg", Price: decimal.NewFromInt(24900), Cost: decimal.NewFromInt(19000), Unit: "un", MinStock: 8},
	}
	for _, p := range products {
		p.ID = uuid.New().String()
		p.UserID = user.ID
		p.CategoryID = category.ID
		p.CreatedAt = now
		p.UpdatedAt = now
		if err := productRepo.Create(p); err != nil {
			fmt.Fprintf(os.Stderr, "crear producto %s: %v\n", p.SKU, err)
			os.Exit(1)
		}
	}

	fmt.Printf("seed completado: usuario %s, %d bodegas, %d productos\n", user.Email, len(warehouses), len(products))
}
