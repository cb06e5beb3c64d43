package entity

import "time"

// User representa un usuario del sistema. Es el dueño de sus productos,
// bodegas y movimientos; toda consulta de stock se filtra por su ID.
type User struct {
	ID           string
	Email        string
	PasswordHash string // bcrypt hash, nunca plano en dominio después de persistir
	Name         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
