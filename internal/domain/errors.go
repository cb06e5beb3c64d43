package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound           = errors.New("recurso no encontrado")
	ErrInvalidInput       = errors.New("entrada inválida")
	ErrDuplicate          = errors.New("recurso duplicado")
	ErrEmailAlreadyExists = errors.New("el email ya está registrado")
	ErrUnauthorized       = errors.New("no autorizado")
	ErrInsufficientStock  = errors.New("stock insuficiente")

	// ErrSerialization marca un fallo de serialización/deadlock de la BD;
	// el caso de uso lo reintenta una cantidad acotada de veces.
	ErrSerialization = errors.New("conflicto de serialización")
	// ErrConflict se devuelve al caller cuando se agotan los reintentos.
	ErrConflict = errors.New("conflicto de concurrencia")
)
