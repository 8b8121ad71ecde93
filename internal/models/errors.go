package models

import "github.com/pkg/errors"

// Классификация ошибок для HTTP-слоя: всё остальное — generic 500.
var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate track number")
)
