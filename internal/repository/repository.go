// Package repository provides the gorm-backed data access layer.
package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"infinitetms/internal/apperr"
)

// wrap turns gorm's missing-row error into apperr.ErrNotFound and wraps
// everything else with op.
func wrap(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}
