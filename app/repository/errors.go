package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	// ErrConflict is returned when a uniqueness guard rejected an insert.
	// Callers treat it as "already applied".
	ErrConflict = errors.New("repository: already exists")
	// ErrNotFound is returned when a lookup matched no row.
	ErrNotFound = errors.New("repository: record not found")
)

// mapError converts driver level errors into the repository's typed results.
func mapError(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %s", ErrConflict, what)
	default:
		return fmt.Errorf("%s: %w", what, err)
	}
}
