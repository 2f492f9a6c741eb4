// Package repository implements the demo application's data access on top of
// the instrumented database handle.
package repository

import (
	"database/sql"
	"errors"
	"strings"

	"sqlpanel/internal/domain"
)

func mapDBError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return &domain.NotFoundError{Message: "resource not found"}
	}
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "Duplicate key") {
		return &domain.ConflictError{Message: "resource already exists"}
	}
	return err
}
