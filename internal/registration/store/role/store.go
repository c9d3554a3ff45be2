// Package role serves the immutable role catalog. Roles are reference data:
// looked up by name during registration, never created by the signup flow.
package role

import (
	"context"

	"citizenly/internal/registration/models"
)

// Store resolves role names to catalog entries. Returns sentinel.ErrNotFound
// for unknown names.
type Store interface {
	FindByName(ctx context.Context, name models.RoleName) (*models.Role, error)
}
