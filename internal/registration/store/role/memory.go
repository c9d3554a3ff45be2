package role

import (
	"context"

	"github.com/google/uuid"

	"citizenly/internal/registration/models"
	"citizenly/pkg/platform/sentinel"
)

// Memory holds the seeded role catalog for dev mode and tests. IDs match the
// seed rows in migrations/0001_init.sql so fixtures line up across store
// implementations.
type Memory struct {
	roles map[models.RoleName]models.Role
}

func NewMemory() *Memory {
	return &Memory{roles: map[models.RoleName]models.Role{
		models.RoleBarangayAdmin: {
			ID:   uuid.MustParse("6c1a2f76-0000-4000-8000-000000000001"),
			Name: models.RoleBarangayAdmin,
			Permissions: map[string][]string{
				"residents": {"create", "read", "update", "delete"},
				"reports":   {"create", "read"},
			},
		},
		models.RoleStaff: {
			ID:   uuid.MustParse("6c1a2f76-0000-4000-8000-000000000002"),
			Name: models.RoleStaff,
			Permissions: map[string][]string{
				"residents": {"create", "read", "update"},
				"reports":   {"read"},
			},
		},
		models.RoleResident: {
			ID:   uuid.MustParse("6c1a2f76-0000-4000-8000-000000000003"),
			Name: models.RoleResident,
			Permissions: map[string][]string{
				"profile": {"read", "update"},
			},
		},
	}}
}

func (s *Memory) FindByName(ctx context.Context, name models.RoleName) (*models.Role, error) {
	r, ok := s.roles[name]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := r
	return &out, nil
}
