package role

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"citizenly/internal/registration/models"
	"citizenly/pkg/platform/sentinel"
)

// Postgres reads the role catalog from the roles table.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) FindByName(ctx context.Context, name models.RoleName) (*models.Role, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, permissions FROM roles WHERE name = $1`, name)

	var (
		r           models.Role
		permissions []byte
	)
	if err := row.Scan(&r.ID, &r.Name, &permissions); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find role by name: %w", err)
	}
	if err := json.Unmarshal(permissions, &r.Permissions); err != nil {
		return nil, fmt.Errorf("decode role permissions: %w", err)
	}
	return &r, nil
}
