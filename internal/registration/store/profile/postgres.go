package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"citizenly/internal/registration/models"
	"citizenly/pkg/platform/sentinel"
)

// Constraint names from migrations/0001_init.sql. The application treats the
// constraint violation as the conflict signal instead of relying on a prior
// read.
const (
	constraintJurisdictionAdmin = "profiles_jurisdiction_admin_idx"
	constraintEmail             = "profiles_email_key"
)

// Postgres is the authoritative Store. The jurisdiction invariant is a
// partial unique index, so check-and-reserve and the profile write commit
// atomically in a single statement.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) ReserveAndUpsert(ctx context.Context, p *models.Profile) (*models.Profile, error) {
	query := `
		INSERT INTO profiles (id, email, first_name, last_name, role_id, role_name, jurisdiction_code, status)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			role_id = EXCLUDED.role_id,
			role_name = EXCLUDED.role_name,
			jurisdiction_code = EXCLUDED.jurisdiction_code,
			updated_at = now()
		RETURNING id, email, first_name, last_name, role_id, role_name,
			COALESCE(jurisdiction_code, ''), status, created_at, updated_at
	`
	status := p.Status
	if status == "" {
		status = models.ProfileStatusPendingApproval
	}
	row := s.db.QueryRowContext(ctx, query,
		p.ID, p.Email, p.FirstName, p.LastName, p.RoleID, p.RoleName, p.JurisdictionCode, status,
	)
	stored, err := scanProfile(row)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			switch pqErr.Constraint {
			case constraintJurisdictionAdmin:
				return nil, ErrJurisdictionTaken
			case constraintEmail:
				return nil, ErrEmailTaken
			}
			return nil, fmt.Errorf("reserve and upsert profile: %w", sentinel.ErrConflict)
		}
		return nil, fmt.Errorf("reserve and upsert profile: %w", err)
	}
	return stored, nil
}

func (s *Postgres) FindByID(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	row := s.db.QueryRowContext(ctx, selectProfile+` WHERE id = $1`, id)
	p, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find profile by id: %w", err)
	}
	return p, nil
}

func (s *Postgres) FindByEmail(ctx context.Context, email string) (*models.Profile, error) {
	row := s.db.QueryRowContext(ctx, selectProfile+` WHERE email = lower($1)`, email)
	p, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find profile by email: %w", err)
	}
	return p, nil
}

func (s *Postgres) JurisdictionAdminExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM profiles
			WHERE jurisdiction_code = $1
			  AND role_name = $2
			  AND status <> $3
		)`, code, models.RoleBarangayAdmin, models.ProfileStatusRejected,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("jurisdiction admin exists: %w", err)
	}
	return exists, nil
}

const selectProfile = `
	SELECT id, email, first_name, last_name, role_id, role_name,
		COALESCE(jurisdiction_code, ''), status, created_at, updated_at
	FROM profiles`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*models.Profile, error) {
	var p models.Profile
	err := row.Scan(
		&p.ID, &p.Email, &p.FirstName, &p.LastName, &p.RoleID, &p.RoleName,
		&p.JurisdictionCode, &p.Status, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
