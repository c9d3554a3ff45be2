// Package profile persists resident/user profiles and owns the
// single-admin-per-jurisdiction invariant. The invariant lives in the store
// as an atomic constraint, not in application code, because the service may
// run as many independent instances.
package profile

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"citizenly/internal/registration/models"
	"citizenly/pkg/platform/sentinel"
)

// Conflict reasons surfaced by ReserveAndUpsert. Both unwrap to
// sentinel.ErrConflict; services branch on the specific value.
var (
	ErrJurisdictionTaken = fmt.Errorf("jurisdiction already administered: %w", sentinel.ErrConflict)
	ErrEmailTaken        = fmt.Errorf("email already registered: %w", sentinel.ErrConflict)
)

// Store is the profile store port.
//
// ReserveAndUpsert performs the check-and-reserve and the profile write as
// one atomic unit: when the profile holds a jurisdiction-scoped role, the
// jurisdiction slot is claimed in the same operation that persists the row,
// so no concurrent call can interleave between check and write. The upsert
// is keyed by profile ID: retrying with the same ID completes the existing
// row instead of raising a duplicate-key failure, and never conflicts with
// its own earlier reservation.
type Store interface {
	ReserveAndUpsert(ctx context.Context, p *models.Profile) (*models.Profile, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Profile, error)
	FindByEmail(ctx context.Context, email string) (*models.Profile, error)

	// JurisdictionAdminExists is the advisory read used by UI pre-flight
	// hints. It may be stale; the authoritative check is ReserveAndUpsert.
	JurisdictionAdminExists(ctx context.Context, code string) (bool, error)
}
