// Package identity defines the port to the external authentication service
// that owns credentials and principal IDs. The registration flow only ever
// creates a principal and reads it back by ID; everything else about the
// identity lifecycle belongs to the provider.
package identity

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Identity is the authentication principal. Created once on signup, never
// mutated by this service. A successful Create does not guarantee the
// identity is immediately visible to FindByID: the provider replicates
// asynchronously into the read path the profile store depends on.
type Identity struct {
	ID        uuid.UUID
	Email     string
	CreatedAt time.Time
}

// Provider is implemented by the HTTP client against the real auth service
// and by the in-memory provider used in dev mode and tests.
//
// Create returns sentinel.ErrConflict when the email already has an identity
// and sentinel.ErrUnavailable on transient provider failure.
// FindByID returns sentinel.ErrNotFound while the identity is not yet visible.
type Provider interface {
	Create(ctx context.Context, email, password string) (*Identity, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Identity, error)
}
