package identity

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "citizenly/pkg/domain-errors"
	"citizenly/pkg/platform/sentinel"
)

func TestMemory_CreateAndFind(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	created, err := m.Create(ctx, "juan@example.com", "Str0ng!pw")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, "juan@example.com", created.Email)

	found, err := m.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
}

func TestMemory_DuplicateEmailConflicts(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.Create(ctx, "juan@example.com", "Str0ng!pw")
	require.NoError(t, err)

	_, err = m.Create(ctx, "Juan@Example.com", "An0ther!pw")
	assert.ErrorIs(t, err, sentinel.ErrConflict, "email comparison is case-insensitive")
}

func TestMemory_WeakPasswordRejected(t *testing.T) {
	m := NewMemory()
	_, err := m.Create(context.Background(), "juan@example.com", "short")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestMemory_UnknownIDNotFound(t *testing.T) {
	m := NewMemory()
	_, err := m.FindByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestMemory_LagLookupsModelReplicationDelay(t *testing.T) {
	m := NewMemory(WithLagLookups(2))
	ctx := context.Background()

	created, err := m.Create(ctx, "juan@example.com", "Str0ng!pw")
	require.NoError(t, err)

	// First two lookups miss, third hits.
	_, err = m.FindByID(ctx, created.ID)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	_, err = m.FindByID(ctx, created.ID)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	found, err := m.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
}

func TestMemory_VisibilityDelay(t *testing.T) {
	m := NewMemory(WithVisibilityDelay(30 * time.Millisecond))
	ctx := context.Background()

	created, err := m.Create(ctx, "juan@example.com", "Str0ng!pw")
	require.NoError(t, err)

	_, err = m.FindByID(ctx, created.ID)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	time.Sleep(50 * time.Millisecond)
	_, err = m.FindByID(ctx, created.ID)
	assert.NoError(t, err)
}

func TestMemory_VerifyPassword(t *testing.T) {
	m := NewMemory()
	_, err := m.Create(context.Background(), "juan@example.com", "Str0ng!pw")
	require.NoError(t, err)

	assert.NoError(t, m.VerifyPassword("juan@example.com", "Str0ng!pw"))
	assert.ErrorIs(t, m.VerifyPassword("juan@example.com", "wrong-pass"), sentinel.ErrInvalidState)
	assert.ErrorIs(t, m.VerifyPassword("nobody@example.com", "Str0ng!pw"), sentinel.ErrNotFound)
}
