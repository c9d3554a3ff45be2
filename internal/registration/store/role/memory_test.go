package role

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"citizenly/internal/registration/models"
	"citizenly/pkg/platform/sentinel"
)

func TestMemory_FindByName(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	admin, err := s.FindByName(ctx, models.RoleBarangayAdmin)
	require.NoError(t, err)
	assert.True(t, admin.JurisdictionScoped())
	assert.Contains(t, admin.Permissions, "residents")

	staff, err := s.FindByName(ctx, models.RoleStaff)
	require.NoError(t, err)
	assert.False(t, staff.JurisdictionScoped())

	_, err = s.FindByName(ctx, "mayor")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}
