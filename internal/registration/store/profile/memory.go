package profile

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"citizenly/internal/registration/models"
	"citizenly/pkg/platform/sentinel"
)

// Memory is the in-memory Store used by unit tests and dev mode. It mirrors
// the Postgres semantics exactly: one mutex-guarded critical section per
// ReserveAndUpsert call stands in for the storage-level constraint.
type Memory struct {
	mu       sync.Mutex
	profiles map[uuid.UUID]models.Profile
}

func NewMemory() *Memory {
	return &Memory{profiles: make(map[uuid.UUID]models.Profile)}
}

func (s *Memory) ReserveAndUpsert(ctx context.Context, p *models.Profile) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(p.Email)
	for id, existing := range s.profiles {
		if id == p.ID {
			continue
		}
		if strings.ToLower(existing.Email) == email {
			return nil, ErrEmailTaken
		}
		if p.RoleName == models.RoleBarangayAdmin &&
			existing.RoleName == models.RoleBarangayAdmin &&
			existing.Status != models.ProfileStatusRejected &&
			existing.JurisdictionCode == p.JurisdictionCode &&
			p.JurisdictionCode != "" {
			return nil, ErrJurisdictionTaken
		}
	}

	now := time.Now().UTC()
	stored, exists := s.profiles[p.ID]
	if exists {
		// Idempotent completion of a prior partial attempt: keep the
		// original creation time and status.
		p.CreatedAt = stored.CreatedAt
		p.Status = stored.Status
	} else {
		p.CreatedAt = now
		if p.Status == "" {
			p.Status = models.ProfileStatusPendingApproval
		}
	}
	p.UpdatedAt = now
	s.profiles[p.ID] = *p

	out := *p
	return &out, nil
}

func (s *Memory) FindByID(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := p
	return &out, nil
}

func (s *Memory) FindByEmail(ctx context.Context, email string) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email = strings.ToLower(email)
	for _, p := range s.profiles {
		if strings.ToLower(p.Email) == email {
			out := p
			return &out, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *Memory) JurisdictionAdminExists(ctx context.Context, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.profiles {
		if p.RoleName == models.RoleBarangayAdmin &&
			p.Status != models.ProfileStatusRejected &&
			p.JurisdictionCode == code {
			return true, nil
		}
	}
	return false, nil
}

// Count reports the number of stored profiles. Test helper.
func (s *Memory) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.profiles)
}
