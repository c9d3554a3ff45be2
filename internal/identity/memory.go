package identity

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	dErrors "citizenly/pkg/domain-errors"
	"citizenly/pkg/platform/sentinel"
)

// minPasswordLength is the provider-side strength policy. The orchestrator
// delegates password rules here rather than duplicating them.
const minPasswordLength = 8

type memoryRecord struct {
	identity     Identity
	passwordHash []byte

	// visibleAt and lookupsRemaining model replication lag: FindByID misses
	// until the configured delay elapses and the configured number of
	// lookups has been consumed.
	visibleAt        time.Time
	lookupsRemaining int
}

// Memory is an in-memory Provider for dev mode and tests. Replication lag is
// configurable so the visibility wait can be exercised deterministically.
type Memory struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]*memoryRecord
	byEmail map[string]uuid.UUID

	visibilityDelay time.Duration
	lagLookups      int
}

// MemoryOption configures the in-memory provider.
type MemoryOption func(*Memory)

// WithVisibilityDelay makes created identities invisible to FindByID for d.
func WithVisibilityDelay(d time.Duration) MemoryOption {
	return func(m *Memory) { m.visibilityDelay = d }
}

// WithLagLookups makes created identities miss the first n FindByID calls.
func WithLagLookups(n int) MemoryOption {
	return func(m *Memory) { m.lagLookups = n }
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		byID:    make(map[uuid.UUID]*memoryRecord),
		byEmail: make(map[string]uuid.UUID),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) Create(ctx context.Context, email, password string) (*Identity, error) {
	if len(password) < minPasswordLength {
		return nil, dErrors.New(dErrors.CodeValidation, "password does not meet the minimum strength policy").
			WithField("password", "must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := strings.ToLower(email)
	if _, exists := m.byEmail[key]; exists {
		return nil, sentinel.ErrConflict
	}

	rec := &memoryRecord{
		identity: Identity{
			ID:        uuid.New(),
			Email:     key,
			CreatedAt: time.Now().UTC(),
		},
		passwordHash:     hash,
		visibleAt:        time.Now().Add(m.visibilityDelay),
		lookupsRemaining: m.lagLookups,
	}
	m.byID[rec.identity.ID] = rec
	m.byEmail[key] = rec.identity.ID

	id := rec.identity
	return &id, nil
}

func (m *Memory) FindByID(ctx context.Context, id uuid.UUID) (*Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if rec.lookupsRemaining > 0 {
		rec.lookupsRemaining--
		return nil, sentinel.ErrNotFound
	}
	if time.Now().Before(rec.visibleAt) {
		return nil, sentinel.ErrNotFound
	}

	identity := rec.identity
	return &identity, nil
}

// VerifyPassword checks a credential against the stored hash. Not part of the
// Provider port; used by dev-mode login tooling.
func (m *Memory) VerifyPassword(email, password string) error {
	m.mu.Lock()
	id, ok := m.byEmail[strings.ToLower(email)]
	if !ok {
		m.mu.Unlock()
		return sentinel.ErrNotFound
	}
	hash := m.byID[id].passwordHash
	m.mu.Unlock()

	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return sentinel.ErrInvalidState
	}
	return nil
}
