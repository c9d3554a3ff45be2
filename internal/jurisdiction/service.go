// Package jurisdiction serves the advisory admin-status read path used by UI
// pre-flight hints. Reads here may be stale by up to the cache TTL; the
// authoritative check is the atomic reservation in the profile store, which
// this package never bypasses.
package jurisdiction

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"citizenly/pkg/requestcontext"
)

const cacheKeyPrefix = "jurisdiction:admin:"

// AdminChecker is the slice of the profile store this service reads.
type AdminChecker interface {
	JurisdictionAdminExists(ctx context.Context, code string) (bool, error)
}

// Service answers "does this jurisdiction already have an admin?" with a
// short-TTL Redis cache in front of the store. Cache failures degrade to
// store reads; they are logged, never surfaced.
type Service struct {
	profiles AdminChecker
	cache    *redis.Client
	ttl      time.Duration
	logger   *slog.Logger
}

func New(profiles AdminChecker, cache *redis.Client, ttl time.Duration, logger *slog.Logger) *Service {
	return &Service{profiles: profiles, cache: cache, ttl: ttl, logger: logger}
}

// AdminStatus reports whether the jurisdiction has an active admin.
func (s *Service) AdminStatus(ctx context.Context, code string) (bool, error) {
	if s.cache != nil {
		val, err := s.cache.Get(ctx, cacheKeyPrefix+code).Result()
		switch {
		case err == nil:
			return val == "1", nil
		case !errors.Is(err, redis.Nil):
			s.logger.WarnContext(ctx, "admin status cache read failed",
				"request_id", requestcontext.RequestID(ctx),
				"error", err.Error(),
			)
		}
	}

	exists, err := s.profiles.JurisdictionAdminExists(ctx, code)
	if err != nil {
		return false, err
	}

	if s.cache != nil {
		val := "0"
		if exists {
			val = "1"
		}
		if err := s.cache.Set(ctx, cacheKeyPrefix+code, val, s.ttl).Err(); err != nil {
			s.logger.WarnContext(ctx, "admin status cache write failed",
				"request_id", requestcontext.RequestID(ctx),
				"error", err.Error(),
			)
		}
	}
	return exists, nil
}

// Invalidate drops the cached status for a jurisdiction. Called after a
// successful admin registration so hints converge quickly; best-effort.
func (s *Service) Invalidate(ctx context.Context, code string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, cacheKeyPrefix+code).Err(); err != nil {
		s.logger.WarnContext(ctx, "admin status cache invalidation failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
	}
}
