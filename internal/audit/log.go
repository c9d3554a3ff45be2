package audit

import (
	"context"
	"log/slog"
	"time"
)

// LogPublisher writes audit events to the structured log. Used when Kafka is
// not configured (dev mode, tests).
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	p.logger.InfoContext(ctx, "audit event",
		"type", event.Type,
		"request_id", event.RequestID,
		"profile_id", event.ProfileID,
		"role_name", event.RoleName,
		"jurisdiction_code", event.JurisdictionCode,
		"error_code", event.ErrorCode,
		"client_ip", event.ClientIP,
		"device", event.Device,
	)
}

func (p *LogPublisher) Close() {}
