// Package audit publishes case lifecycle events to a Redis stream and consumes them.
package audit

import (
	"context"
	"fmt"
	"time"

	"wisefido-casebook/internal/domain"
	rediscommon "wisefido-casebook/owl-common/redis"

	"go.uber.org/zap"
)

// CaseEvent 病例生命周期事件（不含任何临床文本）
type CaseEvent struct {
	Type          domain.LifecycleEvent `json:"type"`
	CaseHistoryID string                `json:"caseHistoryId"`
	ActorID       string                `json:"actorId"`
	ActorRole     domain.Role           `json:"actorRole"`
	Stage         domain.CaseStage      `json:"stage"`
	OccurredAt    time.Time             `json:"occurredAt"`
}

// Publisher is best-effort: the record write has already committed when Publish runs.
type Publisher interface {
	Publish(ctx context.Context, ev CaseEvent) error
}

// StreamPublisher Redis Streams 实现
type StreamPublisher struct {
	client *rediscommon.Client
	stream string
	maxLen int64
	logger *zap.Logger
}

func NewStreamPublisher(client *rediscommon.Client, stream string, maxLen int64, logger *zap.Logger) *StreamPublisher {
	return &StreamPublisher{client: client, stream: stream, maxLen: maxLen, logger: logger}
}

func (p *StreamPublisher) Publish(ctx context.Context, ev CaseEvent) error {
	id, err := rediscommon.PublishJSONToStream(ctx, p.client, p.stream, p.maxLen, ev)
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", ev.Type, err)
	}
	p.logger.Debug("Case event published",
		zap.String("stream", p.stream),
		zap.String("message_id", id),
		zap.String("event_type", string(ev.Type)),
		zap.String("case_history_id", ev.CaseHistoryID),
	)
	return nil
}

// NopPublisher is used when Redis is disabled or unreachable.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, CaseEvent) error { return nil }
