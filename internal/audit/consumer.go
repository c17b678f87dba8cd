package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	rediscommon "wisefido-casebook/owl-common/redis"

	"go.uber.org/zap"
)

// Handler processes one decoded event. A non-nil error leaves the message pending.
type Handler func(ctx context.Context, ev CaseEvent) error

// ConsumerConfig 消费者组参数
type ConsumerConfig struct {
	Stream    string
	Group     string
	Consumer  string
	BatchSize int64
	Block     time.Duration
}

// Consumer 病例事件消费者（Redis Streams 消费者组）
type Consumer struct {
	client  *rediscommon.Client
	cfg     ConsumerConfig
	handler Handler
	logger  *zap.Logger
}

func NewConsumer(client *rediscommon.Client, cfg ConsumerConfig, handler Handler, logger *zap.Logger) *Consumer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.Block <= 0 {
		cfg.Block = 2 * time.Second
	}
	return &Consumer{client: client, cfg: cfg, handler: handler, logger: logger}
}

// LogHandler writes each event to the structured log.
func LogHandler(logger *zap.Logger) Handler {
	return func(_ context.Context, ev CaseEvent) error {
		logger.Info("Case event",
			zap.String("event_type", string(ev.Type)),
			zap.String("case_history_id", ev.CaseHistoryID),
			zap.String("actor_id", ev.ActorID),
			zap.String("actor_role", ev.ActorRole.String()),
			zap.String("stage", string(ev.Stage)),
			zap.Time("occurred_at", ev.OccurredAt),
		)
		return nil
	}
}

// EnsureGroup creates the stream and consumer group if missing.
func (c *Consumer) EnsureGroup(ctx context.Context) error {
	if err := rediscommon.CreateConsumerGroup(ctx, c.client, c.cfg.Stream, c.cfg.Group); err != nil {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

// Run 创建消费者组并持续消费，直到 ctx 取消
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.EnsureGroup(ctx); err != nil {
		return err
	}
	c.logger.Info("Audit consumer started",
		zap.String("stream", c.cfg.Stream),
		zap.String("group", c.cfg.Group),
		zap.String("consumer", c.cfg.Consumer),
	)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Audit consumer stopped")
			return nil
		default:
		}
		if _, err := c.ProcessOnce(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			c.logger.Error("Failed to read case events", zap.Error(err))
			// 出错后稍等再读，避免空转
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
		}
	}
}

// ProcessOnce reads one batch and returns how many messages were acknowledged.
// Undecodable messages are acknowledged and dropped.
func (c *Consumer) ProcessOnce(ctx context.Context) (int, error) {
	msgs, err := rediscommon.ReadFromStream(ctx, c.client, c.cfg.Stream, c.cfg.Group, c.cfg.Consumer, c.cfg.BatchSize, c.cfg.Block)
	if err != nil {
		return 0, err
	}

	acked := 0
	for _, msg := range msgs {
		ev, err := decodeEvent(msg.Values)
		if err != nil {
			c.logger.Warn("Dropping malformed case event",
				zap.String("message_id", msg.ID),
				zap.Error(err),
			)
		} else if err := c.handler(ctx, ev); err != nil {
			c.logger.Error("Failed to handle case event",
				zap.String("message_id", msg.ID),
				zap.String("event_type", string(ev.Type)),
				zap.Error(err),
			)
			continue
		}
		if err := rediscommon.Ack(ctx, c.client, c.cfg.Stream, c.cfg.Group, msg.ID); err != nil {
			return acked, fmt.Errorf("failed to ack %s: %w", msg.ID, err)
		}
		acked++
	}
	return acked, nil
}

func decodeEvent(values map[string]interface{}) (CaseEvent, error) {
	var ev CaseEvent
	raw, ok := values["data"].(string)
	if !ok {
		return ev, fmt.Errorf("missing data field")
	}
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		return ev, fmt.Errorf("invalid event json: %w", err)
	}
	if ev.Type == "" || ev.CaseHistoryID == "" {
		return ev, fmt.Errorf("incomplete event")
	}
	return ev, nil
}
