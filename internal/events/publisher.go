package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultStream is where run events go unless configured otherwise.
const DefaultStream = "stream:coin_collection"

// EventType represents the type of event
type EventType string

const (
	EventTypeRunStarted    EventType = "RUN_STARTED"
	EventTypeAttemptFailed EventType = "ATTEMPT_FAILED"
	EventTypeRunCompleted  EventType = "RUN_COMPLETED"
)

// Event is one run lifecycle notification.
type Event struct {
	ID        string         `json:"event_id"`
	Type      EventType      `json:"event_type"`
	RunID     string         `json:"run_id"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// Publisher delivers run events somewhere outside the process.
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
}

// RedisClient is the part of the go-redis client the publisher uses.
type RedisClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
	Close() error
}

// StreamPublisher appends events to a Redis stream.
type StreamPublisher struct {
	redis  RedisClient
	stream string
	maxLen int64
	logger *slog.Logger
}

func NewStreamPublisher(client RedisClient, stream string, logger *slog.Logger) *StreamPublisher {
	if stream == "" {
		stream = DefaultStream
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamPublisher{
		redis:  client,
		stream: stream,
		maxLen: 10000,
		logger: logger.With("component", "event_publisher"),
	}
}

func (p *StreamPublisher) Publish(ctx context.Context, event *Event) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"data":      string(data),
			"type":      string(event.Type),
			"event_id":  event.ID,
			"run_id":    event.RunID,
			"timestamp": fmt.Sprintf("%d", event.Timestamp.UnixNano()),
			"source":    "coin-collector",
		},
	}

	id, err := p.redis.XAdd(ctx, args).Result()
	if err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}

	p.logger.Debug("event published",
		"type", event.Type,
		"event_id", event.ID,
		"run_id", event.RunID,
		"stream_id", id)

	return nil
}

func (p *StreamPublisher) Close() error {
	return p.redis.Close()
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, event *Event) error {
	return nil
}
