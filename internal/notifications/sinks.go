package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/labstore-backend/pkg/logger"
)

// LogSink writes each event as a structured log line.
type LogSink struct {
	Logger *logger.Logger
}

func (LogSink) Name() string { return "log" }

func (s LogSink) Deliver(ctx context.Context, event Event) error {
	logCtx := s.Logger.WithFields(ctx, map[string]any{
		"event_id":    event.ID.String(),
		"event_type":  event.Type,
		"key":         event.Key,
		"occurred_at": event.OccurredAt.Format(time.RFC3339Nano),
		"payload":     event.Payload,
	})
	s.Logger.Info(logCtx, "notification.logged")
	return nil
}

type publisher interface {
	Publish(ctx context.Context, msg *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(ctx context.Context) (string, error)
}

// PubSubSink publishes events to a Pub/Sub topic and waits for the server ack.
type PubSubSink struct {
	publisher publisher
}

// NewPubSubSink wraps a topic publisher.
func NewPubSubSink(p *gcppubsub.Publisher) (*PubSubSink, error) {
	if p == nil {
		return nil, fmt.Errorf("pubsub publisher required")
	}
	return &PubSubSink{publisher: &gcpPublisher{Publisher: p}}, nil
}

func (*PubSubSink) Name() string { return "pubsub" }

func (s *PubSubSink) Deliver(ctx context.Context, event Event) error {
	data, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", event.Type, err)
	}
	msg := &gcppubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"event_id":    event.ID.String(),
			"event_type":  string(event.Type),
			"key":         event.Key,
			"occurred_at": event.OccurredAt.Format(time.RFC3339Nano),
		},
	}
	result := s.publisher.Publish(ctx, msg)
	if result == nil {
		return errors.New("publisher returned no result")
	}
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return p.Publisher.Publish(ctx, msg)
}
