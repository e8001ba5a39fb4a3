// Package events publishes job lifecycle events for external audit
// consumers. Publishing is fire-and-forget from the relay's point of view:
// a failed publish is logged and never fails the operation that produced
// the event.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/photo-relay/shared/rabbitmq"
)

// Event types emitted by the relay
const (
	TypeJobSubmitted      = "job.submitted"
	TypeJobDelivered      = "job.delivered"
	TypeJobDeliveryFailed = "job.delivery_failed"
	TypeCreditsPurchased  = "credits.purchased"
)

// Event is one job lifecycle occurrence.
type Event struct {
	Type        string    `json:"type"`
	JobID       string    `json:"job_id,omitempty"`
	UserID      string    `json:"user_id,omitempty"`
	Destination string    `json:"destination,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Publisher emits lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// RabbitPublisher publishes events to a RabbitMQ exchange.
type RabbitPublisher struct {
	client *rabbitmq.Client
	logger *slog.Logger
}

// NewRabbitPublisher creates a Publisher backed by RabbitMQ.
func NewRabbitPublisher(client *rabbitmq.Client, logger *slog.Logger) *RabbitPublisher {
	return &RabbitPublisher{
		client: client,
		logger: logger,
	}
}

func (p *RabbitPublisher) Publish(ctx context.Context, event Event) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.client.PublishWithRetry(ctx, body, "application/json"); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug("Lifecycle event published",
		slog.String("type", event.Type),
		slog.String("job_id", event.JobID),
	)

	return nil
}

// NopPublisher discards all events. Used when event publishing is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error {
	return nil
}
