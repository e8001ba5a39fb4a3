// Package bot wires inbound chat events to the relay core: photos become
// job submissions, commands query or top up the credit balance, and
// completed payments credit their pack.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cuongbtq/photo-relay/internal/chat"
	"github.com/cuongbtq/photo-relay/internal/credits"
	"github.com/cuongbtq/photo-relay/internal/events"
	"github.com/cuongbtq/photo-relay/internal/ledger"
	"github.com/cuongbtq/photo-relay/internal/submitter"
	"github.com/google/uuid"
)

// user-visible replies
const (
	replyAccepted            = "Got it! Your photo is processing, the result will arrive here shortly."
	replyInsufficientCredits = "You're out of credits. Use /buy to top up."
	replyUpstreamFailure     = "The processing service rejected your photo. Your credit was refunded."
	replyGenericFailure      = "Something went wrong, your credit was not charged. Please try again."
	replyUsage               = "Send me a photo to process it. Commands: /balance, /buy"
)

// ErrQueueFull is returned by Dispatch when the event queue is saturated
var ErrQueueFull = errors.New("event queue full")

// Config holds bot configuration
type Config struct {
	Logger    *slog.Logger
	Transport chat.Transport
	Submitter *submitter.Submitter
	Ledger    ledger.Ledger
	Catalog   *credits.Catalog
	// Events may be nil; lifecycle events are then discarded.
	Events events.Publisher
	// Concurrency is the number of event workers.
	Concurrency int
	// QueueSize bounds the inbound event buffer.
	QueueSize int
}

// Bot consumes chat events through a bounded worker pool so one slow
// upstream call cannot stall the rest of the conversation.
type Bot struct {
	logger      *slog.Logger
	transport   chat.Transport
	submitter   *submitter.Submitter
	ledger      ledger.Ledger
	catalog     *credits.Catalog
	events      events.Publisher
	botID       string
	concurrency int
	eventsChan  chan chat.Event
	wg          sync.WaitGroup
	stopOnce    sync.Once
}

// New creates a Bot. Start must be called before Dispatch.
func New(cfg *Config) *Bot {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 64
	}

	publisher := cfg.Events
	if publisher == nil {
		publisher = events.NopPublisher{}
	}

	return &Bot{
		logger:      cfg.Logger,
		transport:   cfg.Transport,
		submitter:   cfg.Submitter,
		ledger:      cfg.Ledger,
		catalog:     cfg.Catalog,
		events:      publisher,
		botID:       uuid.New().String(),
		concurrency: concurrency,
		eventsChan:  make(chan chat.Event, queueSize),
	}
}

// Dispatch enqueues one inbound chat event for processing.
func (b *Bot) Dispatch(event chat.Event) error {
	select {
	case b.eventsChan <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

// handleEvent processes one inbound chat event.
func (b *Bot) handleEvent(ctx context.Context, event chat.Event) {
	switch event.Kind {
	case chat.EventPhoto:
		b.handlePhoto(ctx, event)
	case chat.EventCommand:
		b.handleCommand(ctx, event)
	case chat.EventPaymentCompleted:
		b.handlePayment(ctx, event)
	default:
		b.logger.Warn("Unknown chat event kind",
			slog.Int("kind", int(event.Kind)),
		)
	}
}

// handlePhoto submits the photo as a job. Submission failures are surfaced
// to the user as a chat message; nothing else in the core reports back to
// them until the result callback arrives.
func (b *Bot) handlePhoto(ctx context.Context, event chat.Event) {
	handle, err := b.submitter.Submit(ctx, event.Photo, event.Destination, event.Destination)
	if err != nil {
		b.logger.Error("Photo submission failed",
			slog.String("destination", event.Destination),
			slog.String("error", err.Error()),
		)
		b.reply(ctx, event.Destination, submissionFailureReply(err))
		return
	}

	b.publishEvent(ctx, events.Event{
		Type:        events.TypeJobSubmitted,
		JobID:       handle.JobID,
		UserID:      event.Destination,
		Destination: handle.Destination,
	})

	b.reply(ctx, event.Destination, replyAccepted)
}

func (b *Bot) handleCommand(ctx context.Context, event chat.Event) {
	switch event.Command {
	case "balance":
		balance, err := b.ledger.Balance(ctx, event.Destination)
		if err != nil {
			b.logger.Error("Balance lookup failed",
				slog.String("destination", event.Destination),
				slog.String("error", err.Error()),
			)
			b.reply(ctx, event.Destination, replyGenericFailure)
			return
		}
		b.reply(ctx, event.Destination, fmt.Sprintf("You have %d credit(s).", balance))

	case "buy":
		for _, pack := range b.catalog.Packs() {
			invoice := chat.Invoice{
				PackID:      pack.PackID,
				Title:       pack.Title,
				Description: fmt.Sprintf("%d credit(s)", pack.Credits),
				Price:       pack.Price,
			}
			if err := b.transport.SendInvoice(ctx, event.Destination, invoice); err != nil {
				b.logger.Error("Failed to send invoice",
					slog.String("destination", event.Destination),
					slog.String("pack_id", pack.PackID),
					slog.String("error", err.Error()),
				)
			}
		}

	default:
		b.reply(ctx, event.Destination, replyUsage)
	}
}

func (b *Bot) handlePayment(ctx context.Context, event chat.Event) {
	balance, err := b.catalog.ApplyPurchase(ctx, event.Destination, event.PackID)
	if err != nil {
		b.logger.Error("Failed to apply purchase",
			slog.String("destination", event.Destination),
			slog.String("pack_id", event.PackID),
			slog.String("error", err.Error()),
		)
		b.reply(ctx, event.Destination, replyGenericFailure)
		return
	}

	b.publishEvent(ctx, events.Event{
		Type:   events.TypeCreditsPurchased,
		UserID: event.Destination,
	})

	b.reply(ctx, event.Destination, fmt.Sprintf("Payment received! You now have %d credit(s).", balance))
}

func (b *Bot) reply(ctx context.Context, destination, text string) {
	if err := b.transport.SendText(ctx, destination, text); err != nil {
		b.logger.Error("Failed to send reply",
			slog.String("destination", destination),
			slog.String("error", err.Error()),
		)
	}
}

func (b *Bot) publishEvent(ctx context.Context, event events.Event) {
	if err := b.events.Publish(ctx, event); err != nil {
		b.logger.Warn("Failed to publish lifecycle event",
			slog.String("type", event.Type),
			slog.String("error", err.Error()),
		)
	}
}

// submissionFailureReply maps a submission error to the message shown to
// the user. Internal failures stay generic.
func submissionFailureReply(err error) string {
	var upErr *submitter.UpstreamError

	switch {
	case errors.Is(err, ledger.ErrInsufficientCredits):
		return replyInsufficientCredits
	case errors.As(err, &upErr):
		return replyUpstreamFailure
	default:
		return replyGenericFailure
	}
}
