// Package chat defines the boundary to the chat client the relay serves.
// The core never talks a concrete chat protocol; it only depends on this
// capability surface, and a driver (Telegram, test double, ...) implements
// it.
package chat

import "context"

// Invoice describes a purchasable credit pack shown to the user in-chat.
type Invoice struct {
	PackID      string
	Title       string
	Description string
	// Price is in the payment provider's smallest unit.
	Price int
}

// Transport is the outbound capability surface of the chat client.
type Transport interface {
	// SendText delivers a plain text message to a destination.
	SendText(ctx context.Context, destination, text string) error

	// SendPhoto delivers image bytes with an optional caption.
	SendPhoto(ctx context.Context, destination string, photo []byte, caption string) error

	// SendInvoice asks the chat client to present a payment prompt.
	SendInvoice(ctx context.Context, destination string, invoice Invoice) error
}

// Event is one inbound occurrence from the chat client. Exactly one of the
// payload fields matching Kind is set.
type Event struct {
	Kind        EventKind
	Destination string
	// Photo holds the image bytes for EventPhoto.
	Photo []byte
	// Command holds the command name for EventCommand, without the leading
	// slash.
	Command string
	// PackID holds the purchased pack for EventPaymentCompleted.
	PackID string
}

// EventKind discriminates inbound chat events.
type EventKind int

const (
	EventPhoto EventKind = iota
	EventCommand
	EventPaymentCompleted
)
