package chat

import (
	"context"
	"log/slog"
)

// LoggingTransport is a Transport that only logs outbound sends. It stands
// in until a concrete chat driver is wired up, and doubles as a dry-run
// mode.
type LoggingTransport struct {
	logger *slog.Logger
}

// NewLoggingTransport creates a LoggingTransport.
func NewLoggingTransport(logger *slog.Logger) *LoggingTransport {
	return &LoggingTransport{logger: logger}
}

func (t *LoggingTransport) SendText(_ context.Context, destination, text string) error {
	t.logger.Info("chat: send text",
		slog.String("destination", destination),
		slog.String("text", text),
	)
	return nil
}

func (t *LoggingTransport) SendPhoto(_ context.Context, destination string, photo []byte, caption string) error {
	t.logger.Info("chat: send photo",
		slog.String("destination", destination),
		slog.Int("bytes", len(photo)),
		slog.String("caption", caption),
	)
	return nil
}

func (t *LoggingTransport) SendInvoice(_ context.Context, destination string, invoice Invoice) error {
	t.logger.Info("chat: send invoice",
		slog.String("destination", destination),
		slog.String("pack_id", invoice.PackID),
		slog.Int("price", invoice.Price),
	)
	return nil
}
