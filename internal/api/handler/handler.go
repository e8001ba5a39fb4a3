package handler

import (
	"log/slog"

	"github.com/cuongbtq/photo-relay/internal/chat"
	"github.com/cuongbtq/photo-relay/internal/correlation"
	"github.com/cuongbtq/photo-relay/internal/events"
)

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger    *slog.Logger
	Store     correlation.Store
	Transport chat.Transport
	// Events may be nil; lifecycle events are then discarded.
	Events   events.Publisher
	Callback *CallbackConfig
}

// CallbackConfig holds the field names the upstream API uses when it
// delivers a result
type CallbackConfig struct {
	// IDField is the form/JSON key carrying the job id.
	IDField string
	// FileField is the form key of the result file, or the JSON key of the
	// base64-encoded result.
	FileField string
	// MaxMultipartMemory bounds in-memory parsing of multipart bodies.
	MaxMultipartMemory int64
}

// CallbackHandler handles result deliveries from the upstream API
type CallbackHandler struct {
	logger    *slog.Logger
	store     correlation.Store
	transport chat.Transport
	events    events.Publisher
	config    CallbackConfig
}

// NewCallbackHandler creates a new CallbackHandler instance
func NewCallbackHandler(deps *Dependencies) *CallbackHandler {
	var cfg CallbackConfig
	if deps.Callback != nil {
		cfg = *deps.Callback
	}
	if cfg.IDField == "" {
		cfg.IDField = "id_gen"
	}
	if cfg.FileField == "" {
		cfg.FileField = "image"
	}
	if cfg.MaxMultipartMemory <= 0 {
		cfg.MaxMultipartMemory = 32 << 20
	}

	publisher := deps.Events
	if publisher == nil {
		publisher = events.NopPublisher{}
	}

	return &CallbackHandler{
		logger:    deps.Logger,
		store:     deps.Store,
		transport: deps.Transport,
		events:    publisher,
		config:    cfg,
	}
}
