// Package submitter starts photo jobs against the external transformation
// API. A submission registers the job id in the correlation store and debits
// one credit before the upstream call; both are rolled back when the call
// fails, so a failed submission leaves no trace.
package submitter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/cuongbtq/photo-relay/internal/correlation"
	"github.com/cuongbtq/photo-relay/internal/ledger"
)

const (
	// maxRegisterAttempts bounds id regeneration on collision
	maxRegisterAttempts = 5

	// maxBodyExcerpt caps how much of an upstream error body is kept
	maxBodyExcerpt = 512

	// idFormField and webhookFormField are the form keys the upstream API
	// echoes back in its callback
	idFormField      = "id_gen"
	webhookFormField = "webhook"
)

// Config holds upstream API configuration
type Config struct {
	// URL is the job-start endpoint.
	URL string
	// CallbackURL is where the upstream delivers results.
	CallbackURL string
	// FileField is the multipart field name for the photo.
	FileField string
	// AuthHeaderName and AuthHeaderValue form an optional static auth
	// header; attached only when the name is non-empty.
	AuthHeaderName  string
	AuthHeaderValue string
	// Timeout bounds the start call.
	Timeout time.Duration
}

// JobHandle identifies an accepted submission. Delivery happens later,
// asynchronously, through the callback receiver.
type JobHandle struct {
	JobID       string
	Destination string
}

// Submitter issues job-start requests to the external API.
type Submitter struct {
	store  correlation.Store
	ledger ledger.Ledger
	config *Config
	client *http.Client
	logger *slog.Logger
	idGen  idGenerator
}

// New creates a Submitter. The HTTP client carries the configured timeout so
// a hung upstream cannot stall the submission path indefinitely.
func New(store correlation.Store, l ledger.Ledger, config *Config, logger *slog.Logger) *Submitter {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Submitter{
		store:  store,
		ledger: l,
		config: config,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Submit starts one photo job for userID, to be delivered at destination.
// Returns ledger.ErrInsufficientCredits, ErrIDGenerationExhausted, or an
// *UpstreamError on failure. On any failure the balance and the correlation
// store are left as they were before the call.
func (s *Submitter) Submit(ctx context.Context, photo []byte, userID, destination string) (*JobHandle, error) {
	// Cheap precheck so a broke user never causes an upstream call. The
	// authoritative check is the atomic debit below.
	balance, err := s.ledger.Balance(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check balance: %w", err)
	}
	if balance <= 0 {
		return nil, ledger.ErrInsufficientCredits
	}

	jobID, err := s.registerJob(ctx, destination)
	if err != nil {
		return nil, err
	}

	if err := s.ledger.Debit(ctx, userID, 1); err != nil {
		s.removeRegistration(ctx, jobID)
		return nil, err
	}

	if err := s.startUpstreamJob(ctx, jobID, photo); err != nil {
		s.removeRegistration(ctx, jobID)
		s.refund(ctx, userID)
		return nil, err
	}

	s.logger.Info("Job submitted",
		slog.String("job_id", jobID),
		slog.String("user_id", userID),
		slog.String("destination", destination),
	)

	return &JobHandle{JobID: jobID, Destination: destination}, nil
}

// registerJob generates a job id and registers it, regenerating on the
// unlikely collision with a live record.
func (s *Submitter) registerJob(ctx context.Context, destination string) (string, error) {
	for attempt := 0; attempt < maxRegisterAttempts; attempt++ {
		jobID := s.idGen.next(destination)

		err := s.store.Register(ctx, jobID, destination)
		if err == nil {
			return jobID, nil
		}
		if !errors.Is(err, correlation.ErrAlreadyExists) {
			return "", fmt.Errorf("failed to register job: %w", err)
		}

		s.logger.Warn("Job id collision, regenerating",
			slog.String("job_id", jobID),
			slog.Int("attempt", attempt+1),
		)
	}

	return "", ErrIDGenerationExhausted
}

// startUpstreamJob POSTs the photo to the job-start endpoint as multipart
// form data carrying the job id and the callback URL.
func (s *Submitter) startUpstreamJob(ctx context.Context, jobID string, photo []byte) error {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile(s.config.FileField, "photo.jpg")
	if err != nil {
		return fmt.Errorf("failed to build multipart body: %w", err)
	}
	if _, err := part.Write(photo); err != nil {
		return fmt.Errorf("failed to write photo field: %w", err)
	}
	if err := writer.WriteField(idFormField, jobID); err != nil {
		return fmt.Errorf("failed to write id field: %w", err)
	}
	if err := writer.WriteField(webhookFormField, s.config.CallbackURL); err != nil {
		return fmt.Errorf("failed to write webhook field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.URL, &body)
	if err != nil {
		return fmt.Errorf("failed to build upstream request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if s.config.AuthHeaderName != "" {
		req.Header.Set(s.config.AuthHeaderName, s.config.AuthHeaderValue)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return &UpstreamError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyExcerpt))
		return &UpstreamError{Status: resp.StatusCode, Body: string(excerpt)}
	}

	return nil
}

func (s *Submitter) removeRegistration(ctx context.Context, jobID string) {
	if err := s.store.Remove(ctx, jobID); err != nil {
		s.logger.Error("Failed to roll back job registration",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Submitter) refund(ctx context.Context, userID string) {
	if _, err := s.ledger.Credit(ctx, userID, 1); err != nil {
		s.logger.Error("Failed to refund credit",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}
