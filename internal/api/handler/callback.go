package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/cuongbtq/photo-relay/internal/correlation"
	"github.com/cuongbtq/photo-relay/internal/events"
	"github.com/gin-gonic/gin"
)

// callbackPayload is the normalized form of one result delivery, whichever
// content type it arrived in.
type callbackPayload struct {
	JobID string
	Image []byte
}

// HandleCallback handles POST /webhook/photo
//
// The upstream API delivers results as either multipart/form-data (the file
// in a file part) or JSON (the file base64-encoded). Deliveries are
// at-least-once: an unknown or already-consumed job id is acknowledged with
// 200 so the sender stops retrying, never errored.
func (h *CallbackHandler) HandleCallback(c *gin.Context) {
	contentType := c.GetHeader("Content-Type")
	h.logger.Debug("Callback received",
		slog.String("content_type", contentType),
	)

	payload, errReason := h.parsePayload(c, contentType)
	if errReason != "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"ok":    false,
			"error": errReason,
		})
		return
	}

	destination, err := h.store.ResolveAndRemove(c.Request.Context(), payload.JobID)
	if err != nil {
		if errors.Is(err, correlation.ErrNotFound) {
			// Retried or expired delivery. Acknowledge so the sender stops.
			h.logger.Info("Callback for unknown job id ignored",
				slog.String("job_id", payload.JobID),
			)
			c.JSON(http.StatusOK, gin.H{
				"ok":      true,
				"ignored": true,
				"reason":  "unknown id_gen",
			})
			return
		}

		h.logger.Error("Failed to resolve job id",
			slog.String("job_id", payload.JobID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"ok":    false,
			"error": "failed to resolve job",
		})
		return
	}

	// The record is already retired: a delivery failure here is terminal
	// for this job. Logged, not retried.
	if err := h.transport.SendPhoto(c.Request.Context(), destination, payload.Image, ""); err != nil {
		h.logger.Error("Failed to deliver result",
			slog.String("job_id", payload.JobID),
			slog.String("destination", destination),
			slog.String("error", err.Error()),
		)
		h.publishEvent(c.Request.Context(), events.TypeJobDeliveryFailed, payload.JobID, destination)
	} else {
		h.logger.Info("Result delivered",
			slog.String("job_id", payload.JobID),
			slog.String("destination", destination),
			slog.Int("bytes", len(payload.Image)),
		)
		h.publishEvent(c.Request.Context(), events.TypeJobDelivered, payload.JobID, destination)
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *CallbackHandler) publishEvent(ctx context.Context, eventType, jobID, destination string) {
	err := h.events.Publish(ctx, events.Event{
		Type:        eventType,
		JobID:       jobID,
		Destination: destination,
	})
	if err != nil {
		h.logger.Warn("Failed to publish lifecycle event",
			slog.String("type", eventType),
			slog.String("error", err.Error()),
		)
	}
}

// parsePayload normalizes the request body into a callbackPayload. Returns
// a non-empty reason string when the request is malformed; validation stops
// at the first failure and mutates nothing.
func (h *CallbackHandler) parsePayload(c *gin.Context, contentType string) (callbackPayload, string) {
	switch {
	case strings.Contains(contentType, "application/json"):
		return h.parseJSON(c)
	case strings.Contains(contentType, "multipart/form-data"):
		return h.parseMultipart(c)
	default:
		return callbackPayload{}, "unsupported content type"
	}
}

func (h *CallbackHandler) parseJSON(c *gin.Context) (callbackPayload, string) {
	var body map[string]json.RawMessage
	if err := c.ShouldBindJSON(&body); err != nil {
		return callbackPayload{}, "invalid json body"
	}

	var jobID string
	if raw, ok := body[h.config.IDField]; ok {
		if err := json.Unmarshal(raw, &jobID); err != nil || jobID == "" {
			return callbackPayload{}, "missing id"
		}
	} else {
		return callbackPayload{}, "missing id"
	}

	raw, ok := body[h.config.FileField]
	if !ok {
		return callbackPayload{}, "missing file"
	}

	var encoded string
	if err := json.Unmarshal(raw, &encoded); err != nil || encoded == "" {
		return callbackPayload{}, "missing file"
	}

	image, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return callbackPayload{}, "invalid file encoding"
	}

	return callbackPayload{JobID: jobID, Image: image}, ""
}

func (h *CallbackHandler) parseMultipart(c *gin.Context) (callbackPayload, string) {
	if err := c.Request.ParseMultipartForm(h.config.MaxMultipartMemory); err != nil {
		return callbackPayload{}, "invalid multipart body"
	}

	jobID := c.Request.FormValue(h.config.IDField)
	if jobID == "" {
		return callbackPayload{}, "missing id"
	}

	file, _, err := c.Request.FormFile(h.config.FileField)
	if err != nil {
		return callbackPayload{}, "missing file"
	}
	defer file.Close()

	image, err := io.ReadAll(file)
	if err != nil {
		return callbackPayload{}, "unreadable file"
	}

	return callbackPayload{JobID: jobID, Image: image}, ""
}
