package requester

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrValidation is returned when the server rejects the prompt (HTTP 400).
	ErrValidation = errors.New("request rejected")
	// ErrFailed covers every other non-2xx answer.
	ErrFailed = errors.New("failed to generate a response")
)

const maxReplyBytes = 1 << 20

// ValidationError carries the server's per-field messages.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(e.Fields[k], ", "))
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Requester owns one conversation with the chat server. The conversation id is fixed
// for the lifetime of the value.
type Requester struct {
	baseURL        string
	httpClient     *http.Client
	logger         *zap.SugaredLogger
	conversationID string
}

func New(baseURL string, httpClient *http.Client, logger *zap.SugaredLogger) *Requester {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Requester{
		baseURL:        strings.TrimRight(baseURL, "/"),
		httpClient:     httpClient,
		logger:         logger,
		conversationID: uuid.NewString(),
	}
}

func (r *Requester) ConversationID() string { return r.conversationID }

// RunOnce sends one prompt and returns the bot's reply.
func (r *Requester) RunOnce(ctx context.Context, text string) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"prompt":         text,
		"conversationId": r.conversationID,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	r.logger.Debugw("Sending prompt", "conversation_id", r.conversationID, "length", len(text))
	start := time.Now()
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrFailed, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return "", fmt.Errorf("%w: read reply: %w", ErrFailed, err)
	}
	r.logger.Debugw("Reply received", "status", resp.StatusCode, "duration", time.Since(start).String())

	switch {
	case resp.StatusCode == http.StatusBadRequest:
		var body struct {
			Errors map[string][]string `json:"errors"`
		}
		if err := json.Unmarshal(raw, &body); err != nil || len(body.Errors) == 0 {
			return "", ErrValidation
		}
		return "", &ValidationError{Fields: body.Errors}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return "", fmt.Errorf("%w: status %d", ErrFailed, resp.StatusCode)
	}

	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return "", fmt.Errorf("%w: decode reply: %w", ErrFailed, err)
	}
	return body.Message, nil
}
