package ai

import (
	"context"
	"errors"
	"fmt"
)

// ErrUpstream matches every failure of the upstream generation call.
var ErrUpstream = errors.New("upstream generation failure")

// GenerateRequest описывает один вызов генерации. PreviousResponseID пустой для первого хода диалога.
type GenerateRequest struct {
	Model              string
	Input              string
	Temperature        float64
	MaxOutputTokens    int64
	PreviousResponseID string
}

// Generation is a successful upstream outcome: the continuation token issued by the
// provider and the generated text.
type Generation struct {
	ResponseID string
	Text       string
}

// Generator интерфейс для генерации ответа. Все реализации должны быть взаимозаменяемыми.
// On failure the returned error matches ErrUpstream and the Generation is zero.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (Generation, error)
}

// UpstreamError carries the provider status (0 for transport errors) and the cause.
type UpstreamError struct {
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", ErrUpstream, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", ErrUpstream, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func (e *UpstreamError) Is(target error) bool { return target == ErrUpstream }
