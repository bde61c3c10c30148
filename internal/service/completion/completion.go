package completion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ChatWidget/internal/adapter/continuation"
	"ChatWidget/internal/ai"
	"ChatWidget/internal/config"

	"go.uber.org/zap"
)

// Params: фиксированные параметры генерации, одинаковые для всех ходов.
type Params struct {
	Model           string
	Temperature     float64
	MaxOutputTokens int64
	Timeout         time.Duration // 0: без собственного дедлайна
}

// ParamsFromConfig copies the generation settings out of the AI config.
func ParamsFromConfig(cfg config.AIConfig) Params {
	return Params{
		Model:           cfg.Model,
		Temperature:     cfg.Temperature,
		MaxOutputTokens: cfg.MaxOutputTokens,
		Timeout:         cfg.Timeout,
	}
}

// Reply is the outcome of one turn.
type Reply struct {
	ResponseID string
	Message    string
}

// Service оркестрирует один ход диалога: continuation store -> провайдер -> continuation store.
type Service struct {
	store  continuation.Store
	gen    ai.Generator
	params Params
	logger *zap.SugaredLogger
	locks  *keyLocks
}

func New(store continuation.Store, gen ai.Generator, params Params, logger *zap.SugaredLogger) *Service {
	return &Service{
		store:  store,
		gen:    gen,
		params: params,
		logger: logger,
		locks:  newKeyLocks(),
	}
}

// SendMessage runs one turn of conversationID. Turns of the same conversation are applied
// one at a time in arrival order. When the upstream call fails the returned error matches
// ai.ErrUpstream and the stored continuation token is left as it was.
func (s *Service) SendMessage(ctx context.Context, prompt, conversationID string) (Reply, error) {
	unlock, err := s.locks.lock(ctx, conversationID)
	if err != nil {
		return Reply{}, fmt.Errorf("wait for conversation %s: %w", conversationID, err)
	}
	defer unlock()

	// Отсутствие записи означает первый ход диалога.
	prev, _, err := s.store.Get(ctx, conversationID)
	if err != nil {
		return Reply{}, fmt.Errorf("load continuation: %w", err)
	}

	genCtx := ctx
	if s.params.Timeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeoutCause(ctx, s.params.Timeout, errors.New("upstream timeout"))
		defer cancel()
	}

	start := time.Now()
	gen, err := s.gen.Generate(genCtx, ai.GenerateRequest{
		Model:              s.params.Model,
		Input:              prompt,
		Temperature:        s.params.Temperature,
		MaxOutputTokens:    s.params.MaxOutputTokens,
		PreviousResponseID: prev,
	})
	if err != nil {
		if !errors.Is(err, ai.ErrUpstream) {
			err = &ai.UpstreamError{Err: err}
		}
		s.logger.Errorw("Generation failed",
			"conversation_id", conversationID,
			"duration", time.Since(start).String(),
			"error", err,
		)
		return Reply{}, fmt.Errorf("generate reply: %w", err)
	}

	// Ответ уже получен: фиксируем токен даже если клиент успел отключиться.
	if err := s.store.Set(context.WithoutCancel(ctx), conversationID, gen.ResponseID); err != nil {
		return Reply{}, fmt.Errorf("save continuation: %w", err)
	}

	s.logger.Infow("Turn completed",
		"conversation_id", conversationID,
		"response_id", gen.ResponseID,
		"continued", prev != "",
		"duration", time.Since(start).String(),
	)
	return Reply{ResponseID: gen.ResponseID, Message: gen.Text}, nil
}
