package scheduler

import (
	"context"
	"errors"
	"time"

	"ChatWidget/internal/adapter/continuation"

	"go.uber.org/zap"
)

// Scheduler periodically removes expired continuation records from a Pruner.
type Scheduler struct {
	pruner   continuation.Pruner
	interval time.Duration
	logger   *zap.SugaredLogger

	// TickTimeout bounds one sweep.
	TickTimeout time.Duration
	// MaxConsecutiveErrors stops Run after that many failed sweeps in a row.
	MaxConsecutiveErrors int

	consecutiveErrors int // счётчик ошибок
}

func New(pruner continuation.Pruner, interval time.Duration, logger *zap.SugaredLogger) *Scheduler {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Scheduler{
		pruner:               pruner,
		interval:             interval,
		logger:               logger,
		TickTimeout:          30 * time.Second,
		MaxConsecutiveErrors: 5,
	}
}

// Run запускает цикл до отмены контекста или достижения лимита ошибок.
// Первый запуск выполняется по истечении первого интервала.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Infow("Sweeper started", "interval", s.interval.String())

	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}

		if err := s.runTick(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.consecutiveErrors++
			s.logger.Errorw("Sweep failed", "error", err, "consecutiveErrors", s.consecutiveErrors)
			if s.consecutiveErrors >= max(1, s.MaxConsecutiveErrors) {
				s.logger.Errorw("Stopping due to consecutive errors threshold", "threshold", s.MaxConsecutiveErrors)
				return err
			}
			continue
		}
		s.consecutiveErrors = 0
	}
}

func (s *Scheduler) runTick(parent context.Context) error {
	tickCtx, cancel := context.WithTimeoutCause(parent, s.TickTimeout, errors.New("sweep timeout"))
	defer cancel()

	start := time.Now()
	removed, err := s.pruner.Prune(tickCtx)
	if err != nil {
		return err
	}
	if removed > 0 {
		s.logger.Infow("Expired conversations removed", "count", removed, "duration", time.Since(start).String())
	} else {
		s.logger.Debugw("Sweep done", "duration", time.Since(start).String())
	}
	return nil
}
