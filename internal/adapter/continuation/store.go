package continuation

import (
	"context"
	"errors"
	"fmt"
	"io"

	"ChatWidget/internal/config"

	"go.uber.org/zap"
)

// ErrStore matches every I/O failure of a store backend.
var ErrStore = errors.New("continuation store failure")

// Store связывает идентификатор диалога с последним continuation token (id ответа провайдера).
// Get returns ok == false without an error when the conversation has no record: the caller
// starts a new conversation. Set always overwrites (last write wins).
type Store interface {
	Get(ctx context.Context, conversationID string) (responseID string, ok bool, err error)
	Set(ctx context.Context, conversationID, responseID string) error
}

// Backend is a Store that owns resources.
type Backend interface {
	Store
	io.Closer
}

// Pruner is implemented by backends that enforce ttl on read and keep expired records on
// disk until removed.
type Pruner interface {
	Prune(ctx context.Context) (removed int, err error)
}

// Open creates the backend selected in cfg.
func Open(ctx context.Context, cfg config.StoreConfig, logger *zap.SugaredLogger) (Backend, error) {
	var (
		b   Backend
		err error
	)
	switch cfg.Backend {
	case config.StoreMemory, "":
		b = NewMemoryStore()
	case config.StoreRedis:
		b, err = NewRedisStoreFromURL(ctx, cfg.RedisURL, cfg.TTL)
	case config.StoreBolt:
		b, err = NewBoltStore(cfg.BoltPath, cfg.TTL)
	case config.StoreSQLite:
		b, err = NewSQLiteStore(ctx, cfg.SQLitePath, cfg.TTL)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Backend, err)
	}
	logger.Infow("Continuation store opened", "backend", cfg.Backend, "ttl", cfg.TTL.String())
	return b, nil
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStore, op, err)
}
