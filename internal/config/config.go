package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Store backends
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreBolt   = "bolt"
	StoreSQLite = "sqlite"
)

// AI providers
const (
	ProviderOpenAI = "openai"
	ProviderStub   = "stub"
)

type Config struct {
	DebugMode bool   `env:"DEBUG_MODE"` // Development logger and verbose request logs
	BindAddr  string `env:"BIND_ADDR"`  // Address of the chat HTTP server, e.g. 127.0.0.1:3000

	AI    AIConfig
	Store StoreConfig

	// Terminal client
	ServerURL string `env:"CHAT_SERVER_URL"` // Base URL of the chat server used by cmd/chat
}

// AIConfig describes the upstream generation call. Model, temperature and output cap are
// fixed for every turn of every conversation.
type AIConfig struct {
	Provider        string        `env:"AI_PROVIDER"`       // openai|stub
	APIKey          string        `env:"OPENAI_API_KEY"`    // Required for the openai provider
	BaseURL         string        `env:"OPENAI_BASE_URL"`   // Optional API endpoint override
	Model           string        `env:"MODEL"`             // Model identifier
	Temperature     float64       `env:"TEMPERATURE"`       // Sampling temperature, low for near-deterministic replies
	MaxOutputTokens int64         `env:"MAX_OUTPUT_TOKENS"` // Upper bound of generated tokens
	Timeout         time.Duration `env:"UPSTREAM_TIMEOUT"`  // Deadline of one upstream call
}

// StoreConfig selects where continuation tokens live.
type StoreConfig struct {
	Backend    string        `env:"STORE_BACKEND"`    // memory|redis|bolt|sqlite
	RedisURL   string        `env:"REDIS_URL"`        // redis:// or rediss:// URL
	TTL        time.Duration `env:"CONVERSATION_TTL"` // Lifetime of a conversation after its last turn, 0 = forever
	BoltPath   string        `env:"BOLT_PATH"`        // bbolt database file
	SQLitePath string        `env:"SQLITE_PATH"`      // SQLite database file
	// Interval of the expired record sweep for bolt/sqlite, 0 disables it
	SweepInterval time.Duration `env:"SWEEP_INTERVAL"`
}

// Defaults возвращает конфигурацию с предустановленными значениями по умолчанию.
// Эти значения перекрываются .env, переменными окружения и флагами CLI.
func Defaults() *Config {
	return &Config{
		DebugMode: false,
		BindAddr:  "127.0.0.1:3000",
		AI: AIConfig{
			Provider:        ProviderOpenAI,
			Model:           "gpt-4o-mini",
			Temperature:     0.2,
			MaxOutputTokens: 100,
			Timeout:         30 * time.Second,
		},
		Store: StoreConfig{
			Backend:    StoreMemory,
			RedisURL:   "redis://localhost:6379/0",
			TTL:        24 * time.Hour,
			BoltPath:   "data/continuations.bolt",
			SQLitePath: "data/continuations.db",

			SweepInterval: 10 * time.Minute,
		},
		ServerURL: "http://127.0.0.1:3000",
	}
}

// Load builds the configuration from defaults, .env, the environment and args (in that order).
func Load(args []string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	fs := flag.NewFlagSet("chat", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.BoolVar(&cfg.DebugMode, "debug-mode", cfg.DebugMode, "enable development logging")
	fs.StringVar(&cfg.BindAddr, "bind-addr", cfg.BindAddr, "address of the chat HTTP server")
	fs.StringVar(&cfg.ServerURL, "server-url", cfg.ServerURL, "chat server base URL (terminal client)")
	// Upstream
	fs.StringVar(&cfg.AI.Provider, "ai-provider", cfg.AI.Provider, "generation provider: openai|stub")
	fs.StringVar(&cfg.AI.BaseURL, "openai-base-url", cfg.AI.BaseURL, "OpenAI API base URL override")
	fs.StringVar(&cfg.AI.Model, "model", cfg.AI.Model, "model identifier")
	fs.Float64Var(&cfg.AI.Temperature, "temperature", cfg.AI.Temperature, "sampling temperature")
	fs.Int64Var(&cfg.AI.MaxOutputTokens, "max-output-tokens", cfg.AI.MaxOutputTokens, "maximum output tokens per reply")
	fs.DurationVar(&cfg.AI.Timeout, "upstream-timeout", cfg.AI.Timeout, "deadline of one upstream call, e.g. 30s")
	// Store
	fs.StringVar(&cfg.Store.Backend, "store-backend", cfg.Store.Backend, "continuation store: memory|redis|bolt|sqlite")
	fs.StringVar(&cfg.Store.RedisURL, "redis-url", cfg.Store.RedisURL, "redis URL")
	fs.DurationVar(&cfg.Store.TTL, "conversation-ttl", cfg.Store.TTL, "conversation lifetime after the last turn, 0 = forever")
	fs.StringVar(&cfg.Store.BoltPath, "bolt-path", cfg.Store.BoltPath, "bbolt database file")
	fs.StringVar(&cfg.Store.SQLitePath, "sqlite-path", cfg.Store.SQLitePath, "SQLite database file")
	fs.DurationVar(&cfg.Store.SweepInterval, "sweep-interval", cfg.Store.SweepInterval, "expired record sweep interval, 0 = off")
	if err := parseFlags(fs, args); err != nil {
		return nil, err
	}

	cfg.AI.Provider = strings.ToLower(strings.TrimSpace(cfg.AI.Provider))
	cfg.Store.Backend = strings.ToLower(strings.TrimSpace(cfg.Store.Backend))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// usageOutput receives the flag list on -h.
var usageOutput io.Writer = os.Stderr

// parseFlags parses args with parse errors kept out of stderr. On -h/-help it prints the
// flag list and returns an error matching flag.ErrHelp.
func parseFlags(fs *flag.FlagSet, args []string) error {
	err := fs.Parse(args)
	if errors.Is(err, flag.ErrHelp) {
		fs.SetOutput(usageOutput)
		fmt.Fprintf(usageOutput, "Usage of %s:\n", fs.Name())
		fs.PrintDefaults()
		return err
	}
	if err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	return nil
}

// NewConfig загружает конфигурацию приложения из аргументов процесса.
func NewConfig(args []string) *Config {
	cfg, err := Load(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		panic(fmt.Errorf("config: %w", err))
	}
	return cfg
}

// Validate checks the values that cannot be fixed by a default.
func (c *Config) Validate() error {
	switch c.AI.Provider {
	case ProviderOpenAI:
		if strings.TrimSpace(c.AI.APIKey) == "" {
			return errors.New("OPENAI_API_KEY is required for the openai provider")
		}
	case ProviderStub:
	default:
		return fmt.Errorf("unknown ai provider %q", c.AI.Provider)
	}
	if c.AI.Model == "" {
		return errors.New("model is required")
	}
	if c.AI.Temperature < 0 || c.AI.Temperature > 2 {
		return fmt.Errorf("temperature %v out of range [0, 2]", c.AI.Temperature)
	}
	if c.AI.MaxOutputTokens <= 0 {
		return fmt.Errorf("max output tokens must be positive, got %d", c.AI.MaxOutputTokens)
	}
	if c.AI.Timeout <= 0 {
		return fmt.Errorf("upstream timeout must be positive, got %s", c.AI.Timeout)
	}

	switch c.Store.Backend {
	case StoreMemory:
	case StoreRedis:
		if c.Store.RedisURL == "" {
			return errors.New("redis url is required for the redis store")
		}
	case StoreBolt:
		if c.Store.BoltPath == "" {
			return errors.New("bolt path is required for the bolt store")
		}
	case StoreSQLite:
		if c.Store.SQLitePath == "" {
			return errors.New("sqlite path is required for the sqlite store")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Store.TTL < 0 {
		return fmt.Errorf("conversation ttl must not be negative, got %s", c.Store.TTL)
	}
	if c.Store.SweepInterval < 0 {
		return fmt.Errorf("sweep interval must not be negative, got %s", c.Store.SweepInterval)
	}
	return nil
}

// LoadClient loads the subset used by the terminal client. Upstream and store settings
// are parsed but not validated.
func LoadClient(args []string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	fs := flag.NewFlagSet("chat-client", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.BoolVar(&cfg.DebugMode, "debug-mode", cfg.DebugMode, "enable development logging")
	fs.StringVar(&cfg.ServerURL, "server-url", cfg.ServerURL, "chat server base URL")
	if err := parseFlags(fs, args); err != nil {
		return nil, err
	}

	cfg.ServerURL = strings.TrimSpace(cfg.ServerURL)
	if cfg.ServerURL == "" {
		return nil, errors.New("server url is required")
	}
	return cfg, nil
}
