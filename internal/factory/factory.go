package factory

import (
	"crypto/rand"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Merdeus/dndinventory/internal/api"
	"github.com/Merdeus/dndinventory/internal/dependencies/clock"
	"github.com/Merdeus/dndinventory/internal/dependencies/random"
	"github.com/Merdeus/dndinventory/internal/dispatch"
	"github.com/Merdeus/dndinventory/internal/metrics"
	"github.com/Merdeus/dndinventory/internal/services/broadcast"
	"github.com/Merdeus/dndinventory/internal/services/inventory"
	"github.com/Merdeus/dndinventory/internal/services/loot"
	"github.com/Merdeus/dndinventory/internal/services/session"
	"github.com/Merdeus/dndinventory/internal/services/tokens"
	"github.com/Merdeus/dndinventory/internal/storage"
	"github.com/Merdeus/dndinventory/internal/storage/memory"
	redisstorage "github.com/Merdeus/dndinventory/internal/storage/redis"
	"github.com/Merdeus/dndinventory/internal/stream"
)

// Storage type constants
const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
)

// secretSize is the length of a generated token secret
const secretSize = 32

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock   clock.Clock
	Random  random.Random
	Metrics *metrics.Metrics
	Logger  *slog.Logger

	// Services
	Codec      *tokens.Codec
	Registry   *session.Registry
	Router     *broadcast.Router
	Inventory  *inventory.Service
	Loot       *loot.Manager
	Dispatcher *dispatch.Dispatcher
	Streams    *stream.Server

	trustProxy bool
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory" or "redis")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// TokenSecret keys every token the server issues (optional)
	// If empty, a random secret is generated and tokens do not survive a restart
	TokenSecret []byte
	// CredentialTTL is how long a resume credential stays valid
	// If zero, defaults to tokens.DefaultCredentialTTL
	CredentialTTL time.Duration
	// SessionConfig, InventoryConfig and StreamConfig fall back to their
	// package defaults field by field
	SessionConfig   session.Config
	InventoryConfig inventory.Config
	StreamConfig    stream.Config
	// LootPolicy decides when the VOTE phase completes
	LootPolicy loot.CompletionPolicy
	// TrustProxy takes the client address from X-Forwarded-For
	TrustProxy bool
}

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	// Create storage based on type
	var store storage.Storage
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		store = memory.New()
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisStore, err := redisstorage.New(*cfg.RedisConfig)
		if err != nil {
			return nil, err
		}
		store = redisStore
	default:
		return nil, errors.New("invalid StorageType: must be 'memory' or 'redis'")
	}

	secret := cfg.TokenSecret
	if len(secret) == 0 {
		secret = make([]byte, secretSize)
		if _, err := rand.Read(secret); err != nil {
			return nil, err
		}
		logger.Warn("no token secret configured, generated one for this process")
	}
	codec, err := tokens.New(secret, cfg.CredentialTTL)
	if err != nil {
		return nil, err
	}

	// Create external dependencies
	clk := clock.New()
	rnd := random.New()

	return newWithDependencies(store, clk, rnd, codec, metrics.New(), logger, cfg), nil
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(
	store storage.Storage,
	clk clock.Clock,
	rnd random.Random,
	codec *tokens.Codec,
	m *metrics.Metrics,
	logger *slog.Logger,
	cfg Config,
) *App {
	invCfg := cfg.InventoryConfig
	if invCfg.BcryptCost == 0 {
		invCfg.BcryptCost = inventory.DefaultConfig().BcryptCost
	}

	// Create services
	registry := session.New(store, codec, clk, m, logger, cfg.SessionConfig)
	router := broadcast.New(registry, m, logger)
	inventoryService := inventory.New(store, clk, rnd, logger, invCfg)
	lootManager := loot.NewManager(rnd, cfg.LootPolicy, m, logger)
	dispatcher := dispatch.New(inventoryService, lootManager, registry, router, m, logger)
	streams := stream.New(registry, logger, cfg.StreamConfig)

	return &App{
		Storage:    store,
		Clock:      clk,
		Random:     rnd,
		Metrics:    m,
		Logger:     logger,
		Codec:      codec,
		Registry:   registry,
		Router:     router,
		Inventory:  inventoryService,
		Loot:       lootManager,
		Dispatcher: dispatcher,
		Streams:    streams,
		trustProxy: cfg.TrustProxy,
	}
}

// Handler returns the HTTP API for this app
func (a *App) Handler() http.Handler {
	return api.NewRouter(api.RouterConfig{
		Logger:     a.Logger,
		Registry:   a.Registry,
		Dispatcher: a.Dispatcher,
		Streams:    a.Streams,
		Metrics:    a.Metrics,
		TrustProxy: a.trustProxy,
	})
}

// Close releases the storage backend
func (a *App) Close() error {
	if closer, ok := a.Storage.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
