package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Merdeus/dndinventory/internal/api"
	"github.com/Merdeus/dndinventory/internal/factory"
	"github.com/Merdeus/dndinventory/internal/services/inventory"
	"github.com/Merdeus/dndinventory/internal/services/loot"
	redisstorage "github.com/Merdeus/dndinventory/internal/storage/redis"
)

// janitorInterval is how often expired grants and scheduled evictions are swept
const janitorInterval = 30 * time.Second

func main() {
	// Set up logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(logger *slog.Logger) error {
	cfg, serverConfig, err := configFromEnv(logger)
	if err != nil {
		return err
	}

	// Create application factory
	app, err := factory.New(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	server := api.NewServer(app.Handler(), serverConfig, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		return app.Registry.RunJanitor(ctx, janitorInterval)
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutdown signal received")
		return server.Shutdown(context.Background())
	})

	return g.Wait()
}

// configFromEnv builds the factory and server config from the environment
func configFromEnv(logger *slog.Logger) (factory.Config, api.ServerConfig, error) {
	serverConfig := api.DefaultServerConfig()
	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return factory.Config{}, serverConfig, err
		}
		serverConfig.Port = p
	}

	policy, err := loot.ParseCompletionPolicy(os.Getenv("LOOT_VOTE_POLICY"))
	if err != nil {
		return factory.Config{}, serverConfig, err
	}

	trustProxy, _ := strconv.ParseBool(os.Getenv("TRUST_PROXY"))

	invCfg := inventory.DefaultConfig()
	invCfg.DMFallbackPassword = os.Getenv("DM_FALLBACK_PASSWORD")

	cfg := factory.Config{
		Logger:          logger,
		StorageType:     os.Getenv("STORAGE_TYPE"),
		TokenSecret:     []byte(os.Getenv("SYNC_TOKEN_KEY")),
		InventoryConfig: invCfg,
		LootPolicy:      policy,
		TrustProxy:      trustProxy,
	}

	// Configure Redis if storage type is redis
	if cfg.StorageType == factory.StorageTypeRedis {
		redisURL := os.Getenv("REDIS_URL")
		if redisURL == "" {
			return cfg, serverConfig, errRedisURLRequired
		}
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = redisURL
		cfg.RedisConfig = &redisCfg
	}

	return cfg, serverConfig, nil
}

var errRedisURLRequired = errors.New("REDIS_URL required when STORAGE_TYPE=redis")
