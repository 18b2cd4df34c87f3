package app

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/JLChnToZ/shota-url/internal/config"
	"github.com/JLChnToZ/shota-url/internal/markdown"
	"github.com/JLChnToZ/shota-url/internal/opengraph"
	"github.com/JLChnToZ/shota-url/internal/seq"
	"github.com/JLChnToZ/shota-url/internal/server"
	"github.com/JLChnToZ/shota-url/internal/shortener"
	"github.com/JLChnToZ/shota-url/shortid"
)

// App holds the wired application.
type App struct {
	Config *config.Config
	Logger *slog.Logger
	DBPool *pgxpool.Pool
	Server *server.Server
}

// New initializes the application with all dependencies wired up.
func New(ctx context.Context) (*App, error) {
	loadEnv()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := setupLogger(cfg.App.LogLevel)
	logger.Info("starting application", "env", cfg.App.Environment)

	dbPool, err := connectDatabase(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	codec, err := shortid.NewCodec(shortid.Options{
		PublicAlphabet:  cfg.Shortener.PublicAlphabet,
		RemovalAlphabet: cfg.Shortener.RemovalAlphabet,
	})
	if err != nil {
		dbPool.Close()
		return nil, fmt.Errorf("failed to build id codec: %w", err)
	}

	repo := shortener.NewPgxRepository(dbPool)
	enricher := opengraph.NewEnricher(opengraph.EnricherConfig{
		Fetcher:       opengraph.NewHTTPFetcher(cfg.Shortener.EnrichTimeout),
		Logger:        logger,
		MaxImageBytes: cfg.Shortener.MaxImageBytes,
	})

	svc := shortener.NewService(shortener.ServiceConfig{
		Repo:      repo,
		Allocator: seq.NewAllocator(),
		Codec:     codec,
		Enricher:  enricher,
		Renderer:  markdown.NewRenderer(),
		Logger:    logger,
		MaxTTL:    cfg.Shortener.MaxTTL,
	})
	engine := shortener.NewEngine(shortener.EngineConfig{
		Repo:    repo,
		Logger:  logger,
		BaseURL: cfg.Server.BaseURL,
	})
	handler := shortener.NewHandler(shortener.HandlerConfig{
		Service: svc,
		Engine:  engine,
		Logger:  logger,
	})

	srv := server.New(cfg, logger, handler)

	logger.Info("application initialized",
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
	)

	return &App{Config: cfg, Logger: logger, DBPool: dbPool, Server: srv}, nil
}

// Start runs the server until shutdown.
func (a *App) Start(ctx context.Context) error {
	if err := a.Server.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown releases the application resources.
func (a *App) Shutdown() error {
	a.Logger.Info("shutting down application")

	if a.DBPool != nil {
		a.DBPool.Close()
		a.Logger.Info("database connection closed")
	}
	return nil
}

// loadEnv loads a .env file in non-production environments.
func loadEnv() {
	env := os.Getenv("APP_ENV")
	if env == "development" || env == "test" {
		if err := godotenv.Load(); err != nil {
			log.Println("no .env file found")
		}
	}
}

// setupLogger creates the structured JSON logger.
func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	return slog.New(handler)
}

// connectDatabase opens and verifies the Postgres pool.
func connectDatabase(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.MaxConns = cfg.Database.MaxConns
	poolConfig.MinConns = cfg.Database.MinConns

	logger.Info("connecting to database",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"database", cfg.Database.Name,
	)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established")
	return pool, nil
}
