package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-faster/errors"

	"github.com/Trust-Square/luma-mcp-server/internal/broker"
	"github.com/Trust-Square/luma-mcp-server/internal/config"
	"github.com/Trust-Square/luma-mcp-server/internal/db"
	"github.com/Trust-Square/luma-mcp-server/internal/mcp"
	"github.com/Trust-Square/luma-mcp-server/internal/modules"
	"github.com/Trust-Square/luma-mcp-server/internal/modules/luma"
	"github.com/Trust-Square/luma-mcp-server/internal/observability"
	"github.com/Trust-Square/luma-mcp-server/internal/transport"
	"github.com/Trust-Square/luma-mcp-server/pkg/lumaapi"
)

func main() {
	// stdout carries the MCP channel; everything else goes to stderr.
	log.SetOutput(os.Stderr)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	configPath := flag.String("config", os.Getenv("LUMA_MCP_CONFIG"), "path to a YAML or TOML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return errors.Wrap(err, "loading config")
	}

	// Initialize observability (Loki, OTLP traces and metrics)
	observability.Init()
	defer observability.Flush(5 * time.Second)

	telemetry, err := observability.InitTelemetry(context.Background(), mcp.DefaultServerInfo.Name, mcp.DefaultServerInfo.Version)
	if err != nil {
		return errors.Wrap(err, "initializing telemetry")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(ctx); err != nil {
			log.Printf("Telemetry shutdown: %v", err)
		}
	}()

	if err := db.InitEncryptionKey(cfg.Profiles.EncryptionKey); err != nil {
		return err
	}
	if db.EncryptionEnabled() {
		log.Printf("Credential encryption initialized")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := openRepository(cfg)
	if err != nil {
		return err
	}
	store := broker.NewProfileStore(repo)
	if err := store.Load(ctx); err != nil {
		return err
	}

	limiter := lumaapi.NewRateLimiter(cfg.Luma.RequestsPerMinute, time.Minute)
	session := broker.NewSession(store, func(apiKey string) (*lumaapi.Client, error) {
		return lumaapi.NewClient(apiKey,
			lumaapi.WithBaseURL(cfg.Luma.BaseURL),
			lumaapi.WithCalendarBaseURL(cfg.Luma.PublicAPIBaseURL),
			lumaapi.WithTimeout(cfg.Luma.HTTPTimeout),
			lumaapi.WithMaxPages(cfg.Luma.MaxPages),
			lumaapi.WithRateLimiter(limiter),
		)
	}, broker.WithBootstrapKey(cfg.Luma.APIKey))
	if session.Bootstrapped() {
		log.Printf("No stored calendar profiles; using LUMA_API_KEY as profile %q", broker.BootstrapProfileName)
	}

	registry := modules.NewRegistry(cfg.Server.ToolTimeout)
	if err := registry.Register(luma.New(session, luma.WithExportDir(cfg.Export.Dir))); err != nil {
		return errors.Wrap(err, "registering modules")
	}
	log.Printf("Registered %d tools", len(registry.Tools()))

	handler := mcp.NewHandler(registry, mcp.DefaultServerInfo)
	log.Printf("%s %s serving MCP on stdio", mcp.DefaultServerInfo.Name, mcp.DefaultServerInfo.Version)

	if err := transport.NewStdio(handler, os.Stdin, os.Stdout).Serve(ctx); err != nil {
		return err
	}
	log.Printf("Server stopped")
	return nil
}

// openRepository selects the Postgres store when a DSN is configured and the
// JSON file otherwise.
func openRepository(cfg *config.Config) (db.ProfileRepository, error) {
	if cfg.Profiles.DSN == "" {
		log.Printf("Profile store: %s", cfg.Profiles.Path)
		return db.NewFileRepository(cfg.Profiles.Path), nil
	}

	database, err := db.Open(cfg.Profiles.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "opening profile database")
	}
	repo, err := db.NewGormRepository(database)
	if err != nil {
		return nil, errors.Wrap(err, "preparing profile table")
	}
	log.Printf("Profile store: postgres")
	return repo, nil
}
