// Command server runs the storyloom orchestration API.
//
// Configuration is layered: built-in defaults, a YAML config file
// (-config flag, STORYLOOM_CONFIG, ./config.yaml, or
// /etc/storyloom/config.yaml), then STORYLOOM_* environment overrides.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/storyloom/storyloom/pkg/auth"
	"github.com/storyloom/storyloom/pkg/auth/apikey"
	"github.com/storyloom/storyloom/pkg/auth/jwt"
	"github.com/storyloom/storyloom/pkg/auth/noop"
	"github.com/storyloom/storyloom/pkg/config"
	"github.com/storyloom/storyloom/pkg/debug"
	"github.com/storyloom/storyloom/pkg/engine"
	"github.com/storyloom/storyloom/pkg/provider/openaicompat"
	"github.com/storyloom/storyloom/pkg/storage"
	"github.com/storyloom/storyloom/pkg/storage/memory"
	"github.com/storyloom/storyloom/pkg/storage/postgres"
	"github.com/storyloom/storyloom/pkg/transport"
	transporthttp "github.com/storyloom/storyloom/pkg/transport/http"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: debug.ParseLevel(os.Getenv("STORYLOOM_LOG_LEVEL")),
	}))
	slog.SetDefault(logger)

	if err := run(*configPath, logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, logger *slog.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Backing store.
	store, err := buildStore(context.Background(), cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	// Provider client.
	gen := openaicompat.NewClient(cfg.Generation.BackendURL, cfg.Generation.APIKey,
		cfg.Generation.AttemptTimeout)
	defer gen.Close()

	// Orchestration engine.
	eng, err := engine.New(store, gen, engine.Config{
		DefaultModel:   cfg.Generation.DefaultModel,
		Workers:        cfg.Generation.Workers,
		MaxAttempts:    cfg.Generation.MaxAttempts,
		AttemptTimeout: cfg.Generation.AttemptTimeout,
		ContextBudget:  cfg.Generation.ContextBudget,
		Variants:       cfg.Generation.Variants,
	}, logger)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}
	defer eng.Close()

	// Auth middleware, applied after the built-in chain.
	extra := []transport.Middleware{buildAuthMiddleware(cfg)}

	srv := transporthttp.NewServer(eng, store, extra,
		transporthttp.WithAddr(fmt.Sprintf(":%d", cfg.Server.Port)),
		transporthttp.WithMaxBodySize(cfg.Server.MaxBodySize),
		transporthttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		transporthttp.WithLogger(logger),
	)

	logger.Info("storyloom starting",
		"port", cfg.Server.Port,
		"backend", cfg.Generation.BackendURL,
		"model", cfg.Generation.DefaultModel,
		"storage", cfg.Storage.Type,
		"auth", cfg.Auth.Type,
	)
	return srv.ListenAndServe()
}

// buildStore creates the configured storage backend.
func buildStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	switch cfg.Storage.Type {
	case "postgres":
		store, err := postgres.New(ctx, postgres.Config{
			DSN:            cfg.Storage.Postgres.DSN,
			MaxConns:       cfg.Storage.Postgres.MaxConns,
			MigrateOnStart: cfg.Storage.Postgres.MigrateOnStart,
		})
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		logger.Info("storage ready", "type", "postgres")
		return store, nil
	default:
		logger.Info("storage ready", "type", "memory")
		return memory.New(), nil
	}
}

// buildAuthMiddleware assembles the authentication chain from config.
func buildAuthMiddleware(cfg *config.Config) transport.Middleware {
	var authenticators []auth.Authenticator
	defaultDecision := auth.No

	switch cfg.Auth.Type {
	case "apikey":
		entries := make([]apikey.RawKeyEntry, 0, len(cfg.Auth.APIKeys))
		for _, k := range cfg.Auth.APIKeys {
			identity := auth.Identity{
				Subject:     k.Subject,
				ServiceTier: k.ServiceTier,
			}
			if k.TenantID != "" {
				identity.Metadata = map[string]string{"tenant_id": k.TenantID}
			}
			entries = append(entries, apikey.RawKeyEntry{Key: k.Key, Identity: identity})
		}
		authenticators = append(authenticators, apikey.New(entries))
	case "jwt":
		authenticators = append(authenticators, jwt.New(jwt.Config{
			Issuer:   cfg.Auth.JWT.Issuer,
			Audience: cfg.Auth.JWT.Audience,
			JWKSURL:  cfg.Auth.JWT.JWKSURL,
		}))
	default:
		authenticators = append(authenticators, &noop.Authenticator{})
		defaultDecision = auth.Yes
	}

	chain := &auth.AuthChain{
		Authenticators:  authenticators,
		DefaultDecision: defaultDecision,
	}
	return auth.Middleware(chain, nil, auth.DefaultBypassEndpoints)
}
