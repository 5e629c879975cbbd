package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container
	"golang.org/x/sync/errgroup"

	"github.com/ericfisherdev/artsengine/internal/adapter/driven/backend"
	"github.com/ericfisherdev/artsengine/internal/adapter/driven/filelock"
	githubadapter "github.com/ericfisherdev/artsengine/internal/adapter/driven/github"
	sqliteadapter "github.com/ericfisherdev/artsengine/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/artsengine/internal/adapter/driving/http"
	webhandler "github.com/ericfisherdev/artsengine/internal/adapter/driving/web"
	"github.com/ericfisherdev/artsengine/internal/application"
	"github.com/ericfisherdev/artsengine/internal/config"
	"github.com/ericfisherdev/artsengine/internal/domain/port/driven"
	"github.com/ericfisherdev/artsengine/internal/logging"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration and install the process logger.
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	flush, err := logging.Setup(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		return err
	}
	defer flush()

	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"api_base", cfg.APIBase,
		"export_repo", cfg.ExportRepo,
		"encrypted_secrets", cfg.HasSecretKey(),
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	version, err := sqliteadapter.RunMigrations(db.Writer)
	if err != nil {
		return err
	}
	slog.Info("migrations complete", "version", version)

	// 5. Wire the secret store. Without a key secrets are stored as they are.
	if !cfg.HasSecretKey() {
		slog.Warn("ARTSENGINE_SECRET_KEY not set, API keys are stored unencrypted")
	}
	store, err := sqliteadapter.NewSecretStore(ctx, db, cfg.SecretKey)
	if err != nil {
		return err
	}

	// 6. Create the generation backend with a factory for rebasing.
	backendFactory := func(baseURL string) (driven.GenerationBackend, error) {
		client, err := backend.New(baseURL)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	initial, err := backend.New(cfg.APIBase)
	if err != nil {
		return fmt.Errorf("create backend client: %w", err)
	}
	backends := application.NewBackendProvider(initial, backendFactory)

	// 7. Create GitHub exporter.
	ghClient, err := githubadapter.NewClient(cfg.GitHubAPIURL)
	if err != nil {
		return fmt.Errorf("create github client: %w", err)
	}

	// 8. Create application services.
	bus := application.NewStatusBus()
	vault := application.NewVault(store, application.WithLocker(filelock.ForDatabase(cfg.DBPath)))
	prefs := application.NewPreferenceService(store, vault)
	orch := application.NewOrchestrator(backends, prefs,
		application.NewVideoPoller(cfg.VideoPollInterval, cfg.VideoPollAttempts), bus)
	probe := application.NewHealthProbe(backends)
	export := application.NewExportService(store, ghClient, currentFetcher{backends}, bus,
		application.WithDefaultRepo(cfg.ExportRepo))

	// 9. Create HTTP handlers and register API and GUI routes.
	mux := http.NewServeMux()
	apiHandler := httphandler.NewHandler(ctx, httphandler.Services{
		Vault:    vault,
		Prefs:    prefs,
		Orch:     orch,
		Probe:    probe,
		Backends: backends,
		Export:   export,
		Bus:      bus,
	}, slog.Default())
	httphandler.RegisterAPIRoutes(mux, apiHandler)

	webHandler := webhandler.NewHandler(ctx, webhandler.Services{
		Vault:    vault,
		Prefs:    prefs,
		Orch:     orch,
		Probe:    probe,
		Backends: backends,
		Export:   export,
		Bus:      bus,
	}, slog.Default())
	webhandler.RegisterRoutes(mux, webHandler)

	// Apply middleware.
	handler := httphandler.ApplyMiddleware(mux, slog.Default(), probe)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// 10. Run the server and the health probe until a signal arrives.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return probe.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("http server shutdown error", "error", err)
		}
		return nil
	})

	slog.Info("artsengine started", "listen_addr", cfg.ListenAddr, "api_base", cfg.APIBase)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	slog.Info("shutdown complete")
	return nil
}

// currentFetcher downloads media through whichever backend is current, so
// relative media URLs resolve against the backend that produced them.
type currentFetcher struct {
	backends *application.BackendProvider
}

func (f currentFetcher) Fetch(ctx context.Context, mediaURL string) ([]byte, error) {
	fetcher, ok := f.backends.Get().(driven.MediaFetcher)
	if !ok {
		return nil, fmt.Errorf("fetch %s: %w", mediaURL, application.ErrDependencyUnavailable)
	}
	return fetcher.Fetch(ctx, mediaURL)
}
