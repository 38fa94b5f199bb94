// Package internal provides the application initialization and runtime logic
// behind each fme command.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/fme/internal/api"
	"github.com/starford/fme/internal/apperr"
	"github.com/starford/fme/internal/journal"
	"github.com/starford/fme/internal/mcpserver"
	"github.com/starford/fme/internal/models"
	"github.com/starford/fme/internal/noteservice"
	"github.com/starford/fme/internal/sse"
	"github.com/starford/fme/internal/storage"
	"github.com/starford/fme/internal/transform"
)

// Apply runs op over the configured note directory. With watch set it then
// keeps re-applying op to notes as they change until ctx is cancelled or the
// process is interrupted.
func Apply(ctx context.Context, op transform.Operation, watch bool, opts ...Option) error {
	app, logger, err := setup(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	store, err := storage.NewFS(cfg.Notes.Dir)
	if err != nil {
		return err
	}
	j, err := openJournal(cfg, logger)
	if err != nil {
		return err
	}
	if j != nil {
		defer j.Close()
	}

	svc := newService(app, store, j, logger, cfg.Notes.Dir)
	req := noteservice.Request{Op: op, Recursive: cfg.Notes.Recursive, DryRun: cfg.Batch.DryRun}

	if _, err := svc.Apply(ctx, req); err != nil {
		return err
	}
	if !watch {
		return nil
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return svc.Watch(ctx, req)
}

// History prints the most recent journal runs, newest first.
func History(_ context.Context, limit int, opts ...Option) error {
	app, logger, err := setup(opts)
	if err != nil {
		return err
	}
	j, err := openJournal(app.config, logger)
	if err != nil {
		return err
	}
	if j == nil {
		return apperr.ErrJournalDisabled
	}
	defer j.Close()

	runs, err := j.Runs(limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(app.out, "No runs recorded.")
		return nil
	}
	for _, r := range runs {
		fmt.Fprintln(app.out, formatRun(r))
	}
	return nil
}

// Undo restores the files changed by run id, or by the latest undoable run
// when id is empty. The run's own directory is used, whatever the config says.
func Undo(ctx context.Context, id string, opts ...Option) error {
	app, logger, err := setup(opts)
	if err != nil {
		return err
	}
	j, err := openJournal(app.config, logger)
	if err != nil {
		return err
	}
	if j == nil {
		return apperr.ErrJournalDisabled
	}
	defer j.Close()

	var run *models.Run
	if id == "" {
		run, err = j.LatestRun()
	} else {
		run, err = j.Run(id)
	}
	if err != nil {
		return err
	}

	store, err := storage.NewFS(run.Dir)
	if err != nil {
		return err
	}
	svc := newService(app, store, j, logger, run.Dir)
	report, err := svc.Undo(ctx, run.ID)
	if err != nil {
		return err
	}
	if len(report.Errors) > 0 {
		fmt.Fprintf(app.out, "Undo of %s left %d file(s) untouched.\n", run.ID, len(report.Errors))
	}
	return nil
}

// Serve starts the HTTP API on the configured note directory.
func Serve(ctx context.Context, opts ...Option) error {
	app, logger, err := setup(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("notes_dir", cfg.Notes.Dir),
		slog.String("journal_path", cfg.Journal.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	store, err := storage.NewFS(cfg.Notes.Dir)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	j, err := openJournal(cfg, logger)
	if err != nil {
		return fmt.Errorf("init journal: %w", err)
	}
	if j != nil {
		defer j.Close()
	}

	broker := sse.NewBroker(15 * time.Second)
	defer broker.Close()

	svcOpts := []noteservice.Option{
		noteservice.WithUpdateHook(broker.PublishNoteEvent),
		noteservice.WithRunHook(func(r *noteservice.Report) {
			broker.Publish(sse.Event{Type: sse.TypeRunFinished, Data: r})
		}),
	}
	// Report lines are not printed while serving; logs carry the outcome.
	app.out = nil
	svc := newService(app, store, j, logger, cfg.Notes.Dir, svcOpts...)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := os.Stat(store.Root()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"notes directory unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker))

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	if app.watchOp != nil {
		req := noteservice.Request{Op: *app.watchOp, Recursive: cfg.Notes.Recursive, DryRun: cfg.Batch.DryRun}
		g.Go(func() error {
			if err := svc.Watch(gCtx, req); err != nil {
				logger.Error("watcher failed", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		// Stops the watcher when the shutdown came from a signal.
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// ServeMCP runs the MCP server on stdin/stdout.
func ServeMCP(_ context.Context, opts ...Option) error {
	app, logger, err := setup(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	store, err := storage.NewFS(cfg.Notes.Dir)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	j, err := openJournal(cfg, logger)
	if err != nil {
		return fmt.Errorf("init journal: %w", err)
	}
	if j != nil {
		defer j.Close()
	}

	// stdout carries the protocol.
	app.out = nil
	svc := newService(app, store, j, logger, cfg.Notes.Dir)

	logger.Info("MCP server starting", slog.String("notes_dir", store.Root()))
	return mcpserver.New(svc, app.version).ServeStdio()
}

var errShutdown = errors.New("shutdown")

func setup(opts []Option) (*application, *slog.Logger, error) {
	app := newApplication(opts)
	if app.config == nil {
		return nil, nil, fmt.Errorf("config is required")
	}

	// Structured JSON logs go to stderr; stdout is reserved for reports.
	logger := slog.New(slog.NewJSONHandler(app.logOut, &slog.HandlerOptions{
		Level: app.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return app, logger, nil
}

// openJournal opens the configured journal, or returns nil when it is disabled.
func openJournal(cfg *Config, logger *slog.Logger) (*journal.DB, error) {
	if !cfg.Journal.Enabled() {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Journal.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	j, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		return nil, err
	}
	logger.Debug("journal opened", slog.String("path", cfg.Journal.Path))
	return j, nil
}

func newService(app *application, store storage.Provider, j *journal.DB, logger *slog.Logger, label string, extra ...noteservice.Option) *noteservice.Service {
	opts := []noteservice.Option{
		noteservice.WithLogger(logger),
		noteservice.WithDisplayRoot(label),
		noteservice.WithWorkers(app.config.Batch.Workers),
	}
	if app.out != nil {
		opts = append(opts, noteservice.WithOutput(app.out))
	}
	// A nil *journal.DB must not reach the interface-typed option.
	if j != nil {
		opts = append(opts, noteservice.WithJournal(j))
	}
	return noteservice.NewService(store, append(opts, extra...)...)
}

func formatRun(r models.Run) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s  %s", r.ID, r.StartedAt.Local().Format(time.DateTime), r.Operation)
	if len(r.Args) > 0 {
		b.WriteString(" " + strings.Join(r.Args, " "))
	}
	fmt.Fprintf(&b, "  %s", r.Dir)
	if r.Recursive {
		b.WriteString(" (recursive)")
	}
	fmt.Fprintf(&b, "  updated=%d failed=%d", r.Updated, r.Failed)
	if r.UndoneAt != nil {
		b.WriteString("  undone")
	}
	return b.String()
}
