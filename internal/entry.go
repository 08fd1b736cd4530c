// Package internal provides the main application initialization and runtime logic.
package internal

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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/voxnote/internal/api"
	"github.com/starford/voxnote/internal/inbox"
	"github.com/starford/voxnote/internal/models"
	"github.com/starford/voxnote/internal/reminders"
	"github.com/starford/voxnote/internal/sse"
)

// statsThrottle bounds how often stats.updated is pushed to clients.
const statsThrottle = 2 * time.Second

// Run starts the HTTP API, the SSE broker, the inbox watcher and the
// reminder scheduler, and blocks until a shutdown signal or ctx ends.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.newLogger()

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("storage_driver", cfg.Storage.Driver),
		slog.String("storage_path", cfg.Storage.Path),
		slog.Bool("backup", cfg.Backup.Enabled),
		slog.Bool("inbox", cfg.Inbox.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// The broker needs the notes store for stats and the store needs the
	// broker as its observer; stats are only read after the first event.
	var c *core
	broker := sse.NewBroker(statsThrottle, func() models.Stats { return c.notes.Stats() })
	defer broker.Close()

	c, err = openCore(ctx, cfg, logger, hooks{
		onNote: broker.PublishNoteEvent,
		onSettings: func(s models.Settings) {
			broker.Publish(sse.Event{Type: sse.TypeSettingsUpdated, Data: s.Masked()})
		},
	})
	if err != nil {
		return err
	}
	defer c.Close()

	var sched *reminders.Scheduler
	if cfg.Reminders.Enabled {
		notifier := reminders.NotifierFunc(func(ctx context.Context, r reminders.Reminder) error {
			broker.Publish(sse.Event{Type: sse.TypeReminderDue, Data: r})
			return reminders.LogNotifier{Logger: logger}.Notify(ctx, r)
		})
		sched = reminders.NewScheduler(c.store, notifier, func() bool { return c.settings.Get().Notifications }, logger)
		sched.Load(ctx)
		if cfg.Reminders.WeeklyReview {
			if _, err := sched.ScheduleWeeklyReview(ctx); err != nil && !errors.Is(err, reminders.ErrDisabled) {
				logger.Warn("weekly review not scheduled", slog.String("error", err.Error()))
			}
		}
	}

	apiRouter := api.NewRouter(c.svc, c.settings, sched, broker, api.Options{
		AuthEnabled: cfg.Auth.AuthEnabled(),
		Token:       cfg.Auth.Token,
		AIRate:      cfg.RateLimit.RPS,
		AIBurst:     cfg.RateLimit.Burst,
	})

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Mount("/", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(runCtx)

	if cfg.Inbox.Enabled {
		in, err := inbox.New(cfg.Inbox.Path, c.svc, c.store, logger)
		if err != nil {
			return fmt.Errorf("init inbox: %w", err)
		}
		g.Go(func() error {
			return in.Run(gCtx)
		})
	}

	if sched != nil {
		g.Go(func() error {
			return sched.Run(gCtx)
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
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

		logger.Info("Shutting down server...")
		cancel()
		// Open event streams would otherwise hold Shutdown until its timeout.
		broker.Close()

		shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
		defer stop()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
