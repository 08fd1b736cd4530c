package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/starford/voxnote/internal/kv"
	"github.com/starford/voxnote/internal/markdown"
	"github.com/starford/voxnote/internal/mcpserver"
	"github.com/starford/voxnote/internal/media"
	"github.com/starford/voxnote/internal/models"
	"github.com/starford/voxnote/internal/noteservice"
	"github.com/starford/voxnote/internal/notes"
	"github.com/starford/voxnote/internal/responder"
	"github.com/starford/voxnote/internal/settings"
)

// core is the state every command shares: the kv backend, both stores and
// the capture service.
type core struct {
	logger   *slog.Logger
	store    kv.Store
	mirror   *kv.Mirror
	settings *settings.Store
	notes    *notes.Store
	media    *media.Store
	svc      *noteservice.Service
	closers  []func() error
}

// hooks lets the serve command observe changes without core knowing about
// the broker.
type hooks struct {
	onNote     notes.Observer
	onSettings func(models.Settings)
}

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev", logOut: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// newLogger installs a structured JSON logger as the default.
func (a *application) newLogger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(a.logOut, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// openStore opens the configured backend. The returned close func is never
// nil.
func openStore(cfg StorageConfig) (kv.Store, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Driver {
	case DriverMemory:
		return kv.NewMemory(), noop, nil
	case DriverFile:
		f, err := kv.NewFile(cfg.Path)
		if err != nil {
			return nil, noop, err
		}
		return f, noop, nil
	case DriverSQLite:
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, noop, fmt.Errorf("create db dir: %w", err)
			}
		}
		db, err := kv.OpenSQLite(cfg.Path)
		if err != nil {
			return nil, noop, err
		}
		return db, db.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// openCore builds the stores and loads them in order: settings first, so
// the backup mirror is switched on before notes are read, then notes.
func openCore(ctx context.Context, cfg *Config, logger *slog.Logger, h hooks) (*core, error) {
	primary, closeStore, err := openStore(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	c := &core{logger: logger, store: primary, closers: []func() error{closeStore}}

	if cfg.Backup.Enabled {
		backup, err := kv.NewS3(ctx, cfg.Backup.S3)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("init backup: %w", err)
		}
		c.mirror = kv.NewMirror(primary, backup, logger)
		c.store = c.mirror
	}

	c.settings = settings.New(c.store, logger, settings.OnChange(func(s models.Settings) {
		if c.mirror != nil {
			c.mirror.SetEnabled(s.BackupEnabled)
		}
		if h.onSettings != nil {
			h.onSettings(s)
		}
	}))
	c.settings.Load(ctx)

	var noteOpts []notes.Option
	if h.onNote != nil {
		noteOpts = append(noteOpts, notes.WithObserver(h.onNote))
	}
	c.notes = notes.New(c.store, logger, noteOpts...)
	c.notes.Load(ctx)

	c.media, err = media.NewStore(cfg.Inbox.MediaDir)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("init media: %w", err)
	}

	ai := responder.NewMock(
		responder.WithDelays(cfg.Responder.Delays()),
		responder.WithSelector(responder.SeededSelector(cfg.Responder.Seed)),
	)
	c.svc = noteservice.NewService(c.notes, ai, c.media, logger)
	return c, nil
}

// Close releases the kv backend.
func (c *core) Close() {
	for _, fn := range c.closers {
		if err := fn(); err != nil {
			c.logger.Warn("close failed", slog.String("error", err.Error()))
		}
	}
}

// RunMCP serves the MCP tools on stdin/stdout until the client disconnects.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := app.newLogger()

	c, err := openCore(ctx, app.config, logger, hooks{})
	if err != nil {
		return err
	}
	defer c.Close()

	logger.Info("MCP server starting", slog.Int("notes", len(c.notes.List())))
	return mcpserver.New(c.svc, app.version).ServeStdio()
}

// Export writes every note into dir as a Markdown file and returns how many
// were written.
func Export(ctx context.Context, dir string, opts ...Option) (int, error) {
	app, err := newApplication(opts)
	if err != nil {
		return 0, err
	}
	logger := app.newLogger()

	c, err := openCore(ctx, app.config, logger, hooks{})
	if err != nil {
		return 0, err
	}
	defer c.Close()

	return exportMarkdown(c.notes.List(), dir)
}

func exportMarkdown(list []models.Note, dir string) (int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("export: %w", err)
	}
	for i, n := range list {
		data, err := markdown.Render(n)
		if err != nil {
			return i, fmt.Errorf("export %s: %w", n.ID, err)
		}
		if err := os.WriteFile(filepath.Join(dir, markdown.FileName(n)), data, 0o644); err != nil {
			return i, fmt.Errorf("export %s: %w", n.ID, err)
		}
	}
	return len(list), nil
}

// Import adds each Markdown file as a new note and returns how many were
// added. Files that fail to parse are reported together after the rest
// have been imported.
func Import(ctx context.Context, paths []string, opts ...Option) (int, error) {
	app, err := newApplication(opts)
	if err != nil {
		return 0, err
	}
	logger := app.newLogger()

	c, err := openCore(ctx, app.config, logger, hooks{})
	if err != nil {
		return 0, err
	}
	defer c.Close()

	return importMarkdown(ctx, c.svc, paths, logger)
}

func importMarkdown(ctx context.Context, svc *noteservice.Service, paths []string, logger *slog.Logger) (int, error) {
	var errs []error
	count := 0
	for _, p := range paths {
		n, err := readMarkdown(p)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p, err))
			continue
		}
		stored := svc.Create(ctx, n)
		logger.Info("imported", slog.String("path", p), slog.String("id", stored.ID))
		count++
	}
	return count, errors.Join(errs...)
}

func readMarkdown(path string) (models.Note, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Note{}, err
	}
	n, err := markdown.Parse(data)
	if err != nil {
		return models.Note{}, err
	}
	// createdAt survives; identity and edit time are reassigned.
	n.ID = ""
	n.UpdatedAt = time.Time{}
	return n, nil
}
