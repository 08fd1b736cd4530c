// Package inbox watches a directory for audio files and imports each new
// recording as a note. Files are identified by content checksum, so a file
// that is renamed, moved or copied back in is imported only once.
package inbox

import (
	"context"
	"encoding/json"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/voxnote/internal/checksum"
	"github.com/starford/voxnote/internal/kv"
	"github.com/starford/voxnote/internal/media"
	"github.com/starford/voxnote/internal/models"
)

// LedgerKey is the kv key recording imported checksums.
const LedgerKey = "inbox_imported"

// DefaultSettle is how long a file must go without writes before import.
const DefaultSettle = 500 * time.Millisecond

// Importer turns an audio file into a stored note.
type Importer interface {
	Import(ctx context.Context, fileURI, fileName string, size int64) (models.Note, error)
}

// ImportCallback is called after a file has been imported.
type ImportCallback func(path string, n models.Note)

// Inbox imports audio files dropped into dir.
type Inbox struct {
	dir      string
	importer Importer
	ledger   kv.Store
	logger   *slog.Logger
	settle   time.Duration
	cb       ImportCallback

	seen   map[string]string // checksum -> note id
	loaded bool
}

// Option configures an Inbox.
type Option func(*Inbox)

// WithSettle overrides the quiet period before a changed file is imported.
func WithSettle(d time.Duration) Option { return func(in *Inbox) { in.settle = d } }

// WithCallback registers cb to run after each import.
func WithCallback(cb ImportCallback) Option { return func(in *Inbox) { in.cb = cb } }

// New creates an Inbox. dir is created if missing.
func New(dir string, importer Importer, ledger kv.Store, logger *slog.Logger, opts ...Option) (*Inbox, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	in := &Inbox{
		dir:      abs,
		importer: importer,
		ledger:   ledger,
		logger:   logger,
		settle:   DefaultSettle,
		seen:     make(map[string]string),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in, nil
}

// Run scans dir once, then imports new files as they appear until ctx is
// cancelled. New subdirectories are watched automatically.
func (in *Inbox) Run(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, in.dir); err != nil {
		return err
	}
	in.Scan(ctx)

	in.logger.Info("inbox: watching", slog.String("dir", in.dir))

	// pending holds paths waiting for their settle timer.
	pending := make(map[string]time.Time)
	ticker := time.NewTicker(in.tick())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			in.logger.Info("inbox: stopped")
			return nil

		case now := <-ticker.C:
			for p, at := range pending {
				if now.Sub(at) < in.settle {
					continue
				}
				delete(pending, p)
				in.importFile(ctx, p)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						in.logger.Warn("inbox: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
					in.scanDir(ctx, ev.Name)
					continue
				}
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 || !media.Supported(ev.Name) {
				continue
			}
			pending[ev.Name] = time.Now()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			in.logger.Error("inbox: watcher error", slog.String("error", watchErr.Error()))
		}
	}
}

// Scan imports every supported file under dir that has not been imported.
// It must not run concurrently with Run.
func (in *Inbox) Scan(ctx context.Context) {
	if !in.loaded {
		in.loadLedger(ctx)
		in.loaded = true
	}
	in.scanDir(ctx, in.dir)
}

func (in *Inbox) scanDir(ctx context.Context, dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !media.Supported(path) || isHidden(d.Name()) {
			return nil
		}
		in.importFile(ctx, path)
		return nil
	})
}

func (in *Inbox) importFile(ctx context.Context, path string) {
	if isHidden(filepath.Base(path)) {
		return
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}
	sum, err := checksum.File(path)
	if err != nil {
		in.logger.Warn("inbox: checksum failed", slog.String("path", path), slog.String("error", err.Error()))
		return
	}
	if id, dup := in.seen[sum]; dup {
		in.logger.Debug("inbox: already imported", slog.String("path", path), slog.String("note", id))
		return
	}

	uri := "file://" + filepath.ToSlash(path)
	n, err := in.importer.Import(ctx, uri, filepath.Base(path), info.Size())
	if err != nil {
		in.logger.Warn("inbox: import failed", slog.String("path", path), slog.String("error", err.Error()))
		return
	}
	in.seen[sum] = n.ID
	in.saveLedger(ctx)
	in.logger.Info("inbox: imported", slog.String("path", path), slog.String("note", n.ID))
	if in.cb != nil {
		in.cb(path, n)
	}
}

func (in *Inbox) loadLedger(ctx context.Context) {
	raw, ok, err := in.ledger.Get(ctx, LedgerKey)
	if err != nil {
		in.logger.Warn("inbox: ledger load failed", slog.String("error", err.Error()))
		return
	}
	if !ok {
		return
	}
	var seen map[string]string
	if err := json.Unmarshal([]byte(raw), &seen); err != nil {
		in.logger.Warn("inbox: ledger decode failed", slog.String("error", err.Error()))
		return
	}
	for k, v := range seen {
		in.seen[k] = v
	}
}

func (in *Inbox) saveLedger(ctx context.Context) {
	blob, err := json.Marshal(in.seen)
	if err != nil {
		return
	}
	if err := in.ledger.Set(context.WithoutCancel(ctx), LedgerKey, string(blob)); err != nil {
		in.logger.Warn("inbox: ledger save failed", slog.String("error", err.Error()))
	}
}

func (in *Inbox) tick() time.Duration {
	if t := in.settle / 4; t > 10*time.Millisecond {
		return t
	}
	return 10 * time.Millisecond
}

// isHidden skips dotfiles, which include the media store's temp uploads.
func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
