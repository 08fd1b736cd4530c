// Package notes owns the in-process note collection and mirrors every
// mutation to a kv.Store as a single JSON array.
//
// The in-memory list is authoritative. Persistence is best-effort: a failed
// write is logged and recorded in Health, and the mutation still stands.
package notes

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/starford/voxnote/internal/kv"
	"github.com/starford/voxnote/internal/models"
)

// StorageKey is the kv key holding the serialized note list.
const StorageKey = "notes"

// Event kinds passed to an Observer.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

// Observer is called after a mutation has been applied in memory.
type Observer func(kind string, n models.Note)

// Health describes the outcome of the most recent persistence attempts.
type Health struct {
	LastError   string    `json:"lastPersistError,omitempty"`
	LastErrorAt time.Time `json:"lastPersistErrorAt,omitempty"`
	LastSavedAt time.Time `json:"lastSavedAt,omitempty"`
}

// Degraded reports whether the latest write attempt failed.
func (h Health) Degraded() bool {
	return h.LastError != "" && !h.LastErrorAt.Before(h.LastSavedAt)
}

// Store is the single source of truth for notes while the process runs.
type Store struct {
	kv      kv.Store
	logger  *slog.Logger
	now     func() time.Time
	loc     *time.Location
	newID   func() string
	observe Observer

	mu      sync.RWMutex
	notes   []models.Note // newest first
	loading bool
	seq     uint64

	persistMu sync.Mutex
	persisted uint64
	health    atomic.Pointer[Health]
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLocation sets the zone that decides which calendar day a note
// belongs to. Defaults to time.Local.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) { s.loc = loc }
}

// WithIDFunc overrides id generation. The function must never repeat.
func WithIDFunc(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// WithObserver registers a mutation callback.
func WithObserver(fn Observer) Option {
	return func(s *Store) { s.observe = fn }
}

// New creates an empty, loading Store. Call Load before serving reads.
func New(store kv.Store, logger *slog.Logger, opts ...Option) *Store {
	s := &Store{
		kv:      store,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
		loc:     time.Local,
		newID:   newID,
		notes:   []models.Note{},
		loading: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.health.Store(&Health{})
	return s
}

// newID returns a UUIDv7: time-ordered and unique within the process even
// for calls in the same millisecond.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Load replaces the in-memory list with the persisted one. A missing key or
// an undecodable blob yields an empty list; failures are logged only.
func (s *Store) Load(ctx context.Context) {
	loaded := s.read(ctx)

	s.mu.Lock()
	s.notes = loaded
	s.loading = false
	s.seq++
	s.mu.Unlock()

	s.logger.Info("notes: loaded", slog.Int("count", len(loaded)))
}

func (s *Store) read(ctx context.Context) []models.Note {
	raw, ok, err := s.kv.Get(ctx, StorageKey)
	if err != nil {
		s.logger.Error("notes: load failed", slog.String("error", err.Error()))
		return []models.Note{}
	}
	if !ok {
		return []models.Note{}
	}
	var decoded []models.Note
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		s.logger.Error("notes: decode failed", slog.String("error", err.Error()))
		return []models.Note{}
	}

	seen := make(map[string]struct{}, len(decoded))
	out := make([]models.Note, 0, len(decoded))
	for _, n := range decoded {
		if _, dup := seen[n.ID]; dup {
			s.logger.Warn("notes: dropping duplicate id", slog.String("id", n.ID))
			continue
		}
		seen[n.ID] = struct{}{}
		out = append(out, n)
	}
	return out
}

// Loading reports whether Load has not completed yet.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Health returns the persistence status.
func (s *Store) Health() Health {
	return *s.health.Load()
}

// Add builds a full record from draft, prepends it and persists the list.
// Any ID or Timestamp in draft is replaced.
func (s *Store) Add(ctx context.Context, draft models.Note) models.Note {
	now := s.now()
	n := draft.Clone()
	n.ID = s.newID()
	n.Timestamp = now
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	if n.UpdatedAt.IsZero() {
		n.UpdatedAt = n.CreatedAt
	}
	n.Normalize()

	s.mutate(ctx, func(cur []models.Note) ([]models.Note, bool) {
		next := make([]models.Note, 0, len(cur)+1)
		next = append(next, n)
		return append(next, cur...), true
	})
	s.emit(EventCreated, n)
	return n.Clone()
}

// Update shallow-merges patch onto the note with id. Unknown ids are a no-op.
func (s *Store) Update(ctx context.Context, id string, patch models.NotePatch) (models.Note, bool) {
	var updated models.Note
	found := s.mutate(ctx, func(cur []models.Note) ([]models.Note, bool) {
		i := indexOf(cur, id)
		if i < 0 {
			return cur, false
		}
		n := cur[i].Clone()
		patch.Apply(&n)
		cur[i] = n
		updated = n
		return cur, true
	})
	if !found {
		return models.Note{}, false
	}
	s.emit(EventUpdated, updated)
	return updated.Clone(), true
}

// Delete removes the note with id. Unknown ids are a no-op.
func (s *Store) Delete(ctx context.Context, id string) bool {
	var removed models.Note
	found := s.mutate(ctx, func(cur []models.Note) ([]models.Note, bool) {
		i := indexOf(cur, id)
		if i < 0 {
			return cur, false
		}
		removed = cur[i]
		next := make([]models.Note, 0, len(cur)-1)
		next = append(next, cur[:i]...)
		return append(next, cur[i+1:]...), true
	})
	if found {
		s.emit(EventDeleted, removed)
	}
	return found
}

// ToggleFavorite flips isFavorite on the note with id.
func (s *Store) ToggleFavorite(ctx context.Context, id string) (models.Note, bool) {
	var updated models.Note
	found := s.mutate(ctx, func(cur []models.Note) ([]models.Note, bool) {
		i := indexOf(cur, id)
		if i < 0 {
			return cur, false
		}
		cur[i].IsFavorite = !cur[i].IsFavorite
		updated = cur[i].Clone()
		return cur, true
	})
	if !found {
		return models.Note{}, false
	}
	s.emit(EventUpdated, updated)
	return updated, true
}

// DuplicateSuffix is appended to the title of a duplicated note.
const DuplicateSuffix = " (copy)"

// Duplicate adds an independent copy of the note with id. The copy gets a
// new identity, a suffixed title and starts out of favorites.
func (s *Store) Duplicate(ctx context.Context, id string) (models.Note, bool) {
	src, ok := s.Get(id)
	if !ok {
		return models.Note{}, false
	}
	src.Title += DuplicateSuffix
	src.IsFavorite = false
	src.CreatedAt = time.Time{}
	src.UpdatedAt = time.Time{}
	return s.Add(ctx, src), true
}

// mutate applies fn under the write lock and persists the resulting list.
// It returns whether fn reported a change.
func (s *Store) mutate(ctx context.Context, fn func([]models.Note) ([]models.Note, bool)) bool {
	s.mu.Lock()
	next, changed := fn(s.notes)
	if !changed {
		s.mu.Unlock()
		return false
	}
	s.notes = next
	s.seq++
	seq := s.seq
	blob, err := json.Marshal(next)
	s.mu.Unlock()

	if err != nil {
		s.recordFailure(err)
		return true
	}
	s.persist(context.WithoutCancel(ctx), seq, blob)
	return true
}

// persist writes blob unless a newer snapshot has already been written.
func (s *Store) persist(ctx context.Context, seq uint64, blob []byte) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	if seq <= s.persisted {
		return
	}
	if err := s.kv.Set(ctx, StorageKey, string(blob)); err != nil {
		s.recordFailure(err)
		return
	}
	s.persisted = seq
	h := s.Health()
	h.LastSavedAt = s.now()
	s.health.Store(&h)
}

func (s *Store) recordFailure(err error) {
	s.logger.Error("notes: save failed", slog.String("error", err.Error()))
	h := s.Health()
	h.LastError = err.Error()
	h.LastErrorAt = s.now()
	s.health.Store(&h)
}

func (s *Store) emit(kind string, n models.Note) {
	if s.observe != nil {
		s.observe(kind, n.Clone())
	}
}

func indexOf(notes []models.Note, id string) int {
	for i := range notes {
		if notes[i].ID == id {
			return i
		}
	}
	return -1
}
