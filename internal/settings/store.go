// Package settings holds the user configuration record and persists it as a
// single JSON object.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/starford/voxnote/internal/apperr"
	"github.com/starford/voxnote/internal/kv"
	"github.com/starford/voxnote/internal/models"
)

// StorageKey is the kv key holding the serialized settings.
const StorageKey = "app_settings"

// Store owns the current settings. Reads never block on I/O.
type Store struct {
	kv       kv.Store
	logger   *slog.Logger
	onChange []func(models.Settings)

	mu      sync.RWMutex
	current models.Settings
	loading bool
	seq     uint64

	persistMu sync.Mutex
	persisted uint64
	lastErr   error
}

// Option configures a Store.
type Option func(*Store)

// OnChange registers fn to run after every applied change, including Load.
func OnChange(fn func(models.Settings)) Option {
	return func(s *Store) { s.onChange = append(s.onChange, fn) }
}

// New returns a Store holding the defaults until Load completes.
func New(store kv.Store, logger *slog.Logger, opts ...Option) *Store {
	s := &Store{
		kv:      store,
		logger:  logger,
		current: models.DefaultSettings(),
		loading: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load merges the persisted record over the defaults key by key. Unknown
// keys are ignored and fields with the wrong JSON type keep their default.
func (s *Store) Load(ctx context.Context) {
	merged := models.DefaultSettings()
	raw, ok, err := s.kv.Get(ctx, StorageKey)
	switch {
	case err != nil:
		s.logger.Error("settings: load failed", slog.String("error", err.Error()))
	case ok:
		if err := json.Unmarshal([]byte(raw), &merged); err != nil {
			var typeErr *json.UnmarshalTypeError
			if !errors.As(err, &typeErr) {
				merged = models.DefaultSettings()
			}
			s.logger.Warn("settings: decode failed", slog.String("error", err.Error()))
		}
	}

	s.mu.Lock()
	s.current = merged
	s.loading = false
	s.seq++
	s.mu.Unlock()

	s.notify(merged)
}

// Loading reports whether Load has not completed yet.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Get returns the current settings.
func (s *Store) Get() models.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// LastPersistError returns the error from the latest failed write, or nil
// once a later write succeeded.
func (s *Store) LastPersistError() error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	return s.lastErr
}

// Update sets a single key, addressed by its JSON name. value may be any Go
// value or a json.RawMessage. The only rejections are unknown keys and
// values whose JSON type the key cannot hold; both wrap
// apperr.ErrInvalidSetting.
func (s *Store) Update(ctx context.Context, key string, value any) (models.Settings, error) {
	encoded, err := json.Marshal(value)
	if err != nil {
		return models.Settings{}, fmt.Errorf("settings: %s: %w", key, apperr.ErrInvalidSetting)
	}

	var next models.Settings
	err = s.apply(ctx, func(cur models.Settings) (models.Settings, error) {
		fields, err := toFields(cur)
		if err != nil {
			return cur, err
		}
		if _, known := fields[key]; !known {
			return cur, fmt.Errorf("settings: unknown key %q: %w", key, apperr.ErrInvalidSetting)
		}
		fields[key] = encoded
		blob, err := json.Marshal(fields)
		if err != nil {
			return cur, err
		}
		next = cur
		if err := json.Unmarshal(blob, &next); err != nil {
			return cur, fmt.Errorf("settings: %s: %w", key, apperr.ErrInvalidSetting)
		}
		return next, nil
	})
	if err != nil {
		return models.Settings{}, err
	}
	return next, nil
}

// Replace stores a complete record.
func (s *Store) Replace(ctx context.Context, v models.Settings) models.Settings {
	_ = s.apply(ctx, func(models.Settings) (models.Settings, error) { return v, nil })
	return v
}

// Reset restores and persists the defaults.
func (s *Store) Reset(ctx context.Context) models.Settings {
	return s.Replace(ctx, models.DefaultSettings())
}

func (s *Store) apply(ctx context.Context, fn func(models.Settings) (models.Settings, error)) error {
	s.mu.Lock()
	next, err := fn(s.current)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.current = next
	s.seq++
	seq := s.seq
	blob, merr := json.Marshal(next)
	s.mu.Unlock()

	if merr == nil {
		s.persist(context.WithoutCancel(ctx), seq, blob)
	}
	s.notify(next)
	return nil
}

func (s *Store) persist(ctx context.Context, seq uint64, blob []byte) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	if seq <= s.persisted {
		return
	}
	if err := s.kv.Set(ctx, StorageKey, string(blob)); err != nil {
		s.logger.Error("settings: save failed", slog.String("error", err.Error()))
		s.lastErr = err
		return
	}
	s.persisted = seq
	s.lastErr = nil
}

func (s *Store) notify(v models.Settings) {
	for _, fn := range s.onChange {
		fn(v)
	}
}

func toFields(v models.Settings) (map[string]json.RawMessage, error) {
	blob, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(blob, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}
