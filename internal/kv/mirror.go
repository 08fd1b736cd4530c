package kv

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// Mirror writes to a primary store and, while enabled, copies every write
// to a backup store. Backup failures are logged and never returned.
//
// When the primary has no value for a key and mirroring is enabled, Get
// falls back to the backup so a wiped device can restore from it.
type Mirror struct {
	primary Store
	backup  Store
	logger  *slog.Logger
	enabled atomic.Bool
}

// NewMirror returns a Mirror that starts disabled.
func NewMirror(primary, backup Store, logger *slog.Logger) *Mirror {
	return &Mirror{primary: primary, backup: backup, logger: logger}
}

// SetEnabled toggles backup writes.
func (m *Mirror) SetEnabled(v bool) {
	if m.enabled.Swap(v) != v {
		m.logger.Info("kv: backup mirror toggled", slog.Bool("enabled", v))
	}
}

// Enabled reports whether backup writes are active.
func (m *Mirror) Enabled() bool { return m.enabled.Load() }

// Get implements Store.
func (m *Mirror) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok, err := m.primary.Get(ctx, key)
	if err != nil || ok || !m.enabled.Load() {
		return v, ok, err
	}
	bv, bok, berr := m.backup.Get(ctx, key)
	if berr != nil {
		m.logger.Warn("kv: backup read failed", slog.String("key", key), slog.String("error", berr.Error()))
		return "", false, nil
	}
	if bok {
		m.logger.Info("kv: restored from backup", slog.String("key", key))
	}
	return bv, bok, nil
}

// Set implements Store.
func (m *Mirror) Set(ctx context.Context, key, value string) error {
	if err := m.primary.Set(ctx, key, value); err != nil {
		return err
	}
	if !m.enabled.Load() {
		return nil
	}
	if err := m.backup.Set(ctx, key, value); err != nil {
		m.logger.Warn("kv: backup write failed", slog.String("key", key), slog.String("error", err.Error()))
	}
	return nil
}
