// Package testutil provides shared test helpers for stores and kv backends.
package testutil

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/starford/voxnote/internal/kv"
)

// ErrInjected is returned by FlakyKV while failures are switched on.
var ErrInjected = errors.New("testutil: injected failure")

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// FlakyKV is an in-memory kv.Store whose reads and writes can be made to
// fail on demand.
type FlakyKV struct {
	*kv.Memory

	mu       sync.Mutex
	failGet  bool
	failSet  bool
	setCalls int
}

// NewFlakyKV returns an empty FlakyKV that succeeds until told otherwise.
func NewFlakyKV() *FlakyKV {
	return &FlakyKV{Memory: kv.NewMemory()}
}

// FailGets switches read failures on or off.
func (f *FlakyKV) FailGets(v bool) {
	f.mu.Lock()
	f.failGet = v
	f.mu.Unlock()
}

// FailSets switches write failures on or off.
func (f *FlakyKV) FailSets(v bool) {
	f.mu.Lock()
	f.failSet = v
	f.mu.Unlock()
}

// SetCalls returns how many times Set has been called.
func (f *FlakyKV) SetCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.setCalls
}

// Get implements kv.Store.
func (f *FlakyKV) Get(ctx context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	fail := f.failGet
	f.mu.Unlock()
	if fail {
		return "", false, ErrInjected
	}
	return f.Memory.Get(ctx, key)
}

// Set implements kv.Store.
func (f *FlakyKV) Set(ctx context.Context, key, value string) error {
	f.mu.Lock()
	f.setCalls++
	fail := f.failSet
	f.mu.Unlock()
	if fail {
		return ErrInjected
	}
	return f.Memory.Set(ctx, key, value)
}

// TestSQLite opens a temporary SQLite kv store that is cleaned up with t.
func TestSQLite(t *testing.T) *kv.SQLite {
	t.Helper()
	dbFile, err := os.CreateTemp(t.TempDir(), "voxnote-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()

	store, err := kv.OpenSQLite(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}
