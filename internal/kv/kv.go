// Package kv defines the durable key-value store that notes and settings
// are serialized into, along with its backends.
package kv

import (
	"context"
	"fmt"
	"regexp"
)

// Store is a durable string-keyed blob store. Writes replace the whole value.
type Store interface {
	// Get returns the value for key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// Set stores value under key, overwriting any previous value.
	Set(ctx context.Context, key, value string) error
}

var keyRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// ValidKey reports whether key is safe to use with every backend.
func ValidKey(key string) error {
	if !keyRe.MatchString(key) || len(key) > 128 {
		return fmt.Errorf("kv: invalid key %q", key)
	}
	return nil
}
