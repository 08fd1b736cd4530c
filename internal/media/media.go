// Package media stores uploaded audio files under a single directory.
package media

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/voxnote/internal/apperr"
	"github.com/starford/voxnote/internal/checksum"
)

// MaxBytes is the largest accepted audio file.
const MaxBytes = 25 << 20 // 25 MB

var allowedExt = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".m4a":  true,
	".webm": true,
	".mp4":  true,
	".aac":  true,
}

// Supported reports whether name has an accepted audio extension.
func Supported(name string) bool {
	return allowedExt[strings.ToLower(filepath.Ext(name))]
}

// Check validates an incoming file by name and declared size.
func Check(name string, size int64) error {
	if !Supported(name) {
		return fmt.Errorf("media: %s: %w", name, apperr.ErrUnsupportedMedia)
	}
	if size > MaxBytes {
		return fmt.Errorf("media: %s is %d bytes: %w", name, size, apperr.ErrTooLarge)
	}
	return nil
}

// Store keeps files in a flat directory.
type Store struct {
	root string
}

// Saved describes a file written by Save.
type Saved struct {
	Name     string `json:"fileName"`
	Path     string `json:"-"`
	URI      string `json:"audioUri"`
	Size     int64  `json:"size"`
	Checksum string `json:"checksum"`
}

// NewStore creates root if needed.
func NewStore(root string) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("media: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("media: create root: %w", err)
	}
	return &Store{root: abs}, nil
}

// Root returns the absolute directory path.
func (s *Store) Root() string { return s.root }

// safeName validates that name is a plain file name and returns its
// absolute path under root. Dots inside a name are fine; only names that
// would leave root or address a directory are rejected.
func (s *Store) safeName(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("media: filename is required: %w", apperr.ErrInvalidName)
	}
	cleaned := filepath.Clean(name)
	if cleaned != filepath.Base(cleaned) || cleaned == "." || cleaned == ".." || strings.ContainsRune(name, '/') {
		return "", fmt.Errorf("media: %q: %w", name, apperr.ErrInvalidName)
	}
	return filepath.Join(s.root, cleaned), nil
}

// Path resolves name to a file that exists under root.
func (s *Store) Path(name string) (string, error) {
	abs, err := s.safeName(name)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(abs); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("media: %s: %w", name, apperr.ErrNotFound)
		}
		return "", err
	}
	return abs, nil
}

// Remove deletes name from root. A missing file is not an error.
func (s *Store) Remove(name string) error {
	abs, err := s.safeName(name)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("media: remove %s: %w", name, err)
	}
	return nil
}

// Save streams r into root under name. Existing files are replaced.
// Bodies over MaxBytes are rejected and nothing is kept.
func (s *Store) Save(name string, r io.Reader) (Saved, error) {
	if err := Check(name, 0); err != nil {
		return Saved{}, err
	}
	abs, err := s.safeName(name)
	if err != nil {
		return Saved{}, err
	}

	tmp, err := os.CreateTemp(s.root, ".voxnote-upload-*")
	if err != nil {
		return Saved{}, fmt.Errorf("media: create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	hr := checksum.NewReader(io.LimitReader(r, MaxBytes+1))
	written, err := io.Copy(tmp, hr)
	if err != nil {
		tmp.Close()
		return Saved{}, fmt.Errorf("media: write: %w", err)
	}
	if written > MaxBytes {
		tmp.Close()
		return Saved{}, fmt.Errorf("media: %s: %w", name, apperr.ErrTooLarge)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return Saved{}, fmt.Errorf("media: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return Saved{}, fmt.Errorf("media: close: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return Saved{}, fmt.Errorf("media: rename: %w", err)
	}

	return Saved{
		Name:     filepath.Base(abs),
		Path:     abs,
		URI:      "file://" + filepath.ToSlash(abs),
		Size:     written,
		Checksum: hr.Sum(),
	}, nil
}
