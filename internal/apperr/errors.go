// Package apperr holds the sentinel errors shared across voxnote packages.
package apperr

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrInvalidSetting   = errors.New("invalid setting")
	ErrUnsupportedMedia = errors.New("unsupported media type")
	ErrTooLarge         = errors.New("file too large")
	ErrInvalidName      = errors.New("invalid file name")

	// ErrProcessingFailed is returned when the AI backend could not turn a
	// capture into a note. Callers should offer a retry.
	ErrProcessingFailed = errors.New("processing failed")
)
