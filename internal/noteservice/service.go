// Package noteservice coordinates the responder, the notes store and the
// media directory. It is the layer HTTP, MCP and the inbox watcher share.
package noteservice

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/starford/voxnote/internal/apperr"
	"github.com/starford/voxnote/internal/checksum"
	"github.com/starford/voxnote/internal/media"
	"github.com/starford/voxnote/internal/models"
	"github.com/starford/voxnote/internal/notes"
	"github.com/starford/voxnote/internal/responder"
)

// Dashboard is the home-screen summary.
type Dashboard struct {
	Stats      models.Stats  `json:"stats"`
	Today      int           `json:"today"`
	Recent     []models.Note `json:"recent"`
	Categories []string      `json:"categories"`
}

// RecentLimit is how many notes Dashboard lists, as on the home screen.
const RecentLimit = 2

// Service wires captures through the responder into the store.
type Service struct {
	notes  *notes.Store
	ai     responder.Responder
	media  *media.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a new capture service. media may be nil, in which case
// Upload is unavailable.
func NewService(store *notes.Store, ai responder.Responder, mediaStore *media.Store, logger *slog.Logger) *Service {
	return &Service{
		notes:  store,
		ai:     ai,
		media:  mediaStore,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Notes exposes the underlying store for read-only views.
func (s *Service) Notes() *notes.Store { return s.notes }

// Media returns the upload directory, or nil when none is configured.
func (s *Service) Media() *media.Store { return s.media }

// Record organizes a finished recording and stores the result. The capture
// settles even if ctx is cancelled first, so a client that disconnects
// mid-request still finds the note afterwards.
func (s *Service) Record(ctx context.Context, audioURI string) (models.Note, error) {
	ctx = context.WithoutCancel(ctx)
	draft, err := s.ai.ProcessAudio(ctx, audioURI)
	if err != nil {
		return models.Note{}, err
	}
	draft.Source = models.SourceVoiceRecording
	n := s.notes.Add(ctx, draft)
	s.logger.Info("noteservice: recording stored", slog.String("id", n.ID), slog.String("title", n.Title))
	return n, nil
}

// Import organizes an audio file already on disk. size is the file length
// in bytes and is checked against media.MaxBytes. Like Record, it ignores
// cancellation of ctx.
func (s *Service) Import(ctx context.Context, fileURI, fileName string, size int64) (models.Note, error) {
	if err := media.Check(fileName, size); err != nil {
		return models.Note{}, err
	}
	ctx = context.WithoutCancel(ctx)
	draft, err := s.ai.ProcessUpload(ctx, fileURI, fileName)
	if err != nil {
		return models.Note{}, err
	}
	draft.Source = models.SourceUpload
	n := s.notes.Add(ctx, draft)
	s.logger.Info("noteservice: upload stored", slog.String("id", n.ID), slog.String("file", fileName))
	return n, nil
}

// Upload saves r into the media directory and imports it.
func (s *Service) Upload(ctx context.Context, fileName string, r io.Reader) (models.Note, error) {
	if s.media == nil {
		return models.Note{}, fmt.Errorf("noteservice: media directory not configured")
	}
	saved, err := s.media.Save(fileName, r)
	if err != nil {
		return models.Note{}, err
	}
	n, err := s.Import(ctx, saved.URI, saved.Name, saved.Size)
	if err != nil {
		if rmErr := s.media.Remove(saved.Name); rmErr != nil {
			s.logger.Warn("noteservice: remove failed upload", slog.String("file", saved.Name), slog.String("error", rmErr.Error()))
		}
		return models.Note{}, err
	}
	return n, nil
}

// Create stores a note typed in by hand.
func (s *Service) Create(ctx context.Context, draft models.Note) models.Note {
	return s.notes.Add(ctx, draft)
}

// Get returns the note with id or apperr.ErrNotFound.
func (s *Service) Get(id string) (models.Note, error) {
	n, ok := s.notes.Get(id)
	if !ok {
		return models.Note{}, apperr.ErrNotFound
	}
	return n, nil
}

// Update merges patch and stamps updatedAt unless the patch sets it.
func (s *Service) Update(ctx context.Context, id string, patch models.NotePatch) (models.Note, error) {
	if patch.UpdatedAt == nil {
		now := s.now()
		patch.UpdatedAt = &now
	}
	n, ok := s.notes.Update(ctx, id, patch)
	if !ok {
		return models.Note{}, apperr.ErrNotFound
	}
	return n, nil
}

// Delete removes the note with id.
func (s *Service) Delete(ctx context.Context, id string) error {
	if !s.notes.Delete(ctx, id) {
		return apperr.ErrNotFound
	}
	return nil
}

// ToggleFavorite flips the favorite flag.
func (s *Service) ToggleFavorite(ctx context.Context, id string) (models.Note, error) {
	n, ok := s.notes.ToggleFavorite(ctx, id)
	if !ok {
		return models.Note{}, apperr.ErrNotFound
	}
	return n, nil
}

// Duplicate copies the note with id.
func (s *Service) Duplicate(ctx context.Context, id string) (models.Note, error) {
	n, ok := s.notes.Duplicate(ctx, id)
	if !ok {
		return models.Note{}, apperr.ErrNotFound
	}
	return n, nil
}

// Query filters notes. An empty query with no category or favorite filter
// returns everything.
type Query struct {
	Text      string
	Category  string
	Favorites bool
}

// List applies q. Filters combine with AND; order stays newest first.
func (s *Service) List(q Query) []models.Note {
	var out []models.Note
	switch {
	case q.Favorites:
		out = s.notes.Favorites()
	case q.Category != "":
		out = s.notes.ByCategory(q.Category)
	default:
		return s.notes.Search(q.Text)
	}

	filtered := out[:0]
	for _, n := range out {
		if q.Category != "" && n.CategoryLabel() != q.Category {
			continue
		}
		if strings.TrimSpace(q.Text) != "" && !notes.Matches(n, strings.ToLower(q.Text)) {
			continue
		}
		filtered = append(filtered, n)
	}
	return filtered
}

// Ask answers a free-text question about the current notes.
func (s *Service) Ask(ctx context.Context, query string) (models.ChatResponse, error) {
	return s.ai.Chat(ctx, query, s.notes.List())
}

// Suggest returns organization hints for the current notes.
func (s *Service) Suggest(ctx context.Context) ([]models.Suggestion, error) {
	return s.ai.Suggestions(ctx, s.notes.List())
}

// Dashboard builds the home-screen summary.
func (s *Service) Dashboard() Dashboard {
	return Dashboard{
		Stats:      s.notes.Stats(),
		Today:      s.notes.Today(),
		Recent:     s.notes.Recent(RecentLimit),
		Categories: s.notes.Categories(),
	}
}

// Export returns every note as a JSON array and its checksum.
func (s *Service) Export() ([]byte, string, error) {
	blob, err := json.Marshal(s.notes.List())
	if err != nil {
		return nil, "", fmt.Errorf("noteservice: export: %w", err)
	}
	return blob, checksum.Sum(blob), nil
}
