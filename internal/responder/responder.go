// Package responder turns captures and questions into organized output.
//
// Mock is the only implementation. It returns canned content after a
// simulated delay so callers exercise the same pending-then-resolved flow a
// network backend would have.
package responder

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/voxnote/internal/apperr"
	"github.com/starford/voxnote/internal/models"
)

// Responder is the contract a transcription and organization backend
// fulfils. Failures are reported as apperr.ErrProcessingFailed.
type Responder interface {
	ProcessAudio(ctx context.Context, audioURI string) (models.Note, error)
	ProcessUpload(ctx context.Context, fileURI, fileName string) (models.Note, error)
	Chat(ctx context.Context, query string, notes []models.Note) (models.ChatResponse, error)
	Suggestions(ctx context.Context, notes []models.Note) ([]models.Suggestion, error)
}

// Delays are the simulated latencies per operation.
type Delays struct {
	Audio   time.Duration
	Upload  time.Duration
	Chat    time.Duration
	Suggest time.Duration
}

// DefaultDelays returns the stock latencies.
func DefaultDelays() Delays {
	return Delays{
		Audio:   2 * time.Second,
		Upload:  3 * time.Second,
		Chat:    1500 * time.Millisecond,
		Suggest: time.Second,
	}
}

// Selector picks an index in [0, n).
type Selector func(n int) int

// SeededSelector returns a Selector backed by a PCG source. A zero seed
// draws one from the runtime.
func SeededSelector(seed uint64) Selector {
	if seed == 0 {
		seed = rand.Uint64()
	}
	var mu sync.Mutex
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	return func(n int) int {
		mu.Lock()
		defer mu.Unlock()
		return r.IntN(n)
	}
}

// FixedSelector always picks i, clamped to the catalog size.
func FixedSelector(i int) Selector {
	return func(n int) int {
		if i < 0 {
			return 0
		}
		if i >= n {
			return n - 1
		}
		return i
	}
}

// Mock is a Responder that never calls out.
type Mock struct {
	delays Delays
	pick   Selector
	now    func() time.Time
	newID  func() string
}

var _ Responder = (*Mock)(nil)

// Option configures a Mock.
type Option func(*Mock)

// WithDelays overrides the simulated latencies.
func WithDelays(d Delays) Option { return func(m *Mock) { m.delays = d } }

// WithSelector overrides template selection for recordings.
func WithSelector(s Selector) Option { return func(m *Mock) { m.pick = s } }

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(m *Mock) { m.now = now } }

// WithIDFunc overrides id generation.
func WithIDFunc(fn func() string) Option { return func(m *Mock) { m.newID = fn } }

// NewMock returns a Mock with default delays and a random selector.
func NewMock(opts ...Option) *Mock {
	m := &Mock{
		delays: DefaultDelays(),
		pick:   SeededSelector(0),
		now:    func() time.Time { return time.Now().UTC() },
		newID: func() string {
			id, err := uuid.NewV7()
			if err != nil {
				return uuid.NewString()
			}
			return id.String()
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ProcessAudio organizes a fresh recording into one of the stock templates.
func (m *Mock) ProcessAudio(ctx context.Context, audioURI string) (models.Note, error) {
	if err := wait(ctx, m.delays.Audio); err != nil {
		return models.Note{}, err
	}
	t := recordingTemplates[m.pick(len(recordingTemplates))]
	n := m.stamp(t.note())
	n.AudioURI = audioURI
	return n, nil
}

// ProcessUpload organizes an imported file. Names mentioning a meeting, call
// or interview are filed as Work, everything else as Personal.
func (m *Mock) ProcessUpload(ctx context.Context, fileURI, fileName string) (models.Note, error) {
	if err := wait(ctx, m.delays.Upload); err != nil {
		return models.Note{}, err
	}
	t := personalUpload
	if IsBusinessFile(fileName) {
		t = businessUpload
	}
	n := m.stamp(t.note())
	n.Title += BaseName(fileName)
	n.AudioURI = fileURI
	n.FileName = fileName
	return n, nil
}

// IsBusinessFile reports whether fileName names a work recording.
func IsBusinessFile(fileName string) bool {
	lower := strings.ToLower(fileName)
	for _, kw := range businessKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// BaseName strips the last extension from fileName.
func BaseName(fileName string) string {
	ext := filepath.Ext(fileName)
	if ext == "." {
		return fileName
	}
	return strings.TrimSuffix(fileName, ext)
}

var searchVerbs = regexp.MustCompile(`(?i)search|find|for`)

// Chat answers a question about notes. Rules are tried in order and the
// first match wins: summary, action items, search, general.
func (m *Mock) Chat(ctx context.Context, query string, notes []models.Note) (models.ChatResponse, error) {
	if err := wait(ctx, m.delays.Chat); err != nil {
		return models.ChatResponse{}, err
	}
	lower := strings.ToLower(query)

	switch {
	case strings.Contains(lower, "summary") || strings.Contains(lower, "summarize"):
		return models.ChatResponse{
			Type: models.ChatSummary,
			Response: fmt.Sprintf("Here's a summary of your notes: You have %d total notes across various categories. "+
				"Recent themes include work meetings, personal planning, and learning activities. "+
				"Key action items are pending in %d notes.", len(notes), fraction(len(notes), 0.3)),
			RelatedNotes: ids(notes, 3),
		}, nil

	case strings.Contains(lower, "action") || strings.Contains(lower, "todo"):
		var withActions []models.Note
		for _, n := range notes {
			if len(n.ActionItems) > 0 {
				withActions = append(withActions, n)
			}
		}
		return models.ChatResponse{
			Type: models.ChatActionItems,
			Response: fmt.Sprintf("You have action items in %d notes. "+
				"Here are the most recent ones that need attention.", len(withActions)),
			RelatedNotes: ids(withActions, 3),
		}, nil

	case strings.Contains(lower, "search") || strings.Contains(lower, "find"):
		term := strings.TrimSpace(searchVerbs.ReplaceAllString(query, ""))
		lt := strings.ToLower(term)
		var matches []models.Note
		for _, n := range notes {
			if strings.Contains(strings.ToLower(n.Title), lt) || strings.Contains(strings.ToLower(n.Content), lt) {
				matches = append(matches, n)
			}
		}
		return models.ChatResponse{
			Type: models.ChatSearchResults,
			Response: fmt.Sprintf("Found %d notes related to \"%s\". "+
				"Here are the most relevant matches.", len(matches), term),
			RelatedNotes: ids(matches, 5),
		}, nil
	}

	return models.ChatResponse{
		Type: models.ChatGeneral,
		Response: fmt.Sprintf("I understand you're asking about: \"%s\". Based on your notes, I can help you organize, "+
			"search, or summarize your content. Try asking me to \"summarize my notes\" or \"find action items\".", query),
		RelatedNotes: ids(notes, 2),
	}, nil
}

// Suggestions returns organization hints for notes.
func (m *Mock) Suggestions(ctx context.Context, notes []models.Note) ([]models.Suggestion, error) {
	if err := wait(ctx, m.delays.Suggest); err != nil {
		return nil, err
	}
	return suggestionCatalog(len(notes))[:2], nil
}

func (m *Mock) stamp(n models.Note) models.Note {
	now := m.now()
	n.ID = m.newID()
	n.CreatedAt = now
	n.UpdatedAt = now
	n.ProcessingStatus = models.StatusCompleted
	return n
}

// wait blocks for d or until ctx is done.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("responder: %w: %w", apperr.ErrProcessingFailed, err)
		}
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("responder: %w: %w", apperr.ErrProcessingFailed, ctx.Err())
	}
}

func fraction(n int, f float64) int {
	return int(math.Floor(float64(n) * f))
}

func fmtPending(noteCount int) string {
	return fmt.Sprintf("You have %d action items that haven't been completed.", fraction(noteCount, 0.4))
}

func ids(notes []models.Note, limit int) []string {
	out := []string{}
	for i, n := range notes {
		if i == limit {
			break
		}
		out = append(out, n.ID)
	}
	return out
}
