package responder

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/starford/voxnote/internal/apperr"
	"github.com/starford/voxnote/internal/models"
)

var stamp = time.Date(2025, 5, 1, 9, 30, 0, 0, time.UTC)

func instant(opts ...Option) *Mock {
	base := []Option{
		WithDelays(Delays{}),
		WithSelector(FixedSelector(0)),
		WithClock(func() time.Time { return stamp }),
		WithIDFunc(func() string { return "id-1" }),
	}
	return NewMock(append(base, opts...)...)
}

func TestProcessAudio(t *testing.T) {
	m := instant(WithSelector(FixedSelector(2)))
	n, err := m.ProcessAudio(context.Background(), "file:///rec.m4a")
	require.NoError(t, err)

	require.Equal(t, "id-1", n.ID)
	require.Equal(t, "Learning Notes - React Native Development", n.Title)
	require.Equal(t, "Learning", n.Category)
	require.Equal(t, n.Content, n.Transcription)
	require.Equal(t, "file:///rec.m4a", n.AudioURI)
	require.Equal(t, models.StatusCompleted, n.ProcessingStatus)
	require.Equal(t, models.Source(""), n.Source)
	require.False(t, n.IsFavorite)
	require.True(t, n.CreatedAt.Equal(stamp))
	require.Len(t, n.ActionItems, 3)
}

func TestProcessAudio_OutputIsIndependent(t *testing.T) {
	m := instant()
	a, err := m.ProcessAudio(context.Background(), "a")
	require.NoError(t, err)
	a.Tags[0] = "mutated"

	b, err := m.ProcessAudio(context.Background(), "b")
	require.NoError(t, err)
	require.Equal(t, "meeting", b.Tags[0])
}

func TestProcessUpload_Classification(t *testing.T) {
	m := instant()
	tests := []struct {
		fileName string
		category string
		title    string
	}{
		{"Team Meeting.mp3", "Work", "Business Meeting - Team Meeting"},
		{"sales CALL.final.wav", "Work", "Business Meeting - sales CALL.final"},
		{"Interview.m4a", "Work", "Business Meeting - Interview"},
		{"random_thoughts.mp3", "Personal", "Voice Note - random_thoughts"},
		{"noext", "Personal", "Voice Note - noext"},
	}
	for _, tc := range tests {
		n, err := m.ProcessUpload(context.Background(), "file:///"+tc.fileName, tc.fileName)
		require.NoError(t, err)
		require.Equal(t, tc.category, n.Category, tc.fileName)
		require.Equal(t, tc.title, n.Title, tc.fileName)
		require.Equal(t, tc.fileName, n.FileName)
		require.Equal(t, "file:///"+tc.fileName, n.AudioURI)
	}
}

func TestBaseName(t *testing.T) {
	require.Equal(t, "a.b", BaseName("a.b.c"))
	require.Equal(t, "trailing.", BaseName("trailing."))
	require.Equal(t, "", BaseName(".hidden"))
}

func notesFixture() []models.Note {
	return []models.Note{
		{ID: "1", Title: "Budget review", Content: "numbers", ActionItems: []string{"x"}},
		{ID: "2", Title: "Groceries", Content: "milk and budget"},
		{ID: "3", Title: "Trip", Content: "packing", ActionItems: []string{"y"}},
		{ID: "4", Title: "Gym", Content: "legs"},
	}
}

func TestChat_Precedence(t *testing.T) {
	m := instant()
	ctx := context.Background()
	notes := notesFixture()

	resp, err := m.Chat(ctx, "summary of action items", notes)
	require.NoError(t, err)
	require.Equal(t, models.ChatSummary, resp.Type)
	require.Equal(t, []string{"1", "2", "3"}, resp.RelatedNotes)
	require.Contains(t, resp.Response, "You have 4 total notes")
	require.Contains(t, resp.Response, "pending in 1 notes")

	resp, err = m.Chat(ctx, "what are my TODO items", notes)
	require.NoError(t, err)
	require.Equal(t, models.ChatActionItems, resp.Type)
	require.Equal(t, []string{"1", "3"}, resp.RelatedNotes)

	resp, err = m.Chat(ctx, "Search for budget", notes)
	require.NoError(t, err)
	require.Equal(t, models.ChatSearchResults, resp.Type)
	require.Equal(t, []string{"1", "2"}, resp.RelatedNotes)
	require.Contains(t, resp.Response, `"budget"`)

	resp, err = m.Chat(ctx, "hello there", notes)
	require.NoError(t, err)
	require.Equal(t, models.ChatGeneral, resp.Type)
	require.Equal(t, []string{"1", "2"}, resp.RelatedNotes)
}

func TestChat_EmptyNotes(t *testing.T) {
	resp, err := instant().Chat(context.Background(), "summarize", nil)
	require.NoError(t, err)
	require.Equal(t, []string{}, resp.RelatedNotes)
}

func TestChat_RelatedNotesBounded(t *testing.T) {
	m := instant()
	rapid.Check(t, func(rt *rapid.T) {
		count := rapid.IntRange(0, 12).Draw(rt, "count")
		query := rapid.SampledFrom([]string{"summary", "todo", "find", "hi"}).Draw(rt, "query")
		notes := make([]models.Note, count)
		for i := range notes {
			notes[i] = models.Note{ID: strings.Repeat("n", i+1), ActionItems: []string{"a"}}
		}

		resp, err := m.Chat(context.Background(), query, notes)
		if err != nil {
			rt.Fatalf("Chat: %v", err)
		}
		limit := map[string]int{
			models.ChatSummary:       3,
			models.ChatActionItems:   3,
			models.ChatSearchResults: 5,
			models.ChatGeneral:       2,
		}[resp.Type]
		if len(resp.RelatedNotes) > limit || len(resp.RelatedNotes) > count {
			rt.Fatalf("%s returned %d related notes for %d notes", resp.Type, len(resp.RelatedNotes), count)
		}
	})
}

func TestSuggestions(t *testing.T) {
	got, err := instant().Suggestions(context.Background(), make([]models.Note, 10))
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "category_suggestion", got[0].Type)
	require.Equal(t, "tag_suggestion", got[1].Type)
}

func TestCancelledChatFails(t *testing.T) {
	m := NewMock(WithDelays(Delays{Chat: time.Hour}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Chat(ctx, "summary", nil)
	require.ErrorIs(t, err, apperr.ErrProcessingFailed)
	require.ErrorIs(t, err, context.Canceled)
}

func TestSeededSelectorDeterministic(t *testing.T) {
	a, b := SeededSelector(42), SeededSelector(42)
	for i := 0; i < 20; i++ {
		require.Equal(t, a(3), b(3))
	}
}
