package notes

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/starford/voxnote/internal/kv"
	"github.com/starford/voxnote/internal/models"
	"github.com/starford/voxnote/internal/testutil"
)

func seed(t *testing.T, notes ...models.Note) *Store {
	t.Helper()
	s := newLoaded(t, kv.NewMemory(), WithClock(fixedClock(baseTime)))
	for i := len(notes) - 1; i >= 0; i-- {
		s.Add(context.Background(), notes[i])
	}
	return s
}

func titles(notes []models.Note) []string {
	out := make([]string, len(notes))
	for i, n := range notes {
		out[i] = n.Title
	}
	return out
}

func TestSearch(t *testing.T) {
	s := seed(t,
		models.Note{Title: "Team Sync", Content: "budget review"},
		models.Note{Title: "Groceries", Tags: []string{"Errands"}},
		models.Note{Title: "Ideas", Summary: "A new BUDGET app"},
	)

	tests := []struct {
		query string
		want  []string
	}{
		{"budget", []string{"Team Sync", "Ideas"}},
		{"errand", []string{"Groceries"}},
		{"SYNC", []string{"Team Sync"}},
		{"", []string{"Team Sync", "Groceries", "Ideas"}},
		{"   ", []string{"Team Sync", "Groceries", "Ideas"}},
		{"nothing", []string{}},
	}
	for _, tc := range tests {
		require.Equal(t, tc.want, titles(s.Search(tc.query)), "query %q", tc.query)
	}
}

func TestSearch_ResultsMatchAndPreserveOrder(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		words := rapid.SliceOfN(rapid.StringMatching(`[a-dA-D]{1,4}`), 1, 12).Draw(rt, "words")
		query := rapid.StringMatching(`[a-dA-D]{1,2}`).Draw(rt, "query")

		s := New(kv.NewMemory(), testutil.Logger())
		s.Load(context.Background())
		for _, w := range words {
			s.Add(context.Background(), models.Note{Title: w})
		}

		all := s.List()
		got := s.Search(query)
		q := strings.ToLower(query)

		j := 0
		for _, n := range all {
			match := strings.Contains(strings.ToLower(n.Title), q)
			if j < len(got) && got[j].ID == n.ID {
				if !match {
					rt.Fatalf("%q returned for query %q", n.Title, query)
				}
				j++
				continue
			}
			if match {
				rt.Fatalf("%q missing for query %q", n.Title, query)
			}
		}
		if j != len(got) {
			rt.Fatalf("results out of list order")
		}
	})
}

func TestSearch_ReturnsFreshSlice(t *testing.T) {
	s := seed(t, models.Note{Title: "a"})
	got := s.Search("")
	got[0].Title = "changed"
	require.Equal(t, "a", s.List()[0].Title)
}

func TestByCategoryAndCategories(t *testing.T) {
	s := seed(t,
		models.Note{Title: "w1", Category: "Work"},
		models.Note{Title: "p1", Category: "Personal"},
		models.Note{Title: "u1"},
		models.Note{Title: "w2", Category: "Work"},
	)

	require.Equal(t, []string{"w1", "w2"}, titles(s.ByCategory("Work")))
	require.Equal(t, []string{"u1"}, titles(s.ByCategory("")))
	require.Equal(t, []string{"u1"}, titles(s.ByCategory(models.DefaultCategory)))
	require.Empty(t, s.ByCategory("work"))
	require.Equal(t, []string{"Work", "Personal", models.DefaultCategory}, s.Categories())
}

func TestStats_Example(t *testing.T) {
	now := baseTime
	notes := []models.Note{
		{Timestamp: now, ActionItems: []string{"a", "b"}, Category: "Work"},
		{Timestamp: now.Add(-48 * time.Hour)},
		{Timestamp: now.Add(-240 * time.Hour), ActionItems: []string{"c"}, KeyPoints: []string{"k"}},
	}

	st := ComputeStats(notes, now)
	require.Equal(t, 3, st.TotalNotes)
	require.Equal(t, 2, st.RecentNotes)
	require.Equal(t, 3, st.TotalActionItems)
	require.Equal(t, 1, st.TotalInsights)
	require.Equal(t, map[string]int{"Work": 1, models.DefaultCategory: 2}, st.CategoryStats)
}

func TestStats_WindowIsInclusive(t *testing.T) {
	notes := []models.Note{{Timestamp: baseTime.Add(-recentWindow)}}
	require.Equal(t, 1, ComputeStats(notes, baseTime).RecentNotes)

	notes[0].Timestamp = notes[0].Timestamp.Add(-time.Nanosecond)
	require.Equal(t, 0, ComputeStats(notes, baseTime).RecentNotes)
}

func TestStats_UsesStoreClock(t *testing.T) {
	s := seed(t, models.Note{Title: "a"}, models.Note{Title: "b"})
	st := s.Stats()
	require.Equal(t, 2, st.TotalNotes)
	require.Equal(t, 2, st.RecentNotes)
}

func TestToday_UsesLocalCalendarDay(t *testing.T) {
	// 12:00 UTC on Mar 10 is 02:00 on Mar 11 at UTC+14.
	east := time.FixedZone("UTC+14", 14*60*60)
	s := newLoaded(t, kv.NewMemory(), WithClock(fixedClock(baseTime)), WithLocation(east))
	s.Add(context.Background(), models.Note{Title: "late evening", CreatedAt: baseTime.Add(-3 * time.Hour)})
	s.Add(context.Background(), models.Note{Title: "after midnight", CreatedAt: baseTime.Add(-time.Hour)})

	require.Equal(t, 1, s.Today())

	utc := newLoaded(t, kv.NewMemory(), WithClock(fixedClock(baseTime)), WithLocation(time.UTC))
	utc.Add(context.Background(), models.Note{Title: "late evening", CreatedAt: baseTime.Add(-3 * time.Hour)})
	require.Equal(t, 1, utc.Today())
}

func TestTodayAndRecent(t *testing.T) {
	s := newLoaded(t, kv.NewMemory(), WithClock(fixedClock(baseTime)), WithLocation(time.UTC))
	for _, n := range []models.Note{
		{Title: "mid", CreatedAt: baseTime.Add(-24 * time.Hour)},
		{Title: "old", CreatedAt: baseTime.Add(-72 * time.Hour)},
		{Title: "new", CreatedAt: baseTime.Add(-time.Hour)},
	} {
		s.Add(context.Background(), n)
	}

	// Every note was added now, but only one was created today.
	require.Equal(t, 1, s.Today())
	require.Equal(t, []string{"new", "mid"}, titles(s.Recent(2)))
	require.Len(t, s.Recent(10), 3)
}
