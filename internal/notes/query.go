package notes

import (
	"sort"
	"strings"
	"time"

	"github.com/starford/voxnote/internal/models"
)

// recentWindow is the trailing period counted by Stats.RecentNotes.
const recentWindow = 7 * 24 * time.Hour

// List returns a copy of every note, newest first.
func (s *Store) List() []models.Note {
	return s.filter(func(models.Note) bool { return true })
}

// Get returns the note with id.
func (s *Store) Get(id string) (models.Note, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := indexOf(s.notes, id); i >= 0 {
		return s.notes[i].Clone(), true
	}
	return models.Note{}, false
}

// Search matches query case-insensitively against title, summary, content
// and tags. A blank query returns every note.
func (s *Store) Search(query string) []models.Note {
	if strings.TrimSpace(query) == "" {
		return s.List()
	}
	q := strings.ToLower(query)
	return s.filter(func(n models.Note) bool { return Matches(n, q) })
}

// Matches reports whether lowered query occurs in the searchable fields of n.
func Matches(n models.Note, loweredQuery string) bool {
	if strings.Contains(strings.ToLower(n.Title), loweredQuery) ||
		strings.Contains(strings.ToLower(n.Summary), loweredQuery) ||
		strings.Contains(strings.ToLower(n.Content), loweredQuery) {
		return true
	}
	for _, tag := range n.Tags {
		if strings.Contains(strings.ToLower(tag), loweredQuery) {
			return true
		}
	}
	return false
}

// ByCategory returns notes whose category equals category. Uncategorized
// notes are addressed by models.DefaultCategory or the empty string.
func (s *Store) ByCategory(category string) []models.Note {
	if category == "" {
		category = models.DefaultCategory
	}
	return s.filter(func(n models.Note) bool { return n.CategoryLabel() == category })
}

// Favorites returns notes flagged as favorite.
func (s *Store) Favorites() []models.Note {
	return s.filter(func(n models.Note) bool { return n.IsFavorite })
}

// Categories returns the distinct category labels in first-seen order.
func (s *Store) Categories() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	out := []string{}
	for _, n := range s.notes {
		c := n.CategoryLabel()
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// Stats aggregates the current list. Notes stamped at or after now-7d
// count as recent.
func (s *Store) Stats() models.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ComputeStats(s.notes, s.now())
}

// ComputeStats is the pure aggregation behind Store.Stats.
func ComputeStats(notes []models.Note, now time.Time) models.Stats {
	cutoff := now.Add(-recentWindow)
	st := models.Stats{
		TotalNotes:    len(notes),
		CategoryStats: make(map[string]int),
	}
	for _, n := range notes {
		if !n.Timestamp.Before(cutoff) {
			st.RecentNotes++
		}
		st.TotalActionItems += len(n.ActionItems)
		st.TotalInsights += len(n.KeyPoints)
		st.CategoryStats[n.CategoryLabel()]++
	}
	return st
}

// Today counts notes whose createdAt falls on the current calendar day in
// the store's location.
func (s *Store) Today() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	y, m, d := s.now().In(s.loc).Date()
	count := 0
	for _, n := range s.notes {
		ny, nm, nd := n.CreatedAt.In(s.loc).Date()
		if ny == y && nm == m && nd == d {
			count++
		}
	}
	return count
}

// Recent returns up to limit notes ordered by creation time, newest first.
func (s *Store) Recent(limit int) []models.Note {
	out := s.List()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *Store) filter(keep func(models.Note) bool) []models.Note {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Note, 0, len(s.notes))
	for _, n := range s.notes {
		if keep(n) {
			out = append(out, n.Clone())
		}
	}
	return out
}
