// Package models defines the domain types for voxnote.
package models

import (
	"encoding/json"
	"time"
)

// DefaultCategory is the label used for notes that carry no category.
const DefaultCategory = "Uncategorized"

// Source records how a note entered the system.
type Source string

const (
	SourceVoiceRecording Source = "voice_recording"
	SourceUpload         Source = "upload"
)

// ProcessingStatus tracks a note through the AI pipeline.
type ProcessingStatus string

const (
	StatusPending   ProcessingStatus = "pending"
	StatusCompleted ProcessingStatus = "completed"
	StatusFailed    ProcessingStatus = "failed"
)

// Note is one organized capture. Collection fields are never nil once a
// note has been decoded or normalized.
type Note struct {
	ID               string           `json:"id"`
	Title            string           `json:"title"`
	Content          string           `json:"content"`
	Transcription    string           `json:"transcription,omitempty"`
	Summary          string           `json:"summary,omitempty"`
	Category         string           `json:"category,omitempty"`
	Tags             []string         `json:"tags"`
	ActionItems      []string         `json:"actionItems"`
	KeyPoints        []string         `json:"keyPoints"`
	MainTopics       []string         `json:"mainTopics"`
	Questions        []string         `json:"questions"`
	IsFavorite       bool             `json:"isFavorite"`
	Source           Source           `json:"source,omitempty"`
	AudioURI         string           `json:"audioUri,omitempty"`
	FileName         string           `json:"fileName,omitempty"`
	Timestamp        time.Time        `json:"timestamp"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
	ProcessingStatus ProcessingStatus `json:"processingStatus,omitempty"`
}

// UnmarshalJSON accepts the legacy "keyInsights" spelling and fills in
// missing collections and timestamps.
func (n *Note) UnmarshalJSON(data []byte) error {
	type noteAlias Note
	aux := struct {
		*noteAlias
		KeyInsights []string `json:"keyInsights"`
	}{noteAlias: (*noteAlias)(n)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(n.KeyPoints) == 0 && len(aux.KeyInsights) > 0 {
		n.KeyPoints = aux.KeyInsights
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = n.CreatedAt
	}
	n.Normalize()
	return nil
}

// Normalize replaces nil collections with empty ones.
func (n *Note) Normalize() {
	n.Tags = nonNil(n.Tags)
	n.ActionItems = nonNil(n.ActionItems)
	n.KeyPoints = nonNil(n.KeyPoints)
	n.MainTopics = nonNil(n.MainTopics)
	n.Questions = nonNil(n.Questions)
}

// CategoryLabel returns the note category, or DefaultCategory when empty.
func (n Note) CategoryLabel() string {
	if n.Category == "" {
		return DefaultCategory
	}
	return n.Category
}

// DisplayTags returns at most limit tags and how many were left out.
func (n Note) DisplayTags(limit int) ([]string, int) {
	if limit < 0 {
		limit = 0
	}
	if len(n.Tags) <= limit {
		return n.Tags, 0
	}
	return n.Tags[:limit], len(n.Tags) - limit
}

// Clone returns a deep copy so callers can never alias store-owned slices.
func (n Note) Clone() Note {
	c := n
	c.Tags = cloneStrings(n.Tags)
	c.ActionItems = cloneStrings(n.ActionItems)
	c.KeyPoints = cloneStrings(n.KeyPoints)
	c.MainTopics = cloneStrings(n.MainTopics)
	c.Questions = cloneStrings(n.Questions)
	return c
}

// NotePatch carries a partial update. Nil fields are left untouched.
type NotePatch struct {
	Title            *string           `json:"title,omitempty"`
	Content          *string           `json:"content,omitempty"`
	Transcription    *string           `json:"transcription,omitempty"`
	Summary          *string           `json:"summary,omitempty"`
	Category         *string           `json:"category,omitempty"`
	Tags             *[]string         `json:"tags,omitempty"`
	ActionItems      *[]string         `json:"actionItems,omitempty"`
	KeyPoints        *[]string         `json:"keyPoints,omitempty"`
	MainTopics       *[]string         `json:"mainTopics,omitempty"`
	Questions        *[]string         `json:"questions,omitempty"`
	IsFavorite       *bool             `json:"isFavorite,omitempty"`
	Source           *Source           `json:"source,omitempty"`
	AudioURI         *string           `json:"audioUri,omitempty"`
	FileName         *string           `json:"fileName,omitempty"`
	UpdatedAt        *time.Time        `json:"updatedAt,omitempty"`
	ProcessingStatus *ProcessingStatus `json:"processingStatus,omitempty"`
}

// Empty reports whether the patch would change nothing.
func (p NotePatch) Empty() bool {
	return p == NotePatch{}
}

// Apply shallow-merges the patch onto n.
func (p NotePatch) Apply(n *Note) {
	setIf(&n.Title, p.Title)
	setIf(&n.Content, p.Content)
	setIf(&n.Transcription, p.Transcription)
	setIf(&n.Summary, p.Summary)
	setIf(&n.Category, p.Category)
	setIf(&n.IsFavorite, p.IsFavorite)
	setIf(&n.Source, p.Source)
	setIf(&n.AudioURI, p.AudioURI)
	setIf(&n.FileName, p.FileName)
	setIf(&n.UpdatedAt, p.UpdatedAt)
	setIf(&n.ProcessingStatus, p.ProcessingStatus)
	if p.Tags != nil {
		n.Tags = cloneStrings(*p.Tags)
	}
	if p.ActionItems != nil {
		n.ActionItems = cloneStrings(*p.ActionItems)
	}
	if p.KeyPoints != nil {
		n.KeyPoints = cloneStrings(*p.KeyPoints)
	}
	if p.MainTopics != nil {
		n.MainTopics = cloneStrings(*p.MainTopics)
	}
	if p.Questions != nil {
		n.Questions = cloneStrings(*p.Questions)
	}
}

// Stats aggregates the note collection for the dashboard.
type Stats struct {
	TotalNotes       int            `json:"totalNotes"`
	RecentNotes      int            `json:"recentNotes"`
	TotalActionItems int            `json:"totalActionItems"`
	TotalInsights    int            `json:"totalInsights"`
	CategoryStats    map[string]int `json:"categoryStats"`
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func cloneStrings(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	return out
}
