package api

import (
	"encoding/json"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/voxnote/internal/models"
	"github.com/starford/voxnote/internal/noteservice"
	"github.com/starford/voxnote/internal/reminders"
)

// CreateNoteRequest is the request body for creating a note by hand.
type CreateNoteRequest struct {
	Title       string   `json:"title" example:"Groceries"`
	Content     string   `json:"content" example:"Milk, eggs, coffee"`
	Summary     string   `json:"summary,omitempty"`
	Category    string   `json:"category,omitempty" example:"Personal"`
	Tags        []string `json:"tags,omitempty"`
	ActionItems []string `json:"actionItems,omitempty"`
	KeyPoints   []string `json:"keyPoints,omitempty"`
	IsFavorite  bool     `json:"isFavorite,omitempty"`
}

// Validate requires a title or some content.
func (r CreateNoteRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required.When(r.Content == "").Error("title or content is required"), validation.Length(0, 200)),
		validation.Field(&r.Tags, validation.Each(validation.Required, validation.Length(1, 50))),
	)
}

func (r CreateNoteRequest) note() models.Note {
	n := models.Note{
		Title:       r.Title,
		Content:     r.Content,
		Summary:     r.Summary,
		Category:    r.Category,
		Tags:        r.Tags,
		ActionItems: r.ActionItems,
		KeyPoints:   r.KeyPoints,
		IsFavorite:  r.IsFavorite,
	}
	n.Normalize()
	return n
}

// NoteListResponse wraps note listings.
type NoteListResponse struct {
	Notes []models.Note `json:"notes" validate:"required"`
	Total int           `json:"total" example:"42" validate:"required"`
}

// RecordRequest asks the responder to organize a finished recording.
type RecordRequest struct {
	AudioURI string `json:"audioUri" example:"file:///tmp/rec-1.m4a"`
}

// Validate requires the recording location.
func (r RecordRequest) Validate() error {
	return validation.ValidateStruct(&r, validation.Field(&r.AudioURI, validation.Required))
}

// ChatRequest is a free-text question about the notes.
type ChatRequest struct {
	Query string `json:"query" example:"summarize my meetings"`
}

// Validate requires a non-empty query.
func (r ChatRequest) Validate() error {
	return validation.ValidateStruct(&r, validation.Field(&r.Query, validation.Required, validation.Length(1, 1000)))
}

// SuggestionsResponse wraps organization hints.
type SuggestionsResponse struct {
	Suggestions []models.Suggestion `json:"suggestions" validate:"required"`
}

// SettingValueRequest carries the new value for PATCH /settings/{key}.
type SettingValueRequest struct {
	Value json.RawMessage `json:"value" swaggertype:"object"`
}

// ReminderRequest schedules a reminder. Kind defaults to action_item.
type ReminderRequest struct {
	Kind   reminders.Kind `json:"kind,omitempty" example:"action_item"`
	NoteID string         `json:"noteId,omitempty"`
	Item   string         `json:"item,omitempty" example:"Send the Q3 deck"`
	Due    time.Time      `json:"due,omitempty"`
}

// Validate checks the fields the chosen kind needs.
func (r ReminderRequest) Validate() error {
	action := r.Kind == reminders.KindActionItem
	return validation.ValidateStruct(&r,
		validation.Field(&r.Kind, validation.Required, validation.In(reminders.KindActionItem, reminders.KindWeeklyReview)),
		validation.Field(&r.Item, validation.Required.When(action)),
		validation.Field(&r.Due, validation.Required.When(action)),
	)
}

// ReminderListResponse wraps pending reminders.
type ReminderListResponse struct {
	Reminders []reminders.Reminder `json:"reminders" validate:"required"`
}

// HealthResponse is the body of /health/ready.
type HealthResponse struct {
	Status                   string `json:"status" example:"ready"`
	NotesLoading             bool   `json:"notesLoading"`
	SettingsLoading          bool   `json:"settingsLoading"`
	LastPersistError         string `json:"lastPersistError,omitempty"`
	SettingsLastPersistError string `json:"settingsLastPersistError,omitempty"`
	Notes                    int    `json:"notes"`
}

// Dashboard is the home-screen response (aliased from the domain layer).
type Dashboard = noteservice.Dashboard
