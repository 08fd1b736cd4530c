package models

// Chat response kinds.
const (
	ChatSummary       = "summary"
	ChatActionItems   = "action_items"
	ChatSearchResults = "search_results"
	ChatGeneral       = "general"
)

// ChatResponse is the answer to a free-text question about the notes.
type ChatResponse struct {
	Type         string   `json:"type"`
	Response     string   `json:"response"`
	RelatedNotes []string `json:"relatedNotes"`
}

// Suggestion is an organization hint shown on the dashboard.
type Suggestion struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Action      string `json:"action"`
}
