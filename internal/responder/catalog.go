package responder

import "github.com/starford/voxnote/internal/models"

// template is the organized output the mock attaches to a capture.
type template struct {
	Title       string
	Content     string
	Category    string
	Tags        []string
	ActionItems []string
	KeyPoints   []string
}

var recordingTemplates = []template{
	{
		Title:    "Meeting Notes - Project Planning",
		Content:  "Discussed the upcoming project timeline and resource allocation. Key points covered include budget constraints, team assignments, and milestone deadlines.",
		Category: "Work",
		Tags:     []string{"meeting", "planning", "project"},
		ActionItems: []string{
			"Review budget proposal by Friday",
			"Assign team leads to each workstream",
			"Schedule follow-up meeting for next week",
		},
		KeyPoints: []string{
			"Budget needs to be finalized by end of month",
			"Three main workstreams identified",
			"Timeline is aggressive but achievable",
		},
	},
	{
		Title:    "Personal Thoughts - Weekend Plans",
		Content:  "Thinking about what to do this weekend. Want to visit the new art gallery downtown and maybe catch up with some friends.",
		Category: "Personal",
		Tags:     []string{"weekend", "plans", "social"},
		ActionItems: []string{
			"Check gallery opening hours",
			"Text Sarah about weekend plans",
		},
		KeyPoints: []string{
			"New art exhibition opened this week",
			"Haven't seen friends in a while",
		},
	},
	{
		Title:    "Learning Notes - React Native Development",
		Content:  "Exploring React Native navigation patterns and state management. Need to understand the differences between stack and tab navigation.",
		Category: "Learning",
		Tags:     []string{"react-native", "development", "navigation"},
		ActionItems: []string{
			"Practice implementing tab navigation",
			"Read documentation on React Navigation",
			"Build a sample app with multiple screens",
		},
		KeyPoints: []string{
			"Navigation is crucial for mobile apps",
			"State management becomes complex with multiple screens",
			"React Navigation is the standard library",
		},
	},
}

var businessUpload = template{
	Title:    "Business Meeting - ",
	Content:  "Important business discussion covering quarterly goals, team performance, and strategic initiatives. Multiple stakeholders provided input on key decisions.",
	Category: "Work",
	Tags:     []string{"meeting", "business", "quarterly"},
	ActionItems: []string{
		"Follow up on quarterly targets",
		"Schedule team performance reviews",
		"Prepare strategic initiative proposal",
	},
	KeyPoints: []string{
		"Q4 targets need adjustment",
		"Team morale is high",
		"New strategic initiatives approved",
	},
}

var personalUpload = template{
	Title:    "Voice Note - ",
	Content:  "Personal voice recording with various thoughts and ideas. Contains reflections on recent experiences and plans for upcoming activities.",
	Category: "Personal",
	Tags:     []string{"personal", "thoughts", "ideas"},
	ActionItems: []string{
		"Research mentioned topics",
		"Plan upcoming activities",
	},
	KeyPoints: []string{
		"Several interesting ideas to explore",
		"Good reflection on recent experiences",
	},
}

// businessKeywords mark an uploaded file name as a work recording.
var businessKeywords = []string{"meeting", "call", "interview"}

func (t template) note() models.Note {
	n := models.Note{
		Title:         t.Title,
		Content:       t.Content,
		Transcription: t.Content,
		Category:      t.Category,
		Tags:          t.Tags,
		ActionItems:   t.ActionItems,
		KeyPoints:     t.KeyPoints,
	}
	n.Normalize()
	return n.Clone()
}

// suggestionCatalog is ordered; the mock returns the first two entries.
func suggestionCatalog(noteCount int) []models.Suggestion {
	return []models.Suggestion{
		{
			Type:        "category_suggestion",
			Title:       "Organize by Categories",
			Description: "I noticed you have notes that could be better categorized. Consider grouping similar topics together.",
			Action:      "auto_categorize",
		},
		{
			Type:        "tag_suggestion",
			Title:       "Add Missing Tags",
			Description: "Some notes are missing relevant tags that would make them easier to find.",
			Action:      "suggest_tags",
		},
		{
			Type:        "action_reminder",
			Title:       "Pending Action Items",
			Description: fmtPending(noteCount),
			Action:      "review_actions",
		},
	}
}
