// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes voxnote tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/voxnote/internal/apperr"
	"github.com/starford/voxnote/internal/markdown"
	"github.com/starford/voxnote/internal/models"
	"github.com/starford/voxnote/internal/noteservice"
)

// searchLimit caps search_notes results.
const searchLimit = 20

// Server wraps the MCP server with voxnote tools.
type Server struct {
	mcp *server.MCPServer
	svc *noteservice.Service
}

// listTags is how many tags a listing shows before collapsing the rest
// into moreTags.
const listTags = 3

// noteItem is the compact listing shape.
type noteItem struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Category   string    `json:"category"`
	Tags       []string  `json:"tags"`
	MoreTags   int       `json:"moreTags,omitempty"`
	IsFavorite bool      `json:"isFavorite"`
	CreatedAt  time.Time `json:"createdAt"`
}

func toItems(list []models.Note, limit int) []noteItem {
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	out := make([]noteItem, 0, len(list))
	for _, n := range list {
		tags, more := n.DisplayTags(listTags)
		out = append(out, noteItem{
			ID:         n.ID,
			Title:      n.Title,
			Category:   n.CategoryLabel(),
			Tags:       tags,
			MoreTags:   more,
			IsFavorite: n.IsFavorite,
			CreatedAt:  n.CreatedAt,
		})
	}
	return out
}

// New creates a new MCP server with all voxnote tools registered.
func New(svc *noteservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"voxnote",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Case-insensitive search over note titles, summaries, content and tags. Newest first."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search text")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List notes newest first, optionally filtered by category or favorites."),
		mcp.WithString("category", mcp.Description("Category label, e.g. Work; \"Uncategorized\" matches notes without one")),
		mcp.WithBoolean("favorites", mcp.Description("Only starred notes")),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read one note as Markdown with YAML frontmatter."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a note from Markdown. Read the schema first via the "+
			"get_note_schema tool or the "+NoteSchemaURI+" resource."),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown following the voxnote note schema")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("toggle_favorite",
		mcp.WithDescription("Star or unstar a note."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
	), s.toggleFavorite)

	s.mcp.AddTool(mcp.NewTool("get_stats",
		mcp.WithDescription("Dashboard numbers: totals, notes from the last 7 days, per-category counts, recent notes."),
	), s.getStats)

	s.mcp.AddTool(mcp.NewTool("ask_notes",
		mcp.WithDescription("Ask the assistant a question about the notes (summaries, action items, search)."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Question")),
	), s.askNotes)

	s.mcp.AddTool(mcp.NewTool("get_suggestions",
		mcp.WithDescription("Organization hints for the current notes."),
	), s.getSuggestions)

	s.mcp.AddTool(mcp.NewTool("get_note_schema",
		mcp.WithDescription("Returns the note schema and the Markdown form create_note accepts."),
	), s.getNoteSchema)

	s.mcp.AddResource(
		mcp.NewResource(NoteSchemaURI, "Note Schema",
			mcp.WithResourceDescription("Note fields and the Markdown form accepted by create_note."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteSchemaResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func errorResult(err error) *mcp.CallToolResult {
	if errors.Is(err, apperr.ErrProcessingFailed) {
		return mcp.NewToolResultError("processing failed, please try again")
	}
	return mcp.NewToolResultError(err.Error())
}

func (s *Server) searchNotes(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(toItems(s.svc.List(noteservice.Query{Text: query}), searchLimit))
}

func (s *Server) listNotes(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q := noteservice.Query{
		Category:  req.GetString("category", ""),
		Favorites: req.GetBool("favorites", false),
	}
	return jsonResult(toItems(s.svc.List(q), 0))
}

func (s *Server) readNote(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.svc.Get(id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	out, err := markdown.Render(n)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	draft, err := markdown.Parse([]byte(content))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	draft.ID = ""
	draft.CreatedAt = time.Time{}
	draft.UpdatedAt = time.Time{}

	n := s.svc.Create(ctx, draft)
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", n.ID)), nil
}

func (s *Server) toggleFavorite(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.svc.ToggleFavorite(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("favorite: %t", n.IsFavorite)), nil
}

func (s *Server) getStats(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.svc.Dashboard())
}

func (s *Server) askNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	resp, err := s.svc.Ask(ctx, query)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(resp)
}

func (s *Server) getSuggestions(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := s.svc.Suggest(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(list)
}

func (s *Server) getNoteSchema(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteSchema), nil
}

func (s *Server) readNoteSchemaResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      NoteSchemaURI,
			MIMEType: "text/markdown",
			Text:     NoteSchema,
		},
	}, nil
}
