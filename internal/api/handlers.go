package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/voxnote/internal/markdown"
	"github.com/starford/voxnote/internal/models"
	"github.com/starford/voxnote/internal/noteservice"
	"github.com/starford/voxnote/internal/reminders"
	"github.com/starford/voxnote/internal/settings"
)

// Handler holds HTTP handlers for the REST API.
type Handler struct {
	svc       *noteservice.Service
	settings  *settings.Store
	reminders *reminders.Scheduler
}

// NewHandler creates a new API handler. sched may be nil, in which case the
// reminder routes answer 404.
func NewHandler(svc *noteservice.Service, st *settings.Store, sched *reminders.Scheduler) *Handler {
	return &Handler{svc: svc, settings: st, reminders: sched}
}

func noteID(r *http.Request) string {
	return chi.URLParam(r, "id")
}

// ListNotes handles GET /notes.
//
//	@Summary		List notes, newest first
//	@Tags			notes
//	@Produce		json
//	@Param			q			query		string	false	"Case-insensitive text filter"
//	@Param			category	query		string	false	"Category label"
//	@Param			favorite	query		bool	false	"Only favorites"
//	@Success		200			{object}	NoteListResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	fav, _ := strconv.ParseBool(q.Get("favorite"))
	list := h.svc.List(noteservice.Query{
		Text:      q.Get("q"),
		Category:  q.Get("category"),
		Favorites: fav,
	})
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: list, Total: len(list)})
}

// CreateNote handles POST /notes.
//
//	@Summary		Create a note by hand
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateNoteRequest	true	"Note to create"
//	@Success		201		{object}	models.Note
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req CreateNoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	writeJSON(w, http.StatusCreated, h.svc.Create(r.Context(), req.note()))
}

// GetNote handles GET /notes/{id}.
//
//	@Summary		Get a note by id
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		string	true	"Note id"
//	@Success		200	{object}	models.Note
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.Get(noteID(r))
	if err != nil {
		writeError(w, "get note", err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// UpdateNote handles PATCH /notes/{id}. Fields absent from the body are
// left untouched.
//
//	@Summary		Partially update a note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Note id"
//	@Param			body	body		models.NotePatch	true	"Fields to change"
//	@Success		200		{object}	models.Note
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [patch]
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	var patch models.NotePatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	if patch.Empty() {
		writeJSON(w, http.StatusBadRequest, errorBody("no fields to update"))
		return
	}
	n, err := h.svc.Update(r.Context(), noteID(r), patch)
	if err != nil {
		writeError(w, "update note", err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// DeleteNote handles DELETE /notes/{id}.
//
//	@Summary		Delete a note
//	@Tags			notes
//	@Param			id	path	string	true	"Note id"
//	@Success		204	"Note deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), noteID(r)); err != nil {
		writeError(w, "delete note", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ToggleFavorite handles POST /notes/{id}/favorite.
//
//	@Summary		Flip the favorite flag
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		string	true	"Note id"
//	@Success		200	{object}	models.Note
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/favorite [post]
func (h *Handler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.ToggleFavorite(r.Context(), noteID(r))
	if err != nil {
		writeError(w, "toggle favorite", err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// DuplicateNote handles POST /notes/{id}/duplicate.
//
//	@Summary		Copy a note
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		string	true	"Note id"
//	@Success		201	{object}	models.Note
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/duplicate [post]
func (h *Handler) DuplicateNote(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.Duplicate(r.Context(), noteID(r))
	if err != nil {
		writeError(w, "duplicate note", err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

// NoteMarkdown handles GET /notes/{id}/markdown.
//
//	@Summary		Download a note as Markdown
//	@Tags			notes
//	@Produce		text/markdown
//	@Param			id	path		string	true	"Note id"
//	@Success		200	{string}	string
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/markdown [get]
func (h *Handler) NoteMarkdown(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.Get(noteID(r))
	if err != nil {
		writeError(w, "note markdown", err)
		return
	}
	out, err := markdown.Render(n)
	if err != nil {
		writeError(w, "note markdown", err)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", markdown.FileName(n)))
	_, _ = w.Write(out)
}

// Categories handles GET /categories.
//
//	@Summary		Distinct category labels in first-seen order
//	@Tags			views
//	@Produce		json
//	@Success		200	{array}	string
//	@Security		BearerAuth
//	@Router			/categories [get]
func (h *Handler) Categories(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Notes().Categories())
}

// Stats handles GET /stats.
//
//	@Summary		Aggregate counts over all notes
//	@Tags			views
//	@Produce		json
//	@Success		200	{object}	models.Stats
//	@Security		BearerAuth
//	@Router			/stats [get]
func (h *Handler) Stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Notes().Stats())
}

// Dashboard handles GET /dashboard.
//
//	@Summary		Home-screen summary
//	@Tags			views
//	@Produce		json
//	@Success		200	{object}	Dashboard
//	@Security		BearerAuth
//	@Router			/dashboard [get]
func (h *Handler) Dashboard(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Dashboard())
}

// Export handles GET /export. The ETag is the checksum of the body, so
// clients can skip unchanged downloads with If-None-Match.
//
//	@Summary		Export every note as JSON
//	@Tags			views
//	@Produce		json
//	@Success		200	{array}		models.Note
//	@Success		304	"Not modified"
//	@Security		BearerAuth
//	@Router			/export [get]
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	blob, sum, err := h.svc.Export()
	if err != nil {
		writeError(w, "export", err)
		return
	}
	etag := `"` + sum + `"`
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="voxnote-export.json"`)
	_, _ = w.Write(blob)
}
