package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/voxnote/internal/media"
)

// uploadOverhead leaves room for multipart headers around the audio.
const uploadOverhead = 1 << 20

// Record handles POST /ai/record.
//
//	@Summary		Organize a finished recording into a note
//	@Tags			ai
//	@Accept			json
//	@Produce		json
//	@Param			body	body		RecordRequest	true	"Recording location"
//	@Success		201		{object}	models.Note
//	@Failure		400		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/ai/record [post]
func (h *Handler) Record(w http.ResponseWriter, r *http.Request) {
	var req RecordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	n, err := h.svc.Record(r.Context(), req.AudioURI)
	if err != nil {
		writeError(w, "record", err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

// Upload handles POST /ai/upload (multipart/form-data, field "file").
//
//	@Summary		Upload an audio file and organize it into a note
//	@Tags			ai
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file	true	"Audio file"
//	@Success		201		{object}	models.Note
//	@Failure		400		{object}	errResponse
//	@Failure		413		{object}	errResponse
//	@Failure		415		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/ai/upload [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, media.MaxBytes+uploadOverhead)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody("file too large"))
			return
		}
		writeJSON(w, http.StatusBadRequest, errorBody("invalid multipart form"))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	if err := media.Check(header.Filename, header.Size); err != nil {
		writeError(w, "upload", err)
		return
	}
	n, err := h.svc.Upload(r.Context(), header.Filename, file)
	if err != nil {
		writeError(w, "upload", err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

// Chat handles POST /ai/chat.
//
//	@Summary		Ask a question about the notes
//	@Tags			ai
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ChatRequest	true	"Question"
//	@Success		200		{object}	models.ChatResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/ai/chat [post]
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	resp, err := h.svc.Ask(r.Context(), req.Query)
	if err != nil {
		writeError(w, "chat", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Suggestions handles GET /ai/suggestions.
//
//	@Summary		Organization hints for the current notes
//	@Tags			ai
//	@Produce		json
//	@Success		200	{object}	SuggestionsResponse
//	@Security		BearerAuth
//	@Router			/ai/suggestions [get]
func (h *Handler) Suggestions(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Suggest(r.Context())
	if err != nil {
		writeError(w, "suggestions", err)
		return
	}
	writeJSON(w, http.StatusOK, SuggestionsResponse{Suggestions: list})
}

// ServeMedia handles GET /media/{name}.
func (h *Handler) ServeMedia(w http.ResponseWriter, r *http.Request) {
	store := h.svc.Media()
	if store == nil {
		http.NotFound(w, r)
		return
	}
	abs, err := store.Path(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, "serve media", err)
		return
	}
	http.ServeFile(w, r, abs)
}
