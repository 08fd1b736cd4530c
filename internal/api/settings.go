package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/voxnote/internal/reminders"
)

// GetSettings handles GET /settings. The API key is masked.
//
//	@Summary		Current settings
//	@Tags			settings
//	@Produce		json
//	@Success		200	{object}	models.Settings
//	@Security		BearerAuth
//	@Router			/settings [get]
func (h *Handler) GetSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.settings.Get().Masked())
}

// PutSettings handles PUT /settings. Omitted fields keep their current
// value; an apiKey equal to the masked form keeps the stored key.
//
//	@Summary		Replace settings
//	@Tags			settings
//	@Accept			json
//	@Produce		json
//	@Param			body	body		models.Settings	true	"Settings"
//	@Success		200		{object}	models.Settings
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/settings [put]
func (h *Handler) PutSettings(w http.ResponseWriter, r *http.Request) {
	cur := h.settings.Get()
	next := cur
	if !decodeJSON(w, r, &next) {
		return
	}
	if next.APIKey == cur.Masked().APIKey {
		next.APIKey = cur.APIKey
	}
	if err := next.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, h.settings.Replace(r.Context(), next).Masked())
}

// PatchSetting handles PATCH /settings/{key}.
//
//	@Summary		Change one setting
//	@Tags			settings
//	@Accept			json
//	@Produce		json
//	@Param			key		path		string				true	"Setting key, e.g. theme"
//	@Param			body	body		SettingValueRequest	true	"New value"
//	@Success		200		{object}	models.Settings
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/settings/{key} [patch]
func (h *Handler) PatchSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	var req SettingValueRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Value) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("value is required"))
		return
	}

	cur := h.settings.Get()
	if key == "apiKey" {
		var v string
		if json.Unmarshal(req.Value, &v) == nil && v != "" && v == cur.Masked().APIKey {
			writeJSON(w, http.StatusOK, cur.Masked())
			return
		}
	}

	// Enumerated keys are checked here; the store itself accepts any value
	// of the right JSON type.
	candidate := cur
	if blob, err := json.Marshal(map[string]json.RawMessage{key: req.Value}); err == nil {
		if json.Unmarshal(blob, &candidate) == nil {
			if err := candidate.Validate(); err != nil {
				writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
				return
			}
		}
	}

	next, err := h.settings.Update(r.Context(), key, req.Value)
	if err != nil {
		writeError(w, "update setting", err)
		return
	}
	writeJSON(w, http.StatusOK, next.Masked())
}

// ResetSettings handles POST /settings/reset.
//
//	@Summary		Restore default settings
//	@Tags			settings
//	@Produce		json
//	@Success		200	{object}	models.Settings
//	@Security		BearerAuth
//	@Router			/settings/reset [post]
func (h *Handler) ResetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.settings.Reset(r.Context()).Masked())
}

// ListReminders handles GET /reminders.
//
//	@Summary		Pending reminders, soonest first
//	@Tags			reminders
//	@Produce		json
//	@Success		200	{object}	ReminderListResponse
//	@Security		BearerAuth
//	@Router			/reminders [get]
func (h *Handler) ListReminders(w http.ResponseWriter, r *http.Request) {
	if h.reminders == nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, ReminderListResponse{Reminders: h.reminders.Pending()})
}

// CreateReminder handles POST /reminders.
//
//	@Summary		Schedule an action-item reminder or the weekly review
//	@Tags			reminders
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ReminderRequest	true	"Reminder"
//	@Success		201		{object}	reminders.Reminder
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/reminders [post]
func (h *Handler) CreateReminder(w http.ResponseWriter, r *http.Request) {
	if h.reminders == nil {
		http.NotFound(w, r)
		return
	}
	var req ReminderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Kind == "" {
		req.Kind = reminders.KindActionItem
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	if req.NoteID != "" {
		if _, err := h.svc.Get(req.NoteID); err != nil {
			writeError(w, "create reminder", err)
			return
		}
	}

	var (
		rem reminders.Reminder
		err error
	)
	if req.Kind == reminders.KindWeeklyReview {
		rem, err = h.reminders.ScheduleWeeklyReview(r.Context())
	} else {
		rem, err = h.reminders.ScheduleActionItem(r.Context(), req.NoteID, req.Item, req.Due)
	}
	if err != nil {
		if errors.Is(err, reminders.ErrDisabled) {
			writeJSON(w, http.StatusConflict, errorBody("notifications are turned off"))
			return
		}
		writeError(w, "create reminder", err)
		return
	}
	writeJSON(w, http.StatusCreated, rem)
}

// CancelReminder handles DELETE /reminders/{id}.
//
//	@Summary		Cancel a pending reminder
//	@Tags			reminders
//	@Param			id	path	string	true	"Reminder id"
//	@Success		204	"Reminder cancelled"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/reminders/{id} [delete]
func (h *Handler) CancelReminder(w http.ResponseWriter, r *http.Request) {
	if h.reminders == nil || !h.reminders.Cancel(r.Context(), chi.URLParam(r, "id")) {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Live handles GET /health/live.
func (h *Handler) Live(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready handles GET /health/ready. It answers 503 until both stores have
// loaded and reports the latest persistence failures. A failed write does
// not make the service unready: memory stays authoritative.
func (h *Handler) Ready(w http.ResponseWriter, _ *http.Request) {
	store := h.svc.Notes()
	resp := HealthResponse{
		Status:          "ready",
		NotesLoading:    store.Loading(),
		SettingsLoading: h.settings.Loading(),
		Notes:           len(store.List()),
	}
	if health := store.Health(); health.Degraded() {
		resp.LastPersistError = health.LastError
	}
	if err := h.settings.LastPersistError(); err != nil {
		resp.SettingsLastPersistError = err.Error()
	}
	status := http.StatusOK
	switch {
	case resp.NotesLoading || resp.SettingsLoading:
		resp.Status = "loading"
		status = http.StatusServiceUnavailable
	case resp.LastPersistError != "" || resp.SettingsLastPersistError != "":
		resp.Status = "degraded"
	}
	writeJSON(w, status, resp)
}
