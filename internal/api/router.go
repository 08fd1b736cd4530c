package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/starford/voxnote/internal/noteservice"
	"github.com/starford/voxnote/internal/reminders"
	"github.com/starford/voxnote/internal/settings"
)

// Options configures NewRouter.
type Options struct {
	AuthEnabled bool
	Token       string

	// AIRate and AIBurst limit the /ai routes; AIRate <= 0 disables it.
	AIRate  float64
	AIBurst int

	// AccessLog enables chi's request logger.
	AccessLog bool
}

// NewRouter creates a chi router with all API routes mounted.
// sched and events may be nil; events, if set, is mounted at GET /events
// inside the auth group. Health routes are never authenticated.
func NewRouter(svc *noteservice.Service, st *settings.Store, sched *reminders.Scheduler, events http.Handler, opts Options) chi.Router {
	h := NewHandler(svc, st, sched)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if opts.AccessLog {
		r.Use(middleware.Logger)
	}

	r.Get("/health/live", h.Live)
	r.Get("/health/ready", h.Ready)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(opts.AuthEnabled, opts.Token))

		// Notes CRUD.
		r.Get("/notes", h.ListNotes)
		r.Post("/notes", h.CreateNote)
		r.Get("/notes/{id}", h.GetNote)
		r.Patch("/notes/{id}", h.UpdateNote)
		r.Delete("/notes/{id}", h.DeleteNote)
		r.Post("/notes/{id}/favorite", h.ToggleFavorite)
		r.Post("/notes/{id}/duplicate", h.DuplicateNote)
		r.Get("/notes/{id}/markdown", h.NoteMarkdown)

		// Views.
		r.Get("/categories", h.Categories)
		r.Get("/stats", h.Stats)
		r.Get("/dashboard", h.Dashboard)
		r.Get("/export", h.Export)

		// Settings.
		r.Get("/settings", h.GetSettings)
		r.Put("/settings", h.PutSettings)
		r.Post("/settings/reset", h.ResetSettings)
		r.Patch("/settings/{key}", h.PatchSetting)

		// Responder.
		r.Route("/ai", func(r chi.Router) {
			r.Use(RateLimit(opts.AIRate, opts.AIBurst))
			r.Post("/record", h.Record)
			r.Post("/upload", h.Upload)
			r.Post("/chat", h.Chat)
			r.Get("/suggestions", h.Suggestions)
		})
		r.Get("/media/{name}", h.ServeMedia)

		// Reminders.
		r.Get("/reminders", h.ListReminders)
		r.Post("/reminders", h.CreateReminder)
		r.Delete("/reminders/{id}", h.CancelReminder)

		// SSE endpoint (protected by same auth middleware).
		if events != nil {
			r.Get("/events", events.ServeHTTP)
		}
	})

	return r
}
