package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/voxnote/internal/apperr"
	"github.com/starford/voxnote/internal/kv"
	"github.com/starford/voxnote/internal/media"
	"github.com/starford/voxnote/internal/models"
	"github.com/starford/voxnote/internal/noteservice"
	"github.com/starford/voxnote/internal/notes"
	"github.com/starford/voxnote/internal/reminders"
	"github.com/starford/voxnote/internal/responder"
	"github.com/starford/voxnote/internal/settings"
	"github.com/starford/voxnote/internal/testutil"
)

type env struct {
	svc      *noteservice.Service
	settings *settings.Store
	router   http.Handler
}

// testEnv wires in-memory stores, a zero-delay responder and a temp media
// directory. A non-empty token turns auth on.
func testEnv(t *testing.T, token string) env {
	return testEnvOpts(t, Options{AuthEnabled: token != "", Token: token})
}

func testEnvOpts(t *testing.T, opts Options) env {
	t.Helper()
	ctx := context.Background()
	logger := testutil.Logger()
	store := kv.NewMemory()

	st := settings.New(store, logger)
	st.Load(ctx)
	ns := notes.New(store, logger)
	ns.Load(ctx)

	mediaStore, err := media.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	ai := responder.NewMock(responder.WithDelays(responder.Delays{}), responder.WithSelector(responder.FixedSelector(0)))
	svc := noteservice.NewService(ns, ai, mediaStore, logger)
	sched := reminders.NewScheduler(store, reminders.LogNotifier{Logger: logger}, func() bool { return st.Get().Notifications }, logger)

	return env{svc: svc, settings: st, router: NewRouter(svc, st, sched, nil, opts)}
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func createNote(t *testing.T, h http.Handler, title, content, category string) models.Note {
	t.Helper()
	w := do(t, h, http.MethodPost, "/notes", map[string]string{"title": title, "content": content, "category": category})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	return decode[models.Note](t, w)
}

func TestCreateAndGetNote(t *testing.T) {
	e := testEnv(t, "")
	created := createNote(t, e.router, "Hello", "World", "")
	if created.ID == "" || created.CreatedAt.IsZero() {
		t.Fatalf("created note missing identity: %+v", created)
	}

	w := do(t, e.router, http.MethodGet, "/notes/"+created.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	got := decode[models.Note](t, w)
	if got.Title != "Hello" || got.Content != "World" {
		t.Errorf("got %+v", got)
	}
}

func TestCreateNote_Validation(t *testing.T) {
	e := testEnv(t, "")
	w := do(t, e.router, http.MethodPost, "/notes", map[string]string{"category": "Work"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty note = %d, want 400", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/notes", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad JSON = %d, want 400", rec.Code)
	}
}

func TestPatchNote(t *testing.T) {
	e := testEnv(t, "")
	n := createNote(t, e.router, "Draft", "v1", "")

	w := do(t, e.router, http.MethodPatch, "/notes/"+n.ID, map[string]any{"content": "v2", "tags": []string{"edited"}})
	if w.Code != http.StatusOK {
		t.Fatalf("patch = %d, body = %s", w.Code, w.Body.String())
	}
	got := decode[models.Note](t, w)
	if got.Title != "Draft" || got.Content != "v2" || len(got.Tags) != 1 {
		t.Errorf("patched note = %+v", got)
	}
	if !got.CreatedAt.Equal(n.CreatedAt) {
		t.Errorf("createdAt changed: %v -> %v", n.CreatedAt, got.CreatedAt)
	}

	if w := do(t, e.router, http.MethodPatch, "/notes/"+n.ID, map[string]any{}); w.Code != http.StatusBadRequest {
		t.Errorf("empty patch = %d, want 400", w.Code)
	}
	if w := do(t, e.router, http.MethodPatch, "/notes/missing", map[string]any{"title": "x"}); w.Code != http.StatusNotFound {
		t.Errorf("patch missing = %d, want 404", w.Code)
	}
}

func TestDeleteNote(t *testing.T) {
	e := testEnv(t, "")
	n := createNote(t, e.router, "Bye", "gone", "")

	if w := do(t, e.router, http.MethodDelete, "/notes/"+n.ID, nil); w.Code != http.StatusNoContent {
		t.Errorf("delete = %d, want 204", w.Code)
	}
	if w := do(t, e.router, http.MethodGet, "/notes/"+n.ID, nil); w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", w.Code)
	}
	if w := do(t, e.router, http.MethodDelete, "/notes/"+n.ID, nil); w.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", w.Code)
	}
}

func TestListNotes_Filters(t *testing.T) {
	e := testEnv(t, "")
	createNote(t, e.router, "Standup", "sprint status", "Work")
	groceries := createNote(t, e.router, "Groceries", "milk", "Personal")
	createNote(t, e.router, "Retro", "sprint review", "Work")
	do(t, e.router, http.MethodPost, "/notes/"+groceries.ID+"/favorite", nil)

	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"Retro", "Groceries", "Standup"}},
		{"?q=SPRINT", []string{"Retro", "Standup"}},
		{"?category=Work", []string{"Retro", "Standup"}},
		{"?category=Work&q=review", []string{"Retro"}},
		{"?favorite=true", []string{"Groceries"}},
		{"?favorite=true&category=Work", nil},
	}
	for _, tc := range tests {
		w := do(t, e.router, http.MethodGet, "/notes"+tc.query, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: status = %d", tc.query, w.Code)
		}
		resp := decode[NoteListResponse](t, w)
		var titles []string
		for _, n := range resp.Notes {
			titles = append(titles, n.Title)
		}
		if strings.Join(titles, ",") != strings.Join(tc.want, ",") || resp.Total != len(tc.want) {
			t.Errorf("%s: got %v (total %d), want %v", tc.query, titles, resp.Total, tc.want)
		}
	}
}

func TestFavoriteAndDuplicate(t *testing.T) {
	e := testEnv(t, "")
	n := createNote(t, e.router, "Idea", "a thought", "")

	w := do(t, e.router, http.MethodPost, "/notes/"+n.ID+"/favorite", nil)
	if w.Code != http.StatusOK || !decode[models.Note](t, w).IsFavorite {
		t.Fatalf("favorite = %d %s", w.Code, w.Body.String())
	}

	w = do(t, e.router, http.MethodPost, "/notes/"+n.ID+"/duplicate", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("duplicate = %d", w.Code)
	}
	dup := decode[models.Note](t, w)
	if dup.ID == n.ID || dup.Title != "Idea (copy)" || dup.IsFavorite {
		t.Errorf("duplicate = %+v", dup)
	}

	if w := do(t, e.router, http.MethodPost, "/notes/nope/duplicate", nil); w.Code != http.StatusNotFound {
		t.Errorf("duplicate missing = %d, want 404", w.Code)
	}
}

func TestNoteMarkdown(t *testing.T) {
	e := testEnv(t, "")
	n := createNote(t, e.router, "Plan", "ship it", "Work")

	w := do(t, e.router, http.MethodGet, "/notes/"+n.ID+"/markdown", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("markdown = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/markdown") {
		t.Errorf("content-type = %q", ct)
	}
	body := w.Body.String()
	if !strings.HasPrefix(body, "---\n") || !strings.Contains(body, "# Plan") {
		t.Errorf("body = %q", body)
	}
}

func TestViews(t *testing.T) {
	e := testEnv(t, "")
	createNote(t, e.router, "A", "x", "Work")
	createNote(t, e.router, "B", "y", "")

	cats := decode[[]string](t, do(t, e.router, http.MethodGet, "/categories", nil))
	if strings.Join(cats, ",") != models.DefaultCategory+",Work" {
		t.Errorf("categories = %v", cats)
	}

	stats := decode[models.Stats](t, do(t, e.router, http.MethodGet, "/stats", nil))
	if stats.TotalNotes != 2 || stats.CategoryStats["Work"] != 1 {
		t.Errorf("stats = %+v", stats)
	}

	dash := decode[Dashboard](t, do(t, e.router, http.MethodGet, "/dashboard", nil))
	if dash.Today != 2 || len(dash.Recent) != 2 || dash.Stats.TotalNotes != 2 {
		t.Errorf("dashboard = %+v", dash)
	}
}

func TestExport_ETag(t *testing.T) {
	e := testEnv(t, "")
	createNote(t, e.router, "A", "x", "")

	w := do(t, e.router, http.MethodGet, "/export", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("export = %d", w.Code)
	}
	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatal("missing ETag")
	}
	if list := decode[[]models.Note](t, w); len(list) != 1 {
		t.Errorf("export has %d notes", len(list))
	}

	req := httptest.NewRequest(http.MethodGet, "/export", nil)
	req.Header.Set("If-None-Match", etag)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotModified {
		t.Errorf("conditional export = %d, want 304", rec.Code)
	}

	createNote(t, e.router, "B", "y", "")
	if w := do(t, e.router, http.MethodGet, "/export", nil); w.Header().Get("ETag") == etag {
		t.Error("ETag unchanged after a new note")
	}
}

func TestSettings_Masking(t *testing.T) {
	e := testEnv(t, "")
	if _, err := e.settings.Update(context.Background(), "apiKey", "sk-secret-1234"); err != nil {
		t.Fatal(err)
	}

	got := decode[models.Settings](t, do(t, e.router, http.MethodGet, "/settings", nil))
	if got.APIKey != "****1234" {
		t.Errorf("apiKey = %q, want masked", got.APIKey)
	}

	// Echoing the masked settings back keeps the real key.
	got.Theme = models.ThemeDark
	w := do(t, e.router, http.MethodPut, "/settings", got)
	if w.Code != http.StatusOK {
		t.Fatalf("put = %d, body = %s", w.Code, w.Body.String())
	}
	if cur := e.settings.Get(); cur.APIKey != "sk-secret-1234" || cur.Theme != models.ThemeDark {
		t.Errorf("stored = %+v", cur)
	}
}

func TestSettings_PutValidates(t *testing.T) {
	e := testEnv(t, "")
	w := do(t, e.router, http.MethodPut, "/settings", map[string]any{"theme": "neon"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid theme = %d, want 400", w.Code)
	}
	if e.settings.Get().Theme != models.ThemeLight {
		t.Error("rejected PUT changed settings")
	}
}

func TestSettings_PatchAndReset(t *testing.T) {
	e := testEnv(t, "")

	w := do(t, e.router, http.MethodPatch, "/settings/autoSave", map[string]any{"value": false})
	if w.Code != http.StatusOK {
		t.Fatalf("patch = %d, body = %s", w.Code, w.Body.String())
	}
	if decode[models.Settings](t, w).AutoSave {
		t.Error("autoSave still true")
	}

	tests := []struct {
		path string
		body any
	}{
		{"/settings/colour", map[string]any{"value": "red"}},
		{"/settings/autoSave", map[string]any{"value": "yes"}},
		{"/settings/theme", map[string]any{"value": "neon"}},
		{"/settings/theme", map[string]any{}},
	}
	for _, tc := range tests {
		if w := do(t, e.router, http.MethodPatch, tc.path, tc.body); w.Code != http.StatusBadRequest {
			t.Errorf("%s %v = %d, want 400", tc.path, tc.body, w.Code)
		}
	}

	w = do(t, e.router, http.MethodPost, "/settings/reset", nil)
	if w.Code != http.StatusOK || decode[models.Settings](t, w) != models.DefaultSettings() {
		t.Errorf("reset = %d %s", w.Code, w.Body.String())
	}
}

func uploadRequest(t *testing.T, name string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = part.Write(content)
	_ = mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/ai/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUpload(t *testing.T) {
	e := testEnv(t, "")

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, uploadRequest(t, "Team Meeting.mp3", []byte("ID3 fake audio")))
	if w.Code != http.StatusCreated {
		t.Fatalf("upload = %d, body = %s", w.Code, w.Body.String())
	}
	n := decode[models.Note](t, w)
	if n.Category != "Work" || n.Source != models.SourceUpload || n.FileName != "Team Meeting.mp3" {
		t.Errorf("uploaded note = %+v", n)
	}
	if !strings.HasPrefix(n.AudioURI, "file://") {
		t.Errorf("audioUri = %q", n.AudioURI)
	}

	// The stored file is served back.
	mw := do(t, e.router, http.MethodGet, "/media/Team%20Meeting.mp3", nil)
	if mw.Code != http.StatusOK || mw.Body.String() != "ID3 fake audio" {
		t.Errorf("media = %d %q", mw.Code, mw.Body.String())
	}
}

func TestUpload_DottedFileName(t *testing.T) {
	e := testEnv(t, "")

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, uploadRequest(t, "Q3 call..final.mp3", []byte("audio")))
	if w.Code != http.StatusCreated {
		t.Fatalf("upload = %d, body = %s", w.Code, w.Body.String())
	}
	if n := decode[models.Note](t, w); n.FileName != "Q3 call..final.mp3" || n.Category != "Work" {
		t.Errorf("uploaded note = %+v", n)
	}
}

func TestWriteError_InvalidName(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, "upload", fmt.Errorf("media: %q: %w", "..", apperr.ErrInvalidName))
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestUpload_Rejections(t *testing.T) {
	e := testEnv(t, "")

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, uploadRequest(t, "notes.txt", []byte("text")))
	if w.Code != http.StatusUnsupportedMediaType {
		t.Errorf("txt upload = %d, want 415", w.Code)
	}

	w = httptest.NewRecorder()
	e.router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/ai/upload", strings.NewReader("x")))
	if w.Code != http.StatusBadRequest {
		t.Errorf("non-multipart upload = %d, want 400", w.Code)
	}

	if got := len(e.svc.Notes().List()); got != 0 {
		t.Errorf("%d notes stored after rejected uploads", got)
	}
}

func TestRecordChatSuggestions(t *testing.T) {
	e := testEnv(t, "")

	w := do(t, e.router, http.MethodPost, "/ai/record", map[string]string{"audioUri": "file:///tmp/rec.m4a"})
	if w.Code != http.StatusCreated {
		t.Fatalf("record = %d, body = %s", w.Code, w.Body.String())
	}
	n := decode[models.Note](t, w)
	if n.Source != models.SourceVoiceRecording || n.AudioURI != "file:///tmp/rec.m4a" {
		t.Errorf("recorded note = %+v", n)
	}
	if w := do(t, e.router, http.MethodPost, "/ai/record", map[string]string{}); w.Code != http.StatusBadRequest {
		t.Errorf("record without uri = %d, want 400", w.Code)
	}

	w = do(t, e.router, http.MethodPost, "/ai/chat", map[string]string{"query": "give me a summary"})
	if w.Code != http.StatusOK {
		t.Fatalf("chat = %d", w.Code)
	}
	if resp := decode[models.ChatResponse](t, w); resp.Type != models.ChatSummary {
		t.Errorf("chat type = %q", resp.Type)
	}
	if w := do(t, e.router, http.MethodPost, "/ai/chat", map[string]string{"query": ""}); w.Code != http.StatusBadRequest {
		t.Errorf("empty chat = %d, want 400", w.Code)
	}

	w = do(t, e.router, http.MethodGet, "/ai/suggestions", nil)
	if got := decode[SuggestionsResponse](t, w); w.Code != http.StatusOK || len(got.Suggestions) == 0 {
		t.Errorf("suggestions = %d %+v", w.Code, got)
	}
}

func TestAIRateLimit(t *testing.T) {
	e := testEnvOpts(t, Options{AIRate: 0.001, AIBurst: 1})

	first := do(t, e.router, http.MethodGet, "/ai/suggestions", nil)
	second := do(t, e.router, http.MethodGet, "/ai/suggestions", nil)
	if first.Code != http.StatusOK {
		t.Fatalf("first = %d", first.Code)
	}
	if second.Code != http.StatusTooManyRequests || second.Header().Get("Retry-After") == "" {
		t.Errorf("second = %d, Retry-After %q", second.Code, second.Header().Get("Retry-After"))
	}
	// Non-AI routes are not limited.
	if w := do(t, e.router, http.MethodGet, "/stats", nil); w.Code != http.StatusOK {
		t.Errorf("stats = %d", w.Code)
	}
}

func TestReminders(t *testing.T) {
	e := testEnv(t, "")
	n := createNote(t, e.router, "Deck", "send slides", "Work")
	due := time.Now().Add(48 * time.Hour)

	w := do(t, e.router, http.MethodPost, "/reminders", map[string]any{"noteId": n.ID, "item": "Send deck", "due": due})
	if w.Code != http.StatusCreated {
		t.Fatalf("create reminder = %d, body = %s", w.Code, w.Body.String())
	}
	rem := decode[reminders.Reminder](t, w)
	if rem.At.Hour() != reminders.ReminderHour || rem.NoteID != n.ID {
		t.Errorf("reminder = %+v", rem)
	}

	if w := do(t, e.router, http.MethodPost, "/reminders", map[string]any{"item": "no due"}); w.Code != http.StatusBadRequest {
		t.Errorf("missing due = %d, want 400", w.Code)
	}
	if w := do(t, e.router, http.MethodPost, "/reminders", map[string]any{"noteId": "ghost", "item": "x", "due": due}); w.Code != http.StatusNotFound {
		t.Errorf("unknown note = %d, want 404", w.Code)
	}

	list := decode[ReminderListResponse](t, do(t, e.router, http.MethodGet, "/reminders", nil))
	if len(list.Reminders) != 1 {
		t.Fatalf("pending = %+v", list)
	}
	if w := do(t, e.router, http.MethodDelete, "/reminders/"+rem.ID, nil); w.Code != http.StatusNoContent {
		t.Errorf("cancel = %d", w.Code)
	}

	do(t, e.router, http.MethodPatch, "/settings/notifications", map[string]any{"value": false})
	if w := do(t, e.router, http.MethodPost, "/reminders", map[string]any{"kind": "weekly_review"}); w.Code != http.StatusConflict {
		t.Errorf("weekly review while muted = %d, want 409", w.Code)
	}
}

func TestAuth(t *testing.T) {
	e := testEnv(t, "s3cret")

	if w := do(t, e.router, http.MethodGet, "/notes", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("no token = %d, want 401", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/notes", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("with token = %d, want 200", w.Code)
	}

	for _, path := range []string{"/health/live", "/health/ready"} {
		if w := do(t, e.router, http.MethodGet, path, nil); w.Code != http.StatusOK {
			t.Errorf("%s = %d, want 200 without token", path, w.Code)
		}
	}
}

func TestReady_ReportsPersistFailure(t *testing.T) {
	ctx := context.Background()
	logger := testutil.Logger()
	flaky := testutil.NewFlakyKV()
	st := settings.New(kv.NewMemory(), logger)
	ns := notes.New(flaky, logger)
	svc := noteservice.NewService(ns, responder.NewMock(responder.WithDelays(responder.Delays{})), nil, logger)
	router := NewRouter(svc, st, nil, nil, Options{})

	if w := do(t, router, http.MethodGet, "/health/ready", nil); w.Code != http.StatusServiceUnavailable {
		t.Errorf("before load = %d, want 503", w.Code)
	}

	st.Load(ctx)
	ns.Load(ctx)
	flaky.FailSets(true)
	svc.Create(ctx, models.Note{Title: "lost on disk"})

	w := do(t, router, http.MethodGet, "/health/ready", nil)
	resp := decode[HealthResponse](t, w)
	if w.Code != http.StatusOK || resp.Status != "degraded" || resp.LastPersistError == "" || resp.Notes != 1 {
		t.Errorf("ready = %d %+v", w.Code, resp)
	}
}
