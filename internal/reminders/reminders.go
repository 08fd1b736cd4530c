// Package reminders schedules action-item reminders and the weekly review
// and hands them to a Notifier when they come due.
package reminders

import (
	"container/heap"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/voxnote/internal/kv"
)

// StorageKey is the kv key holding pending reminders.
const StorageKey = "reminders"

// ReminderHour is the local hour reminders fire at.
const ReminderHour = 9

// ErrDisabled is returned when scheduling while notifications are off.
var ErrDisabled = errors.New("reminders: notifications disabled")

// Kind distinguishes one-shot reminders from the repeating review.
type Kind string

const (
	KindActionItem   Kind = "action_item"
	KindWeeklyReview Kind = "weekly_review"
)

// Reminder is one scheduled notification.
type Reminder struct {
	ID     string    `json:"id"`
	Kind   Kind      `json:"kind"`
	Title  string    `json:"title"`
	Body   string    `json:"body"`
	At     time.Time `json:"at"`
	NoteID string    `json:"noteId,omitempty"`
}

// Notifier delivers a due reminder.
type Notifier interface {
	Notify(ctx context.Context, r Reminder) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, r Reminder) error

// Notify implements Notifier.
func (f NotifierFunc) Notify(ctx context.Context, r Reminder) error { return f(ctx, r) }

// LogNotifier writes reminders to a logger.
type LogNotifier struct {
	Logger *slog.Logger
}

// Notify implements Notifier.
func (l LogNotifier) Notify(_ context.Context, r Reminder) error {
	l.Logger.Info("reminder", slog.String("title", r.Title), slog.String("body", r.Body), slog.Time("at", r.At))
	return nil
}

// ActionItemTime returns 09:00 on due's calendar day, in due's location.
func ActionItemTime(due time.Time) time.Time {
	y, m, d := due.Date()
	return time.Date(y, m, d, ReminderHour, 0, 0, 0, due.Location())
}

// NextWeeklyReview returns the first Monday 09:00 strictly after t.
func NextWeeklyReview(t time.Time) time.Time {
	y, m, d := t.Date()
	days := (int(time.Monday) - int(t.Weekday()) + 7) % 7
	next := time.Date(y, m, d+days, ReminderHour, 0, 0, 0, t.Location())
	if !next.After(t) {
		next = next.AddDate(0, 0, 7)
	}
	return next
}

// Scheduler fires reminders at their time. Reminders are persisted so they
// survive a restart.
type Scheduler struct {
	store    kv.Store
	notifier Notifier
	enabled  func() bool
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	pending reminderHeap
	wake    chan struct{}
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(s *Scheduler) { s.now = now } }

// NewScheduler returns a Scheduler. enabled is consulted on every schedule
// and delivery; a nil enabled always allows.
func NewScheduler(store kv.Store, notifier Notifier, enabled func() bool, logger *slog.Logger, opts ...Option) *Scheduler {
	if enabled == nil {
		enabled = func() bool { return true }
	}
	s := &Scheduler{
		store:    store,
		notifier: notifier,
		enabled:  enabled,
		logger:   logger,
		now:      time.Now,
		wake:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load restores persisted reminders.
func (s *Scheduler) Load(ctx context.Context) {
	raw, ok, err := s.store.Get(ctx, StorageKey)
	if err != nil {
		s.logger.Error("reminders: load failed", slog.String("error", err.Error()))
		return
	}
	if !ok {
		return
	}
	var list []Reminder
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		s.logger.Error("reminders: decode failed", slog.String("error", err.Error()))
		return
	}
	s.mu.Lock()
	s.pending = append(s.pending[:0], list...)
	heap.Init(&s.pending)
	s.mu.Unlock()
	s.poke()
}

// Pending returns scheduled reminders, soonest first.
func (s *Scheduler) Pending() []Reminder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending.sorted()
}

// ScheduleActionItem reminds about item at 09:00 on due's day.
func (s *Scheduler) ScheduleActionItem(ctx context.Context, noteID, item string, due time.Time) (Reminder, error) {
	return s.schedule(ctx, Reminder{
		Kind:   KindActionItem,
		Title:  "Action Item Reminder",
		Body:   fmt.Sprintf("Don't forget: %s", item),
		At:     ActionItemTime(due),
		NoteID: noteID,
	})
}

// ScheduleWeeklyReview adds the repeating Monday review unless one is
// already pending.
func (s *Scheduler) ScheduleWeeklyReview(ctx context.Context) (Reminder, error) {
	s.mu.Lock()
	for _, r := range s.pending {
		if r.Kind == KindWeeklyReview {
			s.mu.Unlock()
			return r, nil
		}
	}
	s.mu.Unlock()
	return s.schedule(ctx, weeklyReview(s.now()))
}

func weeklyReview(after time.Time) Reminder {
	return Reminder{
		Kind:  KindWeeklyReview,
		Title: "Weekly Note Review",
		Body:  "Time to review your notes and action items from this week",
		At:    NextWeeklyReview(after),
	}
}

func (s *Scheduler) schedule(ctx context.Context, r Reminder) (Reminder, error) {
	if !s.enabled() {
		return Reminder{}, ErrDisabled
	}
	r.ID = uuid.NewString()
	s.mu.Lock()
	heap.Push(&s.pending, r)
	s.mu.Unlock()
	s.save(ctx)
	s.poke()
	return r, nil
}

// Cancel removes the reminder with id.
func (s *Scheduler) Cancel(ctx context.Context, id string) bool {
	s.mu.Lock()
	idx := -1
	for i, r := range s.pending {
		if r.ID == id {
			idx = i
			break
		}
	}
	if idx >= 0 {
		heap.Remove(&s.pending, idx)
	}
	s.mu.Unlock()
	if idx < 0 {
		return false
	}
	s.save(ctx)
	s.poke()
	return true
}

// Run delivers reminders as they come due until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("reminders: started")
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()
	for {
		s.fireDue(ctx)

		wait := time.Hour
		s.mu.Lock()
		if len(s.pending) > 0 {
			wait = s.pending[0].At.Sub(s.now())
		}
		s.mu.Unlock()
		if wait < 0 {
			wait = 0
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-ctx.Done():
			s.logger.Info("reminders: stopped")
			return nil
		case <-s.wake:
		case <-timer.C:
		}
	}
}

func (s *Scheduler) fireDue(ctx context.Context) {
	now := s.now()
	var due []Reminder
	s.mu.Lock()
	for len(s.pending) > 0 && !s.pending[0].At.After(now) {
		r := heap.Pop(&s.pending).(Reminder)
		due = append(due, r)
		if r.Kind == KindWeeklyReview {
			next := weeklyReview(now)
			next.ID = r.ID
			heap.Push(&s.pending, next)
		}
	}
	s.mu.Unlock()
	if len(due) == 0 {
		return
	}

	for _, r := range due {
		if !s.enabled() {
			s.logger.Debug("reminders: skipped, notifications off", slog.String("title", r.Title))
			continue
		}
		if err := s.notifier.Notify(ctx, r); err != nil {
			s.logger.Warn("reminders: notify failed", slog.String("id", r.ID), slog.String("error", err.Error()))
		}
	}
	s.save(ctx)
}

func (s *Scheduler) save(ctx context.Context) {
	s.mu.Lock()
	blob, err := json.Marshal(s.pending.sorted())
	s.mu.Unlock()
	if err != nil {
		return
	}
	if err := s.store.Set(context.WithoutCancel(ctx), StorageKey, string(blob)); err != nil {
		s.logger.Error("reminders: save failed", slog.String("error", err.Error()))
	}
}

func (s *Scheduler) poke() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

type reminderHeap []Reminder

func (h reminderHeap) Len() int           { return len(h) }
func (h reminderHeap) Less(i, j int) bool { return h[i].At.Before(h[j].At) }
func (h reminderHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *reminderHeap) Push(x any)        { *h = append(*h, x.(Reminder)) }
func (h *reminderHeap) Pop() any {
	old := *h
	n := len(old)
	r := old[n-1]
	*h = old[:n-1]
	return r
}

func (h reminderHeap) sorted() []Reminder {
	c := make(reminderHeap, len(h))
	copy(c, h)
	out := make([]Reminder, 0, len(c))
	for c.Len() > 0 {
		out = append(out, heap.Pop(&c).(Reminder))
	}
	return out
}
