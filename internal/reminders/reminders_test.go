package reminders

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/starford/voxnote/internal/kv"
	"github.com/starford/voxnote/internal/testutil"
)

// 2025-03-10 is a Monday.
var monday = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

func TestNextWeeklyReview(t *testing.T) {
	tests := []struct {
		from time.Time
		want time.Time
	}{
		{monday.Add(8 * time.Hour), monday.Add(9 * time.Hour)},
		{monday.Add(9 * time.Hour), monday.AddDate(0, 0, 7).Add(9 * time.Hour)},
		{monday.Add(-time.Hour), monday.Add(9 * time.Hour)},
		{monday.AddDate(0, 0, 3).Add(15 * time.Hour), monday.AddDate(0, 0, 7).Add(9 * time.Hour)},
	}
	for _, tc := range tests {
		got := NextWeeklyReview(tc.from)
		require.True(t, got.Equal(tc.want), "from %v: got %v, want %v", tc.from, got, tc.want)
		require.Equal(t, time.Monday, got.Weekday())
	}
}

func TestActionItemTime(t *testing.T) {
	loc := time.FixedZone("X", 3*3600)
	due := time.Date(2025, 6, 1, 17, 45, 0, 0, loc)
	got := ActionItemTime(due)
	require.Equal(t, time.Date(2025, 6, 1, 9, 0, 0, 0, loc), got)
}

type collector struct {
	mu  sync.Mutex
	got []Reminder
}

func (c *collector) Notify(_ context.Context, r Reminder) error {
	c.mu.Lock()
	c.got = append(c.got, r)
	c.mu.Unlock()
	return nil
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.got)
}

func TestSchedule_DisabledRejected(t *testing.T) {
	s := NewScheduler(kv.NewMemory(), &collector{}, func() bool { return false }, testutil.Logger())
	_, err := s.ScheduleActionItem(context.Background(), "n1", "call", time.Now())
	require.True(t, errors.Is(err, ErrDisabled))
	require.Empty(t, s.Pending())
}

func TestSchedule_PersistsAndCancels(t *testing.T) {
	store := kv.NewMemory()
	s := NewScheduler(store, &collector{}, nil, testutil.Logger(), WithClock(func() time.Time { return monday }))
	ctx := context.Background()

	late, err := s.ScheduleActionItem(ctx, "n1", "later", monday.AddDate(0, 0, 5))
	require.NoError(t, err)
	early, err := s.ScheduleActionItem(ctx, "n2", "sooner", monday.AddDate(0, 0, 1))
	require.NoError(t, err)
	weekly, err := s.ScheduleWeeklyReview(ctx)
	require.NoError(t, err)
	again, err := s.ScheduleWeeklyReview(ctx)
	require.NoError(t, err)
	require.Equal(t, weekly.ID, again.ID)

	restored := NewScheduler(store, &collector{}, nil, testutil.Logger())
	restored.Load(ctx)
	pending := restored.Pending()
	require.Len(t, pending, 3)
	require.Equal(t, []string{weekly.ID, early.ID, late.ID}, []string{pending[0].ID, pending[1].ID, pending[2].ID})
	require.Equal(t, "Don't forget: sooner", pending[1].Body)

	require.True(t, s.Cancel(ctx, early.ID))
	require.False(t, s.Cancel(ctx, early.ID))
	require.Len(t, s.Pending(), 2)
}

func TestRun_DeliversDueReminders(t *testing.T) {
	var now atomic.Pointer[time.Time]
	start := monday.Add(8 * time.Hour)
	now.Store(&start)
	clock := func() time.Time { return *now.Load() }

	c := &collector{}
	var on atomic.Bool
	on.Store(true)
	s := NewScheduler(kv.NewMemory(), c, on.Load, testutil.Logger(), WithClock(clock))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := s.ScheduleActionItem(ctx, "n1", "due today", monday)
	require.NoError(t, err)
	_, err = s.ScheduleWeeklyReview(ctx)
	require.NoError(t, err)

	go s.Run(ctx)

	later := monday.Add(10 * time.Hour)
	now.Store(&later)
	s.poke()

	require.Eventually(t, func() bool { return c.count() == 2 }, 2*time.Second, 10*time.Millisecond)

	pending := s.Pending()
	require.Len(t, pending, 1)
	require.Equal(t, KindWeeklyReview, pending[0].Kind)
	require.True(t, pending[0].At.Equal(monday.AddDate(0, 0, 7).Add(9*time.Hour)))
}

func TestRun_SkipsWhileDisabled(t *testing.T) {
	start := monday
	c := &collector{}
	var on atomic.Bool
	on.Store(true)
	s := NewScheduler(kv.NewMemory(), c, on.Load, testutil.Logger(), WithClock(func() time.Time { return start.Add(10 * time.Hour) }))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := s.ScheduleActionItem(ctx, "n1", "muted", monday)
	require.NoError(t, err)
	on.Store(false)

	go s.Run(ctx)
	require.Eventually(t, func() bool { return len(s.Pending()) == 0 }, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, 0, c.count())
}
