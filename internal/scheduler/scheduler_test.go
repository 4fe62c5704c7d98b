package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"championship-engine/engine"
	"championship-engine/internal/presence"
	"championship-engine/internal/store"
	"championship-engine/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func setup(t *testing.T) (*engine.Engine, *testClock, *presence.MemoryTracker) {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)}
	tracker := presence.NewMemoryTracker(time.Hour, clock.Now)
	e := engine.NewEngine(engine.EngineConfig{Clock: clock, Presence: tracker})
	return e, clock, tracker
}

func createFinal(t *testing.T, e *engine.Engine, id string, deadline time.Time) {
	t.Helper()
	ctx := context.Background()
	_, err := e.CreateTournament(ctx, engine.CreateTournamentRequest{
		ID: id, Name: id, OpenRegistration: true,
		Config: models.TournamentConfig{Format: models.FormatEliminationOnly, RegistrationDeadline: deadline},
	})
	require.NoError(t, err)
	for _, pid := range []string{id + "-a", id + "-b"} {
		_, err := e.Register(ctx, id, pid)
		require.NoError(t, err)
	}
}

func TestScheduler_SweepForfeitsAcrossTournaments(t *testing.T) {
	e, clock, tracker := setup(t)
	ctx := context.Background()
	for _, id := range []string{"t1", "t2", "t3"} {
		createFinal(t, e, id, time.Time{})
		require.NoError(t, e.Start(ctx, id))
		// only the first player ever shows up
		require.NoError(t, tracker.MarkOnline(ctx, id+"-a"))
		require.NoError(t, e.ParticipantOnline(ctx, id+"-a"))
	}

	s := New(e, clock, 2)
	summary := s.SweepNow(ctx)
	assert.Zero(t, summary.Report.Expired)

	clock.Advance(engine.DefaultMatchWindow + time.Minute)
	summary = s.SweepNow(ctx)
	assert.Equal(t, 3, summary.Tournaments)
	assert.Equal(t, 3, summary.Report.Expired)
	assert.Equal(t, summary, s.LastSweep())

	for _, id := range []string{"t1", "t2", "t3"} {
		snap, err := e.Snapshot(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.StatusCompleted, snap.Tournament.Status, id)
		require.NotEmpty(t, snap.Awards)
		assert.Equal(t, id+"-a", snap.Awards[0].ParticipantID)
	}
}

func TestScheduler_StartDueNow(t *testing.T) {
	e, clock, _ := setup(t)
	ctx := context.Background()
	createFinal(t, e, "due", clock.Now().Add(time.Hour))
	createFinal(t, e, "later", clock.Now().Add(48*time.Hour))

	s := New(e, clock, 0)
	assert.Empty(t, s.StartDueNow(ctx))

	clock.Advance(2 * time.Hour)
	assert.Equal(t, []string{"due"}, s.StartDueNow(ctx))

	tour, err := e.Tournament(ctx, "later")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRegistrationOpen, tour.Status)
}

func TestScheduler_StartRejectsBadSpec(t *testing.T) {
	e, clock, _ := setup(t)
	s := New(e, clock, 0)
	assert.Error(t, s.Start(Config{SweepSpec: "every now and then", StartSpec: "@every 1m"}))
}

func TestScheduler_StartAndStop(t *testing.T) {
	e, clock, _ := setup(t)
	s := New(e, clock, 0)
	require.NoError(t, s.Start(Config{SweepSpec: "@every 1s", StartSpec: "@every 1m"}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Stop(ctx)
}

// flakyHook fails its first call.
type flakyHook struct {
	mu    sync.Mutex
	calls int
}

func (h *flakyHook) OnTournamentComplete(context.Context, engine.Snapshot) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	if h.calls == 1 {
		return errors.New("archive unreachable")
	}
	return nil
}

func TestScheduler_SettleNowRetriesFailedHooks(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:?mode=memory"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(store.Models()...))
	repo := store.New(db)

	clock := &testClock{now: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)}
	tracker := presence.NewMemoryTracker(time.Hour, clock.Now)
	hook := &flakyHook{}
	e := engine.NewEngine(engine.EngineConfig{
		Clock: clock, Presence: tracker, Repository: repo, Hooks: []engine.CompletionHook{hook},
	})

	ctx := context.Background()
	createFinal(t, e, "final", time.Time{})
	require.NoError(t, tracker.MarkOnline(ctx, "final-a"))
	require.NoError(t, tracker.MarkOnline(ctx, "final-b"))
	require.NoError(t, e.Start(ctx, "final"))
	snap, err := e.Snapshot(ctx, "final")
	require.NoError(t, err)
	require.Len(t, snap.Matches, 1)
	_, err = e.RecordResult(ctx, snap.Matches[0].ID, "final-a", false)
	require.NoError(t, err)

	stored, err := repo.Load(ctx, "final")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, stored.Tournament.Status)
	assert.False(t, stored.Tournament.Settled)

	s := New(e, clock, 0)
	assert.Equal(t, 1, s.SettleNow(ctx))
	assert.Zero(t, s.SettleNow(ctx))
	assert.Equal(t, 2, hook.calls)

	stored, err = repo.Load(ctx, "final")
	require.NoError(t, err)
	assert.True(t, stored.Tournament.Settled)
}
