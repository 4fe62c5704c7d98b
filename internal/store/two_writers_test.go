package store

import (
	"context"
	"testing"

	"championship-engine/engine"
	"championship-engine/internal/presence"
	"championship-engine/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A second engine holding an outdated copy of the tournament cannot rewrite
// a result the first engine already stored.
func TestStore_StaleWriterCannotRewriteResult(t *testing.T) {
	ctx := context.Background()
	s := New(setupTestDB(t))
	online := presence.NewMemoryTracker(0, nil)
	for _, pid := range []string{"a", "b", "c", "d"} {
		require.NoError(t, online.MarkOnline(ctx, pid))
	}
	locker := engine.NewKeyedMutex()
	newEngine := func() *engine.Engine {
		return engine.NewEngine(engine.EngineConfig{Presence: online, Repository: s, Locker: locker})
	}

	primary := newEngine()
	_, err := primary.CreateTournament(ctx, engine.CreateTournamentRequest{
		ID: "cup", Name: "Cup", EntryFee: 500, OpenRegistration: true,
		Config: models.TournamentConfig{Format: models.FormatEliminationOnly, Capacity: 4},
	})
	require.NoError(t, err)
	for _, pid := range []string{"a", "b", "c", "d"} {
		_, err := primary.Register(ctx, "cup", pid)
		require.NoError(t, err)
	}
	require.NoError(t, primary.Start(ctx, "cup"))

	states, err := s.LoadOpen(ctx)
	require.NoError(t, err)
	secondary := newEngine()
	require.NoError(t, secondary.Restore(ctx, states))

	snap, err := primary.Snapshot(ctx, "cup")
	require.NoError(t, err)
	require.Len(t, snap.Matches, 2)
	first, second := snap.Matches[0], snap.Matches[1]
	require.Equal(t, models.MatchRoomActive, first.State)

	_, err = primary.RecordResult(ctx, first.ID, first.PlayerA, false)
	require.NoError(t, err)
	_, err = primary.RecordResult(ctx, second.ID, second.PlayerA, false)
	require.NoError(t, err)

	_, err = secondary.RecordResult(ctx, first.ID, first.PlayerB, false)
	assert.ErrorIs(t, err, engine.ErrDuplicateTransition)
	assert.True(t, engine.IsIgnorable(err))

	rolledBack, err := secondary.Match(first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchRoomActive, rolledBack.State)
	assert.Empty(t, rolledBack.WinnerID)

	stored, err := s.Load(ctx, "cup")
	require.NoError(t, err)
	byID := make(map[string]models.Match)
	for _, m := range stored.Matches {
		byID[m.ID] = m
	}
	assert.Equal(t, first.PlayerA, byID[first.ID].WinnerID)
	assert.Equal(t, second.PlayerA, byID[second.ID].WinnerID)

	var final *models.Match
	for _, m := range stored.Matches {
		if m.Round == 2 {
			m := m
			final = &m
		}
	}
	require.NotNil(t, final, "the final is scheduled from the stored winners")
	assert.ElementsMatch(t, []string{first.PlayerA, second.PlayerA}, []string{final.PlayerA, final.PlayerB})
}
