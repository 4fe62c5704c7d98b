package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"championship-engine/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type engineFixture struct {
	clock    *fakeClock
	presence *fakePresence
	notifier *recordingNotifier
	rooms    *recordingRooms
	repo     *memoryRepository
	hook     *recordingHook
	engine   *Engine
}

func newEngineFixture(online ...string) *engineFixture {
	f := &engineFixture{
		clock:    newFakeClock(),
		presence: newFakePresence(online...),
		notifier: &recordingNotifier{},
		rooms:    &recordingRooms{},
		repo:     newMemoryRepository(),
		hook:     &recordingHook{},
	}
	f.engine = f.newEngine()
	return f
}

// newEngine builds an engine over the fixture's collaborators, as a restart
// would.
func (f *engineFixture) newEngine() *Engine {
	return NewEngine(EngineConfig{
		Clock:      f.clock,
		Presence:   f.presence,
		Rooms:      f.rooms,
		Notifier:   f.notifier,
		Repository: f.repo,
		Hooks:      []CompletionHook{f.hook},
	})
}

func playerIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("p%d", i+1)
	}
	return ids
}

func playerNumber(id string) int {
	n, _ := strconv.Atoi(strings.TrimPrefix(id, "p"))
	return n
}

// favourite is the earlier registrant, so p1 beats everyone.
func favourite(m models.Match) string {
	if playerNumber(m.PlayerA) < playerNumber(m.PlayerB) {
		return m.PlayerA
	}
	return m.PlayerB
}

func (f *engineFixture) create(t *testing.T, id string, players int, fee int64, cfg models.TournamentConfig) {
	t.Helper()
	ctx := context.Background()
	_, err := f.engine.CreateTournament(ctx, CreateTournamentRequest{
		ID: id, Name: "Championship " + id, EntryFee: fee, Config: cfg, OpenRegistration: true,
	})
	require.NoError(t, err)
	for _, pid := range playerIDs(players) {
		_, err := f.engine.Register(ctx, id, pid)
		require.NoError(t, err)
	}
}

func (f *engineFixture) snapshot(t *testing.T, id string) Snapshot {
	t.Helper()
	snap, err := f.engine.Snapshot(context.Background(), id)
	require.NoError(t, err)
	return snap
}

func openMatches(snap Snapshot) []models.Match {
	var out []models.Match
	for _, m := range snap.Matches {
		if m.State == models.MatchRoomActive {
			out = append(out, m)
		}
	}
	return out
}

// playOut records results until the tournament leaves in_progress.
func (f *engineFixture) playOut(t *testing.T, id string, pick func(models.Match) string) Snapshot {
	t.Helper()
	for i := 0; i < 64; i++ {
		snap := f.snapshot(t, id)
		if snap.Tournament.Status != models.StatusInProgress {
			return snap
		}
		open := openMatches(snap)
		require.NotEmpty(t, open, "tournament stalled in round %d", snap.Tournament.CurrentRound)
		for _, m := range open {
			_, err := f.engine.RecordResult(context.Background(), m.ID, pick(m), false)
			require.NoError(t, err)
		}
	}
	t.Fatalf("tournament %s did not finish", id)
	return Snapshot{}
}

func sumAwards(awards []Award) int64 {
	var total int64
	for _, a := range awards {
		total += a.Prize
	}
	return total
}

func TestEngine_SwissEliminationFullRun(t *testing.T) {
	f := newEngineFixture(playerIDs(8)...)
	f.create(t, "cup", 8, 1000, models.TournamentConfig{
		Format:          models.FormatSwissElimination,
		SwissRounds:     3,
		Qualifiers:      4,
		ThirdPlaceMatch: true,
		PrizeTable:      models.PrizeTable{Name: "championship_top8"},
	})
	require.NoError(t, f.engine.Start(context.Background(), "cup"))

	snap := f.snapshot(t, "cup")
	assert.Equal(t, models.PhaseSwiss, snap.Tournament.Phase)
	assert.Equal(t, int64(8000), snap.Tournament.Pool)
	assert.Len(t, openMatches(snap), 4)

	snap = f.playOut(t, "cup", favourite)

	assert.Equal(t, models.StatusCompleted, snap.Tournament.Status)
	assert.Equal(t, models.PhaseFinished, snap.Tournament.Phase)
	assert.Equal(t, 5, snap.Tournament.CurrentRound)
	require.Len(t, snap.Rounds, 5)
	assert.Equal(t, models.RoundSemi, snap.Rounds[3].Kind)
	assert.Equal(t, models.RoundFinal, snap.Rounds[4].Kind)

	require.NotNil(t, snap.Bracket)
	assert.Equal(t, "p1", snap.Bracket.Champion)
	require.NotNil(t, snap.Bracket.ThirdPlace)

	seeded := 0
	for _, p := range snap.Participants {
		if p.Seed != nil {
			seeded++
		}
	}
	assert.Equal(t, 4, seeded)

	require.Len(t, snap.Awards, 8)
	assert.Equal(t, "p1", snap.Awards[0].ParticipantID)
	assert.Equal(t, int64(3200), snap.Awards[0].Prize)
	assert.Equal(t, int64(8000), sumAwards(snap.Awards))

	final := snap.Bracket.Rounds[len(snap.Bracket.Rounds)-1].Matches[0]
	assert.Equal(t, final.Loser(), snap.Awards[1].ParticipantID)
	assert.Equal(t, snap.Bracket.ThirdPlace.WinnerID, snap.Awards[2].ParticipantID)

	assert.Equal(t, 5, f.notifier.Count(models.EventRoundComplete))
	assert.Equal(t, 8, f.notifier.Count(models.EventTournamentComplete))

	calls := f.hook.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, models.StatusCompleted, calls[0].Tournament.Status)
	assert.Equal(t, models.StatusCompleted, f.repo.Tournament("cup").Status)

	// Advancing a finished tournament changes nothing.
	require.NoError(t, f.engine.Advance(context.Background(), "cup"))
	assert.Len(t, f.hook.Calls(), 1)
}

func TestEngine_FailedHookIsRetried(t *testing.T) {
	f := newEngineFixture(playerIDs(4)...)
	f.hook.failures = 1
	f.create(t, "retry", 4, 500, models.TournamentConfig{
		Format:     models.FormatEliminationOnly,
		PrizeTable: models.PrizeTable{Name: "winner_takes_all"},
	})
	require.NoError(t, f.engine.Start(context.Background(), "retry"))
	f.playOut(t, "retry", favourite)

	require.Len(t, f.hook.Calls(), 1)
	assert.False(t, f.repo.Tournament("retry").Settled)

	// A fresh engine picks the unsettled tournament up from the repository.
	restarted := f.newEngine()
	settled, err := restarted.SettlePending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, settled)
	assert.True(t, f.repo.Tournament("retry").Settled)

	calls := f.hook.Calls()
	require.Len(t, calls, 2)
	retried := calls[1]
	assert.Equal(t, models.StatusCompleted, retried.Tournament.Status)
	require.NotEmpty(t, retried.Awards)
	assert.Equal(t, "p1", retried.Awards[0].ParticipantID)
	assert.Equal(t, int64(2000), retried.Awards[0].Prize)
	require.NotNil(t, retried.Bracket)
	assert.Equal(t, "p1", retried.Bracket.Champion)

	settled, err = restarted.SettlePending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, settled)
	assert.Len(t, f.hook.Calls(), 2)
}

func TestEngine_SettledAfterHooksSucceed(t *testing.T) {
	f := newEngineFixture(playerIDs(2)...)
	f.create(t, "duel", 2, 100, models.TournamentConfig{
		Format:     models.FormatEliminationOnly,
		PrizeTable: models.PrizeTable{Name: "winner_takes_all"},
	})
	require.NoError(t, f.engine.Start(context.Background(), "duel"))
	snap := f.playOut(t, "duel", favourite)

	assert.True(t, snap.Tournament.Settled)
	assert.True(t, f.repo.Tournament("duel").Settled)
	settled, err := f.engine.SettlePending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, settled)
}

func TestEngine_EliminationOnlyWithByes(t *testing.T) {
	f := newEngineFixture(playerIDs(5)...)
	f.create(t, "ko", 5, 200, models.TournamentConfig{
		Format:     models.FormatEliminationOnly,
		PrizeTable: models.PrizeTable{Name: "winner_takes_all"},
	})
	require.NoError(t, f.engine.Start(context.Background(), "ko"))

	snap := f.snapshot(t, "ko")
	assert.Equal(t, models.PhaseElimination, snap.Tournament.Phase)
	require.Len(t, snap.Matches, 4)
	byes := 0
	for _, m := range snap.Matches {
		assert.Equal(t, models.RoundQuarter, m.Kind)
		if m.IsBye() {
			byes++
		}
	}
	assert.Equal(t, 3, byes)
	open := openMatches(snap)
	require.Len(t, open, 1)
	assert.ElementsMatch(t, []string{"p4", "p5"}, []string{open[0].PlayerA, open[0].PlayerB})

	snap = f.playOut(t, "ko", favourite)
	require.NotNil(t, snap.Bracket)
	assert.Equal(t, 8, snap.Bracket.Size)
	assert.Equal(t, "p1", snap.Bracket.Champion)

	var order []string
	for _, a := range snap.Awards {
		order = append(order, a.ParticipantID)
	}
	assert.Equal(t, []string{"p1", "p2", "p3", "p4", "p5"}, order)
	assert.Equal(t, int64(1000), snap.Awards[0].Prize)
}

func TestEngine_SwissOnlyStandingsDecidePositions(t *testing.T) {
	f := newEngineFixture(playerIDs(4)...)
	f.create(t, "league", 4, 250, models.TournamentConfig{
		Format:      models.FormatSwissOnly,
		SwissRounds: 2,
		PrizeTable:  models.PrizeTable{Name: "winner_takes_all"},
	})
	require.NoError(t, f.engine.Start(context.Background(), "league"))

	snap := f.playOut(t, "league", favourite)
	assert.Equal(t, models.StatusCompleted, snap.Tournament.Status)
	assert.Nil(t, snap.Bracket)

	require.Len(t, snap.Standings, 4)
	var order []string
	for _, e := range snap.Standings {
		order = append(order, e.ParticipantID)
	}
	assert.Equal(t, []string{"p1", "p2", "p3", "p4"}, order)

	first := snap.Standings[0]
	assert.Equal(t, 1, first.FinalPosition)
	assert.Equal(t, 2.0, first.Points)
	assert.Equal(t, int64(1000), first.Prize)
	assert.Equal(t, int64(100+500+2*25), first.Credits)
	assert.Equal(t, int64(100+150), snap.Standings[3].Credits)
}

func TestEngine_Registration(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()
	_, err := f.engine.CreateTournament(ctx, CreateTournamentRequest{
		ID: "small", EntryFee: 500,
		Config: models.TournamentConfig{Capacity: 2, RegistrationDeadline: f.clock.Now().Add(time.Hour)},
	})
	require.NoError(t, err)

	_, err = f.engine.Register(ctx, "small", "p1")
	assert.ErrorIs(t, err, ErrRegistrationNotOpen)

	require.NoError(t, f.engine.OpenRegistration(ctx, "small"))
	_, err = f.engine.Register(ctx, "small", "p1")
	require.NoError(t, err)
	_, err = f.engine.Register(ctx, "small", "p1")
	assert.ErrorIs(t, err, ErrAlreadyRegistered)
	p2, err := f.engine.Register(ctx, "small", "p2")
	require.NoError(t, err)
	assert.Equal(t, 2, p2.RegistrationOrder)
	_, err = f.engine.Register(ctx, "small", "p3")
	assert.ErrorIs(t, err, ErrTournamentFull)

	tour, err := f.engine.Tournament(ctx, "small")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), tour.Pool)
	assert.Equal(t, 2, f.notifier.Count(models.EventRegistrationConfirmed))

	_, err = f.engine.CreateTournament(ctx, CreateTournamentRequest{
		ID: "late", OpenRegistration: true,
		Config: models.TournamentConfig{RegistrationDeadline: f.clock.Now().Add(time.Hour)},
	})
	require.NoError(t, err)
	f.clock.Advance(2 * time.Hour)
	_, err = f.engine.Register(ctx, "late", "p1")
	assert.ErrorIs(t, err, ErrRegistrationClosed)

	_, err = f.engine.CreateTournament(ctx, CreateTournamentRequest{ID: "late"})
	assert.ErrorIs(t, err, ErrTournamentExists)
	_, err = f.engine.Register(ctx, "missing", "p1")
	assert.ErrorIs(t, err, ErrTournamentNotFound)
}

func TestEngine_StartNeedsTwoParticipants(t *testing.T) {
	f := newEngineFixture()
	f.create(t, "solo", 1, 0, models.TournamentConfig{})

	err := f.engine.Start(context.Background(), "solo")
	assert.ErrorIs(t, err, ErrNotEnoughParticipants)

	tour, err := f.engine.Tournament(context.Background(), "solo")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRegistrationOpen, tour.Status)
}

func TestEngine_InfeasiblePairingWaitsForOperator(t *testing.T) {
	f := newEngineFixture(playerIDs(2)...)
	ctx := context.Background()
	f.create(t, "duel", 2, 100, models.TournamentConfig{
		Format:      models.FormatSwissOnly,
		SwissRounds: 2,
		PrizeTable:  models.PrizeTable{Name: "heads_up"},
	})
	require.NoError(t, f.engine.Start(ctx, "duel"))

	err := f.engine.ManualPairing(ctx, "duel", "ops", []Pairing{{A: "p1", B: "p2"}})
	assert.ErrorIs(t, err, ErrNoPendingPairing)

	_, err = f.engine.RecordResult(ctx, "duel-r1-s0", "p1", false)
	require.NoError(t, err)

	snap := f.snapshot(t, "duel")
	assert.True(t, snap.Tournament.PendingManualPairing)
	assert.Equal(t, models.StatusInProgress, snap.Tournament.Status)
	assert.Equal(t, 1, f.notifier.Count(models.EventPairingFailed))
	require.NoError(t, f.engine.Advance(ctx, "duel"))
	assert.Equal(t, 1, f.notifier.Count(models.EventPairingFailed))

	err = f.engine.ManualPairing(ctx, "duel", "ops", []Pairing{{A: "p1"}})
	assert.ErrorIs(t, err, ErrInvalidManualPairing)

	require.NoError(t, f.engine.ManualPairing(ctx, "duel", "ops", []Pairing{{A: "p2", B: "p1"}}))
	snap = f.snapshot(t, "duel")
	assert.False(t, snap.Tournament.PendingManualPairing)
	assert.Equal(t, 2, snap.Tournament.CurrentRound)

	snap = f.playOut(t, "duel", func(m models.Match) string { return "p2" })
	assert.Equal(t, models.StatusCompleted, snap.Tournament.Status)
	assert.Equal(t, int64(200), sumAwards(snap.Awards))
}

func TestEngine_OverrideSwissResultRecomputesStandings(t *testing.T) {
	f := newEngineFixture(playerIDs(4)...)
	ctx := context.Background()
	f.create(t, "ovr", 4, 0, models.TournamentConfig{Format: models.FormatSwissOnly, SwissRounds: 2})
	require.NoError(t, f.engine.Start(ctx, "ovr"))

	for _, m := range openMatches(f.snapshot(t, "ovr")) {
		_, err := f.engine.RecordResult(ctx, m.ID, favourite(m), false)
		require.NoError(t, err)
	}
	require.Equal(t, 2, f.snapshot(t, "ovr").Tournament.CurrentRound)

	m, err := f.engine.OverrideMatch(ctx, "ovr", OverrideRequest{
		MatchID: "ovr-r1-s0", Actor: "admin", Reason: "illegal move", WinnerID: "p3",
	})
	require.NoError(t, err)
	assert.True(t, m.Overridden)
	assert.Equal(t, "p3", m.WinnerID)

	standings := byID(f.snapshot(t, "ovr").Standings)
	assert.Equal(t, 1.0, standings["p3"].Points)
	assert.Equal(t, 0.0, standings["p1"].Points)
	assert.Len(t, f.repo.Overrides(), 1)

	_, err = f.engine.OverrideMatch(ctx, "ovr", OverrideRequest{MatchID: "other-r1-s0", WinnerID: "p1"})
	assert.ErrorIs(t, err, ErrMatchNotFound)
}

func TestEngine_OverrideBracketConflict(t *testing.T) {
	f := newEngineFixture(playerIDs(4)...)
	ctx := context.Background()
	f.create(t, "ko4", 4, 0, models.TournamentConfig{Format: models.FormatEliminationOnly})
	require.NoError(t, f.engine.Start(ctx, "ko4"))

	for _, m := range openMatches(f.snapshot(t, "ko4")) {
		_, err := f.engine.RecordResult(ctx, m.ID, favourite(m), false)
		require.NoError(t, err)
	}
	final, err := f.engine.Match("ko4-r2-s0")
	require.NoError(t, err)
	assert.Equal(t, models.RoundFinal, final.Kind)

	_, err = f.engine.OverrideMatch(ctx, "ko4", OverrideRequest{MatchID: "ko4-r1-s0", WinnerID: "p4"})
	assert.ErrorIs(t, err, ErrOverrideConflict)

	_, err = f.engine.OverrideMatch(ctx, "ko4", OverrideRequest{MatchID: "ko4-r2-s0", Draw: true})
	assert.ErrorIs(t, err, ErrInvalidResult)

	_, err = f.engine.OverrideMatch(ctx, "ko4", OverrideRequest{MatchID: "ko4-r2-s0", Actor: "admin", WinnerID: "p2"})
	require.NoError(t, err)

	snap := f.snapshot(t, "ko4")
	assert.Equal(t, models.StatusCompleted, snap.Tournament.Status)
	assert.Equal(t, "p2", snap.Bracket.Champion)
	assert.Equal(t, "p2", snap.Awards[0].ParticipantID)

	_, err = f.engine.OverrideMatch(ctx, "ko4", OverrideRequest{MatchID: "ko4-r2-s0", WinnerID: "p1"})
	assert.ErrorIs(t, err, ErrTournamentCompleted)
}

func TestEngine_SweepForfeitsAdvanceTheBracket(t *testing.T) {
	f := newEngineFixture("p1", "p2")
	ctx := context.Background()
	f.create(t, "fft", 4, 0, models.TournamentConfig{Format: models.FormatEliminationOnly, MatchWindow: 24 * time.Hour})
	require.NoError(t, f.engine.Start(ctx, "fft"))

	snap := f.snapshot(t, "fft")
	require.Len(t, snap.Matches, 2)
	for _, m := range snap.Matches {
		assert.Equal(t, models.MatchAwaitingBothOnline, m.State)
	}

	f.clock.Advance(25 * time.Hour)
	report := f.engine.Sweep(ctx, f.clock.Now())
	assert.Equal(t, 2, report.Expired)

	semi, err := f.engine.Match("fft-r1-s0")
	require.NoError(t, err)
	assert.Equal(t, models.MatchForfeited, semi.State)
	assert.Equal(t, "p1", semi.WinnerID)

	final, err := f.engine.Match("fft-r2-s0")
	require.NoError(t, err)
	assert.Equal(t, models.MatchRoomActive, final.State)

	_, err = f.engine.RecordResult(ctx, final.ID, "p2", false)
	require.NoError(t, err)
	snap = f.snapshot(t, "fft")
	assert.Equal(t, models.StatusCompleted, snap.Tournament.Status)
	assert.Equal(t, "p2", snap.Bracket.Champion)
}

func TestEngine_Cancel(t *testing.T) {
	f := newEngineFixture(playerIDs(4)...)
	ctx := context.Background()
	f.create(t, "stop", 4, 100, models.TournamentConfig{})
	require.NoError(t, f.engine.Start(ctx, "stop"))

	require.NoError(t, f.engine.Cancel(ctx, "stop", "venue closed"))
	snap := f.snapshot(t, "stop")
	assert.Equal(t, models.StatusCancelled, snap.Tournament.Status)
	for _, m := range snap.Matches {
		assert.Equal(t, models.MatchCancelled, m.State)
	}
	assert.Equal(t, 4, f.notifier.Count(models.EventTournamentCancelled))
	assert.Empty(t, f.hook.Calls())

	assert.ErrorIs(t, f.engine.Cancel(ctx, "stop", "again"), ErrTournamentCancelled)
	_, err := f.engine.Register(ctx, "stop", "p9")
	assert.ErrorIs(t, err, ErrTournamentCancelled)

	_, err = f.engine.RecordResult(ctx, "stop-r1-s0", "p1", false)
	assert.ErrorIs(t, err, ErrStaleEvent)

	require.NoError(t, f.engine.Evict(ctx, "stop"))
	assert.NotContains(t, f.engine.ListTournaments(), "stop")
}

func TestEngine_StartDue(t *testing.T) {
	f := newEngineFixture(playerIDs(3)...)
	ctx := context.Background()
	deadline := f.clock.Now().Add(time.Hour)

	f.create(t, "due", 3, 0, models.TournamentConfig{RegistrationDeadline: deadline})
	f.create(t, "empty", 1, 0, models.TournamentConfig{RegistrationDeadline: deadline})
	f.create(t, "later", 3, 0, models.TournamentConfig{RegistrationDeadline: deadline.Add(24 * time.Hour)})

	f.clock.Advance(2 * time.Hour)
	started := f.engine.StartDue(ctx, f.clock.Now())
	assert.Equal(t, []string{"due"}, started)

	for id, want := range map[string]models.TournamentStatus{
		"due":   models.StatusInProgress,
		"empty": models.StatusCancelled,
		"later": models.StatusRegistrationOpen,
	} {
		tour, err := f.engine.Tournament(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, tour.Status, id)
	}
}

func TestEngine_RestoreResumesAndRepairs(t *testing.T) {
	f := newEngineFixture(playerIDs(4)...)
	ctx := context.Background()
	f.create(t, "boot", 4, 100, models.TournamentConfig{Format: models.FormatSwissOnly, SwissRounds: 2})
	require.NoError(t, f.engine.Start(ctx, "boot"))
	_, err := f.engine.RecordResult(ctx, "boot-r1-s0", "p1", false)
	require.NoError(t, err)

	state := f.repo.restored("boot")
	var kept []models.Match
	for _, m := range state.Matches {
		if m.ID != "boot-r1-s1" {
			kept = append(kept, m)
		}
	}
	state.Matches = kept

	restarted := f.newEngine()
	require.NoError(t, restarted.Restore(ctx, []RestoredTournament{state}))
	f.engine = restarted

	repaired, err := restarted.Match("boot-r1-s1")
	require.NoError(t, err)
	assert.Equal(t, models.MatchRoomActive, repaired.State)

	snap := f.playOut(t, "boot", favourite)
	assert.Equal(t, models.StatusCompleted, snap.Tournament.Status)
	assert.Equal(t, int64(400), sumAwards(snap.Awards))
	assert.Equal(t, "p1", snap.Awards[0].ParticipantID)

	assert.ErrorIs(t, restarted.Restore(ctx, []RestoredTournament{state}), ErrTournamentExists)
}

func TestEngine_ConcurrentResultsAdvanceOncePerRound(t *testing.T) {
	f := newEngineFixture(playerIDs(16)...)
	ctx := context.Background()
	f.create(t, "rush", 16, 10, models.TournamentConfig{Format: models.FormatSwissOnly, SwissRounds: 4})
	require.NoError(t, f.engine.Start(ctx, "rush"))

	for round := 1; round <= 4; round++ {
		snap := f.snapshot(t, "rush")
		require.Equal(t, round, snap.Tournament.CurrentRound)
		open := openMatches(snap)
		require.Len(t, open, 8)

		var wg sync.WaitGroup
		for _, m := range open {
			wg.Add(1)
			go func(m models.Match) {
				defer wg.Done()
				_, err := f.engine.RecordResult(ctx, m.ID, favourite(m), false)
				assert.NoError(t, err)
			}(m)
		}
		wg.Wait()
	}

	snap := f.snapshot(t, "rush")
	assert.Equal(t, models.StatusCompleted, snap.Tournament.Status)
	require.Len(t, snap.Rounds, 4)
	for i, r := range snap.Rounds {
		assert.Equal(t, i+1, r.Number)
		assert.True(t, r.Complete)
	}
	assert.Len(t, snap.Matches, 32)
	assert.Equal(t, 4, f.notifier.Count(models.EventRoundComplete))
	assert.Len(t, f.hook.Calls(), 1)
}

func TestDefaultSwissRounds(t *testing.T) {
	for n, want := range map[int]int{2: 1, 3: 2, 4: 2, 5: 3, 8: 3, 9: 4, 16: 4, 17: 5, 64: 6} {
		assert.Equal(t, want, DefaultSwissRounds(n), "n=%d", n)
	}
}
