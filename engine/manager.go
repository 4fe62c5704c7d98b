package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"championship-engine/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// advanceTimeout bounds the tournament lock wait of a terminal-match callback.
const advanceTimeout = 30 * time.Second

// EngineConfig wires an Engine to its collaborators.
type EngineConfig struct {
	Clock      Clock
	Presence   PresenceTracker
	Rooms      RoomRequester
	Notifier   Notifier
	Repository Repository
	Locker     Locker
	Hooks      []CompletionHook

	RoomRetryAfter time.Duration
}

// Engine is the registry of running tournaments. Every tournament operation
// runs under that tournament's lock; match events go straight to the shared
// Lifecycle and re-enter through Advance once a match is terminal.
type Engine struct {
	controllers map[string]*Controller
	mu          sync.RWMutex

	lifecycle *Lifecycle
	locker    Locker
	hooks     []CompletionHook
	deps      controllerDeps
}

// NewEngine creates an engine over cfg, filling in defaults for any nil
// collaborator.
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	if cfg.Notifier == nil {
		cfg.Notifier = nopNotifier{}
	}
	if cfg.Repository == nil {
		cfg.Repository = nopRepository{}
	}
	if cfg.Locker == nil {
		cfg.Locker = NewKeyedMutex()
	}

	lifecycle := NewLifecycle(LifecycleConfig{
		Clock:          cfg.Clock,
		Presence:       cfg.Presence,
		Rooms:          cfg.Rooms,
		Notifier:       cfg.Notifier,
		Repository:     cfg.Repository,
		RoomRetryAfter: cfg.RoomRetryAfter,
	})
	e := &Engine{
		controllers: make(map[string]*Controller),
		lifecycle:   lifecycle,
		locker:      cfg.Locker,
		hooks:       cfg.Hooks,
		deps: controllerDeps{
			lifecycle: lifecycle,
			repo:      cfg.Repository,
			notifier:  cfg.Notifier,
			clock:     cfg.Clock,
		},
	}
	lifecycle.SetOnMatchTerminalCallback(e.onMatchTerminal)
	return e
}

// Lifecycle exposes the shared match lifecycle for sweeps.
func (e *Engine) Lifecycle() *Lifecycle {
	return e.lifecycle
}

// CreateTournamentRequest describes a new tournament.
type CreateTournamentRequest struct {
	ID       string                  `json:"id,omitempty"`
	Name     string                  `json:"name"`
	EntryFee int64                   `json:"entryFee"`
	Config   models.TournamentConfig `json:"config"`

	// OpenRegistration skips the upcoming state.
	OpenRegistration bool `json:"openRegistration"`
}

// CreateTournament validates the config, fills in defaults and registers
// the tournament.
func (e *Engine) CreateTournament(ctx context.Context, req CreateTournamentRequest) (models.Tournament, error) {
	if req.EntryFee < 0 {
		return models.Tournament{}, fmt.Errorf("%w: negative entry fee", ErrInvalidConfig)
	}
	if err := ValidateConfig(&req.Config); err != nil {
		return models.Tournament{}, err
	}
	if req.ID == "" {
		req.ID = uuid.New().String()
	}

	t := models.Tournament{
		ID:        req.ID,
		Name:      req.Name,
		EntryFee:  req.EntryFee,
		Config:    req.Config,
		Status:    models.StatusUpcoming,
		Phase:     models.PhaseRegistration,
		CreatedAt: e.deps.clock.Now(),
	}
	c := newController(t, e.deps)

	e.mu.Lock()
	if _, exists := e.controllers[t.ID]; exists {
		e.mu.Unlock()
		return models.Tournament{}, fmt.Errorf("%w: %s", ErrTournamentExists, t.ID)
	}
	e.controllers[t.ID] = c
	e.mu.Unlock()

	log.WithFields(log.Fields{
		"tournament": t.ID,
		"format":     t.Config.Format,
		"capacity":   t.Config.Capacity,
		"entryFee":   t.EntryFee,
		"prizeTable": t.Config.PrizeTable.Name,
	}).Info("[TOURNAMENT] Tournament created")

	var out models.Tournament
	err := e.with(ctx, t.ID, func(c *Controller) error {
		c.saveTournament(ctx)
		if req.OpenRegistration {
			if err := c.OpenRegistration(ctx); err != nil {
				return err
			}
		}
		out = c.Tournament()
		return nil
	})
	return out, err
}

// OpenRegistration opens an upcoming tournament for sign-ups.
func (e *Engine) OpenRegistration(ctx context.Context, tournamentID string) error {
	return e.with(ctx, tournamentID, func(c *Controller) error {
		return c.OpenRegistration(ctx)
	})
}

// Register adds a participant while registration is open.
func (e *Engine) Register(ctx context.Context, tournamentID, participantID string) (models.Participant, error) {
	var p models.Participant
	err := e.with(ctx, tournamentID, func(c *Controller) error {
		var err error
		p, err = c.Register(ctx, participantID)
		return err
	})
	return p, err
}

// Start closes registration and pairs the first round.
func (e *Engine) Start(ctx context.Context, tournamentID string) error {
	return e.with(ctx, tournamentID, func(c *Controller) error {
		return c.Start(ctx)
	})
}

// Advance moves the tournament on once its current round is finished.
func (e *Engine) Advance(ctx context.Context, tournamentID string) error {
	return e.with(ctx, tournamentID, func(c *Controller) error {
		return c.Advance(ctx)
	})
}

// ManualPairing applies an operator pairing to a round that could not be
// paired automatically.
func (e *Engine) ManualPairing(ctx context.Context, tournamentID, actor string, pairs []Pairing) error {
	return e.with(ctx, tournamentID, func(c *Controller) error {
		return c.ManualPairing(ctx, actor, pairs)
	})
}

// OverrideMatch corrects a terminal result and recomputes standings.
func (e *Engine) OverrideMatch(ctx context.Context, tournamentID string, req OverrideRequest) (models.Match, error) {
	var m models.Match
	err := e.with(ctx, tournamentID, func(c *Controller) error {
		var err error
		m, err = c.OverrideMatch(ctx, req)
		return err
	})
	return m, err
}

// Cancel stops the tournament and cancels its open matches.
func (e *Engine) Cancel(ctx context.Context, tournamentID, reason string) error {
	return e.with(ctx, tournamentID, func(c *Controller) error {
		return c.Cancel(ctx, reason)
	})
}

// Snapshot returns the tournament's full state.
func (e *Engine) Snapshot(ctx context.Context, tournamentID string) (Snapshot, error) {
	var snap Snapshot
	err := e.with(ctx, tournamentID, func(c *Controller) error {
		snap = c.Snapshot()
		return nil
	})
	return snap, err
}

// Tournament returns the tournament record.
func (e *Engine) Tournament(ctx context.Context, tournamentID string) (models.Tournament, error) {
	var t models.Tournament
	err := e.with(ctx, tournamentID, func(c *Controller) error {
		t = c.Tournament()
		return nil
	})
	return t, err
}

// Standings returns the current standings.
func (e *Engine) Standings(ctx context.Context, tournamentID string) ([]models.StandingEntry, error) {
	var entries []models.StandingEntry
	err := e.with(ctx, tournamentID, func(c *Controller) error {
		entries = c.Standings()
		return nil
	})
	return entries, err
}

// ListTournaments returns the IDs held in memory.
func (e *Engine) ListTournaments() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ids := make([]string, 0, len(e.controllers))
	for id := range e.controllers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Evict drops a closed tournament from memory. Its rows stay persisted.
func (e *Engine) Evict(ctx context.Context, tournamentID string) error {
	err := e.with(ctx, tournamentID, func(c *Controller) error {
		if !c.tournament.IsClosed() {
			return fmt.Errorf("%w: %s is still running", ErrInvalidTransition, tournamentID)
		}
		return nil
	})
	if err != nil {
		return err
	}
	e.mu.Lock()
	delete(e.controllers, tournamentID)
	e.mu.Unlock()
	e.lifecycle.Forget(tournamentID)
	log.Printf("[TOURNAMENT] Evicted %s", tournamentID)
	return nil
}

// ParticipantOnline forwards a presence signal to the participant's open match.
func (e *Engine) ParticipantOnline(ctx context.Context, participantID string) error {
	return e.lifecycle.ParticipantOnline(ctx, participantID)
}

// RoomCreated confirms the game room of an active match.
func (e *Engine) RoomCreated(ctx context.Context, matchID string) error {
	return e.lifecycle.RoomCreated(ctx, matchID)
}

// RecordResult applies a game-room result. The tournament advances before
// this returns.
func (e *Engine) RecordResult(ctx context.Context, matchID, winnerID string, draw bool) (models.Match, error) {
	return e.lifecycle.RecordResult(ctx, matchID, winnerID, draw)
}

// Match returns a copy of the match.
func (e *Engine) Match(matchID string) (models.Match, error) {
	return e.lifecycle.Get(matchID)
}

// Sweep expires overdue matches, sends reminders and retries room requests
// across every tournament.
func (e *Engine) Sweep(ctx context.Context, now time.Time) SweepReport {
	return e.lifecycle.Sweep(ctx, now)
}

// StartDue starts every tournament whose registration deadline has passed.
// A tournament that cannot start for lack of participants is cancelled.
func (e *Engine) StartDue(ctx context.Context, now time.Time) []string {
	var started []string
	for _, id := range e.ListTournaments() {
		err := e.with(ctx, id, func(c *Controller) error {
			t := c.tournament
			if t.Status != models.StatusRegistrationOpen || t.Config.RegistrationDeadline.IsZero() ||
				now.Before(t.Config.RegistrationDeadline) {
				return nil
			}
			if err := c.Start(ctx); err != nil {
				if errors.Is(err, ErrNotEnoughParticipants) {
					log.Printf("[STARTER] Tournament %s has %d participants at the deadline, cancelling", id, len(c.participants))
					return c.Cancel(ctx, "not enough participants")
				}
				return err
			}
			started = append(started, id)
			return nil
		})
		if err != nil {
			log.Printf("[STARTER] ERROR: Failed to start tournament %s: %v", id, err)
		}
	}
	return started
}

// RestoredTournament is the persisted state of one tournament.
type RestoredTournament struct {
	Tournament   models.Tournament
	Participants []models.Participant
	Rounds       []models.Round
	Matches      []models.Match
	Standings    []models.StandingEntry
}

// Restore reloads persisted tournaments after a restart, reschedules any
// board that never reached the lifecycle and catches each tournament up with
// results that landed while it was down.
func (e *Engine) Restore(ctx context.Context, states []RestoredTournament) error {
	var errs []error
	for _, st := range states {
		id := st.Tournament.ID
		e.mu.RLock()
		_, exists := e.controllers[id]
		e.mu.RUnlock()
		if exists {
			errs = append(errs, fmt.Errorf("%w: %s", ErrTournamentExists, id))
			continue
		}

		for _, m := range st.Matches {
			if err := e.lifecycle.Restore(m, st.Tournament.Config.ReminderLead); err != nil {
				log.Printf("[RESTORE] WARNING: %v", err)
			}
		}
		c := newController(st.Tournament, e.deps)
		c.restore(st.Participants, st.Rounds, st.Standings)

		e.mu.Lock()
		e.controllers[id] = c
		e.mu.Unlock()

		log.WithFields(log.Fields{
			"tournament":   id,
			"status":       st.Tournament.Status,
			"round":        st.Tournament.CurrentRound,
			"participants": len(st.Participants),
			"matches":      len(st.Matches),
		}).Info("[RESTORE] Tournament restored")

		if st.Tournament.Status != models.StatusInProgress {
			continue
		}
		err := e.with(ctx, id, func(c *Controller) error {
			if err := c.repairRound(ctx); err != nil {
				return err
			}
			return c.Advance(ctx)
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("restore %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) controller(tournamentID string) (*Controller, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	c, ok := e.controllers[tournamentID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTournamentNotFound, tournamentID)
	}
	return c, nil
}

// with runs fn under the tournament lock. Completion hooks run after the
// lock is released.
func (e *Engine) with(ctx context.Context, tournamentID string, fn func(c *Controller) error) error {
	c, err := e.controller(tournamentID)
	if err != nil {
		return err
	}
	unlock, err := e.locker.Lock(ctx, lockKey(tournamentID))
	if err != nil {
		return fmt.Errorf("lock tournament %s: %w", tournamentID, err)
	}
	err = fn(c)
	done := c.takeCompletion()
	unlock()

	if done != nil {
		e.settle(context.WithoutCancel(ctx), *done)
	}
	return err
}

// settle runs the completion hooks and marks the tournament settled once
// all of them succeed. A tournament left unsettled is retried by
// SettlePending.
func (e *Engine) settle(ctx context.Context, snap Snapshot) bool {
	ok := true
	for _, hook := range e.hooks {
		if err := hook.OnTournamentComplete(ctx, snap); err != nil {
			ok = false
			log.WithFields(log.Fields{"tournament": snap.Tournament.ID}).WithError(err).Error("[TOURNAMENT] Completion hook failed")
		}
	}
	if !ok {
		return false
	}

	id := snap.Tournament.ID
	err := e.with(ctx, id, func(c *Controller) error {
		c.tournament.Settled = true
		c.saveTournament(ctx)
		return nil
	})
	if errors.Is(err, ErrTournamentNotFound) {
		t := snap.Tournament
		t.Settled = true
		err = e.deps.repo.SaveTournament(ctx, &t)
	}
	if err != nil {
		log.WithFields(log.Fields{"tournament": id}).WithError(err).Error("[TOURNAMENT] Failed to mark tournament settled")
		return false
	}
	log.Printf("[TOURNAMENT] %s settled", id)
	return true
}

// SettlePending re-runs the completion hooks of completed tournaments that
// are not settled yet, e.g. after a hook failed or the process stopped
// between completion and the hooks. Hooks must be idempotent. It returns
// how many tournaments were settled.
func (e *Engine) SettlePending(ctx context.Context) (int, error) {
	loader, ok := e.deps.repo.(UnsettledLoader)
	if !ok {
		return 0, nil
	}
	states, err := loader.LoadUnsettled(ctx)
	if err != nil {
		return 0, err
	}
	settled := 0
	for _, st := range states {
		if ctx.Err() != nil {
			return settled, ctx.Err()
		}
		log.Printf("[TOURNAMENT] Retrying completion hooks for %s", st.Tournament.ID)
		if e.settle(ctx, SnapshotOf(st)) {
			settled++
		}
	}
	return settled, nil
}

// SnapshotOf rebuilds the snapshot of a persisted tournament, awards and
// bracket included, without registering it with an engine.
func SnapshotOf(st RestoredTournament) Snapshot {
	c := newController(st.Tournament, controllerDeps{lifecycle: NewLifecycle(LifecycleConfig{})})
	standings := st.Standings
	if len(standings) == 0 {
		standings = ComputeStandings(st.Tournament.ID, st.Participants, st.Matches, c.standingsOptions())
	}
	c.restore(st.Participants, st.Rounds, standings)
	return c.snapshotWith(append([]models.Match(nil), st.Matches...))
}

func (e *Engine) onMatchTerminal(m models.Match) {
	ctx, cancel := context.WithTimeout(context.Background(), advanceTimeout)
	defer cancel()
	if err := e.Advance(ctx, m.TournamentID); err != nil {
		log.WithFields(log.Fields{
			"tournament": m.TournamentID,
			"match":      m.ID,
		}).WithError(err).Error("[TOURNAMENT] Advance after match result failed")
	}
}

func lockKey(tournamentID string) string {
	return "tournament:" + tournamentID
}
