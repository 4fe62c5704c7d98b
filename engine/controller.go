package engine

import (
	"context"
	"errors"
	"fmt"
	"math/bits"
	"sort"

	"championship-engine/models"

	log "github.com/sirupsen/logrus"
)

// Snapshot is a consistent copy of one tournament's state.
type Snapshot struct {
	Tournament   models.Tournament      `json:"tournament"`
	Participants []models.Participant   `json:"participants"`
	Rounds       []models.Round         `json:"rounds"`
	Matches      []models.Match         `json:"matches"`
	Standings    []models.StandingEntry `json:"standings"`
	Awards       []Award                `json:"awards,omitempty"`
	Bracket      *BracketView           `json:"bracket,omitempty"`
}

// Controller drives one tournament through registration, the Swiss rounds,
// the bracket and completion. It is not safe for concurrent use: the Engine
// calls it only while holding the tournament's lock.
type Controller struct {
	tournament   models.Tournament
	participants []models.Participant
	registered   map[string]bool
	rounds       []models.Round
	standings    []models.StandingEntry
	seeds        map[string]int
	bracketSize  int
	awards       []Award

	lifecycle *Lifecycle
	repo      Repository
	notifier  Notifier
	clock     Clock

	// set by finish, drained by the Engine once the lock is released
	completed *Snapshot
}

type controllerDeps struct {
	lifecycle *Lifecycle
	repo      Repository
	notifier  Notifier
	clock     Clock
}

func newController(t models.Tournament, deps controllerDeps) *Controller {
	return &Controller{
		tournament: t,
		registered: make(map[string]bool),
		seeds:      make(map[string]int),
		lifecycle:  deps.lifecycle,
		repo:       deps.repo,
		notifier:   deps.notifier,
		clock:      deps.clock,
	}
}

// DefaultSwissRounds is ceil(log2(n)), at least one.
func DefaultSwissRounds(participants int) int {
	if participants <= 2 {
		return 1
	}
	return bits.Len(uint(participants - 1))
}

// Tournament returns a copy of the tournament record.
func (c *Controller) Tournament() models.Tournament {
	return c.tournament
}

// OpenRegistration moves an upcoming tournament to registration_open.
func (c *Controller) OpenRegistration(ctx context.Context) error {
	switch c.tournament.Status {
	case models.StatusRegistrationOpen:
		return nil
	case models.StatusUpcoming:
	default:
		return c.statusError()
	}
	c.tournament.Status = models.StatusRegistrationOpen
	c.tournament.Phase = models.PhaseRegistration
	c.saveTournament(ctx)
	log.Printf("[TOURNAMENT] Registration open for %s", c.tournament.ID)
	return nil
}

// Register admits a participant and adds the entry fee to the pool.
func (c *Controller) Register(ctx context.Context, participantID string) (models.Participant, error) {
	if participantID == "" {
		return models.Participant{}, fmt.Errorf("%w: empty participant id", ErrUnknownParticipant)
	}
	if c.tournament.Status != models.StatusRegistrationOpen {
		return models.Participant{}, c.statusError()
	}
	now := c.clock.Now()
	if deadline := c.tournament.Config.RegistrationDeadline; !deadline.IsZero() && now.After(deadline) {
		return models.Participant{}, ErrRegistrationClosed
	}
	if c.registered[participantID] {
		return models.Participant{}, ErrAlreadyRegistered
	}
	if !c.tournament.HasCapacity(len(c.participants)) {
		return models.Participant{}, ErrTournamentFull
	}

	p := models.Participant{
		ID:                participantID,
		TournamentID:      c.tournament.ID,
		RegisteredAt:      now,
		RegistrationOrder: len(c.participants) + 1,
	}
	c.participants = append(c.participants, p)
	c.registered[participantID] = true
	c.tournament.Pool += c.tournament.EntryFee

	if err := c.repo.SaveParticipant(ctx, &p); err != nil {
		log.Printf("[TOURNAMENT] ERROR: Failed to persist participant %s: %v", p.ID, err)
	}
	c.saveTournament(ctx)

	log.Printf("[TOURNAMENT] %s registered for %s (#%d, pool %d)", p.ID, c.tournament.ID, p.RegistrationOrder, c.tournament.Pool)
	c.notify(models.EventRegistrationConfirmed, p.ID, map[string]interface{}{
		"registrationOrder": p.RegistrationOrder,
		"pool":              c.tournament.Pool,
	})
	return p, nil
}

// Start closes registration and opens the first phase.
func (c *Controller) Start(ctx context.Context) error {
	if c.tournament.Status != models.StatusRegistrationOpen {
		return c.statusError()
	}
	n := len(c.participants)
	if n < 2 {
		return fmt.Errorf("%w: %d registered", ErrNotEnoughParticipants, n)
	}

	now := c.clock.Now()
	c.tournament.Status = models.StatusInProgress
	c.tournament.StartedAt = &now
	if c.tournament.Config.Format == models.FormatEliminationOnly {
		c.tournament.Phase = models.PhaseElimination
	} else {
		c.tournament.Phase = models.PhaseSwiss
		c.tournament.SwissRoundsPlanned = c.tournament.Config.SwissRounds
		if c.tournament.SwissRoundsPlanned <= 0 {
			c.tournament.SwissRoundsPlanned = DefaultSwissRounds(n)
		}
	}
	c.standings = ComputeStandings(c.tournament.ID, c.participants, nil, c.standingsOptions())
	c.saveTournament(ctx)

	log.WithFields(log.Fields{
		"tournament":   c.tournament.ID,
		"participants": n,
		"format":       c.tournament.Config.Format,
		"swissRounds":  c.tournament.SwissRoundsPlanned,
		"pool":         c.tournament.Pool,
	}).Info("[TOURNAMENT] Tournament started")
	c.notify(models.EventPhaseChanged, "", map[string]interface{}{"phase": c.tournament.Phase})
	return c.Advance(ctx)
}

// Advance reconciles the tournament with its matches: it closes a finished
// round, pairs or seeds the next one, or completes the tournament. Calling it
// again with nothing new to do is a no-op.
func (c *Controller) Advance(ctx context.Context) error {
	for c.tournament.Status == models.StatusInProgress {
		progressed, err := c.step(ctx)
		if err != nil || !progressed {
			return err
		}
	}
	return nil
}

func (c *Controller) step(ctx context.Context) (bool, error) {
	if cur := c.currentRound(); cur != nil && !cur.Complete {
		if !c.roundFinished(cur) {
			return false, nil
		}
		c.closeRound(ctx, cur)
		return true, nil
	}
	if c.tournament.PendingManualPairing {
		return false, nil
	}

	switch c.tournament.Phase {
	case models.PhaseSwiss:
		if c.swissRoundsPlayed() < c.tournament.SwissRoundsPlanned {
			return true, c.pairSwiss(ctx)
		}
		if c.tournament.Config.Format == models.FormatSwissOnly {
			return false, c.finish(ctx)
		}
		return true, c.startElimination(ctx)
	case models.PhaseElimination:
		last := c.lastBracketRound()
		if last == nil {
			return true, c.startElimination(ctx)
		}
		if last.Kind == models.RoundFinal {
			return false, c.finish(ctx)
		}
		return true, c.nextBracketRound(ctx, last)
	}
	return false, nil
}

func (c *Controller) pairSwiss(ctx context.Context) error {
	matches := c.lifecycle.List(c.tournament.ID)
	pairs, err := PairSwissRound(SwissRequest{
		TournamentID: c.tournament.ID,
		Round:        c.tournament.CurrentRound + 1,
		Ranking:      c.swissStandings(matches),
		History:      HistoryFromMatches(matches),
	})
	if err != nil {
		c.pairingFailed(ctx, err)
		return err
	}
	return c.scheduleSwiss(ctx, pairs)
}

func (c *Controller) scheduleSwiss(ctx context.Context, pairs []Pairing) error {
	number := c.tournament.CurrentRound + 1
	round := models.Round{TournamentID: c.tournament.ID, Number: number, Kind: models.RoundSwiss}
	for i, p := range pairs {
		round.Slots = append(round.Slots, models.RoundSlot{
			Slot:    i,
			MatchID: c.matchID(number, i),
			PlayerA: p.A,
			PlayerB: p.B,
		})
	}
	return c.openRound(ctx, round)
}

func (c *Controller) pairingFailed(ctx context.Context, err error) {
	c.tournament.PendingManualPairing = true
	c.saveTournament(ctx)

	fields := log.Fields{"tournament": c.tournament.ID, "round": c.tournament.CurrentRound + 1}
	data := map[string]interface{}{"round": c.tournament.CurrentRound + 1, "error": err.Error()}
	var pe *PairingInfeasibleError
	if errors.As(err, &pe) {
		fields["unpaired"] = pe.Unpaired
		data["unpaired"] = pe.Unpaired
	}
	log.WithFields(fields).WithError(err).Error("[PAIRING] Automatic pairing failed, waiting for a manual pairing")
	c.notify(models.EventPairingFailed, "", data)
}

// startElimination seeds the bracket from the Swiss ranking, or from
// registration order when there was no Swiss phase.
func (c *Controller) startElimination(ctx context.Context) error {
	matches := c.lifecycle.List(c.tournament.ID)
	qualifiers := c.tournament.Config.Qualifiers
	if c.tournament.Config.Format == models.FormatEliminationOnly {
		qualifiers = 0
	}
	plan, err := BuildBracket(c.tournament.ID, c.swissStandings(matches), qualifiers)
	if err != nil {
		log.WithFields(log.Fields{"tournament": c.tournament.ID}).WithError(err).Error("[BRACKET] Cannot seed elimination bracket")
		c.notify(models.EventPairingFailed, "", map[string]interface{}{"phase": models.PhaseElimination, "error": err.Error()})
		return err
	}

	c.seeds = plan.Seeds
	c.bracketSize = plan.Size
	for i := range c.participants {
		p := &c.participants[i]
		seed, ok := plan.Seeds[p.ID]
		if !ok {
			continue
		}
		p.Seed = &seed
		if err := c.repo.SaveParticipant(ctx, p); err != nil {
			log.Printf("[TOURNAMENT] ERROR: Failed to persist seed for %s: %v", p.ID, err)
		}
	}

	if c.tournament.Phase != models.PhaseElimination {
		c.tournament.Phase = models.PhaseElimination
		c.notify(models.EventPhaseChanged, "", map[string]interface{}{
			"phase":      models.PhaseElimination,
			"qualifiers": len(plan.Seeds),
		})
	}

	number := c.tournament.CurrentRound + 1
	kind := KindForSlots(len(plan.Pairings))
	round := models.Round{TournamentID: c.tournament.ID, Number: number, Kind: kind}
	for _, p := range plan.Pairings {
		round.Slots = append(round.Slots, c.bracketSlot(number, kind, p))
	}
	return c.openRound(ctx, round)
}

func (c *Controller) nextBracketRound(ctx context.Context, last *models.Round) error {
	played := c.roundMatches(last.Number)
	next := AdvanceBracket(SlotWinners(played, bracketSlots(last)))
	number := last.Number + 1
	kind := KindForSlots(len(next))

	round := models.Round{TournamentID: c.tournament.ID, Number: number, Kind: kind}
	for _, p := range next {
		round.Slots = append(round.Slots, c.bracketSlot(number, kind, p))
	}
	if kind == models.RoundFinal && last.Kind == models.RoundSemi && c.tournament.Config.ThirdPlaceMatch {
		if tp, ok := ThirdPlacePairing(played); ok {
			round.Slots = append(round.Slots, c.bracketSlot(number, models.RoundThirdPlace, tp))
		}
	}
	return c.openRound(ctx, round)
}

func (c *Controller) bracketSlot(number int, kind models.RoundKind, p BracketPairing) models.RoundSlot {
	s := models.RoundSlot{Slot: p.Slot, Kind: kind}
	if !p.IsEmpty() {
		s.MatchID = c.matchID(number, p.Slot)
		s.PlayerA, s.PlayerB = p.A, p.B
	}
	return s
}

// openRound persists the round before its matches so a restart can finish
// scheduling whatever is missing.
func (c *Controller) openRound(ctx context.Context, round models.Round) error {
	c.rounds = append(c.rounds, round)
	c.tournament.CurrentRound = round.Number
	if err := c.repo.SaveRound(ctx, &round); err != nil {
		log.Printf("[TOURNAMENT] ERROR: Failed to persist round %d of %s: %v", round.Number, c.tournament.ID, err)
	}
	c.saveTournament(ctx)

	log.Printf("[TOURNAMENT] %s round %d (%s): %d boards", c.tournament.ID, round.Number, round.Kind, len(round.MatchIDs()))
	var errs []error
	for _, s := range round.Slots {
		if s.MatchID == "" {
			continue
		}
		if err := c.schedule(ctx, round, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Controller) schedule(ctx context.Context, round models.Round, s models.RoundSlot) error {
	kind := s.Kind
	if kind == "" {
		kind = round.Kind
	}
	_, err := c.lifecycle.Schedule(ctx, MatchSpec{
		ID:           s.MatchID,
		TournamentID: c.tournament.ID,
		Round:        round.Number,
		Kind:         kind,
		Slot:         s.Slot,
		PlayerA:      s.PlayerA,
		PlayerB:      s.PlayerB,
		Window:       c.tournament.Config.MatchWindow,
		ReminderLead: c.tournament.Config.ReminderLead,
	})
	if errors.Is(err, ErrMatchExists) {
		return nil
	}
	if err != nil {
		log.WithFields(log.Fields{"tournament": c.tournament.ID, "match": s.MatchID}).WithError(err).Error("[TOURNAMENT] Failed to schedule match")
	}
	return err
}

// repairRound schedules any board of the current round that was persisted
// but never reached the lifecycle.
func (c *Controller) repairRound(ctx context.Context) error {
	cur := c.currentRound()
	if cur == nil || cur.Complete {
		return nil
	}
	var errs []error
	for _, s := range cur.Slots {
		if s.MatchID == "" {
			continue
		}
		if _, err := c.lifecycle.Get(s.MatchID); err == nil {
			continue
		}
		log.Printf("[TOURNAMENT] Rescheduling missing match %s of %s", s.MatchID, c.tournament.ID)
		if err := c.schedule(ctx, *cur, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Controller) roundFinished(r *models.Round) bool {
	for _, id := range r.MatchIDs() {
		m, err := c.lifecycle.Get(id)
		if err != nil || !m.IsTerminal() {
			return false
		}
	}
	return true
}

func (c *Controller) closeRound(ctx context.Context, r *models.Round) {
	r.Complete = true
	if err := c.repo.SaveRound(ctx, r); err != nil {
		log.Printf("[TOURNAMENT] ERROR: Failed to persist round %d of %s: %v", r.Number, c.tournament.ID, err)
	}
	c.recomputeStandings(ctx)
	log.Printf("[TOURNAMENT] %s round %d complete", c.tournament.ID, r.Number)
	c.notify(models.EventRoundComplete, "", map[string]interface{}{"round": r.Number, "kind": r.Kind})
}

func (c *Controller) recomputeStandings(ctx context.Context) {
	c.standings = ComputeStandings(c.tournament.ID, c.participants, c.lifecycle.List(c.tournament.ID), c.standingsOptions())
	if err := c.repo.SaveStandings(ctx, c.tournament.ID, c.standings); err != nil {
		log.Printf("[TOURNAMENT] ERROR: Failed to persist standings of %s: %v", c.tournament.ID, err)
	}
}

// finish resolves final positions, pays the pool out and closes the
// tournament.
func (c *Controller) finish(ctx context.Context) error {
	matches := c.lifecycle.List(c.tournament.ID)
	var bracket []models.Match
	for _, m := range matches {
		if m.Kind.IsBracket() {
			bracket = append(bracket, m)
		}
	}
	positions := FinalPositions(c.swissStandings(matches), bracket, c.seeds)

	table, err := ResolvePrizeTable(c.tournament.Config.PrizeTable)
	if err != nil {
		return err
	}
	awards, err := DistributePrizes(c.tournament.Pool, table, positions)
	if err != nil {
		log.WithFields(log.Fields{"tournament": c.tournament.ID}).WithError(err).Error("[PRIZE_CALC] Cannot distribute pool")
		return err
	}

	c.standings = ComputeStandings(c.tournament.ID, c.participants, matches, c.standingsOptions())
	c.awards = ApplyAwards(c.standings, awards, c.tournament.Config.CreditTable)
	sort.SliceStable(c.standings, func(i, j int) bool {
		return c.standings[i].FinalPosition < c.standings[j].FinalPosition
	})
	if err := c.repo.SaveStandings(ctx, c.tournament.ID, c.standings); err != nil {
		log.Printf("[TOURNAMENT] ERROR: Failed to persist final standings of %s: %v", c.tournament.ID, err)
	}

	now := c.clock.Now()
	c.tournament.Status = models.StatusCompleted
	c.tournament.Phase = models.PhaseFinished
	c.tournament.CompletedAt = &now
	c.saveTournament(ctx)

	champion := ""
	if len(positions) > 0 {
		champion = positions[0]
	}
	log.WithFields(log.Fields{
		"tournament": c.tournament.ID,
		"champion":   champion,
		"pool":       c.tournament.Pool,
		"rounds":     c.tournament.CurrentRound,
	}).Info("[TOURNAMENT] Tournament complete")
	for _, a := range c.awards {
		c.notify(models.EventTournamentComplete, a.ParticipantID, map[string]interface{}{
			"position": a.Position,
			"prize":    a.Prize,
			"credits":  a.Credits,
		})
	}

	snap := c.Snapshot()
	c.completed = &snap
	return nil
}

// ManualPairing resumes a tournament stalled on an infeasible Swiss round.
func (c *Controller) ManualPairing(ctx context.Context, actor string, pairs []Pairing) error {
	if err := c.requireInProgress(); err != nil {
		return err
	}
	if !c.tournament.PendingManualPairing || c.tournament.Phase != models.PhaseSwiss {
		return ErrNoPendingPairing
	}
	if err := ValidateManualPairing(c.participantIDs(), pairs); err != nil {
		return err
	}
	c.tournament.PendingManualPairing = false
	log.WithFields(log.Fields{
		"tournament": c.tournament.ID,
		"round":      c.tournament.CurrentRound + 1,
		"actor":      actor,
		"boards":     len(pairs),
	}).Warn("[PAIRING] Manual pairing accepted")
	if err := c.scheduleSwiss(ctx, pairs); err != nil {
		return err
	}
	return c.Advance(ctx)
}

// OverrideMatch corrects a match outcome and re-derives everything that
// depends on it. A Swiss result is frozen once the bracket is seeded, and a
// bracket result once the following round is paired.
func (c *Controller) OverrideMatch(ctx context.Context, req OverrideRequest) (models.Match, error) {
	if err := c.requireInProgress(); err != nil {
		return models.Match{}, err
	}
	m, err := c.lifecycle.Get(req.MatchID)
	if err != nil {
		return models.Match{}, err
	}
	if m.TournamentID != c.tournament.ID {
		return models.Match{}, fmt.Errorf("%w: %s", ErrMatchNotFound, req.MatchID)
	}
	if m.Kind.IsBracket() && m.Round < c.tournament.CurrentRound {
		return models.Match{}, fmt.Errorf("%w: round %d already feeds round %d", ErrOverrideConflict, m.Round, c.tournament.CurrentRound)
	}
	if !m.Kind.IsBracket() && c.tournament.Phase != models.PhaseSwiss {
		return models.Match{}, fmt.Errorf("%w: bracket already seeded from the Swiss standings", ErrOverrideConflict)
	}

	updated, _, err := c.lifecycle.Override(ctx, req)
	if err != nil {
		return models.Match{}, err
	}
	c.recomputeStandings(ctx)
	return updated, c.Advance(ctx)
}

// Cancel stops the tournament and every open match.
func (c *Controller) Cancel(ctx context.Context, reason string) error {
	if c.tournament.IsClosed() {
		return c.statusError()
	}
	c.lifecycle.CancelTournament(ctx, c.tournament.ID, reason)

	now := c.clock.Now()
	c.tournament.Status = models.StatusCancelled
	c.tournament.Phase = models.PhaseFinished
	c.tournament.CompletedAt = &now
	c.tournament.PendingManualPairing = false
	c.saveTournament(ctx)

	log.WithFields(log.Fields{"tournament": c.tournament.ID, "reason": reason}).Warn("[TOURNAMENT] Tournament cancelled")
	for _, p := range c.participants {
		c.notify(models.EventTournamentCancelled, p.ID, map[string]interface{}{"reason": reason})
	}
	return nil
}

// Snapshot copies the tournament's full state, including its matches.
func (c *Controller) Snapshot() Snapshot {
	return c.snapshotWith(c.lifecycle.List(c.tournament.ID))
}

func (c *Controller) snapshotWith(matches []models.Match) Snapshot {
	snap := Snapshot{
		Tournament:   c.tournament,
		Participants: append([]models.Participant(nil), c.participants...),
		Rounds:       make([]models.Round, len(c.rounds)),
		Matches:      matches,
		Standings:    append([]models.StandingEntry(nil), c.standings...),
		Awards:       append([]Award(nil), c.awards...),
	}
	for i, r := range c.rounds {
		r.Slots = append([]models.RoundSlot(nil), r.Slots...)
		snap.Rounds[i] = r
	}
	if c.bracketSize > 0 {
		view := NewBracketView(c.tournament.ID, c.bracketSize, matches)
		snap.Bracket = &view
	}
	return snap
}

// Standings returns a copy of the current standings.
func (c *Controller) Standings() []models.StandingEntry {
	return append([]models.StandingEntry(nil), c.standings...)
}

// takeCompletion hands over the snapshot of a just-completed tournament once.
func (c *Controller) takeCompletion() *Snapshot {
	snap := c.completed
	c.completed = nil
	return snap
}

// restore rebuilds in-memory state from persisted rows. The lifecycle must
// already hold the tournament's matches.
func (c *Controller) restore(participants []models.Participant, rounds []models.Round, standings []models.StandingEntry) {
	c.participants = append([]models.Participant(nil), participants...)
	sort.SliceStable(c.participants, func(i, j int) bool {
		return c.participants[i].RegistrationOrder < c.participants[j].RegistrationOrder
	})
	for _, p := range c.participants {
		c.registered[p.ID] = true
		if p.Seed != nil {
			c.seeds[p.ID] = *p.Seed
		}
	}
	if len(c.seeds) > 0 {
		c.bracketSize = nextPowerOfTwo(len(c.seeds))
	}

	c.rounds = append([]models.Round(nil), rounds...)
	sort.Slice(c.rounds, func(i, j int) bool { return c.rounds[i].Number < c.rounds[j].Number })

	c.standings = append([]models.StandingEntry(nil), standings...)
	if len(c.standings) == 0 {
		c.standings = ComputeStandings(c.tournament.ID, c.participants, c.lifecycle.List(c.tournament.ID), c.standingsOptions())
	}
	for _, e := range c.standings {
		if e.FinalPosition > 0 {
			c.awards = append(c.awards, Award{ParticipantID: e.ParticipantID, Position: e.FinalPosition, Prize: e.Prize, Credits: e.Credits})
		}
	}
	sort.Slice(c.awards, func(i, j int) bool { return c.awards[i].Position < c.awards[j].Position })
}

func (c *Controller) currentRound() *models.Round {
	if len(c.rounds) == 0 {
		return nil
	}
	return &c.rounds[len(c.rounds)-1]
}

func (c *Controller) lastBracketRound() *models.Round {
	for i := len(c.rounds) - 1; i >= 0; i-- {
		if c.rounds[i].Kind.IsBracket() {
			return &c.rounds[i]
		}
	}
	return nil
}

func (c *Controller) swissRoundsPlayed() int {
	n := 0
	for _, r := range c.rounds {
		if r.Kind == models.RoundSwiss {
			n++
		}
	}
	return n
}

func (c *Controller) roundMatches(number int) []models.Match {
	var out []models.Match
	for _, m := range c.lifecycle.List(c.tournament.ID) {
		if m.Round == number {
			out = append(out, m)
		}
	}
	return out
}

// bracketSlots counts the winner-bearing slots of a bracket round.
func bracketSlots(r *models.Round) int {
	n := 0
	for _, s := range r.Slots {
		if s.Kind != models.RoundThirdPlace {
			n++
		}
	}
	return n
}

// swissStandings ranks the field on Swiss results alone. With no Swiss phase
// every entry is level and registration order decides.
func (c *Controller) swissStandings(matches []models.Match) []models.StandingEntry {
	swiss := make([]models.Match, 0, len(matches))
	for _, m := range matches {
		if m.Kind == models.RoundSwiss {
			swiss = append(swiss, m)
		}
	}
	return ComputeStandings(c.tournament.ID, c.participants, swiss, c.standingsOptions())
}

func (c *Controller) standingsOptions() StandingsOptions {
	return StandingsOptions{DoubleForfeitCountsAsPlayed: !c.tournament.Config.ExcludeDoubleForfeits}
}

func (c *Controller) participantIDs() []string {
	ids := make([]string, len(c.participants))
	for i, p := range c.participants {
		ids[i] = p.ID
	}
	return ids
}

func (c *Controller) matchID(round, slot int) string {
	return fmt.Sprintf("%s-r%d-s%d", c.tournament.ID, round, slot)
}

func (c *Controller) statusError() error {
	switch c.tournament.Status {
	case models.StatusCancelled:
		return ErrTournamentCancelled
	case models.StatusCompleted:
		return ErrTournamentCompleted
	case models.StatusInProgress:
		return ErrTournamentStarted
	case models.StatusUpcoming:
		return ErrRegistrationNotOpen
	}
	return ErrTournamentNotStarted
}

func (c *Controller) requireInProgress() error {
	switch c.tournament.Status {
	case models.StatusInProgress:
		return nil
	case models.StatusUpcoming, models.StatusRegistrationOpen:
		return ErrTournamentNotStarted
	}
	return c.statusError()
}

func (c *Controller) saveTournament(ctx context.Context) {
	if err := c.repo.SaveTournament(ctx, &c.tournament); err != nil {
		log.Printf("[TOURNAMENT] ERROR: Failed to persist tournament %s: %v", c.tournament.ID, err)
	}
}

func (c *Controller) notify(kind models.EventKind, participantID string, data interface{}) {
	c.notifier.Notify(models.Event{
		Kind:          kind,
		TournamentID:  c.tournament.ID,
		ParticipantID: participantID,
		Data:          data,
		At:            c.clock.Now(),
	})
}
