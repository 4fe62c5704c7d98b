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

// MatchSpec is what the controller hands over when it schedules a match.
type MatchSpec struct {
	ID           string
	TournamentID string
	Round        int
	Kind         models.RoundKind
	Slot         int
	PlayerA      string
	PlayerB      string // empty for a bye
	Window       time.Duration
	ReminderLead time.Duration
}

type matchEntry struct {
	mu           sync.Mutex
	match        models.Match
	reminderLead time.Duration
}

// Lifecycle owns every match state machine. Each transition is a
// compare-and-set under the match's own mutex; collaborator calls and
// callbacks run after that mutex is released.
type Lifecycle struct {
	mu           sync.RWMutex
	matches      map[string]*matchEntry
	byTournament map[string]map[string]*matchEntry
	active       map[string]string // participant -> non-terminal match

	clock    Clock
	presence PresenceTracker
	rooms    RoomRequester
	notifier Notifier
	repo     Repository

	roomRetryAfter time.Duration

	onMatchTerminal func(m models.Match)
}

// LifecycleConfig holds the collaborators of a Lifecycle.
type LifecycleConfig struct {
	Clock      Clock
	Presence   PresenceTracker
	Rooms      RoomRequester
	Notifier   Notifier
	Repository Repository

	// RoomRetryAfter re-issues request_room for active matches whose room
	// was never confirmed. Zero disables retries.
	RoomRetryAfter time.Duration
}

// NewLifecycle creates a match lifecycle manager. A nil clock means SystemClock.
func NewLifecycle(cfg LifecycleConfig) *Lifecycle {
	l := &Lifecycle{
		matches:        make(map[string]*matchEntry),
		byTournament:   make(map[string]map[string]*matchEntry),
		active:         make(map[string]string),
		clock:          cfg.Clock,
		presence:       cfg.Presence,
		rooms:          cfg.Rooms,
		notifier:       cfg.Notifier,
		repo:           cfg.Repository,
		roomRetryAfter: cfg.RoomRetryAfter,
	}
	if l.clock == nil {
		l.clock = SystemClock{}
	}
	if l.rooms == nil {
		l.rooms = nopRooms{}
	}
	if l.notifier == nil {
		l.notifier = nopNotifier{}
	}
	if l.repo == nil {
		l.repo = nopRepository{}
	}
	return l
}

// SetOnMatchTerminalCallback registers the hook fired once per match that
// reaches a terminal state through a result or the deadline sweep.
func (l *Lifecycle) SetOnMatchTerminalCallback(callback func(m models.Match)) {
	l.onMatchTerminal = callback
}

// Schedule creates a match. Byes are terminal at creation. A match whose two
// participants are already online goes straight to room_active.
func (l *Lifecycle) Schedule(ctx context.Context, spec MatchSpec) (models.Match, error) {
	if spec.PlayerA == "" || spec.PlayerA == spec.PlayerB {
		return models.Match{}, fmt.Errorf("%w: invalid participants %q vs %q", ErrInvalidTransition, spec.PlayerA, spec.PlayerB)
	}
	if spec.ID == "" {
		spec.ID = uuid.New().String()
	}
	now := l.clock.Now()
	m := models.Match{
		ID:           spec.ID,
		TournamentID: spec.TournamentID,
		Round:        spec.Round,
		Kind:         spec.Kind,
		Slot:         spec.Slot,
		PlayerA:      spec.PlayerA,
		PlayerB:      spec.PlayerB,
		CreatedAt:    now,
		Deadline:     now.Add(spec.Window),
		State:        models.MatchCreated,
		Version:      1,
	}
	if m.IsBye() {
		m.State = models.MatchCompleted
		m.Result = models.ResultBye
		m.WinnerID = m.PlayerA
		m.CompletedAt = &now
	}

	entry := &matchEntry{match: m, reminderLead: spec.ReminderLead}
	entry.mu.Lock()
	l.mu.Lock()
	if _, exists := l.matches[m.ID]; exists {
		l.mu.Unlock()
		entry.mu.Unlock()
		return models.Match{}, fmt.Errorf("%w: %s", ErrMatchExists, m.ID)
	}
	if !m.IsBye() {
		for _, id := range []string{m.PlayerA, m.PlayerB} {
			if busy, ok := l.active[id]; ok {
				l.mu.Unlock()
				entry.mu.Unlock()
				return models.Match{}, fmt.Errorf("%w: %s is playing %s", ErrParticipantBusy, id, busy)
			}
		}
		l.active[m.PlayerA] = m.ID
		l.active[m.PlayerB] = m.ID
	}
	l.insertLocked(entry)
	l.mu.Unlock()
	if err := l.repo.SaveMatch(ctx, &entry.match); err != nil {
		log.Printf("[MATCH] ERROR: Failed to persist match %s: %v", m.ID, err)
	}
	entry.mu.Unlock()

	if m.IsBye() {
		log.Printf("[MATCH] Bye for %s in tournament %s round %d", m.PlayerA, m.TournamentID, m.Round)
		l.emit(models.EventMatchScheduled, m, m.PlayerA, map[string]interface{}{"bye": true})
		return m, nil
	}

	log.Printf("[MATCH] Scheduled %s: %s vs %s (deadline %s)", m.ID, m.PlayerA, m.PlayerB, m.Deadline.Format(time.RFC3339))
	l.emit(models.EventMatchScheduled, m, m.PlayerA, map[string]interface{}{"opponent": m.PlayerB, "deadline": m.Deadline})
	l.emit(models.EventMatchScheduled, m, m.PlayerB, map[string]interface{}{"opponent": m.PlayerA, "deadline": m.Deadline})

	// The match is visible before presence is read, so a signal racing with
	// scheduling lands on the match instead of being dropped.
	onlineA := l.isOnline(ctx, m.PlayerA)
	onlineB := l.isOnline(ctx, m.PlayerB)

	entry.mu.Lock()
	cur := &entry.match
	if cur.IsTerminal() || cur.State == models.MatchRoomActive {
		updated := *cur
		entry.mu.Unlock()
		return updated, nil
	}
	prev := *cur
	cur.SeenA = cur.SeenA || onlineA
	cur.SeenB = cur.SeenB || onlineB
	activated := onlineA && onlineB
	if activated {
		l.activateLocked(entry, l.clock.Now())
	} else {
		cur.State = models.MatchAwaitingBothOnline
	}
	cur.Version++
	if err := l.persistLocked(ctx, entry, prev); err != nil {
		activated = false
	}
	updated := *cur
	entry.mu.Unlock()

	if activated {
		l.requestRoom(ctx, updated)
	}
	return updated, nil
}

// ParticipantOnline records a presence signal for the participant's current
// match. Duplicate signals are harmless; a participant with no open match is
// ignored.
func (l *Lifecycle) ParticipantOnline(ctx context.Context, participantID string) error {
	l.mu.RLock()
	matchID, ok := l.active[participantID]
	entry := l.matches[matchID]
	l.mu.RUnlock()
	if !ok || entry == nil {
		log.Debugf("[PRESENCE] %s is online with no open match", participantID)
		return nil
	}

	snapshot := entry.snapshot()
	if snapshot.IsTerminal() {
		return l.stale(snapshot, "participant_online")
	}
	opponent := snapshot.Opponent(participantID)
	// Without a presence tracker an earlier sighting is taken at face value.
	opponentOnline := l.presence == nil || l.isOnline(ctx, opponent)

	entry.mu.Lock()
	m := &entry.match
	if m.IsTerminal() {
		entry.mu.Unlock()
		return l.stale(*m, "participant_online")
	}
	if m.State == models.MatchRoomActive {
		entry.mu.Unlock()
		return nil
	}
	now := l.clock.Now()
	if !now.Before(m.Deadline) {
		entry.mu.Unlock()
		log.Debugf("[PRESENCE] %s came online after the window of %s closed", participantID, matchID)
		return nil
	}
	prev := *m
	firstSighting := false
	if participantID == m.PlayerA && !m.SeenA {
		m.SeenA, firstSighting = true, true
	}
	if participantID == m.PlayerB && !m.SeenB {
		m.SeenB, firstSighting = true, true
	}
	opponentSeen := (opponent == m.PlayerA && m.SeenA) || (opponent == m.PlayerB && m.SeenB)
	activated := opponentSeen && opponentOnline
	if activated {
		l.activateLocked(entry, now)
	} else if m.State == models.MatchCreated {
		m.State = models.MatchAwaitingBothOnline
	}
	if firstSighting || activated {
		m.Version++
		if err := l.persistLocked(ctx, entry, prev); err != nil {
			entry.mu.Unlock()
			return err
		}
	}
	updated := *m
	entry.mu.Unlock()

	if firstSighting {
		l.emit(models.EventOpponentOnline, updated, opponent, map[string]interface{}{"opponent": participantID})
	}
	if activated {
		l.requestRoom(ctx, updated)
	}
	return nil
}

// RoomCreated acknowledges the game room for an active match.
func (l *Lifecycle) RoomCreated(ctx context.Context, matchID string) error {
	entry, err := l.entry(matchID)
	if err != nil {
		return err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	m := &entry.match
	switch {
	case m.IsTerminal():
		return l.stale(*m, "room_created")
	case m.State != models.MatchRoomActive:
		return fmt.Errorf("%w: room created for %s in state %s", ErrInvalidTransition, m.ID, m.State)
	case m.RoomConfirmedAt != nil:
		return nil
	}
	prev := *m
	now := l.clock.Now()
	m.RoomConfirmedAt = &now
	m.Version++
	if err := l.persistLocked(ctx, entry, prev); err != nil {
		return err
	}
	log.Printf("[MATCH] Room confirmed for %s", m.ID)
	return nil
}

// RecordResult applies the game-room's terminal event. It is the only path
// that records a non-forfeit winner. winnerID is ignored for a draw.
func (l *Lifecycle) RecordResult(ctx context.Context, matchID, winnerID string, draw bool) (models.Match, error) {
	entry, err := l.entry(matchID)
	if err != nil {
		return models.Match{}, err
	}

	entry.mu.Lock()
	m := &entry.match
	if m.IsTerminal() {
		stale := *m
		entry.mu.Unlock()
		return stale, l.stale(stale, "match_result")
	}
	if m.State != models.MatchRoomActive {
		state := m.State
		entry.mu.Unlock()
		return models.Match{}, fmt.Errorf("%w: result for %s in state %s", ErrInvalidTransition, matchID, state)
	}
	if draw && m.Kind.IsBracket() {
		entry.mu.Unlock()
		return models.Match{}, fmt.Errorf("%w: elimination match %s cannot be drawn", ErrInvalidResult, matchID)
	}
	if !draw && (winnerID == "" || !m.Involves(winnerID)) {
		entry.mu.Unlock()
		return models.Match{}, fmt.Errorf("%w: %q in match %s", ErrInvalidResult, winnerID, matchID)
	}

	prev := *m
	now := l.clock.Now()
	m.State = models.MatchCompleted
	m.CompletedAt = &now
	if draw {
		m.Result = models.ResultDraw
		m.WinnerID = ""
	} else {
		m.Result = models.ResultDecisive
		m.WinnerID = winnerID
	}
	m.Version++
	if err := l.persistLocked(ctx, entry, prev); err != nil {
		entry.mu.Unlock()
		return models.Match{}, err
	}
	done := *m
	entry.mu.Unlock()

	log.Printf("[MATCH] %s completed: result=%s winner=%s", done.ID, done.Result, done.WinnerID)
	l.finish(done, models.EventMatchCompleted)
	return done, nil
}

// Cancel moves a non-terminal match to cancelled.
func (l *Lifecycle) Cancel(ctx context.Context, matchID, reason string) (models.Match, error) {
	entry, err := l.entry(matchID)
	if err != nil {
		return models.Match{}, err
	}
	m, ok := l.cancelEntry(ctx, entry)
	if !ok {
		return m, fmt.Errorf("%w: %s is already %s", ErrInvalidTransition, matchID, m.State)
	}
	log.Printf("[MATCH] %s cancelled: %s", matchID, reason)
	l.emitBoth(models.EventMatchCancelled, m, map[string]interface{}{"reason": reason})
	return m, nil
}

// CancelTournament cancels every open match of the tournament. No terminal
// callbacks fire; the caller already owns the tournament.
func (l *Lifecycle) CancelTournament(ctx context.Context, tournamentID, reason string) []models.Match {
	var cancelled []models.Match
	for _, entry := range l.tournamentEntries(tournamentID) {
		if m, ok := l.cancelEntry(ctx, entry); ok {
			cancelled = append(cancelled, m)
			l.emitBoth(models.EventMatchCancelled, m, map[string]interface{}{"reason": reason})
		}
	}
	if len(cancelled) > 0 {
		log.Printf("[MATCH] Cancelled %d open matches of tournament %s", len(cancelled), tournamentID)
	}
	return cancelled
}

func (l *Lifecycle) cancelEntry(ctx context.Context, entry *matchEntry) (models.Match, bool) {
	entry.mu.Lock()
	defer entry.mu.Unlock()
	m := &entry.match
	if m.IsTerminal() {
		return *m, false
	}
	prev := *m
	now := l.clock.Now()
	m.State = models.MatchCancelled
	m.CompletedAt = &now
	m.Version++
	if err := l.persistLocked(ctx, entry, prev); err != nil {
		return *m, false
	}
	l.release(*m)
	return *m, true
}

// OverrideRequest is an administrative correction of a match outcome.
type OverrideRequest struct {
	MatchID       string `json:"matchId"`
	Actor         string `json:"actor"`
	Reason        string `json:"reason"`
	WinnerID      string `json:"winnerId,omitempty"`
	Draw          bool   `json:"draw,omitempty"`
	DoubleForfeit bool   `json:"doubleForfeit,omitempty"`
}

// Override rewrites a match outcome, terminal or not, and writes an audit
// record. It does not fire the terminal callback; the caller re-derives
// standings itself.
func (l *Lifecycle) Override(ctx context.Context, req OverrideRequest) (models.Match, *models.OverrideRecord, error) {
	entry, err := l.entry(req.MatchID)
	if err != nil {
		return models.Match{}, nil, err
	}

	entry.mu.Lock()
	m := &entry.match
	if m.State == models.MatchCancelled {
		entry.mu.Unlock()
		return models.Match{}, nil, fmt.Errorf("%w: %s is cancelled", ErrInvalidTransition, m.ID)
	}
	if m.IsBye() {
		entry.mu.Unlock()
		return models.Match{}, nil, fmt.Errorf("%w: %s is a bye", ErrInvalidTransition, m.ID)
	}
	switch {
	case req.DoubleForfeit:
	case req.Draw:
		if m.Kind.IsBracket() {
			entry.mu.Unlock()
			return models.Match{}, nil, fmt.Errorf("%w: elimination match %s cannot be drawn", ErrInvalidResult, m.ID)
		}
	case !m.Involves(req.WinnerID):
		entry.mu.Unlock()
		return models.Match{}, nil, fmt.Errorf("%w: %q in match %s", ErrInvalidResult, req.WinnerID, m.ID)
	}

	prev := *m
	now := l.clock.Now()
	rec := &models.OverrideRecord{
		ID:            uuid.New().String(),
		TournamentID:  m.TournamentID,
		MatchID:       m.ID,
		Actor:         req.Actor,
		Reason:        req.Reason,
		PreviousState: m.State,
		PreviousWin:   m.WinnerID,
		CreatedAt:     now,
	}
	switch {
	case req.DoubleForfeit:
		m.State, m.Result, m.WinnerID = models.MatchDoubleForfeited, models.ResultDoubleForfeit, ""
	case req.Draw:
		m.State, m.Result, m.WinnerID = models.MatchCompleted, models.ResultDraw, ""
	default:
		m.State, m.Result, m.WinnerID = models.MatchCompleted, models.ResultDecisive, req.WinnerID
	}
	if m.CompletedAt == nil {
		m.CompletedAt = &now
	}
	m.Overridden = true
	m.Version++
	rec.NewState, rec.NewWinner, rec.NewResult = m.State, m.WinnerID, m.Result

	if err := l.persistLocked(ctx, entry, prev); err != nil {
		entry.mu.Unlock()
		return models.Match{}, nil, err
	}
	if err := l.repo.SaveOverride(ctx, rec); err != nil {
		log.Printf("[MATCH] ERROR: Failed to persist override %s: %v", rec.ID, err)
	}
	l.release(*m)
	done := *m
	entry.mu.Unlock()

	log.WithFields(log.Fields{
		"tournament": done.TournamentID,
		"match":      done.ID,
		"actor":      req.Actor,
		"from":       rec.PreviousState,
		"to":         rec.NewState,
		"winner":     rec.NewWinner,
	}).Warn("[OVERRIDE] Match outcome corrected")
	l.emitBoth(models.EventMatchCompleted, done, map[string]interface{}{"overridden": true, "reason": req.Reason})
	return done, rec, nil
}

// Get returns a copy of the match, or ErrMatchNotFound.
func (l *Lifecycle) Get(matchID string) (models.Match, error) {
	entry, err := l.entry(matchID)
	if err != nil {
		return models.Match{}, err
	}
	return entry.snapshot(), nil
}

// List returns the tournament's matches ordered by round and slot.
func (l *Lifecycle) List(tournamentID string) []models.Match {
	entries := l.tournamentEntries(tournamentID)
	out := make([]models.Match, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.snapshot())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Round != out[j].Round {
			return out[i].Round < out[j].Round
		}
		if out[i].Slot != out[j].Slot {
			return out[i].Slot < out[j].Slot
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ActiveMatch returns the participant's open match, if any.
func (l *Lifecycle) ActiveMatch(participantID string) (models.Match, bool) {
	l.mu.RLock()
	entry := l.matches[l.active[participantID]]
	l.mu.RUnlock()
	if entry == nil {
		return models.Match{}, false
	}
	m := entry.snapshot()
	return m, !m.IsTerminal()
}

// Restore loads a persisted match after a restart without re-running any
// transition or notification.
func (l *Lifecycle) Restore(m models.Match, reminderLead time.Duration) error {
	entry := &matchEntry{match: m, reminderLead: reminderLead}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.matches[m.ID]; exists {
		return fmt.Errorf("%w: %s", ErrMatchExists, m.ID)
	}
	if !m.IsTerminal() && !m.IsBye() {
		l.active[m.PlayerA] = m.ID
		l.active[m.PlayerB] = m.ID
	}
	l.insertLocked(entry)
	return nil
}

// Forget drops a closed tournament's matches from memory.
func (l *Lifecycle) Forget(tournamentID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, entry := range l.byTournament[tournamentID] {
		delete(l.matches, id)
		for _, p := range []string{entry.match.PlayerA, entry.match.PlayerB} {
			if l.active[p] == id {
				delete(l.active, p)
			}
		}
	}
	delete(l.byTournament, tournamentID)
}

func (l *Lifecycle) insertLocked(entry *matchEntry) {
	m := entry.match
	l.matches[m.ID] = entry
	if l.byTournament[m.TournamentID] == nil {
		l.byTournament[m.TournamentID] = make(map[string]*matchEntry)
	}
	l.byTournament[m.TournamentID][m.ID] = entry
}

func (l *Lifecycle) entry(matchID string) (*matchEntry, error) {
	l.mu.RLock()
	entry, ok := l.matches[matchID]
	l.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMatchNotFound, matchID)
	}
	return entry, nil
}

func (l *Lifecycle) tournamentEntries(tournamentID string) []*matchEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*matchEntry, 0, len(l.byTournament[tournamentID]))
	for _, e := range l.byTournament[tournamentID] {
		out = append(out, e)
	}
	return out
}

func (l *Lifecycle) allEntries() []*matchEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*matchEntry, 0, len(l.matches))
	for _, e := range l.matches {
		out = append(out, e)
	}
	return out
}

func (e *matchEntry) snapshot() models.Match {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.match
}

// persistLocked saves the entry's match. When another writer has already
// moved the stored match on, the transition is rolled back to prev and
// reported as ErrDuplicateTransition. Other storage failures are logged and
// the in-memory transition stands. Caller holds entry.mu.
func (l *Lifecycle) persistLocked(ctx context.Context, entry *matchEntry, prev models.Match) error {
	err := l.repo.SaveMatch(ctx, &entry.match)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrVersionConflict) {
		attempted := entry.match
		entry.match = prev
		log.WithFields(log.Fields{
			"tournament": attempted.TournamentID,
			"match":      attempted.ID,
			"version":    attempted.Version,
			"state":      attempted.State,
		}).Warn("[MATCH] Discarding transition, stored match has moved on")
		return fmt.Errorf("%w: %s at version %d", ErrDuplicateTransition, attempted.ID, attempted.Version)
	}
	log.Printf("[MATCH] ERROR: Failed to persist match %s: %v", entry.match.ID, err)
	return nil
}

// activateLocked moves the match to room_active. Caller holds entry.mu.
func (l *Lifecycle) activateLocked(entry *matchEntry, now time.Time) {
	entry.match.State = models.MatchRoomActive
	entry.match.RoomRequestedAt = &now
}

// release clears the participants' open-match index. Caller holds the
// match's mutex, which always precedes l.mu.
func (l *Lifecycle) release(m models.Match) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, p := range []string{m.PlayerA, m.PlayerB} {
		if p != "" && l.active[p] == m.ID {
			delete(l.active, p)
		}
	}
}

func (l *Lifecycle) requestRoom(ctx context.Context, m models.Match) {
	req := models.RoomRequest{MatchID: m.ID, TournamentID: m.TournamentID, PlayerA: m.PlayerA, PlayerB: m.PlayerB}
	if err := l.rooms.RequestRoom(ctx, req); err != nil {
		log.Printf("[MATCH] WARNING: request_room for %s failed: %v", m.ID, err)
		return
	}
	log.Printf("[MATCH] Requested room for %s (%s vs %s)", m.ID, m.PlayerA, m.PlayerB)
	l.emitBoth(models.EventRoomRequested, m, nil)
}

func (l *Lifecycle) isOnline(ctx context.Context, participantID string) bool {
	if l.presence == nil || participantID == "" {
		return false
	}
	return l.presence.IsOnline(ctx, participantID)
}

// finish releases the participants, notifies them and fires the terminal
// callback. Caller must not hold the match mutex.
func (l *Lifecycle) finish(m models.Match, kind models.EventKind) {
	l.release(m)
	l.emitBoth(kind, m, map[string]interface{}{"result": m.Result, "winnerId": m.WinnerID})
	if l.onMatchTerminal != nil {
		l.onMatchTerminal(m)
	}
}

func (l *Lifecycle) stale(m models.Match, event string) error {
	log.WithFields(log.Fields{
		"tournament": m.TournamentID,
		"match":      m.ID,
		"state":      m.State,
		"event":      event,
	}).Warn("[MATCH] Ignoring event for terminal match")
	return fmt.Errorf("%w: %s on %s (%s)", ErrStaleEvent, event, m.ID, m.State)
}

func (l *Lifecycle) emit(kind models.EventKind, m models.Match, participantID string, data interface{}) {
	l.notifier.Notify(models.Event{
		Kind:          kind,
		TournamentID:  m.TournamentID,
		ParticipantID: participantID,
		MatchID:       m.ID,
		Data:          data,
		At:            l.clock.Now(),
	})
}

func (l *Lifecycle) emitBoth(kind models.EventKind, m models.Match, data interface{}) {
	l.emit(kind, m, m.PlayerA, data)
	if !m.IsBye() {
		l.emit(kind, m, m.PlayerB, data)
	}
}
