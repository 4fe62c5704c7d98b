package engine

import (
	"context"
	"time"

	"championship-engine/models"

	log "github.com/sirupsen/logrus"
)

// ExpiryDecision is the terminal outcome of a match whose window has closed.
type ExpiryDecision struct {
	State    models.MatchState
	Result   models.ResultKind
	WinnerID string
}

// DecideExpiry is a pure function of the match and now. A single participant
// seen before the deadline wins by forfeit. Nobody seen, or both seen without
// a reported result, is a double forfeit.
func DecideExpiry(m models.Match, now time.Time) (ExpiryDecision, bool) {
	if m.IsTerminal() || now.Before(m.Deadline) {
		return ExpiryDecision{}, false
	}
	if m.State != models.MatchRoomActive {
		switch {
		case m.SeenA && !m.SeenB:
			return ExpiryDecision{State: models.MatchForfeited, Result: models.ResultForfeit, WinnerID: m.PlayerA}, true
		case m.SeenB && !m.SeenA:
			return ExpiryDecision{State: models.MatchForfeited, Result: models.ResultForfeit, WinnerID: m.PlayerB}, true
		}
	}
	return ExpiryDecision{State: models.MatchDoubleForfeited, Result: models.ResultDoubleForfeit}, true
}

// ReminderDue reports whether the deadline warning should go out now.
func ReminderDue(m models.Match, lead time.Duration, now time.Time) bool {
	if lead <= 0 || m.ReminderSent || m.IsTerminal() {
		return false
	}
	return !now.Before(m.Deadline.Add(-lead)) && now.Before(m.Deadline)
}

// SweepReport counts what one deadline sweep did.
type SweepReport struct {
	Reminded    int `json:"reminded"`
	Expired     int `json:"expired"`
	RoomRetries int `json:"roomRetries"`
	LostRaces   int `json:"lostRaces"`
}

// Sweep expires every match whose deadline has passed and sends due
// reminders. Each match is locked only for its own decision.
func (l *Lifecycle) Sweep(ctx context.Context, now time.Time) SweepReport {
	return l.sweepEntries(ctx, now, l.allEntries())
}

// SweepTournament is Sweep limited to one tournament.
func (l *Lifecycle) SweepTournament(ctx context.Context, tournamentID string, now time.Time) SweepReport {
	return l.sweepEntries(ctx, now, l.tournamentEntries(tournamentID))
}

// OpenTournaments lists tournaments that still have non-terminal matches.
func (l *Lifecycle) OpenTournaments() []string {
	l.mu.RLock()
	seen := make(map[string]bool)
	for _, matchID := range l.active {
		if e := l.matches[matchID]; e != nil {
			seen[e.match.TournamentID] = true
		}
	}
	l.mu.RUnlock()

	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	return out
}

func (l *Lifecycle) sweepEntries(ctx context.Context, now time.Time, entries []*matchEntry) SweepReport {
	var report SweepReport
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		snapshot := entry.snapshot()
		if snapshot.IsTerminal() {
			continue
		}

		if decision, ok := DecideExpiry(snapshot, now); ok {
			done, committed := l.expire(ctx, entry, snapshot.Version, decision)
			if !committed {
				report.LostRaces++
				log.Printf("[SWEEP] Expiry of %s lost to a concurrent transition", snapshot.ID)
				continue
			}
			report.Expired++
			kind := models.EventMatchForfeited
			log.WithFields(log.Fields{
				"tournament": done.TournamentID,
				"match":      done.ID,
				"state":      done.State,
				"winner":     done.WinnerID,
			}).Info("[SWEEP] Match window expired")
			l.finish(done, kind)
			continue
		}

		if ReminderDue(snapshot, entry.reminderLead, now) && l.markReminded(ctx, entry, snapshot.Version) {
			report.Reminded++
			l.emitBoth(models.EventDeadlineApproaching, snapshot, map[string]interface{}{"deadline": snapshot.Deadline})
		}

		if l.roomRetryDue(snapshot, now) && l.markRoomRequested(ctx, entry, snapshot.Version, now) {
			report.RoomRetries++
			l.requestRoom(ctx, snapshot)
		}
	}
	if report.Expired > 0 || report.Reminded > 0 || report.RoomRetries > 0 {
		log.Printf("[SWEEP] expired=%d reminded=%d room_retries=%d lost_races=%d",
			report.Expired, report.Reminded, report.RoomRetries, report.LostRaces)
	}
	return report
}

// expire commits the decision only if the match is still at the version the
// sweep read. The forfeit is timestamped at the deadline, not at sweep time.
func (l *Lifecycle) expire(ctx context.Context, entry *matchEntry, version int64, d ExpiryDecision) (models.Match, bool) {
	entry.mu.Lock()
	defer entry.mu.Unlock()
	m := &entry.match
	if m.Version != version || m.IsTerminal() {
		return *m, false
	}
	prev := *m
	at := m.Deadline
	m.State = d.State
	m.Result = d.Result
	m.WinnerID = d.WinnerID
	m.CompletedAt = &at
	m.Version++
	if err := l.persistLocked(ctx, entry, prev); err != nil {
		return *m, false
	}
	return *m, true
}

func (l *Lifecycle) markReminded(ctx context.Context, entry *matchEntry, version int64) bool {
	entry.mu.Lock()
	defer entry.mu.Unlock()
	m := &entry.match
	if m.Version != version || m.ReminderSent {
		return false
	}
	prev := *m
	m.ReminderSent = true
	m.Version++
	return l.persistLocked(ctx, entry, prev) == nil
}

func (l *Lifecycle) roomRetryDue(m models.Match, now time.Time) bool {
	if l.roomRetryAfter <= 0 || m.State != models.MatchRoomActive || m.RoomConfirmedAt != nil {
		return false
	}
	return m.RoomRequestedAt == nil || now.Sub(*m.RoomRequestedAt) >= l.roomRetryAfter
}

func (l *Lifecycle) markRoomRequested(ctx context.Context, entry *matchEntry, version int64, now time.Time) bool {
	entry.mu.Lock()
	defer entry.mu.Unlock()
	m := &entry.match
	if m.Version != version || m.State != models.MatchRoomActive {
		return false
	}
	prev := *m
	m.RoomRequestedAt = &now
	m.Version++
	return l.persistLocked(ctx, entry, prev) == nil
}
