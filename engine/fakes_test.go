package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"championship-engine/models"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fakePresence struct {
	mu     sync.Mutex
	online map[string]bool
}

func newFakePresence(ids ...string) *fakePresence {
	p := &fakePresence{online: make(map[string]bool)}
	for _, id := range ids {
		p.online[id] = true
	}
	return p
}

func (p *fakePresence) IsOnline(_ context.Context, id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online[id]
}

func (p *fakePresence) Set(id string, online bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online[id] = online
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []models.Event
}

func (n *recordingNotifier) Notify(e models.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
}

func (n *recordingNotifier) Count(kind models.EventKind) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, e := range n.events {
		if e.Kind == kind {
			c++
		}
	}
	return c
}

type recordingRooms struct {
	mu       sync.Mutex
	requests []models.RoomRequest
	err      error
}

func (r *recordingRooms) RequestRoom(_ context.Context, req models.RoomRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.requests = append(r.requests, req)
	return nil
}

func (r *recordingRooms) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

// memoryRepository keeps the latest copy of every persisted entity.
type memoryRepository struct {
	mu           sync.Mutex
	tournaments  map[string]models.Tournament
	participants map[string]models.Participant
	rounds       map[string]models.Round
	matches      map[string]models.Match
	standings    map[string][]models.StandingEntry
	overrides    []models.OverrideRecord
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		tournaments:  make(map[string]models.Tournament),
		participants: make(map[string]models.Participant),
		rounds:       make(map[string]models.Round),
		matches:      make(map[string]models.Match),
		standings:    make(map[string][]models.StandingEntry),
	}
}

func (r *memoryRepository) SaveTournament(_ context.Context, t *models.Tournament) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tournaments[t.ID] = *t
	return nil
}

func (r *memoryRepository) SaveParticipant(_ context.Context, p *models.Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.participants[p.TournamentID+"/"+p.ID] = *p
	return nil
}

func (r *memoryRepository) SaveRound(_ context.Context, rd *models.Round) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rounds[fmt.Sprintf("%s/%d", rd.TournamentID, rd.Number)] = *rd
	return nil
}

func (r *memoryRepository) SaveMatch(_ context.Context, m *models.Match) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.matches[m.ID] = *m
	return nil
}

func (r *memoryRepository) SaveStandings(_ context.Context, tournamentID string, entries []models.StandingEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.standings[tournamentID] = append([]models.StandingEntry(nil), entries...)
	return nil
}

func (r *memoryRepository) SaveOverride(_ context.Context, rec *models.OverrideRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.overrides = append(r.overrides, *rec)
	return nil
}

func (r *memoryRepository) Match(id string) models.Match {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.matches[id]
}

// restored reads back everything persisted for one tournament.
func (r *memoryRepository) restored(tournamentID string) RestoredTournament {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := RestoredTournament{Tournament: r.tournaments[tournamentID]}
	for _, p := range r.participants {
		if p.TournamentID == tournamentID {
			st.Participants = append(st.Participants, p)
		}
	}
	for _, rd := range r.rounds {
		if rd.TournamentID == tournamentID {
			st.Rounds = append(st.Rounds, rd)
		}
	}
	for _, m := range r.matches {
		if m.TournamentID == tournamentID {
			st.Matches = append(st.Matches, m)
		}
	}
	st.Standings = append(st.Standings, r.standings[tournamentID]...)
	return st
}

func (r *memoryRepository) LoadUnsettled(_ context.Context) ([]RestoredTournament, error) {
	r.mu.Lock()
	var ids []string
	for id, t := range r.tournaments {
		if t.Status == models.StatusCompleted && !t.Settled {
			ids = append(ids, id)
		}
	}
	r.mu.Unlock()

	out := make([]RestoredTournament, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.restored(id))
	}
	return out, nil
}

func (r *memoryRepository) Tournament(id string) models.Tournament {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tournaments[id]
}

func (r *memoryRepository) Overrides() []models.OverrideRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.OverrideRecord(nil), r.overrides...)
}

type recordingHook struct {
	mu    sync.Mutex
	snaps []Snapshot
	err   error
	// failures makes the next n calls fail.
	failures int
}

func (h *recordingHook) OnTournamentComplete(_ context.Context, snap Snapshot) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.snaps = append(h.snaps, snap)
	if h.failures > 0 {
		h.failures--
		return errors.New("ledger unavailable")
	}
	return h.err
}

func (h *recordingHook) Calls() []Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Snapshot(nil), h.snaps...)
}
