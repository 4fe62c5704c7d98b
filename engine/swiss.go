package engine

import (
	"fmt"
	"sort"

	"championship-engine/models"

	log "github.com/sirupsen/logrus"
)

// Pairing is one board of a round. B is empty for a bye.
type Pairing struct {
	A string `json:"a"`
	B string `json:"b,omitempty"`
}

func (p Pairing) IsBye() bool { return p.B == "" }

type pairKey struct{ lo, hi string }

func newPairKey(a, b string) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{lo: a, hi: b}
}

// PairingHistory is the set of unordered pairs already played in the Swiss
// phase plus the number of byes each participant has received.
type PairingHistory struct {
	played map[pairKey]struct{}
	byes   map[string]int
}

// NewPairingHistory creates an empty history of who played whom.
func NewPairingHistory() *PairingHistory {
	return &PairingHistory{
		played: make(map[pairKey]struct{}),
		byes:   make(map[string]int),
	}
}

// HistoryFromMatches builds the history from Swiss matches. Cancelled matches
// were never played and are skipped.
func HistoryFromMatches(matches []models.Match) *PairingHistory {
	h := NewPairingHistory()
	for _, m := range matches {
		if m.Kind != models.RoundSwiss || m.State == models.MatchCancelled {
			continue
		}
		h.Record(Pairing{A: m.PlayerA, B: m.PlayerB})
	}
	return h
}

// Record notes a pairing, or a bye when p has no opponent.
func (h *PairingHistory) Record(p Pairing) {
	if p.IsBye() {
		h.byes[p.A]++
		return
	}
	h.played[newPairKey(p.A, p.B)] = struct{}{}
}

// Played reports whether a and b have met.
func (h *PairingHistory) Played(a, b string) bool {
	_, ok := h.played[newPairKey(a, b)]
	return ok
}

// Byes returns how many byes id has received.
func (h *PairingHistory) Byes(id string) int {
	return h.byes[id]
}

// SwissRequest is the input of one Swiss pairing.
type SwissRequest struct {
	TournamentID string
	Round        int
	Ranking      []models.StandingEntry // rank order
	History      *PairingHistory
}

// PairSwissRound produces the pairings for the requested round or a
// *PairingInfeasibleError when no assignment avoids every rematch.
func PairSwissRound(req SwissRequest) ([]Pairing, error) {
	if req.History == nil {
		req.History = NewPairingHistory()
	}
	ranked := make([]models.StandingEntry, len(req.Ranking))
	copy(ranked, req.Ranking)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Rank < ranked[j].Rank })

	ids := RankedIDs(ranked)
	if len(ids) < 2 {
		return nil, &PairingInfeasibleError{TournamentID: req.TournamentID, Round: req.Round, Unpaired: ids}
	}

	if req.Round <= 1 {
		return seededFirstRound(ids), nil
	}

	points := make(map[string]float64, len(ranked))
	for _, e := range ranked {
		points[e.ParticipantID] = e.Points
	}

	if len(ids)%2 == 0 {
		pairs, ok := newSwissSolver(ids, req.History).solve()
		if !ok {
			return nil, &PairingInfeasibleError{TournamentID: req.TournamentID, Round: req.Round, Unpaired: ids}
		}
		logPairing(req, pairs, points)
		return pairs, nil
	}

	for _, byeID := range byeCandidates(ids, req.History) {
		rest := make([]string, 0, len(ids)-1)
		for _, id := range ids {
			if id != byeID {
				rest = append(rest, id)
			}
		}
		pairs, ok := newSwissSolver(rest, req.History).solve()
		if !ok {
			continue
		}
		pairs = append(pairs, Pairing{A: byeID})
		logPairing(req, pairs, points)
		return pairs, nil
	}
	return nil, &PairingInfeasibleError{TournamentID: req.TournamentID, Round: req.Round, Unpaired: ids}
}

// seededFirstRound pairs 1 v n/2+1, 2 v n/2+2, ... The weakest entrant gets
// the bye when the field is odd.
func seededFirstRound(ids []string) []Pairing {
	field := ids
	var bye string
	if len(field)%2 == 1 {
		bye = field[len(field)-1]
		field = field[:len(field)-1]
	}
	half := len(field) / 2
	pairs := make([]Pairing, 0, half+1)
	for i := 0; i < half; i++ {
		pairs = append(pairs, Pairing{A: field[i], B: field[i+half]})
	}
	if bye != "" {
		pairs = append(pairs, Pairing{A: bye})
	}
	return pairs
}

// byeCandidates orders bye eligibility: fewest byes received first, then
// lowest current rank first.
func byeCandidates(ids []string, h *PairingHistory) []string {
	out := make([]string, len(ids))
	for i := range ids {
		out[i] = ids[len(ids)-1-i]
	}
	sort.SliceStable(out, func(i, j int) bool {
		return h.Byes(out[i]) < h.Byes(out[j])
	})
	return out
}

// swissSolver walks the field in rank order. The highest unpaired participant
// takes the nearest unpaired rank that it has not met: its own score group
// first, then the top of the next group down (a float). Failed sub-states are
// memoised so the search is exhaustive without revisiting them.
type swissSolver struct {
	ids     []string
	history *PairingHistory
	used    []bool
	failed  map[string]struct{}
}

func newSwissSolver(ids []string, h *PairingHistory) *swissSolver {
	return &swissSolver{
		ids:     ids,
		history: h,
		used:    make([]bool, len(ids)),
		failed:  make(map[string]struct{}),
	}
}

func (s *swissSolver) solve() ([]Pairing, bool) {
	if len(s.ids)%2 == 1 {
		return nil, false
	}
	return s.search(len(s.ids))
}

func (s *swissSolver) search(remaining int) ([]Pairing, bool) {
	if remaining == 0 {
		return nil, true
	}
	key := s.stateKey()
	if _, seen := s.failed[key]; seen {
		return nil, false
	}

	top := -1
	for i, u := range s.used {
		if !u {
			top = i
			break
		}
	}
	s.used[top] = true
	for j := top + 1; j < len(s.ids); j++ {
		if s.used[j] || s.history.Played(s.ids[top], s.ids[j]) {
			continue
		}
		s.used[j] = true
		rest, ok := s.search(remaining - 2)
		if ok {
			return append([]Pairing{{A: s.ids[top], B: s.ids[j]}}, rest...), true
		}
		s.used[j] = false
	}
	s.used[top] = false
	s.failed[key] = struct{}{}
	return nil, false
}

func (s *swissSolver) stateKey() string {
	buf := make([]byte, (len(s.used)+7)/8)
	for i, u := range s.used {
		if u {
			buf[i/8] |= 1 << (uint(i) % 8)
		}
	}
	return string(buf)
}

func logPairing(req SwissRequest, pairs []Pairing, points map[string]float64) {
	floats := 0
	for _, p := range pairs {
		if !p.IsBye() && points[p.A] != points[p.B] {
			floats++
		}
	}
	log.WithFields(log.Fields{
		"tournament": req.TournamentID,
		"round":      req.Round,
		"boards":     len(pairs),
		"floats":     floats,
	}).Info("[PAIRING] Swiss round paired")
}

// ValidateManualPairing checks an operator-supplied round: every active
// participant appears exactly once and a bye is used only for an odd field.
// Rematches are allowed; the operator owns that decision.
func ValidateManualPairing(active []string, pairs []Pairing) error {
	want := make(map[string]bool, len(active))
	for _, id := range active {
		want[id] = true
	}
	seen := make(map[string]bool, len(active))
	byes := 0
	mark := func(id string) error {
		if !want[id] {
			return fmt.Errorf("%w: %q is not an active participant", ErrInvalidManualPairing, id)
		}
		if seen[id] {
			return fmt.Errorf("%w: %q appears twice", ErrInvalidManualPairing, id)
		}
		seen[id] = true
		return nil
	}
	for _, p := range pairs {
		if err := mark(p.A); err != nil {
			return err
		}
		if p.IsBye() {
			byes++
			continue
		}
		if p.A == p.B {
			return fmt.Errorf("%w: %q paired with itself", ErrInvalidManualPairing, p.A)
		}
		if err := mark(p.B); err != nil {
			return err
		}
	}
	if len(seen) != len(want) {
		return fmt.Errorf("%w: %d of %d participants paired", ErrInvalidManualPairing, len(seen), len(want))
	}
	if byes != len(active)%2 {
		return fmt.Errorf("%w: %d byes for a field of %d", ErrInvalidManualPairing, byes, len(active))
	}
	return nil
}
