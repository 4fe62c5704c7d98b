package engine

import (
	"sort"

	"championship-engine/models"

	log "github.com/sirupsen/logrus"
)

// BracketPairing is one slot of an elimination round. A is empty when neither
// feeder produced a winner; B is empty for a bye.
type BracketPairing struct {
	Slot int    `json:"slot"`
	A    string `json:"a,omitempty"`
	B    string `json:"b,omitempty"`
}

func (p BracketPairing) IsEmpty() bool { return p.A == "" }
func (p BracketPairing) IsBye() bool   { return p.A != "" && p.B == "" }

// BracketPlan is the first elimination round and the seeding behind it.
type BracketPlan struct {
	Size     int              `json:"size"`
	Seeds    map[string]int   `json:"seeds"`
	Pairings []BracketPairing `json:"pairings"`
}

// BuildBracket seeds the top qualifiers of the ranking into a bracket sized to
// the next power of two. qualifiers <= 0 takes the whole field.
func BuildBracket(tournamentID string, ranking []models.StandingEntry, qualifiers int) (*BracketPlan, error) {
	ranked := make([]models.StandingEntry, len(ranking))
	copy(ranked, ranking)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Rank < ranked[j].Rank })

	q := qualifiers
	if q <= 0 || q > len(ranked) {
		if q > len(ranked) {
			log.WithFields(log.Fields{
				"tournament": tournamentID,
				"requested":  qualifiers,
				"available":  len(ranked),
			}).Warn("[BRACKET] Fewer participants than qualifier slots, seeding the whole field")
		}
		q = len(ranked)
	}
	if q < 2 {
		return nil, &BracketError{TournamentID: tournamentID, Requested: qualifiers, Available: len(ranked)}
	}

	size := nextPowerOfTwo(q)
	seeds := make(map[string]int, q)
	bySeed := make([]string, size+1)
	for i := 0; i < q; i++ {
		seeds[ranked[i].ParticipantID] = i + 1
		bySeed[i+1] = ranked[i].ParticipantID
	}

	order := SeedOrder(size)
	pairings := make([]BracketPairing, 0, size/2)
	for slot := 0; slot < size/2; slot++ {
		hi, lo := order[2*slot], order[2*slot+1]
		pairings = append(pairings, BracketPairing{Slot: slot, A: bySeed[hi], B: bySeed[lo]})
	}

	log.WithFields(log.Fields{
		"tournament": tournamentID,
		"qualifiers": q,
		"size":       size,
		"byes":       size - q,
	}).Info("[BRACKET] Elimination bracket seeded")
	return &BracketPlan{Size: size, Seeds: seeds, Pairings: pairings}, nil
}

// SeedOrder lists seeds in slot order for a bracket of the given power of two
// size: 8 gives 1,8,4,5,2,7,3,6. Adjacent entries meet in round one and seeds
// 1 and 2 sit in opposite halves.
func SeedOrder(size int) []int {
	order := []int{1}
	for n := 2; n <= size; n *= 2 {
		next := make([]int, 0, n)
		for _, s := range order {
			next = append(next, s, n+1-s)
		}
		order = next
	}
	return order
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p *= 2
	}
	return p
}

// AdvanceBracket pairs the winners of adjacent slots, preserving position.
// winners is indexed by the previous round's slot; an empty entry means that
// slot produced nobody and its neighbour advances on a bye.
func AdvanceBracket(winners []string) []BracketPairing {
	out := make([]BracketPairing, 0, len(winners)/2)
	for slot := 0; slot*2+1 < len(winners); slot++ {
		a, b := winners[slot*2], winners[slot*2+1]
		if a == "" {
			a, b = b, ""
		}
		out = append(out, BracketPairing{Slot: slot, A: a, B: b})
	}
	return out
}

// SlotWinners reads the winner of every slot of a bracket round. slots is the
// number of slots the round was built with; slots without a match or without
// a winner stay empty.
func SlotWinners(round []models.Match, slots int) []string {
	winners := make([]string, slots)
	for _, m := range round {
		if m.Kind == models.RoundThirdPlace || m.Slot < 0 || m.Slot >= slots {
			continue
		}
		winners[m.Slot] = m.WinnerID
	}
	return winners
}

// ThirdPlacePairing pairs the semifinal losers. A single loser gets a bye;
// no losers means no third-place match.
func ThirdPlacePairing(semis []models.Match) (BracketPairing, bool) {
	sorted := make([]models.Match, len(semis))
	copy(sorted, semis)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Slot < sorted[j].Slot })

	var losers []string
	for _, m := range sorted {
		if m.IsBye() || m.WinnerID == "" {
			continue
		}
		if l := m.Loser(); l != "" {
			losers = append(losers, l)
		}
	}
	switch len(losers) {
	case 0:
		return BracketPairing{}, false
	case 1:
		return BracketPairing{Slot: 1, A: losers[0]}, true
	}
	return BracketPairing{Slot: 1, A: losers[0], B: losers[1]}, true
}

// KindForSlots names a bracket round by how many matches it holds.
func KindForSlots(slots int) models.RoundKind {
	switch slots {
	case 1:
		return models.RoundFinal
	case 2:
		return models.RoundSemi
	case 4:
		return models.RoundQuarter
	}
	return models.RoundElimination
}

const (
	tierChampion = iota
	tierRunnerUp
	tierThird
	tierFourth
	tierEliminated
)

// FinalPositions orders every participant from 1st to Nth. Bracket
// participants are ordered by how far they went, with seed breaking ties
// inside a round; everyone else follows in ranking order.
func FinalPositions(ranking []models.StandingEntry, bracket []models.Match, seeds map[string]int) []string {
	ranked := make([]models.StandingEntry, len(ranking))
	copy(ranked, ranking)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Rank < ranked[j].Rank })

	if len(bracket) == 0 || len(seeds) == 0 {
		return RankedIDs(ranked)
	}

	lastRound := 0
	for _, m := range bracket {
		if m.Round > lastRound {
			lastRound = m.Round
		}
	}

	tier := make(map[string]int, len(seeds))
	for id := range seeds {
		tier[id] = tierEliminated + lastRound
	}
	eliminate := func(id string, round int) {
		if _, ok := seeds[id]; ok && id != "" {
			tier[id] = tierEliminated + lastRound - round
		}
	}

	for _, m := range bracket {
		if !m.IsTerminal() || m.State == models.MatchCancelled {
			continue
		}
		switch m.Kind {
		case models.RoundFinal:
			if m.WinnerID != "" {
				tier[m.WinnerID] = tierChampion
				if l := m.Loser(); l != "" {
					tier[l] = tierRunnerUp
				}
			} else {
				tier[m.PlayerA] = tierRunnerUp
				if !m.IsBye() {
					tier[m.PlayerB] = tierRunnerUp
				}
			}
		case models.RoundThirdPlace:
			if m.WinnerID != "" {
				tier[m.WinnerID] = tierThird
				if l := m.Loser(); l != "" {
					tier[l] = tierFourth
				}
			} else {
				tier[m.PlayerA] = tierFourth
				if !m.IsBye() {
					tier[m.PlayerB] = tierFourth
				}
			}
		default:
			if m.IsBye() {
				continue
			}
			if m.WinnerID == "" {
				eliminate(m.PlayerA, m.Round)
				eliminate(m.PlayerB, m.Round)
				continue
			}
			eliminate(m.Loser(), m.Round)
		}
	}

	qualified := make([]string, 0, len(seeds))
	for id := range seeds {
		qualified = append(qualified, id)
	}
	sort.Slice(qualified, func(i, j int) bool {
		a, b := qualified[i], qualified[j]
		if tier[a] != tier[b] {
			return tier[a] < tier[b]
		}
		return seeds[a] < seeds[b]
	})

	out := qualified
	for _, e := range ranked {
		if _, ok := seeds[e.ParticipantID]; !ok {
			out = append(out, e.ParticipantID)
		}
	}
	return out
}

// BracketRoundView is one round of a BracketView.
type BracketRoundView struct {
	Number  int              `json:"number"`
	Kind    models.RoundKind `json:"kind"`
	Matches []models.Match   `json:"matches"`
}

// BracketView is the read model of the elimination phase composed from
// bracket-tagged matches.
type BracketView struct {
	TournamentID string             `json:"tournamentId"`
	Size         int                `json:"size"`
	Rounds       []BracketRoundView `json:"rounds"`
	ThirdPlace   *models.Match      `json:"thirdPlace,omitempty"`
	Champion     string             `json:"champion,omitempty"`
}

// NewBracketView groups the bracket matches by round.
func NewBracketView(tournamentID string, size int, matches []models.Match) BracketView {
	view := BracketView{TournamentID: tournamentID, Size: size}
	byRound := make(map[int][]models.Match)
	var numbers []int
	for _, m := range matches {
		if !m.Kind.IsBracket() {
			continue
		}
		if m.Kind == models.RoundThirdPlace {
			tp := m
			view.ThirdPlace = &tp
			continue
		}
		if _, ok := byRound[m.Round]; !ok {
			numbers = append(numbers, m.Round)
		}
		byRound[m.Round] = append(byRound[m.Round], m)
		if m.Kind == models.RoundFinal && m.WinnerID != "" {
			view.Champion = m.WinnerID
		}
	}
	sort.Ints(numbers)
	for _, n := range numbers {
		ms := byRound[n]
		sort.Slice(ms, func(i, j int) bool { return ms[i].Slot < ms[j].Slot })
		view.Rounds = append(view.Rounds, BracketRoundView{Number: n, Kind: ms[0].Kind, Matches: ms})
	}
	return view
}
