package engine

import (
	"errors"
	"fmt"
	"testing"

	"championship-engine/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rankedField(points ...float64) []models.StandingEntry {
	out := make([]models.StandingEntry, len(points))
	for i, p := range points {
		out[i] = models.StandingEntry{TournamentID: "t1", ParticipantID: fmt.Sprintf("p%d", i+1), Points: p, Rank: i + 1}
	}
	return out
}

func assertCoversField(t *testing.T, field []models.StandingEntry, pairs []Pairing) {
	t.Helper()
	seen := make(map[string]int)
	for _, p := range pairs {
		seen[p.A]++
		if !p.IsBye() {
			seen[p.B]++
		}
	}
	for _, e := range field {
		assert.Equal(t, 1, seen[e.ParticipantID], "participant %s", e.ParticipantID)
	}
}

func TestPairSwissRound_SeededFirstRound(t *testing.T) {
	field := rankedField(0, 0, 0, 0, 0, 0, 0, 0)
	pairs, err := PairSwissRound(SwissRequest{TournamentID: "t1", Round: 1, Ranking: field})
	require.NoError(t, err)

	assert.Equal(t, []Pairing{
		{A: "p1", B: "p5"},
		{A: "p2", B: "p6"},
		{A: "p3", B: "p7"},
		{A: "p4", B: "p8"},
	}, pairs)
}

func TestPairSwissRound_FirstRoundOddGivesWeakestTheBye(t *testing.T) {
	field := rankedField(0, 0, 0, 0, 0)
	pairs, err := PairSwissRound(SwissRequest{TournamentID: "t1", Round: 1, Ranking: field})
	require.NoError(t, err)

	require.Len(t, pairs, 3)
	assert.Equal(t, Pairing{A: "p5"}, pairs[2])
	assert.Equal(t, Pairing{A: "p1", B: "p3"}, pairs[0])
	assertCoversField(t, field, pairs)
}

func TestPairSwissRound_AvoidsRematches(t *testing.T) {
	field := rankedField(1, 1, 0, 0)
	history := NewPairingHistory()
	history.Record(Pairing{A: "p1", B: "p2"})
	history.Record(Pairing{A: "p3", B: "p4"})

	pairs, err := PairSwissRound(SwissRequest{TournamentID: "t1", Round: 2, Ranking: field, History: history})
	require.NoError(t, err)

	assert.Equal(t, []Pairing{{A: "p1", B: "p3"}, {A: "p2", B: "p4"}}, pairs)
	for _, p := range pairs {
		assert.False(t, history.Played(p.A, p.B))
	}
}

func TestPairSwissRound_PairsWithinScoreGroup(t *testing.T) {
	field := rankedField(2, 2, 1, 1, 1, 1, 0, 0)
	history := NewPairingHistory()

	pairs, err := PairSwissRound(SwissRequest{TournamentID: "t1", Round: 3, Ranking: field, History: history})
	require.NoError(t, err)
	assert.Equal(t, []Pairing{
		{A: "p1", B: "p2"},
		{A: "p3", B: "p4"},
		{A: "p5", B: "p6"},
		{A: "p7", B: "p8"},
	}, pairs)
}

func TestPairSwissRound_FloatsDownWhenGroupIsExhausted(t *testing.T) {
	field := rankedField(2, 2, 1, 1)
	history := NewPairingHistory()
	history.Record(Pairing{A: "p1", B: "p2"})

	pairs, err := PairSwissRound(SwissRequest{TournamentID: "t1", Round: 3, Ranking: field, History: history})
	require.NoError(t, err)
	assert.Equal(t, []Pairing{{A: "p1", B: "p3"}, {A: "p2", B: "p4"}}, pairs)
}

func TestPairSwissRound_ByePrefersParticipantsWithoutOne(t *testing.T) {
	field := rankedField(2, 1, 1, 1, 0)
	history := NewPairingHistory()
	// p5 is the weakest but already had a bye; p4 is next in line.
	history.Record(Pairing{A: "p5"})

	pairs, err := PairSwissRound(SwissRequest{TournamentID: "t1", Round: 2, Ranking: field, History: history})
	require.NoError(t, err)

	var byes []string
	for _, p := range pairs {
		if p.IsBye() {
			byes = append(byes, p.A)
		}
	}
	assert.Equal(t, []string{"p4"}, byes)
	assertCoversField(t, field, pairs)
}

func TestPairSwissRound_Infeasible(t *testing.T) {
	field := rankedField(1, 1, 1, 1)
	history := NewPairingHistory()
	for _, pair := range [][2]string{{"p1", "p2"}, {"p1", "p3"}, {"p1", "p4"}} {
		history.Record(Pairing{A: pair[0], B: pair[1]})
	}

	_, err := PairSwissRound(SwissRequest{TournamentID: "t1", Round: 4, Ranking: field, History: history})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPairingInfeasible))

	var pe *PairingInfeasibleError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 4, pe.Round)
	assert.Equal(t, "t1", pe.TournamentID)
	assert.Len(t, pe.Unpaired, 4)
}

func TestPairSwissRound_BacktracksPastGreedyChoice(t *testing.T) {
	// Greedy p1-p2 leaves p3-p4, who already met; the only valid round is
	// p1-p3 and p2-p4 or p1-p4 and p2-p3.
	field := rankedField(1, 1, 1, 1)
	history := NewPairingHistory()
	history.Record(Pairing{A: "p3", B: "p4"})

	pairs, err := PairSwissRound(SwissRequest{TournamentID: "t1", Round: 2, Ranking: field, History: history})
	require.NoError(t, err)
	assert.Equal(t, []Pairing{{A: "p1", B: "p3"}, {A: "p2", B: "p4"}}, pairs)
}

func TestPairSwissRound_NoRematchAcrossFullSwiss(t *testing.T) {
	const n = 16
	participants := makeParticipants(n)
	var matches []models.Match
	history := NewPairingHistory()

	for round := 1; round <= 4; round++ {
		ranking := ComputeStandings("t1", participants, matches, StandingsOptions{})
		pairs, err := PairSwissRound(SwissRequest{TournamentID: "t1", Round: round, Ranking: ranking, History: history})
		require.NoError(t, err, "round %d", round)
		require.Len(t, pairs, n/2)

		for i, p := range pairs {
			require.False(t, history.Played(p.A, p.B), "rematch %s-%s in round %d", p.A, p.B, round)
			history.Record(p)
			// Lower registration number always wins.
			winner := p.A
			if p.B < p.A {
				winner = p.B
			}
			matches = append(matches, decided(fmt.Sprintf("r%dm%d", round, i), p.A, p.B, winner, round))
		}
	}
}

func TestValidateManualPairing(t *testing.T) {
	active := []string{"p1", "p2", "p3"}

	assert.NoError(t, ValidateManualPairing(active, []Pairing{{A: "p1", B: "p2"}, {A: "p3"}}))

	cases := map[string][]Pairing{
		"missing participant": {{A: "p1", B: "p2"}},
		"duplicate":           {{A: "p1", B: "p2"}, {A: "p2", B: "p3"}},
		"unknown":             {{A: "p1", B: "p9"}, {A: "p2", B: "p3"}},
		"two byes":            {{A: "p1"}, {A: "p2"}, {A: "p3"}},
		"self pairing":        {{A: "p1", B: "p1"}, {A: "p2", B: "p3"}},
	}
	for name, pairs := range cases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, ValidateManualPairing(active, pairs), ErrInvalidManualPairing)
		})
	}
}
