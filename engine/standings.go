package engine

import (
	"sort"

	"championship-engine/models"
)

// StandingsOptions tunes how ComputeStandings scores results.
type StandingsOptions struct {
	DoubleForfeitCountsAsPlayed bool
}

// ComputeStandings rebuilds every StandingEntry from the terminal matches.
// It never patches previous output, so recomputing on the same input yields
// identical entries. Returned entries are ordered by rank.
func ComputeStandings(tournamentID string, participants []models.Participant, matches []models.Match, opts StandingsOptions) []models.StandingEntry {
	order := registrationIndex(participants)
	entries := make(map[string]*models.StandingEntry, len(participants))
	for _, p := range participants {
		entries[p.ID] = &models.StandingEntry{TournamentID: tournamentID, ParticipantID: p.ID}
	}

	opponents := make(map[string][]string, len(participants))
	for i := range matches {
		m := &matches[i]
		if !m.IsTerminal() || m.State == models.MatchCancelled {
			continue
		}
		a := entries[m.PlayerA]
		if a == nil {
			continue
		}
		if m.IsBye() {
			a.MatchesPlayed++
			a.Wins++
			a.Byes++
			continue
		}
		b := entries[m.PlayerB]
		if b == nil {
			continue
		}

		switch m.Result {
		case models.ResultDraw:
			a.MatchesPlayed++
			b.MatchesPlayed++
			a.Draws++
			b.Draws++
		case models.ResultDecisive, models.ResultForfeit:
			winner, loser := a, b
			switch m.WinnerID {
			case m.PlayerA:
			case m.PlayerB:
				winner, loser = b, a
			default:
				continue
			}
			winner.MatchesPlayed++
			loser.MatchesPlayed++
			winner.Wins++
			loser.Losses++
		case models.ResultDoubleForfeit:
			if !opts.DoubleForfeitCountsAsPlayed {
				continue
			}
			a.MatchesPlayed++
			b.MatchesPlayed++
			a.Losses++
			b.Losses++
		default:
			continue
		}
		opponents[m.PlayerA] = append(opponents[m.PlayerA], m.PlayerB)
		opponents[m.PlayerB] = append(opponents[m.PlayerB], m.PlayerA)
	}

	for _, e := range entries {
		e.Points = float64(e.Wins) + 0.5*float64(e.Draws)
	}
	// Buchholz reads the final points of every opponent in one pass.
	for id, e := range entries {
		var tb float64
		for _, opp := range opponents[id] {
			tb += entries[opp].Points
		}
		e.TieBreak = tb
	}

	out := make([]models.StandingEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, *e)
	}
	sortStandings(out, order)
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

func sortStandings(entries []models.StandingEntry, order map[string]int) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Points != b.Points {
			return a.Points > b.Points
		}
		if a.TieBreak != b.TieBreak {
			return a.TieBreak > b.TieBreak
		}
		oa, ob := order[a.ParticipantID], order[b.ParticipantID]
		if oa != ob {
			return oa < ob
		}
		return a.ParticipantID < b.ParticipantID
	})
}

// registrationIndex maps participant ID to its position in registration order.
func registrationIndex(participants []models.Participant) map[string]int {
	sorted := make([]models.Participant, len(participants))
	copy(sorted, participants)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].RegistrationOrder != sorted[j].RegistrationOrder {
			return sorted[i].RegistrationOrder < sorted[j].RegistrationOrder
		}
		if !sorted[i].RegisteredAt.Equal(sorted[j].RegisteredAt) {
			return sorted[i].RegisteredAt.Before(sorted[j].RegisteredAt)
		}
		return sorted[i].ID < sorted[j].ID
	})
	idx := make(map[string]int, len(sorted))
	for i, p := range sorted {
		idx[p.ID] = i
	}
	return idx
}

// TotalPoints sums Points across entries.
func TotalPoints(entries []models.StandingEntry) float64 {
	var total float64
	for _, e := range entries {
		total += e.Points
	}
	return total
}

// RankedIDs returns participant IDs in rank order.
func RankedIDs(entries []models.StandingEntry) []string {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ParticipantID
	}
	return ids
}
