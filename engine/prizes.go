package engine

import (
	"fmt"
	"sort"

	"championship-engine/models"

	log "github.com/sirupsen/logrus"
)

const BasisPointsTotal = 10000

// BasisPointsTolerance absorbs tables whose shares were rounded to whole
// basis points, e.g. three equal thirds at 3333 bp.
const BasisPointsTolerance = 1

// Award is what one participant receives at tournament completion.
type Award struct {
	ParticipantID string `json:"participantId"`
	Position      int    `json:"position"`
	Prize         int64  `json:"prize"`
	Credits       int64  `json:"credits"`
}

// ValidatePrizeTable rejects tables whose buckets overlap or do not pay out
// 100% of the pool, give or take BasisPointsTolerance.
func ValidatePrizeTable(t models.PrizeTable) error {
	if len(t.Buckets) == 0 {
		return &DistributionTableError{Table: t.Name, Reason: "table has no buckets"}
	}
	buckets := make([]models.PrizeBucket, len(t.Buckets))
	copy(buckets, t.Buckets)
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].From < buckets[j].From })

	total := 0
	last := 0
	for _, b := range buckets {
		if b.From < 1 || b.To < b.From {
			return &DistributionTableError{Table: t.Name, BasisPoints: total,
				Reason: fmt.Sprintf("bucket %d-%d is not a valid position range", b.From, b.To)}
		}
		if b.From <= last {
			return &DistributionTableError{Table: t.Name, BasisPoints: total,
				Reason: fmt.Sprintf("bucket %d-%d overlaps position %d", b.From, b.To, last)}
		}
		if b.BasisPoints <= 0 || b.BasisPoints > BasisPointsTotal {
			return &DistributionTableError{Table: t.Name, BasisPoints: total,
				Reason: fmt.Sprintf("bucket %d-%d has %d basis points", b.From, b.To, b.BasisPoints)}
		}
		total += b.BasisPoints * (b.To - b.From + 1)
		last = b.To
	}
	if diff := total - BasisPointsTotal; diff > BasisPointsTolerance || diff < -BasisPointsTolerance {
		return &DistributionTableError{Table: t.Name, BasisPoints: total, Reason: "shares must sum to 10000 bp (±1)"}
	}
	return nil
}

// ValidateCreditTable rejects negative amounts and malformed position ranges.
func ValidateCreditTable(t models.CreditTable) error {
	if t.Participation < 0 || t.PerWin < 0 {
		return fmt.Errorf("%w: credit amounts must be non-negative", ErrInvalidConfig)
	}
	for _, b := range t.Buckets {
		if b.From < 1 || b.To < b.From || b.Credits < 0 {
			return fmt.Errorf("%w: credit bucket %d-%d is invalid", ErrInvalidConfig, b.From, b.To)
		}
	}
	return nil
}

// DistributePrizes splits the pool over positions, 1st first. Each amount is
// floored to the minor unit; shares for positions nobody finished in and the
// rounding residue go to 1st place so the total equals the pool. A table
// over by the tolerated basis point has the excess taken from 1st place.
func DistributePrizes(pool int64, table models.PrizeTable, positions []string) ([]Award, error) {
	if err := ValidatePrizeTable(table); err != nil {
		return nil, err
	}
	awards := make([]Award, len(positions))
	for i, id := range positions {
		awards[i] = Award{ParticipantID: id, Position: i + 1}
	}
	if len(awards) == 0 || pool <= 0 {
		return awards, nil
	}

	var allocated int64
	for _, b := range table.Buckets {
		share := pool * int64(b.BasisPoints) / BasisPointsTotal
		for pos := b.From; pos <= b.To && pos <= len(awards); pos++ {
			awards[pos-1].Prize += share
			allocated += share
		}
	}
	switch remainder := pool - allocated; {
	case remainder > 0:
		log.Printf("[PRIZE_CALC] Adding remainder %d to 1st place", remainder)
		awards[0].Prize += remainder
	case remainder < 0:
		log.Printf("[PRIZE_CALC] Taking excess %d from 1st place", -remainder)
		awards[0].Prize += remainder
	}
	return awards, nil
}

// CreditsFor is participation plus the position bonus plus PerWin per win.
func CreditsFor(t models.CreditTable, position, wins int) int64 {
	credits := t.Participation + t.PerWin*int64(wins)
	for _, b := range t.Buckets {
		if position >= b.From && position <= b.To {
			credits += b.Credits
			break
		}
	}
	return credits
}

// ApplyAwards writes final positions, prizes and credits onto the standings.
func ApplyAwards(entries []models.StandingEntry, awards []Award, credits models.CreditTable) []Award {
	idx := make(map[string]int, len(entries))
	for i, e := range entries {
		idx[e.ParticipantID] = i
	}
	for i := range awards {
		a := &awards[i]
		wins := 0
		if j, ok := idx[a.ParticipantID]; ok {
			wins = entries[j].Wins
		}
		a.Credits = CreditsFor(credits, a.Position, wins)
		if j, ok := idx[a.ParticipantID]; ok {
			entries[j].FinalPosition = a.Position
			entries[j].Prize = a.Prize
			entries[j].Credits = a.Credits
		}
	}
	return awards
}
