package engine

import "championship-engine/models"

// Predefined prize tables. Basis points: 10000 = 100.00%.
var (
	// ChampionshipTop8 pays the final four individually and splits the
	// quarter-final losers evenly.
	ChampionshipTop8 = models.PrizeTable{
		Name: "championship_top8",
		Buckets: []models.PrizeBucket{
			{From: 1, To: 1, BasisPoints: 4000}, // 40%
			{From: 2, To: 2, BasisPoints: 2500}, // 25%
			{From: 3, To: 3, BasisPoints: 1500}, // 15%
			{From: 4, To: 4, BasisPoints: 1000}, // 10%
			{From: 5, To: 8, BasisPoints: 250},  // 2.5% each
		},
	}

	WinnerTakesAll = models.PrizeTable{
		Name:    "winner_takes_all",
		Buckets: []models.PrizeBucket{{From: 1, To: 1, BasisPoints: 10000}},
	}

	Top3Payout = models.PrizeTable{
		Name: "top_3",
		Buckets: []models.PrizeBucket{
			{From: 1, To: 1, BasisPoints: 5000},
			{From: 2, To: 2, BasisPoints: 3000},
			{From: 3, To: 3, BasisPoints: 2000},
		},
	}

	Top5Payout = models.PrizeTable{
		Name: "top_5",
		Buckets: []models.PrizeBucket{
			{From: 1, To: 1, BasisPoints: 4000},
			{From: 2, To: 2, BasisPoints: 2500},
			{From: 3, To: 3, BasisPoints: 1700},
			{From: 4, To: 4, BasisPoints: 1100},
			{From: 5, To: 5, BasisPoints: 700},
		},
	}

	// HeadsUpPayout - 65/35 for two-player events
	HeadsUpPayout = models.PrizeTable{
		Name: "heads_up",
		Buckets: []models.PrizeBucket{
			{From: 1, To: 1, BasisPoints: 6500},
			{From: 2, To: 2, BasisPoints: 3500},
		},
	}
)

// StandardCredits rewards showing up, winning games and finishing high.
var StandardCredits = models.CreditTable{
	Participation: 100,
	PerWin:        25,
	Buckets: []models.CreditBucket{
		{From: 1, To: 1, Credits: 500},
		{From: 2, To: 2, Credits: 300},
		{From: 3, To: 4, Credits: 150},
		{From: 5, To: 8, Credits: 50},
	},
}

var PrizeTablePresets = map[string]models.PrizeTable{
	ChampionshipTop8.Name: ChampionshipTop8,
	WinnerTakesAll.Name:   WinnerTakesAll,
	Top3Payout.Name:       Top3Payout,
	Top5Payout.Name:       Top5Payout,
	HeadsUpPayout.Name:    HeadsUpPayout,
}

// GetPrizeTablePreset looks up a built-in prize table by name.
func GetPrizeTablePreset(name string) (models.PrizeTable, bool) {
	preset, exists := PrizeTablePresets[name]
	return preset, exists
}

// DefaultPrizeTable picks a preset sized to the field.
func DefaultPrizeTable(participants int) models.PrizeTable {
	switch {
	case participants <= 2:
		return HeadsUpPayout
	case participants < 8:
		return Top3Payout
	}
	return ChampionshipTop8
}

// ResolvePrizeTable expands a table given only by preset name.
func ResolvePrizeTable(t models.PrizeTable) (models.PrizeTable, error) {
	if len(t.Buckets) > 0 {
		return t, nil
	}
	if t.Name == "" {
		return t, &DistributionTableError{Reason: "no buckets and no preset name"}
	}
	preset, ok := GetPrizeTablePreset(t.Name)
	if !ok {
		return t, &DistributionTableError{Table: t.Name, Reason: "unknown preset"}
	}
	return preset, nil
}
