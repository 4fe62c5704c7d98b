package engine

import (
	"fmt"
	"time"

	"championship-engine/models"

	log "github.com/sirupsen/logrus"
)

const (
	DefaultMatchWindow  = 24 * time.Hour
	DefaultReminderLead = time.Hour
	DefaultQualifiers   = 8
)

// ValidateConfig fills in defaults and rejects configurations the controller
// cannot run. It mutates cfg in place.
func ValidateConfig(cfg *models.TournamentConfig) error {
	switch cfg.Format {
	case "":
		cfg.Format = models.FormatSwissElimination
	case models.FormatSwissElimination, models.FormatSwissOnly, models.FormatEliminationOnly:
	default:
		return fmt.Errorf("%w: unknown format %q", ErrInvalidConfig, cfg.Format)
	}

	if cfg.Capacity < 0 || cfg.Capacity == 1 {
		return fmt.Errorf("%w: capacity %d", ErrInvalidConfig, cfg.Capacity)
	}

	// 1. Match window
	if cfg.MatchWindow < 0 {
		return fmt.Errorf("%w: negative match window", ErrInvalidConfig)
	}
	if cfg.MatchWindow == 0 {
		cfg.MatchWindow = DefaultMatchWindow
	}
	switch cfg.MatchWindow {
	case 24 * time.Hour, 48 * time.Hour, 72 * time.Hour:
	default:
		log.Printf("[CONFIG] WARNING: non-standard match window %s", cfg.MatchWindow)
	}

	// 2. Reminder must land inside the window
	if cfg.ReminderLead < 0 {
		return fmt.Errorf("%w: negative reminder lead", ErrInvalidConfig)
	}
	if cfg.ReminderLead == 0 {
		cfg.ReminderLead = DefaultReminderLead
	}
	if cfg.ReminderLead >= cfg.MatchWindow {
		return fmt.Errorf("%w: reminder lead %s is not shorter than the match window %s",
			ErrInvalidConfig, cfg.ReminderLead, cfg.MatchWindow)
	}

	// 3. Phase sizing
	if cfg.SwissRounds < 0 {
		return fmt.Errorf("%w: swiss round count %d", ErrInvalidConfig, cfg.SwissRounds)
	}
	if cfg.Qualifiers < 0 || cfg.Qualifiers == 1 {
		return fmt.Errorf("%w: qualifier count %d", ErrInvalidConfig, cfg.Qualifiers)
	}
	switch cfg.Format {
	case models.FormatSwissElimination:
		if cfg.Qualifiers == 0 {
			cfg.Qualifiers = DefaultQualifiers
		}
	case models.FormatEliminationOnly:
		if cfg.SwissRounds > 0 {
			log.Printf("[CONFIG] WARNING: swiss round count ignored for %s", cfg.Format)
			cfg.SwissRounds = 0
		}
	}
	if cfg.ThirdPlaceMatch && cfg.Format == models.FormatSwissOnly {
		cfg.ThirdPlaceMatch = false
	}

	// 4. Payout tables
	if len(cfg.PrizeTable.Buckets) == 0 && cfg.PrizeTable.Name == "" {
		expected := cfg.Capacity
		if expected == 0 {
			expected = DefaultQualifiers
		}
		cfg.PrizeTable = DefaultPrizeTable(expected)
	}
	table, err := ResolvePrizeTable(cfg.PrizeTable)
	if err != nil {
		return err
	}
	if err := ValidatePrizeTable(table); err != nil {
		return err
	}
	cfg.PrizeTable = table

	if cfg.CreditTable.Participation == 0 && cfg.CreditTable.PerWin == 0 && len(cfg.CreditTable.Buckets) == 0 {
		cfg.CreditTable = StandardCredits
	}
	return ValidateCreditTable(cfg.CreditTable)
}
