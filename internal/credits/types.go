package credits

import (
	"errors"
	"time"
)

// EntryType is the kind of ledger entry
type EntryType string

const (
	EntryTournamentPrize   EntryType = "tournament_prize"
	EntryTournamentCredits EntryType = "tournament_credits"
	EntryAdminAdjustment   EntryType = "admin_adjustment"
)

// Account holds a participant's running totals. Prize money and credits are
// separate balances: credits are not redeemable for the pool currency.
type Account struct {
	ParticipantID string    `gorm:"type:varchar(64);primaryKey" json:"participant_id"`
	Winnings      int64     `gorm:"not null;default:0" json:"winnings"`
	Credits       int64     `gorm:"not null;default:0" json:"credits"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (Account) TableName() string {
	return "credit_accounts"
}

// Entry is the audit row for one balance change. A participant gets at most
// one entry of each type per tournament.
type Entry struct {
	ID            string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	ParticipantID string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_entry_ref,priority:1" json:"participant_id"`
	Type          EntryType `gorm:"type:varchar(50);not null;uniqueIndex:idx_entry_ref,priority:2" json:"type"`
	ReferenceID   string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_entry_ref,priority:3" json:"reference_id"`
	Amount        int64     `gorm:"not null" json:"amount"`
	BalanceBefore int64     `gorm:"not null" json:"balance_before"`
	BalanceAfter  int64     `gorm:"not null" json:"balance_after"`
	Description   string    `gorm:"type:text" json:"description,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func (Entry) TableName() string {
	return "credit_entries"
}

// Errors
var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrNegativeAmount    = errors.New("amount cannot be negative")
	ErrAlreadyAwarded    = errors.New("entry already recorded for this reference")
	ErrTournamentNotDone = errors.New("tournament has not completed")
)
