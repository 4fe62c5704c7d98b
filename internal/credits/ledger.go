package credits

import (
	"context"
	"errors"
	"fmt"

	"championship-engine/engine"
	"championship-engine/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Ledger books tournament awards onto participant accounts. It is an
// engine.CompletionHook; replaying a completion books nothing twice.
type Ledger struct {
	db *gorm.DB
}

// NewLedger creates a ledger on db.
func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// Models lists the tables the ledger needs migrated.
func Models() []interface{} {
	return []interface{}{&Account{}, &Entry{}}
}

// Balance returns the participant's account, or ErrAccountNotFound.
func (l *Ledger) Balance(ctx context.Context, participantID string) (Account, error) {
	var acct Account
	err := l.db.WithContext(ctx).First(&acct, "participant_id = ?", participantID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Account{}, ErrAccountNotFound
	}
	if err != nil {
		return Account{}, fmt.Errorf("failed to get balance: %w", err)
	}
	return acct, nil
}

// History lists the participant's entries, oldest first.
func (l *Ledger) History(ctx context.Context, participantID string) ([]Entry, error) {
	var entries []Entry
	err := l.db.WithContext(ctx).
		Where("participant_id = ?", participantID).
		Order("created_at ASC, id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	return entries, nil
}

// OnTournamentComplete books every award of the snapshot in one transaction.
func (l *Ledger) OnTournamentComplete(ctx context.Context, snap engine.Snapshot) error {
	t := snap.Tournament
	if t.Status != models.StatusCompleted {
		return fmt.Errorf("%w: %s is %s", ErrTournamentNotDone, t.ID, t.Status)
	}

	booked := 0
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, a := range snap.Awards {
			if a.Prize > 0 {
				ok, err := l.bookInTx(tx, a.ParticipantID, EntryTournamentPrize, t.ID, a.Prize,
					fmt.Sprintf("%s: position %d prize", t.Name, a.Position))
				if err != nil {
					return err
				}
				if ok {
					booked++
				}
			}
			if a.Credits > 0 {
				ok, err := l.bookInTx(tx, a.ParticipantID, EntryTournamentCredits, t.ID, a.Credits,
					fmt.Sprintf("%s: position %d credits", t.Name, a.Position))
				if err != nil {
					return err
				}
				if ok {
					booked++
				}
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("book awards for %s: %w", t.ID, err)
	}

	log.WithFields(log.Fields{
		"tournament": t.ID,
		"awards":     len(snap.Awards),
		"entries":    booked,
	}).Info("[LEDGER] Tournament awards booked")
	return nil
}

// Adjust books a manual correction. The reference makes it idempotent.
func (l *Ledger) Adjust(ctx context.Context, participantID, referenceID string, amount int64, description string) error {
	if amount < 0 {
		return ErrNegativeAmount
	}
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := l.bookInTx(tx, participantID, EntryAdminAdjustment, referenceID, amount, description)
		if err != nil {
			return err
		}
		if !ok {
			return ErrAlreadyAwarded
		}
		return nil
	})
}

// bookInTx applies one entry within an existing transaction. It reports false
// when the entry was already booked.
func (l *Ledger) bookInTx(tx *gorm.DB, participantID string, kind EntryType, refID string, amount int64, description string) (bool, error) {
	var existing int64
	if err := tx.Model(&Entry{}).
		Where("participant_id = ? AND type = ? AND reference_id = ?", participantID, kind, refID).
		Count(&existing).Error; err != nil {
		return false, fmt.Errorf("failed to check existing entry: %w", err)
	}
	if existing > 0 {
		return false, nil
	}

	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&Account{ParticipantID: participantID}).Error; err != nil {
		return false, fmt.Errorf("failed to open account: %w", err)
	}

	// Get current balance with row lock
	var acct Account
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&acct, "participant_id = ?", participantID).Error; err != nil {
		return false, fmt.Errorf("failed to lock account: %w", err)
	}

	column, before := "credits", acct.Credits
	if kind == EntryTournamentPrize {
		column, before = "winnings", acct.Winnings
	}
	after := before + amount

	if err := tx.Model(&acct).Update(column, after).Error; err != nil {
		return false, fmt.Errorf("failed to update balance: %w", err)
	}

	entry := Entry{
		ID:            uuid.New().String(),
		ParticipantID: participantID,
		Type:          kind,
		ReferenceID:   refID,
		Amount:        amount,
		BalanceBefore: before,
		BalanceAfter:  after,
		Description:   description,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return false, fmt.Errorf("failed to create ledger entry: %w", err)
	}
	return true, nil
}
