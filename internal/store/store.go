// Package store persists engine state with gorm. Every write is an upsert
// keyed on the natural identity of the row, so replaying a save is harmless.
package store

import (
	"context"
	"errors"
	"fmt"

	"championship-engine/engine"
	"championship-engine/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNotFound = errors.New("record not found")

// Store persists tournaments with gorm.
type Store struct {
	db *gorm.DB
}

var (
	_ engine.Repository      = (*Store)(nil)
	_ engine.UnsettledLoader = (*Store)(nil)
)

// New creates a store on db. The tables must already be migrated.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func upsert(ctx context.Context, db *gorm.DB, row interface{}) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(row).Error
}

func (s *Store) SaveTournament(ctx context.Context, t *models.Tournament) error {
	row, err := tournamentToRow(t)
	if err != nil {
		return fmt.Errorf("encode tournament %s: %w", t.ID, err)
	}
	if err := upsert(ctx, s.db, &row); err != nil {
		return fmt.Errorf("save tournament %s: %w", t.ID, err)
	}
	return nil
}

func (s *Store) SaveParticipant(ctx context.Context, p *models.Participant) error {
	row := participantToRow(p)
	if err := upsert(ctx, s.db, &row); err != nil {
		return fmt.Errorf("save participant %s/%s: %w", p.TournamentID, p.ID, err)
	}
	return nil
}

func (s *Store) SaveRound(ctx context.Context, r *models.Round) error {
	row, err := roundToRow(r)
	if err != nil {
		return fmt.Errorf("encode round %s/%d: %w", r.TournamentID, r.Number, err)
	}
	if err := upsert(ctx, s.db, &row); err != nil {
		return fmt.Errorf("save round %s/%d: %w", r.TournamentID, r.Number, err)
	}
	return nil
}

// SaveMatch is a compare-and-set on Version. A write lands only when it is
// newer than the stored row; an identical replay of the stored version is
// accepted, anything else is engine.ErrVersionConflict.
func (s *Store) SaveMatch(ctx context.Context, m *models.Match) error {
	row := matchToRow(m)
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current MatchRow
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&current, "id = ?", row.ID).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("save match %s: %w", m.ID, err)
			}
			return nil
		case err != nil:
			return fmt.Errorf("load match %s: %w", m.ID, err)
		case current.Version == row.Version && sameMatch(current, row):
			return nil
		case current.Version >= row.Version:
			return fmt.Errorf("%w: match %s stored at version %d (%s), write at version %d (%s)",
				engine.ErrVersionConflict, m.ID, current.Version, current.State, row.Version, row.State)
		}
		res := tx.Model(&MatchRow{}).
			Where("id = ? AND version = ?", row.ID, current.Version).
			Select("*").
			Updates(&row)
		if res.Error != nil {
			return fmt.Errorf("save match %s: %w", m.ID, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: match %s moved past version %d", engine.ErrVersionConflict, m.ID, current.Version)
		}
		return nil
	})
}

func (s *Store) SaveStandings(ctx context.Context, tournamentID string, entries []models.StandingEntry) error {
	if len(entries) == 0 {
		return nil
	}
	rows := make([]StandingRow, len(entries))
	for i, e := range entries {
		rows[i] = standingToRow(tournamentID, e)
	}
	if err := upsert(ctx, s.db, &rows); err != nil {
		return fmt.Errorf("save standings %s: %w", tournamentID, err)
	}
	return nil
}

func (s *Store) SaveOverride(ctx context.Context, rec *models.OverrideRecord) error {
	row := overrideToRow(rec)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("save override %s: %w", rec.ID, err)
	}
	return nil
}

// Overrides returns the audit trail of a tournament, oldest first.
func (s *Store) Overrides(ctx context.Context, tournamentID string) ([]models.OverrideRecord, error) {
	var rows []OverrideRow
	err := s.db.WithContext(ctx).
		Where("tournament_id = ?", tournamentID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load overrides %s: %w", tournamentID, err)
	}
	out := make([]models.OverrideRecord, len(rows))
	for i, r := range rows {
		out[i] = r.toModel()
	}
	return out, nil
}

// Load reads the full persisted state of one tournament.
func (s *Store) Load(ctx context.Context, tournamentID string) (engine.RestoredTournament, error) {
	var row TournamentRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", tournamentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return engine.RestoredTournament{}, fmt.Errorf("%w: tournament %s", ErrNotFound, tournamentID)
	}
	if err != nil {
		return engine.RestoredTournament{}, fmt.Errorf("load tournament %s: %w", tournamentID, err)
	}
	return s.loadChildren(ctx, row)
}

// LoadOpen reads every tournament that has not completed or been cancelled.
func (s *Store) LoadOpen(ctx context.Context) ([]engine.RestoredTournament, error) {
	var rows []TournamentRow
	err := s.db.WithContext(ctx).
		Where("status IN ?", []string{
			string(models.StatusUpcoming),
			string(models.StatusRegistrationOpen),
			string(models.StatusInProgress),
		}).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load open tournaments: %w", err)
	}

	out := make([]engine.RestoredTournament, 0, len(rows))
	for _, row := range rows {
		st, err := s.loadChildren(ctx, row)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

// LoadUnsettled reads completed tournaments whose completion hooks have not
// all succeeded yet.
func (s *Store) LoadUnsettled(ctx context.Context) ([]engine.RestoredTournament, error) {
	var rows []TournamentRow
	err := s.db.WithContext(ctx).
		Where("status = ? AND settled = ?", string(models.StatusCompleted), false).
		Order("completed_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load unsettled tournaments: %w", err)
	}

	out := make([]engine.RestoredTournament, 0, len(rows))
	for _, row := range rows {
		st, err := s.loadChildren(ctx, row)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

func (s *Store) loadChildren(ctx context.Context, row TournamentRow) (engine.RestoredTournament, error) {
	var st engine.RestoredTournament
	t, err := row.toModel()
	if err != nil {
		return st, fmt.Errorf("decode tournament %s: %w", row.ID, err)
	}
	st.Tournament = t
	db := s.db.WithContext(ctx)

	var participants []ParticipantRow
	if err := db.Where("tournament_id = ?", t.ID).Order("registration_order ASC").Find(&participants).Error; err != nil {
		return st, fmt.Errorf("load participants %s: %w", t.ID, err)
	}
	for _, p := range participants {
		st.Participants = append(st.Participants, p.toModel())
	}

	var rounds []RoundRow
	if err := db.Where("tournament_id = ?", t.ID).Order("number ASC").Find(&rounds).Error; err != nil {
		return st, fmt.Errorf("load rounds %s: %w", t.ID, err)
	}
	for _, r := range rounds {
		round, err := r.toModel()
		if err != nil {
			return st, fmt.Errorf("decode round %s/%d: %w", t.ID, r.Number, err)
		}
		st.Rounds = append(st.Rounds, round)
	}

	var matches []MatchRow
	if err := db.Where("tournament_id = ?", t.ID).Order("round ASC, slot ASC").Find(&matches).Error; err != nil {
		return st, fmt.Errorf("load matches %s: %w", t.ID, err)
	}
	for _, m := range matches {
		st.Matches = append(st.Matches, m.toModel())
	}

	var standings []StandingRow
	if err := db.Where("tournament_id = ?", t.ID).Order(clause.OrderByColumn{Column: clause.Column{Name: "rank"}}).Find(&standings).Error; err != nil {
		return st, fmt.Errorf("load standings %s: %w", t.ID, err)
	}
	for _, e := range standings {
		st.Standings = append(st.Standings, e.toModel())
	}
	return st, nil
}
