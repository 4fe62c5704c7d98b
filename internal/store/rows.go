package store

import (
	"encoding/json"
	"time"

	"championship-engine/models"
)

// TournamentRow is the persisted tournament. Config is a JSON document.
type TournamentRow struct {
	ID                   string    `gorm:"type:varchar(64);primaryKey"`
	Name                 string    `gorm:"type:varchar(255);not null"`
	EntryFee             int64     `gorm:"not null"`
	Pool                 int64     `gorm:"not null"`
	Config               string    `gorm:"type:text"`
	Status               string    `gorm:"type:varchar(32);not null;index"`
	Phase                string    `gorm:"type:varchar(32);not null"`
	CurrentRound         int       `gorm:"not null"`
	SwissRoundsPlanned   int       `gorm:"not null"`
	PendingManualPairing bool      `gorm:"not null"`
	Settled              bool      `gorm:"not null;default:false;index"`
	CreatedAt            time.Time `gorm:"not null"`
	StartedAt            *time.Time
	CompletedAt          *time.Time
	UpdatedAt            time.Time
}

func (TournamentRow) TableName() string { return "tournaments" }

type ParticipantRow struct {
	TournamentID      string    `gorm:"type:varchar(64);primaryKey"`
	ParticipantID     string    `gorm:"type:varchar(64);primaryKey"`
	RegisteredAt      time.Time `gorm:"not null"`
	RegistrationOrder int       `gorm:"not null"`
	Seed              *int
}

func (ParticipantRow) TableName() string { return "tournament_participants" }

type RoundRow struct {
	TournamentID string `gorm:"type:varchar(64);primaryKey"`
	Number       int    `gorm:"primaryKey;autoIncrement:false"`
	Kind         string `gorm:"type:varchar(32);not null"`
	Slots        string `gorm:"type:text"`
	Complete     bool   `gorm:"not null"`
}

func (RoundRow) TableName() string { return "tournament_rounds" }

type MatchRow struct {
	ID              string    `gorm:"type:varchar(128);primaryKey"`
	TournamentID    string    `gorm:"type:varchar(64);not null;index"`
	Round           int       `gorm:"not null"`
	Kind            string    `gorm:"type:varchar(32);not null"`
	Slot            int       `gorm:"not null"`
	PlayerA         string    `gorm:"type:varchar(64);not null"`
	PlayerB         string    `gorm:"type:varchar(64)"`
	CreatedAt       time.Time `gorm:"not null"`
	Deadline        time.Time `gorm:"not null;index"`
	State           string    `gorm:"type:varchar(32);not null;index"`
	WinnerID        string    `gorm:"type:varchar(64)"`
	Result          string    `gorm:"type:varchar(32)"`
	SeenA           bool
	SeenB           bool
	RoomRequestedAt *time.Time
	RoomConfirmedAt *time.Time
	ReminderSent    bool
	CompletedAt     *time.Time
	Overridden      bool
	Version         int64 `gorm:"not null"`
}

func (MatchRow) TableName() string { return "tournament_matches" }

type StandingRow struct {
	TournamentID  string  `gorm:"type:varchar(64);primaryKey"`
	ParticipantID string  `gorm:"type:varchar(64);primaryKey"`
	MatchesPlayed int     `gorm:"not null"`
	Wins          int     `gorm:"not null"`
	Draws         int     `gorm:"not null"`
	Losses        int     `gorm:"not null"`
	Byes          int     `gorm:"not null"`
	Points        float64 `gorm:"not null"`
	TieBreak      float64 `gorm:"not null"`
	Rank          int     `gorm:"not null"`
	FinalPosition int
	Prize         int64
	Credits       int64
}

func (StandingRow) TableName() string { return "tournament_standings" }

type OverrideRow struct {
	ID            string    `gorm:"type:varchar(36);primaryKey"`
	TournamentID  string    `gorm:"type:varchar(64);not null;index"`
	MatchID       string    `gorm:"type:varchar(128);not null;index"`
	Actor         string    `gorm:"type:varchar(64);not null"`
	Reason        string    `gorm:"type:text"`
	PreviousState string    `gorm:"type:varchar(32)"`
	PreviousWin   string    `gorm:"type:varchar(64)"`
	NewState      string    `gorm:"type:varchar(32)"`
	NewWinner     string    `gorm:"type:varchar(64)"`
	NewResult     string    `gorm:"type:varchar(32)"`
	CreatedAt     time.Time `gorm:"not null"`
}

func (OverrideRow) TableName() string { return "match_overrides" }

// sameMatch compares two rows field by field. Timestamps are compared at
// millisecond precision, which every supported dialect keeps.
func sameMatch(a, b MatchRow) bool {
	return a.ID == b.ID && a.TournamentID == b.TournamentID &&
		a.Round == b.Round && a.Kind == b.Kind && a.Slot == b.Slot &&
		a.PlayerA == b.PlayerA && a.PlayerB == b.PlayerB &&
		sameInstant(a.CreatedAt, b.CreatedAt) && sameInstant(a.Deadline, b.Deadline) &&
		a.State == b.State && a.WinnerID == b.WinnerID && a.Result == b.Result &&
		a.SeenA == b.SeenA && a.SeenB == b.SeenB &&
		sameInstantPtr(a.RoomRequestedAt, b.RoomRequestedAt) &&
		sameInstantPtr(a.RoomConfirmedAt, b.RoomConfirmedAt) &&
		a.ReminderSent == b.ReminderSent &&
		sameInstantPtr(a.CompletedAt, b.CompletedAt) &&
		a.Overridden == b.Overridden && a.Version == b.Version
}

func sameInstant(a, b time.Time) bool {
	return a.Truncate(time.Millisecond).Equal(b.Truncate(time.Millisecond))
}

func sameInstantPtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return sameInstant(*a, *b)
}

// Models lists the tables the store needs migrated.
func Models() []interface{} {
	return []interface{}{
		&TournamentRow{}, &ParticipantRow{}, &RoundRow{},
		&MatchRow{}, &StandingRow{}, &OverrideRow{},
	}
}

func tournamentToRow(t *models.Tournament) (TournamentRow, error) {
	cfg, err := json.Marshal(t.Config)
	if err != nil {
		return TournamentRow{}, err
	}
	return TournamentRow{
		ID:                   t.ID,
		Name:                 t.Name,
		EntryFee:             t.EntryFee,
		Pool:                 t.Pool,
		Config:               string(cfg),
		Status:               string(t.Status),
		Phase:                string(t.Phase),
		CurrentRound:         t.CurrentRound,
		SwissRoundsPlanned:   t.SwissRoundsPlanned,
		PendingManualPairing: t.PendingManualPairing,
		Settled:              t.Settled,
		CreatedAt:            t.CreatedAt,
		StartedAt:            t.StartedAt,
		CompletedAt:          t.CompletedAt,
	}, nil
}

func (r TournamentRow) toModel() (models.Tournament, error) {
	t := models.Tournament{
		ID:                   r.ID,
		Name:                 r.Name,
		EntryFee:             r.EntryFee,
		Pool:                 r.Pool,
		Status:               models.TournamentStatus(r.Status),
		Phase:                models.Phase(r.Phase),
		CurrentRound:         r.CurrentRound,
		SwissRoundsPlanned:   r.SwissRoundsPlanned,
		PendingManualPairing: r.PendingManualPairing,
		Settled:              r.Settled,
		CreatedAt:            r.CreatedAt,
		StartedAt:            r.StartedAt,
		CompletedAt:          r.CompletedAt,
	}
	if len(r.Config) > 0 {
		if err := json.Unmarshal([]byte(r.Config), &t.Config); err != nil {
			return t, err
		}
	}
	return t, nil
}

func participantToRow(p *models.Participant) ParticipantRow {
	return ParticipantRow{
		TournamentID:      p.TournamentID,
		ParticipantID:     p.ID,
		RegisteredAt:      p.RegisteredAt,
		RegistrationOrder: p.RegistrationOrder,
		Seed:              p.Seed,
	}
}

func (r ParticipantRow) toModel() models.Participant {
	return models.Participant{
		ID:                r.ParticipantID,
		TournamentID:      r.TournamentID,
		RegisteredAt:      r.RegisteredAt,
		RegistrationOrder: r.RegistrationOrder,
		Seed:              r.Seed,
	}
}

func roundToRow(r *models.Round) (RoundRow, error) {
	slots, err := json.Marshal(r.Slots)
	if err != nil {
		return RoundRow{}, err
	}
	return RoundRow{
		TournamentID: r.TournamentID,
		Number:       r.Number,
		Kind:         string(r.Kind),
		Slots:        string(slots),
		Complete:     r.Complete,
	}, nil
}

func (r RoundRow) toModel() (models.Round, error) {
	round := models.Round{
		TournamentID: r.TournamentID,
		Number:       r.Number,
		Kind:         models.RoundKind(r.Kind),
		Complete:     r.Complete,
	}
	if len(r.Slots) > 0 {
		if err := json.Unmarshal([]byte(r.Slots), &round.Slots); err != nil {
			return round, err
		}
	}
	return round, nil
}

func matchToRow(m *models.Match) MatchRow {
	return MatchRow{
		ID:              m.ID,
		TournamentID:    m.TournamentID,
		Round:           m.Round,
		Kind:            string(m.Kind),
		Slot:            m.Slot,
		PlayerA:         m.PlayerA,
		PlayerB:         m.PlayerB,
		CreatedAt:       m.CreatedAt,
		Deadline:        m.Deadline,
		State:           string(m.State),
		WinnerID:        m.WinnerID,
		Result:          string(m.Result),
		SeenA:           m.SeenA,
		SeenB:           m.SeenB,
		RoomRequestedAt: m.RoomRequestedAt,
		RoomConfirmedAt: m.RoomConfirmedAt,
		ReminderSent:    m.ReminderSent,
		CompletedAt:     m.CompletedAt,
		Overridden:      m.Overridden,
		Version:         m.Version,
	}
}

func (r MatchRow) toModel() models.Match {
	return models.Match{
		ID:              r.ID,
		TournamentID:    r.TournamentID,
		Round:           r.Round,
		Kind:            models.RoundKind(r.Kind),
		Slot:            r.Slot,
		PlayerA:         r.PlayerA,
		PlayerB:         r.PlayerB,
		CreatedAt:       r.CreatedAt,
		Deadline:        r.Deadline,
		State:           models.MatchState(r.State),
		WinnerID:        r.WinnerID,
		Result:          models.ResultKind(r.Result),
		SeenA:           r.SeenA,
		SeenB:           r.SeenB,
		RoomRequestedAt: r.RoomRequestedAt,
		RoomConfirmedAt: r.RoomConfirmedAt,
		ReminderSent:    r.ReminderSent,
		CompletedAt:     r.CompletedAt,
		Overridden:      r.Overridden,
		Version:         r.Version,
	}
}

func standingToRow(tournamentID string, e models.StandingEntry) StandingRow {
	return StandingRow{
		TournamentID:  tournamentID,
		ParticipantID: e.ParticipantID,
		MatchesPlayed: e.MatchesPlayed,
		Wins:          e.Wins,
		Draws:         e.Draws,
		Losses:        e.Losses,
		Byes:          e.Byes,
		Points:        e.Points,
		TieBreak:      e.TieBreak,
		Rank:          e.Rank,
		FinalPosition: e.FinalPosition,
		Prize:         e.Prize,
		Credits:       e.Credits,
	}
}

func (r StandingRow) toModel() models.StandingEntry {
	return models.StandingEntry{
		TournamentID:  r.TournamentID,
		ParticipantID: r.ParticipantID,
		MatchesPlayed: r.MatchesPlayed,
		Wins:          r.Wins,
		Draws:         r.Draws,
		Losses:        r.Losses,
		Byes:          r.Byes,
		Points:        r.Points,
		TieBreak:      r.TieBreak,
		Rank:          r.Rank,
		FinalPosition: r.FinalPosition,
		Prize:         r.Prize,
		Credits:       r.Credits,
	}
}

func overrideToRow(rec *models.OverrideRecord) OverrideRow {
	return OverrideRow{
		ID:            rec.ID,
		TournamentID:  rec.TournamentID,
		MatchID:       rec.MatchID,
		Actor:         rec.Actor,
		Reason:        rec.Reason,
		PreviousState: string(rec.PreviousState),
		PreviousWin:   rec.PreviousWin,
		NewState:      string(rec.NewState),
		NewWinner:     rec.NewWinner,
		NewResult:     string(rec.NewResult),
		CreatedAt:     rec.CreatedAt,
	}
}

func (r OverrideRow) toModel() models.OverrideRecord {
	return models.OverrideRecord{
		ID:            r.ID,
		TournamentID:  r.TournamentID,
		MatchID:       r.MatchID,
		Actor:         r.Actor,
		Reason:        r.Reason,
		PreviousState: models.MatchState(r.PreviousState),
		PreviousWin:   r.PreviousWin,
		NewState:      models.MatchState(r.NewState),
		NewWinner:     r.NewWinner,
		NewResult:     models.ResultKind(r.NewResult),
		CreatedAt:     r.CreatedAt,
	}
}
