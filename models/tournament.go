package models

import "time"

type Format string
type TournamentStatus string
type Phase string

const (
	FormatSwissElimination Format = "swiss_elimination"
	FormatSwissOnly        Format = "swiss_only"
	FormatEliminationOnly  Format = "elimination_only"
)

const (
	StatusUpcoming         TournamentStatus = "upcoming"
	StatusRegistrationOpen TournamentStatus = "registration_open"
	StatusInProgress       TournamentStatus = "in_progress"
	StatusCompleted        TournamentStatus = "completed"
	StatusCancelled        TournamentStatus = "cancelled"
)

const (
	PhaseRegistration Phase = "registration"
	PhaseSwiss        Phase = "swiss"
	PhaseElimination  Phase = "elimination"
	PhaseFinished     Phase = "finished"
)

// PrizeBucket pays BasisPoints of the pool to each final position in From..To.
type PrizeBucket struct {
	From        int `json:"from"`
	To          int `json:"to"`
	BasisPoints int `json:"basisPoints"`
}

type PrizeTable struct {
	Name    string        `json:"name,omitempty"`
	Buckets []PrizeBucket `json:"buckets"`
}

type CreditBucket struct {
	From    int   `json:"from"`
	To      int   `json:"to"`
	Credits int64 `json:"credits"`
}

// CreditTable is independent of the pool: every participant receives
// Participation, plus the bucket bonus for their final position, plus PerWin
// for each win recorded in the standings.
type CreditTable struct {
	Participation int64          `json:"participation"`
	PerWin        int64          `json:"perWin"`
	Buckets       []CreditBucket `json:"buckets,omitempty"`
}

// TournamentConfig holds the rules a tournament runs under.
type TournamentConfig struct {
	Capacity             int           `json:"capacity"` // 0 means unlimited
	RegistrationDeadline time.Time     `json:"registrationDeadline"`
	MatchWindow          time.Duration `json:"matchWindow"`
	Format               Format        `json:"format"`
	SwissRounds          int           `json:"swissRounds,omitempty"` // 0 means ceil(log2(participants))
	Qualifiers           int           `json:"qualifiers,omitempty"`
	ThirdPlaceMatch      bool          `json:"thirdPlaceMatch"`
	PrizeTable           PrizeTable    `json:"prizeTable"`
	CreditTable          CreditTable   `json:"creditTable"`

	// A double forfeit is a loss for both participants unless
	// ExcludeDoubleForfeits leaves it out of the standings entirely.
	ExcludeDoubleForfeits bool          `json:"excludeDoubleForfeits"`
	ReminderLead          time.Duration `json:"reminderLead,omitempty"`
}

// Tournament is the top-level competition record.
type Tournament struct {
	ID                   string           `json:"id"`
	Name                 string           `json:"name"`
	EntryFee             int64            `json:"entryFee"`
	Pool                 int64            `json:"pool"`
	Config               TournamentConfig `json:"config"`
	Status               TournamentStatus `json:"status"`
	Phase                Phase            `json:"phase"`
	CurrentRound         int              `json:"currentRound"`
	SwissRoundsPlanned   int              `json:"swissRoundsPlanned,omitempty"`
	PendingManualPairing bool             `json:"pendingManualPairing"`
	// Settled is set once every completion hook has succeeded.
	Settled              bool             `json:"settled"`
	CreatedAt            time.Time        `json:"createdAt"`
	StartedAt            *time.Time       `json:"startedAt,omitempty"`
	CompletedAt          *time.Time       `json:"completedAt,omitempty"`
}

func (t *Tournament) IsClosed() bool {
	return t.Status == StatusCompleted || t.Status == StatusCancelled
}

func (t *Tournament) HasCapacity(registered int) bool {
	return t.Config.Capacity <= 0 || registered < t.Config.Capacity
}

// Participant is a registered entrant of one tournament.
type Participant struct {
	ID                string    `json:"id"`
	TournamentID      string    `json:"tournamentId"`
	RegisteredAt      time.Time `json:"registeredAt"`
	RegistrationOrder int       `json:"registrationOrder"`
	Seed              *int      `json:"seed,omitempty"`
}
