package models

import "time"

type RoundKind string
type MatchState string
type ResultKind string

const (
	RoundSwiss       RoundKind = "swiss"
	RoundElimination RoundKind = "elimination"
	RoundQuarter     RoundKind = "quarter"
	RoundSemi        RoundKind = "semi"
	RoundFinal       RoundKind = "final"
	RoundThirdPlace  RoundKind = "third_place"
)

const (
	MatchCreated            MatchState = "created"
	MatchAwaitingBothOnline MatchState = "awaiting_both_online"
	MatchRoomActive         MatchState = "room_active"
	MatchCompleted          MatchState = "completed"
	MatchForfeited          MatchState = "forfeited"
	MatchDoubleForfeited    MatchState = "double_forfeited"
	MatchCancelled          MatchState = "cancelled"
)

const (
	ResultDecisive      ResultKind = "decisive"
	ResultDraw          ResultKind = "draw"
	ResultForfeit       ResultKind = "forfeit"
	ResultDoubleForfeit ResultKind = "double_forfeit"
	ResultBye           ResultKind = "bye"
)

func (s MatchState) IsTerminal() bool {
	switch s {
	case MatchCompleted, MatchForfeited, MatchDoubleForfeited, MatchCancelled:
		return true
	}
	return false
}

func (k RoundKind) IsBracket() bool {
	return k != RoundSwiss && k != ""
}

// Match is one game between two participants, or a bye.
type Match struct {
	ID           string     `json:"id"`
	TournamentID string     `json:"tournamentId"`
	Round        int        `json:"round"`
	Kind         RoundKind  `json:"kind"`
	Slot         int        `json:"slot"`
	PlayerA      string     `json:"playerA"`
	PlayerB      string     `json:"playerB,omitempty"` // empty for a bye
	CreatedAt    time.Time  `json:"createdAt"`
	Deadline     time.Time  `json:"deadline"`
	State        MatchState `json:"state"`
	WinnerID     string     `json:"winnerId,omitempty"`
	Result       ResultKind `json:"result,omitempty"`

	SeenA           bool       `json:"seenA"`
	SeenB           bool       `json:"seenB"`
	RoomRequestedAt *time.Time `json:"roomRequestedAt,omitempty"`
	RoomConfirmedAt *time.Time `json:"roomConfirmedAt,omitempty"`
	ReminderSent    bool       `json:"reminderSent"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
	Overridden      bool       `json:"overridden"`
	Version         int64      `json:"version"`
}

func (m *Match) IsBye() bool {
	return m.PlayerB == ""
}

func (m *Match) IsTerminal() bool {
	return m.State.IsTerminal()
}

func (m *Match) Involves(participantID string) bool {
	return participantID != "" && (m.PlayerA == participantID || m.PlayerB == participantID)
}

// Opponent returns the other side of the match, or "" for a bye.
func (m *Match) Opponent(participantID string) string {
	switch participantID {
	case m.PlayerA:
		return m.PlayerB
	case m.PlayerB:
		return m.PlayerA
	}
	return ""
}

// Loser is only meaningful for decisive, forfeit and bye results.
func (m *Match) Loser() string {
	if m.WinnerID == "" {
		return ""
	}
	return m.Opponent(m.WinnerID)
}

// RoundSlot is one planned board of a round. A bracket slot that nobody
// advanced into has no match.
type RoundSlot struct {
	Slot    int       `json:"slot"`
	Kind    RoundKind `json:"kind,omitempty"` // differs from the round only for the third-place board
	MatchID string    `json:"matchId,omitempty"`
	PlayerA string    `json:"playerA,omitempty"`
	PlayerB string    `json:"playerB,omitempty"`
}

// Round is one pairing round of a tournament.
type Round struct {
	TournamentID string      `json:"tournamentId"`
	Number       int         `json:"number"`
	Kind         RoundKind   `json:"kind"`
	Slots        []RoundSlot `json:"slots"`
	Complete     bool        `json:"complete"`
}

func (r *Round) MatchIDs() []string {
	ids := make([]string, 0, len(r.Slots))
	for _, s := range r.Slots {
		if s.MatchID != "" {
			ids = append(ids, s.MatchID)
		}
	}
	return ids
}

// OverrideRecord is the audit row written for every privileged correction.
type OverrideRecord struct {
	ID            string     `json:"id"`
	TournamentID  string     `json:"tournamentId"`
	MatchID       string     `json:"matchId"`
	Actor         string     `json:"actor"`
	Reason        string     `json:"reason"`
	PreviousState MatchState `json:"previousState"`
	PreviousWin   string     `json:"previousWinner,omitempty"`
	NewState      MatchState `json:"newState"`
	NewWinner     string     `json:"newWinner,omitempty"`
	NewResult     ResultKind `json:"newResult"`
	CreatedAt     time.Time  `json:"createdAt"`
}
