package models

import "time"

type Command struct {
	Command string                 `json:"command"`
	Data    map[string]interface{} `json:"data"`
}

type Response struct {
	Success bool        `json:"success"`
	Error   string      `json:"error,omitempty"`
	Ignored bool        `json:"ignored,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type EventKind string

const (
	EventRegistrationConfirmed EventKind = "registration_confirmed"
	EventMatchScheduled        EventKind = "match_scheduled"
	EventOpponentOnline        EventKind = "opponent_online"
	EventRoomRequested         EventKind = "room_requested"
	EventDeadlineApproaching   EventKind = "deadline_approaching"
	EventMatchCompleted        EventKind = "match_completed"
	EventMatchForfeited        EventKind = "match_forfeited"
	EventMatchCancelled        EventKind = "match_cancelled"
	EventRoundComplete         EventKind = "round_complete"
	EventPairingFailed         EventKind = "pairing_failed"
	EventPhaseChanged          EventKind = "phase_changed"
	EventTournamentComplete    EventKind = "tournament_complete"
	EventTournamentCancelled   EventKind = "tournament_cancelled"
)

// Event is the abstract notification handed to the delivery collaborator.
type Event struct {
	Kind          EventKind   `json:"kind"`
	TournamentID  string      `json:"tournamentId"`
	ParticipantID string      `json:"participantId,omitempty"`
	MatchID       string      `json:"matchId,omitempty"`
	Data          interface{} `json:"data,omitempty"`
	At            time.Time   `json:"at"`
}

// RoomRequest is the command sent to the game-room collaborator when a match
// enters room_active.
type RoomRequest struct {
	MatchID      string `json:"matchId"`
	TournamentID string `json:"tournamentId"`
	PlayerA      string `json:"playerA"`
	PlayerB      string `json:"playerB"`
}
