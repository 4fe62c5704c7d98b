package models

type StandingEntry struct {
	TournamentID  string  `json:"tournamentId"`
	ParticipantID string  `json:"participantId"`
	MatchesPlayed int     `json:"matchesPlayed"`
	Wins          int     `json:"wins"`
	Draws         int     `json:"draws"`
	Losses        int     `json:"losses"`
	Byes          int     `json:"byes"`
	Points        float64 `json:"points"`
	TieBreak      float64 `json:"tieBreak"`
	Rank          int     `json:"rank"`
	FinalPosition int     `json:"finalPosition,omitempty"`
	Prize         int64   `json:"prize"`
	Credits       int64   `json:"credits"`
}
