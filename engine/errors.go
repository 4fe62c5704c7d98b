package engine

import (
	"errors"
	"fmt"
	"strings"
)

// Fatal to automatic progression; surfaced to an operator.
var (
	ErrPairingInfeasible        = errors.New("pairing infeasible")
	ErrInsufficientQualifiers   = errors.New("insufficient qualifiers for elimination bracket")
	ErrInvalidDistributionTable = errors.New("invalid prize distribution table")
)

// Not failures: callers log these and drop the event.
var (
	ErrStaleEvent          = errors.New("stale event for terminal match ignored")
	ErrDuplicateTransition = errors.New("match transition lost compare-and-set")
)

// ErrVersionConflict is returned by Repository.SaveMatch when the stored
// match is newer than the write, or at the same version with other content.
// The lifecycle rolls the transition back and reports ErrDuplicateTransition.
var ErrVersionConflict = errors.New("persisted match version conflict")

// Registration and state errors
var (
	ErrTournamentNotFound    = errors.New("tournament not found")
	ErrTournamentExists      = errors.New("tournament already exists")
	ErrTournamentCancelled   = errors.New("tournament has been cancelled")
	ErrTournamentCompleted   = errors.New("tournament has already completed")
	ErrTournamentNotStarted  = errors.New("tournament has not started")
	ErrTournamentStarted     = errors.New("tournament has already started")
	ErrRegistrationNotOpen   = errors.New("tournament is not accepting registrations")
	ErrRegistrationClosed    = errors.New("registration deadline has passed")
	ErrTournamentFull        = errors.New("tournament is full")
	ErrAlreadyRegistered     = errors.New("participant already registered")
	ErrNotEnoughParticipants = errors.New("not enough participants to start tournament")
	ErrUnknownParticipant    = errors.New("participant is not registered in this tournament")

	ErrMatchNotFound        = errors.New("match not found")
	ErrMatchExists          = errors.New("match already scheduled")
	ErrInvalidTransition    = errors.New("invalid match transition")
	ErrParticipantBusy      = errors.New("participant already has an active match")
	ErrInvalidResult        = errors.New("winner is not a participant of the match")
	ErrOverrideConflict     = errors.New("override would rewrite an already paired bracket round")
	ErrNoPendingPairing     = errors.New("tournament is not waiting for a manual pairing")
	ErrInvalidManualPairing = errors.New("manual pairing is invalid")

	ErrInvalidConfig = errors.New("invalid tournament configuration")
)

// PairingInfeasibleError carries the operator context for ErrPairingInfeasible.
type PairingInfeasibleError struct {
	TournamentID string
	Round        int
	Unpaired     []string
}

func (e *PairingInfeasibleError) Error() string {
	return fmt.Sprintf("tournament %s round %d: no valid pairing for [%s]",
		e.TournamentID, e.Round, strings.Join(e.Unpaired, ", "))
}

func (e *PairingInfeasibleError) Is(target error) bool {
	return target == ErrPairingInfeasible
}

// BracketError carries the operator context for ErrInsufficientQualifiers.
type BracketError struct {
	TournamentID string
	Requested    int
	Available    int
}

func (e *BracketError) Error() string {
	return fmt.Sprintf("tournament %s: %v (requested %d, available %d)",
		e.TournamentID, ErrInsufficientQualifiers, e.Requested, e.Available)
}

func (e *BracketError) Is(target error) bool {
	return target == ErrInsufficientQualifiers
}

// DistributionTableError names the offending table and its basis point total.
type DistributionTableError struct {
	Table       string
	BasisPoints int
	Reason      string
}

func (e *DistributionTableError) Error() string {
	name := e.Table
	if name == "" {
		name = "custom"
	}
	return fmt.Sprintf("%v %q: %s (total %d bp)", ErrInvalidDistributionTable, name, e.Reason, e.BasisPoints)
}

func (e *DistributionTableError) Is(target error) bool {
	return target == ErrInvalidDistributionTable
}

// IsIgnorable reports whether err is a dropped event rather than a failure.
func IsIgnorable(err error) bool {
	return errors.Is(err, ErrStaleEvent) || errors.Is(err, ErrDuplicateTransition)
}
