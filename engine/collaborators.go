package engine

import (
	"context"
	"time"

	"championship-engine/models"
)

// Clock is the monotonic time source used for deadline comparison.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// PresenceTracker answers whether a participant is currently online.
type PresenceTracker interface {
	IsOnline(ctx context.Context, participantID string) bool
}

// RoomRequester issues request_room to the game-room collaborator.
type RoomRequester interface {
	RequestRoom(ctx context.Context, req models.RoomRequest) error
}

// Notifier hands events to the delivery collaborator. Implementations must
// not block on delivery.
type Notifier interface {
	Notify(event models.Event)
}

// Repository is the persist hook. Every call must be idempotent on replay.
// SaveMatch is a compare-and-set on Version: it returns ErrVersionConflict
// unless the write is newer than the stored row or an identical replay.
type Repository interface {
	SaveTournament(ctx context.Context, t *models.Tournament) error
	SaveParticipant(ctx context.Context, p *models.Participant) error
	SaveRound(ctx context.Context, r *models.Round) error
	SaveMatch(ctx context.Context, m *models.Match) error
	SaveStandings(ctx context.Context, tournamentID string, entries []models.StandingEntry) error
	SaveOverride(ctx context.Context, rec *models.OverrideRecord) error
}

// UnsettledLoader is implemented by repositories that can list completed
// tournaments whose completion hooks have not all succeeded.
type UnsettledLoader interface {
	LoadUnsettled(ctx context.Context) ([]RestoredTournament, error)
}

// Locker provides the per-tournament mutual-exclusion scope.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// CompletionHook runs after a tournament completes and its results are persisted.
type CompletionHook interface {
	OnTournamentComplete(ctx context.Context, snapshot Snapshot) error
}

type nopNotifier struct{}

func (nopNotifier) Notify(models.Event) {}

type nopRooms struct{}

func (nopRooms) RequestRoom(context.Context, models.RoomRequest) error { return nil }

type nopRepository struct{}

func (nopRepository) SaveTournament(context.Context, *models.Tournament) error   { return nil }
func (nopRepository) SaveParticipant(context.Context, *models.Participant) error { return nil }
func (nopRepository) SaveRound(context.Context, *models.Round) error             { return nil }
func (nopRepository) SaveMatch(context.Context, *models.Match) error             { return nil }
func (nopRepository) SaveStandings(context.Context, string, []models.StandingEntry) error {
	return nil
}
func (nopRepository) SaveOverride(context.Context, *models.OverrideRecord) error { return nil }
