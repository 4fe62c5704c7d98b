package api

import (
	"errors"
	"net/http"

	"championship-engine/engine"
	"championship-engine/internal/credits"
	"championship-engine/internal/store"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrTournamentNotFound),
		errors.Is(err, engine.ErrMatchNotFound),
		errors.Is(err, engine.ErrUnknownParticipant),
		errors.Is(err, credits.ErrAccountNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrInvalidConfig),
		errors.Is(err, engine.ErrInvalidDistributionTable),
		errors.Is(err, engine.ErrInvalidResult),
		errors.Is(err, engine.ErrInvalidManualPairing):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrTournamentExists),
		errors.Is(err, engine.ErrAlreadyRegistered),
		errors.Is(err, engine.ErrTournamentFull),
		errors.Is(err, engine.ErrRegistrationClosed),
		errors.Is(err, engine.ErrRegistrationNotOpen),
		errors.Is(err, engine.ErrTournamentStarted),
		errors.Is(err, engine.ErrTournamentNotStarted),
		errors.Is(err, engine.ErrTournamentCancelled),
		errors.Is(err, engine.ErrTournamentCompleted),
		errors.Is(err, engine.ErrNotEnoughParticipants),
		errors.Is(err, engine.ErrInvalidTransition),
		errors.Is(err, engine.ErrParticipantBusy),
		errors.Is(err, engine.ErrOverrideConflict),
		errors.Is(err, engine.ErrNoPendingPairing),
		errors.Is(err, engine.ErrMatchExists):
		return http.StatusConflict
	case errors.Is(err, engine.ErrPairingInfeasible),
		errors.Is(err, engine.ErrInsufficientQualifiers):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.WithError(err).WithField("path", c.FullPath()).Error("[API] Request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
