package server

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"championship-engine/engine"
	"championship-engine/internal/presence"
	"championship-engine/models"

	log "github.com/sirupsen/logrus"
)

const commandTimeout = 30 * time.Second

// CommandHandler maps collaborator commands onto the engine.
type CommandHandler struct {
	engine   *engine.Engine
	presence presence.Tracker
}

// NewCommandHandler takes an optional presence tracker that is kept current
// from participant.online / participant.offline.
func NewCommandHandler(e *engine.Engine, tracker presence.Tracker) *CommandHandler {
	return &CommandHandler{engine: e, presence: tracker}
}

// Handle executes one TCP command against the engine and builds its response.
func (h *CommandHandler) Handle(ctx context.Context, cmd models.Command) models.Response {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	switch cmd.Command {
	case "participant.registered":
		return h.handleRegistered(ctx, cmd.Data)
	case "participant.online":
		return h.handleOnline(ctx, cmd.Data)
	case "participant.offline":
		return h.handleOffline(ctx, cmd.Data)
	case "room.created":
		return h.handleRoomCreated(ctx, cmd.Data)
	case "match.result":
		return h.handleMatchResult(ctx, cmd.Data)
	case "match.get":
		return h.handleGetMatch(cmd.Data)
	case "tournament.get":
		return h.handleGetTournament(ctx, cmd.Data)
	case "tournament.list":
		return models.Response{Success: true, Data: map[string]interface{}{"tournaments": h.engine.ListTournaments()}}
	default:
		return models.Response{Success: false, Error: fmt.Sprintf("unknown command: %s", cmd.Command)}
	}
}

func (h *CommandHandler) handleRegistered(ctx context.Context, data map[string]interface{}) models.Response {
	tournamentID := getString(data, "tournamentId")
	participantID := getString(data, "participantId")
	if tournamentID == "" || participantID == "" {
		return errorResponse(errors.New("tournamentId and participantId are required"))
	}
	p, err := h.engine.Register(ctx, tournamentID, participantID)
	if err != nil {
		return errorResponse(err)
	}
	return models.Response{Success: true, Data: p}
}

func (h *CommandHandler) handleOnline(ctx context.Context, data map[string]interface{}) models.Response {
	participantID := getString(data, "participantId")
	if participantID == "" {
		return errorResponse(errors.New("participantId is required"))
	}
	if h.presence != nil {
		if err := h.presence.MarkOnline(ctx, participantID); err != nil {
			log.Printf("[TCP] WARNING: could not record presence for %s: %v", participantID, err)
		}
	}
	return ignorable(h.engine.ParticipantOnline(ctx, participantID), nil)
}

func (h *CommandHandler) handleOffline(ctx context.Context, data map[string]interface{}) models.Response {
	participantID := getString(data, "participantId")
	if participantID == "" {
		return errorResponse(errors.New("participantId is required"))
	}
	if h.presence != nil {
		if err := h.presence.MarkOffline(ctx, participantID); err != nil {
			return errorResponse(err)
		}
	}
	return models.Response{Success: true}
}

func (h *CommandHandler) handleRoomCreated(ctx context.Context, data map[string]interface{}) models.Response {
	matchID := getString(data, "matchId")
	return ignorable(h.engine.RoomCreated(ctx, matchID), nil)
}

func (h *CommandHandler) handleMatchResult(ctx context.Context, data map[string]interface{}) models.Response {
	matchID := getString(data, "matchId")
	winnerID := getString(data, "winnerId")
	draw := getBool(data, "draw")
	m, err := h.engine.RecordResult(ctx, matchID, winnerID, draw)
	return ignorable(err, m)
}

func (h *CommandHandler) handleGetMatch(data map[string]interface{}) models.Response {
	m, err := h.engine.Match(getString(data, "matchId"))
	if err != nil {
		return errorResponse(err)
	}
	return models.Response{Success: true, Data: m}
}

func (h *CommandHandler) handleGetTournament(ctx context.Context, data map[string]interface{}) models.Response {
	snap, err := h.engine.Snapshot(ctx, getString(data, "tournamentId"))
	if err != nil {
		return errorResponse(err)
	}
	return models.Response{Success: true, Data: snap}
}

// ignorable turns stale and duplicate events into a successful, flagged
// response so the sender does not retry them.
func ignorable(err error, data interface{}) models.Response {
	if err == nil {
		return models.Response{Success: true, Data: data}
	}
	if engine.IsIgnorable(err) {
		log.Printf("[TCP] Ignored event: %v", err)
		return models.Response{Success: true, Ignored: true, Error: err.Error()}
	}
	return errorResponse(err)
}

func errorResponse(err error) models.Response {
	return models.Response{Success: false, Error: err.Error()}
}

func getString(data map[string]interface{}, key string) string {
	if val, ok := data[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

func getBool(data map[string]interface{}, key string) bool {
	if val, ok := data[key]; ok {
		switch v := val.(type) {
		case bool:
			return v
		case string:
			b, _ := strconv.ParseBool(v)
			return b
		case float64:
			return v != 0
		}
	}
	return false
}
