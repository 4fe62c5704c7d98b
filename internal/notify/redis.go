package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"championship-engine/models"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const (
	EventsChannelPrefix = "championship:events:"
	RoomRequestsChannel = "championship:rooms:request"
)

// RedisPublisher fans events out over pub/sub and sends request_room to the
// game-room service. It is both a Sink and an engine.RoomRequester.
type RedisPublisher struct {
	redis redis.Cmdable
}

// NewRedisPublisher creates a publisher on the given Redis client.
func NewRedisPublisher(client redis.Cmdable) *RedisPublisher {
	return &RedisPublisher{redis: client}
}

// EventsChannel is the pub/sub channel of one tournament's events.
func EventsChannel(tournamentID string) string {
	return EventsChannelPrefix + tournamentID
}

// Deliver publishes the event on its tournament channel.
func (p *RedisPublisher) Deliver(ctx context.Context, event models.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.redis.Publish(ctx, EventsChannel(event.TournamentID), data).Err()
}

// RequestRoom fails when no game-room service is subscribed, so the
// lifecycle retries the request later.
func (p *RedisPublisher) RequestRoom(ctx context.Context, req models.RoomRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}
	receivers, err := p.redis.Publish(ctx, RoomRequestsChannel, data).Result()
	if err != nil {
		return fmt.Errorf("publish room request %s: %w", req.MatchID, err)
	}
	if receivers == 0 {
		return fmt.Errorf("room request %s: no game-room service listening", req.MatchID)
	}
	log.Debugf("[ROOMS] Published room request %s to %d listener(s)", req.MatchID, receivers)
	return nil
}
