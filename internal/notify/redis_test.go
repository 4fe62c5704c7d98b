package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"championship-engine/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisPublisher_Deliver(t *testing.T) {
	client := newRedis(t)
	ctx := context.Background()
	sub := client.Subscribe(ctx, EventsChannel("t1"))
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	pub := NewRedisPublisher(client)
	require.NoError(t, pub.Deliver(ctx, models.Event{Kind: models.EventRoundComplete, TournamentID: "t1"}))

	select {
	case msg := <-sub.Channel():
		var got models.Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, models.EventRoundComplete, got.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("event not published")
	}
}

func TestRedisPublisher_RequestRoom(t *testing.T) {
	client := newRedis(t)
	ctx := context.Background()
	pub := NewRedisPublisher(client)
	req := models.RoomRequest{MatchID: "t1-r1-s0", TournamentID: "t1", PlayerA: "p1", PlayerB: "p2"}

	assert.Error(t, pub.RequestRoom(ctx, req), "nobody listening")

	sub := client.Subscribe(ctx, RoomRequestsChannel)
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, pub.RequestRoom(ctx, req))
	select {
	case msg := <-sub.Channel():
		var got models.RoomRequest
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, req, got)
	case <-time.After(2 * time.Second):
		t.Fatal("room request not published")
	}
}
