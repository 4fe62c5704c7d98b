package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"championship-engine/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T) (*TCPServer, net.Conn, *bufio.Reader) {
	t.Helper()
	h, _, _ := newHandler(t)
	srv := NewTCPServer("127.0.0.1:0", h)
	require.NoError(t, srv.Listen())
	go srv.Serve()
	t.Cleanup(srv.Stop)

	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return srv, conn, bufio.NewReader(conn)
}

func roundTrip(t *testing.T, conn net.Conn, r *bufio.Reader, line string) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetDeadline(time.Now().Add(2*time.Second)))
	_, err := conn.Write([]byte(line + "\n"))
	require.NoError(t, err)
	reply, err := r.ReadBytes('\n')
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(reply, &out))
	return out
}

func TestTCPServer_Commands(t *testing.T) {
	_, conn, r := startServer(t)

	out := roundTrip(t, conn, r, `{"command":"participant.registered","data":{"tournamentId":"cup","participantId":"p1"}}`)
	assert.Equal(t, true, out["success"])

	out = roundTrip(t, conn, r, `not json`)
	assert.Equal(t, false, out["success"])
	assert.Contains(t, out["error"], "invalid JSON")

	out = roundTrip(t, conn, r, `{"command":"tournament.list"}`)
	assert.Equal(t, true, out["success"])
}

func TestTCPServer_PushesEvents(t *testing.T) {
	srv, conn, r := startServer(t)
	// the connection is registered once a command has been answered
	roundTrip(t, conn, r, `{"command":"tournament.list"}`)

	require.NoError(t, srv.Deliver(context.Background(), models.Event{Kind: models.EventRoundComplete, TournamentID: "cup"}))
	line, err := r.ReadBytes('\n')
	require.NoError(t, err)

	var frame struct {
		Type  string       `json:"type"`
		Event models.Event `json:"event"`
	}
	require.NoError(t, json.Unmarshal(line, &frame))
	assert.Equal(t, "event", frame.Type)
	assert.Equal(t, models.EventRoundComplete, frame.Event.Kind)
}
