package webview

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"astromine-go/internal/api"
	"astromine-go/internal/asteroid"
	"astromine-go/internal/config"
	"astromine-go/internal/inventory"
	"astromine-go/internal/leaderboard"
	"astromine-go/internal/memstore"
	"astromine-go/internal/mining"
	"astromine-go/internal/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPost = "t3_webview"

type fixture struct {
	server   *httptest.Server
	registry *asteroid.Registry
}

func setupServer(t *testing.T, cfg models.ServerConfig) *fixture {
	t.Helper()

	kv := memstore.NewStore(models.MemoryConfig{CleanupInterval: time.Minute})
	rules := config.DefaultRules()
	registry := asteroid.NewRegistry(kv, time.Hour, nil)
	ledger := inventory.NewLedger(kv, rules)
	board := leaderboard.New(kv)
	miner := mining.NewMiner(registry, ledger, board, rules, nil)
	svc := api.NewGameService(kv, registry, ledger, board, miner, rules)

	srv := NewServer(svc, cfg)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Close()
		ts.Close()
		kv.Close()
	})
	return &fixture{server: ts, registry: registry}
}

func defaultServerConfig() models.ServerConfig {
	return models.ServerConfig{MessagesPerSecond: 1000, Burst: 100, ReadLimit: 4096}
}

func (f *fixture) dial(t *testing.T, player string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/posts/" + testPost + "/ws"
	header := http.Header{}
	if player != "" {
		header.Set(usernameHeader, player)
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msgType string, data interface{}) {
	t.Helper()
	frame := map[string]interface{}{"type": msgType}
	if data != nil {
		frame["data"] = data
	}
	require.NoError(t, conn.WriteJSON(frame))
}

func receive(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var env Envelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func TestReadyReturnsInitialData(t *testing.T) {
	f := setupServer(t, defaultServerConfig())
	_, err := f.registry.Create(context.Background(), testPost)
	require.NoError(t, err)

	conn := f.dial(t, "alice")
	send(t, conn, TypeWebViewReady, nil)

	env := receive(t, conn)
	require.Equal(t, TypeInitialData, env.Type)

	var data models.InitialData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "alice", data.Username)
	assert.Equal(t, testPost, data.PostId)
	assert.Equal(t, int64(3), data.Equipment[models.ToolShovel])
	require.NotNil(t, data.Asteroid)
}

func TestAnonymousPlayer(t *testing.T) {
	f := setupServer(t, defaultServerConfig())

	conn := f.dial(t, "")
	send(t, conn, TypeWebViewReady, nil)

	env := receive(t, conn)
	require.Equal(t, TypeInitialData, env.Type)
	var data models.InitialData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, models.AnonymousPlayer, data.Username)
	assert.Nil(t, data.Asteroid)
}

func TestMiningBroadcastsLeaderboard(t *testing.T) {
	f := setupServer(t, defaultServerConfig())
	_, err := f.registry.Create(context.Background(), testPost)
	require.NoError(t, err)

	alice := f.dial(t, "alice")
	bob := f.dial(t, "bob")

	// Both sessions are registered once they have answered a request.
	send(t, alice, TypeWebViewReady, nil)
	require.Equal(t, TypeInitialData, receive(t, alice).Type)
	send(t, bob, TypeWebViewReady, nil)
	require.Equal(t, TypeInitialData, receive(t, bob).Type)

	send(t, alice, TypeMiningStart, MiningStartData{Tool: "shovel"})
	env := receive(t, alice)
	require.Equal(t, TypeMiningResult, env.Type)

	var result models.MineResponse
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, int64(2), result.Equipment[models.ToolShovel])
	require.Len(t, result.LeaderboardTop, 1)
	assert.Equal(t, "alice", result.LeaderboardTop[0].PlayerId)

	env = receive(t, bob)
	require.Equal(t, TypeLeaderboard, env.Type)
	var board LeaderboardData
	require.NoError(t, json.Unmarshal(env.Data, &board))
	assert.Equal(t, result.LeaderboardTop, board.Entries)
}

func TestMiningErrors(t *testing.T) {
	f := setupServer(t, defaultServerConfig())
	conn := f.dial(t, "alice")
	send(t, conn, TypeWebViewReady, nil)
	require.Equal(t, TypeInitialData, receive(t, conn).Type)

	send(t, conn, TypeMiningStart, MiningStartData{Tool: "shovel"})
	env := receive(t, conn)
	require.Equal(t, TypeMiningError, env.Type)
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, models.ErrorKindAsteroidDepleted, resp.ErrorKind)

	send(t, conn, TypeMiningStart, MiningStartData{Tool: "laser"})
	env = receive(t, conn)
	require.Equal(t, TypeMiningError, env.Type)
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, models.ErrorKindUnknownTool, resp.ErrorKind)
}

func TestLeaderboardRequest(t *testing.T) {
	f := setupServer(t, defaultServerConfig())
	conn := f.dial(t, "alice")

	send(t, conn, TypeLeaderboard, LeaderboardRequestData{Limit: 5})
	env := receive(t, conn)
	require.Equal(t, TypeLeaderboard, env.Type)
	var board LeaderboardData
	require.NoError(t, json.Unmarshal(env.Data, &board))
	assert.Empty(t, board.Entries)

	send(t, conn, TypeLeaderboard, nil)
	assert.Equal(t, TypeLeaderboard, receive(t, conn).Type)
}

func TestProtocolErrors(t *testing.T) {
	f := setupServer(t, defaultServerConfig())
	conn := f.dial(t, "alice")

	tests := []struct {
		name  string
		frame string
		kind  string
	}{
		{name: "unknown type", frame: `{"type":"teleport"}`, kind: ErrorKindUnknown},
		{name: "malformed json", frame: `{"type":`, kind: ErrorKindBadInput},
		{name: "malformed data", frame: `{"type":"miningStart","data":"shovel"}`, kind: ErrorKindBadInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(tt.frame)))
			env := receive(t, conn)
			require.Equal(t, TypeError, env.Type)
			var resp models.ErrorResponse
			require.NoError(t, json.Unmarshal(env.Data, &resp))
			assert.Equal(t, tt.kind, resp.ErrorKind)
		})
	}
}

func TestRateLimit(t *testing.T) {
	f := setupServer(t, models.ServerConfig{MessagesPerSecond: 0.001, Burst: 1})
	conn := f.dial(t, "alice")

	send(t, conn, TypeLeaderboard, nil)
	assert.Equal(t, TypeLeaderboard, receive(t, conn).Type)

	send(t, conn, TypeLeaderboard, nil)
	env := receive(t, conn)
	require.Equal(t, TypeError, env.Type)
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, ErrorKindLimited, resp.ErrorKind)
}

func TestHealthz(t *testing.T) {
	f := setupServer(t, defaultServerConfig())

	resp, err := http.Get(f.server.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHubSkipsSlowSessions(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	slow := &Session{caller: models.Caller{PlayerId: "slow", PostId: testPost}, send: make(chan []byte, 1)}
	fast := &Session{caller: models.Caller{PlayerId: "fast", PostId: testPost}, send: make(chan []byte, 1)}
	slow.send <- []byte("backlog")
	require.True(t, hub.connect(slow))
	require.True(t, hub.connect(fast))

	hub.publish(postMessage{postId: testPost, payload: []byte("hi")})

	select {
	case msg := <-fast.send:
		assert.Equal(t, "hi", string(msg))
	case <-time.After(5 * time.Second):
		t.Fatal("fast session did not receive the broadcast")
	}

	// Registration is handled by Run, so the broadcast is fully processed
	// once another connect returns.
	late := &Session{caller: models.Caller{PlayerId: "late", PostId: testPost}, send: make(chan []byte, 1)}
	require.True(t, hub.connect(late))

	slow.mu.Lock()
	closed := slow.closed
	slow.mu.Unlock()
	assert.True(t, closed)
	assert.False(t, slow.deliver([]byte("again")))
}
