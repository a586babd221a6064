package webview

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"astromine-go/internal/api"
	"astromine-go/internal/models"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 32
)

// Session is the state of one webview connection. Everything a handler
// needs about the player lives here rather than in package state.
type Session struct {
	hub     *Hub
	conn    *websocket.Conn
	svc     *api.GameService
	caller  models.Caller
	limiter *rate.Limiter

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func newSession(hub *Hub, conn *websocket.Conn, svc *api.GameService, caller models.Caller, cfg models.ServerConfig) *Session {
	// A zero rate disables limiting.
	limit := rate.Limit(cfg.MessagesPerSecond)
	if cfg.MessagesPerSecond <= 0 {
		limit = rate.Inf
	}
	return &Session{
		hub:     hub,
		conn:    conn,
		svc:     svc,
		caller:  caller,
		limiter: rate.NewLimiter(limit, cfg.Burst),
		send:    make(chan []byte, sendBufferSize),
	}
}

// deliver queues payload without blocking. It reports false when the
// session is closed or its buffer is full.
func (s *Session) deliver(payload []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.send <- payload:
		return true
	default:
		return false
	}
}

func (s *Session) shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.send)
	}
}

func (s *Session) reply(msgType string, data interface{}) {
	payload, err := encode(msgType, data)
	if err != nil {
		zap.L().Error("Failed to encode webview message", zap.String("type", msgType), zap.Error(err))
		return
	}
	if !s.deliver(payload) {
		zap.L().Warn("Dropped webview message",
			zap.String("type", msgType),
			zap.String("player_id", s.caller.PlayerId))
	}
}

func (s *Session) readPump(ctx context.Context, readLimit int64) {
	defer func() {
		s.hub.disconnect(s)
		s.shutdown()
		s.conn.Close()
	}()

	if readLimit > 0 {
		s.conn.SetReadLimit(readLimit)
	}
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	ctx = models.WithCaller(ctx, s.caller)
	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				zap.L().Warn("Webview read error", zap.String("player_id", s.caller.PlayerId), zap.Error(err))
			}
			return
		}

		if !s.limiter.Allow() {
			s.reply(TypeError, models.ErrorResponse{ErrorKind: ErrorKindLimited, Message: "Slow down."})
			continue
		}
		s.handle(ctx, message)
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case message, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handle dispatches one request frame to its handler.
func (s *Session) handle(ctx context.Context, message []byte) {
	var env Envelope
	if err := json.Unmarshal(message, &env); err != nil {
		s.reply(TypeError, models.ErrorResponse{ErrorKind: ErrorKindBadInput, Message: "Malformed message."})
		return
	}

	switch env.Type {
	case TypeWebViewReady:
		s.handleReady(ctx)
	case TypeMiningStart:
		var data MiningStartData
		if !s.decode(env.Data, &data) {
			return
		}
		s.handleMining(ctx, data)
	case TypeLeaderboard:
		var data LeaderboardRequestData
		if len(env.Data) > 0 && !s.decode(env.Data, &data) {
			return
		}
		s.handleLeaderboard(ctx, data)
	default:
		s.reply(TypeError, models.ErrorResponse{ErrorKind: ErrorKindUnknown, Message: "Unknown message type " + env.Type + "."})
	}
}

func (s *Session) decode(raw json.RawMessage, v interface{}) bool {
	if err := json.Unmarshal(raw, v); err != nil {
		s.reply(TypeError, models.ErrorResponse{ErrorKind: ErrorKindBadInput, Message: "Malformed message data."})
		return false
	}
	return true
}

func (s *Session) handleReady(ctx context.Context) {
	data, err := s.svc.InitialData(ctx)
	if err != nil {
		s.reply(TypeError, api.ErrorResponseFor(err))
		return
	}
	s.reply(TypeInitialData, data)
}

func (s *Session) handleMining(ctx context.Context, req MiningStartData) {
	resp, err := s.svc.Mine(ctx, models.MineRequest{Tool: req.Tool})
	if err != nil {
		s.reply(TypeMiningError, api.ErrorResponseFor(err))
		return
	}
	s.reply(TypeMiningResult, resp)

	payload, err := encode(TypeLeaderboard, LeaderboardData{Entries: resp.LeaderboardTop})
	if err != nil {
		zap.L().Error("Failed to encode leaderboard broadcast", zap.Error(err))
		return
	}
	s.hub.publish(postMessage{postId: s.caller.PostId, payload: payload, except: s})
}

func (s *Session) handleLeaderboard(ctx context.Context, req LeaderboardRequestData) {
	entries, err := s.svc.Leaderboard(ctx, s.caller.PostId, req.Limit)
	if err != nil {
		s.reply(TypeError, api.ErrorResponseFor(err))
		return
	}
	s.reply(TypeLeaderboard, LeaderboardData{Entries: entries})
}
