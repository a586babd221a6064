package webview

import (
	"context"
	"net/http"
	"strings"

	"astromine-go/internal/api"
	"astromine-go/internal/models"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const usernameHeader = "X-Username"

// Server exposes the webview protocol over websockets.
type Server struct {
	svc      *api.GameService
	hub      *Hub
	cfg      models.ServerConfig
	upgrader websocket.Upgrader
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewServer(svc *api.GameService, cfg models.ServerConfig) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		svc: svc,
		hub: NewHub(),
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		ctx:    ctx,
		cancel: cancel,
	}
	go s.hub.Run()
	return s
}

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /posts/{postId}/ws", s.serveWs)
	mux.HandleFunc("GET /healthz", s.serveHealth)
	return mux
}

// Close disconnects every session.
func (s *Server) Close() {
	s.cancel()
	s.hub.Stop()
}

func (s *Server) serveHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.HealthCheck(r.Context()); err != nil {
		zap.L().Warn("Health check failed", zap.Error(err))
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Write([]byte("ok"))
}

func (s *Server) serveWs(w http.ResponseWriter, r *http.Request) {
	caller := models.Caller{
		PlayerId: strings.TrimSpace(r.Header.Get(usernameHeader)),
		PostId:   r.PathValue("postId"),
	}
	if caller.PlayerId == "" {
		caller.PlayerId = models.AnonymousPlayer
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.L().Warn("Websocket upgrade failed", zap.Error(err))
		return
	}

	session := newSession(s.hub, conn, s.svc, caller, s.cfg)
	if !s.hub.connect(session) {
		conn.Close()
		return
	}

	zap.L().Info("Webview connected",
		zap.String("player_id", caller.PlayerId),
		zap.String("post_id", caller.PostId))

	go session.writePump()
	go session.readPump(s.ctx, s.cfg.ReadLimit)
}
