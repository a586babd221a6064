package webview

import (
	"go.uber.org/zap"
)

type postMessage struct {
	postId  string
	payload []byte
	except  *Session
}

// Hub tracks open sessions per post and fans out broadcasts to them.
type Hub struct {
	sessions   map[string]map[*Session]struct{}
	register   chan *Session
	unregister chan *Session
	broadcast  chan postMessage
	stopChan   chan struct{}
	doneChan   chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		sessions:   make(map[string]map[*Session]struct{}),
		register:   make(chan *Session),
		unregister: make(chan *Session),
		broadcast:  make(chan postMessage, 64),
		stopChan:   make(chan struct{}),
		doneChan:   make(chan struct{}),
	}
}

func (h *Hub) Run() {
	defer close(h.doneChan)

	for {
		select {
		case s := <-h.register:
			post := h.sessions[s.caller.PostId]
			if post == nil {
				post = make(map[*Session]struct{})
				h.sessions[s.caller.PostId] = post
			}
			post[s] = struct{}{}
			zap.L().Debug("Webview session registered",
				zap.String("player_id", s.caller.PlayerId),
				zap.String("post_id", s.caller.PostId))
		case s := <-h.unregister:
			h.remove(s)
		case msg := <-h.broadcast:
			for s := range h.sessions[msg.postId] {
				if s == msg.except {
					continue
				}
				if !s.deliver(msg.payload) {
					h.remove(s)
				}
			}
		case <-h.stopChan:
			for _, post := range h.sessions {
				for s := range post {
					s.shutdown()
				}
			}
			h.sessions = map[string]map[*Session]struct{}{}
			return
		}
	}
}

func (h *Hub) remove(s *Session) {
	post, ok := h.sessions[s.caller.PostId]
	if !ok {
		return
	}
	if _, ok := post[s]; !ok {
		return
	}
	delete(post, s)
	s.shutdown()
	if len(post) == 0 {
		delete(h.sessions, s.caller.PostId)
	}
}

// Stop closes every session and ends Run.
func (h *Hub) Stop() {
	close(h.stopChan)
	<-h.doneChan
}

func (h *Hub) publish(msg postMessage) {
	select {
	case h.broadcast <- msg:
	case <-h.stopChan:
	}
}

// connect and disconnect are safe to call after Stop.
func (h *Hub) connect(s *Session) bool {
	select {
	case h.register <- s:
		return true
	case <-h.stopChan:
		return false
	}
}

func (h *Hub) disconnect(s *Session) {
	select {
	case h.unregister <- s:
	case <-h.stopChan:
	}
}
