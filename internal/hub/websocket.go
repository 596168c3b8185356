package hub

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"peerlink/internal/domain"
	"peerlink/internal/protocol/frame"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxFrameBytes  = 1 << 20
	sendBufferSize = 64
)

// peer is one live websocket session. writePump is the only writer.
type peer struct {
	user domain.Username
	conn *websocket.Conn
	send chan []byte
	log  zerolog.Logger

	once sync.Once
	done chan struct{}
}

func (p *peer) close() {
	p.once.Do(func() {
		close(p.done)
		_ = p.conn.Close()
	})
}

// deliver queues raw for p without blocking. A peer that cannot keep up is
// disconnected.
func (p *peer) deliver(raw []byte) {
	select {
	case p.send <- raw:
	case <-p.done:
	default:
		p.log.Warn().Msg("send buffer full, dropping session")
		p.close()
	}
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request, user domain.Username) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		s.log.Warn().Err(err).Str("user", user.String()).Msg("upgrade failed")
		return
	}
	p := &peer{
		user: user,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		log:  s.log.With().Str("user", user.String()).Logger(),
		done: make(chan struct{}),
	}

	s.mu.Lock()
	prev := s.peers[user]
	s.peers[user] = p
	s.mu.Unlock()
	if prev != nil {
		prev.close()
	}
	p.log.Info().Msg("session opened")

	go s.writePump(p)
	s.readPump(p)
}

func (s *Server) readPump(p *peer) {
	defer func() {
		s.mu.Lock()
		if s.peers[p.user] == p {
			delete(s.peers, p.user)
		}
		s.mu.Unlock()
		p.close()
		p.log.Info().Msg("session closed")
	}()

	p.conn.SetReadLimit(maxFrameBytes)
	_ = p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, raw, err := p.conn.ReadMessage()
		if err != nil {
			return
		}
		_ = p.conn.SetReadDeadline(time.Now().Add(pongWait))
		s.route(p, raw)
	}
}

func (s *Server) writePump(p *peer) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-p.done:
			return
		case raw := <-p.send:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				p.close()
				return
			}
		case <-ticker.C:
			if err := p.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				p.close()
				return
			}
		}
	}
}

// route forwards raw to its recipients unchanged.
func (s *Server) route(from *peer, raw []byte) {
	f, err := frame.Decode(raw)
	if err != nil {
		from.log.Warn().Err(err).Msg("dropping malformed frame")
		return
	}
	if f.FromUser != from.user {
		from.log.Warn().Str("claimed", f.FromUser.String()).Msg("dropping frame with spoofed sender")
		return
	}

	s.mu.Lock()
	var targets []*peer
	if f.To.IsBroadcast() {
		for u, p := range s.peers {
			if u != from.user {
				targets = append(targets, p)
			}
		}
	} else if p, ok := s.peers[f.To]; ok {
		targets = append(targets, p)
	}
	s.mu.Unlock()

	if len(targets) == 0 && !f.To.IsBroadcast() {
		from.log.Debug().Str("peer", f.To.String()).Str("message_id", f.ID).Msg("recipient offline, frame dropped")
		return
	}
	for _, p := range targets {
		p.deliver(raw)
	}
}
