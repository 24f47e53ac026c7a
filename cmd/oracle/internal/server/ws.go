package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const wsWriteWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWS serves the same live change feed over a websocket, for clients
// that cannot consume SSE.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	id, events := s.hub.Subscribe()
	s.logger.Debug("ws subscriber connected", zap.Int("subscriber", id))

	// Read pump: drains control frames and unsubscribes on disconnect,
	// which closes the events channel and ends the write pump.
	go func() {
		defer func() {
			s.hub.Unsubscribe(id)
			conn.Close()
		}()
		conn.SetReadLimit(512)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	go func() {
		ping := time.NewTicker(s.heartbeat)
		defer func() {
			ping.Stop()
			s.hub.Unsubscribe(id)
			conn.Close()
		}()
		for {
			select {
			case ev, open := <-events:
				if !open {
					return
				}
				conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := conn.WriteJSON(ev); err != nil {
					return
				}
			case <-ping.C:
				conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()
}
