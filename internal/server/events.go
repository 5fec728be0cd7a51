package server

import (
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleEvents upgrades the connection to WebSocket and streams ledger
// events as JSON until the client disconnects. Slow consumers lose events
// rather than backpressuring the ledger.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade", zap.Error(err))
		return
	}
	defer conn.Close()

	events, cancel := s.ledger.Bus().Subscribe()
	defer cancel()

	// Drain reads to detect client disconnects; cancel closes the event
	// channel, ending the write loop below.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	for evt := range events {
		if err := conn.WriteJSON(evt); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn("websocket write", zap.Error(err))
			}
			return
		}
	}
}
