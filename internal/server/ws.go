package server

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aristath/autodev/internal/events"
)

const writeWait = 10 * time.Second

// EventMessage is the websocket frame for one bus event.
type EventMessage struct {
	Type  string       `json:"type"`
	RunID string       `json:"run_id,omitempty"`
	Data  events.Event `json:"data"`
}

// handleEvents streams every bus event to the client until it disconnects.
// Slow clients lose events rather than stalling the run.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Bus == nil {
		writeError(w, http.StatusNotFound, "event stream disabled")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WARNING: websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	sub := s.cfg.Bus.SubscribeAll(64)
	defer s.cfg.Bus.Unsubscribe(sub)

	// The read loop only notices the client going away
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("WARNING: websocket read: %v", err)
				}
				return
			}
		}
	}()

	ping := time.NewTicker(s.cfg.PingInterval)
	defer ping.Stop()

	for {
		select {
		case ev, ok := <-sub:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(writeWait))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			msg := EventMessage{Type: ev.EventType(), RunID: ev.RunID(), Data: ev}
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("WARNING: websocket write: %v", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-gone:
			return
		case <-r.Context().Done():
			return
		}
	}
}
