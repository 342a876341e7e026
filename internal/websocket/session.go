package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"studypulse-backend/internal/ingest"
	"studypulse-backend/internal/models"
)

// SessionChannel is the student-facing full-duplex channel: it receives raw
// interaction events, hands them to the ingestion service one at a time (the
// read loop is the session's single logical ordering), and acknowledges each
// with the fresh patterns snapshot or a structured error.
type SessionChannel struct {
	hub     *Hub
	service *ingest.Service
	log     zerolog.Logger
}

func NewSessionChannel(hub *Hub, service *ingest.Service, log zerolog.Logger) *SessionChannel {
	return &SessionChannel{
		hub:     hub,
		service: service,
		log:     log.With().Str("component", "ws-session").Logger(),
	}
}

type inboundEvent struct {
	EventID   string          `json:"event_id"`
	SessionID string          `json:"session_id"`
	RoomID    string          `json:"room_id"`
	EventType string          `json:"event_type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

func (c *SessionChannel) Handle(w http.ResponseWriter, r *http.Request) {
	identity, err := c.hub.authenticate(r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c.readLoop(conn, identity)
}

// readLoop processes one student's event stream in arrival order. Closing
// the channel stops future ingestion; already-ingested events stay applied.
func (c *SessionChannel) readLoop(conn *websocket.Conn, identity Identity) {
	defer conn.Close()

	for {
		var msg struct {
			Type    string          `json:"type"`
			Payload json.RawMessage `json:"payload"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "pdf_interaction":
			c.handleEvent(conn, identity, msg.Payload)
		default:
			c.writeError(conn, "UNKNOWN_MESSAGE", "unsupported message type: "+msg.Type)
		}
	}
}

func (c *SessionChannel) handleEvent(conn *websocket.Conn, identity Identity, payload json.RawMessage) {
	var in inboundEvent
	if err := json.Unmarshal(payload, &in); err != nil {
		c.writeError(conn, "MALFORMED_EVENT", "invalid event payload")
		return
	}

	if in.Timestamp.IsZero() {
		in.Timestamp = time.Now().UTC()
	}

	event := models.InteractionEvent{
		EventID:   in.EventID,
		SessionID: in.SessionID,
		RoomID:    in.RoomID,
		UserID:    identity.UserID, // identity comes from the channel, never the payload
		EventType: models.EventType(in.EventType),
		Data:      in.Data,
		Timestamp: in.Timestamp,
	}

	// The ingest context is deliberately detached from the connection: a
	// disconnect mid-persist must not roll back an already-accepted event.
	patterns, err := c.service.Ingest(context.Background(), event)
	if err != nil {
		switch {
		case errors.Is(err, ingest.ErrMalformedEvent):
			c.writeError(conn, "MALFORMED_EVENT", err.Error())
		case errors.Is(err, ingest.ErrPersistence):
			c.writeError(conn, "PERSISTENCE_FAILURE", "failed to save interaction, please retry")
		default:
			c.writeError(conn, "INTERNAL_ERROR", "failed to process interaction")
		}
		return
	}

	c.write(conn, models.WSMessage{
		Type: "pdf_analytics",
		Payload: map[string]interface{}{
			"session_id": event.SessionID,
			"analytics":  patterns,
		},
	})
}

func (c *SessionChannel) write(conn *websocket.Conn, msg models.WSMessage) {
	if err := conn.WriteJSON(msg); err != nil {
		c.log.Debug().Err(err).Msg("session channel write failed")
	}
}

func (c *SessionChannel) writeError(conn *websocket.Conn, code, message string) {
	c.write(conn, models.WSMessage{
		Type: "pdf_interaction_error",
		Payload: map[string]string{
			"code":  code,
			"error": message,
		},
	})
}
