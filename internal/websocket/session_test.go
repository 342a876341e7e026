package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studypulse-backend/internal/ingest"
	"studypulse-backend/internal/models"
	"studypulse-backend/internal/repository"
)

// memAggStore is a minimal in-memory ingest.Store for channel tests.
type memAggStore struct {
	mu        sync.Mutex
	aggs      map[string]*models.SessionAggregate
	failSaves bool
}

func newMemAggStore() *memAggStore {
	return &memAggStore{aggs: make(map[string]*models.SessionAggregate)}
}

func (m *memAggStore) GetOrCreate(ctx context.Context, sessionID, roomID, userID string) (*models.SessionAggregate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.aggs[sessionID]; !ok {
		m.aggs[sessionID] = models.NewSessionAggregate(sessionID, roomID, userID)
	}
	return m.aggs[sessionID], nil
}

func (m *memAggStore) Get(ctx context.Context, sessionID string) (*models.SessionAggregate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	agg, ok := m.aggs[sessionID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return agg, nil
}

func (m *memAggStore) Save(ctx context.Context, agg *models.SessionAggregate) error {
	if m.failSaves {
		return errors.New("simulated persistence outage")
	}
	return nil
}

func (m *memAggStore) ListByRoom(ctx context.Context, roomID string) ([]*models.SessionAggregate, error) {
	return nil, nil
}

func newSessionServer(t *testing.T, store ingest.Store) *httptest.Server {
	t.Helper()
	service := ingest.NewService(store, nil, nil, ingest.Options{PersistRetries: 1}, zerolog.Nop())
	hub := NewHub(nil, testSecret, zerolog.Nop())
	channel := NewSessionChannel(hub, service, zerolog.Nop())
	ts := httptest.NewServer(http.HandlerFunc(channel.Handle))
	t.Cleanup(ts.Close)
	return ts
}

func dialSession(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(
		wsURL(ts.URL, "token="+signToken(t, "student-7", "student")), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	return conn
}

func sendInteraction(t *testing.T, conn *websocket.Conn, payload map[string]interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type":    "pdf_interaction",
		"payload": payload,
	}))
}

func readReply(t *testing.T, conn *websocket.Conn) (string, json.RawMessage) {
	t.Helper()
	var msg struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	return msg.Type, msg.Payload
}

func readErrorCode(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	msgType, payload := readReply(t, conn)
	require.Equal(t, "pdf_interaction_error", msgType)
	var body map[string]string
	require.NoError(t, json.Unmarshal(payload, &body))
	return body["code"]
}

func TestSessionChannel_RejectsWithoutToken(t *testing.T) {
	ts := newSessionServer(t, newMemAggStore())

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts.URL, ""), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 401, resp.StatusCode)
}

func TestSessionChannel_AcksWithFreshPatterns(t *testing.T) {
	store := newMemAggStore()
	conn := dialSession(t, newSessionServer(t, store))

	sendInteraction(t, conn, map[string]interface{}{
		"session_id": "sess-1",
		"room_id":    "room-1",
		"event_type": "page_time",
		"data":       map[string]interface{}{"page": 1, "timeSpent": 60000},
	})

	msgType, payload := readReply(t, conn)
	require.Equal(t, "pdf_analytics", msgType)

	var ack struct {
		SessionID string                 `json:"session_id"`
		Analytics models.ReadingPatterns `json:"analytics"`
	}
	require.NoError(t, json.Unmarshal(payload, &ack))
	assert.Equal(t, "sess-1", ack.SessionID)
	assert.Equal(t, 60, ack.Analytics.TotalReadingTime)
	assert.Equal(t, 60, ack.Analytics.AvgTimePerPage)
}

func TestSessionChannel_UserIDComesFromTokenNotPayload(t *testing.T) {
	store := newMemAggStore()
	conn := dialSession(t, newSessionServer(t, store))

	// A spoofed user_id in the event payload must be ignored.
	sendInteraction(t, conn, map[string]interface{}{
		"session_id": "sess-1",
		"room_id":    "room-1",
		"user_id":    "mallory",
		"event_type": "page_time",
		"data":       map[string]interface{}{"page": 1, "timeSpent": 1000},
	})

	msgType, _ := readReply(t, conn)
	require.Equal(t, "pdf_analytics", msgType)

	agg, err := store.Get(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "student-7", agg.UserID)
	require.Len(t, agg.Interactions, 1)
	assert.Equal(t, "student-7", agg.Interactions[0].UserID)
}

func TestSessionChannel_MalformedEventErrorCode(t *testing.T) {
	conn := dialSession(t, newSessionServer(t, newMemAggStore()))

	sendInteraction(t, conn, map[string]interface{}{
		"session_id": "sess-1",
		"room_id":    "room-1",
		"event_type": "telepathy",
	})
	assert.Equal(t, "MALFORMED_EVENT", readErrorCode(t, conn))

	sendInteraction(t, conn, map[string]interface{}{
		"room_id":    "room-1",
		"event_type": "page_time",
	})
	assert.Equal(t, "MALFORMED_EVENT", readErrorCode(t, conn))
}

func TestSessionChannel_PersistenceFailureErrorCode(t *testing.T) {
	store := newMemAggStore()
	store.failSaves = true
	conn := dialSession(t, newSessionServer(t, store))

	sendInteraction(t, conn, map[string]interface{}{
		"session_id": "sess-1",
		"room_id":    "room-1",
		"event_type": "page_time",
		"data":       map[string]interface{}{"page": 1, "timeSpent": 1000},
	})
	assert.Equal(t, "PERSISTENCE_FAILURE", readErrorCode(t, conn))
}

func TestSessionChannel_UnknownMessageType(t *testing.T) {
	conn := dialSession(t, newSessionServer(t, newMemAggStore()))

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": "ping"}))
	assert.Equal(t, "UNKNOWN_MESSAGE", readErrorCode(t, conn))
}
