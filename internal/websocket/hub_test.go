package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studypulse-backend/internal/models"
)

const testSecret = "test-secret"

func signToken(t *testing.T, userID, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"role":    role,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func wsURL(httpURL string, query string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http") + "/?" + query
}

func TestHub_RejectsObserverWithoutToken(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer client.Close()

	hub := NewHub(client, testSecret, zerolog.Nop())
	ts := httptest.NewServer(http.HandlerFunc(hub.HandleObserver))
	defer ts.Close()

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts.URL, "room_id=room-1"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 401, resp.StatusCode)
}

func TestHub_RequiresRoomID(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer client.Close()

	hub := NewHub(client, testSecret, zerolog.Nop())
	ts := httptest.NewServer(http.HandlerFunc(hub.HandleObserver))
	defer ts.Close()

	_, resp, err := websocket.DefaultDialer.Dial(
		wsURL(ts.URL, "token="+signToken(t, "teacher-1", "teacher")), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestHub_DeliversPublishedMessagesToRoomObservers(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer client.Close()

	hub := NewHub(client, testSecret, zerolog.Nop())
	ts := httptest.NewServer(http.HandlerFunc(hub.HandleObserver))
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial(
		wsURL(ts.URL, "token="+signToken(t, "teacher-1", "teacher")+"&room_id=room-1"), nil)
	require.NoError(t, err)
	defer conn.Close()

	// The bridge subscribes asynchronously; probe until the channel has a
	// subscriber. The probe payload is skipped when reading below.
	require.Eventually(t, func() bool {
		return srv.Publish(roomChannel("room-1"), "warmup") > 0
	}, 2*time.Second, 10*time.Millisecond)

	pub := NewRedisPublisher(client)
	err = pub.Publish(context.Background(), "room-1", models.WSMessage{
		Type: models.WSAnalyticsUpdate,
		Payload: models.AnalyticsUpdate{
			SessionID: "sess-1",
			UserID:    "user-1",
			Event:     models.EventPageTime,
		},
	})
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)

		var msg struct {
			Type    string                 `json:"type"`
			Payload models.AnalyticsUpdate `json:"payload"`
		}
		if json.Unmarshal(data, &msg) != nil || msg.Type != models.WSAnalyticsUpdate {
			continue // warmup probe
		}
		assert.Equal(t, "sess-1", msg.Payload.SessionID)
		assert.Equal(t, "user-1", msg.Payload.UserID)
		return
	}
}

func TestHub_ScopesDeliveryToRoom(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer client.Close()

	hub := NewHub(client, testSecret, zerolog.Nop())
	ts := httptest.NewServer(http.HandlerFunc(hub.HandleObserver))
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial(
		wsURL(ts.URL, "token="+signToken(t, "teacher-1", "teacher")+"&room_id=room-A"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return srv.Publish(roomChannel("room-A"), "warmup") > 0
	}, 2*time.Second, 10*time.Millisecond)

	// A message for a different room never reaches this observer.
	assert.Zero(t, srv.Publish(roomChannel("room-B"), `{"type":"analytics_update"}`))
}

func TestAuthenticate(t *testing.T) {
	hub := NewHub(nil, testSecret, zerolog.Nop())

	t.Run("valid token", func(t *testing.T) {
		identity, err := hub.authenticate(signToken(t, "user-7", "student"))
		require.NoError(t, err)
		assert.Equal(t, Identity{UserID: "user-7", Role: "student"}, identity)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": "user-7"})
		signed, err := token.SignedString([]byte("other-secret"))
		require.NoError(t, err)
		_, err = hub.authenticate(signed)
		assert.Error(t, err)
	})

	t.Run("missing user_id claim", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"role": "student"})
		signed, err := token.SignedString([]byte(testSecret))
		require.NoError(t, err)
		_, err = hub.authenticate(signed)
		assert.Error(t, err)
	})
}
