package websocket

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub fans derived metrics and alerts out to room-scoped observers (teacher
// dashboards). Observer messages travel through a redis channel per room, so
// any service instance can publish and every instance's observers receive.
type Hub struct {
	mu          sync.RWMutex
	rooms       map[string][]*websocket.Conn
	redisClient *redis.Client
	jwtSecret   []byte
	cancelFuncs map[string]context.CancelFunc
	log         zerolog.Logger
}

func NewHub(redisClient *redis.Client, jwtSecret string, log zerolog.Logger) *Hub {
	return &Hub{
		rooms:       make(map[string][]*websocket.Conn),
		redisClient: redisClient,
		jwtSecret:   []byte(jwtSecret),
		cancelFuncs: make(map[string]context.CancelFunc),
		log:         log.With().Str("component", "ws-hub").Logger(),
	}
}

// HandleObserver upgrades an observer (dashboard) connection and subscribes
// it to a room's updates until it disconnects.
func (h *Hub) HandleObserver(w http.ResponseWriter, r *http.Request) {
	identity, err := h.authenticate(r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	roomID := r.URL.Query().Get("room_id")
	if roomID == "" {
		http.Error(w, "room_id is required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	h.subscribe(roomID, conn)
	h.log.Info().
		Str("room_id", roomID).
		Str("user_id", identity.UserID).
		Str("role", identity.Role).
		Msg("observer subscribed")

	go func() {
		defer h.unsubscribe(roomID, conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) subscribe(roomID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.rooms[roomID] = append(h.rooms[roomID], conn)

	// First observer for the room starts the redis bridge.
	if len(h.rooms[roomID]) == 1 {
		ctx, cancel := context.WithCancel(context.Background())
		h.cancelFuncs[roomID] = cancel
		go h.bridge(ctx, roomID)
	}
}

func (h *Hub) unsubscribe(roomID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn.Close()

	conns := h.rooms[roomID]
	for i, c := range conns {
		if c == conn {
			h.rooms[roomID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}

	if len(h.rooms[roomID]) == 0 {
		delete(h.rooms, roomID)
		if cancel, ok := h.cancelFuncs[roomID]; ok {
			cancel()
			delete(h.cancelFuncs, roomID)
		}
	}

	h.log.Info().Str("room_id", roomID).Msg("observer disconnected")
}

func (h *Hub) bridge(ctx context.Context, roomID string) {
	pubsub := h.redisClient.Subscribe(ctx, roomChannel(roomID))
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.broadcast(roomID, []byte(msg.Payload))
		}
	}
}

// broadcast snapshots the subscriber set before writing so concurrent
// subscribe/unsubscribe never races an in-flight delivery.
func (h *Hub) broadcast(roomID string, data []byte) {
	h.mu.RLock()
	conns := make([]*websocket.Conn, len(h.rooms[roomID]))
	copy(conns, h.rooms[roomID])
	h.mu.RUnlock()

	for _, conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.log.Debug().Err(err).Str("room_id", roomID).Msg("observer write failed")
		}
	}
}

// Identity is the authenticated principal resolved from the channel's token.
// The core consumes it; issuing and policy live with the auth collaborator.
type Identity struct {
	UserID string
	Role   string
}

func (h *Hub) authenticate(tokenStr string) (Identity, error) {
	if tokenStr == "" {
		return Identity{}, errors.New("missing token")
	}

	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return h.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return Identity{}, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, errors.New("invalid claims")
	}

	userID, _ := claims["user_id"].(string)
	if userID == "" {
		return Identity{}, errors.New("missing user_id claim")
	}
	role, _ := claims["role"].(string)

	return Identity{UserID: userID, Role: role}, nil
}

func roomChannel(roomID string) string {
	return "room_updates:" + roomID
}
