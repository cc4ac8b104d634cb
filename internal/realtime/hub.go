package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"taskflow/internal/auth"
	"taskflow/internal/dto"
	"taskflow/internal/logctx"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
)

// EventConnected is sent once the connection is subscribed.
const EventConnected = "connected"

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 512
)

// Event is one message on the live channel.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Hub fans events out to every open connection of a user through Redis
// pub/sub, so any api instance can publish to any connection.
type Hub struct {
	rdb      *redis.Client
	tokens   auth.TokenVerifier
	upgrader websocket.Upgrader
}

// NewHub creates a Hub. origins is the CORS allow list; "*" allows any origin.
func NewHub(rdb *redis.Client, tokens auth.TokenVerifier, origins []string) *Hub {
	return &Hub{
		rdb:    rdb,
		tokens: tokens,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(origins),
		},
	}
}

// Channel is the Redis channel carrying userID's events.
func Channel(userID uuid.UUID) string {
	return "events:user:" + userID.String()
}

// Publish sends an event to all of userID's connections. Nobody listening is not an error.
func (h *Hub) Publish(ctx context.Context, userID uuid.UUID, eventType string, data any) error {
	const op = "realtime.Hub.Publish"

	b, err := json.Marshal(Event{Type: eventType, Data: data})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := h.rdb.Publish(ctx, Channel(userID), b).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Handler authenticates the handshake by bearer header or ?token= and
// upgrades it. It blocks until the connection closes.
func (h *Hub) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logctx.From(c.Request.Context())

		id, err := auth.IdentityFromUpgrade(c.Request, h.tokens)
		if err != nil {
			msg := "invalid or expired token"
			if errors.Is(err, auth.ErrUnauthenticated) {
				msg = "authorization required"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.Fail(dto.KindUnauthenticated, msg))
			return
		}

		conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// upgrader already replied
			log.Debug("ws upgrade", slog.String("err", err.Error()))
			return
		}

		log = log.With(slog.String("user_id", id.ID.String()))
		ctx := logctx.Into(c.Request.Context(), log)
		log.Info("ws connected")
		h.serve(ctx, conn, id)
		log.Info("ws disconnected")
	}
}

func (h *Hub) serve(ctx context.Context, conn *websocket.Conn, id auth.Identity) {
	defer conn.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sub := h.rdb.Subscribe(ctx, Channel(id.ID))
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		logctx.From(ctx).Warn("ws subscribe", slog.String("err", err.Error()))
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "unavailable"),
			time.Now().Add(writeWait))
		return
	}

	hello, _ := json.Marshal(Event{Type: EventConnected, Data: map[string]any{"userId": id.ID}})
	if err := write(conn, hello); err != nil {
		return
	}

	go readPump(conn, cancel)

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	msgs := sub.Channel()

	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-msgs:
			if !ok {
				return
			}
			if err := write(conn, []byte(m.Payload)); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// readPump drains client frames so pongs and close frames are processed.
// Client messages are ignored. Any read error ends the connection.
func readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func write(conn *websocket.Conn, msg []byte) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, msg)
}

func checkOrigin(origins []string) func(r *http.Request) bool {
	allowed := make(map[string]bool, len(origins))
	anyOrigin := len(origins) == 0
	for _, o := range origins {
		if o == "*" {
			anyOrigin = true
		}
		allowed[strings.TrimRight(o, "/")] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if anyOrigin || origin == "" {
			return true
		}
		return allowed[strings.TrimRight(origin, "/")]
	}
}
