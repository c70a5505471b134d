package notify

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ayush/skillswap/internal/auth"
	"github.com/ayush/skillswap/internal/httpx"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 1024
)

var errChannelClosed = errors.New("channel closed")

// wsChannel is a Channel backed by one WebSocket connection.
type wsChannel struct {
	id   string
	conn *websocket.Conn

	mu        sync.Mutex // serializes writes
	done      chan struct{}
	closeOnce sync.Once
}

func newWSChannel(conn *websocket.Conn) *wsChannel {
	return &wsChannel{id: uuid.New().String(), conn: conn, done: make(chan struct{})}
}

func (c *wsChannel) ID() string            { return c.id }
func (c *wsChannel) Done() <-chan struct{} { return c.done }

func (c *wsChannel) Send(ctx context.Context, ev Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.done:
		return errChannelClosed
	default:
	}

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.conn.SetWriteDeadline(deadline)
	if err := c.conn.WriteJSON(ev); err != nil {
		c.close()
		return err
	}
	return nil
}

func (c *wsChannel) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (c *wsChannel) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// Handler upgrades authenticated requests to WebSocket push channels.
type Handler struct {
	reg      *Registry
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

// NewHandler accepts upgrades from the given origins. Requests without an
// Origin header (non-browser clients) are always accepted.
func NewHandler(reg *Registry, allowedOrigins []string, log zerolog.Logger) *Handler {
	return &Handler{
		reg: reg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				if slices.Contains(allowedOrigins, origin) {
					return true
				}
				u, err := url.Parse(origin)
				return err == nil && u.Host == r.Host
			},
		},
		log: log.With().Str("component", "ws").Logger(),
	}
}

// ServeHTTP registers the connection for the authenticated user and blocks
// until it closes. Incoming messages are ignored: identity comes from
// authentication, never from the client.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		httpx.WriteErr(w, http.StatusUnauthorized, httpx.CodeUnauthorized, "not authenticated")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade")
		return
	}

	ch := newWSChannel(conn)
	h.reg.Register(userID, ch)
	h.log.Info().Str("user_id", userID.String()).Str("channel_id", ch.id).Msg("channel connected")

	go h.keepalive(ch)
	h.readLoop(ch)

	h.log.Info().Str("user_id", userID.String()).Str("channel_id", ch.id).Msg("channel disconnected")
}

func (h *Handler) readLoop(ch *wsChannel) {
	defer ch.close()

	ch.conn.SetReadLimit(maxMessageSize)
	_ = ch.conn.SetReadDeadline(time.Now().Add(pongWait))
	ch.conn.SetPongHandler(func(string) error {
		return ch.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := ch.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug().Err(err).Str("channel_id", ch.id).Msg("websocket read")
			}
			return
		}
	}
}

func (h *Handler) keepalive(ch *wsChannel) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ch.done:
			return
		case <-ticker.C:
			if err := ch.ping(); err != nil {
				ch.close()
				return
			}
		}
	}
}
