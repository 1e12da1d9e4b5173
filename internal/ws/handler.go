// Package ws pushes categorized order views over WebSocket. Each
// connection subscribes to the caller's (role, id) pair on the broker;
// every recompute signal triggers a re-read of durable state, so the
// socket only ever carries freshly derived views, never deltas.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/hopingminds/menrol-api/internal/auth"
	"github.com/hopingminds/menrol-api/internal/enum"
	"github.com/hopingminds/menrol-api/internal/notify"
	"github.com/hopingminds/menrol-api/internal/view"
)

const snapshotTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // token is validated below
	},
}

// ViewSource rebuilds categorized views from durable state.
// Satisfied by *service.FulfillmentService.
type ViewSource interface {
	UserOrderViews(ctx context.Context, userID uuid.UUID) (view.UserOrders, error)
	ProviderOrderViews(ctx context.Context, providerID uuid.UUID) (view.ProviderOrders, error)
}

// Message is the wire envelope pushed to subscribers. Data holds the
// full rebuilt view set for the caller's role.
type Message struct {
	Type  string          `json:"type"`
	Event string          `json:"event,omitempty"`
	Data  json.RawMessage `json:"data"`
}

// Handler upgrades authenticated requests into live-view connections.
type Handler struct {
	secret string
	broker *notify.Broker
	views  ViewSource
	log    *logrus.Logger
}

func NewHandler(secret string, broker *notify.Broker, views ViewSource, log *logrus.Logger) *Handler {
	return &Handler{secret: secret, broker: broker, views: views, log: log}
}

// ServeViews handles WS /ws/views?token=JWT. The connection pushes a
// full snapshot on connect and after every event addressed to the caller.
func (h *Handler) ServeViews(w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	claims, err := auth.ValidateToken(h.secret, tokenStr)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	if claims.Role != enum.RoleUser && claims.Role != enum.RoleProvider {
		http.Error(w, "role has no live views", http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	client := &Client{
		conn:   conn,
		broker: h.broker,
		sub:    h.broker.Subscribe(claims.Role, claims.UserID),
		send:   make(chan []byte, 256),
	}

	go client.writePump()
	go client.readPump()
	go h.viewPump(client, claims.Role, claims.UserID)
}

// viewPump is the sole sender on the client's queue: an initial snapshot,
// then one rebuilt snapshot per event, until the subscription closes.
func (h *Handler) viewPump(c *Client, role string, id uuid.UUID) {
	defer close(c.send)

	if msg, err := h.snapshot(role, id, "sync"); err == nil {
		c.enqueue(msg)
	} else {
		h.log.WithError(err).WithField("role", role).Warn("initial view snapshot failed")
	}

	for ev := range c.sub.Events() {
		msg, err := h.snapshot(role, id, ev.Name)
		if err != nil {
			h.log.WithError(err).WithField("event", ev.Name).Warn("view rebuild failed")
			continue
		}
		c.enqueue(msg)
	}
}

func (h *Handler) snapshot(role string, id uuid.UUID, event string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()

	var (
		data any
		err  error
	)
	if role == enum.RoleProvider {
		data, err = h.views.ProviderOrderViews(ctx, id)
	} else {
		data, err = h.views.UserOrderViews(ctx, id)
	}
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{Type: "views", Event: event, Data: raw})
}
