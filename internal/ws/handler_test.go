package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/hopingminds/menrol-api/internal/auth"
	"github.com/hopingminds/menrol-api/internal/enum"
	"github.com/hopingminds/menrol-api/internal/notify"
	"github.com/hopingminds/menrol-api/internal/view"
)

const testSecret = "ws-test-secret"

// stubViews serves canned views and counts rebuilds.
type stubViews struct {
	rebuilds atomic.Int64
}

func (s *stubViews) UserOrderViews(ctx context.Context, userID uuid.UUID) (view.UserOrders, error) {
	s.rebuilds.Add(1)
	return view.UserOrders{Categories: []string{"Cleaning"}}, nil
}

func (s *stubViews) ProviderOrderViews(ctx context.Context, providerID uuid.UUID) (view.ProviderOrders, error) {
	s.rebuilds.Add(1)
	return view.ProviderOrders{Categories: []string{"Plumbing"}}, nil
}

func newTestLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func dialViews(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/views?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read message: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("unmarshal message: %v", err)
	}
	return msg
}

func TestServeViewsPushesSnapshotAndEvents(t *testing.T) {
	broker := notify.NewBroker()
	go broker.Run()
	defer broker.Close()

	views := &stubViews{}
	handler := NewHandler(testSecret, broker, views, newTestLogger())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.ServeViews(w, r)
	}))
	defer srv.Close()

	userID := uuid.New()
	token, err := auth.GenerateToken(testSecret, userID, enum.RoleUser)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	conn := dialViews(t, srv, token)
	defer conn.Close()

	initial := readMessage(t, conn)
	if initial.Type != "views" || initial.Event != "sync" {
		t.Fatalf("initial message = %q/%q, want views/sync", initial.Type, initial.Event)
	}
	var snap view.UserOrders
	if err := json.Unmarshal(initial.Data, &snap); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if len(snap.Categories) != 1 || snap.Categories[0] != "Cleaning" {
		t.Errorf("categories = %v, want [Cleaning]", snap.Categories)
	}

	broker.Publish(notify.Event{Name: notify.EventAccepted, Role: enum.RoleUser, SubjectID: userID})

	update := readMessage(t, conn)
	if update.Event != notify.EventAccepted {
		t.Errorf("update event = %q, want %q", update.Event, notify.EventAccepted)
	}
	if got := views.rebuilds.Load(); got < 2 {
		t.Errorf("rebuilds = %d, want at least 2", got)
	}
}

func TestServeViewsIgnoresOtherSubjects(t *testing.T) {
	broker := notify.NewBroker()
	go broker.Run()
	defer broker.Close()

	handler := NewHandler(testSecret, broker, &stubViews{}, newTestLogger())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.ServeViews(w, r)
	}))
	defer srv.Close()

	userID := uuid.New()
	token, _ := auth.GenerateToken(testSecret, userID, enum.RoleUser)
	conn := dialViews(t, srv, token)
	defer conn.Close()

	readMessage(t, conn) // initial sync

	// Same id under a different role must not reach this connection.
	broker.Publish(notify.Event{Name: notify.EventAccepted, Role: enum.RoleProvider, SubjectID: userID})
	broker.Publish(notify.Event{Name: notify.EventAccepted, Role: enum.RoleUser, SubjectID: uuid.New()})

	conn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("expected no message for other subjects")
	}
}

func TestServeViewsRejectsMissingToken(t *testing.T) {
	broker := notify.NewBroker()
	go broker.Run()
	defer broker.Close()

	handler := NewHandler(testSecret, broker, &stubViews{}, newTestLogger())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.ServeViews(w, r)
	}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/ws/views")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestServeViewsRejectsAdminRole(t *testing.T) {
	broker := notify.NewBroker()
	go broker.Run()
	defer broker.Close()

	handler := NewHandler(testSecret, broker, &stubViews{}, newTestLogger())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.ServeViews(w, r)
	}))
	defer srv.Close()

	token, _ := auth.GenerateToken(testSecret, uuid.New(), enum.RoleAdmin)
	resp, err := http.Get(srv.URL + "/ws/views?token=" + token)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403", resp.StatusCode)
	}
}
