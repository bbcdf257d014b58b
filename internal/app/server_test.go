package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genie-trader/internal/config"
	"genie-trader/internal/monitor"
)

type stubEvents struct {
	gotType  monitor.EventType
	gotLimit int
	events   []monitor.Event
	err      error
}

func (s *stubEvents) ListEvents(ctx context.Context, eventType monitor.EventType, limit int) ([]monitor.Event, error) {
	s.gotType = eventType
	s.gotLimit = limit
	return s.events, s.err
}

type stubAcceptor struct {
	mu      sync.Mutex
	updates []tgbotapi.Update
}

func (s *stubAcceptor) Accept(ctx context.Context, update tgbotapi.Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, update)
}

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestServer_Health(t *testing.T) {
	s := NewServer(config.ServerConfig{Addr: ":0"}, nil, nil, nil)

	w := serve(t, s, http.MethodGet, "/healthz", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestServer_Metrics(t *testing.T) {
	s := NewServer(config.ServerConfig{Addr: ":0"}, nil, nil, nil)

	w := serve(t, s, http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestServer_ListEvents(t *testing.T) {
	events := &stubEvents{events: []monitor.Event{{
		Type:      monitor.EventDispatch,
		Timestamp: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Payload:   json.RawMessage(`{"venue":"equity","outcome":"executed"}`),
	}}}
	s := NewServer(config.ServerConfig{Addr: ":0"}, events, nil, nil)

	w := serve(t, s, http.MethodGet, "/events?type=DISPATCH&limit=5000", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, monitor.EventDispatch, events.gotType)
	assert.Equal(t, maxEventLimit, events.gotLimit)

	var got []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "dispatch", got[0]["type"])
	assert.Equal(t, "executed", got[0]["payload"].(map[string]interface{})["outcome"])
}

func TestServer_ListEventsDefaults(t *testing.T) {
	events := &stubEvents{}
	s := NewServer(config.ServerConfig{Addr: ":0"}, events, nil, nil)

	w := serve(t, s, http.MethodGet, "/events?limit=abc", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, monitor.EventType(""), events.gotType)
	assert.Equal(t, defaultEventLimit, events.gotLimit)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestServer_ListEventsFailure(t *testing.T) {
	s := NewServer(config.ServerConfig{Addr: ":0"}, &stubEvents{err: errors.New("database is locked")}, nil, nil)

	w := serve(t, s, http.MethodGet, "/events", "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "database is locked")
}

func TestServer_WebhookAcceptsUpdate(t *testing.T) {
	acceptor := &stubAcceptor{}
	s := NewServer(config.ServerConfig{Addr: ":0"}, nil, acceptor, nil)

	body := `{"update_id": 10, "message": {"message_id": 1, "date": 1700000000, "chat": {"id": 42, "type": "private"}, "text": "go"}}`
	w := serve(t, s, http.MethodPost, "/webhook", body)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())
	require.Len(t, acceptor.updates, 1)
	require.NotNil(t, acceptor.updates[0].Message)
	assert.Equal(t, int64(42), acceptor.updates[0].Message.Chat.ID)
	assert.Equal(t, "go", acceptor.updates[0].Message.Text)
}

func TestServer_WebhookRejectsMalformedBody(t *testing.T) {
	acceptor := &stubAcceptor{}
	s := NewServer(config.ServerConfig{Addr: ":0"}, nil, acceptor, nil)

	w := serve(t, s, http.MethodPost, "/webhook", "{not json")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, acceptor.updates)
}

func TestServer_WebhookNotRegisteredInPollingMode(t *testing.T) {
	s := NewServer(config.ServerConfig{Addr: ":0"}, nil, nil, nil)

	w := serve(t, s, http.MethodPost, "/webhook", `{}`)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_RunStopsOnCancel(t *testing.T) {
	s := NewServer(config.ServerConfig{Addr: "127.0.0.1:0", ShutdownTimeout: time.Second}, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop after cancel")
	}
}
