package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partselect-assistant/server/internal/agent/model"
	"github.com/partselect-assistant/server/internal/metrics"
)

type echoChat struct {
	mu       sync.Mutex
	requests []model.ChatRequest
}

func (e *echoChat) Chat(_ context.Context, req model.ChatRequest) *model.ChatResponse {
	e.mu.Lock()
	e.requests = append(e.requests, req)
	e.mu.Unlock()
	return &model.ChatResponse{
		Message:        "echo: " + req.Message,
		Timestamp:      time.Now().UTC(),
		ConversationID: req.ConversationID,
		Agent:          "general",
	}
}

func (e *echoChat) Features() model.FeatureConfig {
	return model.FeatureConfig{PerformanceMode: true, GuardrailEnabled: true}
}

func (e *echoChat) last() model.ChatRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.requests[len(e.requests)-1]
}

func newTestServer(t *testing.T) (*httptest.Server, *echoChat) {
	t.Helper()
	chat := &echoChat{}
	s := New(model.ServerConfig{AllowedOrigins: []string{"http://localhost:3000"}}, chat, metrics.NewCollector().Handler())
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv, chat
}

func TestRootAndHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	res, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res, err = http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer res.Body.Close()
	var health healthResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&health))
	assert.Equal(t, "healthy", health.Status)
	assert.True(t, health.PerformanceMode)
	assert.False(t, health.MultiAgent)
	assert.True(t, health.GuardrailEnabled)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	res, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestChatEndpoint(t *testing.T) {
	srv, chat := newTestServer(t)

	res, err := http.Post(srv.URL+"/chat", "application/json",
		strings.NewReader(`{"message":"fridge ice maker","conversation_id":"c1"}`))
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var body model.ChatResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, "echo: fridge ice maker", body.Message)
	assert.Equal(t, "c1", body.ConversationID)
	assert.Equal(t, model.ChannelHTTP, chat.last().Channel)
}

func TestChatEndpoint_MalformedJSON(t *testing.T) {
	srv, chat := newTestServer(t)

	res, err := http.Post(srv.URL+"/chat", "application/json", strings.NewReader(`{"message":`))
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Empty(t, chat.requests)
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/chat", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, "http://localhost:3000", res.Header.Get("Access-Control-Allow-Origin"))
}

func TestWebSocket(t *testing.T) {
	srv, chat := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/client-7"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	require.NoError(t, conn.WriteJSON(map[string]string{"message": "dishwasher rack"}))
	var first model.ChatResponse
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "echo: dishwasher rack", first.Message)
	assert.Equal(t, "client-7", first.ConversationID)
	assert.Equal(t, model.ChannelWebSocket, chat.last().Channel)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("plain text question")))
	var second model.ChatResponse
	require.NoError(t, conn.ReadJSON(&second))
	assert.Equal(t, "echo: plain text question", second.Message)

	require.NoError(t, conn.WriteJSON(map[string]string{"message": "hi", "conversation_id": "other"}))
	var third model.ChatResponse
	require.NoError(t, conn.ReadJSON(&third))
	assert.Equal(t, "other", third.ConversationID)
}

func TestRun_ShutsDownOnCancel(t *testing.T) {
	s := New(model.ServerConfig{Addr: "127.0.0.1:0", ShutdownTimeout: time.Second}, &echoChat{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}
