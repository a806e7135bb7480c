package server

import (
	"bytes"
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

	"github.com/hrygo/manas/ai/errs"
	"github.com/hrygo/manas/ai/handlers"
	"github.com/hrygo/manas/ai/metrics"
	"github.com/hrygo/manas/ai/orchestrator"
	"github.com/hrygo/manas/ai/routing"
	"github.com/hrygo/manas/internal/profile"
)

type fakeTurns struct {
	mu   sync.Mutex
	reqs []*orchestrator.TurnRequest
}

func (f *fakeTurns) record(req *orchestrator.TurnRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
}

func (f *fakeTurns) last() *orchestrator.TurnRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.reqs) == 0 {
		return nil
	}
	return f.reqs[len(f.reqs)-1]
}

func (f *fakeTurns) ProcessTurn(_ context.Context, req *orchestrator.TurnRequest) (*orchestrator.TurnResponse, error) {
	if strings.TrimSpace(req.Utterance) == "" {
		return nil, errs.ErrEmptyUtterance
	}
	f.record(req)
	return &orchestrator.TurnResponse{
		TurnID:     "turn-1",
		Utterance:  req.Utterance,
		Intent:     routing.IntentGeneralChat,
		Confidence: 0.9,
		Executed:   routing.IntentGeneralChat,
		Result:     &handlers.Result{Type: "chat", Message: "echo: " + req.Utterance},
	}, nil
}

func (f *fakeTurns) StreamTurn(_ context.Context, req *orchestrator.TurnRequest) (<-chan *orchestrator.Chunk, error) {
	if strings.TrimSpace(req.Utterance) == "" {
		return nil, errs.ErrEmptyUtterance
	}
	f.record(req)
	out := make(chan *orchestrator.Chunk, 4)
	out <- &orchestrator.Chunk{Type: orchestrator.ChunkMeta, TurnID: "turn-1", Intent: routing.IntentGeneralChat, Confidence: 0.9}
	out <- &orchestrator.Chunk{Type: orchestrator.ChunkText, TurnID: "turn-1", Text: "echo"}
	out <- &orchestrator.Chunk{Type: orchestrator.ChunkAudio, TurnID: "turn-1", Audio: []byte{1, 2, 3}}
	out <- &orchestrator.Chunk{Type: orchestrator.ChunkDone, TurnID: "turn-1", Result: &handlers.Result{Message: "echo"}}
	close(out)
	return out, nil
}

func newTestServer(t *testing.T, secret string, m *metrics.Exporter) (*httptest.Server, *fakeTurns) {
	t.Helper()
	turns := &fakeTurns{}
	s := NewServer(&profile.Profile{Version: "1.2.3", JWTSecret: secret}, turns, m)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv, turns
}

func postTurn(t *testing.T, url, token, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url+"/api/v1/turn", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, "", nil)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "1.2.3", body["version"])
}

func TestMetrics(t *testing.T) {
	m := metrics.NewExporter(metrics.DefaultConfig())
	m.RecordTurn("GENERAL_CHAT", orchestrator.ModeSync, 10*time.Millisecond)
	srv, _ := newTestServer(t, "", m)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "manas_assistant_turns_total")
}

func TestMetrics_DisabledWithoutExporter(t *testing.T) {
	srv, _ := newTestServer(t, "", nil)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandleTurn(t *testing.T) {
	srv, turns := newTestServer(t, "", nil)

	resp := postTurn(t, srv.URL, "", `{"user_id": "u1", "utterance": "hello", "attachments": [{"name": "a.txt", "mime_type": "text/plain", "data": "aGk="}]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body orchestrator.TurnResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "turn-1", body.TurnID)
	assert.Equal(t, routing.IntentGeneralChat, body.Intent)
	require.NotNil(t, body.Result)
	assert.Equal(t, "echo: hello", body.Result.Message)

	req := turns.last()
	require.NotNil(t, req)
	assert.Equal(t, "u1", req.UserID)
	require.Len(t, req.Attachments, 1)
	assert.Equal(t, "a.txt", req.Attachments[0].Name)
	assert.Equal(t, "text/plain", req.Attachments[0].MIMEType)
	assert.Equal(t, []byte("hi"), req.Attachments[0].Data)
}

func TestHandleTurn_Errors(t *testing.T) {
	srv, _ := newTestServer(t, "", nil)

	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "malformed json", body: `{"user_id":`, want: http.StatusBadRequest},
		{name: "empty utterance", body: `{"user_id": "u1", "utterance": "  "}`, want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postTurn(t, srv.URL, "", tt.body)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestHandleTurn_Auth(t *testing.T) {
	const secret = "s3cret"
	srv, turns := newTestServer(t, secret, nil)

	valid, err := IssueToken(secret, "alice", time.Hour)
	require.NoError(t, err)
	foreign, err := IssueToken("other", "alice", time.Hour)
	require.NoError(t, err)
	expired, err := IssueToken(secret, "alice", -time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{name: "missing token", token: "", want: http.StatusUnauthorized},
		{name: "garbage token", token: "not-a-jwt", want: http.StatusUnauthorized},
		{name: "wrong secret", token: foreign, want: http.StatusUnauthorized},
		{name: "expired", token: expired, want: http.StatusUnauthorized},
		{name: "valid", token: valid, want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postTurn(t, srv.URL, tt.token, `{"user_id": "mallory", "utterance": "hi"}`)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}

	req := turns.last()
	require.NotNil(t, req)
	assert.Equal(t, "alice", req.UserID)
}

func TestParseToken(t *testing.T) {
	token, err := IssueToken("k", "bob", time.Hour)
	require.NoError(t, err)

	userID, err := parseToken([]byte("k"), token)
	require.NoError(t, err)
	assert.Equal(t, "bob", userID)

	_, err = parseToken([]byte("other"), token)
	assert.Error(t, err)

	_, err = IssueToken("", "bob", time.Hour)
	assert.Error(t, err)
	_, err = IssueToken("k", "", time.Hour)
	assert.Error(t, err)
}

func dialStream(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/turn/stream" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	return conn
}

func TestHandleStream(t *testing.T) {
	srv, turns := newTestServer(t, "", nil)
	conn := dialStream(t, srv, "")

	require.NoError(t, conn.WriteJSON(map[string]string{"user_id": "u1", "utterance": "hello"}))

	var got []orchestrator.Chunk
	for range 4 {
		var c orchestrator.Chunk
		require.NoError(t, conn.ReadJSON(&c))
		got = append(got, c)
	}
	assert.Equal(t, orchestrator.ChunkMeta, got[0].Type)
	assert.Equal(t, routing.IntentGeneralChat, got[0].Intent)
	assert.Equal(t, "echo", got[1].Text)
	assert.Equal(t, []byte{1, 2, 3}, got[2].Audio)
	assert.Equal(t, orchestrator.ChunkDone, got[3].Type)
	require.NotNil(t, got[3].Result)
	assert.Equal(t, "echo", got[3].Result.Message)
	assert.Equal(t, "u1", turns.last().UserID)

	// The socket stays open for further turns and reports bad ones.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	var e streamError
	require.NoError(t, conn.ReadJSON(&e))
	assert.Equal(t, "error", e.Type)
	assert.Contains(t, e.Error, "invalid request")

	require.NoError(t, conn.WriteJSON(map[string]string{"user_id": "u1", "utterance": ""}))
	e = streamError{}
	require.NoError(t, conn.ReadJSON(&e))
	assert.Equal(t, "error", e.Type)
	assert.Contains(t, e.Error, "utterance is empty")
}

func TestHandleStream_TokenQuery(t *testing.T) {
	const secret = "s3cret"
	srv, turns := newTestServer(t, secret, nil)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/turn/stream"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token, err := IssueToken(secret, "carol", time.Hour)
	require.NoError(t, err)
	conn := dialStream(t, srv, "?token="+token)

	require.NoError(t, conn.WriteJSON(map[string]string{"utterance": "hi"}))
	var c orchestrator.Chunk
	require.NoError(t, conn.ReadJSON(&c))
	assert.Equal(t, orchestrator.ChunkMeta, c.Type)
	assert.Equal(t, "carol", turns.last().UserID)
}
