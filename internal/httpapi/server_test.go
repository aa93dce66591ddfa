package httpapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xaenox/unimind/internal/auth"
	"github.com/xaenox/unimind/internal/conversation"
	"github.com/xaenox/unimind/internal/httpapi"
	"github.com/xaenox/unimind/internal/models"
	"github.com/xaenox/unimind/internal/responder"
	"github.com/xaenox/unimind/internal/storage"
	"github.com/xaenox/unimind/internal/tools"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixture struct {
	router *gin.Engine
	store  *storage.MemoryStorage
}

func newFixture(t *testing.T, r responder.Responder, cfg httpapi.Config) *fixture {
	t.Helper()
	logger := zap.NewNop()
	store := storage.NewMemoryStorage()

	resolver := auth.NewResolver(auth.NewStaticVerifier(map[string]string{
		"token-a": "tenant-a",
		"token-b": "tenant-b",
	}), logger)

	h := httpapi.NewHandlers(
		conversation.NewManager(store, r, 10, logger),
		tools.NewDispatcher(store, tools.DefaultLimits(), logger),
		"1.0.0",
		logger,
	)
	return &fixture{
		router: httpapi.NewRouter(h, resolver, cfg, logger),
		store:  store,
	}
}

func (f *fixture) do(t *testing.T, method, path, token, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return w, out
}

func TestHealth_NoAuth(t *testing.T) {
	f := newFixture(t, responder.Stub{}, httpapi.Config{})

	w, body := f.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "1.0.0", body["version"])

	_, err := time.Parse(time.RFC3339, body["timestamp"].(string))
	assert.NoError(t, err)
}

func TestAuth(t *testing.T) {
	f := newFixture(t, responder.Stub{}, httpapi.Config{})

	for _, header := range []string{"", "token-a", "Basic token-a"} {
		w, body := f.do(t, http.MethodPost, "/api/mcp/tools/list", header, `{}`)
		assert.Equal(t, http.StatusUnauthorized, w.Code, header)
		assert.Equal(t, "Unauthorized", body["error"], header)
	}

	w, body := f.do(t, http.MethodPost, "/api/chat/send-message", "Bearer forged", `{"message":"hi"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid token", body["error"])

	turns, err := f.store.LatestTurns(context.Background(), "tenant-a", "x", 10)
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestSendMessage(t *testing.T) {
	f := newFixture(t, responder.Stub{}, httpapi.Config{})

	w, body := f.do(t, http.MethodPost, "/api/chat/send-message", "Bearer token-a", `{"message":"Bonjour"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, responder.StubText, body["response"])
	assert.Equal(t, "demo", body["model"])

	threadID := body["conversation_id"].(string)
	require.NotEmpty(t, threadID)

	w, body = f.do(t, http.MethodPost, "/api/chat/send-message", "Bearer token-a",
		`{"message":"encore","conversation_id":"`+threadID+`"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, threadID, body["conversation_id"])

	turns, err := f.store.LatestTurns(context.Background(), "tenant-a", threadID, 10)
	require.NoError(t, err)
	assert.Len(t, turns, 4)
}

func TestSendMessage_MissingMessage(t *testing.T) {
	f := newFixture(t, responder.Stub{}, httpapi.Config{})

	for _, payload := range []string{``, `{}`, `{"message":""}`, `{"message":"   "}`} {
		w, body := f.do(t, http.MethodPost, "/api/chat/send-message", "Bearer token-a", payload)
		assert.Equal(t, http.StatusBadRequest, w.Code, payload)
		assert.Equal(t, "Message required", body["error"], payload)
	}
}

func TestBodyBinding(t *testing.T) {
	f := newFixture(t, responder.Stub{}, httpapi.Config{})

	w, body := f.do(t, http.MethodPost, "/api/chat/send-message", "Bearer token-a", `{"message":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid request body", body["error"])

	w, body = f.do(t, http.MethodPost, "/api/mcp/tools/list", "Bearer token-a", `[1,2]`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid request body", body["error"])

	w, body = f.do(t, http.MethodPost, "/api/mcp/tools/list", "Bearer token-a", ``)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), body["id"])
}

func TestSendMessage_ResponderFailure(t *testing.T) {
	failing := responder.Func(func(ctx context.Context, history []models.Turn) (responder.Reply, error) {
		return responder.Reply{}, errors.New("model offline")
	})
	f := newFixture(t, failing, httpapi.Config{})

	w, body := f.do(t, http.MethodPost, "/api/chat/send-message", "Bearer token-a", `{"message":"hi"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, body["error"], "model offline")
}

func TestToolsList(t *testing.T) {
	f := newFixture(t, responder.Stub{}, httpapi.Config{})

	w, body := f.do(t, http.MethodPost, "/api/mcp/tools/list", "Bearer token-a", `{}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2.0", body["jsonrpc"])
	assert.Equal(t, float64(1), body["id"])

	toolsList := body["result"].(map[string]any)["tools"].([]any)
	require.Len(t, toolsList, 3)
	names := make([]string, 0, len(toolsList))
	for _, raw := range toolsList {
		tool := raw.(map[string]any)
		names = append(names, tool["name"].(string))
		assert.NotEmpty(t, tool["inputSchema"])
	}
	assert.Equal(t, []string{"save_note", "search_notes", "list_notes"}, names)

	_, body = f.do(t, http.MethodPost, "/api/mcp/tools/list", "Bearer token-a", `{"id":"abc"}`)
	assert.Equal(t, "abc", body["id"])
}

func TestToolsCall_SaveSearchList(t *testing.T) {
	f := newFixture(t, responder.Stub{}, httpapi.Config{})

	w, body := f.do(t, http.MethodPost, "/api/mcp/tools/call", "Bearer token-a",
		`{"params":{"name":"save_note","arguments":{"title":"T","content":"C"}},"id":1}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), body["id"])
	result := body["result"].(map[string]any)
	assert.Equal(t, true, result["success"])
	assert.NotEmpty(t, result["note_id"])

	_, body = f.do(t, http.MethodPost, "/api/mcp/tools/call", "Bearer token-a",
		`{"params":{"name":"list_notes","arguments":{}},"id":2}`)
	notes := body["result"].(map[string]any)["notes"].([]any)
	require.Len(t, notes, 1)
	note := notes[0].(map[string]any)
	assert.Equal(t, "T", note["title"])
	assert.Equal(t, "C", note["content"])
	assert.Equal(t, []any{}, note["tags"])

	_, body = f.do(t, http.MethodPost, "/api/mcp/tools/call", "Bearer token-a",
		`{"params":{"name":"search_notes","arguments":{"query":"xyz"}},"id":3}`)
	result = body["result"].(map[string]any)
	assert.Equal(t, true, result["success"])
	assert.Equal(t, []any{}, result["notes"])
	assert.Equal(t, float64(0), result["count"])
}

func TestToolsCall_TenantIsolation(t *testing.T) {
	f := newFixture(t, responder.Stub{}, httpapi.Config{})

	f.do(t, http.MethodPost, "/api/mcp/tools/call", "Bearer token-a",
		`{"params":{"name":"save_note","arguments":{"title":"private","content":"of a"}},"id":1}`)

	_, body := f.do(t, http.MethodPost, "/api/mcp/tools/call", "Bearer token-b",
		`{"params":{"name":"list_notes","arguments":{}},"id":2}`)
	assert.Empty(t, body["result"].(map[string]any)["notes"])
}

func TestToolsCall_Errors(t *testing.T) {
	f := newFixture(t, responder.Stub{}, httpapi.Config{})

	w, body := f.do(t, http.MethodPost, "/api/mcp/tools/call", "Bearer token-a",
		`{"params":{"name":"unknown_tool","arguments":{}},"id":"req-9"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "2.0", body["jsonrpc"])
	assert.Equal(t, "req-9", body["id"])
	assert.Equal(t, float64(-1), body["error"].(map[string]any)["code"])

	w, body = f.do(t, http.MethodPost, "/api/mcp/tools/call", "Bearer token-a",
		`{"params":{"name":"save_note","arguments":{"title":"only"}},"id":5}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, float64(5), body["id"])
	assert.Contains(t, body["error"].(map[string]any)["message"], "content")

	w, body = f.do(t, http.MethodPost, "/api/mcp/tools/call", "Bearer token-a", `not json`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, body, "id")
	assert.Equal(t, float64(-1), body["error"].(map[string]any)["code"])
}

func TestRateLimit(t *testing.T) {
	f := newFixture(t, responder.Stub{}, httpapi.Config{RateLimit: 0.001, RateBurst: 2})

	for range 2 {
		w, _ := f.do(t, http.MethodPost, "/api/mcp/tools/list", "Bearer token-a", `{}`)
		assert.Equal(t, http.StatusOK, w.Code)
	}

	w, body := f.do(t, http.MethodPost, "/api/mcp/tools/list", "Bearer token-a", `{}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "Rate limit exceeded", body["error"])

	w, _ = f.do(t, http.MethodPost, "/api/mcp/tools/list", "Bearer token-b", `{}`)
	assert.Equal(t, http.StatusOK, w.Code, "buckets are per tenant")
}

func TestRecovery(t *testing.T) {
	panicking := responder.Func(func(ctx context.Context, history []models.Turn) (responder.Reply, error) {
		panic("boom")
	})
	f := newFixture(t, panicking, httpapi.Config{})

	w, body := f.do(t, http.MethodPost, "/api/chat/send-message", "Bearer token-a", `{"message":"hi"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "boom", body["error"])
}

func TestServe_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- httpapi.Serve(ctx, http.NotFoundHandler(), httpapi.Config{Addr: "127.0.0.1:0"}, zap.NewNop())
	}()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
