package stubserver_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"memchat/internal/stubserver"
)

func newTestRouter(t *testing.T, opts stubserver.Options) (http.Handler, *stubserver.Server) {
	t.Helper()
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := stubserver.New(nil, opts)
	return srv.Router(), srv
}

type chatReply struct {
	Response          string `json:"response"`
	SessionID         string `json:"session_id"`
	ContextUsed       bool   `json:"context_used"`
	ConversationCount int    `json:"conversation_count"`
}

func postChat(t *testing.T, h http.Handler, body string) (*httptest.ResponseRecorder, chatReply) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var reply chatReply
	if w.Code == http.StatusOK {
		if err := json.Unmarshal(w.Body.Bytes(), &reply); err != nil {
			t.Fatalf("expected JSON reply, got %v: %s", err, w.Body.String())
		}
	}
	return w, reply
}

func TestHealth(t *testing.T) {
	h, _ := newTestRouter(t, stubserver.Options{})
	for _, path := range []string{"/health", "/api/health"} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, w.Code)
		}
		if !strings.Contains(w.Body.String(), `"status":"healthy"`) {
			t.Fatalf("%s: unexpected body %s", path, w.Body.String())
		}
	}
}

func TestPing(t *testing.T) {
	h, _ := newTestRouter(t, stubserver.Options{})
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ping", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "pong") {
		t.Fatalf("unexpected ping answer %d %s", w.Code, w.Body.String())
	}
}

func TestChatCreatesSessionAndCounts(t *testing.T) {
	h, _ := newTestRouter(t, stubserver.Options{})

	w, first := postChat(t, h, `{"message":"hello","session_id":null}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if first.SessionID == "" || first.ConversationCount != 1 || first.ContextUsed {
		t.Fatalf("unexpected first reply: %+v", first)
	}
	if first.Response != "You said: hello" {
		t.Fatalf("unexpected response text %q", first.Response)
	}

	_, second := postChat(t, h, `{"message":"again","session_id":"`+first.SessionID+`"}`)
	if second.SessionID != first.SessionID {
		t.Fatalf("expected session to be kept, got %q", second.SessionID)
	}
	if second.ConversationCount != 2 || !second.ContextUsed {
		t.Fatalf("unexpected second reply: %+v", second)
	}
}

func TestChatUnknownSessionGetsNewOne(t *testing.T) {
	h, _ := newTestRouter(t, stubserver.Options{})
	_, reply := postChat(t, h, `{"message":"hello","session_id":"not-a-session"}`)
	if reply.SessionID == "" || reply.SessionID == "not-a-session" {
		t.Fatalf("expected a freshly issued session, got %q", reply.SessionID)
	}
}

func TestChatRejectsBlankMessage(t *testing.T) {
	h, _ := newTestRouter(t, stubserver.Options{})
	w, _ := postChat(t, h, `{"message":"   "}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Message is required") {
		t.Fatalf("unexpected body %s", w.Body.String())
	}
}

func TestChatRejectsInvalidJSON(t *testing.T) {
	h, _ := newTestRouter(t, stubserver.Options{})
	w, _ := postChat(t, h, `not-json`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestChatFailWith(t *testing.T) {
	h, _ := newTestRouter(t, stubserver.Options{FailWith: http.StatusBadGateway})
	w, _ := postChat(t, h, `{"message":"hello"}`)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
}

func TestCustomResponder(t *testing.T) {
	h, _ := newTestRouter(t, stubserver.Options{Responder: func(message string, remembered int) string {
		return strings.ToUpper(message)
	}})
	_, reply := postChat(t, h, `{"message":"shout"}`)
	if reply.Response != "SHOUT" {
		t.Fatalf("got %q, want SHOUT", reply.Response)
	}
}

func TestHistorySessionsAndStats(t *testing.T) {
	h, srv := newTestRouter(t, stubserver.Options{})
	_, first := postChat(t, h, `{"message":"one"}`)
	postChat(t, h, `{"message":"two","session_id":"`+first.SessionID+`"}`)
	postChat(t, h, `{"message":"other"}`)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/history/"+first.SessionID, nil))
	var history []stubserver.Exchange
	if err := json.Unmarshal(w.Body.Bytes(), &history); err != nil {
		t.Fatalf("expected history JSON, got %v", err)
	}
	if len(history) != 2 || history[0].User != "one" || history[1].User != "two" {
		t.Fatalf("unexpected history %+v", history)
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/history/missing", nil))
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Fatalf("expected empty history array, got %s", w.Body.String())
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/sessions", nil))
	var sessions []string
	if err := json.Unmarshal(w.Body.Bytes(), &sessions); err != nil || len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %v (%v)", sessions, err)
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	var stats struct {
		TotalConversations int `json:"total_conversations"`
		ActiveSessions     int `json:"active_sessions"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("expected stats JSON, got %v", err)
	}
	if stats.TotalConversations != 3 || stats.ActiveSessions != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if exchanges, sessions := srv.Store().Totals(); exchanges != 3 || sessions != 2 {
		t.Fatalf("unexpected store totals %d/%d", exchanges, sessions)
	}
}

func TestCORSPreflight(t *testing.T) {
	h, _ := newTestRouter(t, stubserver.Options{AllowedOrigins: []string{"http://localhost:3000"}})
	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("expected allowed origin header, got %q", got)
	}
}

func TestRequestLoggingUsesConfiguredLogger(t *testing.T) {
	var buf bytes.Buffer
	srv := stubserver.New(nil, stubserver.Options{
		RequestLogging: true,
		Logger:         slog.New(slog.NewTextHandler(&buf, nil)),
		FailWith:       http.StatusBadGateway,
	})
	h := srv.Router()

	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)
	req = httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"hi"}`))
	h.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	for _, want := range []string{
		`msg="http request"`,
		"method=GET path=/api/ping",
		"status=200",
		"level=WARN",
		"status=502",
		"request_id=",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in request log, got:\n%s", want, out)
		}
	}
}
