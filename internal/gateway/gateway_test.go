package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ziadkadry99/policyvoice/internal/db"
	"github.com/ziadkadry99/policyvoice/internal/knowledge"
	"github.com/ziadkadry99/policyvoice/internal/llm"
	"github.com/ziadkadry99/policyvoice/internal/pipeline"
	"github.com/ziadkadry99/policyvoice/internal/session"
	"github.com/ziadkadry99/policyvoice/internal/speech"
	"github.com/ziadkadry99/policyvoice/internal/turn"
)

type mockProvider struct {
	mu  sync.Mutex
	err error
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	last := req.Messages[len(req.Messages)-1].Content
	return &llm.CompletionResponse{Content: "answer to: " + last}, nil
}

func (m *mockProvider) fail(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

type mockTranscriber struct {
	text  string
	err   error
	mu    sync.Mutex
	audio []byte
}

func (m *mockTranscriber) Transcribe(_ context.Context, audio []byte, _ string) (string, error) {
	m.mu.Lock()
	m.audio = audio
	m.mu.Unlock()
	if m.err != nil {
		return "", &speech.TranscriptionError{Err: m.err}
	}
	return m.text, nil
}

type testEnv struct {
	gw          *Gateway
	store       session.Store
	provider    *mockProvider
	transcriber *mockTranscriber
	router      chi.Router
}

func setupTest(t *testing.T) *testEnv {
	t.Helper()

	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	store := session.NewSQLiteStore(database)
	prov := &mockProvider{}
	p := pipeline.New(zerolog.Nop(),
		pipeline.NewLookupStage(knowledge.NewLookup(knowledge.Base{})),
		pipeline.NewAnswerStage(prov, pipeline.AnswerConfig{Model: "test"}),
	)
	orch := turn.NewOrchestrator(store, p)
	tr := &mockTranscriber{text: "What is term life?"}

	gw := New(orch, store, tr, zerolog.Nop())
	r := chi.NewRouter()
	gw.RegisterRoutes(r)
	return &testEnv{gw: gw, store: store, provider: prov, transcriber: tr, router: r}
}

func dial(t *testing.T, r http.Handler) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMsg(t *testing.T, conn *websocket.Conn) outboundMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg outboundMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func TestWebSocketUpgrade(t *testing.T) {
	env := setupTest(t)
	server := httptest.NewServer(env.router)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	defer conn.Close()

	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("expected 101, got %d", resp.StatusCode)
	}
}

func TestWebSocketTextUsesConnectionSession(t *testing.T) {
	env := setupTest(t)
	conn := dial(t, env.router)

	conn.WriteJSON(inboundMessage{Type: "text", Data: "hello"})
	first := readMsg(t, conn)
	if first.Type != "response" || first.Text != "answer to: hello" {
		t.Fatalf("unexpected response %+v", first)
	}
	if !strings.HasPrefix(first.SessionID, "conn_") || len(first.SessionID) != len("conn_")+8 {
		t.Errorf("expected conn_<8 hex> session id, got %q", first.SessionID)
	}

	conn.WriteJSON(inboundMessage{Type: "text", Data: "again"})
	second := readMsg(t, conn)
	if second.SessionID != first.SessionID {
		t.Errorf("expected same default session, got %q then %q", first.SessionID, second.SessionID)
	}

	msgs, _ := env.store.Load(context.Background(), first.SessionID)
	if len(msgs) != 4 {
		t.Errorf("expected 4 stored messages, got %d", len(msgs))
	}
}

func TestWebSocketConnectionsGetDistinctSessions(t *testing.T) {
	env := setupTest(t)
	a := dial(t, env.router)
	b := dial(t, env.router)

	a.WriteJSON(inboundMessage{Type: "text", Data: "hi"})
	b.WriteJSON(inboundMessage{Type: "text", Data: "hi"})
	if ra, rb := readMsg(t, a), readMsg(t, b); ra.SessionID == rb.SessionID {
		t.Errorf("expected distinct connection sessions, both got %q", ra.SessionID)
	}
}

func TestWebSocketExplicitSession(t *testing.T) {
	env := setupTest(t)
	conn := dial(t, env.router)

	conn.WriteJSON(inboundMessage{Type: "text", Data: "What is term life?", SessionID: "s1"})
	resp := readMsg(t, conn)
	if resp.SessionID != "s1" {
		t.Errorf("expected session s1, got %q", resp.SessionID)
	}
	msgs, _ := env.store.Load(context.Background(), "s1")
	if len(msgs) != 2 {
		t.Errorf("expected 2 stored messages, got %d", len(msgs))
	}
}

func TestWebSocketAudio(t *testing.T) {
	env := setupTest(t)
	conn := dial(t, env.router)

	payload := "data:audio/webm;base64," + base64.StdEncoding.EncodeToString([]byte("webm-bytes"))
	conn.WriteJSON(inboundMessage{Type: "audio", Data: payload, SessionID: "voice"})

	transcript := readMsg(t, conn)
	if transcript.Type != "transcript" || transcript.Text != "What is term life?" {
		t.Fatalf("expected transcript first, got %+v", transcript)
	}
	resp := readMsg(t, conn)
	if resp.Type != "response" || resp.Text != "answer to: What is term life?" {
		t.Fatalf("unexpected response %+v", resp)
	}
	env.transcriber.mu.Lock()
	got := string(env.transcriber.audio)
	env.transcriber.mu.Unlock()
	if got != "webm-bytes" {
		t.Errorf("transcriber got %q", got)
	}
}

func TestWebSocketTranscriptionError(t *testing.T) {
	env := setupTest(t)
	env.transcriber.err = errors.New("whisper down")
	conn := dial(t, env.router)

	payload := base64.StdEncoding.EncodeToString([]byte("webm-bytes"))
	conn.WriteJSON(inboundMessage{Type: "audio", Data: payload, SessionID: "voice"})

	resp := readMsg(t, conn)
	if resp.Type != "error" || resp.Message != msgTranscriptionFailed {
		t.Fatalf("expected error message, got %+v", resp)
	}
	if strings.Contains(resp.Message, "whisper down") {
		t.Errorf("transcriber cause leaked to client: %q", resp.Message)
	}
	msgs, _ := env.store.Load(context.Background(), "voice")
	if len(msgs) != 0 {
		t.Errorf("expected nothing stored, got %d messages", len(msgs))
	}
}

func TestWebSocketNilTranscriber(t *testing.T) {
	env := setupTest(t)
	env.gw.transcriber = nil
	conn := dial(t, env.router)

	conn.WriteJSON(inboundMessage{Type: "audio", Data: base64.StdEncoding.EncodeToString([]byte("x"))})
	resp := readMsg(t, conn)
	if resp.Type != "error" || !strings.Contains(resp.Message, "not configured") {
		t.Errorf("expected not configured error, got %+v", resp)
	}
}

func TestWebSocketUpstreamError(t *testing.T) {
	env := setupTest(t)
	conn := dial(t, env.router)

	conn.WriteJSON(inboundMessage{Type: "text", Data: "first", SessionID: "s"})
	readMsg(t, conn)

	env.provider.fail(errors.New("rate limited"))
	conn.WriteJSON(inboundMessage{Type: "text", Data: "second", SessionID: "s"})
	resp := readMsg(t, conn)
	if resp.Type != "error" || resp.Message != msgAssistantUnavailable {
		t.Fatalf("expected upstream error, got %+v", resp)
	}
	if strings.Contains(resp.Message, "rate limited") {
		t.Errorf("provider cause leaked to client: %q", resp.Message)
	}

	msgs, _ := env.store.Load(context.Background(), "s")
	if len(msgs) != 2 {
		t.Errorf("expected conversation unchanged at 2 messages, got %d", len(msgs))
	}
}

func TestWebSocketMalformedInputIgnored(t *testing.T) {
	env := setupTest(t)
	conn := dial(t, env.router)

	conn.WriteMessage(websocket.TextMessage, []byte("{not json"))
	conn.WriteJSON(inboundMessage{Type: "unknown", Data: "hello"})
	conn.WriteJSON(inboundMessage{Type: "text", Data: "   "})
	conn.WriteJSON(inboundMessage{Type: "audio", Data: ""})
	conn.WriteJSON(inboundMessage{Type: "audio", Data: "%%%not base64%%%"})
	conn.WriteJSON(inboundMessage{Type: "text", Data: "valid"})

	// The only reply is to the valid message.
	resp := readMsg(t, conn)
	if resp.Type != "response" || resp.Text != "answer to: valid" {
		t.Fatalf("expected response to valid message, got %+v", resp)
	}
	if n, _ := env.store.CountSessions(context.Background()); n != 1 {
		t.Errorf("expected 1 session, got %d", n)
	}
}

func TestWebSocketEmptyTranscriptIgnored(t *testing.T) {
	env := setupTest(t)
	env.transcriber.text = ""
	conn := dial(t, env.router)

	conn.WriteJSON(inboundMessage{Type: "audio", Data: base64.StdEncoding.EncodeToString([]byte("silence"))})
	conn.WriteJSON(inboundMessage{Type: "text", Data: "next"})

	resp := readMsg(t, conn)
	if resp.Type != "response" || resp.Text != "answer to: next" {
		t.Fatalf("expected silent audio to be skipped, got %+v", resp)
	}
}

func TestWebSocketResetKeepsStoredConversation(t *testing.T) {
	env := setupTest(t)
	conn := dial(t, env.router)

	conn.WriteJSON(inboundMessage{Type: "text", Data: "before"})
	before := readMsg(t, conn)

	conn.WriteJSON(inboundMessage{Type: "reset"})
	reset := readMsg(t, conn)
	if reset.Type != "response" || reset.Text != "Session reset." {
		t.Fatalf("unexpected reset reply %+v", reset)
	}
	if reset.SessionID == before.SessionID {
		t.Error("expected reset to rotate the connection session")
	}

	conn.WriteJSON(inboundMessage{Type: "text", Data: "after"})
	after := readMsg(t, conn)
	if after.SessionID != reset.SessionID {
		t.Errorf("expected new default session %q, got %q", reset.SessionID, after.SessionID)
	}

	ctx := context.Background()
	old, _ := env.store.Load(ctx, before.SessionID)
	if len(old) != 2 {
		t.Errorf("expected old conversation untouched with 2 messages, got %d", len(old))
	}
	fresh, _ := env.store.Load(ctx, after.SessionID)
	if len(fresh) != 2 {
		t.Errorf("expected fresh conversation with 2 messages, got %d", len(fresh))
	}
}

func TestWebSocketReadLimit(t *testing.T) {
	env := setupTest(t)
	env.gw.SetMaxMessageBytes(64)
	conn := dial(t, env.router)

	conn.WriteJSON(inboundMessage{Type: "text", Data: strings.Repeat("x", 256)})
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected connection to close on oversized frame")
	}
}

func TestListSessionsEndpoint(t *testing.T) {
	env := setupTest(t)
	ctx := context.Background()
	env.store.Append(ctx, "a", llm.UserMessage("q"), llm.AssistantMessage("r"))
	env.store.Append(ctx, "b", llm.UserMessage("q"), llm.AssistantMessage("r"))

	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp sessionsResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if resp.Total != 2 || len(resp.Sessions) != 2 {
		t.Errorf("expected 2 sessions, got total=%d len=%d", resp.Total, len(resp.Sessions))
	}
	for _, s := range resp.Sessions {
		if s.MessageCount != 2 {
			t.Errorf("session %s: expected 2 messages, got %d", s.ID, s.MessageCount)
		}
	}
}

func TestListSessionsInvalidLimit(t *testing.T) {
	env := setupTest(t)
	req := httptest.NewRequest(http.MethodGet, "/api/sessions?limit=abc", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestSessionMessagesEndpoint(t *testing.T) {
	env := setupTest(t)
	env.store.Append(context.Background(), "s1", llm.UserMessage("q"), llm.AssistantMessage("r"))

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/s1/messages", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	var resp messagesResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.SessionID != "s1" || len(resp.Messages) != 2 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.Messages[0].Role != llm.RoleUser || resp.Messages[1].Role != llm.RoleAssistant {
		t.Errorf("unexpected roles %+v", resp.Messages)
	}

	// Unseen sessions are an empty list, not an error.
	req = httptest.NewRequest(http.MethodGet, "/api/sessions/nope/messages", nil)
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"messages":[]`) {
		t.Errorf("expected empty messages, got %d %s", w.Code, w.Body.String())
	}
}

func postChat(t *testing.T, r http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestChatEndpoint(t *testing.T) {
	env := setupTest(t)

	w := postChat(t, env.router, `{"session_id":"rest","text":"hello"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp chatBody
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.SessionID != "rest" || resp.Text != "answer to: hello" {
		t.Errorf("unexpected response %+v", resp)
	}

	w = postChat(t, env.router, `{"text":"no session"}`)
	json.NewDecoder(w.Body).Decode(&resp)
	if !strings.HasPrefix(resp.SessionID, "api_") {
		t.Errorf("expected generated api_ session id, got %q", resp.SessionID)
	}
}

func TestChatEndpointBadRequests(t *testing.T) {
	env := setupTest(t)
	for _, body := range []string{`not json`, `{"text":""}`, `{"text":"   "}`} {
		if w := postChat(t, env.router, body); w.Code != http.StatusBadRequest {
			t.Errorf("body %q: expected 400, got %d", body, w.Code)
		}
	}
}

func TestChatEndpointUpstreamFailure(t *testing.T) {
	env := setupTest(t)
	env.provider.fail(errors.New("invalid api key sk-secret"))

	w := postChat(t, env.router, `{"session_id":"rest","text":"hello"}`)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body["error"] != msgAssistantUnavailable || body["session_id"] != "rest" {
		t.Errorf("unexpected body %v", body)
	}
	if strings.Contains(w.Body.String(), "sk-secret") {
		t.Errorf("provider cause leaked to client: %s", w.Body.String())
	}
	msgs, _ := env.store.Load(context.Background(), "rest")
	if len(msgs) != 0 {
		t.Errorf("expected nothing stored, got %d", len(msgs))
	}
}

func TestServeIndex(t *testing.T) {
	env := setupTest(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "text/html") {
		t.Errorf("expected text/html content type, got %q", ct)
	}
	if !strings.Contains(w.Body.String(), "PolicyVoice Assistant") {
		t.Error("expected HTML to contain 'PolicyVoice Assistant'")
	}
}
