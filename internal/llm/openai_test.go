package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// capturedChat is the decoded request body seen by the fake completions server.
type capturedChat struct {
	mu   sync.Mutex
	body map[string]any
}

func (c *capturedChat) get() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.body
}

func newFakeCompletions(t *testing.T, status int, reply string, choices bool) (*httptest.Server, *capturedChat) {
	t.Helper()
	got := &capturedChat{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		got.mu.Lock()
		got.body = body
		got.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			w.Write([]byte(`{"error":{"message":"quota exceeded","type":"insufficient_quota"}}`))
			return
		}
		resp := map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"model":   "gpt-4o-mini-2024",
			"choices": []any{},
			"usage":   map[string]int{"prompt_tokens": 12, "completion_tokens": 5, "total_tokens": 17},
		}
		if choices {
			resp["choices"] = []any{map[string]any{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": reply},
				"finish_reason": "stop",
			}}
		}
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func TestOpenAICompleteRequestShape(t *testing.T) {
	srv, got := newFakeCompletions(t, http.StatusOK, "Whole life never expires.", true)
	p := NewCompatibleProvider("openai", srv.URL+"/v1", "test-key", "gpt-4o-mini")

	resp, err := p.Complete(context.Background(), CompletionRequest{
		Messages: []Message{
			SystemMessage("be brief"),
			UserMessage("what is whole life?"),
			AssistantMessage("It is permanent."),
			UserMessage("and cost?"),
		},
		MaxTokens:   150,
		Temperature: 0,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "Whole life never expires." {
		t.Errorf("unexpected content %q", resp.Content)
	}
	if resp.InputTokens != 12 || resp.OutputTokens != 5 {
		t.Errorf("unexpected usage %d/%d", resp.InputTokens, resp.OutputTokens)
	}
	if resp.Model != "gpt-4o-mini-2024" || resp.FinishReason != "stop" {
		t.Errorf("unexpected model/finish %q/%q", resp.Model, resp.FinishReason)
	}

	body := got.get()
	if body["model"] != "gpt-4o-mini" {
		t.Errorf("expected provider default model, got %v", body["model"])
	}
	if body["max_tokens"] != float64(150) {
		t.Errorf("expected max_tokens 150, got %v", body["max_tokens"])
	}
	temp, ok := body["temperature"].(float64)
	if !ok {
		t.Fatalf("temperature missing from request body: %v", body)
	}
	if temp <= 0 || temp > 1e-6 {
		t.Errorf("expected near-zero temperature, got %v", temp)
	}

	msgs, _ := body["messages"].([]any)
	wantRoles := []string{"system", "user", "assistant", "user"}
	if len(msgs) != len(wantRoles) {
		t.Fatalf("expected %d messages, got %d", len(wantRoles), len(msgs))
	}
	for i, m := range msgs {
		role := m.(map[string]any)["role"]
		if role != wantRoles[i] {
			t.Errorf("message %d: expected role %q, got %v", i, wantRoles[i], role)
		}
	}
}

func TestOpenAICompleteExplicitSettings(t *testing.T) {
	srv, got := newFakeCompletions(t, http.StatusOK, "ok", true)
	p := NewCompatibleProvider("openai", srv.URL+"/v1", "test-key", "gpt-4o-mini")

	_, err := p.Complete(context.Background(), CompletionRequest{
		Model:       "gpt-4o",
		Messages:    []Message{UserMessage("x")},
		Temperature: 0.5,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	body := got.get()
	if body["model"] != "gpt-4o" {
		t.Errorf("expected request model to win, got %v", body["model"])
	}
	if body["max_tokens"] != float64(4096) {
		t.Errorf("expected default max_tokens 4096, got %v", body["max_tokens"])
	}
	if body["temperature"] != 0.5 {
		t.Errorf("expected temperature 0.5, got %v", body["temperature"])
	}
}

func TestOpenAICompleteNoChoices(t *testing.T) {
	srv, _ := newFakeCompletions(t, http.StatusOK, "", false)
	p := NewCompatibleProvider("openai", srv.URL+"/v1", "test-key", "gpt-4o-mini")

	if _, err := p.Complete(context.Background(), CompletionRequest{Messages: []Message{UserMessage("x")}}); err == nil {
		t.Error("expected error for a completion with no choices")
	}
}

func TestOpenAICompleteServerError(t *testing.T) {
	srv, _ := newFakeCompletions(t, http.StatusTooManyRequests, "", false)
	p := NewCompatibleProvider("openai", srv.URL+"/v1", "test-key", "gpt-4o-mini")

	if _, err := p.Complete(context.Background(), CompletionRequest{Messages: []Message{UserMessage("x")}}); err == nil {
		t.Error("expected error for a non-200 response")
	}
}

func TestCompatibleProviderName(t *testing.T) {
	srv, _ := newFakeCompletions(t, http.StatusOK, "hi", true)
	p := NewCompatibleProvider("ollama", srv.URL+"/v1", "ollama", "llama3")
	if p.Name() != "ollama" {
		t.Errorf("expected name 'ollama', got %q", p.Name())
	}
	resp, err := p.Complete(context.Background(), CompletionRequest{Messages: []Message{UserMessage("x")}})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "hi" {
		t.Errorf("unexpected content %q", resp.Content)
	}
}
