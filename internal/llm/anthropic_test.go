package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAnthropicChat(t *testing.T) {
	var gotReq anthropicRequest
	var gotHeaders http.Header

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		resp := anthropicResponse{
			Role:       "assistant",
			Model:      "test-model",
			StopReason: StopEndTurn,
			Content:    []Block{TextBlock("hola")},
			Usage:      anthropicUsage{InputTokens: 10, OutputTokens: 2},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := NewAnthropicClient("test-key", "test-model", nil)
	c.SetAPIURL(srv.URL)

	resp, err := c.Chat(context.Background(), &Request{
		Model:    "test-model",
		System:   "be brief",
		Messages: []Message{UserText("hi")},
		Tools: []ToolDef{{
			Name:        "list_tasks",
			Description: "List pending tasks.",
			InputSchema: map[string]any{"type": "object", "properties": map[string]any{}},
		}},
	})
	if err != nil {
		t.Fatalf("Chat() error: %v", err)
	}

	if gotHeaders.Get("x-api-key") != "test-key" {
		t.Errorf("x-api-key = %q, want %q", gotHeaders.Get("x-api-key"), "test-key")
	}
	if gotHeaders.Get("anthropic-version") != anthropicAPIVersion {
		t.Errorf("anthropic-version = %q, want %q", gotHeaders.Get("anthropic-version"), anthropicAPIVersion)
	}
	if gotReq.System != "be brief" {
		t.Errorf("system = %q, want %q", gotReq.System, "be brief")
	}
	if gotReq.MaxTokens != defaultMaxTokens {
		t.Errorf("max_tokens = %d, want %d", gotReq.MaxTokens, defaultMaxTokens)
	}
	if len(gotReq.Tools) != 1 || gotReq.Tools[0].Name != "list_tasks" {
		t.Errorf("tools = %+v, want one list_tasks entry", gotReq.Tools)
	}

	if resp.StopReason != StopEndTurn {
		t.Errorf("stop_reason = %q, want %q", resp.StopReason, StopEndTurn)
	}
	if resp.Text() != "hola" {
		t.Errorf("text = %q, want %q", resp.Text(), "hola")
	}
	if resp.InputTokens != 10 || resp.OutputTokens != 2 {
		t.Errorf("usage = (%d, %d), want (10, 2)", resp.InputTokens, resp.OutputTokens)
	}
}

func TestAnthropicChatToolUse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := anthropicResponse{
			Role:       "assistant",
			Model:      "test-model",
			StopReason: StopToolUse,
			Content: []Block{
				TextBlock("Déjame mirar."),
				ToolUseBlock("toolu_abc", "get_calendar_events", map[string]any{
					"start": "2026-08-30T00:00:00+02:00",
					"end":   "2026-08-31T00:00:00+02:00",
				}),
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := NewAnthropicClient("test-key", "test-model", nil)
	c.SetAPIURL(srv.URL)

	resp, err := c.Chat(context.Background(), &Request{
		Model:    "test-model",
		Messages: []Message{UserText("¿Tengo algo mañana?")},
	})
	if err != nil {
		t.Fatalf("Chat() error: %v", err)
	}

	uses := resp.ToolUses()
	if len(uses) != 1 {
		t.Fatalf("len(ToolUses()) = %d, want 1", len(uses))
	}
	if uses[0].ID != "toolu_abc" || uses[0].Name != "get_calendar_events" {
		t.Errorf("tool_use = (%q, %q), want (toolu_abc, get_calendar_events)", uses[0].ID, uses[0].Name)
	}
	if _, ok := uses[0].Input["start"]; !ok {
		t.Error("tool_use input missing start field")
	}
}

func TestPingUsesConfiguredModel(t *testing.T) {
	var gotReq anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(anthropicResponse{
			Role:       "assistant",
			StopReason: StopMaxTokens,
			Content:    []Block{TextBlock("p")},
		})
	}))
	defer srv.Close()

	c := NewAnthropicClient("test-key", "claude-haiku-test", nil)
	c.SetAPIURL(srv.URL)

	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error: %v", err)
	}
	if gotReq.Model != "claude-haiku-test" {
		t.Errorf("pinged model = %q, want %q", gotReq.Model, "claude-haiku-test")
	}
	if gotReq.MaxTokens != 1 {
		t.Errorf("max_tokens = %d, want 1", gotReq.MaxTokens)
	}
}

func TestPingInvalidKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"type":"authentication_error"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewAnthropicClient("bad-key", "", nil)
	c.SetAPIURL(srv.URL)

	if err := c.Ping(context.Background()); err == nil {
		t.Fatal("Ping() with 401 should fail")
	}
}

func TestAnthropicChatAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"type":"overloaded_error"}}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewAnthropicClient("test-key", "test-model", nil)
	c.SetAPIURL(srv.URL)

	_, err := c.Chat(context.Background(), &Request{
		Model:    "test-model",
		Messages: []Message{UserText("hi")},
	})
	if err == nil {
		t.Fatal("expected error for 503 response, got nil")
	}
}
