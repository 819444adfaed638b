package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestOpenAICompat_Complete(t *testing.T) {
	var body map[string]any
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/openai/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("bad body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "gemini-3-flash-preview",
			"choices": [{
				"index": 0,
				"finish_reason": "tool_calls",
				"message": {
					"role": "assistant",
					"content": "",
					"tool_calls": [{
						"id": "call_1",
						"type": "function",
						"function": {"name": "trigger_pipeline", "arguments": "{\"mode\":\"dry_run\"}"}
					}]
				}
			}]
		}`))
	}))
	defer server.Close()

	c := NewOpenAICompat(server.URL+"/v1beta/openai/", 5*time.Second)
	got, err := c.Complete(context.Background(), "secret", ChatRequest{
		Model:     "gemini-3-flash-preview",
		System:    "sys",
		Prompt:    "scan my library",
		Tools:     Tools,
		MaxTokens: 100,
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	if auth != "Bearer secret" {
		t.Errorf("unexpected auth %q", auth)
	}
	if body["model"] != "gemini-3-flash-preview" {
		t.Errorf("unexpected model %v", body["model"])
	}
	if msgs, _ := body["messages"].([]any); len(msgs) != 2 {
		t.Errorf("expected system and user messages, got %v", body["messages"])
	}
	if tools, _ := body["tools"].([]any); len(tools) != len(Tools) {
		t.Errorf("expected %d tools, got %v", len(Tools), body["tools"])
	}

	if len(got.ToolCalls) != 1 || got.ToolCalls[0].Name != ToolTriggerPipeline || got.ToolCalls[0].Arguments != `{"mode":"dry_run"}` {
		t.Errorf("unexpected tool calls %+v", got.ToolCalls)
	}
	if got.FinishReason != "tool_calls" {
		t.Errorf("unexpected finish reason %q", got.FinishReason)
	}
}

func TestOpenAICompat_ErrorNotRetried(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"quota","type":"rate_limit"}}`))
	}))
	defer server.Close()

	c := NewOpenAICompat(server.URL+"/", time.Second)
	if _, err := c.Complete(context.Background(), "k", ChatRequest{Model: "m", Prompt: "p"}); err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected a single attempt, got %d", calls)
	}
}
