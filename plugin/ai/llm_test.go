package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLLMService(t *testing.T) {
	_, err := NewLLMService(&LLMConfig{Provider: "openai", Model: "gpt-4o-mini", APIKey: "k"})
	assert.NoError(t, err)

	_, err = NewLLMService(&LLMConfig{Provider: "ollama"})
	assert.Error(t, err)
}

func TestLLMService_CompleteJSON(t *testing.T) {
	schema := json.RawMessage(`{"type":"object","properties":{"ok":{"type":"boolean"}},"required":["ok"],"additionalProperties":false}`)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req["model"])

		format, _ := req["response_format"].(map[string]any)
		require.NotNil(t, format)
		assert.Equal(t, "json_schema", format["type"])
		js, _ := format["json_schema"].(map[string]any)
		require.NotNil(t, js)
		assert.Equal(t, "probe", js["name"])
		assert.Equal(t, true, js["strict"])

		messages, _ := req["messages"].([]any)
		require.Len(t, messages, 2)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "cmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": `{"ok":true}`},
			}},
			"usage": map[string]int{"prompt_tokens": 3, "completion_tokens": 2, "total_tokens": 5},
		})
	}))
	defer srv.Close()

	svc, err := NewLLMService(&LLMConfig{Provider: "openai", Model: "gpt-4o-mini", APIKey: "k", BaseURL: srv.URL, MaxTokens: 64})
	require.NoError(t, err)

	out, err := svc.CompleteJSON(context.Background(), &StructuredRequest{
		SystemPrompt: "answer",
		UserPrompt:   "ping",
		SchemaName:   "probe",
		Schema:       schema,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, out)
	assert.Equal(t, "gpt-4o-mini", svc.Model())
}

func TestLLMService_CompleteJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	svc, err := NewLLMService(&LLMConfig{Provider: "openai", Model: "m", APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = svc.CompleteJSON(context.Background(), &StructuredRequest{SchemaName: "probe", Schema: json.RawMessage(`{}`)})
	assert.Error(t, err)
}
