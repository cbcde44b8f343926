package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/medreport/pkg/llm"
)

const testAPIKey = "test-key"

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "https://api.openai.com/v1", cfg.BaseURL)
	assert.Equal(t, "gpt-4o-mini", cfg.ChatModel)
	assert.Equal(t, 120*time.Second, cfg.Timeout)
	assert.Equal(t, ProviderName, cfg.Name)

	tc := TogetherConfig()
	assert.Equal(t, "https://api.together.xyz/v1", tc.BaseURL)
	assert.Equal(t, "meta-llama/Llama-3.3-70B-Instruct-Turbo-Free", tc.ChatModel)
	assert.Equal(t, TogetherProviderName, tc.Name)
}

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name      string
		factory   llm.ChatProviderFactory
		config    map[string]any
		wantName  string
		wantError bool
	}{
		{"openai", NewProvider, map[string]any{"api_key": testAPIKey}, ProviderName, false},
		{"together", NewTogetherProvider, map[string]any{"api_key": testAPIKey}, TogetherProviderName, false},
		{"missing api_key", NewProvider, map[string]any{}, "", true},
		{"together missing api_key", NewTogetherProvider, map[string]any{}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := tt.factory(tt.config)
			if tt.wantError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, p.Name())
		})
	}
}

func TestTogetherHeliconeBaseURL(t *testing.T) {
	p, err := NewTogetherProvider(map[string]any{"api_key": testAPIKey, "helicone_api_key": "h"})
	require.NoError(t, err)
	assert.Equal(t, heliconeBaseURL, p.(*Provider).config.BaseURL)

	// 显式 base_url 优先
	p, err = NewTogetherProvider(map[string]any{"api_key": testAPIKey, "helicone_api_key": "h", "base_url": "http://x/"})
	require.NoError(t, err)
	assert.Equal(t, "http://x", p.(*Provider).config.BaseURL)
}

func TestGenerate(t *testing.T) {
	var got chatRequest
	var headers http.Header

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		headers = r.Header.Clone()
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"model": "m1",
			"choices": [{"message": {"content": "{\"summary\":\"ok\"}"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 5, "completion_tokens": 3, "total_tokens": 8}
		}`))
	}))
	defer server.Close()

	p := NewProviderWithConfig(&Config{
		BaseURL:        server.URL,
		APIKey:         testAPIKey,
		ChatModel:      "default-model",
		Timeout:        5 * time.Second,
		HeliconeAPIKey: "gw",
	})

	resp, err := p.Generate(context.Background(), "analyze", "be careful",
		llm.WithTemperature(0.7), llm.WithMaxTokens(2000), llm.WithJSONMode(),
		llm.WithHeader("Helicone-Property-Stage", "analysis"))
	require.NoError(t, err)

	assert.Equal(t, `{"summary":"ok"}`, resp.Content)
	assert.Equal(t, 8, resp.TokenUsage.TotalTokens)

	// 请求体
	assert.Equal(t, "default-model", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "be careful", got.Messages[0].Content)
	assert.Equal(t, "user", got.Messages[1].Role)
	require.NotNil(t, got.Temperature)
	assert.InDelta(t, 0.7, *got.Temperature, 1e-9)
	assert.Equal(t, 2000, got.MaxTokens)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)

	// 请求头
	assert.Equal(t, "Bearer "+testAPIKey, headers.Get("Authorization"))
	assert.Equal(t, "Bearer gw", headers.Get("Helicone-Auth"))
	assert.Equal(t, "analysis", headers.Get("Helicone-Property-Stage"))
}

func TestGenerate_NoSystemPrompt(t *testing.T) {
	var got chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"SAFE"}}]}`))
	}))
	defer server.Close()

	p := NewProviderWithConfig(&Config{BaseURL: server.URL, APIKey: testAPIKey, Timeout: 5 * time.Second})
	resp, err := p.Generate(context.Background(), "text", "")
	require.NoError(t, err)
	assert.Equal(t, "SAFE", resp.Content)
	require.Len(t, got.Messages, 1)
	assert.Nil(t, got.ResponseFormat)
	assert.Nil(t, got.Temperature)
}

func TestChat_Errors(t *testing.T) {
	t.Run("empty choices", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"choices":[]}`))
		}))
		defer server.Close()

		p := NewProviderWithConfig(&Config{BaseURL: server.URL, APIKey: testAPIKey, Timeout: 5 * time.Second})
		_, err := p.Chat(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hi"}})
		assert.Error(t, err)
	})

	t.Run("unauthorized", func(t *testing.T) {
		calls := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls++
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		p := NewProviderWithConfig(&Config{BaseURL: server.URL, APIKey: "bad", Timeout: 5 * time.Second, MaxRetries: 2})
		_, err := p.Chat(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hi"}})
		assert.Error(t, err)
		assert.Equal(t, 1, calls)
	})
}
