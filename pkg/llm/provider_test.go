package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockProvider 模拟供应商实现，用于测试。
type mockProvider struct {
	name string
}

func (m *mockProvider) Name() string {
	return m.name
}

func (m *mockProvider) Chat(_ context.Context, _ []Message, _ ...GenerateOption) (*GenerateResponse, error) {
	return &GenerateResponse{Content: "mock response"}, nil
}

func (m *mockProvider) Generate(_ context.Context, _ string, _ string, _ ...GenerateOption) (*GenerateResponse, error) {
	return &GenerateResponse{Content: "mock generated text"}, nil
}

func TestRegisterAndNewChatProvider(t *testing.T) {
	RegisterChatProvider("test-provider", func(config map[string]any) (ChatProvider, error) {
		name := "test-provider"
		if n, ok := config["name"].(string); ok {
			name = n
		}
		return &mockProvider{name: name}, nil
	})

	provider, err := NewChatProvider("test-provider", map[string]any{"name": "custom-name"})
	require.NoError(t, err)
	assert.Equal(t, "custom-name", provider.Name())
	assert.Contains(t, ListProviders(), "test-provider")
}

func TestNewChatProviderUnknown(t *testing.T) {
	_, err := NewChatProvider("unknown-provider", nil)
	assert.Error(t, err)
}

func TestApplyOptions(t *testing.T) {
	o := ApplyOptions(
		WithTemperature(0.1),
		WithMaxTokens(100),
		WithJSONMode(),
		WithModel("m"),
		WithHeader("X-A", "1"),
	)

	require.NotNil(t, o.Temperature)
	assert.InDelta(t, 0.1, *o.Temperature, 1e-9)
	assert.Equal(t, 100, o.MaxTokens)
	assert.True(t, o.JSONMode)
	assert.Equal(t, "m", o.Model)
	assert.Equal(t, "1", o.Headers["X-A"])

	// 零值表示供应商默认
	empty := ApplyOptions()
	assert.Nil(t, empty.Temperature)
	assert.False(t, empty.JSONMode)
}
