package model

import (
	"context"
	"errors"
	"testing"

	"github.com/harunnryd/scout/internal/config"
	scoutErrors "github.com/harunnryd/scout/internal/errors"
	"github.com/harunnryd/scout/internal/model/contract"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name      string
	err       error
	healthErr error
	calls     []contract.CompletionRequest
}

func (p *fakeProvider) Generate(ctx context.Context, req contract.CompletionRequest) (*contract.CompletionResponse, error) {
	p.calls = append(p.calls, req)
	if p.err != nil {
		return nil, p.err
	}
	return &contract.CompletionResponse{Content: p.name, Usage: &contract.Usage{TotalTokens: 10}}, nil
}

func (p *fakeProvider) Name() string                     { return p.name }
func (p *fakeProvider) Type() string                     { return "fake" }
func (p *fakeProvider) Health(ctx context.Context) error { return p.healthErr }

func TestRouter_RoutesAndAppliesMaxTokens(t *testing.T) {
	primary := &fakeProvider{name: "gpt-4o-mini"}
	router := NewModelRouterWithProviders(config.ModelsConfig{MaxOutputTokens: 512}, map[string]Provider{"gpt-4o-mini": primary})

	resp, err := router.Route(context.Background(), "gpt-4o-mini", contract.CompletionRequest{Model: "gpt-4o-mini"})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", resp.Content)
	require.Len(t, primary.calls, 1)
	assert.Equal(t, 512, primary.calls[0].MaxTokens)
}

func TestRouter_FallbackOnProviderError(t *testing.T) {
	primary := &fakeProvider{name: "gpt-4o-mini", err: errors.New("503 service unavailable")}
	fallback := &fakeProvider{name: "claude-sonnet-4-0"}
	router := NewModelRouterWithProviders(
		config.ModelsConfig{Fallback: "claude-sonnet-4-0", MaxFallbackAttempts: 2},
		map[string]Provider{"gpt-4o-mini": primary, "claude-sonnet-4-0": fallback},
	)

	resp, err := router.Route(context.Background(), "gpt-4o-mini", contract.CompletionRequest{Model: "gpt-4o-mini"})
	require.NoError(t, err)
	assert.Equal(t, "claude-sonnet-4-0", resp.Content)
	require.Len(t, fallback.calls, 1)
	assert.Equal(t, "claude-sonnet-4-0", fallback.calls[0].Model)
}

func TestRouter_NoFallbackOnPermanentError(t *testing.T) {
	cause := errors.New("400 Bad Request: messages.1: tool_use ids must be unique")
	primary := &fakeProvider{name: "gpt-4o-mini", err: cause}
	fallback := &fakeProvider{name: "claude-sonnet-4-0"}
	router := NewModelRouterWithProviders(
		config.ModelsConfig{Fallback: "claude-sonnet-4-0", MaxFallbackAttempts: 2},
		map[string]Provider{"gpt-4o-mini": primary, "claude-sonnet-4-0": fallback},
	)

	_, err := router.Route(context.Background(), "gpt-4o-mini", contract.CompletionRequest{Model: "gpt-4o-mini"})
	require.Error(t, err)
	assert.ErrorIs(t, err, scoutErrors.ErrUpstreamInference)
	assert.ErrorIs(t, err, cause)
	assert.Len(t, primary.calls, 1)
	assert.Empty(t, fallback.calls)
}

func TestRouter_ProviderErrorIsUpstream(t *testing.T) {
	cause := errors.New("connection reset")
	router := NewModelRouterWithProviders(config.ModelsConfig{}, map[string]Provider{"gpt-4o-mini": &fakeProvider{err: cause}})

	_, err := router.Route(context.Background(), "gpt-4o-mini", contract.CompletionRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, scoutErrors.ErrUpstreamInference)
	assert.ErrorIs(t, err, cause)
}

func TestRouter_Supports(t *testing.T) {
	router := NewModelRouterWithProviders(config.ModelsConfig{}, map[string]Provider{"gpt-4o-mini": &fakeProvider{}})

	assert.True(t, router.Supports("gpt-4o-mini"))
	assert.False(t, router.Supports("gpt-unknown"))

	_, err := router.Route(context.Background(), "gpt-unknown", contract.CompletionRequest{})
	assert.ErrorIs(t, err, scoutErrors.ErrNotFound)

	withFallback := NewModelRouterWithProviders(config.ModelsConfig{Fallback: "gpt-4o-mini"}, map[string]Provider{"gpt-4o-mini": &fakeProvider{}})
	assert.False(t, withFallback.Supports("gpt-4o-minii"))
	assert.True(t, withFallback.Supports("gpt-4o-mini"))
}

func TestNewModelRouter_SkipsModelsWithoutKeys(t *testing.T) {
	_, err := NewModelRouter(config.ModelsConfig{Registry: []config.ModelRegistry{{Name: "gpt-4o-mini", Provider: "openai"}}})
	assert.ErrorIs(t, err, scoutErrors.ErrConfiguration)

	router, err := NewModelRouter(config.ModelsConfig{Registry: []config.ModelRegistry{
		{Name: "gpt-4o-mini", Provider: "openai"},
		{Name: "llama3", Provider: "ollama"},
	}})
	require.NoError(t, err)
	assert.Equal(t, []string{"llama3"}, router.ListModels())
}

func TestRouter_HealthNamesUnhealthyModels(t *testing.T) {
	router := NewModelRouterWithProviders(config.ModelsConfig{}, map[string]Provider{
		"gpt-4o-mini":       &fakeProvider{},
		"claude-sonnet-4-0": &fakeProvider{healthErr: errors.New("401 invalid x-api-key")},
	})

	err := router.Health(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, scoutErrors.ErrTransient)
	assert.Contains(t, err.Error(), "claude-sonnet-4-0")
	assert.NotContains(t, err.Error(), "gpt-4o-mini")

	healthy := NewModelRouterWithProviders(config.ModelsConfig{}, map[string]Provider{"gpt-4o-mini": &fakeProvider{}})
	assert.NoError(t, healthy.Health(context.Background()))
}
