package model

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/harunnryd/scout/internal/config"
	scoutErrors "github.com/harunnryd/scout/internal/errors"
	"github.com/harunnryd/scout/internal/logger"
	"github.com/harunnryd/scout/internal/model/contract"
	anthropicProvider "github.com/harunnryd/scout/internal/model/providers/anthropic"
	geminiProvider "github.com/harunnryd/scout/internal/model/providers/gemini"
	openaiProvider "github.com/harunnryd/scout/internal/model/providers/openai"
)

// DefaultModelRouter implements ModelRouter interface
type DefaultModelRouter struct {
	cfg       config.ModelsConfig
	providers map[string]Provider
	errMapper scoutErrors.ErrorMapper
	mu        sync.RWMutex
}

// NewModelRouter creates a new model router
func NewModelRouter(cfg config.ModelsConfig) (*DefaultModelRouter, error) {
	router := &DefaultModelRouter{
		cfg:       cfg,
		providers: make(map[string]Provider),
		errMapper: scoutErrors.NewDefaultErrorMapper(),
	}

	if err := router.initProviders(); err != nil {
		return nil, err
	}

	return router, nil
}

// NewModelRouterWithProviders builds a router over already constructed providers.
func NewModelRouterWithProviders(cfg config.ModelsConfig, providers map[string]Provider) *DefaultModelRouter {
	router := &DefaultModelRouter{
		cfg:       cfg,
		providers: make(map[string]Provider, len(providers)),
		errMapper: scoutErrors.NewDefaultErrorMapper(),
	}
	for name, p := range providers {
		router.providers[name] = p
	}
	return router
}

// Route routes a completion request to the appropriate provider
func (r *DefaultModelRouter) Route(ctx context.Context, model string, req contract.CompletionRequest) (*contract.CompletionResponse, error) {
	runID := logger.GetRunID(ctx)

	slog.Debug("Routing completion request", "model", model, "structured", req.ResponseFormat != nil, "run_id", runID)

	provider, err := r.resolveProvider(ctx, model)
	if err != nil {
		return nil, err
	}

	if req.MaxTokens <= 0 {
		req.MaxTokens = r.cfg.MaxOutputTokens
	}

	return r.executeWithFallback(ctx, model, provider, req, runID)
}

// Supports reports whether model is registered. The fallback only covers
// transient failures of a registered model, so it does not widen the set.
func (r *DefaultModelRouter) Supports(model string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.providers[model]
	return ok
}

// ListModels returns all registered model names
func (r *DefaultModelRouter) ListModels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	models := make([]string, 0, len(r.providers))
	for name := range r.providers {
		models = append(models, name)
	}
	sort.Strings(models)

	return models
}

// Health checks every registered provider and reports the unhealthy ones.
func (r *DefaultModelRouter) Health(ctx context.Context) error {
	var unhealthy []string
	for _, name := range r.ListModels() {
		r.mu.RLock()
		provider := r.providers[name]
		r.mu.RUnlock()

		if err := provider.Health(ctx); err != nil {
			slog.Warn("Provider unhealthy", "model", name, "error", err)
			unhealthy = append(unhealthy, name)
		}
	}

	if len(unhealthy) > 0 {
		return scoutErrors.Transient(fmt.Sprintf("models unhealthy: %s", strings.Join(unhealthy, ", ")))
	}
	return nil
}

// initProviders initializes all providers from configuration
func (r *DefaultModelRouter) initProviders() error {
	for _, entry := range r.cfg.Registry {
		provider, err := r.createProvider(entry)
		if err != nil {
			slog.Debug("Skipping model", "provider", entry.Provider, "model", entry.Name, "error", err)
			continue
		}

		r.providers[entry.Name] = provider
		slog.Debug("Provider initialized", "name", entry.Name, "type", entry.Provider)
	}

	if len(r.providers) == 0 && len(r.cfg.Registry) > 0 {
		return scoutErrors.Configuration("no model providers initialized, set an API key for at least one model")
	}

	return nil
}

// resolveProvider resolves a provider by model name with fallback
func (r *DefaultModelRouter) resolveProvider(ctx context.Context, model string) (Provider, error) {
	select {
	case <-ctx.Done():
		return nil, scoutErrors.Wrap(ctx.Err(), "provider resolution cancelled")
	default:
	}

	r.mu.RLock()
	provider, exists := r.providers[model]
	r.mu.RUnlock()

	if !exists {
		slog.Warn("Model not found", "model", model)

		if r.cfg.Fallback != "" && model != r.cfg.Fallback {
			slog.Info("Trying fallback model", "model", model, "fallback", r.cfg.Fallback)

			r.mu.RLock()
			fallbackProvider, fallbackExists := r.providers[r.cfg.Fallback]
			r.mu.RUnlock()
			if !fallbackExists {
				return nil, scoutErrors.NotFound(fmt.Sprintf("model %s not found", model))
			}

			return fallbackProvider, nil
		}

		return nil, scoutErrors.NotFound(fmt.Sprintf("model %s not found", model))
	}

	return provider, nil
}

// executeWithFallback executes a request with fallback logic
func (r *DefaultModelRouter) executeWithFallback(ctx context.Context, model string, provider Provider, req contract.CompletionRequest, runID string) (*contract.CompletionResponse, error) {
	maxAttempts := r.cfg.MaxFallbackAttempts
	if maxAttempts <= 0 {
		maxAttempts = config.DefaultModelMaxFallbackAttempts
	}

	currentModel := model
	currentProvider := provider

	for attempt := 0; attempt < maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, scoutErrors.Wrap(ctx.Err(), "request execution cancelled")
		default:
		}

		resp, err := currentProvider.Generate(ctx, req)
		if err == nil {
			slog.Debug("Request completed", "model", currentModel, "attempt", attempt+1, "run_id", runID)
			return resp, nil
		}

		mapped := r.errMapper.MapError(err)
		slog.Error("Provider request failed", "model", currentModel, "attempt", attempt+1,
			"category", r.errMapper.Category(mapped), "error", err, "run_id", runID)

		// Only transient failures are worth another provider.
		if r.cfg.Fallback == "" || currentModel == r.cfg.Fallback || !r.errMapper.IsRetryable(mapped) {
			return nil, scoutErrors.Upstream(err, "provider request failed")
		}

		slog.Info("Attempting fallback", "from", currentModel, "to", r.cfg.Fallback)

		r.mu.RLock()
		fallbackProvider, exists := r.providers[r.cfg.Fallback]
		r.mu.RUnlock()
		if !exists {
			return nil, scoutErrors.Upstream(err, fmt.Sprintf("provider request failed and fallback model %s is not available", r.cfg.Fallback))
		}

		currentModel = r.cfg.Fallback
		currentProvider = fallbackProvider
		req.Model = currentModel
	}

	return nil, scoutErrors.Upstream(scoutErrors.ErrInternal, "fallback exhausted")
}

// createProvider creates a provider instance based on registry entry
func (r *DefaultModelRouter) createProvider(entry config.ModelRegistry) (Provider, error) {
	switch entry.Provider {
	case "openai":
		baseURL := entry.BaseURL
		if baseURL == "" {
			baseURL = config.DefaultOpenAIBaseURL
		}

		if entry.APIKey == "" {
			return nil, scoutErrors.Configuration("API key required for OpenAI provider")
		}

		return &ProviderAdapter{
			provider:     openaiProvider.New(entry.APIKey, baseURL, entry.Name),
			name:         entry.Name,
			providerType: "openai",
		}, nil

	case "ollama":
		baseURL := entry.BaseURL
		if baseURL == "" {
			baseURL = config.DefaultOllamaBaseURL
		}

		apiKey := entry.APIKey
		if apiKey == "" {
			apiKey = config.DefaultOllamaAPIKey
		}

		return &ProviderAdapter{
			provider:     openaiProvider.New(apiKey, baseURL, entry.Name),
			name:         entry.Name,
			providerType: "ollama",
		}, nil

	case "zai":
		if entry.APIKey == "" {
			return nil, scoutErrors.Configuration("API key required for Zai provider")
		}

		baseURL := entry.BaseURL
		if baseURL == "" {
			baseURL = config.DefaultZaiBaseURL
		}

		return &ProviderAdapter{
			provider:     openaiProvider.New(entry.APIKey, baseURL, entry.Name),
			name:         entry.Name,
			providerType: "zai",
		}, nil

	case "anthropic":
		if entry.APIKey == "" {
			return nil, scoutErrors.Configuration("API key required for Anthropic provider")
		}

		return &ProviderAdapter{
			provider:     anthropicProvider.New(entry.APIKey),
			name:         entry.Name,
			providerType: "anthropic",
		}, nil

	case "gemini":
		if entry.APIKey == "" {
			return nil, scoutErrors.Configuration("API key required for Gemini provider")
		}

		provider, err := geminiProvider.New(entry.APIKey)
		if err != nil {
			return nil, scoutErrors.WrapWithCategory(err, "failed to create Gemini provider", scoutErrors.ErrInternal)
		}

		return &ProviderAdapter{
			provider:     provider,
			name:         entry.Name,
			providerType: "gemini",
		}, nil

	default:
		return nil, scoutErrors.Configuration(fmt.Sprintf("unknown provider type: %s", entry.Provider))
	}
}
