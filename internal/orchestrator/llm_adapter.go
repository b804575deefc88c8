package orchestrator

import (
	"context"
	"fmt"

	"github.com/harunnryd/scout/internal/model"
	"github.com/harunnryd/scout/internal/model/contract"
)

// LLMExecutorAdapter adapts the model router to the cognitive LLMClient.
type LLMExecutorAdapter struct {
	router    model.ModelRouter
	modelName string
}

func NewLLMAdapter(router model.ModelRouter, modelName string) *LLMExecutorAdapter {
	return &LLMExecutorAdapter{
		router:    router,
		modelName: modelName,
	}
}

func (l *LLMExecutorAdapter) ChatComplete(ctx context.Context, req contract.CompletionRequest) (*contract.CompletionResponse, error) {
	req.Model = l.modelName

	resp, err := l.router.Route(ctx, l.modelName, req)
	if err != nil {
		return nil, fmt.Errorf("LLM execution failed: %w", err)
	}
	return resp, nil
}
