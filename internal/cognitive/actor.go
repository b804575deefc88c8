package cognitive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/harunnryd/scout/internal/config"
	scoutErrors "github.com/harunnryd/scout/internal/errors"
	"github.com/harunnryd/scout/internal/logger"

	"golang.org/x/sync/errgroup"
)

type UnifiedActor struct {
	toolExecutor ToolExecutor
	maxParallel  int
}

func NewActor(te ToolExecutor, maxParallel int) *UnifiedActor {
	if maxParallel <= 0 {
		maxParallel = config.DefaultAgentMaxParallelTools
	}
	return &UnifiedActor{
		toolExecutor: te,
		maxParallel:  maxParallel,
	}
}

// Execute runs the requested tools concurrently. Outputs keep the order of
// the requests. A tool reporting ErrToolUnavailable fails the whole action;
// any other tool error becomes a failed output the model can react to.
func (a *UnifiedActor) Execute(ctx context.Context, action *Action) (*ExecutionResult, error) {
	if action == nil || action.Type != ActionTypeToolCall {
		return nil, scoutErrors.InvalidArgument(fmt.Sprintf("actor cannot execute action %v", actionType(action)))
	}

	runID := logger.GetRunID(ctx)
	outputs := make([]ToolOutput, len(action.ToolCalls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.maxParallel)

	for i, tc := range action.ToolCalls {
		g.Go(func() error {
			slog.Info("Executing tool", "run_id", runID, "tool", tc.Name)
			slog.Debug("Tool input", "run_id", runID, "tool", tc.Name, "input", tc.Input)

			res, err := a.toolExecutor.Execute(gctx, tc.Name, json.RawMessage(tc.Input))
			if err != nil {
				if errors.Is(err, scoutErrors.ErrToolUnavailable) || errors.Is(err, context.Canceled) {
					return err
				}
				slog.Warn("Tool execution failed", "run_id", runID, "tool", tc.Name, "error", err)
				outputs[i] = ToolOutput{
					CallID: tc.ID,
					Name:   tc.Name,
					Output: fmt.Sprintf("Tool %s failed: %v", tc.Name, err),
					Err:    err,
				}
				return nil
			}

			slog.Debug("Tool output", "run_id", runID, "tool", tc.Name, "output_len", len(res))
			outputs[i] = ToolOutput{CallID: tc.ID, Name: tc.Name, Output: string(res)}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &ExecutionResult{ToolOutputs: outputs}, nil
}

func actionType(action *Action) ActionType {
	if action == nil {
		return ""
	}
	return action.Type
}
