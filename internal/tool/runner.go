package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	scoutErrors "github.com/harunnryd/scout/internal/errors"
	"github.com/harunnryd/scout/internal/logger"
	"github.com/harunnryd/scout/internal/schema"
)

type Runner struct {
	registry *Registry
}

func NewRunner(registry *Registry) *Runner {
	return &Runner{registry: registry}
}

func (r *Runner) GetDescriptors() []ToolDescriptor {
	if r == nil || r.registry == nil {
		return nil
	}
	return r.registry.GetDescriptors()
}

// Execute handles the full lifecycle: Lookup -> Validate Input -> Run Tool -> Validate Output.
// Errors wrapping ErrToolUnavailable come back unchanged so callers can abort the run.
func (r *Runner) Execute(ctx context.Context, toolName string, input json.RawMessage) (json.RawMessage, error) {
	t, ok := r.registry.Get(toolName)
	if !ok {
		return nil, scoutErrors.NotFound(fmt.Sprintf("tool not found: %s", NormalizeToolName(toolName)))
	}
	name := NormalizeToolName(t.Name())

	if len(input) == 0 {
		input = json.RawMessage(`{}`)
	}
	if err := schema.ValidateJSON(t.Parameters(), input); err != nil {
		slog.Warn("Tool input validation failed", "tool", name, "error", err)
		return nil, scoutErrors.WrapWithCategory(err, "invalid input", scoutErrors.ErrInvalidArgument)
	}

	start := time.Now()
	runID := logger.GetRunID(ctx)
	slog.Debug("Executing tool", "tool", name, "input", string(input), "run_id", runID)

	result, err := r.safeExecute(ctx, t, input)

	duration := time.Since(start)
	if err != nil {
		slog.Error("Tool execution failed", "tool", name, "error", err, "duration", duration, "run_id", runID)
		return nil, err
	}

	if outSchema := t.OutputSchema(); outSchema != nil {
		if err := schema.ValidateJSON(outSchema, result); err != nil {
			slog.Error("Tool output validation failed", "tool", name, "error", err, "run_id", runID)
			return nil, scoutErrors.WrapWithCategory(err, fmt.Sprintf("tool %s returned malformed output", name), scoutErrors.ErrInternal)
		}
	}

	slog.Info("Tool execution success", "tool", name, "duration", duration, "bytes", len(result), "run_id", runID)
	return result, nil
}

func (r *Runner) safeExecute(ctx context.Context, t Tool, input json.RawMessage) (result json.RawMessage, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("Panic recovered", "tool", t.Name(), "panic", rec, "stack", string(debug.Stack()))
			err = scoutErrors.Internal(fmt.Sprintf("tool %s panicked: %v", t.Name(), rec))
		}
	}()
	return t.Execute(ctx, input)
}
