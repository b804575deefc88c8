package cognitive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/harunnryd/scout/internal/config"
	scoutErrors "github.com/harunnryd/scout/internal/errors"
	"github.com/harunnryd/scout/internal/logger"
	"github.com/harunnryd/scout/internal/model/contract"
	"github.com/harunnryd/scout/internal/schema"
)

// Error types for the Cognitive Engine
type ErrorType string

const (
	ErrFatal          ErrorType = "fatal"
	ErrUpstream       ErrorType = "upstream"
	ErrCancelled      ErrorType = "cancelled"
	ErrMaxTurns       ErrorType = "max_turns_reached"
	ErrBudgetExceeded ErrorType = "budget_exceeded"
)

type CognitiveError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *CognitiveError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *CognitiveError) Unwrap() error {
	return e.Cause
}

// DefaultCognitiveEngine runs the THINKING/ACTING loop until DONE or FAILED.
type DefaultCognitiveEngine struct {
	thinker     Thinker
	actor       Actor
	maxTurns    int
	tokenBudget int
}

func NewEngine(thinker Thinker, actor Actor, maxTurns int, tokenBudget int) *DefaultCognitiveEngine {
	if maxTurns <= 0 {
		maxTurns = config.DefaultAgentMaxTurns
	}
	if tokenBudget < 0 {
		tokenBudget = 0
	}

	return &DefaultCognitiveEngine{
		thinker:     thinker,
		actor:       actor,
		maxTurns:    maxTurns,
		tokenBudget: tokenBudget,
	}
}

// Run starts from the goal as the first user message. The Result is returned
// on failure as well so the caller can still account for the tokens spent.
func (e *DefaultCognitiveEngine) Run(ctx context.Context, goal string, opts ...ExecutionOption) (*Result, error) {
	cCtx := NewCognitiveContext(opts...)
	cCtx.History.Append(contract.Message{Role: "user", Content: goal})

	runID := logger.GetRunID(ctx)
	slog.Info("CognitiveEngine started", "run_id", runID, "tools", len(cCtx.AvailableTools), "max_turns", e.maxTurns)

	state := StateThinking
	turn := 0

	fail := func(cerr *CognitiveError) (*Result, error) {
		slog.Error("CognitiveEngine failed", "run_id", runID, "turn", turn, "previous_state", state, "error", cerr)
		return e.result(cCtx, StateFailed, nil, turn), cerr
	}

	for turn = 1; turn <= e.maxTurns; turn++ {
		if err := ctx.Err(); err != nil {
			return fail(&CognitiveError{Type: ErrCancelled, Message: "Run cancelled", Cause: err})
		}

		state = StateThinking
		slog.Debug("Cognitive loop turn", "run_id", runID, "turn", turn, "max", e.maxTurns, "state", state, "messages", cCtx.History.Len())

		thought, err := e.thinker.Think(ctx, cCtx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return fail(&CognitiveError{Type: ErrCancelled, Message: "Run cancelled", Cause: err})
			}
			if !errors.Is(err, scoutErrors.ErrUpstreamInference) {
				err = scoutErrors.Upstream(err, "reasoning service")
			}
			return fail(&CognitiveError{Type: ErrUpstream, Message: "Thinking failed", Cause: err})
		}

		for _, msg := range thought.Messages {
			cCtx.History.Append(msg)
			cCtx.TokenUsage += msg.Usage.Total()
		}

		if thought.Action == nil {
			return fail(&CognitiveError{Type: ErrFatal, Message: "Thinker returned no action", Cause: scoutErrors.ErrInternal})
		}

		switch thought.Action.Type {
		case ActionTypeAnswer:
			state = StateDone
			slog.Info("Final answer reached", "run_id", runID, "turn", turn, "tokens", cCtx.TokenUsage)
			res := e.result(cCtx, StateDone, thought.Action.Answer, turn)
			if thought.Action.Content != "" {
				res.Summary = thought.Action.Content
			}
			return res, nil

		case ActionTypeToolCall:
			state = StateActing
			execResult, err := e.actor.Execute(ctx, thought.Action)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return fail(&CognitiveError{Type: ErrCancelled, Message: "Run cancelled", Cause: err})
				}
				return fail(&CognitiveError{Type: ErrFatal, Message: "Action execution failed", Cause: err})
			}
			for _, out := range execResult.ToolOutputs {
				cCtx.History.Append(contract.Message{
					Role:       "tool",
					Name:       out.Name,
					ToolCallID: out.CallID,
					Content:    out.Output,
				})
			}

		case ActionTypeContinue:
			slog.Debug("Response not accepted, continuing", "run_id", runID, "turn", turn, "reason", thought.Action.Reason)
			cCtx.History.Append(e.thinker.Correction(cCtx, thought.Action.Reason))

		default:
			return fail(&CognitiveError{Type: ErrFatal, Message: fmt.Sprintf("unknown action type: %s", thought.Action.Type), Cause: scoutErrors.ErrInternal})
		}

		if e.tokenBudget > 0 && cCtx.TokenUsage > e.tokenBudget {
			return fail(&CognitiveError{
				Type:    ErrBudgetExceeded,
				Message: fmt.Sprintf("token budget of %d exceeded", e.tokenBudget),
				Cause:   fmt.Errorf("%w: used %d tokens", scoutErrors.ErrBudgetExceeded, cCtx.TokenUsage),
			})
		}
	}

	turn = e.maxTurns
	return fail(&CognitiveError{
		Type:    ErrMaxTurns,
		Message: "Max turns reached without a final answer",
		Cause:   fmt.Errorf("%w after %d turns", scoutErrors.ErrMissingStructuredAnswer, e.maxTurns),
	})
}

func (e *DefaultCognitiveEngine) result(c *CognitiveContext, state State, answer *schema.Answer, turns int) *Result {
	return &Result{
		State:    state,
		Answer:   answer,
		Summary:  c.History.LastAssistantText(),
		Messages: c.History.Messages(),
		Turns:    turns,
	}
}
