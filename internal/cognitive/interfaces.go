package cognitive

import (
	"context"
	"encoding/json"

	"github.com/harunnryd/scout/internal/model/contract"
	"github.com/harunnryd/scout/internal/schema"
)

// Engine drives the think/act loop until a structured answer is obtained.
type Engine interface {
	Run(ctx context.Context, goal string, opts ...ExecutionOption) (*Result, error)
}

// Thinker consults the reasoning service once and classifies its response.
type Thinker interface {
	Think(ctx context.Context, c *CognitiveContext) (*Thought, error)
	// Correction is appended to the history after an ActionTypeContinue.
	Correction(c *CognitiveContext, reason error) contract.Message
}

// Actor executes the tool calls decided by the Thinker.
type Actor interface {
	Execute(ctx context.Context, action *Action) (*ExecutionResult, error)
}

// ToolExecutor executes a single tool. tool.Runner implements it.
type ToolExecutor interface {
	Execute(ctx context.Context, name string, input json.RawMessage) (json.RawMessage, error)
}

// LLMClient abstracts the reasoning service.
type LLMClient interface {
	ChatComplete(ctx context.Context, req contract.CompletionRequest) (*contract.CompletionResponse, error)
}

type State string

const (
	StateThinking State = "THINKING"
	StateActing   State = "ACTING"
	StateDone     State = "DONE"
	StateFailed   State = "FAILED"
)

// Thought is the outcome of one reasoning turn. Messages holds the assistant
// messages the turn produced, in order, each carrying its usage.
type Thought struct {
	Content  string
	Action   *Action
	Messages []contract.Message
}

func (t *Thought) IsFinalAnswer() bool {
	return t.Action != nil && t.Action.Type == ActionTypeAnswer
}

type ActionType string

const (
	ActionTypeToolCall ActionType = "tool_call"
	ActionTypeAnswer   ActionType = "answer"
	// ActionTypeContinue means the response was neither a tool call nor a
	// schema-valid answer. The loop keeps thinking.
	ActionTypeContinue ActionType = "continue"
)

type Action struct {
	Type      ActionType
	ToolCalls []*contract.ToolCall
	Answer    *schema.Answer
	// Content is the free-text answer for ActionTypeAnswer.
	Content string
	// Reason explains an ActionTypeContinue.
	Reason error
}

type ExecutionResult struct {
	ToolOutputs []ToolOutput
}

type ToolOutput struct {
	CallID string
	Name   string
	Output string
	Err    error
}

func (o ToolOutput) Failed() bool {
	return o.Err != nil
}

// Result is the terminal state of one run. It is returned on failure too.
type Result struct {
	State    State
	Answer   *schema.Answer
	Summary  string
	Messages []contract.Message
	Turns    int
}

// ExecutionOption configures the context of a run.
type ExecutionOption func(*CognitiveContext)

func WithSystemPrompt(prompt string) ExecutionOption {
	return func(c *CognitiveContext) {
		c.SystemPrompt = prompt
	}
}

func WithTools(tools []contract.ToolDef) ExecutionOption {
	return func(c *CognitiveContext) {
		c.AvailableTools = tools
	}
}

func WithOutput(output *schema.Output) ExecutionOption {
	return func(c *CognitiveContext) {
		c.Output = output
	}
}
