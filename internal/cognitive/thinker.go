package cognitive

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/harunnryd/scout/internal/config"
	scoutErrors "github.com/harunnryd/scout/internal/errors"
	"github.com/harunnryd/scout/internal/logger"
	"github.com/harunnryd/scout/internal/model/contract"
)

type UnifiedThinker struct {
	llm       LLMClient
	promptCfg ThinkerPromptConfig
}

type ThinkerPromptConfig struct {
	Instruction string
	// Correction is formatted with the output name and the rejection reason.
	Correction string
}

func NewThinker(llm LLMClient, promptCfg ThinkerPromptConfig) *UnifiedThinker {
	if strings.TrimSpace(promptCfg.Instruction) == "" {
		promptCfg.Instruction = config.DefaultThinkerInstructionPrompt
	}
	if strings.TrimSpace(promptCfg.Correction) == "" {
		promptCfg.Correction = config.DefaultThinkerCorrectionPrompt
	}

	return &UnifiedThinker{
		llm:       llm,
		promptCfg: promptCfg,
	}
}

// Think sends the conversation to the reasoning service. A free-text reply is
// followed by a second request asking for the structured answer; both
// assistant messages are returned in the Thought.
func (t *UnifiedThinker) Think(ctx context.Context, c *CognitiveContext) (*Thought, error) {
	runID := logger.GetRunID(ctx)
	history := c.History.Messages()

	resp, err := t.llm.ChatComplete(ctx, contract.CompletionRequest{
		System:   t.buildSystemPrompt(c),
		Messages: history,
		Tools:    c.AvailableTools,
	})
	if err != nil {
		return nil, fmt.Errorf("thinking failed: %w", err)
	}

	reply := contract.Message{
		Role:      "assistant",
		Content:   resp.Content,
		ToolCalls: resp.ToolCalls,
		Usage:     resp.Usage,
	}
	thought := &Thought{Content: resp.Content, Messages: []contract.Message{reply}}

	if len(resp.ToolCalls) > 0 {
		slog.Debug("Thinker requested tools", "run_id", runID, "count", len(resp.ToolCalls))
		thought.Action = &Action{Type: ActionTypeToolCall, ToolCalls: resp.ToolCalls}
		return thought, nil
	}

	if strings.TrimSpace(resp.Content) == "" {
		thought.Action = &Action{Type: ActionTypeContinue, Reason: scoutErrors.ErrMissingFinalMessage}
		return thought, nil
	}

	if c.Output == nil {
		thought.Action = &Action{Type: ActionTypeAnswer, Content: resp.Content}
		return thought, nil
	}

	structured, err := t.llm.ChatComplete(ctx, contract.CompletionRequest{
		System:         t.buildSystemPrompt(c),
		Messages:       append(history, reply),
		ResponseFormat: c.Output.ResponseFormat(),
	})
	if err != nil {
		return nil, fmt.Errorf("structured answer failed: %w", err)
	}

	thought.Messages = append(thought.Messages, contract.Message{
		Role:       "assistant",
		Content:    structured.Content,
		Usage:      structured.Usage,
		Structured: true,
	})

	answer, err := c.Output.Parse(structured.Content)
	if err != nil {
		slog.Debug("Structured answer rejected", "run_id", runID, "output", c.Output.Name, "error", err)
		thought.Action = &Action{Type: ActionTypeContinue, Reason: err}
		return thought, nil
	}

	thought.Action = &Action{Type: ActionTypeAnswer, Answer: answer, Content: resp.Content}
	return thought, nil
}

// Correction builds the user message that follows a rejected turn.
func (t *UnifiedThinker) Correction(c *CognitiveContext, reason error) contract.Message {
	name := "answer"
	if c.Output != nil && c.Output.Name != "" {
		name = c.Output.Name
	}
	return contract.Message{
		Role:    "user",
		Content: fmt.Sprintf(t.promptCfg.Correction, name, reason),
	}
}

func (t *UnifiedThinker) buildSystemPrompt(c *CognitiveContext) string {
	var sb strings.Builder
	if prompt := strings.TrimSpace(c.SystemPrompt); prompt != "" {
		sb.WriteString(prompt)
		sb.WriteString("\n\n")
	}
	sb.WriteString(t.promptCfg.Instruction)
	return sb.String()
}
