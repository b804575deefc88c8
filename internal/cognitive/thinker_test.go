package cognitive

import (
	"context"
	"errors"
	"testing"

	scoutErrors "github.com/harunnryd/scout/internal/errors"
	"github.com/harunnryd/scout/internal/model/contract"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestUnifiedThinker_BuildsRequestFromContext(t *testing.T) {
	mockLLM := new(MockLLMClient)
	thinker := NewThinker(mockLLM, ThinkerPromptConfig{Instruction: "Use tools."})

	ctx := context.Background()
	cCtx := NewCognitiveContext(
		WithSystemPrompt("You are a shopping assistant."),
		WithTools([]contract.ToolDef{{Name: "search", Description: "Search"}}),
	)
	cCtx.History.Append(contract.Message{Role: "user", Content: "tents"})

	mockLLM.
		On("ChatComplete", ctx, mock.MatchedBy(func(req contract.CompletionRequest) bool {
			return req.System == "You are a shopping assistant.\n\nUse tools." &&
				len(req.Tools) == 1 &&
				len(req.Messages) == 1 &&
				req.ResponseFormat == nil
		})).
		Return(&contract.CompletionResponse{ToolCalls: []*contract.ToolCall{{ID: "1", Name: "search", Input: "{}"}}}, nil).
		Once()

	thought, err := thinker.Think(ctx, cCtx)
	require.NoError(t, err)
	assert.Equal(t, ActionTypeToolCall, thought.Action.Type)
	require.Len(t, thought.Messages, 1)
	assert.Len(t, thought.Messages[0].ToolCalls, 1)

	mockLLM.AssertExpectations(t)
}

func TestUnifiedThinker_EmptyReplyContinues(t *testing.T) {
	mockLLM := new(MockLLMClient)
	thinker := NewThinker(mockLLM, ThinkerPromptConfig{})
	ctx := context.Background()
	cCtx := NewCognitiveContext(WithOutput(picksOutput()))

	mockLLM.On("ChatComplete", ctx, freeText).Return(&contract.CompletionResponse{Content: "  "}, nil).Once()

	thought, err := thinker.Think(ctx, cCtx)
	require.NoError(t, err)
	assert.Equal(t, ActionTypeContinue, thought.Action.Type)
	assert.ErrorIs(t, thought.Action.Reason, scoutErrors.ErrMissingFinalMessage)
	mockLLM.AssertExpectations(t)
}

func TestUnifiedThinker_StructuredRequestCarriesReply(t *testing.T) {
	mockLLM := new(MockLLMClient)
	thinker := NewThinker(mockLLM, ThinkerPromptConfig{})
	ctx := context.Background()
	cCtx := NewCognitiveContext(WithOutput(picksOutput()))
	cCtx.History.Append(contract.Message{Role: "user", Content: "tents"})

	mockLLM.On("ChatComplete", ctx, freeText).Return(&contract.CompletionResponse{Content: "Dome tent."}, nil).Once()
	mockLLM.
		On("ChatComplete", ctx, mock.MatchedBy(func(req contract.CompletionRequest) bool {
			return req.ResponseFormat != nil &&
				req.ResponseFormat.Name == "picks" &&
				len(req.Tools) == 0 &&
				len(req.Messages) == 2 &&
				req.Messages[1].Content == "Dome tent."
		})).
		Return(&contract.CompletionResponse{Content: "```json\n{\"picks\":[{\"title\":\"Dome\"}]}\n```"}, nil).
		Once()

	thought, err := thinker.Think(ctx, cCtx)
	require.NoError(t, err)
	assert.True(t, thought.IsFinalAnswer())
	assert.Equal(t, "Dome tent.", thought.Action.Content)
	require.Len(t, thought.Messages, 2)
	assert.True(t, thought.Messages[1].Structured)

	// The context history is left to the engine.
	assert.Equal(t, 1, cCtx.History.Len())
	mockLLM.AssertExpectations(t)
}

func TestUnifiedThinker_WithoutOutputAnswersWithText(t *testing.T) {
	mockLLM := new(MockLLMClient)
	thinker := NewThinker(mockLLM, ThinkerPromptConfig{})
	ctx := context.Background()

	mockLLM.On("ChatComplete", ctx, freeText).Return(&contract.CompletionResponse{Content: "Hello!"}, nil).Once()

	thought, err := thinker.Think(ctx, NewCognitiveContext())
	require.NoError(t, err)
	assert.Equal(t, ActionTypeAnswer, thought.Action.Type)
	assert.Nil(t, thought.Action.Answer)
	assert.Equal(t, "Hello!", thought.Action.Content)
}

func TestUnifiedThinker_Correction(t *testing.T) {
	thinker := NewThinker(new(MockLLMClient), ThinkerPromptConfig{})

	msg := thinker.Correction(NewCognitiveContext(WithOutput(picksOutput())), errors.New("picks is empty"))
	assert.Equal(t, "user", msg.Role)
	assert.Contains(t, msg.Content, "final picks: picks is empty")
}

func TestHistory_LastAssistantText(t *testing.T) {
	h := &History{}
	assert.Equal(t, "", h.LastAssistantText())

	h.Append(
		contract.Message{Role: "user", Content: "tents"},
		contract.Message{Role: "assistant", Content: "Here is my answer."},
		contract.Message{Role: "assistant", Content: `{"picks":[]}`, Structured: true},
		contract.Message{Role: "user", Content: "Try again."},
		contract.Message{Role: "assistant", ToolCalls: []*contract.ToolCall{{ID: "1"}}},
	)
	assert.Equal(t, "Here is my answer.", h.LastAssistantText())

	msgs := h.Messages()
	msgs[0].Content = "mutated"
	assert.Equal(t, "tents", h.Messages()[0].Content)
}
