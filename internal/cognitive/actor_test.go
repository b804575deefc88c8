package cognitive

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	scoutErrors "github.com/harunnryd/scout/internal/errors"
	"github.com/harunnryd/scout/internal/model/contract"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestUnifiedActor_KeepsRequestOrder(t *testing.T) {
	mockToolExec := new(MockToolExecutor)
	actor := NewActor(mockToolExec, 3)

	calls := make([]*contract.ToolCall, 0, 5)
	for i := 0; i < 5; i++ {
		name := fmt.Sprintf("tool_%d", i)
		calls = append(calls, &contract.ToolCall{ID: fmt.Sprintf("call_%d", i), Name: name, Input: "{}"})
		mockToolExec.On("Execute", mock.Anything, name, json.RawMessage("{}")).
			Return(json.RawMessage(fmt.Sprintf(`"%s done"`, name)), nil).Once()
	}

	res, err := actor.Execute(context.Background(), &Action{Type: ActionTypeToolCall, ToolCalls: calls})
	require.NoError(t, err)
	require.Len(t, res.ToolOutputs, 5)
	for i, out := range res.ToolOutputs {
		assert.Equal(t, fmt.Sprintf("call_%d", i), out.CallID)
		assert.Equal(t, fmt.Sprintf(`"tool_%d done"`, i), out.Output)
		assert.False(t, out.Failed())
	}
	mockToolExec.AssertExpectations(t)
}

func TestUnifiedActor_RecoverableErrorsBecomeResults(t *testing.T) {
	mockToolExec := new(MockToolExecutor)
	actor := NewActor(mockToolExec, 0)

	mockToolExec.On("Execute", mock.Anything, "ghost", mock.Anything).
		Return(nil, scoutErrors.NotFound("tool not found: ghost")).Once()
	mockToolExec.On("Execute", mock.Anything, "scrape", mock.Anything).
		Return(nil, scoutErrors.InvalidArgument("at least one URL must be provided")).Once()

	res, err := actor.Execute(context.Background(), &Action{
		Type: ActionTypeToolCall,
		ToolCalls: []*contract.ToolCall{
			{ID: "a", Name: "ghost", Input: "{}"},
			{ID: "b", Name: "scrape", Input: "{}"},
		},
	})
	require.NoError(t, err)
	require.Len(t, res.ToolOutputs, 2)

	assert.True(t, res.ToolOutputs[0].Failed())
	assert.Contains(t, res.ToolOutputs[0].Output, "Tool ghost failed")
	assert.Contains(t, res.ToolOutputs[0].Output, "tool not found: ghost")
	assert.ErrorIs(t, res.ToolOutputs[1].Err, scoutErrors.ErrInvalidArgument)
}

func TestUnifiedActor_ToolUnavailableAborts(t *testing.T) {
	mockToolExec := new(MockToolExecutor)
	actor := NewActor(mockToolExec, 1)

	mockToolExec.On("Execute", mock.Anything, "scrape", mock.Anything).
		Return(nil, fmt.Errorf("%w: dataset missing", scoutErrors.ErrToolUnavailable)).Once()

	_, err := actor.Execute(context.Background(), &Action{
		Type:      ActionTypeToolCall,
		ToolCalls: []*contract.ToolCall{{ID: "a", Name: "scrape", Input: "{}"}},
	})
	assert.ErrorIs(t, err, scoutErrors.ErrToolUnavailable)
}

func TestUnifiedActor_RejectsNonToolActions(t *testing.T) {
	actor := NewActor(new(MockToolExecutor), 1)

	_, err := actor.Execute(context.Background(), &Action{Type: ActionTypeAnswer})
	assert.ErrorIs(t, err, scoutErrors.ErrInvalidArgument)

	_, err = actor.Execute(context.Background(), nil)
	assert.ErrorIs(t, err, scoutErrors.ErrInvalidArgument)
}
