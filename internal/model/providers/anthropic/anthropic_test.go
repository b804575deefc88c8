package anthropic

import (
	"testing"

	"github.com/harunnryd/scout/internal/model/contract"

	anthropic "github.com/anthropics/anthropic-sdk-go"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildParams_GroupsToolResults(t *testing.T) {
	req := contract.CompletionRequest{
		Model:  "claude-sonnet-4-0",
		System: "expert",
		Messages: []contract.Message{
			{Role: "user", Content: "a laptop under $600"},
			{Role: "assistant", ToolCalls: []*contract.ToolCall{
				{ID: "toolu_1", Name: "scrape_amazon_reviews", Input: `{"product_urls":[{"url":"a"}]}`},
				{ID: "toolu_2", Name: "scrape_amazon_reviews", Input: `{"product_urls":[{"url":"b"}]}`},
			}},
			{Role: "tool", ToolCallID: "toolu_1", Content: "[]"},
			{Role: "tool", ToolCallID: "toolu_2", Content: "[]"},
		},
		Tools: []contract.ToolDef{{
			Name: "scrape_amazon_reviews",
			Parameters: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{"product_urls": map[string]interface{}{"type": "array"}},
				"required":   []string{"product_urls"},
			},
		}},
	}

	params, err := BuildParams(req)
	require.NoError(t, err)

	require.Len(t, params.Messages, 3)
	require.Len(t, params.Messages[1].Content, 2)
	assert.NotNil(t, params.Messages[1].Content[0].OfToolUse)
	require.Len(t, params.Messages[2].Content, 2)
	assert.NotNil(t, params.Messages[2].Content[0].OfToolResult)
	assert.NotNil(t, params.Messages[2].Content[1].OfToolResult)

	require.Len(t, params.System, 1)
	assert.Equal(t, "expert", params.System[0].Text)
	require.Len(t, params.Tools, 1)
	assert.Equal(t, []string{"product_urls"}, params.Tools[0].OfTool.InputSchema.Required)
	assert.Equal(t, int64(defaultMaxTokens), params.MaxTokens)
}

func TestBuildParams_ResponseFormatForcesAnswerTool(t *testing.T) {
	req := contract.CompletionRequest{
		System: "expert",
		Messages: []contract.Message{
			{Role: "user", Content: "a laptop under $600"},
			{Role: "assistant", ToolCalls: []*contract.ToolCall{
				{ID: "toolu_1", Name: "scrape_amazon_products", Input: `{"category_or_product_urls":[{"url":"a"}]}`},
			}},
			{Role: "tool", ToolCallID: "toolu_1", Content: "[]"},
			{Role: "assistant", Content: "# My picks"},
		},
		Tools: []contract.ToolDef{{Name: "scrape_amazon_products"}},
		ResponseFormat: &contract.ResponseFormat{
			Name: "recommendation",
			Schema: map[string]interface{}{
				"type":                 "object",
				"properties":           map[string]interface{}{"recommended_products": map[string]interface{}{"type": "array", "minItems": 1}},
				"required":             []interface{}{"recommended_products"},
				"additionalProperties": false,
			},
		},
	}

	params, err := BuildParams(req)
	require.NoError(t, err)

	require.Len(t, params.Tools, 2)
	assert.Equal(t, "scrape_amazon_products", params.Tools[0].OfTool.Name)
	answer := params.Tools[1].OfTool
	assert.Equal(t, "recommendation", answer.Name)
	assert.Equal(t, []string{"recommended_products"}, answer.InputSchema.Required)
	assert.Equal(t, false, answer.InputSchema.ExtraFields["additionalProperties"])

	require.NotNil(t, params.ToolChoice.OfTool)
	assert.Equal(t, "recommendation", params.ToolChoice.OfTool.Name)

	require.Len(t, params.Messages, 5)
	assert.NotNil(t, params.Messages[1].Content[0].OfToolUse)
	assert.NotNil(t, params.Messages[2].Content[0].OfToolResult)
	last := params.Messages[len(params.Messages)-1]
	assert.Equal(t, anthropic.MessageParamRoleUser, last.Role)
	require.NotNil(t, last.Content[0].OfText)
	assert.Contains(t, last.Content[0].OfText.Text, "recommendation")

	require.Len(t, params.System, 1)
	assert.Equal(t, "expert", params.System[0].Text)
}

func TestBuildParams_ResponseFormatAfterUserTurn(t *testing.T) {
	req := contract.CompletionRequest{
		Messages: []contract.Message{{Role: "user", Content: "answer"}},
		ResponseFormat: &contract.ResponseFormat{
			Name:   "recommendation",
			Schema: map[string]interface{}{"type": "object"},
		},
	}

	params, err := BuildParams(req)
	require.NoError(t, err)

	require.Len(t, params.Messages, 1)
	require.Len(t, params.Tools, 1)
	assert.Equal(t, "recommendation", params.ToolChoice.OfTool.Name)
}

func TestBuildParams_MalformedToolInputIsReplayedRaw(t *testing.T) {
	req := contract.CompletionRequest{
		Messages: []contract.Message{
			{Role: "user", Content: "a laptop"},
			{Role: "assistant", ToolCalls: []*contract.ToolCall{
				{ID: "toolu_1", Name: "scrape_amazon_products", Input: `{"category_or_product_urls": [`},
			}},
			{Role: "tool", ToolCallID: "toolu_1", Content: "Tool scrape_amazon_products failed: invalid arguments"},
		},
	}

	params, err := BuildParams(req)
	require.NoError(t, err)

	require.Len(t, params.Messages, 3)
	use := params.Messages[1].Content[0].OfToolUse
	require.NotNil(t, use)
	assert.Equal(t, map[string]interface{}{"raw": `{"category_or_product_urls": [`}, use.Input)
}
