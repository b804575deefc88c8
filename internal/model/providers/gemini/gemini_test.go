package gemini

import (
	"testing"

	"github.com/harunnryd/scout/internal/model/contract"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestBuildContents_ResolvesFunctionResponseNames(t *testing.T) {
	req := contract.CompletionRequest{
		System: "expert",
		Messages: []contract.Message{
			{Role: "user", Content: "a laptop under $600"},
			{Role: "assistant", ToolCalls: []*contract.ToolCall{{ID: "c1", Name: "scrape_amazon_products", Input: `{"max_items_per_start_url":5}`}}},
			{Role: "tool", ToolCallID: "c1", Content: `[{"title":"A"}]`},
		},
		Tools: []contract.ToolDef{{Name: "scrape_amazon_products", Parameters: map[string]interface{}{"type": "object"}}},
	}

	contents, cfg := BuildContents(req)
	require.Len(t, contents, 3)

	call := contents[1].Parts[0].FunctionCall
	require.NotNil(t, call)
	assert.Equal(t, float64(5), call.Args["max_items_per_start_url"])

	resp := contents[2].Parts[0].FunctionResponse
	require.NotNil(t, resp)
	assert.Equal(t, "scrape_amazon_products", resp.Name)
	assert.Equal(t, `[{"title":"A"}]`, resp.Response["output"])

	require.NotNil(t, cfg.SystemInstruction)
	require.Len(t, cfg.Tools, 1)
	assert.Empty(t, cfg.ResponseMIMEType)
}

func TestBuildContents_ResponseFormat(t *testing.T) {
	req := contract.CompletionRequest{
		Messages: []contract.Message{{Role: "user", Content: "answer"}},
		Tools:    []contract.ToolDef{{Name: "scrape_amazon_products"}},
		ResponseFormat: &contract.ResponseFormat{
			Name: "recommendation",
			Schema: map[string]interface{}{
				"type":     "object",
				"required": []interface{}{"recommended_products"},
				"properties": map[string]interface{}{
					"recommended_products": map[string]interface{}{
						"type":  "array",
						"items": map[string]interface{}{"type": []interface{}{"string", "null"}},
					},
				},
			},
		},
	}

	_, cfg := BuildContents(req)
	assert.Equal(t, "application/json", cfg.ResponseMIMEType)
	assert.Empty(t, cfg.Tools)

	s := cfg.ResponseSchema
	require.NotNil(t, s)
	assert.Equal(t, genai.TypeObject, s.Type)
	assert.Equal(t, []string{"recommended_products"}, s.Required)
	items := s.Properties["recommended_products"].Items
	require.NotNil(t, items)
	assert.Equal(t, genai.TypeString, items.Type)
	require.NotNil(t, items.Nullable)
	assert.True(t, *items.Nullable)
}

func TestToSchema_MapsItemBounds(t *testing.T) {
	s := ToSchema(map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"recommended_products"},
		"properties": map[string]interface{}{
			"recommended_products": map[string]interface{}{
				"type":     "array",
				"minItems": 1,
				"maxItems": float64(10),
				"items":    map[string]interface{}{"type": "object"},
			},
			"tags": map[string]interface{}{"type": "array"},
		},
	})

	products := s.Properties["recommended_products"]
	require.NotNil(t, products)
	require.NotNil(t, products.MinItems)
	assert.Equal(t, int64(1), *products.MinItems)
	require.NotNil(t, products.MaxItems)
	assert.Equal(t, int64(10), *products.MaxItems)

	assert.Nil(t, s.Properties["tags"].MinItems)
}
