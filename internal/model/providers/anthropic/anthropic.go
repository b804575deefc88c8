package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/harunnryd/scout/internal/model/contract"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultMaxTokens = 4096

type Provider struct {
	client anthropic.Client
}

func New(apiKey string) *Provider {
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &Provider{client: client}
}

func (p *Provider) Name() string {
	return "anthropic"
}

func (p *Provider) Health(ctx context.Context) error {
	if _, err := p.client.Models.List(ctx, anthropic.ModelListParams{Limit: anthropic.Int(1)}); err != nil {
		return fmt.Errorf("anthropic health check failed: %w", err)
	}
	return nil
}

func (p *Provider) Generate(ctx context.Context, req contract.CompletionRequest) (*contract.CompletionResponse, error) {
	params, err := BuildParams(req)
	if err != nil {
		return nil, err
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic request failed: %w", err)
	}

	answerTool := ""
	if req.ResponseFormat != nil {
		answerTool = req.ResponseFormat.Name
	}

	resp := &contract.CompletionResponse{}
	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			if answerTool == "" {
				resp.Content += b.Text
			}
		case anthropic.ToolUseBlock:
			input := strings.TrimSpace(string(b.Input))
			if input == "" {
				input = "{}"
			}
			if answerTool != "" && b.Name == answerTool {
				// The forced answer tool carries the structured reply.
				resp.Content = input
				continue
			}
			resp.ToolCalls = append(resp.ToolCalls, &contract.ToolCall{
				ID:    b.ID,
				Name:  b.Name,
				Input: input,
			})
		}
	}

	if msg.Usage.InputTokens > 0 || msg.Usage.OutputTokens > 0 {
		resp.Usage = &contract.Usage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		}
	}

	return resp, nil
}

// BuildParams converts a contract request into Messages API params. Consecutive
// tool results are grouped into one user turn, as the API requires.
//
// A ResponseFormat is served through a synthetic tool named after the format,
// with tool_choice forcing it. The regular tool definitions stay in place
// because the history may still hold tool_use and tool_result blocks.
func BuildParams(req contract.CompletionRequest) (anthropic.MessageNewParams, error) {
	var messages []anthropic.MessageParam
	var pendingResults []anthropic.ContentBlockParamUnion

	flushResults := func() {
		if len(pendingResults) == 0 {
			return
		}
		messages = append(messages, anthropic.NewUserMessage(pendingResults...))
		pendingResults = nil
	}

	for _, m := range req.Messages {
		if m.Role == "tool" {
			pendingResults = append(pendingResults, anthropic.NewToolResultBlock(m.ToolCallID, m.Content, false))
			continue
		}
		flushResults()

		switch m.Role {
		case "assistant":
			var blocks []anthropic.ContentBlockParamUnion
			if strings.TrimSpace(m.Content) != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, toolInput(tc.Input), tc.Name))
			}
			if len(blocks) == 0 {
				continue
			}
			messages = append(messages, anthropic.NewAssistantMessage(blocks...))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	flushResults()

	var tools []anthropic.ToolUnionParam
	for _, t := range req.Tools {
		tool := anthropic.ToolParam{
			Name:        t.Name,
			Description: anthropic.String(t.Description),
			InputSchema: inputSchema(t.Parameters),
		}
		tools = append(tools, anthropic.ToolUnionParam{OfTool: &tool})
	}

	var toolChoice anthropic.ToolChoiceUnionParam
	if rf := req.ResponseFormat; rf != nil {
		answer := anthropic.ToolParam{
			Name:        rf.Name,
			Description: anthropic.String("Submit the final " + rf.Name + " object."),
			InputSchema: inputSchema(rf.Schema),
		}
		tools = append(tools, anthropic.ToolUnionParam{OfTool: &answer})
		toolChoice = anthropic.ToolChoiceParamOfTool(rf.Name)

		// Forced tool use cannot follow an assistant prefill.
		if n := len(messages); n == 0 || messages[n-1].Role == anthropic.MessageParamRoleAssistant {
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(
				"Submit your final answer by calling the "+rf.Name+" tool with a single JSON object that matches its input schema.")))
		}
	}

	modelName := req.Model
	if modelName == "" {
		modelName = string(anthropic.ModelClaudeSonnet4_0)
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:      anthropic.Model(modelName),
		MaxTokens:  int64(maxTokens),
		Messages:   messages,
		Tools:      tools,
		ToolChoice: toolChoice,
	}
	if strings.TrimSpace(req.System) != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	return params, nil
}

// toolInput decodes a recorded tool call input. Malformed arguments already
// failed validation on the tool side, so they are replayed under "raw".
func toolInput(raw string) interface{} {
	if strings.TrimSpace(raw) == "" {
		return map[string]interface{}{}
	}
	var input map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &input); err != nil || input == nil {
		return map[string]interface{}{"raw": raw}
	}
	return input
}

func inputSchema(params map[string]interface{}) anthropic.ToolInputSchemaParam {
	schema := anthropic.ToolInputSchemaParam{Properties: map[string]interface{}{}}
	for key, value := range params {
		switch key {
		case "type":
		case "properties":
			if props, ok := value.(map[string]interface{}); ok {
				schema.Properties = props
			}
		case "required":
			schema.Required = requiredFields(value)
		default:
			if schema.ExtraFields == nil {
				schema.ExtraFields = map[string]any{}
			}
			schema.ExtraFields[key] = value
		}
	}
	return schema
}

func requiredFields(raw interface{}) []string {
	switch v := raw.(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
