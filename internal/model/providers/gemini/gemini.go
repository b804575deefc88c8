package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/harunnryd/scout/internal/model/contract"

	"google.golang.org/genai"
)

type Provider struct {
	client *genai.Client
}

func New(apiKey string) (*Provider, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, err
	}
	return &Provider{client: client}, nil
}

func (p *Provider) Name() string {
	return "gemini"
}

func (p *Provider) Health(ctx context.Context) error {
	if _, err := p.client.Models.List(ctx, &genai.ListModelsConfig{PageSize: 1}); err != nil {
		return fmt.Errorf("gemini health check failed: %w", err)
	}
	return nil
}

func (p *Provider) Generate(ctx context.Context, req contract.CompletionRequest) (*contract.CompletionResponse, error) {
	contents, genCfg := BuildContents(req)

	resp, err := p.client.Models.GenerateContent(ctx, req.Model, contents, genCfg)
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}

	out := &contract.CompletionResponse{}
	if resp == nil {
		return out, nil
	}

	for i, fc := range resp.FunctionCalls() {
		argsJSON, _ := json.Marshal(fc.Args)
		id := fc.ID
		if id == "" {
			id = fmt.Sprintf("%s_%d", fc.Name, i+1)
		}
		out.ToolCalls = append(out.ToolCalls, &contract.ToolCall{ID: id, Name: fc.Name, Input: string(argsJSON)})
	}

	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if part.Text != "" && !part.Thought {
				out.Content += part.Text
			}
		}
	}

	if um := resp.UsageMetadata; um != nil && (um.TotalTokenCount > 0 || um.PromptTokenCount > 0) {
		out.Usage = &contract.Usage{
			PromptTokens:     int(um.PromptTokenCount),
			CompletionTokens: int(um.CandidatesTokenCount),
			TotalTokens:      int(um.TotalTokenCount),
		}
	}

	return out, nil
}

// BuildContents converts a contract request into Gemini contents and config.
// Function responses are keyed by tool name, so tool call IDs are resolved
// against the preceding assistant turns.
func BuildContents(req contract.CompletionRequest) ([]*genai.Content, *genai.GenerateContentConfig) {
	callNames := make(map[string]string)
	var contents []*genai.Content

	for _, m := range req.Messages {
		switch m.Role {
		case "tool":
			var obj map[string]any
			if err := json.Unmarshal([]byte(m.Content), &obj); err != nil || obj == nil {
				obj = map[string]any{"output": m.Content}
			}
			name := m.Name
			if name == "" {
				name = callNames[m.ToolCallID]
			}
			if name == "" {
				name = m.ToolCallID
			}
			contents = append(contents, &genai.Content{Role: "user", Parts: []*genai.Part{{FunctionResponse: &genai.FunctionResponse{ID: m.ToolCallID, Name: name, Response: obj}}}})
		case "assistant":
			var parts []*genai.Part
			if strings.TrimSpace(m.Content) != "" {
				parts = append(parts, &genai.Part{Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				callNames[tc.ID] = tc.Name
				var args map[string]any
				_ = json.Unmarshal([]byte(tc.Input), &args)
				parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{ID: tc.ID, Name: tc.Name, Args: args}})
			}
			if len(parts) == 0 {
				continue
			}
			contents = append(contents, &genai.Content{Role: "model", Parts: parts})
		default:
			contents = append(contents, &genai.Content{Role: "user", Parts: []*genai.Part{{Text: m.Content}}})
		}
	}

	genCfg := &genai.GenerateContentConfig{}
	if strings.TrimSpace(req.System) != "" {
		genCfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}
	if req.MaxTokens > 0 {
		genCfg.MaxOutputTokens = int32(req.MaxTokens)
	}

	if req.ResponseFormat != nil {
		genCfg.ResponseMIMEType = "application/json"
		genCfg.ResponseSchema = ToSchema(req.ResponseFormat.Schema)
		return contents, genCfg
	}

	if len(req.Tools) > 0 {
		var decls []*genai.FunctionDeclaration
		for _, t := range req.Tools {
			decls = append(decls, &genai.FunctionDeclaration{Name: t.Name, Description: t.Description, Parameters: ToSchema(t.Parameters)})
		}
		genCfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	return contents, genCfg
}

// ToSchema converts a JSON-schema map into a Gemini schema. Type lists such as
// ["string", "null"] become a nullable single type.
func ToSchema(def map[string]interface{}) *genai.Schema {
	if def == nil {
		return &genai.Schema{Type: genai.TypeObject}
	}

	s := &genai.Schema{}
	switch t := def["type"].(type) {
	case string:
		s.Type = toType(t)
	case []interface{}:
		for _, item := range t {
			name, _ := item.(string)
			if name == "null" {
				nullable := true
				s.Nullable = &nullable
				continue
			}
			if s.Type == "" {
				s.Type = toType(name)
			}
		}
	case []string:
		for _, name := range t {
			if name == "null" {
				nullable := true
				s.Nullable = &nullable
				continue
			}
			if s.Type == "" {
				s.Type = toType(name)
			}
		}
	}

	if desc, ok := def["description"].(string); ok {
		s.Description = desc
	}

	if props, ok := def["properties"].(map[string]interface{}); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			if child, ok := raw.(map[string]interface{}); ok {
				s.Properties[name] = ToSchema(child)
			}
		}
	}

	if items, ok := def["items"].(map[string]interface{}); ok {
		s.Items = ToSchema(items)
	}
	if n, ok := int64Value(def["minItems"]); ok {
		s.MinItems = &n
	}
	if n, ok := int64Value(def["maxItems"]); ok {
		s.MaxItems = &n
	}

	switch req := def["required"].(type) {
	case []string:
		s.Required = req
	case []interface{}:
		for _, item := range req {
			if name, ok := item.(string); ok {
				s.Required = append(s.Required, name)
			}
		}
	}

	switch enum := def["enum"].(type) {
	case []string:
		s.Enum = enum
	case []interface{}:
		for _, item := range enum {
			s.Enum = append(s.Enum, fmt.Sprint(item))
		}
	}

	return s
}

func int64Value(raw interface{}) (int64, bool) {
	switch v := raw.(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}

func toType(name string) genai.Type {
	switch strings.ToLower(name) {
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeUnspecified
	}
}
