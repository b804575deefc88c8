// Package scenario binds the three things that vary between agents: the tool
// set, the output schema and the system instructions. The reasoning loop and
// the run driver are shared by every scenario.
package scenario

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/harunnryd/scout/internal/config"
	scoutErrors "github.com/harunnryd/scout/internal/errors"
	"github.com/harunnryd/scout/internal/schema"
	"github.com/harunnryd/scout/internal/tool"
)

// Collector runs a remote data-collection job and returns its result records.
type Collector interface {
	Collect(ctx context.Context, actorID string, input map[string]interface{}) ([]map[string]interface{}, error)
}

// Deps carries what scenario tools need at construction time.
type Deps struct {
	Collector Collector
	Apify     config.ApifyConfig
}

type Scenario struct {
	Name         string
	Description  string
	SystemPrompt string
	Output       *schema.Output
	Tools        func(deps Deps) []tool.Tool
}

// Registry builds a fresh tool registry for one run.
func (s *Scenario) Registry(deps Deps) *tool.Registry {
	registry := tool.NewRegistry()
	for _, t := range s.Tools(deps) {
		registry.Register(t)
	}
	return registry
}

var catalog = struct {
	mu        sync.RWMutex
	scenarios map[string]*Scenario
}{
	scenarios: map[string]*Scenario{},
}

// Register adds a scenario to the catalog. Intended to be called in init().
func Register(s *Scenario) {
	name := normalizeName(s.Name)
	if name == "" {
		panic("scenario: empty scenario name")
	}
	if s.Output == nil || s.Tools == nil {
		panic(fmt.Sprintf("scenario: %s needs an output schema and tools", name))
	}

	catalog.mu.Lock()
	defer catalog.mu.Unlock()

	if _, exists := catalog.scenarios[name]; exists {
		panic(fmt.Sprintf("scenario: already registered: %s", name))
	}
	catalog.scenarios[name] = s
}

func Get(name string) (*Scenario, bool) {
	catalog.mu.RLock()
	defer catalog.mu.RUnlock()

	s, ok := catalog.scenarios[normalizeName(name)]
	return s, ok
}

func Names() []string {
	catalog.mu.RLock()
	defer catalog.mu.RUnlock()

	names := make([]string, 0, len(catalog.scenarios))
	for name := range catalog.scenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// RequestURL is a start URL for a collection job.
type RequestURL struct {
	URL    string `json:"url"`
	Method string `json:"method,omitempty"`
}

// RequestURLSchema is the JSON schema of a non-empty RequestURL list.
func RequestURLSchema(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "array",
		"description": description,
		"minItems":    1,
		"items": map[string]interface{}{
			"type":     "object",
			"required": []string{"url"},
			"properties": map[string]interface{}{
				"url":    map[string]interface{}{"type": "string", "description": "The URL to scrape."},
				"method": map[string]interface{}{"type": "string", "description": "The HTTP method to use, usually GET."},
			},
		},
	}
}

// NormalizeRequestURLs rejects an empty list and defaults the method to GET.
func NormalizeRequestURLs(field string, urls []RequestURL) ([]map[string]interface{}, error) {
	if len(urls) < 1 {
		return nil, scoutErrors.InvalidArgument(fmt.Sprintf("at least one URL must be provided in %s", field))
	}

	out := make([]map[string]interface{}, 0, len(urls))
	for i, u := range urls {
		if strings.TrimSpace(u.URL) == "" {
			return nil, scoutErrors.InvalidArgument(fmt.Sprintf("%s[%d].url is empty", field, i))
		}
		method := strings.ToUpper(strings.TrimSpace(u.Method))
		if method == "" {
			method = "GET"
		}
		out = append(out, map[string]interface{}{"url": strings.TrimSpace(u.URL), "method": method})
	}
	return out, nil
}

// DecodeInput unmarshals tool arguments, reporting failures as InvalidArgument.
func DecodeInput(input json.RawMessage, dst interface{}) error {
	if len(input) == 0 {
		input = json.RawMessage(`{}`)
	}
	if err := json.Unmarshal(input, dst); err != nil {
		return scoutErrors.WrapWithCategory(err, "decode tool input", scoutErrors.ErrInvalidArgument)
	}
	return nil
}

// Project copies the named fields of a record, leaving absent and null fields out.
func Project(record map[string]interface{}, fields ...string) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for _, field := range fields {
		if value, ok := record[field]; ok && value != nil {
			out[field] = value
		}
	}
	return out
}

// PromptTool is a pure helper tool that formats the query into an instruction.
type PromptTool struct {
	ToolName        string
	ToolDescription string
	Template        string
}

func (t *PromptTool) Name() string        { return t.ToolName }
func (t *PromptTool) Description() string { return t.ToolDescription }

func (t *PromptTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type":     "object",
		"required": []string{"query"},
		"properties": map[string]interface{}{
			"query": map[string]interface{}{"type": "string", "description": "The user query."},
		},
	}
}

func (t *PromptTool) OutputSchema() map[string]interface{} {
	return map[string]interface{}{"type": "string"}
}

func (t *PromptTool) ToolMetadata() tool.ToolMetadata {
	return tool.ToolMetadata{Source: "local", Capabilities: []string{"prompt"}, Risk: tool.RiskLow}
}

func (t *PromptTool) Execute(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var args struct {
		Query string `json:"query"`
	}
	if err := DecodeInput(input, &args); err != nil {
		return nil, err
	}
	return json.Marshal(fmt.Sprintf(t.Template, args.Query))
}
