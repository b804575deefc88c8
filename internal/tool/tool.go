package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/harunnryd/scout/internal/model/contract"
)

// Tool represents an executable data-gathering capability.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]interface{}
	// OutputSchema describes a successful result. Nil skips output validation.
	OutputSchema() map[string]interface{}
	Execute(ctx context.Context, input json.RawMessage) (json.RawMessage, error)
}

// Registry holds all available tools.
type Registry struct {
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

func (r *Registry) Register(t Tool) {
	name := NormalizeToolName(t.Name())
	if name == "" {
		panic("tool: empty tool name")
	}
	if _, exists := r.tools[name]; exists {
		panic(fmt.Sprintf("tool: duplicate tool name %s", name))
	}

	r.tools[name] = t
}

func (r *Registry) Get(name string) (Tool, bool) {
	name = NormalizeToolName(name)
	t, ok := r.tools[name]
	return t, ok
}

func (r *Registry) Len() int {
	return len(r.tools)
}

func (r *Registry) GetDescriptors() []ToolDescriptor {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	descriptors := make([]ToolDescriptor, 0, len(names))
	for _, name := range names {
		t := r.tools[name]

		meta := normalizeToolMetadata(ToolMetadata{})
		if provider, ok := t.(MetadataProvider); ok {
			meta = normalizeToolMetadata(provider.ToolMetadata())
		}

		descriptors = append(descriptors, ToolDescriptor{
			Definition: contract.ToolDef{
				Name:        name,
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
			Metadata: meta,
		})
	}
	return descriptors
}

// Definitions returns the tool declarations sent to the reasoning service.
func (r *Registry) Definitions() []contract.ToolDef {
	descriptors := r.GetDescriptors()
	defs := make([]contract.ToolDef, 0, len(descriptors))
	for _, d := range descriptors {
		defs = append(defs, d.Definition)
	}
	return defs
}

func NormalizeToolName(name string) string {
	return strings.TrimSpace(name)
}
