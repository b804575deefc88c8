package report

import (
	"fmt"
	"strings"
)

// MarkdownFormatter prints the agent's own markdown answer, the same text
// stored as response.md.
type MarkdownFormatter struct{}

func NewMarkdownFormatter() *MarkdownFormatter {
	return &MarkdownFormatter{}
}

func (f *MarkdownFormatter) FormatRun(run *Run) (string, error) {
	if run == nil {
		return "", nil
	}
	return strings.TrimSpace(run.Response), nil
}

func (f *MarkdownFormatter) FormatTools(tools []ToolInfo) (string, error) {
	if len(tools) == 0 {
		return "_No tools found_", nil
	}

	var b strings.Builder
	current := ""
	for _, info := range tools {
		if info.Scenario != current {
			if current != "" {
				b.WriteString("\n")
			}
			current = info.Scenario
			fmt.Fprintf(&b, "## %s\n\n", current)
		}
		fmt.Fprintf(&b, "- **%s** (%s, %s risk): %s\n", info.Name, info.Source, info.Risk, strings.Join(strings.Fields(info.Description), " "))
	}
	return strings.TrimSpace(b.String()), nil
}
