// Package report renders run outcomes and tool listings for the terminal.
package report

import (
	"fmt"
	"strings"
)

type OutputFormat string

const (
	OutputFormatTable    OutputFormat = "table"
	OutputFormatJSON     OutputFormat = "json"
	OutputFormatYAML     OutputFormat = "yaml"
	OutputFormatMarkdown OutputFormat = "markdown"
)

// Run is the printable view of a finished run.
type Run struct {
	RunID       string                   `json:"run_id" yaml:"run_id"`
	Scenario    string                   `json:"scenario" yaml:"scenario"`
	Model       string                   `json:"model" yaml:"model"`
	Turns       int                      `json:"turns" yaml:"turns"`
	TotalTokens int                      `json:"total_tokens" yaml:"total_tokens"`
	AnswerURL   string                   `json:"answer_url,omitempty" yaml:"answer_url,omitempty"`
	Response    string                   `json:"response" yaml:"response"`
	Records     []map[string]interface{} `json:"records" yaml:"records"`

	// Fields orders the record columns in tabular output.
	Fields []string `json:"-" yaml:"-"`
}

type ToolInfo struct {
	Scenario    string `json:"scenario" yaml:"scenario"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Source      string `json:"source" yaml:"source"`
	Risk        string `json:"risk" yaml:"risk"`
}

type Formatter interface {
	FormatRun(*Run) (string, error)
	FormatTools([]ToolInfo) (string, error)
}

type FormatterFactory struct{}

func NewFormatterFactory() *FormatterFactory {
	return &FormatterFactory{}
}

func (f *FormatterFactory) Create(format OutputFormat) (Formatter, error) {
	switch format {
	case OutputFormatTable:
		return NewTableFormatter(), nil
	case OutputFormatJSON:
		return NewJSONFormatter(), nil
	case OutputFormatYAML:
		return NewYAMLFormatter(), nil
	case OutputFormatMarkdown:
		return NewMarkdownFormatter(), nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s (supported: table, json, yaml, markdown)", format)
	}
}

func ParseOutputFormat(s string) (OutputFormat, error) {
	format := OutputFormat(strings.ToLower(strings.TrimSpace(s)))
	switch format {
	case OutputFormatTable, OutputFormatJSON, OutputFormatYAML, OutputFormatMarkdown:
		return format, nil
	case "md":
		return OutputFormatMarkdown, nil
	default:
		return "", fmt.Errorf("invalid output format: %s (supported: table, json, yaml, markdown)", s)
	}
}

// cell renders a record value for tabular output.
func cell(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "-"
	case string:
		if strings.TrimSpace(val) == "" {
			return "-"
		}
		return val
	case []interface{}:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, cell(item))
		}
		return strings.Join(parts, ", ")
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%.2f", val)
	default:
		return fmt.Sprint(val)
	}
}

func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
