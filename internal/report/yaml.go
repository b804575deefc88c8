package report

import (
	"strings"

	"gopkg.in/yaml.v3"
)

type YAMLFormatter struct{}

func NewYAMLFormatter() *YAMLFormatter {
	return &YAMLFormatter{}
}

func (f *YAMLFormatter) FormatRun(run *Run) (string, error) {
	if run == nil {
		return "null", nil
	}
	data, err := yaml.Marshal(run)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func (f *YAMLFormatter) FormatTools(tools []ToolInfo) (string, error) {
	data, err := yaml.Marshal(tools)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
