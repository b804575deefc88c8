package main

import (
	"bytes"
	"testing"

	"github.com/harunnryd/scout/internal/config"
	"github.com/harunnryd/scout/internal/orchestrator"
	"github.com/harunnryd/scout/internal/schema"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRunFlags(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{}
	cmd.Flags().StringP("query", "q", "", "")
	cmd.Flags().StringP("model", "m", "", "")
	cmd.Flags().StringP("scenario", "s", "", "")
	cmd.Flags().Bool("debug", false, "")
	require.NoError(t, cmd.Flags().Parse(args))
	return cmd
}

func TestApplyInputFlags_OnlyChangedFlagsOverride(t *testing.T) {
	stored := orchestrator.Input{Query: "stored query", ModelName: "gpt-4o", Scenario: "social"}

	in := applyInputFlags(newRunFlags(t), stored)
	assert.Equal(t, stored, in)

	in = applyInputFlags(newRunFlags(t, "-q", "a tent", "--debug"), stored)
	assert.Equal(t, "a tent", in.Query)
	assert.Equal(t, "gpt-4o", in.ModelName)
	assert.Equal(t, "social", in.Scenario)
	assert.True(t, in.Debug)
}

func TestToReport(t *testing.T) {
	record := &orchestrator.RunRecord{
		RunID:       "01RUN",
		Scenario:    "products",
		Model:       "gpt-4o-mini",
		Answer:      &schema.Answer{},
		Summary:     "# Laptops",
		TotalTokens: 900,
		Turns:       4,
		Records:     []map[string]interface{}{{"title": "Acer", "response": "# Laptops"}},
		AnswerURL:   "file:///tmp/response.md",
	}

	run := toReport(record)
	assert.Equal(t, "01RUN", run.RunID)
	assert.Equal(t, "# Laptops", run.Response)
	assert.Equal(t, 900, run.TotalTokens)
	assert.Contains(t, run.Fields, "title")
	assert.Contains(t, run.Fields, "reviewSummary")
}

func TestScenarioTools(t *testing.T) {
	infos, err := scenarioTools("products", config.ApifyConfig{})
	require.NoError(t, err)
	require.NotEmpty(t, infos)
	for _, info := range infos {
		assert.Equal(t, "products", info.Scenario)
		assert.NotEmpty(t, info.Source)
	}

	_, err = scenarioTools("nope", config.ApifyConfig{})
	assert.Error(t, err)
}

func TestPrintModels_MarksDefault(t *testing.T) {
	var buf bytes.Buffer
	printModels(&buf, []string{"claude-sonnet-4-0", "gpt-4o-mini"}, "gpt-4o-mini")

	assert.Equal(t, "  claude-sonnet-4-0\n* gpt-4o-mini\n", buf.String())
}
