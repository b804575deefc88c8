package main

import (
	"fmt"
	"strings"

	"github.com/harunnryd/scout/cmd/scout/runtime"
	"github.com/harunnryd/scout/internal/orchestrator"
	"github.com/harunnryd/scout/internal/report"
	"github.com/harunnryd/scout/internal/scenario"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one recommendation",
	Long: `Run the agent once. On the Apify platform the input is read from the INPUT
record of the default key-value store; locally it comes from --input or the flags.`,
	Example: `  scout run -q "a laptop under $600 for students"
  scout run --input input.json -o json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		outputFormat, _ := cmd.Flags().GetString("output")
		format, err := report.ParseOutputFormat(outputFormat)
		if err != nil {
			return err
		}
		formatter, err := report.NewFormatterFactory().Create(format)
		if err != nil {
			return fmt.Errorf("invalid output format: %w", err)
		}

		signals := NewSignalHandler(cmd.Context())
		signals.Start()
		defer signals.Stop()

		components, err := runtime.NewRuntimeBuilder().
			WithContext(signals.Context()).
			WithConfig(cfg).
			Build()
		if err != nil {
			return err
		}
		ctx := components.Context()

		inputPath, _ := cmd.Flags().GetString("input")
		in, _, err := components.LoadInput(ctx, inputPath)
		if err != nil {
			return components.Fail(ctx, err)
		}
		in = applyInputFlags(cmd, in)

		record, err := components.Driver.Run(ctx, in)
		if err != nil {
			return err
		}

		output, err := formatter.FormatRun(toReport(record))
		if err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}
		fmt.Println(output)
		return nil
	},
}

// applyInputFlags lets explicitly set flags override the stored input.
func applyInputFlags(cmd *cobra.Command, in orchestrator.Input) orchestrator.Input {
	flags := cmd.Flags()
	if flags.Changed("query") {
		in.Query, _ = flags.GetString("query")
	}
	if flags.Changed("model") {
		in.ModelName, _ = flags.GetString("model")
	}
	if flags.Changed("scenario") {
		in.Scenario, _ = flags.GetString("scenario")
	}
	if flags.Changed("debug") {
		in.Debug, _ = flags.GetBool("debug")
	}
	return in
}

func toReport(record *orchestrator.RunRecord) *report.Run {
	run := &report.Run{
		RunID:       record.RunID,
		Scenario:    record.Scenario,
		Model:       record.Model,
		Turns:       record.Turns,
		TotalTokens: record.TotalTokens,
		AnswerURL:   record.AnswerURL,
		Response:    record.Summary,
		Records:     record.Records,
	}
	if sc, ok := scenario.Get(record.Scenario); ok {
		run.Fields = sc.Output.RecordFields
	}
	return run
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringP("query", "q", "", "What the user is looking for")
	runCmd.Flags().StringP("model", "m", "", "Model to run the agent with")
	runCmd.Flags().StringP("scenario", "s", "", "Scenario to run ("+strings.Join(scenario.Names(), ", ")+")")
	runCmd.Flags().Bool("debug", false, "Log every message exchanged with the model")
	runCmd.Flags().StringP("input", "i", "", "Path to a JSON input file")
	runCmd.Flags().StringP("output", "o", "table", "Output format (table|json|yaml|markdown)")
}
