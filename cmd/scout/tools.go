package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/harunnryd/scout/internal/config"
	"github.com/harunnryd/scout/internal/model"
	"github.com/harunnryd/scout/internal/report"
	"github.com/harunnryd/scout/internal/scenario"

	"github.com/spf13/cobra"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools each scenario gives the agent",
	RunE: func(cmd *cobra.Command, args []string) error {
		outputFormat, _ := cmd.Flags().GetString("output")
		only, _ := cmd.Flags().GetString("scenario")

		format, err := report.ParseOutputFormat(outputFormat)
		if err != nil {
			return err
		}
		formatter, err := report.NewFormatterFactory().Create(format)
		if err != nil {
			return fmt.Errorf("invalid output format: %w", err)
		}

		infos, err := scenarioTools(only, cfg.Apify)
		if err != nil {
			return err
		}

		output, err := formatter.FormatTools(infos)
		if err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}
		fmt.Println(output)
		return nil
	},
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models that have credentials configured",
	RunE: func(cmd *cobra.Command, args []string) error {
		router, err := model.NewModelRouter(cfg.Models)
		if err != nil {
			return err
		}

		printModels(cmd.OutOrStdout(), router.ListModels(), cfg.Models.Default)

		check, _ := cmd.Flags().GetBool("check")
		if !check {
			return nil
		}
		if err := router.Health(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "all models healthy")
		return nil
	},
}

func printModels(w io.Writer, names []string, defaultModel string) {
	for _, name := range names {
		marker := " "
		if name == defaultModel {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %s\n", marker, name)
	}
}

func scenarioTools(only string, apifyCfg config.ApifyConfig) ([]report.ToolInfo, error) {
	names := scenario.Names()
	if only = strings.TrimSpace(only); only != "" {
		if _, ok := scenario.Get(only); !ok {
			return nil, fmt.Errorf("unknown scenario %q (available: %s)", only, strings.Join(names, ", "))
		}
		names = []string{strings.ToLower(only)}
	}

	var infos []report.ToolInfo
	for _, name := range names {
		sc, _ := scenario.Get(name)
		registry := sc.Registry(scenario.Deps{Apify: apifyCfg})
		for _, desc := range registry.GetDescriptors() {
			infos = append(infos, report.ToolInfo{
				Scenario:    sc.Name,
				Name:        desc.Definition.Name,
				Description: desc.Definition.Description,
				Source:      desc.Metadata.Source,
				Risk:        string(desc.Metadata.Risk),
			})
		}
	}
	return infos, nil
}

func init() {
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(modelsCmd)
	toolsCmd.Flags().StringP("scenario", "s", "", "Only list tools of this scenario")
	toolsCmd.Flags().StringP("output", "o", "table", "Output format (table|json|yaml|markdown)")
	modelsCmd.Flags().Bool("check", false, "Call each provider to verify its credentials")
}
