package report

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
)

type TableFormatter struct {
	headerStyle  lipgloss.Style
	cellStyle    lipgloss.Style
	oddRowStyle  lipgloss.Style
	evenRowStyle lipgloss.Style
	borderStyle  lipgloss.Style
}

func NewTableFormatter() *TableFormatter {
	purple := lipgloss.Color("99")
	gray := lipgloss.Color("245")
	lightGray := lipgloss.Color("241")

	return &TableFormatter{
		headerStyle: lipgloss.NewStyle().
			Foreground(purple).
			Bold(true).
			Align(lipgloss.Center).
			Padding(0, 1),
		cellStyle: lipgloss.NewStyle().
			Padding(0, 1),
		oddRowStyle: lipgloss.NewStyle().
			Foreground(gray).
			Padding(0, 1),
		evenRowStyle: lipgloss.NewStyle().
			Foreground(lightGray).
			Padding(0, 1),
		borderStyle: lipgloss.NewStyle().
			Foreground(purple),
	}
}

func (f *TableFormatter) FormatRun(run *Run) (string, error) {
	if run == nil {
		return "No run found", nil
	}

	summary := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(f.borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if col == 0 {
				return f.headerStyle
			}
			return f.cellStyle
		})

	summary.Row("Run", run.RunID)
	summary.Row("Scenario", run.Scenario)
	summary.Row("Model", run.Model)
	summary.Row("Turns", fmt.Sprintf("%d", run.Turns))
	summary.Row("Tokens", fmt.Sprintf("%d", run.TotalTokens))
	if run.AnswerURL != "" {
		summary.Row("Answer", run.AnswerURL)
	}

	if len(run.Records) == 0 {
		return summary.String() + "\nNo records delivered", nil
	}

	fields := run.Fields
	if len(fields) == 0 {
		fields = []string{"response"}
	}

	items := f.grid(fields...)
	for _, record := range run.Records {
		row := make([]string, len(fields))
		for i, field := range fields {
			row[i] = truncateString(cell(record[field]), 40)
		}
		items.Row(row...)
	}

	return summary.String() + "\n" + items.String(), nil
}

func (f *TableFormatter) FormatTools(tools []ToolInfo) (string, error) {
	if len(tools) == 0 {
		return "No tools found", nil
	}

	t := f.grid("Scenario", "Name", "Source", "Risk", "Description")
	for _, info := range tools {
		t.Row(
			info.Scenario,
			info.Name,
			info.Source,
			info.Risk,
			truncateString(strings.Join(strings.Fields(info.Description), " "), 60),
		)
	}
	return t.String(), nil
}

func (f *TableFormatter) grid(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(f.borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return f.headerStyle
			case row%2 == 0:
				return f.evenRowStyle
			default:
				return f.oddRowStyle
			}
		}).
		Headers(headers...)
}
