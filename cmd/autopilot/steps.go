package main

import (
	"errors"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/simon020286/go-autopilot/builder"
	"github.com/simon020286/go-autopilot/models"
	_ "github.com/simon020286/go-autopilot/steps"
	"github.com/spf13/cobra"
)

var stepsCmd = &cobra.Command{
	Use:   "steps",
	Short: "List the available step types",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		t := table.NewWriter()
		t.SetOutputMirror(cmd.OutOrStdout())
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"Type", "Required params", "Endpoints"})

		registry := builder.Default()
		for _, typ := range registry.Types() {
			params, endpoints := describeStep(registry, typ)
			t.AppendRow(table.Row{typ, params, endpoints})
		}
		t.Render()
		return nil
	},
}

// describeStep builds the step without parameters: the resulting
// parameter error lists what the type requires.
func describeStep(registry *builder.Registry, stepType string) (string, string) {
	step, err := registry.CreateStep(models.StepConfig{Type: stepType})
	var pe *models.ParameterError
	switch {
	case errors.As(err, &pe):
		return strings.Join(pe.Wanted, ", "), "-"
	case err != nil:
		return "?", "?"
	}
	endpoints := step.Endpoints()
	if len(endpoints) == 0 {
		return "-", "-"
	}
	return "-", strings.Join(endpoints, "\n")
}
