package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	autopilot "github.com/simon020286/go-autopilot"
	"github.com/simon020286/go-autopilot/config"
	"github.com/simon020286/go-autopilot/logging"
	"github.com/simon020286/go-autopilot/moodle"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	verbose      bool
	printContext bool
)

var runCmd = &cobra.Command{
	Use:   "run <workflow.yaml>",
	Short: "Execute a workflow file",
	Example: `  autopilot run grading.yaml
  MOODLE_TOKEN=... autopilot run --url https://moodle.example.edu -v grading.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runWorkflow,
}

func init() {
	runCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log step outputs (requires --debug)")
	runCmd.Flags().BoolVar(&printContext, "print-context", false, "Print the final workflow context as JSON")
}

func runWorkflow(cmd *cobra.Command, args []string) error {
	spec, err := config.LoadWorkflowFile(args[0])
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if settings.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, settings.Timeout)
		defer cancel()
	}

	engine, err := autopilot.BuildFromConfig(spec,
		autopilot.WithBaseURL(settings.URL),
		autopilot.WithLogger(logger),
		autopilot.WithConnector(autopilot.MoodleConnector(moodle.WithLogger(logger), moodle.WithTimeout(settings.RequestTimeout))),
		autopilot.WithListener(logging.NewEventLogger(logger, verbose)),
	)
	if err != nil {
		return err
	}

	logger.Info("workflow loaded",
		zap.String("file", args[0]),
		zap.Int("steps", len(engine.Steps())),
		zap.String("run_id", engine.RunID()))

	if err := engine.Execute(ctx, settings.Token); err != nil {
		return err
	}

	if printContext {
		b, err := json.MarshalIndent(engine.Context().Snapshot(), "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode context: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(b))
	}
	return nil
}
