package main

import (
	"fmt"
	"time"

	"github.com/simon020286/go-autopilot/config"
	"github.com/simon020286/go-autopilot/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile  string
	v        *viper.Viper
	settings *config.Settings
	logger   = zap.NewNop()
)

// rootCmd represents the base CLI command
var rootCmd = &cobra.Command{
	Use:   config.AppName,
	Short: "Run automation workflows against a Moodle site",
	Long: `autopilot executes YAML workflows of steps (course lookup, submission
retrieval, scripted assessment, feedback upload, ...) against the web
service API of a Moodle site.

The site token is read from --token, AUTOPILOT_TOKEN or MOODLE_TOKEN.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := config.LoadSettings(v, cfgFile)
		if err != nil {
			return err
		}
		l, err := logging.New(logging.Config{Debug: s.Debug, Format: s.LogFormat, File: s.LogFile})
		if err != nil {
			return fmt.Errorf("error initializing logger: %w", err)
		}
		settings, logger = s, l

		if used := config.ConfigFileUsed(v); used != "" {
			logger.Debug("config loaded", zap.String("config_file", used))
		}
		return nil
	},
}

func init() {
	v = config.NewViper()

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is autopilot.yaml in ., ~/.autopilot or /etc/autopilot)")
	flags.Bool("debug", false, "Enable debug logging")
	flags.String("log-format", "human", "Log format: json or human")
	flags.String("log-file", "", "Also write logs to this file")
	flags.String("url", "", "Moodle site url, overrides the workflow environment")
	flags.String("token", "", "Web service token")
	flags.Duration("timeout", 0, "Deadline of the whole run, 0 disables it")
	flags.Duration("request-timeout", 60*time.Second, "Timeout of each web service request")

	_ = v.BindPFlag("debug", flags.Lookup("debug"))
	_ = v.BindPFlag("log_format", flags.Lookup("log-format"))
	_ = v.BindPFlag("log_file", flags.Lookup("log-file"))
	_ = v.BindPFlag("url", flags.Lookup("url"))
	_ = v.BindPFlag("token", flags.Lookup("token"))
	_ = v.BindPFlag("timeout", flags.Lookup("timeout"))
	_ = v.BindPFlag("request_timeout", flags.Lookup("request-timeout"))

	rootCmd.AddCommand(runCmd, stepsCmd, catalogueCmd, versionCmd)
}
