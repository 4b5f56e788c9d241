// Command agentpipe runs sequential agent pipelines and serves the title agent
// over HTTP.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hupe1980/agentpipe/config"
	"github.com/hupe1980/agentpipe/logging"
)

const (
	appName = "agentpipe"
	Version = "0.1.0"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
	logLevel   string
}

func rootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Sequential multi-agent pipelines",
		Long: `agentpipe runs agents one after another over a shared conversation.

Each participant sees the whole conversation so far and appends its answer.
The same binary also serves a single agent behind an HTTP task API.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		newRunCmd(opts),
		newServeCmd(opts),
		newSendCmd(opts),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, Version)
			},
		},
	)

	return cmd
}

// load reads the configuration and builds the logger. Logs go to the
// command's error stream so stdout stays clean for results.
func (o *rootOptions) load(cmd *cobra.Command) (*config.Config, *logging.StructuredLogger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}

	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:     logging.ParseLevel(cfg.Log.Level),
		Format:    strings.ToLower(cfg.Log.Format),
		Output:    cmd.ErrOrStderr(),
		Component: appName,
	})
	return cfg, logger, nil
}
