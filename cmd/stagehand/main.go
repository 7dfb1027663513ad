package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/jsii-runtime-go"
	"github.com/spf13/cobra"

	"github.com/cuemby/stagehand/pkg/config"
	"github.com/cuemby/stagehand/pkg/log"
	"github.com/cuemby/stagehand/pkg/metrics"
	"github.com/cuemby/stagehand/pkg/planner"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx)
	stop()
	jsii.Close()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "stagehand",
	Short: "Stagehand - stage-driven deployment topology for AWS",
	Long: `Stagehand turns one environment file into a complete deployment
topology: a shared network, cluster and image repository, a database and
load-balanced service per stage, and the pipelines that build, approve and
roll out every stage in order.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		levelFlag, _ := cmd.Flags().GetString("log-level")
		jsonOutput, _ := cmd.Flags().GetBool("log-json")

		level, err := log.ParseLevel(levelFlag)
		if err != nil {
			return err
		}
		log.Init(log.Config{Level: level, JSONOutput: jsonOutput})
		return nil
	},
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Stagehand version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "configs/env.yaml", "Environment configuration file")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.Bool("log-json", false, "Write logs as JSON")
	flags.String("data-dir", "./stagehand-data", "Directory for plan history")
	flags.String("metrics-file", "", "Write Prometheus metrics to this file on exit")
	flags.Bool("db-password-include-space", false, "Allow spaces in generated database passwords")

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(synthCmd)
	rootCmd.AddCommand(preflightCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(bucketCmd)
}

// run executes the CLI and writes --metrics-file whether or not the
// command succeeded
func run(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)

	path, _ := rootCmd.PersistentFlags().GetString("metrics-file")
	if path == "" {
		return err
	}
	if werr := metrics.WriteTextfile(path); werr != nil {
		return errors.Join(err, fmt.Errorf("failed to write metrics: %w", werr))
	}
	return err
}

func loadConfig(cmd *cobra.Command) (*config.Configuration, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}

func plannerOptions(cmd *cobra.Command) planner.Options {
	opts := planner.DefaultOptions()
	opts.Password.IncludeSpace, _ = cmd.Flags().GetBool("db-password-include-space")
	return opts
}
