package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/stagehand/pkg/cloud"
	"github.com/cuemby/stagehand/pkg/config"
	"github.com/cuemby/stagehand/pkg/preflight"
)

var preflightCmd = &cobra.Command{
	Use:   "preflight",
	Short: "Check that looked-up AWS resources exist",
	Long: `Look up every secret, hosted zone, certificate and image repository the
environment file references by name. Synthesis succeeds without them, but
the deployment would fail.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		profile, _ := cmd.Flags().GetString("profile")
		endpoint, _ := cmd.Flags().GetString("endpoint")

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		awsCfg, err := cloud.LoadConfig(cmd.Context(), cloud.Options{
			Region:   cfg.Common.Get(config.KeyAWSRegion),
			Profile:  profile,
			Endpoint: endpoint,
		})
		if err != nil {
			return err
		}

		report := preflight.NewChecker(preflight.NewClients(awsCfg)).Run(cmd.Context(), cfg)
		for _, c := range report.Checks {
			mark := "✓"
			if !c.OK {
				mark = "✗"
			}
			fmt.Printf("%s %-18s %s\n", mark, c.Name, c.Target)
			if c.Detail != "" {
				fmt.Printf("    %s\n", c.Detail)
			}
		}

		failed := len(report.Failed())
		fmt.Println()
		fmt.Printf("%d checks, %d failed\n", len(report.Checks), failed)
		return report.Err()
	},
}

func init() {
	addAWSFlags(preflightCmd)
}

func addAWSFlags(cmd *cobra.Command) {
	cmd.Flags().String("profile", "", "Shared AWS config profile")
	cmd.Flags().String("endpoint", "", "Override the AWS endpoint (e.g. LocalStack)")
}
