package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check an environment file without planning",
	Long: `Parse and validate the environment file. Every problem is reported,
not just the first one.

Examples:
  stagehand validate
  stagehand validate -c configs/prod.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "✓ %s is valid\n", cfg.Path)
		fmt.Fprintf(out, "  Common keys: %d\n", cfg.Common.Len())
		for _, s := range cfg.Stages {
			approval := ""
			if s.RequiresApproval() {
				approval = " (approval required)"
			}
			fmt.Fprintf(out, "  Stage %s: %s%s\n", s.Name, s.Host(), approval)
		}
		return nil
	},
}
