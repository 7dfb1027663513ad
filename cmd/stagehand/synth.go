package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/stagehand/pkg/config"
	"github.com/cuemby/stagehand/pkg/provider"
	"github.com/cuemby/stagehand/pkg/provider/cdk"
	"github.com/cuemby/stagehand/pkg/topology"
)

var synthCmd = &cobra.Command{
	Use:   "synth",
	Short: "Synthesize the topology into a CDK cloud assembly",
	Long: `Declare the topology as AWS CDK constructs and write the CloudFormation
templates for both stacks.

Examples:
  stagehand synth --out cdk.out
  cdk deploy --app cdk.out --all`,
	RunE: func(cmd *cobra.Command, args []string) error {
		outDir, _ := cmd.Flags().GetString("out")

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		var app *cdk.Provider
		driver, err := newDriver(cmd, cfg, nil, func(s topology.Stacks) (provider.Provider, error) {
			p, err := cdk.New(cdk.Options{
				OutDir:     outDir,
				AppStack:   s.App,
				InfraStack: s.Infra,
				Account:    cfg.Common.Get(config.KeyAWSAccount),
				Region:     cfg.Common.Get(config.KeyAWSRegion),
			})
			if err != nil {
				return nil, err
			}
			app = p
			return p, nil
		})
		if err != nil {
			return err
		}

		topo, err := driver.Build(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		dir, err := app.Synth()
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "✓ Synthesized %d stages into %s\n", len(topo.Stages), dir)
		for _, stack := range topo.Stacks {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s.template.json\n", stack)
		}
		return nil
	},
}

func init() {
	synthCmd.Flags().String("out", "cdk.out", "Cloud assembly output directory")
	addBuildSpecFlags(synthCmd)
}
