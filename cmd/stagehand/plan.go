package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cuemby/stagehand/pkg/config"
	"github.com/cuemby/stagehand/pkg/events"
	"github.com/cuemby/stagehand/pkg/provider"
	"github.com/cuemby/stagehand/pkg/storage"
	"github.com/cuemby/stagehand/pkg/topology"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Resolve the deployment topology without touching AWS",
	Long: `Plan every resource and pipeline stage the environment file describes
and print the result. Nothing is synthesized or deployed.

Examples:
  # Summary of stages and pipelines
  stagehand plan

  # Full declaration log as YAML, saved to plan history
  stagehand plan --format yaml --record`,
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringP("format", "o", "text", "Output format (text, yaml, json)")
	planCmd.Flags().Bool("record", false, "Save the plan to history")
	planCmd.Flags().Bool("events", false, "Print progress events to stderr")
	addBuildSpecFlags(planCmd)
}

func addBuildSpecFlags(cmd *cobra.Command) {
	cmd.Flags().String("app-buildspec", "configs/app-buildspec.yaml", "Buildspec inlined into the application build project")
	cmd.Flags().String("infra-buildspec", "", "Buildspec path inside the infrastructure repository")
}

// planOutput is what the structured formats print
type planOutput struct {
	Summary  topology.Summary  `json:"summary" yaml:"summary"`
	Document provider.Document `json:"document" yaml:"document"`
}

func runPlan(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	record, _ := cmd.Flags().GetBool("record")
	showEvents, _ := cmd.Flags().GetBool("events")

	switch format {
	case "text", "yaml", "json":
	default:
		return fmt.Errorf("unknown format %q", format)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	var broker *events.Broker
	if showEvents {
		broker = events.NewBroker()
		sub := broker.SubscribeSize(topology.MaxEvents(len(cfg.Stages)))
		done := make(chan struct{})
		go func() {
			defer close(done)
			for e := range sub {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s  %-24s %s\n", e.Timestamp.Format("15:04:05.000"), e.Type, e.Message)
			}
		}()
		broker.Start()
		defer func() {
			broker.Stop()
			broker.Unsubscribe(sub)
			<-done
		}()
	}

	var rec *provider.Recorder
	driver, err := newDriver(cmd, cfg, broker, func(s topology.Stacks) (provider.Provider, error) {
		rec = provider.NewRecorder(s.App, s.Infra)
		return rec, nil
	})
	if err != nil {
		return err
	}

	topo, err := driver.Build(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	out := planOutput{Summary: topology.Summarize(topo), Document: *rec.Document()}

	if record {
		doc, err := json.Marshal(out.Document)
		if err != nil {
			return fmt.Errorf("failed to encode plan: %w", err)
		}
		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.SavePlan(topology.Record(topo, doc, len(out.Document.Resources))); err != nil {
			return fmt.Errorf("failed to record plan: %w", err)
		}
	}

	return render(cmd.OutOrStdout(), format, out)
}

func newDriver(cmd *cobra.Command, cfg *config.Configuration, broker *events.Broker, factory topology.ProviderFactory) (*topology.Driver, error) {
	appSpecPath, _ := cmd.Flags().GetString("app-buildspec")
	infraSpec, _ := cmd.Flags().GetString("infra-buildspec")

	appSpec, err := config.LoadBuildSpec(appSpecPath)
	if err != nil {
		return nil, err
	}

	return topology.NewDriver(factory, topology.Options{
		Planner:            plannerOptions(cmd),
		AppBuildSpec:       appSpec,
		InfraBuildSpecFile: infraSpec,
		Broker:             broker,
	}), nil
}

func openStore(cmd *cobra.Command) (*storage.BoltStore, error) {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	return storage.NewBoltStore(dataDir)
}

func render(w io.Writer, format string, out planOutput) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(out)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	s := out.Summary
	fmt.Fprintf(w, "Plan %s\n", s.ID)
	fmt.Fprintf(w, "  Stacks: %s\n", strings.Join(s.Stacks, ", "))
	fmt.Fprintf(w, "  Resources: %d\n\n", len(out.Document.Resources))

	fmt.Fprintln(w, "Stages:")
	if len(s.Stages) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, st := range s.Stages {
		fmt.Fprintf(w, "  %-10s %s\n", st.Name, st.FQDN)
		fmt.Fprintf(w, "             secrets: %s\n", strings.Join(st.Secrets, ", "))
		if st.Approval {
			fmt.Fprintf(w, "             approval: %s\n", strings.Join(st.Notify, ", "))
		}
	}

	printPipeline(w, "Application pipeline", s.AppPipeline)
	printPipeline(w, "Infrastructure pipeline", s.InfraPipeline)
	return nil
}

func printPipeline(w io.Writer, title string, stages []topology.StageLine) {
	fmt.Fprintf(w, "\n%s:\n", title)
	for i, st := range stages {
		fmt.Fprintf(w, "  %d. %s\n", i+1, st.Name)
		for j, a := range st.Actions {
			fmt.Fprintf(w, "       [%d] %s\n", j+1, a)
		}
	}
}
