package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect recorded plans",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded plans, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		plans, err := store.ListPlans()
		if err != nil {
			return err
		}
		if len(plans) == 0 {
			fmt.Println("No recorded plans")
			return nil
		}

		fmt.Printf("%-36s  %-20s  %-9s  %s\n", "ID", "CREATED", "RESOURCES", "STAGES")
		for _, p := range plans {
			fmt.Printf("%-36s  %-20s  %-9d  %s\n",
				p.ID, p.CreatedAt.Local().Format(time.DateTime), p.ResourceCount, strings.Join(p.Stages, ","))
		}
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show a recorded plan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		withDoc, _ := cmd.Flags().GetBool("document")

		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		p, err := store.GetPlan(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Plan %s\n", p.ID)
		fmt.Printf("  Created: %s\n", p.CreatedAt.Local().Format(time.RFC3339))
		fmt.Printf("  Config: %s\n", p.ConfigPath)
		fmt.Printf("  Resources: %d\n", p.ResourceCount)
		fmt.Printf("  Stages: %s\n", strings.Join(p.Stages, ", "))
		fmt.Printf("  Pipeline: %s\n", strings.Join(p.PipelineOrder, " -> "))
		if withDoc {
			fmt.Println()
			fmt.Println(string(p.Document))
		}
		return nil
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a recorded plan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.DeletePlan(args[0]); err != nil {
			return err
		}
		fmt.Printf("✓ Plan %s deleted\n", args[0])
		return nil
	},
}

func init() {
	historyShowCmd.Flags().Bool("document", false, "Print the full declaration document")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyDeleteCmd)
}
