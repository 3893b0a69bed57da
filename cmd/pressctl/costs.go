package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func init() {
	costsCmd.AddCommand(costsSummaryCmd)
	costsCmd.AddCommand(costsProjectsCmd)
	rootCmd.AddCommand(costsCmd)
}

var costsCmd = &cobra.Command{
	Use:   "costs",
	Short: "Inspect the cost ledger",
}

var costsSummaryCmd = &cobra.Command{
	Use:   "summary <project-id>",
	Short: "Show a project's cost summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, ledger, cleanup, err := openBackend()
		if err != nil {
			return err
		}
		defer cleanup()

		s, err := ledger.Summary(context.Background(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Total cost:    $%.4f\n", s.TotalCost)
		fmt.Printf("Total calls:   %d\n", s.TotalCalls)
		fmt.Printf("Input tokens:  %d\n", s.TotalInputTokens)
		fmt.Printf("Output tokens: %d\n", s.TotalOutputTokens)

		if len(s.CostByAgent) > 0 {
			fmt.Println("\nBy agent:")
			printBreakdown(s.CostByAgent)
		}
		if len(s.CostByModel) > 0 {
			fmt.Println("\nBy model:")
			printBreakdown(s.CostByModel)
		}
		return nil
	},
}

var costsProjectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List project IDs present in the ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, ledger, cleanup, err := openBackend()
		if err != nil {
			return err
		}
		defer cleanup()

		ids, err := ledger.ProjectIDs(context.Background())
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		return nil
	},
}

func printBreakdown(m map[string]float64) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %-30s $%.4f\n", k, m[k])
	}
}
