package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/p-blackswan/pressroom/internal/export"
)

var exportFormat string

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "export format (json|markdown|zip)")
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export <project-id>",
	Short: "Export a project bundle to the current directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := export.ParseFormat(exportFormat)
		if err != nil {
			return err
		}

		ps, ledger, cleanup, err := openBackend()
		if err != nil {
			return err
		}
		defer cleanup()

		exporter := export.NewExporter(ps, ledger, zerolog.Nop())
		result, err := exporter.Export(context.Background(), args[0], format)
		if err != nil {
			return err
		}

		if err := os.WriteFile(result.Filename, result.Data, 0o644); err != nil {
			return err
		}
		fmt.Printf("wrote %s (%d bytes)\n", result.Filename, len(result.Data))
		return nil
	},
}
