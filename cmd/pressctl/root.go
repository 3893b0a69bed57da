package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/p-blackswan/pressroom/internal/config"
	"github.com/p-blackswan/pressroom/internal/costs"
	"github.com/p-blackswan/pressroom/internal/project"
	"github.com/p-blackswan/pressroom/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "pressctl",
	Short: "Admin tool for the pressroom workflow store",
	Long: `pressctl manages pressroom projects directly against the configured
storage backend: list, create, archive, and delete projects, inspect
cost summaries, and export project bundles. It reads the same
PRESSROOM_* environment as the service.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openBackend builds the store and ledger for the configured backend.
// The returned cleanup closes everything.
func openBackend() (project.Store, costs.Ledger, func(), error) {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}

	// The CLI is quiet unless asked; diagnostics go to stderr.
	logger := zerolog.New(os.Stderr).Level(zerolog.WarnLevel)

	if cfg.UsesSQLite() {
		db, err := store.New(cfg.SQLitePath, logger)
		if err != nil {
			return nil, nil, nil, err
		}
		ps := project.NewSQLStore(db, logger)
		ledger := costs.NewSQLLedger(db, logger)
		return ps, ledger, func() { db.Close() }, nil
	}

	ps, err := project.NewFileStore(cfg.DataDir, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	ledger, err := costs.NewFileLedger(filepath.Join(filepath.Dir(cfg.DataDir), "costs"), logger)
	if err != nil {
		return nil, nil, nil, err
	}
	return ps, ledger, func() {
		ps.Close()
		ledger.Close()
	}, nil
}

func main() {
	Execute()
}
