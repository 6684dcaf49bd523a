package main

import (
	"fmt"
	"os"
	"time"

	"simunet-portal/config"
	"simunet-portal/core/audit"
	"simunet-portal/core/docstore"
	"simunet-portal/core/repository"
	"simunet-portal/core/workflow"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "portal",
	Short: "Field service job tracking portal for telecom site works.",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "Path to YAML config file")
}

func openStore(cfg *config.Config) (repository.Store, error) {
	switch cfg.Storage.Driver {
	case "memory":
		return repository.NewMemoryStore(), nil
	case "sqlite":
		return repository.NewSQLiteStore(cfg.Storage.SQLitePath)
	case "postgres":
		return repository.NewPostgresStore(cfg.Storage.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func buildEngine(cfg *config.Config, store repository.Store) *workflow.Engine {
	docs := docstore.NewStore(store)
	auditLog := audit.NewLog(store)
	stuckAfter := time.Duration(cfg.StuckAfterMinutes) * time.Minute
	return workflow.NewEngine(store, docs, auditLog, stuckAfter)
}
