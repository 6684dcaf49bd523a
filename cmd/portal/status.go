package main

import (
	"context"
	"fmt"

	"simunet-portal/config"
	"simunet-portal/core/statemachine"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print counts of jobs by pipeline stage",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		engine := buildEngine(cfg, store)
		counts, err := engine.PipelineCounts(context.Background())
		if err != nil {
			return err
		}
		for _, status := range statemachine.Statuses() {
			fmt.Printf("%-20s %d\n", status, counts[status])
		}
		return nil
	},
}

func init() { rootCmd.AddCommand(statusCmd) }
