package main

import (
	"context"
	"fmt"
	"time"

	"simunet-portal/config"

	"github.com/spf13/cobra"
)

var stuckCmd = &cobra.Command{
	Use:   "stuck",
	Short: "List jobs idle past the stuck threshold",
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
		jobs, err := engine.ListStuckJobs(context.Background())
		if err != nil {
			return err
		}
		if len(jobs) == 0 {
			fmt.Println("No stuck jobs.")
			return nil
		}
		now := time.Now().UTC()
		for _, job := range jobs {
			fmt.Printf("%s  %-18s  %-24s  idle %s\n",
				job.ID, job.Status, job.SiteName, now.Sub(job.LastStateChangeAt).Round(time.Minute))
		}
		return nil
	},
}

func init() { rootCmd.AddCommand(stuckCmd) }
