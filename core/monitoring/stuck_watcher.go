// Package monitoring watches the job pipeline for operator attention.
package monitoring

import (
	"context"
	"log"
	"time"

	"simunet-portal/core/workflow"
)

// StuckWatcher periodically surfaces jobs idle past the stuck threshold.
// It only observes and logs; it never mutates state or blocks operations.
type StuckWatcher struct {
	engine   *workflow.Engine
	interval time.Duration
}

// NewStuckWatcher creates a watcher polling at the given interval.
func NewStuckWatcher(engine *workflow.Engine, interval time.Duration) *StuckWatcher {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &StuckWatcher{engine: engine, interval: interval}
}

// Start runs the watch loop until ctx is cancelled.
func (w *StuckWatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.check(ctx)
		}
	}
}

func (w *StuckWatcher) check(ctx context.Context) {
	stuck, err := w.engine.ListStuckJobs(ctx)
	if err != nil {
		log.Printf("Failed to scan for stuck jobs: %v", err)
		return
	}
	for _, job := range stuck {
		idle := time.Since(job.LastStateChangeAt).Round(time.Minute)
		log.Printf("Job %s stuck in %s for %s (site %s)", job.ID, job.Status, idle, job.SiteName)
	}
}
