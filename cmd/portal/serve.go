package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"simunet-portal/api/rest/handlers"
	"simunet-portal/api/rest/routes"
	"simunet-portal/config"
	"simunet-portal/core/monitoring"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the portal HTTP server",
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

		log.Printf("Storage ready (driver=%s)", cfg.Storage.Driver)

		engine := buildEngine(cfg, store)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		watcher := monitoring.NewStuckWatcher(engine, time.Duration(cfg.MonitorMinutes)*time.Minute)
		go watcher.Start(ctx)

		actors := handlers.NewActorResolver(cfg.UserDirectory())

		r := mux.NewRouter()
		routes.SetupRoutes(r, engine, actors)

		// Health check endpoint
		r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		}).Methods("GET")

		server := &http.Server{
			Addr:    ":" + cfg.ServerPort,
			Handler: r,
		}

		// Graceful shutdown
		go func() {
			log.Printf("Starting server on port %s", cfg.ServerPort)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Server failed to start: %v", err)
			}
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		log.Println("Shutting down server...")
		if err := server.Shutdown(context.Background()); err != nil {
			return err
		}
		log.Println("Server exited")
		return nil
	},
}

func init() { rootCmd.AddCommand(serveCmd) }
