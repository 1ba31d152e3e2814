package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pulsewatch/pulsewatch/internal/alerting"
	"github.com/pulsewatch/pulsewatch/internal/config"
	"github.com/pulsewatch/pulsewatch/internal/database"
	"github.com/pulsewatch/pulsewatch/internal/dispatch"
	"github.com/pulsewatch/pulsewatch/internal/objects"
	"github.com/pulsewatch/pulsewatch/internal/transport"
)

var (
	alertNumWorkers int
	alertUsePool    bool
)

var sendAlertsCmd = &cobra.Command{
	Use:   "sendalerts",
	Short: "Run the alerting loop: detect transitions and deliver alerts",
	Run: func(cmd *cobra.Command, args []string) {
		runSendAlerts()
	},
}

func init() {
	sendAlertsCmd.Flags().IntVar(&alertNumWorkers, "num-workers", 0,
		"Size of the notification fan-out pool (defaults to NUM_WORKERS)")
	sendAlertsCmd.Flags().BoolVar(&alertUsePool, "pool", false,
		"Use a DB connection pool sized for the fan-out")
}

func runSendAlerts() {
	cfg := config.Load()
	transport.SiteRoot = cfg.SiteRoot

	// Email alerts quote offloaded ping bodies when a bucket is configured
	objectStore, err := objects.NewStore(cfg.S3)
	if err != nil {
		log.Fatalf("Failed to connect to object storage: %v", err)
	}
	transport.Objects = objectStore

	if alertNumWorkers > 0 {
		cfg.NumWorkers = alertNumWorkers
	}
	if alertUsePool {
		// Every fan-out worker may hold a connection while recording
		// outcomes, plus a few for the scan queries.
		if cfg.Database.MaxOpenConns < cfg.NumWorkers+5 {
			cfg.Database.MaxOpenConns = cfg.NumWorkers + 5
		}
	} else {
		cfg.Database.MaxOpenConns = 5
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get database connection: %v", err)
	}
	defer sqlDB.Close()

	dispatcher := dispatch.New(db, cfg.NumWorkers)
	loop := alerting.New(db, dispatcher)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := loop.Run(ctx); err != nil {
		log.Fatalf("Alerting loop failed: %v", err)
	}

	log.Println("Done.")
}
