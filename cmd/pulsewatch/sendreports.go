package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pulsewatch/pulsewatch/internal/config"
	"github.com/pulsewatch/pulsewatch/internal/database"
	"github.com/pulsewatch/pulsewatch/internal/reports"
)

var (
	reportLoop     bool
	reportInterval time.Duration
	reportTo       string
)

var sendReportsCmd = &cobra.Command{
	Use:   "sendreports",
	Short: "Send summary emails of check statuses",
	Run: func(cmd *cobra.Command, args []string) {
		runSendReports()
	},
}

func init() {
	sendReportsCmd.Flags().BoolVar(&reportLoop, "loop", false,
		"Keep running and send a report every interval")
	sendReportsCmd.Flags().DurationVar(&reportInterval, "interval", 24*time.Hour,
		"How often to send reports in loop mode")
	sendReportsCmd.Flags().StringVar(&reportTo, "to", "",
		"Report recipient (defaults to REPORT_TO)")
}

func runSendReports() {
	cfg := config.Load()

	to := reportTo
	if to == "" {
		to = cfg.SMTP.To
	}
	if to == "" {
		log.Fatal("No report recipient: pass --to or set REPORT_TO")
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

	sender := reports.New(db, cfg.SMTP, to)

	if !reportLoop {
		if err := sender.SendOnce(); err != nil {
			log.Fatalf("Failed to send report: %v", err)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sender.RunLoop(ctx, reportInterval); err != nil {
		log.Fatalf("Report loop failed: %v", err)
	}

	log.Println("Done.")
}
