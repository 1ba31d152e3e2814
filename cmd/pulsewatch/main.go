package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "pulsewatch",
	Short: "Pulsewatch is a cron job and heartbeat monitor",
	Long: `Pulsewatch monitors scheduled tasks through the pings they send.
A check that misses its deadline goes down and its channels are alerted.`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func main() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sendAlertsCmd)
	rootCmd.AddCommand(sendReportsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
