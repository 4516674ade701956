package main

import (
	"fmt"
	"log"
	"os"

	"asset-service/config"
	"asset-service/internal/util"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "asset-service",
	Short: "Asset inventory and invoicing backend",
	Long: `asset-service tracks physical assets, keeps a movement ledger of every
stock change, and issues sale and purchase invoices that adjust stock
in one transaction.

Run without a subcommand to start the HTTP server.`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, reconcileCmd, hashPasswordCmd)
}

// bootstrap loads configuration and the global logger
func bootstrap() *config.Config {
	cfg := config.Load()
	if err := util.InitLogger(cfg.Server.Env, cfg.Server.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	return cfg
}

func main() {
	defer util.SyncLogger()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
