package main

import (
	"fmt"

	"asset-service/internal/store"
	"asset-service/internal/util"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down]",
	Short:     "Apply or revert the database schema",
	Example:   "  asset-service migrate up\n  asset-service migrate down",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"up", "down"},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := bootstrap()
		up := args[0] == "up"

		if err := store.Migrate(cfg.Database.URL, up); err != nil {
			return err
		}
		util.GetLogger().Info("Migration finished", zap.String("direction", args[0]))
		fmt.Fprintf(cmd.OutOrStdout(), "migrate %s: ok\n", args[0])
		return nil
	},
}
