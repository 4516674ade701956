package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"asset-service/internal/redisclient"
	"asset-service/internal/service"
	"asset-service/internal/store"

	"github.com/spf13/cobra"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Check invoices against the movement ledger once",
	Long: `Runs one reconcile sweep over invoices whose stock effects are pending or
whose ledger entries do not match their line items. Exits non-zero when
any inconsistency is found.`,
	RunE: runReconcile,
}

func runReconcile(cmd *cobra.Command, _ []string) error {
	cfg := bootstrap()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	defer redisClient.Close()

	reconciler := service.NewReconciler(db, redisClient, cfg.Reconcile.LockTTL)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Reconcile.LockTTL)
	defer cancel()

	findings, ran, err := reconciler.SweepExclusive(ctx)
	if err != nil {
		return err
	}
	if !ran {
		return fmt.Errorf("another reconcile sweep is running")
	}

	out := cmd.OutOrStdout()
	if len(findings) == 0 {
		fmt.Fprintln(out, "ledger consistent")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "INVOICE\tPROBLEM\tDETAIL")
	for _, f := range findings {
		fmt.Fprintf(w, "%s\t%s\t%s\n", f.InvoiceNumber, f.Problem, f.Detail)
	}
	w.Flush()

	return fmt.Errorf("%d inconsistent invoices", len(findings))
}
