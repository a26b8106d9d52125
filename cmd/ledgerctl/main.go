// Command ledgerctl holds operator tasks: schema migrations and the ledger audit.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sheikh-saqib/payments-ledger/internal/config"
	"github.com/sheikh-saqib/payments-ledger/internal/ledger"
	"github.com/sheikh-saqib/payments-ledger/internal/logger"
	"github.com/sheikh-saqib/payments-ledger/internal/models"
	"github.com/sheikh-saqib/payments-ledger/internal/storage"
	"github.com/sheikh-saqib/payments-ledger/internal/storage/postgres"
)

var errViolations = errors.New("ledger audit found violations")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:          "ledgerctl",
		Short:        "Operate the payments ledger",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading LEDGER_* variables")

	root.AddCommand(newMigrateCmd(&envFile), newVerifyCmd(&envFile))
	return root
}

func setup(envFile string) (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return config.Config{}, nil, err
	}
	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Format: "console", File: cfg.LogFile})
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, log, nil
}

func newMigrateCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup(*envFile)
			if err != nil {
				return err
			}
			defer log.Sync()

			db, err := storage.Connect(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer db.Close()

			return postgres.Migrate(db.DB, log)
		},
	}
}

func newVerifyCmd(envFile *string) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check that every transaction balances and every stored balance matches its entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup(*envFile)
			if err != nil {
				return err
			}
			defer log.Sync()

			// verify never changes the schema
			cfg.MigrateOnStart = false
			store, closeStore, err := storage.Open(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer closeStore()

			report, err := ledger.NewLedger(store, ledger.WithLogger(log)).Audit(cmd.Context())
			if err != nil {
				return err
			}
			return printReport(cmd.OutOrStdout(), report, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

func printReport(out io.Writer, report models.AuditReport, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(out, "transactions checked: %d\n", report.Transactions)
		fmt.Fprintf(out, "accounts checked:     %d\n", report.Accounts)
		for _, u := range report.UnbalancedTransactions {
			fmt.Fprintf(out, "UNBALANCED txn=%s sum_cents=%d entries=%d\n", u.TxnID, u.SumCents, u.EntryCount)
		}
		for _, d := range report.BalanceDrifts {
			fmt.Fprintf(out, "DRIFT account=%s balance_cents=%d entries_cents=%d\n", d.AccountID, d.BalanceCents, d.EntriesCents)
		}
		if report.OK() {
			fmt.Fprintln(out, "ok")
		}
	}
	if !report.OK() {
		return errViolations
	}
	return nil
}
