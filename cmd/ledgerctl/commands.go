package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"ai-interview-be/internal/entity"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// operatorLedger is the part of the ledger the operator commands drive.
type operatorLedger interface {
	ListStalePending(ctx context.Context, olderThan time.Duration) ([]*entity.ConsumptionRecord, error)
	ForceAbort(ctx context.Context, recordID uuid.UUID, reason string) error
	Balance(ctx context.Context, userID uuid.UUID) (*entity.CreditBalance, error)
}

func newRootCmd(l operatorLedger) *cobra.Command {
	root := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Inspect and reconcile the consumption ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newPendingCmd(l), newAbortCmd(l), newBalanceCmd(l))
	return root
}

func newPendingCmd(l operatorLedger) *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List pending consumption records older than a threshold",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan < 0 {
				return fmt.Errorf("--older-than must not be negative")
			}
			records, err := l.ListStalePending(cmd.Context(), olderThan)
			if err != nil {
				return fmt.Errorf("list pending: %w", err)
			}
			printPending(cmd.OutOrStdout(), records, time.Now())
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 30*time.Minute, "minimum age of a pending record")
	return cmd
}

func newAbortCmd(l operatorLedger) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "abort <recordId>",
		Short: "Refund a stuck pending record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recordID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid record id %q", args[0])
			}
			if err := l.ForceAbort(cmd.Context(), recordID, reason); err != nil {
				return fmt.Errorf("abort %s: %w", recordID, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("✓ record %s refunded", recordID))
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "operator reconciliation", "reason stored on the refunded record")
	return cmd
}

func newBalanceCmd(l operatorLedger) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <userId>",
		Short: "Print a user's credit buckets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid user id %q", args[0])
			}
			balance, err := l.Balance(cmd.Context(), userID)
			if err != nil {
				return fmt.Errorf("balance: %w", err)
			}
			out := cmd.OutOrStdout()
			bold := color.New(color.Bold)
			bold.Fprintf(out, "User %s\n", userID)
			fmt.Fprintf(out, "  free:      %d\n", balance.FreeBalance)
			fmt.Fprintf(out, "  purchased: %d\n", balance.PurchasedBalance)
			fmt.Fprintf(out, "  total:     %d\n", balance.Total())
			return nil
		},
	}
}

func printPending(out io.Writer, records []*entity.ConsumptionRecord, now time.Time) {
	if len(records) == 0 {
		fmt.Fprintln(out, color.GreenString("No stale pending records"))
		return
	}

	header := color.New(color.FgCyan, color.Bold)
	header.Fprintf(out, "%-36s  %-36s  %-10s  %-9s  %s\n", "RECORD", "USER", "WORK", "BUCKET", "AGE")
	for _, r := range records {
		age := now.Sub(r.StartedAt).Truncate(time.Second)
		fmt.Fprintf(out, "%-36s  %-36s  %-10s  %-9s  %s\n", r.Id, r.UserId, r.WorkType, r.ChargedBucket, color.YellowString(age.String()))
	}
	fmt.Fprintf(out, "\n%d record(s) pending\n", len(records))
}
