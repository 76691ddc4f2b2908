package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/copperpot/copperpot/internal/cli"
	"github.com/copperpot/copperpot/internal/reconcile"
)

func reconcileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Match bank transactions against invoices",
		Long: `Confirm, auto-confirm, and remove invoice–transaction matches. Confirming
a match marks the invoice paid and the transaction matched; removing one
reverts both.`,
	}

	cmd.AddCommand(reconcileMatchCmd())
	cmd.AddCommand(reconcileAutoCmd())
	cmd.AddCommand(reconcileUnmatchCmd())
	cmd.AddCommand(reconcileUnmatchAllCmd())
	cmd.AddCommand(reconcileBatchCmd())

	return cmd
}

func newEngine(cmd *cobra.Command) (*reconcile.Engine, func(), error) {
	ctx := cmd.Context()

	store, err := initStorage(ctx)
	if err != nil {
		return nil, nil, err
	}

	publisher, err := initBus()
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}

	cleanup := func() {
		_ = publisher.Close()
		_ = store.Close()
	}

	return reconcile.NewEngine(store, store, store, publisher), cleanup, nil
}

func reconcileMatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "match <invoice-id> <transaction-id>",
		Short: "Confirm a manual match",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			notes, _ := cmd.Flags().GetString("notes")

			engine, cleanup, err := newEngine(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			var notesPtr *string
			if notes != "" {
				notesPtr = &notes
			}
			userID := currentUserID()

			match, err := engine.ConfirmManualMatch(cmd.Context(), args[0], args[1], notesPtr, &userID)
			if err != nil {
				return err
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Matched invoice %s to transaction %s (match %s)",
				args[0], args[1], match.ID)))
			return nil
		},
	}

	cmd.Flags().StringP("notes", "n", "", "free-form notes for the match")

	return cmd
}

func reconcileAutoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "auto <invoice-id> <transaction-id> <score>",
		Short: "Confirm a system match with a score",
		Long: `Confirm a system-proposed match. Scores below the auto-match threshold
are rejected before anything is looked up or written.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			score, err := strconv.ParseFloat(args[2], 64)
			if err != nil {
				return fmt.Errorf("invalid match score: %s", args[2])
			}

			engine, cleanup, err := newEngine(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			match, err := engine.ConfirmAutoMatch(cmd.Context(), args[0], args[1], score)
			if err != nil {
				return err
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Auto-matched invoice %s to transaction %s (%.1f, %s)",
				args[0], args[1], match.MatchScore, match.MatchConfidence)))
			return nil
		},
	}
}

func reconcileUnmatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unmatch <invoice-id> <transaction-id>",
		Short: "Remove a match and revert both sides",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, cleanup, err := newEngine(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := engine.Unmatch(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Unmatched invoice %s from transaction %s", args[0], args[1])))
			return nil
		},
	}
}

func reconcileUnmatchAllCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unmatch-all",
		Short: "Remove every match for an invoice or transaction",
		Long: `Remove all matches linked to the given invoice or transaction. Failures
on individual pairs are reported but do not stop the rest.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			invoiceID, _ := cmd.Flags().GetString("invoice")
			transactionID, _ := cmd.Flags().GetString("transaction")

			if (invoiceID == "") == (transactionID == "") {
				return fmt.Errorf("provide exactly one of --invoice or --transaction")
			}

			engine, cleanup, err := newEngine(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			var result reconcile.BatchResult
			if invoiceID != "" {
				result, err = engine.UnmatchAllForInvoice(cmd.Context(), invoiceID)
			} else {
				result, err = engine.UnmatchAllForTransaction(cmd.Context(), transactionID)
			}
			if err != nil {
				return err
			}

			printBatchResult(result)
			return nil
		},
	}

	cmd.Flags().String("invoice", "", "remove all matches for this invoice")
	cmd.Flags().String("transaction", "", "remove all matches for this transaction")

	return cmd
}

func reconcileBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch <file>",
		Short: "Auto-confirm matches from a CSV file",
		Long: `Auto-confirm a batch of system-proposed matches from a CSV file with
invoice_id,transaction_id,score rows. Each pair is confirmed
independently; failures are tallied, not fatal.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			requests, err := readBatchFile(args[0])
			if err != nil {
				return err
			}
			if len(requests) == 0 {
				return fmt.Errorf("no match requests in %s", args[0])
			}

			engine, cleanup, err := newEngine(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			bar := progressbar.Default(int64(len(requests)), "matching")
			var result reconcile.BatchResult
			for _, request := range requests {
				partial := engine.ConfirmAutoMatchBatch(cmd.Context(), []reconcile.AutoMatchRequest{request})
				result.Succeeded += partial.Succeeded
				result.Failed += partial.Failed
				result.Errors = append(result.Errors, partial.Errors...)
				_ = bar.Add(1)
			}

			printBatchResult(result)
			return nil
		},
	}

	return cmd
}

func readBatchFile(path string) ([]reconcile.AutoMatchRequest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open batch file: %w", err)
	}
	defer func() { _ = f.Close() }()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = 3

	var requests []reconcile.AutoMatchRequest
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read batch file: %w", err)
		}

		score, err := strconv.ParseFloat(row[2], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid score %q for pair %s/%s", row[2], row[0], row[1])
		}

		requests = append(requests, reconcile.AutoMatchRequest{
			InvoiceID:     row[0],
			TransactionID: row[1],
			MatchScore:    score,
		})
	}

	return requests, nil
}

func printBatchResult(result reconcile.BatchResult) {
	fmt.Println(cli.FormatSuccess(fmt.Sprintf("%d succeeded", result.Succeeded)))
	if result.Failed > 0 {
		fmt.Println(cli.FormatWarning(fmt.Sprintf("%d failed", result.Failed)))
		for _, batchErr := range result.Errors {
			fmt.Println(cli.StyleError(fmt.Sprintf("  %s / %s: %v",
				batchErr.InvoiceID, batchErr.TransactionID, batchErr.Err)))
		}
	}
}
