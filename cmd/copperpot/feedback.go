package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/copperpot/copperpot/internal/cli"
	"github.com/copperpot/copperpot/internal/feedback"
)

func feedbackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Record and inspect categorization feedback",
		Long: `Record whether a suggested category was right, and inspect the feedback
log the heuristic tier learns from.`,
	}

	cmd.AddCommand(feedbackRecordCmd())
	cmd.AddCommand(feedbackHighValueCmd())

	return cmd
}

func feedbackRecordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record <transaction-id> <category>",
		Short: "Record the transaction's actual category",
		Long: `Record the actual category for a transaction. The kind is derived from
the transaction's stored suggestion: matching categories confirm it, a
different category corrects it, and a missing suggestion is a rejection.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			transactionID, actual := args[0], args[1]

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			txn, err := store.GetTransaction(ctx, transactionID)
			if err != nil {
				return err
			}

			recorder := feedback.NewRecorder(store)
			record, err := recorder.Record(ctx, currentUserID(), transactionID,
				txn.SuggestedCategory, actual, txn.ConfidenceScore)
			if err != nil {
				return fmt.Errorf("failed to record feedback: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Recorded %s feedback for %s (weight %.2f)",
				record.Kind, transactionID, record.TrainingWeight())))
			return nil
		},
	}

	return cmd
}

func feedbackHighValueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "high-value",
		Short: "List high-value feedback records",
		Long: `List recent feedback worth retraining on: confident mistakes and
uncertain successes.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			limit, _ := cmd.Flags().GetInt("limit")

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			records, err := store.GetRecentFeedback(ctx, currentUserID(), limit)
			if err != nil {
				return fmt.Errorf("failed to get feedback: %w", err)
			}

			highValue := feedback.HighValue(records)
			if len(highValue) == 0 {
				fmt.Println(cli.FormatInfo("no high-value feedback in the recent window"))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "TRANSACTION\tKIND\tSUGGESTED\tACTUAL\tCONFIDENCE\tWEIGHT")
			_, _ = fmt.Fprintln(w, "───────────\t────\t─────────\t──────\t──────────\t──────")

			for i := range highValue {
				record := &highValue[i]
				suggested := "-"
				if record.SuggestedCategory != nil {
					suggested = *record.SuggestedCategory
				}
				confidence := "-"
				if record.Confidence != nil {
					confidence = fmt.Sprintf("%.0f%%", *record.Confidence*100)
				}
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%.2f\n",
					record.TransactionID,
					record.Kind,
					suggested,
					record.ActualCategory,
					confidence,
					record.TrainingWeight())
			}

			return w.Flush()
		},
	}

	cmd.Flags().IntP("limit", "n", 100, "how many recent records to scan")

	return cmd
}
