package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/copperpot/copperpot/internal/bus"
	"github.com/copperpot/copperpot/internal/categorize"
	"github.com/copperpot/copperpot/internal/cli"
	"github.com/copperpot/copperpot/internal/model"
	"github.com/copperpot/copperpot/internal/service"
)

func suggestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "suggest [transaction-id...]",
		Short: "Suggest categories for transactions",
		Long: `Run transactions through the categorization engine: pattern rules first,
then the feedback-based heuristic, then the fallback category. Suggestions
are recorded on the transaction unless --dry-run is set.`,
		RunE: runSuggest,
	}

	cmd.Flags().Bool("all-pending", false, "suggest for every pending transaction")
	cmd.Flags().BoolP("dry-run", "d", false, "print suggestions without saving")

	return cmd
}

func runSuggest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	allPending, _ := cmd.Flags().GetBool("all-pending")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	if !allPending && len(args) == 0 {
		return fmt.Errorf("provide transaction IDs or --all-pending")
	}

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	publisher, err := initBus()
	if err != nil {
		return err
	}
	defer func() { _ = publisher.Close() }()

	userID := currentUserID()

	var txns []model.BankTransaction
	if allPending {
		txns, err = store.GetPendingTransactions(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to list pending transactions: %w", err)
		}
	} else {
		for _, id := range args {
			txn, getErr := store.GetTransaction(ctx, id)
			if getErr != nil {
				return getErr
			}
			txns = append(txns, *txn)
		}
	}

	if len(txns) == 0 {
		slog.Info("No transactions to categorize")
		return nil
	}

	orchestrator := categorize.New(store, store)

	var bar *progressbar.ProgressBar
	if allPending {
		bar = progressbar.Default(int64(len(txns)), "categorizing")
	}

	for i := range txns {
		txn := txns[i]

		suggestion, suggestErr := orchestrator.SuggestCategory(ctx, userID, txn)
		if suggestErr != nil {
			return fmt.Errorf("failed to categorize transaction %s: %w", txn.ID, suggestErr)
		}

		if !dryRun {
			if applyErr := applySuggestion(cmd, store, publisher, userID, &txn, suggestion); applyErr != nil {
				return applyErr
			}
		}

		if bar != nil {
			_ = bar.Add(1)
		} else {
			fmt.Printf("%s  %s  %s\n",
				txn.ID,
				cli.StyleInfo(suggestion.Category),
				cli.SubtleStyle.Render(fmt.Sprintf("%.0f%% via %s", suggestion.Confidence*100, suggestion.Source)))
		}
	}

	return nil
}

func applySuggestion(cmd *cobra.Command, store service.Storage, publisher bus.Publisher, userID string, txn *model.BankTransaction, suggestion categorize.Suggestion) error {
	ctx := cmd.Context()

	txn.ApplySuggestion(suggestion.Category, suggestion.Confidence)
	if err := store.SaveTransaction(ctx, txn); err != nil {
		return fmt.Errorf("failed to save suggestion for %s: %w", txn.ID, err)
	}

	event := bus.SuggestionEvent{
		OccurredAt:    time.Now(),
		UserID:        userID,
		TransactionID: txn.ID,
		Category:      suggestion.Category,
		Source:        string(suggestion.Source),
		Confidence:    suggestion.Confidence,
	}
	if err := publisher.Publish(ctx, bus.TopicCategorySuggested, event); err != nil {
		slog.Warn("Failed to publish suggestion event",
			"transaction_id", txn.ID,
			"error", err)
	}

	return nil
}
