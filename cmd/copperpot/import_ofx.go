package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/copperpot/copperpot/internal/cli"
	"github.com/copperpot/copperpot/internal/common"
	"github.com/copperpot/copperpot/internal/model"
	"github.com/copperpot/copperpot/internal/ofx"
)

func importOFXCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import-ofx [files...]",
		Short: "Import transactions from OFX/QFX files",
		Long: `Import bank transactions from OFX or QFX files exported from your bank.
Re-importing a statement is safe: rows that already exist are skipped.

Examples:
  # Import single file
  copperpot import-ofx ~/Downloads/jan_2026.qfx

  # Import all QFX files in a directory
  copperpot import-ofx ~/Downloads/*.qfx`,
		Args: cobra.MinimumNArgs(1),
		RunE: runImportOFX,
	}

	cmd.Flags().BoolP("dry-run", "d", false, "preview import without saving")

	return cmd
}

func runImportOFX(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	// Expand globs and collect all files
	var allFiles []string
	for _, candidate := range args {
		matches, err := filepath.Glob(candidate)
		if err != nil {
			return fmt.Errorf("invalid pattern %s: %w", candidate, err)
		}
		if len(matches) == 0 {
			// If no glob matches, check if it's a direct file
			if _, err := os.Stat(candidate); err == nil {
				allFiles = append(allFiles, candidate)
			} else {
				slog.Warn("No files found matching pattern", "pattern", candidate)
			}
		} else {
			allFiles = append(allFiles, matches...)
		}
	}

	if len(allFiles) == 0 {
		return fmt.Errorf("no files found to import")
	}

	slog.Info("Importing OFX files",
		"file_count", len(allFiles),
		"dry_run", dryRun)

	userID := currentUserID()
	parser := ofx.NewParser()
	seen := make(map[string]bool)
	var allTransactions []model.BankTransaction

	for _, filePath := range allFiles {
		slog.Info("Processing file", "file", filepath.Base(filePath))

		f, err := os.Open(filePath)
		if err != nil {
			common.LogError(err, "Failed to open file", common.Fields{"file": filePath})
			continue
		}

		transactions, err := parser.ParseFile(ctx, f, userID)
		_ = f.Close()
		if err != nil {
			common.LogError(err, "Failed to parse OFX file", common.Fields{"file": filePath})
			continue
		}

		// Statements commonly overlap; the FiTID dedupes across files.
		for _, txn := range transactions {
			if seen[txn.ID] {
				continue
			}
			seen[txn.ID] = true
			allTransactions = append(allTransactions, txn)
		}
	}

	if len(allTransactions) == 0 {
		slog.Warn("No transactions found in any file")
		return nil
	}

	if dryRun {
		for _, txn := range allTransactions {
			fmt.Printf("%s  %s  %10.2f  %s\n",
				txn.ID,
				txn.ExecutionDate.Format("2006-01-02"),
				txn.Amount,
				txn.Description)
		}
		fmt.Println(cli.FormatInfo(fmt.Sprintf("dry run: %d transactions not saved", len(allTransactions))))
		return nil
	}

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.SaveTransactions(ctx, allTransactions); err != nil {
		return fmt.Errorf("failed to save transactions: %w", err)
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Imported %d transactions from %d files",
		len(allTransactions), len(allFiles))))
	return nil
}
