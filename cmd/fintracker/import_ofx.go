package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Veraticus/fintracker/internal/cli"
	"github.com/Veraticus/fintracker/internal/model"
	"github.com/Veraticus/fintracker/internal/ofx"
	"github.com/spf13/cobra"
)

func importOFXCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import-ofx [files...]",
		Short: "Import card spending from OFX/QFX statements",
		Long: `Import debits from OFX or QFX files exported from your bank. Each debit
goes through the same classification as a chat message, recorded under
--user in --group. Credits and repeated lines are skipped.

Examples:
  fintracker import-ofx --group=-100123 --user 42 ~/Downloads/card_2024_06.qfx
  fintracker import-ofx --group=-100123 --user 42 ~/Downloads/*.ofx`,
		Args: cobra.MinimumNArgs(1),
		RunE: runImportOFX,
	}

	cmd.Flags().Int64("user", 0, "user the imported expenses belong to")
	cmd.Flags().BoolP("dry-run", "d", false, "parse and report without recording")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func runImportOFX(cmd *cobra.Command, args []string) error {
	userID, _ := cmd.Flags().GetInt64("user")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	out := cmd.OutOrStdout()

	files, err := expandFiles(args)
	if err != nil {
		return err
	}

	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	group, err := ensureGroup(cmd.Context(), a.store, a.settings)
	if err != nil {
		return err
	}

	interrupts := cli.NewInterruptHandler(out, "Expenses recorded so far are kept")
	ctx := interrupts.HandleInterrupts(cmd.Context())

	parser := ofx.NewParser()
	var transactions []model.Transaction
	for _, path := range files {
		f, err := os.Open(path)
		if err != nil {
			slog.Error("Failed to open file", "file", path, "error", err)
			continue
		}
		parsed, err := parser.ParseFile(ctx, f)
		_ = f.Close()
		if err != nil {
			slog.Error("Failed to parse OFX file", "file", path, "error", err)
			continue
		}
		slog.Info("Parsed statement", "file", filepath.Base(path), "transactions", len(parsed))
		transactions = append(transactions, parsed...)
	}

	if len(transactions) == 0 {
		fmt.Fprintln(out, cli.FormatWarning("No transactions found"))
		return nil
	}

	if dryRun {
		debits := 0
		for i := range transactions {
			if transactions[i].IsDebit() {
				debits++
			}
		}
		fmt.Fprintln(out, cli.FormatInfo(fmt.Sprintf("Dry run: %d transactions, %d debits would be classified", len(transactions), debits)))
		return nil
	}

	bar := cli.NewProgressBar(out, len(transactions), "Importing")
	result, err := ofx.NewImporter(a.engine).ImportTransactions(ctx, transactions, ofx.ImportOptions{
		GroupID:  group.ID,
		UserID:   userID,
		Progress: cli.ProgressFunc(bar),
	})
	if err != nil {
		if interrupts.WasInterrupted() {
			return nil
		}
		return err
	}
	_ = bar.Finish()

	fmt.Fprintln(out, cli.RenderBox("Import", fmt.Sprintf(
		"recorded %d\nawaiting a category %d\ncredits skipped %d\nduplicates skipped %d",
		result.Recorded, len(result.Pending), result.Credits, result.Duplicates)))
	if len(result.Pending) > 0 {
		fmt.Fprintln(out, cli.FormatInfo("Run 'fintracker pending review' to settle the open decisions"))
	}
	return nil
}

// expandFiles resolves globs, keeping plain paths that exist.
func expandFiles(patterns []string) ([]string, error) {
	var files []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", pattern, err)
		}
		if len(matches) > 0 {
			files = append(files, matches...)
			continue
		}
		if _, err := os.Stat(pattern); err == nil {
			files = append(files, pattern)
		} else {
			slog.Warn("No files found matching pattern", "pattern", pattern)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no files found to import")
	}
	return files, nil
}
