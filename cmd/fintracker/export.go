package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/fintracker/internal/cli"
	"github.com/Veraticus/fintracker/internal/config"
	"github.com/Veraticus/fintracker/internal/model"
	"github.com/Veraticus/fintracker/internal/report"
	"github.com/Veraticus/fintracker/internal/sheets"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const dayLayout = "2006-01-02"

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export recorded expenses",
	}

	sheetsCmd := &cobra.Command{
		Use:   "sheets",
		Short: "Write a group's expenses to Google Sheets",
		Long: `Replace the expense tab of the configured spreadsheet with the group's
expenses for a period, followed by a per-category breakdown.

Credentials come from sheets.* in the config file or GOOGLE_SHEETS_*
variables. Run 'fintracker auth sheets' once to obtain a refresh token.`,
		Args: cobra.NoArgs,
		RunE: runExportSheets,
	}
	sheetsCmd.Flags().StringP("period", "p", string(report.PeriodMonth), "period to export (today, month)")
	sheetsCmd.Flags().String("from", "", "start date, inclusive (YYYY-MM-DD); overrides --period")
	sheetsCmd.Flags().String("to", "", "end date, inclusive (YYYY-MM-DD); defaults to today")

	cmd.AddCommand(sheetsCmd)
	return cmd
}

func runExportSheets(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	group, err := ensureGroup(ctx, a.store, a.settings)
	if err != nil {
		return err
	}
	loc := group.Location(a.settings.Location())

	dateRange, err := exportRange(cmd, time.Now(), loc)
	if err != nil {
		return err
	}

	sheetsConfig, err := config.LoadSheetsConfig(viper.GetViper(), group.Currency, loc.String())
	if err != nil {
		return fmt.Errorf("google sheets is not configured: %w", err)
	}

	expenses, err := a.store.GetExpensesByPeriod(ctx, group.ID, dateRange.Start, dateRange.End)
	if err != nil {
		return err
	}
	rows := make([]*model.Expense, len(expenses))
	for i := range expenses {
		rows[i] = &expenses[i]
	}

	rep := sheets.BuildReport(rows, a.engine.Taxonomy(), nil, dateRange, loc)

	writer, err := sheets.NewWriter(ctx, *sheetsConfig, slog.Default())
	if err != nil {
		return err
	}
	spreadsheetID, err := writer.Write(ctx, rep)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Exported %d expenses to https://docs.google.com/spreadsheets/d/%s",
		len(rep.Expenses), spreadsheetID)))
	return nil
}

// exportRange turns --from/--to or --period into a half-open range.
func exportRange(cmd *cobra.Command, now time.Time, loc *time.Location) (sheets.DateRange, error) {
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")

	if from == "" {
		raw, _ := cmd.Flags().GetString("period")
		period, err := report.ParsePeriod(raw)
		if err != nil {
			return sheets.DateRange{}, err
		}
		start, end := period.Range(now, loc)
		return sheets.DateRange{Start: start, End: end}, nil
	}

	start, err := time.ParseInLocation(dayLayout, from, loc)
	if err != nil {
		return sheets.DateRange{}, fmt.Errorf("invalid --from %q: %w", from, err)
	}
	local := now.In(loc)
	end := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	if to != "" {
		if end, err = time.ParseInLocation(dayLayout, to, loc); err != nil {
			return sheets.DateRange{}, fmt.Errorf("invalid --to %q: %w", to, err)
		}
	}
	end = end.AddDate(0, 0, 1)
	if !end.After(start) {
		return sheets.DateRange{}, fmt.Errorf("--to must not be before --from")
	}
	return sheets.DateRange{Start: start, End: end}, nil
}
