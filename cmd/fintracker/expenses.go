package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/fintracker/internal/chat"
	"github.com/Veraticus/fintracker/internal/cli"
	"github.com/Veraticus/fintracker/internal/common"
	"github.com/Veraticus/fintracker/internal/engine"
	"github.com/Veraticus/fintracker/internal/report"
	"github.com/spf13/cobra"
)

const defaultLastLimit = 10

func addCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <amount> [category] [note...]",
		Short: "Record an expense",
		Long: `Record an expense the same way a chat message would.

A leading category word ("еда", "транспорт", ...) skips classification.
Otherwise the note is classified and either applied or left open for
the author to confirm.

Examples:
  fintracker add --group=-100123 --user 42 450 кофе латте
  fintracker add --group=-100123 --user 42 1200 дом`,
		Args: cobra.MinimumNArgs(1),
		RunE: runAdd,
	}

	cmd.Flags().Int64("user", 0, "author user id")
	cmd.Flags().String("date", "", "spending date (YYYY-MM-DD, defaults to now)")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func runAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	userID, _ := cmd.Flags().GetInt64("user")
	date, _ := cmd.Flags().GetString("date")

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	group, err := ensureGroup(ctx, a.store, a.settings)
	if err != nil {
		return err
	}

	tax := a.engine.Taxonomy()
	parsed, ok := chat.ParseExpense(strings.Join(args, " "), tax)
	if !ok {
		return common.NewUserError(fmt.Sprintf("No amount in %q, try: 450 кофе", strings.Join(args, " ")), common.ErrInvalidAmount)
	}

	entry := engine.Entry{
		GroupID:  group.ID,
		UserID:   userID,
		Amount:   parsed.Amount,
		Note:     parsed.Note,
		Category: parsed.Category,
	}
	if date != "" {
		spentAt, err := time.ParseInLocation(dayLayout, date, group.Location(a.settings.Location()))
		if err != nil {
			return fmt.Errorf("invalid date %q: %w", date, err)
		}
		entry.SpentAt = spentAt
	}

	result, err := a.engine.ClassifyAndRoute(ctx, entry)
	if err != nil {
		return explain(err)
	}

	out := cmd.OutOrStdout()
	if result.Pending != nil {
		fmt.Fprintln(out, cli.FormatWarning(fmt.Sprintf("Not sure about this one, opened decision #%d", result.Pending.ID)))
		fmt.Fprintln(out, cli.RenderPrediction(tax, parsed.Note, result.Prediction, a.engine.Threshold()))
		fmt.Fprintf(out, "Resolve with: fintracker pending resolve %d <category>\n", result.Pending.ID)
		return nil
	}

	e := result.AutoApplied
	fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Recorded #%d: %s, %s",
		e.ID, chat.FormatAmount(e.Amount, group.Currency), chat.ExpenseLabel(tax, e.Category, e.Subcategory))))
	return nil
}

func undoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "undo",
		Short: "Delete a user's most recent expense",
		Args:  cobra.NoArgs,
		RunE:  runUndo,
	}

	cmd.Flags().Int64("user", 0, "author user id")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func runUndo(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	userID, _ := cmd.Flags().GetInt64("user")

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	id, err := groupID()
	if err != nil {
		return err
	}

	removed, err := a.store.DeleteLastExpense(ctx, id, userID)
	if errors.Is(err, common.ErrNotFound) {
		fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("Nothing to undo"))
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Deleted expense #%d", removed.ID)))
	return nil
}

func lastCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "last",
		Short: "List a group's most recent expenses",
		Args:  cobra.NoArgs,
		RunE:  runLast,
	}

	cmd.Flags().IntP("limit", "n", defaultLastLimit, "number of expenses to show")

	return cmd
}

func runLast(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	limit, _ := cmd.Flags().GetInt("limit")

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	group, err := ensureGroup(ctx, a.store, a.settings)
	if err != nil {
		return err
	}

	expenses, err := a.store.GetLastExpenses(ctx, group.ID, limit)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), cli.RenderExpenses(a.engine.Taxonomy(), expenses, group.Currency))
	return nil
}

func summaryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show spending totals for today or the current month",
		Args:  cobra.NoArgs,
		RunE:  runSummary,
	}

	cmd.Flags().StringP("period", "p", string(report.PeriodMonth), "period to summarize (today, month)")

	return cmd
}

func runSummary(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	raw, _ := cmd.Flags().GetString("period")

	period, err := report.ParsePeriod(raw)
	if err != nil {
		return err
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	group, err := ensureGroup(ctx, a.store, a.settings)
	if err != nil {
		return err
	}

	builder := report.NewBuilder(a.store, a.engine.Taxonomy(), a.settings.Location())
	summary, err := builder.Summary(ctx, group, period, time.Now())
	if err != nil {
		return err
	}

	title := "Today"
	if period == report.PeriodMonth {
		title = "This month"
	}
	fmt.Fprintln(cmd.OutOrStdout(), cli.RenderSummary(title, builder.Lines(summary), summary, group.Currency))
	return nil
}
