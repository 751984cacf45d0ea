package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/Veraticus/fintracker/internal/chat"
	"github.com/Veraticus/fintracker/internal/cli"
	"github.com/Veraticus/fintracker/internal/model"
	"github.com/Veraticus/fintracker/internal/tui"
	"github.com/spf13/cobra"
)

func pendingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "Inspect and settle open category decisions",
		Long: `Expenses the classifier was not sure about wait here until their author
picks a category. These commands act on the author's behalf.`,
	}

	cmd.AddCommand(pendingListCmd())
	cmd.AddCommand(pendingResolveCmd())
	cmd.AddCommand(pendingDiscardCmd())
	cmd.AddCommand(pendingReviewCmd())

	return cmd
}

func pendingListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List open decisions of a group",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
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
			pending, err := a.store.ListPending(ctx, group.ID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.RenderPending(a.engine.Taxonomy(), pending, group.Currency))
			return nil
		},
	}
}

func pendingResolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <id> <category>",
		Short: "Finalize a decision with the chosen category",
		Long: `Finalize an open decision. The choice is a category key ("food"), a
subcategory key ("food_out") or a category word ("еда").`,
		Args: cobra.ExactArgs(2),
		RunE: runPendingResolve,
	}

	cmd.Flags().Int64("user", 0, "resolving user id (defaults to the decision's author)")

	return cmd
}

func runPendingResolve(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	resolver, err := resolverFor(ctx, cmd, a, id)
	if err != nil {
		return explain(err)
	}

	expense, err := a.engine.ResolvePending(ctx, id, resolver, args[1])
	if err != nil {
		return explain(err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Recorded #%d: %s",
		expense.ID, chat.ExpenseLabel(a.engine.Taxonomy(), expense.Category, expense.Subcategory))))
	return nil
}

func pendingDiscardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discard <id>",
		Short: "Drop a decision without recording an expense",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			resolver, err := resolverFor(ctx, cmd, a, id)
			if err != nil {
				return explain(err)
			}
			if err := a.engine.DiscardPending(ctx, id, resolver); err != nil {
				return explain(err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Discarded decision #%d", id)))
			return nil
		},
	}

	cmd.Flags().Int64("user", 0, "resolving user id (defaults to the decision's author)")

	return cmd
}

func pendingReviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Walk through a group's open decisions interactively",
		Args:  cobra.NoArgs,
		RunE:  runPendingReview,
	}

	cmd.Flags().Bool("tui", false, "use the full-screen reviewer")

	return cmd
}

func runPendingReview(cmd *cobra.Command, _ []string) error {
	useTUI, _ := cmd.Flags().GetBool("tui")

	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	group, err := ensureGroup(cmd.Context(), a.store, a.settings)
	if err != nil {
		return err
	}
	tax := a.engine.Taxonomy()
	out := cmd.OutOrStdout()

	if useTUI {
		stats, err := tui.Run(cmd.Context(), tui.Config{
			Resolver: a.engine,
			Loader: func(ctx context.Context) ([]model.PendingDecision, error) {
				return a.store.ListPending(ctx, group.ID)
			},
			Taxonomy: tax,
			Currency: group.Currency,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "accepted %d, corrected %d, discarded %d, stale %d\n",
			stats.Accepted, stats.Corrected, stats.Discarded, stats.Stale)
		return nil
	}

	interrupts := cli.NewInterruptHandler(out, "Stopping review, open decisions stay open")
	ctx := interrupts.HandleInterrupts(cmd.Context())

	pending, err := a.store.ListPending(ctx, group.ID)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		fmt.Fprintln(out, cli.FormatSuccess("No open decisions"))
		return nil
	}

	prompter := cli.NewPrompter(os.Stdin, out, tax, a.engine, group.Currency)
	stats, err := prompter.Review(ctx, pending)
	if err != nil && !interrupts.WasInterrupted() && !errors.Is(err, cli.ErrInputCancelled) {
		return err
	}

	fmt.Fprintln(out, cli.RenderBox("Review", fmt.Sprintf(
		"accepted %d\ncorrected %d\ndiscarded %d\nskipped %d\nstale %d\ntook %s",
		stats.Accepted, stats.Corrected, stats.Discarded, stats.Skipped, stats.Stale, stats.Duration.Round(time.Second))))
	return nil
}

// resolverFor returns --user, or the decision's author when it is unset.
func resolverFor(ctx context.Context, cmd *cobra.Command, a *app, pendingID int64) (int64, error) {
	if user, _ := cmd.Flags().GetInt64("user"); user != 0 {
		return user, nil
	}
	pending, err := a.store.GetPending(ctx, pendingID)
	if err != nil {
		return 0, err
	}
	return pending.UserID, nil
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}
