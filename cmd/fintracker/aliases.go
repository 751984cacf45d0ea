package main

import (
	"fmt"
	"strings"

	"github.com/Veraticus/fintracker/internal/classification"
	"github.com/Veraticus/fintracker/internal/cli"
	"github.com/Veraticus/fintracker/internal/common"
	"github.com/Veraticus/fintracker/internal/model"
	"github.com/Veraticus/fintracker/internal/taxonomy"
	"github.com/spf13/cobra"
)

func aliasesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aliases",
		Short: "Manage a group's learned note aliases",
		Long: `Aliases map a normalized note straight to a subcategory. They are
learned from repeated corrections and can also be managed by hand.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List aliases",
		Args:  cobra.NoArgs,
		RunE:  runAliasesList,
	})
	cmd.AddCommand(&cobra.Command{
		Use:     "add <subcategory> <note...>",
		Short:   "Map a note to a subcategory",
		Example: `  fintracker aliases add --group=-100123 food_out кофе и круассан`,
		Args:    cobra.MinimumNArgs(2),
		RunE:    runAliasesAdd,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <note...>",
		Short: "Forget the alias for a note",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runAliasesDelete,
	})

	return cmd
}

func runAliasesList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	id, err := groupID()
	if err != nil {
		return err
	}
	aliases, err := a.store.GetAliases(ctx, id)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), cli.RenderAliases(a.engine.Taxonomy(), aliases))
	return nil
}

func runAliasesAdd(cmd *cobra.Command, args []string) error {
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

	tax := a.engine.Taxonomy()
	sub, ok := tax.Subcategory(args[0])
	if !ok {
		return explain(fmt.Errorf("%w: unknown subcategory %q", common.ErrInvalidCategory, args[0]))
	}
	pattern := classification.Normalize(strings.Join(args[1:], " "))
	if pattern == "" {
		return fmt.Errorf("note is empty after normalization")
	}

	alias := &model.MerchantAlias{
		GroupID:     group.ID,
		Pattern:     pattern,
		Subcategory: sub.Key,
		Source:      model.SourceManual,
		Confidence:  model.AliasConfidence,
	}
	if err := a.store.UpsertAlias(ctx, alias); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("%q now maps to %s", pattern, tax.SubcategoryLabel(sub.Key))))
	return nil
}

func runAliasesDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	id, err := groupID()
	if err != nil {
		return err
	}
	pattern := classification.Normalize(strings.Join(args, " "))
	if err := a.store.DeleteAlias(ctx, id, pattern); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Forgot %q", pattern)))
	return nil
}

func taxonomyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "taxonomy",
		Short: "Print categories, subcategories and their keywords",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), cli.RenderTaxonomy(taxonomy.Default()))
		},
	}
}
