package main

import (
	"fmt"
	"strings"

	"github.com/Veraticus/fintracker/internal/cli"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func classifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <note>",
		Short: "Show how a note would be categorized",
		Long: `Predict the category of a note without recording anything.

With --group the group's learned aliases are consulted first; without it
only the keyword rules apply.

Examples:
  fintracker classify "кофе латте"
  fintracker classify --group -100123 "такси до дома"`,
		Args: cobra.MinimumNArgs(1),
		RunE: runClassify,
	}
}

func runClassify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	note := strings.Join(args, " ")

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	prediction := a.engine.Predict(ctx, viper.GetInt64("group"), note)
	fmt.Fprintln(cmd.OutOrStdout(), cli.RenderPrediction(a.engine.Taxonomy(), note, prediction, a.engine.Threshold()))

	return nil
}
