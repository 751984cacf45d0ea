package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Veraticus/fintracker/internal/cli"
	"github.com/Veraticus/fintracker/internal/config"
	"github.com/Veraticus/fintracker/internal/sheets"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func authCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authenticate with external services",
	}

	sheetsCmd := &cobra.Command{
		Use:   "sheets",
		Short: "Authorize Google Sheets export",
		Long: `Open the Google consent page, wait for the redirect on localhost and
save the resulting token next to the config file.`,
		Args: cobra.NoArgs,
		RunE: runAuthSheets,
	}
	sheetsCmd.Flags().String("client-id", "", "OAuth2 client id (overrides sheets.client_id)")
	sheetsCmd.Flags().String("client-secret", "", "OAuth2 client secret (overrides sheets.client_secret)")

	cmd.AddCommand(sheetsCmd)
	return cmd
}

func runAuthSheets(cmd *cobra.Command, _ []string) error {
	clientID := viper.GetString("sheets.client_id")
	clientSecret := viper.GetString("sheets.client_secret")
	if flagID, _ := cmd.Flags().GetString("client-id"); flagID != "" {
		clientID = flagID
	}
	if flagSecret, _ := cmd.Flags().GetString("client-secret"); flagSecret != "" {
		clientSecret = flagSecret
	}
	if clientID == "" {
		clientID = os.Getenv("GOOGLE_SHEETS_CLIENT_ID")
	}
	if clientSecret == "" {
		clientSecret = os.Getenv("GOOGLE_SHEETS_CLIENT_SECRET")
	}
	if clientID == "" || clientSecret == "" {
		return fmt.Errorf("OAuth2 credentials not found: set sheets.client_id and sheets.client_secret or pass --client-id and --client-secret")
	}

	tokenFile := config.ExpandPath(filepath.Join("~", ".config", "fintracker", "sheets-token.json"))
	slog.Info("Starting Google Sheets authentication", "token_file", tokenFile)

	token, err := sheets.GetOrCreateToken(cmd.Context(), sheets.OAuth2Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenFile:    tokenFile,
	})
	if err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, cli.FormatSuccess("Google Sheets authorized"))
	fmt.Fprintf(out, "Add this to your config.yaml:\n\nsheets:\n  refresh_token: %q\n", token.RefreshToken)
	return nil
}
