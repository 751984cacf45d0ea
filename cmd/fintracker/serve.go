package main

import (
	"fmt"
	"log/slog"

	"github.com/Veraticus/fintracker/internal/api"
	"github.com/Veraticus/fintracker/internal/chat"
	"github.com/Veraticus/fintracker/internal/reminder"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the reminder worker",
		Long: `Serve the dashboard API and the chat bridge, and send daily reminders
to groups that have not logged anything yet.

Events are published to AMQP when amqp.url is set and logged otherwise.`,
		RunE: runServe,
	}

	cmd.Flags().String("addr", "", "listen address (overrides http.addr)")
	cmd.Flags().Bool("no-reminders", false, "do not start the reminder worker")
	_ = viper.BindPFlag("http.addr", cmd.Flags().Lookup("addr"))

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	noReminders, _ := cmd.Flags().GetBool("no-reminders")

	settings, err := loadSettings()
	if err != nil {
		return err
	}

	store, err := initStorage(ctx, settings)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = store.Close() }()

	notifier, closeNotifier, err := newNotifier(settings)
	if err != nil {
		return err
	}
	defer closeNotifier()

	eng := newEngine(store, notifier, settings)
	dispatcher := chat.NewDispatcher(eng, store, chat.Settings{
		AppURL:          settings.AppURL,
		DefaultCurrency: settings.DefaultCurrency,
		DefaultTimezone: settings.DefaultTimezone,
		WebAppURL:       settings.WebAppURL,
	})
	server := api.NewServer(eng, dispatcher, store, api.Options{
		Addr:           settings.HTTP.Addr,
		AllowedOrigins: settings.HTTP.AllowedOrigins,
		Fallback:       settings.Location(),
		Version:        version,
	})

	slog.Info("Starting fintracker",
		"version", version,
		"database", store.Path(),
		"addr", settings.HTTP.Addr,
		"amqp", settings.AMQP.Enabled(),
		"threshold", eng.Threshold())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.ListenAndServe(gctx)
	})
	if !noReminders {
		worker := reminder.NewWorker(store, notifier, settings.ReminderInterval, settings.Location())
		g.Go(func() error {
			return worker.Run(gctx)
		})
	}

	return g.Wait()
}
