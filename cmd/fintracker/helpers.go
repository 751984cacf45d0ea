package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/fintracker/internal/amqp"
	"github.com/Veraticus/fintracker/internal/common"
	"github.com/Veraticus/fintracker/internal/config"
	"github.com/Veraticus/fintracker/internal/engine"
	"github.com/Veraticus/fintracker/internal/model"
	"github.com/Veraticus/fintracker/internal/service"
	"github.com/Veraticus/fintracker/internal/storage"
	"github.com/spf13/viper"
)

var errGroupRequired = errors.New("group id is required: pass --group or set FINTRACKER_GROUP")

const (
	eventBufferSize     = 256
	eventPublishTimeout = 10 * time.Second
	eventDrainTimeout   = 15 * time.Second
)

func loadSettings() (*config.Settings, error) {
	return config.Load(viper.GetViper())
}

// initStorage opens the database and brings the schema up to date.
func initStorage(ctx context.Context, settings *config.Settings) (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(settings.Database.Path)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

func newEngine(store service.Storage, notifier service.Notifier, settings *config.Settings) *engine.Engine {
	cfg := engine.DefaultConfig()
	cfg.AutoThreshold = settings.AutoCategoryThreshold
	return engine.NewWithConfig(store, notifier, cfg)
}

// newNotifier publishes to AMQP through a bounded queue when a broker is
// configured and logs events otherwise. The closer drains the queue.
func newNotifier(settings *config.Settings) (service.Notifier, func(), error) {
	if !settings.AMQP.Enabled() {
		return amqp.NewLogNotifier(slog.Default()), func() {}, nil
	}

	publisher, err := amqp.NewPublisher(settings.AMQP.URL, settings.AMQP.Exchange, settings.AMQP.RoutingKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to AMQP: %w", err)
	}
	async := amqp.NewAsyncNotifier(publisher, eventBufferSize, eventPublishTimeout)
	closer := func() {
		ctx, cancel := context.WithTimeout(context.Background(), eventDrainTimeout)
		defer cancel()
		if err := async.Close(ctx); err != nil {
			slog.Warn("Dropped queued events on shutdown", "error", err)
		}
		if err := publisher.Close(); err != nil {
			slog.Warn("Failed to close AMQP publisher", "error", err)
		}
	}
	return async, closer, nil
}

func groupID() (int64, error) {
	id := viper.GetInt64("group")
	if id == 0 {
		return 0, errGroupRequired
	}
	return id, nil
}

// ensureGroup loads the selected group, creating it with the configured
// defaults when the CLI touches it first.
func ensureGroup(ctx context.Context, store service.Storage, settings *config.Settings) (*model.Group, error) {
	id, err := groupID()
	if err != nil {
		return nil, err
	}
	return store.EnsureGroup(ctx, &model.Group{
		ID:       id,
		Currency: settings.DefaultCurrency,
		Timezone: settings.DefaultTimezone,
	})
}

// app bundles what most commands need.
type app struct {
	settings *config.Settings
	store    *storage.SQLiteStorage
	engine   *engine.Engine
}

func openApp(ctx context.Context) (*app, error) {
	settings, err := loadSettings()
	if err != nil {
		return nil, err
	}
	store, err := initStorage(ctx, settings)
	if err != nil {
		return nil, err
	}
	return &app{
		settings: settings,
		store:    store,
		engine:   newEngine(store, amqp.NewLogNotifier(slog.Default()), settings),
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		slog.Warn("Failed to close database", "error", err)
	}
}

// explain turns engine errors caused by the caller into user errors.
func explain(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, common.ErrNotFound):
		return common.NewUserError("Decision not found, it may already be settled", err)
	case errors.Is(err, common.ErrForbidden):
		return common.NewUserError("Only the author of the expense can settle this decision", err)
	case errors.Is(err, common.ErrInvalidCategory):
		return common.NewUserError("Unknown category, run 'fintracker taxonomy' to list them", err)
	case errors.Is(err, common.ErrInvalidAmount):
		return common.NewUserError("Amount must be a positive number", err)
	default:
		return err
	}
}
