// Package reminder nudges groups that have not logged any expense today.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/fintracker/internal/model"
	"github.com/Veraticus/fintracker/internal/service"
	"github.com/google/uuid"
)

// DefaultText is sent to groups that have no expenses for the day.
const DefaultText = "📝 Кажется, вы еще не записывали расходы сегодня. Не забудьте сделать это.\n\n" +
	"Отключить напоминания или изменить время можно в /settings"

// Worker periodically checks every group against its reminder settings.
type Worker struct {
	storage  service.Storage
	notifier service.Notifier
	fallback *time.Location
	now      func() time.Time
	text     string
	interval time.Duration
}

// NewWorker creates a worker. Groups with an unknown timezone use fallback.
func NewWorker(storage service.Storage, notifier service.Notifier, interval time.Duration, fallback *time.Location) *Worker {
	if fallback == nil {
		fallback = time.UTC
	}
	return &Worker{
		storage:  storage,
		notifier: notifier,
		interval: interval,
		fallback: fallback,
		now:      time.Now,
		text:     DefaultText,
	}
}

// Run checks immediately and then once per interval until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	slog.Info("reminder worker started", "interval", w.interval)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if _, err := w.RunOnce(ctx); err != nil {
			slog.Warn("reminder check failed", "error", err)
		}

		select {
		case <-ctx.Done():
			slog.Info("reminder worker stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce sends reminders to every due group and returns how many were
// sent. A group is due when reminders are on, its local time has passed
// the reminder time and it has not been handled today. Groups that already
// have expenses today are marked as handled without a reminder. A failure
// for one group is logged and does not stop the others.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	groups, err := w.storage.GetGroups(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list groups: %w", err)
	}

	now := w.now()
	sent := 0
	for i := range groups {
		group := &groups[i]
		ok, err := w.remind(ctx, group, now)
		if err != nil {
			slog.Warn("reminder failed", "group", group.ID, "error", err)
			continue
		}
		if ok {
			sent++
		}
	}
	return sent, nil
}

func (w *Worker) remind(ctx context.Context, group *model.Group, now time.Time) (bool, error) {
	if !group.ReminderEnabled {
		return false, nil
	}

	loc := group.Location(w.fallback)
	local := now.In(loc)
	localDate := local.Format(time.DateOnly)
	if group.LastReminderDate == localDate {
		return false, nil
	}

	target, err := time.Parse("15:04", group.ReminderTime)
	if err != nil {
		return false, nil
	}
	if local.Hour()*60+local.Minute() < target.Hour()*60+target.Minute() {
		return false, nil
	}

	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	count, err := w.storage.CountExpenses(ctx, group.ID, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, w.storage.MarkReminded(ctx, group.ID, localDate)
	}

	if w.notifier != nil {
		if err := w.notifier.Notify(ctx, service.Event{
			ID:         uuid.NewString(),
			Type:       service.EventReminderDue,
			GroupID:    group.ID,
			OccurredAt: now,
			Payload: &model.Reminder{
				GroupID:   group.ID,
				LocalDate: localDate,
				Text:      w.text,
			},
		}); err != nil {
			return false, err
		}
	}

	if err := w.storage.MarkReminded(ctx, group.ID, localDate); err != nil {
		return false, err
	}
	slog.Info("reminder sent", "group", group.ID, "local_date", localDate)
	return true, nil
}
