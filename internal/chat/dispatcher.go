package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/fintracker/internal/common"
	"github.com/Veraticus/fintracker/internal/engine"
	"github.com/Veraticus/fintracker/internal/model"
	"github.com/Veraticus/fintracker/internal/report"
	"github.com/Veraticus/fintracker/internal/service"
	"github.com/Veraticus/fintracker/internal/taxonomy"
)

const lastExpensesLimit = 10

// Settings are the dispatcher's group defaults and links.
type Settings struct {
	AppURL          func(groupID int64) string
	DefaultCurrency string
	DefaultTimezone string
	WebAppURL       string
}

// Dispatcher routes chat input to the engine and storage.
type Dispatcher struct {
	engine   *engine.Engine
	storage  service.Storage
	commands map[string]commandFunc
	now      func() time.Time
	settings Settings
}

type commandFunc func(ctx context.Context, msg Message, args string) ([]Reply, error)

// NewDispatcher creates a dispatcher.
func NewDispatcher(eng *engine.Engine, storage service.Storage, settings Settings) *Dispatcher {
	if settings.DefaultCurrency == "" {
		settings.DefaultCurrency = "RUB"
	}
	if settings.DefaultTimezone == "" {
		settings.DefaultTimezone = "Europe/Moscow"
	}

	d := &Dispatcher{
		engine:   eng,
		storage:  storage,
		settings: settings,
		now:      time.Now,
	}
	d.commands = map[string]commandFunc{
		"add":      d.cmdAdd,
		"today":    d.cmdToday,
		"month":    d.cmdMonth,
		"last":     d.cmdLast,
		"undo":     d.cmdUndo,
		"settings": d.cmdSettings,
		"remind":   d.cmdRemind,
		"tz":       d.cmdTimezone,
		"setup":    d.cmdSetup,
	}
	return d
}

// SetClock overrides the dispatcher's clock.
func (d *Dispatcher) SetClock(now func() time.Time) {
	d.now = now
}

func (d *Dispatcher) taxonomy() *taxonomy.Taxonomy {
	return d.engine.Taxonomy()
}

// HandleMessage processes one incoming message and returns the replies to
// send, if any. Plain text in a group is treated as an expense; text that
// does not parse is ignored.
func (d *Dispatcher) HandleMessage(ctx context.Context, msg Message) ([]Reply, error) {
	if msg.From.IsBot || msg.From.ID == 0 {
		return nil, nil
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return nil, nil
	}

	name, args, isCommand := ParseCommand(text)

	if !msg.Chat.IsGroup() {
		if !isCommand {
			return nil, nil
		}
		switch name {
		case "start":
			return []Reply{{
				Text: "Привет. Добавь меня в группу и пиши расходы обычным текстом: `450 кофе`.\n" +
					"Команды: /today, /month, /last, /undo, /settings, /app",
				Markdown: true,
			}}, nil
		case "app":
			return []Reply{{Text: "Открыть TG App:", Keyboard: appKeyboard(d.settings.WebAppURL)}}, nil
		}
		if _, ok := d.commands[name]; ok {
			return []Reply{{Text: "/" + name + " работает только в группе"}}, nil
		}
		return nil, nil
	}

	if err := d.register(ctx, msg.Chat, msg.From); err != nil {
		return nil, err
	}

	if !isCommand {
		return d.processExpense(ctx, msg, text, false)
	}

	switch name {
	case "start":
		return []Reply{
			{
				Text: "Бот активен в группе. Просто пиши расход текстом: `450 кофе`.\n" +
					"Команды статистики: /today /month /last /undo\n" +
					"Настройки: /settings\n" +
					"Открыть приложение: /app",
				Markdown: true,
			},
			d.appReply(msg.Chat.ID),
		}, nil
	case "app":
		return []Reply{d.appReply(msg.Chat.ID)}, nil
	}

	handler, ok := d.commands[name]
	if !ok {
		return nil, nil
	}
	return handler(ctx, msg, args)
}

// register records the sender and makes sure the group exists.
func (d *Dispatcher) register(ctx context.Context, chat Chat, from Sender) error {
	if err := d.storage.UpsertUser(ctx, &model.User{
		ID:        from.ID,
		Username:  from.Username,
		FirstName: from.FirstName,
	}); err != nil {
		return fmt.Errorf("failed to register user: %w", err)
	}
	if _, err := d.ensureGroup(ctx, chat.ID, chat.Title); err != nil {
		return err
	}
	return nil
}

func (d *Dispatcher) ensureGroup(ctx context.Context, groupID int64, title string) (*model.Group, error) {
	group, err := d.storage.EnsureGroup(ctx, &model.Group{
		ID:       groupID,
		Title:    title,
		Currency: d.settings.DefaultCurrency,
		Timezone: d.settings.DefaultTimezone,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register group: %w", err)
	}
	return group, nil
}

func (d *Dispatcher) appReply(groupID int64) Reply {
	url := d.settings.WebAppURL
	if d.settings.AppURL != nil {
		url = d.settings.AppURL(groupID)
	}
	return Reply{Text: "Открыть TG App:", Keyboard: appKeyboard(url)}
}

func (d *Dispatcher) currency(ctx context.Context, groupID int64) string {
	group, err := d.storage.GetGroup(ctx, groupID)
	if err != nil || group.Currency == "" {
		return d.settings.DefaultCurrency
	}
	return group.Currency
}

func (d *Dispatcher) location(ctx context.Context, groupID int64) *time.Location {
	fallback, err := time.LoadLocation(d.settings.DefaultTimezone)
	if err != nil {
		fallback = time.UTC
	}
	group, err := d.storage.GetGroup(ctx, groupID)
	if err != nil {
		return fallback
	}
	return group.Location(fallback)
}

func (d *Dispatcher) processExpense(ctx context.Context, msg Message, text string, replyOnError bool) ([]Reply, error) {
	parsed, ok := ParseExpense(text, d.taxonomy())
	if !ok {
		if replyOnError {
			return []Reply{{Text: "Не понял расход. Пример: `450 кофе`", Markdown: true}}, nil
		}
		return nil, nil
	}

	result, err := d.engine.ClassifyAndRoute(ctx, engine.Entry{
		GroupID:         msg.Chat.ID,
		UserID:          msg.From.ID,
		Amount:          parsed.Amount,
		Note:            parsed.Note,
		Category:        parsed.Category,
		SourceMessageID: msg.MessageID,
	})
	if err != nil {
		return nil, err
	}

	currency := d.currency(ctx, msg.Chat.ID)
	tax := d.taxonomy()

	if result.Pending != nil {
		p := result.Pending
		text := fmt.Sprintf("%s: выбери категорию", FormatAmount(p.Amount, currency))
		if p.PredictedSubcategory != "" {
			text += fmt.Sprintf("\nПохоже на «%s» (%.2f)", tax.SubcategoryLabel(p.PredictedSubcategory), p.PredictedConfidence)
		}
		if p.Note != "" {
			text += "\nЗаметка: " + p.Note
		}
		return []Reply{{Text: text, Keyboard: CategoryKeyboard(tax, p.ID)}}, nil
	}

	return []Reply{{Text: formatAdded(tax, result.AutoApplied, currency)}}, nil
}

func (d *Dispatcher) cmdAdd(ctx context.Context, msg Message, args string) ([]Reply, error) {
	if args == "" {
		return []Reply{{Text: "Формат: /add <сумма> [заметка или категория]"}}, nil
	}
	return d.processExpense(ctx, msg, args, true)
}

func (d *Dispatcher) cmdToday(ctx context.Context, msg Message, _ string) ([]Reply, error) {
	return d.summaryReply(ctx, msg.Chat.ID, "Сегодня", report.PeriodToday)
}

func (d *Dispatcher) cmdMonth(ctx context.Context, msg Message, _ string) ([]Reply, error) {
	return d.summaryReply(ctx, msg.Chat.ID, "За месяц", report.PeriodMonth)
}

func (d *Dispatcher) summaryReply(ctx context.Context, groupID int64, title string, period report.Period) ([]Reply, error) {
	start, end := period.Range(d.now(), d.location(ctx, groupID))
	summary, err := d.storage.GetSummary(ctx, groupID, start, end)
	if err != nil {
		return nil, err
	}
	currency := d.currency(ctx, groupID)
	text := fmt.Sprintf("%s: %s\n\n%s", title, FormatAmount(summary.Total, currency), formatCategoryLines(d.taxonomy(), summary.Categories))
	return []Reply{{Text: text}}, nil
}

func (d *Dispatcher) cmdLast(ctx context.Context, msg Message, _ string) ([]Reply, error) {
	expenses, err := d.storage.GetLastExpenses(ctx, msg.Chat.ID, lastExpensesLimit)
	if err != nil {
		return nil, err
	}
	if len(expenses) == 0 {
		return []Reply{{Text: "Расходов пока нет"}}, nil
	}

	currency := d.currency(ctx, msg.Chat.ID)
	lines := make([]string, 0, len(expenses))
	for i := range expenses {
		lines = append(lines, formatLastLine(d.taxonomy(), &expenses[i], currency))
	}
	return []Reply{{Text: fmt.Sprintf("Последние %d расходов:\n%s", lastExpensesLimit, strings.Join(lines, "\n"))}}, nil
}

func (d *Dispatcher) cmdUndo(ctx context.Context, msg Message, _ string) ([]Reply, error) {
	removed, err := d.storage.DeleteLastExpense(ctx, msg.Chat.ID, msg.From.ID)
	if errors.Is(err, common.ErrNotFound) {
		return []Reply{{Text: "У тебя нет расходов для отмены"}}, nil
	}
	if err != nil {
		return nil, err
	}
	slog.Info("expense undone", "group", msg.Chat.ID, "user", msg.From.ID, "expense", removed.ID)
	return []Reply{{Text: fmt.Sprintf("Удален последний расход: #%d", removed.ID)}}, nil
}

func (d *Dispatcher) cmdSettings(ctx context.Context, msg Message, _ string) ([]Reply, error) {
	text, keyboard, err := d.renderSettings(ctx, msg.Chat.ID)
	if err != nil {
		return nil, err
	}
	return []Reply{{Text: text, Keyboard: keyboard, Markdown: true}}, nil
}

func (d *Dispatcher) renderSettings(ctx context.Context, groupID int64) (string, Keyboard, error) {
	group, err := d.storage.GetGroup(ctx, groupID)
	if errors.Is(err, common.ErrNotFound) {
		group, err = d.ensureGroup(ctx, groupID, "")
	}
	if err != nil {
		return "", nil, err
	}
	return formatSettings(group), SettingsKeyboard(groupID, group.ReminderEnabled), nil
}

func (d *Dispatcher) cmdRemind(ctx context.Context, msg Message, args string) ([]Reply, error) {
	if !ValidReminderTime(args) {
		return []Reply{{Text: "Формат: /remind HH:MM"}}, nil
	}
	if err := d.updateGroup(ctx, msg.Chat.ID, func(g *model.Group) { g.ReminderTime = args }); err != nil {
		return nil, err
	}
	return []Reply{{Text: "Время напоминаний обновлено: " + args}}, nil
}

func (d *Dispatcher) cmdTimezone(ctx context.Context, msg Message, args string) ([]Reply, error) {
	if args == "" {
		return []Reply{{Text: "Формат: /tz Europe/Moscow"}}, nil
	}
	if _, err := time.LoadLocation(args); err != nil {
		return []Reply{{Text: "Некорректный timezone. Пример: Europe/Moscow"}}, nil
	}
	if err := d.updateGroup(ctx, msg.Chat.ID, func(g *model.Group) { g.Timezone = args }); err != nil {
		return nil, err
	}
	return []Reply{{Text: "Timezone обновлен: " + args}}, nil
}

// cmdSetup sets the group currency and, optionally, its timezone. An
// invalid currency falls back to the default and an invalid zone is
// skipped.
func (d *Dispatcher) cmdSetup(ctx context.Context, msg Message, args string) ([]Reply, error) {
	currency := d.settings.DefaultCurrency
	timezone := ""

	fields := strings.Fields(args)
	if len(fields) > 0 {
		if c, ok := ParseCurrency(fields[0]); ok {
			currency = c
		}
	}
	if len(fields) > 1 {
		if _, err := time.LoadLocation(fields[1]); err == nil {
			timezone = fields[1]
		}
	}

	err := d.updateGroup(ctx, msg.Chat.ID, func(g *model.Group) {
		g.Currency = currency
		if timezone != "" {
			g.Timezone = timezone
		}
		if msg.Chat.Title != "" {
			g.Title = msg.Chat.Title
		}
	})
	if err != nil {
		return nil, err
	}

	text := "Группа настроена. Валюта: " + currency
	if timezone != "" {
		text += "\nTimezone: " + timezone
	}
	return []Reply{{Text: text}}, nil
}

func (d *Dispatcher) updateGroup(ctx context.Context, groupID int64, change func(*model.Group)) error {
	group, err := d.ensureGroup(ctx, groupID, "")
	if err != nil {
		return err
	}
	change(group)
	if err := d.storage.UpdateGroupSettings(ctx, group); err != nil {
		return fmt.Errorf("failed to update group settings: %w", err)
	}
	return nil
}

// HandleCallback processes an inline button press.
func (d *Dispatcher) HandleCallback(ctx context.Context, cb Callback) (*CallbackReply, error) {
	switch {
	case strings.HasPrefix(cb.Data, "cat:"):
		return d.onCategoryChosen(ctx, cb)
	case strings.HasPrefix(cb.Data, "cfg:"):
		return d.onSettings(ctx, cb)
	default:
		return &CallbackReply{Toast: "Неизвестное действие", Alert: true}, nil
	}
}

func (d *Dispatcher) onCategoryChosen(ctx context.Context, cb Callback) (*CallbackReply, error) {
	parts := strings.Split(cb.Data, ":")
	if len(parts) != 3 {
		return &CallbackReply{Toast: "Некорректная кнопка", Alert: true}, nil
	}
	pendingID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return &CallbackReply{Toast: "Некорректная кнопка", Alert: true}, nil
	}

	expense, err := d.engine.ResolvePending(ctx, pendingID, cb.From.ID, parts[2])
	switch {
	case errors.Is(err, common.ErrNotFound):
		return &CallbackReply{Toast: "Запись уже обработана", Alert: true, RemoveKeyboard: true}, nil
	case errors.Is(err, common.ErrForbidden):
		return &CallbackReply{Toast: "Только автор может выбрать категорию", Alert: true}, nil
	case errors.Is(err, common.ErrInvalidCategory):
		return &CallbackReply{Toast: "Неизвестная категория", Alert: true}, nil
	case err != nil:
		return nil, err
	}

	text := formatAdded(d.taxonomy(), expense, d.currency(ctx, expense.GroupID))
	if expense.Note != "" {
		text += "\nЗаметка: " + expense.Note
	}
	return &CallbackReply{Toast: "Сохранено", EditText: text, RemoveKeyboard: true}, nil
}

func (d *Dispatcher) onSettings(ctx context.Context, cb Callback) (*CallbackReply, error) {
	parts := strings.Split(cb.Data, ":")
	if len(parts) < 3 {
		return &CallbackReply{Toast: "Некорректная команда", Alert: true}, nil
	}
	groupID, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return &CallbackReply{Toast: "Некорректная команда", Alert: true}, nil
	}
	if cb.Chat.ID != groupID {
		return &CallbackReply{Toast: "Эти настройки для другого чата", Alert: true}, nil
	}

	var toast string
	switch {
	case parts[1] == "t" && len(parts) == 3:
		if err := d.updateGroup(ctx, groupID, func(g *model.Group) { g.ReminderEnabled = !g.ReminderEnabled }); err != nil {
			return nil, err
		}
		toast = "Настройки обновлены"
	case parts[1] == "h" && len(parts) == 4:
		hhmm := strings.ReplaceAll(parts[3], "-", ":")
		if !ValidReminderTime(hhmm) {
			return &CallbackReply{Toast: "Некорректное время", Alert: true}, nil
		}
		if err := d.updateGroup(ctx, groupID, func(g *model.Group) { g.ReminderTime = hhmm }); err != nil {
			return nil, err
		}
		toast = "Время: " + hhmm
	default:
		return &CallbackReply{Toast: "Неизвестное действие", Alert: true}, nil
	}

	text, keyboard, err := d.renderSettings(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return &CallbackReply{Toast: toast, EditText: text, Keyboard: keyboard}, nil
}
