package chat

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/Veraticus/fintracker/internal/engine"
	"github.com/Veraticus/fintracker/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	groupID int64 = -1001234
	alice   int64 = 11
	bob     int64 = 12
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func setupDispatcher(t *testing.T) (*Dispatcher, *storage.SQLiteStorage) {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))
	t.Cleanup(func() { _ = store.Close() })

	config := engine.DefaultConfig()
	config.Now = func() time.Time { return testNow }
	eng := engine.NewWithConfig(store, nil, config)

	d := NewDispatcher(eng, store, Settings{
		DefaultCurrency: "RUB",
		DefaultTimezone: "Europe/Moscow",
		WebAppURL:       "https://app.example",
		AppURL: func(id int64) string {
			return fmt.Sprintf("https://app.example/?group_id=%d", id)
		},
	})
	d.SetClock(func() time.Time { return testNow })
	return d, store
}

func groupMessage(from int64, text string) Message {
	return Message{
		Text:      text,
		Chat:      Chat{ID: groupID, Type: ChatSupergroup, Title: "Семья"},
		From:      Sender{ID: from, FirstName: "user"},
		MessageID: 100,
	}
}

func send(t *testing.T, d *Dispatcher, from int64, text string) []Reply {
	t.Helper()
	replies, err := d.HandleMessage(context.Background(), groupMessage(from, text))
	require.NoError(t, err)
	return replies
}

func press(t *testing.T, d *Dispatcher, from int64, data string) *CallbackReply {
	t.Helper()
	reply, err := d.HandleCallback(context.Background(), Callback{
		Data: data,
		Chat: Chat{ID: groupID, Type: ChatSupergroup},
		From: Sender{ID: from},
	})
	require.NoError(t, err)
	require.NotNil(t, reply)
	return reply
}

func TestHandleMessage_AutoApplied(t *testing.T) {
	d, store := setupDispatcher(t)

	replies := send(t, d, alice, "450 кофе латте")
	require.Len(t, replies, 1)
	assert.Equal(t, "Добавлено #1: 450.00 RUB -> Еда вне дома", replies[0].Text)
	assert.Empty(t, replies[0].Keyboard)

	group, err := store.GetGroup(context.Background(), groupID)
	require.NoError(t, err)
	assert.Equal(t, "Семья", group.Title)
	assert.Equal(t, "RUB", group.Currency)
}

func TestHandleMessage_QuickCategory(t *testing.T) {
	d, store := setupDispatcher(t)

	replies := send(t, d, alice, "1200 еда обед с командой")
	require.Len(t, replies, 1)
	assert.Equal(t, "Добавлено #1: 1200.00 RUB -> Еда", replies[0].Text)

	expense, err := store.GetExpense(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, expense.IsAutoApplied)
	assert.Equal(t, "обед с командой", expense.Note)
}

func TestHandleMessage_FallbackToOther(t *testing.T) {
	d, _ := setupDispatcher(t)

	replies := send(t, d, alice, "300")
	require.Len(t, replies, 1)
	assert.Equal(t, "Добавлено #1: 300.00 RUB -> Другое", replies[0].Text)
}

func TestPendingFlowThroughButtons(t *testing.T) {
	d, store := setupDispatcher(t)

	replies := send(t, d, alice, "такси 250")
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0].Text, "250.00 RUB: выбери категорию")
	assert.Contains(t, replies[0].Text, "Похоже на «Такси» (0.71)")
	require.Len(t, replies[0].Keyboard, 8)

	transport := replies[0].Keyboard[1][0]
	assert.Equal(t, "Транспорт", transport.Text)
	assert.True(t, strings.HasPrefix(transport.Data, "cat:"))
	assert.True(t, strings.HasSuffix(transport.Data, ":transport"))

	reply := press(t, d, bob, transport.Data)
	assert.Equal(t, "Только автор может выбрать категорию", reply.Toast)
	assert.True(t, reply.Alert)

	reply = press(t, d, alice, transport.Data)
	assert.Equal(t, "Сохранено", reply.Toast)
	assert.True(t, reply.RemoveKeyboard)
	assert.Equal(t, "Добавлено #1: 250.00 RUB -> Такси\nЗаметка: такси", reply.EditText)

	reply = press(t, d, alice, transport.Data)
	assert.Equal(t, "Запись уже обработана", reply.Toast)
	assert.True(t, reply.RemoveKeyboard)

	expenses, err := store.GetLastExpenses(context.Background(), groupID, 10)
	require.NoError(t, err)
	assert.Len(t, expenses, 1)
}

func TestCategoryCallbackRejectsBadData(t *testing.T) {
	d, _ := setupDispatcher(t)

	assert.Equal(t, "Некорректная кнопка", press(t, d, alice, "cat:1").Toast)
	assert.Equal(t, "Некорректная кнопка", press(t, d, alice, "cat:x:food").Toast)
	assert.Equal(t, "Неизвестное действие", press(t, d, alice, "zzz").Toast)

	replies := send(t, d, alice, "такси 250")
	data := replies[0].Keyboard[0][0].Data
	bad := data[:strings.LastIndex(data, ":")] + ":snacks"
	assert.Equal(t, "Неизвестная категория", press(t, d, alice, bad).Toast)
}

func TestHandleMessage_Ignored(t *testing.T) {
	d, _ := setupDispatcher(t)

	assert.Empty(t, send(t, d, alice, "привет всем"))
	assert.Empty(t, send(t, d, alice, "/unknown"))

	msg := groupMessage(alice, "450 кофе")
	msg.From.IsBot = true
	replies, err := d.HandleMessage(context.Background(), msg)
	require.NoError(t, err)
	assert.Empty(t, replies)
}

func TestHandleMessage_PrivateChat(t *testing.T) {
	d, _ := setupDispatcher(t)
	private := func(text string) []Reply {
		replies, err := d.HandleMessage(context.Background(), Message{
			Text: text,
			Chat: Chat{ID: alice, Type: ChatPrivate},
			From: Sender{ID: alice},
		})
		require.NoError(t, err)
		return replies
	}

	assert.Empty(t, private("450 кофе"))

	replies := private("/today")
	require.Len(t, replies, 1)
	assert.Equal(t, "/today работает только в группе", replies[0].Text)

	replies = private("/start")
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0].Text, "Добавь меня в группу")

	replies = private("/app")
	require.Len(t, replies, 1)
	assert.Equal(t, "https://app.example", replies[0].Keyboard[0][0].URL)
}

func TestAddCommand(t *testing.T) {
	d, _ := setupDispatcher(t)

	replies := send(t, d, alice, "/add")
	require.Len(t, replies, 1)
	assert.Equal(t, "Формат: /add <сумма> [заметка или категория]", replies[0].Text)

	replies = send(t, d, alice, "/add привет")
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0].Text, "Не понял расход")

	replies = send(t, d, alice, "/add@FinBot 99 транспорт")
	require.Len(t, replies, 1)
	assert.Equal(t, "Добавлено #1: 99.00 RUB -> Транспорт", replies[0].Text)
}

func TestReportsAndUndo(t *testing.T) {
	d, _ := setupDispatcher(t)

	replies := send(t, d, alice, "/today")
	assert.Equal(t, "Сегодня: 0.00 RUB\n\nНет расходов", replies[0].Text)
	replies = send(t, d, alice, "/last")
	assert.Equal(t, "Расходов пока нет", replies[0].Text)

	send(t, d, alice, "450 кофе латте")
	send(t, d, bob, "1000 транспорт")
	send(t, d, alice, "50 еда")

	replies = send(t, d, alice, "/today")
	assert.Equal(t, "Сегодня: 1500.00 RUB\n\n- Транспорт: 1000.00\n- Еда: 500.00", replies[0].Text)

	replies = send(t, d, alice, "/month")
	assert.True(t, strings.HasPrefix(replies[0].Text, "За месяц: 1500.00 RUB"))

	replies = send(t, d, alice, "/last")
	lines := strings.Split(replies[0].Text, "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "#3 50.00 RUB | Еда | user:11", lines[1])
	assert.Equal(t, "#1 450.00 RUB | Еда/Еда вне дома | user:11 | кофе латте", lines[3])

	replies = send(t, d, bob, "/undo")
	assert.Equal(t, "Удален последний расход: #2", replies[0].Text)
	replies = send(t, d, bob, "/undo")
	assert.Equal(t, "У тебя нет расходов для отмены", replies[0].Text)
}

func TestGroupSettingsCommands(t *testing.T) {
	d, store := setupDispatcher(t)
	ctx := context.Background()

	replies := send(t, d, alice, "/remind 25:00")
	assert.Equal(t, "Формат: /remind HH:MM", replies[0].Text)
	replies = send(t, d, alice, "/remind 09:30")
	assert.Equal(t, "Время напоминаний обновлено: 09:30", replies[0].Text)

	replies = send(t, d, alice, "/tz Mars/Olympus")
	assert.Contains(t, replies[0].Text, "Некорректный timezone")
	replies = send(t, d, alice, "/tz Asia/Almaty")
	assert.Equal(t, "Timezone обновлен: Asia/Almaty", replies[0].Text)

	replies = send(t, d, alice, "/setup usd")
	assert.Equal(t, "Группа настроена. Валюта: USD", replies[0].Text)

	group, err := store.GetGroup(ctx, groupID)
	require.NoError(t, err)
	assert.Equal(t, "09:30", group.ReminderTime)
	assert.Equal(t, "Asia/Almaty", group.Timezone)
	assert.Equal(t, "USD", group.Currency)

	replies = send(t, d, alice, "450 кофе латте")
	assert.Contains(t, replies[0].Text, "450.00 USD")

	replies = send(t, d, alice, "/settings")
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0].Text, "- Валюта: USD")
	assert.Contains(t, replies[0].Text, "- Напоминания: включены")
	require.Len(t, replies[0].Keyboard, 2)
	assert.Equal(t, fmt.Sprintf("cfg:t:%d", groupID), replies[0].Keyboard[0][0].Data)
}

func TestSettingsCallbacks(t *testing.T) {
	d, store := setupDispatcher(t)
	ctx := context.Background()
	send(t, d, alice, "/settings")

	reply := press(t, d, alice, fmt.Sprintf("cfg:t:%d", groupID))
	assert.Equal(t, "Настройки обновлены", reply.Toast)
	assert.Contains(t, reply.EditText, "Напоминания: выключены")
	assert.Equal(t, "🔔 Включить напоминания", reply.Keyboard[0][0].Text)

	reply = press(t, d, alice, fmt.Sprintf("cfg:h:%d:12-00", groupID))
	assert.Equal(t, "Время: 12:00", reply.Toast)

	reply = press(t, d, alice, fmt.Sprintf("cfg:h:%d:25-00", groupID))
	assert.Equal(t, "Некорректное время", reply.Toast)

	reply = press(t, d, alice, "cfg:t:-42")
	assert.Equal(t, "Эти настройки для другого чата", reply.Toast)

	group, err := store.GetGroup(ctx, groupID)
	require.NoError(t, err)
	assert.False(t, group.ReminderEnabled)
	assert.Equal(t, "12:00", group.ReminderTime)
}

func TestStartInGroupOffersApp(t *testing.T) {
	d, _ := setupDispatcher(t)

	replies := send(t, d, alice, "/start")
	require.Len(t, replies, 2)
	assert.Contains(t, replies[0].Text, "Бот активен в группе")
	assert.Equal(t, fmt.Sprintf("https://app.example/?group_id=%d", groupID), replies[1].Keyboard[0][0].URL)
}
