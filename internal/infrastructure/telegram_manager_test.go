package infrastructure

import (
	"context"
	"errors"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"luma_assistant/internal/entities"
	"luma_assistant/internal/logging"
)

type fakeTelegram struct {
	mu      sync.Mutex
	sent    []tgbotapi.MessageConfig
	err     error
	updates chan tgbotapi.Update
}

func (f *fakeTelegram) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, m)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeTelegram) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeTelegram) StopReceivingUpdates() {}

func (f *fakeTelegram) messages() []tgbotapi.MessageConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tgbotapi.MessageConfig(nil), f.sent...)
}

func TestTelegramOperatorBot_NotifyHandoff(t *testing.T) {
	api := &fakeTelegram{}
	bot := newTelegramOperatorBot(api, "luma_bot", 42, logging.Discard())

	err := bot.Notify(context.Background(), entities.NotificationEvent{
		Type:       entities.EventHumanTransfer,
		ClientID:   "+33612345678",
		ClientName: "Marie",
		Message:    "I need a refund, this is urgent",
		Reason:     "urgent keyword",
		Urgency:    entities.UrgencyHigh,
	})
	require.NoError(t, err)

	sent := api.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, int64(42), sent[0].ChatID)
	assert.Contains(t, sent[0].Text, "Marie (***5678)")
	assert.Contains(t, sent[0].Text, "urgent keyword")
	assert.NotContains(t, sent[0].Text, "33612345678")

	kb, ok := sent[0].ReplyMarkup.(*tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.NotNil(t, kb.InlineKeyboard[0][0].URL)
	assert.Equal(t, "https://wa.me/33612345678", *kb.InlineKeyboard[0][0].URL)
}

func TestTelegramOperatorBot_NotifyUpdateIsPlainText(t *testing.T) {
	api := &fakeTelegram{}
	bot := newTelegramOperatorBot(api, "luma_bot", 42, logging.Discard())

	require.NoError(t, bot.Notify(context.Background(), entities.NotificationEvent{
		Type:    entities.EventBusinessUpdate,
		Message: "Petit point :\nRien à signaler.",
	}))
	sent := api.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "Petit point :\nRien à signaler.", sent[0].Text)
	assert.Nil(t, sent[0].ReplyMarkup)
}

func TestTelegramOperatorBot_NotifyError(t *testing.T) {
	api := &fakeTelegram{err: errors.New("chat not found")}
	bot := newTelegramOperatorBot(api, "luma_bot", 42, logging.Discard())

	err := bot.Notify(context.Background(), entities.NotificationEvent{Type: entities.EventUrgentAlert, Message: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}

func command(chatID int64, text string, cmdLen int) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Text:     text,
		Chat:     &tgbotapi.Chat{ID: chatID},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: cmdLen}},
	}}
}

func TestTelegramOperatorBot_Commands(t *testing.T) {
	api := &fakeTelegram{updates: make(chan tgbotapi.Update, 2)}
	bot := newTelegramOperatorBot(api, "luma_bot", 42, logging.Discard())

	var got []string
	bot.CommandHandler = func(_ context.Context, cmd, args string) string {
		got = append(got, cmd+"|"+args)
		return "ok " + cmd
	}

	api.updates <- command(7, "/status", 7) // stranger, ignored
	api.updates <- command(42, "/tasks all", 6)
	close(api.updates)

	require.NoError(t, bot.Run(context.Background()))

	assert.Equal(t, []string{"tasks|all"}, got)
	sent := api.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "ok tasks", sent[0].Text)
}

func TestLogNotifier(t *testing.T) {
	n := NewLogNotifier(logging.Discard())
	assert.NoError(t, n.Notify(context.Background(), entities.NotificationEvent{Type: entities.EventUrgentAlert, Message: "x"}))
}
