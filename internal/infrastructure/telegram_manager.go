package infrastructure

import (
	"context"
	"fmt"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"luma_assistant/internal/entities"
	"luma_assistant/internal/logging"
)

// telegramAPI is the part of *tgbotapi.BotAPI the operator bot uses.
type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// CommandHandler answers an operator command such as "/status".
type CommandHandler func(ctx context.Context, command, args string) string

// TelegramOperatorBot pushes notification events to the owner's chat and
// answers a few commands sent from that chat.
type TelegramOperatorBot struct {
	api     telegramAPI
	chatID  int64
	botName string
	logger  logrus.FieldLogger

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}

	CommandHandler CommandHandler
}

func NewTelegramOperatorBot(token string, chatID int64, logger logrus.FieldLogger) (*TelegramOperatorBot, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("invalid telegram token: %w", err)
	}
	return newTelegramOperatorBot(bot, bot.Self.UserName, chatID, logger), nil
}

func newTelegramOperatorBot(api telegramAPI, name string, chatID int64, logger logrus.FieldLogger) *TelegramOperatorBot {
	return &TelegramOperatorBot{
		api:     api,
		chatID:  chatID,
		botName: name,
		logger:  logger.WithField("component", "telegram"),
	}
}

func (b *TelegramOperatorBot) Name() string { return b.botName }

// Notify implements interfaces.Notifier.
func (b *TelegramOperatorBot) Notify(_ context.Context, evt entities.NotificationEvent) error {
	msg := tgbotapi.NewMessage(b.chatID, FormatEvent(evt))
	if evt.Type == entities.EventHumanTransfer && evt.ClientID != "" {
		kb := HandoffKeyboard(evt.ClientID)
		msg.ReplyMarkup = &kb
	}
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// Run polls for operator commands until ctx is done or Stop is called.
func (b *TelegramOperatorBot) Run(ctx context.Context) error {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return nil
	}
	b.running = true
	b.stopChan = make(chan struct{})
	stop := b.stopChan
	b.mu.Unlock()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	b.logger.WithField("bot", b.botName).Info("telegram polling started")
	for {
		select {
		case <-ctx.Done():
			b.markStopped()
			return nil
		case <-stop:
			b.markStopped()
			return nil
		case update, ok := <-updates:
			if !ok {
				b.markStopped()
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *TelegramOperatorBot) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running && b.stopChan != nil {
		close(b.stopChan)
		b.stopChan = nil
	}
}

func (b *TelegramOperatorBot) markStopped() {
	b.mu.Lock()
	b.running = false
	b.mu.Unlock()
	b.logger.Info("telegram polling stopped")
}

func (b *TelegramOperatorBot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.Message == nil || !update.Message.IsCommand() {
		return
	}
	// only the operator chat may drive the bot
	if update.Message.Chat.ID != b.chatID {
		b.logger.WithField("chat_id", update.Message.Chat.ID).Warn("ignoring command from unknown chat")
		return
	}

	text := "Commandes : /status /tasks /briefing"
	if b.CommandHandler != nil {
		if out := b.CommandHandler(ctx, update.Message.Command(), update.Message.CommandArguments()); out != "" {
			text = out
		}
	}
	if _, err := b.api.Send(tgbotapi.NewMessage(b.chatID, text)); err != nil {
		b.logger.WithError(err).Error("failed to answer command")
	}
}

// FormatEvent renders an event as an operator chat message.
func FormatEvent(evt entities.NotificationEvent) string {
	if evt.Type != entities.EventHumanTransfer {
		return evt.Message
	}
	var sb strings.Builder
	sb.WriteString("🔔 Transfert client\n")
	fmt.Fprintf(&sb, "Client : %s (%s)\n", evt.ClientName, logging.MaskPhone(evt.ClientID))
	fmt.Fprintf(&sb, "Raison : %s\n", evt.Reason)
	if evt.Urgency == entities.UrgencyHigh {
		sb.WriteString("Urgence : haute 🔴\n")
	}
	fmt.Fprintf(&sb, "Message : %s", evt.Message)
	return sb.String()
}

// HandoffKeyboard links straight to the client's WhatsApp conversation.
func HandoffKeyboard(clientID string) tgbotapi.InlineKeyboardMarkup {
	phone := strings.TrimPrefix(clientID, "+")
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("💬 Ouvrir WhatsApp", "https://wa.me/"+phone),
		),
	)
}

// LogNotifier writes events to the log; used when no operator channel is
// configured.
type LogNotifier struct {
	logger logrus.FieldLogger
}

func NewLogNotifier(logger logrus.FieldLogger) *LogNotifier {
	return &LogNotifier{logger: logger.WithField("component", "notifier")}
}

func (n *LogNotifier) Notify(_ context.Context, evt entities.NotificationEvent) error {
	n.logger.WithFields(logrus.Fields{
		"event_id": evt.ID,
		"type":     evt.Type,
		"client":   logging.MaskPhone(evt.ClientID),
		"reason":   evt.Reason,
		"urgency":  evt.Urgency,
	}).Info(evt.Message)
	return nil
}
