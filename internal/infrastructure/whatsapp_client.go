package infrastructure

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"go.mau.fi/whatsmeow"
	waProto "go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"

	"luma_assistant/internal/entities"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

type WhatsAppClient struct {
	Client *whatsmeow.Client
	logger logrus.FieldLogger

	qrCode string
	qrLock sync.RWMutex
}

func NewWhatsAppClient(ctx context.Context, dbPath string, logger logrus.FieldLogger) (*WhatsAppClient, error) {
	container, err := sqlstore.New(ctx, "sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)", NewWALogger(logger, "Database"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to device store: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	client := whatsmeow.NewClient(deviceStore, NewWALogger(logger, "Client"))
	return &WhatsAppClient{
		Client: client,
		logger: logger,
	}, nil
}

func (w *WhatsAppClient) Connect(ctx context.Context) error {
	if w.Client.Store.ID != nil {
		if err := w.Client.Connect(); err != nil {
			return err
		}
		w.logger.Info("whatsapp connected (existing session)")
		return nil
	}

	// no session yet: pair through a QR code
	qrChan, err := w.Client.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("qr channel: %w", err)
	}
	if err := w.Client.Connect(); err != nil {
		return err
	}
	go w.watchQR(qrChan)
	return nil
}

func (w *WhatsAppClient) watchQR(qrChan <-chan whatsmeow.QRChannelItem) {
	for evt := range qrChan {
		if evt.Event == whatsmeow.QRChannelEventCode {
			w.qrLock.Lock()
			w.qrCode = evt.Code
			w.qrLock.Unlock()
			w.logger.Info("new whatsapp QR code available")
			continue
		}
		if evt.Event == "success" {
			w.qrLock.Lock()
			w.qrCode = ""
			w.qrLock.Unlock()
		}
		w.logger.WithField("event", evt.Event).Info("whatsapp login event")
	}
}

func (w *WhatsAppClient) GetQR() string {
	w.qrLock.RLock()
	defer w.qrLock.RUnlock()
	return w.qrCode
}

func (w *WhatsAppClient) IsLoggedIn() bool {
	return w.Client.Store.ID != nil
}

// IsConnected returns true if client is connected and logged in
func (w *WhatsAppClient) IsConnected() bool {
	return w.Client.IsConnected() && w.Client.Store.ID != nil
}

func (w *WhatsAppClient) GetPhoneNumber() string {
	if w.Client.Store.ID == nil {
		return ""
	}
	return w.Client.Store.ID.User
}

func (w *WhatsAppClient) GetName() string {
	if w.Client.Store.ID == nil {
		return ""
	}
	return w.Client.Store.PushName
}

// Logout clears the session and reconnects so a fresh QR is offered.
func (w *WhatsAppClient) Logout(ctx context.Context) error {
	w.qrLock.Lock()
	w.qrCode = ""
	w.qrLock.Unlock()

	if err := w.Client.Logout(ctx); err != nil {
		return err
	}
	w.Client.Disconnect()
	return w.Connect(ctx)
}

func (w *WhatsAppClient) Disconnect() {
	w.Client.Disconnect()
}

func (w *WhatsAppClient) AddHandler(handler func(interface{})) {
	w.Client.AddEventHandler(handler)
}

func (w *WhatsAppClient) SendMessage(ctx context.Context, to, content string) error {
	jid, err := ToJID(to)
	if err != nil {
		return err
	}
	_, err = w.Client.SendMessage(ctx, jid, &waProto.Message{
		Conversation: &content,
	})
	return err
}

// SendTyping shows the "typing" indicator in the client's chat.
func (w *WhatsAppClient) SendTyping(ctx context.Context, to string) {
	jid, err := ToJID(to)
	if err != nil {
		return
	}
	_ = w.Client.SendChatPresence(ctx, jid, types.ChatPresenceComposing, types.ChatPresenceMediaText)
}

// ToJID turns a bare phone number ("33612345678" or "+33 6 12...") into a
// user JID.
func ToJID(phone string) (types.JID, error) {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)
	if digits == "" {
		return types.JID{}, fmt.Errorf("invalid number format: %q", phone)
	}
	return types.NewJID(digits, types.DefaultUserServer), nil
}

// ParseMessage converts a whatsmeow message event into an inbound message.
// ok is false for events the assistant must not answer: own messages,
// groups, broadcasts and messages without text.
func ParseMessage(evt *events.Message) (entities.InboundMessage, bool) {
	if evt == nil || evt.Message == nil {
		return entities.InboundMessage{}, false
	}
	info := evt.Info
	if info.IsFromMe || info.IsGroup || info.Chat.Server == types.BroadcastServer {
		return entities.InboundMessage{}, false
	}

	content := evt.Message.GetConversation()
	if content == "" {
		content = evt.Message.GetExtendedTextMessage().GetText()
	}
	if strings.TrimSpace(content) == "" {
		return entities.InboundMessage{}, false
	}

	return entities.InboundMessage{
		ID:          info.ID,
		From:        info.Sender.User,
		ContactName: info.PushName,
		Content:     content,
		MediaType:   info.MediaType,
		Platform:    "whatsapp",
		ReceivedAt:  info.Timestamp,
	}, true
}

// waLogger routes whatsmeow logs through logrus. whatsmeow is chatty at
// info level, so info is demoted to debug.
type waLogger struct {
	entry logrus.FieldLogger
}

func NewWALogger(logger logrus.FieldLogger, module string) waLog.Logger {
	return &waLogger{entry: logger.WithField("module", "whatsmeow/"+module)}
}

func (l *waLogger) Warnf(msg string, args ...interface{})  { l.entry.Warnf(msg, args...) }
func (l *waLogger) Errorf(msg string, args ...interface{}) { l.entry.Errorf(msg, args...) }
func (l *waLogger) Infof(msg string, args ...interface{})  { l.entry.Debugf(msg, args...) }
func (l *waLogger) Debugf(msg string, args ...interface{}) { l.entry.Debugf(msg, args...) }
func (l *waLogger) Sub(module string) waLog.Logger {
	return &waLogger{entry: l.entry.WithField("sub", module)}
}
