package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
	"go.mau.fi/whatsmeow/types/events"

	"luma_assistant/internal/entities"
	"luma_assistant/internal/logging"
)

var ErrWhatsAppNotConnected = errors.New("whatsapp not connected")

// InboundHandler processes one client message coming from WhatsApp.
type InboundHandler func(ctx context.Context, msg entities.InboundMessage)

type WhatsAppStatus struct {
	Enabled     bool   `json:"enabled"`
	Connected   bool   `json:"connected"`
	LoggedIn    bool   `json:"logged_in"`
	Phone       string `json:"phone,omitempty"`
	Name        string `json:"name,omitempty"`
	QRAvailable bool   `json:"qr_available"`
}

// WhatsAppGateway owns the business WhatsApp session and hands every
// incoming text message to the handler.
type WhatsAppGateway struct {
	dbPath  string
	logger  logrus.FieldLogger
	metrics *Metrics

	mu     sync.RWMutex
	client *WhatsAppClient
	ctx    context.Context
	wg     sync.WaitGroup

	Handler InboundHandler
	Limiter *MessageRateLimiter
}

func NewWhatsAppGateway(dbPath string, metrics *Metrics, logger logrus.FieldLogger) *WhatsAppGateway {
	return &WhatsAppGateway{
		dbPath:  dbPath,
		metrics: metrics,
		logger:  logger.WithField("component", "whatsapp"),
		ctx:     context.Background(),
	}
}

// Run connects the session and blocks until ctx is done, then waits for
// in-flight messages.
func (g *WhatsAppGateway) Run(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(g.dbPath), 0o755); err != nil {
		return fmt.Errorf("create device directory: %w", err)
	}
	client, err := NewWhatsAppClient(ctx, g.dbPath, g.logger)
	if err != nil {
		return err
	}
	client.AddHandler(g.handleEvent)

	g.mu.Lock()
	g.client = client
	g.ctx = ctx
	g.mu.Unlock()

	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("whatsapp connect: %w", err)
	}

	<-ctx.Done()
	client.Disconnect()
	g.wg.Wait()
	g.logger.Info("whatsapp gateway stopped")
	return nil
}

func (g *WhatsAppGateway) handleEvent(evt interface{}) {
	switch v := evt.(type) {
	case *events.Message:
		msg, ok := ParseMessage(v)
		if !ok {
			return
		}
		g.dispatch(msg)
	case *events.Connected:
		g.logger.Info("whatsapp connected")
	case *events.Disconnected:
		g.logger.Warn("whatsapp disconnected")
	case *events.LoggedOut:
		g.logger.Warn("whatsapp session logged out")
	}
}

func (g *WhatsAppGateway) dispatch(msg entities.InboundMessage) {
	if g.Handler == nil {
		return
	}
	if g.Limiter != nil && !g.Limiter.Allow(msg.From) {
		g.metrics.ObserveInbound("whatsapp", "rate_limited")
		g.logger.WithField("client", logging.MaskPhone(msg.From)).Warn("whatsapp message dropped by rate limit")
		return
	}
	g.mu.RLock()
	ctx := g.ctx
	g.mu.RUnlock()

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				g.logger.WithFields(logrus.Fields{
					"client": logging.MaskPhone(msg.From),
					"panic":  r,
				}).Error("whatsapp handler panicked")
			}
		}()
		g.Handler(ctx, msg)
	}()
}

// Wait blocks until every dispatched message has been handled.
func (g *WhatsAppGateway) Wait() { g.wg.Wait() }

// SendMessage implements interfaces.Messenger.
func (g *WhatsAppGateway) SendMessage(ctx context.Context, to, content string) error {
	c := g.current()
	if c == nil || !c.IsConnected() {
		g.metrics.ObserveInbound("whatsapp", "send_unavailable")
		return ErrWhatsAppNotConnected
	}
	c.SendTyping(ctx, to)
	return c.SendMessage(ctx, to, content)
}

func (g *WhatsAppGateway) QR() string {
	if c := g.current(); c != nil {
		return c.GetQR()
	}
	return ""
}

func (g *WhatsAppGateway) Status() WhatsAppStatus {
	c := g.current()
	if c == nil {
		return WhatsAppStatus{Enabled: true}
	}
	return WhatsAppStatus{
		Enabled:     true,
		Connected:   c.IsConnected(),
		LoggedIn:    c.IsLoggedIn(),
		Phone:       c.GetPhoneNumber(),
		Name:        c.GetName(),
		QRAvailable: c.GetQR() != "",
	}
}

// Logout drops the session; a new QR becomes available afterwards.
func (g *WhatsAppGateway) Logout(ctx context.Context) error {
	c := g.current()
	if c == nil || (!c.IsLoggedIn() && !c.Client.IsConnected()) {
		return nil
	}
	return c.Logout(ctx)
}

func (g *WhatsAppGateway) current() *WhatsAppClient {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.client
}
