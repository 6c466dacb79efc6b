package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"luma_assistant/internal/entities"
	"luma_assistant/internal/infrastructure"
	"luma_assistant/internal/interfaces"
	"luma_assistant/internal/logging"
	"luma_assistant/internal/repository"
)

var ErrInvalidMessage = errors.New("invalid message")

// ExchangeRecorder persists processed exchanges outside the in-memory store.
type ExchangeRecorder interface {
	Record(ctx context.Context, rec repository.ExchangeRecord) error
}

// MessageService is the entry point for every inbound client message,
// whatever channel it came from.
type MessageService struct {
	detector  *Detector
	selector  *ResponseSelector
	exchanges ExchangeRecorder
	digest    *BusinessDigest
	sessions  *infrastructure.SessionManager
	metrics   *infrastructure.Metrics
	logger    logrus.FieldLogger
}

func NewMessageService(detector *Detector, selector *ResponseSelector, exchanges ExchangeRecorder, digest *BusinessDigest, metrics *infrastructure.Metrics, logger logrus.FieldLogger) *MessageService {
	return &MessageService{
		detector:  detector,
		selector:  selector,
		exchanges: exchanges,
		digest:    digest,
		sessions:  infrastructure.NewSessionManager(),
		metrics:   metrics,
		logger:    logger.WithField("component", "messages"),
	}
}

// ProcessMessage classifies the message and produces the reply. The only
// error is ErrInvalidMessage for an empty sender or body.
func (s *MessageService) ProcessMessage(ctx context.Context, msg entities.InboundMessage) (entities.Reply, error) {
	msg.From = strings.TrimSpace(msg.From)
	if msg.From == "" || isBlank(msg.Content) {
		s.metrics.ObserveInbound(msg.Platform, "invalid")
		return entities.Reply{}, fmt.Errorf("%w: client id and message are required", ErrInvalidMessage)
	}
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = time.Now()
	}

	reply := s.respond(ctx, msg)
	analysis := reply.Analysis

	s.metrics.ObserveInbound(msg.Platform, "ok")
	if s.digest != nil {
		s.digest.ObserveReply(reply)
	}
	s.logger.WithFields(logrus.Fields{
		"client":     logging.MaskPhone(msg.From),
		"platform":   msg.Platform,
		"msg_len":    len(msg.Content),
		"reply_len":  len(reply.Text),
		"intent":     analysis.Intent,
		"sentiment":  analysis.Sentiment,
		"confidence": fmt.Sprintf("%.2f", analysis.Confidence),
		"strategy":   reply.Strategy,
		"escalated":  reply.Escalated,
	}).Info("message processed")

	if s.exchanges != nil {
		rec := repository.ExchangeRecord{
			MessageID: msg.ID,
			ClientID:  msg.From,
			Platform:  msg.Platform,
			Message:   msg.Content,
			Response:  reply.Text,
			Language:  analysis.Language,
			Intent:    string(analysis.Intent),
			Strategy:  reply.Strategy,
			Escalated: reply.Escalated,
			Reason:    reply.Reason,
			CreatedAt: msg.ReceivedAt,
		}
		if err := s.exchanges.Record(ctx, rec); err != nil {
			s.logger.WithError(err).Warn("failed to persist exchange")
		}
	}
	return reply, nil
}

// respond does not serialize messages of one client: the store hands out
// a receipt ticket at Begin, and history is ordered by it when the reply
// is recorded, so backend calls for the same client may overlap.
func (s *MessageService) respond(ctx context.Context, msg entities.InboundMessage) entities.Reply {
	done := s.sessions.Enter(msg.From)
	defer done()
	return s.selector.Respond(ctx, msg, s.detector.Detect(msg.Content))
}

// InFlight returns how many clients have a message being processed.
func (s *MessageService) InFlight() int { return s.sessions.Pending() }

// HandleAndReply processes a channel message and sends the reply back
// through the messenger it arrived on.
func (s *MessageService) HandleAndReply(ctx context.Context, msg entities.InboundMessage, messenger interfaces.Messenger) error {
	reply, err := s.ProcessMessage(ctx, msg)
	if err != nil {
		return err
	}
	if err := messenger.SendMessage(ctx, msg.From, reply.Text); err != nil {
		return fmt.Errorf("send reply to %s: %w", logging.MaskPhone(msg.From), err)
	}
	return nil
}
