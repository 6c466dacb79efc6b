package usecases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"luma_assistant/internal/entities"
	"luma_assistant/internal/infrastructure"
	"luma_assistant/internal/interfaces"
	"luma_assistant/internal/logging"
	"luma_assistant/internal/repository"
)

const (
	StrategyGenerative = "generative"
	StrategyTemplate   = "template"
	StrategyStatic     = "static"
	StrategyHandoff    = "handoff"

	staticReply  = "Merci pour votre message ! Notre équipe vous répond très rapidement."
	handoffReply = "OK %s, je vais te mettre en contact avec %s directement. Elle va te rappeler dans 2 minutes !"
)

type SelectorConfig struct {
	Profile       BusinessProfile
	Temperature   float64
	MaxTokens     int
	Timeout       time.Duration
	MaxReplyChars int
}

// turn carries everything a reply strategy needs for one message.
type turn struct {
	msg      entities.InboundMessage
	snapshot entities.ClientContext
	analysis entities.IntentAnalysis
	lang     string
	name     string
}

type replyStrategy struct {
	name string
	run  func(ctx context.Context, t *turn) (string, error)
}

// ResponseSelector decides between handoff, generative, templated and
// static replies, and records every exchange in the context store.
type ResponseSelector struct {
	store     *repository.ContextStore
	catalog   *repository.TemplateCatalog
	policy    *EscalationPolicy
	detector  *Detector
	ai        interfaces.AIClient
	notifier  interfaces.Notifier
	sanitizer *ReplySanitizer
	metrics   *infrastructure.Metrics
	cfg       SelectorConfig
	logger    logrus.FieldLogger

	strategies []replyStrategy
}

// NewResponseSelector wires the selector. ai and notifier may be nil.
func NewResponseSelector(
	store *repository.ContextStore,
	catalog *repository.TemplateCatalog,
	policy *EscalationPolicy,
	detector *Detector,
	ai interfaces.AIClient,
	notifier interfaces.Notifier,
	metrics *infrastructure.Metrics,
	cfg SelectorConfig,
	logger logrus.FieldLogger,
) *ResponseSelector {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 120
	}
	s := &ResponseSelector{
		store:     store,
		catalog:   catalog,
		policy:    policy,
		detector:  detector,
		ai:        ai,
		notifier:  notifier,
		sanitizer: NewReplySanitizer(catalog, cfg.MaxReplyChars),
		metrics:   metrics,
		cfg:       cfg,
		logger:    logger.WithField("component", "selector"),
	}
	s.strategies = []replyStrategy{
		{StrategyGenerative, s.generative},
		{StrategyTemplate, s.template},
		{StrategyStatic, s.static},
	}
	return s
}

// Respond always returns a non-empty reply and never fails; backend and
// template problems degrade to the next strategy.
func (s *ResponseSelector) Respond(ctx context.Context, msg entities.InboundMessage, analysis entities.IntentAnalysis) entities.Reply {
	snapshot, ticket := s.store.Begin(msg.From, msg.ContactName)
	t := &turn{
		msg:      msg,
		snapshot: snapshot,
		analysis: analysis,
		lang:     s.replyLanguage(analysis, snapshot),
		name:     displayName(snapshot.Name),
	}

	reply := entities.Reply{Analysis: analysis}
	decision := s.policy.ShouldEscalate(msg.Content, len(snapshot.History))
	if decision.Escalate {
		reply.Text = s.handoffText(t)
		reply.Strategy = StrategyHandoff
		reply.Escalated = true
		reply.Reason = decision.Reason
		s.store.MarkEscalated(msg.From, decision.Reason)
		s.metrics.ObserveEscalation(decision.Reason)
	} else {
		reply.Text, reply.Strategy = s.runStrategies(ctx, t)
	}

	if err := s.store.RecordExchange(ticket, msg.Content, reply.Text); err != nil {
		s.logger.WithError(err).Error("failed to record exchange")
	}
	s.updateLanguagePreference(msg, analysis, snapshot)
	s.metrics.ObserveReply(reply.Strategy)

	if reply.Escalated {
		s.notifyHandoff(ctx, t, reply)
	}
	return reply
}

func (s *ResponseSelector) runStrategies(ctx context.Context, t *turn) (string, string) {
	for _, st := range s.strategies {
		text, err := st.run(ctx, t)
		if err == nil && !isBlank(text) {
			return text, st.name
		}
		s.logger.WithFields(logrus.Fields{
			"strategy": st.name,
			"client":   logging.MaskPhone(t.msg.From),
		}).WithError(err).Debug("reply strategy skipped")
	}
	return staticReply, StrategyStatic
}

func (s *ResponseSelector) generative(ctx context.Context, t *turn) (string, error) {
	if s.ai == nil {
		return "", interfaces.ErrBackendUnavailable
	}
	cctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	req := BuildPrompt(s.cfg.Profile, t.lang, t.snapshot, t.msg.Content, s.cfg.Temperature, s.cfg.MaxTokens)
	start := time.Now()
	raw, err := s.ai.Complete(cctx, req)
	if err != nil {
		if errors.Is(cctx.Err(), context.DeadlineExceeded) && !errors.Is(err, interfaces.ErrBackendTimeout) {
			err = fmt.Errorf("%w: %v", interfaces.ErrBackendTimeout, err)
		}
		outcome := "error"
		if errors.Is(err, interfaces.ErrBackendTimeout) {
			outcome = "timeout"
		}
		s.metrics.ObserveBackendLatency(outcome, time.Since(start).Seconds())
		s.logger.WithError(err).Warn("generative backend failed, falling back to templates")
		return "", err
	}
	s.metrics.ObserveBackendLatency("ok", time.Since(start).Seconds())
	return s.sign(s.sanitizer.Sanitize(raw, t.lang), t.lang), nil
}

func (s *ResponseSelector) template(_ context.Context, t *turn) (string, error) {
	category := TemplateCategory(t.analysis, t.snapshot.FirstContact)
	text, err := s.catalog.Render(t.lang, category, s.slots(t))
	if err != nil {
		s.logger.WithFields(logrus.Fields{"language": t.lang, "category": category}).WithError(err).Warn("template missing")
		return "", err
	}
	return s.sign(text, t.lang), nil
}

func (s *ResponseSelector) static(_ context.Context, _ *turn) (string, error) {
	return staticReply, nil
}

func (s *ResponseSelector) handoffText(t *turn) string {
	text, err := s.catalog.Render(t.lang, "handoff", s.slots(t))
	if err != nil {
		return fmt.Sprintf(handoffReply, t.name, s.cfg.Profile.Owner)
	}
	return text
}

func (s *ResponseSelector) slots(t *turn) map[string]string {
	return map[string]string{
		"name":    t.name,
		"owner":   s.cfg.Profile.Owner,
		"hours":   s.cfg.Profile.ShopHours,
		"website": s.cfg.Profile.Website,
	}
}

func (s *ResponseSelector) sign(text, lang string) string {
	if sig := s.catalog.Signature(lang); sig != "" {
		return text + "\n\n" + sig
	}
	return text
}

// replyLanguage prefers what the message says, then what the client chose
// earlier, then the default.
func (s *ResponseSelector) replyLanguage(a entities.IntentAnalysis, c entities.ClientContext) string {
	lang := a.Language
	if !a.LanguageDetected && c.PreferredLanguage != "" {
		lang = c.PreferredLanguage
	}
	if !s.catalog.Has(lang, "general") {
		lang = s.catalog.DefaultLanguage()
	}
	return lang
}

func (s *ResponseSelector) updateLanguagePreference(msg entities.InboundMessage, a entities.IntentAnalysis, snapshot entities.ClientContext) {
	if lang, ok := s.detector.StrongLanguageSignal(msg.Content); ok {
		s.store.UpdateLanguagePreference(msg.From, lang)
		return
	}
	if snapshot.PreferredLanguage == "" && a.LanguageDetected {
		s.store.UpdateLanguagePreference(msg.From, a.Language)
	}
}

func (s *ResponseSelector) notifyHandoff(ctx context.Context, t *turn, reply entities.Reply) {
	if s.notifier == nil {
		return
	}
	evt := entities.NotificationEvent{
		ID:         uuid.NewString(),
		Type:       entities.EventHumanTransfer,
		ClientID:   t.msg.From,
		ClientName: t.name,
		Message:    t.msg.Content,
		Reason:     reply.Reason,
		Urgency:    t.analysis.Urgency,
		CreatedAt:  time.Now(),
	}
	if err := s.notifier.Notify(ctx, evt); err != nil {
		s.metrics.ObserveNotification(string(evt.Type), "error")
		s.logger.WithError(err).WithField("client", logging.MaskPhone(t.msg.From)).Error("handoff notification failed")
		return
	}
	s.metrics.ObserveNotification(string(evt.Type), "ok")
}

// TemplateCategory maps a classification onto a catalog category.
func TemplateCategory(a entities.IntentAnalysis, firstContact bool) string {
	if a.Confidence == 0 {
		return string(entities.IntentGeneral)
	}
	switch a.Intent {
	case entities.IntentGreeting:
		if firstContact {
			return "greeting_new"
		}
		return "greeting_return"
	case entities.IntentProductQuestion:
		switch a.Topic {
		case entities.TopicPrices, entities.TopicHours, entities.TopicProducts:
			return string(a.Topic)
		}
	}
	return string(a.Intent)
}
