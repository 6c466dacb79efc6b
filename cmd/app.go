package main

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"luma_assistant/internal/config"
	"luma_assistant/internal/entities"
	"luma_assistant/internal/infrastructure"
	"luma_assistant/internal/interfaces"
	httpapi "luma_assistant/internal/interfaces/http"
	"luma_assistant/internal/logging"
	"luma_assistant/internal/repository"
	"luma_assistant/internal/usecases"
)

// app holds the wired components of a running assistant.
type app struct {
	cfg      *config.Configuration
	logger   *logrus.Logger
	router   *gin.Engine
	poller   *infrastructure.TaskPoller
	limiter  *infrastructure.MessageRateLimiter
	telegram *infrastructure.TelegramOperatorBot
	whatsapp *infrastructure.WhatsAppGateway

	closers []func()
}

func buildApp(ctx context.Context, cfg *config.Configuration, logger *logrus.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}
	loc := cfg.Location()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := infrastructure.NewMetrics(registry)

	catalog, err := repository.LoadTemplateCatalog(cfg.Conversation.TemplatesPath, repository.NewSeededRand(cfg.Conversation.RandomSeed))
	if err != nil {
		return nil, err
	}
	detector := usecases.NewDetector(usecases.DetectorConfig{
		DefaultLanguage: cfg.Business.DefaultLanguage,
		HoursStart:      cfg.Business.HoursStart,
		HoursEnd:        cfg.Business.HoursEnd,
		Location:        loc,
	})
	// every language the detector can report needs a full template set
	if err := catalog.Validate(detector.Languages()...); err != nil {
		return nil, fmt.Errorf("template catalog: %w", err)
	}

	store := repository.NewContextStore(cfg.Conversation.HistoryLimit)
	policy := usecases.NewEscalationPolicy(cfg.Conversation.EscalationThreshold)

	ai, err := infrastructure.NewAIClient(ctx,
		cfg.Generative.OpenRouterKey, cfg.Generative.OpenRouterURL, cfg.Generative.OpenRouterModel,
		cfg.Generative.GeminiKey, cfg.Generative.GeminiModel, logger)
	if err != nil {
		return nil, fmt.Errorf("generative backend: %w", err)
	}
	if ai == nil {
		logger.Warn("no generative backend configured, replies come from templates")
	}
	if c, ok := ai.(interface{ Close() error }); ok {
		a.closers = append(a.closers, func() { _ = c.Close() })
	}

	var notifier interfaces.Notifier = infrastructure.NewLogNotifier(logger)
	if cfg.TelegramEnabled() {
		bot, err := infrastructure.NewTelegramOperatorBot(cfg.Telegram.Token, cfg.Telegram.OperatorChatID, logger)
		if err != nil {
			return nil, err
		}
		a.telegram = bot
		notifier = bot
		logger.WithField("bot", bot.Name()).Info("operator notifications via telegram")
	}

	var exchanges *repository.ExchangeRepository
	if cfg.DatabaseURL != "" {
		pg, err := infrastructure.NewPostgresClient(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pg.Close)
		exchanges = repository.NewExchangeRepository(pg.Pool)
	}

	profile := usecases.BusinessProfile{
		Name:      cfg.Business.Name,
		Owner:     cfg.Business.Owner,
		ShopHours: cfg.Business.ShopHours,
		Website:   cfg.Business.Website,
	}
	selector := usecases.NewResponseSelector(store, catalog, policy, detector, ai, notifier, metrics, usecases.SelectorConfig{
		Profile:       profile,
		Temperature:   cfg.Generative.Temperature,
		MaxTokens:     cfg.Generative.MaxTokens,
		Timeout:       cfg.Generative.Timeout,
		MaxReplyChars: cfg.Conversation.MaxReplyChars,
	}, logger)

	digest := usecases.NewBusinessDigest()
	var recorder usecases.ExchangeRecorder
	var usage usecases.UsageReader
	if exchanges != nil {
		recorder, usage = exchanges, exchanges
	}
	messages := usecases.NewMessageService(detector, selector, recorder, digest, metrics, logger)

	a.poller = infrastructure.NewTaskPoller(cfg.Scheduler.PollInterval, loc, logger).WithMetrics(metrics)
	tasks := usecases.NewBusinessTasks(a.poller, catalog, store, digest, notifier, metrics,
		catalog.DefaultLanguage(), cfg.Scheduler.FollowUpDelay, logger)
	if err := tasks.RegisterDefaults(); err != nil {
		return nil, err
	}

	a.limiter = infrastructure.NewMessageRateLimiter(cfg.HTTP.WebhookRate, cfg.HTTP.WebhookBurst)

	if cfg.WhatsApp.Enabled {
		a.whatsapp = infrastructure.NewWhatsAppGateway(cfg.WhatsApp.DBPath, metrics, logger)
		a.whatsapp.Limiter = a.limiter
		a.whatsapp.Handler = func(ctx context.Context, msg entities.InboundMessage) {
			if err := messages.HandleAndReply(ctx, msg, a.whatsapp); err != nil {
				logger.WithError(err).WithField("client", logging.MaskPhone(msg.From)).Error("whatsapp reply failed")
			}
		}
	}

	dashboard := usecases.NewDashboardUsecase(store, a.poller, tasks, digest, usage, a.whatsapp)
	if a.telegram != nil {
		a.telegram.CommandHandler = dashboard.HandleCommand
	}

	var auth *usecases.AuthUsecase
	var middleware *httpapi.Middleware
	if cfg.AdminEnabled() {
		auth = usecases.NewAuthUsecase(cfg.Admin.JWTSecret)
		if err := auth.EnsureAdmin(cfg.Admin.Username, cfg.Admin.Password); err != nil {
			return nil, err
		}
		middleware = httpapi.NewMiddleware(cfg.Admin.JWTSecret)
	} else {
		logger.Info("admin API disabled (set ADMIN_PASSWORD and JWT_SECRET to enable)")
	}

	if cfg.LogrusLogLevel() < logrus.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	a.router = gin.New()
	a.router.Use(gin.Recovery())
	httpapi.SetupRoutes(a.router, httpapi.Dependencies{
		Messages:     messages,
		Tasks:        tasks,
		Auth:         auth,
		Dashboard:    dashboard,
		WhatsApp:     a.whatsapp,
		Limiter:      a.limiter,
		Middleware:   middleware,
		Gatherer:     registry,
		MaxBodyBytes: cfg.HTTP.MaxBodyBytes,
		Logger:       logger,
	})
	return a, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
