package http

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"luma_assistant/internal/entities"
	"luma_assistant/internal/infrastructure"
	"luma_assistant/internal/logging"
	"luma_assistant/internal/usecases"
)

// Dependencies groups what the router needs. Auth, Dashboard, WhatsApp and
// Limiter are optional.
type Dependencies struct {
	Messages     *usecases.MessageService
	Tasks        *usecases.BusinessTasks
	Auth         *usecases.AuthUsecase
	Dashboard    *usecases.DashboardUsecase
	WhatsApp     *infrastructure.WhatsAppGateway
	Limiter      *infrastructure.MessageRateLimiter
	Middleware   *Middleware
	Gatherer     prometheus.Gatherer
	MaxBodyBytes int64
	Logger       logrus.FieldLogger
}

type Handler struct {
	messages *usecases.MessageService
	tasks    *usecases.BusinessTasks
	limiter  *infrastructure.MessageRateLimiter
	logger   logrus.FieldLogger
	now      func() time.Time
}

func NewHandler(messages *usecases.MessageService, tasks *usecases.BusinessTasks, limiter *infrastructure.MessageRateLimiter, logger logrus.FieldLogger) *Handler {
	return &Handler{
		messages: messages,
		tasks:    tasks,
		limiter:  limiter,
		logger:   logger.WithField("component", "http"),
		now:      time.Now,
	}
}

func SetupRoutes(r *gin.Engine, d Dependencies) {
	h := NewHandler(d.Messages, d.Tasks, d.Limiter, d.Logger)

	if d.MaxBodyBytes <= 0 {
		d.MaxBodyBytes = 1 << 20
	}
	r.Use(SecurityHeaders())
	r.Use(RequestSizeLimiter(d.MaxBodyBytes))
	r.Use(RequestLogger(d.Logger))

	r.GET("/health", h.Health)
	gatherer := d.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	webhook := r.Group("/webhook")
	{
		webhook.POST("/whatsapp", h.HandleWhatsAppWebhook)
		webhook.POST("/whatsapp/status", h.HandleDeliveryStatus)
		webhook.POST("/alert", h.HandleAlert)
	}

	if d.Auth == nil || d.Dashboard == nil || d.Middleware == nil {
		return
	}
	admin := NewAdminHandler(d.Auth, d.Dashboard, d.WhatsApp, d.Logger)

	r.POST("/api/auth/login", admin.Login)

	api := r.Group("/api/admin")
	api.Use(d.Middleware.CORSMiddleware())
	api.Use(d.Middleware.AuthRequired())
	api.Use(d.Middleware.AdminRequired())
	api.Use(d.Middleware.RateLimitPerOperator(5, 10))
	{
		api.GET("/stats", admin.GetStats)
		api.GET("/usage", admin.GetUsage)
		api.GET("/clients/:id", admin.GetClient)
		api.POST("/clients/:id/resolve", admin.ResolveClient)
		api.GET("/tasks", admin.ListTasks)
		api.DELETE("/tasks/:name", admin.DeleteTask)
		api.POST("/briefing", admin.TriggerBriefing)
		api.GET("/whatsapp/status", admin.GetWhatsAppStatus)
		api.GET("/whatsapp/qr", admin.GetWhatsAppQR)
		api.POST("/whatsapp/logout", admin.LogoutWhatsApp)
	}
}

type webhookPayload struct {
	ID          string `json:"id"`
	From        string `json:"from"`
	Message     string `json:"message"`
	Timestamp   any    `json:"timestamp"`
	ContactName string `json:"contact_name"`
	MediaType   string `json:"media_type"`
}

// HandleWhatsAppWebhook answers one client message synchronously.
func (h *Handler) HandleWhatsAppWebhook(c *gin.Context) {
	var payload webhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "invalid JSON payload"})
		return
	}

	from := strings.TrimSpace(payload.From)
	text := TruncateString(SanitizeString(payload.Message), MaxMessageLength)
	if !ValidClientID(from) || strings.TrimSpace(text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "from and message are required"})
		return
	}

	if h.limiter != nil && !h.limiter.Allow(from) {
		wait := h.limiter.WaitTime(from)
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
		c.JSON(http.StatusTooManyRequests, gin.H{"status": "error", "error": "too many messages"})
		return
	}

	msg := entities.InboundMessage{
		ID:          payload.ID,
		From:        from,
		ContactName: TruncateString(SanitizeString(payload.ContactName), MaxNameLength),
		Content:     text,
		MediaType:   payload.MediaType,
		Platform:    "webhook",
		ReceivedAt:  parseTimestamp(payload.Timestamp, h.now()),
	}

	reply, err := h.messages.ProcessMessage(c.Request.Context(), msg)
	if errors.Is(err, usecases.ErrInvalidMessage) {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": err.Error()})
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("webhook processing failed")
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": "processing failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":        "success",
		"luma_response": reply.Text,
		"processed_at":  h.now().Format(time.RFC3339),
	})
}

// HandleDeliveryStatus acknowledges delivery receipts.
func (h *Handler) HandleDeliveryStatus(c *gin.Context) {
	var payload struct {
		ID        string `json:"id"`
		Status    string `json:"status"`
		Recipient string `json:"recipient"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "invalid JSON payload"})
		return
	}
	h.logger.WithFields(logrus.Fields{
		"message_id": payload.ID,
		"delivery":   payload.Status,
		"client":     logging.MaskPhone(payload.Recipient),
	}).Info("delivery status")
	c.JSON(http.StatusOK, gin.H{"status": "received"})
}

// HandleAlert forwards an external alert (e-mail watcher, shop backend) to
// the operator.
func (h *Handler) HandleAlert(c *gin.Context) {
	if h.tasks == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "error": "alerts disabled"})
		return
	}
	var payload struct {
		Message string `json:"message"`
		Source  string `json:"source"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "invalid JSON payload"})
		return
	}

	id, err := h.tasks.RaiseAlert(c.Request.Context(), SanitizeString(payload.Message), SanitizeString(payload.Source))
	if errors.Is(err, usecases.ErrEmptyAlert) {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": err.Error()})
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("alert delivery failed")
		c.JSON(http.StatusBadGateway, gin.H{"status": "error", "error": "alert delivery failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "alert_sent", "alert_id": id})
}

func (h *Handler) Health(c *gin.Context) {
	body := gin.H{
		"status":    "healthy",
		"service":   "luma",
		"in_flight": h.messages.InFlight(),
		"timestamp": h.now().Format(time.RFC3339),
	}
	if h.limiter != nil {
		body["rate_limiter"] = h.limiter.GetStats()
	}
	c.JSON(http.StatusOK, body)
}

// parseTimestamp accepts unix seconds (number or string) or RFC 3339.
func parseTimestamp(v any, fallback time.Time) time.Time {
	switch ts := v.(type) {
	case float64:
		if ts > 0 {
			return time.Unix(int64(ts), 0)
		}
	case string:
		if n, err := strconv.ParseInt(ts, 10, 64); err == nil && n > 0 {
			return time.Unix(n, 0)
		}
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			return t
		}
	}
	return fallback
}
