package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/skip2/go-qrcode"

	"luma_assistant/internal/infrastructure"
	"luma_assistant/internal/repository"
	"luma_assistant/internal/usecases"
)

type AdminHandler struct {
	auth      *usecases.AuthUsecase
	dashboard *usecases.DashboardUsecase
	whatsapp  *infrastructure.WhatsAppGateway
	logger    logrus.FieldLogger
}

func NewAdminHandler(auth *usecases.AuthUsecase, dashboard *usecases.DashboardUsecase, whatsapp *infrastructure.WhatsAppGateway, logger logrus.FieldLogger) *AdminHandler {
	return &AdminHandler{
		auth:      auth,
		dashboard: dashboard,
		whatsapp:  whatsapp,
		logger:    logger.WithField("component", "admin"),
	}
}

func (h *AdminHandler) Login(c *gin.Context) {
	var loginReq struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&loginReq); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	token, err := h.auth.Login(loginReq.Username, loginReq.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (h *AdminHandler) GetStats(c *gin.Context) {
	stats, err := h.dashboard.Stats(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("failed to fetch stats")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *AdminHandler) GetUsage(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "7"))
	usage, err := h.dashboard.UsageHistory(c.Request.Context(), days)
	if errors.Is(err, usecases.ErrUsageUnavailable) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("failed to fetch usage")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch usage"})
		return
	}
	c.JSON(http.StatusOK, usage)
}

func (h *AdminHandler) GetClient(c *gin.Context) {
	id := c.Param("id")
	if !ValidClientID(id) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid client id"})
		return
	}
	ctx, err := h.dashboard.ClientContext(id)
	if errors.Is(err, repository.ErrUnknownClient) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Client not found"})
		return
	}
	c.JSON(http.StatusOK, ctx)
}

func (h *AdminHandler) ResolveClient(c *gin.Context) {
	id := c.Param("id")
	if !ValidClientID(id) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid client id"})
		return
	}
	if err := h.dashboard.ResolveEscalation(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Client not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "resolved"})
}

func (h *AdminHandler) ListTasks(c *gin.Context) {
	c.JSON(http.StatusOK, h.dashboard.Tasks())
}

func (h *AdminHandler) DeleteTask(c *gin.Context) {
	name := c.Param("name")
	if !ValidTaskName(name) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid task name"})
		return
	}
	if err := h.dashboard.RemoveTask(name); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *AdminHandler) TriggerBriefing(c *gin.Context) {
	if err := h.dashboard.TriggerBriefing(c.Request.Context()); err != nil {
		h.logger.WithError(err).Error("briefing failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Briefing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "sent"})
}

func (h *AdminHandler) GetWhatsAppStatus(c *gin.Context) {
	if h.whatsapp == nil {
		c.JSON(http.StatusOK, infrastructure.WhatsAppStatus{})
		return
	}
	c.JSON(http.StatusOK, h.whatsapp.Status())
}

// GetWhatsAppQR returns the pairing QR code as a PNG
func (h *AdminHandler) GetWhatsAppQR(c *gin.Context) {
	if h.whatsapp == nil {
		c.String(http.StatusServiceUnavailable, "WhatsApp not configured")
		return
	}

	qrCodeString := h.whatsapp.QR()
	if qrCodeString == "" {
		if h.whatsapp.Status().LoggedIn {
			c.String(http.StatusOK, "Already logged in")
			return
		}
		c.String(http.StatusAccepted, "QR code not yet available. Please wait...")
		return
	}

	png, err := qrcode.Encode(qrCodeString, qrcode.Medium, 256)
	if err != nil {
		c.String(http.StatusInternalServerError, "Failed to generate QR code")
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func (h *AdminHandler) LogoutWhatsApp(c *gin.Context) {
	if h.whatsapp == nil {
		c.JSON(http.StatusOK, gin.H{"status": "logged_out", "message": "WhatsApp not configured"})
		return
	}
	if err := h.whatsapp.Logout(c.Request.Context()); err != nil {
		h.logger.WithError(err).Warn("whatsapp logout")
	}
	c.JSON(http.StatusOK, gin.H{"status": "logged_out"})
}
