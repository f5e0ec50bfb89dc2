package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"pdfbot/internal/auth"
	"pdfbot/internal/models"
)

// UpdateDeliverer accepts webhook updates. Implemented by *telegram.Receiver.
type UpdateDeliverer interface {
	Deliver(ctx context.Context, u tgbotapi.Update) error
}

// Journal is the read side of the operation journal.
type Journal interface {
	ListByChat(ctx context.Context, chatID int64, limit int) ([]models.Operation, error)
	Stats(ctx context.Context) ([]models.OperationStats, error)
}

type SessionCounter interface {
	Len() int
	CountByState() map[string]int
}

type PendingCounter interface {
	Pending() int
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps collects what the HTTP surface reports on or forwards to.
// Journal and Cache are optional.
type Deps struct {
	Updates       UpdateDeliverer
	Journal       Journal
	Sessions      SessionCounter
	Dispatcher    PendingCounter
	Batches       PendingCounter
	Cache         Pinger
	WebhookSecret string
	AdminToken    string
	Logger        logrus.FieldLogger
}

// Handler wires HTTP routes to the bot runtime.
type Handler struct {
	deps   Deps
	logger logrus.FieldLogger
}

// NewHandler constructs a Handler instance.
func NewHandler(deps Deps) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{deps: deps, logger: logger}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/healthz", h.health)
	if h.deps.Updates != nil {
		router.POST("/telegram/webhook/:secret", h.webhook)
	}

	admin := router.Group("/api")
	admin.Use(auth.AdminToken(h.deps.AdminToken))
	admin.GET("/chats/:chat_id/operations", h.listOperations)
	admin.GET("/operations/stats", h.operationStats)
}

func (h *Handler) webhook(c *gin.Context) {
	secret := c.Param("secret")
	if h.deps.WebhookSecret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(h.deps.WebhookSecret)) != 1 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	var update tgbotapi.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid update"})
		return
	}
	if err := h.deps.Updates.Deliver(c.Request.Context(), update); err != nil {
		h.logger.WithError(err).WithField("update_id", update.UpdateID).Warn("webhook update rejected")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "bot is shutting down"})
		return
	}
	c.Status(http.StatusOK)
}

func (h *Handler) health(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{"status": "ok"}
	if h.deps.Sessions != nil {
		body["sessions"] = h.deps.Sessions.Len()
		body["states"] = h.deps.Sessions.CountByState()
	}
	if h.deps.Dispatcher != nil {
		body["queued_events"] = h.deps.Dispatcher.Pending()
	}
	if h.deps.Batches != nil {
		body["open_batches"] = h.deps.Batches.Pending()
	}
	if h.deps.Cache == nil {
		body["redis"] = "disabled"
	} else {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.deps.Cache.Ping(ctx); err != nil {
			body["redis"] = err.Error()
			body["status"] = "degraded"
			status = http.StatusServiceUnavailable
		} else {
			body["redis"] = "ok"
		}
	}
	c.JSON(status, body)
}

func (h *Handler) listOperations(c *gin.Context) {
	if h.deps.Journal == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "journal disabled"})
		return
	}
	chatID, err := strconv.ParseInt(c.Param("chat_id"), 10, 64)
	if err != nil || chatID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
	}
	ops, err := h.deps.Journal.ListByChat(c.Request.Context(), chatID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if ops == nil {
		ops = make([]models.Operation, 0)
	}
	c.JSON(http.StatusOK, gin.H{
		"chat_id":    chatID,
		"operations": ops,
	})
}

func (h *Handler) operationStats(c *gin.Context) {
	if h.deps.Journal == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "journal disabled"})
		return
	}
	stats, err := h.deps.Journal.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if stats == nil {
		stats = make([]models.OperationStats, 0)
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}
