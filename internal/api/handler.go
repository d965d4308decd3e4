package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"ticket-service/internal/mailer"
	"ticket-service/internal/models"
	"ticket-service/internal/service"
	"ticket-service/internal/store"
	"ticket-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Services groups what the handlers call into
type Services struct {
	Tickets  *service.TicketService
	Catalogs *service.CatalogService
	Exporter *service.ExportService
	Delivery *service.DeliveryService
	Relay    *mailer.Relay
	Records  store.RecordStore
}

// Handler contains HTTP handlers
type Handler struct {
	tickets  *service.TicketService
	catalogs *service.CatalogService
	exporter *service.ExportService
	delivery *service.DeliveryService
	relay    *mailer.Relay
	records  store.RecordStore
	logger   *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(s Services) *Handler {
	return &Handler{
		tickets:  s.Tickets,
		catalogs: s.Catalogs,
		exporter: s.Exporter,
		delivery: s.Delivery,
		relay:    s.Relay,
		records:  s.Records,
		logger:   util.ComponentLogger("api"),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if h.relay != nil {
		relay := router.Group("/api")
		{
			relay.GET("/health", h.relayHealth)
			relay.POST("/send-email", h.sendEmail)
		}
	}

	v1 := router.Group("/api/v1")
	{
		v1.GET("/catalogs/:kind", h.listCatalog)
		v1.POST("/catalogs/:kind", h.addCatalogItem)
		v1.PUT("/catalogs/:kind", h.replaceCatalog)
		v1.DELETE("/catalogs/:kind/:id", h.removeCatalogItem)

		v1.GET("/labor-rates", h.laborRates)
		v1.GET("/markups", h.markups)

		v1.POST("/sessions", h.beginSession)
		v1.GET("/sessions/:id", h.getSession)
		v1.DELETE("/sessions/:id", h.discardSession)
		v1.PUT("/sessions/:id/header", h.updateHeader)
		v1.PUT("/sessions/:id/markups", h.setMarkups)
		v1.POST("/sessions/:id/entries", h.addEntry)
		v1.PATCH("/sessions/:id/entries/:entryId", h.updateEntry)
		v1.DELETE("/sessions/:id/entries/:entryId", h.removeEntry)
		v1.POST("/sessions/:id/preview", h.previewSession)
		v1.POST("/sessions/:id/save", h.saveSession)

		v1.GET("/tickets", h.listTickets)
		v1.GET("/tickets/:id", h.getTicket)
		v1.DELETE("/tickets/:id", h.deleteTicket)
		v1.POST("/tickets/:id/export", h.exportTicket)
		v1.POST("/tickets/:id/deliveries", h.deliverTicket)

		v1.POST("/admin/reset", h.resetData)
	}
}

// Compress gzip-encodes responses for clients that accept it
func Compress(next http.Handler) http.Handler {
	return gzhttp.GzipHandler(next)
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck reports ready once the record store answers
func (h *Handler) readinessCheck(c *gin.Context) {
	if _, err := h.records.Load(c.Request.Context(), store.NamespaceTickets); err != nil && !errors.Is(err, models.ErrNotFound) {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "unavailable",
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// resetData clears every ticket and restores the default catalogs
func (h *Handler) resetData(c *gin.Context) {
	ctx := c.Request.Context()
	if err := store.Reset(ctx, h.records); err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.catalogs.RestoreDefaults(ctx); err != nil {
		h.respondError(c, err)
		return
	}
	h.logger.Warn("All data cleared")
	c.Status(http.StatusNoContent)
}

// respondError maps service errors onto status codes
func (h *Handler) respondError(c *gin.Context, err error) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  verr.Message,
			"fields": verr.Fields,
		})
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "Not found",
			"details": err.Error(),
		})
	default:
		h.logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal server error",
			"details": err.Error(),
		})
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request body",
		"details": err.Error(),
	})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
