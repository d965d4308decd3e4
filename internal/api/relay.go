package api

import (
	"errors"
	"net/http"

	"ticket-service/internal/mailer"
	"ticket-service/internal/models"

	"github.com/gin-gonic/gin"
)

// relayHealth answers the delivery dispatcher's availability probe
func (h *Handler) relayHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) sendEmail(c *gin.Context) {
	var req models.EmailData
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": mailer.ErrMissingFields.Message})
		return
	}

	receipt, err := h.relay.SendEmail(c.Request.Context(), req)
	if err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Message})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send email"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message":    "Email sent successfully",
		"previewUrl": receipt.PreviewURL,
	})
}
