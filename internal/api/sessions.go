package api

import (
	"net/http"

	"ticket-service/internal/models"
	"ticket-service/internal/service"

	"github.com/gin-gonic/gin"
)

type beginSessionRequest struct {
	TicketID string `json:"ticketId"`
}

type setMarkupsRequest struct {
	Enabled []string `json:"enabled"`
}

type addEntryRequest struct {
	Category models.Category `json:"category" binding:"required"`
}

// updateEntryRequest changes the reference, the quantity or both.
// Quantity is raw text; anything that is not a non-negative number becomes 0.
type updateEntryRequest struct {
	Category  models.Category `json:"category" binding:"required"`
	Reference *string         `json:"reference"`
	Quantity  *string         `json:"quantity"`
}

func (h *Handler) beginSession(c *gin.Context) {
	var req beginSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	view, err := h.tickets.Begin(c.Request.Context(), req.TicketID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *Handler) getSession(c *gin.Context) {
	view, err := h.tickets.View(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) discardSession(c *gin.Context) {
	if err := h.tickets.Discard(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) updateHeader(c *gin.Context) {
	var header models.Header
	if err := c.ShouldBindJSON(&header); err != nil {
		badRequest(c, err)
		return
	}

	view, err := h.tickets.UpdateHeader(c.Request.Context(), c.Param("id"), header)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) setMarkups(c *gin.Context) {
	var req setMarkupsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	view, err := h.tickets.SetMarkups(c.Request.Context(), c.Param("id"), req.Enabled)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) addEntry(c *gin.Context) {
	var req addEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	entry, view, err := h.tickets.Apply(c.Request.Context(), c.Param("id"), service.LedgerCommand{
		Category: req.Category,
		Op:       service.OpAddEntry,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"entry": entry, "session": view})
}

func (h *Handler) updateEntry(c *gin.Context) {
	var req updateEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Reference == nil && req.Quantity == nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "reference or quantity is required",
		})
		return
	}

	ctx := c.Request.Context()
	sessionID, entryID := c.Param("id"), c.Param("entryId")

	var commands []service.LedgerCommand
	if req.Reference != nil {
		commands = append(commands, service.LedgerCommand{Category: req.Category, Op: service.OpSetReference, EntryID: entryID, Value: *req.Reference})
	}
	if req.Quantity != nil {
		commands = append(commands, service.LedgerCommand{Category: req.Category, Op: service.OpSetQuantity, EntryID: entryID, Value: *req.Quantity})
	}

	var entry models.LineItem
	var view service.SessionView
	for _, cmd := range commands {
		var err error
		entry, view, err = h.tickets.Apply(ctx, sessionID, cmd)
		if err != nil {
			h.respondError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"entry": entry, "session": view})
}

func (h *Handler) removeEntry(c *gin.Context) {
	category := models.Category(c.Query("category"))
	entry, view, err := h.tickets.Apply(c.Request.Context(), c.Param("id"), service.LedgerCommand{
		Category: category,
		Op:       service.OpRemoveEntry,
		EntryID:  c.Param("entryId"),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entry": entry, "session": view})
}

func (h *Handler) previewSession(c *gin.Context) {
	ticket, err := h.tickets.Preview(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}

func (h *Handler) saveSession(c *gin.Context) {
	ticket, err := h.tickets.Save(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}
