package api

import (
	"net/http"
	"strconv"

	"ticket-service/internal/models"
	"ticket-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type addCatalogItemRequest struct {
	Name  string          `json:"name" binding:"required"`
	Unit  string          `json:"unit" binding:"required"`
	Price decimal.Decimal `json:"price"`
}

func (h *Handler) catalogKind(c *gin.Context) (models.CatalogKind, bool) {
	kind, err := service.ParseCatalogKind(c.Param("kind"))
	if err != nil {
		h.respondError(c, err)
		return "", false
	}
	return kind, true
}

func (h *Handler) listCatalog(c *gin.Context) {
	kind, ok := h.catalogKind(c)
	if !ok {
		return
	}
	items, err := h.catalogs.List(c.Request.Context(), kind)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) addCatalogItem(c *gin.Context) {
	kind, ok := h.catalogKind(c)
	if !ok {
		return
	}

	var req addCatalogItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	item, err := h.catalogs.Add(c.Request.Context(), kind, req.Name, req.Unit, req.Price)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *Handler) replaceCatalog(c *gin.Context) {
	kind, ok := h.catalogKind(c)
	if !ok {
		return
	}

	var items []models.CatalogItem
	if err := c.ShouldBindJSON(&items); err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	if err := h.catalogs.ReplaceAll(ctx, kind, items); err != nil {
		h.respondError(c, err)
		return
	}
	stored, err := h.catalogs.List(ctx, kind)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": stored})
}

func (h *Handler) removeCatalogItem(c *gin.Context) {
	kind, ok := h.catalogKind(c)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid item ID",
		})
		return
	}

	if err := h.catalogs.Remove(c.Request.Context(), kind, id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) laborRates(c *gin.Context) {
	c.JSON(http.StatusOK, h.tickets.LaborRates())
}

func (h *Handler) markups(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"markups": h.tickets.Markups()})
}
