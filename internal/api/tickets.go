package api

import (
	"encoding/base64"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"ticket-service/internal/models"
	"ticket-service/internal/service"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
)

// maxSnapshotBytes bounds an uploaded PNG snapshot
const maxSnapshotBytes = 32 << 20

type deliveryRequest struct {
	To          string  `json:"to" binding:"required"`
	CC          string  `json:"cc"`
	Subject     string  `json:"subject"`
	Message     string  `json:"message"`
	Snapshot    string  `json:"snapshot" binding:"required"`
	Orientation string  `json:"orientation"`
	Scale       float64 `json:"scale"`
	Async       bool    `json:"async"`
}

func (h *Handler) listTickets(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tickets": h.tickets.ListTickets(c.Request.Context())})
}

func (h *Handler) getTicket(c *gin.Context) {
	ticket, err := h.tickets.GetTicket(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}

func (h *Handler) deleteTicket(c *gin.Context) {
	if err := h.tickets.DeleteTicket(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// exportTicket takes a PNG body and answers with the PDF, or with a JSON
// data URI when format=datauri
func (h *Handler) exportTicket(c *gin.Context) {
	snapshot, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxSnapshotBytes))
	if err != nil {
		badRequest(c, err)
		return
	}
	if err := checkPNG(snapshot); err != nil {
		h.respondError(c, err)
		return
	}

	req := service.ExportRequest{
		Snapshot:    snapshot,
		Orientation: c.Query("orientation"),
	}
	if raw := c.Query("scale"); raw != "" {
		if req.Scale, err = strconv.ParseFloat(raw, 64); err != nil {
			h.respondError(c, models.Invalid("scale", "scale must be a number"))
			return
		}
	}
	if raw := c.Query("save"); raw != "" {
		if req.Save, err = strconv.ParseBool(raw); err != nil {
			h.respondError(c, models.Invalid("save", "save must be true or false"))
			return
		}
	}

	result, err := h.exporter.Export(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if c.Query("format") == "datauri" {
		c.JSON(http.StatusOK, gin.H{
			"filename": result.Document.Filename,
			"pages":    result.Document.Pages,
			"dataUri":  result.Document.DataURI(),
			"archived": result.Archived,
		})
		return
	}

	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.PathEscape(result.Document.Filename))
	c.Header("X-Page-Count", strconv.Itoa(result.Document.Pages))
	c.Data(http.StatusOK, "application/pdf", result.Document.Data)
}

func (h *Handler) deliverTicket(c *gin.Context) {
	var req deliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	snapshot, err := decodeSnapshot(req.Snapshot)
	if err != nil {
		h.respondError(c, err)
		return
	}

	ctx := c.Request.Context()
	delivery := service.DeliveryRequest{
		To:          req.To,
		CC:          req.CC,
		Subject:     req.Subject,
		Message:     req.Message,
		Snapshot:    snapshot,
		Orientation: req.Orientation,
		Scale:       req.Scale,
	}

	if req.Async {
		deliveryID, err := h.delivery.Enqueue(ctx, c.Param("id"), delivery)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"deliveryId": deliveryID})
		return
	}

	outcome, err := h.delivery.Deliver(ctx, c.Param("id"), delivery)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

// decodeSnapshot accepts plain base64 or a data:image/png;base64, URI
func decodeSnapshot(raw string) ([]byte, error) {
	if idx := strings.Index(raw, ";base64,"); idx >= 0 {
		raw = raw[idx+len(";base64,"):]
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, models.Invalid("snapshot", "snapshot is not valid base64")
	}
	if err := checkPNG(data); err != nil {
		return nil, err
	}
	return data, nil
}

func checkPNG(data []byte) error {
	if mtype := mimetype.Detect(data); !mtype.Is("image/png") {
		return models.Invalid("snapshot", "snapshot must be a PNG image, got %s", mtype.String())
	}
	return nil
}
