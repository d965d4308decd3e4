package service

import (
	"context"
	"fmt"

	"ticket-service/internal/archive"
	"ticket-service/internal/document"
	"ticket-service/internal/models"
	"ticket-service/internal/util"

	"go.uber.org/zap"
)

// ExportRequest carries the rasterized ticket and layout options
type ExportRequest struct {
	Snapshot    []byte
	Orientation string
	Scale       float64
	Save        bool
}

// ExportResult is a finished document and where it went
type ExportResult struct {
	Document document.Document
	Layout   document.Layout
	Archived *archive.Object
}

// ExportService paginates ticket snapshots into PDF documents
type ExportService struct {
	tickets            TicketSource
	assemblers         map[document.Orientation]*document.Assembler
	archive            archive.Store
	defaultOrientation document.Orientation
	defaultScale       float64
	logger             *zap.Logger
}

// TicketSource resolves saved tickets
type TicketSource interface {
	GetByID(ctx context.Context, id string) (*models.Ticket, error)
}

// NewExportService creates an export service for both A4 orientations
func NewExportService(
	tickets TicketSource,
	store archive.Store,
	policy document.BoundaryPolicy,
	defaultOrientation document.Orientation,
	defaultScale float64,
) (*ExportService, error) {
	assemblers := make(map[document.Orientation]*document.Assembler, 2)
	for _, o := range []document.Orientation{document.Portrait, document.Landscape} {
		p, err := document.NewPaginator(document.PageSizeFor(o), policy)
		if err != nil {
			return nil, err
		}
		assemblers[o] = document.NewAssembler(p)
	}
	if defaultOrientation == "" {
		defaultOrientation = document.Portrait
	}
	if defaultScale <= 0 {
		defaultScale = 2
	}
	return &ExportService{
		tickets:            tickets,
		assemblers:         assemblers,
		archive:            store,
		defaultOrientation: defaultOrientation,
		defaultScale:       defaultScale,
		logger:             util.ComponentLogger("export"),
	}, nil
}

// Export builds the document for a saved ticket
func (s *ExportService) Export(ctx context.Context, ticketID string, req ExportRequest) (ExportResult, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return ExportResult{}, err
	}
	return s.ExportTicket(ctx, *ticket, req)
}

// ExportTicket builds the document for a ticket value
func (s *ExportService) ExportTicket(ctx context.Context, ticket models.Ticket, req ExportRequest) (ExportResult, error) {
	ctx, span := util.StartSpan(ctx, "ExportService.ExportTicket")
	defer span.End()

	orientation := s.defaultOrientation
	if req.Orientation != "" {
		o, err := document.ParseOrientation(req.Orientation)
		if err != nil {
			return ExportResult{}, err
		}
		orientation = o
	}
	scale := req.Scale
	if scale == 0 {
		scale = s.defaultScale
	}

	meta := document.TicketMetadata(ticket.ProjectName, ticket.TicketNumber)
	filename := document.Filename(ticket.ProjectName, ticket.TicketNumber)
	doc, layout, err := s.assemblers[orientation].Assemble(req.Snapshot, scale, meta, filename)
	if err != nil {
		return ExportResult{}, err
	}

	result := ExportResult{Document: doc, Layout: layout}
	destination := "memory"
	if req.Save {
		if s.archive == nil {
			return ExportResult{}, fmt.Errorf("no document archive configured")
		}
		obj, err := s.archive.Put(ctx, archive.DocumentKey(ticket.ID, filename), doc.Data, "application/pdf")
		if err != nil {
			return ExportResult{}, fmt.Errorf("failed to archive document: %w", err)
		}
		result.Archived = &obj
		destination = string(s.archive.Driver())
	}

	util.DocumentsExportedTotal.WithLabelValues(destination).Inc()
	util.DocumentPages.Observe(float64(doc.Pages))
	s.logger.Info("Document exported",
		zap.String("ticket_id", ticket.ID),
		zap.String("filename", filename),
		zap.Int("pages", doc.Pages),
		zap.String("destination", destination))

	return result, nil
}
