package service

import (
	"context"
	"time"

	"ticket-service/internal/broker"
	"ticket-service/internal/models"
	"ticket-service/internal/store"
	"ticket-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// announceTimeout bounds a CatalogReplaced publish, which has no request context
const announceTimeout = 5 * time.Second

// CatalogService exposes both price lists and announces committed changes
type CatalogService struct {
	catalogs       map[models.CatalogKind]*store.CatalogStore
	eventPublisher *broker.EventPublisher
	logger         *zap.Logger
}

// NewCatalogService creates a catalog service. A nil publisher disables events.
func NewCatalogService(materials, equipment *store.CatalogStore, eventPublisher *broker.EventPublisher) *CatalogService {
	s := &CatalogService{
		catalogs: map[models.CatalogKind]*store.CatalogStore{
			models.CatalogMaterials: materials,
			models.CatalogEquipment: equipment,
		},
		eventPublisher: eventPublisher,
		logger:         util.GetLogger(),
	}
	materials.Subscribe(s.announce)
	equipment.Subscribe(s.announce)
	return s
}

// ParseCatalogKind validates a kind from a URL
func ParseCatalogKind(s string) (models.CatalogKind, error) {
	switch kind := models.CatalogKind(s); kind {
	case models.CatalogMaterials, models.CatalogEquipment:
		return kind, nil
	}
	return "", models.Invalid("kind", "unknown catalog %q", s)
}

func (s *CatalogService) catalog(kind models.CatalogKind) (*store.CatalogStore, error) {
	c, ok := s.catalogs[kind]
	if !ok {
		return nil, models.Invalid("kind", "unknown catalog %q", kind)
	}
	return c, nil
}

// List returns the items of one catalog
func (s *CatalogService) List(ctx context.Context, kind models.CatalogKind) ([]models.CatalogItem, error) {
	c, err := s.catalog(kind)
	if err != nil {
		return nil, err
	}
	return c.List(ctx), nil
}

// Add appends an item to a catalog
func (s *CatalogService) Add(ctx context.Context, kind models.CatalogKind, name, unit string, price decimal.Decimal) (models.CatalogItem, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.Add")
	defer span.End()

	c, err := s.catalog(kind)
	if err != nil {
		return models.CatalogItem{}, err
	}
	return c.Add(ctx, name, unit, price)
}

// Remove deletes an item; a missing id is not an error
func (s *CatalogService) Remove(ctx context.Context, kind models.CatalogKind, id int64) error {
	ctx, span := util.StartSpan(ctx, "CatalogService.Remove")
	defer span.End()

	c, err := s.catalog(kind)
	if err != nil {
		return err
	}
	return c.Remove(ctx, id)
}

// ReplaceAll overwrites a catalog
func (s *CatalogService) ReplaceAll(ctx context.Context, kind models.CatalogKind, items []models.CatalogItem) error {
	ctx, span := util.StartSpan(ctx, "CatalogService.ReplaceAll")
	defer span.End()

	c, err := s.catalog(kind)
	if err != nil {
		return err
	}
	return c.ReplaceAll(ctx, items)
}

// RestoreDefaults replaces both catalogs with the seed lists
func (s *CatalogService) RestoreDefaults(ctx context.Context) error {
	if err := s.ReplaceAll(ctx, models.CatalogMaterials, store.DefaultMaterials); err != nil {
		return err
	}
	return s.ReplaceAll(ctx, models.CatalogEquipment, store.DefaultEquipment)
}

func (s *CatalogService) announce(kind models.CatalogKind, items []models.CatalogItem) {
	if s.eventPublisher == nil {
		return
	}
	event := &models.CatalogReplacedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeCatalogReplaced,
			Timestamp: time.Now(),
		},
		Catalog:   kind,
		ItemCount: len(items),
	}
	ctx, cancel := context.WithTimeout(context.Background(), announceTimeout)
	defer cancel()
	if err := s.eventPublisher.PublishCatalogReplaced(ctx, event); err != nil {
		s.logger.Error("Failed to publish CatalogReplaced event", zap.Error(err))
	}
}
