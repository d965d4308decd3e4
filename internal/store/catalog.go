package store

import (
	"context"
	"strings"
	"sync"

	"ticket-service/internal/models"
	"ticket-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CatalogListener is called with the committed list after every successful catalog write
type CatalogListener func(kind models.CatalogKind, items []models.CatalogItem)

// CatalogStore is one persistent price list (materials or equipment)
type CatalogStore struct {
	records   RecordStore
	kind      models.CatalogKind
	namespace string
	logger    *zap.Logger

	mu        sync.Mutex
	listeners []CatalogListener
}

// NewCatalogStore creates a catalog backed by the namespace for kind
func NewCatalogStore(records RecordStore, kind models.CatalogKind) *CatalogStore {
	return &CatalogStore{
		records:   records,
		kind:      kind,
		namespace: CatalogNamespace(kind),
		logger:    util.ComponentLogger("catalog").With(zap.String("catalog", string(kind))),
	}
}

// Kind returns which catalog this is
func (c *CatalogStore) Kind() models.CatalogKind {
	return c.kind
}

// Subscribe registers a listener for committed writes
func (c *CatalogStore) Subscribe(listener CatalogListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, listener)
}

// List returns the catalog in storage order. Read failures are logged and yield an empty list.
func (c *CatalogStore) List(ctx context.Context) []models.CatalogItem {
	c.mu.Lock()
	defer c.mu.Unlock()

	items, err := loadArray[models.CatalogItem](ctx, c.records, c.namespace, c.logger)
	if err != nil {
		c.logger.Error("Failed to read catalog", zap.Error(err))
		return []models.CatalogItem{}
	}
	return items
}

// Lookup finds an item by id
func (c *CatalogStore) Lookup(ctx context.Context, id int64) (models.CatalogItem, bool) {
	for _, item := range c.List(ctx) {
		if item.ID == id {
			return item, true
		}
	}
	return models.CatalogItem{}, false
}

// Add appends a new item with id = max(existing)+1, or 1 for an empty catalog
func (c *CatalogStore) Add(ctx context.Context, name, unit string, price decimal.Decimal) (models.CatalogItem, error) {
	name = strings.TrimSpace(name)
	unit = strings.TrimSpace(unit)

	var missing []string
	if name == "" {
		missing = append(missing, "name")
	}
	if unit == "" {
		missing = append(missing, "unit")
	}
	if !price.IsPositive() {
		missing = append(missing, "price")
	}
	if len(missing) > 0 {
		return models.CatalogItem{}, &models.ValidationError{
			Fields:  missing,
			Message: "please enter valid " + string(c.kind) + " information",
		}
	}

	c.mu.Lock()
	items, err := loadArray[models.CatalogItem](ctx, c.records, c.namespace, c.logger)
	if err != nil {
		c.mu.Unlock()
		return models.CatalogItem{}, err
	}

	item := models.CatalogItem{ID: nextCatalogID(items), Name: name, Unit: unit, Price: price}
	items = append(items, item)
	if err := c.persist(ctx, items); err != nil {
		c.mu.Unlock()
		return models.CatalogItem{}, err
	}
	listeners := c.listeners
	c.mu.Unlock()

	c.notify(listeners, items)
	return item, nil
}

// Remove deletes the item with id; a missing id is a no-op
func (c *CatalogStore) Remove(ctx context.Context, id int64) error {
	c.mu.Lock()
	items, err := loadArray[models.CatalogItem](ctx, c.records, c.namespace, c.logger)
	if err != nil {
		c.mu.Unlock()
		return err
	}

	kept := make([]models.CatalogItem, 0, len(items))
	for _, item := range items {
		if item.ID != id {
			kept = append(kept, item)
		}
	}
	if len(kept) == len(items) {
		c.mu.Unlock()
		return nil
	}

	if err := c.persist(ctx, kept); err != nil {
		c.mu.Unlock()
		return err
	}
	listeners := c.listeners
	c.mu.Unlock()

	c.notify(listeners, kept)
	return nil
}

// ReplaceAll validates and persists items as the whole catalog in one write
func (c *CatalogStore) ReplaceAll(ctx context.Context, items []models.CatalogItem) error {
	if err := ValidateCatalog(items); err != nil {
		return err
	}
	committed := append([]models.CatalogItem{}, items...)

	c.mu.Lock()
	if err := c.persist(ctx, committed); err != nil {
		c.mu.Unlock()
		return err
	}
	listeners := c.listeners
	c.mu.Unlock()

	c.notify(listeners, committed)
	return nil
}

// ValidateCatalog checks ids are unique and positive, names and units are set and prices are non-negative
func ValidateCatalog(items []models.CatalogItem) error {
	seen := make(map[int64]bool, len(items))
	for i, item := range items {
		switch {
		case item.ID < 1:
			return models.Invalid("id", "item %d: id must be at least 1", i)
		case seen[item.ID]:
			return models.Invalid("id", "item %d: duplicate id %d", i, item.ID)
		case strings.TrimSpace(item.Name) == "":
			return models.Invalid("name", "item %d: name is required", i)
		case strings.TrimSpace(item.Unit) == "":
			return models.Invalid("unit", "item %d: unit is required", i)
		case item.Price.IsNegative():
			return models.Invalid("price", "item %d: price must not be negative", i)
		}
		seen[item.ID] = true
	}
	return nil
}

func (c *CatalogStore) persist(ctx context.Context, items []models.CatalogItem) error {
	if err := saveArray(ctx, c.records, c.namespace, items); err != nil {
		util.CatalogWritesTotal.WithLabelValues(string(c.kind), "failed").Inc()
		c.logger.Error("Failed to save catalog", zap.Error(err))
		return err
	}
	util.CatalogWritesTotal.WithLabelValues(string(c.kind), "ok").Inc()
	return nil
}

func (c *CatalogStore) notify(listeners []CatalogListener, items []models.CatalogItem) {
	for _, listener := range listeners {
		listener(c.kind, append([]models.CatalogItem(nil), items...))
	}
}

func nextCatalogID(items []models.CatalogItem) int64 {
	var highest int64
	for _, item := range items {
		if item.ID > highest {
			highest = item.ID
		}
	}
	return highest + 1
}
