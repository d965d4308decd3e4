package store

import (
	"context"
	"errors"
	"fmt"

	"ticket-service/internal/models"

	"github.com/shopspring/decimal"
)

// DefaultMaterials seeds an empty materials catalog
var DefaultMaterials = []models.CatalogItem{
	{ID: 1, Name: "2x4 Lumber", Unit: "ft", Price: decimal.RequireFromString("0.89")},
	{ID: 2, Name: "Plywood 4x8 Sheet", Unit: "ea", Price: decimal.RequireFromString("45.99")},
	{ID: 3, Name: "Drywall 4x8 Sheet", Unit: "ea", Price: decimal.RequireFromString("15.50")},
	{ID: 4, Name: "Concrete Mix", Unit: "bag", Price: decimal.RequireFromString("12.75")},
	{ID: 5, Name: `PVC Pipe 1"`, Unit: "ft", Price: decimal.RequireFromString("2.30")},
}

// DefaultEquipment seeds an empty equipment catalog
var DefaultEquipment = []models.CatalogItem{
	{ID: 1, Name: "Backhoe", Unit: "hour", Price: decimal.RequireFromString("120.00")},
	{ID: 2, Name: "Concrete Mixer", Unit: "day", Price: decimal.RequireFromString("95.00")},
	{ID: 3, Name: "Scissor Lift", Unit: "day", Price: decimal.RequireFromString("210.00")},
	{ID: 4, Name: "Compressor", Unit: "day", Price: decimal.RequireFromString("75.00")},
	{ID: 5, Name: "Generator", Unit: "day", Price: decimal.RequireFromString("65.00")},
}

// Seed writes the default catalogs and an empty ticket list for namespaces that were never written
func Seed(ctx context.Context, records RecordStore) error {
	seeders := map[string]func() error{
		NamespaceMaterials: func() error { return saveArray(ctx, records, NamespaceMaterials, DefaultMaterials) },
		NamespaceEquipment: func() error { return saveArray(ctx, records, NamespaceEquipment, DefaultEquipment) },
		NamespaceTickets:   func() error { return saveArray(ctx, records, NamespaceTickets, []models.Ticket{}) },
	}
	for _, ns := range Namespaces {
		_, err := records.Load(ctx, ns)
		if err == nil {
			continue
		}
		if !errors.Is(err, models.ErrNotFound) {
			return fmt.Errorf("failed to check %s: %w", ns, err)
		}
		if err := seeders[ns](); err != nil {
			return err
		}
	}
	return nil
}

// Reset removes all stored data and reseeds the defaults
func Reset(ctx context.Context, records RecordStore) error {
	for _, ns := range Namespaces {
		if err := records.Remove(ctx, ns); err != nil {
			return fmt.Errorf("failed to remove %s: %w", ns, err)
		}
	}
	return Seed(ctx, records)
}
