package store

import (
	"context"
	"path/filepath"
	"testing"

	"ticket-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func price(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// catalogView flattens items so decimals compare by value
func catalogView(items []models.CatalogItem) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.Name + "|" + item.Unit + "|" + item.Price.StringFixed(2) + "|" + decimal.NewFromInt(item.ID).String()
	}
	return out
}

func TestCatalogAddAssignsFirstID(t *testing.T) {
	ctx := context.Background()
	catalog := NewCatalogStore(NewMemoryStore(), models.CatalogMaterials)

	item, err := catalog.Add(ctx, "Rebar #4", "ft", price("1.25"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), item.ID)
	assert.Len(t, catalog.List(ctx), 1)
}

func TestCatalogAddUsesMaxPlusOneRegardlessOfRemovals(t *testing.T) {
	ctx := context.Background()
	catalog := NewCatalogStore(NewMemoryStore(), models.CatalogEquipment)

	require.NoError(t, catalog.ReplaceAll(ctx, []models.CatalogItem{
		{ID: 3, Name: "Lift", Unit: "day", Price: price("210")},
		{ID: 9, Name: "Mixer", Unit: "day", Price: price("95")},
	}))

	item, err := catalog.Add(ctx, "Compressor", "day", price("75"))
	require.NoError(t, err)
	assert.Equal(t, int64(10), item.ID)

	require.NoError(t, catalog.Remove(ctx, 10))
	require.NoError(t, catalog.Remove(ctx, 9))
	item, err = catalog.Add(ctx, "Generator", "day", price("65"))
	require.NoError(t, err)
	assert.Equal(t, int64(4), item.ID)
}

func TestCatalogAddRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	records := NewMemoryStore()
	catalog := NewCatalogStore(records, models.CatalogMaterials)

	cases := []struct {
		name, unit string
		price      decimal.Decimal
	}{
		{"", "ft", price("1")},
		{"Lumber", "  ", price("1")},
		{"Lumber", "ft", decimal.Zero},
		{"Lumber", "ft", price("-2")},
	}
	for _, tc := range cases {
		_, err := catalog.Add(ctx, tc.name, tc.unit, tc.price)
		assert.ErrorIs(t, err, models.ErrValidation)
	}

	_, err := records.Load(ctx, NamespaceMaterials)
	assert.ErrorIs(t, err, models.ErrNotFound, "rejected adds must not write")
}

func TestCatalogRemoveMissingIsNoop(t *testing.T) {
	ctx := context.Background()
	catalog := NewCatalogStore(NewMemoryStore(), models.CatalogMaterials)
	require.NoError(t, catalog.ReplaceAll(ctx, DefaultMaterials))

	calls := 0
	catalog.Subscribe(func(models.CatalogKind, []models.CatalogItem) { calls++ })

	require.NoError(t, catalog.Remove(ctx, 99))
	assert.Len(t, catalog.List(ctx), len(DefaultMaterials))
	assert.Zero(t, calls)
}

func TestCatalogReplaceAllRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLStore("sqlite", filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	defer s.Close()

	catalog := NewCatalogStore(s, models.CatalogMaterials)
	items := []models.CatalogItem{
		{ID: 7, Name: "Plywood", Unit: "ea", Price: price("45.99")},
		{ID: 2, Name: "Lumber", Unit: "ft", Price: price("0.89")},
		{ID: 5, Name: "Sample", Unit: "ea", Price: decimal.Zero},
	}
	require.NoError(t, catalog.ReplaceAll(ctx, items))
	assert.Equal(t, catalogView(items), catalogView(catalog.List(ctx)))
}

func TestCatalogReplaceAllValidates(t *testing.T) {
	ctx := context.Background()
	catalog := NewCatalogStore(NewMemoryStore(), models.CatalogMaterials)

	err := catalog.ReplaceAll(ctx, []models.CatalogItem{
		{ID: 1, Name: "A", Unit: "ea", Price: price("1")},
		{ID: 1, Name: "B", Unit: "ea", Price: price("2")},
	})
	assert.ErrorIs(t, err, models.ErrValidation)

	err = catalog.ReplaceAll(ctx, []models.CatalogItem{{ID: 0, Name: "A", Unit: "ea", Price: price("1")}})
	assert.ErrorIs(t, err, models.ErrValidation)

	err = catalog.ReplaceAll(ctx, []models.CatalogItem{{ID: 1, Name: "A", Unit: "ea", Price: price("-1")}})
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestCatalogListenersRunAfterCommit(t *testing.T) {
	ctx := context.Background()
	catalog := NewCatalogStore(NewMemoryStore(), models.CatalogEquipment)

	var seen [][]models.CatalogItem
	catalog.Subscribe(func(kind models.CatalogKind, items []models.CatalogItem) {
		assert.Equal(t, models.CatalogEquipment, kind)
		// the committed state is already readable from inside the listener
		assert.Equal(t, catalogView(items), catalogView(catalog.List(ctx)))
		seen = append(seen, items)
	})

	require.NoError(t, catalog.ReplaceAll(ctx, DefaultEquipment))
	_, err := catalog.Add(ctx, "Trencher", "day", price("180"))
	require.NoError(t, err)
	require.NoError(t, catalog.Remove(ctx, 1))

	require.Len(t, seen, 3)
	assert.Len(t, seen[0], 5)
	assert.Len(t, seen[1], 6)
	assert.Len(t, seen[2], 5)
}

func TestCatalogFailedWriteKeepsPreviousState(t *testing.T) {
	ctx := context.Background()
	records := NewMemoryStore()
	require.NoError(t, NewCatalogStore(records, models.CatalogMaterials).ReplaceAll(ctx, DefaultMaterials))

	catalog := NewCatalogStore(failingStore{records}, models.CatalogMaterials)
	notified := false
	catalog.Subscribe(func(models.CatalogKind, []models.CatalogItem) { notified = true })

	_, err := catalog.Add(ctx, "Nails", "box", price("8"))
	assert.Error(t, err)
	assert.Error(t, catalog.ReplaceAll(ctx, nil))
	assert.False(t, notified)
	assert.Equal(t, catalogView(DefaultMaterials), catalogView(catalog.List(ctx)))
}

func TestCatalogMalformedDataDegradesToEmpty(t *testing.T) {
	ctx := context.Background()
	records := NewMemoryStore()
	require.NoError(t, records.Save(ctx, NamespaceEquipment, []byte(`{not json`)))

	catalog := NewCatalogStore(records, models.CatalogEquipment)
	assert.Empty(t, catalog.List(ctx))

	item, err := catalog.Add(ctx, "Backhoe", "hour", price("120"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), item.ID)
}

func TestCatalogLookup(t *testing.T) {
	ctx := context.Background()
	catalog := NewCatalogStore(NewMemoryStore(), models.CatalogMaterials)
	require.NoError(t, catalog.ReplaceAll(ctx, DefaultMaterials))

	item, ok := catalog.Lookup(ctx, 4)
	require.True(t, ok)
	assert.Equal(t, "Concrete Mix", item.Name)

	_, ok = catalog.Lookup(ctx, 42)
	assert.False(t, ok)
}
