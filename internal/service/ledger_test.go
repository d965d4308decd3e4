package service

import (
	"context"
	"fmt"
	"testing"

	"ticket-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCatalog map[int64]models.CatalogItem

func (f fakeCatalog) Lookup(ctx context.Context, id int64) (models.CatalogItem, bool) {
	item, ok := f[id]
	return item, ok
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestLedger() *Ledger {
	materials := fakeCatalog{
		1: {ID: 1, Name: "2x4 Lumber", Unit: "ft", Price: dec("0.89")},
		2: {ID: 2, Name: "Plywood 4x8 Sheet", Unit: "ea", Price: dec("45.99")},
	}
	equipment := fakeCatalog{
		1: {ID: 1, Name: "Backhoe", Unit: "hour", Price: dec("120")},
	}
	l := NewLedger(DefaultLaborRates(), materials, equipment)
	n := 0
	l.newID = func() string {
		n++
		return fmt.Sprintf("e%d", n)
	}
	return l
}

func TestAddLaborEntryUsesDefaultGrade(t *testing.T) {
	l := newTestLedger()

	entry := l.AddEntry(models.CategoryLabor)
	assert.Equal(t, "Journeyman", entry.Reference)
	assert.Equal(t, "45.00", entry.UnitPrice.StringFixed(2))
	assert.True(t, entry.Amount.IsZero())
	assert.Equal(t, LaborUnit, entry.Unit)
}

func TestAddMaterialEntryStartsUnselected(t *testing.T) {
	l := newTestLedger()

	entry := l.AddEntry(models.CategoryMaterial)
	assert.Empty(t, entry.Reference)
	assert.True(t, entry.UnitPrice.IsZero())
	assert.True(t, entry.Amount.IsZero())
}

func TestSetReferenceAndQuantityRecompute(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger()

	entry := l.AddEntry(models.CategoryMaterial)
	entry, err := l.SetReference(ctx, entry.ID, "2")
	require.NoError(t, err)
	assert.Equal(t, "Plywood 4x8 Sheet", entry.Description)
	assert.Equal(t, "ea", entry.Unit)

	entry, err = l.SetQuantity(entry.ID, "3")
	require.NoError(t, err)
	assert.Equal(t, "137.97", entry.Amount.StringFixed(2))
}

func TestAmountRoundsToCents(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger()

	entry := l.AddEntry(models.CategoryMaterial)
	_, err := l.SetReference(ctx, entry.ID, "1")
	require.NoError(t, err)
	entry, err = l.SetQuantity(entry.ID, "2.5")
	require.NoError(t, err)
	// 2.5 x 0.89 = 2.225
	assert.Equal(t, "2.23", entry.Amount.String())
}

func TestSetQuantityCoercesBadInput(t *testing.T) {
	l := newTestLedger()
	entry := l.AddEntry(models.CategoryLabor)

	for _, raw := range []string{"abc", "", "-4", "  "} {
		got, err := l.SetQuantity(entry.ID, raw)
		require.NoError(t, err)
		assert.True(t, got.Quantity.IsZero(), raw)
		assert.True(t, got.Amount.IsZero(), raw)
	}

	got, err := l.SetQuantity(entry.ID, " 8 ")
	require.NoError(t, err)
	assert.Equal(t, "360.00", got.Amount.StringFixed(2))
}

func TestSetReferenceUnknownIsRejected(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger()

	labor := l.AddEntry(models.CategoryLabor)
	_, err := l.SetReference(ctx, labor.ID, "Foreman")
	assert.ErrorIs(t, err, models.ErrValidation)

	material := l.AddEntry(models.CategoryMaterial)
	_, err = l.SetReference(ctx, material.ID, "99")
	assert.ErrorIs(t, err, models.ErrValidation)
	_, err = l.SetReference(ctx, material.ID, "lumber")
	assert.ErrorIs(t, err, models.ErrValidation)

	entries := l.Entries(models.CategoryLabor)
	require.Len(t, entries, 1)
	assert.Equal(t, "Journeyman", entries[0].Reference)
}

func TestSetReferenceEmptyClearsSelection(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger()

	entry := l.AddEntry(models.CategoryEquipment)
	_, err := l.SetReference(ctx, entry.ID, "1")
	require.NoError(t, err)
	_, err = l.SetQuantity(entry.ID, "2")
	require.NoError(t, err)

	entry, err = l.SetReference(ctx, entry.ID, "")
	require.NoError(t, err)
	assert.Empty(t, entry.Reference)
	assert.True(t, entry.UnitPrice.IsZero())
	assert.True(t, entry.Amount.IsZero())
	assert.Equal(t, "2", entry.Quantity.String())
}

func TestRemoveEntryUpdatesTotals(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger()

	a := l.AddEntry(models.CategoryLabor)
	_, err := l.SetQuantity(a.ID, "2")
	require.NoError(t, err)
	b := l.AddEntry(models.CategoryLabor)
	_, err = l.SetReference(ctx, b.ID, "Master")
	require.NoError(t, err)
	_, err = l.SetQuantity(b.ID, "1")
	require.NoError(t, err)

	assert.Equal(t, "155.00", l.CategoryTotal(models.CategoryLabor).StringFixed(2))

	_, err = l.RemoveEntry(a.ID)
	require.NoError(t, err)
	assert.Equal(t, "65.00", l.Subtotal().StringFixed(2))

	_, err = l.RemoveEntry(a.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestSubtotalAcrossCategories(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger()

	labor := l.AddEntry(models.CategoryLabor)
	_, err := l.SetQuantity(labor.ID, "8")
	require.NoError(t, err)

	material := l.AddEntry(models.CategoryMaterial)
	_, err = l.SetReference(ctx, material.ID, "1")
	require.NoError(t, err)
	_, err = l.SetQuantity(material.ID, "100")
	require.NoError(t, err)

	equipment := l.AddEntry(models.CategoryEquipment)
	_, err = l.SetReference(ctx, equipment.ID, "1")
	require.NoError(t, err)
	_, err = l.SetQuantity(equipment.ID, "1.5")
	require.NoError(t, err)

	// 360 + 89 + 180
	assert.Equal(t, "629.00", l.Subtotal().StringFixed(2))
}

func TestApplyDispatchesCommands(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger()

	added, err := l.Apply(ctx, LedgerCommand{Category: models.CategoryMaterial, Op: OpAddEntry})
	require.NoError(t, err)

	_, err = l.Apply(ctx, LedgerCommand{Category: models.CategoryMaterial, Op: OpSetReference, EntryID: added.ID, Value: "1"})
	require.NoError(t, err)
	updated, err := l.Apply(ctx, LedgerCommand{Category: models.CategoryMaterial, Op: OpSetQuantity, EntryID: added.ID, Value: "10"})
	require.NoError(t, err)
	assert.Equal(t, "8.90", updated.Amount.StringFixed(2))

	_, err = l.Apply(ctx, LedgerCommand{Category: models.CategoryEquipment, Op: OpSetQuantity, EntryID: added.ID, Value: "1"})
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = l.Apply(ctx, LedgerCommand{Category: "tools", Op: OpAddEntry})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = l.Apply(ctx, LedgerCommand{Category: models.CategoryMaterial, Op: "rename", EntryID: added.ID})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = l.Apply(ctx, LedgerCommand{Category: models.CategoryMaterial, Op: OpRemoveEntry, EntryID: added.ID})
	require.NoError(t, err)
	assert.Empty(t, l.Entries(models.CategoryMaterial))
}

func TestCatalogChangeFreezesPriceAndFlagsDetached(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger()

	entry := l.AddEntry(models.CategoryMaterial)
	_, err := l.SetReference(ctx, entry.ID, "2")
	require.NoError(t, err)
	_, err = l.SetQuantity(entry.ID, "1")
	require.NoError(t, err)

	repriced := []models.CatalogItem{{ID: 2, Name: "Plywood 4x8 Sheet", Unit: "ea", Price: dec("60")}}
	l.OnCatalogChange(models.CatalogMaterials, repriced)
	got := l.Entries(models.CategoryMaterial)[0]
	assert.False(t, got.Detached)
	assert.Equal(t, "45.99", got.Amount.StringFixed(2))

	l.OnCatalogChange(models.CatalogMaterials, nil)
	got = l.Entries(models.CategoryMaterial)[0]
	assert.True(t, got.Detached)
	assert.Equal(t, "Plywood 4x8 Sheet", got.Description)
	assert.Equal(t, "45.99", got.Amount.StringFixed(2))

	// equipment changes leave material entries alone
	l.OnCatalogChange(models.CatalogEquipment, repriced)
	assert.True(t, l.Entries(models.CategoryMaterial)[0].Detached)
}

func TestLoadRecomputesAmounts(t *testing.T) {
	l := newTestLedger()

	l.Load(models.LineItems{
		Labor: []models.LineItem{
			{ID: "x", Reference: "Master", Description: "Master", Unit: LaborUnit, Quantity: dec("2"), UnitPrice: dec("65"), Amount: dec("1")},
		},
		Materials: []models.LineItem{
			{Reference: "1", Description: "2x4 Lumber", Unit: "ft", Quantity: dec("-3"), UnitPrice: dec("0.89")},
		},
	})

	labor := l.Entries(models.CategoryLabor)
	require.Len(t, labor, 1)
	assert.Equal(t, "x", labor[0].ID)
	assert.Equal(t, models.CategoryLabor, labor[0].Category)
	assert.Equal(t, "130.00", labor[0].Amount.StringFixed(2))

	materials := l.Entries(models.CategoryMaterial)
	require.Len(t, materials, 1)
	assert.NotEmpty(t, materials[0].ID)
	assert.True(t, materials[0].Quantity.IsZero())

	snap := l.Snapshot()
	assert.NotNil(t, snap.Equipment)
	assert.Len(t, snap.All(), 2)
}

func TestLaborRatesValidate(t *testing.T) {
	assert.NoError(t, DefaultLaborRates().Validate())

	rates := DefaultLaborRates()
	rates.Default = "Foreman"
	assert.ErrorIs(t, rates.Validate(), models.ErrValidation)

	rates = DefaultLaborRates()
	rates.Grades = append(rates.Grades, LaborGrade{Name: "Master", Rate: dec("70")})
	assert.ErrorIs(t, rates.Validate(), models.ErrValidation)

	rates = DefaultLaborRates()
	rates.Grades[1].Rate = dec("-1")
	assert.ErrorIs(t, rates.Validate(), models.ErrValidation)
}
