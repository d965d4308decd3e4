package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"ticket-service/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LaborUnit is the unit shown on labor entries
const LaborUnit = "hr"

// LaborGrade is a worker classification with its hourly rate
type LaborGrade struct {
	Name string          `json:"name"`
	Rate decimal.Decimal `json:"rate"`
}

// LaborRates is the grade table used to price labor entries
type LaborRates struct {
	Grades  []LaborGrade `json:"grades"`
	Default string       `json:"default"`
}

// DefaultLaborRates returns the built-in grade table
func DefaultLaborRates() LaborRates {
	return LaborRates{
		Grades: []LaborGrade{
			{Name: "Journeyman", Rate: decimal.NewFromInt(45)},
			{Name: "Apprentice", Rate: decimal.NewFromInt(32)},
			{Name: "Master", Rate: decimal.NewFromInt(65)},
		},
		Default: "Journeyman",
	}
}

// Lookup returns the grade named name
func (r LaborRates) Lookup(name string) (LaborGrade, bool) {
	for _, g := range r.Grades {
		if g.Name == name {
			return g, true
		}
	}
	return LaborGrade{}, false
}

// Validate checks that grade names are unique, rates are not negative and the default grade exists
func (r LaborRates) Validate() error {
	seen := make(map[string]bool, len(r.Grades))
	for _, g := range r.Grades {
		if g.Name == "" || seen[g.Name] {
			return models.Invalid("labor_grades", "grade names must be unique and non-empty")
		}
		if g.Rate.IsNegative() {
			return models.Invalid("labor_grades", "rate for %s must not be negative", g.Name)
		}
		seen[g.Name] = true
	}
	if !seen[r.Default] {
		return models.Invalid("default_grade", "default grade %q is not defined", r.Default)
	}
	return nil
}

// CatalogLookup resolves a catalog id to its current item
type CatalogLookup interface {
	Lookup(ctx context.Context, id int64) (models.CatalogItem, bool)
}

// LedgerOp is an operation a LedgerCommand performs
type LedgerOp string

const (
	OpAddEntry     LedgerOp = "add"
	OpSetReference LedgerOp = "set_reference"
	OpSetQuantity  LedgerOp = "set_quantity"
	OpRemoveEntry  LedgerOp = "remove"
)

// LedgerCommand is a single edit of a ledger.
// EntryID is ignored by OpAddEntry; Value carries the reference or the raw quantity text.
type LedgerCommand struct {
	Category models.Category `json:"category"`
	Op       LedgerOp        `json:"op"`
	EntryID  string          `json:"entryId,omitempty"`
	Value    string          `json:"value,omitempty"`
}

// Ledger holds the line items of one ticket draft.
// Entries live in an arena keyed by id with a separate order per category.
// A Ledger is not safe for concurrent use; EditSession serializes access.
type Ledger struct {
	entries  map[string]*models.LineItem
	order    map[models.Category][]string
	rates    LaborRates
	catalogs map[models.Category]CatalogLookup
	newID    func() string
}

// NewLedger creates an empty ledger pricing labor from rates and
// materials/equipment from the given catalogs
func NewLedger(rates LaborRates, materials, equipment CatalogLookup) *Ledger {
	return &Ledger{
		entries: make(map[string]*models.LineItem),
		order:   make(map[models.Category][]string),
		rates:   rates,
		catalogs: map[models.Category]CatalogLookup{
			models.CategoryMaterial:  materials,
			models.CategoryEquipment: equipment,
		},
		newID: uuid.NewString,
	}
}

// Apply dispatches a command and returns the affected entry
func (l *Ledger) Apply(ctx context.Context, cmd LedgerCommand) (models.LineItem, error) {
	if !cmd.Category.Valid() {
		return models.LineItem{}, models.Invalid("category", "unknown category %q", cmd.Category)
	}

	switch cmd.Op {
	case OpAddEntry:
		return l.AddEntry(cmd.Category), nil
	case OpSetReference:
		if err := l.checkCategory(cmd.EntryID, cmd.Category); err != nil {
			return models.LineItem{}, err
		}
		return l.SetReference(ctx, cmd.EntryID, cmd.Value)
	case OpSetQuantity:
		if err := l.checkCategory(cmd.EntryID, cmd.Category); err != nil {
			return models.LineItem{}, err
		}
		return l.SetQuantity(cmd.EntryID, cmd.Value)
	case OpRemoveEntry:
		if err := l.checkCategory(cmd.EntryID, cmd.Category); err != nil {
			return models.LineItem{}, err
		}
		return l.RemoveEntry(cmd.EntryID)
	}
	return models.LineItem{}, models.Invalid("op", "unknown operation %q", cmd.Op)
}

func (l *Ledger) checkCategory(id string, category models.Category) error {
	entry, ok := l.entries[id]
	if !ok {
		return fmt.Errorf("entry %s: %w", id, models.ErrNotFound)
	}
	if entry.Category != category {
		return fmt.Errorf("entry %s is not a %s entry: %w", id, category, models.ErrNotFound)
	}
	return nil
}

// AddEntry appends an empty entry to category. Labor entries start on the default grade.
func (l *Ledger) AddEntry(category models.Category) models.LineItem {
	entry := &models.LineItem{
		ID:        l.newID(),
		Category:  category,
		Quantity:  decimal.Zero,
		UnitPrice: decimal.Zero,
	}
	if category == models.CategoryLabor {
		entry.Unit = LaborUnit
		if grade, ok := l.rates.Lookup(l.rates.Default); ok {
			entry.Reference = grade.Name
			entry.Description = grade.Name
			entry.UnitPrice = grade.Rate
		}
	}
	entry.Recompute()

	l.entries[entry.ID] = entry
	l.order[category] = append(l.order[category], entry.ID)
	return *entry
}

// SetReference selects a labor grade or catalog item for an entry and freezes
// its description, unit and price. An empty reference clears the selection.
func (l *Ledger) SetReference(ctx context.Context, id, ref string) (models.LineItem, error) {
	entry, ok := l.entries[id]
	if !ok {
		return models.LineItem{}, fmt.Errorf("entry %s: %w", id, models.ErrNotFound)
	}

	ref = strings.TrimSpace(ref)
	if ref == "" {
		entry.Reference = ""
		entry.Description = ""
		entry.UnitPrice = decimal.Zero
		entry.Detached = false
		if entry.Category != models.CategoryLabor {
			entry.Unit = ""
		}
		entry.Recompute()
		return *entry, nil
	}

	if entry.Category == models.CategoryLabor {
		grade, ok := l.rates.Lookup(ref)
		if !ok {
			return models.LineItem{}, models.Invalid("reference", "unknown labor grade %q", ref)
		}
		entry.Reference = grade.Name
		entry.Description = grade.Name
		entry.Unit = LaborUnit
		entry.UnitPrice = grade.Rate
		entry.Recompute()
		return *entry, nil
	}

	itemID, err := strconv.ParseInt(ref, 10, 64)
	if err != nil {
		return models.LineItem{}, models.Invalid("reference", "invalid catalog id %q", ref)
	}
	catalog := l.catalogs[entry.Category]
	if catalog == nil {
		return models.LineItem{}, models.Invalid("reference", "no catalog for %s entries", entry.Category)
	}
	item, ok := catalog.Lookup(ctx, itemID)
	if !ok {
		return models.LineItem{}, models.Invalid("reference", "unknown %s item %d", entry.Category, itemID)
	}

	entry.Reference = strconv.FormatInt(item.ID, 10)
	entry.Description = item.Name
	entry.Unit = item.Unit
	entry.UnitPrice = item.Price
	entry.Detached = false
	entry.Recompute()
	return *entry, nil
}

// SetQuantity parses raw input text. Non-numeric and negative values become 0.
func (l *Ledger) SetQuantity(id, raw string) (models.LineItem, error) {
	entry, ok := l.entries[id]
	if !ok {
		return models.LineItem{}, fmt.Errorf("entry %s: %w", id, models.ErrNotFound)
	}
	entry.Quantity = ParseQuantity(raw)
	entry.Recompute()
	return *entry, nil
}

// ParseQuantity turns user text into a non-negative quantity
func ParseQuantity(raw string) decimal.Decimal {
	q, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil || q.IsNegative() {
		return decimal.Zero
	}
	return q
}

// RemoveEntry deletes an entry and returns it
func (l *Ledger) RemoveEntry(id string) (models.LineItem, error) {
	entry, ok := l.entries[id]
	if !ok {
		return models.LineItem{}, fmt.Errorf("entry %s: %w", id, models.ErrNotFound)
	}
	delete(l.entries, id)

	ids := l.order[entry.Category]
	for i, eid := range ids {
		if eid == id {
			l.order[entry.Category] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	return *entry, nil
}

// Entries returns copies of the entries of category in insertion order
func (l *Ledger) Entries(category models.Category) []models.LineItem {
	ids := l.order[category]
	out := make([]models.LineItem, 0, len(ids))
	for _, id := range ids {
		out = append(out, *l.entries[id])
	}
	return out
}

// CategoryTotal sums the amounts of one category
func (l *Ledger) CategoryTotal(category models.Category) decimal.Decimal {
	total := decimal.Zero
	for _, id := range l.order[category] {
		total = total.Add(l.entries[id].Amount)
	}
	return total
}

// Subtotal sums every entry amount
func (l *Ledger) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, c := range models.Categories {
		total = total.Add(l.CategoryTotal(c))
	}
	return total
}

// Snapshot copies the ledger into the persisted line item layout
func (l *Ledger) Snapshot() models.LineItems {
	return models.LineItems{
		Labor:     l.Entries(models.CategoryLabor),
		Materials: l.Entries(models.CategoryMaterial),
		Equipment: l.Entries(models.CategoryEquipment),
	}
}

// Load replaces the ledger contents with saved entries, recomputing every amount
func (l *Ledger) Load(items models.LineItems) {
	l.entries = make(map[string]*models.LineItem)
	l.order = make(map[models.Category][]string)

	for _, c := range models.Categories {
		for _, saved := range items.ByCategory(c) {
			entry := saved
			entry.Category = c
			if entry.ID == "" || l.entries[entry.ID] != nil {
				entry.ID = l.newID()
			}
			if entry.Quantity.IsNegative() {
				entry.Quantity = decimal.Zero
			}
			if entry.UnitPrice.IsNegative() {
				entry.UnitPrice = decimal.Zero
			}
			entry.Recompute()
			l.entries[entry.ID] = &entry
			l.order[c] = append(l.order[c], entry.ID)
		}
	}
}

// OnCatalogChange flags entries whose catalog item is gone. Prices stay frozen.
func (l *Ledger) OnCatalogChange(kind models.CatalogKind, items []models.CatalogItem) {
	present := make(map[string]bool, len(items))
	for _, item := range items {
		present[strconv.FormatInt(item.ID, 10)] = true
	}
	for _, id := range l.order[kind.Category()] {
		entry := l.entries[id]
		if entry.Reference == "" {
			continue
		}
		entry.Detached = !present[entry.Reference]
	}
}
