package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Prices and amounts are persisted and exchanged as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// Category identifies one of the three billable line item collections
type Category string

const (
	CategoryLabor     Category = "labor"
	CategoryMaterial  Category = "material"
	CategoryEquipment Category = "equipment"
)

// Categories lists the ledger categories in display order
var Categories = []Category{CategoryLabor, CategoryMaterial, CategoryEquipment}

// Valid reports whether c is a known category
func (c Category) Valid() bool {
	switch c {
	case CategoryLabor, CategoryMaterial, CategoryEquipment:
		return true
	}
	return false
}

// CatalogKind identifies a catalog collection
type CatalogKind string

const (
	CatalogMaterials CatalogKind = "materials"
	CatalogEquipment CatalogKind = "equipment"
)

// Category returns the ledger category priced from this catalog
func (k CatalogKind) Category() Category {
	if k == CatalogEquipment {
		return CategoryEquipment
	}
	return CategoryMaterial
}

// CatalogItem is a purchasable item with its reference price
type CatalogItem struct {
	ID    int64           `json:"id"`
	Name  string          `json:"name"`
	Unit  string          `json:"unit"`
	Price decimal.Decimal `json:"price"`
}

// LineItem is one billable entry of a ticket draft.
// Description, Unit and UnitPrice are frozen when the reference is selected.
type LineItem struct {
	ID          string          `json:"id"`
	Category    Category        `json:"category"`
	Reference   string          `json:"reference"`
	Description string          `json:"description"`
	Unit        string          `json:"unit"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Amount      decimal.Decimal `json:"amount"`
	Detached    bool            `json:"detached,omitempty"`
}

// Recompute derives Amount from Quantity and UnitPrice
func (li *LineItem) Recompute() {
	li.Amount = LineAmount(li.Quantity, li.UnitPrice)
}

// LineAmount returns quantity x unit price rounded to cents
func LineAmount(quantity, unitPrice decimal.Decimal) decimal.Decimal {
	return quantity.Mul(unitPrice).Round(2)
}

// LineItems holds a ticket's entries as flat arrays per category
type LineItems struct {
	Labor     []LineItem `json:"labor"`
	Materials []LineItem `json:"materials"`
	Equipment []LineItem `json:"equipment"`
}

// ByCategory returns the entries of one category
func (l LineItems) ByCategory(c Category) []LineItem {
	switch c {
	case CategoryLabor:
		return l.Labor
	case CategoryMaterial:
		return l.Materials
	case CategoryEquipment:
		return l.Equipment
	}
	return nil
}

// All returns every entry: labor, then materials, then equipment
func (l LineItems) All() []LineItem {
	all := make([]LineItem, 0, len(l.Labor)+len(l.Materials)+len(l.Equipment))
	all = append(all, l.Labor...)
	all = append(all, l.Materials...)
	return append(all, l.Equipment...)
}

// MarkupRule is a percentage surcharge applied to the subtotal
type MarkupRule struct {
	Name    string          `json:"name"`
	Rate    decimal.Decimal `json:"rate"`
	Enabled bool            `json:"enabled"`
}

// Totals is the result of applying markups to a subtotal
type Totals struct {
	Subtotal decimal.Decimal            `json:"subtotal"`
	PerRule  map[string]decimal.Decimal `json:"markupAmounts"`
	Total    decimal.Decimal            `json:"total"`
}

// Header carries the descriptive fields of a ticket
type Header struct {
	ProjectName     string `json:"projectName"`
	ProjectNumber   string `json:"projectNumber"`
	TicketDate      string `json:"ticketDate"`
	TicketNumber    string `json:"ticketNumber"`
	Contractor      string `json:"contractor"`
	Location        string `json:"location"`
	WorkDescription string `json:"workDescription"`
}

// Validate checks that every required header field is filled in
func (h Header) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"projectName", h.ProjectName},
		{"projectNumber", h.ProjectNumber},
		{"ticketDate", h.TicketDate},
		{"ticketNumber", h.TicketNumber},
		{"contractor", h.Contractor},
		{"workDescription", h.WorkDescription},
	}

	var missing []string
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing, Message: "please fill in all required fields"}
	}
	return nil
}

// Ticket is a completed or draft T&M ticket
type Ticket struct {
	ID string `json:"id,omitempty"`
	Header
	LineItems      LineItems                  `json:"lineItems"`
	EnabledMarkups []string                   `json:"enabledMarkups"`
	Subtotal       decimal.Decimal            `json:"subtotal"`
	MarkupAmounts  map[string]decimal.Decimal `json:"markupAmounts"`
	Total          decimal.Decimal            `json:"total"`
	CreatedAt      time.Time                  `json:"createdAt"`
	UpdatedAt      time.Time                  `json:"updatedAt"`
}

// EmailData is the payload handed to a delivery channel
type EmailData struct {
	To      string `json:"to"`
	CC      string `json:"cc,omitempty"`
	Subject string `json:"subject"`
	Message string `json:"message"`
	PDFData string `json:"pdfData,omitempty"`
}

// Draft is a locally composed message handed back to the user
type Draft struct {
	MailtoURL string `json:"mailtoUrl"`
	To        string `json:"to"`
	CC        string `json:"cc,omitempty"`
	Subject   string `json:"subject,omitempty"`
	Body      string `json:"body,omitempty"`
}

// DeliveryOutcome reports which channel handled a delivery and how it went
type DeliveryOutcome struct {
	Success      bool   `json:"success"`
	UsedFallback bool   `json:"usedFallback"`
	Error        string `json:"error,omitempty"`
	Message      string `json:"message,omitempty"`
	PreviewURL   string `json:"previewUrl,omitempty"`
	Draft        *Draft `json:"draft,omitempty"`
}
