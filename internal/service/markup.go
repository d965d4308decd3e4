package service

import (
	"strings"
	"sync"

	"ticket-service/internal/models"

	"github.com/shopspring/decimal"
)

// DefaultMarkupRules are the surcharges every new session starts with
func DefaultMarkupRules() []models.MarkupRule {
	return []models.MarkupRule{
		{Name: "generalConditions", Rate: decimal.RequireFromString("0.05"), Enabled: true},
		{Name: "insurance", Rate: decimal.RequireFromString("0.02"), Enabled: true},
		{Name: "overhead", Rate: decimal.RequireFromString("0.10"), Enabled: true},
		{Name: "fee", Rate: decimal.RequireFromString("0.05"), Enabled: true},
	}
}

var one = decimal.NewFromInt(1)

// MarkupEngine applies percentage surcharges to a subtotal
type MarkupEngine struct {
	mu    sync.RWMutex
	rules []models.MarkupRule
}

// NewMarkupEngine validates and installs rules
func NewMarkupEngine(rules []models.MarkupRule) (*MarkupEngine, error) {
	e := &MarkupEngine{}
	for _, r := range rules {
		if err := e.AddRule(r); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// AddRule appends a rule. The rate must lie in [0,1] and the name must be new.
func (e *MarkupEngine) AddRule(rule models.MarkupRule) error {
	rule.Name = strings.TrimSpace(rule.Name)
	if rule.Name == "" {
		return models.Invalid("name", "markup name is required")
	}
	if rule.Rate.IsNegative() || rule.Rate.GreaterThan(one) {
		return models.Invalid("rate", "markup %s rate %s is outside [0,1]", rule.Name, rule.Rate)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range e.rules {
		if r.Name == rule.Name {
			return models.Invalid("name", "duplicate markup %s", rule.Name)
		}
	}
	e.rules = append(e.rules, rule)
	return nil
}

// Rules returns the configured rules in order
func (e *MarkupEngine) Rules() []models.MarkupRule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]models.MarkupRule, len(e.rules))
	copy(out, e.rules)
	return out
}

// DefaultEnabled lists the names of rules enabled by default
func (e *MarkupEngine) DefaultEnabled() []string {
	var names []string
	for _, r := range e.Rules() {
		if r.Enabled {
			names = append(names, r.Name)
		}
	}
	return names
}

// ComputeTotals applies the named rules to subtotal.
// Each rule contributes rate x subtotal of the original subtotal, kept exact;
// amounts are rounded to cents only when presented.
func (e *MarkupEngine) ComputeTotals(subtotal decimal.Decimal, enabled []string) (models.Totals, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rates := make(map[string]decimal.Decimal, len(e.rules))
	for _, r := range e.rules {
		rates[r.Name] = r.Rate
	}

	totals := models.Totals{
		Subtotal: subtotal,
		PerRule:  make(map[string]decimal.Decimal, len(enabled)),
		Total:    subtotal,
	}
	var unknown []string
	for _, name := range enabled {
		rate, ok := rates[name]
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		if _, seen := totals.PerRule[name]; seen {
			continue
		}
		amount := rate.Mul(subtotal)
		totals.PerRule[name] = amount
		totals.Total = totals.Total.Add(amount)
	}
	if len(unknown) > 0 {
		return models.Totals{}, &models.ValidationError{Fields: unknown, Message: "unknown markup"}
	}
	return totals, nil
}
