package config

import (
	"fmt"
	"os"

	"ticket-service/internal/models"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// RulesFile is the YAML document describing markups and labor grades.
//
//	replace_defaults: false
//	markups:
//	  - name: bond
//	    rate: 0.015
//	    enabled: false
//	labor_grades:
//	  - name: Foreman
//	    rate: 72.50
//	default_grade: Journeyman
type RulesFile struct {
	ReplaceDefaults bool          `yaml:"replace_defaults"`
	Markups         []MarkupEntry `yaml:"markups"`
	LaborGrades     []GradeEntry  `yaml:"labor_grades"`
	DefaultGrade    string        `yaml:"default_grade"`
}

type MarkupEntry struct {
	Name    string  `yaml:"name"`
	Rate    Decimal `yaml:"rate"`
	Enabled *bool   `yaml:"enabled"`
}

type GradeEntry struct {
	Name string  `yaml:"name"`
	Rate Decimal `yaml:"rate"`
}

// Decimal reads a YAML scalar exactly as written
type Decimal struct {
	decimal.Decimal
}

// UnmarshalYAML parses the scalar exactly as written
func (d *Decimal) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: rate must be a number", value.Line)
	}
	parsed, err := decimal.NewFromString(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: invalid rate %q", value.Line, value.Value)
	}
	d.Decimal = parsed
	return nil
}

// LoadMarkupRules reads a rules file. Range and duplicate checks happen when
// the rules are installed in the markup engine.
func LoadMarkupRules(path string) (*RulesFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var rules RulesFile
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("failed to parse rules file %s: %w", path, err)
	}
	return &rules, nil
}

// MarkupRules converts the file entries; a missing enabled flag means enabled
func (r *RulesFile) MarkupRules() []models.MarkupRule {
	out := make([]models.MarkupRule, 0, len(r.Markups))
	for _, m := range r.Markups {
		enabled := true
		if m.Enabled != nil {
			enabled = *m.Enabled
		}
		out = append(out, models.MarkupRule{Name: m.Name, Rate: m.Rate.Decimal, Enabled: enabled})
	}
	return out
}
