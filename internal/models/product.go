package models

import (
	"time"
)

type SourceType string

const (
	SourceBankProduct SourceType = "bank_product"
	SourceYouthPolicy SourceType = "youth_policy"
)

// ParseSourceType maps a path/query value to a SourceType.
// Accepts both underscore and hyphen spellings since upstream URLs use hyphens.
func ParseSourceType(s string) (SourceType, bool) {
	switch s {
	case "bank_product", "bank-products", "bank-product":
		return SourceBankProduct, true
	case "youth_policy", "youth-policies", "youth-policy":
		return SourceYouthPolicy, true
	default:
		return "", false
	}
}

// CanonicalProduct is the single internal shape every upstream listing is
// normalized into. Numeric attributes use a fixed unit system: rates are
// annual fractions, amounts are KRW, ages and terms are integers.
type CanonicalProduct struct {
	ID                  string             `db:"id" json:"id"`
	SourceType          SourceType         `db:"source_type" json:"source_type"`
	Name                string             `db:"name" json:"name"`
	Category            string             `db:"category" json:"category"`
	EligibilityCriteria []string           `db:"eligibility_criteria" json:"eligibility_criteria"`
	NumericAttributes   map[string]float64 `db:"numeric_attributes" json:"numeric_attributes"`
	RawSourceRef        string             `db:"raw_source_ref" json:"raw_source_ref,omitempty"`
	CreatedAt           time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time          `db:"updated_at" json:"updated_at"`
}

// Attr returns a numeric attribute or the given fallback when absent.
func (p *CanonicalProduct) Attr(name string, fallback float64) float64 {
	if v, ok := p.NumericAttributes[name]; ok {
		return v
	}
	return fallback
}
