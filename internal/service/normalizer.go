package service

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"fino-ai/internal/models"
)

// RawPayload is one upstream listing as decoded JSON. Field names and units
// vary per source; the mapping tables below absorb that drift.
type RawPayload map[string]any

type fieldKind int

const (
	kindText fieldKind = iota
	kindNumber
	kindInteger
	kindRate // percent or fraction input, normalized to an annual fraction
)

// fieldRule maps one canonical field to its upstream aliases. Aliases are
// tried in order; the first present wins. A rule without a default and
// without a matching alias is a MissingField error when required.
type fieldRule struct {
	target   string
	aliases  []string
	kind     fieldKind
	required bool
	def      *float64
}

func def(v float64) *float64 { return &v }

type sourceMapping struct {
	category string
	id       fieldRule
	name     fieldRule
	numerics []fieldRule
	criteria func(raw RawPayload, attrs map[string]float64) []string
}

var bankProductMapping = sourceMapping{
	category: "deposit",
	id:       fieldRule{target: "id", aliases: []string{"productId", "product_code", "product_id", "fin_prdt_cd"}, kind: kindText, required: true},
	name:     fieldRule{target: "name", aliases: []string{"productName", "product_name", "fin_prdt_nm"}, kind: kindText, required: true},
	numerics: []fieldRule{
		{target: "interest_rate", aliases: []string{"interestRate", "interest_rate", "intr_rate"}, kind: kindRate, required: true},
		{target: "min_amount", aliases: []string{"minAmount", "min_amount"}, kind: kindNumber, def: def(0)},
		{target: "max_amount", aliases: []string{"maxAmount", "max_amount"}, kind: kindNumber, def: def(0)},
		{target: "term_months", aliases: []string{"termMonths", "term_months", "save_trm"}, kind: kindInteger, def: def(0)},
		{target: "risk_level", aliases: []string{"riskLevel", "risk_level"}, kind: kindInteger, def: def(1)},
	},
	criteria: bankProductCriteria,
}

var youthPolicyMapping = sourceMapping{
	category: "youth_policy",
	id:       fieldRule{target: "id", aliases: []string{"policyId", "policy_code", "policy_id", "plcy_no"}, kind: kindText, required: true},
	name:     fieldRule{target: "name", aliases: []string{"policyName", "policy_name", "plcy_nm"}, kind: kindText, required: true},
	numerics: []fieldRule{
		{target: "age_min", aliases: []string{"targetAgeMin", "target_age_min", "sprt_trgt_min_age"}, kind: kindInteger, required: true},
		{target: "age_max", aliases: []string{"targetAgeMax", "target_age_max", "sprt_trgt_max_age"}, kind: kindInteger, required: true},
		{target: "benefit_amount", aliases: []string{"benefitAmount", "benefit_amount"}, kind: kindNumber, def: def(0)},
		{target: "risk_level", aliases: []string{"riskLevel", "risk_level"}, kind: kindInteger, def: def(1)},
	},
	criteria: youthPolicyCriteria,
}

func mappingFor(source models.SourceType) (sourceMapping, error) {
	switch source {
	case models.SourceBankProduct:
		return bankProductMapping, nil
	case models.SourceYouthPolicy:
		return youthPolicyMapping, nil
	default:
		return sourceMapping{}, fmt.Errorf("unknown source type %q", source)
	}
}

// Normalize maps one upstream payload into the canonical product shape.
// Pure function: no I/O, no shared state, safe to run per payload in parallel.
func Normalize(raw RawPayload, source models.SourceType) (*models.CanonicalProduct, error) {
	mapping, err := mappingFor(source)
	if err != nil {
		return nil, err
	}

	id, err := textField(raw, mapping.id)
	if err != nil {
		return nil, err
	}
	name, err := textField(raw, mapping.name)
	if err != nil {
		return nil, err
	}

	attrs := make(map[string]float64, len(mapping.numerics))
	for _, rule := range mapping.numerics {
		v, ok, err := numericField(raw, rule)
		if err != nil {
			return nil, err
		}
		if ok {
			attrs[rule.target] = v
		}
	}

	category := mapping.category
	if c := firstText(raw, "productType", "product_type", "policyType", "policy_type"); c != "" {
		category = strings.ToLower(c)
	}

	ref, _ := json.Marshal(raw)
	now := time.Now().UTC()

	return &models.CanonicalProduct{
		ID:                  id,
		SourceType:          source,
		Name:                name,
		Category:            category,
		EligibilityCriteria: mapping.criteria(raw, attrs),
		NumericAttributes:   attrs,
		RawSourceRef:        string(ref),
		CreatedAt:           now,
		UpdatedAt:           now,
	}, nil
}

// ItemResult reports one payload of a batch. Failures never abort siblings.
type ItemResult struct {
	Index   int                      `json:"index"`
	Product *models.CanonicalProduct `json:"product,omitempty"`
	Err     error                    `json:"-"`
}

// NormalizeBatch normalizes each payload independently, collecting per-item
// outcomes in input order.
func NormalizeBatch(raws []RawPayload, source models.SourceType) []ItemResult {
	results := make([]ItemResult, len(raws))
	for i, raw := range raws {
		p, err := Normalize(raw, source)
		results[i] = ItemResult{Index: i, Product: p, Err: err}
	}
	return results
}

func textField(raw RawPayload, rule fieldRule) (string, error) {
	for _, alias := range rule.aliases {
		v, ok := raw[alias]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case string:
			if s := strings.TrimSpace(t); s != "" {
				return s, nil
			}
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64), nil
		default:
			return "", &NormalizationError{Kind: TypeMismatch, Field: rule.target, Err: fmt.Errorf("got %T", v)}
		}
	}
	if rule.required {
		return "", &NormalizationError{Kind: MissingField, Field: rule.target}
	}
	return "", nil
}

func numericField(raw RawPayload, rule fieldRule) (float64, bool, error) {
	for _, alias := range rule.aliases {
		v, ok := raw[alias]
		if !ok || v == nil {
			continue
		}
		n, err := coerceNumeric(v, rule.kind)
		if err != nil {
			return 0, false, &NormalizationError{Kind: TypeMismatch, Field: rule.target, Err: err}
		}
		return n, true, nil
	}
	if rule.def != nil {
		return *rule.def, true, nil
	}
	if rule.required {
		return 0, false, &NormalizationError{Kind: MissingField, Field: rule.target}
	}
	return 0, false, nil
}

func coerceNumeric(v any, kind fieldKind) (float64, error) {
	var n float64
	percent := false

	switch t := v.(type) {
	case float64:
		n = t
	case int:
		n = float64(t)
	case string:
		s := strings.TrimSpace(t)
		if strings.HasSuffix(s, "%") {
			percent = true
			s = strings.TrimSuffix(s, "%")
			s = strings.TrimSpace(s)
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot parse %q as number", t)
		}
		n = parsed
	default:
		return 0, fmt.Errorf("got %T", v)
	}

	switch kind {
	case kindInteger:
		return math.Trunc(n), nil
	case kindRate:
		// Rates arrive as "3.5%", 3.5 or 0.035 depending on the upstream.
		// Anything marked percent or >= 1 is a percentage; bare values below
		// 1 are already fractions.
		if percent || n >= 1 {
			return n / 100, nil
		}
		return n, nil
	default:
		return n, nil
	}
}

func firstText(raw RawPayload, aliases ...string) string {
	for _, alias := range aliases {
		if s, ok := raw[alias].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// bankProductCriteria synthesizes predicate strings from structured fields.
// Youth-targeted products get the statutory 19..34 age window.
func bankProductCriteria(raw RawPayload, attrs map[string]float64) []string {
	var criteria []string

	target := strings.ToLower(firstText(raw, "targetCustomer", "target_customer"))
	if strings.Contains(target, "청년") || strings.Contains(target, "youth") {
		criteria = append(criteria, "age>=19", "age<=34")
	}

	criteria = append(criteria, passthroughPredicates(raw, "eligibilityRequirements", "eligibility_requirements")...)
	return criteria
}

func youthPolicyCriteria(raw RawPayload, attrs map[string]float64) []string {
	var criteria []string
	if min, ok := attrs["age_min"]; ok && min > 0 {
		criteria = append(criteria, fmt.Sprintf("age>=%d", int(min)))
	}
	if max, ok := attrs["age_max"]; ok && max > 0 {
		criteria = append(criteria, fmt.Sprintf("age<=%d", int(max)))
	}
	criteria = append(criteria, passthroughPredicates(raw, "eligibilityCriteria", "eligibility_criteria")...)
	return criteria
}

// passthroughPredicates keeps upstream entries that are already in predicate
// form (field op value). Free-text requirements are not evaluable and stay in
// raw_source_ref only.
func passthroughPredicates(raw RawPayload, aliases ...string) []string {
	var out []string
	for _, alias := range aliases {
		list, ok := raw[alias].([]any)
		if !ok {
			continue
		}
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				continue
			}
			if _, parsed := parsePredicate(s); parsed {
				out = append(out, strings.ReplaceAll(s, " ", ""))
			}
		}
	}
	return out
}
