package service

import (
	"context"
	"net/url"
	"strconv"

	"fino-ai/internal/models"
)

// MockDatasetVersion identifies the bundled fixture set. Recommendations
// generated in mock mode are reproducible against this version.
const MockDatasetVersion = "2025-07"

// MockConnector serves a fixed sample dataset mirroring the real upstreams'
// payload shape, including their camelCase field names, so the normalizer's
// alias tables run the same path in both modes.
type MockConnector struct{}

func NewMockConnector() *MockConnector { return &MockConnector{} }

func (c *MockConnector) Mode() models.SourceMode { return models.ModeMock }

func (c *MockConnector) Fetch(_ context.Context, source models.SourceType, query url.Values) ([]RawPayload, error) {
	switch source {
	case models.SourceBankProduct:
		products := mockBankProducts()
		if t := query.Get("product_type"); t != "" {
			products = filterPayloads(products, "productType", t)
		}
		return products, nil
	case models.SourceYouthPolicy:
		policies := mockYouthPolicies()
		if ageStr := query.Get("age"); ageStr != "" {
			if age, err := strconv.Atoi(ageStr); err == nil {
				policies = filterByAge(policies, age)
			}
		}
		return policies, nil
	default:
		return []RawPayload{}, nil
	}
}

func filterPayloads(in []RawPayload, field, want string) []RawPayload {
	out := make([]RawPayload, 0, len(in))
	for _, p := range in {
		if s, _ := p[field].(string); s == want {
			out = append(out, p)
		}
	}
	return out
}

func filterByAge(in []RawPayload, age int) []RawPayload {
	out := make([]RawPayload, 0, len(in))
	for _, p := range in {
		min, _ := p["targetAgeMin"].(float64)
		max, _ := p["targetAgeMax"].(float64)
		if float64(age) >= min && float64(age) <= max {
			out = append(out, p)
		}
	}
	return out
}

func mockBankProducts() []RawPayload {
	return []RawPayload{
		{
			"productId":    "BANK001",
			"productName":  "정기예금",
			"productType":  "DEPOSIT",
			"bankCode":     "001",
			"bankName":     "국민은행",
			"interestRate": 3.5,
			"minAmount":    1000000.0,
			"maxAmount":    100000000.0,
			"termMonths":   12.0,
			"riskLevel":    1.0,
			"description":  "안전한 정기예금 상품",
		},
		{
			"productId":    "BANK002",
			"productName":  "정기적금",
			"productType":  "SAVINGS",
			"bankCode":     "002",
			"bankName":     "신한은행",
			"interestRate": 4.0,
			"minAmount":    500000.0,
			"maxAmount":    50000000.0,
			"termMonths":   24.0,
			"riskLevel":    1.0,
			"description":  "정기적금 상품",
		},
		{
			"productId":      "BANK003",
			"productName":    "청년도약계좌",
			"productType":    "YOUTH_ACCOUNT",
			"bankCode":       "001",
			"bankName":       "국민은행",
			"interestRate":   5.0,
			"minAmount":      100000.0,
			"maxAmount":      10000000.0,
			"termMonths":     36.0,
			"riskLevel":      2.0,
			"description":    "청년을 위한 특별 상품",
			"targetCustomer": "청년",
		},
		{
			"productId":    "BANK004",
			"productName":  "주식형펀드",
			"productType":  "FUND",
			"bankCode":     "003",
			"bankName":     "우리은행",
			"interestRate": 7.0,
			"minAmount":    1000000.0,
			"maxAmount":    1000000000.0,
			"termMonths":   0.0,
			"riskLevel":    4.0,
			"description":  "주식형 펀드 상품",
		},
		{
			"productId":    "BANK005",
			"productName":  "채권형펀드",
			"productType":  "BOND_FUND",
			"bankCode":     "004",
			"bankName":     "하나은행",
			"interestRate": 4.5,
			"minAmount":    500000.0,
			"maxAmount":    500000000.0,
			"termMonths":   0.0,
			"riskLevel":    2.0,
			"description":  "채권형 펀드 상품",
		},
	}
}

func mockYouthPolicies() []RawPayload {
	return []RawPayload{
		{
			"policyId":      "YOUTH001",
			"policyName":    "청년도약계좌 지원",
			"policyType":    "FINANCIAL_SUPPORT",
			"targetAgeMin":  19.0,
			"targetAgeMax":  34.0,
			"benefitAmount": 5000000.0,
			"requirements":  "만 19세~34세 청년",
		},
		{
			"policyId":      "YOUTH002",
			"policyName":    "청년주택청약 지원",
			"policyType":    "HOUSING_SUPPORT",
			"targetAgeMin":  20.0,
			"targetAgeMax":  39.0,
			"benefitAmount": 2000000.0,
			"requirements":  "만 20세~39세 청년, 무주택자",
		},
		{
			"policyId":      "YOUTH003",
			"policyName":    "청년취업 지원금",
			"policyType":    "EMPLOYMENT_SUPPORT",
			"targetAgeMin":  18.0,
			"targetAgeMax":  29.0,
			"benefitAmount": 1000000.0,
			"requirements":  "만 18세~29세 청년, 구직자",
		},
	}
}
