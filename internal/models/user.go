package models

import (
	"time"

	"github.com/google/uuid"
)

type RiskTolerance string

const (
	RiskLow    RiskTolerance = "low"
	RiskMedium RiskTolerance = "medium"
	RiskHigh   RiskTolerance = "high"
)

// Rank orders tolerances for predicate evaluation: low < medium < high.
func (r RiskTolerance) Rank() int {
	switch r {
	case RiskLow:
		return 1
	case RiskMedium:
		return 2
	case RiskHigh:
		return 3
	default:
		return 0
	}
}

// UserProfile is an immutable snapshot taken per recommendation request.
// The pipeline never mutates it.
type UserProfile struct {
	UserID        uuid.UUID     `db:"user_id" json:"user_id"`
	Name          string        `db:"name" json:"name"`
	Age           int           `db:"age" json:"age"`
	IncomeBand    string        `db:"income_band" json:"income_band"`
	TotalAssets   float64       `db:"total_assets" json:"total_assets"`
	RiskTolerance RiskTolerance `db:"risk_tolerance" json:"risk_tolerance"`
	Goals         []string      `db:"goals" json:"goals"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}

// HasGoal reports whether the profile carries the given goal tag.
func (u *UserProfile) HasGoal(tag string) bool {
	for _, g := range u.Goals {
		if g == tag {
			return true
		}
	}
	return false
}
