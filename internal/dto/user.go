package dto

type CreateUserRequest struct {
	Name          string   `json:"name" validate:"required"`
	Age           int      `json:"age" validate:"required,gte=0"`
	IncomeBand    string   `json:"income_band"`
	TotalAssets   float64  `json:"total_assets"`
	RiskTolerance string   `json:"risk_tolerance" validate:"required,oneof=low medium high"`
	Goals         []string `json:"goals"`
}

type UserResponse struct {
	UserID        string   `json:"user_id"`
	Name          string   `json:"name"`
	Age           int      `json:"age"`
	IncomeBand    string   `json:"income_band"`
	TotalAssets   float64  `json:"total_assets"`
	RiskTolerance string   `json:"risk_tolerance"`
	Goals         []string `json:"goals"`
	CreatedAt     string   `json:"created_at"`
}
