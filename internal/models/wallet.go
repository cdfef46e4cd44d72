package models

const PointsCeiling int64 = 9_999_999

type Lifetime struct {
	Earned int64 `json:"earned"`
	Spent  int64 `json:"spent"`
}

type BalanceResponse struct {
	Balance       int64 `json:"balance"`
	LifetimeEarn  int64 `json:"lifetime_earned"`
	LifetimeSpent int64 `json:"lifetime_spent"`
	EarnedToday   int64 `json:"earned_today"`
}

// ClampPoints keeps a balance inside [0, PointsCeiling].
func ClampPoints(n int64) int64 {
	if n < 0 {
		return 0
	}
	if n > PointsCeiling {
		return PointsCeiling
	}
	return n
}
