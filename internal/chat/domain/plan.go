package domain

import "strings"

// Plan billing tier name, upper case
type Plan string

const (
	// PlanFree restricted tier
	PlanFree Plan = "FREE"
	// PlanPro paid
	PlanPro Plan = "PRO"
	// PlanUlt paid
	PlanUlt Plan = "ULT"
)

// ParsePlan normalise a stored plan name, empty falls back to FREE
func ParsePlan(s string) Plan {
	p := strings.ToUpper(strings.TrimSpace(s))
	if p == "" {
		return PlanFree
	}
	return Plan(p)
}

// PlanStatus cached plan lookup
type PlanStatus struct {
	UserID string `json:"user_id"`
	Plan   Plan   `json:"plan"`
}
