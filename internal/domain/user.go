package domain

import "strings"

// Plan is a subscription tier
type Plan string

const (
	PlanFree       Plan = "free"
	PlanPremium    Plan = "premium"
	PlanEnterprise Plan = "enterprise"
)

// Feature is a gated capability of the reader
type Feature string

const (
	FeatureReadAloud Feature = "read_aloud"
	FeatureTranslate Feature = "translate"
	FeatureSummarize Feature = "summarize"
)

// Allows reports whether the plan unlocks a feature
func (p Plan) Allows(f Feature) bool {
	switch p {
	case PlanPremium, PlanEnterprise:
		return true
	default:
		return f == FeatureReadAloud || f == FeatureTranslate
	}
}

// IsPaid returns true for any plan above free
func (p Plan) IsPaid() bool {
	return p == PlanPremium || p == PlanEnterprise
}

// PlanForName maps a display plan name ("Pro", "Enterprise") to a Plan
func PlanForName(name string) Plan {
	switch {
	case strings.Contains(name, "Pro"):
		return PlanPremium
	case strings.Contains(name, "Enterprise"):
		return PlanEnterprise
	default:
		return PlanFree
	}
}

// ParsePlan normalizes a plan string returned by the backend
func ParsePlan(s string) Plan {
	switch Plan(strings.ToLower(strings.TrimSpace(s))) {
	case PlanPremium:
		return PlanPremium
	case PlanEnterprise:
		return PlanEnterprise
	default:
		return PlanFree
	}
}

// User is the signed-in reader
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Plan  Plan   `json:"plan"`
}

// SignedIn returns true if the user has an identity
func (u User) SignedIn() bool {
	return u.ID != ""
}

// Subscription is a pending payment-provider subscription
type Subscription struct {
	ID    string
	KeyID string
}

// PaymentConfirmation carries what the payment provider returned after checkout
type PaymentConfirmation struct {
	PaymentID      string
	SubscriptionID string
	Signature      string
	PlanName       string
	UserID         string
}
