package subscription

import (
	"strings"
	"time"

	dErrors "supernomad/pkg/domain-errors"
)

// Tier is the subscription level.
type Tier string

const (
	TierFree     Tier = "free"
	TierPremium  Tier = "premium"
	TierLifetime Tier = "lifetime"
)

// FreeMaxCountries is the tracked-country cap on the free tier.
const FreeMaxCountries = 3

// Unlimited is returned by MaxCountries for uncapped tiers.
const Unlimited = -1

func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "tier must be one of free, premium, lifetime")
	}
	return t, nil
}

func (t Tier) IsValid() bool {
	switch t {
	case TierFree, TierPremium, TierLifetime:
		return true
	}
	return false
}

// MaxCountries is the tracked-country cap, or Unlimited.
func (t Tier) MaxCountries() int {
	if t == TierFree || t == "" {
		return FreeMaxCountries
	}
	return Unlimited
}

// Subscription is the persisted subscription document.
type Subscription struct {
	Tier      Tier      `json:"tier"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}
