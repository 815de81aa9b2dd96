package tier

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Tier identifies a subscription plan.
type Tier string

const (
	Starter      Tier = "starter"
	Growth       Tier = "growth"
	Professional Tier = "professional"
	Enterprise   Tier = "enterprise"
)

// BytesPerGB is the decimal gigabyte used for quotas and overage pricing.
const BytesPerGB int64 = 1_000_000_000

// Parse normalizes a raw tier name. Unknown names are returned as-is;
// Table.Resolve maps them onto the starter policy.
func Parse(s string) Tier {
	return Tier(strings.ToLower(strings.TrimSpace(s)))
}

// Known reports whether t is one of the built-in tiers.
func (t Tier) Known() bool {
	switch t {
	case Starter, Growth, Professional, Enterprise:
		return true
	}
	return false
}

func (t Tier) String() string {
	return string(t)
}

// Quota is the usage ceiling granted by a tier.
type Quota struct {
	StorageBytes int64 `json:"storage_bytes"`
	Minutes      int64 `json:"minutes"`
}

// Policy describes what a tier grants and how storage overage is priced.
type Policy struct {
	Tier              Tier
	Name              string
	Quota             Quota
	OveragePricePerGB decimal.Decimal
	PriceRef          string // billing processor price id, empty for free tiers
}

// Purchasable reports whether the tier can be bought through the billing processor.
func (p Policy) Purchasable() bool {
	return p.PriceRef != ""
}

// DefaultPolicies returns the built-in tier table.
func DefaultPolicies() map[Tier]Policy {
	return map[Tier]Policy{
		Starter: {
			Tier:              Starter,
			Name:              "Starter",
			Quota:             Quota{StorageBytes: 1 * BytesPerGB, Minutes: 60},
			OveragePricePerGB: decimal.RequireFromString("0.50"),
		},
		Growth: {
			Tier:              Growth,
			Name:              "Growth",
			Quota:             Quota{StorageBytes: 10 * BytesPerGB, Minutes: 600},
			OveragePricePerGB: decimal.RequireFromString("0.25"),
			PriceRef:          "price_growth",
		},
		Professional: {
			Tier:              Professional,
			Name:              "Professional",
			Quota:             Quota{StorageBytes: 100 * BytesPerGB, Minutes: 3000},
			OveragePricePerGB: decimal.RequireFromString("0.15"),
			PriceRef:          "price_professional",
		},
		Enterprise: {
			Tier:              Enterprise,
			Name:              "Enterprise",
			Quota:             Quota{StorageBytes: 1000 * BytesPerGB, Minutes: 20000},
			OveragePricePerGB: decimal.RequireFromString("0.10"),
			PriceRef:          "price_enterprise",
		},
	}
}
