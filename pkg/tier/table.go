package tier

import (
	"errors"
	"fmt"
	"maps"
)

// Table is an immutable tier → policy lookup. It is safe for concurrent use.
type Table struct {
	policies map[Tier]Policy
	byPrice  map[string]Tier
}

// NewTable builds a table from the given policies.
// Panics if the starter policy is missing, since Resolve falls back to it.
func NewTable(policies map[Tier]Policy) *Table {
	if err := validate(policies); err != nil {
		panic("tier: " + err.Error())
	}

	t := &Table{
		policies: maps.Clone(policies),
		byPrice:  make(map[string]Tier, len(policies)),
	}
	for id, p := range t.policies {
		if p.PriceRef != "" {
			t.byPrice[p.PriceRef] = id
		}
	}
	return t
}

// Resolve returns the policy for tier, or the starter policy when tier is unknown.
func (t *Table) Resolve(tier Tier) Policy {
	if p, ok := t.policies[Parse(string(tier))]; ok {
		return p
	}
	return t.policies[Starter]
}

// ByPriceRef finds the policy purchased through the given processor price id.
func (t *Table) ByPriceRef(ref string) (Policy, bool) {
	if ref == "" {
		return Policy{}, false
	}
	id, ok := t.byPrice[ref]
	if !ok {
		return Policy{}, false
	}
	return t.policies[id], true
}

// Tiers returns all configured tiers.
func (t *Table) Tiers() []Tier {
	out := make([]Tier, 0, len(t.policies))
	for id := range t.policies {
		out = append(out, id)
	}
	return out
}

func validate(policies map[Tier]Policy) error {
	if _, ok := policies[Starter]; !ok {
		return ErrMissingStarter
	}
	seen := make(map[string]Tier, len(policies))
	for id, p := range policies {
		if p.Tier != id {
			return errors.Join(ErrInvalidPolicy, fmt.Errorf("tier mismatch: key %s != policy.Tier %s", id, p.Tier))
		}
		if p.Quota.StorageBytes < 0 || p.Quota.Minutes < 0 {
			return errors.Join(ErrInvalidPolicy, fmt.Errorf("tier %s has a negative quota", id))
		}
		if p.OveragePricePerGB.IsNegative() {
			return errors.Join(ErrInvalidPolicy, fmt.Errorf("tier %s has a negative overage price", id))
		}
		if p.PriceRef == "" {
			continue
		}
		if other, dup := seen[p.PriceRef]; dup {
			return errors.Join(ErrInvalidPolicy, fmt.Errorf("price ref %s shared by %s and %s", p.PriceRef, other, id))
		}
		seen[p.PriceRef] = id
	}
	return nil
}
