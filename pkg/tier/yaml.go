package tier

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type yamlFile struct {
	Tiers map[string]yamlPolicy `yaml:"tiers"`
}

type yamlPolicy struct {
	Name              string  `yaml:"name"`
	StorageGB         *int64  `yaml:"storage_gb"`
	Minutes           *int64  `yaml:"minutes"`
	OveragePricePerGB *string `yaml:"overage_price_per_gb"`
	PriceRef          *string `yaml:"price_ref"`
}

// LoadYAML reads a tier table from path, layering it over DefaultPolicies.
func LoadYAML(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadTiers, err)
	}
	defer f.Close()

	return DecodeYAML(f)
}

// DecodeYAML decodes a tier table from r, layering it over DefaultPolicies.
// Only the fields present in the document override the defaults.
func DecodeYAML(r io.Reader) (*Table, error) {
	var doc yamlFile
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Join(ErrFailedToLoadTiers, err)
	}

	policies := DefaultPolicies()
	for raw, yp := range doc.Tiers {
		id := Parse(raw)
		p, ok := policies[id]
		if !ok {
			p = Policy{Tier: id, Name: raw, OveragePricePerGB: decimal.Zero}
		}

		if yp.Name != "" {
			p.Name = yp.Name
		}
		if yp.StorageGB != nil {
			p.Quota.StorageBytes = *yp.StorageGB * BytesPerGB
		}
		if yp.Minutes != nil {
			p.Quota.Minutes = *yp.Minutes
		}
		if yp.OveragePricePerGB != nil {
			price, err := decimal.NewFromString(*yp.OveragePricePerGB)
			if err != nil {
				return nil, errors.Join(ErrFailedToLoadTiers, fmt.Errorf("tier %s: %w", id, err))
			}
			p.OveragePricePerGB = price
		}
		if yp.PriceRef != nil {
			p.PriceRef = *yp.PriceRef
		}
		policies[id] = p
	}

	if err := validate(policies); err != nil {
		return nil, errors.Join(ErrFailedToLoadTiers, err)
	}
	return NewTable(policies), nil
}
