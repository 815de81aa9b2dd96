// Package tier holds the subscription tier policy table: the storage and
// transcription-minute quota granted by each tier, the per-GB storage overage
// price and the billing processor price reference used to purchase the tier.
//
// The table is an immutable lookup. Resolve is total: an unknown or empty tier
// resolves to the starter policy instead of failing, so callers never need an
// error path for tier lookups.
//
// # Usage
//
//	table := tier.NewTable(tier.DefaultPolicies())
//	policy := table.Resolve(tenant.Tier)
//	if snapshot.TotalBytes > policy.Quota.StorageBytes {
//		// over quota
//	}
//
// Deployments can override quotas, prices and price references with a YAML
// file:
//
//	table, err := tier.LoadYAML("tiers.yaml")
//
//	# tiers.yaml
//	tiers:
//	  growth:
//	    name: Growth
//	    storage_gb: 10
//	    minutes: 600
//	    overage_price_per_gb: "0.25"
//	    price_ref: price_1Pabc
//
// Tiers missing from the file keep their default policy.
package tier
