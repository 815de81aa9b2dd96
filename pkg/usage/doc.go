// Package usage computes byte-accurate storage usage for a tenant from the
// records held in a content store.
//
// Usage is derived on every call: the Aggregator streams the tenant's records
// and sums the UTF-8 byte length of each text field into four categories.
//
//	content       += len(record.Content)
//	transcription += len(record.TranscriptionText)
//	analysis      += len(record.AnalysisSummary) + KeyPointBytes*len(record.AnalysisKeyPoints)
//	metadata      += MetadataOverheadBytes
//
// Sums are kept in int64 and Snapshot.TotalBytes always equals the sum of the
// breakdown. MB/GB values are presentation helpers derived from TotalBytes.
//
// Basic usage:
//
//	src := usage.NewMongoSource(db.Collection("content_records"))
//	agg := usage.NewAggregator(src)
//
//	snap, err := agg.ComputeUsage(ctx, tenantID)
//	if errors.Is(err, usage.ErrDataSource) {
//	    // content store unreachable, retry later
//	}
//	fmt.Println(snap.Human())
//
// Two sources are provided: MongoSource, which streams a cursor filtered by
// tenant_id, and MemorySource for tests and local development.
package usage
