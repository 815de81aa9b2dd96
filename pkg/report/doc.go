// Package report archives reconciliation run summaries.
//
// An Archiver stores a Report as a JSON document under a key derived from its
// kind, creation date and ID:
//
//	<prefix>/<kind>/2025/03/01/<id>.json
//
// Two backends are provided: S3Archiver for AWS S3 and S3-compatible services
// (MinIO and friends), and LocalArchiver for a directory on disk. Archiving is
// best effort from the caller's point of view; the reconciler only logs
// failures.
package report
