package report

import "errors"

var (
	ErrInvalidConfig      = errors.New("invalid archive configuration")
	ErrInvalidReport      = errors.New("invalid report")
	ErrFailedToLoadConfig = errors.New("failed to load AWS config")
	ErrFailedToEncode     = errors.New("failed to encode report")
	ErrFailedToWrite      = errors.New("failed to write report")

	// S3 error classification
	ErrBucketNotFound     = errors.New("bucket not found")
	ErrAccessDenied       = errors.New("access denied")
	ErrServiceUnavailable = errors.New("service temporarily unavailable")
	ErrOperationTimeout   = errors.New("operation timed out")
	ErrOperationCanceled  = errors.New("operation canceled")
)
