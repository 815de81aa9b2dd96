package notify

import "errors"

var (
	ErrNoRecipient     = errors.New("tenant has no notification recipient")
	ErrUnknownTemplate = errors.New("unknown notification template")
	ErrMarkerFailure   = errors.New("notification marker failure")
	ErrDispatchFailure = errors.New("notification dispatch failure")
)
