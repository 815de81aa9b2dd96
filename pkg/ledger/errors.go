package ledger

import "errors"

var (
	// ErrDuplicateEvent is returned by Append when the external event id is
	// already recorded. It signals success to webhook callers.
	ErrDuplicateEvent = errors.New("billing event already recorded")

	ErrInvalidEntry = errors.New("invalid ledger entry")
	ErrStore        = errors.New("ledger store failure")
)
