package meter

import "errors"

var (
	// ErrUnknownProvider is returned for a webhook from a provider without a
	// registered parser.
	ErrUnknownProvider = errors.New("unknown billing provider")
)
