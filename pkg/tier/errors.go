package tier

import "errors"

var (
	ErrMissingStarter    = errors.New("starter tier policy is required")
	ErrInvalidPolicy     = errors.New("invalid tier policy")
	ErrFailedToLoadTiers = errors.New("failed to load tier policies")
)
