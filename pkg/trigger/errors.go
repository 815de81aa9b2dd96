package trigger

import "errors"

var (
	ErrNoJobs               = errors.New("runner has no jobs registered")
	ErrJobAlreadyRegistered = errors.New("job already registered")
	ErrInvalidSchedule      = errors.New("invalid schedule")
	ErrNilJob               = errors.New("job function is nil")
)
