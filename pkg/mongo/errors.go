package mongo

import "errors"

var (
	// ErrFailedToConnectToMongo is returned after every connect attempt failed.
	ErrFailedToConnectToMongo = errors.New("failed to connect to content database")
	// ErrHealthcheckFailed wraps a failed readiness ping.
	ErrHealthcheckFailed = errors.New("content database healthcheck failed")
)
