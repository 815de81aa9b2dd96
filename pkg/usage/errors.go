package usage

import "errors"

var (
	// ErrDataSource is returned when the content store is unreachable or
	// returns malformed data. Callers may retry.
	ErrDataSource = errors.New("usage data source failure")

	ErrIteratorClosed = errors.New("record iterator is closed")
)
