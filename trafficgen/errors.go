package trafficgen

import "errors"

var (
	// ErrInvalidConfig reports an invalid or inconsistent configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrOutOfRange reports a request outside the addressable range of the
	// device.
	ErrOutOfRange = errors.New("request out of range")

	// ErrGeneratorClosed is returned by every operation after Close.
	ErrGeneratorClosed = errors.New("traffic generator closed")
)
