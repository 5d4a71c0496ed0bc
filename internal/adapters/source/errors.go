package source

import "errors"

// Sentinel kinds for source adapter errors.
var (
	ErrUnknownSource = errors.New("unknown source")
	ErrUpstreamError = errors.New("upstream returned an error status")
)
