package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrMetadataNotFound = errors.New("metadata key not found")
	ErrStoreClosed      = errors.New("store closed")
)
