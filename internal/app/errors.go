package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrModelNotFound     = errors.New("model not found")
	ErrSyncInProgress    = errors.New("a sync pass is already running")
	ErrNotStarted        = errors.New("service not started")
	ErrSourceRateLimited = errors.New("source fetch quota exhausted")
)
