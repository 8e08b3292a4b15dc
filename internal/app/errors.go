package service

import "errors"

// Sentinel kinds for run-level failures.
var (
	// ErrRunTimeout means the run deadline expired before all writes ran.
	ErrRunTimeout = errors.New("scoring run timed out")
	// ErrAllWritesFailed means at least one write was attempted and none applied.
	ErrAllWritesFailed = errors.New("every client update failed")
)
