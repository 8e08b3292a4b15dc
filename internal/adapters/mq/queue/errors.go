package queue

import "errors"

// Sentinel kinds for queue errors.
var (
	ErrQueueFull   = errors.New("scoring queue full")
	ErrQueueClosed = errors.New("scoring queue closed")
)
