package repository

import "errors"

// Sentinel kinds for data-source errors.
var (
	// ErrDataSource means the store is unreachable or the metrics query failed.
	ErrDataSource = errors.New("data source error")
	// ErrPersistence means a single client's update did not apply.
	ErrPersistence = errors.New("persistence error")
	// ErrNotFound means the update matched no client row.
	ErrNotFound = errors.New("client not found")
)
