package config

import (
	"errors"
)

// Sentinel errors returned by Load and Validate.
var (
	// ErrInvalidConfig marks a value that cannot be decoded or fails Validate.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrLoadConfig marks a file or environment source that could not be read.
	ErrLoadConfig = errors.New("load config failed")
)
