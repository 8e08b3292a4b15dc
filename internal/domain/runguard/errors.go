package runguard

import "errors"

// ErrRunInProgress is returned when a run for the same key is already active.
var ErrRunInProgress = errors.New("scoring run already in progress")
