package scoring

import "errors"

// ErrComputation marks metrics the engine refuses to score.
var ErrComputation = errors.New("malformed client metrics")
