package api

import (
	"errors"
	"fmt"
)

// Sentinel kinds for API errors.
var (
	// ErrUnauthorized means the trigger credential did not match.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrRunFailed means the scoring run ended in the failed state.
	ErrRunFailed = errors.New("scoring run failed")
	// ErrMethodNotAllowed means the route does not accept the method.
	ErrMethodNotAllowed = errors.New("method not allowed")
)

// KindError tags an underlying error with an operation and a sentinel kind.
type KindError struct {
	Op   string
	Kind error
	Err  error
}

// NewKind returns an error of kind raised by op.
func NewKind(op string, kind error) error {
	return &KindError{Op: op, Kind: kind}
}

// WrapKind tags err with op and kind. A nil err yields NewKind.
func WrapKind(op string, kind, err error) error {
	if err == nil {
		return NewKind(op, kind)
	}
	return &KindError{Op: op, Kind: kind, Err: err}
}

func (e *KindError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is.
func (e *KindError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
