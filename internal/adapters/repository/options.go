package repository

import (
	"fmt"
	"strings"

	"github.com/phucmetlamroi/agency-manager/pkg/logger"
)

// FrictionSource selects how friction events are attributed to a client.
type FrictionSource string

const (
	// FrictionProjectFeedback counts CLIENT feedback on the client's projects.
	FrictionProjectFeedback FrictionSource = "project_feedback"
	// FrictionTaskFeedback counts any feedback on the client's own tasks.
	FrictionTaskFeedback FrictionSource = "task_feedback"
)

// DefaultCompletedStatus is the task status that counts as completed work.
const DefaultCompletedStatus = "Hoàn tất"

// ParseFrictionSource validates a configured friction source name.
func ParseFrictionSource(s string) (FrictionSource, error) {
	switch src := FrictionSource(strings.ToLower(strings.TrimSpace(s))); src {
	case FrictionProjectFeedback, FrictionTaskFeedback:
		return src, nil
	case "":
		return FrictionProjectFeedback, nil
	default:
		return "", fmt.Errorf("unknown friction source %q", s)
	}
}

type sessionOptions struct {
	completedStatus string
	frictionSource  FrictionSource
	logger          logger.Logger
}

func defaultSessionOptions() sessionOptions {
	return sessionOptions{
		completedStatus: DefaultCompletedStatus,
		frictionSource:  FrictionProjectFeedback,
	}
}

// Option configures how sessions query and update the store.
type Option func(*sessionOptions)

// WithCompletedStatus sets the task status treated as completed.
func WithCompletedStatus(status string) Option {
	return func(o *sessionOptions) {
		if status != "" {
			o.completedStatus = status
		}
	}
}

// WithFrictionSource selects the friction event join path.
func WithFrictionSource(src FrictionSource) Option {
	return func(o *sessionOptions) {
		if src != "" {
			o.frictionSource = src
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(o *sessionOptions) {
		if l != nil {
			o.logger = l
		}
	}
}
