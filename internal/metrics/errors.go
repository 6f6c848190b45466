package metrics

import (
	"context"
	"errors"
	"net"
	"net/url"
)

// Poll failure categories reported in [Stats.Errors].
const (
	CategoryTimeout          = "Request timeout"
	CategoryConnectionFailed = "Connection failed"
	CategoryOther            = "Other error"
)

// categorizer is implemented by errors that name their own category, such
// as the consumer's status and decode errors.
type categorizer interface {
	PollErrorCategory() string
}

// ErrorCategory groups a failed poll for the summary.
func ErrorCategory(err error) string {
	var (
		own    categorizer
		netErr net.Error
		urlErr *url.Error
	)
	switch {
	case errors.As(err, &own):
		return own.PollErrorCategory()
	case errors.Is(err, context.DeadlineExceeded):
		return CategoryTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		return CategoryTimeout
	case errors.As(err, &urlErr):
		return CategoryConnectionFailed
	default:
		return CategoryOther
	}
}
