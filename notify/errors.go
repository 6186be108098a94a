package notify

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// ErrLoad is returned when the summary or configuration file cannot be loaded.
var ErrLoad = errors.New("failed to load")

// Kind classifies a channel delivery failure.
type Kind string

const (
	// KindTimeout means the request did not complete within its deadline.
	KindTimeout Kind = "timeout"
	// KindConnection means the remote endpoint could not be reached.
	KindConnection Kind = "connection"
	// KindHTTPStatus means the webhook answered with a non-2xx status.
	KindHTTPStatus Kind = "http-status"
	// KindOther covers everything else, e.g. rejected addresses or SMTP replies.
	KindOther Kind = "other"
)

// DeliveryError describes why a notification channel could not deliver its message.
type DeliveryError struct {
	Channel    string
	Kind       Kind
	Timeout    time.Duration
	StatusCode int
	Body       string
	Err        error
}

func (e *DeliveryError) Error() string {
	switch e.Kind {
	case KindTimeout:
		return fmt.Sprintf("Request timed out after %g seconds", e.Timeout.Seconds())
	case KindConnection:
		return fmt.Sprintf("Connection error - %v", e.Err)
	case KindHTTPStatus:
		return fmt.Sprintf("HTTP %d - %s", e.StatusCode, e.Body)
	default:
		if e.Channel == "email" {
			return fmt.Sprintf("%v", e.Err)
		}
		return fmt.Sprintf("Unexpected error - %v", e.Err)
	}
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}
