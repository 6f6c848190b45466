package consumer

import "fmt"

// StatusError reports a non-200 response from the replay server.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// PollErrorCategory groups failed polls by status in the summary.
func (e *StatusError) PollErrorCategory() string {
	return fmt.Sprintf("HTTP %d response", e.StatusCode)
}

// DecodeError reports a response body that is not a batch.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding batch: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func (e *DecodeError) PollErrorCategory() string {
	return "Malformed batch payload"
}
