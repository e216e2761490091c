package insights

import (
	"errors"
	"fmt"
)

var errMalformedResponse = errors.New("malformed response")

// CallError reports a failed call to an external concept service. Status is
// zero when no response was received.
type CallError struct {
	Op     string
	Status int
	Body   string
	Err    error
}

// Error implements error.
func (e *CallError) Error() string {
	switch {
	case e.Status == 0:
		return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s failed with status %d: %v", e.Op, e.Status, e.Err)
	case e.Body != "":
		return fmt.Sprintf("%s failed with status %d: %s", e.Op, e.Status, e.Body)
	default:
		return fmt.Sprintf("%s failed with status %d", e.Op, e.Status)
	}
}

// Unwrap returns the transport error, if any.
func (e *CallError) Unwrap() error { return e.Err }
