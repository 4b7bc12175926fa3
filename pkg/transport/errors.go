package transport

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// TransportError means the channel itself is gone: the subprocess died or
// never started, the connection dropped, the stream broke. It is fatal to
// the run — remaining tests cannot produce meaningful results over a dead
// channel — but the runner still emits a partial report around it.
type TransportError struct {
	Op     string   // what was being attempted: "connect", "send", "read", "close"
	Err    error    // underlying cause
	Stderr []string // tail of the peer's diagnostic stream at failure time
}

func (e *TransportError) Error() string {
	if len(e.Stderr) == 0 {
		return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("transport %s: %v; peer stderr tail:\n%s",
		e.Op, e.Err, strings.Join(e.Stderr, "\n"))
}

func (e *TransportError) Unwrap() error { return e.Err }

// TimeoutError means the peer did not answer one request in time. The
// channel is still healthy: whether the run continues depends on the
// category of the test that timed out, which is the runner's call.
type TimeoutError struct {
	Op      string        // method or probe that timed out
	Elapsed time.Duration // how long the caller waited
	Err     error         // usually context.DeadlineExceeded
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout after %s waiting for %s", e.Elapsed.Round(time.Millisecond), e.Op)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// IsFatal reports whether err contains a TransportError, i.e. the channel
// is unusable and the run must abort.
func IsFatal(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsTimeout reports whether err contains a TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}
