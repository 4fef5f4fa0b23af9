package shim

import (
	"time"

	"github.com/davedoesdev/lora-comms/internal/waitq"
)

// Timeval is the seconds/microseconds pair the forwarder hands to
// Setsockopt.
type Timeval struct {
	Sec  int64
	Usec int64
}

// IsZero reports whether both fields are zero.
func (tv Timeval) IsZero() bool {
	return tv.Sec == 0 && tv.Usec == 0
}

// Duration converts the timeval to a wait duration. A negative value in
// either field means block indefinitely.
func (tv Timeval) Duration() time.Duration {
	if tv.Sec < 0 || tv.Usec < 0 {
		return waitq.Block
	}
	return time.Duration(tv.Sec)*time.Second + time.Duration(tv.Usec)*time.Microsecond
}

// RecvTimeout converts the timeval under the SO_RCVTIMEO convention, where
// a zero value means block rather than poll.
func (tv Timeval) RecvTimeout() time.Duration {
	if tv.IsZero() {
		return waitq.Block
	}
	return tv.Duration()
}
