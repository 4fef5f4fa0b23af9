package loracomms

import (
	"time"

	"github.com/davedoesdev/lora-comms/internal/waitq"
)

// Timeout bounds a blocking operation. The zero value blocks indefinitely,
// matching the C library's null-timeval convention; the original's
// overloaded "-1 microseconds" sentinel is replaced by the three explicit
// constructors below.
type Timeout struct {
	bounded bool
	d       time.Duration
}

// Block is the Timeout that waits indefinitely.
var Block = Timeout{}

// NoWait is the Timeout that fails immediately when an operation would
// block.
func NoWait() Timeout {
	return Timeout{bounded: true}
}

// After waits at most d. A negative d blocks indefinitely.
func After(d time.Duration) Timeout {
	if d < 0 {
		return Block
	}
	return Timeout{bounded: true, d: d}
}

// FromTimeval converts a seconds/microseconds pair under the send/recv
// convention: negative fields block, an all-zero pair does not wait.
func FromTimeval(sec, usec int64) Timeout {
	if sec < 0 || usec < 0 {
		return Block
	}
	return After(time.Duration(sec)*time.Second + time.Duration(usec)*time.Microsecond)
}

func (t Timeout) wait() time.Duration {
	if !t.bounded {
		return waitq.Block
	}
	return t.d
}
