package shim

import "time"

// WaitMS sleeps for ms milliseconds in slices of at most one second,
// abandoning the remainder once the stop handler has fired. The forwarder
// uses it for its beacon, stat and keepalive pacing, so a stop request is
// observed within a second even mid-wait.
func (e *Env) WaitMS(ms uint64) {
	remaining := time.Duration(ms) * time.Millisecond

	for remaining > 100*time.Microsecond {
		if e.stop.Called() {
			return
		}

		slice := remaining
		if slice > time.Second {
			slice = time.Second
		}
		time.Sleep(slice)
		remaining -= slice
	}
}
