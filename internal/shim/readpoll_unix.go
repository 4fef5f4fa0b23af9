//go:build unix

package shim

import "golang.org/x/sys/unix"

// Read reads from a real descriptor (the forwarder's GPS tty), polling in
// one-second slices so a stop request is never stuck behind a quiet device.
// Returns 0 once the stop handler has fired.
func (e *Env) Read(fd int, buf []byte) (int, error) {
	pfds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}

	for {
		if e.stop.Called() {
			return 0, nil
		}

		n, err := unix.Poll(pfds, 1000)
		if err != nil || n <= 0 {
			// EINTR and timeouts both come back around to the stop check.
			continue
		}

		return unix.Read(fd, buf)
	}
}
