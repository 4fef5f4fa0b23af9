package loracomms

import (
	"errors"
	"syscall"

	"github.com/davedoesdev/lora-comms/internal/shim"
	"github.com/davedoesdev/lora-comms/internal/waitq"
)

// Errors surfaced by the fabric. Queue and shim errors are re-exported so
// hosts can match them with errors.Is without reaching into internal
// packages.
var (
	// ErrClosed means the link or log queue has been torn down, typically
	// because the forwarder stopped.
	ErrClosed = waitq.ErrClosed
	// ErrTimeout means the operation could not progress within its timeout.
	ErrTimeout = waitq.ErrTimeout

	// ErrBadSocket is returned by the shim for a descriptor outside the
	// uplink/downlink pair.
	ErrBadSocket = shim.ErrBadSocket
	// ErrTooManySockets is returned when the forwarder asks for a third
	// descriptor.
	ErrTooManySockets = shim.ErrTooManySockets
	// ErrUnsupportedOpt is returned for any socket option other than
	// SO_RCVTIMEO.
	ErrUnsupportedOpt = shim.ErrUnsupportedOpt
	// ErrNilOptval is returned for a nil socket option value.
	ErrNilOptval = shim.ErrNilOptval
	// ErrInvalidArg is returned for a bad socket option level.
	ErrInvalidArg = shim.ErrInvalidArg
)

// Errno maps a fabric error to the errno the original C library would have
// set, for hosts porting C callers. Unknown errors map to zero.
func Errno(err error) syscall.Errno {
	switch {
	case errors.Is(err, waitq.ErrClosed), errors.Is(err, shim.ErrBadSocket):
		return syscall.EBADF
	case errors.Is(err, waitq.ErrTimeout):
		return syscall.EAGAIN
	case errors.Is(err, shim.ErrTooManySockets):
		return syscall.EMFILE
	case errors.Is(err, shim.ErrUnsupportedOpt):
		return syscall.ENOPROTOOPT
	case errors.Is(err, ErrInvalidLink), errors.Is(err, shim.ErrInvalidArg):
		return syscall.EINVAL
	case errors.Is(err, shim.ErrNilOptval):
		return syscall.EFAULT
	}
	return 0
}
