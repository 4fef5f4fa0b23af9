// Package shim presents the socket-and-POSIX-like surface the ported packet
// forwarder was written against, routing every call into the in-process
// queue fabric instead of the operating system. The forwarder gets two
// pseudo-descriptors (uplink then downlink), a SIGTERM registration hook, a
// cooperative sleep, and printf-style logging; it cannot tell that no UDP
// socket ever exists.
package shim

import (
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/davedoesdev/lora-comms/internal/cfgdir"
	"github.com/davedoesdev/lora-comms/internal/link"
	"github.com/davedoesdev/lora-comms/internal/stopctl"
)

// Socket option constants accepted by Setsockopt. The values are symbolic;
// the shim never hands them to a kernel.
const (
	SOLSocket  = 1
	SORcvTimeo = 20
)

var (
	// ErrBadSocket is returned for a descriptor outside the uplink/downlink
	// pair.
	ErrBadSocket = errors.New("shim: bad socket")
	// ErrTooManySockets is returned when the forwarder asks for a third
	// descriptor.
	ErrTooManySockets = errors.New("shim: too many sockets")
	// ErrUnsupportedOpt is returned for any socket option other than
	// SO_RCVTIMEO.
	ErrUnsupportedOpt = errors.New("shim: unsupported socket option")
	// ErrNilOptval is returned for a nil option value.
	ErrNilOptval = errors.New("shim: nil option value")
	// ErrInvalidArg is returned for a bad option level.
	ErrInvalidArg = errors.New("shim: invalid argument")
)

// Main is the entry point of the ported forwarder, run inline by the
// library's Start on the calling goroutine.
type Main func(env *Env)

// Env is the forwarder's view of the world. One Env backs one start cycle;
// Reset prepares it for the next.
type Env struct {
	links *[2]*link.Link
	stop  *stopctl.Coordinator
	cfg   *cfgdir.Dir
	logf  Logger

	mu         sync.Mutex
	nextSocket int

	worker workerExit

	// ExitSig and QuitSig are the forwarder's own shutdown flags, held here
	// so the library can clear them on Reset. The forwarder's signal
	// handler sets them; its loops poll them.
	ExitSig atomic.Bool
	QuitSig atomic.Bool
}

// NewEnv binds an environment to the fabric's links, stop coordinator,
// configuration directory and log dispatch.
func NewEnv(links *[2]*link.Link, stop *stopctl.Coordinator, cfg *cfgdir.Dir, logf Logger) *Env {
	return &Env{links: links, stop: stop, cfg: cfg, logf: logf}
}

// Reset returns the environment to its pre-start state. The caller must
// ensure no concurrent users.
func (e *Env) Reset() {
	e.mu.Lock()
	e.nextSocket = 0
	e.mu.Unlock()
	e.worker.reset()
	e.ExitSig.Store(false)
	e.QuitSig.Store(false)
}

func (e *Env) link(fd int) (*link.Link, error) {
	if fd < 0 || fd >= len(e.links) {
		return nil, ErrBadSocket
	}
	return e.links[fd], nil
}

// Socket allocates the next pseudo-descriptor, resetting its link. The
// forwarder opens the uplink first, then the downlink; a third request
// fails with ErrTooManySockets.
func (e *Env) Socket() (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.nextSocket >= len(e.links) {
		return -1, ErrTooManySockets
	}

	fd := e.nextSocket
	e.links[fd].Reset()
	e.nextSocket++
	return fd, nil
}

// Connect validates the descriptor. There is nothing to connect to.
func (e *Env) Connect(fd int) error {
	_, err := e.link(fd)
	return err
}

// Setsockopt supports exactly SO_RCVTIMEO at SOL_SOCKET, storing the value
// as the link's receive timeout. A zero timeval means block, per the
// SO_RCVTIMEO convention.
func (e *Env) Setsockopt(fd, level, optname int, tv *Timeval) error {
	l, err := e.link(fd)
	if err != nil {
		return err
	}

	if optname != SORcvTimeo {
		return ErrUnsupportedOpt
	}

	if tv == nil {
		return ErrNilOptval
	}

	if level != SOLSocket {
		return ErrInvalidArg
	}

	l.SetToFwdRecvTimeout(tv.RecvTimeout())
	return nil
}

// Send queues a datagram from the forwarder toward the host, applying the
// link's configured send high-water mark and timeout.
func (e *Env) Send(fd int, buf []byte) (int, error) {
	l, err := e.link(fd)
	if err != nil {
		return -1, err
	}
	return l.FromFwdSend(buf)
}

// Recv takes the next host-injected datagram, applying the link's
// configured receive timeout.
func (e *Env) Recv(fd int, buf []byte) (int, error) {
	l, err := e.link(fd)
	if err != nil {
		return -1, err
	}
	return l.ToFwdRecv(buf)
}

// Shutdown validates the descriptor. Teardown happens when Start returns.
func (e *Env) Shutdown(fd, how int) error {
	_, err := e.link(fd)
	return err
}

// Sigaction records the forwarder's SIGTERM handler with the stop
// coordinator. A stop requested before installation fires the handler
// immediately. Other signals are ignored.
func (e *Env) Sigaction(sig syscall.Signal, handler stopctl.Handler) {
	if sig == syscall.SIGTERM && handler != nil {
		e.stop.CheckStop(handler, false)
	}
}

// Access checks a configuration file, name resolved against the configured
// directory. mode follows access(2).
func (e *Env) Access(name string, mode uint32) error {
	return e.cfg.Access(name, mode)
}

// Open opens a configuration file, name resolved against the configured
// directory.
func (e *Env) Open(name string) (*os.File, error) {
	return e.cfg.Open(name)
}
