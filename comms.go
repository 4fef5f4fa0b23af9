// Package loracomms embeds a LoRa packet forwarder in the host process and
// replaces its UDP networking with in-process message queues, so the host
// can play the part of the network server without opening a socket. The
// host reads the forwarder's uplink datagrams with RecvFrom, injects
// downlink datagrams and acknowledgements with SendTo, and controls the
// forwarder's lifetime with Start, Stop and Reset. The forwarder itself
// runs against the shim surface in internal/shim and believes it is still
// talking to two UDP sockets.
package loracomms

import (
	"errors"
	"sync/atomic"

	"github.com/davedoesdev/lora-comms/internal/cfgdir"
	"github.com/davedoesdev/lora-comms/internal/link"
	"github.com/davedoesdev/lora-comms/internal/shim"
	"github.com/davedoesdev/lora-comms/internal/stopctl"
	"github.com/davedoesdev/lora-comms/internal/waitq"
)

// LinkID selects one of the forwarder's two logical socket endpoints.
type LinkID int

const (
	// Uplink carries forwarder data packets up and host acknowledgements
	// back down.
	Uplink LinkID = 0
	// Downlink carries host command packets down and forwarder
	// acknowledgements back up.
	Downlink LinkID = 1
)

// Recommended buffer sizes for RecvFrom and SendTo, derived from the
// forwarder's largest datagrams: an uplink PUSH_DATA can carry eight
// packets plus header and status, a downlink command fits the forwarder's
// 1000-byte receive buffer.
const (
	RecvFromBuflen = 540*8 + 30 + 200
	SendToBuflen   = 1000
)

// ErrInvalidLink is returned for a LinkID outside {Uplink, Downlink}.
var ErrInvalidLink = errors.New("loracomms: invalid link")

// ForwarderMain is the ported packet forwarder's entry point.
type ForwarderMain = shim.Main

// GatewayEnv is the shim surface handed to the forwarder.
type GatewayEnv = shim.Env

// Comms owns the whole fabric for one embedded forwarder: both links, the
// stop coordinator, the configuration directory, the logger and the log
// queues. The caller contract is one start/stop cycle at a time; Reset
// prepares the next cycle.
type Comms struct {
	main  ForwarderMain
	links [2]*link.Link
	stop  stopctl.Coordinator
	cfg   cfgdir.Dir
	env   *shim.Env

	logger   atomic.Pointer[Logger]
	logInfo  *waitq.LogQueue
	logError *waitq.LogQueue
}

// New builds a fabric around the given forwarder entry point.
func New(main ForwarderMain) *Comms {
	c := &Comms{
		main:     main,
		logInfo:  waitq.NewLog(waitq.DefaultMaxMsgSize),
		logError: waitq.NewLog(waitq.DefaultMaxMsgSize),
	}
	c.links[Uplink] = link.New(RecvFromBuflen, SendToBuflen)
	c.links[Downlink] = link.New(RecvFromBuflen, SendToBuflen)
	c.env = shim.NewEnv(&c.links, &c.stop, &c.cfg, c.logDispatch)
	return c
}

// Env returns the shim environment, for tests and forwarder wiring.
func (c *Comms) Env() *GatewayEnv {
	return c.env
}

// Start runs the forwarder inline on the calling goroutine with its
// configuration resolved under cfgDir (empty means the current directory).
// It returns when the forwarder does — normally after Stop — with the
// forwarder's exit status, or zero if it returned without exiting. Both
// links are closed before Start returns, releasing any host thread parked
// in RecvFrom or SendTo with ErrClosed.
func (c *Comms) Start(cfgDir string) int {
	c.cfg.SetRoot(cfgDir)

	status := c.env.Run(c.main)

	c.links[Uplink].Close()
	c.links[Downlink].Close()

	return status
}

// Stop requests a stop from any goroutine. It is idempotent and does not
// block: the forwarder's installed SIGTERM handler fires exactly once per
// start cycle, as soon as both the request and the handler exist.
func (c *Comms) Stop() {
	c.stop.CheckStop(nil, true)
}

// Reset returns the fabric to its pre-start state so the forwarder can be
// started again. The caller must ensure no goroutine is using the fabric.
func (c *Comms) Reset() {
	c.env.Reset()
	c.links[Uplink].Reset()
	c.links[Downlink].Reset()
	c.stop.Reset()
}

func (c *Comms) linkFor(id LinkID) (*link.Link, error) {
	if id < Uplink || id > Downlink {
		return nil, ErrInvalidLink
	}
	return c.links[id], nil
}

// RecvFrom reads the next datagram the forwarder sent on the given link:
// data packets on the uplink, acknowledgements on the downlink. A datagram
// longer than buf is truncated and the remainder discarded.
func (c *Comms) RecvFrom(id LinkID, buf []byte, timeout Timeout) (int, error) {
	l, err := c.linkFor(id)
	if err != nil {
		return -1, err
	}
	return l.FromFwdRecv(buf, timeout.wait())
}

// SendTo queues a datagram for the forwarder to receive on the given link:
// acknowledgements on the uplink, command packets on the downlink. A
// positive hwm waits until the link holds fewer than hwm buffered bytes, a
// negative hwm never waits, zero discards the datagram and returns 0.
func (c *Comms) SendTo(id LinkID, buf []byte, hwm int64, timeout Timeout) (int, error) {
	l, err := c.linkFor(id)
	if err != nil {
		return -1, err
	}
	return l.ToFwdSend(buf, hwm, timeout.wait())
}

// SetGwSendHWM sets the high-water mark applied when the forwarder sends
// on the given link. Invalid links are ignored.
func (c *Comms) SetGwSendHWM(id LinkID, hwm int64) {
	if l, err := c.linkFor(id); err == nil {
		l.SetFromFwdSendHWM(hwm)
	}
}

// SetGwSendTimeout sets the timeout applied when the forwarder sends on
// the given link.
func (c *Comms) SetGwSendTimeout(id LinkID, timeout Timeout) {
	if l, err := c.linkFor(id); err == nil {
		l.SetFromFwdSendTimeout(timeout.wait())
	}
}

// SetGwRecvTimeout sets the timeout applied when the forwarder receives on
// the given link. The forwarder normally sets this itself through the
// SO_RCVTIMEO shim.
func (c *Comms) SetGwRecvTimeout(id LinkID, timeout Timeout) {
	if l, err := c.linkFor(id); err == nil {
		l.SetToFwdRecvTimeout(timeout.wait())
	}
}

// ConfigWatcher watches the configuration directory for changes.
type ConfigWatcher = cfgdir.Watcher

// ConfigEvent reports a change to a file in the configuration directory.
type ConfigEvent = cfgdir.Event

// WatchConfig watches the configuration directory last passed to Start
// (or the current directory before any Start). Hosts typically stop and
// restart the forwarder when global_conf.json or local_conf.json change.
func (c *Comms) WatchConfig() (*ConfigWatcher, error) {
	return cfgdir.NewWatcher(c.cfg.Root())
}
