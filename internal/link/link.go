// Package link pairs the two message queues that stand in for one UDP
// socket endpoint of the packet forwarder: one queue carries datagrams the
// forwarder sends (from-forwarder), the other carries datagrams the host
// injects for it to receive (to-forwarder).
package link

import (
	"sync/atomic"
	"time"

	"github.com/davedoesdev/lora-comms/internal/waitq"
)

// Link owns a from-forwarder queue and a to-forwarder queue plus the
// defaults used on the forwarder side of each: the send high-water mark and
// timeout applied when the forwarder transmits, and the receive timeout
// applied when it reads (normally installed via the SO_RCVTIMEO shim).
type Link struct {
	fromFwdSendHWM     atomic.Int64
	fromFwdSendTimeout atomic.Int64 // nanoseconds; negative blocks
	toFwdRecvTimeout   atomic.Int64

	fromFwd *waitq.Queue
	toFwd   *waitq.Queue
}

// New returns an open link. fromBuflen and toBuflen cap the per-message
// size in each direction.
func New(fromBuflen, toBuflen int) *Link {
	l := &Link{
		fromFwd: waitq.New(fromBuflen),
		toFwd:   waitq.New(toBuflen),
	}
	l.resetConfig()
	return l
}

func (l *Link) resetConfig() {
	l.fromFwdSendHWM.Store(-1)
	l.fromFwdSendTimeout.Store(int64(waitq.Block))
	l.toFwdRecvTimeout.Store(int64(waitq.Block))
}

// Reset restores default configuration and reopens both queues. The caller
// must ensure no concurrent users.
func (l *Link) Reset() {
	l.resetConfig()
	l.fromFwd.Reset()
	l.toFwd.Reset()
}

// Close closes both queues, releasing any waiter with ErrClosed.
func (l *Link) Close() {
	l.fromFwd.Close()
	l.toFwd.Close()
}

// SetFromFwdSendHWM sets the high-water mark for forwarder sends.
func (l *Link) SetFromFwdSendHWM(hwm int64) {
	l.fromFwdSendHWM.Store(hwm)
}

// SetFromFwdSendTimeout sets the timeout for forwarder sends.
func (l *Link) SetFromFwdSendTimeout(timeout time.Duration) {
	l.fromFwdSendTimeout.Store(int64(timeout))
}

// SetToFwdRecvTimeout sets the timeout for forwarder receives.
func (l *Link) SetToFwdRecvTimeout(timeout time.Duration) {
	l.toFwdRecvTimeout.Store(int64(timeout))
}

// FromFwdSend is the forwarder's transmit path, using the link's configured
// send high-water mark and timeout.
func (l *Link) FromFwdSend(buf []byte) (int, error) {
	return l.fromFwd.Send(buf,
		l.fromFwdSendHWM.Load(),
		time.Duration(l.fromFwdSendTimeout.Load()))
}

// FromFwdRecv is the host's read path for forwarder traffic.
func (l *Link) FromFwdRecv(buf []byte, timeout time.Duration) (int, error) {
	return l.fromFwd.Recv(buf, timeout)
}

// ToFwdSend is the host's inject path; hwm and timeout come from the caller.
func (l *Link) ToFwdSend(buf []byte, hwm int64, timeout time.Duration) (int, error) {
	return l.toFwd.Send(buf, hwm, timeout)
}

// ToFwdRecv is the forwarder's receive path, using the link's configured
// receive timeout.
func (l *Link) ToFwdRecv(buf []byte) (int, error) {
	return l.toFwd.Recv(buf, time.Duration(l.toFwdRecvTimeout.Load()))
}
