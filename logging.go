package loracomms

import (
	"github.com/davedoesdev/lora-comms/internal/shim"
)

// Stream tags a log record with the stdio stream the forwarder printed to.
type Stream = shim.Stream

const (
	Stdout = shim.Stdout
	Stderr = shim.Stderr
)

// Logger receives the forwarder's formatted log output. Install one with
// SetLogger; logging is disabled by default.
type Logger = shim.Logger

// SetLogger atomically replaces the logger. All subsequent forwarder log
// calls observe the new value; nil disables logging.
func (c *Comms) SetLogger(logger Logger) {
	if logger == nil {
		c.logger.Store(nil)
		return
	}
	c.logger.Store(&logger)
}

// logDispatch is the shim's log sink: a lock-free read of the installed
// logger, or a no-op when none is installed.
func (c *Comms) logDispatch(stream Stream, format string, args ...any) int {
	logger := c.logger.Load()
	if logger == nil {
		return 0
	}
	return (*logger)(stream, format, args...)
}

// QueueLogger returns a Logger that captures log lines into the fabric's
// two internal queues: stdout records into the info queue, stderr records
// into the error queue. Install it with SetLogger and drain with
// GetLogInfoMessage and GetLogErrorMessage.
func (c *Comms) QueueLogger() Logger {
	return func(stream Stream, format string, args ...any) int {
		q := c.logError
		if stream == Stdout {
			q = c.logInfo
		}
		n, err := q.Write(format, args...)
		if err != nil {
			return -1
		}
		return n
	}
}

// CloseLogQueues closes both log queues. With immediately false, each queue
// stays readable until drained and then reports ErrClosed.
func (c *Comms) CloseLogQueues(immediately bool) {
	c.logInfo.Close(immediately)
	c.logError.Close(immediately)
}

// ResetLogQueues reopens both log queues.
func (c *Comms) ResetLogQueues() {
	c.logInfo.Reset()
	c.logError.Reset()
}

// GetLogInfoMessage reads the next informational log message into buf.
func (c *Comms) GetLogInfoMessage(buf []byte, timeout Timeout) (int, error) {
	return c.logInfo.Recv(buf, timeout.wait())
}

// GetLogErrorMessage reads the next error log message into buf.
func (c *Comms) GetLogErrorMessage(buf []byte, timeout Timeout) (int, error) {
	return c.logError.Recv(buf, timeout.wait())
}

// SetLogWriteHWM sets the high-water mark applied when log records are
// queued.
func (c *Comms) SetLogWriteHWM(hwm int64) {
	c.logInfo.SetWriteHWM(hwm)
	c.logError.SetWriteHWM(hwm)
}

// SetLogWriteTimeout sets the timeout applied when log records are queued.
func (c *Comms) SetLogWriteTimeout(timeout Timeout) {
	c.logInfo.SetWriteTimeout(timeout.wait())
	c.logError.SetWriteTimeout(timeout.wait())
}

// SetLogMaxMsgSize caps the size of a queued log message; longer records
// are truncated.
func (c *Comms) SetLogMaxMsgSize(size int) {
	c.logInfo.SetMaxMsgSize(size)
	c.logError.SetMaxMsgSize(size)
}

// GetLogMaxMsgSize returns the larger of the two queues' message size caps.
func (c *Comms) GetLogMaxMsgSize() int {
	n := c.logInfo.MaxMsgSize()
	if m := c.logError.MaxMsgSize(); m > n {
		return m
	}
	return n
}
