package loracomms

import (
	"github.com/davedoesdev/lora-comms/internal/shim"
)

// Gateway protocol identifiers, as exchanged between the forwarder and the
// host over the links. The host is the "server" end of the Semtech
// gateway-to-server protocol: it acknowledges PUSH_DATA and PULL_DATA and
// may answer a PULL_DATA with a PULL_RESP downlink command.
const (
	ProtocolVersion = 2

	PktPushData = 0
	PktPushAck  = 1
	PktPullData = 2
	PktPullResp = 3
	PktPullAck  = 4
	PktTxAck    = 5
)

// Socket option constants for forwarders driving the shim directly.
const (
	SOLSocket  = shim.SOLSocket
	SORcvTimeo = shim.SORcvTimeo
)

// Timeval is the seconds/microseconds pair the forwarder passes to the
// SO_RCVTIMEO shim.
type Timeval = shim.Timeval
