// Package fwdsim is a minimal stand-in for the ported LoRa packet
// forwarder, used by tests and the example programs. It drives the shim the
// way lora_pkt_fwd does: opens the uplink then the downlink socket, sets
// receive timeouts through the SO_RCVTIMEO shim, registers a SIGTERM
// handler, spawns its up and down workers through the thread shim, and
// paces itself with the cooperative sleep. Uplink traffic is PUSH_DATA
// carrying a stat object; downlink traffic is PULL_DATA keepalives, with
// any PULL_RESP command answered by a TX_ACK.
package fwdsim

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"os"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/davedoesdev/lora-comms/internal/shim"
	"github.com/davedoesdev/lora-comms/internal/waitq"
)

// The forwarder side of the gateway protocol.
const (
	protocolVersion = 2

	pktPushData = 0
	pktPushAck  = 1
	pktPullData = 2
	pktPullResp = 3
	pktPullAck  = 4
	pktTxAck    = 5
)

// Sim is one simulated gateway. Counters are updated atomically and may be
// read at any time.
type Sim struct {
	// MAC is the simulated gateway identifier placed in every datagram.
	MAC uint64
	// StatMS paces PUSH_DATA stat uploads, KeepaliveMS paces PULL_DATA.
	StatMS      uint64
	KeepaliveMS uint64
	// PushTimeout and PullTimeout are installed via the SO_RCVTIMEO shim
	// on the uplink and downlink sockets.
	PushTimeout shim.Timeval
	PullTimeout shim.Timeval

	Pushed    atomic.Uint64
	PushAcked atomic.Uint64
	Pulled    atomic.Uint64
	PullAcked atomic.Uint64
	Downlinks atomic.Uint64

	token atomic.Uint32
}

// New returns a simulator with the defaults of a quiet gateway: a stat
// upload every 30 s, a keepalive every 5 s, and sub-second ACK waits.
func New() *Sim {
	return &Sim{
		MAC:         0xAA555A0000000101,
		StatMS:      30000,
		KeepaliveMS: 5000,
		PushTimeout: shim.Timeval{Usec: 500000},
		PullTimeout: shim.Timeval{Usec: 100000},
	}
}

func (s *Sim) nextToken() (byte, byte) {
	t := uint16(s.token.Add(1))
	return byte(t >> 8), byte(t)
}

func (s *Sim) header(cmd byte) []byte {
	pkt := make([]byte, 12)
	pkt[0] = protocolVersion
	pkt[1], pkt[2] = s.nextToken()
	pkt[3] = cmd
	binary.BigEndian.PutUint64(pkt[4:], s.MAC)
	return pkt
}

// loadConfig reads the forwarder's configuration files through the shim,
// local_conf.json overriding global_conf.json, and adopts a gateway_ID if
// one is present.
func (s *Sim) loadConfig(env *shim.Env) {
	for _, name := range []string{"global_conf.json", "local_conf.json"} {
		if err := env.Access(name, 0); err != nil {
			env.Printf("INFO: no configuration file %s\n", name)
			continue
		}

		f, err := env.Open(name)
		if err != nil {
			env.Fprintf(os.Stderr, "ERROR: failed to open %s, %v\n", name, err)
			continue
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			env.Fprintf(os.Stderr, "ERROR: failed to read %s, %v\n", name, err)
			continue
		}

		var conf struct {
			GatewayConf struct {
				GatewayID string `json:"gateway_ID"`
			} `json:"gateway_conf"`
		}
		if err := json.Unmarshal(data, &conf); err != nil {
			env.Fprintf(os.Stderr, "ERROR: failed to parse %s, %v\n", name, err)
			continue
		}

		if conf.GatewayConf.GatewayID != "" {
			mac, err := strconv.ParseUint(conf.GatewayConf.GatewayID, 16, 64)
			if err != nil {
				env.Fprintf(os.Stderr, "ERROR: bad gateway_ID in %s, %v\n", name, err)
				continue
			}
			s.MAC = mac
		}

		env.Printf("INFO: %s loaded, %d bytes\n", name, len(data))
	}
}

// Main is the forwarder entry point; run it via loracomms.New(sim.Main).
func (s *Sim) Main(env *shim.Env) {
	env.Sigaction(syscall.SIGTERM, func(sig syscall.Signal) {
		env.ExitSig.Store(true)
	})

	s.loadConfig(env)

	up, err := env.Socket()
	if err != nil {
		env.Fprintf(os.Stderr, "ERROR: [up] failed to open socket, %v\n", err)
		env.Exit(1)
	}
	if err := env.Connect(up); err != nil {
		env.Fprintf(os.Stderr, "ERROR: [up] connect failed, %v\n", err)
		env.Exit(1)
	}
	if err := env.Setsockopt(up, shim.SOLSocket, shim.SORcvTimeo, &s.PushTimeout); err != nil {
		env.Fprintf(os.Stderr, "ERROR: [up] setsockopt failed, %v\n", err)
		env.Exit(1)
	}

	down, err := env.Socket()
	if err != nil {
		env.Fprintf(os.Stderr, "ERROR: [down] failed to open socket, %v\n", err)
		env.Exit(1)
	}
	if err := env.Connect(down); err != nil {
		env.Fprintf(os.Stderr, "ERROR: [down] connect failed, %v\n", err)
		env.Exit(1)
	}
	if err := env.Setsockopt(down, shim.SOLSocket, shim.SORcvTimeo, &s.PullTimeout); err != nil {
		env.Fprintf(os.Stderr, "ERROR: [down] setsockopt failed, %v\n", err)
		env.Exit(1)
	}

	env.Printf("INFO: gateway %016X started\n", s.MAC)

	thrUp := env.Go(func() { s.uplink(env, up) })
	thrDown := env.Go(func() { s.downlink(env, down) })

	for !env.ExitSig.Load() && !env.QuitSig.Load() {
		env.WaitMS(s.StatMS)
		env.Printf("INFO: up %d/%d acked, pull %d/%d acked, downlinks %d\n",
			s.PushAcked.Load(), s.Pushed.Load(),
			s.PullAcked.Load(), s.Pulled.Load(),
			s.Downlinks.Load())
	}

	env.Cancel(thrUp)
	env.Cancel(thrDown)

	env.Shutdown(up, 0)
	env.Shutdown(down, 0)

	env.Printf("INFO: exiting packet forwarder\n")
}

func (s *Sim) uplink(env *shim.Env, fd int) {
	ack := make([]byte, 64)

	for !env.ExitSig.Load() {
		pkt := s.header(pktPushData)
		pkt = append(pkt, []byte(`{"stat":{"rxnb":0,"rxok":0,"rxfw":0,"ackr":100.0,"dwnb":0,"txnb":0}}`)...)

		if _, err := env.Send(fd, pkt); err != nil {
			return
		}
		s.Pushed.Add(1)

		n, err := env.Recv(fd, ack)
		if errors.Is(err, waitq.ErrClosed) {
			return
		}
		if err == nil && n >= 4 &&
			ack[0] == protocolVersion && ack[3] == pktPushAck &&
			ack[1] == pkt[1] && ack[2] == pkt[2] {
			s.PushAcked.Add(1)
		}

		env.WaitMS(s.StatMS)
	}
}

func (s *Sim) downlink(env *shim.Env, fd int) {
	buf := make([]byte, 1000)
	keepalive := time.Duration(s.KeepaliveMS) * time.Millisecond
	var last time.Time

	for !env.ExitSig.Load() {
		if time.Since(last) >= keepalive || last.IsZero() {
			if _, err := env.Send(fd, s.header(pktPullData)); err != nil {
				return
			}
			s.Pulled.Add(1)
			last = time.Now()
		}

		n, err := env.Recv(fd, buf)
		if errors.Is(err, waitq.ErrClosed) {
			return
		}
		if err != nil || n < 4 || buf[0] != protocolVersion {
			continue
		}

		switch buf[3] {
		case pktPullAck:
			s.PullAcked.Add(1)
		case pktPullResp:
			s.Downlinks.Add(1)
			txAck := s.header(pktTxAck)
			// A TX_ACK echoes the PULL_RESP token.
			txAck[1], txAck[2] = buf[1], buf[2]
			if _, err := env.Send(fd, txAck); err != nil {
				return
			}
		}
	}
}
