// lora-ack runs the embedded packet forwarder and acknowledges everything
// it sends: PUSH_DATA on the uplink gets a PUSH_ACK, PULL_DATA on the
// downlink gets a PULL_ACK. Pass a configuration directory as the only
// argument. Stop with SIGINT or SIGTERM.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	loracomms "github.com/davedoesdev/lora-comms"
	"github.com/davedoesdev/lora-comms/internal/fwdsim"
)

func stdio(stream loracomms.Stream, format string, args ...any) int {
	w := os.Stdout
	if stream == loracomms.Stderr {
		w = os.Stderr
	}
	n, _ := fmt.Fprintf(w, format, args...)
	return n
}

func ackLoop(c *loracomms.Comms, link loracomms.LinkID) {
	buf := make([]byte, loracomms.RecvFromBuflen)

	for {
		n, err := c.RecvFrom(link, buf, loracomms.Block)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: link %d recv_from: %v\n", link, err)
			return
		}
		fmt.Printf(" -> pkt in, link=%d, %d bytes", link, n)

		if n < 12 {
			fmt.Printf(" (too short for GW <-> MAC protocol)\n")
			continue
		}
		if buf[0] != loracomms.ProtocolVersion {
			fmt.Printf(", invalid version %d\n", buf[0])
			continue
		}

		// The token at bytes 1-2 is echoed back as-is.
		var ack byte
		switch {
		case link == loracomms.Uplink && buf[3] == loracomms.PktPushData:
			fmt.Printf(", PUSH_DATA\n")
			ack = loracomms.PktPushAck
		case link == loracomms.Downlink && buf[3] == loracomms.PktPullData:
			fmt.Printf(", PULL_DATA\n")
			ack = loracomms.PktPullAck
		default:
			fmt.Printf(", unexpected command %d\n", buf[3])
			continue
		}

		buf[3] = ack
		if _, err := c.SendTo(link, buf[:4], -1, loracomms.Block); err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: link %d send_to: %v\n", link, err)
			return
		}
	}
}

func main() {
	sim := fwdsim.New()
	sim.StatMS = 2000
	sim.KeepaliveMS = 2000

	c := loracomms.New(sim.Main)
	c.SetLogger(stdio)

	go ackLoop(c, loracomms.Uplink)
	go ackLoop(c, loracomms.Downlink)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		c.Stop()
	}()

	cfgDir := ""
	if len(os.Args) > 1 {
		cfgDir = os.Args[1]
	}

	fmt.Fprintln(os.Stderr, "INFO: lora-ack listening")
	os.Exit(c.Start(cfgDir))
}
