// lora-sink runs the embedded packet forwarder and drains both links,
// counting what arrives. With -ack it also acknowledges, so the forwarder
// sees a healthy server; without it the forwarder's ACK waits time out,
// which is useful for exercising backpressure. Forwarder log output is
// captured through the internal log queues rather than printed directly.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	loracomms "github.com/davedoesdev/lora-comms"
	"github.com/davedoesdev/lora-comms/internal/fwdsim"
)

var doAck = flag.Bool("ack", false, "acknowledge PUSH_DATA and PULL_DATA")

func sinkLoop(c *loracomms.Comms, link loracomms.LinkID, pkts, bytes *atomic.Uint64) {
	buf := make([]byte, loracomms.RecvFromBuflen)

	for {
		n, err := c.RecvFrom(link, buf, loracomms.Block)
		if err != nil {
			return
		}
		pkts.Add(1)
		bytes.Add(uint64(n))

		if !*doAck || n < 12 || buf[0] != loracomms.ProtocolVersion {
			continue
		}

		var ack byte
		switch {
		case link == loracomms.Uplink && buf[3] == loracomms.PktPushData:
			ack = loracomms.PktPushAck
		case link == loracomms.Downlink && buf[3] == loracomms.PktPullData:
			ack = loracomms.PktPullAck
		default:
			continue
		}

		buf[3] = ack
		if _, err := c.SendTo(link, buf[:4], -1, loracomms.Block); err != nil {
			return
		}
	}
}

func drainLog(get func([]byte, loracomms.Timeout) (int, error), tag string) {
	buf := make([]byte, 1024)

	for {
		n, err := get(buf, loracomms.Block)
		if err != nil {
			return
		}
		fmt.Fprintf(os.Stderr, "%s %s", tag, buf[:n])
	}
}

func main() {
	flag.Parse()

	sim := fwdsim.New()
	sim.StatMS = 2000
	sim.KeepaliveMS = 2000

	c := loracomms.New(sim.Main)
	c.SetLogger(c.QueueLogger())

	var upPkts, upBytes, downPkts, downBytes atomic.Uint64
	go sinkLoop(c, loracomms.Uplink, &upPkts, &upBytes)
	go sinkLoop(c, loracomms.Downlink, &downPkts, &downBytes)

	var logWG sync.WaitGroup
	logWG.Add(2)
	go func() {
		defer logWG.Done()
		drainLog(c.GetLogInfoMessage, "[fwd]")
	}()
	go func() {
		defer logWG.Done()
		drainLog(c.GetLogErrorMessage, "[fwd!]")
	}()

	done := make(chan struct{})
	go func() {
		tick := time.NewTicker(5 * time.Second)
		defer tick.Stop()
		for {
			select {
			case <-tick.C:
				fmt.Printf("up: %d pkts / %d bytes, down: %d pkts / %d bytes\n",
					upPkts.Load(), upBytes.Load(), downPkts.Load(), downBytes.Load())
			case <-done:
				return
			}
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		c.Stop()
	}()

	cfgDir := ""
	if flag.NArg() > 0 {
		cfgDir = flag.Arg(0)
	}

	fmt.Fprintln(os.Stderr, "INFO: lora-sink listening")
	status := c.Start(cfgDir)
	close(done)

	// Let the log drainers read out the forwarder's parting messages.
	c.CloseLogQueues(false)
	logWG.Wait()

	os.Exit(status)
}
