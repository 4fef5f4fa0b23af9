package shim

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/davedoesdev/lora-comms/internal/cfgdir"
	"github.com/davedoesdev/lora-comms/internal/link"
	"github.com/davedoesdev/lora-comms/internal/stopctl"
	"github.com/davedoesdev/lora-comms/internal/waitq"
)

type fixture struct {
	links [2]*link.Link
	stop  stopctl.Coordinator
	cfg   cfgdir.Dir
	logs  []string
	env   *Env
}

func newFixture() *fixture {
	f := &fixture{}
	f.links[0] = link.New(256, 256)
	f.links[1] = link.New(256, 256)
	f.env = NewEnv(&f.links, &f.stop, &f.cfg, func(stream Stream, format string, args ...any) int {
		msg := fmt.Sprintf(format, args...)
		f.logs = append(f.logs, stream.String()+": "+msg)
		return len(msg)
	})
	return f
}

func TestSocketAllocation(t *testing.T) {
	f := newFixture()

	for want := 0; want < 2; want++ {
		fd, err := f.env.Socket()
		if err != nil || fd != want {
			t.Fatalf("socket: %d %v, want %d", fd, err, want)
		}
	}

	if _, err := f.env.Socket(); !errors.Is(err, ErrTooManySockets) {
		t.Fatalf("third socket: %v", err)
	}
}

func TestSocketReopensLink(t *testing.T) {
	f := newFixture()
	f.links[0].Close()

	if _, err := f.env.Socket(); err != nil {
		t.Fatal(err)
	}

	// A fresh socket means a usable link, even after a previous cycle
	// closed it.
	if _, err := f.links[0].FromFwdSend([]byte("x")); err != nil {
		t.Fatalf("send on reopened link: %v", err)
	}
}

func TestConnectAndShutdownValidate(t *testing.T) {
	f := newFixture()

	if err := f.env.Connect(0); err != nil {
		t.Fatal(err)
	}
	if err := f.env.Connect(2); !errors.Is(err, ErrBadSocket) {
		t.Fatalf("connect: %v", err)
	}
	if err := f.env.Shutdown(-1, 0); !errors.Is(err, ErrBadSocket) {
		t.Fatalf("shutdown: %v", err)
	}
	if err := f.env.Shutdown(1, 0); err != nil {
		t.Fatal(err)
	}
}

func TestSetsockoptValidation(t *testing.T) {
	f := newFixture()
	tv := &Timeval{Sec: 1}

	if err := f.env.Setsockopt(5, SOLSocket, SORcvTimeo, tv); !errors.Is(err, ErrBadSocket) {
		t.Fatalf("bad fd: %v", err)
	}
	if err := f.env.Setsockopt(0, SOLSocket, 99, tv); !errors.Is(err, ErrUnsupportedOpt) {
		t.Fatalf("bad opt: %v", err)
	}
	if err := f.env.Setsockopt(0, SOLSocket, SORcvTimeo, nil); !errors.Is(err, ErrNilOptval) {
		t.Fatalf("nil tv: %v", err)
	}
	if err := f.env.Setsockopt(0, 99, SORcvTimeo, tv); !errors.Is(err, ErrInvalidArg) {
		t.Fatalf("bad level: %v", err)
	}
	if err := f.env.Setsockopt(0, SOLSocket, SORcvTimeo, tv); err != nil {
		t.Fatal(err)
	}
}

func TestSetsockoptInstallsRecvTimeout(t *testing.T) {
	f := newFixture()

	tv := &Timeval{Usec: 50000}
	if err := f.env.Setsockopt(0, SOLSocket, SORcvTimeo, tv); err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	_, err := f.env.Recv(0, make([]byte, 16))
	if !errors.Is(err, waitq.ErrTimeout) {
		t.Fatalf("recv: %v", err)
	}
	if time.Since(start) < 50*time.Millisecond {
		t.Fatal("timeout not applied")
	}
}

func TestZeroTimevalMeansBlock(t *testing.T) {
	f := newFixture()

	if err := f.env.Setsockopt(0, SOLSocket, SORcvTimeo, &Timeval{}); err != nil {
		t.Fatal(err)
	}

	// With a zero timeval the receive blocks, so a message sent after a
	// delay must still be delivered.
	go func() {
		time.Sleep(50 * time.Millisecond)
		f.links[0].ToFwdSend([]byte("late"), -1, waitq.Block)
	}()

	buf := make([]byte, 16)
	n, err := f.env.Recv(0, buf)
	if err != nil || string(buf[:n]) != "late" {
		t.Fatalf("recv: %q %v", buf[:n], err)
	}
}

func TestSendRecvRouting(t *testing.T) {
	f := newFixture()

	if n, err := f.env.Send(1, []byte("pull")); err != nil || n != 4 {
		t.Fatalf("send: %d %v", n, err)
	}

	buf := make([]byte, 16)
	n, err := f.links[1].FromFwdRecv(buf, waitq.Block)
	if err != nil || !bytes.Equal(buf[:n], []byte("pull")) {
		t.Fatalf("host recv: %q %v", buf[:n], err)
	}

	f.links[1].ToFwdSend([]byte("resp"), -1, waitq.Block)
	n, err = f.env.Recv(1, buf)
	if err != nil || !bytes.Equal(buf[:n], []byte("resp")) {
		t.Fatalf("fwd recv: %q %v", buf[:n], err)
	}
}

func TestRunCatchesExit(t *testing.T) {
	f := newFixture()

	status := f.env.Run(func(env *Env) {
		env.Exit(7)
	})
	if status != 7 {
		t.Fatalf("status %d", status)
	}

	if status := f.env.Run(func(env *Env) {}); status != 0 {
		t.Fatalf("status %d", status)
	}
}

func TestRunRepanicsOnForeignPanic(t *testing.T) {
	f := newFixture()

	defer func() {
		if recover() == nil {
			t.Fatal("foreign panic swallowed")
		}
	}()
	f.env.Run(func(env *Env) {
		panic("not an exit")
	})
}

func TestWorkerExitTriggersStopAndStatus(t *testing.T) {
	f := newFixture()
	var handled atomic.Int32

	status := f.env.Run(func(env *Env) {
		env.Sigaction(syscall.SIGTERM, func(syscall.Signal) {
			handled.Add(1)
		})

		thr := env.Go(func() {
			env.Exit(7)
		})
		env.Cancel(thr)
	})

	if status != 7 {
		t.Fatalf("status %d", status)
	}
	if handled.Load() != 1 {
		t.Fatalf("handler calls %d", handled.Load())
	}
	if !f.stop.Called() {
		t.Fatal("stop not recorded")
	}
}

func TestSigactionIgnoresOtherSignals(t *testing.T) {
	f := newFixture()
	var handled atomic.Int32

	f.env.Sigaction(syscall.SIGINT, func(syscall.Signal) { handled.Add(1) })
	f.stop.CheckStop(nil, true)

	if handled.Load() != 0 || f.stop.Called() {
		t.Fatal("SIGINT handler adopted")
	}
}

func TestWaitMSAbortsOnStop(t *testing.T) {
	f := newFixture()
	f.env.Sigaction(syscall.SIGTERM, func(syscall.Signal) {})

	done := make(chan struct{})
	go func() {
		f.env.WaitMS(30000)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	f.stop.CheckStop(nil, true)

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("WaitMS did not observe stop")
	}
}

func TestWaitMSShortSleep(t *testing.T) {
	f := newFixture()

	start := time.Now()
	f.env.WaitMS(20)
	if time.Since(start) < 20*time.Millisecond {
		t.Fatal("returned early")
	}
}

func TestPrintfDispatch(t *testing.T) {
	f := newFixture()

	f.env.Printf("INFO: %d packets\n", 3)
	f.env.Fprintf(os.Stderr, "ERROR: %s\n", "oops")

	if len(f.logs) != 2 {
		t.Fatalf("logs %v", f.logs)
	}
	if f.logs[0] != "stdout: INFO: 3 packets\n" || f.logs[1] != "stderr: ERROR: oops\n" {
		t.Fatalf("logs %v", f.logs)
	}
}

func TestFprintfOtherWriterBypassesLogger(t *testing.T) {
	f := newFixture()
	var report bytes.Buffer

	n := f.env.Fprintf(&report, "report line %d\n", 1)
	if n != len("report line 1\n") {
		t.Fatalf("n %d", n)
	}
	if report.String() != "report line 1\n" {
		t.Fatalf("report %q", report.String())
	}
	if len(f.logs) != 0 {
		t.Fatalf("logger saw %v", f.logs)
	}
}

func TestAccessAndOpenUsePrefix(t *testing.T) {
	f := newFixture()
	dir := t.TempDir()
	f.cfg.SetRoot(dir)

	if err := os.WriteFile(dir+"/global_conf.json", []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := f.env.Access("global_conf.json", 0); err != nil {
		t.Fatalf("access: %v", err)
	}
	if err := f.env.Access("missing.json", 0); err == nil {
		t.Fatal("access missing succeeded")
	}

	file, err := f.env.Open("global_conf.json")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	file.Close()
}

func TestEnvReset(t *testing.T) {
	f := newFixture()

	f.env.Socket()
	f.env.Socket()
	f.env.ExitSig.Store(true)
	f.env.QuitSig.Store(true)

	f.env.Reset()

	if f.env.ExitSig.Load() || f.env.QuitSig.Load() {
		t.Fatal("signal flags survived reset")
	}
	if fd, err := f.env.Socket(); err != nil || fd != 0 {
		t.Fatalf("socket after reset: %d %v", fd, err)
	}
}
