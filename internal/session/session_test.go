package session

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/trapmon-dev/trapmon/internal/machine"
	"github.com/trapmon-dev/trapmon/internal/wire"
)

const nopWord uint32 = 0x00000013

// hostEnd drives the host side of a session with framed packet calls.
type hostEnd struct {
	t    *testing.T
	conn net.Conn
	pio  *wire.PacketIO
	buf  [512]byte
}

func (h *hostEnd) expect(want string) {
	h.t.Helper()
	n, err := h.pio.Receive(h.buf[:])
	if err != nil {
		h.t.Fatalf("receive: %v", err)
	}
	if got := string(h.buf[:n]); got != want {
		h.t.Fatalf("received %q, want %q", got, want)
	}
}

func (h *hostEnd) send(cmd string) {
	h.t.Helper()
	if err := h.pio.Send([]byte(cmd)); err != nil {
		h.t.Fatalf("send %q: %v", cmd, err)
	}
}

// startSession loads words at address 0, serves a session over a loopback
// connection, and returns the host end plus the session's exit channel.
func startSession(t *testing.T, words ...uint32) (*hostEnd, *Session, chan error) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("loopback listen unavailable: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	mach := machine.NewMachine()
	for i, w := range words {
		mach.Memory().WriteWord(uint64(i)*4, w)
	}

	connch := make(chan net.Conn, 1)
	go func() {
		c, _ := ln.Accept()
		connch <- c
	}()

	client, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	server := <-connch
	if server == nil {
		t.Fatal("accept failed")
	}
	t.Cleanup(func() { server.Close() })

	sess := New(mach, wire.NewPacketIO(server))
	errs := make(chan error, 1)
	go func() { errs <- sess.Run(context.Background()) }()

	return &hostEnd{t: t, conn: client, pio: wire.NewPacketIO(client)}, sess, errs
}

func waitEnd(t *testing.T, errs chan error) error {
	t.Helper()
	select {
	case err := <-errs:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("session did not end")
		return nil
	}
}

func TestSessionAnnouncesInitialHalt(t *testing.T) {
	host, sess, errs := startSession(t, machine.OpcodeWait)

	host.expect("S02")
	host.send("c")
	if err := waitEnd(t, errs); err != nil {
		t.Fatalf("session end: %v", err)
	}

	snap := sess.Snapshot()
	if snap.Running {
		t.Fatal("snapshot still running after park")
	}
	if !snap.Parked || snap.Traps != 1 || snap.Acks != 1 {
		t.Fatalf("snapshot: %+v", snap)
	}
}

func TestSessionBreakpointAndStepFlow(t *testing.T) {
	host, sess, errs := startSession(t,
		nopWord, nopWord, nopWord, machine.OpcodeWait)

	host.expect("S02")

	host.send("Z0,8")
	host.expect("OK")
	host.send("c")

	// Two words execute, then the patched site traps.
	host.expect("S05")
	host.send("p 00")
	host.expect("0800000000000000")

	host.send("z0,8")
	host.expect("OK")
	host.send("s")

	// The restored word executes and the armed step trap fires.
	host.expect("S07")
	host.send("?")
	host.expect("S03")
	host.send("c")

	if err := waitEnd(t, errs); err != nil {
		t.Fatalf("session end: %v", err)
	}

	snap := sess.Snapshot()
	if snap.Traps != 3 {
		t.Fatalf("trap episodes: got %d, want 3", snap.Traps)
	}
	if snap.Acks != 2 {
		t.Fatalf("acknowledgements: got %d, want 2", snap.Acks)
	}
	if !snap.Parked {
		t.Fatal("machine did not park")
	}
}

func TestSessionMemoryCommands(t *testing.T) {
	host, _, errs := startSession(t, machine.OpcodeWait)

	host.expect("S02")
	host.send("M 2000,4:cafebabe")
	host.expect("OK")
	host.send("m 2000,4")
	host.expect("cafebabe")
	host.send("c")

	if err := waitEnd(t, errs); err != nil {
		t.Fatalf("session end: %v", err)
	}
}

func TestSessionStepCountExecutesBudget(t *testing.T) {
	host, _, errs := startSession(t,
		nopWord, nopWord, nopWord, nopWord, nopWord, machine.OpcodeWait)

	host.expect("S02")
	host.send("n 3")
	host.expect("S07")
	host.send("p 00")
	host.expect("0c00000000000000")
	host.send("c")

	if err := waitEnd(t, errs); err != nil {
		t.Fatalf("session end: %v", err)
	}
}

func TestSessionEndsWhenHostDisconnects(t *testing.T) {
	host, _, errs := startSession(t, machine.OpcodeWait)

	host.expect("S02")
	host.conn.Close()

	if err := waitEnd(t, errs); err == nil {
		t.Fatal("want a transport error after the host hung up")
	}
}
