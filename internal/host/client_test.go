package host

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/trapmon-dev/trapmon/internal/machine"
	"github.com/trapmon-dev/trapmon/internal/session"
	"github.com/trapmon-dev/trapmon/internal/wire"
)

const nopWord uint32 = 0x00000013

// startTarget serves a session for the given program over loopback and
// returns a connected client plus the session exit channel.
func startTarget(t *testing.T, words ...uint32) (*Client, chan error) {
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

	sess := session.New(mach, wire.NewPacketIO(server))
	errs := make(chan error, 1)
	go func() {
		errs <- sess.Run(context.Background())
		server.Close()
	}()

	return New(client), errs
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

func TestClientMemoryAndRegisters(t *testing.T) {
	c, errs := startTarget(t, machine.OpcodeWait)

	if st, err := c.WaitHalt(); err != nil || st != "S02" {
		t.Fatalf("initial halt: %q, %v", st, err)
	}

	if err := c.WriteMemory(0x2000, []byte{0xca, 0xfe}); err != nil {
		t.Fatalf("WriteMemory: %v", err)
	}
	data, err := c.ReadMemory(0x2000, 2)
	if err != nil || len(data) != 2 || data[0] != 0xca || data[1] != 0xfe {
		t.Fatalf("ReadMemory: % x, %v", data, err)
	}

	if err := c.WriteRegister(5, 0x1234); err != nil {
		t.Fatalf("WriteRegister: %v", err)
	}
	v, err := c.ReadRegister(5)
	if err != nil || v != 0x1234 {
		t.Fatalf("ReadRegister: %#x, %v", v, err)
	}

	regs, err := c.ReadRegisters()
	if err != nil {
		t.Fatalf("ReadRegisters: %v", err)
	}
	if regs[5] != 0x1234 {
		t.Fatalf("register file r4 slot: %#x, want 0x1234", regs[5])
	}

	regs[8] = 0x77
	if err := c.WriteRegisters(regs); err != nil {
		t.Fatalf("WriteRegisters: %v", err)
	}
	if v, err := c.ReadRegister(8); err != nil || v != 0x77 {
		t.Fatalf("register 8 after write-all: %#x, %v", v, err)
	}

	if _, err := c.Continue(); err == nil {
		t.Fatal("Continue after park must surface the transport error")
	}
	if err := waitEnd(t, errs); err != nil {
		t.Fatalf("session end: %v", err)
	}
}

func TestClientBreakpointAndStepFlow(t *testing.T) {
	c, errs := startTarget(t,
		nopWord, nopWord, nopWord, machine.OpcodeWait)

	if st, err := c.WaitHalt(); err != nil || st != "S02" {
		t.Fatalf("initial halt: %q, %v", st, err)
	}

	if err := c.SetBreakpoint(8); err != nil {
		t.Fatalf("SetBreakpoint: %v", err)
	}
	st, err := c.Continue()
	if err != nil || st != "S05" {
		t.Fatalf("Continue to breakpoint: %q, %v", st, err)
	}
	if pc, err := c.ReadRegister(machine.RegPC); err != nil || pc != 8 {
		t.Fatalf("pc at breakpoint: %#x, %v", pc, err)
	}
	if err := c.ClearBreakpoint(8); err != nil {
		t.Fatalf("ClearBreakpoint: %v", err)
	}

	if st, err := c.Status(); err != nil || st != "S02" {
		t.Fatalf("Status: %q, %v", st, err)
	}

	st, err = c.Step(1)
	if err != nil || st != "S07" {
		t.Fatalf("Step: %q, %v", st, err)
	}
	if pc, err := c.ReadRegister(machine.RegPC); err != nil || pc != 0xc {
		t.Fatalf("pc after step: %#x, %v", pc, err)
	}

	if _, err := c.Continue(); err == nil {
		t.Fatal("Continue into the park must surface the transport error")
	}
	if err := waitEnd(t, errs); err != nil {
		t.Fatalf("session end: %v", err)
	}
}
