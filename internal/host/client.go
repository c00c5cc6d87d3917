// Package host implements the remote side of the monitor protocol: a
// typed client a debugger frontend uses to drive a halted target.
package host

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/trapmon-dev/trapmon/internal/machine"
	"github.com/trapmon-dev/trapmon/internal/wire"
)

// Client speaks the monitor protocol over one connection. The protocol is
// strictly request/response, and the client is not safe for concurrent
// use.
type Client struct {
	pio *wire.PacketIO
	buf [512]byte
}

// New wraps rw in a protocol client.
func New(rw io.ReadWriter) *Client {
	return &Client{pio: wire.NewPacketIO(rw)}
}

// WaitHalt consumes one unsolicited halt-status packet, for example "S05".
// The monitor sends one right after the connection opens and after every
// continue or step resolves.
func (c *Client) WaitHalt() (string, error) {
	n, err := c.pio.Receive(c.buf[:])
	if err != nil {
		return "", err
	}
	return string(c.buf[:n]), nil
}

// roundTrip sends one command and returns its reply payload.
func (c *Client) roundTrip(cmd string) (string, error) {
	if err := c.pio.Send([]byte(cmd)); err != nil {
		return "", err
	}
	n, err := c.pio.Receive(c.buf[:])
	if err != nil {
		return "", err
	}
	return string(c.buf[:n]), nil
}

func (c *Client) expectOK(cmd string) error {
	reply, err := c.roundTrip(cmd)
	if err != nil {
		return err
	}
	if reply != "OK" {
		return fmt.Errorf("%q: unexpected reply %q", cmd, reply)
	}
	return nil
}

// ReadMemory fetches length bytes at addr.
func (c *Client) ReadMemory(addr uint64, length int) ([]byte, error) {
	reply, err := c.roundTrip(fmt.Sprintf("m %x,%x", addr, length))
	if err != nil {
		return nil, err
	}
	data, err := hex.DecodeString(reply)
	if err != nil {
		return nil, fmt.Errorf("memory reply %q: %w", reply, err)
	}
	return data, nil
}

// WriteMemory stores data at addr.
func (c *Client) WriteMemory(addr uint64, data []byte) error {
	return c.expectOK(fmt.Sprintf("M %x,%x:%s", addr, len(data), hex.EncodeToString(data)))
}

// ReadRegister fetches one register by file index.
func (c *Client) ReadRegister(idx int) (uint64, error) {
	reply, err := c.roundTrip(fmt.Sprintf("p %02x", idx))
	if err != nil {
		return 0, err
	}
	v, ok := wire.ParseUint64Hex([]byte(reply))
	if !ok {
		return 0, fmt.Errorf("register reply %q", reply)
	}
	return v, nil
}

// WriteRegister sets one register by file index.
func (c *Client) WriteRegister(idx int, v uint64) error {
	return c.expectOK(fmt.Sprintf("P %02x=%s", idx, wire.Uint64Hex(v)))
}

// ReadRegisters fetches the whole register file.
func (c *Client) ReadRegisters() (machine.RegisterFile, error) {
	var regs machine.RegisterFile
	reply, err := c.roundTrip("g")
	if err != nil {
		return regs, err
	}
	if len(reply) < machine.NumRegs*16 {
		return regs, fmt.Errorf("short register payload (%d chars)", len(reply))
	}
	for i := range regs {
		v, ok := wire.ParseUint64Hex([]byte(reply[i*16:]))
		if !ok {
			return regs, fmt.Errorf("bad register field %d in %q", i, reply)
		}
		regs[i] = v
	}
	return regs, nil
}

// WriteRegisters replaces the whole register file.
func (c *Client) WriteRegisters(regs machine.RegisterFile) error {
	var sb strings.Builder
	sb.WriteString("G ")
	for _, v := range regs {
		sb.WriteString(wire.Uint64Hex(v))
	}
	return c.expectOK(sb.String())
}

// SetBreakpoint patches a breakpoint at addr. The monitor tracks a single
// displaced opcode, so set one at a time.
func (c *Client) SetBreakpoint(addr uint64) error {
	return c.expectOK(fmt.Sprintf("Z0,%x", addr))
}

// ClearBreakpoint restores the opcode displaced at addr.
func (c *Client) ClearBreakpoint(addr uint64) error {
	return c.expectOK(fmt.Sprintf("z0,%x", addr))
}

// Status queries the raw halt vector of the current trap.
func (c *Client) Status() (string, error) {
	return c.roundTrip("?")
}

// Continue resumes the target and blocks for the next halt report. When
// the target runs to completion instead of halting again, the session ends
// and the transport error is returned.
func (c *Client) Continue() (string, error) {
	if err := c.pio.Send([]byte("c")); err != nil {
		return "", err
	}
	return c.WaitHalt()
}

// Step executes n instructions (at least one) and blocks for the halt
// report that follows.
func (c *Client) Step(n uint64) (string, error) {
	cmd := "s"
	if n > 1 {
		cmd = fmt.Sprintf("n %x", n)
	}
	if err := c.pio.Send([]byte(cmd)); err != nil {
		return "", err
	}
	return c.WaitHalt()
}
