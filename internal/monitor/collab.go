package monitor

import (
	"github.com/trapmon-dev/trapmon/internal/machine"
	"github.com/trapmon-dev/trapmon/internal/wire"
)

// Transport moves one packet at a time between the monitor and the remote
// host. Receive blocks until a complete command payload is available and
// copies it into buf; Send transmits one reply payload. It is the only
// collaborator that can fail: a dead transport ends the trap episode.
type Transport interface {
	Receive(buf []byte) (int, error)
	Send(payload []byte) error
}

// MemoryAccess reads and writes the debuggee address space. Descriptor
// encoding (address, length, data) is owned by the implementation; the
// dispatch loop only slices the packet tail off and hands it over.
// Out-of-range or malformed descriptors are the implementation's problem
// and must never reach the loop as a failure.
type MemoryAccess interface {
	Read(desc []byte, out *wire.Buffer)
	Write(desc []byte)
}

// RegisterAccess encodes and decodes the trapped register snapshot.
type RegisterAccess interface {
	ReadOne(desc []byte, regs *machine.RegisterFile, out *wire.Buffer)
	WriteOne(desc []byte, regs *machine.RegisterFile)
	ReadAll(regs *machine.RegisterFile, out *wire.Buffer)
	WriteAll(desc []byte, regs *machine.RegisterFile)
}

// BreakpointControl patches and restores breakpoint opcodes. The slot is
// the monitor's persistent single-entry record of the displaced word.
type BreakpointControl interface {
	Set(desc []byte, slot *OpcodeSlot)
	Clear(desc []byte, slot *OpcodeSlot)
}

// StatusReporter encodes a halt-status packet for the given cause code.
type StatusReporter interface {
	Report(code int, regs *machine.RegisterFile, out *wire.Buffer)
}

// InterruptControl arms and retires traps on the interrupt fabric.
type InterruptControl interface {
	ArmSingleStep()
	Acknowledge()
}
