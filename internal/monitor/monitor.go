// Package monitor implements the command-dispatch core of the debug
// monitor. One trap episode enters HandleTrap with the interrupted register
// snapshot and its halt vector; the loop announces the halt, services
// single-letter commands from the remote host, and returns a Resolution
// telling the caller how execution proceeds.
//
// The loop runs in trap context and is deliberately austere: two fixed
// buffers reused in place, no allocation per command, exactly one response
// packet for every command that owes one. Collaborators other than
// Transport never fail from the loop's point of view; they sanitize bad
// descriptors internally.
package monitor

import (
	"github.com/trapmon-dev/trapmon/internal/machine"
	"github.com/trapmon-dev/trapmon/internal/wire"
)

// ProtocolVersion identifies the monitor's command surface. Image manifests
// pin a semver constraint against it.
const ProtocolVersion = "1.2.0"

// Buffer capacities. The largest command packet is write-all-registers
// ('G', a separator, then 17 registers of 16 hex digits: 274 bytes); the
// largest reply is the read-all-registers payload at 272 bytes.
const (
	inputSize  = 512
	outputSize = 280
)

// okReply acknowledges the five mutating commands, byte-identically.
var okReply = []byte("OK")

// OpcodeSlot records the instruction word most recently displaced by a
// set-breakpoint command so a matching clear can restore it. There is
// exactly one slot: a second set overwrites it, and the first site can no
// longer be restored.
type OpcodeSlot struct {
	Addr   uint64
	Opcode uint32
	Valid  bool
}

// Monitor owns the dispatch loop's persistent state: the packet buffers
// and the breakpoint opcode slot. One Monitor serves one debug session;
// HandleTrap must not be re-entered before it returns.
type Monitor struct {
	transport Transport
	mem       MemoryAccess
	regs      RegisterAccess
	breaks    BreakpointControl
	status    StatusReporter
	irq       InterruptControl

	in   []byte
	out  *wire.Buffer
	slot OpcodeSlot
}

// Config wires the collaborator capabilities into a Monitor.
type Config struct {
	Transport   Transport
	Memory      MemoryAccess
	Registers   RegisterAccess
	Breakpoints BreakpointControl
	Status      StatusReporter
	Interrupts  InterruptControl
}

// New returns a Monitor using the given collaborators.
func New(cfg Config) *Monitor {
	return &Monitor{
		transport: cfg.Transport,
		mem:       cfg.Memory,
		regs:      cfg.Registers,
		breaks:    cfg.Breakpoints,
		status:    cfg.Status,
		irq:       cfg.Interrupts,
		in:        make([]byte, inputSize),
		out:       wire.NewBuffer(outputSize),
	}
}

// Slot returns a copy of the breakpoint opcode slot.
func (m *Monitor) Slot() OpcodeSlot { return m.slot }

// entryStatus derives the code announced on trap entry from the raw halt
// vector by combining its two ends: the vector shifted up one bit plus the
// vector shifted down one bit. Explicit '?' queries report the raw vector.
func entryStatus(vec int) int {
	return (vec << 1) + (vec >> 1)
}

// tail returns the packet payload past off, nil when the packet is too
// short to carry one.
func tail(pkt []byte, off int) []byte {
	if len(pkt) <= off {
		return nil
	}
	return pkt[off:]
}

// HandleTrap runs the protocol for one trap episode. It first reports the
// transformed halt status unsolicited, then loops: receive one command,
// dispatch on its leading byte, send the single response the command owes.
// The loop ends when the host resolves the trap. A continue ('c') drains
// through the loop exit, acknowledges the interrupt, and resumes; the step
// commands ('s', 'n') arm single-step and return straight out, leaving the
// interrupt pending. Unknown commands are dropped without a reply.
//
// The returned error is non-nil only when the transport died; the
// Resolution is meaningless in that case and the session should end.
func (m *Monitor) HandleTrap(regs *machine.RegisterFile, haltVec int) (Resolution, error) {
	m.out.Reset()
	m.status.Report(entryStatus(haltVec), regs, m.out)
	if err := m.transport.Send(m.out.Bytes()); err != nil {
		return Resolution{}, err
	}

	for debugging := true; debugging; {
		n, err := m.transport.Receive(m.in)
		if err != nil {
			return Resolution{}, err
		}
		if n == 0 {
			continue
		}
		pkt := m.in[:n]

		var reply []byte
		switch pkt[0] {
		case 'm':
			m.out.Reset()
			m.mem.Read(tail(pkt, 2), m.out)
			reply = m.out.Bytes()
		case 'M':
			m.mem.Write(tail(pkt, 2))
			reply = okReply
		case 'p':
			m.out.Reset()
			m.regs.ReadOne(tail(pkt, 2), regs, m.out)
			reply = m.out.Bytes()
		case 'P':
			m.regs.WriteOne(tail(pkt, 2), regs)
			reply = okReply
		case 'g':
			m.out.Reset()
			m.regs.ReadAll(regs, m.out)
			reply = m.out.Bytes()
		case 'G':
			m.regs.WriteAll(tail(pkt, 2), regs)
			reply = okReply
		case 'Z':
			m.breaks.Set(tail(pkt, 3), &m.slot)
			reply = okReply
		case 'z':
			m.breaks.Clear(tail(pkt, 3), &m.slot)
			reply = okReply
		case '?':
			m.out.Reset()
			m.status.Report(haltVec, regs, m.out)
			reply = m.out.Bytes()
		case 'c':
			debugging = false
		case 's':
			m.irq.ArmSingleStep()
			return Step(1), nil
		case 'n':
			// The parse result is not branched on: a malformed count
			// yields the parser's defined zero, still a Step outcome.
			count, _ := wire.ParseHex(tail(pkt, 2))
			m.irq.ArmSingleStep()
			return Step(count), nil
		default:
			// unrecognized command byte: no reply, wait for the next
		}

		if reply != nil {
			if err := m.transport.Send(reply); err != nil {
				return Resolution{}, err
			}
		}
	}

	// Only the continue path reaches here: the trap is fully serviced
	// before control leaves the monitor.
	m.irq.Acknowledge()
	return Resume(), nil
}
