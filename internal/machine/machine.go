package machine

import "context"

// Opcode encodings recognized by the pseudo-core. The values are the RISC-V
// SYSTEM encodings, so images assembled for a real rv32e part trap the same
// way under the monitor.
const (
	// OpcodeBreak (ebreak) is the word a set-breakpoint displaces the
	// original instruction with; executing it traps into the monitor.
	OpcodeBreak uint32 = 0x00100073
	// OpcodeWait (wfi) parks the core; the debug session ends cleanly.
	OpcodeWait uint32 = 0x10500073
)

// Machine is the word-stepped pseudo-core. Execution semantics are
// deliberately thin: a breakpoint word traps, a wait word parks, an
// all-zero word faults, and every other word advances the program counter
// by one 4-byte slot. That is enough target for the monitor's whole command
// surface to be exercised end to end.
type Machine struct {
	mem    *Memory
	regs   RegisterFile
	ic     *IntController
	parked bool
}

// NewMachine returns a fresh machine with empty memory.
func NewMachine() *Machine {
	return &Machine{mem: NewMemory(), ic: NewIntController()}
}

// Memory returns the debuggee address space.
func (m *Machine) Memory() *Memory { return m.mem }

// Regs returns the live register file; during a trap episode it doubles as
// the snapshot handed to the monitor.
func (m *Machine) Regs() *RegisterFile { return &m.regs }

// IntController returns the interrupt controller.
func (m *Machine) IntController() *IntController { return m.ic }

// Parked reports whether the core executed a wait word.
func (m *Machine) Parked() bool { return m.parked }

// step executes one word and returns a nonzero vector when it traps.
func (m *Machine) step() int {
	switch w := m.mem.ReadWord(m.regs[RegPC]); w {
	case OpcodeBreak:
		// pc stays at the break site so a restore-and-resume re-executes
		// the displaced instruction
		return VecBreak
	case OpcodeWait:
		m.parked = true
		return 0
	case 0:
		// unprogrammed memory: fault back into the monitor instead of
		// running off through the zero-filled address space
		return VecTrap
	default:
		m.regs[RegPC] += 4
		return 0
	}
}

// Run executes until the core traps, parks, or ctx is cancelled. It returns
// the raised halt vector, or zero for the park and cancel cases.
func (m *Machine) Run(ctx context.Context) int {
	for !m.parked {
		select {
		case <-ctx.Done():
			return 0
		default:
		}
		if vec := m.step(); vec != 0 {
			m.ic.Raise(vec)
			return vec
		}
	}
	return 0
}

// RunSteps executes up to n words (at least one) and, when the single-step
// arm is set, raises VecStep once the budget is exhausted. A breakpoint or
// fault inside the budget traps immediately with its own vector. Without
// the arm the exhausted budget returns zero.
func (m *Machine) RunSteps(n uint64) int {
	if n < 1 {
		n = 1
	}
	for i := uint64(0); i < n; i++ {
		if m.parked {
			return 0
		}
		if vec := m.step(); vec != 0 {
			m.ic.Raise(vec)
			return vec
		}
	}
	if m.parked || !m.ic.SingleStepArmed() {
		return 0
	}
	m.ic.Raise(VecStep)
	return VecStep
}
