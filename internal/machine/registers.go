// Package machine models the pseudo-target the monitor debugs: a small
// word-stepped core with sixteen general registers, a sparse byte-addressed
// memory, and the slice of interrupt fabric the monitor drives. The layout
// follows the rv32e embedded profile (sixteen general registers) widened to
// 64 bits.
package machine

// NumRegs is the size of the register file: the program counter followed by
// r0..r15.
const NumRegs = 17

// RegPC is the register-file index of the program counter.
const RegPC = 0

// RegisterFile is the trapped CPU state handed to the monitor for one trap
// episode. The dispatch loop never interprets the layout; only the debug
// collaborators read or overwrite it.
type RegisterFile [NumRegs]uint64

// PC returns the program counter.
func (r *RegisterFile) PC() uint64 { return r[RegPC] }

// SetPC sets the program counter.
func (r *RegisterFile) SetPC(v uint64) { r[RegPC] = v }

// RegisterNames lists the register names in wire order.
var RegisterNames = [NumRegs]string{
	"pc",
	"r0", "r1", "r2", "r3", "r4", "r5", "r6", "r7",
	"r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15",
}
