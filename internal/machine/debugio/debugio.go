// Package debugio binds a machine to the monitor's collaborator
// interfaces. It owns the descriptor encodings of the debug protocol
// (addresses, lengths, register payloads) and the hex codecs for reply
// payloads, so neither the machine nor the dispatch loop has to know them.
//
// Descriptor grammar, after the dispatch loop strips the command prefix:
//
//	memory read     ADDR,LEN
//	memory write    ADDR,LEN:HEXBYTES
//	register read   NN
//	register write  NN=XXXXXXXXXXXXXXXX  (64-bit value, little-endian hex)
//	breakpoint      ADDR                 (kind digit and comma already consumed)
//
// Malformed or out-of-range descriptors are absorbed here: reads encode
// zeroes or nothing, writes are dropped. The dispatch loop never sees a
// failure.
package debugio

import (
	"bytes"
	"fmt"

	"github.com/trapmon-dev/trapmon/internal/machine"
	"github.com/trapmon-dev/trapmon/internal/monitor"
	"github.com/trapmon-dev/trapmon/internal/wire"
)

// maxReadChunk bounds one memory-read reply: half the reply buffer, two
// hex characters per byte.
const maxReadChunk = 140

// Memory implements monitor.MemoryAccess over the machine's address space.
type Memory struct {
	mem     *machine.Memory
	scratch [maxReadChunk]byte
}

// NewMemory returns a Memory codec over mem.
func NewMemory(mem *machine.Memory) *Memory { return &Memory{mem: mem} }

// Read parses ADDR,LEN and appends the hex encoding of that range to out.
// The length is capped to the reply buffer's remaining room.
func (m *Memory) Read(desc []byte, out *wire.Buffer) {
	addr, length, ok := splitAddrLen(desc)
	if !ok {
		return
	}
	if room := uint64(out.Cap()-out.Len()) / 2; length > room {
		length = room
	}
	if length > uint64(len(m.scratch)) {
		length = uint64(len(m.scratch))
	}
	chunk := m.scratch[:length]
	m.mem.Read(addr, chunk)
	out.AppendHex(chunk)
}

// Write parses ADDR,LEN:HEXBYTES and stores the decoded bytes, stopping at
// the declared length, the end of the payload, or the first bad hex pair,
// whichever comes first.
func (m *Memory) Write(desc []byte) {
	colon := bytes.IndexByte(desc, ':')
	if colon < 0 {
		return
	}
	addr, length, ok := splitAddrLen(desc[:colon])
	if !ok {
		return
	}
	data := desc[colon+1:]
	for i := uint64(0); i < length; i++ {
		if 2*i+2 > uint64(len(data)) {
			return
		}
		b, ok := wire.ParseHexByte(data[2*i : 2*i+2])
		if !ok {
			return
		}
		m.mem.WriteByte(addr+i, b)
	}
}

// splitAddrLen parses an ADDR,LEN descriptor prefix.
func splitAddrLen(desc []byte) (addr, length uint64, ok bool) {
	comma := bytes.IndexByte(desc, ',')
	if comma < 0 {
		return 0, 0, false
	}
	a, ok1 := wire.ParseHex(desc[:comma])
	n, ok2 := wire.ParseHex(desc[comma+1:])
	if !ok1 || !ok2 {
		return 0, 0, false
	}
	return a, n, true
}

// Registers implements monitor.RegisterAccess. It is stateless; the
// snapshot to operate on arrives with each call.
type Registers struct{}

// ReadOne encodes register NN. An out-of-range index encodes as zero.
func (Registers) ReadOne(desc []byte, regs *machine.RegisterFile, out *wire.Buffer) {
	var v uint64
	if idx, ok := wire.ParseHex(desc); ok && idx < machine.NumRegs {
		v = regs[idx]
	}
	wire.AppendUint64Hex(out, v)
}

// WriteOne decodes NN=VALUE into the snapshot. Bad descriptors are dropped.
func (Registers) WriteOne(desc []byte, regs *machine.RegisterFile) {
	eq := bytes.IndexByte(desc, '=')
	if eq < 0 {
		return
	}
	idx, ok := wire.ParseHex(desc[:eq])
	if !ok || idx >= machine.NumRegs {
		return
	}
	v, ok := wire.ParseUint64Hex(desc[eq+1:])
	if !ok {
		return
	}
	regs[idx] = v
}

// ReadAll encodes the whole snapshot in wire order: pc first, then r0..r15.
func (Registers) ReadAll(regs *machine.RegisterFile, out *wire.Buffer) {
	for _, v := range regs {
		wire.AppendUint64Hex(out, v)
	}
}

// WriteAll decodes a whole-snapshot payload into the snapshot, stopping at
// the first short or malformed register. Registers before the stop keep
// their decoded values.
func (Registers) WriteAll(desc []byte, regs *machine.RegisterFile) {
	for i := 0; i < machine.NumRegs; i++ {
		v, ok := wire.ParseUint64Hex(desc[i*16:])
		if !ok {
			return
		}
		regs[i] = v
	}
}

// Breakpoints implements monitor.BreakpointControl by patching the break
// opcode into target memory and keeping the displaced word in the slot.
type Breakpoints struct {
	mem *machine.Memory
}

// NewBreakpoints returns a Breakpoints patcher over mem.
func NewBreakpoints(mem *machine.Memory) *Breakpoints { return &Breakpoints{mem: mem} }

// Set displaces the word at the descriptor address with the break opcode
// and records it in the slot, overwriting whatever the slot held before.
func (b *Breakpoints) Set(desc []byte, slot *monitor.OpcodeSlot) {
	addr, ok := wire.ParseHex(desc)
	if !ok {
		return
	}
	slot.Addr = addr
	slot.Opcode = b.mem.ReadWord(addr)
	slot.Valid = true
	b.mem.WriteWord(addr, machine.OpcodeBreak)
}

// Clear writes the slot's opcode back at the descriptor address and
// invalidates the slot. Clearing a site other than the one last set
// restores the wrong word; one slot is all there is.
func (b *Breakpoints) Clear(desc []byte, slot *monitor.OpcodeSlot) {
	addr, ok := wire.ParseHex(desc)
	if !ok || !slot.Valid {
		return
	}
	b.mem.WriteWord(addr, slot.Opcode)
	slot.Valid = false
}

// Status implements monitor.StatusReporter with S-style stop packets.
type Status struct{}

// Report encodes the halt code as a two-digit stop packet.
func (Status) Report(code int, _ *machine.RegisterFile, out *wire.Buffer) {
	out.AppendString(fmt.Sprintf("S%02x", code&0xff))
}

// Bind returns a monitor configuration with every machine-backed
// collaborator filled in. The caller supplies the transport.
func Bind(m *machine.Machine) monitor.Config {
	return monitor.Config{
		Memory:      NewMemory(m.Memory()),
		Registers:   Registers{},
		Breakpoints: NewBreakpoints(m.Memory()),
		Status:      Status{},
		Interrupts:  m.IntController(),
	}
}
