package machine

// Memory is the debuggee address space: sparse, byte-addressed, with
// unmapped locations reading as zero. Instruction words are 32-bit
// little-endian.
type Memory struct {
	cells map[uint64]byte
}

// NewMemory returns an empty address space.
func NewMemory() *Memory {
	return &Memory{cells: make(map[uint64]byte)}
}

// ReadByte returns the byte at addr, zero when unmapped.
func (m *Memory) ReadByte(addr uint64) byte { return m.cells[addr] }

// WriteByte stores v at addr.
func (m *Memory) WriteByte(addr uint64, v byte) { m.cells[addr] = v }

// Read fills p with the bytes starting at addr.
func (m *Memory) Read(addr uint64, p []byte) {
	for i := range p {
		p[i] = m.cells[addr+uint64(i)]
	}
}

// Write stores p starting at addr.
func (m *Memory) Write(addr uint64, p []byte) {
	for i, c := range p {
		m.cells[addr+uint64(i)] = c
	}
}

// ReadWord returns the little-endian instruction word at addr.
func (m *Memory) ReadWord(addr uint64) uint32 {
	return uint32(m.cells[addr]) |
		uint32(m.cells[addr+1])<<8 |
		uint32(m.cells[addr+2])<<16 |
		uint32(m.cells[addr+3])<<24
}

// WriteWord stores w little-endian at addr.
func (m *Memory) WriteWord(addr uint64, w uint32) {
	m.cells[addr] = byte(w)
	m.cells[addr+1] = byte(w >> 8)
	m.cells[addr+2] = byte(w >> 16)
	m.cells[addr+3] = byte(w >> 24)
}
