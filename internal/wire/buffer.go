package wire

// Buffer is a fixed-capacity packet buffer reused across exchanges. The
// monitor allocates its buffers once per session and hands them to the
// collaborators that build replies; appends past capacity are dropped and
// recorded as truncation rather than growing the buffer.
type Buffer struct {
	buf       []byte
	truncated bool
}

// NewBuffer returns a buffer with the given fixed capacity.
func NewBuffer(capacity int) *Buffer {
	return &Buffer{buf: make([]byte, 0, capacity)}
}

// Reset empties the buffer and clears the truncation flag.
func (b *Buffer) Reset() {
	b.buf = b.buf[:0]
	b.truncated = false
}

// Len returns the number of bytes currently held.
func (b *Buffer) Len() int { return len(b.buf) }

// Cap returns the fixed capacity.
func (b *Buffer) Cap() int { return cap(b.buf) }

// Bytes returns the current contents. The slice aliases the buffer's
// storage and is valid until the next Reset or append.
func (b *Buffer) Bytes() []byte { return b.buf }

// Truncated reports whether any append since the last Reset was dropped
// for lack of capacity.
func (b *Buffer) Truncated() bool { return b.truncated }

// AppendByte appends a single byte.
func (b *Buffer) AppendByte(c byte) {
	if len(b.buf) >= cap(b.buf) {
		b.truncated = true
		return
	}
	b.buf = append(b.buf, c)
}

// Append appends p, dropping whatever does not fit.
func (b *Buffer) Append(p []byte) {
	room := cap(b.buf) - len(b.buf)
	if room < len(p) {
		b.truncated = true
		p = p[:room]
	}
	b.buf = append(b.buf, p...)
}

// AppendString appends s, dropping whatever does not fit.
func (b *Buffer) AppendString(s string) {
	room := cap(b.buf) - len(b.buf)
	if room < len(s) {
		b.truncated = true
		s = s[:room]
	}
	b.buf = append(b.buf, s...)
}

// AppendHex appends the lowercase hex encoding of p (two characters per
// input byte).
func (b *Buffer) AppendHex(p []byte) {
	for _, c := range p {
		b.AppendByte(hexDigits[c>>4])
		b.AppendByte(hexDigits[c&0x0f])
	}
}
