// Package wire implements the byte-level protocol shared by the monitor and
// its host: packet framing, the fixed-capacity buffers both sides reuse, and
// the hex codecs for registers and descriptors.
package wire

import (
	"bufio"
	"fmt"
	"io"
)

var ack = []byte{'+'}

// PacketIO frames packets over a byte stream. A packet travels as
// $<payload>#<checksum>, checksum being the two-digit hex sum of the payload
// bytes modulo 256. Receipt of a packet is acknowledged with '+'. Inbound
// checksums are consumed but not verified; the link is assumed reliable
// (TCP, pipe, or a local serial line). Both ends use the same framing, so
// stray '+' acknowledgements are skipped while hunting for the next '$'.
type PacketIO struct {
	rw io.ReadWriter
	br *bufio.Reader
}

// NewPacketIO wraps rw in packet framing.
func NewPacketIO(rw io.ReadWriter) *PacketIO {
	return &PacketIO{rw: rw, br: bufio.NewReader(rw)}
}

// Receive blocks until one complete packet arrives, copies its payload into
// buf and returns the payload length. Payload bytes beyond len(buf) are
// drained and dropped so framing stays aligned.
func (p *PacketIO) Receive(buf []byte) (int, error) {
	for {
		b, err := p.br.ReadByte()
		if err != nil {
			return 0, err
		}
		if b == '$' {
			break
		}
	}
	n := 0
	for {
		b, err := p.br.ReadByte()
		if err != nil {
			return 0, err
		}
		if b == '#' {
			break
		}
		if n < len(buf) {
			buf[n] = b
			n++
		}
	}
	var csum [2]byte
	if _, err := io.ReadFull(p.br, csum[:]); err != nil {
		return 0, err
	}
	if _, err := p.rw.Write(ack); err != nil {
		return 0, err
	}
	return n, nil
}

// Send frames payload and writes it out.
func (p *PacketIO) Send(payload []byte) error {
	pkt := fmt.Sprintf("$%s#%02x", payload, Checksum(payload))
	_, err := io.WriteString(p.rw, pkt)
	return err
}

// Checksum returns the modulo-256 sum of the payload bytes.
func Checksum(payload []byte) byte {
	var sum byte
	for _, c := range payload {
		sum += c
	}
	return sum
}
