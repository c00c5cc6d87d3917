//go:build linux

package wire

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// SerialPort is a serial device opened in raw mode, suitable for carrying
// monitor packets to a target wired to a UART.
type SerialPort struct {
	f *os.File
}

// OpenSerial opens device at the given baud rate and switches it to raw
// mode: no echo, no line editing, no signal characters, 8N1, reads block
// until at least one byte is available.
func OpenSerial(device string, baud int) (*SerialPort, error) {
	speed, err := baudFlag(baud)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(device, os.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		return nil, err
	}
	t, err := unix.IoctlGetTermios(int(f.Fd()), unix.TCGETS)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("get termios for %s: %w", device, err)
	}
	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP |
		unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CSIZE | unix.PARENB | unix.CBAUD
	t.Cflag |= unix.CS8 | unix.CREAD | unix.CLOCAL | speed
	t.Ispeed = speed
	t.Ospeed = speed
	t.Cc[unix.VMIN] = 1
	t.Cc[unix.VTIME] = 0
	if err := unix.IoctlSetTermios(int(f.Fd()), unix.TCSETS, t); err != nil {
		f.Close()
		return nil, fmt.Errorf("set termios for %s: %w", device, err)
	}
	return &SerialPort{f: f}, nil
}

func (s *SerialPort) Read(p []byte) (int, error)  { return s.f.Read(p) }
func (s *SerialPort) Write(p []byte) (int, error) { return s.f.Write(p) }
func (s *SerialPort) Close() error                { return s.f.Close() }

func baudFlag(baud int) (uint32, error) {
	switch baud {
	case 9600:
		return unix.B9600, nil
	case 19200:
		return unix.B19200, nil
	case 38400:
		return unix.B38400, nil
	case 57600:
		return unix.B57600, nil
	case 115200:
		return unix.B115200, nil
	case 230400:
		return unix.B230400, nil
	}
	return 0, fmt.Errorf("unsupported baud rate %d", baud)
}
