//go:build !linux

package wire

import "errors"

var errSerialUnsupported = errors.New("serial transport requires linux")

// SerialPort is unavailable on this platform.
type SerialPort struct{}

func (*SerialPort) Read(p []byte) (int, error)  { return 0, errSerialUnsupported }
func (*SerialPort) Write(p []byte) (int, error) { return 0, errSerialUnsupported }
func (*SerialPort) Close() error                { return nil }

// OpenSerial reports serial as unsupported on this platform.
func OpenSerial(device string, baud int) (*SerialPort, error) {
	return nil, errSerialUnsupported
}
