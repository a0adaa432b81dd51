// Package serialport wraps the serial device, hiding operating-system
// differences, configured 8-N-1, raw mode, no flow control,
// non-blocking, for the full POSIX baud table.
//
// Acquired in the constructor, released by Close: a Port is a
// move-only resource in spirit (no Clone method is provided) and safe
// to Close from any goroutine once its owning reactor has stopped
// using it.
package serialport

import (
	"github.com/pkg/term"

	"github.com/hamcore/kissbridge/internal/bridgeerr"
)

// ValidBauds is the full POSIX baud-rate set the bridge's external
// interface accepts.
var ValidBauds = map[int]bool{
	50: true, 75: true, 110: true, 134: true, 150: true, 200: true,
	300: true, 600: true, 1200: true, 1800: true, 2400: true, 4800: true,
	9600: true, 19200: true, 38400: true, 57600: true, 115200: true,
	230400: true, 460800: true, 500000: true, 921600: true,
	1000000: true, 1152000: true, 1500000: true, 2000000: true,
	2500000: true, 3000000: true, 3500000: true, 4000000: true,
}

// Port is an open, configured serial device.
type Port struct {
	device string
	term   *term.Term
}

// Open opens device, configures it for 8-N-1 raw mode at baud, and
// puts it in non-blocking mode. A zero baud leaves the current speed
// alone.
func Open(device string, baud int) (*Port, error) {
	if baud != 0 && !ValidBauds[baud] {
		return nil, bridgeerr.Config("serialport: unsupported baud rate %d", baud)
	}

	t, err := term.Open(device, term.RawMode)
	if err != nil {
		return nil, bridgeerr.IO(err, "serialport: open "+device)
	}

	if baud != 0 {
		if err := t.SetSpeed(baud); err != nil {
			t.Close()
			return nil, bridgeerr.IO(err, "serialport: set speed")
		}
	}

	return &Port{device: device, term: t}, nil
}

// Read performs one non-blocking read, returning up to len(buf) bytes
// actually read.
func (p *Port) Read(buf []byte) (int, error) {
	n, err := p.term.Read(buf)
	if err != nil {
		return n, bridgeerr.IO(err, "serialport: read")
	}
	return n, nil
}

// Write performs one non-blocking write, returning the number of bytes
// actually written — the caller is responsible for retrying with the
// remainder on the next reactor iteration.
func (p *Port) Write(buf []byte) (int, error) {
	n, err := p.term.Write(buf)
	if err != nil {
		return n, bridgeerr.IO(err, "serialport: write")
	}
	return n, nil
}

// Close releases the underlying device. Safe to call on a nil Port.
func (p *Port) Close() error {
	if p == nil || p.term == nil {
		return nil
	}
	return p.term.Close()
}
