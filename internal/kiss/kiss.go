// Package kiss implements the KISS streaming framing codec: an
// encoder and a resynchronising decoder state machine that turn
// arbitrary byte payloads into self-delimiting frames over a lossy,
// noisy octet stream.
//
// Framing: FEND (0xC0) delimits frames. Within a frame FEND and FESC
// (0xDB) are escaped as the two-byte sequences FESC,TFEND and
// FESC,TFESC. A frame may be preceded and followed by any number of
// FEND bytes; these are absorbed, not treated as empty packets.
package kiss

import "github.com/hamcore/kissbridge/internal/bridgeerr"

const (
	FEND  byte = 0xC0
	FESC  byte = 0xDB
	TFEND byte = 0xDC
	TFESC byte = 0xDD
)

// Sink receives bytes emitted by the encoder or decoder.
type Sink interface {
	WriteByte(b byte) error
}

// ByteSliceSink accumulates emitted bytes into a growable slice. It
// satisfies Sink and never returns an error.
type ByteSliceSink struct {
	Bytes []byte
}

func (s *ByteSliceSink) WriteByte(b byte) error {
	s.Bytes = append(s.Bytes, b)
	return nil
}

// Encoder is a stateful KISS frame encoder. Its only state is whether
// a frame is currently open.
type Encoder struct {
	open bool
}

// Open emits one FEND. Fails if a frame is already open.
func (e *Encoder) Open(sink Sink) error {
	if e.open {
		return bridgeerr.Logic("kiss: Open called while frame already open")
	}
	e.open = true
	return sink.WriteByte(FEND)
}

// Close emits one FEND. Fails if no frame is open.
func (e *Encoder) Close(sink Sink) error {
	if !e.open {
		return bridgeerr.Logic("kiss: Close called without a matching Open")
	}
	e.open = false
	return sink.WriteByte(FEND)
}

// WriteByte emits the escaped form of b: FESC,TFEND for FEND, FESC,TFESC
// for FESC, and b verbatim otherwise.
func (e *Encoder) WriteByte(b byte, sink Sink) error {
	if !e.open {
		return bridgeerr.Logic("kiss: WriteByte called without an open frame")
	}
	switch b {
	case FEND:
		if err := sink.WriteByte(FESC); err != nil {
			return err
		}
		return sink.WriteByte(TFEND)
	case FESC:
		if err := sink.WriteByte(FESC); err != nil {
			return err
		}
		return sink.WriteByte(TFESC)
	default:
		return sink.WriteByte(b)
	}
}

// WriteRange writes every byte of data via WriteByte.
func (e *Encoder) WriteRange(data []byte, sink Sink) error {
	for _, b := range data {
		if err := e.WriteByte(b, sink); err != nil {
			return err
		}
	}
	return nil
}

// EncodePacket opens a frame, writes data, and closes the frame.
func (e *Encoder) EncodePacket(data []byte, sink Sink) error {
	if err := e.Open(sink); err != nil {
		return err
	}
	if err := e.WriteRange(data, sink); err != nil {
		return err
	}
	return e.Close(sink)
}

// EncodePacketBytes is a convenience wrapper returning the encoded
// bytes directly, for callers that don't need to stream into an
// existing sink (e.g. tests).
func EncodePacketBytes(data []byte) []byte {
	var enc Encoder
	var s ByteSliceSink
	// EncodePacket only fails on logic errors, which cannot occur here
	// since enc is freshly constructed and unused.
	_ = enc.EncodePacket(data, &s)
	return s.Bytes
}

type state int

const (
	stateIdle state = iota
	stateActive
	stateActiveEscape
	stateError
)

// Decoder is a four-state streaming KISS frame decoder, bounded by
// MaxPacketLength. Malformed escapes and oversize packets transition
// to the error state and are silently discarded until the next FEND;
// they are never surfaced as errors from Decode/DecodeAll.
type Decoder struct {
	MaxPacketLength int

	state  state
	buffer []byte
}

// NewDecoder returns a Decoder bounded to maxPacketLength bytes per
// packet.
func NewDecoder(maxPacketLength int) *Decoder {
	return &Decoder{MaxPacketLength: maxPacketLength}
}

// Emit is called once per fully decoded packet.
type Emit func(packet []byte)

// Decode consumes bytes from data until either a packet boundary is
// crossed (invoking emit with the completed packet and returning the
// index one past the terminating FEND) or the input is exhausted
// (returning len(data)).
func (d *Decoder) Decode(data []byte, emit Emit) int {
	i := 0
	for ; i < len(data); i++ {
		in := data[i]

		if d.state == stateError {
			if in == FEND {
				d.state = stateIdle
			}
			continue
		}

		if d.state == stateIdle {
			if in == FEND {
				continue
			}
			d.state = stateActive
			d.buffer = d.buffer[:0]
		}

		switch d.state {
		case stateActive:
			switch in {
			case FESC:
				d.state = stateActiveEscape
			case FEND:
				d.state = stateIdle
				packet := d.buffer
				d.buffer = nil
				emit(packet)
				return i + 1
			default:
				d.push(in)
			}
		case stateActiveEscape:
			switch in {
			case TFEND:
				d.state = stateActive
				d.push(FEND)
			case TFESC:
				d.state = stateActive
				d.push(FESC)
			default:
				d.state = stateError
				d.buffer = nil
			}
		}
	}
	return i
}

// push appends b to the in-progress packet buffer, transitioning to
// the error state if that would exceed MaxPacketLength.
func (d *Decoder) push(b byte) {
	if len(d.buffer) >= d.MaxPacketLength {
		d.state = stateError
		d.buffer = nil
		return
	}
	d.buffer = append(d.buffer, b)
}

// DecodeAll loops Decode until the input is exhausted, invoking emit
// for every packet found.
func (d *Decoder) DecodeAll(data []byte, emit Emit) {
	for i := 0; i < len(data); {
		i += d.Decode(data[i:], emit)
	}
}

// DecodeAllBytes is a convenience wrapper that collects every decoded
// packet into a slice.
func DecodeAllBytes(maxPacketLength int, data []byte) [][]byte {
	d := NewDecoder(maxPacketLength)
	var packets [][]byte
	d.DecodeAll(data, func(packet []byte) {
		cp := make([]byte, len(packet))
		copy(cp, packet)
		packets = append(packets, cp)
	})
	return packets
}
