// Package envelope implements the four-label addressing scheme layered
// on top of the messaging fabric (internal/msgbus): {target, remote,
// session, command} plus one or more data parts. It lets multiple
// logical endpoints share one bridge: the SUB side subscribes to
// everything and RecvStream drops messages whose target label is not
// this socket's host.
package envelope

import (
	"github.com/hamcore/kissbridge/internal/bridgeerr"
	"github.com/hamcore/kissbridge/internal/msgbus"
)

// Delimiter variants. Fixed per deployment; the two are not
// interoperable.
const (
	DelimDot byte = '.'
	DelimNUL byte = 0x00
)

// Envelope addresses one logical message: target is used only for
// subscription filtering, the remaining three labels travel with the
// message.
type Envelope struct {
	Remote  string
	Session string
	Command string
}

// Socket wraps a pub/sub pair bound to one host identity and exposes
// the envelope send/recv operations described in the protocol design.
type Socket struct {
	Host  string
	Delim byte

	pub *msgbus.Pub
	sub *msgbus.Sub
}

// NewSocket constructs an envelope socket publishing on pub and
// subscribing on sub. sub is left subscribed to everything (NewSub,
// DialSub and ListenSub all default to subscribe-all): mangos applies
// a SUB's prefix filter independently to every individual Send (see
// msgbus's own tests), but SendStream transmits each of the four
// labels and every data part as its own Send — only the first (target)
// label would ever start with a host-prefix filter, so narrowing the
// subscription here would silently drop the remote/session/command
// labels and all data parts of every message addressed to this host.
// Target matching is instead done in Go by RecvStream, which already
// checks the target label against Host.
func NewSocket(host string, delim byte, pub *msgbus.Pub, sub *msgbus.Sub) (*Socket, error) {
	if host == "" {
		return nil, bridgeerr.Config("envelope: host identifier must not be empty")
	}
	return &Socket{Host: host, Delim: delim, pub: pub, sub: sub}, nil
}

// Supplier streams data parts for Send: each call returns the next
// part and whether more parts will follow.
type Supplier func() (part []byte, more bool, err error)

// Consumer receives data parts from Recv, one call per part, until
// more is false.
type Consumer func(part []byte, more bool) error

func (s *Socket) label(value string) ([]byte, error) {
	if value == "" {
		return nil, bridgeerr.Config("envelope: label must not be empty")
	}
	return append([]byte(value), s.Delim), nil
}

// Send transmits a one-shot single-part message addressed to target.
func (s *Socket) Send(target string, env Envelope, data []byte) error {
	return s.SendStream(target, env, func() ([]byte, bool, error) {
		return data, false, nil
	})
}

// SendStream transmits a multi-part message, invoking supplier
// repeatedly and setting MORE on every part but the one that reports
// more=false.
func (s *Socket) SendStream(target string, env Envelope, supplier Supplier) error {
	for _, v := range []string{target, s.Host, env.Session, env.Command} {
		label, err := s.label(v)
		if err != nil {
			return err
		}
		if err := s.pub.Send(label); err != nil {
			return bridgeerr.IO(err, "envelope: send label")
		}
	}

	for {
		part, more, err := supplier()
		if err != nil {
			return err
		}
		if err := s.pub.Send(msgbus.EncodeMore(part, more)); err != nil {
			return bridgeerr.IO(err, "envelope: send data part")
		}
		if !more {
			return nil
		}
	}
}

// Recv reads the four labels and then a single data part. If the
// message carries more than one data part, Recv returns a Framing
// error.
func (s *Socket) Recv() (Envelope, []byte, bool, error) {
	var data []byte
	env, ok, err := s.RecvStream(func(part []byte, more bool) error {
		if more {
			return bridgeerr.Framing("envelope: message has more parts than expected")
		}
		data = part
		return nil
	})
	return env, data, ok, err
}

// RecvStream reads the four labels then streams data parts to
// consumer until a part reports more=false. If the target label does
// not match this host, the remaining parts are drained and RecvStream
// returns ok=false with no error: the sender's message simply wasn't
// addressed here.
func (s *Socket) RecvStream(consumer Consumer) (Envelope, bool, error) {
	target, ok, err := s.recvLabel()
	if err != nil {
		return Envelope{}, false, err
	}
	if !ok {
		s.drain()
		return Envelope{}, false, nil
	}
	if target != s.Host {
		s.drain()
		return Envelope{}, false, nil
	}

	remote, ok, err := s.recvLabel()
	if err != nil {
		return Envelope{}, false, err
	}
	if !ok {
		s.drain()
		return Envelope{}, false, nil
	}
	session, ok, err := s.recvLabel()
	if err != nil {
		return Envelope{}, false, err
	}
	if !ok {
		s.drain()
		return Envelope{}, false, nil
	}
	command, ok, err := s.recvLabel()
	if err != nil {
		return Envelope{}, false, err
	}
	if !ok {
		s.drain()
		return Envelope{}, false, nil
	}
	env := Envelope{Remote: remote, Session: session, Command: command}

	for {
		raw, err := s.sub.Recv()
		if err != nil {
			return Envelope{}, false, bridgeerr.IO(err, "envelope: recv data part")
		}
		part, more := msgbus.DecodeMore(raw)
		if err := consumer(part, more); err != nil {
			return Envelope{}, false, err
		}
		if !more {
			return env, true, nil
		}
	}
}

// recvLabel reads one raw message and strips its trailing delimiter.
// ok is false (with no error) if the message is malformed: missing
// delimiter or empty body — per the protocol's error design this is
// recovered by draining, not surfaced as an error. err is non-nil only
// for an underlying transport failure, which is fatal.
func (s *Socket) recvLabel() (value string, ok bool, err error) {
	raw, err := s.sub.Recv()
	if err != nil {
		return "", false, bridgeerr.IO(err, "envelope: recv label")
	}
	if len(raw) == 0 || raw[len(raw)-1] != s.Delim || len(raw) == 1 {
		return "", false, nil
	}
	return string(raw[:len(raw)-1]), true, nil
}

// drain consumes and discards the remaining parts of a message this
// host was not addressed by.
func (s *Socket) drain() {
	for {
		raw, err := s.sub.Recv()
		if err != nil {
			return
		}
		_, more := msgbus.DecodeMore(raw)
		if !more {
			return
		}
	}
}
