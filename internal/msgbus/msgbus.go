// Package msgbus is the messaging-fabric abstraction the rest of the
// bridge is built on: a thin wrapper over go.mangos.dev/mangos/v3 (the
// Go scalability-protocols library — the idiomatic-Go stand-in for the
// ZeroMQ PUB/SUB and REQ/REP sockets the original bridge used; no
// ZeroMQ or nanomsg binding appears anywhere in the retrieval pack, so
// this dependency is named, not grounded, per DESIGN.md).
//
// mangos sockets are message-oriented but, unlike ZeroMQ, have no
// RCVMORE socket option: every Send is one complete message and every
// Recv returns one complete message, with no built-in notion of
// "more parts follow". EncodeMore/DecodeMore restore that semantic by
// prefixing every message with a one-byte more-flag, the same
// technique the bridge reactor already uses for its own MORE/REPLY
// flag byte on the serial wire.
package msgbus

import (
	"go.mangos.dev/mangos/v3"
	"go.mangos.dev/mangos/v3/protocol/pub"
	"go.mangos.dev/mangos/v3/protocol/sub"

	_ "go.mangos.dev/mangos/v3/transport/inproc"
	_ "go.mangos.dev/mangos/v3/transport/ipc"
	_ "go.mangos.dev/mangos/v3/transport/tcp"
)

// EncodeMore prefixes part with a one-byte flag recording whether more
// parts of the same logical message follow.
func EncodeMore(part []byte, more bool) []byte {
	out := make([]byte, 1+len(part))
	if more {
		out[0] = 1
	}
	copy(out[1:], part)
	return out
}

// DecodeMore splits a message produced by EncodeMore back into its
// payload and more-flag. A zero-length message decodes to an empty
// payload with more=false.
func DecodeMore(msg []byte) (part []byte, more bool) {
	if len(msg) == 0 {
		return nil, false
	}
	return msg[1:], msg[0] != 0
}

// Pub wraps a mangos PUB socket bound to one or more local addresses.
type Pub struct {
	sock mangos.Socket
}

// NewPub constructs a PUB socket and binds it to url.
func NewPub(url string) (*Pub, error) {
	sock, err := pub.NewSocket()
	if err != nil {
		return nil, err
	}
	sock.SetOption(mangos.OptionNoDelay, true) //nolint:errcheck // best-effort
	if err := sock.Listen(url); err != nil {
		sock.Close()
		return nil, err
	}
	return &Pub{sock: sock}, nil
}

func (p *Pub) Send(msg []byte) error { return p.sock.Send(msg) }
func (p *Pub) Close() error          { return p.sock.Close() }

// Sock exposes the underlying mangos socket, e.g. for reactor readiness
// polling via its recv/send file descriptors.
func (p *Pub) Sock() mangos.Socket { return p.sock }

// Sub wraps a mangos SUB socket dialled to a remote PUB address.
type Sub struct {
	sock mangos.Socket
}

// DialSub constructs a SUB socket and dials it to url with no
// subscription filter (subscribe-all); call Subscribe to narrow it.
// Alias of NewSub, named to pair with ListenSub the way DialPub pairs
// with NewPub.
func DialSub(url string) (*Sub, error) { return NewSub(url) }

// NewSub constructs a SUB socket and dials it to url with no
// subscription filter (subscribe-all); call Subscribe to narrow it.
func NewSub(url string) (*Sub, error) {
	sock, err := sub.NewSocket()
	if err != nil {
		return nil, err
	}
	if err := sock.SetOption(mangos.OptionSubscribe, []byte{}); err != nil {
		sock.Close()
		return nil, err
	}
	if err := sock.Dial(url); err != nil {
		sock.Close()
		return nil, err
	}
	return &Sub{sock: sock}, nil
}

// Subscribe narrows this socket to messages beginning with prefix. It
// removes the subscribe-all filter installed by NewSub the first time
// it's called.
func (s *Sub) Subscribe(prefix []byte) error {
	if err := s.sock.SetOption(mangos.OptionSubscribe, prefix); err != nil {
		return err
	}
	return s.sock.SetOption(mangos.OptionUnsubscribe, []byte{})
}

func (s *Sub) Recv() ([]byte, error) { return s.sock.Recv() }
func (s *Sub) Close() error          { return s.sock.Close() }
func (s *Sub) Sock() mangos.Socket   { return s.sock }

// DialPub constructs a PUB socket that dials out to a remote SUB,
// rather than binding a well-known address.
func DialPub(url string) (*Pub, error) {
	sock, err := pub.NewSocket()
	if err != nil {
		return nil, err
	}
	if err := sock.Dial(url); err != nil {
		sock.Close()
		return nil, err
	}
	return &Pub{sock: sock}, nil
}

// ListenSub constructs a SUB socket that binds a well-known address
// instead of dialling out, the shape the bridge reactor needs since it
// owns both of its messaging-fabric addresses.
func ListenSub(url string) (*Sub, error) {
	sock, err := sub.NewSocket()
	if err != nil {
		return nil, err
	}
	if err := sock.SetOption(mangos.OptionSubscribe, []byte{}); err != nil {
		sock.Close()
		return nil, err
	}
	if err := sock.Listen(url); err != nil {
		sock.Close()
		return nil, err
	}
	return &Sub{sock: sock}, nil
}
