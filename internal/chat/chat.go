// Package chat implements the chat reactor: a small end-to-end
// exercise of the envelope protocol atop a bridge.
//
// The chat reactor binds standard input and the subscription socket
// for reading. Bytes are accumulated into a line buffer; each
// newline-terminated prefix is sent as one envelope with a single
// data part. On EOF any trailing partial line is flushed with an
// implicit newline, and the reactor requests Exit once the line
// buffer empties. Received messages with command="message" are
// printed as "[session] payload"; other commands print a placeholder.
package chat

import (
	"bufio"
	"fmt"
	"io"
	"reflect"

	"github.com/charmbracelet/log"

	"github.com/hamcore/kissbridge/internal/bridgeerr"
	"github.com/hamcore/kissbridge/internal/envelope"
	"github.com/hamcore/kissbridge/internal/reactor"
)

const commandMessage = "message"

// Reactor is the chat client's event-loop reactor.
type Reactor struct {
	sock     *envelope.Socket
	target   string
	username string
	out      io.Writer
	logger   *log.Logger

	loop *reactor.Loop

	lines   chan string
	eof     chan struct{}
	eofSeen bool

	incoming chan incomingMsg
}

type incomingMsg struct {
	env  envelope.Envelope
	data []byte
	err  error
}

// New constructs a chat reactor that reads lines from stdin, sends
// them as command="message" envelopes addressed to target, and prints
// messages received for this host to out.
func New(sock *envelope.Socket, target, username string, stdin io.Reader, out io.Writer, logger *log.Logger) (*Reactor, error) {
	loop, err := reactor.NewLoop()
	if err != nil {
		return nil, err
	}
	r := &Reactor{
		sock:     sock,
		target:   target,
		username: username,
		out:      out,
		logger:   logger,
		loop:     loop,
		lines:    make(chan string, 16),
		eof:      make(chan struct{}),
		incoming: make(chan incomingMsg, 16),
	}
	go r.pumpStdin(stdin)
	go r.pumpRecv()
	return r, nil
}

func (r *Reactor) pumpStdin(stdin io.Reader) {
	scanner := bufio.NewScanner(stdin)
	for scanner.Scan() {
		r.lines <- scanner.Text()
	}
	close(r.eof)
}

func (r *Reactor) pumpRecv() {
	for {
		env, data, ok, err := r.sock.Recv()
		if err != nil {
			r.incoming <- incomingMsg{err: err}
			return
		}
		if !ok {
			continue
		}
		r.incoming <- incomingMsg{env: env, data: data}
	}
}

// Run drives the chat reactor's event loop.
func (r *Reactor) Run() (graceful bool, err error) {
	return r.loop.Run(r)
}

// Sources implements reactor.Reactor.
func (r *Reactor) Sources() []reactor.Source {
	var sources []reactor.Source
	if !r.eofSeen {
		sources = append(sources,
			reactor.Source{Name: "line", Chan: r.lines},
			reactor.Source{Name: "eof", Chan: r.eof},
		)
	}
	sources = append(sources, reactor.Source{Name: "incoming", Chan: r.incoming})
	return sources
}

func (r *Reactor) Handle(name string, value reflect.Value, recvOK bool) error {
	switch name {
	case "line":
		if !recvOK {
			return nil
		}
		return r.sendLine(value.Interface().(string))
	case "eof":
		// pumpStdin closes eof only after queueing every line, but select
		// may pick eof first: send whatever lines are still queued.
		for {
			select {
			case line := <-r.lines:
				if err := r.sendLine(line); err != nil {
					return err
				}
				continue
			default:
			}
			break
		}
		r.eofSeen = true
		r.loop.Exit()
		return nil
	case "incoming":
		if !recvOK {
			return bridgeerr.Logic("chat: recv pump closed unexpectedly")
		}
		return r.handleIncoming(value.Interface().(incomingMsg))
	}
	return nil
}

func (r *Reactor) sendLine(line string) error {
	env := envelope.Envelope{Session: r.username, Command: commandMessage}
	return r.sock.Send(r.target, env, []byte(line))
}

func (r *Reactor) handleIncoming(m incomingMsg) error {
	if m.err != nil {
		return bridgeerr.IO(m.err, "chat: recv")
	}
	if m.env.Command == commandMessage {
		fmt.Fprintf(r.out, "[%s] %s\n", m.env.Session, string(m.data))
	} else {
		fmt.Fprintf(r.out, "[%s] <%s>\n", m.env.Session, m.env.Command)
	}
	return nil
}
