// Package signalbus turns POSIX signals into messages so every worker
// reactor observes termination uniformly, without per-goroutine signal
// handlers. A single process-wide Dispatcher listens on
// signal.Notify's channel and republishes each signal as a message on
// a fixed in-process messaging-fabric address; every reactor
// subscribes to that address with no filter and decodes the payload
// back into a Record.
//
// This is the Go-idiomatic translation of the original's kernel
// signalfd + process-wide thread-mask approach: one listener goroutine
// plus a broadcast, instead of a signal descriptor polled by every
// reactor individually.
package signalbus

import (
	"encoding/binary"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/hamcore/kissbridge/internal/bridgeerr"
	"github.com/hamcore/kissbridge/internal/msgbus"
)

// URL is the fixed in-process address every reactor subscribes to.
const URL = "inproc://signal"

// Record is the wire payload published for each observed signal.
type Record struct {
	Signo int
}

func encode(r Record) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(r.Signo))
	return buf
}

func decode(raw []byte) (Record, bool) {
	if len(raw) != 4 {
		return Record{}, false
	}
	return Record{Signo: int(binary.BigEndian.Uint32(raw))}, true
}

// Dispatcher is the process-singleton signal publisher. Its publisher
// socket is bound before any worker subscribes, and it outlives every
// reactor.
type Dispatcher struct {
	pub   *msgbus.Pub
	sigCh chan os.Signal
	done  chan struct{}
	once  sync.Once
}

// NewDispatcher binds the signal-fanout publisher and begins listening
// for SIGINT, SIGQUIT, SIGTERM and SIGUSR1.
func NewDispatcher() (*Dispatcher, error) {
	pub, err := msgbus.NewPub(URL)
	if err != nil {
		return nil, bridgeerr.IO(err, "signalbus: bind publisher")
	}
	d := &Dispatcher{
		pub:   pub,
		sigCh: make(chan os.Signal, 8),
		done:  make(chan struct{}),
	}
	signal.Notify(d.sigCh, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM, syscall.SIGUSR1)
	return d, nil
}

// Run republishes every received signal until Stop is called. Intended
// to run in its own goroutine for the lifetime of the process.
func (d *Dispatcher) Run() {
	for {
		select {
		case sig := <-d.sigCh:
			signo, ok := sig.(syscall.Signal)
			if !ok {
				continue
			}
			_ = d.pub.Send(encode(Record{Signo: int(signo)}))
		case <-d.done:
			return
		}
	}
}

// Stop halts the dispatcher and releases its publisher socket.
func (d *Dispatcher) Stop() {
	d.once.Do(func() {
		signal.Stop(d.sigCh)
		close(d.done)
		d.pub.Close()
	})
}

// Action is how a reactor's event loop should react to a received
// signal.
type Action int

const (
	ActionIgnore Action = iota
	ActionExit          // graceful drain, see Reactor.Exit
	ActionTerminate     // immediate shutdown, see Reactor.Terminate
	ActionReload        // SIGUSR1: optional Reloader hook, not a shutdown
)

func classify(signo int) Action {
	switch syscall.Signal(signo) {
	case syscall.SIGINT, syscall.SIGTERM:
		return ActionTerminate
	case syscall.SIGQUIT:
		return ActionExit
	case syscall.SIGUSR1:
		return ActionReload
	default:
		return ActionIgnore
	}
}

// Subscription is one reactor's view of the signal fanout: a channel
// of already-classified Actions, fed by a background goroutine
// decoding messages off the bus.
type Subscription struct {
	sub *msgbus.Sub
	ch  chan Action
}

// Subscribe connects to the signal-fanout address with an empty
// subscription filter (every reactor sees every signal).
func Subscribe() (*Subscription, error) {
	sub, err := msgbus.DialSub(URL)
	if err != nil {
		return nil, bridgeerr.IO(err, "signalbus: subscribe")
	}
	s := &Subscription{sub: sub, ch: make(chan Action, 8)}
	go s.pump()
	return s, nil
}

func (s *Subscription) pump() {
	for {
		raw, err := s.sub.Recv()
		if err != nil {
			close(s.ch)
			return
		}
		rec, ok := decode(raw)
		if !ok {
			continue
		}
		s.ch <- classify(rec.Signo)
	}
}

// C returns the channel of classified signal actions, suitable as a
// reactor.Source.
func (s *Subscription) C() <-chan Action { return s.ch }

// Close tears down the subscriber socket.
func (s *Subscription) Close() error { return s.sub.Close() }
