// Package reactor implements the single-threaded, readiness-driven
// event loop every worker is built on: each iteration asks the
// concrete reactor which sources it wants to wait on, blocks until one
// is ready, and dispatches to it — always alongside the process-wide
// signal subscription, which can request graceful or immediate
// shutdown.
//
// A poll(2)-style array of raw file descriptors and messaging-fabric
// sockets has no Go equivalent, since Go has no pollable
// messaging-fabric socket type; this is built instead around
// reflect.Select over a dynamic, per-iteration set of channels — the
// idiomatic Go answer to "wait on a runtime-determined set of
// channels" that poll(2) solves for file descriptors. Handlers
// (Source producers, Handle) must be non-blocking: a source's channel
// should only become ready once its event has already happened.
package reactor

import (
	"reflect"

	"github.com/hamcore/kissbridge/internal/bridgeerr"
	"github.com/hamcore/kissbridge/internal/signalbus"
)

// Source names one channel a Reactor wants the Loop to wait on this
// iteration. Chan must be a directional-or-bidirectional channel
// value (passed as `any` because Go has no covariant channel type);
// Loop uses reflect.Select to wait across all of them at once.
type Source struct {
	Name string
	Chan any
}

// Reactor is implemented by every concrete worker (bridge, chat). Sources is called once per iteration before blocking to ask
// which events the reactor wants to wait on; Handle is called once a
// source becomes ready. Handle is called once per iteration for
// whichever single source won the select, since Go's select (and
// reflect.Select)
// picks one ready case at a time. Handler order only needs to be
// stable, not for every source to drain in one pass — the next
// iteration immediately offers any sources still ready.
type Reactor interface {
	Sources() []Source
	Handle(name string, value reflect.Value, recvOK bool) error
}

// Reloader is implemented by reactors that want to react to SIGUSR1 by
// reloading configuration instead of shutting down.
type Reloader interface {
	Reload()
}

// Loop drives one Reactor's event loop to completion.
type Loop struct {
	Signal *signalbus.Subscription

	terminating bool
	exiting     bool
}

// NewLoop constructs a Loop subscribed to the process-wide signal bus.
func NewLoop() (*Loop, error) {
	sub, err := signalbus.Subscribe()
	if err != nil {
		return nil, err
	}
	return &Loop{Signal: sub}, nil
}

// Terminate requests the loop exit on its next iteration regardless of
// pending work.
func (l *Loop) Terminate() { l.terminating = true }

// Exit requests the loop exit on the next iteration in which the
// reactor reports no sources (i.e. it has drained).
func (l *Loop) Exit() { l.exiting = true }

const signalSourceName = "__signal__"

// Run executes r's event loop until Terminate or Exit fires. It
// returns true for a graceful (Exit) shutdown, false for an immediate
// (Terminate) one.
func (l *Loop) Run(r Reactor) (graceful bool, err error) {
	for {
		if l.terminating {
			return false, nil
		}

		sources := r.Sources()
		if len(sources) == 0 && l.exiting {
			return true, nil
		}

		cases := make([]reflect.SelectCase, 0, len(sources)+1)
		names := make([]string, 0, len(sources)+1)
		for _, s := range sources {
			cases = append(cases, reflect.SelectCase{
				Dir:  reflect.SelectRecv,
				Chan: reflect.ValueOf(s.Chan),
			})
			names = append(names, s.Name)
		}
		cases = append(cases, reflect.SelectCase{
			Dir:  reflect.SelectRecv,
			Chan: reflect.ValueOf(l.Signal.C()),
		})
		names = append(names, signalSourceName)

		chosen, value, ok := reflect.Select(cases)
		name := names[chosen]

		if name == signalSourceName {
			if !ok {
				return false, bridgeerr.Logic("reactor: signal subscription closed unexpectedly")
			}
			l.handleSignal(value.Interface().(signalbus.Action), r)
			continue
		}

		if err := r.Handle(name, value, ok); err != nil {
			return false, err
		}
	}
}

func (l *Loop) handleSignal(action signalbus.Action, r Reactor) {
	switch action {
	case signalbus.ActionTerminate:
		l.Terminate()
	case signalbus.ActionExit:
		l.Exit()
	case signalbus.ActionReload:
		if reloader, ok := r.(Reloader); ok {
			reloader.Reload()
		}
	case signalbus.ActionIgnore:
	}
}
