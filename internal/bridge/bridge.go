// Package bridge implements the bridge reactor: it splices a
// serial file descriptor and two messaging-fabric socket pairs
// together, preserving multi-part grouping (MORE) and request/reply
// direction (REPLY) across the serial link via a one-byte flag prefix
// on each framed payload.
//
// Generalized to two logical channels (client-facing, server-facing):
// since go.mangos.dev/mangos/v3 has no ROUTER/DEALER protocol, each
// "facing" side is implemented as its own PUB/SUB pair rather than a
// single ROUTER and DEALER socket (see DESIGN.md). When the
// server-facing URLs are left empty the two pairs collapse onto one,
// which is Variant A.
package bridge

import (
	"reflect"

	"github.com/charmbracelet/log"

	"github.com/hamcore/kissbridge/internal/bridgeerr"
	"github.com/hamcore/kissbridge/internal/kiss"
	"github.com/hamcore/kissbridge/internal/msgbus"
	"github.com/hamcore/kissbridge/internal/reactor"
	"github.com/hamcore/kissbridge/internal/serialport"
)

const (
	flagMore  byte = 0x01
	flagReply byte = 0x02

	// chunkSize bounds a single serial read or write.
	chunkSize = 0x10000
)

// Config describes one bridge instance. Device empty ⇒ loopback mode.
type Config struct {
	Device string
	Baud   int

	ClientRxURL string // bridge PUB: delivers packets to client-facing subscribers
	ClientTxURL string // bridge SUB: receives packets from client-facing publishers
	ServerRxURL string // bridge PUB: delivers packets to server-facing subscribers
	ServerTxURL string // bridge SUB: receives packets from server-facing publishers

	MaxPacketSize int // applied to flag byte + payload together
	MaxQueueDepth int
	MaxQueueBytes int
	Verbose       bool
}

// packet is a flag-tagged packet awaiting delivery to one of the two
// outbound messaging sockets.
type packet struct {
	flag    byte
	payload []byte
}

// Bridge is the serial↔messaging-fabric reactor.
type Bridge struct {
	cfg    Config
	logger *log.Logger

	serial *serialport.Port
	loop   *reactor.Loop

	clientPub *msgbus.Pub
	clientSub *msgbus.Sub
	serverPub *msgbus.Pub
	serverSub *msgbus.Sub

	encoder kiss.Encoder
	decoder *kiss.Decoder

	uartTX []byte // KISS-encoded bytes awaiting a real serial write

	clientQueue []packet
	serverQueue []packet
	droppedTX   int
	droppedRX   int

	serialChunks chan serialChunk
	clientRecv   chan recvResult
	serverRecv   chan recvResult

	closed bool
}

type serialChunk struct {
	data []byte
	err  error
}

type recvResult struct {
	data []byte
	err  error
}

// New constructs a Bridge from cfg and binds its messaging-fabric
// sockets (and opens the serial device, unless Device is empty).
func New(cfg Config, logger *log.Logger) (*Bridge, error) {
	if cfg.MaxPacketSize <= 0 {
		return nil, bridgeerr.Config("bridge: max packet size must be positive")
	}
	if cfg.MaxQueueDepth <= 0 {
		cfg.MaxQueueDepth = 4096
	}
	if cfg.MaxQueueBytes <= 0 {
		cfg.MaxQueueBytes = 1 << 20
	}

	var serial *serialport.Port
	if cfg.Device != "" {
		var err error
		serial, err = serialport.Open(cfg.Device, cfg.Baud)
		if err != nil {
			return nil, err
		}
	}

	clientPub, err := msgbus.NewPub(cfg.ClientRxURL)
	if err != nil {
		return nil, bridgeerr.IO(err, "bridge: bind client rx")
	}
	clientSub, err := msgbus.ListenSub(cfg.ClientTxURL)
	if err != nil {
		clientPub.Close()
		return nil, bridgeerr.IO(err, "bridge: bind client tx")
	}

	serverPub, serverSub := clientPub, clientSub
	if cfg.ServerRxURL != "" && cfg.ServerTxURL != "" {
		serverPub, err = msgbus.NewPub(cfg.ServerRxURL)
		if err != nil {
			clientPub.Close()
			clientSub.Close()
			return nil, bridgeerr.IO(err, "bridge: bind server rx")
		}
		serverSub, err = msgbus.ListenSub(cfg.ServerTxURL)
		if err != nil {
			clientPub.Close()
			clientSub.Close()
			serverPub.Close()
			return nil, bridgeerr.IO(err, "bridge: bind server tx")
		}
	}

	loop, err := reactor.NewLoop()
	if err != nil {
		return nil, err
	}

	b := &Bridge{
		cfg:          cfg,
		logger:       logger,
		serial:       serial,
		loop:         loop,
		clientPub:    clientPub,
		clientSub:    clientSub,
		serverPub:    serverPub,
		serverSub:    serverSub,
		decoder:      kiss.NewDecoder(cfg.MaxPacketSize),
		serialChunks: make(chan serialChunk, 16),
		clientRecv:   make(chan recvResult, 1),
		serverRecv:   make(chan recvResult, 1),
	}

	go b.pumpRecv(clientSub, b.clientRecv)
	if serverSub != clientSub {
		go b.pumpRecv(serverSub, b.serverRecv)
	}
	if serial != nil {
		go b.pumpSerial()
	}

	return b, nil
}

func (b *Bridge) pumpRecv(sub *msgbus.Sub, out chan<- recvResult) {
	for {
		data, err := sub.Recv()
		out <- recvResult{data: data, err: err}
		if err != nil {
			return
		}
	}
}

func (b *Bridge) pumpSerial() {
	buf := make([]byte, chunkSize)
	for {
		n, err := b.serial.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			b.serialChunks <- serialChunk{data: chunk}
		}
		if err != nil {
			b.serialChunks <- serialChunk{err: err}
			return
		}
	}
}

// Run drives the bridge's event loop until Terminate or Exit fires.
func (b *Bridge) Run() (graceful bool, err error) {
	return b.loop.Run(b)
}

// Sources implements reactor.Reactor.
func (b *Bridge) Sources() []reactor.Source {
	sources := []reactor.Source{
		{Name: "client_recv", Chan: b.clientRecv},
	}
	if b.serverSub != b.clientSub {
		sources = append(sources, reactor.Source{Name: "server_recv", Chan: b.serverRecv})
	}
	if b.serial != nil {
		sources = append(sources, reactor.Source{Name: "serial", Chan: b.serialChunks})
	}
	return sources
}

// Handle implements reactor.Reactor.
func (b *Bridge) Handle(name string, value reflect.Value, recvOK bool) error {
	if !recvOK {
		return bridgeerr.Logic("bridge: source channel " + name + " closed unexpectedly")
	}
	switch name {
	case "client_recv":
		return b.handleRecv(value.Interface().(recvResult), 0)
	case "server_recv":
		return b.handleRecv(value.Interface().(recvResult), flagReply)
	case "serial":
		return b.handleSerialChunk(value.Interface().(serialChunk))
	}
	return nil
}

// handleRecv processes one inbound message from a local publisher.
// replyBit is flagReply when the message entered via the server-facing
// socket (REPLY=1) and 0 when it entered via the client-facing socket
// (REPLY=0).
func (b *Bridge) handleRecv(r recvResult, replyBit byte) error {
	if r.err != nil {
		return bridgeerr.IO(r.err, "bridge: socket recv")
	}
	payload, more := msgbus.DecodeMore(r.data)

	flag := replyBit
	if more {
		flag |= flagMore
	}

	framed := make([]byte, 1+len(payload))
	framed[0] = flag
	copy(framed[1:], payload)

	if len(framed) > b.cfg.MaxPacketSize {
		b.logger.Warn("dropping oversize outbound packet", "len", len(framed), "max", b.cfg.MaxPacketSize)
		return nil
	}

	var sink kiss.ByteSliceSink
	if err := b.encoder.EncodePacket(framed, &sink); err != nil {
		return bridgeerr.Logic("bridge: kiss encode")
	}
	b.appendTX(sink.Bytes)

	if b.serial == nil {
		b.loopback()
	} else {
		b.flushSerialWrite()
	}
	return nil
}

// appendTX appends encoded bytes to the serial TX buffer, applying a
// bounded drop-oldest overflow policy.
func (b *Bridge) appendTX(data []byte) {
	b.uartTX = append(b.uartTX, data...)
	if len(b.uartTX) > b.cfg.MaxQueueBytes {
		overflow := len(b.uartTX) - b.cfg.MaxQueueBytes
		b.uartTX = b.uartTX[overflow:]
		b.droppedTX++
		if b.droppedTX%100 == 1 {
			b.logger.Warn("serial TX deque overflow, dropping oldest bytes", "dropped_events", b.droppedTX)
		}
	}
}

// flushSerialWrite performs one bounded, non-blocking-at-the-protocol-
// level write of up to chunkSize bytes, erasing the written prefix.
// A write error is logged and the unwritten bytes stay queued; the
// error is not returned, so it does not stop the reactor.
func (b *Bridge) flushSerialWrite() {
	if len(b.uartTX) == 0 {
		return
	}
	end := len(b.uartTX)
	if end > chunkSize {
		end = chunkSize
	}
	n, err := b.serial.Write(b.uartTX[:end])
	if n > 0 {
		b.uartTX = b.uartTX[n:]
	}
	if err != nil {
		b.logger.Error("serial write failed", "err", err)
	}
}

// loopback implements the loopback short-circuit: with no serial
// device configured, the TX deque is moved to the RX path on every
// iteration that touches it.
func (b *Bridge) loopback() {
	if len(b.uartTX) == 0 {
		return
	}
	data := b.uartTX
	b.uartTX = nil
	b.decodeAndRoute(data)
}

func (b *Bridge) handleSerialChunk(c serialChunk) error {
	if c.err != nil {
		return bridgeerr.IO(c.err, "bridge: serial read")
	}
	b.decodeAndRoute(c.data)
	b.flushSerialWrite()
	return nil
}

// decodeAndRoute feeds data through the KISS decoder and routes every
// emitted packet to the client- or server-facing outbound queue by its
// flag byte, then attempts to flush both queues.
func (b *Bridge) decodeAndRoute(data []byte) {
	b.decoder.DecodeAll(data, func(frame []byte) {
		if len(frame) == 0 {
			// A flag byte is mandatory; a zero-length KISS frame carries
			// no routing information and is noise.
			return
		}
		flag := frame[0]
		payload := frame[1:]
		p := packet{flag: flag, payload: append([]byte(nil), payload...)}
		if flag&flagReply != 0 {
			b.enqueue(&b.clientQueue, p)
		} else {
			b.enqueue(&b.serverQueue, p)
		}
	})
	b.flushQueue(b.clientQueue, b.clientPub)
	b.clientQueue = b.clientQueue[:0]
	// In the collapsed (single-pair) shape serverPub is clientPub, so
	// REPLY=0 packets are published on the one shared socket.
	b.flushQueue(b.serverQueue, b.serverPub)
	b.serverQueue = b.serverQueue[:0]
}

func (b *Bridge) enqueue(q *[]packet, p packet) {
	*q = append(*q, p)
	if len(*q) > b.cfg.MaxQueueDepth {
		*q = (*q)[len(*q)-b.cfg.MaxQueueDepth:]
		b.droppedRX++
	}
}

// flushQueue publishes every queued packet on pub. A send error is
// logged and that packet is dropped; the error does not stop the
// reactor.
func (b *Bridge) flushQueue(q []packet, pub *msgbus.Pub) {
	for _, p := range q {
		msg := msgbus.EncodeMore(p.payload, p.flag&flagMore != 0)
		if err := pub.Send(msg); err != nil {
			b.logger.Error("socket send failed", "err", err)
		}
	}
}

// Close tears down the bridge's sockets and serial device with zero
// linger.
func (b *Bridge) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	b.clientPub.Close()
	b.clientSub.Close()
	if b.serverPub != b.clientPub {
		b.serverPub.Close()
		b.serverSub.Close()
	}
	if b.serial != nil {
		b.serial.Close()
	}
	return b.loop.Signal.Close()
}
