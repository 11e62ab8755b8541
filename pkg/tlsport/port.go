package tlsport

import (
	"errors"
	"sync/atomic"

	"github.com/shadowmesh/shadowmesh/pkg/tlsport/bufpool"
	"github.com/shadowmesh/shadowmesh/pkg/tlsport/pool"
	"github.com/shadowmesh/shadowmesh/pkg/tlsport/sslcodec"
)

// ErrWouldBlock is returned by Socket.Read when the non-blocking socket
// currently has no more data available. It is not an error condition for
// the Framer: it simply means "stop, nothing more to feed this pass".
var ErrWouldBlock = errors.New("tlsport: read would block")

// Socket is the non-blocking byte-stream contract a Port drives: reads
// never block (returning ErrWouldBlock when nothing is available), and
// writes accept as much as the kernel currently will.
type Socket interface {
	Read(p []byte) (int, error)
	Channel
}

// Config bounds the port's buffers. The crypto worker pool is passed to New
// separately.
type Config struct {
	// MaxReadPerCall caps how many bytes Run reads from the socket in one
	// service pass.
	MaxReadPerCall int
	// AppBufferSize is the largest plaintext fragment handed to
	// EncryptionGateway.Wrap in one call; min(TLS app buffer size, 16 KiB).
	AppBufferSize int
	// DecryptDestSize sizes the persistent decrypt destination buffer; it
	// must be at least one TLS packet's worth of plaintext.
	DecryptDestSize int
}

// DefaultConfig returns sane defaults: 64 KiB reads, a 16 KiB application
// buffer cap, and a decrypt destination sized for one maximal TLS record.
func DefaultConfig() Config {
	return Config{
		MaxReadPerCall:  64 * 1024,
		AppBufferSize:   maxAppFragment,
		DecryptDestSize: maxFramePayload,
	}
}

// Port owns the four gateways for one connection's TLS record pipeline. Its
// Run method is invoked by the reactor at most once concurrently; Run
// itself never blocks on crypto.
type Port struct {
	cfg     Config
	socket  Socket
	reactor Reactor

	bufPool *bufpool.Pool
	framer  *Framer

	dec   *DecryptionGateway
	read  *ReadGateway
	enc   *EncryptionGateway
	write *WriteGateway

	serializer *Serializer

	destBuf *bufpool.Container

	queuedBytes  atomic.Int64
	backpressure atomic.Bool
	running      atomic.Bool
	unregistered atomic.Bool

	readBuf []byte
}

// New assembles a Port wiring all four gateways around the connection's
// per-direction codecs, handler, socket, outbound queue, and reactor.
// txCodec and rxCodec are ordinarily the same *sslcodec.Codec type built
// from two HKDF-derived keys (see DeriveTrafficKeys) so the two directions
// never share a nonce space.
func New(cfg Config, txCodec sslcodec.Encrypter, rxCodec sslcodec.Decrypter, socket Socket, handler MessageHandler, queue OutboundQueue, reactor Reactor, crypto *pool.Pool) *Port {
	bufPool := bufpool.New(cfg.AppBufferSize)
	destBuf := bufPool.AllocateDirectAndPool(cfg.DecryptDestSize)

	p := &Port{
		cfg:     cfg,
		socket:  socket,
		reactor: reactor,
		bufPool: bufPool,
		framer:  NewFramer(bufPool),
		destBuf: destBuf,
		readBuf: make([]byte, cfg.MaxReadPerCall),
	}

	p.write = NewWriteGateway(crypto, socket, &p.queuedBytes, &p.backpressure, reactor)
	p.write.bindConn(p)
	p.enc = NewEncryptionGateway(crypto, txCodec, p.write, &p.queuedBytes)
	p.read = NewReadGateway(crypto, handler, reactor)
	p.read.bindConn(p)
	p.dec = NewDecryptionGateway(crypto, rxCodec, destBuf, p.read)
	p.serializer = NewSerializer(bufPool, queue, cfg.AppBufferSize)

	return p
}

// Run services the port once: it attempts a bounded socket read, feeds the
// Framer, drives the Serializer, nudges the reactor if either stage
// produced work, clears backpressure if the outbound pipeline is empty,
// and surfaces the first error recorded by any gateway since the last call.
func (p *Port) Run() error {
	if !p.running.CompareAndSwap(false, true) {
		return nil
	}
	defer p.running.Store(false)

	producedWork := false

	n, readErr := p.socket.Read(p.readBuf)
	if readErr != nil && !errors.Is(readErr, ErrWouldBlock) {
		return readErr
	}
	if n > 0 {
		producedWork = true
		if err := p.framer.Feed(p.readBuf[:n], p.dec); err != nil {
			return err
		}
	}

	if p.serializer.Drain(p.enc) {
		producedWork = true
	}

	if producedWork {
		p.reactor.NudgeChannel(p)
	}

	if p.Empty() {
		p.backpressure.Store(false)
	}

	return p.pollErrors()
}

// pollErrors checks each gateway's completion slot for a recorded error.
// The first one found is connection-fatal; in-flight items downstream of
// the failure are allowed to complete, and their results are discarded by
// the caller tearing the connection down.
func (p *Port) pollErrors() error {
	if err := p.dec.TakeError(); err != nil {
		return err
	}
	if err := p.read.TakeError(); err != nil {
		return err
	}
	if err := p.enc.TakeError(); err != nil {
		return err
	}
	if err := p.write.TakeError(); err != nil {
		return err
	}
	return nil
}

// Empty reports whether all four gateways are drained and the Framer holds
// no partial frame.
func (p *Port) Empty() bool {
	return p.dec.Empty() && p.read.Empty() && p.enc.Empty() && p.write.Empty() && !p.framer.HasPartialFrame()
}

// Backpressure reports whether producers should currently hold off,
// because a write was short (kernel send buffer full) and the pipeline
// hasn't since drained.
func (p *Port) Backpressure() bool {
	return p.backpressure.Load()
}

// QueuedBytes returns the outbound queued-bytes counter's current value.
func (p *Port) QueuedBytes() int64 {
	return p.queuedBytes.Load()
}

// Unregister releases the persistent decrypt destination buffer and closes
// the four gateways. In-flight pool tasks continue to completion but find
// the port unroutable; their results are discarded by the reactor on the
// next attempted service.
func (p *Port) Unregister() {
	if !p.unregistered.CompareAndSwap(false, true) {
		return
	}
	p.dec.Close()
	p.read.Close()
	p.enc.Close()
	p.write.Close()
	p.destBuf.Release()
}
