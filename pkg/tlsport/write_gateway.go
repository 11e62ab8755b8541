package tlsport

import (
	"sync"
	"sync/atomic"

	"github.com/shadowmesh/shadowmesh/pkg/tlsport/pool"
)

// Channel is the non-blocking socket write contract: Write attempts to send
// as much of p as the kernel will currently accept and returns how many
// bytes it took, never blocking.
type Channel interface {
	Write(p []byte) (int, error)
}

// WriteGateway is the single-flight FIFO that writes ciphertext to the
// socket, off the I/O thread. Unlike the other gateways, its worker peeks
// rather than pops: a partial socket write must retain the container at
// the FIFO head so the next worker run resumes it.
type WriteGateway struct {
	mu      sync.Mutex
	queue   []*encResult
	running bool
	closed  bool

	crypto  *pool.Pool
	task    pool.Task
	channel Channel
	conn    *Port

	queuedBytes  *atomic.Int64
	backpressure *atomic.Bool
	reactor      Reactor

	errCh chan error
}

// NewWriteGateway wires a WriteGateway to the socket, the connection's
// queued-bytes counter and backpressure flag, and the reactor it nudges
// once the pipeline drains.
func NewWriteGateway(crypto *pool.Pool, channel Channel, queuedBytes *atomic.Int64, backpressure *atomic.Bool, reactor Reactor) *WriteGateway {
	g := &WriteGateway{
		crypto:       crypto,
		channel:      channel,
		queuedBytes:  queuedBytes,
		backpressure: backpressure,
		reactor:      reactor,
		errCh:        make(chan error, 1),
	}
	g.task = pool.TaskFunc(g.drain)
	return g
}

func (g *WriteGateway) bindConn(conn *Port) {
	g.conn = conn
}

// Enqueue appends a ciphertext result and submits a worker on the 0->1
// single-flight transition.
func (g *WriteGateway) Enqueue(result *encResult) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		result.ciphertext.Release()
		return
	}
	g.queue = append(g.queue, result)
	submit := !g.running
	g.running = true
	g.mu.Unlock()

	if submit {
		g.crypto.Submit(g.task)
	}
}

func (g *WriteGateway) drain() {
	g.mu.Lock()
	if len(g.queue) == 0 {
		g.running = false
		g.mu.Unlock()
		return
	}
	head := g.queue[0]
	g.mu.Unlock()

	offered := head.ciphertext.Bytes()
	n, err := g.channel.Write(offered)
	if n > 0 {
		g.queuedBytes.Add(-int64(n))
		head.ciphertext.Advance(n)
		head.written += n
	}

	// A short write means the kernel send buffer is full: backpressure
	// starts right here, at the short write, not once the item eventually
	// finishes draining (scenario S5).
	if n < len(offered) {
		g.backpressure.Store(true)
	}

	if err != nil {
		// Pop the failed head rather than leaving it in place: its
		// container is released right here, so retaining it at the FIFO
		// head would only let a later resubmission write from freed
		// memory. The connection is going down on this error regardless
		// (see Port.pollErrors), so nothing downstream needed this item
		// resumed.
		g.mu.Lock()
		if len(g.queue) > 0 && g.queue[0] == head {
			g.queue = g.queue[1:]
		}
		g.mu.Unlock()
		head.ciphertext.Release()
		g.reportError(err)
	} else if head.ciphertext.Remaining() == 0 {
		g.mu.Lock()
		if len(g.queue) > 0 && g.queue[0] == head {
			g.queue = g.queue[1:]
		}
		g.mu.Unlock()
		head.ciphertext.Release()
	}
	// else: partial drain, head retained at the FIFO head for the next run.

	g.mu.Lock()
	empty := len(g.queue) == 0
	if !empty {
		g.crypto.Submit(g.task)
	} else {
		g.running = false
	}
	g.mu.Unlock()

	if empty {
		if g.reactor != nil {
			g.reactor.DisableWriteInterest(g.conn)
			g.reactor.NudgeChannel(g.conn)
		}
	}
}

func (g *WriteGateway) reportError(err error) {
	select {
	case g.errCh <- err:
	default:
	}
}

// TakeError returns the first recorded write error, if any.
func (g *WriteGateway) TakeError() error {
	select {
	case err := <-g.errCh:
		return err
	default:
		return nil
	}
}

// Empty reports whether the gateway's FIFO is drained and idle.
func (g *WriteGateway) Empty() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.queue) == 0 && !g.running
}

// Close marks the gateway closed; further enqueues release their
// ciphertext immediately.
func (g *WriteGateway) Close() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
}
