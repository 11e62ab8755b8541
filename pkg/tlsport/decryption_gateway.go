package tlsport

import (
	"sync"

	"github.com/shadowmesh/shadowmesh/pkg/tlsport/bufpool"
	"github.com/shadowmesh/shadowmesh/pkg/tlsport/parser"
	"github.com/shadowmesh/shadowmesh/pkg/tlsport/pool"
	"github.com/shadowmesh/shadowmesh/pkg/tlsport/sslcodec"
)

type decQueueItem struct {
	frame *Frame
}

// DecryptionGateway is the single-flight FIFO that decrypts TLS frames and
// reassembles them into application messages, off the I/O thread.
type DecryptionGateway struct {
	mu      sync.Mutex
	queue   []decQueueItem
	running bool
	closed  bool

	crypto *pool.Pool
	task   pool.Task

	decrypter sslcodec.Decrypter
	dest      *bufpool.Container // persistent per-port decrypt destination
	parser    *parser.Parser

	next *ReadGateway

	errCh chan error
}

// NewDecryptionGateway wires a DecryptionGateway to its successor
// ReadGateway and the crypto pool it shares with every other gateway on the
// process.
func NewDecryptionGateway(crypto *pool.Pool, decrypter sslcodec.Decrypter, dest *bufpool.Container, next *ReadGateway) *DecryptionGateway {
	g := &DecryptionGateway{
		crypto:    crypto,
		decrypter: decrypter,
		dest:      dest,
		parser:    parser.New(),
		next:      next,
		errCh:     make(chan error, 1),
	}
	g.task = pool.TaskFunc(g.drain)
	return g
}

// Enqueue appends a frame to the gateway's FIFO and, on the 0->1
// transition of the single-flight flag, submits one worker to the crypto
// pool. A zero-payload frame is dropped silently; it is not an error.
func (g *DecryptionGateway) Enqueue(frame *Frame) {
	if frame.PayloadLen == 0 {
		frame.Container.Release()
		return
	}

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		frame.Container.Release()
		return
	}
	g.queue = append(g.queue, decQueueItem{frame: frame})
	submit := !g.running
	g.running = true
	g.mu.Unlock()

	if submit {
		g.crypto.Submit(g.task)
	}
}

// drain pops one frame, decrypts and parses it, forwards the resulting
// messages, and either resubmits itself or releases the single-flight flag,
// all atomically with respect to new enqueues via the shared mutex.
func (g *DecryptionGateway) drain() {
	g.mu.Lock()
	if len(g.queue) == 0 {
		g.running = false
		g.mu.Unlock()
		return
	}
	item := g.queue[0]
	g.queue = g.queue[1:]
	g.mu.Unlock()

	messages, err := g.process(item.frame)
	item.frame.Container.Release()

	if err != nil {
		g.reportError(err)
	} else if len(messages) > 0 {
		g.next.Enqueue(messages)
	}

	g.mu.Lock()
	if len(g.queue) > 0 {
		g.crypto.Submit(g.task)
	} else {
		g.running = false
	}
	g.mu.Unlock()
}

func (g *DecryptionGateway) process(frame *Frame) ([][]byte, error) {
	g.dest.Reset()
	n, err := g.decrypter.Unwrap(frame.Container.Bytes(), g.dest)
	if err != nil {
		g.dest.Reset()
		return nil, err
	}
	messages := g.parser.Feed(g.dest.Bytes()[:n])
	g.dest.Reset()
	return messages, nil
}

func (g *DecryptionGateway) reportError(err error) {
	select {
	case g.errCh <- err:
	default:
	}
}

// TakeError returns the first recorded error, if any, without blocking.
func (g *DecryptionGateway) TakeError() error {
	select {
	case err := <-g.errCh:
		return err
	default:
		return nil
	}
}

// Empty reports whether the gateway's FIFO is drained and no worker is
// currently running.
func (g *DecryptionGateway) Empty() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.queue) == 0 && !g.running
}

// Close marks the gateway closed; further Enqueue calls release their
// frame rather than queuing it. In-flight work continues to completion.
func (g *DecryptionGateway) Close() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
}
