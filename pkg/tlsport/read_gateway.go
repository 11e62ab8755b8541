package tlsport

import (
	"fmt"
	"sync"

	"github.com/shadowmesh/shadowmesh/pkg/tlsport/pool"
)

type readQueueItem struct {
	messages [][]byte
}

// ReadGateway is the single-flight FIFO that delivers decrypted application
// messages to the handler, off the I/O thread.
type ReadGateway struct {
	mu      sync.Mutex
	queue   []readQueueItem
	running bool
	closed  bool

	crypto *pool.Pool
	task   pool.Task

	handler MessageHandler
	conn    *Port
	reactor Reactor

	errCh chan error
}

// NewReadGateway wires a ReadGateway to the application handler and the
// reactor it nudges once its FIFO drains.
func NewReadGateway(crypto *pool.Pool, handler MessageHandler, reactor Reactor) *ReadGateway {
	g := &ReadGateway{
		crypto:  crypto,
		handler: handler,
		reactor: reactor,
		errCh:   make(chan error, 1),
	}
	g.task = pool.TaskFunc(g.drain)
	return g
}

// bindConn supplies the owning Port once it exists (Port and its gateways
// have a construction-order cycle: the port needs the gateways to exist
// before it can nudge itself through the reactor).
func (g *ReadGateway) bindConn(conn *Port) {
	g.conn = conn
}

// Enqueue appends a batch of messages (everything one decrypted frame
// yielded) and, on the 0->1 single-flight transition, submits a worker.
func (g *ReadGateway) Enqueue(messages [][]byte) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.queue = append(g.queue, readQueueItem{messages: messages})
	submit := !g.running
	g.running = true
	g.mu.Unlock()

	if submit {
		g.crypto.Submit(g.task)
	}
}

func (g *ReadGateway) drain() {
	g.mu.Lock()
	if len(g.queue) == 0 {
		g.running = false
		g.mu.Unlock()
		return
	}
	item := g.queue[0]
	g.queue = g.queue[1:]
	g.mu.Unlock()

	for _, message := range item.messages {
		if err := g.handler.HandleMessage(message, g.conn); err != nil {
			g.reportError(fmt.Errorf("%w: %w", ErrHandlerFailed, err))
			break
		}
	}

	g.mu.Lock()
	empty := len(g.queue) == 0
	if !empty {
		g.crypto.Submit(g.task)
	} else {
		g.running = false
	}
	g.mu.Unlock()

	if empty && g.reactor != nil {
		g.reactor.NudgeChannel(g.conn)
	}
}

func (g *ReadGateway) reportError(err error) {
	select {
	case g.errCh <- err:
	default:
	}
}

// TakeError returns the first recorded handler error, if any.
func (g *ReadGateway) TakeError() error {
	select {
	case err := <-g.errCh:
		return err
	default:
		return nil
	}
}

// Empty reports whether the gateway's FIFO is drained and idle.
func (g *ReadGateway) Empty() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.queue) == 0 && !g.running
}

// Close marks the gateway closed; further enqueues are dropped.
func (g *ReadGateway) Close() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
}
