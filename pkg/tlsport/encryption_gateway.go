package tlsport

import (
	"sync"
	"sync/atomic"

	"github.com/shadowmesh/shadowmesh/pkg/tlsport/bufpool"
	"github.com/shadowmesh/shadowmesh/pkg/tlsport/pool"
	"github.com/shadowmesh/shadowmesh/pkg/tlsport/sslcodec"
)

// EncryptionGateway is the single-flight FIFO that encrypts plaintext
// fragments produced by the Serializer, off the I/O thread.
type EncryptionGateway struct {
	mu      sync.Mutex
	queue   []encItem
	running bool
	closed  bool

	crypto    *pool.Pool
	task      pool.Task
	encrypter sslcodec.Encrypter

	next        *WriteGateway
	queuedBytes *atomic.Int64 // connection's outbound queued-bytes counter

	errCh chan error
}

// NewEncryptionGateway wires an EncryptionGateway to its successor
// WriteGateway and the connection's shared queued-bytes counter.
func NewEncryptionGateway(crypto *pool.Pool, encrypter sslcodec.Encrypter, next *WriteGateway, queuedBytes *atomic.Int64) *EncryptionGateway {
	g := &EncryptionGateway{
		crypto:      crypto,
		encrypter:   encrypter,
		next:        next,
		queuedBytes: queuedBytes,
		errCh:       make(chan error, 1),
	}
	g.task = pool.TaskFunc(g.drain)
	return g
}

// Enqueue appends a plaintext fragment, no larger than the port's
// application buffer size, and submits a worker on the 0->1 single-flight
// transition.
func (g *EncryptionGateway) Enqueue(fragment *bufpool.Container) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		fragment.Release()
		return
	}
	g.queue = append(g.queue, encItem{fragment: fragment})
	submit := !g.running
	g.running = true
	g.mu.Unlock()

	if submit {
		g.crypto.Submit(g.task)
	}
}

func (g *EncryptionGateway) drain() {
	g.mu.Lock()
	if len(g.queue) == 0 {
		g.running = false
		g.mu.Unlock()
		return
	}
	item := g.queue[0]
	g.queue = g.queue[1:]
	g.mu.Unlock()

	ciphertext, err := g.encrypter.Wrap(item.fragment.Bytes())
	item.fragment.Release()

	if err != nil {
		g.reportError(err)
	} else {
		n := ciphertext.Remaining()
		g.queuedBytes.Add(int64(n))
		g.next.Enqueue(&encResult{ciphertext: ciphertext, totalLen: n})
	}

	g.mu.Lock()
	if len(g.queue) > 0 {
		g.crypto.Submit(g.task)
	} else {
		g.running = false
	}
	g.mu.Unlock()
}

func (g *EncryptionGateway) reportError(err error) {
	select {
	case g.errCh <- err:
	default:
	}
}

// TakeError returns the first recorded wrap error, if any. Its completion
// value otherwise exists purely to surface errors; nothing downstream
// consumes a successful result.
func (g *EncryptionGateway) TakeError() error {
	select {
	case err := <-g.errCh:
		return err
	default:
		return nil
	}
}

// Empty reports whether the gateway's FIFO is drained and idle.
func (g *EncryptionGateway) Empty() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.queue) == 0 && !g.running
}

// Close marks the gateway closed; further enqueues release their fragment.
func (g *EncryptionGateway) Close() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
}
