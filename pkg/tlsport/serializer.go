package tlsport

import "github.com/shadowmesh/shadowmesh/pkg/tlsport/bufpool"

// Serializer builds encryption work from a connection's outbound queue of
// deferred-serializable messages. It runs inline on the I/O goroutine.
// Goals: zero-copy for messages that fit in a shared pooled buffer, and
// bounded per-call fragmentation so no single fragment handed to
// EncryptionGateway.Wrap exceeds the port's application buffer size.
type Serializer struct {
	pool          *bufpool.Pool
	queue         OutboundQueue
	appBufferSize int
}

// NewSerializer creates a Serializer draining queue, fragmenting at most
// appBufferSize bytes per call.
func NewSerializer(pool *bufpool.Pool, queue OutboundQueue, appBufferSize int) *Serializer {
	return &Serializer{pool: pool, queue: queue, appBufferSize: appBufferSize}
}

// fragmentSink is the Serializer's view of an EncryptionGateway: just enough
// to decouple the two for testing without a real crypto pool behind them.
type fragmentSink interface {
	Enqueue(fragment *bufpool.Container)
}

// Drain atomically swaps and owns the outbound queue, serializes every
// pending message into one or more fragments of at most appBufferSize
// bytes, and enqueues them onto enc in order. It returns true if any work
// was produced, so the caller can request another service pass.
func (s *Serializer) Drain(enc fragmentSink) bool {
	messages := s.queue.Swap()
	if len(messages) == 0 {
		return false
	}

	var current *bufpool.Container
	for _, msg := range messages {
		size := msg.SerializedSize()
		if size == EmptyMessageLength {
			continue
		}

		if current == nil {
			current = s.pool.Acquire()
		}

		if size <= current.Remaining() {
			msg.Serialize(current.Bytes()[:size])
			current.Advance(size)
			continue
		}

		if current.Position() > 0 {
			current.Flip()
			enc.Enqueue(current)
		} else {
			current.Release()
		}

		heapBuf := make([]byte, size)
		msg.Serialize(heapBuf)
		off := 0
		for off < size {
			chunk := s.appBufferSize
			if size-off < chunk {
				chunk = size - off
			}
			enc.Enqueue(s.pool.WrapBB(heapBuf[off : off+chunk]))
			off += chunk
		}
		current = nil
	}

	if current != nil {
		if current.Position() > 0 {
			current.Flip()
			enc.Enqueue(current)
		} else {
			current.Release()
		}
	}

	return true
}
