package tlsport

import "github.com/shadowmesh/shadowmesh/pkg/tlsport/bufpool"

// Frame is one complete TLS record handed from the Framer to the
// DecryptionGateway: header + payload, contiguous in a single container.
type Frame struct {
	Container  *bufpool.Container
	PayloadLen int
}

// encItem is a plaintext fragment queued for encryption.
type encItem struct {
	fragment *bufpool.Container
}

// encResult pairs a ciphertext container with its byte count, per spec
// section 3's "Encryption result". Ownership transfers from
// EncryptionGateway to WriteGateway; WriteGateway releases it on full
// drain.
type encResult struct {
	ciphertext *bufpool.Container
	totalLen   int
	written    int
}

// WriteResult is the pair (bytes queued, bytes written) for one outbound
// record. WriteGateway does not produce it: it updates the connection's
// queued-bytes counter and backpressure flag directly as it writes, and no
// code in this package constructs or consumes a WriteResult.
type WriteResult struct {
	BytesQueued  int
	BytesWritten int
}

// OutboundMessage is one application message awaiting serialization onto
// the wire. Producers enqueue these on a connection's outbound queue;
// the Serializer drains that queue each time the port is serviced.
type OutboundMessage interface {
	// SerializedSize reports how many bytes Serialize will write.
	// EmptyMessageLength is a sentinel meaning "skip, nothing to send".
	SerializedSize() int
	// Serialize writes the message into dst, which is guaranteed to be at
	// least SerializedSize() bytes long, and returns the number of bytes
	// written.
	Serialize(dst []byte) int
}

// EmptyMessageLength is the sentinel SerializedSize indicating a message
// should be silently skipped by the Serializer.
const EmptyMessageLength = 0

// OutboundQueue is the connection's queue of to-be-serialized outbound
// messages, an external collaborator per spec section 1. Swap atomically
// hands ownership of all currently queued messages to the caller and
// leaves the queue empty.
type OutboundQueue interface {
	Swap() []OutboundMessage
}

// MessageHandler is the application's message handler, invoked once per
// complete application message in arrival order.
type MessageHandler interface {
	HandleMessage(message []byte, conn *Port) error
}

// MessageHandlerFunc adapts a function to MessageHandler.
type MessageHandlerFunc func(message []byte, conn *Port) error

// HandleMessage implements MessageHandler.
func (f MessageHandlerFunc) HandleMessage(message []byte, conn *Port) error {
	return f(message, conn)
}

// Reactor is the socket multiplexer contract: it schedules a port's Run and
// can be nudged to re-service a port even without socket readiness.
type Reactor interface {
	NudgeChannel(port *Port)
	// DisableWriteInterest tells the reactor the port's outbound FIFO has
	// fully drained, so it need not keep re-servicing the port for
	// writability until something is queued again. A select()-based reactor
	// would clear the socket's write-readiness registration here; a
	// ticker-driven reactor may treat this as a no-op.
	DisableWriteInterest(port *Port)
}
