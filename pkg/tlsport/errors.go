package tlsport

import "errors"

var (
	// ErrFrameTooLarge is a framing error: the Framer validated the
	// declared record length against the TLS maximum payload before
	// allocating a frame container, per the open question in spec section
	// 9 ("consider validating L <= 2^14 + 256 at the Framer before
	// allocation"). It is connection-fatal.
	ErrFrameTooLarge = errors.New("tlsport: frame length exceeds maximum TLS record payload")

	// ErrGatewayClosed names a gateway that has been torn down (port
	// unregistered). Enqueue does not return it: Enqueue has no return
	// value, and a closed gateway drops (and releases) the enqueued item.
	ErrGatewayClosed = errors.New("tlsport: gateway closed")

	// ErrPortUnregistered names a port that was unregistered while pool
	// tasks were still in flight. No function in this package returns it.
	ErrPortUnregistered = errors.New("tlsport: port unregistered")

	// ErrHandlerFailed wraps a panic-free error returned by the
	// application message handler; connection-fatal. ReadGateway reports
	// handler errors wrapped in it, so errors.Is matches both.
	ErrHandlerFailed = errors.New("tlsport: handler failed")
)

// maxTLSRecordPayload is the largest plaintext payload a single TLS record
// may carry (2^14 bytes), per the TLS wire format.
const maxTLSRecordPayload = 1 << 14

// recordOverheadSlack bounds how much larger than maxTLSRecordPayload a
// declared record length may be before the Framer rejects it outright,
// rather than letting an unbounded length drive a very large pooled
// allocation.
const recordOverheadSlack = 256

// maxFramePayload is the largest payload length the Framer will accept in
// a record header.
const maxFramePayload = maxTLSRecordPayload + recordOverheadSlack

// maxAppFragment is the largest plaintext fragment the Serializer will ever
// hand to EncryptionGateway.Wrap in one call (spec section 4.4): TLS
// records encrypt at most 2^14 plaintext bytes per call, so anything larger
// forces internal fragmentation and complicates accounting.
const maxAppFragment = 16 * 1024
