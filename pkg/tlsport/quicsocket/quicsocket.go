// Package quicsocket adapts a QUIC stream (see pkg/transport's
// QUICTransport) to the tlsport.Socket contract: reads that never block,
// returning tlsport.ErrWouldBlock when nothing has arrived yet, and writes
// passed straight to the stream, which block until the stream has taken
// all of p.
package quicsocket

import (
	"errors"
	"io"
	"os"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/shadowmesh/shadowmesh/pkg/tlsport"
)

// pollDeadline is how far out Read pushes the stream's read deadline before
// attempting a read; quic-go has no native non-blocking read, so an
// immediately-expired deadline approximates one.
const pollDeadline = time.Millisecond

// Socket wraps a QUIC bidirectional stream as a tlsport.Socket.
type Socket struct {
	stream *quic.Stream
}

// New wraps stream. Callers get the stream from QUICTransport's
// AcceptConnection/DialConnection flow (pkg/transport).
func New(stream *quic.Stream) *Socket {
	return &Socket{stream: stream}
}

// Read attempts a bounded-wait read off the stream. A deadline timeout
// (nothing arrived within pollDeadline) is reported as tlsport.ErrWouldBlock
// rather than a real error, matching the Socket contract.
func (s *Socket) Read(p []byte) (int, error) {
	if err := s.stream.SetReadDeadline(time.Now().Add(pollDeadline)); err != nil {
		return 0, err
	}
	n, err := s.stream.Read(p)
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return n, tlsport.ErrWouldBlock
		}
		if errors.Is(err, io.EOF) && n > 0 {
			return n, nil
		}
		return n, err
	}
	return n, nil
}

// Write sends p over the stream. QUIC streams apply flow control
// internally; Write blocks until the stream has accepted all of p (or the
// stream fails), so a short write is never reported.
func (s *Socket) Write(p []byte) (int, error) {
	return s.stream.Write(p)
}

// Close closes the send direction of the underlying stream; the receive
// direction is not cancelled.
func (s *Socket) Close() error {
	return s.stream.Close()
}
