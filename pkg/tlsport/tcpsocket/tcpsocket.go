// Package tcpsocket adapts a plain net.Conn (TCP, or anything satisfying the
// interface) to the tlsport.Socket contract, using the same short-deadline
// trick as pkg/tlsport/quicsocket since net.Conn has no native non-blocking
// read either.
package tcpsocket

import (
	"errors"
	"io"
	"net"
	"os"
	"time"

	"github.com/shadowmesh/shadowmesh/pkg/tlsport"
)

const pollDeadline = time.Millisecond

// Socket wraps a net.Conn as a tlsport.Socket.
type Socket struct {
	conn net.Conn
}

// New wraps conn.
func New(conn net.Conn) *Socket {
	return &Socket{conn: conn}
}

// Read attempts a bounded-wait read off the connection. A deadline timeout
// is reported as tlsport.ErrWouldBlock rather than a real error.
func (s *Socket) Read(p []byte) (int, error) {
	if err := s.conn.SetReadDeadline(time.Now().Add(pollDeadline)); err != nil {
		return 0, err
	}
	n, err := s.conn.Read(p)
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

// Write sends p over the connection. It sets no write deadline, so it
// blocks until net.Conn.Write has taken all of p (or fails) and never
// reports a short write.
func (s *Socket) Write(p []byte) (int, error) {
	return s.conn.Write(p)
}

// Close closes the underlying connection.
func (s *Socket) Close() error {
	return s.conn.Close()
}
