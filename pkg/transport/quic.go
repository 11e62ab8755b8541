// Package transport provides a QUIC-backed alternative to a raw TCP
// listener for cmd/tlsport-gateway: one bidirectional stream per QUIC
// connection, handed off to pkg/tlsport/quicsocket so the record-layer
// pipeline never needs to know which transport carried it.
package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/quic-go/quic-go"
)

// QUICTransport manages a QUIC listener and the bidirectional streams
// accepted or dialed over it. The gateway wants exactly one stream per
// connection: MaxIncomingStreams is fixed at 1 so a confused or hostile
// peer can't fan out extra streams tlsport never asked for.
type QUICTransport struct {
	listener    *quic.Listener
	connections map[string]*QUICConnection
	connMux     sync.RWMutex
	tlsConfig   *tls.Config
	quicConfig  *quic.Config
}

// QUICConnection is one peer connection over QUIC: the quic.Conn plus its
// single bidirectional stream. tlsport's own Framer and EncryptionGateway
// own record framing and encryption; QUICConnection only carries bytes.
type QUICConnection struct {
	conn      *quic.Conn
	stream    *quic.Stream
	peerID    string
	closeChan chan struct{}
	closed    bool
	closeMux  sync.Mutex
}

// NewQUICTransport creates a QUIC listener on addr.
func NewQUICTransport(addr string, tlsConfig *tls.Config) (*QUICTransport, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve udp address: %w", err)
	}

	udpConn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("create udp listener: %w", err)
	}

	quicConfig := &quic.Config{
		MaxIncomingStreams:    1,
		MaxIncomingUniStreams: 0,
		KeepAlivePeriod:       10 * time.Second,
		MaxIdleTimeout:        30 * time.Second,
	}

	listener, err := quic.Listen(udpConn, tlsConfig, quicConfig)
	if err != nil {
		udpConn.Close()
		return nil, fmt.Errorf("create quic listener: %w", err)
	}

	log.Printf("tlsport-gateway: quic transport listening on %s", addr)

	return &QUICTransport{
		listener:    listener,
		connections: make(map[string]*QUICConnection),
		tlsConfig:   tlsConfig,
		quicConfig:  quicConfig,
	}, nil
}

// AcceptConnection waits for an incoming QUIC connection and its one
// bidirectional stream.
func (t *QUICTransport) AcceptConnection(ctx context.Context) (*QUICConnection, error) {
	conn, err := t.listener.Accept(ctx)
	if err != nil {
		return nil, fmt.Errorf("accept quic connection: %w", err)
	}

	stream, err := conn.AcceptStream(ctx)
	if err != nil {
		conn.CloseWithError(1, "failed to accept stream")
		return nil, fmt.Errorf("accept quic stream: %w", err)
	}

	qConn := &QUICConnection{
		conn:      conn,
		stream:    stream,
		closeChan: make(chan struct{}),
	}

	log.Printf("tlsport-gateway: quic transport accepted connection from %s", conn.RemoteAddr())
	return qConn, nil
}

// DialConnection opens an outbound QUIC connection and its one
// bidirectional stream.
func (t *QUICTransport) DialConnection(ctx context.Context, addr string, peerID string) (*QUICConnection, error) {
	conn, err := quic.DialAddr(ctx, addr, t.tlsConfig, t.quicConfig)
	if err != nil {
		return nil, fmt.Errorf("dial quic connection: %w", err)
	}

	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		conn.CloseWithError(1, "failed to open stream")
		return nil, fmt.Errorf("open quic stream: %w", err)
	}

	qConn := &QUICConnection{
		conn:      conn,
		stream:    stream,
		peerID:    peerID,
		closeChan: make(chan struct{}),
	}

	t.connMux.Lock()
	t.connections[peerID] = qConn
	t.connMux.Unlock()

	log.Printf("tlsport-gateway: quic transport connected to %s at %s", peerID, addr)
	return qConn, nil
}

// Stream returns the connection's bidirectional stream, for wrapping with
// quicsocket.New.
func (c *QUICConnection) Stream() *quic.Stream {
	return c.stream
}

// Close gracefully closes the QUIC connection and its stream.
func (c *QUICConnection) Close() error {
	c.closeMux.Lock()
	defer c.closeMux.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.closeChan)

	if c.stream != nil {
		c.stream.Close()
	}
	if c.conn != nil {
		c.conn.CloseWithError(0, "connection closed")
	}

	log.Printf("tlsport-gateway: quic transport closed connection to %s", c.peerID)
	return nil
}

// RemoveConnection removes a dialed connection from the transport's
// peer-ID-keyed connection map.
func (t *QUICTransport) RemoveConnection(peerID string) {
	t.connMux.Lock()
	delete(t.connections, peerID)
	t.connMux.Unlock()
}

// GetConnection retrieves a previously dialed connection by peer ID.
func (t *QUICTransport) GetConnection(peerID string) (*QUICConnection, bool) {
	t.connMux.RLock()
	defer t.connMux.RUnlock()
	conn, exists := t.connections[peerID]
	return conn, exists
}

// Close shuts down the QUIC transport and every tracked connection.
func (t *QUICTransport) Close() error {
	t.connMux.Lock()
	for peerID, conn := range t.connections {
		conn.Close()
		delete(t.connections, peerID)
	}
	t.connMux.Unlock()

	if t.listener != nil {
		return t.listener.Close()
	}
	return nil
}
