package main

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"

	"github.com/shadowmesh/shadowmesh/pkg/crypto/hybrid"
	"github.com/shadowmesh/shadowmesh/pkg/tlsport"
)

// serverHandshake negotiates a hybrid ML-KEM-1024/X25519 shared secret over a
// freshly accepted or dialed stream, server-initiated: the server sends
// its ephemeral public material first, the client encapsulates against it
// and replies with the ciphertext. Both sides then derive per-direction
// traffic keys from the agreed secret so the connection's two directions
// never share a nonce space.
//
// rw carries the length-prefixed frames (two from the server, one from the
// client); it works
// equally over a raw TCP net.Conn or a QUIC stream, since both the app's
// authenticated hybrid handshake and tlsport's own record framing sit above
// the transport and don't care which one carried the bytes.
func serverHandshake(rw io.ReadWriter) (txKey, rxKey [32]byte, err error) {
	kp, err := hybrid.GenerateHybridKeypair()
	if err != nil {
		return txKey, rxKey, fmt.Errorf("handshake: keypair generation: %w", err)
	}

	if err := writeFrame(rw, kp.MLKEMPublicKey); err != nil {
		return txKey, rxKey, fmt.Errorf("handshake: send ML-KEM public key: %w", err)
	}
	if err := writeFrame(rw, kp.X25519PublicKey); err != nil {
		return txKey, rxKey, fmt.Errorf("handshake: send X25519 public key: %w", err)
	}

	ciphertext, err := readFrame(rw)
	if err != nil {
		return txKey, rxKey, fmt.Errorf("handshake: read encapsulation: %w", err)
	}

	sharedSecret, err := hybrid.HybridDecapsulate(ciphertext, kp)
	if err != nil {
		return txKey, rxKey, fmt.Errorf("handshake: decapsulate: %w", err)
	}

	tx, rx, err := tlsport.DeriveTrafficKeys(sharedSecret, false)
	if err != nil {
		return txKey, rxKey, fmt.Errorf("handshake: derive traffic keys: %w", err)
	}

	return tx, rx, nil
}

// clientHandshake is the dialing side's half of serverHandshake.
func clientHandshake(rw io.ReadWriter) (txKey, rxKey [32]byte, err error) {
	mlkemPub, err := readFrame(rw)
	if err != nil {
		return txKey, rxKey, fmt.Errorf("handshake: read ML-KEM public key: %w", err)
	}
	x25519Pub, err := readFrame(rw)
	if err != nil {
		return txKey, rxKey, fmt.Errorf("handshake: read X25519 public key: %w", err)
	}

	serverPub := &hybrid.HybridKeypair{MLKEMPublicKey: mlkemPub, X25519PublicKey: x25519Pub}
	ciphertext, sharedSecret, err := hybrid.HybridEncapsulate(serverPub)
	if err != nil {
		return txKey, rxKey, fmt.Errorf("handshake: encapsulate: %w", err)
	}

	if err := writeFrame(rw, ciphertext); err != nil {
		return txKey, rxKey, fmt.Errorf("handshake: send encapsulation: %w", err)
	}

	tx, rx, err := tlsport.DeriveTrafficKeys(sharedSecret, true)
	if err != nil {
		return txKey, rxKey, fmt.Errorf("handshake: derive traffic keys: %w", err)
	}

	return tx, rx, nil
}

// connectionID names a TCP connection for logging, audit, and metrics.
func connectionID(conn net.Conn) string {
	return fmt.Sprintf("%s->%s", conn.RemoteAddr(), conn.LocalAddr())
}

const maxHandshakeFrame = 4096

func writeFrame(rw io.ReadWriter, payload []byte) error {
	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], uint32(len(payload)))
	if _, err := rw.Write(lenPrefix[:]); err != nil {
		return err
	}
	_, err := rw.Write(payload)
	return err
}

func readFrame(rw io.ReadWriter) ([]byte, error) {
	var lenPrefix [4]byte
	if _, err := io.ReadFull(rw, lenPrefix[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenPrefix[:])
	if n == 0 || n > maxHandshakeFrame {
		return nil, fmt.Errorf("handshake: frame length %d out of bounds", n)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(rw, payload); err != nil {
		return nil, err
	}
	return payload, nil
}
