// Package sslcodec implements the TLS codec contract (spec section 6):
// wrap(fragment) -> pooled ciphertext container, unwrap(src, dst) -> cleartext
// written into a pooled destination. The engine itself is not thread-safe;
// callers rely on each gateway's single-flight invariant to guarantee only
// one worker ever calls Wrap, and only one ever calls Unwrap, at a time.
package sslcodec

import (
	"crypto/cipher"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/shadowmesh/shadowmesh/pkg/tlsport/bufpool"
)

// RecordHeaderSize is the width of the TLS record header the Framer parses
// for the payload length; the Framer does not strip it, so Unwrap receives
// it as a prefix of record because the wire frame is header+payload together.
const RecordHeaderSize = 5

var (
	// ErrMalformedRecord is a framing error: the record is shorter than a
	// header plus the codec's minimum payload (nonce + AEAD overhead).
	ErrMalformedRecord = errors.New("sslcodec: record too short to contain a nonce and auth tag")
	// ErrDecryptFailed covers any AEAD authentication failure: MAC
	// mismatch, tampering, or wrong key.
	ErrDecryptFailed = errors.New("sslcodec: decryption failed")
)

// Encrypter is the TLS library's wrap() primitive: seal one plaintext
// fragment of at most the port's application buffer size into ciphertext.
type Encrypter interface {
	Wrap(fragment []byte) (*bufpool.Container, error)
}

// Decrypter is the TLS library's unwrap() primitive: open one TLS record's
// payload into the port's persistent destination buffer, returning the
// plaintext length written.
type Decrypter interface {
	Unwrap(record []byte, dst *bufpool.Container) (int, error)
}

// Codec is a ChaCha20-Poly1305 AEAD engine standing in for the production
// TLS library's record-level encrypt/decrypt. Each direction gets its own
// nonce sequencer so a hybrid-handshake-derived transport secret (see
// pkg/crypto/hybrid) can drive both TX and RX halves of a connection.
type Codec struct {
	aead cipher.AEAD
	seq  *sequencer
	pool *bufpool.Pool
}

// NewCodec builds a Codec from a 32-byte traffic key. pool supplies the
// ciphertext containers Wrap returns.
func NewCodec(key [chacha20poly1305.KeySize]byte, pool *bufpool.Pool) (*Codec, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, fmt.Errorf("sslcodec: failed to construct AEAD: %w", err)
	}
	seq, err := newSequencer()
	if err != nil {
		return nil, err
	}
	return &Codec{aead: aead, seq: seq, pool: pool}, nil
}

// Wrap seals fragment and prefixes the result with a 5-byte TLS record
// header (so the output is a complete wire frame, ready for WriteGateway to
// hand straight to the socket) and the nonce used, so the peer's Unwrap can
// recover it without an out-of-band sequence number.
func (c *Codec) Wrap(fragment []byte) (*bufpool.Container, error) {
	nonce, err := c.seq.next()
	if err != nil {
		return nil, err
	}

	payloadLen := len(nonce) + len(fragment) + c.aead.Overhead()
	out := c.pool.AllocateDirectAndPool(RecordHeaderSize + payloadLen)
	out.Reset()
	buf := out.WriteBuf()
	buf = append(buf, 0x17, 0x03, 0x03, byte(payloadLen>>8), byte(payloadLen))
	buf = append(buf, nonce[:]...)
	sealed := c.aead.Seal(buf, nonce[:], fragment, nil)
	out.CommitWrite(len(sealed))
	return out, nil
}

// Unwrap authenticates and decrypts one TLS record's payload into dst,
// which must have been Reset (or freshly acquired) so WriteBuf has room for
// the full plaintext. record is the complete frame: 5-byte header followed
// by [nonce || ciphertext || tag].
func (c *Codec) Unwrap(record []byte, dst *bufpool.Container) (int, error) {
	if len(record) < RecordHeaderSize {
		return 0, ErrMalformedRecord
	}
	payload := record[RecordHeaderSize:]
	if len(payload) < chacha20poly1305.NonceSize+c.aead.Overhead() {
		return 0, ErrMalformedRecord
	}
	nonce := payload[:chacha20poly1305.NonceSize]
	ciphertext := payload[chacha20poly1305.NonceSize:]

	plaintext, err := c.aead.Open(dst.WriteBuf(), nonce, ciphertext, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDecryptFailed, err)
	}
	dst.CommitWrite(len(plaintext))
	return len(plaintext), nil
}
