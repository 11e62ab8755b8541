// Package tlsport implements a per-connection TLS record pipeline sitting
// between a non-blocking socket and an application message handler.
//
// Inbound, a Port reframes the TLS record stream (Framer), decrypts
// records off the socket thread (DecryptionGateway), reassembles
// application messages, and delivers them to the handler (ReadGateway).
// Outbound, it serializes queued application messages into pooled buffers
// (Serializer), encrypts them off the socket thread (EncryptionGateway),
// and writes ciphertext back to the socket (WriteGateway).
//
// The Framer and Serializer run inline on the caller's I/O goroutine
// (Port.Run). DecryptionGateway, ReadGateway, EncryptionGateway, and
// WriteGateway are single-flight FIFO gateways drained by a shared crypto
// worker pool (pkg/tlsport/pool): at most one worker advances a given
// gateway at a time, which preserves strict per-connection ordering without
// per-record locking and without serializing unrelated connections against
// each other.
package tlsport
