package tlsport

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// trafficKeyInfo namespaces each direction's HKDF expansion so a dialer and
// listener sharing one hybrid handshake secret derive distinct TX/RX keys
// instead of encrypting both directions under the same key.
const (
	trafficKeyInfoClientWrite = "shadowmesh-tlsport-client-write"
	trafficKeyInfoServerWrite = "shadowmesh-tlsport-server-write"
)

// DeriveTrafficKeys expands one hybrid-handshake shared secret (see
// pkg/crypto/hybrid) into the pair of ChaCha20-Poly1305 keys a connection
// needs: one per direction, so a Port's EncryptionGateway and the peer's
// DecryptionGateway never share a nonce space with the reverse direction.
// isClient selects which derived key backs this side's outbound codec.
func DeriveTrafficKeys(sharedSecret []byte, isClient bool) (txKey, rxKey [chacha20poly1305.KeySize]byte, err error) {
	clientKey, err := expandKey(sharedSecret, trafficKeyInfoClientWrite)
	if err != nil {
		return txKey, rxKey, err
	}
	serverKey, err := expandKey(sharedSecret, trafficKeyInfoServerWrite)
	if err != nil {
		return txKey, rxKey, err
	}

	if isClient {
		return clientKey, serverKey, nil
	}
	return serverKey, clientKey, nil
}

func expandKey(secret []byte, info string) ([chacha20poly1305.KeySize]byte, error) {
	var key [chacha20poly1305.KeySize]byte
	kdf := hkdf.New(sha256.New, secret, nil, []byte(info))
	if _, err := io.ReadFull(kdf, key[:]); err != nil {
		return key, fmt.Errorf("tlsport: traffic key derivation failed: %w", err)
	}
	return key, nil
}
