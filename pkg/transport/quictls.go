package transport

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"time"
)

// quicALPN is the single protocol tlsport-gateway offers over QUIC. It
// exists only so both peers' quic-go stacks agree on an ALPN value;
// nothing in the record-layer pipeline inspects it.
const quicALPN = "tlsport-gateway"

// GenerateEphemeralServerTLSConfig builds a self-signed, 24-hour ECDSA
// certificate for a QUIC listener. QUIC requires a TLS config even though
// the gateway's own hybrid ML-KEM/X25519 handshake (cmd/tlsport-gateway's
// serverHandshake/clientHandshake) is the connection's real authentication
// layer; this certificate only satisfies quic-go's handshake requirement
// and carries no identity a peer is expected to verify.
func GenerateEphemeralServerTLSConfig() (*tls.Config, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate ephemeral quic key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("generate ephemeral quic cert serial: %w", err)
	}

	template := x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{Organization: []string{"tlsport-gateway"}, CommonName: "tlsport-gateway"},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &priv.PublicKey, priv)
	if err != nil {
		return nil, fmt.Errorf("create ephemeral quic cert: %w", err)
	}

	cert := tls.Certificate{Certificate: [][]byte{der}, PrivateKey: priv}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{quicALPN},
	}, nil
}

// ClientTLSConfig returns the dialing side's TLS config. It skips
// certificate verification: the ephemeral server cert carries no identity
// worth checking, and the gateway's app-layer handshake is what actually
// authenticates the peer once the QUIC stream is up.
func ClientTLSConfig() *tls.Config {
	return &tls.Config{
		InsecureSkipVerify: true,
		NextProtos:         []string{quicALPN},
	}
}
