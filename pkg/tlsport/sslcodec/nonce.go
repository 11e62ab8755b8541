package sslcodec

import (
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/crypto/chacha20poly1305"
)

const (
	counterSize = 6
	saltSize    = chacha20poly1305.NonceSize - counterSize
	maxCounter  = (uint64(1) << 48) - 1
)

var (
	// ErrCounterOverflow is returned when a direction's 48-bit nonce
	// counter wraps and the salt cannot be regenerated. When regeneration
	// succeeds the codec restarts the counter under the new salt and keeps
	// going rather than reusing a (key, nonce) pair.
	ErrCounterOverflow   = errors.New("sslcodec: nonce counter overflow")
	errRandomReadFailure = errors.New("sslcodec: failed to read random salt")
)

// sequencer produces unique 96-bit nonces for one direction of an AEAD
// session: a 48-bit monotonic counter concatenated with a 48-bit random
// salt, regenerated on counter overflow.
type sequencer struct {
	counter uint64
	mu      sync.Mutex
	salt    [saltSize]byte
}

func newSequencer() (*sequencer, error) {
	s := &sequencer{}
	if err := s.reseed(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *sequencer) next() ([chacha20poly1305.NonceSize]byte, error) {
	var nonce [chacha20poly1305.NonceSize]byte

	c := atomic.AddUint64(&s.counter, 1)
	if c > maxCounter {
		s.mu.Lock()
		if atomic.LoadUint64(&s.counter) > maxCounter {
			if err := s.reseed(); err != nil {
				s.mu.Unlock()
				return nonce, fmt.Errorf("%w: %v", ErrCounterOverflow, err)
			}
			atomic.StoreUint64(&s.counter, 1)
			c = 1
		} else {
			c = atomic.LoadUint64(&s.counter)
		}
		s.mu.Unlock()
	}

	var cb [8]byte
	for i := 0; i < 8; i++ {
		cb[7-i] = byte(c >> (8 * i))
	}
	copy(nonce[:counterSize], cb[2:8])

	s.mu.Lock()
	copy(nonce[counterSize:], s.salt[:])
	s.mu.Unlock()

	return nonce, nil
}

// reseed must be called with mu unlocked on first use only; subsequent
// calls happen with mu held by next().
func (s *sequencer) reseed() error {
	if _, err := rand.Read(s.salt[:]); err != nil {
		return fmt.Errorf("%w: %v", errRandomReadFailure, err)
	}
	return nil
}
