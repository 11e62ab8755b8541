package tlsport

import (
	"encoding/binary"

	"github.com/shadowmesh/shadowmesh/pkg/tlsport/bufpool"
)

// Framer reframes a stream of raw bytes read off the socket into complete
// TLS records, handing each one to the DecryptionGateway. It runs inline on
// the I/O goroutine (Port.Run); it never touches the crypto pool.
//
// Invariant: nextFrameLength == 0 iff the Framer holds no partial frame;
// when nonzero, frameCont has been allocated with capacity
// nextFrameLength+5 and its first 5 bytes already hold the header.
type Framer struct {
	pool            *bufpool.Pool
	headerBuf       [5]byte
	headerFilled    int
	nextFrameLength int
	frameCont       *bufpool.Container
}

// NewFramer creates a Framer that allocates frame containers from pool.
func NewFramer(pool *bufpool.Pool) *Framer {
	return &Framer{pool: pool}
}

// frameSink is the Framer's view of a DecryptionGateway: just enough to
// decouple the two for testing without a real crypto pool behind them.
type frameSink interface {
	Enqueue(frame *Frame)
}

// Feed consumes data (bytes the socket produced this service pass) and
// hands every complete frame found within it to dec.Enqueue, in order.
// Header byte 0 (content type) is not validated here; malformed lengths
// beyond the Framer's own bound check are detected only when the codec
// rejects the record.
func (f *Framer) Feed(data []byte, dec frameSink) error {
	for len(data) > 0 {
		if f.nextFrameLength == 0 {
			n := copy(f.headerBuf[f.headerFilled:5], data)
			f.headerFilled += n
			data = data[n:]
			if f.headerFilled < 5 {
				return nil
			}

			length := int(binary.BigEndian.Uint16(f.headerBuf[3:5]))
			if length > maxFramePayload {
				return ErrFrameTooLarge
			}

			container := f.pool.AllocateDirectAndPool(length + 5)
			copy(container.Bytes(), f.headerBuf[:5])
			container.Advance(5)

			f.frameCont = container
			f.nextFrameLength = length
			f.headerFilled = 0
		}

		remaining := f.frameCont.Remaining()
		n := remaining
		if n > len(data) {
			n = len(data)
		}
		copy(f.frameCont.Bytes()[:n], data[:n])
		f.frameCont.Advance(n)
		data = data[n:]

		if f.frameCont.Remaining() == 0 {
			f.frameCont.Flip()
			frame := &Frame{Container: f.frameCont, PayloadLen: f.nextFrameLength}
			f.frameCont = nil
			f.nextFrameLength = 0
			dec.Enqueue(frame)
		}
	}
	return nil
}

// HasPartialFrame reports whether the Framer is mid-frame: either holding a
// partial header or a partially filled frame body (used by tests and the
// port's empty-pipeline check).
func (f *Framer) HasPartialFrame() bool {
	return f.nextFrameLength != 0 || f.headerFilled != 0
}
