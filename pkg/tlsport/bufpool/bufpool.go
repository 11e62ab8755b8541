// Package bufpool provides reference-counted direct-buffer containers backed
// by size-bucketed sync.Pool instances, generalizing a fixed-size packet
// buffer pool pattern to the TLS port pipeline's
// acquire/allocate/wrap/release contract.
package bufpool

import (
	"sync"
	"sync/atomic"
)

// Container is a reference-counted holder around a byte buffer with a
// position/limit cursor, NIO-ByteBuffer style. Readers/writers address the
// buffer through Bytes(), which always returns buf[pos:limit].
type Container struct {
	buf    []byte
	pos    int
	limit  int
	refs   int32
	pool   *Pool
	bucket int
}

// Bytes returns the buffer's current readable/writable window.
func (c *Container) Bytes() []byte {
	return c.buf[c.pos:c.limit]
}

// Remaining is the number of bytes left between position and limit.
func (c *Container) Remaining() int {
	return c.limit - c.pos
}

// Position returns the current cursor offset.
func (c *Container) Position() int {
	return c.pos
}

// Capacity returns the container's total backing capacity.
func (c *Container) Capacity() int {
	return cap(c.buf)
}

// Advance moves the position forward by n bytes (n <= Remaining()).
func (c *Container) Advance(n int) {
	c.pos += n
}

// Flip switches the container from write mode to read mode: limit becomes
// the current position, and position resets to zero.
func (c *Container) Flip() {
	c.limit = c.pos
	c.pos = 0
}

// Reset restores the container to full write capacity: position zero,
// limit at len(buf). Used before each unwrap per the port's decrypt
// destination buffer contract.
func (c *Container) Reset() {
	c.pos = 0
	c.limit = len(c.buf)
}

// WriteBuf returns a zero-length slice over the full backing array, for
// codecs that append into the container (e.g. aead.Open/Seal destinations).
// Call CommitWrite after populating it.
func (c *Container) WriteBuf() []byte {
	return c.buf[:0]
}

// CommitWrite marks n bytes as written starting at offset zero, leaving the
// container in read mode (position 0, limit n).
func (c *Container) CommitWrite(n int) {
	c.pos = 0
	c.limit = n
}

// Retain increments the reference count. Pair with Release.
func (c *Container) Retain() {
	atomic.AddInt32(&c.refs, 1)
}

// Release decrements the reference count and, on reaching zero, returns the
// backing buffer to its pool (or drops it, for standalone containers).
// Every container obtained from a Pool must be released exactly once per
// acquisition, on every code path including error paths.
func (c *Container) Release() {
	if atomic.AddInt32(&c.refs, -1) != 0 {
		return
	}
	if c.pool != nil {
		c.pool.put(c)
	}
}

// Pool hands out Containers, bucketing standalone-sized allocations by exact
// capacity so repeated same-size acquisitions reuse backing arrays.
type Pool struct {
	mu      sync.Mutex
	buckets map[int]*sync.Pool
	defSize int
}

// New creates a Pool whose Acquire() containers default to defaultSize
// bytes (the port's application buffer size, per spec: min(TLS app buffer
// size, 16 KiB)).
func New(defaultSize int) *Pool {
	return &Pool{
		buckets: make(map[int]*sync.Pool),
		defSize: defaultSize,
	}
}

// Acquire returns a cleared container of the pool's default size.
func (p *Pool) Acquire() *Container {
	return p.AllocateDirectAndPool(p.defSize)
}

// AllocateDirectAndPool returns a container of exact capacity n, reusing a
// previously released buffer of the same size when one is available.
func (p *Pool) AllocateDirectAndPool(n int) *Container {
	sp := p.bucketFor(n)
	var buf []byte
	if v := sp.Get(); v != nil {
		buf = v.([]byte)
	} else {
		buf = make([]byte, n)
	}
	return &Container{buf: buf, pos: 0, limit: n, refs: 1, pool: p, bucket: n}
}

// WrapBB wraps an existing byte slice as a standalone container. Release on
// a wrapped container drops the slice rather than pooling it: the slice was
// never allocated by this pool (e.g. a heap buffer for an oversized
// outbound message).
func (p *Pool) WrapBB(bb []byte) *Container {
	return &Container{buf: bb, pos: 0, limit: len(bb), refs: 1, pool: nil}
}

func (p *Pool) put(c *Container) {
	sp := p.bucketFor(c.bucket)
	sp.Put(c.buf[:c.bucket])
}

func (p *Pool) bucketFor(n int) *sync.Pool {
	p.mu.Lock()
	defer p.mu.Unlock()
	sp, ok := p.buckets[n]
	if !ok {
		size := n
		sp = &sync.Pool{New: func() interface{} {
			return make([]byte, size)
		}}
		p.buckets[n] = sp
	}
	return sp
}
