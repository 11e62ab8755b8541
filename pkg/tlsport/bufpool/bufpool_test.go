package bufpool

import "testing"

func TestAcquireReleaseRoundTrip(t *testing.T) {
	p := New(64)
	c := p.Acquire()
	if c.Capacity() != 64 {
		t.Fatalf("expected capacity 64, got %d", c.Capacity())
	}
	if c.Remaining() != 64 {
		t.Fatalf("expected remaining 64, got %d", c.Remaining())
	}
	c.Advance(10)
	if c.Remaining() != 54 {
		t.Fatalf("expected remaining 54, got %d", c.Remaining())
	}
	c.Release()
}

func TestReleaseKeepsBufferUntilLastRef(t *testing.T) {
	p := New(16)
	c := p.Acquire()
	c.Retain()
	c.Release()
	// still one outstanding ref; buffer must not be handed back yet
	c.buf[0] = 0xAB
	c.Release()
}

func TestAllocateDirectAndPoolExactCapacity(t *testing.T) {
	p := New(16)
	c := p.AllocateDirectAndPool(5 + 1400)
	if c.Capacity() != 1405 {
		t.Fatalf("expected capacity 1405, got %d", c.Capacity())
	}
	c.Release()

	c2 := p.AllocateDirectAndPool(5 + 1400)
	if c2.Capacity() != 1405 {
		t.Fatalf("expected reused capacity 1405, got %d", c2.Capacity())
	}
}

func TestWrapBBStandalone(t *testing.T) {
	p := New(16)
	data := []byte("hello world")
	c := p.WrapBB(data)
	if c.Remaining() != len(data) {
		t.Fatalf("expected remaining %d, got %d", len(data), c.Remaining())
	}
	if string(c.Bytes()) != "hello world" {
		t.Fatalf("unexpected bytes: %q", c.Bytes())
	}
	c.Release() // standalone: drops rather than recycling
}

func TestFlipAndReset(t *testing.T) {
	p := New(32)
	c := p.Acquire()
	copy(c.Bytes(), []byte("abc"))
	c.Advance(3)
	c.Flip()
	if c.Remaining() != 3 {
		t.Fatalf("expected remaining 3 after flip, got %d", c.Remaining())
	}
	if string(c.Bytes()) != "abc" {
		t.Fatalf("unexpected flipped bytes: %q", c.Bytes())
	}
	c.Reset()
	if c.Remaining() != 32 {
		t.Fatalf("expected remaining 32 after reset, got %d", c.Remaining())
	}
}

func TestWriteBufCommitWrite(t *testing.T) {
	p := New(32)
	c := p.Acquire()
	c.Reset()
	buf := c.WriteBuf()
	buf = append(buf, []byte("xyz")...)
	c.CommitWrite(len(buf))
	if string(c.Bytes()) != "xyz" {
		t.Fatalf("unexpected committed bytes: %q", c.Bytes())
	}
}
