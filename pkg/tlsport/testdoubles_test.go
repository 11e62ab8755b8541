package tlsport

import (
	"sync"

	"github.com/shadowmesh/shadowmesh/pkg/tlsport/parser"
)

// fakeSocket is an in-memory Socket: Read drains an inbound byte queue (for
// feeding the Framer), Write appends to an outbound byte log (for asserting
// what the WriteGateway actually put on the wire).
type fakeSocket struct {
	mu sync.Mutex

	inbound []byte
	// writeAccept, when non-negative, caps how many bytes a single Write call
	// accepts; -1 means accept everything. Used to simulate a short write.
	writeAccept int
	writeErr    error
	written     []byte
	writeCalls  int
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{writeAccept: -1}
}

func (s *fakeSocket) feed(b []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inbound = append(s.inbound, b...)
}

func (s *fakeSocket) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.inbound) == 0 {
		return 0, ErrWouldBlock
	}
	n := copy(p, s.inbound)
	s.inbound = s.inbound[n:]
	return n, nil
}

func (s *fakeSocket) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeCalls++
	if s.writeErr != nil {
		return 0, s.writeErr
	}
	n := len(p)
	if s.writeAccept >= 0 && n > s.writeAccept {
		n = s.writeAccept
	}
	s.written = append(s.written, p[:n]...)
	return n, nil
}

func (s *fakeSocket) writtenBytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]byte, len(s.written))
	copy(out, s.written)
	return out
}

// fakeReactor records nudges instead of rescheduling anything; tests drive
// Port.Run directly in a loop.
type fakeReactor struct {
	mu            sync.Mutex
	nudges        int
	writeDisables int
}

func (r *fakeReactor) NudgeChannel(p *Port) {
	r.mu.Lock()
	r.nudges++
	r.mu.Unlock()
}

func (r *fakeReactor) DisableWriteInterest(p *Port) {
	r.mu.Lock()
	r.writeDisables++
	r.mu.Unlock()
}

func (r *fakeReactor) nudgeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.nudges
}

// recordingHandler appends every delivered message, in arrival order.
type recordingHandler struct {
	mu       sync.Mutex
	messages [][]byte
	failOn   int // 1-indexed message count to fail on; 0 means never fail
	failErr  error
}

func (h *recordingHandler) HandleMessage(message []byte, conn *Port) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, append([]byte(nil), message...))
	if h.failOn != 0 && len(h.messages) == h.failOn {
		return h.failErr
	}
	return nil
}

func (h *recordingHandler) received() [][]byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([][]byte, len(h.messages))
	copy(out, h.messages)
	return out
}

// staticMessage is a fixed-content OutboundMessage for Serializer tests.
type staticMessage []byte

func (m staticMessage) SerializedSize() int { return len(m) }
func (m staticMessage) Serialize(dst []byte) int {
	return copy(dst, m)
}

// fakeQueue hands a fixed batch of messages to Swap exactly once; subsequent
// calls return nil, mimicking a drained outbound queue.
type fakeQueue struct {
	mu       sync.Mutex
	messages []OutboundMessage
	swapped  bool
}

func newFakeQueue(messages ...[]byte) *fakeQueue {
	q := &fakeQueue{}
	for _, m := range messages {
		q.messages = append(q.messages, staticMessage(m))
	}
	return q
}

func (q *fakeQueue) Swap() []OutboundMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.swapped {
		return nil
	}
	q.swapped = true
	return q.messages
}

func (q *fakeQueue) reload(messages ...[]byte) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.messages = nil
	for _, m := range messages {
		q.messages = append(q.messages, staticMessage(m))
	}
	q.swapped = false
}

// encodeAppMessage applies the application-level length prefix the parser
// package expects, for tests constructing plaintext fragments by hand.
func encodeAppMessage(b []byte) []byte {
	return parser.Encode(b)
}
