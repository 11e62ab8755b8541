package main

import (
	"sync"

	"github.com/shadowmesh/shadowmesh/pkg/tlsport"
	"github.com/shadowmesh/shadowmesh/pkg/tlsport/parser"
)

// appMessage adapts a plain byte slice to tlsport.OutboundMessage, writing
// it with the length prefix the inbound Parser expects.
type appMessage struct {
	payload []byte
}

func (m appMessage) SerializedSize() int {
	if len(m.payload) == 0 {
		return tlsport.EmptyMessageLength
	}
	return parser.HeaderSize + len(m.payload)
}

func (m appMessage) Serialize(dst []byte) int {
	encoded := parser.Encode(m.payload)
	return copy(dst, encoded)
}

// mailbox is a mutex-guarded OutboundQueue: producers call Push, the
// Serializer calls Swap once per service pass.
type mailbox struct {
	mu       sync.Mutex
	messages []tlsport.OutboundMessage
}

func newMailbox() *mailbox {
	return &mailbox{}
}

// Push enqueues a message; the Serializer picks it up on the port's next
// service pass.
func (m *mailbox) Push(payload []byte) {
	m.mu.Lock()
	m.messages = append(m.messages, appMessage{payload: payload})
	m.mu.Unlock()
}

// Swap implements tlsport.OutboundQueue.
func (m *mailbox) Swap() []tlsport.OutboundMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.messages) == 0 {
		return nil
	}
	out := m.messages
	m.messages = nil
	return out
}
