package telegram

import (
	"context"
	"sync"
)

// Mock records outbound messages instead of delivering them. It stands in
// for the real client in tests and in token-less local runs.
type Mock struct {
	mu   sync.Mutex
	sent []Message

	// Err, when set, is returned by every SendMessage call.
	Err error
}

type Message struct {
	ChatID int64
	Text   string
}

func NewMock() *Mock {
	return &Mock{}
}

func (m *Mock) SendMessage(_ context.Context, chatID int64, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.sent = append(m.sent, Message{ChatID: chatID, Text: text})
	return nil
}

// Sent returns a copy of every recorded message in send order.
func (m *Mock) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.sent))
	copy(out, m.sent)
	return out
}
