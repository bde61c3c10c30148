package chat

import (
	"sync"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// Message is one line of the conversation as the user sees it.
type Message struct {
	ID      string
	Role    Role
	Content string
}

// Transcript: потокобезопасный буфер фиксированной ёмкости для сообщений диалога.
type Transcript struct {
	cap      int
	messages []Message
	mu       sync.Mutex
}

func New(capacity int) *Transcript {
	if capacity <= 0 {
		capacity = 100
	}
	return &Transcript{cap: capacity, messages: make([]Message, 0, capacity)}
}

// Add appends a message with a fresh id; at capacity the oldest message is dropped.
func (t *Transcript) Add(role Role, content string) Message {
	m := Message{ID: uuid.NewString(), Role: role, Content: content}
	t.mu.Lock()
	if len(t.messages) == t.cap {
		copy(t.messages, t.messages[1:])
		t.messages = t.messages[:t.cap-1]
	}
	t.messages = append(t.messages, m)
	t.mu.Unlock()
	return m
}

// Messages returns a copy in insertion order.
func (t *Transcript) Messages() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Reset clears the buffer.
func (t *Transcript) Reset() {
	t.mu.Lock()
	t.messages = t.messages[:0]
	t.mu.Unlock()
}

func (t *Transcript) Len() int {
	t.mu.Lock()
	l := len(t.messages)
	t.mu.Unlock()
	return l
}
