package conversation

import "sync"

// Timeline is an ordered, append-only log of messages. It is safe for
// concurrent use.
type Timeline struct {
	mu       sync.RWMutex
	messages []Message
}

func NewTimeline() *Timeline {
	return &Timeline{}
}

// Append adds msg to the end of the timeline.
func (t *Timeline) Append(msg Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = append(t.messages, msg)
}

// Clear empties the timeline.
func (t *Timeline) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = nil
}

// Snapshot returns a copy of the messages in insertion order.
func (t *Timeline) Snapshot() []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

func (t *Timeline) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}
