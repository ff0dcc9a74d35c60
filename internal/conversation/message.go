// Package conversation implements the client-side session controller for a
// remote chat service that keeps memory per session token: an append-only
// message timeline, the service-issued session state, transport failure
// classification, and the single-flight send state machine that ties them
// together.
package conversation

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry in the timeline. IsError marks an assistant message
// synthesized locally from a transport failure; Kind is set only then.
type Message struct {
	ID        string
	Role      Role
	Content   string
	Timestamp time.Time
	IsError   bool
	Kind      ErrorKind
}

func newMessage(role Role, content string, at time.Time) Message {
	return Message{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Role:      role,
		Content:   content,
		Timestamp: at,
	}
}
