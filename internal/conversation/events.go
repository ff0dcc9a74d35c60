package conversation

import "memchat/internal/observability"

// Controller event types.
const (
	EventSendStart      observability.EventType = "conversation.send.start"
	EventSendRejected   observability.EventType = "conversation.send.rejected"
	EventSendRetry      observability.EventType = "conversation.send.retry"
	EventSendDelivered  observability.EventType = "conversation.send.delivered"
	EventSendFailed     observability.EventType = "conversation.send.failed"
	EventSessionAdopted observability.EventType = "conversation.session.adopted"
	EventCleared        observability.EventType = "conversation.cleared"
)
