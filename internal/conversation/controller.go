package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"memchat/internal/observability"
)

var (
	// ErrBusy is returned by Clear while an exchange is in flight.
	ErrBusy = errors.New("conversation: request in flight")
	// ErrUnknownExchange is returned by Complete for an exchange that is not
	// the one currently in flight.
	ErrUnknownExchange = errors.New("conversation: exchange is not in flight")
	// ErrNilTransport is returned by New.
	ErrNilTransport = errors.New("conversation: nil transport")
)

// Exchange is a submitted user message awaiting its reply.
type Exchange struct {
	User         Message
	text         string
	sessionToken *string
}

// SessionToken is the token that will be echoed to the service, or nil.
func (e *Exchange) SessionToken() *string {
	return e.sessionToken
}

// State is what a renderer may observe: the timeline, the busy flag and the
// session. It is captured under one lock so a reset is never seen halfway.
type State struct {
	Messages []Message
	Busy     bool
	Session  SessionState
}

// Option configures a Controller.
type Option func(*Controller)

// WithObserver sets the event observer. The default discards events.
func WithObserver(o observability.Observer) Option {
	return func(c *Controller) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// WithRetry allows up to attempts additional transport calls, spaced by
// backoff, when a failure classifies as Unreachable or Timeout. The default
// is no retry.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(c *Controller) {
		c.retries = max(0, attempts)
		c.backoff = max(0, backoff)
	}
}

// Controller drives the Idle/Sending state machine for one conversation.
// At most one exchange is in flight; the transport call is made without
// holding the lock. Safe for concurrent use.
type Controller struct {
	transport Transport
	timeline  *Timeline
	session   *SessionTracker
	observer  observability.Observer
	now       func() time.Time
	retries   int
	backoff   time.Duration

	base   context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	busy   bool
	closed bool
	// pending is the submitted exchange not yet claimed by Complete;
	// inflight is the one whose round trip is running.
	pending  *Exchange
	inflight *Exchange
}

// New creates an idle controller with an empty timeline and no session.
func New(t Transport, opts ...Option) (*Controller, error) {
	if t == nil {
		return nil, ErrNilTransport
	}
	base, cancel := context.WithCancel(context.Background())
	c := &Controller{
		transport: t,
		timeline:  NewTimeline(),
		session:   NewSessionTracker(),
		observer:  observability.NoopObserver{},
		now:       time.Now,
		base:      base,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Submit starts an exchange. Blank input, a send while busy and a send after
// Close are silently ignored (ok=false) and change nothing. Otherwise the
// trimmed text is appended as a user message before Submit returns.
func (c *Controller) Submit(input string) (*Exchange, bool) {
	text := strings.TrimSpace(input)
	if text == "" {
		c.emit(EventSendRejected, observability.LevelVerbose, "conversation.Submit", map[string]any{"reason": "empty"})
		return nil, false
	}

	c.mu.Lock()
	if c.busy || c.closed {
		reason := "busy"
		if c.closed {
			reason = "closed"
		}
		c.mu.Unlock()
		c.emit(EventSendRejected, observability.LevelVerbose, "conversation.Submit", map[string]any{"reason": reason})
		return nil, false
	}
	user := newMessage(RoleUser, text, c.now())
	c.timeline.Append(user)
	c.busy = true
	ex := &Exchange{User: user, text: text}
	if token, ok, _ := c.session.Current(); ok {
		ex.sessionToken = &token
	}
	c.pending = ex
	c.mu.Unlock()

	c.emit(EventSendStart, observability.LevelInfo, "conversation.Submit", map[string]any{
		"message_id":     user.ID,
		"message_length": len(text),
		"has_session":    ex.sessionToken != nil,
	})
	return ex, true
}

// Complete performs the transport round trip for ex and appends exactly one
// assistant message: the reply, or an error notice when the call failed.
// Session state changes only on success. The returned error is non-nil only
// when ex is not the pending exchange, including when another Complete has
// already claimed it.
func (c *Controller) Complete(ctx context.Context, ex *Exchange) (Message, error) {
	c.mu.Lock()
	if ex == nil || ex != c.pending {
		c.mu.Unlock()
		return Message{}, ErrUnknownExchange
	}
	c.pending = nil
	c.inflight = ex
	c.mu.Unlock()

	ctx, stop := c.join(ctx)
	defer stop()

	started := c.now()
	reply, attempts, err := c.roundTrip(ctx, ex)

	c.mu.Lock()
	if c.inflight != ex {
		c.mu.Unlock()
		return Message{}, ErrUnknownExchange
	}
	var (
		msg     Message
		adopted bool
	)
	if err != nil {
		kind := Classify(err)
		msg = newMessage(RoleAssistant, kind.Text(), c.now())
		msg.IsError = true
		msg.Kind = kind
	} else {
		if reply.SessionToken != nil {
			adopted = c.session.Adopt(*reply.SessionToken)
		}
		if reply.ExchangeCount != nil {
			c.session.RecordCount(*reply.ExchangeCount)
		}
		msg = newMessage(RoleAssistant, reply.Text, c.now())
	}
	c.timeline.Append(msg)
	c.busy = false
	c.inflight = nil
	session := c.session.State()
	c.mu.Unlock()

	elapsed := c.now().Sub(started)
	if err != nil {
		c.emit(EventSendFailed, observability.LevelWarning, "conversation.Complete", map[string]any{
			"kind":       string(msg.Kind),
			"error":      err.Error(),
			"attempts":   attempts,
			"elapsed_ms": elapsed.Milliseconds(),
		})
		return msg, nil
	}
	if adopted {
		c.emit(EventSessionAdopted, observability.LevelInfo, "conversation.Complete", map[string]any{"session_id": session.Token})
	}
	c.emit(EventSendDelivered, observability.LevelInfo, "conversation.Complete", map[string]any{
		"message_id":      msg.ID,
		"response_length": len(msg.Content),
		"exchange_count":  session.ExchangeCount,
		"attempts":        attempts,
		"elapsed_ms":      elapsed.Milliseconds(),
	})
	return msg, nil
}

// Send is Submit followed by Complete. ok is false when the input was
// ignored.
func (c *Controller) Send(ctx context.Context, input string) (Message, bool) {
	ex, ok := c.Submit(input)
	if !ok {
		return Message{}, false
	}
	msg, err := c.Complete(ctx, ex)
	if err != nil {
		return Message{}, false
	}
	return msg, true
}

func (c *Controller) roundTrip(ctx context.Context, ex *Exchange) (Reply, int, error) {
	attempt := 1
	for {
		reply, err := c.transport.Send(ctx, ex.text, ex.sessionToken)
		if err == nil {
			return reply, attempt, nil
		}
		kind := Classify(err)
		if attempt > c.retries || !kind.Retryable() || ctx.Err() != nil {
			return Reply{}, attempt, err
		}
		c.emit(EventSendRetry, observability.LevelInfo, "conversation.Complete", map[string]any{
			"kind":    string(kind),
			"attempt": attempt,
		})
		if c.backoff > 0 {
			timer := time.NewTimer(c.backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return Reply{}, attempt, ctx.Err()
			case <-timer.C:
			}
		}
		attempt++
	}
}

// join derives a context that is also cancelled by Close.
func (c *Controller) join(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(c.base, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// Clear empties the timeline and resets the session in one step. It is
// rejected with ErrBusy while an exchange is in flight.
func (c *Controller) Clear() error {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return ErrBusy
	}
	dropped := c.timeline.Len()
	c.timeline.Clear()
	c.session.Reset()
	c.mu.Unlock()

	c.emit(EventCleared, observability.LevelInfo, "conversation.Clear", map[string]any{"messages": dropped})
	return nil
}

// Close cancels any in-flight exchange and rejects further sends. A
// cancelled exchange still completes with a timeout notice.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.cancel()
}

// State returns a consistent view for rendering.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Messages: c.timeline.Snapshot(),
		Busy:     c.busy,
		Session:  c.session.State(),
	}
}

func (c *Controller) Snapshot() []Message {
	return c.State().Messages
}

func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

func (c *Controller) Session() SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.State()
}

func (c *Controller) emit(typ observability.EventType, level observability.Level, source string, data map[string]any) {
	c.observer.OnEvent(context.Background(), observability.Event{
		Type:      typ,
		Level:     level,
		Timestamp: time.Now(),
		Source:    source,
		Data:      data,
	})
}
