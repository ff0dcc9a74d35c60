package observability

import "context"

// NoopObserver discards every event.
type NoopObserver struct{}

func (NoopObserver) OnEvent(context.Context, Event) {}

// Multi fans an event out to several observers in order.
type Multi []Observer

func (m Multi) OnEvent(ctx context.Context, event Event) {
	for _, o := range m {
		if o != nil {
			o.OnEvent(ctx, event)
		}
	}
}
