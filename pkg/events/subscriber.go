package events

// Subscriber is an interface for event consumers.
// Implementations adapt the event stream to specific transport
// mechanisms (WebSocket, SSE) or in-process listeners.
type Subscriber interface {
	// Send delivers an event to the subscriber.
	// Implementations should be non-blocking and handle errors gracefully.
	Send(Event) error

	// Close cleanly shuts down the subscriber.
	Close() error
}

// SubscriberFunc adapts a function to the Subscriber interface.
type SubscriberFunc func(Event) error

// Send calls f(event).
func (f SubscriberFunc) Send(event Event) error {
	return f(event)
}

// Close is a no-op.
func (f SubscriberFunc) Close() error {
	return nil
}

// Filtered returns a subscriber that only receives the given event types.
func Filtered(sub Subscriber, types ...EventType) Subscriber {
	allowed := make(map[EventType]bool, len(types))
	for _, t := range types {
		allowed[t] = true
	}
	return &filtered{Subscriber: sub, allowed: allowed}
}

type filtered struct {
	Subscriber
	allowed map[EventType]bool
}

func (f *filtered) Send(event Event) error {
	if !f.allowed[event.Type] {
		return nil
	}
	return f.Subscriber.Send(event)
}
