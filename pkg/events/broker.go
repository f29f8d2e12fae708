package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/fleetmap/pkg/errors"
)

const (
	publishBuffer = 256
	mailboxSize   = 64
)

// mailbox queues events for one subscriber and delivers them in order on
// its own goroutine, so a slow or panicking subscriber never stalls the
// others.
type mailbox struct {
	sub   Subscriber
	queue chan Event
}

// Broker fans published events out to subscribers.
type Broker struct {
	mu        sync.RWMutex
	mailboxes []*mailbox

	events     chan Event
	register   chan Subscriber
	unregister chan Subscriber
	wg         sync.WaitGroup

	logger *zerolog.Logger
	clock  func() time.Time
}

// NewBroker creates a broker. Subscribe may be called before Run.
func NewBroker(logger *zerolog.Logger) *Broker {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Broker{
		mailboxes:  make([]*mailbox, 0),
		events:     make(chan Event, publishBuffer),
		register:   make(chan Subscriber, 16),
		unregister: make(chan Subscriber, 16),
		logger:     logger,
		clock:      time.Now,
	}
}

// Run dispatches events until ctx is cancelled. On exit every mailbox is
// drained and each subscriber is closed.
func (b *Broker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			b.mu.Lock()
			for _, mb := range b.mailboxes {
				close(mb.queue)
			}
			b.mailboxes = nil
			b.mu.Unlock()
			b.wg.Wait()
			b.logger.Info().Msg("Event broker stopped")
			return

		case sub := <-b.register:
			b.mu.Lock()
			mb := &mailbox{sub: sub, queue: make(chan Event, mailboxSize)}
			b.mailboxes = append(b.mailboxes, mb)
			b.wg.Add(1)
			go b.drain(mb)
			n := len(b.mailboxes)
			b.mu.Unlock()
			b.logger.Debug().Int("subscribers", n).Msg("Subscriber registered")

		case sub := <-b.unregister:
			b.mu.Lock()
			for i, mb := range b.mailboxes {
				if mb.sub == sub {
					close(mb.queue)
					b.mailboxes = append(b.mailboxes[:i], b.mailboxes[i+1:]...)
					break
				}
			}
			n := len(b.mailboxes)
			b.mu.Unlock()
			b.logger.Debug().Int("subscribers", n).Msg("Subscriber unregistered")

		case e := <-b.events:
			b.dispatch(e)
		}
	}
}

func (b *Broker) dispatch(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, mb := range b.mailboxes {
		select {
		case mb.queue <- e:
		default:
			b.logger.Warn().
				Str("event_type", string(e.Type)).
				Str("subscriber", fmt.Sprintf("%T", mb.sub)).
				Msg("Subscriber queue full, event dropped")
		}
	}
	b.logger.Debug().
		Str("event_type", string(e.Type)).
		Int("subscribers", len(b.mailboxes)).
		Msg("Event dispatched")
}

// drain delivers queued events until the mailbox is closed, then closes
// the subscriber.
func (b *Broker) drain(mb *mailbox) {
	defer b.wg.Done()
	for e := range mb.queue {
		b.deliver(mb.sub, e)
	}
	if err := mb.sub.Close(); err != nil {
		b.logger.Warn().Err(err).Str("subscriber", fmt.Sprintf("%T", mb.sub)).Msg("Subscriber close failed")
	}
}

func (b *Broker) deliver(s Subscriber, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().
				Err(&errors.PanicError{Value: r}).
				Str("event_type", string(e.Type)).
				Str("subscriber", fmt.Sprintf("%T", s)).
				Msg("Subscriber panicked")
		}
	}()
	if err := s.Send(e); err != nil {
		b.logger.Warn().Err(err).Str("event_type", string(e.Type)).Msg("Subscriber rejected event")
	}
}

// Publish stamps and queues an event. It never blocks; when the queue is
// full the event is dropped and logged.
func (b *Broker) Publish(eventType EventType, data any) {
	e := Event{Type: eventType, Timestamp: b.clock().UTC(), Data: data}
	select {
	case b.events <- e:
	default:
		b.logger.Warn().Str("event_type", string(eventType)).Msg("Event queue full, event dropped")
	}
}

// Subscribe registers sub.
func (b *Broker) Subscribe(sub Subscriber) {
	b.register <- sub
}

// Unsubscribe removes sub and closes it once its queue is drained. sub
// must be of a comparable type such as a pointer.
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.unregister <- sub
}

// SubscriberCount returns the number of registered subscribers.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.mailboxes)
}
