package fleetview

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/fleetmap/pkg/errors"
)

// ChangeType identifies a fleet view notification.
type ChangeType string

// Notification types.
const (
	// DataChanged fires after the view was replaced.
	DataChanged ChangeType = "data_changed"
	// LoadingChanged fires when a load starts or finishes.
	LoadingChanged ChangeType = "loading_changed"
	// ErrorOccurred fires when an operation failed.
	ErrorOccurred ChangeType = "error"
)

// Change is delivered to listeners.
type Change struct {
	Type     ChangeType `json:"type"`
	Loading  bool       `json:"loading,omitempty"`
	Vehicles int        `json:"vehicles,omitempty"`
	Err      error      `json:"-"`
	At       time.Time  `json:"at"`
}

// Listener is called synchronously for every change.
type Listener func(Change)

// listeners manages change callbacks. A panicking listener is logged and
// skipped; the others still run.
type listeners struct {
	mu     sync.RWMutex
	next   int
	byID   map[int]Listener
	order  []int
	logger *zerolog.Logger
}

func newListeners(logger *zerolog.Logger) *listeners {
	return &listeners{
		byID:   make(map[int]Listener),
		logger: logger,
	}
}

// add registers fn and returns a function that removes it.
func (l *listeners) add(fn Listener) func() {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.next
	l.next++
	l.byID[id] = fn
	l.order = append(l.order, id)

	var once sync.Once
	return func() {
		once.Do(func() { l.remove(id) })
	}
}

func (l *listeners) remove(id int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.byID, id)
	for i, v := range l.order {
		if v == id {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
}

// notify calls every listener in registration order.
func (l *listeners) notify(c Change) {
	l.mu.RLock()
	fns := make([]Listener, 0, len(l.order))
	for _, id := range l.order {
		fns = append(fns, l.byID[id])
	}
	l.mu.RUnlock()

	for _, fn := range fns {
		l.call(fn, c)
	}
}

func (l *listeners) call(fn Listener, c Change) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error().
				Err(&errors.PanicError{Value: r}).
				Str("change", string(c.Type)).
				Msg("Fleet view listener panicked")
		}
	}()
	fn(c)
}

// ClearOnChange returns a listener that invalidates c whenever the view
// changes.
func ClearOnChange(c Invalidator) Listener {
	return func(change Change) {
		if change.Type == DataChanged {
			c.Invalidate()
		}
	}
}
