package resource

import (
	"context"
	"errors"
)

// ErrClosed is returned by Insert once the table has been closed.
var ErrClosed = errors.New("resource table closed")

// Handle identifies a tracked value. Zero is never a valid handle.
type Handle uint32

// Closer is anything owning a foreign handle that must be released.
type Closer interface {
	Close(ctx context.Context) error
}

// EventType identifies lifecycle events.
type EventType uint8

const (
	EventOpened EventType = iota
	EventReleased
)

func (e EventType) String() string {
	switch e {
	case EventOpened:
		return "opened"
	case EventReleased:
		return "released"
	default:
		return "unknown"
	}
}

// Event describes a lifecycle change.
type Event struct {
	Value  Closer
	Kind   string
	Handle Handle
	Type   EventType
}

// Observer receives lifecycle events. Called synchronously, outside the
// table lock.
type Observer interface {
	OnResourceEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnResourceEvent(e Event) { f(e) }
