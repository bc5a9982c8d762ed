package outbox

import "context"

// Event is a domain event identified by name.
type Event interface {
	EventName() string
}

// Keyed events carry the aggregate id used to keep their order on partitioned transports.
type Keyed interface {
	EventKey() string
}

// Handler processes a published event.
type Handler func(ctx context.Context, e Event) error

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

type Subscriber interface {
	Subscribe(eventName string, h Handler)
}

// KeyOf returns the event's aggregate key, or its name when it has none.
func KeyOf(e Event) string {
	if k, ok := e.(Keyed); ok && k.EventKey() != "" {
		return k.EventKey()
	}
	return e.EventName()
}
