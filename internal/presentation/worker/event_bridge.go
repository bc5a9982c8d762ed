// Package workerpresentation hosts the background consumers of the in-process
// event bus.
package workerpresentation

import (
	"context"
	"fmt"

	"github.com/Zhima-Mochi/marketplace-checkout/internal/application"
	domoutbox "github.com/Zhima-Mochi/marketplace-checkout/internal/domain/outbox"
	"github.com/Zhima-Mochi/marketplace-checkout/internal/observability"
	"github.com/Zhima-Mochi/marketplace-checkout/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
)

const (
	componentBridge = "event_bridge"
	exportPeer      = "kafka"
)

// EventBridge forwards every bus event to an external publisher, such as the
// Kafka exporter. Failures are logged and dropped; order state is never
// derived from the exported stream.
type EventBridge struct {
	target domoutbox.Publisher
	tel    observability.Observability
	log    observability.Logger
}

func NewEventBridge(target domoutbox.Publisher, tel observability.Observability) *EventBridge {
	tel = observability.Or(tel)
	return &EventBridge{
		target: target,
		tel:    tel,
		log:    tel.Logger().With(observability.F("component", componentBridge)),
	}
}

// Start subscribes the bridge to every event name on sub.
func (b *EventBridge) Start(sub domoutbox.Subscriber, names ...string) {
	if b.target == nil || sub == nil {
		return
	}
	for _, name := range names {
		sub.Subscribe(name, b.forward)
	}
}

func (b *EventBridge) forward(ctx context.Context, e domoutbox.Event) error {
	name := e.EventName()
	ctx, span := b.tel.Tracer().Start(ctx, "Bridge."+name,
		attribute.String("event.name", name),
		attribute.String("event.key", domoutbox.KeyOf(e)),
	)
	defer span.End()

	ctx = WithEventContext(ctx, b.log, map[string]string{"event": name})
	err := application.External(b.tel.Metrics(), exportPeer, name, func() error {
		return b.target.Publish(ctx, e)
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("event bridge: %s: %w", name, err)
	}
	logctx.FromOr(ctx, b.log).Debug("event_exported")
	return nil
}
