package outbox

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	domoutbox "github.com/Zhima-Mochi/marketplace-checkout/internal/domain/outbox"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEvent string

func (e testEvent) EventName() string { return string(e) }

func TestBusDeliversToNamedAndWildcardSubscribers(t *testing.T) {
	bus := NewBus(nil)
	var named, all atomic.Int32
	bus.Subscribe("order.paid", func(context.Context, domoutbox.Event) error { named.Add(1); return nil })
	bus.Subscribe(AllEvents, func(context.Context, domoutbox.Event) error { all.Add(1); return nil })
	bus.Start(context.Background())

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, testEvent("order.paid")))
	require.NoError(t, bus.Publish(ctx, testEvent("order.created")))

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	bus.Stop(stopCtx)

	assert.Equal(t, int32(1), named.Load())
	assert.Equal(t, int32(2), all.Load())
}

func TestBusRejectsAfterStop(t *testing.T) {
	bus := NewBus(nil)
	bus.Start(context.Background())
	bus.Stop(context.Background())

	assert.ErrorIs(t, bus.Publish(context.Background(), testEvent("x")), ErrBusClosed)
	assert.NotPanics(t, func() { bus.Stop(context.Background()) })
}

func TestBusSurvivesFailingHandlers(t *testing.T) {
	bus := NewBus(nil, WithConcurrency(2), WithHandlerTimeout(time.Second))
	var mu sync.Mutex
	var got []string
	bus.Subscribe("e", func(context.Context, domoutbox.Event) error { panic("boom") })
	bus.Subscribe("e", func(context.Context, domoutbox.Event) error { return errors.New("nope") })
	bus.Subscribe("e", func(_ context.Context, e domoutbox.Event) error {
		mu.Lock()
		got = append(got, e.EventName())
		mu.Unlock()
		return nil
	})
	bus.Start(context.Background())

	require.NoError(t, bus.Publish(context.Background(), testEvent("e")))
	require.NoError(t, bus.Publish(context.Background(), testEvent("e")))
	bus.Stop(context.Background())

	assert.Equal(t, []string{"e", "e"}, got)
}

func TestBusPublishHonoursContextWhenFull(t *testing.T) {
	bus := NewBus(nil, WithQueueSize(1))
	require.NoError(t, bus.Publish(context.Background(), testEvent("a")))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, bus.Publish(ctx, testEvent("b")), context.DeadlineExceeded)
}
