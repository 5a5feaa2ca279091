package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collector собирает события, доставленные подписчику
type collector struct {
	mu     sync.Mutex
	events []*Envelope
}

func (c *collector) handle(ctx context.Context, ev *Envelope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *collector) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func TestMemoryBusDeliversInOrder(t *testing.T) {
	bus := NewMemoryBus(16)
	var c collector
	_, err := bus.Subscribe(context.Background(), Filter{}, c.handle)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(context.Background(), &Envelope{ID: string(rune('a' + i)), EventType: EventTerrainGenerated}))
	}
	require.NoError(t, bus.Close())

	require.Equal(t, 5, c.len(), "Close должен дослать принятые события")
	for i, ev := range c.events {
		assert.Equal(t, string(rune('a'+i)), ev.ID)
	}

	stats := bus.Metrics()
	assert.Equal(t, uint64(5), stats.Published)
	assert.Equal(t, uint64(5), stats.Consumed)
	assert.Equal(t, 0, stats.InFlight)
}

func TestMemoryBusFilter(t *testing.T) {
	bus := NewMemoryBus(16)
	var byType, bySource collector
	_, err := bus.Subscribe(context.Background(), Filter{Types: []string{"A"}}, byType.handle)
	require.NoError(t, err)
	_, err = bus.Subscribe(context.Background(), Filter{Sources: []string{"cli"}}, bySource.handle)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, &Envelope{EventType: "A", Source: "server"}))
	require.NoError(t, bus.Publish(ctx, &Envelope{EventType: "B", Source: "cli"}))
	require.NoError(t, bus.Close())

	assert.Equal(t, 1, byType.len())
	assert.Equal(t, 1, bySource.len())
	assert.Equal(t, "B", bySource.events[0].EventType)
}

func TestMemoryBusUnsubscribe(t *testing.T) {
	bus := NewMemoryBus(16)
	var c collector
	sub, err := bus.Subscribe(context.Background(), Filter{}, c.handle)
	require.NoError(t, err)
	sub.Unsubscribe()

	require.NoError(t, bus.Publish(context.Background(), &Envelope{EventType: "A"}))
	require.NoError(t, bus.Close())
	assert.Equal(t, 0, c.len())
}

func TestMemoryBusClosed(t *testing.T) {
	bus := NewMemoryBus(1)
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close(), "Повторное закрытие безопасно")

	assert.ErrorIs(t, bus.Publish(context.Background(), &Envelope{}), ErrClosed)
	_, err := bus.Subscribe(context.Background(), Filter{}, func(context.Context, *Envelope) {})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestMemoryBusBackpressure(t *testing.T) {
	bus := NewMemoryBus(1)
	defer bus.Close()

	block := make(chan struct{})
	started := make(chan struct{}, 1)
	_, err := bus.Subscribe(context.Background(), Filter{}, func(ctx context.Context, ev *Envelope) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-block
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, &Envelope{ID: "1"}))
	<-started // первое событие в обработчике, буфер пуст
	require.NoError(t, bus.Publish(ctx, &Envelope{ID: "2"}))

	// Буфер заполнен: низкий приоритет отбрасывается
	require.NoError(t, bus.Publish(ctx, &Envelope{ID: "3", Priority: 1}))
	assert.Equal(t, uint64(1), bus.Metrics().Dropped)

	// Высокий приоритет ждёт места до отмены контекста
	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, bus.Publish(short, &Envelope{ID: "4", Priority: 9}), context.DeadlineExceeded)

	close(block)
}
