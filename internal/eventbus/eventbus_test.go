package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnvelope_Fields(t *testing.T) {
	ev, err := NewEnvelope("tools", "ToolStarted", map[string]any{
		"kind":  "veinminer",
		"cells": 5,
		"cell":  map[string]any{"x": 1, "y": -2, "z": 3},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, PayloadVersion, ev.Version)

	fields, err := ev.Fields()
	require.NoError(t, err)
	assert.Equal(t, "veinminer", fields["kind"])
	assert.Equal(t, 5.0, fields["cells"], "числа в Struct хранятся как double")
	assert.Equal(t, -2.0, fields["cell"].(map[string]any)["y"])
}

func TestNewEnvelope_UnsupportedValue(t *testing.T) {
	_, err := NewEnvelope("tools", "Bad", map[string]any{"ch": make(chan int)})
	assert.Error(t, err)
}

func TestMemoryBus_FilterAndDelivery(t *testing.T) {
	bus := NewMemoryBus(16)

	var mu sync.Mutex
	var got []string
	var wg sync.WaitGroup
	wg.Add(2)

	_, err := bus.Subscribe(context.Background(), Filter{Types: []string{"ToolStarted"}}, func(_ context.Context, ev *Envelope) {
		mu.Lock()
		got = append(got, ev.EventType)
		mu.Unlock()
		wg.Done()
	})
	require.NoError(t, err)

	emitter := NewEmitter(bus, "tools")
	require.NoError(t, emitter.Emit(context.Background(), "ToolStarted", map[string]any{"n": 1}))
	require.NoError(t, emitter.Emit(context.Background(), "ToolRejected", map[string]any{"n": 2}))
	require.NoError(t, emitter.Emit(context.Background(), "ToolStarted", map[string]any{"n": 3}))

	waitGroup(t, &wg)
	require.NoError(t, bus.Close())

	assert.Equal(t, []string{"ToolStarted", "ToolStarted"}, got)
	stats := bus.Metrics()
	assert.Equal(t, uint64(3), stats.Published)
	assert.Equal(t, uint64(2), stats.Consumed)
}

func TestMemoryBus_Unsubscribe(t *testing.T) {
	bus := NewMemoryBus(4)
	calls := make(chan struct{}, 4)
	sub, err := bus.Subscribe(context.Background(), Filter{}, func(context.Context, *Envelope) { calls <- struct{}{} })
	require.NoError(t, err)
	sub.Unsubscribe()

	require.NoError(t, NewEmitter(bus, "tools").Emit(context.Background(), "ToolFinished", map[string]any{}))
	require.NoError(t, bus.Close())
	assert.Len(t, calls, 0)
}

func TestMemoryBus_Closed(t *testing.T) {
	bus := NewMemoryBus(1)
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close(), "повторное закрытие безопасно")

	assert.ErrorIs(t, NewEmitter(bus, "tools").Emit(context.Background(), "X", map[string]any{}), ErrClosed)
	_, err := bus.Subscribe(context.Background(), Filter{}, func(context.Context, *Envelope) {})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestEmitter_NilIsNoop(t *testing.T) {
	var e *Emitter
	assert.NoError(t, e.Emit(context.Background(), "X", nil))
	assert.Equal(t, 7, NewEmitter(nil, "tools").WithPriority(7).priority)
}

func TestMetricsExporter_Collect(t *testing.T) {
	bus := NewMemoryBus(8)
	reg := prometheus.NewRegistry()
	exp := NewMetricsExporter(bus, reg)

	emitter := NewEmitter(bus, "tools")
	for i := 0; i < 3; i++ {
		require.NoError(t, emitter.Emit(context.Background(), "ToolStarted", map[string]any{}))
	}
	require.NoError(t, bus.Close())

	exp.Collect()
	exp.Collect()
	assert.Equal(t, 3.0, testutil.ToFloat64(exp.published), "дельта не считается дважды")
	assert.Equal(t, 0.0, testutil.ToFloat64(exp.inflight))
}

func TestMetricsExporter_StopWithoutStart(t *testing.T) {
	exp := NewMetricsExporter(NewMemoryBus(1), nil)

	done := make(chan struct{})
	go func() {
		exp.Stop()
		exp.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop без Start не вернулся")
	}

	exp.Start(time.Millisecond)
	assert.False(t, exp.started, "после Stop экспортер не запускается")
}

func TestMetricsExporter_StartStop(t *testing.T) {
	exp := NewMetricsExporter(NewMemoryBus(1), prometheus.NewRegistry())
	exp.Start(time.Millisecond)
	exp.Start(time.Millisecond)
	exp.Stop()
	exp.Stop()
}

// blockingBus задерживает каждую публикацию до закрытия release
type blockingBus struct {
	EventBus
	release chan struct{}
}

func (b *blockingBus) Publish(ctx context.Context, ev *Envelope) error {
	select {
	case <-b.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	return b.EventBus.Publish(ctx, ev)
}

func TestAsyncBus_PublishDoesNotWait(t *testing.T) {
	inner := &blockingBus{EventBus: NewMemoryBus(16), release: make(chan struct{})}
	bus := NewAsyncBus(inner, 8, time.Second, nil)

	var wg sync.WaitGroup
	wg.Add(2)
	_, err := bus.Subscribe(context.Background(), Filter{}, func(context.Context, *Envelope) { wg.Done() })
	require.NoError(t, err)

	emitter := NewEmitter(bus, "tools")
	start := time.Now()
	require.NoError(t, emitter.Emit(context.Background(), "ToolStarted", map[string]any{}))
	require.NoError(t, emitter.Emit(context.Background(), "ToolFinished", map[string]any{}))
	assert.Less(t, time.Since(start), 100*time.Millisecond, "публикация не ждёт внутреннюю шину")

	close(inner.release)
	waitGroup(t, &wg)
	require.NoError(t, bus.Close())
	assert.ErrorIs(t, emitter.Emit(context.Background(), "X", map[string]any{}), ErrClosed)
}

func TestAsyncBus_DropsWhenQueueFull(t *testing.T) {
	inner := &blockingBus{EventBus: NewMemoryBus(16), release: make(chan struct{})}
	bus := NewAsyncBus(inner, 1, time.Second, nil)
	emitter := NewEmitter(bus, "tools").WithPriority(9)

	var errs []error
	for i := 0; i < 5; i++ {
		errs = append(errs, emitter.Emit(context.Background(), "BlockRemoved", map[string]any{}))
	}
	assert.Contains(t, errs, ErrQueueFull, "переполнение отбрасывает даже высокий приоритет")
	assert.Greater(t, bus.Metrics().Dropped, uint64(0))

	close(inner.release)
	require.NoError(t, bus.Close())
}

func TestAsyncBus_CloseDrainsQueue(t *testing.T) {
	inner := NewMemoryBus(16)
	bus := NewAsyncBus(inner, 16, time.Second, nil)

	var mu sync.Mutex
	got := 0
	_, err := bus.Subscribe(context.Background(), Filter{}, func(context.Context, *Envelope) {
		mu.Lock()
		got++
		mu.Unlock()
	})
	require.NoError(t, err)

	emitter := NewEmitter(bus, "tools")
	for i := 0; i < 5; i++ {
		require.NoError(t, emitter.Emit(context.Background(), "ToolStarted", map[string]any{}))
	}
	require.NoError(t, bus.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 5, got, "Close доставляет очередь до закрытия внутренней шины")
	assert.Equal(t, uint64(5), bus.Metrics().Published)
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "tools.ToolStarted", Subject("ToolStarted"))
}

func waitGroup(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("события не доставлены")
	}
}
