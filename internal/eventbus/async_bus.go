package eventbus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/annel0/mmo-tools/internal/logging"
)

// ErrQueueFull очередь асинхронной публикации заполнена, событие отброшено
var ErrQueueFull = errors.New("event bus queue is full")

// DefaultPublishTimeout ограничение на одну публикацию во внутреннюю шину
const DefaultPublishTimeout = 2 * time.Second

// AsyncBus ставит события в очередь и публикует их из отдельной горутины.
// Publish никогда не ждёт внутреннюю шину: при заполненной очереди событие отбрасывается.
// Подписка и метрики делегируются внутренней шине.
type AsyncBus struct {
	inner   EventBus
	queue   chan *Envelope
	timeout time.Duration
	logger  *logging.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}

	dropped atomic.Uint64
	failed  atomic.Uint64
}

// NewAsyncBus оборачивает шину очередью на size событий.
// timeout ограничивает одну публикацию (0 - DefaultPublishTimeout).
func NewAsyncBus(inner EventBus, size int, timeout time.Duration, logger *logging.Logger) *AsyncBus {
	if size <= 0 {
		size = 1024
	}
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	ab := &AsyncBus{
		inner:   inner,
		queue:   make(chan *Envelope, size),
		timeout: timeout,
		logger:  logger,
		done:    make(chan struct{}),
	}
	go ab.publishLoop()
	return ab
}

// Publish ставит событие в очередь. ctx не используется: публикация идёт со своим таймаутом.
func (ab *AsyncBus) Publish(_ context.Context, ev *Envelope) error {
	ab.mu.RLock()
	defer ab.mu.RUnlock()
	if ab.closed {
		return ErrClosed
	}

	select {
	case ab.queue <- ev:
		return nil
	default:
		ab.dropped.Add(1)
		return ErrQueueFull
	}
}

func (ab *AsyncBus) publishLoop() {
	defer close(ab.done)
	for ev := range ab.queue {
		ctx, cancel := context.WithTimeout(context.Background(), ab.timeout)
		err := ab.inner.Publish(ctx, ev)
		cancel()
		if err != nil {
			ab.failed.Add(1)
			ab.logger.OrDefault().Debug("[EventBus] публикация %s %s: %v", ev.ID, ev.EventType, err)
		}
	}
}

func (ab *AsyncBus) Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error) {
	return ab.inner.Subscribe(ctx, f, h)
}

// Metrics добавляет к статистике внутренней шины отброшенные в очереди события
func (ab *AsyncBus) Metrics() Stats {
	st := ab.inner.Metrics()
	st.Dropped += ab.dropped.Load() + ab.failed.Load()
	st.InFlight += len(ab.queue)
	return st
}

// Close перестаёт принимать события, дожидается отправки очереди и закрывает внутреннюю шину
func (ab *AsyncBus) Close() error {
	ab.mu.Lock()
	if ab.closed {
		ab.mu.Unlock()
		return nil
	}
	ab.closed = true
	close(ab.queue)
	ab.mu.Unlock()

	<-ab.done
	return ab.inner.Close()
}
