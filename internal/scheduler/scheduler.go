package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/annel0/mmo-tools/internal/logging"
)

// TaskFunc тело задачи. Ошибка логируется и не останавливает повторяющуюся задачу.
type TaskFunc func(h *Handle) error

// Handle дескриптор запланированной задачи
type Handle struct {
	id     uint64
	name   string
	due    uint64 // Тик следующего запуска
	period uint64 // 0 - однократная задача
	fn     TaskFunc

	cancelled atomic.Bool
	finished  bool // Однократная задача отработала; меняется только под mu планировщика
}

// ID возвращает идентификатор задачи
func (h *Handle) ID() uint64 { return h.id }

// Name возвращает имя задачи для логов
func (h *Handle) Name() string { return h.name }

// Cancel снимает задачу с планировщика. Повторный вызов безопасен.
// Если задача уже выбрана на текущий тик, она ещё может выполниться один раз.
func (h *Handle) Cancel() {
	if h != nil {
		h.cancelled.Store(true)
	}
}

// Cancelled сообщает, снята ли задача
func (h *Handle) Cancelled() bool {
	return h != nil && h.cancelled.Load()
}

// Scheduler кооперативный тиковый планировщик.
// Все задачи выполняются последовательно внутри Tick, на одном потоке;
// остальные горутины передают работу через Submit.
type Scheduler struct {
	mu     sync.Mutex
	tick   uint64 // Номер тика, который обрабатывается сейчас или будет обработан следующим
	nextID uint64
	tasks  []*Handle // В порядке регистрации

	logger *logging.Logger
	onTick func(tick uint64, took time.Duration)
}

// Option настройка планировщика
type Option func(*Scheduler)

// WithLogger задаёт логгер для ошибок задач
func WithLogger(l *logging.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithTickObserver вызывается после каждого тика (используется для метрик)
func WithTickObserver(fn func(tick uint64, took time.Duration)) Option {
	return func(s *Scheduler) { s.onTick = fn }
}

// New создаёт планировщик
func New(opts ...Option) *Scheduler {
	s := &Scheduler{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunTimer регистрирует повторяющуюся задачу: первый запуск через delay тиков, затем каждые period тиков.
// period < 1 трактуется как 1.
func (s *Scheduler) RunTimer(name string, delay, period int, fn TaskFunc) *Handle {
	if period < 1 {
		period = 1
	}
	return s.schedule(name, delay, uint64(period), fn)
}

// RunLater регистрирует однократную задачу через delay тиков
func (s *Scheduler) RunLater(name string, delay int, fn TaskFunc) *Handle {
	return s.schedule(name, delay, 0, fn)
}

// Submit выполняет fn на тиковом потоке при ближайшей возможности.
// Безопасно вызывать из любых горутин.
func (s *Scheduler) Submit(name string, fn func()) *Handle {
	return s.schedule(name, 0, 0, func(*Handle) error {
		fn()
		return nil
	})
}

func (s *Scheduler) schedule(name string, delay int, period uint64, fn TaskFunc) *Handle {
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	h := &Handle{
		id:     s.nextID,
		name:   name,
		due:    s.tick + uint64(delay),
		period: period,
		fn:     fn,
	}
	s.tasks = append(s.tasks, h)
	return h
}

// Tick выполняет один тик: все задачи, срок которых наступил, в порядке регистрации.
// Задачи, добавленные во время тика, выполняются не раньше следующего тика.
func (s *Scheduler) Tick() {
	start := time.Now()

	s.mu.Lock()
	now := s.tick
	due := make([]*Handle, 0, len(s.tasks))
	for _, h := range s.tasks {
		if !h.Cancelled() && h.due <= now {
			due = append(due, h)
		}
	}
	s.mu.Unlock()

	for _, h := range due {
		if h.Cancelled() {
			continue
		}
		if err := s.runTask(h); err != nil {
			s.logger.OrDefault().Error("❌ Задача %s (#%d) на тике %d: %v", h.name, h.id, now, err)
		}
	}

	s.mu.Lock()
	for _, h := range due {
		if h.period > 0 {
			h.due = now + h.period
		} else {
			h.finished = true
		}
	}
	// Убираем отработавшие и снятые задачи
	kept := s.tasks[:0]
	for _, h := range s.tasks {
		if !h.finished && !h.Cancelled() {
			kept = append(kept, h)
		}
	}
	for i := len(kept); i < len(s.tasks); i++ {
		s.tasks[i] = nil
	}
	s.tasks = kept
	s.tick++
	s.mu.Unlock()

	if s.onTick != nil {
		s.onTick(now, time.Since(start))
	}
}

// runTask выполняет задачу, превращая панику в ошибку
func (s *Scheduler) runTask(h *Handle) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return h.fn(h)
}

// Run крутит тики с частотой tps до отмены контекста
func (s *Scheduler) Run(ctx context.Context, tps int) error {
	if tps <= 0 {
		tps = 20
	}
	ticker := time.NewTicker(time.Second / time.Duration(tps))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Tick()
		}
	}
}

// CancelAll снимает все задачи
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range s.tasks {
		h.Cancel()
	}
	s.tasks = nil
}

// CurrentTick возвращает номер текущего (или следующего) тика
func (s *Scheduler) CurrentTick() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tick
}

// Pending возвращает количество активных задач
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, h := range s.tasks {
		if !h.Cancelled() {
			n++
		}
	}
	return n
}
