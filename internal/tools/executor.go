package tools

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/annel0/mmo-tools/internal/scheduler"
	"github.com/annel0/mmo-tools/internal/vec"
)

// DefaultDelayTicks пауза между клетками постепенной операции
const DefaultDelayTicks = 2

// Outcome результат обработки одной клетки
type Outcome uint8

const (
	Applied Outcome = iota // Клетка обработана
	Skipped                // Клетка пропущена (защита, материал сменился и т.п.)
)

// State состояние исполнителя
type State int32

const (
	StateRunning State = iota
	StateDone
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateDone:
		return "done"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ApplyFunc действие над одной клеткой региона
type ApplyFunc func(cell vec.Vec3) (Outcome, error)

// ExecutorOptions параметры исполнителя
type ExecutorOptions struct {
	DelayTicks int         // Пауза между клетками; <= 0 означает DefaultDelayTicks
	OnFinish   func(State) // Вызывается ровно один раз при переходе в Done или Cancelled
}

// Executor обрабатывает регион по одной клетке за шаг
type Executor struct {
	region Region
	apply  ApplyFunc
	delay  int

	index    atomic.Int64
	state    atomic.Int32
	stepMu   sync.Mutex // Защита от повторного входа в Step
	finish   sync.Once
	onFinish func(State)

	applied atomic.Int64
	skipped atomic.Int64
}

// NewExecutor создаёт исполнителя в состоянии Running
func NewExecutor(region Region, apply ApplyFunc, opts ExecutorOptions) *Executor {
	delay := opts.DelayTicks
	if delay <= 0 {
		delay = DefaultDelayTicks
	}
	return &Executor{
		region:   region,
		apply:    apply,
		delay:    delay,
		onFinish: opts.OnFinish,
	}
}

// Step обрабатывает следующую клетку. Индекс продвигается при любом исходе, в том числе при ошибке.
// После последней клетки исполнитель переходит в Done в том же шаге.
func (e *Executor) Step() error {
	if e.State() != StateRunning {
		return nil
	}
	if !e.stepMu.TryLock() {
		return nil
	}
	defer e.stepMu.Unlock()

	i := int(e.index.Load())
	if i >= len(e.region) {
		e.transition(StateDone)
		return nil
	}

	outcome, err := e.safeApply(e.region[i])
	e.index.Store(int64(i + 1))
	if err == nil {
		if outcome == Applied {
			e.applied.Add(1)
		} else {
			e.skipped.Add(1)
		}
	}

	if i+1 >= len(e.region) {
		e.transition(StateDone)
	}
	return err
}

// safeApply превращает панику действия в ошибку, чтобы клетка не повторялась бесконечно
func (e *Executor) safeApply(cell vec.Vec3) (outcome Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome, err = Skipped, fmt.Errorf("apply %v: panic: %v", cell, r)
		}
	}()
	return e.apply(cell)
}

// Cancel останавливает исполнителя. Клетки после текущей не обрабатываются.
func (e *Executor) Cancel() {
	e.transition(StateCancelled)
}

// transition переводит Running в конечное состояние и вызывает OnFinish один раз
func (e *Executor) transition(to State) {
	if !e.state.CompareAndSwap(int32(StateRunning), int32(to)) {
		return
	}
	e.finish.Do(func() {
		if e.onFinish != nil {
			e.onFinish(to)
		}
	})
}

// State возвращает текущее состояние
func (e *Executor) State() State {
	return State(e.state.Load())
}

// Index возвращает индекс следующей клетки
func (e *Executor) Index() int {
	return int(e.index.Load())
}

// Len возвращает размер региона
func (e *Executor) Len() int {
	return len(e.region)
}

// Counts возвращает число обработанных и пропущенных клеток
func (e *Executor) Counts() (applied, skipped int) {
	return int(e.applied.Load()), int(e.skipped.Load())
}

// DelayTicks возвращает паузу между клетками
func (e *Executor) DelayTicks() int {
	return e.delay
}

// Schedule регистрирует исполнителя в планировщике: первый шаг сразу, затем каждые DelayTicks тиков.
// Задача снимается сама, когда исполнитель завершён.
func (e *Executor) Schedule(s *scheduler.Scheduler) *scheduler.Handle {
	return s.RunTimer("progressive-executor", 0, e.delay, func(h *scheduler.Handle) error {
		err := e.Step()
		if e.State() != StateRunning {
			h.Cancel()
		}
		return err
	})
}
