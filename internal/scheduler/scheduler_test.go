package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunTimer_Period(t *testing.T) {
	s := New()
	var ticks []uint64
	s.RunTimer("timer", 0, 2, func(*Handle) error {
		ticks = append(ticks, s.CurrentTick())
		return nil
	})

	for i := 0; i < 9; i++ {
		s.Tick()
	}
	assert.Equal(t, []uint64{0, 2, 4, 6, 8}, ticks)
	assert.Equal(t, 1, s.Pending())
}

func TestRunLater_RunsOnce(t *testing.T) {
	s := New()
	calls := 0
	s.RunLater("later", 3, func(*Handle) error {
		calls++
		return nil
	})

	for i := 0; i < 3; i++ {
		s.Tick()
	}
	assert.Equal(t, 0, calls, "ещё рано")
	s.Tick()
	s.Tick()
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, s.Pending())
}

func TestTick_RegistrationOrderAndNewTasksWait(t *testing.T) {
	s := New()
	var order []string
	s.Submit("a", func() {
		order = append(order, "a")
		s.Submit("c", func() { order = append(order, "c") })
	})
	s.Submit("b", func() { order = append(order, "b") })

	s.Tick()
	assert.Equal(t, []string{"a", "b"}, order, "задача, добавленная во время тика, ждёт следующего")
	s.Tick()
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestTick_ErrorsAndPanicsDoNotStopLoop(t *testing.T) {
	s := New()
	runs := 0
	s.RunTimer("failing", 0, 1, func(*Handle) error {
		runs++
		return errors.New("boom")
	})
	s.RunTimer("panicking", 0, 1, func(*Handle) error {
		panic("oops")
	})

	require.NotPanics(t, func() {
		s.Tick()
		s.Tick()
	})
	assert.Equal(t, 2, runs, "повторяющаяся задача продолжает работать после ошибки")
}

func TestHandle_CancelFromInside(t *testing.T) {
	s := New()
	runs := 0
	s.RunTimer("self-cancel", 0, 1, func(h *Handle) error {
		runs++
		if runs == 2 {
			h.Cancel()
		}
		return nil
	})

	for i := 0; i < 5; i++ {
		s.Tick()
	}
	assert.Equal(t, 2, runs)
	assert.Equal(t, 0, s.Pending())
}

func TestCancelAll(t *testing.T) {
	s := New()
	runs := 0
	h := s.RunTimer("t", 0, 1, func(*Handle) error { runs++; return nil })
	s.CancelAll()
	s.Tick()
	assert.Equal(t, 0, runs)
	assert.True(t, h.Cancelled())
}

func TestSubmit_FromOtherGoroutines(t *testing.T) {
	s := New()
	var mu sync.Mutex
	count := 0

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Submit("inc", func() {
				mu.Lock()
				count++
				mu.Unlock()
			})
		}()
	}
	wg.Wait()
	s.Tick()
	assert.Equal(t, 20, count)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	var observed int
	var mu sync.Mutex
	s := New(WithTickObserver(func(uint64, time.Duration) {
		mu.Lock()
		observed++
		mu.Unlock()
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()

	err := s.Run(ctx, 100)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	mu.Lock()
	defer mu.Unlock()
	assert.Greater(t, observed, 0, "тики должны были выполниться")
}
