package tools

import (
	"sync"

	"github.com/google/uuid"
)

// ActivityGuard не даёт агенту запустить вторую постепенную операцию, пока идёт первая
type ActivityGuard struct {
	mu     sync.Mutex
	active map[uuid.UUID]struct{}
}

// NewActivityGuard создаёт пустой guard
func NewActivityGuard() *ActivityGuard {
	return &ActivityGuard{active: make(map[uuid.UUID]struct{})}
}

// TryAcquire помечает агента занятым. false, если агент уже занят.
func (g *ActivityGuard) TryAcquire(agent uuid.UUID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.active[agent]; busy {
		return false
	}
	g.active[agent] = struct{}{}
	return true
}

// Release снимает отметку. Повторный вызов безопасен.
func (g *ActivityGuard) Release(agent uuid.UUID) {
	g.mu.Lock()
	delete(g.active, agent)
	g.mu.Unlock()
}

// ClearAll снимает все отметки
func (g *ActivityGuard) ClearAll() {
	g.mu.Lock()
	g.active = make(map[uuid.UUID]struct{})
	g.mu.Unlock()
}

// Active сообщает, занят ли агент
func (g *ActivityGuard) Active(agent uuid.UUID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.active[agent]
	return ok
}

// Count возвращает число занятых агентов
func (g *ActivityGuard) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.active)
}
