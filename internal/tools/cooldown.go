package tools

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// CooldownStore хранит моменты окончания перезарядки по паре (агент, вид инструмента).
// Истёкшая запись считается отсутствующей; удаляется при чтении или при Sweep.
type CooldownStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]map[ToolKind]time.Time
	now     func() time.Time
}

// NewCooldownStore создаёт хранилище. now == nil означает time.Now.
func NewCooldownStore(now func() time.Time) *CooldownStore {
	if now == nil {
		now = time.Now
	}
	return &CooldownStore{
		records: make(map[uuid.UUID]map[ToolKind]time.Time),
		now:     now,
	}
}

// remaining возвращает остаток перезарядки и удаляет истёкшую запись. Вызывать под mu.
func (c *CooldownStore) remaining(agent uuid.UUID, kind ToolKind) time.Duration {
	byKind, ok := c.records[agent]
	if !ok {
		return 0
	}
	expiry, ok := byKind[kind]
	if !ok {
		return 0
	}

	left := expiry.Sub(c.now())
	if left <= 0 {
		delete(byKind, kind)
		if len(byKind) == 0 {
			delete(c.records, agent)
		}
		return 0
	}
	return left
}

// IsOnCooldown сообщает, идёт ли перезарядка
func (c *CooldownStore) IsOnCooldown(agent uuid.UUID, kind ToolKind) bool {
	return c.Remaining(agent, kind) > 0
}

// Remaining возвращает остаток перезарядки; 0, если её нет
func (c *CooldownStore) Remaining(agent uuid.UUID, kind ToolKind) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining(agent, kind)
}

// Set запускает перезарядку длительностью d, перезаписывая прежнюю. d <= 0 снимает перезарядку.
func (c *CooldownStore) Set(agent uuid.UUID, kind ToolKind, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if d <= 0 {
		if byKind, ok := c.records[agent]; ok {
			delete(byKind, kind)
			if len(byKind) == 0 {
				delete(c.records, agent)
			}
		}
		return
	}

	byKind, ok := c.records[agent]
	if !ok {
		byKind = make(map[ToolKind]time.Time)
		c.records[agent] = byKind
	}
	byKind[kind] = c.now().Add(d)
}

// ClearAgent снимает все перезарядки агента
func (c *CooldownStore) ClearAgent(agent uuid.UUID) {
	c.mu.Lock()
	delete(c.records, agent)
	c.mu.Unlock()
}

// ClearAll снимает все перезарядки
func (c *CooldownStore) ClearAll() {
	c.mu.Lock()
	c.records = make(map[uuid.UUID]map[ToolKind]time.Time)
	c.mu.Unlock()
}

// Sweep удаляет все истёкшие записи и возвращает их количество
func (c *CooldownStore) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for agent, byKind := range c.records {
		for kind, expiry := range byKind {
			if !expiry.After(now) {
				delete(byKind, kind)
				removed++
			}
		}
		if len(byKind) == 0 {
			delete(c.records, agent)
		}
	}
	return removed
}

// Len возвращает количество записей, включая ещё не удалённые истёкшие
func (c *CooldownStore) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, byKind := range c.records {
		n += len(byKind)
	}
	return n
}
