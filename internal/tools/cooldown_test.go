package tools

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

// fakeClock ручные часы для тестов
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestCooldownStore_Expiry(t *testing.T) {
	clock := newFakeClock()
	c := NewCooldownStore(clock.Now)
	agent := uuid.New()

	c.Set(agent, Pickaxe3x3, time.Second)
	assert.True(t, c.IsOnCooldown(agent, Pickaxe3x3))
	assert.False(t, c.IsOnCooldown(agent, Shovel3x3), "другой вид без перезарядки")

	clock.Advance(999 * time.Millisecond)
	assert.True(t, c.IsOnCooldown(agent, Pickaxe3x3))

	clock.Advance(time.Millisecond)
	assert.False(t, c.IsOnCooldown(agent, Pickaxe3x3))
	assert.Equal(t, 0, c.Len(), "истёкшая запись удалена при чтении")
}

func TestCooldownStore_RemainingDecreases(t *testing.T) {
	clock := newFakeClock()
	c := NewCooldownStore(clock.Now)
	agent := uuid.New()

	c.Set(agent, Veinminer, 3*time.Second)
	prev := c.Remaining(agent, Veinminer)
	assert.Equal(t, 3*time.Second, prev)

	for i := 0; i < 5; i++ {
		clock.Advance(700 * time.Millisecond)
		left := c.Remaining(agent, Veinminer)
		assert.LessOrEqual(t, left, prev)
		prev = left
	}
	assert.Equal(t, time.Duration(0), prev)
}

func TestCooldownStore_SetOverwritesAndClears(t *testing.T) {
	clock := newFakeClock()
	c := NewCooldownStore(clock.Now)
	agent := uuid.New()

	c.Set(agent, TreeCapitator, 5*time.Second)
	c.Set(agent, TreeCapitator, time.Second)
	assert.Equal(t, time.Second, c.Remaining(agent, TreeCapitator), "новая длительность заменяет старую")

	c.Set(agent, TreeCapitator, 0)
	assert.False(t, c.IsOnCooldown(agent, TreeCapitator))
}

func TestCooldownStore_SweepAndClear(t *testing.T) {
	clock := newFakeClock()
	c := NewCooldownStore(clock.Now)
	a, b := uuid.New(), uuid.New()

	c.Set(a, Pickaxe3x3, time.Second)
	c.Set(a, Veinminer, 10*time.Second)
	c.Set(b, Shovel3x3, 2*time.Second)
	assert.Equal(t, 3, c.Len())

	clock.Advance(2 * time.Second)
	assert.Equal(t, 2, c.Sweep())
	assert.Equal(t, 1, c.Len())
	assert.True(t, c.IsOnCooldown(a, Veinminer))

	c.ClearAgent(a)
	assert.Equal(t, 0, c.Len())

	c.Set(b, Shovel3x3, time.Second)
	c.ClearAll()
	assert.False(t, c.IsOnCooldown(b, Shovel3x3))
}
