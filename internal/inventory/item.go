package inventory

import (
	"sync"

	"github.com/annel0/mmo-tools/internal/world/block"
	"github.com/google/uuid"
)

// ItemStack стопка предметов одного материала
type ItemStack struct {
	Item   block.Material `json:"item"`
	Amount int            `json:"amount"`
}

// Tool экземпляр инструмента в инвентаре агента.
// Износ меняется на тиковом потоке, а читается и из админских запросов, поэтому под мьютексом.
type Tool struct {
	ID  uuid.UUID
	Tag string // Тег предмета, например "vitems:veinminer"

	mu        sync.Mutex
	damage    int
	maxDamage int
}

// NewTool создаёт инструмент с новым идентификатором.
// maxDamage <= 0 означает неразрушимый инструмент.
func NewTool(tag string, maxDamage int) *Tool {
	return &Tool{
		ID:        uuid.New(),
		Tag:       tag,
		maxDamage: maxDamage,
	}
}

// Damage возвращает накопленный износ
func (t *Tool) Damage() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.damage
}

// MaxDamage возвращает предел износа
func (t *Tool) MaxDamage() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.maxDamage
}

// SetDamage устанавливает износ
func (t *Tool) SetDamage(d int) {
	t.mu.Lock()
	t.damage = d
	t.mu.Unlock()
}

// ToolView снимок состояния инструмента для API
type ToolView struct {
	ID        uuid.UUID `json:"id"`
	Tag       string    `json:"tag"`
	Damage    int       `json:"damage"`
	MaxDamage int       `json:"max_damage"`
}

// View возвращает снимок инструмента
func (t *Tool) View() ToolView {
	t.mu.Lock()
	defer t.mu.Unlock()
	return ToolView{ID: t.ID, Tag: t.Tag, Damage: t.damage, MaxDamage: t.maxDamage}
}
