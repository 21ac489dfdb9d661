package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Record сериализуемое содержимое инвентаря агента
type Record struct {
	Agent     uuid.UUID   `json:"agent"`
	Items     []ItemStack `json:"items"`
	Tools     []ToolView  `json:"tools"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Repository долговременное хранилище инвентарей.
// Реализации лежат в internal/storage.
type Repository interface {
	// Save сохраняет инвентарь агента целиком
	Save(ctx context.Context, rec Record) error
	// Load загружает инвентарь; false - агент ещё ничего не сохранял
	Load(ctx context.Context, agent uuid.UUID) (Record, bool, error)
	// Delete удаляет сохранённый инвентарь
	Delete(ctx context.Context, agent uuid.UUID) error
	// BatchSave сохраняет несколько инвентарей (автосохранение)
	BatchSave(ctx context.Context, recs []Record) error
	Close() error
}

// RestoreTool восстанавливает инструмент из снимка
func RestoreTool(v ToolView) *Tool {
	return &Tool{
		ID:        v.ID,
		Tag:       v.Tag,
		damage:    v.Damage,
		maxDamage: v.MaxDamage,
	}
}
