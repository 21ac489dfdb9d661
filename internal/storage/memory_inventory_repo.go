package storage

import (
	"context"
	"sync"

	"github.com/annel0/mmo-tools/internal/inventory"
	"github.com/google/uuid"
)

// MemoryInventoryRepo хранит инвентари в памяти.
// Используется по умолчанию и в тестах.
type MemoryInventoryRepo struct {
	mu      sync.RWMutex
	records map[uuid.UUID]inventory.Record
}

// NewMemoryInventoryRepo создаёт пустой репозиторий
func NewMemoryInventoryRepo() *MemoryInventoryRepo {
	return &MemoryInventoryRepo{records: make(map[uuid.UUID]inventory.Record)}
}

func (r *MemoryInventoryRepo) Save(ctx context.Context, rec inventory.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	r.records[rec.Agent] = rec
	r.mu.Unlock()
	return nil
}

func (r *MemoryInventoryRepo) Load(ctx context.Context, agent uuid.UUID) (inventory.Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return inventory.Record{}, false, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[agent]
	return rec, ok, nil
}

func (r *MemoryInventoryRepo) Delete(ctx context.Context, agent uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	delete(r.records, agent)
	r.mu.Unlock()
	return nil
}

func (r *MemoryInventoryRepo) BatchSave(ctx context.Context, recs []inventory.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range recs {
		r.records[rec.Agent] = rec
	}
	return nil
}

// Len количество сохранённых инвентарей
func (r *MemoryInventoryRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

func (r *MemoryInventoryRepo) Close() error { return nil }
