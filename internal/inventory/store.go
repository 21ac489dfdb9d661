package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/annel0/mmo-tools/internal/logging"
	"github.com/annel0/mmo-tools/internal/world/block"
	"github.com/google/uuid"
)

// ErrToolNotFound инструмент отсутствует у агента
var ErrToolNotFound = errors.New("tool not found")

// holding содержимое инвентаря одного агента
type holding struct {
	items map[block.Material]int
	tools map[uuid.UUID]*Tool
}

// Store хранит инвентари агентов в памяти.
// С репозиторием изменённые инвентари сохраняются при Flush, без него данные теряются при перезапуске.
type Store struct {
	mu     sync.RWMutex
	agents map[uuid.UUID]*holding
	dirty  map[uuid.UUID]struct{}
	repo   Repository
	logger *logging.Logger

	// Счётчики для статистики
	persisted int
	destroyed int
}

// NewStore создаёт пустое хранилище инвентарей
func NewStore(logger *logging.Logger) *Store {
	return &Store{
		agents: make(map[uuid.UUID]*holding),
		dirty:  make(map[uuid.UUID]struct{}),
		logger: logger,
	}
}

// NewPersistentStore создаёт хранилище поверх репозитория
func NewPersistentStore(logger *logging.Logger, repo Repository) *Store {
	s := NewStore(logger)
	s.repo = repo
	return s
}

// Ensure подгружает инвентарь агента из репозитория, если его ещё нет в памяти
func (s *Store) Ensure(ctx context.Context, agent uuid.UUID) error {
	if s.repo == nil {
		return nil
	}
	s.mu.RLock()
	_, loaded := s.agents[agent]
	s.mu.RUnlock()
	if loaded {
		return nil
	}

	rec, found, err := s.repo.Load(ctx, agent)
	if err != nil {
		return fmt.Errorf("load inventory %s: %w", agent, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.agents[agent]; ok {
		// Пока шла загрузка, агент успел получить предметы
		return nil
	}
	h := s.get(agent)
	if found {
		for _, it := range rec.Items {
			h.items[it.Item] += it.Amount
		}
		for _, v := range rec.Tools {
			h.tools[v.ID] = RestoreTool(v)
		}
		s.logger.OrDefault().Debug("📦 Инвентарь агента %s загружен: %d стопок, %d инструментов", agent, len(rec.Items), len(rec.Tools))
	}
	return nil
}

// Flush сохраняет изменённые инвентари и возвращает их число.
// При ошибке инвентари остаются помеченными и уйдут со следующим сохранением.
func (s *Store) Flush(ctx context.Context) (int, error) {
	if s.repo == nil {
		return 0, nil
	}

	s.mu.Lock()
	recs := make([]Record, 0, len(s.dirty))
	now := time.Now().UTC()
	for agent := range s.dirty {
		if h, ok := s.agents[agent]; ok {
			recs = append(recs, h.record(agent, now))
		}
	}
	s.dirty = make(map[uuid.UUID]struct{})
	s.mu.Unlock()

	if len(recs) == 0 {
		return 0, nil
	}
	if err := s.repo.BatchSave(ctx, recs); err != nil {
		s.mu.Lock()
		for _, r := range recs {
			s.dirty[r.Agent] = struct{}{}
		}
		s.mu.Unlock()
		return 0, fmt.Errorf("flush %d inventories: %w", len(recs), err)
	}
	return len(recs), nil
}

// markDirty помечает инвентарь для следующего Flush. Вызывать под mu.Lock.
func (s *Store) markDirty(agent uuid.UUID) {
	if s.repo != nil {
		s.dirty[agent] = struct{}{}
	}
}

// Dirty возвращает число несохранённых инвентарей
func (s *Store) Dirty() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.dirty)
}

// record снимок инвентаря для репозитория. Вызывать под mu.
func (h *holding) record(agent uuid.UUID, now time.Time) Record {
	rec := Record{Agent: agent, Items: make([]ItemStack, 0, len(h.items)), Tools: make([]ToolView, 0, len(h.tools)), UpdatedAt: now}
	for m, n := range h.items {
		rec.Items = append(rec.Items, ItemStack{Item: m, Amount: n})
	}
	sort.Slice(rec.Items, func(i, j int) bool { return rec.Items[i].Item < rec.Items[j].Item })
	for _, t := range h.tools {
		rec.Tools = append(rec.Tools, t.View())
	}
	sort.Slice(rec.Tools, func(i, j int) bool { return rec.Tools[i].ID.String() < rec.Tools[j].ID.String() })
	return rec
}

// get возвращает инвентарь агента, создавая его при необходимости. Вызывать под mu.Lock.
func (s *Store) get(agent uuid.UUID) *holding {
	h, ok := s.agents[agent]
	if !ok {
		h = &holding{
			items: make(map[block.Material]int),
			tools: make(map[uuid.UUID]*Tool),
		}
		s.agents[agent] = h
	}
	return h
}

// AddItems складывает предметы в инвентарь агента; пустые стопки игнорируются
func (s *Store) AddItems(agent uuid.UUID, items []ItemStack) {
	if len(items) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.get(agent)
	for _, it := range items {
		if it.Amount <= 0 || it.Item == "" {
			continue
		}
		h.items[it.Item] += it.Amount
	}
	s.markDirty(agent)
}

// GiveTool выдаёт инструмент агенту
func (s *Store) GiveTool(agent uuid.UUID, tool *Tool) {
	s.mu.Lock()
	s.get(agent).tools[tool.ID] = tool
	s.markDirty(agent)
	s.mu.Unlock()

	s.logger.OrDefault().Debug("🎁 Агент %s получил инструмент %s (%s)", agent, tool.Tag, tool.ID)
}

// Tool ищет инструмент агента по ID
func (s *Store) Tool(agent uuid.UUID, id uuid.UUID) (*Tool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.agents[agent]
	if !ok {
		return nil, ErrToolNotFound
	}
	t, ok := h.tools[id]
	if !ok {
		return nil, ErrToolNotFound
	}
	return t, nil
}

// PersistTool фиксирует изменённый износ инструмента до следующего Flush.
// Инструмент хранится по указателю, поэтому в памяти меняется только пометка.
func (s *Store) PersistTool(agent uuid.UUID, tool *Tool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.get(agent)
	if _, ok := h.tools[tool.ID]; !ok {
		// Инструмент мог быть выдан в обход хранилища (например, в тестах)
		h.tools[tool.ID] = tool
	}
	s.markDirty(agent)
	s.persisted++
}

// DestroyTool удаляет сломанный инструмент из инвентаря
func (s *Store) DestroyTool(agent uuid.UUID, tool *Tool) {
	s.mu.Lock()
	if h, ok := s.agents[agent]; ok {
		delete(h.tools, tool.ID)
		s.markDirty(agent)
	}
	s.destroyed++
	s.mu.Unlock()

	s.logger.OrDefault().Info("💥 Инструмент %s агента %s сломан", tool.Tag, agent)
}

// Snapshot содержимое инвентаря для API
type Snapshot struct {
	Items []ItemStack `json:"items"`
	Tools []ToolView  `json:"tools"`
}

// Snapshot возвращает копию инвентаря агента, предметы отсортированы по имени
func (s *Store) Snapshot(agent uuid.UUID) Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{Items: []ItemStack{}, Tools: []ToolView{}}
	h, ok := s.agents[agent]
	if !ok {
		return snap
	}

	for m, n := range h.items {
		snap.Items = append(snap.Items, ItemStack{Item: m, Amount: n})
	}
	sort.Slice(snap.Items, func(i, j int) bool { return snap.Items[i].Item < snap.Items[j].Item })

	for _, t := range h.tools {
		snap.Tools = append(snap.Tools, t.View())
	}
	sort.Slice(snap.Tools, func(i, j int) bool { return snap.Tools[i].ID.String() < snap.Tools[j].ID.String() })
	return snap
}

// Count возвращает количество предметов материала у агента
func (s *Store) Count(agent uuid.UUID, item block.Material) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if h, ok := s.agents[agent]; ok {
		return h.items[item]
	}
	return 0
}

// Stats счётчики операций с инструментами
func (s *Store) Stats() (persisted, destroyed int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.persisted, s.destroyed
}
