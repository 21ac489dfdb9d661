package world

import (
	"errors"
	"fmt"
	"sync"

	"github.com/annel0/mmo-tools/internal/inventory"
	"github.com/annel0/mmo-tools/internal/logging"
	"github.com/annel0/mmo-tools/internal/vec"
	"github.com/annel0/mmo-tools/internal/world/block"
)

var (
	// ErrOutOfWorld клетка вне допустимой высоты мира
	ErrOutOfWorld = errors.New("cell is outside of world height")
	// ErrUnknownMaterial материал не зарегистрирован
	ErrUnknownMaterial = errors.New("unknown material")
)

// World хранит блоки мира в чанках 16x16x16, генерируя их по первому обращению.
// Изменения идут с тикового потока, но чтение из админских запросов допускается.
type World struct {
	chunks    map[vec.Vec3]*Chunk
	generator *Generator
	minY      int
	maxY      int
	mu        sync.RWMutex

	listenersMu sync.RWMutex
	listeners   []Listener

	logger *logging.Logger

	// Статистика
	removed uint64
	effects uint64
	statsMu sync.Mutex
}

// Options параметры мира
type Options struct {
	Seed   int64
	MinY   int
	MaxY   int
	Logger *logging.Logger
	// Flat отключает генерацию: все чанки пустые (воздух). Используется в тестах.
	Flat bool
}

// New создаёт мир
func New(opts Options) *World {
	w := &World{
		chunks: make(map[vec.Vec3]*Chunk),
		minY:   opts.MinY,
		maxY:   opts.MaxY,
		logger: opts.Logger,
	}
	if !opts.Flat {
		w.generator = NewGenerator(opts.Seed, opts.MinY, opts.MaxY)
	}
	return w
}

// Subscribe добавляет слушателя событий мира
func (w *World) Subscribe(l Listener) {
	w.listenersMu.Lock()
	w.listeners = append(w.listeners, l)
	w.listenersMu.Unlock()
}

func (w *World) emit(e Event) {
	w.listenersMu.RLock()
	listeners := w.listeners
	w.listenersMu.RUnlock()

	for _, l := range listeners {
		l(e)
	}
}

// InHeight проверяет, что клетка в пределах высоты мира
func (w *World) InHeight(pos vec.Vec3) bool {
	return pos.Y >= w.minY && pos.Y <= w.maxY
}

// chunkAt возвращает чанк, генерируя его при необходимости
func (w *World) chunkAt(coords vec.Vec3) *Chunk {
	w.mu.RLock()
	chunk, ok := w.chunks[coords]
	w.mu.RUnlock()
	if ok {
		return chunk
	}

	w.mu.Lock()
	// Проверяем еще раз на случай race condition
	if chunk, ok = w.chunks[coords]; ok {
		w.mu.Unlock()
		return chunk
	}
	if w.generator != nil {
		chunk = w.generator.GenerateChunk(coords)
	} else {
		chunk = NewChunk(coords)
	}
	w.chunks[coords] = chunk
	w.mu.Unlock()

	w.logger.OrDefault().Trace("🧱 Сгенерирован чанк %v", coords)
	w.emit(ChunkEvent{Coords: coords})
	return chunk
}

// GetBlock возвращает ID блока в мировой клетке; вне высоты мира - воздух
func (w *World) GetBlock(pos vec.Vec3) block.BlockID {
	if !w.InHeight(pos) {
		return block.AirBlockID
	}
	return w.chunkAt(pos.ChunkCoords()).GetBlock(pos.LocalInChunk())
}

// SetBlock устанавливает блок в мировой клетке
func (w *World) SetBlock(pos vec.Vec3, id block.BlockID) error {
	if !w.InHeight(pos) {
		return fmt.Errorf("set block at %v: %w", pos, ErrOutOfWorld)
	}
	if !block.IsValidBlockID(id) {
		return fmt.Errorf("set block at %v: %w: id %d", pos, ErrUnknownMaterial, id)
	}
	w.chunkAt(pos.ChunkCoords()).SetBlock(pos.LocalInChunk(), id)
	w.emit(BlockEvent{EventType: EventTypeBlockSet, Position: pos, Material: block.MaterialOf(id)})
	return nil
}

// SetMaterial устанавливает блок по материалу
func (w *World) SetMaterial(pos vec.Vec3, m block.Material) error {
	id, ok := block.ByMaterial(m)
	if !ok {
		return fmt.Errorf("set block at %v: %w: %s", pos, ErrUnknownMaterial, m)
	}
	return w.SetBlock(pos, id)
}

// Classify возвращает материал клетки
func (w *World) Classify(pos vec.Vec3) block.Material {
	return block.MaterialOf(w.GetBlock(pos))
}

// Remove заменяет блок воздухом
func (w *World) Remove(pos vec.Vec3) error {
	if !w.InHeight(pos) {
		return fmt.Errorf("remove block at %v: %w", pos, ErrOutOfWorld)
	}

	chunk := w.chunkAt(pos.ChunkCoords())
	local := pos.LocalInChunk()
	prev := chunk.GetBlock(local)
	if prev == block.AirBlockID {
		return nil
	}
	chunk.SetBlock(local, block.AirBlockID)

	w.statsMu.Lock()
	w.removed++
	w.statsMu.Unlock()

	w.emit(BlockEvent{EventType: EventTypeBlockRemoved, Position: pos, Material: block.MaterialOf(prev)})
	return nil
}

// CollectDrops возвращает предметы, которые выпадут при разрушении клетки.
// Блок не меняется: вызывать до Remove.
func (w *World) CollectDrops(pos vec.Vec3, tool *inventory.Tool) ([]inventory.ItemStack, error) {
	if !w.InHeight(pos) {
		return nil, fmt.Errorf("drops at %v: %w", pos, ErrOutOfWorld)
	}
	props, ok := block.Get(w.GetBlock(pos))
	if !ok || props.Drop == "" {
		return nil, nil
	}
	return []inventory.ItemStack{{Item: props.Drop, Amount: 1}}, nil
}

// EmitFeedback рассылает эффект по клетке слушателям
func (w *World) EmitFeedback(pos vec.Vec3, effect block.Effect) {
	w.statsMu.Lock()
	w.effects++
	w.statsMu.Unlock()

	w.emit(FeedbackEvent{Position: pos, Effect: effect})
}

// Stats статистика мира
type Stats struct {
	LoadedChunks int    `json:"loaded_chunks"`
	Removed      uint64 `json:"removed_blocks"`
	Effects      uint64 `json:"effects"`
}

// Stats возвращает статистику мира
func (w *World) Stats() Stats {
	w.mu.RLock()
	loaded := len(w.chunks)
	w.mu.RUnlock()

	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	return Stats{LoadedChunks: loaded, Removed: w.removed, Effects: w.effects}
}

// Generator возвращает генератор мира (nil для плоского мира)
func (w *World) Generator() *Generator {
	return w.generator
}
