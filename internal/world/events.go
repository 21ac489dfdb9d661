package world

import (
	"github.com/annel0/mmo-tools/internal/vec"
	"github.com/annel0/mmo-tools/internal/world/block"
)

// EventType определяет тип события мира
type EventType uint8

const (
	EventTypeBlockSet     EventType = iota // Установка блока
	EventTypeBlockRemoved                  // Разрушение блока
	EventTypeFeedback                      // Эффект по клетке (частицы, звук)
	EventTypeChunkLoaded                   // Сгенерирован новый чанк
)

func (t EventType) String() string {
	switch t {
	case EventTypeBlockSet:
		return "block_set"
	case EventTypeBlockRemoved:
		return "block_removed"
	case EventTypeFeedback:
		return "feedback"
	case EventTypeChunkLoaded:
		return "chunk_loaded"
	default:
		return "unknown"
	}
}

// Event представляет собой интерфейс для всех событий мира
type Event interface {
	GetType() EventType
}

// BlockEvent представляет событие, связанное с блоком
type BlockEvent struct {
	EventType EventType
	Position  vec.Vec3       // Мировые координаты блока
	Material  block.Material // Материал до изменения (для удаления) или после (для установки)
}

// GetType возвращает тип события
func (e BlockEvent) GetType() EventType {
	return e.EventType
}

// FeedbackEvent эффект, который клиенты должны показать в клетке
type FeedbackEvent struct {
	Position vec.Vec3
	Effect   block.Effect
}

// GetType возвращает тип события
func (e FeedbackEvent) GetType() EventType {
	return EventTypeFeedback
}

// ChunkEvent событие загрузки чанка
type ChunkEvent struct {
	Coords vec.Vec3
}

// GetType возвращает тип события
func (e ChunkEvent) GetType() EventType {
	return EventTypeChunkLoaded
}

// Listener получает события мира. Вызывается синхронно на потоке, изменившем мир.
type Listener func(Event)
