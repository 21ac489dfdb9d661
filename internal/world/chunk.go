package world

import (
	"sync"

	"github.com/annel0/mmo-tools/internal/vec"
	"github.com/annel0/mmo-tools/internal/world/block"
)

// ChunkSize длина ребра чанка в блоках
const ChunkSize = 16

// Chunk представляет участок мира размером 16x16x16 блоков
type Chunk struct {
	Coords vec.Vec3 // Координаты чанка в мире (в чанках)

	// Blocks[x][y][z] в локальных координатах
	Blocks [ChunkSize][ChunkSize][ChunkSize]block.BlockID

	Changes       map[vec.Vec3]struct{} // Изменённые после генерации клетки (локальные)
	ChangeCounter int                   // Счетчик изменений
	Mu            sync.RWMutex          // Мьютекс для безопасного доступа
}

// NewChunk создаёт новый пустой (воздух) чанк с указанными координатами
func NewChunk(coords vec.Vec3) *Chunk {
	return &Chunk{
		Coords:  coords,
		Changes: make(map[vec.Vec3]struct{}),
	}
}

// GetBlock возвращает ID блока по локальным координатам
func (c *Chunk) GetBlock(local vec.Vec3) block.BlockID {
	if !inChunk(local) {
		return block.AirBlockID
	}

	c.Mu.RLock()
	defer c.Mu.RUnlock()
	return c.Blocks[local.X][local.Y][local.Z]
}

// SetBlock устанавливает блок по локальным координатам и отмечает изменение
func (c *Chunk) SetBlock(local vec.Vec3, id block.BlockID) {
	if !inChunk(local) {
		return
	}

	c.Mu.Lock()
	defer c.Mu.Unlock()
	c.Blocks[local.X][local.Y][local.Z] = id
	c.Changes[local] = struct{}{}
	c.ChangeCounter++
}

// setGenerated пишет блок при генерации, не считая его изменением
func (c *Chunk) setGenerated(local vec.Vec3, id block.BlockID) {
	if inChunk(local) {
		c.Blocks[local.X][local.Y][local.Z] = id
	}
}

// ChangedCount возвращает количество изменённых клеток
func (c *Chunk) ChangedCount() int {
	c.Mu.RLock()
	defer c.Mu.RUnlock()
	return len(c.Changes)
}

// ToWorld переводит локальные координаты в мировые
func (c *Chunk) ToWorld(local vec.Vec3) vec.Vec3 {
	return vec.Vec3{
		X: c.Coords.X*ChunkSize + local.X,
		Y: c.Coords.Y*ChunkSize + local.Y,
		Z: c.Coords.Z*ChunkSize + local.Z,
	}
}

func inChunk(local vec.Vec3) bool {
	return local.X >= 0 && local.X < ChunkSize &&
		local.Y >= 0 && local.Y < ChunkSize &&
		local.Z >= 0 && local.Z < ChunkSize
}
