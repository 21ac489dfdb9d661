package world

import (
	"github.com/annel0/mmo-tools/internal/util"
	"github.com/annel0/mmo-tools/internal/vec"
	"github.com/annel0/mmo-tools/internal/world/block"
)

// Константы высот для генерации
const (
	SeaLevel       = 62 // Уровень моря
	TerrainBase    = 64 // Средняя высота поверхности
	TerrainSpread  = 24 // Максимальное отклонение поверхности от средней высоты
	DirtDepth      = 3  // Толщина слоя земли под травой
	DeepslateStart = 0  // Ниже - глубинный сланец
)

// oreRule описывает распределение одной руды
type oreRule struct {
	stone, deepslate block.BlockID
	maxY             int     // Выше руда не встречается
	threshold        float64 // Порог 3D шума, выше которого клетка становится рудой
	noise            *util.Noise
}

// Generator генерирует ландшафт мира: рельеф, воду, жилы руд и деревья
type Generator struct {
	Seed       int64
	MinY, MaxY int
	NoiseScale float64 // Масштаб шума высоты
	OreScale   float64 // Масштаб шума жил
	TreeChance int     // Шанс дерева на травяной клетке, в промилле
	height     *util.Noise
	rock       *util.Noise
	ores       []oreRule
}

// NewGenerator создаёт генератор мира
func NewGenerator(seed int64, minY, maxY int) *Generator {
	return &Generator{
		Seed:       seed,
		MinY:       minY,
		MaxY:       maxY,
		NoiseScale: 0.01,
		OreScale:   0.15,
		TreeChance: 15,
		height:     util.NewNoise(seed),
		rock:       util.NewNoise(seed + 7),
		ores: []oreRule{
			{stone: block.DiamondOreBlockID, deepslate: block.DiamondOreBlockID, maxY: 16, threshold: 0.86, noise: util.NewNoise(seed + 101)},
			{stone: block.GoldOreBlockID, deepslate: block.GoldOreBlockID, maxY: 32, threshold: 0.84, noise: util.NewNoise(seed + 102)},
			{stone: block.IronOreBlockID, deepslate: block.DeepslateIronOreBlockID, maxY: 72, threshold: 0.8, noise: util.NewNoise(seed + 103)},
			{stone: block.CopperOreBlockID, deepslate: block.CopperOreBlockID, maxY: 96, threshold: 0.81, noise: util.NewNoise(seed + 104)},
			{stone: block.CoalOreBlockID, deepslate: block.DeepslateCoalOreBlockID, maxY: 192, threshold: 0.78, noise: util.NewNoise(seed + 105)},
		},
	}
}

// SurfaceHeight возвращает высоту верхнего твёрдого блока колонки
func (g *Generator) SurfaceHeight(x, z int) int {
	h := g.height.Noise2D(float64(x)*g.NoiseScale, float64(z)*g.NoiseScale)
	y := TerrainBase + int((h-0.5)*2*TerrainSpread)
	if y <= g.MinY {
		y = g.MinY + 1
	}
	if y >= g.MaxY {
		y = g.MaxY - 1
	}
	return y
}

// TreeAt сообщает, растёт ли в колонке дерево, и высоту его ствола
func (g *Generator) TreeAt(x, z int) (trunk int, birch bool, ok bool) {
	surface := g.SurfaceHeight(x, z)
	if surface < SeaLevel {
		return 0, false, false
	}
	h := columnHash(g.Seed, x, z)
	if int(h%1000) >= g.TreeChance {
		return 0, false, false
	}
	trunk = 4 + int((h>>10)%3)
	birch = (h>>20)%4 == 0
	return trunk, birch, true
}

// GenerateChunk генерирует чанк по его координатам
func (g *Generator) GenerateChunk(coords vec.Vec3) *Chunk {
	chunk := NewChunk(coords)
	origin := chunk.ToWorld(vec.Vec3{})

	// Чанк целиком вне высоты мира остаётся воздухом
	if origin.Y > g.MaxY || origin.Y+ChunkSize-1 < g.MinY {
		return chunk
	}

	for lx := 0; lx < ChunkSize; lx++ {
		for lz := 0; lz < ChunkSize; lz++ {
			x, z := origin.X+lx, origin.Z+lz
			surface := g.SurfaceHeight(x, z)

			for ly := 0; ly < ChunkSize; ly++ {
				y := origin.Y + ly
				if y < g.MinY || y > g.MaxY {
					continue
				}
				chunk.setGenerated(vec.Vec3{X: lx, Y: ly, Z: lz}, g.terrainAt(x, y, z, surface))
			}
		}
	}

	g.placeTrees(chunk, origin)
	return chunk
}

// terrainAt выбирает блок рельефа для клетки
func (g *Generator) terrainAt(x, y, z, surface int) block.BlockID {
	switch {
	case y == g.MinY:
		return block.BedrockBlockID
	case y > surface:
		if y <= SeaLevel {
			return block.WaterBlockID
		}
		return block.AirBlockID
	}

	depth := surface - y
	underwater := surface < SeaLevel
	switch {
	case depth == 0 && underwater:
		return block.SandBlockID
	case depth == 0:
		return block.GrassBlockID
	case depth <= DirtDepth && underwater:
		return block.GravelBlockID
	case depth <= DirtDepth:
		return block.DirtBlockID
	}

	deep := y < DeepslateStart
	for _, ore := range g.ores {
		if y > ore.maxY {
			continue
		}
		n := ore.noise.Noise3D(float64(x)*g.OreScale, float64(y)*g.OreScale, float64(z)*g.OreScale)
		if n > ore.threshold {
			if deep {
				return ore.deepslate
			}
			return ore.stone
		}
	}

	if deep {
		return block.DeepslateBlockID
	}
	if g.rock.Noise3D(float64(x)*0.05, float64(y)*0.05, float64(z)*0.05) > 0.75 {
		return block.GraniteBlockID
	}
	return block.StoneBlockID
}

// placeTrees размещает деревья, чьи блоки попадают в чанк.
// Деревья растущие в соседних колонках (до радиуса кроны) тоже учитываются,
// поэтому крона не обрезается на границе чанка.
func (g *Generator) placeTrees(chunk *Chunk, origin vec.Vec3) {
	const crown = 2

	for x := origin.X - crown; x < origin.X+ChunkSize+crown; x++ {
		for z := origin.Z - crown; z < origin.Z+ChunkSize+crown; z++ {
			trunk, birch, ok := g.TreeAt(x, z)
			if !ok {
				continue
			}
			base := g.SurfaceHeight(x, z) + 1
			top := base + trunk - 1

			logID, leavesID := block.OakLogBlockID, block.OakLeavesBlockID
			if birch {
				logID, leavesID = block.BirchLogBlockID, block.BirchLeavesBlockID
			}

			// Крона: два слоя радиуса 2 под вершиной и шапка радиуса 1
			for y := top - 1; y <= top+1; y++ {
				r := crown
				if y == top+1 {
					r = 1
				}
				for dx := -r; dx <= r; dx++ {
					for dz := -r; dz <= r; dz++ {
						g.setIfAir(chunk, origin, vec.Vec3{X: x + dx, Y: y, Z: z + dz}, leavesID)
					}
				}
			}

			for y := base; y <= top; y++ {
				g.set(chunk, origin, vec.Vec3{X: x, Y: y, Z: z}, logID)
			}
		}
	}
}

func (g *Generator) set(chunk *Chunk, origin, pos vec.Vec3, id block.BlockID) {
	if pos.Y < g.MinY || pos.Y > g.MaxY {
		return
	}
	chunk.setGenerated(vec.Vec3{X: pos.X - origin.X, Y: pos.Y - origin.Y, Z: pos.Z - origin.Z}, id)
}

func (g *Generator) setIfAir(chunk *Chunk, origin, pos vec.Vec3, id block.BlockID) {
	local := vec.Vec3{X: pos.X - origin.X, Y: pos.Y - origin.Y, Z: pos.Z - origin.Z}
	if !inChunk(local) || pos.Y < g.MinY || pos.Y > g.MaxY {
		return
	}
	if chunk.Blocks[local.X][local.Y][local.Z] == block.AirBlockID {
		chunk.Blocks[local.X][local.Y][local.Z] = id
	}
}

// columnHash детерминированный хэш колонки (splitmix64)
func columnHash(seed int64, x, z int) uint64 {
	h := uint64(seed) ^ uint64(int64(x))*0x9E3779B97F4A7C15 ^ uint64(int64(z))*0xC2B2AE3D27D4EB4F
	h ^= h >> 30
	h *= 0xBF58476D1CE4E5B9
	h ^= h >> 27
	h *= 0x94D049BB133111EB
	h ^= h >> 31
	return h
}
