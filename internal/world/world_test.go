package world

import (
	"testing"

	"github.com/annel0/mmo-tools/internal/inventory"
	"github.com/annel0/mmo-tools/internal/vec"
	"github.com/annel0/mmo-tools/internal/world/block"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flatWorld() *World {
	return New(Options{MinY: -64, MaxY: 319, Flat: true})
}

func TestWorld_SetClassifyRemove(t *testing.T) {
	w := flatWorld()
	pos := vec.Vec3{X: -5, Y: 10, Z: 33}

	assert.Equal(t, block.Air, w.Classify(pos), "плоский мир пуст")

	require.NoError(t, w.SetMaterial(pos, block.CoalOre))
	assert.Equal(t, block.CoalOre, w.Classify(pos))

	drops, err := w.CollectDrops(pos, inventory.NewTool("vitems:veinminer", 0))
	require.NoError(t, err)
	assert.Equal(t, []inventory.ItemStack{{Item: block.Coal, Amount: 1}}, drops)

	require.NoError(t, w.Remove(pos))
	assert.Equal(t, block.Air, w.Classify(pos))
	assert.Equal(t, uint64(1), w.Stats().Removed)

	// Повторное удаление воздуха ничего не делает
	require.NoError(t, w.Remove(pos))
	assert.Equal(t, uint64(1), w.Stats().Removed)
}

func TestWorld_OutOfHeight(t *testing.T) {
	w := flatWorld()
	above := vec.Vec3{X: 0, Y: 320, Z: 0}

	assert.ErrorIs(t, w.Remove(above), ErrOutOfWorld)
	assert.ErrorIs(t, w.SetMaterial(above, block.Stone), ErrOutOfWorld)
	_, err := w.CollectDrops(above, nil)
	assert.ErrorIs(t, err, ErrOutOfWorld)
	assert.Equal(t, block.Air, w.Classify(above))
}

func TestWorld_UnknownMaterial(t *testing.T) {
	w := flatWorld()
	assert.ErrorIs(t, w.SetMaterial(vec.Vec3{}, "UNOBTAINIUM"), ErrUnknownMaterial)
}

func TestWorld_Events(t *testing.T) {
	w := flatWorld()
	var events []Event
	w.Subscribe(func(e Event) { events = append(events, e) })

	pos := vec.Vec3{X: 1, Y: 2, Z: 3}
	require.NoError(t, w.SetMaterial(pos, block.OakLog))
	require.NoError(t, w.Remove(pos))
	w.EmitFeedback(pos, block.EffectBreak)

	var types []EventType
	for _, e := range events {
		types = append(types, e.GetType())
	}
	assert.Equal(t, []EventType{EventTypeChunkLoaded, EventTypeBlockSet, EventTypeBlockRemoved, EventTypeFeedback}, types)

	removed := events[2].(BlockEvent)
	assert.Equal(t, block.OakLog, removed.Material, "событие удаления несёт прежний материал")
	assert.Equal(t, uint64(1), w.Stats().Effects)
}

func TestGenerator_Terrain(t *testing.T) {
	w := New(Options{Seed: 12345, MinY: -64, MaxY: 319})
	g := w.Generator()
	require.NotNil(t, g)

	x, z := 8, 8
	surface := g.SurfaceHeight(x, z)
	assert.GreaterOrEqual(t, surface, TerrainBase-TerrainSpread)
	assert.LessOrEqual(t, surface, TerrainBase+TerrainSpread)

	assert.Equal(t, block.Bedrock, w.Classify(vec.Vec3{X: x, Y: -64, Z: z}))
	top := w.Classify(vec.Vec3{X: x, Y: surface, Z: z})
	assert.Contains(t, []block.Material{block.GrassBlock, block.Sand}, top)

	// Глубоко под землёй только камень, сланец, гранит или руда
	deep := w.Classify(vec.Vec3{X: x, Y: -30, Z: z})
	assert.NotEqual(t, block.Air, deep)
	assert.NotEqual(t, block.Water, deep)
}

func TestGenerator_Deterministic(t *testing.T) {
	a := NewGenerator(99, -64, 319)
	b := NewGenerator(99, -64, 319)
	coords := vec.Vec3{X: 2, Y: 0, Z: -3}

	ca := a.GenerateChunk(coords)
	cb := b.GenerateChunk(coords)
	assert.Equal(t, ca.Blocks, cb.Blocks, "один сид - один мир")
}

func TestGenerator_TreesHaveLogs(t *testing.T) {
	g := NewGenerator(12345, -64, 319)
	w := New(Options{Seed: 12345, MinY: -64, MaxY: 319})

	// Ищем первую колонку с деревом
	for x := 0; x < 256; x++ {
		for z := 0; z < 256; z++ {
			trunk, _, ok := g.TreeAt(x, z)
			if !ok {
				continue
			}
			base := g.SurfaceHeight(x, z) + 1
			for y := base; y < base+trunk; y++ {
				m := w.Classify(vec.Vec3{X: x, Y: y, Z: z})
				assert.Contains(t, []block.Material{block.OakLog, block.BirchLog}, m, "ствол в (%d,%d,%d)", x, y, z)
			}
			return
		}
	}
	t.Skip("в области не нашлось деревьев")
}
