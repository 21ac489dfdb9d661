package block

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_Lookup(t *testing.T) {
	props, ok := Get(CoalOreBlockID)
	assert.True(t, ok)
	assert.Equal(t, CoalOre, props.Material)
	assert.Equal(t, Coal, props.Drop)

	id, ok := ByMaterial(OakLog)
	assert.True(t, ok)
	assert.Equal(t, OakLogBlockID, id)

	assert.Equal(t, BlockID(100), CoalOreBlockID)
	assert.Equal(t, BlockID(200), OakLogBlockID)
}

func TestMaterialOf_UnknownIsAir(t *testing.T) {
	assert.Equal(t, Air, MaterialOf(BlockID(9999)))
	assert.False(t, IsValidBlockID(BlockID(9999)))
	assert.Equal(t, Stone, MaterialOf(StoneBlockID))
}

func TestDrops(t *testing.T) {
	cases := map[BlockID]Material{
		StoneBlockID:            Cobblestone,
		GrassBlockID:            Dirt,
		DiamondOreBlockID:       Diamond,
		DeepslateIronOreBlockID: RawIron,
		OakLeavesBlockID:        "",
		AirBlockID:              "",
	}
	for id, want := range cases {
		props, _ := Get(id)
		assert.Equal(t, want, props.Drop, "дроп для %s", props.Material)
	}
}
