package tools

import (
	"testing"

	"github.com/annel0/mmo-tools/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// coalCluster 12 связных клеток: линия из 6 по X и ещё 6 над ней
func coalCluster() map[vec.Vec3]bool {
	cells := make(map[vec.Vec3]bool)
	for x := 0; x < 6; x++ {
		cells[vec.Vec3{X: x}] = true
		cells[vec.Vec3{X: x, Y: 1}] = true
	}
	return cells
}

func inSet(set map[vec.Vec3]bool) func(vec.Vec3) bool {
	return func(c vec.Vec3) bool { return set[c] }
}

func TestExplore_LimitOnCluster(t *testing.T) {
	coal := coalCluster()
	require.Len(t, coal, 12)

	region := Explore(vec.Vec3{}, inSet(coal), 9)
	require.Len(t, region, 9)

	seen := make(map[vec.Vec3]struct{})
	for i, c := range region {
		assert.True(t, coal[c], "клетка %v не уголь", c)
		_, dup := seen[c]
		assert.False(t, dup, "клетка %v повторяется", c)
		seen[c] = struct{}{}

		if i == 0 {
			continue
		}
		// Каждая клетка соседствует с какой-то из найденных раньше
		connected := false
		for _, prev := range region[:i] {
			if prev.IsAdjacent26(c) {
				connected = true
				break
			}
		}
		assert.True(t, connected, "клетка %v не связана с регионом", c)
	}
	assert.Equal(t, vec.Vec3{}, region[0], "регион начинается с опорной клетки")
}

func TestExplore_WholeClusterUnderLimit(t *testing.T) {
	coal := coalCluster()
	region := Explore(vec.Vec3{X: 3}, inSet(coal), 64)
	assert.Len(t, region, 12)
}

func TestExplore_Diagonal26Connectivity(t *testing.T) {
	diag := map[vec.Vec3]bool{
		{X: 0, Y: 0, Z: 0}: true,
		{X: 1, Y: 1, Z: 1}: true,
		{X: 2, Y: 2, Z: 2}: true,
	}
	region := Explore(vec.Vec3{}, inSet(diag), 10)
	assert.Len(t, region, 3, "угловые соседи тоже связны")
}

func TestExplore_EmptyCases(t *testing.T) {
	coal := coalCluster()
	assert.Empty(t, Explore(vec.Vec3{X: 100}, inSet(coal), 9), "опорная клетка не подходит")
	assert.Empty(t, Explore(vec.Vec3{}, inSet(coal), 0))
	assert.Empty(t, Explore(vec.Vec3{}, inSet(coal), -5))
	assert.Equal(t, Region{{}}, Explore(vec.Vec3{}, inSet(coal), 1))
}

func TestExplore_AcceptCalledOncePerCell(t *testing.T) {
	coal := coalCluster()
	calls := make(map[vec.Vec3]int)
	accept := func(c vec.Vec3) bool {
		calls[c]++
		return coal[c]
	}

	Explore(vec.Vec3{}, accept, 100)
	for c, n := range calls {
		assert.Equal(t, 1, n, "accept для %v вызван %d раз", c, n)
	}
}

func TestExplore_Deterministic(t *testing.T) {
	coal := coalCluster()
	a := Explore(vec.Vec3{X: 2, Y: 1}, inSet(coal), 7)
	b := Explore(vec.Vec3{X: 2, Y: 1}, inSet(coal), 7)
	assert.Equal(t, a, b)
}
