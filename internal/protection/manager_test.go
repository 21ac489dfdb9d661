package protection

import (
	"testing"

	"github.com/annel0/mmo-tools/internal/config"
	"github.com/annel0/mmo-tools/internal/vec"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanAct_Regions(t *testing.T) {
	member := uuid.New()
	stranger := uuid.New()

	m, err := NewManager(config.ProtectionConfig{Regions: []config.RegionConfig{
		{ID: GlobalRegionID, Min: [3]int{-1000, -64, -1000}, Max: [3]int{1000, 319, 1000}},
		{ID: "spawn", Min: [3]int{10, 0, 10}, Max: [3]int{0, 100, 0}, Members: []string{member.String()}},
		{ID: "mine", Min: [3]int{50, 0, 50}, Max: [3]int{60, 100, 60}, AllowBreak: true},
	}}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, m.Count())

	inSpawn := vec.Vec3{X: 5, Y: 50, Z: 5}
	ok, err := m.CanAct(stranger, inSpawn)
	require.NoError(t, err)
	assert.False(t, ok, "чужак не может ломать в spawn")

	ok, _ = m.CanAct(member, inSpawn)
	assert.True(t, ok, "участник может")

	ok, _ = m.CanAct(stranger, vec.Vec3{X: 55, Y: 10, Z: 55})
	assert.True(t, ok, "allow_break открывает регион для всех")

	ok, _ = m.CanAct(stranger, vec.Vec3{X: 500, Y: 10, Z: 500})
	assert.True(t, ok, "глобальный регион не учитывается")

	assert.Equal(t, []string{"spawn"}, m.RegionsAt(inSpawn))
}

func TestNewManager_InvalidMember(t *testing.T) {
	_, err := NewManager(config.ProtectionConfig{Regions: []config.RegionConfig{
		{ID: "bad", Members: []string{"not-a-uuid"}},
	}}, nil)
	assert.ErrorIs(t, err, ErrInvalidRegion)
}

func TestReload_ReplacesRegions(t *testing.T) {
	agent := uuid.New()
	m, err := NewManager(config.ProtectionConfig{Regions: []config.RegionConfig{
		{ID: "a", Min: [3]int{0, 0, 0}, Max: [3]int{1, 1, 1}},
	}}, nil)
	require.NoError(t, err)

	ok, _ := m.CanAct(agent, vec.Vec3{})
	assert.False(t, ok)

	require.NoError(t, m.Reload(config.ProtectionConfig{}))
	ok, _ = m.CanAct(agent, vec.Vec3{})
	assert.True(t, ok)
}
