package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindFromTag(t *testing.T) {
	for _, kind := range Kinds {
		got, ok := KindFromTag(kind.Tag())
		assert.True(t, ok, kind.String())
		assert.Equal(t, kind, got)
	}

	_, ok := KindFromTag("veinminer")
	assert.False(t, ok, "тег без пространства имён")
	_, ok = KindFromTag("other:veinminer")
	assert.False(t, ok)
	_, ok = KindFromTag("vitems:excavator")
	assert.False(t, ok)
}

func TestKindFromConfigKey(t *testing.T) {
	kind, ok := KindFromConfigKey("Tree_Capitator")
	assert.True(t, ok)
	assert.Equal(t, TreeCapitator, kind)

	_, ok = KindFromConfigKey("hammer")
	assert.False(t, ok)
}

func TestKind_Properties(t *testing.T) {
	assert.Equal(t, "vitems:3x3pickaxe", Pickaxe3x3.Tag())
	assert.False(t, Pickaxe3x3.Progressive())
	assert.False(t, Shovel3x3.Progressive())
	assert.True(t, Veinminer.Progressive())
	assert.True(t, TreeCapitator.Progressive())

	assert.Equal(t, "", KindUnknown.Tag())
	assert.Equal(t, "Unknown", KindUnknown.String())
}
