package tools

import (
	"testing"

	"github.com/annel0/mmo-tools/internal/inventory"
	"github.com/stretchr/testify/assert"
)

func TestApplyDamage(t *testing.T) {
	tool := inventory.NewTool(Veinminer.Tag(), 3)

	assert.Equal(t, Intact, ApplyDamage(tool, 1))
	assert.Equal(t, Intact, ApplyDamage(tool, 1))
	assert.Equal(t, 2, tool.Damage())
	assert.Equal(t, Exhausted, ApplyDamage(tool, 1))
	assert.Equal(t, 3, tool.Damage())
}

func TestApplyDamage_Overshoot(t *testing.T) {
	tool := inventory.NewTool(Pickaxe3x3.Tag(), 5)
	tool.SetDamage(4)
	assert.Equal(t, Exhausted, ApplyDamage(tool, 9))
}

func TestApplyDamage_Unbreakable(t *testing.T) {
	tool := inventory.NewTool(Pickaxe3x3.Tag(), 0)
	assert.Equal(t, Intact, ApplyDamage(tool, 100))
	assert.Equal(t, 0, tool.Damage(), "неразрушимый инструмент не изнашивается")

	assert.Equal(t, Intact, ApplyDamage(nil, 1))
}

func TestApplyDamage_NonPositiveAmount(t *testing.T) {
	tool := inventory.NewTool(Shovel3x3.Tag(), 10)
	tool.SetDamage(3)
	assert.Equal(t, Intact, ApplyDamage(tool, 0))
	assert.Equal(t, Intact, ApplyDamage(tool, -2))
	assert.Equal(t, 3, tool.Damage())
}
