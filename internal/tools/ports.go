package tools

import (
	"fmt"
	"time"

	"github.com/annel0/mmo-tools/internal/inventory"
	"github.com/annel0/mmo-tools/internal/vec"
	"github.com/annel0/mmo-tools/internal/world/block"
	"github.com/google/uuid"
)

// World доступ к блокам мира
type World interface {
	Classify(cell vec.Vec3) block.Material
	Remove(cell vec.Vec3) error
	CollectDrops(cell vec.Vec3, tool *inventory.Tool) ([]inventory.ItemStack, error)
	EmitFeedback(cell vec.Vec3, effect block.Effect)
}

// AccessControl проверка права агента менять клетку.
// Ошибка или паника трактуются как разрешение.
type AccessControl interface {
	CanAct(agent uuid.UUID, cell vec.Vec3) (bool, error)
}

// Inventory инвентарь агентов
type Inventory interface {
	AddItems(agent uuid.UUID, items []inventory.ItemStack)
	PersistTool(agent uuid.UUID, tool *inventory.Tool)
	DestroyTool(agent uuid.UUID, tool *inventory.Tool)
}

// Notifier сообщает агенту, почему инструмент не сработал
type Notifier interface {
	Rejected(agent uuid.UUID, kind ToolKind, r Rejection)
}

// Predicate решает, подходит ли материал инструменту
type Predicate func(block.Material) bool

// Request использование инструмента агентом по клетке
type Request struct {
	Agent       uuid.UUID
	Cell        vec.Vec3
	Orientation Orientation
	Tool        *inventory.Tool
	// Immune агент не получает дропа и не изнашивает инструмент (творческий режим)
	Immune bool
}

// Reason причина отказа в запуске
type Reason uint8

const (
	ReasonNone Reason = iota
	ReasonDisabled
	ReasonBusy
	ReasonCooldown
	ReasonProtected
	ReasonNotApplicable
	ReasonUnknownKind
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonDisabled:
		return "disabled"
	case ReasonBusy:
		return "busy"
	case ReasonCooldown:
		return "cooldown"
	case ReasonProtected:
		return "protected"
	case ReasonNotApplicable:
		return "not_applicable"
	case ReasonUnknownKind:
		return "unknown_kind"
	default:
		return "unknown"
	}
}

// Rejection отказ в запуске операции
type Rejection struct {
	Reason    Reason
	Remaining time.Duration // Только для ReasonCooldown
}

func (r Rejection) String() string {
	if r.Reason == ReasonCooldown {
		return fmt.Sprintf("cooldown (%.1fs)", r.Remaining.Seconds())
	}
	return r.Reason.String()
}

// Result итог запуска. Для постепенных инструментов Started означает только принятие запуска.
type Result struct {
	Kind      ToolKind
	Started   bool
	Rejection Rejection
	Cells     int   // Мгновенные: удалено клеток; постепенные: размер региона
	Err       error // Сбой мира при мгновенной операции
}
