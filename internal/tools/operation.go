package tools

import (
	"fmt"

	"github.com/annel0/mmo-tools/internal/config"
	"github.com/annel0/mmo-tools/internal/inventory"
	"github.com/annel0/mmo-tools/internal/logging"
	"github.com/annel0/mmo-tools/internal/vec"
	"github.com/annel0/mmo-tools/internal/world/block"
	"github.com/google/uuid"
)

// ToolOperation поведение одного вида инструмента.
// Проверки допуска (включён, перезарядка, защита опорной клетки, занятость) делает Service.
type ToolOperation interface {
	Kind() ToolKind
	// Accepts решает, подходит ли материал опорной клетки
	Accepts(m block.Material) bool
	// Execute выполняет операцию. Постепенные операции возвращают исполнителя,
	// которого вызывающий обязан запланировать; onFinish вызывается при его завершении.
	// Мгновенные операции возвращают nil и onFinish не вызывают.
	Execute(req Request, tc config.ToolConfig, onFinish func(State)) (Result, *Executor)
}

// env общие зависимости операций
type env struct {
	world   World
	access  AccessControl
	inv     Inventory
	logger  *logging.Logger
	metrics *Metrics
}

// canAct спрашивает защиту. Ошибка или паника трактуются как разрешение.
func (e *env) canAct(agent uuid.UUID, cell vec.Vec3) (allowed bool) {
	if e.access == nil {
		return true
	}
	defer func() {
		if r := recover(); r != nil {
			e.logger.OrDefault().Warn("⚠️ Паника проверки доступа в %v: %v, разрешаем", cell, r)
			allowed = true
		}
	}()

	ok, err := e.access.CanAct(agent, cell)
	if err != nil {
		e.logger.OrDefault().Warn("⚠️ Ошибка проверки доступа в %v: %v, разрешаем", cell, err)
		return true
	}
	return ok
}

// wearTool изнашивает инструмент и сообщает, сломан ли он
func (e *env) wearTool(kind ToolKind, agent uuid.UUID, tool *inventory.Tool, amount int) Wear {
	if tool == nil {
		return Intact
	}
	wear := ApplyDamage(tool, amount)
	if wear == Exhausted {
		e.inv.DestroyTool(agent, tool)
		e.metrics.incBroken(kind)
		return wear
	}
	e.inv.PersistTool(agent, tool)
	return wear
}

//================ Instant area =================//

// InstantArea ломает плоскость 3x3 вокруг опорной клетки за один вызов
type InstantArea struct {
	env
	kind   ToolKind
	accept Predicate
}

// NewInstantArea создаёт мгновенную операцию
func NewInstantArea(kind ToolKind, accept Predicate, e env) *InstantArea {
	return &InstantArea{env: e, kind: kind, accept: accept}
}

func (op *InstantArea) Kind() ToolKind { return op.kind }

func (op *InstantArea) Accepts(m block.Material) bool {
	return m != block.Air && op.accept(m)
}

// Execute удаляет подходящие клетки плоскости, не больше max_blocks.
// Сбой мира прерывает пакет; уже удалённые клетки остаются удалёнными.
func (op *InstantArea) Execute(req Request, tc config.ToolConfig, _ func(State)) (Result, *Executor) {
	res := Result{Kind: op.kind, Started: true}
	var drops []inventory.ItemStack

	for _, cell := range SelectPlane(req.Cell, req.Orientation) {
		if res.Cells >= tc.MaxBlocks {
			break
		}
		if !op.Accepts(op.world.Classify(cell)) {
			continue
		}
		if !op.canAct(req.Agent, cell) {
			op.metrics.incCell(op.kind, "skipped")
			continue
		}

		var cellDrops []inventory.ItemStack
		if !req.Immune {
			d, err := op.world.CollectDrops(cell, req.Tool)
			if err != nil {
				res.Err = fmt.Errorf("collect drops at %v: %w", cell, err)
				break
			}
			cellDrops = d
		}
		if err := op.world.Remove(cell); err != nil {
			res.Err = fmt.Errorf("remove %v: %w", cell, err)
			break
		}
		drops = append(drops, cellDrops...)
		op.world.EmitFeedback(cell, block.EffectBreak)
		op.metrics.incCell(op.kind, "applied")
		res.Cells++
	}

	if res.Err != nil {
		op.metrics.incCell(op.kind, "failed")
		op.logger.OrDefault().Error("❌ %s агента %s: %v", op.kind, req.Agent, res.Err)
	}

	if !req.Immune {
		op.inv.AddItems(req.Agent, drops)
		if res.Cells > 0 {
			op.wearTool(op.kind, req.Agent, req.Tool, res.Cells)
		}
	}
	return res, nil
}

//================ Progressive region =================//

// ProgressiveRegion находит связную область того же материала и ломает её по клетке за шаг
type ProgressiveRegion struct {
	env
	kind   ToolKind
	accept Predicate
}

// NewProgressiveRegion создаёт постепенную операцию
func NewProgressiveRegion(kind ToolKind, accept Predicate, e env) *ProgressiveRegion {
	return &ProgressiveRegion{env: e, kind: kind, accept: accept}
}

func (op *ProgressiveRegion) Kind() ToolKind { return op.kind }

func (op *ProgressiveRegion) Accepts(m block.Material) bool {
	return m != block.Air && op.accept(m)
}

// Execute строит регион и возвращает исполнителя. Клетка перед удалением перепроверяется:
// если материал сменился или доступ запрещён, шаг пропускается.
func (op *ProgressiveRegion) Execute(req Request, tc config.ToolConfig, onFinish func(State)) (Result, *Executor) {
	material := op.world.Classify(req.Cell)
	if !op.Accepts(material) {
		return Result{Kind: op.kind, Rejection: Rejection{Reason: ReasonNotApplicable}}, nil
	}

	sameMaterial := func(c vec.Vec3) bool { return op.world.Classify(c) == material }
	region := Explore(req.Cell, sameMaterial, tc.MaxBlocks)
	if len(region) == 0 {
		return Result{Kind: op.kind, Rejection: Rejection{Reason: ReasonNotApplicable}}, nil
	}
	op.metrics.observeRegion(op.kind, len(region))

	var exec *Executor
	apply := func(cell vec.Vec3) (Outcome, error) {
		if op.world.Classify(cell) != material {
			op.metrics.incCell(op.kind, "skipped")
			return Skipped, nil
		}
		if !op.canAct(req.Agent, cell) {
			op.metrics.incCell(op.kind, "skipped")
			return Skipped, nil
		}

		var drops []inventory.ItemStack
		if !req.Immune {
			d, err := op.world.CollectDrops(cell, req.Tool)
			if err != nil {
				op.metrics.incCell(op.kind, "failed")
				return Skipped, fmt.Errorf("collect drops at %v: %w", cell, err)
			}
			drops = d
		}
		if err := op.world.Remove(cell); err != nil {
			op.metrics.incCell(op.kind, "failed")
			return Skipped, fmt.Errorf("remove %v: %w", cell, err)
		}
		op.world.EmitFeedback(cell, block.EffectBreak)
		op.metrics.incCell(op.kind, "applied")

		if !req.Immune {
			op.inv.AddItems(req.Agent, drops)
			if op.wearTool(op.kind, req.Agent, req.Tool, 1) == Exhausted {
				op.logger.OrDefault().Info("💥 %s агента %s сломался, операция остановлена", op.kind, req.Agent)
				exec.Cancel()
			}
		}
		return Applied, nil
	}

	exec = NewExecutor(region, apply, ExecutorOptions{DelayTicks: tc.AnimationDelayTicks, OnFinish: onFinish})
	return Result{Kind: op.kind, Started: true, Cells: len(region)}, exec
}
