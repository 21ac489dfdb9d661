package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/annel0/mmo-tools/internal/classify"
	"github.com/annel0/mmo-tools/internal/config"
	"github.com/annel0/mmo-tools/internal/logging"
	"github.com/annel0/mmo-tools/internal/scheduler"
	"github.com/annel0/mmo-tools/internal/vec"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrNotStarted сервис ещё не подключён к планировщику
var ErrNotStarted = errors.New("tool service is not attached to a scheduler")

// Типы событий жизненного цикла операций
const (
	EventToolStarted  = "ToolStarted"
	EventToolRejected = "ToolRejected"
	EventToolFinished = "ToolFinished"
)

// Events получатель событий жизненного цикла (шина событий хоста).
// Emit вызывается из тика и не должен ждать ввода-вывода.
type Events interface {
	Emit(ctx context.Context, eventType string, fields map[string]any) error
}

// Options зависимости сервиса
type Options struct {
	World     World
	Access    AccessControl // nil - всё разрешено
	Inventory Inventory
	Notifier  Notifier // Необязательный
	Events    Events   // Необязательный
	Config    *config.Config
	// Predicates переопределяют выражения классификации из конфигурации (используется в тестах)
	Predicates map[ToolKind]Predicate
	Clock      func() time.Time
	Logger     *logging.Logger
	Metrics    *Metrics
}

// run постепенная операция агента в процессе
type run struct {
	kind      ToolKind
	exec      *Executor
	handle    *scheduler.Handle
	startTick uint64
}

// snapshot согласованный набор конфигурации и операций
type snapshot struct {
	cfg *config.Config
	ops map[ToolKind]ToolOperation
}

// Service точка входа многоблочных инструментов: проверки допуска, запуск операций,
// учёт занятости и перезарядки, административные операции.
type Service struct {
	env
	notifier   Notifier
	events     Events
	predicates map[ToolKind]Predicate
	tracer     trace.Tracer

	guard     *ActivityGuard
	cooldowns *CooldownStore

	mu    sync.RWMutex
	snap  snapshot
	sched *scheduler.Scheduler
	sweep *scheduler.Handle

	runsMu sync.Mutex
	runs   map[uuid.UUID]*run
}

// NewService создаёт сервис и компилирует выражения классификации из конфигурации
func NewService(opts Options) (*Service, error) {
	if opts.World == nil || opts.Inventory == nil {
		return nil, errors.New("tool service requires world and inventory")
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}

	s := &Service{
		env: env{
			world:   opts.World,
			access:  opts.Access,
			inv:     opts.Inventory,
			logger:  opts.Logger,
			metrics: opts.Metrics,
		},
		notifier:   opts.Notifier,
		events:     opts.Events,
		predicates: opts.Predicates,
		tracer:     otel.Tracer("github.com/annel0/mmo-tools/internal/tools"),
		guard:      NewActivityGuard(),
		cooldowns:  NewCooldownStore(opts.Clock),
		runs:       make(map[uuid.UUID]*run),
	}

	snap, err := s.build(cfg)
	if err != nil {
		return nil, err
	}
	s.snap = snap
	return s, nil
}

// build собирает операции по конфигурации
func (s *Service) build(cfg *config.Config) (snapshot, error) {
	ops := make(map[ToolKind]ToolOperation, len(Kinds))
	for _, kind := range Kinds {
		tc, ok := cfg.Tool(kind.ConfigKey())
		if !ok {
			continue
		}

		pred, ok := s.predicates[kind]
		if !ok {
			c, err := classify.Compile(tc.Accept)
			if err != nil {
				return snapshot{}, fmt.Errorf("tools.%s.accept: %w", kind.ConfigKey(), err)
			}
			pred = c.Accepts
		}

		if kind.Progressive() {
			ops[kind] = NewProgressiveRegion(kind, pred, s.env)
		} else {
			ops[kind] = NewInstantArea(kind, pred, s.env)
		}
	}
	return snapshot{cfg: cfg, ops: ops}, nil
}

func (s *Service) current() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Start подключает сервис к тиковому циклу и планирует очистку перезарядок
func (s *Service) Start(sched *scheduler.Scheduler) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sched = sched
	s.scheduleSweepLocked()
	s.logger.OrDefault().Info("🛠️ Сервис инструментов запущен: %d видов, очистка каждые %d тиков",
		len(s.snap.ops), s.snap.cfg.Settings.CooldownSweepTicks)
}

// scheduleSweepLocked (пере)планирует очистку. Вызывать под s.mu.
func (s *Service) scheduleSweepLocked() {
	if s.sched == nil {
		return
	}
	s.sweep.Cancel()

	period := s.snap.cfg.Settings.CooldownSweepTicks
	if period <= 0 {
		s.sweep = nil
		return
	}
	s.sweep = s.sched.RunTimer("cooldown-sweep", period, period, func(*scheduler.Handle) error {
		s.SweepCooldowns()
		return nil
	})
}

// SweepCooldowns удаляет истёкшие перезарядки и обновляет метрику
func (s *Service) SweepCooldowns() int {
	n := s.cooldowns.Sweep()
	s.metrics.setCooldowns(s.cooldowns.Len())
	if n > 0 {
		s.logger.OrDefault().Debug("🧹 Удалено истёкших перезарядок: %d", n)
	}
	return n
}

// Reconfigure атомарно подменяет конфигурацию. Идущие операции доигрывают со старой.
func (s *Service) Reconfigure(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	snap, err := s.build(cfg)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	resweep := s.snap.cfg.Settings.CooldownSweepTicks != cfg.Settings.CooldownSweepTicks
	s.snap = snap
	if resweep {
		s.scheduleSweepLocked()
	}
	s.logger.OrDefault().Info("🔄 Конфигурация инструментов обновлена")
	return nil
}

// HandleBreak обрабатывает разрушение клетки инструментом в руке.
// false, если инструмент не относится к многоблочным.
func (s *Service) HandleBreak(ctx context.Context, req Request) bool {
	if req.Tool == nil {
		return false
	}
	kind, ok := KindFromTag(req.Tool.Tag)
	if !ok {
		return false
	}
	s.Use(ctx, kind, req)
	return true
}

// Use запускает операцию инструмента. Для постепенных видов Started означает только принятие запуска.
func (s *Service) Use(ctx context.Context, kind ToolKind, req Request) Result {
	ctx, span := s.tracer.Start(ctx, "tools.Use", trace.WithAttributes(
		attribute.String("tool.kind", kind.ConfigKey()),
		attribute.String("agent.id", req.Agent.String()),
		attribute.String("cell", req.Cell.String()),
	))
	defer span.End()

	res := s.use(ctx, kind, req)

	span.SetAttributes(
		attribute.Bool("tool.started", res.Started),
		attribute.Int("tool.cells", res.Cells),
	)
	if !res.Started {
		span.SetAttributes(attribute.String("tool.rejection", res.Rejection.Reason.String()))
	}
	if res.Err != nil {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.Err.Error())
	}
	return res
}

func (s *Service) use(ctx context.Context, kind ToolKind, req Request) Result {
	snap := s.current()

	op, ok := snap.ops[kind]
	if !ok {
		if _, known := kindInfo[kind]; known {
			return s.reject(ctx, kind, req.Agent, Rejection{Reason: ReasonDisabled})
		}
		return s.reject(ctx, kind, req.Agent, Rejection{Reason: ReasonUnknownKind})
	}
	tc, _ := snap.cfg.Tool(kind.ConfigKey())
	if !tc.Enabled {
		return s.reject(ctx, kind, req.Agent, Rejection{Reason: ReasonDisabled})
	}
	if tc.HasCooldown {
		if left := s.cooldowns.Remaining(req.Agent, kind); left > 0 {
			return s.reject(ctx, kind, req.Agent, Rejection{Reason: ReasonCooldown, Remaining: left})
		}
	}
	if !s.canAct(req.Agent, req.Cell) {
		return s.reject(ctx, kind, req.Agent, Rejection{Reason: ReasonProtected})
	}
	if kind.Progressive() && s.guard.Active(req.Agent) {
		return s.reject(ctx, kind, req.Agent, Rejection{Reason: ReasonBusy})
	}
	if !op.Accepts(s.world.Classify(req.Cell)) {
		return s.reject(ctx, kind, req.Agent, Rejection{Reason: ReasonNotApplicable})
	}

	if !kind.Progressive() {
		res, _ := op.Execute(req, tc, nil)
		s.applyCooldown(req.Agent, kind, tc)
		s.metrics.incStarted(kind)
		s.emit(ctx, EventToolStarted, kind, req.Agent, map[string]any{"cells": res.Cells, "cell": cellFields(req.Cell)})
		return res
	}
	return s.startProgressive(ctx, op, req, tc)
}

// startProgressive строит регион, занимает агента и планирует исполнителя
func (s *Service) startProgressive(ctx context.Context, op ToolOperation, req Request, tc config.ToolConfig) Result {
	kind := op.Kind()

	s.mu.RLock()
	sched := s.sched
	s.mu.RUnlock()
	if sched == nil {
		return Result{Kind: kind, Err: ErrNotStarted}
	}

	if !s.guard.TryAcquire(req.Agent) {
		return s.reject(ctx, kind, req.Agent, Rejection{Reason: ReasonBusy})
	}

	r := &run{kind: kind, startTick: sched.CurrentTick()}
	res, exec := op.Execute(req, tc, func(st State) { s.finishRun(req.Agent, r, st) })
	if exec == nil {
		s.guard.Release(req.Agent)
		return s.reject(ctx, kind, req.Agent, res.Rejection)
	}
	r.exec = exec

	// Регистрация и планирование под одной блокировкой: finishRun с тикового потока
	// не увидит запуск без дескриптора
	s.runsMu.Lock()
	s.runs[req.Agent] = r
	r.handle = exec.Schedule(sched)
	active := len(s.runs)
	s.runsMu.Unlock()

	s.applyCooldown(req.Agent, kind, tc)

	s.metrics.incStarted(kind)
	s.metrics.setActive(active)
	s.logger.OrDefault().Debug("⛏️ %s агента %s: регион %d клеток, шаг %d тиков", kind, req.Agent, exec.Len(), exec.DelayTicks())
	s.emit(ctx, EventToolStarted, kind, req.Agent, map[string]any{"cells": res.Cells, "cell": cellFields(req.Cell)})
	return res
}

// finishRun освобождает агента после завершения или отмены исполнителя
func (s *Service) finishRun(agent uuid.UUID, r *run, st State) {
	s.runsMu.Lock()
	if s.runs[agent] == r {
		delete(s.runs, agent)
	}
	handle := r.handle
	active := len(s.runs)
	s.runsMu.Unlock()

	handle.Cancel()
	s.guard.Release(agent)
	s.metrics.setActive(active)

	applied, skipped := r.exec.Counts()
	s.logger.OrDefault().Debug("🏁 %s агента %s: %s, сломано %d, пропущено %d", r.kind, agent, st, applied, skipped)
	s.emit(context.Background(), EventToolFinished, r.kind, agent, map[string]any{
		"state":   st.String(),
		"applied": applied,
		"skipped": skipped,
	})
}

func (s *Service) applyCooldown(agent uuid.UUID, kind ToolKind, tc config.ToolConfig) {
	if !tc.HasCooldown || tc.CooldownSeconds <= 0 {
		return
	}
	s.cooldowns.Set(agent, kind, time.Duration(tc.CooldownSeconds*float64(time.Second)))
}

func (s *Service) reject(ctx context.Context, kind ToolKind, agent uuid.UUID, r Rejection) Result {
	s.metrics.incRejected(kind, r.Reason)
	if s.notifier != nil {
		s.notifier.Rejected(agent, kind, r)
	}
	fields := map[string]any{"reason": r.Reason.String()}
	if r.Reason == ReasonCooldown {
		fields["remaining_seconds"] = r.Remaining.Seconds()
	}
	s.emit(ctx, EventToolRejected, kind, agent, fields)
	return Result{Kind: kind, Rejection: r}
}

func (s *Service) emit(ctx context.Context, eventType string, kind ToolKind, agent uuid.UUID, fields map[string]any) {
	if s.events == nil {
		return
	}
	fields["kind"] = kind.ConfigKey()
	fields["agent"] = agent.String()
	if err := s.events.Emit(ctx, eventType, fields); err != nil {
		s.logger.OrDefault().Warn("⚠️ Не удалось опубликовать %s: %v", eventType, err)
	}
}

func cellFields(c vec.Vec3) map[string]any {
	return map[string]any{"x": c.X, "y": c.Y, "z": c.Z}
}

// Cancel останавливает постепенную операцию агента (например, при отключении)
func (s *Service) Cancel(agent uuid.UUID) bool {
	s.runsMu.Lock()
	r, ok := s.runs[agent]
	s.runsMu.Unlock()

	if ok {
		r.exec.Cancel()
	}
	s.guard.Release(agent)
	return ok
}

// CancelAll останавливает операцию агента и снимает его перезарядки
func (s *Service) CancelAll(agent uuid.UUID) {
	s.Cancel(agent)
	s.cooldowns.ClearAgent(agent)
	s.metrics.setCooldowns(s.cooldowns.Len())
}

// ClearCooldowns снимает перезарядки агента, не трогая идущую операцию
func (s *Service) ClearCooldowns(agent uuid.UUID) {
	s.cooldowns.ClearAgent(agent)
	s.metrics.setCooldowns(s.cooldowns.Len())
}

// Shutdown останавливает все операции и очищает состояние
func (s *Service) Shutdown() {
	s.runsMu.Lock()
	runs := make([]*run, 0, len(s.runs))
	for _, r := range s.runs {
		runs = append(runs, r)
	}
	s.runsMu.Unlock()

	for _, r := range runs {
		r.exec.Cancel()
	}

	s.mu.Lock()
	s.sweep.Cancel()
	s.sweep = nil
	s.mu.Unlock()

	s.guard.ClearAll()
	s.cooldowns.ClearAll()
	s.metrics.setActive(0)
	s.metrics.setCooldowns(0)
	s.logger.OrDefault().Info("🛑 Сервис инструментов остановлен, отменено операций: %d", len(runs))
}

// Remaining возвращает остаток перезарядки агента
func (s *Service) Remaining(agent uuid.UUID, kind ToolKind) time.Duration {
	return s.cooldowns.Remaining(agent, kind)
}

// Busy сообщает, идёт ли у агента постепенная операция
func (s *Service) Busy(agent uuid.UUID) bool {
	return s.guard.Active(agent)
}

// KindStats состояние вида инструмента
type KindStats struct {
	Key         string `json:"key"`
	Tag         string `json:"tag"`
	Enabled     bool   `json:"enabled"`
	Progressive bool   `json:"progressive"`
	MaxBlocks   int    `json:"max_blocks"`
	Accept      string `json:"accept"`
}

// RunStats состояние идущей операции
type RunStats struct {
	Agent     uuid.UUID `json:"agent"`
	Kind      string    `json:"kind"`
	Index     int       `json:"index"`
	Cells     int       `json:"cells"`
	StartTick uint64    `json:"start_tick"`
}

// Stats сводка сервиса
type Stats struct {
	ActiveRuns      int         `json:"active_runs"`
	CooldownRecords int         `json:"cooldown_records"`
	Kinds           []KindStats `json:"kinds"`
	Runs            []RunStats  `json:"runs"`
}

// Stats возвращает сводку для админки
func (s *Service) Stats() Stats {
	snap := s.current()
	st := Stats{
		ActiveRuns:      s.guard.Count(),
		CooldownRecords: s.cooldowns.Len(),
		Kinds:           []KindStats{},
		Runs:            []RunStats{},
	}

	for _, kind := range Kinds {
		tc, ok := snap.cfg.Tool(kind.ConfigKey())
		st.Kinds = append(st.Kinds, KindStats{
			Key:         kind.ConfigKey(),
			Tag:         kind.Tag(),
			Enabled:     ok && tc.Enabled,
			Progressive: kind.Progressive(),
			MaxBlocks:   tc.MaxBlocks,
			Accept:      tc.Accept,
		})
	}

	s.runsMu.Lock()
	for agent, r := range s.runs {
		st.Runs = append(st.Runs, RunStats{
			Agent:     agent,
			Kind:      r.kind.ConfigKey(),
			Index:     r.exec.Index(),
			Cells:     r.exec.Len(),
			StartTick: r.startTick,
		})
	}
	s.runsMu.Unlock()
	sort.Slice(st.Runs, func(i, j int) bool { return st.Runs[i].Agent.String() < st.Runs[j].Agent.String() })
	return st
}

// Config возвращает текущую конфигурацию
func (s *Service) Config() *config.Config {
	return s.current().cfg
}
