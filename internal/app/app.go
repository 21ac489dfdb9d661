package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/annel0/mmo-tools/internal/api"
	"github.com/annel0/mmo-tools/internal/auth"
	"github.com/annel0/mmo-tools/internal/config"
	"github.com/annel0/mmo-tools/internal/eventbus"
	"github.com/annel0/mmo-tools/internal/inventory"
	"github.com/annel0/mmo-tools/internal/logging"
	"github.com/annel0/mmo-tools/internal/observability"
	"github.com/annel0/mmo-tools/internal/protection"
	"github.com/annel0/mmo-tools/internal/scheduler"
	"github.com/annel0/mmo-tools/internal/storage"
	"github.com/annel0/mmo-tools/internal/tools"
	"github.com/annel0/mmo-tools/internal/world"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Version версия сервера для телеметрии
const Version = "0.3.0"

// Source имя источника событий
const Source = "mmo-tools"

// App собирает все компоненты сервера инструментов
type App struct {
	cfg        *config.Config
	configPath string
	logger     *logging.Logger

	Registry   *prometheus.Registry
	Bus        eventbus.EventBus
	World      *world.World
	Inventory  *inventory.Store
	Repo       inventory.Repository
	Protection *protection.Manager
	Scheduler  *scheduler.Scheduler
	Service    *tools.Service
	Tokens     *auth.TokenService
	API        *api.RestServer

	busExporter *eventbus.MetricsExporter
	busLog      eventbus.Subscription
	telemetry   observability.ShutdownFunc

	reloadMu sync.Mutex
	stopOnce sync.Once

	runMu     sync.Mutex
	runCancel context.CancelFunc
	schedDone chan struct{}
}

// Options параметры сборки
type Options struct {
	Config     *config.Config
	ConfigPath string // Путь для перезагрузки через API; пусто - перезагрузка берёт TOOLS_CONFIG
	Logger     *logging.Logger
	// Bus готовая шина; nil - по секции eventbus конфигурации
	Bus eventbus.EventBus
	// Repo готовый репозиторий инвентарей; nil - по секции storage конфигурации
	Repo inventory.Repository
}

// New собирает сервер, но не запускает тиковый цикл и HTTP
func New(ctx context.Context, opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &App{
		cfg:        cfg,
		configPath: opts.ConfigPath,
		logger:     opts.Logger,
		Registry:   prometheus.NewRegistry(),
	}
	log := a.logger.OrDefault()

	a.Registry.MustRegister(collectors.NewGoCollector())

	shutdown, err := observability.InitTelemetry(ctx, cfg.Telemetry, Version)
	if err != nil {
		log.Warn("⚠️ Телеметрия не запущена: %v", err)
		shutdown = func(context.Context) error { return nil }
	}
	a.telemetry = shutdown

	process, err := observability.NewProcessCollector("tools")
	if err != nil {
		log.Warn("⚠️ Метрики процесса недоступны: %v", err)
	} else {
		a.Registry.MustRegister(process)
	}

	bus := opts.Bus
	if bus == nil {
		bus = newBus(cfg.EventBus, log)
	}
	// Публикация идёт из тика: шина за очередью, тик не ждёт подтверждений
	a.Bus = eventbus.NewAsyncBus(bus, cfg.EventBus.Buffer, eventbus.DefaultPublishTimeout, a.logger)
	a.busExporter = eventbus.NewMetricsExporter(a.Bus, a.Registry)
	if a.busLog, err = eventbus.StartLoggingListener(a.Bus, a.logger); err != nil {
		return nil, fmt.Errorf("event bus listener: %w", err)
	}

	a.World = world.New(world.Options{
		Seed:   cfg.World.Seed,
		MinY:   cfg.World.MinY,
		MaxY:   cfg.World.MaxY,
		Logger: a.logger,
	})
	emitter := eventbus.NewEmitter(a.Bus, Source)
	a.World.Subscribe(worldBridge(emitter.WithPriority(1)))

	a.Repo = opts.Repo
	if a.Repo == nil {
		if a.Repo, err = storage.Open(cfg.Storage, a.logger); err != nil {
			return nil, fmt.Errorf("storage: %w", err)
		}
	}
	a.Inventory = inventory.NewPersistentStore(a.logger, a.Repo)

	if a.Protection, err = protection.NewManager(cfg.Protection, a.logger); err != nil {
		return nil, err
	}

	tickMetrics := observability.NewTickMetrics(a.Registry, cfg.Server.TickRate)
	a.Scheduler = scheduler.New(
		scheduler.WithLogger(a.logger),
		scheduler.WithTickObserver(tickMetrics.Observe),
	)

	a.Service, err = tools.NewService(tools.Options{
		World:     a.World,
		Access:    a.Protection,
		Inventory: a.Inventory,
		Notifier:  &logNotifier{logger: a.logger},
		Events:    emitter,
		Config:    cfg,
		Logger:    a.logger,
		Metrics:   tools.NewMetrics(a.Registry),
	})
	if err != nil {
		return nil, err
	}
	a.Service.Start(a.Scheduler)

	if a.Tokens, err = auth.NewTokenService(cfg.Auth.JWTSecret, auth.DefaultTTL); err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}

	a.API = a.newAPI(process)
	return a, nil
}

func (a *App) newAPI(pc *observability.ProcessCollector) *api.RestServer {
	return api.NewRestServer(api.Config{
		Port:       fmt.Sprintf(":%d", a.cfg.Server.GetRESTPort()),
		Tokens:     a.Tokens,
		Service:    a.Service,
		Inventory:  a.Inventory,
		World:      a.World,
		Protection: a.Protection,
		Bus:        a.Bus,
		Scheduler:  a.Scheduler,
		Registry:   a.Registry,
		Metrics:    api.NewServerMetrics(pc),
		Logger:     a.logger,
		Reload:     a.Reload,
	})
}

// newBus выбирает JetStream по URL, иначе in-memory шину
func newBus(cfg config.EventBusConfig, log *logging.Logger) eventbus.EventBus {
	if cfg.URL != "" {
		bus, err := eventbus.NewJetStreamBus(cfg.URL, cfg.Stream, time.Duration(cfg.Retention)*time.Hour)
		if err == nil {
			log.Info("📨 EventBus: JetStream %s, стрим %s", cfg.URL, cfg.Stream)
			return bus
		}
		log.Warn("⚠️ JetStream недоступен (%v), используем in-memory шину", err)
	}
	return eventbus.NewMemoryBus(cfg.Buffer)
}

// IssueAdminToken выпускает токен администратора для консоли
func (a *App) IssueAdminToken() (string, error) {
	return a.Tokens.Issue(uuid.New(), "console", true)
}

// Config возвращает текущую конфигурацию
func (a *App) Config() *config.Config {
	return a.Service.Config()
}

// Reload перечитывает файл конфигурации и применяет инструменты и защиту
func (a *App) Reload() (*config.Config, error) {
	a.reloadMu.Lock()
	defer a.reloadMu.Unlock()

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, err
	}
	if err := a.Service.Reconfigure(cfg); err != nil {
		return nil, err
	}
	if err := a.Protection.Reload(cfg.Protection); err != nil {
		return nil, err
	}
	a.cfg = cfg
	return cfg, nil
}

// Run крутит тиковый цикл и HTTP до отмены контекста или Stop, затем останавливает всё
func (a *App) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	schedDone := make(chan struct{})

	a.runMu.Lock()
	a.runCancel = cancel
	a.schedDone = schedDone
	a.runMu.Unlock()

	a.busExporter.Start(time.Second)

	if period := time.Duration(a.cfg.Storage.FlushSeconds) * time.Second; period > 0 {
		go a.flushLoop(runCtx, period)
	}

	errCh := make(chan error, 2)
	go func() {
		if err := a.API.Start(); err != nil {
			errCh <- fmt.Errorf("admin api: %w", err)
		}
	}()
	go func() {
		defer close(schedDone)
		if err := a.Scheduler.Run(runCtx, a.cfg.Server.TickRate); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("scheduler: %w", err)
		}
	}()

	a.logger.OrDefault().Info("✅ Сервер инструментов запущен: %d TPS, admin API :%d",
		a.cfg.Server.TickRate, a.cfg.Server.GetRESTPort())

	var runErr error
	select {
	case <-runCtx.Done():
	case runErr = <-errCh:
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if err := a.Stop(stopCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// stopTicking останавливает тиковый цикл и ждёт окончания текущего тика
func (a *App) stopTicking(ctx context.Context) error {
	a.runMu.Lock()
	cancel, done := a.runCancel, a.schedDone
	a.runMu.Unlock()
	if cancel == nil {
		return nil
	}

	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler: %w", ctx.Err())
	}
}

// Stop останавливает тики, операции, HTTP, шину и телеметрию. Повторный вызов безопасен.
// Операции отменяются только после последнего тика, поэтому итоговое сохранение видит все дропы.
func (a *App) Stop(ctx context.Context) error {
	var errs []error
	a.stopOnce.Do(func() {
		log := a.logger.OrDefault()
		log.Info("🛑 Остановка сервера инструментов...")

		if err := a.stopTicking(ctx); err != nil {
			errs = append(errs, err)
		}
		a.Service.Shutdown()
		a.Scheduler.CancelAll()

		if err := a.API.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("admin api: %w", err))
		}
		if err := a.flush(ctx); err != nil {
			errs = append(errs, err)
		}
		if err := a.Repo.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
		if a.busLog != nil {
			a.busLog.Unsubscribe()
		}
		if err := a.Bus.Close(); err != nil {
			errs = append(errs, fmt.Errorf("event bus: %w", err))
		}
		a.busExporter.Stop()
		if err := a.telemetry(ctx); err != nil {
			errs = append(errs, fmt.Errorf("telemetry: %w", err))
		}
	})
	return errors.Join(errs...)
}

// flushLoop периодически сохраняет изменённые инвентари
func (a *App) flushLoop(ctx context.Context, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.flush(ctx); err != nil {
				a.logger.OrDefault().Warn("⚠️ Автосохранение инвентарей: %v", err)
			}
		}
	}
}

func (a *App) flush(ctx context.Context) error {
	n, err := a.Inventory.Flush(ctx)
	if err != nil {
		return fmt.Errorf("inventory flush: %w", err)
	}
	if n > 0 {
		a.logger.OrDefault().Debug("💾 Сохранено инвентарей: %d", n)
	}
	return nil
}
