package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/annel0/mmo-tools/internal/auth"
	"github.com/annel0/mmo-tools/internal/config"
	"github.com/annel0/mmo-tools/internal/eventbus"
	"github.com/annel0/mmo-tools/internal/inventory"
	"github.com/annel0/mmo-tools/internal/logging"
	"github.com/annel0/mmo-tools/internal/middleware"
	"github.com/annel0/mmo-tools/internal/protection"
	"github.com/annel0/mmo-tools/internal/scheduler"
	"github.com/annel0/mmo-tools/internal/tools"
	"github.com/annel0/mmo-tools/internal/vec"
	"github.com/annel0/mmo-tools/internal/world"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// tickWait сколько админский запрос ждёт выполнения на тиковом потоке
const tickWait = 5 * time.Second

// RestServer административный REST API сервера инструментов
type RestServer struct {
	router     *gin.Engine
	http       *http.Server
	port       string
	metrics    *ServerMetrics
	logger     *logging.Logger
	tokens     *auth.TokenService
	service    *tools.Service
	inventory  *inventory.Store
	world      *world.World
	protection *protection.Manager
	bus        eventbus.EventBus
	sched      *scheduler.Scheduler
	reload     func() (*config.Config, error)
}

// Config содержит зависимости REST сервера
type Config struct {
	Port       string // Адрес, например ":8089"
	Tokens     *auth.TokenService
	Service    *tools.Service
	Inventory  *inventory.Store
	World      *world.World          // Необязательный, для статистики
	Protection *protection.Manager   // Необязательный, для статистики
	Bus        eventbus.EventBus     // Необязательный, для статистики
	Scheduler  *scheduler.Scheduler  // Если задан, изменения выполняются на тиковом потоке
	Registry   *prometheus.Registry  // Реестр для /metrics и метрик HTTP; nil - глобальный
	Metrics    *ServerMetrics        // nil - без метрик процесса
	Logger     *logging.Logger
	// Reload перечитывает конфигурацию и применяет её к сервису
	Reload func() (*config.Config, error)
}

// NewRestServer создает новый REST API сервер
func NewRestServer(cfg Config) *RestServer {
	if cfg.Port == "" {
		cfg.Port = ":8089"
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewServerMetrics(nil)
	}

	router := gin.New()        // без стандартного logger/recovery
	router.Use(gin.Recovery()) // добавим только recovery

	// === Observability middleware ===
	router.Use(otelgin.Middleware("tools_admin_api"))
	router.Use(middleware.NewRequestLogger(cfg.Logger).Handler())

	var promMw *middleware.PrometheusMiddleware
	if cfg.Registry != nil {
		promMw = middleware.NewPrometheusMiddleware("tools_admin_api", cfg.Registry, cfg.Registry)
	} else {
		promMw = middleware.NewPrometheusMiddleware("tools_admin_api", prometheus.DefaultRegisterer, nil)
	}
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router)

	rs := &RestServer{
		router:     router,
		port:       cfg.Port,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
		tokens:     cfg.Tokens,
		service:    cfg.Service,
		inventory:  cfg.Inventory,
		world:      cfg.World,
		protection: cfg.Protection,
		bus:        cfg.Bus,
		sched:      cfg.Scheduler,
		reload:     cfg.Reload,
	}
	rs.setupRoutes()
	return rs
}

// Handler возвращает http.Handler (используется в тестах)
func (rs *RestServer) Handler() http.Handler {
	return rs.router
}

// setupRoutes настраивает маршруты REST API
func (rs *RestServer) setupRoutes() {
	rs.router.GET("/health", rs.handleHealth)

	api := rs.router.Group("/api")
	api.Use(rs.jwtMiddleware())
	{
		api.GET("/stats", rs.handleStats)
		api.GET("/tools", rs.handleTools)

		admin := api.Group("/admin")
		admin.Use(rs.adminMiddleware())
		{
			admin.POST("/agents/:id/use", rs.handleUse)
			admin.POST("/agents/:id/cancel", rs.handleCancel)
			admin.DELETE("/agents/:id/cooldowns", rs.handleClearCooldowns)
			admin.POST("/agents/:id/give", rs.handleGive)
			admin.GET("/agents/:id/inventory", rs.handleInventory)
			admin.POST("/reload", rs.handleReload)
		}
	}
}

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// UseRequest запуск инструмента от имени агента
type UseRequest struct {
	Kind   string  `json:"kind" binding:"required"`
	X      int     `json:"x"`
	Y      int     `json:"y"`
	Z      int     `json:"z"`
	Face   string  `json:"face"`
	Yaw    float64 `json:"yaw"`
	Pitch  float64 `json:"pitch"`
	ToolID string  `json:"tool_id"` // Пусто - без инструмента (без износа)
	Immune bool    `json:"immune"`
}

// UseResponse итог запуска
type UseResponse struct {
	Kind             string  `json:"kind"`
	Started          bool    `json:"started"`
	Cells            int     `json:"cells"`
	Reason           string  `json:"reason,omitempty"`
	RemainingSeconds float64 `json:"remaining_seconds,omitempty"`
	Error            string  `json:"error,omitempty"`
}

// GiveRequest выдача инструмента
type GiveRequest struct {
	Kind string `json:"kind" binding:"required"`
}

// agentParam разбирает :id; при ошибке отвечает 400
func agentParam(c *gin.Context) (uuid.UUID, bool) {
	agent, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Неверный идентификатор агента",
		})
		return uuid.Nil, false
	}
	return agent, true
}

// loadAgent разбирает :id и подгружает инвентарь агента из хранилища
func (rs *RestServer) loadAgent(c *gin.Context) (uuid.UUID, bool) {
	agent, ok := agentParam(c)
	if !ok {
		return agent, false
	}
	if err := rs.inventory.Ensure(c.Request.Context(), agent); err != nil {
		rs.logger.OrDefault().Error("❌ Не удалось загрузить инвентарь агента %s: %v", agent, err)
		c.JSON(http.StatusServiceUnavailable, GenericResponse{
			Success: false,
			Message: "Хранилище инвентарей недоступно",
		})
		return agent, false
	}
	return agent, true
}

// kindParam разбирает вид инструмента по ключу конфигурации или тегу
func kindParam(c *gin.Context, key string) (tools.ToolKind, bool) {
	kind, ok := tools.KindFromConfigKey(key)
	if !ok {
		kind, ok = tools.KindFromTag(key)
	}
	if !ok {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Неизвестный вид инструмента: " + key,
		})
	}
	return kind, ok
}

// onTick выполняет fn на тиковом потоке и ждёт завершения
func (rs *RestServer) onTick(ctx context.Context, fn func()) error {
	if rs.sched == nil {
		fn()
		return nil
	}

	done := make(chan struct{})
	rs.sched.Submit("admin-api", func() {
		fn()
		close(done)
	})

	ctx, cancel := context.WithTimeout(ctx, tickWait)
	defer cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// handleUse запускает инструмент от имени агента
func (rs *RestServer) handleUse(c *gin.Context) {
	agent, ok := rs.loadAgent(c)
	if !ok {
		return
	}
	var req UseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Неверный формат запроса",
		})
		return
	}
	kind, ok := kindParam(c, req.Kind)
	if !ok {
		return
	}

	toolReq := tools.Request{
		Agent: agent,
		Cell:  vec.Vec3{X: req.X, Y: req.Y, Z: req.Z},
		Orientation: tools.Orientation{
			Face:  tools.ParseFace(req.Face),
			Yaw:   req.Yaw,
			Pitch: req.Pitch,
		},
		Immune: req.Immune,
	}
	if req.ToolID != "" {
		id, err := uuid.Parse(req.ToolID)
		if err != nil {
			c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: "Неверный идентификатор инструмента"})
			return
		}
		tool, err := rs.inventory.Tool(agent, id)
		if errors.Is(err, inventory.ErrToolNotFound) {
			c.JSON(http.StatusNotFound, GenericResponse{Success: false, Message: "Инструмент не найден"})
			return
		}
		toolReq.Tool = tool
	}

	var res tools.Result
	ctx := c.Request.Context()
	if err := rs.onTick(ctx, func() { res = rs.service.Use(ctx, kind, toolReq) }); err != nil {
		c.JSON(http.StatusGatewayTimeout, GenericResponse{Success: false, Message: "Тиковый цикл не ответил"})
		return
	}

	resp := UseResponse{Kind: kind.ConfigKey(), Started: res.Started, Cells: res.Cells}
	if !res.Started {
		resp.Reason = res.Rejection.Reason.String()
		resp.RemainingSeconds = res.Rejection.Remaining.Seconds()
	}
	if res.Err != nil {
		resp.Error = res.Err.Error()
	}

	status := http.StatusOK
	message := "Инструмент сработал"
	switch {
	case res.Err != nil && !res.Started:
		status, message = http.StatusServiceUnavailable, "Сервис не готов"
	case res.Err != nil:
		message = "Инструмент сработал частично"
	case !res.Started:
		status, message = http.StatusConflict, "Запуск отклонён: "+res.Rejection.String()
	}
	c.JSON(status, GenericResponse{Success: res.Started, Message: message, Data: resp})
}

// handleCancel останавливает постепенную операцию агента
func (rs *RestServer) handleCancel(c *gin.Context) {
	agent, ok := agentParam(c)
	if !ok {
		return
	}
	var cancelled bool
	if err := rs.onTick(c.Request.Context(), func() { cancelled = rs.service.Cancel(agent) }); err != nil {
		c.JSON(http.StatusGatewayTimeout, GenericResponse{Success: false, Message: "Тиковый цикл не ответил"})
		return
	}
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Операция остановлена",
		Data:    gin.H{"cancelled": cancelled},
	})
}

// handleClearCooldowns снимает перезарядки агента
func (rs *RestServer) handleClearCooldowns(c *gin.Context) {
	agent, ok := agentParam(c)
	if !ok {
		return
	}
	rs.service.ClearCooldowns(agent)
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Перезарядки сняты"})
}

// handleGive выдаёт агенту инструмент с прочностью из конфигурации
func (rs *RestServer) handleGive(c *gin.Context) {
	agent, ok := rs.loadAgent(c)
	if !ok {
		return
	}
	var req GiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: "Неверный формат запроса"})
		return
	}
	kind, ok := kindParam(c, req.Kind)
	if !ok {
		return
	}

	tc, _ := rs.service.Config().Tool(kind.ConfigKey())
	tool := inventory.NewTool(kind.Tag(), tc.MaxDurability)
	rs.inventory.GiveTool(agent, tool)
	rs.logger.OrDefault().Info("🎁 Агенту %s выдан %s (%s)", agent, kind, tool.ID)

	c.JSON(http.StatusCreated, GenericResponse{
		Success: true,
		Message: "Инструмент выдан",
		Data:    tool.View(),
	})
}

// handleInventory возвращает инвентарь агента
func (rs *RestServer) handleInventory(c *gin.Context) {
	agent, ok := rs.loadAgent(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Инвентарь получен",
		Data:    rs.inventory.Snapshot(agent),
	})
}

// handleReload перечитывает конфигурацию
func (rs *RestServer) handleReload(c *gin.Context) {
	if rs.reload == nil {
		c.JSON(http.StatusNotImplemented, GenericResponse{Success: false, Message: "Перезагрузка не настроена"})
		return
	}
	cfg, err := rs.reload()
	if err != nil {
		rs.logger.OrDefault().Warn("⚠️ Перезагрузка конфигурации не удалась: %v", err)
		c.JSON(http.StatusUnprocessableEntity, GenericResponse{Success: false, Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Конфигурация перезагружена",
		Data:    gin.H{"tools": len(cfg.Tools), "regions": len(cfg.Protection.Regions)},
	})
}

// handleTools возвращает виды инструментов и их настройки
func (rs *RestServer) handleTools(c *gin.Context) {
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Список инструментов получен",
		Data:    rs.service.Stats().Kinds,
	})
}

// handleStats возвращает статистику сервера
func (rs *RestServer) handleStats(c *gin.Context) {
	stats := make(map[string]interface{})

	stats["tools"] = rs.service.Stats()

	persisted, destroyed := rs.inventory.Stats()
	stats["inventory"] = gin.H{"tools_persisted": persisted, "tools_destroyed": destroyed, "unsaved": rs.inventory.Dirty()}

	if rs.world != nil {
		stats["world"] = rs.world.Stats()
	}
	if rs.protection != nil {
		stats["protection"] = gin.H{"regions": rs.protection.Count()}
	}
	if rs.bus != nil {
		stats["eventbus"] = rs.bus.Metrics()
	}
	if rs.sched != nil {
		stats["scheduler"] = gin.H{"tick": rs.sched.CurrentTick(), "pending": rs.sched.Pending()}
	}

	stats["server"] = gin.H{
		"uptime":      rs.metrics.GetUptime(),
		"process":     rs.metrics.Process(),
		"server_time": time.Now().Unix(),
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Статистика получена",
		Data:    stats,
	})
}

// handleHealth проверка состояния сервера
func (rs *RestServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Unix(),
	})
}

// Start запускает REST сервер и блокируется до Stop
func (rs *RestServer) Start() error {
	rs.http = &http.Server{
		Addr:              rs.port,
		Handler:           rs.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	rs.logger.OrDefault().Info("🌐 Admin API слушает %s", rs.port)
	if err := rs.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop корректно останавливает REST сервер
func (rs *RestServer) Stop(ctx context.Context) error {
	if rs.http == nil {
		return nil
	}
	return rs.http.Shutdown(ctx)
}
