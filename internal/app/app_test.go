package app

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/annel0/mmo-tools/internal/config"
	"github.com/annel0/mmo-tools/internal/eventbus"
	"github.com/annel0/mmo-tools/internal/inventory"
	"github.com/annel0/mmo-tools/internal/logging"
	"github.com/annel0/mmo-tools/internal/storage"
	"github.com/annel0/mmo-tools/internal/tools"
	"github.com/annel0/mmo-tools/internal/vec"
	"github.com/annel0/mmo-tools/internal/world/block"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	types map[string]int
}

func (r *recorder) handle(_ context.Context, ev *eventbus.Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[ev.EventType]++
}

func (r *recorder) count(t string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.types[t]
}

func newTestApp(t *testing.T, path string) (*App, *recorder) {
	t.Helper()
	cfg, err := config.Load(path)
	require.NoError(t, err)

	a, err := New(context.Background(), Options{
		Config:     cfg,
		ConfigPath: path,
		Logger:     logging.NewWriterLogger("app", io.Discard, logging.ParseLevel("error")),
		Bus:        eventbus.NewMemoryBus(256),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Stop(context.Background()) })

	rec := &recorder{types: make(map[string]int)}
	_, err = a.Bus.Subscribe(context.Background(), eventbus.Filter{}, rec.handle)
	require.NoError(t, err)
	return a, rec
}

func TestApp_PickaxePublishesEvents(t *testing.T) {
	a, rec := newTestApp(t, "")

	agent := uuid.New()
	center := vec.Vec3{X: 0, Y: 300, Z: 0}
	for dx := -1; dx <= 1; dx++ {
		for dz := -1; dz <= 1; dz++ {
			require.NoError(t, a.World.SetMaterial(vec.Vec3{X: dx, Y: 300, Z: dz}, block.Cobblestone))
		}
	}

	tool := inventory.NewTool(tools.Pickaxe3x3.Tag(), 100)
	a.Inventory.GiveTool(agent, tool)

	res := a.Service.Use(context.Background(), tools.Pickaxe3x3, tools.Request{
		Agent:       agent,
		Cell:        center,
		Orientation: tools.Orientation{Face: tools.FaceUp},
		Tool:        tool,
	})
	require.NoError(t, res.Err)
	assert.True(t, res.Started)
	assert.Equal(t, 9, res.Cells)
	assert.Equal(t, 9, a.Inventory.Count(agent, block.Cobblestone))
	assert.Equal(t, 9, tool.Damage(), "износ по числу удалённых клеток")

	require.Eventually(t, func() bool {
		return rec.count(EventBlockRemoved) == 9 &&
			rec.count(EventFeedback) == 9 &&
			rec.count(tools.EventToolStarted) == 1
	}, 2*time.Second, 10*time.Millisecond, "события мира и инструмента должны попасть в шину")
}

func TestApp_VeinminerRunsOnScheduler(t *testing.T) {
	a, rec := newTestApp(t, "")

	agent := uuid.New()
	ore := []vec.Vec3{{X: 5, Y: 300, Z: 5}, {X: 6, Y: 300, Z: 5}, {X: 6, Y: 301, Z: 5}}
	for _, c := range ore {
		require.NoError(t, a.World.SetMaterial(c, block.CoalOre))
	}

	res := a.Service.Use(context.Background(), tools.Veinminer, tools.Request{
		Agent:  agent,
		Cell:   ore[0],
		Immune: true,
	})
	require.True(t, res.Started)
	assert.Equal(t, 3, res.Cells)
	assert.True(t, a.Service.Busy(agent))

	for i := 0; i < 20 && a.Service.Busy(agent); i++ {
		a.Scheduler.Tick()
	}
	assert.False(t, a.Service.Busy(agent), "операция должна завершиться")
	for _, c := range ore {
		assert.Equal(t, block.Air, a.World.Classify(c))
	}
	assert.Zero(t, a.Inventory.Count(agent, block.Coal), "иммунный агент не получает дроп")

	require.Eventually(t, func() bool {
		return rec.count(tools.EventToolFinished) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestApp_Reload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tools.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tools:\n  veinminer:\n    max_blocks: 16\n"), 0o644))

	a, _ := newTestApp(t, path)
	tc, ok := a.Config().Tool(config.KeyVeinminer)
	require.True(t, ok)
	assert.Equal(t, 16, tc.MaxBlocks)

	require.NoError(t, os.WriteFile(path, []byte("tools:\n  veinminer:\n    enabled: false\n"+
		"protection:\n  regions:\n    - id: spawn\n      min: [0, 0, 0]\n      max: [10, 10, 10]\n"), 0o644))

	cfg, err := a.Reload()
	require.NoError(t, err)
	assert.False(t, cfg.Tools[config.KeyVeinminer].Enabled)
	assert.Equal(t, 1, a.Protection.Count())

	res := a.Service.Use(context.Background(), tools.Veinminer, tools.Request{Agent: uuid.New(), Cell: vec.Vec3{Y: 300}})
	assert.Equal(t, tools.ReasonDisabled, res.Rejection.Reason)

	require.NoError(t, os.WriteFile(path, []byte("server:\n  tick_rate: 0\n"), 0o644))
	_, err = a.Reload()
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
	tc, _ = a.Config().Tool(config.KeyVeinminer)
	assert.False(t, tc.Enabled, "ошибочная конфигурация не применяется")
}

func TestApp_HealthAndAdminToken(t *testing.T) {
	a, _ := newTestApp(t, "")

	w := httptest.NewRecorder()
	a.API.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	token, err := a.IssueAdminToken()
	require.NoError(t, err)
	claims, err := a.Tokens.Validate(token)
	require.NoError(t, err)
	assert.True(t, claims.IsAdmin)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	a.API.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestApp_StopIsIdempotent(t *testing.T) {
	a, _ := newTestApp(t, "")
	require.NoError(t, a.Stop(context.Background()))
	require.NoError(t, a.Stop(context.Background()))

	res := a.Service.Use(context.Background(), tools.Pickaxe3x3, tools.Request{Agent: uuid.New(), Cell: vec.Vec3{Y: 300}})
	assert.False(t, res.Started)
}

func TestApp_StopFlushesInventories(t *testing.T) {
	repo := storage.NewMemoryInventoryRepo()
	a, err := New(context.Background(), Options{
		Logger: logging.NewWriterLogger("app", io.Discard, logging.ParseLevel("error")),
		Bus:    eventbus.NewMemoryBus(16),
		Repo:   repo,
	})
	require.NoError(t, err)

	agent := uuid.New()
	a.Inventory.AddItems(agent, []inventory.ItemStack{{Item: block.Coal, Amount: 4}})
	require.NoError(t, a.Stop(context.Background()))

	rec, found, err := repo.Load(context.Background(), agent)
	require.NoError(t, err)
	require.True(t, found, "при остановке инвентари сохраняются")
	assert.Equal(t, 4, rec.Items[0].Amount)
}

func TestApp_StopWithoutRunReturns(t *testing.T) {
	a, err := New(context.Background(), Options{
		Logger: logging.NewWriterLogger("app", io.Discard, logging.ParseLevel("error")),
		Bus:    eventbus.NewMemoryBus(16),
	})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- a.Stop(context.Background()) }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Stop без Run не вернулся")
	}
}

// slowBus имитирует ожидание подтверждения брокера на каждую публикацию
type slowBus struct {
	eventbus.EventBus
	delay time.Duration
}

func (b *slowBus) Publish(ctx context.Context, ev *eventbus.Envelope) error {
	time.Sleep(b.delay)
	return b.EventBus.Publish(ctx, ev)
}

func TestApp_SlowBusDoesNotStretchTick(t *testing.T) {
	a, err := New(context.Background(), Options{
		Logger: logging.NewWriterLogger("app", io.Discard, logging.ParseLevel("error")),
		Bus:    &slowBus{EventBus: eventbus.NewMemoryBus(64), delay: 300 * time.Millisecond},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Stop(context.Background()) })

	agent := uuid.New()
	cell := vec.Vec3{X: 3, Y: 300, Z: 3}
	require.NoError(t, a.World.SetMaterial(cell, block.CoalOre))

	start := time.Now()
	res := a.Service.Use(context.Background(), tools.Veinminer, tools.Request{Agent: agent, Cell: cell})
	require.True(t, res.Started)
	assert.Less(t, time.Since(start), 100*time.Millisecond, "запуск не ждёт шину")

	var longest time.Duration
	for i := 0; i < 20 && a.Service.Busy(agent); i++ {
		tickStart := time.Now()
		a.Scheduler.Tick()
		if took := time.Since(tickStart); took > longest {
			longest = took
		}
	}
	assert.False(t, a.Service.Busy(agent))
	assert.Equal(t, block.Air, a.World.Classify(cell))
	assert.Less(t, longest, 100*time.Millisecond, "медленная шина не растягивает тик")
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func TestApp_RunStopsTicksBeforeFinalFlush(t *testing.T) {
	port := freePort(t)
	path := filepath.Join(t.TempDir(), "tools.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf(
		"server:\n  rest_port: %d\n  tick_rate: 20\n"+
			"tools:\n  veinminer:\n    max_blocks: 64\n    animation_delay_ticks: 1\n", port)), 0o644))
	cfg, err := config.Load(path)
	require.NoError(t, err)

	repo := storage.NewMemoryInventoryRepo()
	a, err := New(context.Background(), Options{
		Config: cfg,
		Logger: logging.NewWriterLogger("app", io.Discard, logging.ParseLevel("error")),
		Bus:    eventbus.NewMemoryBus(256),
		Repo:   repo,
	})
	require.NoError(t, err)

	agent := uuid.New()
	for x := 0; x < 40; x++ {
		require.NoError(t, a.World.SetMaterial(vec.Vec3{X: x, Y: 300, Z: 20}, block.CoalOre))
	}

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- a.Run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/health", port))
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 3*time.Second, 20*time.Millisecond, "admin API должен подняться")

	res := a.Service.Use(context.Background(), tools.Veinminer, tools.Request{Agent: agent, Cell: vec.Vec3{X: 0, Y: 300, Z: 20}})
	require.True(t, res.Started)
	require.Eventually(t, func() bool {
		return a.Inventory.Count(agent, block.Coal) > 0
	}, 3*time.Second, 10*time.Millisecond, "операция идёт на тиках")

	cancel()
	select {
	case err := <-runErr:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run не завершился")
	}

	tick := a.Scheduler.CurrentTick()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, tick, a.Scheduler.CurrentTick(), "после Run тики не идут")

	rec, found, err := repo.Load(context.Background(), agent)
	require.NoError(t, err)
	require.True(t, found)
	saved := 0
	for _, st := range rec.Items {
		if st.Item == block.Coal {
			saved += st.Amount
		}
	}
	assert.Equal(t, a.Inventory.Count(agent, block.Coal), saved, "итоговое сохранение видит все дропы")
	assert.Zero(t, a.Inventory.Dirty())
}
