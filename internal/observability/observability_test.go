package observability

import (
	"context"
	"testing"
	"time"

	"github.com/annel0/mmo-tools/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitTelemetry_Disabled(t *testing.T) {
	shutdown, err := InitTelemetry(context.Background(), config.TelemetryConfig{Enabled: false}, "test")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestProcessCollector(t *testing.T) {
	pc, err := NewProcessCollector("tools")
	require.NoError(t, err)

	st := pc.Sample()
	assert.Greater(t, st.Goroutines, 0)
	assert.Greater(t, st.HeapAllocBytes, uint64(0))
	assert.Equal(t, st, pc.Sample(), "повторный вызов отдаёт кэш")

	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(pc))
	n, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestTickMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	tm := NewTickMetrics(reg, 20)

	tm.Observe(1, time.Millisecond)
	tm.Observe(2, 80*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(tm.current))
	assert.Equal(t, 1.0, testutil.ToFloat64(tm.overruns), "80мс больше бюджета 50мс")
}
