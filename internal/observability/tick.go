package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TickMetrics метрики тикового цикла
type TickMetrics struct {
	duration prometheus.Histogram
	current  prometheus.Gauge
	overruns prometheus.Counter
	budget   time.Duration
}

// NewTickMetrics создаёт метрики; тик дольше 1/tps считается перерасходом
func NewTickMetrics(reg prometheus.Registerer, tps int) *TickMetrics {
	if tps <= 0 {
		tps = 20
	}
	tm := &TickMetrics{
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tools",
			Name:      "tick_duration_seconds",
			Help:      "Длительность тика планировщика.",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
		}),
		current: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tools",
			Name:      "tick_current",
			Help:      "Номер последнего обработанного тика.",
		}),
		overruns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tools",
			Name:      "tick_overruns_total",
			Help:      "Тики, не уложившиеся в бюджет 1/tps.",
		}),
		budget: time.Second / time.Duration(tps),
	}
	if reg != nil {
		reg.MustRegister(tm.duration, tm.current, tm.overruns)
	}
	return tm
}

// Observe подходит для scheduler.WithTickObserver
func (tm *TickMetrics) Observe(tick uint64, took time.Duration) {
	tm.duration.Observe(took.Seconds())
	tm.current.Set(float64(tick))
	if took > tm.budget {
		tm.overruns.Inc()
	}
}
