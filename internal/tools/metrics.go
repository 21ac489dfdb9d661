package tools

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics Prometheus-метрики многоблочных инструментов
type Metrics struct {
	started   *prometheus.CounterVec
	rejected  *prometheus.CounterVec
	cells     *prometheus.CounterVec
	broken    *prometheus.CounterVec
	active    prometheus.Gauge
	cooldowns prometheus.Gauge
	region    *prometheus.HistogramVec
}

// NewMetrics создаёт метрики и регистрирует их в reg.
// В тестах передавайте prometheus.NewRegistry(), чтобы не конфликтовать с глобальным регистром.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		started: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tools",
			Name:      "operations_started_total",
			Help:      "Запущенные операции инструментов.",
		}, []string{"kind"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tools",
			Name:      "operations_rejected_total",
			Help:      "Отклонённые запуски по причинам.",
		}, []string{"kind", "reason"}),
		cells: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tools",
			Name:      "cells_processed_total",
			Help:      "Обработанные клетки по исходу (applied, skipped, failed).",
		}, []string{"kind", "outcome"}),
		broken: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tools",
			Name:      "tools_broken_total",
			Help:      "Инструменты, сломавшиеся от износа.",
		}, []string{"kind"}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tools",
			Name:      "active_operations",
			Help:      "Постепенные операции в процессе.",
		}),
		cooldowns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tools",
			Name:      "cooldown_records",
			Help:      "Записи перезарядки после последней очистки.",
		}),
		region: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tools",
			Name:      "region_size_cells",
			Help:      "Размер найденного региона постепенных операций.",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64, 128, 256},
		}, []string{"kind"}),
	}

	if reg != nil {
		reg.MustRegister(m.started, m.rejected, m.cells, m.broken, m.active, m.cooldowns, m.region)
	}
	return m
}

func (m *Metrics) incStarted(kind ToolKind) {
	if m != nil {
		m.started.WithLabelValues(kind.ConfigKey()).Inc()
	}
}

func (m *Metrics) incRejected(kind ToolKind, r Reason) {
	if m != nil {
		m.rejected.WithLabelValues(kind.ConfigKey(), r.String()).Inc()
	}
}

func (m *Metrics) incCell(kind ToolKind, outcome string) {
	if m != nil {
		m.cells.WithLabelValues(kind.ConfigKey(), outcome).Inc()
	}
}

func (m *Metrics) incBroken(kind ToolKind) {
	if m != nil {
		m.broken.WithLabelValues(kind.ConfigKey()).Inc()
	}
}

func (m *Metrics) setActive(n int) {
	if m != nil {
		m.active.Set(float64(n))
	}
}

func (m *Metrics) setCooldowns(n int) {
	if m != nil {
		m.cooldowns.Set(float64(n))
	}
}

func (m *Metrics) observeRegion(kind ToolKind, size int) {
	if m != nil {
		m.region.WithLabelValues(kind.ConfigKey()).Observe(float64(size))
	}
}
