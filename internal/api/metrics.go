package api

import (
	"fmt"
	"time"

	"github.com/annel0/mmo-tools/internal/observability"
)

// ServerMetrics содержит метрики сервера
type ServerMetrics struct {
	StartTime time.Time
	process   *observability.ProcessCollector
}

// NewServerMetrics создает новый экземпляр метрик. process может быть nil.
func NewServerMetrics(process *observability.ProcessCollector) *ServerMetrics {
	return &ServerMetrics{
		StartTime: time.Now(),
		process:   process,
	}
}

// GetUptime возвращает время работы сервера
func (sm *ServerMetrics) GetUptime() string {
	return formatUptime(time.Since(sm.StartTime))
}

func formatUptime(uptime time.Duration) string {
	days := int(uptime.Hours()) / 24
	hours := int(uptime.Hours()) % 24
	minutes := int(uptime.Minutes()) % 60
	seconds := int(uptime.Seconds()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dд %dч %dм %dс", days, hours, minutes, seconds)
	case hours > 0:
		return fmt.Sprintf("%dч %dм %dс", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dм %dс", minutes, seconds)
	default:
		return fmt.Sprintf("%dс", seconds)
	}
}

// Process возвращает снимок ресурсов процесса; нули, если коллектор не задан
func (sm *ServerMetrics) Process() observability.ProcessStats {
	if sm.process == nil {
		return observability.ProcessStats{}
	}
	return sm.process.Sample()
}
