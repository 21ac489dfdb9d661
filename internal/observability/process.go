package observability

import (
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/process"
)

// ProcessStats снимок ресурсов процесса
type ProcessStats struct {
	CPUPercent       float64 `json:"cpu_percent"`
	SystemCPUPercent float64 `json:"system_cpu_percent"`
	RSSBytes         uint64  `json:"rss_bytes"`
	Threads          int32   `json:"threads"`
	Goroutines       int     `json:"goroutines"`
	HeapAllocBytes   uint64  `json:"heap_alloc_bytes"`
	NumGC            uint32  `json:"num_gc"`
}

// ProcessCollector публикует загрузку CPU и память процесса, чтобы видеть,
// не упирается ли тиковый цикл в ресурсы.
type ProcessCollector struct {
	proc *process.Process

	mu   sync.Mutex
	last ProcessStats
	at   time.Time
	ttl  time.Duration

	cpuDesc     *prometheus.Desc
	sysCPUDesc  *prometheus.Desc
	rssDesc     *prometheus.Desc
	threadsDesc *prometheus.Desc
	goroutines  *prometheus.Desc
}

// NewProcessCollector создаёт коллектор для текущего процесса
func NewProcessCollector(namespace string) (*ProcessCollector, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	return &ProcessCollector{
		proc: proc,
		ttl:  time.Second,
		cpuDesc: prometheus.NewDesc(prometheus.BuildFQName(namespace, "process", "cpu_percent"),
			"Загрузка CPU процессом, %.", nil, nil),
		sysCPUDesc: prometheus.NewDesc(prometheus.BuildFQName(namespace, "system", "cpu_percent"),
			"Общая загрузка CPU системы, %.", nil, nil),
		rssDesc: prometheus.NewDesc(prometheus.BuildFQName(namespace, "process", "rss_bytes"),
			"Резидентная память процесса.", nil, nil),
		threadsDesc: prometheus.NewDesc(prometheus.BuildFQName(namespace, "process", "threads"),
			"Число потоков ОС.", nil, nil),
		goroutines: prometheus.NewDesc(prometheus.BuildFQName(namespace, "process", "goroutines"),
			"Число горутин.", nil, nil),
	}, nil
}

// Sample возвращает снимок ресурсов. Повторные вызовы в пределах секунды отдают кэш.
func (pc *ProcessCollector) Sample() ProcessStats {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	if !pc.at.IsZero() && time.Since(pc.at) < pc.ttl {
		return pc.last
	}

	var st ProcessStats
	if v, err := pc.proc.CPUPercent(); err == nil {
		st.CPUPercent = v
	}
	// Интервал 0 - сравнение с прошлым вызовом, без блокировки
	if v, err := cpu.Percent(0, false); err == nil && len(v) > 0 {
		st.SystemCPUPercent = v[0]
	}
	if mem, err := pc.proc.MemoryInfo(); err == nil && mem != nil {
		st.RSSBytes = mem.RSS
	}
	if n, err := pc.proc.NumThreads(); err == nil {
		st.Threads = n
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	st.Goroutines = runtime.NumGoroutine()
	st.HeapAllocBytes = m.HeapAlloc
	st.NumGC = m.NumGC

	pc.last = st
	pc.at = time.Now()
	return st
}

// Describe реализует prometheus.Collector
func (pc *ProcessCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- pc.cpuDesc
	ch <- pc.sysCPUDesc
	ch <- pc.rssDesc
	ch <- pc.threadsDesc
	ch <- pc.goroutines
}

// Collect реализует prometheus.Collector
func (pc *ProcessCollector) Collect(ch chan<- prometheus.Metric) {
	st := pc.Sample()
	ch <- prometheus.MustNewConstMetric(pc.cpuDesc, prometheus.GaugeValue, st.CPUPercent)
	ch <- prometheus.MustNewConstMetric(pc.sysCPUDesc, prometheus.GaugeValue, st.SystemCPUPercent)
	ch <- prometheus.MustNewConstMetric(pc.rssDesc, prometheus.GaugeValue, float64(st.RSSBytes))
	ch <- prometheus.MustNewConstMetric(pc.threadsDesc, prometheus.GaugeValue, float64(st.Threads))
	ch <- prometheus.MustNewConstMetric(pc.goroutines, prometheus.GaugeValue, float64(st.Goroutines))
}
