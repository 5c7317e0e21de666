package metrics

import (
	"fmt"
	"net/url"
	"runtime"
	"sync"
	"time"

	"github.com/daniellavrushin/pqc-tracer/groups"
)

type MetricsCollector struct {
	TotalProbes       uint64            `json:"total_probes"`
	FailedProbes      uint64            `json:"failed_probes"`
	PostQuantumProbes uint64            `json:"post_quantum_probes"`
	GroupDist         map[string]uint64 `json:"group_dist"`
	SourceDist        map[string]uint64 `json:"source_dist"`
	TopHosts          map[string]uint64 `json:"top_hosts"`
	AvgDurationMs     float64           `json:"avg_duration_ms"`

	DurationSeries []TimeSeriesPoint `json:"duration_series"`
	StartTime      time.Time         `json:"start_time"`
	Uptime         string            `json:"uptime"`
	MemoryUsage    MemoryStats       `json:"memory_usage"`
	RecentProbes   []ProbeLog        `json:"recent_probes"`
	RecentEvents   []SystemEvent     `json:"recent_events"`

	mu            sync.RWMutex  `json:"-"`
	totalDuration time.Duration `json:"-"`
}

type TimeSeriesPoint struct {
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
}

type MemoryStats struct {
	Allocated uint64 `json:"allocated"`
	System    uint64 `json:"system"`
	HeapInuse uint64 `json:"heap_inuse"`
	NumGC     uint32 `json:"num_gc"`
}

type ProbeLog struct {
	Timestamp  time.Time `json:"timestamp"`
	Host       string    `json:"host"`
	Group      string    `json:"group"`
	Source     string    `json:"source"`
	Failed     bool      `json:"failed"`
	DurationMs float64   `json:"duration_ms"`
}

type SystemEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
}

const (
	maxSeries       = 60
	maxRecentProbes = 10
	maxRecentEvents = 20
	maxTopHosts     = 20
)

var (
	metricsCollector *MetricsCollector
	metricsOnce      sync.Once
)

func GetMetricsCollector() *MetricsCollector {
	metricsOnce.Do(func() {
		metricsCollector = newCollector()
	})
	return metricsCollector
}

func newCollector() *MetricsCollector {
	return &MetricsCollector{
		StartTime:      time.Now(),
		GroupDist:      make(map[string]uint64),
		SourceDist:     make(map[string]uint64),
		TopHosts:       make(map[string]uint64),
		DurationSeries: make([]TimeSeriesPoint, 0, maxSeries),
		RecentProbes:   make([]ProbeLog, 0, maxRecentProbes),
		RecentEvents:   make([]SystemEvent, 0, maxRecentEvents),
	}
}

// RecordProbe accounts for one finished exchange.
func (m *MetricsCollector) RecordProbe(rawURL, group, source string, failed bool, d time.Duration) {
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.TotalProbes++
	m.totalDuration += d
	m.AvgDurationMs = float64(m.totalDuration.Milliseconds()) / float64(m.TotalProbes)

	if failed {
		m.FailedProbes++
	} else {
		m.GroupDist[group]++
		m.SourceDist[source]++
		if groups.IsPostQuantum(group) {
			m.PostQuantumProbes++
		}
	}

	m.TopHosts[host]++
	if len(m.TopHosts) > maxTopHosts {
		m.pruneTopHosts()
	}

	now := time.Now()
	ms := float64(d) / float64(time.Millisecond)
	m.DurationSeries = append(m.DurationSeries, TimeSeriesPoint{Timestamp: now.UnixMilli(), Value: ms})
	if len(m.DurationSeries) > maxSeries {
		m.DurationSeries = m.DurationSeries[len(m.DurationSeries)-maxSeries:]
	}

	entry := ProbeLog{
		Timestamp:  now,
		Host:       host,
		Group:      group,
		Source:     source,
		Failed:     failed,
		DurationMs: ms,
	}
	m.RecentProbes = append([]ProbeLog{entry}, m.RecentProbes...)
	if len(m.RecentProbes) > maxRecentProbes {
		m.RecentProbes = m.RecentProbes[:maxRecentProbes]
	}
}

func (m *MetricsCollector) RecordEvent(level, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	event := SystemEvent{
		Timestamp: time.Now(),
		Level:     level,
		Message:   message,
	}

	m.RecentEvents = append([]SystemEvent{event}, m.RecentEvents...)
	if len(m.RecentEvents) > maxRecentEvents {
		m.RecentEvents = m.RecentEvents[:maxRecentEvents]
	}
}

func (m *MetricsCollector) GetSnapshot() *MetricsCollector {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := &MetricsCollector{
		TotalProbes:       m.TotalProbes,
		FailedProbes:      m.FailedProbes,
		PostQuantumProbes: m.PostQuantumProbes,
		AvgDurationMs:     m.AvgDurationMs,
		StartTime:         m.StartTime,
		Uptime:            formatDuration(time.Since(m.StartTime)),
		MemoryUsage: MemoryStats{
			Allocated: memStats.Alloc,
			System:    memStats.Sys,
			HeapInuse: memStats.HeapInuse,
			NumGC:     memStats.NumGC,
		},
	}

	snapshot.GroupDist = copyCounts(m.GroupDist)
	snapshot.SourceDist = copyCounts(m.SourceDist)
	snapshot.TopHosts = copyCounts(m.TopHosts)

	snapshot.RecentProbes = make([]ProbeLog, len(m.RecentProbes))
	copy(snapshot.RecentProbes, m.RecentProbes)

	snapshot.RecentEvents = make([]SystemEvent, len(m.RecentEvents))
	copy(snapshot.RecentEvents, m.RecentEvents)

	snapshot.DurationSeries = smoothTimeSeriesData(m.DurationSeries, 3)
	return snapshot
}

func copyCounts(src map[string]uint64) map[string]uint64 {
	dst := make(map[string]uint64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func (m *MetricsCollector) pruneTopHosts() {
	var minCount uint64 = ^uint64(0)
	var minHost string

	for host, count := range m.TopHosts {
		if count < minCount {
			minCount = count
			minHost = host
		}
	}

	delete(m.TopHosts, minHost)
}

func smoothTimeSeriesData(data []TimeSeriesPoint, windowSize int) []TimeSeriesPoint {
	if len(data) <= windowSize {
		out := make([]TimeSeriesPoint, len(data))
		copy(out, data)
		return out
	}

	smoothed := make([]TimeSeriesPoint, len(data))

	for i := range data {
		sum := 0.0
		count := 0

		for j := max(0, i-windowSize/2); j <= min(len(data)-1, i+windowSize/2); j++ {
			sum += data[j].Value
			count++
		}

		smoothed[i] = TimeSeriesPoint{
			Timestamp: data[i].Timestamp,
			Value:     sum / float64(count),
		}
	}

	return smoothed
}

func formatDuration(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
