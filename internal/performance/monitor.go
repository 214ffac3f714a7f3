// Package performance tracks how long each pipeline stage takes and exports
// the numbers as log lines, Prometheus collectors and otel spans.
package performance

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	derrors "diarizer/internal/errors"
)

// Pipeline stage names
const (
	StageLoad     = "load_segments"
	StageDecode   = "decode_audio"
	StageExtract  = "extract_features"
	StageCluster  = "cluster"
	StageAssemble = "assemble"
	StageWrite    = "write_result"
)

// StageMetrics aggregates the runs of one stage
type StageMetrics struct {
	Runs      int64
	Failures  int64
	Items     int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration
	AvgTime   time.Duration
	LastTime  time.Duration
}

// StageTimer tracks timing for one stage run
type StageTimer struct {
	Stage          string
	StartTime      time.Time
	Items          int
	ProcessingTime time.Duration
}

// Monitor handles stage timing and reporting. It is safe for concurrent use.
type Monitor struct {
	logger    *zap.Logger
	registry  *prometheus.Registry
	metrics   *Metrics
	stages    map[string]*StageMetrics
	mu        sync.RWMutex
	benchmark bool
}

// NewMonitor creates a monitor with its own Prometheus registry
func NewMonitor(logger *zap.Logger) *Monitor {
	reg := prometheus.NewRegistry()
	return &Monitor{
		logger:   logger,
		registry: reg,
		metrics:  NewMetrics(reg),
		stages:   make(map[string]*StageMetrics),
	}
}

// Registry returns the Prometheus registry holding the monitor's collectors
func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}

// Metrics returns the monitor's Prometheus collectors
func (m *Monitor) Metrics() *Metrics {
	return m.metrics
}

// StartStage begins timing a stage that processes items units of work
func (m *Monitor) StartStage(stage string, items int) *StageTimer {
	return &StageTimer{
		Stage:     stage,
		StartTime: time.Now(),
		Items:     items,
	}
}

// EndStage completes timing and updates metrics. A non-nil err counts as a
// failure of the stage, labeled with its error kind.
func (m *Monitor) EndStage(timer *StageTimer, err error) {
	timer.ProcessingTime = time.Since(timer.StartTime)

	m.metrics.StageSeconds.WithLabelValues(timer.Stage).Observe(timer.ProcessingTime.Seconds())
	if err != nil {
		kind := string(derrors.KindOf(err))
		if kind == "" {
			kind = "unknown"
		}
		m.metrics.StageFailuresTotal.WithLabelValues(timer.Stage, kind).Inc()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.stages[timer.Stage]
	if !ok {
		s = &StageMetrics{MinTime: timer.ProcessingTime}
		m.stages[timer.Stage] = s
	}

	s.Runs++
	s.Items += int64(timer.Items)
	s.TotalTime += timer.ProcessingTime
	s.LastTime = timer.ProcessingTime
	if err != nil {
		s.Failures++
	}
	if timer.ProcessingTime < s.MinTime {
		s.MinTime = timer.ProcessingTime
	}
	if timer.ProcessingTime > s.MaxTime {
		s.MaxTime = timer.ProcessingTime
	}
	s.AvgTime = time.Duration(int64(s.TotalTime) / s.Runs)

	if m.benchmark {
		fields := []zap.Field{
			zap.String("stage", timer.Stage),
			zap.Int("items", timer.Items),
			zap.Duration("processing_time", timer.ProcessingTime),
		}
		if timer.Items > 0 && timer.ProcessingTime > 0 {
			fields = append(fields, zap.Float64("items_per_sec", float64(timer.Items)/timer.ProcessingTime.Seconds()))
		}
		m.logger.Info("stage performance", fields...)
	}
}

// ObserveSegment records the extraction latency of one segment
func (m *Monitor) ObserveSegment(d time.Duration) {
	m.metrics.SegmentsTotal.Inc()
	m.metrics.SegmentSeconds.Observe(d.Seconds())
}

// RecordRun sets the run-level gauges
func (m *Monitor) RecordRun(audioSeconds float64, speakers, turns int) {
	m.metrics.AudioSeconds.Set(audioSeconds)
	m.metrics.Speakers.Set(float64(speakers))
	m.metrics.Turns.Set(float64(turns))
}

// GetMetrics returns a copy of the metrics of stage
func (m *Monitor) GetMetrics(stage string) (StageMetrics, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.stages[stage]
	if !ok {
		return StageMetrics{}, false
	}
	return *s, true
}

// GetPerformanceSummary returns a formatted summary of every recorded stage
func (m *Monitor) GetPerformanceSummary() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.stages) == 0 {
		return "No stage metrics available"
	}

	names := make([]string, 0, len(m.stages))
	for name := range m.stages {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("Performance Summary:\n")
	var total time.Duration
	for _, name := range names {
		s := m.stages[name]
		total += s.TotalTime
		fmt.Fprintf(&b, "  %-17s runs=%d items=%d failures=%d avg=%v min=%v max=%v\n",
			name, s.Runs, s.Items, s.Failures, s.AvgTime, s.MinTime, s.MaxTime)
	}
	fmt.Fprintf(&b, "  Total Stage Time: %v\n", total)
	return b.String()
}

// LogCurrentMetrics logs the metrics of every recorded stage
func (m *Monitor) LogCurrentMetrics() {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.stages))
	for name := range m.stages {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		s := m.stages[name]
		m.logger.Debug("stage metrics",
			zap.String("stage", name),
			zap.Int64("runs", s.Runs),
			zap.Int64("items", s.Items),
			zap.Int64("failures", s.Failures),
			zap.Duration("avg_processing_time", s.AvgTime),
			zap.Duration("last_processing_time", s.LastTime),
		)
	}
}

// BenchmarkMode enables or disables per-stage logging
func (m *Monitor) BenchmarkMode(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.benchmark = enabled
	m.logger.Debug("benchmark mode", zap.Bool("enabled", enabled))
}

// WriteTextfile writes the monitor's collectors in the Prometheus text format,
// for pickup by the node_exporter textfile collector
func (m *Monitor) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile %s: %w", path, err)
	}
	m.logger.Debug("metrics textfile written", zap.String("path", path))
	return nil
}
