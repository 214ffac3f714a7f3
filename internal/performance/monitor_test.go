package performance

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	derrors "diarizer/internal/errors"
)

func TestMonitorCreation(t *testing.T) {
	monitor := NewMonitor(zap.NewNop())

	assert.NotNil(t, monitor)
	assert.NotNil(t, monitor.Registry())
	assert.NotNil(t, monitor.Metrics())
	assert.False(t, monitor.benchmark)
}

func TestBenchmarkMode(t *testing.T) {
	monitor := NewMonitor(zap.NewNop())

	monitor.BenchmarkMode(true)
	assert.True(t, monitor.benchmark)

	monitor.BenchmarkMode(false)
	assert.False(t, monitor.benchmark)
}

func TestStartStage(t *testing.T) {
	monitor := NewMonitor(zap.NewNop())

	timer := monitor.StartStage(StageExtract, 12)

	assert.Equal(t, StageExtract, timer.Stage)
	assert.Equal(t, 12, timer.Items)
	assert.False(t, timer.StartTime.IsZero())
}

func TestEndStageUpdatesMetrics(t *testing.T) {
	monitor := NewMonitor(zap.NewNop())

	timer := monitor.StartStage(StageCluster, 4)
	time.Sleep(5 * time.Millisecond)
	monitor.EndStage(timer, nil)

	metrics, ok := monitor.GetMetrics(StageCluster)
	require.True(t, ok)
	assert.Equal(t, int64(1), metrics.Runs)
	assert.Equal(t, int64(4), metrics.Items)
	assert.Equal(t, int64(0), metrics.Failures)
	assert.True(t, metrics.TotalTime > 0)
	assert.Equal(t, metrics.TotalTime, metrics.MinTime)
	assert.Equal(t, metrics.TotalTime, metrics.MaxTime)

	_, ok = monitor.GetMetrics(StageWrite)
	assert.False(t, ok)
}

func TestEndStageCountsFailuresByKind(t *testing.T) {
	monitor := NewMonitor(zap.NewNop())

	monitor.EndStage(monitor.StartStage(StageExtract, 1),
		derrors.New(derrors.KindFeatureExtraction, "extract", "empty sample window"))
	monitor.EndStage(monitor.StartStage(StageExtract, 1), errors.New("plain"))
	monitor.EndStage(monitor.StartStage(StageExtract, 1), nil)

	metrics, _ := monitor.GetMetrics(StageExtract)
	assert.Equal(t, int64(3), metrics.Runs)
	assert.Equal(t, int64(2), metrics.Failures)

	failures := monitor.Metrics().StageFailuresTotal
	assert.Equal(t, 1.0, testutil.ToFloat64(failures.WithLabelValues(StageExtract, "feature_extraction")))
	assert.Equal(t, 1.0, testutil.ToFloat64(failures.WithLabelValues(StageExtract, "unknown")))
}

func TestBenchmarkLogging(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	monitor := NewMonitor(zap.New(core))

	monitor.EndStage(monitor.StartStage(StageDecode, 1), nil)
	assert.Zero(t, logs.FilterMessage("stage performance").Len())

	monitor.BenchmarkMode(true)
	monitor.EndStage(monitor.StartStage(StageDecode, 1), nil)

	entries := logs.FilterMessage("stage performance").All()
	require.Len(t, entries, 1)
	assert.Equal(t, StageDecode, entries[0].ContextMap()["stage"])
}

func TestPerformanceSummary(t *testing.T) {
	monitor := NewMonitor(zap.NewNop())
	assert.Equal(t, "No stage metrics available", monitor.GetPerformanceSummary())

	monitor.EndStage(monitor.StartStage(StageDecode, 1), nil)
	monitor.EndStage(monitor.StartStage(StageAssemble, 3), nil)

	summary := monitor.GetPerformanceSummary()
	assert.Contains(t, summary, "Performance Summary:")
	assert.Contains(t, summary, StageDecode)
	assert.Contains(t, summary, StageAssemble)
	assert.Less(t, strings.Index(summary, StageAssemble), strings.Index(summary, StageDecode))
	assert.Contains(t, summary, "Total Stage Time:")
}

func TestLogCurrentMetrics(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	monitor := NewMonitor(zap.New(core))
	monitor.EndStage(monitor.StartStage(StageExtract, 5), nil)
	monitor.EndStage(monitor.StartStage(StageCluster, 5), errors.New("boom"))

	monitor.LogCurrentMetrics()

	entries := logs.FilterMessage("stage metrics").All()
	require.Len(t, entries, 2)
	assert.Equal(t, StageCluster, entries[0].ContextMap()["stage"])
	assert.Equal(t, int64(1), entries[0].ContextMap()["failures"])
	assert.Equal(t, StageExtract, entries[1].ContextMap()["stage"])
	assert.Equal(t, int64(5), entries[1].ContextMap()["items"])
}

func TestWriteTextfile(t *testing.T) {
	monitor := NewMonitor(zap.NewNop())
	monitor.ObserveSegment(20 * time.Millisecond)
	monitor.ObserveSegment(30 * time.Millisecond)
	monitor.RecordRun(42.5, 2, 7)
	monitor.EndStage(monitor.StartStage(StageCluster, 2), nil)

	path := filepath.Join(t.TempDir(), "diarizer.prom")
	require.NoError(t, monitor.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "diarizer_segments_processed_total 2")
	assert.Contains(t, text, "diarizer_speakers 2")
	assert.Contains(t, text, "diarizer_turns 7")
	assert.Contains(t, text, "diarizer_audio_seconds 42.5")
	assert.Contains(t, text, `diarizer_stage_seconds_count{stage="cluster"} 1`)
}

func TestWriteTextfile_BadPath(t *testing.T) {
	monitor := NewMonitor(zap.NewNop())

	err := monitor.WriteTextfile(filepath.Join(t.TempDir(), "missing", "out.prom"))

	assert.Error(t, err)
}

func TestTracerSpans(t *testing.T) {
	tracer := NewTracer()

	ctx, run := tracer.StartRunSpan(context.Background(), "/tmp/a.wav")
	ctx, stage := tracer.StartStageSpan(ctx, StageExtract)
	_, seg := tracer.StartSegmentSpan(ctx, 3, 1.5, 2.5)

	assert.NotPanics(t, func() {
		EndSpan(seg, derrors.New(derrors.KindAudioDecode, "window", "bad"))
		EndSpan(stage, nil)
		EndSpan(run, nil)
	})
}
