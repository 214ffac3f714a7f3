package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"diarizer/internal/assembler"
	"diarizer/internal/audio"
	"diarizer/internal/cluster"
	"diarizer/internal/config"
	derrors "diarizer/internal/errors"
	"diarizer/internal/features"
	"diarizer/internal/performance"
	"diarizer/internal/similarity"
	"diarizer/internal/transcript"
)

// progressInterval is how many extracted segments pass between progress log lines
const progressInterval = 10

// FeatureSource computes the feature vector of one window of a decoded signal
type FeatureSource interface {
	ExtractWindow(signal *audio.Signal, start, end float64) (features.FeatureVector, error)
}

// Request describes one diarization run
type Request struct {
	AudioPath string
	Segments  []transcript.Segment
	// Speakers is the requested speaker count; nil selects the configured default
	Speakers *int
	// OutputPath overrides the sidecar path derived from AudioPath
	OutputPath string
}

// PipelineProgress tracks the state of the run in flight
type PipelineProgress struct {
	mu            sync.RWMutex
	stage         string
	segmentsTotal int
	segmentsDone  int
	startTime     time.Time
}

// ProgressSnapshot is a point-in-time copy of PipelineProgress
type ProgressSnapshot struct {
	Stage         string
	SegmentsTotal int
	SegmentsDone  int
	Elapsed       time.Duration
}

// Application orchestrates decode, feature extraction, clustering, assembly
// and persistence for a transcript
type Application struct {
	config    *config.Configuration
	logger    *zap.Logger
	decoder   audio.Decoder
	extractor FeatureSource
	scorer    *similarity.Scorer
	labeler   *assembler.Labeler
	writer    *assembler.JSONWriter
	cleaner   *transcript.Cleaner
	monitor   *performance.Monitor
	tracer    *performance.Tracer
	progress  *PipelineProgress
}

// Option customizes an Application
type Option func(*Application)

// WithDecoder replaces the ffmpeg decoder
func WithDecoder(d audio.Decoder) Option {
	return func(app *Application) {
		app.decoder = d
	}
}

// WithFeatureSource replaces the spectral feature extractor
func WithFeatureSource(fs FeatureSource) Option {
	return func(app *Application) {
		app.extractor = fs
	}
}

// WithMonitor replaces the performance monitor
func WithMonitor(m *performance.Monitor) Option {
	return func(app *Application) {
		app.monitor = m
	}
}

// NewApplication creates an application with every component built from cfg
func NewApplication(cfg *config.Configuration, logger *zap.Logger, opts ...Option) (*Application, error) {
	labeler, err := assembler.NewLabeler(cfg.GetSpeakerLabel())
	if err != nil {
		return nil, fmt.Errorf("invalid output.speaker_label: %w", err)
	}

	app := &Application{
		config:   cfg,
		logger:   logger,
		scorer:   similarity.NewScorer(similarity.WeightsFromConfig(cfg)),
		labeler:  labeler,
		writer:   assembler.NewJSONWriter(logger),
		tracer:   performance.NewTracer(),
		progress: &PipelineProgress{},
	}
	if cfg.GetCleanText() {
		app.cleaner = transcript.NewCleaner(cfg.GetCollapseRunes())
	}

	for _, opt := range opts {
		opt(app)
	}

	if app.decoder == nil {
		app.decoder = audio.NewFFmpegDecoder(logger, cfg.GetFFmpegPath(), cfg.GetSampleRate())
	}
	if app.extractor == nil {
		extractor, err := features.NewExtractor(features.Params{
			SampleRate:     cfg.GetSampleRate(),
			NFFT:           cfg.GetNFFT(),
			HopLength:      cfg.GetHopLength(),
			NMels:          cfg.GetNMels(),
			PitchFMin:      cfg.GetPitchFMin(),
			PitchFMax:      cfg.GetPitchFMax(),
			PitchThreshold: cfg.GetPitchThreshold(),
		})
		if err != nil {
			return nil, err
		}
		app.extractor = extractor
	}
	if app.monitor == nil {
		app.monitor = performance.NewMonitor(logger)
	}
	app.monitor.BenchmarkMode(cfg.GetDebugMode())

	return app, nil
}

// Monitor returns the application's performance monitor
func (app *Application) Monitor() *performance.Monitor {
	return app.monitor
}

// Progress returns a snapshot of the current run
func (app *Application) Progress() ProgressSnapshot {
	app.progress.mu.RLock()
	defer app.progress.mu.RUnlock()

	snap := ProgressSnapshot{
		Stage:         app.progress.stage,
		SegmentsTotal: app.progress.segmentsTotal,
		SegmentsDone:  app.progress.segmentsDone,
	}
	if !app.progress.startTime.IsZero() {
		snap.Elapsed = time.Since(app.progress.startTime)
	}
	return snap
}

// Run diarizes req and writes the result sidecar. When only the write fails,
// the assembled result is returned together with the serialization error.
func (app *Application) Run(ctx context.Context, req Request) (result *assembler.Result, err error) {
	ctx, span := app.tracer.StartRunSpan(ctx, req.AudioPath)
	defer func() { performance.EndSpan(span, err) }()

	k := app.resolveSpeakers(req.Speakers)
	span.SetAttributes(attribute.Int(performance.AttrSpeakers, k))

	app.startProgress(len(req.Segments))
	app.logger.Info("starting diarization",
		zap.String("audio", req.AudioPath),
		zap.Int("segments", len(req.Segments)),
		zap.Int("speakers", k),
		zap.Int("workers", app.config.GetWorkers()))

	if err := transcript.ValidateAll(req.Segments); err != nil {
		return nil, err
	}
	if err := cluster.ValidateK(len(req.Segments), k); err != nil {
		app.logger.Error("invalid speaker count", zap.Int("speakers", k), zap.Int("segments", len(req.Segments)))
		return nil, err
	}

	segments := req.Segments
	if app.cleaner != nil {
		segments = app.cleaner.CleanAll(segments)
	}

	signal, err := app.decode(ctx, req.AudioPath)
	if err != nil {
		return nil, err
	}

	vectors, err := app.extractAll(ctx, signal, segments)
	if err != nil {
		return nil, err
	}

	if app.config.GetSimilarityReport() {
		app.logSimilarity(vectors)
	}

	labels, err := app.clusterSegments(ctx, vectors, k)
	if err != nil {
		return nil, err
	}

	result, err = app.assemble(segments, labels)
	if err != nil {
		return nil, err
	}

	app.monitor.RecordRun(signal.Duration(), k, len(result.Segments))

	outputPath := req.OutputPath
	if outputPath == "" {
		outputPath = assembler.SidecarPath(req.AudioPath, app.config.GetOutputSuffix())
	}
	writeErr := app.write(ctx, outputPath, result)

	app.exportMetrics()
	if app.config.GetDebugMode() {
		app.monitor.LogCurrentMetrics()
	}
	app.setStage("done")

	if writeErr != nil {
		return result, writeErr
	}

	app.logger.Info("diarization completed",
		zap.String("output", outputPath),
		zap.Int("turns", len(result.Segments)),
		zap.Int("speakers", len(result.Speakers())))
	return result, nil
}

// resolveSpeakers applies the default speaker count when none was requested
func (app *Application) resolveSpeakers(requested *int) int {
	if requested != nil {
		app.logger.Info("using requested speaker count", zap.Int("speakers", *requested))
		return *requested
	}
	k := app.config.GetDefaultSpeakers()
	if k <= 0 {
		k = cluster.DefaultSpeakers
	}
	app.logger.Info("speaker count not specified, using default", zap.Int("speakers", k))
	return k
}

func (app *Application) decode(ctx context.Context, path string) (*audio.Signal, error) {
	app.setStage(performance.StageDecode)
	ctx, span := app.tracer.StartStageSpan(ctx, performance.StageDecode)
	timer := app.monitor.StartStage(performance.StageDecode, 1)

	signal, err := app.decoder.Decode(ctx, path)
	if err == nil && signal.SampleRate <= 0 {
		err = derrors.New(derrors.KindAudioDecode, "decode", "decoder returned no sample rate")
	}

	app.monitor.EndStage(timer, err)
	performance.EndSpan(span, err)
	if err != nil {
		app.logger.Error("failed to decode audio", zap.String("path", path), zap.Error(err))
		return nil, err
	}

	app.logger.Debug("audio decoded",
		zap.String("path", path),
		zap.Int("samples", len(signal.Samples)),
		zap.Float64("duration_sec", signal.Duration()))
	return signal, nil
}

// extractAll computes one feature vector per segment on a bounded worker
// pool. The first failure cancels the remaining tasks and is returned with
// the segment's index and time range.
func (app *Application) extractAll(ctx context.Context, signal *audio.Signal, segments []transcript.Segment) ([]features.FeatureVector, error) {
	app.setStage(performance.StageExtract)
	ctx, span := app.tracer.StartStageSpan(ctx, performance.StageExtract)
	timer := app.monitor.StartStage(performance.StageExtract, len(segments))

	vectors := make([]features.FeatureVector, len(segments))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(app.config.GetWorkers())

	for i, seg := range segments {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			_, segSpan := app.tracer.StartSegmentSpan(gctx, i, seg.Start, seg.End)
			started := time.Now()
			v, err := app.extractor.ExtractWindow(signal, seg.Start, seg.End)
			if err != nil {
				err = derrors.AtSegment(err, derrors.KindFeatureExtraction, "extract features", i, seg.Start, seg.End)
				performance.EndSpan(segSpan, err)
				return err
			}
			performance.EndSpan(segSpan, nil)

			vectors[i] = v
			app.monitor.ObserveSegment(time.Since(started))
			app.segmentDone()
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	app.monitor.EndStage(timer, err)
	performance.EndSpan(span, err)
	if err != nil {
		app.logger.Error("feature extraction failed", zap.Error(err))
		return nil, err
	}
	return vectors, nil
}

func (app *Application) clusterSegments(ctx context.Context, vectors []features.FeatureVector, k int) ([]int, error) {
	app.setStage(performance.StageCluster)
	_, span := app.tracer.StartStageSpan(ctx, performance.StageCluster)
	timer := app.monitor.StartStage(performance.StageCluster, len(vectors))

	labels, err := cluster.AssignVectors(vectors, k)

	app.monitor.EndStage(timer, err)
	performance.EndSpan(span, err)
	if err != nil {
		app.logger.Error("clustering failed", zap.Int("speakers", k), zap.Error(err))
		return nil, err
	}
	app.logger.Debug("segments clustered", zap.Ints("labels", labels))
	return labels, nil
}

func (app *Application) assemble(segments []transcript.Segment, labels []int) (*assembler.Result, error) {
	app.setStage(performance.StageAssemble)
	timer := app.monitor.StartStage(performance.StageAssemble, len(segments))

	result, err := assembler.Assemble(segments, labels, app.labeler)

	app.monitor.EndStage(timer, err)
	if err != nil {
		return nil, fmt.Errorf("failed to assemble speaker turns: %w", err)
	}
	return result, nil
}

func (app *Application) write(ctx context.Context, path string, result *assembler.Result) error {
	app.setStage(performance.StageWrite)
	_, span := app.tracer.StartStageSpan(ctx, performance.StageWrite)
	timer := app.monitor.StartStage(performance.StageWrite, 1)

	err := app.writer.WriteFile(path, result)

	app.monitor.EndStage(timer, err)
	performance.EndSpan(span, err)
	return err
}

// logSimilarity logs the score of every adjacent segment pair
func (app *Application) logSimilarity(vectors []features.FeatureVector) {
	for i, score := range app.scorer.Adjacent(vectors) {
		app.logger.Debug("adjacent segment similarity",
			zap.Int("segment", i),
			zap.Int("next", i+1),
			zap.Float64("score", score))
	}
}

// exportMetrics writes the Prometheus textfile when one is configured. A
// failure here does not fail the run.
func (app *Application) exportMetrics() {
	path := app.config.GetMetricsTextfile()
	if path == "" {
		return
	}
	if err := app.monitor.WriteTextfile(path); err != nil {
		app.logger.Warn("failed to export metrics", zap.Error(err))
	}
}

func (app *Application) startProgress(total int) {
	app.progress.mu.Lock()
	defer app.progress.mu.Unlock()

	app.progress.stage = performance.StageLoad
	app.progress.segmentsTotal = total
	app.progress.segmentsDone = 0
	app.progress.startTime = time.Now()
}

func (app *Application) setStage(stage string) {
	app.progress.mu.Lock()
	defer app.progress.mu.Unlock()
	app.progress.stage = stage
}

// segmentDone counts an extracted segment and logs progress periodically
func (app *Application) segmentDone() {
	app.progress.mu.Lock()
	app.progress.segmentsDone++
	done, total := app.progress.segmentsDone, app.progress.segmentsTotal
	elapsed := time.Since(app.progress.startTime)
	app.progress.mu.Unlock()

	if done%progressInterval == 0 || done == total {
		app.logger.Info("feature extraction progress",
			zap.Int("done", done),
			zap.Int("total", total),
			zap.Duration("elapsed", elapsed))
	}
}
