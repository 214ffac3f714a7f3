package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"reflect"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"diarizer/internal/app"
	"diarizer/internal/assembler"
	"diarizer/internal/config"
	derrors "diarizer/internal/errors"
	"diarizer/internal/logger"
	"diarizer/internal/performance"
	"diarizer/internal/transcript"
)

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "dev"

// options holds the flag values of one invocation
type options struct {
	segmentsPath string
	configPath   string
	outputPath   string
	speakers     int
	verify       bool
	printMetrics bool
}

// flagKeys maps command-line flags onto configuration keys
var flagKeys = map[string]string{
	"workers":          "pipeline.workers",
	"suffix":           "output.suffix",
	"speaker-label":    "output.speaker_label",
	"metrics-textfile": "metrics.textfile",
	"clean-text":       "transcript.clean_text",
	"similarity":       "similarity.report",
	"ffmpeg":           "audio.ffmpeg_path",
}

func main() {
	if err := newRootCommand(os.Stdout, os.Stderr).Execute(); err != nil {
		reportError(os.Stderr, err)
		os.Exit(1)
	}
}

// reportError prints err, plus a description and hint when it carries a
// pipeline error kind. Usage errors from cobra are printed alone.
func reportError(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %v\n", err)
	kind := derrors.KindOf(err)
	if kind == "" {
		return
	}
	fmt.Fprintf(w, "Problem: %s\n", derrors.GetDescription(kind))
	fmt.Fprintf(w, "Hint: %s\n", derrors.GetSuggestedAction(kind))
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "diarizer <audio-file>",
		Short: "Attribute transcript segments to speakers",
		Long: `diarizer partitions a time-stamped transcript across speakers using the
acoustic features of the audio each segment covers.

The segments document is JSON ({"segments": [{"start", "end", "text"}, ...]}),
YAML with the same shape (.yaml/.yml), or WebVTT (.vtt). The result is written
next to the audio file as <stem>_speakers.json unless --output is given.

Configuration is read from --config, or from DIARIZER_* environment variables
(for example DIARIZER_PIPELINE_WORKERS). Flags take precedence over both.`,
		Example: `  diarizer meeting.m4a --segments meeting.json
  diarizer interview.wav --segments interview.vtt --speakers 3 --workers 4`,
		Args:          cobra.ExactArgs(1),
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiarize(cmd, args[0], opts, stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	flags := cmd.Flags()
	flags.StringVarP(&opts.segmentsPath, "segments", "s", "", "transcript segments document (JSON, YAML or WebVTT)")
	flags.IntVarP(&opts.speakers, "speakers", "k", 0, "number of speakers (default from clustering.default_speakers, 2)")
	flags.StringVarP(&opts.configPath, "config", "c", "", "configuration file")
	flags.StringVarP(&opts.outputPath, "output", "o", "", "result path (default <audio-stem>_<suffix>.json)")
	flags.BoolVar(&opts.verify, "verify", false, "re-read the written result and compare it with the in-memory one")
	flags.BoolVar(&opts.printMetrics, "print-metrics", false, "print the stage timing summary to stderr")
	flags.Int("workers", 0, "concurrent feature extraction tasks (default number of CPUs)")
	flags.String("suffix", assembler.DefaultSuffix, "suffix appended to the audio stem for the result file")
	flags.String("speaker-label", assembler.DefaultSpeakerLabel, "printf pattern naming speakers")
	flags.String("metrics-textfile", "", "write Prometheus metrics to this file")
	flags.Bool("clean-text", false, "collapse repeated characters and punctuation in segment text")
	flags.Bool("similarity", false, "log adjacent-segment similarity scores at debug level")
	flags.String("ffmpeg", "ffmpeg", "path to the ffmpeg binary")
	flags.Bool("debug", false, "enable debug logging")
	_ = cmd.MarkFlagRequired("segments")

	return cmd
}

// loadConfig reads the configuration file when given, otherwise the environment,
// and lets explicitly set flags override both
func loadConfig(cmd *cobra.Command, configPath string) (*config.Configuration, error) {
	var cfg *config.Configuration
	var err error
	if configPath != "" {
		cfg, err = config.NewConfigurationFromFile(configPath)
	} else {
		cfg, err = config.NewConfigurationFromEnv()
	}
	if err != nil {
		return nil, err
	}

	for name, key := range flagKeys {
		if !cmd.Flags().Changed(name) {
			continue
		}
		if err := cfg.Viper().BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
			return nil, fmt.Errorf("failed to bind flag --%s: %w", name, err)
		}
	}
	if cmd.Flags().Changed("debug") {
		debug, err := cmd.Flags().GetBool("debug")
		if err != nil {
			return nil, err
		}
		cfg.SetDebugMode(debug)
	}
	return cfg, nil
}

func runDiarize(cmd *cobra.Command, audioPath string, opts *options, stdout, stderr io.Writer) error {
	cfg, err := loadConfig(cmd, opts.configPath)
	if err != nil {
		return err
	}

	log, err := logger.NewCLILogger(cfg.GetDebugMode())
	if err != nil {
		return err
	}
	defer log.Sync()

	log.Debug("diarizer starting",
		zap.String("component", "main"),
		zap.String("version", version))

	application, err := app.NewApplication(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	monitor := application.Monitor()
	timer := monitor.StartStage(performance.StageLoad, 0)
	segments, err := transcript.Load(opts.segmentsPath)
	timer.Items = len(segments)
	monitor.EndStage(timer, err)
	if err != nil {
		log.Error("failed to load segments", zap.String("path", opts.segmentsPath), zap.Error(err))
		return err
	}

	var speakers *int
	if cmd.Flags().Changed("speakers") {
		speakers = &opts.speakers
	}

	outputPath := opts.outputPath
	if outputPath == "" {
		outputPath = assembler.SidecarPath(audioPath, cfg.GetOutputSuffix())
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := application.Run(ctx, app.Request{
		AudioPath:  audioPath,
		Segments:   segments,
		Speakers:   speakers,
		OutputPath: outputPath,
	})
	if opts.printMetrics {
		fmt.Fprint(stderr, monitor.GetPerformanceSummary())
	}
	if err != nil {
		if result != nil && derrors.IsSerialization(err) {
			log.Error("result computed but not saved, writing it to stdout",
				zap.Int("turns", len(result.Segments)),
				zap.Error(err))
			if encErr := assembler.NewJSONWriter(log).Encode(stdout, result); encErr != nil {
				log.Error("failed to write result to stdout", zap.Error(encErr))
			}
		}
		return err
	}

	if opts.verify {
		if err := verifyResult(outputPath, result); err != nil {
			return err
		}
		log.Debug("written result verified", zap.String("path", outputPath))
	}

	fmt.Fprintf(stdout, "%d segments, %d speaker turns (%s) written to %s\n",
		result.SegmentCount(), len(result.Segments), strings.Join(result.Speakers(), ", "), outputPath)
	return nil
}

// verifyResult checks that the file at path decodes back to result
func verifyResult(path string, result *assembler.Result) error {
	written, err := assembler.ReadFile(path)
	if err == nil && !reflect.DeepEqual(written, result) {
		err = fmt.Errorf("written result differs from computed result")
	}
	if err != nil {
		e := derrors.Wrap(derrors.KindSerialization, "verify result", err)
		e.Path = path
		return e
	}
	return nil
}
