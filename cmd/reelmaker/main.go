package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/ivlev/reelmaker/internal/compositor"
	"github.com/ivlev/reelmaker/internal/config"
	"github.com/ivlev/reelmaker/internal/engine"
	"github.com/ivlev/reelmaker/internal/logging"
	"github.com/ivlev/reelmaker/internal/narration"
	"github.com/ivlev/reelmaker/internal/observe"
	"github.com/ivlev/reelmaker/internal/renderer"
	"github.com/ivlev/reelmaker/internal/scaffold"
	"github.com/ivlev/reelmaker/internal/source"
	"github.com/ivlev/reelmaker/internal/system"
	"github.com/ivlev/reelmaker/internal/timeline"
	"github.com/ivlev/reelmaker/internal/tts"
	"github.com/ivlev/reelmaker/internal/tts/local"
	"github.com/ivlev/reelmaker/internal/video"
)

// version is set at link time with -ldflags "-X main.version=...".
var version = "dev"

const (
	timelineDir = "input/timelines"
	outputDir   = "output"
)

type options struct {
	timeline    string
	config      string
	output      string
	backend     string
	seed        int64
	noNarration bool
	quality     int
	encoder     string
	logLevel    string
	logFormat   string
	stats       bool
	strict      bool

	scaffold      string
	sceneDuration float64
}

func parseFlags() options {
	var o options
	flag.StringVar(&o.timeline, "timeline", "", "Timeline YAML (default: newest file in "+timelineDir+"/)")
	flag.StringVar(&o.config, "config", "", "Optional config YAML overriding the defaults")
	flag.StringVar(&o.output, "output", "", "Video path (default: "+outputDir+"/<timeline>_<timestamp>.mp4)")
	flag.StringVar(&o.backend, "backend", "", "Force a TTS backend: local, higgs, openai, elevenlabs, flite")
	flag.Int64Var(&o.seed, "seed", -1, "TTS seed (-1 keeps the configured seed)")
	flag.BoolVar(&o.noNarration, "no-narration", false, "Render the silent video only")
	flag.IntVar(&o.quality, "quality", 0, "Encoder quality (0 keeps the configured value)")
	flag.StringVar(&o.encoder, "encoder", "auto", "H.264 encoder: auto, libx264, h264_nvenc, h264_videotoolbox")
	flag.StringVar(&o.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.StringVar(&o.logFormat, "log-format", "text", "Log format: text, json")
	flag.BoolVar(&o.stats, "stats", false, "Print a performance report and append it to benchmark.log")
	flag.BoolVar(&o.strict, "strict", false, "Fail when a scene has no renderer")
	flag.StringVar(&o.scaffold, "scaffold", "", "Draft a timeline from a PDF or image folder instead of rendering")
	flag.Float64Var(&o.sceneDuration, "scene-duration", 6, "Scene length in seconds for -scaffold")
	flag.Parse()
	return o
}

func main() {
	o := parseFlags()
	logger := logging.NewLogger(os.Stderr, o.logLevel, o.logFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	if o.scaffold != "" {
		err = runScaffold(o, logger)
	} else {
		err = run(ctx, o, logger)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("interrupted")
		} else {
			logger.Error("render failed", "err", err)
		}
		stop()
		os.Exit(1)
	}
}

func loadConfig(o options) (config.Config, error) {
	cfg := config.Default()
	if o.config != "" {
		var err error
		if cfg, err = config.Load(o.config); err != nil {
			return cfg, err
		}
	}
	if o.backend != "" {
		cfg.Narration.Backend = o.backend
	}
	if o.seed >= 0 {
		cfg.Narration.Seed = o.seed
	}
	if o.noNarration {
		cfg.Narration.Enabled = false
	}
	if o.quality > 0 {
		cfg.Encoder.Quality = o.quality
	}
	if o.encoder != "" && o.encoder != "auto" {
		cfg.Encoder.Codec = o.encoder
	}
	if o.strict {
		cfg.Strict = true
	}
	cfg.ShowStats = o.stats
	cfg.BuildVersion = version
	return cfg, cfg.Validate()
}

// defaultOutput names the video after the timeline with a timestamp.
func defaultOutput(timelinePath string) string {
	base := filepath.Base(timelinePath)
	name := strings.ReplaceAll(strings.TrimSuffix(base, filepath.Ext(base)), " ", "_")
	stamp := time.Now().Format("2006-01-02_15-04-05")
	return filepath.Join(outputDir, fmt.Sprintf("%s_%s.mp4", name, stamp))
}

func run(ctx context.Context, o options, logger *slog.Logger) error {
	start := time.Now()
	cfg, err := loadConfig(o)
	if err != nil {
		return err
	}

	path := o.timeline
	if path == "" {
		if path, err = timeline.FindLatest(timelineDir); err != nil {
			return fmt.Errorf("%w; put a timeline into %s/ or pass -timeline", err, timelineDir)
		}
		logger.Info("timeline selected", "path", path)
	}
	tl, err := timeline.Read(path)
	if err != nil {
		return err
	}

	out := o.output
	if out == "" {
		out = defaultOutput(path)
	}
	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return err
	}

	codec := cfg.Encoder.Codec
	if o.encoder == "auto" {
		codec = system.GetBestH264Encoder(ctx, cfg.FFmpegPath)
		if codec != "libx264" {
			logger.Info("hardware encoder detected", "encoder", codec)
		}
	}

	metrics := observe.Discard()
	var reporter *observe.Reporter
	if cfg.ShowStats {
		if metrics, reporter, err = observe.NewReporter(); err != nil {
			return err
		}
		defer reporter.Shutdown(context.Background())
	}

	reg, err := renderer.Build(tl, cfg, source.NewCache())
	if err != nil {
		return err
	}
	comp, err := compositor.New(tl, cfg, reg, logging.WithComponent(logger, "compositor"))
	if err != nil {
		return err
	}
	defer comp.Close()

	project := &engine.Project{
		Timeline: tl,
		Frames:   comp,
		Encoder:  video.NewEncoder(cfg, codec, metrics, logger),
		Muxer:    video.NewMuxer(cfg, logger),
		Prober:   video.NewFFprobe(cfg.FFprobePath),
		Expect:   video.ExpectationFor(tl, cfg),
		Outputs:  engine.OutputsFor(out),
		Metrics:  metrics,
		Logger:   logger,
	}
	if cfg.Narration.Enabled {
		backends := narration.Backends(cfg, tts.OSEnv, local.DefaultChecks(), logger)
		project.Narrator = narration.New(cfg, backends, metrics, logger)
	}

	res, err := project.Run(ctx)
	if err != nil {
		return err
	}

	final := res.Outputs.Video
	if res.Narration != nil {
		final = res.Outputs.Final
	}
	logger.Info("done", "output", final)

	if reporter != nil {
		summary, err := reporter.Collect(ctx)
		if err != nil {
			return err
		}
		total := time.Since(start)
		summary.WriteReport(os.Stdout, cfg.BuildVersion, total)
		if err := observe.AppendBenchmarkLog("benchmark.log", cfg.BuildVersion, path, summary, total); err != nil {
			logger.Warn("benchmark log not written", "err", err)
		}
	}
	return nil
}

// runScaffold writes a draft timeline for a deck into the timeline directory.
func runScaffold(o options, logger *slog.Logger) error {
	cfg, err := loadConfig(o)
	if err != nil {
		return err
	}
	src, err := source.Open(o.scaffold)
	if err != nil {
		return err
	}
	defer src.Close()

	opts := scaffold.DefaultOptions()
	opts.SceneDuration = o.sceneDuration
	tl, err := scaffold.Build(src, o.scaffold, scaffold.NewDetector(), cfg, opts, logging.WithComponent(logger, "scaffold"))
	if err != nil {
		return err
	}

	out := o.timeline
	if out == "" {
		base := filepath.Base(o.scaffold)
		out = filepath.Join(timelineDir, strings.TrimSuffix(base, filepath.Ext(base))+".yaml")
	}
	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return err
	}
	if err := timeline.Write(tl, out); err != nil {
		return err
	}
	logger.Info("timeline drafted", "path", out, "scenes", len(tl.Scenes), "duration", tl.Duration)
	return nil
}
