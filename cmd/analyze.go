package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/andresmejia3/crease/internal/config"
	"github.com/andresmejia3/crease/internal/director"
	"github.com/andresmejia3/crease/internal/normalize"
	"github.com/andresmejia3/crease/internal/phase"
	"github.com/andresmejia3/crease/internal/pipeline"
	"github.com/andresmejia3/crease/internal/records"
	"github.com/andresmejia3/crease/internal/store"
	"github.com/andresmejia3/crease/internal/utils"
	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// AnalyzeOptions are the analyze flags. Zero values keep the configured defaults.
type AnalyzeOptions struct {
	InputPath string
	OutputDir string
	FPS       float64
	Engines   int
	Workers   int
	Side      string
	GhostPath string
	NoRender  bool
	NoCache   bool
}

var analyzeOpts AnalyzeOptions

var analyzeCmd = &cobra.Command{
	Use:         "analyze",
	Aliases:     []string{"scan"},
	Short:       "Analyse a batting clip: metrics CSV, phase segments and a coaching video",
	Annotations: map[string]string{storeAnnotation: storeOptional},
	Run: func(cmd *cobra.Command, args []string) {
		if err := applyAnalyzeFlags(Cfg, &analyzeOpts); err != nil {
			utils.Die("Invalid analyze options", err, nil)
		}
		if err := runAnalyze(cmd.Context(), analyzeOpts); err != nil {
			if errors.Is(err, context.Canceled) {
				fmt.Fprintln(os.Stderr, "\n🛑 Analysis cancelled.")
				os.Exit(130)
			}
			utils.Die("Analysis failed", err, nil)
		}
	},
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeOpts.InputPath, "input", "i", "", "Path to video")
	analyzeCmd.Flags().StringVarP(&analyzeOpts.OutputDir, "output", "o", "", "Output directory (default from config)")
	analyzeCmd.Flags().Float64VarP(&analyzeOpts.FPS, "fps", "f", 0, "Analysis frame rate (default from config)")
	analyzeCmd.Flags().IntVarP(&analyzeOpts.Engines, "engines", "e", 0, "Number of parallel pose engines")
	analyzeCmd.Flags().IntVarP(&analyzeOpts.Workers, "workers", "w", 0, "Goroutines in the per-frame analysis pre-pass")
	analyzeCmd.Flags().StringVarP(&analyzeOpts.Side, "side", "s", "", "Batting side: right or left")
	analyzeCmd.Flags().StringVarP(&analyzeOpts.GhostPath, "ghost", "g", "", "Reference landmarks JSON drawn as a ghost overlay")
	analyzeCmd.Flags().BoolVar(&analyzeOpts.NoRender, "no-render", false, "Skip the coaching video")
	analyzeCmd.Flags().BoolVar(&analyzeOpts.NoCache, "no-cache", false, "Ignore the pose cache")

	analyzeCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(analyzeCmd)
}

// applyAnalyzeFlags checks the flags and folds them into cfg so every stage config is
// derived from one place.
func applyAnalyzeFlags(cfg *config.Config, opts *AnalyzeOptions) error {
	info, err := os.Stat(opts.InputPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("input file does not exist: %s", opts.InputPath)
		}
		return fmt.Errorf("unable to access input file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("input path is a directory, expected a video file: %s", opts.InputPath)
	}
	if opts.FPS < 0 {
		return fmt.Errorf("fps must be positive, got %g", opts.FPS)
	}
	if opts.Engines < 0 || opts.Workers < 0 {
		return errors.New("engines and workers must not be negative")
	}
	if opts.GhostPath != "" {
		if _, err := os.Stat(opts.GhostPath); err != nil {
			return fmt.Errorf("ghost reference: %w", err)
		}
	}

	if opts.OutputDir != "" {
		if cfg.Paths.OutputDir, err = config.ExpandPath(opts.OutputDir); err != nil {
			return err
		}
	}
	if opts.FPS > 0 {
		cfg.Sampling.FPS = opts.FPS
	}
	if opts.Engines > 0 {
		cfg.Sampling.Engines = opts.Engines
	}
	if opts.Workers > 0 {
		cfg.Sampling.Workers = opts.Workers
	}
	if opts.Side != "" {
		cfg.Biomech.Side = strings.ToLower(opts.Side)
	}
	if opts.NoRender {
		cfg.Render.Enabled = false
	}
	if opts.NoCache {
		cfg.Pose.Cache = false
	}
	return cfg.Validate()
}

// outputPaths are the per-video artefacts of one analysis.
type outputPaths struct {
	Features  string
	Landmarks string
	Video     string
}

func outputsFor(dir, input string) outputPaths {
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return outputPaths{
		Features:  filepath.Join(dir, base+"_features.csv"),
		Landmarks: filepath.Join(dir, base+"_landmarks.json"),
		Video:     filepath.Join(dir, base+"_visualized.mp4"),
	}
}

// runAnalyze orchestrates one clip: output lock, pose pass (or cache), the analysis
// pipeline with its CSV, database and video sinks, and the summary report.
func runAnalyze(ctx context.Context, opts AnalyzeOptions) error {
	cfg := Cfg
	started := time.Now()

	// 1. Output directory & lock
	if err := os.MkdirAll(cfg.Paths.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	lock := flock.New(filepath.Join(cfg.Paths.OutputDir, ".crease.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire output lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another analysis is writing to %s", cfg.Paths.OutputDir)
	}
	defer lock.Unlock()

	// 2. Identify the clip
	videoID, err := utils.GenerateVideoID(opts.InputPath)
	if err != nil {
		return fmt.Errorf("failed to generate video ID: %w", err)
	}
	runID := uuid.New()
	log := Log.With("run", runID.String()[:8])

	info, err := utils.ProbeVideo(ctx, opts.InputPath)
	if err != nil {
		return fmt.Errorf("failed to probe video: %w", err)
	}
	if info.Frames <= 0 {
		info.Frames = utils.GetTotalFrames(ctx, opts.InputPath)
	}
	fmt.Fprintf(os.Stderr, "📼 Processing Video ID: %s (%dx%d @ %.2f fps)\n", videoID[:12], info.Width, info.Height, info.FPS)
	log.Info("analysis started", "input", opts.InputPath, "sample_fps", cfg.Sampling.FPS, "side", cfg.Biomech.Side)

	// 3. Pose pass
	frames, err := loadPoses(ctx, cfg, opts.InputPath, videoID, info, log)
	if err != nil {
		return err
	}
	out := outputsFor(cfg.Paths.OutputDir, opts.InputPath)
	if err := records.SaveLandmarks(out.Landmarks, frames); err != nil {
		return err
	}

	// 4. Analysis pipeline
	aspect := float64(info.Width) / float64(info.Height)
	pcfg := pipeline.Config{
		Workers:   cfg.Sampling.Workers,
		Normalize: cfg.NormalizeConfig(aspect),
		Biomech:   cfg.BiomechConfig(),
		Phase:     cfg.PhaseConfig(),
		Director:  cfg.DirectorConfig(),
	}
	if opts.GhostPath != "" {
		pcfg.Ghost, err = loadGhost(opts.GhostPath, pcfg.Normalize)
		if err != nil {
			return err
		}
	}

	csv, err := records.Create(out.Features)
	if err != nil {
		return err
	}
	defer csv.Abort()
	sinks := pipeline.Sinks{Records: []pipeline.RecordSink{csv}}

	var run *store.RunWriter
	if DB != nil {
		run, err = DB.BeginRun(ctx, store.RunInfo{
			ID:        runID,
			VideoID:   videoID,
			VideoPath: opts.InputPath,
			SampleFPS: cfg.Sampling.FPS,
			Side:      cfg.Side().String(),
		})
		if err != nil {
			return fmt.Errorf("failed to register run: %w", err)
		}
		defer func() {
			// ctx may already be cancelled; the unfinished run must still go
			if err := run.Abort(context.Background()); err != nil {
				log.Warn("failed to remove unfinished run", "error", err)
			}
		}()
		sinks.Records = append(sinks.Records, run)
		sinks.Segments = append(sinks.Segments, run)
	}

	var video *videoOutput
	if cfg.Render.Enabled {
		video, err = startVideo(ctx, opts.InputPath, out.Video, cfg.Sampling.FPS, info, len(frames), log)
		if err != nil {
			return err
		}
		defer video.abort()
		sinks.Directives = append(sinks.Directives, video.sink)
	}

	sum, err := pipeline.New(pcfg, log).Run(ctx, frames, sinks)
	if err != nil {
		return fmt.Errorf("pipeline failed: %w", err)
	}

	// 5. Commit outputs
	if err := csv.Commit(); err != nil {
		return err
	}
	if run != nil {
		if err := run.Finish(ctx); err != nil {
			return fmt.Errorf("failed to finish run: %w", err)
		}
	}
	if video != nil {
		if err := video.finish(); err != nil {
			return err
		}
	}

	printSummary(os.Stderr, sum, out, cfg.Sampling.FPS, video != nil, time.Since(started))
	log.Info("analysis finished", "frames", sum.Frames, "segments", len(sum.Segments), "elapsed", time.Since(started).Round(time.Millisecond))
	return nil
}

func loadGhost(path string, ncfg normalize.Config) (*director.Ghost, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ghost reference: %w", err)
	}
	defer f.Close()
	return director.LoadGhost(f, ncfg)
}

func segmentRows(segs []phase.Segment, fps float64) [][]string {
	rows := make([][]string, 0, len(segs))
	for _, s := range segs {
		impact := "-"
		if s.Impact >= 0 {
			impact = fmt.Sprintf("%d (%s)", s.Impact, fmtTime(float64(s.Impact-1)/fps))
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", s.ID),
			fmt.Sprintf("%d", s.Start),
			impact,
			fmt.Sprintf("%d", s.End),
			fmt.Sprintf("%.2fs", float64(s.Frames())/fps),
			string(s.Shot),
		})
	}
	return rows
}

func fmtTime(seconds float64) string {
	duration := time.Duration(seconds * float64(time.Second))
	m := int(duration.Minutes())
	s := int(duration.Seconds()) % 60
	ms := int(duration.Milliseconds()) % 1000
	return fmt.Sprintf("%02d:%02d.%03d", m, s, ms)
}
