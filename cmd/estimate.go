package cmd

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/andresmejia3/crease/internal/config"
	"github.com/andresmejia3/crease/internal/pose"
	"github.com/andresmejia3/crease/internal/posecache"
	"github.com/andresmejia3/crease/internal/utils"
	"github.com/andresmejia3/crease/internal/worker"
	"github.com/schollz/progressbar/v3"
)

const megabyte = 1024 * 1024

// Buffer pool to reduce GC pressure while streaming JPEG frames to the engines
var frameBufferPool = sync.Pool{
	New: func() interface{} { return make([]byte, 0, megabyte) },
}

func releaseFrame(b []byte) {
	frameBufferPool.Put(b)
}

// cacheKey identifies the pose output of one clip under the current estimator settings.
func cacheKey(cfg *config.Config, videoID string) posecache.Key {
	return posecache.Key{
		VideoID:   videoID,
		SampleFPS: cfg.Sampling.FPS,
		Model:     fmt.Sprintf("mediapipe-pose-c%d-d%g", cfg.Pose.ModelComplexity, cfg.Pose.MinDetection),
	}
}

// loadPoses returns the raw estimator frames for the clip, from the pose cache when a
// complete entry exists and from the engine pool otherwise.
func loadPoses(ctx context.Context, cfg *config.Config, input, videoID string, info utils.VideoInfo, log *slog.Logger) ([]pose.RawFrame, error) {
	var cache *posecache.Cache
	if cfg.Pose.Cache {
		var err error
		cache, err = posecache.Open(cfg.Paths.PoseCache)
		if err != nil {
			// the cache only saves time; run without it
			log.Warn("pose cache unavailable", "path", cfg.Paths.PoseCache, "error", err)
		} else {
			defer cache.Close()
		}
	}

	key := cacheKey(cfg, videoID)
	if cache != nil {
		frames, ok, err := cache.Get(ctx, key)
		switch {
		case err != nil:
			log.Warn("pose cache lookup failed", "error", err)
		case ok:
			fmt.Fprintf(os.Stderr, "♻️  Reusing %d cached pose frames\n", len(frames))
			return frames, nil
		}
	}

	frames, err := estimatePoses(ctx, cfg, input, info, log)
	if err != nil {
		return nil, err
	}
	if cache != nil {
		if err := cache.Put(ctx, key, frames); err != nil {
			log.Warn("failed to cache poses", "error", err)
		}
	}
	return frames, nil
}

// estimatePoses streams the clip through ffmpeg at the sampling rate and fans the JPEG
// frames out to the engine pool.
func estimatePoses(ctx context.Context, cfg *config.Config, input string, info utils.VideoInfo, log *slog.Logger) ([]pose.RawFrame, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	fps := cfg.Sampling.FPS
	total := utils.SampledFrames(info, fps)
	if total <= 0 {
		// Fallback to a spinner if the frame count is unknown
		total = -1
	}
	fmt.Fprintf(os.Stderr, "⚙️  Spawning %d Pose Engines...\n", cfg.Sampling.Engines)
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetDescription("🏏 Estimating poses"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
	)

	pool := worker.NewPool(cfg.Sampling.Engines, worker.PythonFactory(cfg.WorkerConfig()), log)
	tasks := make(chan worker.Task, cfg.Sampling.Engines)

	type poolResult struct {
		frames []pose.RawFrame
		stats  worker.Stats
		err    error
	}
	done := make(chan poolResult, 1)
	go func() {
		frames, stats, err := pool.Run(ctx, tasks, func() { bar.Add(1) })
		if err != nil {
			cancel()
		}
		done <- poolResult{frames, stats, err}
	}()

	sampler := utils.NewFFmpegSampler(ctx, input, fps)
	samplerOut, err := sampler.StdoutPipe()
	if err != nil {
		close(tasks)
		<-done
		return nil, fmt.Errorf("failed to create ffmpeg stdout pipe: %w", err)
	}
	if err := sampler.Start(); err != nil {
		close(tasks)
		<-done
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	// Frame splitter: sampled frame n is at (n-1)/fps
	scanner := bufio.NewScanner(samplerOut)
	scanner.Buffer(make([]byte, megabyte), 64*megabyte)
	scanner.Split(utils.SplitJpeg)

	sent := 0
	for scanner.Scan() {
		sent++
		buf := frameBufferPool.Get().([]byte)
		if cap(buf) < len(scanner.Bytes()) {
			buf = make([]byte, len(scanner.Bytes()))
		}
		buf = buf[:len(scanner.Bytes())]
		copy(buf, scanner.Bytes())

		task := worker.Task{
			Index:     sent,
			Timestamp: time.Duration(float64(sent-1) / fps * float64(time.Second)),
			Data:      buf,
			Release:   releaseFrame,
		}
		select {
		case tasks <- task:
		case <-ctx.Done():
			releaseFrame(buf)
		}
		if ctx.Err() != nil {
			break
		}
	}
	scanErr := scanner.Err()
	close(tasks)
	res := <-done

	// a cancelled ctx has already killed ffmpeg
	waitErr := sampler.Wait()
	bar.Finish()

	if res.err != nil {
		return nil, res.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if scanErr != nil {
		return nil, fmt.Errorf("frame scanner failed: %w", scanErr)
	}
	if waitErr != nil {
		utils.ShowError("FFmpeg execution failed", waitErr, sampler)
		return nil, fmt.Errorf("ffmpeg sampler: %w", waitErr)
	}
	if len(res.frames) != sent {
		return nil, fmt.Errorf("pose pass returned %d of %d frames", len(res.frames), sent)
	}

	fmt.Fprintf(os.Stderr, "\n🏁 Pose pass complete. %d frames, %d without a batter, %d rejected.\n",
		res.stats.Frames, res.stats.Empty, res.stats.Failed)
	return res.frames, nil
}
