package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/andresmejia3/crease/internal/pose"
)

// Estimator turns one JPEG frame into raw landmarks.
type Estimator interface {
	ProcessFrame(jpeg []byte) ([]pose.RawLandmark, error)
	Close() error
}

// Factory starts the estimator for worker id.
type Factory func(ctx context.Context, id int) (Estimator, error)

// PythonFactory starts PythonWorkers with cfg.
func PythonFactory(cfg Config) Factory {
	return func(ctx context.Context, id int) (Estimator, error) {
		return NewPythonWorker(ctx, id, cfg)
	}
}

// Task is one sampled frame awaiting estimation.
type Task struct {
	Index     int
	Timestamp time.Duration
	Data      []byte
	// Release, if set, receives Data once the worker is done with it.
	Release func([]byte)
}

// Stats describes a finished pool run.
type Stats struct {
	Frames int
	// Empty counts frames where no person was found.
	Empty int
	// Failed counts frames the estimator rejected.
	Failed int
}

// Pool runs a fixed number of estimators over a task stream.
type Pool struct {
	size    int
	factory Factory
	log     *slog.Logger
}

// NewPool creates a pool of size estimators.
func NewPool(size int, factory Factory, logger *slog.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pool{size: size, factory: factory, log: logger.With("component", "worker")}
}

type result struct {
	frame  pose.RawFrame
	failed bool
}

// Run estimates every task and returns the raw frames ordered by index. progress, if
// set, is called once per finished frame from the collecting goroutine. A crashed
// estimator aborts the run; the remaining tasks are drained so the producer can finish.
func (p *Pool) Run(ctx context.Context, tasks <-chan Task, progress func()) ([]pose.RawFrame, Stats, error) {
	var stats Stats
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	estimators := make([]Estimator, 0, p.size)
	closeAll := func() {
		for _, e := range estimators {
			e.Close()
		}
	}
	for id := 0; id < p.size; id++ {
		e, err := p.factory(ctx, id)
		if err != nil {
			closeAll()
			go drain(tasks)
			return nil, stats, fmt.Errorf("worker %d startup failed: %w", id, err)
		}
		estimators = append(estimators, e)
	}
	p.log.Debug("estimators ready", "count", len(estimators))

	results := make(chan result, p.size*2)
	errs := make(chan error, p.size)
	var wg sync.WaitGroup
	for id, e := range estimators {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range tasks {
				if ctx.Err() != nil {
					release(task)
					continue
				}
				lms, err := e.ProcessFrame(task.Data)
				release(task)

				var ee *EstimatorError
				failed := false
				switch {
				case errors.As(err, &ee):
					p.log.Warn("estimator rejected frame", "worker", id, "frame", task.Index, "error", ee.Message)
					failed = true
					lms = nil
				case err != nil:
					errs <- fmt.Errorf("worker %d crashed at frame %d: %w", id, task.Index, err)
					cancel()
					continue
				}

				select {
				case results <- result{frame: pose.RawFrame{Index: task.Index, Timestamp: task.Timestamp, Landmarks: lms}, failed: failed}:
				case <-ctx.Done():
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var frames []pose.RawFrame
	for res := range results {
		frames = append(frames, res.frame)
		stats.Frames++
		switch {
		case res.failed:
			stats.Failed++
		case len(res.frame.Landmarks) == 0:
			stats.Empty++
		}
		if progress != nil {
			progress()
		}
	}

	var runErr error
	for _, e := range estimators {
		if err := e.Close(); err != nil && runErr == nil && ctx.Err() == nil {
			runErr = fmt.Errorf("worker exited uncleanly: %w", err)
		}
	}
	select {
	case err := <-errs:
		return nil, stats, err
	default:
	}
	if err := ctx.Err(); err != nil {
		return nil, stats, err
	}
	if runErr != nil {
		return nil, stats, runErr
	}

	slices.SortFunc(frames, func(a, b pose.RawFrame) int { return a.Index - b.Index })
	return frames, stats, nil
}

func release(t Task) {
	if t.Release != nil {
		t.Release(t.Data)
	}
}

func drain(tasks <-chan Task) {
	for t := range tasks {
		release(t)
	}
}
