// Package worker drives the pose-estimation processes. Each worker is a Python MediaPipe
// process that receives JPEG frames on stdin and answers on a side-channel pipe.
package worker

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/andresmejia3/crease/internal/pose"
	"github.com/andresmejia3/crease/internal/utils"
)

// Response status bytes.
const (
	statusOK    = 0
	statusError = 1
)

// maxResponse guards against a corrupt length header.
const maxResponse = 16 << 20

// EstimatorError is a per-frame failure reported by the estimator itself. The process is
// still healthy and the frame is treated as having no person.
type EstimatorError struct {
	Message string
}

func (e *EstimatorError) Error() string { return "python worker error: " + e.Message }

// Config controls how a worker process is launched.
type Config struct {
	Python string
	Script string
	// ModelComplexity is MediaPipe's 0/1/2 model selector.
	ModelComplexity int
	MinDetection    float64
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{Python: "python3", Script: "python/worker.py", ModelComplexity: 1, MinDetection: 0.5}
}

type PythonWorker struct {
	ID       int
	Cmd      *utils.SafeCommand
	Stdin    io.WriteCloser
	DataPipe io.ReadCloser
}

func NewPythonWorker(ctx context.Context, id int, cfg Config) (*PythonWorker, error) {
	py := utils.NewSafeCommand(ctx, cfg.Python, "-u", cfg.Script,
		"--model-complexity", strconv.Itoa(cfg.ModelComplexity),
		"--min-detection", strconv.FormatFloat(cfg.MinDetection, 'f', -1, 64),
	)

	// Create a side-channel pipe (FD 3) for clean data transfer
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create pipe: %w", err)
	}
	// Pass the write-end to the child process. It will appear as FD 3.
	py.Cmd.ExtraFiles = []*os.File{w}

	stdin, err := py.StdinPipe()
	if err != nil {
		w.Close()
		r.Close()
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	if err := py.Start(); err != nil {
		w.Close()
		r.Close()
		return nil, fmt.Errorf("worker %d failed to start: %w", id, err)
	}

	// Close the write-end in the parent so only the child holds it
	w.Close()

	return &PythonWorker{
		ID:       id,
		Cmd:      py,
		Stdin:    stdin,
		DataPipe: r,
	}, nil
}

// Communicate sends one length-prefixed message and reads one length-prefixed reply.
func (w *PythonWorker) Communicate(data []byte) ([]byte, error) {
	if err := binary.Write(w.Stdin, binary.BigEndian, uint32(len(data))); err != nil {
		return nil, err
	}
	if _, err := w.Stdin.Write(data); err != nil {
		return nil, err
	}

	header := make([]byte, 4)
	if _, err := io.ReadFull(w.DataPipe, header); err != nil {
		return nil, err // This is where we catch an import error crash
	}

	respLen := binary.BigEndian.Uint32(header)
	if respLen > maxResponse {
		return nil, fmt.Errorf("response of %d bytes exceeds limit", respLen)
	}
	respBody := make([]byte, respLen)
	_, err := io.ReadFull(w.DataPipe, respBody)
	return respBody, err
}

// ProcessFrame estimates the pose in one JPEG frame. An empty result means no person was
// found. Protocol errors are returned as is; an *EstimatorError means the process is
// still usable.
func (w *PythonWorker) ProcessFrame(jpeg []byte) ([]pose.RawLandmark, error) {
	resp, err := w.Communicate(jpeg)
	if err != nil {
		return nil, err
	}
	return decodeResponse(resp)
}

func decodeResponse(resp []byte) ([]pose.RawLandmark, error) {
	if len(resp) == 0 {
		return nil, errors.New("empty response from worker")
	}
	switch resp[0] {
	case statusOK:
		var lms []pose.RawLandmark
		if err := json.Unmarshal(resp[1:], &lms); err != nil {
			return nil, fmt.Errorf("malformed landmark payload: %w", err)
		}
		return lms, nil
	case statusError:
		return nil, &EstimatorError{Message: string(resp[1:])}
	default:
		return nil, fmt.Errorf("unknown status byte %d", resp[0])
	}
}

func (w *PythonWorker) Close() error {
	w.Stdin.Close()
	w.DataPipe.Close()
	if w.Cmd == nil {
		return nil
	}
	return w.Cmd.Wait()
}
