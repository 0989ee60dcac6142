package worker

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andresmejia3/crease/internal/pose"
)

// MockCloser wraps a bytes.Buffer to satisfy io.ReadCloser and io.WriteCloser interfaces.
// This allows us to use in-memory buffers as if they were OS Pipes.
type MockCloser struct {
	*bytes.Buffer
}

func (m *MockCloser) Close() error { return nil }

func mockWorker(reply []byte) (*PythonWorker, *MockCloser) {
	stdinMock := &MockCloser{Buffer: new(bytes.Buffer)}
	dataPipeMock := &MockCloser{Buffer: new(bytes.Buffer)}
	binary.Write(dataPipeMock, binary.BigEndian, uint32(len(reply)))
	dataPipeMock.Write(reply)
	// Cmd is nil because we aren't testing process management, just the protocol
	return &PythonWorker{ID: 1, Stdin: stdinMock, DataPipe: dataPipeMock}, stdinMock
}

func TestProcessFrame(t *testing.T) {
	payload := append([]byte{statusOK}, []byte(`[{"name":"nose","x":0.5,"y":0.25,"z":-0.1,"visibility":0.98},{"name":"left_wrist","x":0.4,"y":0.6,"z":0,"visibility":0.3}]`)...)
	w, stdinMock := mockWorker(payload)

	inputFrame := []byte{0xDE, 0xAD, 0xBE, 0xEF} // Fake image bytes
	lms, err := w.ProcessFrame(inputFrame)
	if err != nil {
		t.Fatalf("ProcessFrame failed: %v", err)
	}

	// Verify Go sent the correct data TO Python
	sentData := stdinMock.Bytes()
	if len(sentData) != 4+len(inputFrame) {
		t.Errorf("Expected %d bytes sent, got %d", 4+len(inputFrame), len(sentData))
	}
	if n := binary.BigEndian.Uint32(sentData[:4]); n != uint32(len(inputFrame)) {
		t.Errorf("Expected length header %d, got %d", len(inputFrame), n)
	}

	// Verify Go read the correct data FROM Python
	if len(lms) != 2 {
		t.Fatalf("Expected 2 landmarks, got %d", len(lms))
	}
	want := pose.RawLandmark{Name: "nose", X: 0.5, Y: 0.25, Z: -0.1, Confidence: 0.98}
	if lms[0] != want {
		t.Errorf("Expected %+v, got %+v", want, lms[0])
	}
	if lms[1].Confidence != 0.3 {
		t.Errorf("Expected visibility 0.3, got %f", lms[1].Confidence)
	}
}

func TestProcessFrame_NoPerson(t *testing.T) {
	w, _ := mockWorker(append([]byte{statusOK}, []byte(`[]`)...))
	lms, err := w.ProcessFrame([]byte("frame"))
	if err != nil {
		t.Fatalf("ProcessFrame failed: %v", err)
	}
	if len(lms) != 0 {
		t.Errorf("Expected no landmarks, got %d", len(lms))
	}
}

func TestProcessFrame_Error(t *testing.T) {
	errMsg := "Python Exception: cannot decode image"
	w, _ := mockWorker(append([]byte{statusError}, []byte(errMsg)...))

	_, err := w.ProcessFrame([]byte("frame"))
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	var ee *EstimatorError
	if !errors.As(err, &ee) {
		t.Fatalf("Expected *EstimatorError, got %T", err)
	}
	if err.Error() != "python worker error: "+errMsg {
		t.Errorf("Expected error message '%s', got '%v'", "python worker error: "+errMsg, err)
	}
}

func TestProcessFrame_Malformed(t *testing.T) {
	tests := map[string][]byte{
		"garbage json":   append([]byte{statusOK}, []byte(`{not json`)...),
		"unknown status": {7, '[', ']'},
		"empty":          {},
	}
	for name, reply := range tests {
		w, _ := mockWorker(reply)
		_, err := w.ProcessFrame([]byte("frame"))
		if err == nil {
			t.Errorf("%s: expected error", name)
			continue
		}
		var ee *EstimatorError
		if errors.As(err, &ee) {
			t.Errorf("%s: protocol failure must not look like an estimator error", name)
		}
	}
}

func TestProcessFrame_Truncated(t *testing.T) {
	// Python died mid-reply: header promises more than the pipe holds
	dataPipeMock := &MockCloser{Buffer: new(bytes.Buffer)}
	binary.Write(dataPipeMock, binary.BigEndian, uint32(100))
	dataPipeMock.Write([]byte{statusOK, '['})
	w := &PythonWorker{ID: 1, Stdin: &MockCloser{Buffer: new(bytes.Buffer)}, DataPipe: dataPipeMock}

	if _, err := w.ProcessFrame([]byte("frame")); err == nil {
		t.Fatal("Expected error on truncated reply")
	}
}

// fakeEstimator answers from the first byte of the frame:
// 'p' person, 'n' nobody, 'e' estimator error, 'x' crash.
type fakeEstimator struct {
	closed *atomic.Int32
}

func (f fakeEstimator) ProcessFrame(jpeg []byte) ([]pose.RawLandmark, error) {
	switch jpeg[0] {
	case 'p':
		return []pose.RawLandmark{{Name: "nose", X: 0.5, Y: 0.5, Confidence: 0.9}}, nil
	case 'e':
		return nil, &EstimatorError{Message: "bad frame"}
	case 'x':
		return nil, errors.New("broken pipe")
	}
	return nil, nil
}

func (f fakeEstimator) Close() error {
	f.closed.Add(1)
	return nil
}

func feed(kinds string) <-chan Task {
	tasks := make(chan Task)
	go func() {
		defer close(tasks)
		for i, k := range kinds {
			tasks <- Task{Index: i, Timestamp: time.Duration(i) * time.Second / 15, Data: []byte{byte(k)}}
		}
	}()
	return tasks
}

func TestPoolOrdersFrames(t *testing.T) {
	var closed atomic.Int32
	factory := func(_ context.Context, _ int) (Estimator, error) { return fakeEstimator{closed: &closed}, nil }

	kinds := "ppnpeppppnpppppppppp"
	var ticks int
	frames, stats, err := NewPool(4, factory, nil).Run(context.Background(), feed(kinds), func() { ticks++ })
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(frames) != len(kinds) || ticks != len(kinds) {
		t.Fatalf("Expected %d frames and ticks, got %d and %d", len(kinds), len(frames), ticks)
	}
	for i, f := range frames {
		if f.Index != i {
			t.Fatalf("Frame %d out of order: index %d", i, f.Index)
		}
		if f.Timestamp != time.Duration(i)*time.Second/15 {
			t.Errorf("Frame %d: wrong timestamp %v", i, f.Timestamp)
		}
	}
	if len(frames[4].Landmarks) != 0 {
		t.Error("Rejected frame should become an empty frame")
	}
	if stats.Empty != 2 || stats.Failed != 1 || stats.Frames != len(kinds) {
		t.Errorf("Unexpected stats: %+v", stats)
	}
	if closed.Load() != 4 {
		t.Errorf("Expected 4 estimators closed, got %d", closed.Load())
	}
}

func TestPoolReleasesBuffers(t *testing.T) {
	var closed atomic.Int32
	factory := func(_ context.Context, _ int) (Estimator, error) { return fakeEstimator{closed: &closed}, nil }

	var mu sync.Mutex
	released := 0
	tasks := make(chan Task)
	go func() {
		defer close(tasks)
		for i := 0; i < 10; i++ {
			tasks <- Task{Index: i, Data: []byte{'p'}, Release: func([]byte) {
				mu.Lock()
				released++
				mu.Unlock()
			}}
		}
	}()

	if _, _, err := NewPool(3, factory, nil).Run(context.Background(), tasks, nil); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if released != 10 {
		t.Errorf("Expected 10 buffers released, got %d", released)
	}
}

func TestPoolCrashAborts(t *testing.T) {
	var closed atomic.Int32
	factory := func(_ context.Context, _ int) (Estimator, error) { return fakeEstimator{closed: &closed}, nil }

	_, _, err := NewPool(2, factory, nil).Run(context.Background(), feed("pppxpppppp"), nil)
	if err == nil {
		t.Fatal("Expected crash to abort the run")
	}
	if !strings.Contains(err.Error(), "broken pipe") {
		t.Errorf("Expected the estimator failure in the error, got: %v", err)
	}
}

func TestPoolStartupFailure(t *testing.T) {
	var closed atomic.Int32
	factory := func(_ context.Context, id int) (Estimator, error) {
		if id == 2 {
			return nil, fmt.Errorf("no module named mediapipe")
		}
		return fakeEstimator{closed: &closed}, nil
	}

	_, _, err := NewPool(3, factory, nil).Run(context.Background(), feed("pppp"), nil)
	if err == nil {
		t.Fatal("Expected startup failure")
	}
	if closed.Load() != 2 {
		t.Errorf("Expected the 2 started estimators to be closed, got %d", closed.Load())
	}
}
