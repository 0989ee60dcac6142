package utils

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"strings"
	"testing"
)

func TestSplitJpeg(t *testing.T) {
	// Construct a stream containing: [Garbage] [JPEG] [Garbage] [JPEG]
	// SOI (Start of Image): FF D8
	// EOI (End of Image):   FF D9

	jpegA := []byte{0xFF, 0xD8, 0x01, 0x02, 0x03, 0xFF, 0xD9}
	jpegB := []byte{0xFF, 0xD8, 0x04, 0xFF, 0xD9}

	streamData := []byte{0x00, 0x00} // Garbage at start
	streamData = append(streamData, jpegA...)
	streamData = append(streamData, 0x00)
	streamData = append(streamData, jpegB...)

	scanner := bufio.NewScanner(bytes.NewReader(streamData))
	scanner.Split(SplitJpeg)

	for i, want := range [][]byte{jpegA, jpegB} {
		if !scanner.Scan() {
			t.Fatalf("Expected token %d, got EOF", i)
		}
		if !bytes.Equal(scanner.Bytes(), want) {
			t.Errorf("Token %d: expected %X, got %X", i, want, scanner.Bytes())
		}
	}
	if scanner.Scan() {
		t.Error("Expected only two tokens, found more")
	}
}

func TestGenerateVideoID(t *testing.T) {
	tmp, err := os.CreateTemp(t.TempDir(), "video_test")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tmp.Write([]byte("fake video content")); err != nil {
		t.Fatal(err)
	}
	tmp.Close()

	id, err := GenerateVideoID(tmp.Name())
	if err != nil || id == "" {
		t.Errorf("Failed to generate ID: %v", err)
	}

	// Verify Determinism
	id2, _ := GenerateVideoID(tmp.Name())
	if id != id2 {
		t.Errorf("Hash is not deterministic. Got %s, then %s", id, id2)
	}

	// Verify Sensitivity (Change content -> Change ID)
	f, _ := os.OpenFile(tmp.Name(), os.O_APPEND|os.O_WRONLY, 0644)
	f.Write([]byte(" modification"))
	f.Close()

	id3, _ := GenerateVideoID(tmp.Name())
	if id == id3 {
		t.Error("Hash did not change after file modification")
	}

	if _, err := GenerateVideoID(tmp.Name() + ".missing"); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestParseRate(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"30/1", 30, false},
		{"30000/1001", 29.97002997, false},
		{"25", 25, false},
		{"0/0", 0, true},
		{"abc", 0, true},
		{"30/x", 0, true},
	}
	for _, tt := range tests {
		got, err := parseRate(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseRate(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if math.Abs(got-tt.want) > 1e-6 {
			t.Errorf("parseRate(%q) = %f, want %f", tt.in, got, tt.want)
		}
	}
}

func TestParseProbe(t *testing.T) {
	out := []byte(`{"streams":[{"width":1920,"height":1080,"r_frame_rate":"60/1","avg_frame_rate":"0/0","nb_frames":"N/A"}]}`)
	info, err := parseProbe(out)
	if err != nil {
		t.Fatalf("parseProbe failed: %v", err)
	}
	if info.FPS != 60 || info.Width != 1920 || info.Height != 1080 || info.Frames != 0 {
		t.Errorf("Unexpected info: %+v", info)
	}

	out = []byte(`{"streams":[{"width":720,"height":1280,"r_frame_rate":"30/1","avg_frame_rate":"30/1","nb_frames":"300"}]}`)
	info, err = parseProbe(out)
	if err != nil {
		t.Fatalf("parseProbe failed: %v", err)
	}
	if info.Frames != 300 || info.Duration() != 10 {
		t.Errorf("Unexpected info: %+v", info)
	}
	if got := SampledFrames(info, 15); got != 150 {
		t.Errorf("SampledFrames = %d, want 150", got)
	}
	if got := SampledFrames(info, 60); got != 300 {
		t.Errorf("SampledFrames above source rate = %d, want 300", got)
	}

	if _, err := parseProbe([]byte(`{"streams":[]}`)); err == nil {
		t.Error("Expected error for missing stream")
	}
	if _, err := parseProbe([]byte(`{"streams":[{"width":0,"height":0,"r_frame_rate":"30/1"}]}`)); err == nil {
		t.Error("Expected error for zero dimensions")
	}
}

func TestShowError(t *testing.T) {
	var buf bytes.Buffer
	old := errOut
	errOut = &buf
	defer func() { errOut = old }()

	cmd := NewSafeCommand(context.Background(), "python3")
	cmd.Stderr.WriteString("Traceback: boom")
	ShowError("Worker startup failed", errors.New("exit status 1"), cmd)

	out := buf.String()
	for _, want := range []string{"CREASE ERROR: Worker startup failed", "DETAILS: exit status 1", "Traceback: boom"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out)
		}
	}
}
