package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// --- 2. Video Engine (shared by the pose pass and the render pass) ---

var (
	JpegSOI = []byte{0xFF, 0xD8} // Start of Image
	JpegEOI = []byte{0xFF, 0xD9} // End of Image
)

// VideoInfo is what ffprobe reports about the first video stream.
type VideoInfo struct {
	FPS    float64
	Width  int
	Height int
	// Frames is the container frame count, 0 when unknown.
	Frames int
}

// Duration returns the stream length in seconds, or 0 when the frame count is unknown.
func (v VideoInfo) Duration() float64 {
	if v.FPS <= 0 {
		return 0
	}
	return float64(v.Frames) / v.FPS
}

type ffprobeOutput struct {
	Streams []struct {
		Width         int    `json:"width"`
		Height        int    `json:"height"`
		RFrameRate    string `json:"r_frame_rate"`
		AvgFrameRate  string `json:"avg_frame_rate"`
		NbFrames      string `json:"nb_frames"`
		NbReadPackets string `json:"nb_read_packets"`
	} `json:"streams"`
}

// ProbeVideo reads frame rate, dimensions and frame count in a single ffprobe call.
func ProbeVideo(ctx context.Context, path string) (VideoInfo, error) {
	if _, err := exec.LookPath("ffprobe"); err != nil {
		return VideoInfo{}, fmt.Errorf("ffprobe not found in PATH: %w", err)
	}
	probe := NewSafeCommand(ctx, "ffprobe", "-v", "error", "-select_streams", "v:0",
		"-show_entries", "stream=width,height,r_frame_rate,avg_frame_rate,nb_frames", "-of", "json", path)
	out, err := probe.Output()
	if err != nil {
		return VideoInfo{}, fmt.Errorf("ffprobe failed: %w: %s", err, strings.TrimSpace(probe.Stderr.String()))
	}
	return parseProbe(out)
}

func parseProbe(out []byte) (VideoInfo, error) {
	var res ffprobeOutput
	if err := json.Unmarshal(out, &res); err != nil {
		return VideoInfo{}, fmt.Errorf("ffprobe JSON parse error: %w", err)
	}
	if len(res.Streams) == 0 {
		return VideoInfo{}, errors.New("no video stream found")
	}
	s := res.Streams[0]

	// avg_frame_rate is the better estimate for variable frame rate phone footage
	fps, err := parseRate(s.AvgFrameRate)
	if err != nil {
		if fps, err = parseRate(s.RFrameRate); err != nil {
			return VideoInfo{}, fmt.Errorf("unreadable frame rate %q: %w", s.RFrameRate, err)
		}
	}
	if s.Width <= 0 || s.Height <= 0 {
		return VideoInfo{}, fmt.Errorf("invalid dimensions %dx%d", s.Width, s.Height)
	}
	info := VideoInfo{FPS: fps, Width: s.Width, Height: s.Height}
	if n, err := strconv.Atoi(s.NbFrames); err == nil && n > 0 {
		info.Frames = n
	}
	return info, nil
}

// parseRate parses ffprobe rationals such as "30000/1001".
func parseRate(r string) (float64, error) {
	num, den, found := strings.Cut(r, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, err
	}
	d := 1.0
	if found {
		if d, err = strconv.ParseFloat(den, 64); err != nil {
			return 0, err
		}
	}
	if d == 0 || n <= 0 {
		return 0, fmt.Errorf("non-positive rate %q", r)
	}
	return n / d, nil
}

// GetTotalFrames counts packets for the progress bar when the container has no frame count.
// It returns 0 if the count fails, allowing callers to fallback to a spinner.
func GetTotalFrames(ctx context.Context, path string) int {
	if _, err := exec.LookPath("ffprobe"); err != nil {
		return 0
	}
	fmt.Fprintf(os.Stderr, "⏳ Metadata missing. Counting frames (this may take a moment)...\n")
	cmd := exec.CommandContext(ctx, "ffprobe", "-v", "error", "-select_streams", "v:0", "-count_packets",
		"-show_entries", "stream=nb_read_packets", "-of", "json", path)
	out, err := cmd.Output()
	if err != nil {
		return 0
	}
	var res ffprobeOutput
	if err := json.Unmarshal(out, &res); err != nil || len(res.Streams) == 0 {
		return 0
	}
	count, err := strconv.Atoi(res.Streams[0].NbReadPackets)
	if err != nil {
		return 0
	}
	return count
}

// SampledFrames estimates how many frames the fps filter will emit.
func SampledFrames(info VideoInfo, fps float64) int {
	if info.Frames <= 0 || info.FPS <= 0 || fps <= 0 {
		return 0
	}
	if fps >= info.FPS {
		return info.Frames
	}
	return int(float64(info.Frames) * fps / info.FPS)
}

// SplitJpeg is the custom splitter for bufio.Scanner
// It locates the Start Of Image (FFD8) and End Of Image (FFD9) markers to extract full JPEG frames.
func SplitJpeg(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	start := bytes.Index(data, JpegSOI)
	if start == -1 {
		return 0, nil, nil
	}
	end := bytes.Index(data[start:], JpegEOI)
	if end == -1 {
		return 0, nil, nil
	}
	return start + end + 2, data[start : start+end+2], nil
}

func fpsFilter(fps float64) string {
	return "fps=" + strconv.FormatFloat(fps, 'f', -1, 64)
}

// NewFFmpegSampler streams the input as MJPEG frames resampled to fps.
func NewFFmpegSampler(ctx context.Context, inputPath string, fps float64) *SafeCommand {
	return NewSafeCommand(ctx, "ffmpeg", "-hide_banner", "-loglevel", "error", "-i", inputPath,
		"-vf", fpsFilter(fps), "-f", "image2pipe", "-vcodec", "mjpeg", "-q:v", "3", "-")
}

// NewFFmpegRawDecoder streams RGBA frames resampled with the same filter as the sampler, so
// frame n here is sampled frame n of the pose pass.
func NewFFmpegRawDecoder(ctx context.Context, inputPath string, fps float64) *SafeCommand {
	return NewSafeCommand(ctx, "ffmpeg", "-hide_banner", "-loglevel", "error", "-i", inputPath,
		"-vf", fpsFilter(fps), "-f", "rawvideo", "-pix_fmt", "rgba", "-")
}

// NewFFmpegEncoder reads RGBA frames on stdin and writes an H.264 MP4.
func NewFFmpegEncoder(ctx context.Context, outputPath string, fps float64, width, height int) *SafeCommand {
	return NewSafeCommand(ctx, "ffmpeg", "-hide_banner", "-loglevel", "error", "-y",
		"-f", "rawvideo", "-pix_fmt", "rgba", "-s", fmt.Sprintf("%dx%d", width, height),
		"-r", strconv.FormatFloat(fps, 'f', -1, 64), "-i", "-",
		"-c:v", "libx264", "-pix_fmt", "yuv420p", "-preset", "veryfast", "-movflags", "+faststart",
		outputPath)
}
