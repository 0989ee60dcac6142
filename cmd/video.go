package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/andresmejia3/crease/internal/render"
	"github.com/andresmejia3/crease/internal/utils"
	"github.com/schollz/progressbar/v3"
)

// videoOutput owns the decoder and encoder processes around a render.VideoSink.
type videoOutput struct {
	path       string
	decoder    *utils.SafeCommand
	encoder    *utils.SafeCommand
	decoderOut io.ReadCloser
	encoderIn  io.WriteCloser
	sink       *render.VideoSink
	bar        *progressbar.ProgressBar
	cancel     context.CancelFunc
	done       bool
	log        *slog.Logger
}

// startVideo starts an RGBA decoder at the sampling rate and an H.264 encoder at the same
// rate, so the coaching video plays sampled frames at real speed apart from slow-motion
// repeats.
func startVideo(ctx context.Context, input, output string, fps float64, info utils.VideoInfo, frames int, log *slog.Logger) (*videoOutput, error) {
	ctx, cancel := context.WithCancel(ctx)
	v := &videoOutput{path: output, cancel: cancel, log: log}

	v.decoder = utils.NewFFmpegRawDecoder(ctx, input, fps)
	out, err := v.decoder.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create decoder pipe: %w", err)
	}
	if err := v.decoder.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start decoder: %w", err)
	}
	v.decoderOut = out

	v.encoder = utils.NewFFmpegEncoder(ctx, output, fps, info.Width, info.Height)
	in, err := v.encoder.StdinPipe()
	if err != nil {
		v.abort()
		return nil, fmt.Errorf("failed to create encoder pipe: %w", err)
	}
	if err := v.encoder.Start(); err != nil {
		v.abort()
		return nil, fmt.Errorf("failed to start encoder: %w", err)
	}
	v.encoderIn = in

	total := frames
	if total <= 0 {
		total = -1
	}
	v.bar = progressbar.NewOptions(total,
		progressbar.OptionSetDescription("🎬 Rendering"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
	)
	renderer := render.New(info.Width, info.Height, render.DefaultStyle())
	v.sink = render.NewVideoSink(out, in, renderer, func() { v.bar.Add(1) }, log)
	return v, nil
}

// finish closes the encoder input and waits for both processes. Decoded frames past the
// last directive are discarded so the decoder can exit.
func (v *videoOutput) finish() error {
	defer v.cancel()
	v.done = true

	v.encoderIn.Close()
	if err := v.encoder.Wait(); err != nil {
		utils.ShowError("Encoder process failed", err, v.encoder)
		return fmt.Errorf("encoder: %w", err)
	}
	if _, err := io.Copy(io.Discard, v.decoderOut); err != nil {
		v.log.Debug("decoder drain failed", "error", err)
	}
	if err := v.decoder.Wait(); err != nil {
		utils.ShowError("Decoder process failed", err, v.decoder)
		return fmt.Errorf("decoder: %w", err)
	}
	v.bar.Finish()
	if v.sink.Missing > 0 {
		v.log.Warn("coaching video is shorter than the analysis", "missing_frames", v.sink.Missing)
	}
	fmt.Fprintln(os.Stderr, "\n"+renderedLine(v.path, v.sink))
	return nil
}

// renderedLine reports what the video sink wrote, calling out frames the source could not supply.
func renderedLine(path string, s *render.VideoSink) string {
	line := fmt.Sprintf("🎞️  Wrote %d frames (%d source) to %s", s.Written, s.Frames, path)
	if s.Missing > 0 {
		line += fmt.Sprintf(" ⚠️  %d analysed frames missing: the decoded video ended early", s.Missing)
	}
	return line
}

// abort kills both processes and removes the partial video. It is a no-op after finish.
func (v *videoOutput) abort() {
	if v.done {
		return
	}
	v.done = true
	v.cancel()
	if v.encoderIn != nil {
		v.encoderIn.Close()
	}
	if v.encoder != nil && v.encoder.Process != nil {
		v.encoder.Wait()
	}
	if v.decoder != nil && v.decoder.Process != nil {
		v.decoder.Wait()
	}
	os.Remove(v.path)
}
