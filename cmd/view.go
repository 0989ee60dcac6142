package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/andresmejia3/crease/internal/normalize"
	"github.com/andresmejia3/crease/internal/phase"
	"github.com/andresmejia3/crease/internal/pose"
	"github.com/andresmejia3/crease/internal/records"
	"github.com/andresmejia3/crease/internal/utils"
	"github.com/andresmejia3/crease/internal/viewer"
	"github.com/spf13/cobra"
)

type ViewOptions struct {
	archiveOptions
	Frame      int
	GhostPath  string
	GhostFrame int
	PagePath   string
	AssetsHost string
}

var viewOpts ViewOptions

var viewCmd = &cobra.Command{
	Use:   "view",
	Short: "Write an interactive 3-D page for one analysed frame",
	Long: `Rebuilds the skeleton of one frame from the landmarks file of an earlier analysis
and writes an HTML page with a rotatable 3-D pose and the frame's metrics.

Without --frame the first impact frame is shown.`,
	Run: func(cmd *cobra.Command, args []string) {
		a, out, err := openArchive(cmd.Context(), viewOpts.archiveOptions, true)
		if err != nil {
			utils.Die("Failed to load analysis", err, nil)
		}
		frame, err := pickFrame(a, viewOpts.Frame)
		if err != nil {
			utils.Die("Invalid frame", err, nil)
		}
		e, _ := a.Lookup(frame)

		popts := viewer.PageOptions{
			Title:      fmt.Sprintf("%s frame %d", filepath.Base(viewOpts.InputPath), frame),
			AssetsHost: viewOpts.AssetsHost,
		}
		if viewOpts.GhostPath != "" {
			ghost, err := ghostSkeleton(viewOpts.GhostPath, viewOpts.GhostFrame, ghostOffset(a.Segments(), frame), aspectFor(cmd.Context(), viewOpts.archiveOptions))
			if err != nil {
				utils.Die("Failed to load ghost reference", err, nil)
			}
			popts.Ghost = &ghost
		}

		path := viewOpts.PagePath
		if path == "" {
			path = strings.TrimSuffix(out.Features, "_features.csv") + fmt.Sprintf("_frame%d.html", frame)
		}
		f, err := os.Create(path)
		if err != nil {
			utils.Die("Failed to create page", err, nil)
		}
		if err := viewer.WritePage(f, e, popts); err != nil {
			f.Close()
			os.Remove(path)
			utils.Die("Failed to render page", err, nil)
		}
		if err := f.Close(); err != nil {
			utils.Die("Failed to write page", err, nil)
		}
		fmt.Printf("🦴 Frame %d (%s, %s) written to %s\n", frame, e.Row.Tag.Phase, e.Row.Metrics.Timestamp, path)
	},
}

func init() {
	viewCmd.Flags().StringVarP(&viewOpts.InputPath, "input", "i", "", "Analysed video")
	viewCmd.Flags().StringVarP(&viewOpts.OutputDir, "output", "o", "", "Directory holding the analysis (default from config)")
	viewCmd.Flags().Float64Var(&viewOpts.Aspect, "aspect", 0, "Width/height ratio of the clip (default: probe the video)")
	viewCmd.Flags().IntVarP(&viewOpts.Frame, "frame", "n", 0, "Frame index to show")
	viewCmd.Flags().StringVarP(&viewOpts.GhostPath, "ghost", "g", "", "Reference landmarks JSON drawn behind the batter")
	viewCmd.Flags().IntVar(&viewOpts.GhostFrame, "ghost-frame", 0, "Reference frame index (default: aligned to the segment start)")
	viewCmd.Flags().StringVar(&viewOpts.PagePath, "page", "", "HTML output path")
	viewCmd.Flags().StringVar(&viewOpts.AssetsHost, "assets-host", "", "Alternative host for the echarts scripts")

	viewCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(viewCmd)
}

// pickFrame validates a requested frame, defaulting to the first impact or the first frame.
func pickFrame(a *records.Archive, frame int) (int, error) {
	first, last, ok := a.Bounds()
	if !ok {
		return 0, fmt.Errorf("analysis has no frames")
	}
	if frame == 0 {
		for _, s := range a.Segments() {
			if s.Impact >= 0 {
				return s.Impact, nil
			}
		}
		return first, nil
	}
	if frame < first || frame > last {
		return 0, fmt.Errorf("frame %d outside %d..%d", frame, first, last)
	}
	return frame, nil
}

// ghostOffset is the position of frame inside its segment, or 0 outside any segment.
func ghostOffset(segs []phase.Segment, frame int) int {
	for _, s := range segs {
		if frame >= s.Start && frame <= s.End {
			return frame - s.Start
		}
	}
	return 0
}

// ghostSkeleton normalizes one frame of a reference landmarks file. An explicit index
// wins; otherwise the reference is read from its first frame plus offset, clamped.
func ghostSkeleton(path string, index, offset int, aspect float64) (pose.Skeleton, error) {
	raw, err := records.LoadLandmarks(path)
	if err != nil {
		return pose.Skeleton{}, err
	}
	if len(raw) == 0 {
		return pose.Skeleton{}, fmt.Errorf("%s has no frames", path)
	}
	i := offset
	if index > 0 {
		i = index - raw[0].Index
	}
	if i < 0 || i >= len(raw) {
		if index > 0 {
			return pose.Skeleton{}, fmt.Errorf("reference frame %d not in %s", index, path)
		}
		i = len(raw) - 1
	}
	return normalize.Normalize(raw[i], Cfg.NormalizeConfig(aspect))
}
