package cmd

import (
	"context"
	"fmt"

	"github.com/andresmejia3/crease/internal/normalize"
	"github.com/andresmejia3/crease/internal/pose"
	"github.com/andresmejia3/crease/internal/records"
	"github.com/andresmejia3/crease/internal/utils"
)

// archiveOptions locate the artefacts of an earlier analysis.
type archiveOptions struct {
	InputPath string
	OutputDir string
	// Aspect overrides the probed width/height ratio used to rebuild skeletons.
	Aspect float64
}

// openArchive loads the metrics CSV and, when withSkeletons is set, rebuilds the
// normalized skeletons from the landmarks file written next to it.
func openArchive(ctx context.Context, opts archiveOptions, withSkeletons bool) (*records.Archive, outputPaths, error) {
	dir := opts.OutputDir
	if dir == "" {
		dir = Cfg.Paths.OutputDir
	}
	out := outputsFor(dir, opts.InputPath)

	rows, err := records.Load(out.Features)
	if err != nil {
		return nil, out, fmt.Errorf("no analysis found for %s (run `crease analyze` first): %w", opts.InputPath, err)
	}
	if !withSkeletons {
		a, err := records.NewArchive(rows, nil)
		return a, out, err
	}

	raw, err := records.LoadLandmarks(out.Landmarks)
	if err != nil {
		return nil, out, err
	}
	skels := normalizeAll(raw, aspectFor(ctx, opts))
	a, err := records.NewArchive(rows, skels)
	return a, out, err
}

// aspectFor returns the clip's width/height ratio, from the flag or by probing the video.
func aspectFor(ctx context.Context, opts archiveOptions) float64 {
	if opts.Aspect > 0 {
		return opts.Aspect
	}
	info, err := utils.ProbeVideo(ctx, opts.InputPath)
	if err != nil {
		Log.Warn("could not probe video, assuming 16:9", "input", opts.InputPath, "error", err)
		return 16.0 / 9
	}
	return float64(info.Width) / float64(info.Height)
}

// normalizeAll rebuilds skeletons; frames without a usable torso keep Scaled unset.
func normalizeAll(raw []pose.RawFrame, aspect float64) []pose.Skeleton {
	ncfg := Cfg.NormalizeConfig(aspect)
	skels := make([]pose.Skeleton, 0, len(raw))
	for _, f := range raw {
		s, _ := normalize.Normalize(f, ncfg)
		skels = append(skels, s)
	}
	return skels
}
