package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/andresmejia3/crease/internal/biomech"
	"github.com/andresmejia3/crease/internal/records"
	"github.com/andresmejia3/crease/internal/store"
	"github.com/andresmejia3/crease/internal/utils"
	"github.com/andresmejia3/crease/internal/viewer"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type PlotOptions struct {
	archiveOptions
	RunID   string
	Metrics []string
	Raw     bool
	Image   string
}

var plotOpts PlotOptions

var plotCmd = &cobra.Command{
	Use:         "plot",
	Short:       "Plot metric timelines of an analysed clip or stored run",
	Annotations: map[string]string{storeAnnotation: storeOptional},
	Run: func(cmd *cobra.Command, args []string) {
		metrics, err := parseMetrics(plotOpts.Metrics)
		if err != nil {
			utils.Die("Invalid metric", err, nil)
		}

		var a *records.Archive
		var title, path string
		switch {
		case plotOpts.RunID != "":
			id, err := uuid.Parse(plotOpts.RunID)
			if err != nil {
				utils.Die("Invalid run ID", err, nil)
			}
			a, err = archiveFromStore(cmd.Context(), id)
			if err != nil {
				utils.Die("Failed to load run", err, nil)
			}
			title = "run " + id.String()[:8]
			path = filepath.Join(Cfg.Paths.OutputDir, "run_"+id.String()[:8]+"_timeline.png")
		case plotOpts.InputPath != "":
			var out outputPaths
			a, out, err = openArchive(cmd.Context(), plotOpts.archiveOptions, false)
			if err != nil {
				utils.Die("Failed to load analysis", err, nil)
			}
			title = filepath.Base(plotOpts.InputPath)
			path = strings.TrimSuffix(out.Features, "_features.csv") + "_timeline.png"
		default:
			utils.Die("Nothing to plot", errors.New("pass --input or --run"), nil)
		}
		if plotOpts.Image != "" {
			path = plotOpts.Image
		}

		err = viewer.SaveTimeline(path, a, viewer.TimelineOptions{Title: title, Metrics: metrics, Raw: plotOpts.Raw})
		if err != nil {
			utils.Die("Failed to plot", err, nil)
		}
		fmt.Printf("📈 Timeline written to %s\n", path)
	},
}

func init() {
	plotCmd.Flags().StringVarP(&plotOpts.InputPath, "input", "i", "", "Analysed video")
	plotCmd.Flags().StringVarP(&plotOpts.OutputDir, "output", "o", "", "Directory holding the analysis (default from config)")
	plotCmd.Flags().StringVar(&plotOpts.RunID, "run", "", "Stored run ID (requires the database)")
	plotCmd.Flags().StringSliceVarP(&plotOpts.Metrics, "metric", "m", nil, "Metric columns to plot (default: elbow, x-factor, bat tilt)")
	plotCmd.Flags().BoolVar(&plotOpts.Raw, "raw", false, "Plot unsmoothed values")
	plotCmd.Flags().StringVar(&plotOpts.Image, "image", "", "PNG/SVG/PDF output path")

	plotCmd.MarkFlagsMutuallyExclusive("input", "run")
	rootCmd.AddCommand(plotCmd)
}

func parseMetrics(names []string) ([]biomech.MetricID, error) {
	ids := make([]biomech.MetricID, 0, len(names))
	for _, n := range names {
		id, ok := biomech.ParseMetric(strings.TrimSpace(n))
		if !ok {
			return nil, fmt.Errorf("unknown metric %q (one of %s)", n, strings.Join(biomech.MetricNames[:], ", "))
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// archiveFromStore rebuilds an archive from the metric frames of a stored run.
func archiveFromStore(ctx context.Context, id uuid.UUID) (*records.Archive, error) {
	if DB == nil {
		return nil, errors.New("--run needs a database; set store.enabled or --db")
	}
	frames, tags, err := DB.Frames(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("%s: %w", id, store.ErrRunNotFound)
	}
	rows := make([]records.Row, len(frames))
	for i := range frames {
		rows[i] = records.Row{Metrics: frames[i], Tag: tags[i]}
	}
	return records.NewArchive(rows, nil)
}
