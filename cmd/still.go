package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strings"

	"github.com/andresmejia3/crease/internal/biomech"
	"github.com/andresmejia3/crease/internal/normalize"
	"github.com/andresmejia3/crease/internal/pose"
	"github.com/andresmejia3/crease/internal/records"
	"github.com/andresmejia3/crease/internal/utils"
	"github.com/andresmejia3/crease/internal/viewer"
	"github.com/andresmejia3/crease/internal/worker"
	"github.com/spf13/cobra"
)

var (
	stillSide string
	stillPage string
)

var stillCmd = &cobra.Command{
	Use:   "still <image_path>",
	Short: "Measure the batter's posture in a single photo",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		if stillSide != "" {
			Cfg.Biomech.Side = strings.ToLower(stillSide)
			if err := Cfg.Validate(); err != nil {
				return err
			}
		}
		return runStill(cmd.Context(), args[0])
	},
}

func init() {
	stillCmd.Flags().StringVarP(&stillSide, "side", "s", "", "Batting side: right or left")
	stillCmd.Flags().StringVar(&stillPage, "page", "", "Also write an interactive 3-D page to this path")
	rootCmd.AddCommand(stillCmd)
}

func runStill(ctx context.Context, imagePath string) error {
	imgData, err := os.ReadFile(imagePath)
	if err != nil {
		utils.ShowError("Failed to read image file", err, nil)
		return err
	}
	imgCfg, _, err := image.DecodeConfig(bytes.NewReader(imgData))
	if err != nil {
		utils.ShowError("Unsupported image (expected JPEG or PNG)", err, nil)
		return err
	}

	fmt.Fprintln(os.Stderr, "🚀 Starting Pose Engine...")
	// We use ID 0 for this ad-hoc worker
	w, err := worker.NewPythonWorker(ctx, 0, Cfg.WorkerConfig())
	if err != nil {
		utils.ShowError("Failed to start pose engine", err, nil)
		return err
	}
	defer w.Close()

	fmt.Fprintln(os.Stderr, "🔍 Estimating pose...")
	landmarks, err := w.ProcessFrame(imgData)
	var estErr *worker.EstimatorError
	if errors.As(err, &estErr) {
		fmt.Printf("❌ Pose engine rejected the image: %s\n", estErr.Message)
		return nil
	}
	if err != nil {
		utils.ShowError("Pose estimation failed", err, w.Cmd)
		return err
	}
	if len(landmarks) == 0 {
		fmt.Println("❌ No batter detected in the provided image.")
		return nil
	}

	aspect := float64(imgCfg.Width) / float64(imgCfg.Height)
	skel, err := normalize.Normalize(pose.RawFrame{Index: 1, Landmarks: landmarks}, Cfg.NormalizeConfig(aspect))
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		return nil
	}
	sample, errs := biomech.Measure(&skel, Cfg.BiomechConfig())
	for _, e := range errs {
		Log.Debug("metric unavailable", "error", e)
	}
	frame := stillFrame(sample)

	fmt.Printf("🏏 %d/%d joints visible (%s-handed)\n", skel.ValidCount(), pose.JointCount, Cfg.Side())
	fmt.Println(renderTable([]string{"Metric", "Value"}, metricRows(frame), []columnAlignment{alignLeft, alignRight}))

	if stillPage == "" {
		return nil
	}
	f, err := os.Create(stillPage)
	if err != nil {
		return err
	}
	entry := records.Entry{Row: records.Row{Metrics: frame}, Skeleton: skel, HasSkeleton: true}
	if err := viewer.WritePage(f, entry, viewer.PageOptions{Title: imagePath}); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Printf("🦴 Page written to %s\n", stillPage)
	return nil
}

// stillFrame publishes a single sample unsmoothed. Velocities stay invalid.
func stillFrame(s biomech.Sample) biomech.MetricFrame {
	m := biomech.MetricFrame{Index: s.Index, Timestamp: s.Timestamp}
	for i := range s.Values {
		if s.Valid[i] {
			m.Values[i] = biomech.Metric{Value: s.Values[i], Raw: s.Values[i], Valid: true}
		}
	}
	return m
}

func metricRows(m biomech.MetricFrame) [][]string {
	rows := make([][]string, 0, biomech.MetricCount)
	for i, name := range biomech.MetricNames {
		v := "-"
		if mv := m.Values[i]; mv.Valid {
			v = fmt.Sprintf("%.1f", mv.Value)
		}
		rows = append(rows, []string{name, v})
	}
	return rows
}
