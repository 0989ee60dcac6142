package cmd

import (
	"fmt"

	"github.com/andresmejia3/crease/internal/store"
	"github.com/andresmejia3/crease/internal/utils"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:         "show <run_id>",
	Short:       "Show the shot segments of a stored run",
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{storeAnnotation: storeRequired},
	Run: func(cmd *cobra.Command, args []string) {
		id, err := uuid.Parse(args[0])
		if err != nil {
			utils.Die("Invalid run ID", err, nil)
		}
		run, err := findRun(cmd, id)
		if err != nil {
			utils.Die("Failed to load run", err, nil)
		}
		segs, err := DB.Segments(cmd.Context(), id)
		if err != nil {
			utils.Die("Failed to load segments", err, nil)
		}

		fmt.Printf("📼 %s  (%d frames @ %g fps, %s-handed)\n", run.VideoPath, run.Frames, run.SampleFPS, run.Side)
		if len(segs) == 0 {
			fmt.Println("No shots detected.")
			return
		}
		fmt.Println(renderTable(segmentHeaders, segmentRows(segs, run.SampleFPS), segmentAligns))
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
}

// findRun looks a run up by id among the stored runs.
func findRun(cmd *cobra.Command, id uuid.UUID) (store.Run, error) {
	runs, err := DB.ListRuns(cmd.Context())
	if err != nil {
		return store.Run{}, err
	}
	for _, r := range runs {
		if r.ID == id {
			return r, nil
		}
	}
	return store.Run{}, fmt.Errorf("%s: %w", id, store.ErrRunNotFound)
}

