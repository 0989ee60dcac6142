package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/andresmejia3/crease/internal/utils"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:         "list",
	Short:       "List analysis runs stored in the database",
	Annotations: map[string]string{storeAnnotation: storeRequired},
	Run: func(cmd *cobra.Command, args []string) {
		runs, err := DB.ListRuns(cmd.Context())
		if err != nil {
			utils.Die("Failed to list runs", err, nil)
		}
		if len(runs) == 0 {
			fmt.Println("No runs found in database.")
			return
		}

		rows := make([][]string, 0, len(runs))
		for _, r := range runs {
			finished := "running"
			if r.FinishedAt != nil {
				finished = r.FinishedAt.Local().Format("2006-01-02 15:04")
			}
			rows = append(rows, []string{
				r.ID.String(),
				filepath.Base(r.VideoPath),
				fmt.Sprintf("%g", r.SampleFPS),
				r.Side,
				fmt.Sprintf("%d", r.Frames),
				fmt.Sprintf("%d", r.Segments),
				finished,
			})
		}
		fmt.Println(renderTable(
			[]string{"Run", "Video", "FPS", "Side", "Frames", "Segments", "Finished"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignRight, alignLeft},
		))
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
