package cmd

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/andresmejia3/crease/internal/posecache"
	"github.com/andresmejia3/crease/internal/utils"
	"github.com/spf13/cobra"
)

var (
	resetDB    bool
	resetFiles bool
	resetCache bool
	resetVideo string
	resetYes   bool
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset stored state (run database, generated files, pose cache)",
	Long: `Clears stored state. By default, it resets everything. Use flags to clear specific components.

With --video only the pose cache entries of that clip are purged.`,
	Annotations: map[string]string{storeAnnotation: storeOptional},
	Run: func(cmd *cobra.Command, args []string) {
		if resetVideo != "" {
			purgeVideo(cmd, resetVideo)
			return
		}
		// If no flags are set, default to clearing EVERYTHING
		if !resetDB && !resetFiles && !resetCache {
			resetDB = DB != nil
			resetFiles = true
			resetCache = true
		}

		reader := bufio.NewReader(os.Stdin)

		if resetDB {
			if DB == nil {
				utils.Die("Failed to reset database", fmt.Errorf("no database configured; pass --db"), nil)
			}
			if confirm(reader, "⚠️  Are you sure you want to DROP all database tables?") {
				fmt.Println("🗑️  Clearing Database...")
				if err := DB.Reset(cmd.Context()); err != nil {
					utils.Die("Failed to reset database", err, nil)
				}
			}
		}

		if resetFiles {
			if confirm(reader, fmt.Sprintf("⚠️  Are you sure you want to delete all generated files in %s?", Cfg.Paths.OutputDir)) {
				fmt.Println("🗑️  Clearing Output Files (CSVs, Landmarks, Videos)...")
				n := removeOutputs(Cfg.Paths.OutputDir)
				fmt.Printf("   removed %d files\n", n)
			}
		}

		if resetCache {
			if confirm(reader, "⚠️  Are you sure you want to delete the pose cache?") {
				fmt.Println("🗑️  Clearing Pose Cache...")
				removeFile(Cfg.Paths.PoseCache)
			}
		}

		fmt.Println("✨ Reset Complete.")
	},
}

func init() {
	resetCmd.Flags().BoolVar(&resetDB, "db", false, "Clear the PostgreSQL run store")
	resetCmd.Flags().BoolVar(&resetFiles, "files", false, "Clear generated files (metrics, landmarks, videos)")
	resetCmd.Flags().BoolVar(&resetCache, "cache", false, "Delete the pose cache")
	resetCmd.Flags().StringVar(&resetVideo, "video", "", "Only purge cached poses of this video")
	resetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "Do not ask for confirmation")
	rootCmd.AddCommand(resetCmd)
}

func confirm(r *bufio.Reader, prompt string) bool {
	if resetYes {
		return true
	}
	fmt.Printf("%s [y/N]: ", prompt)
	res, _ := r.ReadString('\n')
	res = strings.TrimSpace(strings.ToLower(res))
	return res == "y" || res == "yes"
}

// outputPatterns match the artefacts analyze writes; other files in the directory are left alone.
var outputPatterns = []string{"*_features.csv", "*_landmarks.json", "*_visualized.mp4", "*_timeline.png", "*_frame*.html"}

func removeOutputs(dir string) int {
	n := 0
	for _, pattern := range outputPatterns {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			continue
		}
		for _, m := range matches {
			if removeFile(m) {
				n++
			}
		}
	}
	return n
}

func removeFile(path string) bool {
	if err := os.Remove(path); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "⚠️  Failed to remove %s: %v\n", path, err)
		}
		return false
	}
	return true
}

func purgeVideo(cmd *cobra.Command, input string) {
	videoID, err := utils.GenerateVideoID(input)
	if err != nil {
		utils.Die("Failed to generate video ID", err, nil)
	}
	cache, err := posecache.Open(Cfg.Paths.PoseCache)
	if err != nil {
		utils.Die("Failed to open pose cache", err, nil)
	}
	defer cache.Close()
	n, err := cache.Purge(cmd.Context(), videoID)
	if err != nil {
		utils.Die("Failed to purge pose cache", err, nil)
	}
	fmt.Printf("🗑️  Purged %d cached entries for %s\n", n, input)
}
