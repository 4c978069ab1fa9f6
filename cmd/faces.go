package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mkralik/photo-tagger/internal/config"
	"github.com/mkralik/photo-tagger/internal/face"
)

var facesCmd = &cobra.Command{
	Use:   "faces",
	Short: "Manage face identification",
}

var facesInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "List the people known from reference photos",
	Long: `Loads the reference face directory (one subdirectory per person) and
lists the people the recognizer can identify. Encoding the reference
photos may take a while on the first run; results are cached.`,
	RunE: runFacesInfo,
}

var facesClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop the cached reference face encodings",
	RunE:  runFacesClear,
}

func init() {
	rootCmd.AddCommand(facesCmd)
	facesCmd.AddCommand(facesInfoCmd)
	facesCmd.AddCommand(facesClearCmd)
}

func runFacesInfo(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	recognizer, err := newRecognizer(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	if recognizer == nil {
		fmt.Printf("Reference directory %s does not exist, face identification is disabled\n", cfg.Face.ReferenceDir)
		return nil
	}

	people := recognizer.People()
	if len(people) == 0 {
		fmt.Printf("No reference faces found in %s\n", cfg.Face.ReferenceDir)
		return nil
	}

	fmt.Printf("%d people known:\n", len(people))
	for _, name := range people {
		fmt.Printf("  %s\n", name)
	}
	return nil
}

func runFacesClear(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	cache, err := face.NewEncodingCache(filepath.Join(cfg.Processing.CacheDir, "encodings"))
	if err != nil {
		return fmt.Errorf("failed to open encoding cache: %w", err)
	}

	// Encodings are cached per person subdirectory.
	entries, err := os.ReadDir(cfg.Face.ReferenceDir)
	if err != nil {
		return fmt.Errorf("failed to read reference directory: %w", err)
	}
	cleared := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		cache.Invalidate(filepath.Join(cfg.Face.ReferenceDir, entry.Name()))
		cleared++
	}
	fmt.Printf("Cleared cached encodings for %d people in %s\n", cleared, cfg.Face.ReferenceDir)
	return nil
}
