package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mkralik/photo-tagger/internal/config"
	"github.com/mkralik/photo-tagger/internal/pipeline"
	"github.com/mkralik/photo-tagger/internal/vision"
)

var processCmd = &cobra.Command{
	Use:   "process [album-uid]",
	Short: "Enrich photos in an album with AI metadata",
	Long: `Process every photo in an album: generate a caption and keyword tags,
identify known people, resolve GPS coordinates to place names, and write
the results back to the photo host. Photos already carrying the marker
tag are skipped unless --force is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().Bool("dry-run", false, "Preview changes without writing them to the host")
	processCmd.Flags().Bool("force", false, "Reprocess photos that already carry the marker tag")
	processCmd.Flags().Bool("interactive", false, "Ask which nearby venue to use when several are found")
	processCmd.Flags().Int("limit", 0, "Limit number of photos to process (0 = no limit)")
	processCmd.Flags().Bool("no-faces", false, "Disable face identification")
	processCmd.Flags().Bool("skip-videos", true, "Skip video items")
	processCmd.Flags().String("provider", "", "Vision provider to use: ollama, openai, gemini")
	processCmd.Flags().String("model", "", "Model override for the selected provider")
}

func runProcess(cmd *cobra.Command, args []string) error {
	albumUID := args[0]
	cfg := config.Load()

	opts := stackOptions{
		dryRun:      mustGetBool(cmd, "dry-run"),
		force:       mustGetBool(cmd, "force"),
		interactive: mustGetBool(cmd, "interactive"),
		noFaces:     mustGetBool(cmd, "no-faces"),
		provider:    mustGetString(cmd, "provider"),
		model:       mustGetString(cmd, "model"),
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	p, host, provider, err := newPipeline(ctx, cfg, opts)
	if err != nil {
		return err
	}

	batch := pipeline.NewBatch(p, host, pipeline.BatchOptions{
		ShowProgress: true,
		Limit:        mustGetInt(cmd, "limit"),
		SkipVideos:   mustGetBool(cmd, "skip-videos"),
	})
	stats, err := batch.Run(ctx, albumUID)
	if err != nil {
		if stats != nil {
			printSummary(stats, opts.dryRun)
		}
		return err
	}

	if opts.dryRun {
		printProposals(stats)
	}
	printSummary(stats, opts.dryRun)
	printUsage(provider)
	return nil
}

func printProposals(stats *pipeline.Stats) {
	for _, result := range stats.Results {
		if result.Status != pipeline.StatusProcessed {
			continue
		}
		fmt.Printf("\n%s (%s)\n", result.FileName, result.ItemUID)
		if result.Location != "" {
			fmt.Printf("  Location: %s\n", result.Location)
		}
		if len(result.People) > 0 {
			fmt.Printf("  People:   %s\n", strings.Join(result.People, ", "))
		}
		fmt.Printf("  Caption:  %s\n", result.ProposedCaption)
		fmt.Printf("  Tags:     %s\n", strings.Join(result.ProposedTags, ", "))
	}
}

func printSummary(stats *pipeline.Stats, dryRun bool) {
	mode := "applied"
	if dryRun {
		mode = "previewed (dry run, nothing written)"
	}
	fmt.Printf("\nProcessed %d, skipped %d, errored %d of %d photos in %s (%s)\n",
		stats.Processed, stats.Skipped, stats.Errored, stats.Total,
		stats.Elapsed.Round(time.Millisecond), mode)

	for _, result := range stats.Results {
		if result.Status == pipeline.StatusError {
			fmt.Printf("  error: %s failed at %s: %s\n", result.FileName, result.FailedStep, result.Error)
		}
	}
}

func printUsage(provider vision.Provider) {
	usage := provider.Usage()
	if usage == nil || (usage.InputTokens == 0 && usage.OutputTokens == 0) {
		return
	}
	fmt.Printf("Token usage: %d in, %d out", usage.InputTokens, usage.OutputTokens)
	if usage.TotalCost > 0 {
		fmt.Printf(" ($%.4f)", usage.TotalCost)
	}
	fmt.Println()
}
