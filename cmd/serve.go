package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mkralik/photo-tagger/internal/config"
	"github.com/mkralik/photo-tagger/internal/pipeline"
	"github.com/mkralik/photo-tagger/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Photo Tagger web server. The JSON API exposes album browsing
and asynchronous processing jobs, including dry-run previews.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Address to listen on (defaults to WEB_ADDR or :8080)")
	serveCmd.Flags().String("provider", "", "Vision provider to use: ollama, openai, gemini")
	serveCmd.Flags().String("model", "", "Model override for the selected provider")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	addr := mustGetString(cmd, "addr")
	if addr == "" {
		addr = cfg.Web.Addr
	}

	ctx := context.Background()

	host, err := newHostClient(cfg)
	if err != nil {
		return err
	}
	provider, err := newVisionProvider(ctx, cfg, mustGetString(cmd, "provider"), mustGetString(cmd, "model"))
	if err != nil {
		return err
	}

	// Each job builds its own pipeline so dry-run and force are honored
	// per request. Progress bars stay off; jobs report through the API.
	factory := func(opts pipeline.Options) web.Runner {
		return &jobRunner{cfg: cfg, opts: opts}
	}

	server := web.NewServer(addr, host, factory, provider)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Photo Tagger API on %s\n", addr)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}

// jobRunner builds a fresh batch for every job, so each request's options
// take effect without rewiring the shared server state.
type jobRunner struct {
	cfg  *config.Config
	opts pipeline.Options
}

func (r *jobRunner) Run(ctx context.Context, albumUID string) (*pipeline.Stats, error) {
	p, host, _, err := newPipeline(ctx, r.cfg, stackOptions{
		dryRun: r.opts.DryRun,
		force:  r.opts.ForceReprocess,
	})
	if err != nil {
		return nil, err
	}
	batch := pipeline.NewBatch(p, host, pipeline.BatchOptions{SkipVideos: true})
	return batch.Run(ctx, albumUID)
}
