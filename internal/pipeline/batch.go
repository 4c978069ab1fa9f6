package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
)

// Stats summarizes one batch run. Every non-video item in the album is
// accounted for in exactly one of the processed, skipped or errored buckets.
type Stats struct {
	RunID     string        `json:"run_id"`
	AlbumUID  string        `json:"album_uid"`
	Total     int           `json:"total"`
	Processed int           `json:"processed"`
	Skipped   int           `json:"skipped"`
	Errored   int           `json:"errored"`
	Elapsed   time.Duration `json:"elapsed_ns"`
	Results   []Result      `json:"results"`
}

// BatchOptions tune a batch run.
type BatchOptions struct {
	ShowProgress bool
	Limit        int  // 0 means no limit
	SkipVideos   bool // videos cannot be captioned by the vision models
}

// Batch runs the item pipeline over every photo in an album.
type Batch struct {
	pipeline *Pipeline
	host     Host
	opts     BatchOptions
}

func NewBatch(p *Pipeline, host Host, opts BatchOptions) *Batch {
	return &Batch{pipeline: p, host: host, opts: opts}
}

// Run processes the album sequentially in the host's listing order. A
// failure to list the album aborts the batch; per-item failures are
// recorded and the run moves on. Cancellation is honored between items,
// never mid-item.
func (b *Batch) Run(ctx context.Context, albumUID string) (*Stats, error) {
	start := time.Now()
	stats := &Stats{
		RunID:    uuid.NewString(),
		AlbumUID: albumUID,
	}

	album, err := b.host.GetAlbum(ctx, albumUID)
	if err != nil {
		return nil, fmt.Errorf("could not fetch album %s: %w", albumUID, err)
	}

	items, err := b.host.ListAlbumItems(ctx, albumUID)
	if err != nil {
		return nil, fmt.Errorf("could not list album %s: %w", albumUID, err)
	}

	photos := items[:0:0]
	for _, item := range items {
		if b.opts.SkipVideos && item.IsVideo() {
			slog.Debug("skipping video", "item", item.UID, "file", item.FileName)
			continue
		}
		photos = append(photos, item)
	}
	if b.opts.Limit > 0 && len(photos) > b.opts.Limit {
		photos = photos[:b.opts.Limit]
	}
	stats.Total = len(photos)

	slog.Info("batch started",
		"run_id", stats.RunID,
		"album", album.Title,
		"items", stats.Total,
		"dry_run", b.pipeline.opts.DryRun,
	)

	var bar *progressbar.ProgressBar
	if b.opts.ShowProgress {
		bar = progressbar.Default(int64(stats.Total), album.Title)
	}

	for _, item := range photos {
		if err := ctx.Err(); err != nil {
			stats.Elapsed = time.Since(start)
			return stats, fmt.Errorf("batch interrupted: %w", err)
		}

		result := b.pipeline.ProcessItem(ctx, album, item)
		stats.Results = append(stats.Results, result)
		switch result.Status {
		case StatusProcessed:
			stats.Processed++
		case StatusSkipped:
			stats.Skipped++
		case StatusError:
			stats.Errored++
		}

		if bar != nil {
			_ = bar.Add(1)
		}
	}

	stats.Elapsed = time.Since(start)
	slog.Info("batch finished",
		"run_id", stats.RunID,
		"processed", stats.Processed,
		"skipped", stats.Skipped,
		"errored", stats.Errored,
		"elapsed", stats.Elapsed.Round(time.Millisecond),
	)
	return stats, nil
}
