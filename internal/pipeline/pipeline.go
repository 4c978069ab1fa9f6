// Package pipeline runs photographs through enrichment: download, GPS
// extraction, location resolution, face identification, caption and tag
// generation, metadata formatting and the optional commit back to the host.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/mkralik/photo-tagger/internal/face"
	"github.com/mkralik/photo-tagger/internal/geo"
	"github.com/mkralik/photo-tagger/internal/metadata"
	"github.com/mkralik/photo-tagger/internal/photohost"
	"github.com/mkralik/photo-tagger/internal/vision"
)

// Step names the pipeline stage an item is in, or failed in.
type Step string

const (
	StepDownloading       Step = "downloading"
	StepLocatingGPS       Step = "locating_gps"
	StepResolvingLocation Step = "resolving_location"
	StepIdentifyingFaces  Step = "identifying_faces"
	StepGeneratingCaption Step = "generating_caption"
	StepGeneratingTags    Step = "generating_tags"
	StepFormatting        Step = "formatting"
	StepCommitting        Step = "committing"
)

// Status is the per-item outcome.
type Status string

const (
	StatusProcessed Status = "processed"
	StatusSkipped   Status = "skipped"
	StatusError     Status = "error"
)

// Result is the per-item outcome record. Proposed fields are populated even
// when dry-run prevents commit, so preview and commit share identical
// decision logic; on error they hold whatever was computed before the
// failure.
type Result struct {
	ItemUID  string `json:"item_uid"`
	FileName string `json:"file_name"`
	Status   Status `json:"status"`

	CurrentCaption  string   `json:"current_caption,omitempty"`
	CurrentKeywords []string `json:"current_keywords,omitempty"`

	ProposedCaption string          `json:"proposed_caption,omitempty"`
	ProposedTags    []string        `json:"proposed_tags,omitempty"`
	People          []string        `json:"people,omitempty"`
	Location        string          `json:"location,omitempty"`
	LocationAliases []string        `json:"location_aliases,omitempty"`
	TagStrategy     vision.Strategy `json:"tag_strategy,omitempty"`

	FailedStep Step          `json:"failed_step,omitempty"`
	Error      string        `json:"error,omitempty"`
	SkipReason string        `json:"skip_reason,omitempty"`
	Elapsed    time.Duration `json:"elapsed_ns"`
	Committed  bool          `json:"committed"`
}

// Host is the subset of the photo host client the pipeline needs.
type Host interface {
	GetAlbum(ctx context.Context, albumUID string) (*photohost.Album, error)
	ListAlbumItems(ctx context.Context, albumUID string) ([]photohost.Item, error)
	Download(ctx context.Context, item photohost.Item, destDir string) (string, error)
	UpdateMetadata(ctx context.Context, itemUID string, update photohost.MetadataUpdate) (*photohost.Item, error)
}

// Locator resolves coordinates to place names.
type Locator interface {
	Resolve(ctx context.Context, coord geo.Coordinate, opts geo.ResolveOptions) geo.Resolution
}

// Identifier finds known people in a photo.
type Identifier interface {
	Identify(ctx context.Context, path string) ([]face.Match, error)
	MinConfidence() float64
}

// Options tune a pipeline run.
type Options struct {
	DryRun         bool
	ForceReprocess bool
	Interactive    bool
	PreferCustom   bool
	DownloadDir    string
}

// Pipeline enriches one item at a time. The faces and resolver collaborators
// may be nil, disabling the corresponding step.
type Pipeline struct {
	host      Host
	resolver  Locator
	faces     Identifier
	vision    vision.Provider
	formatter *metadata.Formatter
	opts      Options
}

func New(host Host, resolver Locator, faces Identifier, provider vision.Provider, formatter *metadata.Formatter, opts Options) *Pipeline {
	return &Pipeline{
		host:      host,
		resolver:  resolver,
		faces:     faces,
		vision:    provider,
		formatter: formatter,
		opts:      opts,
	}
}

// ProcessItem runs one item through the full enrichment state machine.
// Failures stop the item and record the failed step; partial proposed
// metadata computed before the failure stays in the result.
func (p *Pipeline) ProcessItem(ctx context.Context, album *photohost.Album, item photohost.Item) (result Result) {
	start := time.Now()
	result = Result{
		ItemUID:         item.UID,
		FileName:        item.FileName,
		CurrentCaption:  item.Caption,
		CurrentKeywords: item.Keywords,
	}
	defer func() { result.Elapsed = time.Since(start) }()

	fail := func(step Step, err error) Result {
		result.Status = StatusError
		result.FailedStep = step
		result.Error = err.Error()
		slog.Warn("item failed", "item", item.UID, "step", step, "err", err)
		return result
	}

	// The marker decides the skip, nothing else.
	if p.formatter.HasMarker(item.Keywords) && !p.opts.ForceReprocess {
		result.Status = StatusSkipped
		result.SkipReason = "already processed"
		return result
	}

	localPath, err := p.host.Download(ctx, item, p.opts.DownloadDir)
	if err != nil {
		return fail(StepDownloading, fmt.Errorf("download failed: %w", err))
	}

	// Host GPS takes precedence over EXIF from the downloaded file.
	coord, hasGPS := geo.Coordinate{}, false
	if item.HasLocation() {
		coord, err = geo.NewCoordinate(item.Lat, item.Lng)
		hasGPS = err == nil
	}
	if !hasGPS {
		exifCoord, found, exifErr := extractGPS(localPath)
		if exifErr != nil {
			slog.Debug("EXIF GPS extraction failed", "item", item.UID, "err", exifErr)
		} else if found {
			coord, hasGPS = exifCoord, true
		}
	}

	// No GPS means no location, not an error.
	var resolution geo.Resolution
	if hasGPS && p.resolver != nil {
		resolution = p.resolver.Resolve(ctx, coord, geo.ResolveOptions{
			PreferCustom: p.opts.PreferCustom,
			Interactive:  p.opts.Interactive,
		})
		result.Location = resolution.Display
		result.LocationAliases = resolution.Aliases
	}

	var people []string
	if p.faces != nil {
		matches, err := p.faces.Identify(ctx, localPath)
		if err != nil {
			return fail(StepIdentifyingFaces, fmt.Errorf("face identification failed: %w", err))
		}
		people = face.PersonNames(matches, p.faces.MinConfidence())
		result.People = people
	}

	albumTitle := ""
	if album != nil {
		albumTitle = album.Title
	}

	imageData, err := os.ReadFile(localPath)
	if err != nil {
		return fail(StepGeneratingCaption, fmt.Errorf("could not read image: %w", err))
	}

	captionPrompt := vision.BuildPrompt(vision.DefaultCaptionPrompt(), albumTitle, result.Location, people)
	caption, err := p.vision.GenerateCaption(ctx, imageData, captionPrompt)
	if err != nil {
		return fail(StepGeneratingCaption, fmt.Errorf("caption generation failed: %w", err))
	}
	result.ProposedCaption = caption

	tagsPrompt := vision.BuildPrompt(vision.DefaultTagsPrompt(), albumTitle, result.Location, people)
	tagResult, err := p.vision.GenerateTags(ctx, imageData, tagsPrompt)
	if err != nil {
		return fail(StepGeneratingTags, fmt.Errorf("tag generation failed: %w", err))
	}
	result.TagStrategy = tagResult.Strategy

	locationTags := metadata.LocationTags(result.Location)
	locationTags = append(locationTags, resolution.Aliases...)

	result.ProposedCaption = p.formatter.FormatCaption(caption, item.Caption, result.Location, people)
	result.ProposedTags = p.formatter.FormatTags(tagResult.Tags, item.Keywords, people, locationTags)

	if p.opts.DryRun {
		result.Status = StatusProcessed
		return result
	}

	if _, err := p.host.UpdateMetadata(ctx, item.UID, photohost.MetadataUpdate{
		Caption:  result.ProposedCaption,
		Keywords: result.ProposedTags,
	}); err != nil {
		return fail(StepCommitting, fmt.Errorf("metadata update failed: %w", err))
	}
	result.Committed = true
	result.Status = StatusProcessed
	return result
}
