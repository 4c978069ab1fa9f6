package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mkralik/photo-tagger/internal/config"
	"github.com/mkralik/photo-tagger/internal/face"
	"github.com/mkralik/photo-tagger/internal/geo"
	"github.com/mkralik/photo-tagger/internal/metadata"
	"github.com/mkralik/photo-tagger/internal/photohost"
	"github.com/mkralik/photo-tagger/internal/pipeline"
	"github.com/mkralik/photo-tagger/internal/vision"
)

func newHostClient(cfg *config.Config) (*photohost.Client, error) {
	if cfg.PhotoHost.URL == "" {
		return nil, errors.New("PHOTOHOST_URL environment variable is required")
	}
	if cfg.PhotoHost.Token == "" {
		return nil, errors.New("PHOTOHOST_TOKEN environment variable is required")
	}
	client, err := photohost.NewClient(cfg.PhotoHost.URL, cfg.PhotoHost.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create photo host client: %w", err)
	}
	return client, nil
}

func newResolver(cfg *config.Config) (*geo.Resolver, error) {
	gazetteer, err := geo.LoadGazetteer(cfg.Location.GazetteerPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load gazetteer: %w", err)
	}
	geocoder := geo.NewNominatimClient(cfg.Location.NominatimURL)
	pois := geo.NewOverpassClient(cfg.Location.OverpassURL)
	resolver := geo.NewResolver(gazetteer, geocoder, pois, os.Stdin, os.Stdout)
	resolver.SetPOIRadius(cfg.Location.POIRadius)
	return resolver, nil
}

// newRecognizer builds the face recognizer and loads reference faces. A
// missing reference directory disables face identification instead of
// failing the whole run.
func newRecognizer(ctx context.Context, cfg *config.Config) (*face.Recognizer, error) {
	if _, err := os.Stat(cfg.Face.ReferenceDir); err != nil {
		return nil, nil
	}

	cache, err := face.NewEncodingCache(filepath.Join(cfg.Processing.CacheDir, "encodings"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encoding cache: %w", err)
	}

	service := face.NewServiceClient(cfg.Face.ServiceURL)
	recognizer := face.NewRecognizer(service, cache, face.RecognizerConfig{
		Tolerance:      cfg.Face.Tolerance,
		DetectionScale: cfg.Face.DetectionScale,
		MinConfidence:  cfg.Face.MinConfidence,
	})
	if err := recognizer.LoadReferenceFaces(ctx, cfg.Face.ReferenceDir); err != nil {
		return nil, fmt.Errorf("failed to load reference faces: %w", err)
	}
	return recognizer, nil
}

func newVisionProvider(ctx context.Context, cfg *config.Config, providerOverride, modelOverride string) (vision.Provider, error) {
	name := cfg.Vision.Provider
	if providerOverride != "" {
		name = providerOverride
	}
	model := cfg.Vision.Model
	if modelOverride != "" {
		model = modelOverride
	}

	apiKey := ""
	switch name {
	case "openai":
		apiKey = cfg.Vision.OpenAIKey
	case "gemini":
		apiKey = cfg.Vision.GeminiKey
	}

	provider, err := vision.NewProvider(ctx, name, vision.Config{
		Endpoint: cfg.Vision.OllamaURL,
		Model:    model,
		APIKey:   apiKey,
	})
	if err != nil {
		return nil, err
	}

	if availability := provider.Probe(ctx); !availability.Available {
		return nil, fmt.Errorf("vision provider %s is not available: %s", provider.Name(), availability.Detail)
	}
	return provider, nil
}

// stackOptions carry the command line choices into stack construction.
type stackOptions struct {
	dryRun      bool
	force       bool
	interactive bool
	noFaces     bool
	provider    string
	model       string
}

// newPipeline wires the full enrichment stack from configuration.
func newPipeline(ctx context.Context, cfg *config.Config, opts stackOptions) (*pipeline.Pipeline, *photohost.Client, vision.Provider, error) {
	host, err := newHostClient(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	resolver, err := newResolver(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	var recognizer *face.Recognizer
	if !opts.noFaces {
		recognizer, err = newRecognizer(ctx, cfg)
		if err != nil {
			return nil, nil, nil, err
		}
	}

	provider, err := newVisionProvider(ctx, cfg, opts.provider, opts.model)
	if err != nil {
		return nil, nil, nil, err
	}

	formatter := metadata.NewFormatter(cfg.Processing.MarkerTag, cfg.Processing.PreserveExisting)

	downloadDir := filepath.Join(cfg.Processing.CacheDir, "downloads")
	if err := os.MkdirAll(downloadDir, 0o755); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create download directory: %w", err)
	}

	pipelineOpts := pipeline.Options{
		DryRun:         opts.dryRun,
		ForceReprocess: opts.force,
		Interactive:    opts.interactive,
		PreferCustom:   cfg.Location.PreferCustom,
		DownloadDir:    downloadDir,
	}

	var faces pipeline.Identifier
	if recognizer != nil {
		faces = recognizer
	}

	return pipeline.New(host, resolver, faces, provider, formatter, pipelineOpts), host, provider, nil
}
