// Package vision generates photo captions and keyword tags with a vision
// model. Providers share one capability interface; the concrete backend is
// chosen by name from a registry.
package vision

import (
	"context"
	_ "embed"
	"fmt"
	"sort"
	"strings"
)

//go:embed prompts/caption.txt
var captionPrompt string

//go:embed prompts/tags.txt
var tagsPrompt string

// Provider is a vision model capable of describing an image.
type Provider interface {
	Name() string

	// GenerateCaption describes the image in one or two sentences.
	GenerateCaption(ctx context.Context, imageData []byte, prompt string) (string, error)

	// GenerateTags produces keyword tags for the image. The Strategy field
	// of the result says whether the model's output parsed cleanly or the
	// fallback keyword extraction kicked in.
	GenerateTags(ctx context.Context, imageData []byte, prompt string) (TagResult, error)

	// Probe checks reachability and model presence once at startup.
	Probe(ctx context.Context) Availability

	// Usage returns accumulated token counts and cost.
	Usage() *Usage
}

// Availability is the result of a provider capability probe.
type Availability struct {
	Available bool
	Detail    string // model name when available, failure reason otherwise
}

// Usage tracks token usage and calculates cost.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalCost    float64 // in USD
}

// Config carries the settings a provider constructor may need.
type Config struct {
	Endpoint string // Ollama base URL
	Model    string
	APIKey   string // OpenAI / Gemini
}

type constructor func(ctx context.Context, cfg Config) (Provider, error)

// registry maps configuration names to provider constructors.
var registry = map[string]constructor{
	"ollama": func(_ context.Context, cfg Config) (Provider, error) {
		return NewOllamaProvider(cfg.Endpoint, cfg.Model), nil
	},
	"openai": func(_ context.Context, cfg Config) (Provider, error) {
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai provider requires an API key")
		}
		return NewOpenAIProvider(cfg.APIKey, cfg.Model), nil
	},
	"gemini": func(ctx context.Context, cfg Config) (Provider, error) {
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("gemini provider requires an API key")
		}
		return NewGeminiProvider(ctx, cfg.APIKey, cfg.Model)
	},
}

// NewProvider constructs the named provider.
func NewProvider(ctx context.Context, name string, cfg Config) (Provider, error) {
	construct, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown vision provider %q (available: %s)", name, strings.Join(ProviderNames(), ", "))
	}
	return construct(ctx, cfg)
}

// ProviderNames lists the registered provider names, sorted.
func ProviderNames() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultCaptionPrompt is the base prompt for caption generation.
func DefaultCaptionPrompt() string {
	return strings.TrimSpace(captionPrompt)
}

// DefaultTagsPrompt is the base prompt for tag generation.
func DefaultTagsPrompt() string {
	return strings.TrimSpace(tagsPrompt)
}

// BuildPrompt appends available context (album, location, people) to a base
// prompt. Context never replaces the base instructions.
func BuildPrompt(base, album, location string, people []string) string {
	var parts []string
	if album != "" {
		parts = append(parts, "Album: "+album)
	}
	if location != "" {
		parts = append(parts, "Location: "+location)
	}
	if len(people) > 0 {
		parts = append(parts, "People: "+strings.Join(people, ", "))
	}
	if len(parts) == 0 {
		return base
	}
	return base + "\n\nContext: " + strings.Join(parts, " | ")
}
