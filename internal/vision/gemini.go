package vision

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-flash"

// gemini-2.5-flash pricing per 1M tokens.
const (
	geminiInputPrice  = 0.30
	geminiOutputPrice = 2.50
)

// GeminiProvider generates captions and tags through the Gemini API.
type GeminiProvider struct {
	client *genai.Client
	model  string
	usage  Usage
}

func NewGeminiProvider(ctx context.Context, apiKey, model string) (*GeminiProvider, error) {
	if model == "" {
		model = defaultGeminiModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiProvider{client: client, model: model}, nil
}

func (p *GeminiProvider) Name() string {
	return "gemini/" + p.model
}

func (p *GeminiProvider) Usage() *Usage {
	return &p.usage
}

func (p *GeminiProvider) trackUsage(inputTokens, outputTokens int32) {
	p.usage.InputTokens += int(inputTokens)
	p.usage.OutputTokens += int(outputTokens)
	p.usage.TotalCost += float64(inputTokens) / 1_000_000 * geminiInputPrice
	p.usage.TotalCost += float64(outputTokens) / 1_000_000 * geminiOutputPrice
}

func (p *GeminiProvider) GenerateCaption(ctx context.Context, imageData []byte, prompt string) (string, error) {
	content, err := p.generate(ctx, imageData, prompt)
	if err != nil {
		return "", err
	}
	if content == "" {
		return "", errors.New("empty caption from model")
	}
	return content, nil
}

func (p *GeminiProvider) GenerateTags(ctx context.Context, imageData []byte, prompt string) (TagResult, error) {
	content, err := p.generate(ctx, imageData, prompt)
	if err != nil {
		return TagResult{}, err
	}
	return ParseTags(content), nil
}

func (p *GeminiProvider) generate(ctx context.Context, imageData []byte, prompt string) (string, error) {
	resized, err := prepareImage(imageData)
	if err != nil {
		return "", err
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: prompt},
				{InlineData: &genai.Blob{Data: resized, MIMEType: "image/jpeg"}},
			},
		},
	}

	result, err := p.client.Models.GenerateContent(ctx, p.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("gemini API error: %w", err)
	}

	if result.UsageMetadata != nil {
		p.trackUsage(result.UsageMetadata.PromptTokenCount, result.UsageMetadata.CandidatesTokenCount)
	}

	return stripThinking(result.Text()), nil
}

// Probe verifies the API key and model by fetching model info.
func (p *GeminiProvider) Probe(ctx context.Context) Availability {
	if _, err := p.client.Models.Get(ctx, p.model, nil); err != nil {
		return Availability{Detail: fmt.Sprintf("gemini model %s unavailable: %v", p.model, err)}
	}
	return Availability{Available: true, Detail: p.model}
}
