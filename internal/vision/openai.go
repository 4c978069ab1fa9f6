package vision

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const defaultOpenAIModel = openai.ChatModelGPT4_1Mini

// gpt-4.1-mini pricing per 1M tokens.
const (
	openAIInputPrice  = 0.40
	openAIOutputPrice = 1.60
)

// OpenAIProvider generates captions and tags through the OpenAI chat API.
type OpenAIProvider struct {
	client *openai.Client
	model  string
	usage  Usage
}

func NewOpenAIProvider(apiKey, model string) *OpenAIProvider {
	if model == "" {
		model = defaultOpenAIModel
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIProvider{client: &client, model: model}
}

func (p *OpenAIProvider) Name() string {
	return "openai/" + p.model
}

func (p *OpenAIProvider) Usage() *Usage {
	return &p.usage
}

func (p *OpenAIProvider) trackUsage(inputTokens, outputTokens int64) {
	p.usage.InputTokens += int(inputTokens)
	p.usage.OutputTokens += int(outputTokens)
	p.usage.TotalCost += float64(inputTokens) / 1_000_000 * openAIInputPrice
	p.usage.TotalCost += float64(outputTokens) / 1_000_000 * openAIOutputPrice
}

func (p *OpenAIProvider) GenerateCaption(ctx context.Context, imageData []byte, prompt string) (string, error) {
	content, err := p.generate(ctx, imageData, prompt)
	if err != nil {
		return "", err
	}
	if content == "" {
		return "", errors.New("empty caption from model")
	}
	return content, nil
}

func (p *OpenAIProvider) GenerateTags(ctx context.Context, imageData []byte, prompt string) (TagResult, error) {
	content, err := p.generate(ctx, imageData, prompt)
	if err != nil {
		return TagResult{}, err
	}
	return ParseTags(content), nil
}

func (p *OpenAIProvider) generate(ctx context.Context, imageData []byte, prompt string) (string, error) {
	// Resize to save tokens; detail stays low for the same reason.
	resized, err := prepareImage(imageData)
	if err != nil {
		return "", err
	}
	imageURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(resized)

	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: p.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfArrayOfContentParts: []openai.ChatCompletionContentPartUnionParam{
							openai.TextContentPart(prompt),
							openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
								URL:    imageURL,
								Detail: "low",
							}),
						},
					},
				},
			},
		},
		MaxTokens: openai.Int(150),
	})
	if err != nil {
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("no response from OpenAI")
	}

	if resp.Usage.PromptTokens > 0 || resp.Usage.CompletionTokens > 0 {
		p.trackUsage(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	}

	return stripThinking(resp.Choices[0].Message.Content), nil
}

// Probe verifies the API key by listing models.
func (p *OpenAIProvider) Probe(ctx context.Context) Availability {
	if _, err := p.client.Models.Get(ctx, p.model); err != nil {
		return Availability{Detail: fmt.Sprintf("openai model %s unavailable: %v", p.model, err)}
	}
	return Availability{Available: true, Detail: p.model}
}
