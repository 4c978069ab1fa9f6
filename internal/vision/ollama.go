package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	defaultOllamaURL   = "http://localhost:11434"
	defaultOllamaModel = "llama3.2-vision"
)

// OllamaProvider talks to a local Ollama instance over its chat API.
type OllamaProvider struct {
	baseURL string
	model   string
	client  *http.Client
	usage   Usage
}

func NewOllamaProvider(baseURL, model string) *OllamaProvider {
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	if model == "" {
		model = defaultOllamaModel
	}
	return &OllamaProvider{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		client:  &http.Client{},
	}
}

func (p *OllamaProvider) Name() string {
	return "ollama/" + p.model
}

func (p *OllamaProvider) Usage() *Usage {
	return &p.usage
}

// ollamaRequest represents a request to the Ollama chat API
type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  ollamaOptions   `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"` // base64 encoded images
}

type ollamaOptions struct {
	NumPredict  int     `json:"num_predict,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

// ollamaResponse represents a response from the Ollama chat API
type ollamaResponse struct {
	Model   string `json:"model"`
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done            bool `json:"done"`
	PromptEvalCount int  `json:"prompt_eval_count"`
	EvalCount       int  `json:"eval_count"`
}

func (p *OllamaProvider) GenerateCaption(ctx context.Context, imageData []byte, prompt string) (string, error) {
	content, err := p.generate(ctx, imageData, prompt, 150)
	if err != nil {
		return "", err
	}
	caption := stripThinking(content)
	if caption == "" {
		return "", errors.New("empty caption from model")
	}
	return caption, nil
}

func (p *OllamaProvider) GenerateTags(ctx context.Context, imageData []byte, prompt string) (TagResult, error) {
	content, err := p.generate(ctx, imageData, prompt, 150)
	if err != nil {
		return TagResult{}, err
	}
	return ParseTags(stripThinking(content)), nil
}

func (p *OllamaProvider) generate(ctx context.Context, imageData []byte, prompt string, maxTokens int) (string, error) {
	resized, err := prepareImage(imageData)
	if err != nil {
		return "", err
	}

	messages := []ollamaMessage{
		{
			Role:    "user",
			Content: prompt,
			Images:  []string{base64.StdEncoding.EncodeToString(resized)},
		},
	}

	resp, err := p.sendRequest(ctx, messages, maxTokens)
	if err != nil {
		return "", fmt.Errorf("ollama API error: %w", err)
	}

	p.usage.InputTokens += resp.PromptEvalCount
	p.usage.OutputTokens += resp.EvalCount

	return resp.Message.Content, nil
}

func (p *OllamaProvider) sendRequest(ctx context.Context, messages []ollamaMessage, maxTokens int) (*ollamaResponse, error) {
	reqBody := ollamaRequest{
		Model:    p.model,
		Messages: messages,
		Stream:   false,
		Options: ollamaOptions{
			NumPredict:  maxTokens,
			Temperature: 0.7,
		},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var ollamaResp ollamaResponse
	if err := json.Unmarshal(body, &ollamaResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &ollamaResp, nil
}

// Probe checks that the Ollama daemon is reachable and has the model pulled.
func (p *OllamaProvider) Probe(ctx context.Context) Availability {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		return Availability{Detail: err.Error()}
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return Availability{Detail: fmt.Sprintf("ollama unreachable at %s: %v", p.baseURL, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Availability{Detail: fmt.Sprintf("ollama returned status %d", resp.StatusCode)}
	}

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return Availability{Detail: fmt.Sprintf("failed to parse model list: %v", err)}
	}

	for _, m := range tags.Models {
		if m.Name == p.model || strings.HasPrefix(m.Name, p.model+":") {
			return Availability{Available: true, Detail: m.Name}
		}
	}
	return Availability{Detail: fmt.Sprintf("model %q not pulled", p.model)}
}
