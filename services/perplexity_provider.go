// services/perplexity_provider.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/visibly-ai/visibly-workflows/internal/config"
)

type perplexityProvider struct {
	apiKey      string
	model       string
	baseURL     string
	costService CostService
	httpClient  *http.Client
}

func NewPerplexityProvider(cfg *config.Config, model string, costService CostService) AIProvider {
	return &perplexityProvider{
		apiKey:      cfg.PerplexityAPIKey,
		model:       model,
		baseURL:     "https://api.perplexity.ai",
		costService: costService,
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
	}
}

func (p *perplexityProvider) GetProviderName() string {
	return "perplexity"
}

// Perplexity chat completions request structures
type PerplexityRequest struct {
	Model    string              `json:"model"`
	Messages []PerplexityMessage `json:"messages"`
}

type PerplexityMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Perplexity chat completions response structures
type PerplexityResponse struct {
	ID        string             `json:"id"`
	Model     string             `json:"model"`
	Citations []string           `json:"citations"`
	Choices   []PerplexityChoice `json:"choices"`
	Usage     PerplexityUsage    `json:"usage"`
}

type PerplexityChoice struct {
	Index        int               `json:"index"`
	FinishReason string            `json:"finish_reason"`
	Message      PerplexityMessage `json:"message"`
}

type PerplexityUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Answer runs the prompt through Perplexity's chat completions API.
// Perplexity always searches the web, so citations come back on every
// successful response.
func (p *perplexityProvider) Answer(ctx context.Context, promptText string) (*ProviderAnswer, error) {
	answer, err := p.runChatCompletion(ctx, promptText)
	if err != nil {
		return nil, &ProviderError{Provider: p.GetProviderName(), Op: "chat completion", Err: err}
	}
	return answer, nil
}

func (p *perplexityProvider) runChatCompletion(ctx context.Context, promptText string) (*ProviderAnswer, error) {
	requestBody := PerplexityRequest{
		Model: p.model,
		Messages: []PerplexityMessage{
			{Role: "system", Content: "You are a helpful assistant that provides accurate, comprehensive answers to questions."},
			{Role: "user", Content: promptText},
		},
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/chat/completions", p.baseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errorBody bytes.Buffer
		errorBody.ReadFrom(resp.Body)
		return nil, fmt.Errorf("Perplexity API returned status %d: %s", resp.StatusCode, errorBody.String())
	}

	var chatResp PerplexityResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("no response choices returned")
	}

	responseText := chatResp.Choices[0].Message.Content
	if responseText == "" {
		return nil, fmt.Errorf("empty answer returned")
	}

	return &ProviderAnswer{
		Text:         responseText,
		Sources:      chatResp.Citations,
		InputTokens:  chatResp.Usage.PromptTokens,
		OutputTokens: chatResp.Usage.CompletionTokens,
		Cost:         p.costService.CalculateCost(p.GetProviderName(), p.model, chatResp.Usage.PromptTokens, chatResp.Usage.CompletionTokens, true),
	}, nil
}
