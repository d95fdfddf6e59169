// services/openai_provider.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/visibly-ai/visibly-workflows/internal/config"
)

type openAIProvider struct {
	client      *openai.Client
	model       string
	costService CostService
	apiKey      string
}

func NewOpenAIProvider(cfg *config.Config, model string, costService CostService) AIProvider {
	client := openai.NewClient(
		option.WithAPIKey(cfg.OpenAIAPIKey),
	)

	return &openAIProvider{
		client:      &client,
		model:       model,
		costService: costService,
		apiKey:      cfg.OpenAIAPIKey, // kept for the web search API calls
	}
}

func (p *openAIProvider) GetProviderName() string {
	return "openai"
}

// WebSearchRequest represents the request structure for the OpenAI responses API
type WebSearchRequest struct {
	Model string          `json:"model"`
	Tools []WebSearchTool `json:"tools"`
	Input string          `json:"input"`
}

type WebSearchTool struct {
	Type string `json:"type"`
}

// WebSearchResponse represents the response from the OpenAI responses API
type WebSearchResponse struct {
	ID     string                `json:"id"`
	Object string                `json:"object"`
	Status string                `json:"status"`
	Output []WebSearchOutputItem `json:"output"`
	Usage  WebSearchUsage        `json:"usage"`
}

type WebSearchOutputItem struct {
	ID      string             `json:"id"`
	Type    string             `json:"type"`
	Status  string             `json:"status,omitempty"`
	Content []WebSearchContent `json:"content,omitempty"`
}

type WebSearchContent struct {
	Type        string                `json:"type"`
	Text        string                `json:"text,omitempty"`
	Annotations []WebSearchAnnotation `json:"annotations,omitempty"`
}

type WebSearchAnnotation struct {
	Type       string `json:"type"`
	StartIndex int    `json:"start_index"`
	EndIndex   int    `json:"end_index"`
	Title      string `json:"title,omitempty"`
	URL        string `json:"url,omitempty"`
}

type WebSearchUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Answer runs the prompt through the web search API so answers come back
// with citation annotations. When the web search call fails we fall back to
// a plain chat completion, which yields an answer without sources.
func (p *openAIProvider) Answer(ctx context.Context, promptText string) (*ProviderAnswer, error) {
	answer, err := p.runWebSearch(ctx, promptText)
	if err == nil {
		return answer, nil
	}
	fmt.Printf("[OpenAIProvider] Warning: web search failed, falling back to chat completion: %v\n", err)

	answer, err = p.runChatCompletion(ctx, promptText)
	if err != nil {
		return nil, &ProviderError{Provider: p.GetProviderName(), Op: "chat completion", Err: err}
	}
	return answer, nil
}

// runWebSearch uses OpenAI's responses API directly
func (p *openAIProvider) runWebSearch(ctx context.Context, promptText string) (*ProviderAnswer, error) {
	requestBody := WebSearchRequest{
		Model: p.model,
		Tools: []WebSearchTool{
			{Type: "web_search_preview"},
		},
		Input: promptText,
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", "https://api.openai.com/v1/responses", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("web search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("web search API returned status %d", resp.StatusCode)
	}

	var webSearchResp WebSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&webSearchResp); err != nil {
		return nil, fmt.Errorf("failed to decode web search response: %w", err)
	}

	// Extract the final message content and its citation annotations
	responseText := ""
	var sources []string
	for _, output := range webSearchResp.Output {
		if output.Type != "message" {
			continue
		}
		for _, content := range output.Content {
			if content.Type != "output_text" {
				continue
			}
			responseText = content.Text
			for _, annotation := range content.Annotations {
				if annotation.Type == "url_citation" && annotation.URL != "" {
					sources = append(sources, annotation.URL)
				}
			}
			break
		}
		if responseText != "" {
			break
		}
	}

	if responseText == "" {
		return nil, fmt.Errorf("no message content found in web search response")
	}

	return &ProviderAnswer{
		Text:         responseText,
		Sources:      sources,
		InputTokens:  webSearchResp.Usage.InputTokens,
		OutputTokens: webSearchResp.Usage.OutputTokens,
		Cost:         p.costService.CalculateCost(p.GetProviderName(), p.model, webSearchResp.Usage.InputTokens, webSearchResp.Usage.OutputTokens, true),
	}, nil
}

func (p *openAIProvider) runChatCompletion(ctx context.Context, promptText string) (*ProviderAnswer, error) {
	response, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage("You are a helpful assistant that provides accurate, comprehensive answers to questions."),
			openai.UserMessage(promptText),
		},
		Model:       openai.ChatModel(p.model),
		Temperature: openai.Float(0.7),
		MaxTokens:   openai.Int(2000),
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}

	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("no response choices returned")
	}

	inputTokens := int(response.Usage.PromptTokens)
	outputTokens := int(response.Usage.CompletionTokens)

	return &ProviderAnswer{
		Text:         response.Choices[0].Message.Content,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		Cost:         p.costService.CalculateCost(p.GetProviderName(), p.model, inputTokens, outputTokens, false),
	}, nil
}
