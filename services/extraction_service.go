// services/extraction_service.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/visibly-ai/visibly-workflows/internal/config"
	"github.com/visibly-ai/visibly-workflows/internal/models"
)

type extractionService struct {
	client      *openai.Client
	model       string
	costService CostService
}

// NewExtractionService creates the structured-output extraction service.
// All extraction calls run against OpenAI regardless of which provider
// produced the answer being analyzed.
func NewExtractionService(cfg *config.Config, costService CostService) ExtractionService {
	client := openai.NewClient(
		option.WithAPIKey(cfg.OpenAIAPIKey),
	)

	return &extractionService{
		client:      &client,
		model:       "gpt-4.1",
		costService: costService,
	}
}

// Generate the JSON schemas at initialization time
var (
	mentionsSchema  = GenerateSchema[MentionsExtractionResponse]()
	sentimentSchema = GenerateSchema[SentimentExtractionResponse]()
)

// ExtractMentions finds every distinct company mentioned in an answer.
// Company names are translated to English before matching so the same
// company never splits across languages. The result is deduplicated on
// (name, domain) preserving first-seen order, with domains canonicalized.
func (s *extractionService) ExtractMentions(ctx context.Context, promptText, answerText string) ([]ExtractedCompany, *ExtractionUsage, error) {
	systemPrompt := `You are an expert at analyzing AI-generated answers for company mentions.

Identify EVERY company, brand or product vendor mentioned in the answer, whether mentioned positively, negatively or neutrally.

Rules:
- First translate the answer to English if it is in another language, then extract from the English text
- Use the company's common English name
- Include the company's primary website domain when you know it (e.g. "example.com"), otherwise leave domain empty
- One entry per distinct company, even if mentioned many times`

	userPrompt := fmt.Sprintf("Question asked:\n%s\n\nAI answer to analyze:\n%s", promptText, answerText)

	schemaParam := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:        "company_mentions",
		Description: openai.String("Companies mentioned in the answer"),
		Schema:      mentionsSchema,
		Strict:      openai.Bool(true),
	}

	response, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		Model: openai.ChatModel(s.model),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{JSONSchema: schemaParam},
		},
		Temperature: openai.Float(0.1),
	})
	if err != nil {
		return nil, nil, &ProviderError{Provider: "openai", Op: "extract mentions", Err: err}
	}

	if len(response.Choices) == 0 {
		return nil, nil, &ExtractionParseError{Op: "mentions", Err: fmt.Errorf("no response choices returned")}
	}

	var parsed MentionsExtractionResponse
	if err := json.Unmarshal([]byte(response.Choices[0].Message.Content), &parsed); err != nil {
		return nil, nil, &ExtractionParseError{Op: "mentions", Err: err}
	}

	usage := s.usageFor(response, false)
	return dedupeCompanies(parsed.Companies), usage, nil
}

// ScoreSentiment scores each extracted company's sentiment in one
// structured call. Scores outside [-1, 1] are clamped; companies the model
// omits from its response come back with sentiment 0.
func (s *extractionService) ScoreSentiment(ctx context.Context, answerText string, companies []ExtractedCompany) ([]ScoredCompany, *ExtractionUsage, error) {
	if len(companies) == 0 {
		return nil, &ExtractionUsage{}, nil
	}

	var names []string
	for _, c := range companies {
		names = append(names, c.Name)
	}

	systemPrompt := `You are an expert at sentiment analysis of AI-generated answers.

For each listed company, score the sentiment the answer expresses toward it on a scale from -1.0 (strongly negative) through 0.0 (neutral) to 1.0 (strongly positive).

Rules:
- Score only how the answer portrays the company, not your own opinion
- A bare mention with no judgement is 0.0
- Return one entry per listed company`

	userPrompt := fmt.Sprintf("Companies to score:\n%s\n\nAnswer text:\n%s", strings.Join(names, "\n"), answerText)

	schemaParam := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:        "company_sentiments",
		Description: openai.String("Sentiment score per company"),
		Schema:      sentimentSchema,
		Strict:      openai.Bool(true),
	}

	response, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		Model: openai.ChatModel(s.model),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{JSONSchema: schemaParam},
		},
		Temperature: openai.Float(0.1),
	})
	if err != nil {
		return nil, nil, &ProviderError{Provider: "openai", Op: "score sentiment", Err: err}
	}

	if len(response.Choices) == 0 {
		return nil, nil, &ExtractionParseError{Op: "sentiment", Err: fmt.Errorf("no response choices returned")}
	}

	var parsed SentimentExtractionResponse
	if err := json.Unmarshal([]byte(response.Choices[0].Message.Content), &parsed); err != nil {
		return nil, nil, &ExtractionParseError{Op: "sentiment", Err: err}
	}

	usage := s.usageFor(response, false)
	return joinSentiments(companies, parsed.Companies), usage, nil
}

func (s *extractionService) usageFor(response *openai.ChatCompletion, webSearch bool) *ExtractionUsage {
	inputTokens := int(response.Usage.PromptTokens)
	outputTokens := int(response.Usage.CompletionTokens)
	return &ExtractionUsage{
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		Cost:         s.costService.CalculateCost("openai", s.model, inputTokens, outputTokens, webSearch),
	}
}

// dedupeCompanies canonicalizes domains and drops repeated (name, domain)
// pairs, keeping the first occurrence in place.
func dedupeCompanies(companies []ExtractedCompany) []ExtractedCompany {
	seen := make(map[string]bool)
	result := make([]ExtractedCompany, 0, len(companies))

	for _, c := range companies {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			continue
		}
		domain := models.CanonicalDomain(c.Domain)

		key := strings.ToLower(name) + "|" + domain
		if seen[key] {
			continue
		}
		seen[key] = true

		result = append(result, ExtractedCompany{Name: name, Domain: domain})
	}

	return result
}

// joinSentiments maps scored entries back onto the extracted companies.
// Matching is by lowercased name; anything the model skipped scores 0.
func joinSentiments(companies []ExtractedCompany, scored []SentimentExtract) []ScoredCompany {
	byName := make(map[string]float64, len(scored))
	for _, s := range scored {
		byName[strings.ToLower(strings.TrimSpace(s.Name))] = clampSentiment(s.Sentiment)
	}

	result := make([]ScoredCompany, 0, len(companies))
	for _, c := range companies {
		sentiment := byName[strings.ToLower(c.Name)] // 0 when missing
		result = append(result, ScoredCompany{
			Name:      c.Name,
			Domain:    c.Domain,
			Sentiment: sentiment,
		})
	}

	return result
}

func clampSentiment(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
