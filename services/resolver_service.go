// services/resolver_service.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/visibly-ai/visibly-workflows/internal/cache"
	"github.com/visibly-ai/visibly-workflows/internal/config"
	"github.com/visibly-ai/visibly-workflows/internal/models"
)

type resolverService struct {
	openaiClient    *openai.Client
	anthropicClient *anthropic.Client
	model           string
	fallbackModel   string
	cache           *cache.ResolverCache
}

// NewResolverService builds the resolver. Every lookup funnels through one
// shared rate-limited cache so external calls stay under the configured
// requests-per-minute regardless of how many pipelines run.
func NewResolverService(cfg *config.Config) ResolverService {
	openaiClient := openai.NewClient(
		option.WithAPIKey(cfg.OpenAIAPIKey),
	)
	anthropicClient := anthropic.NewClient(
		anthropicoption.WithAPIKey(cfg.AnthropicAPIKey),
	)

	resolverCache := cache.New(
		cfg.Resolver.CacheMaxSize,
		time.Duration(cfg.Resolver.CacheTTLHours)*time.Hour,
		cfg.Resolver.RequestsPerMinute,
	)

	return &resolverService{
		openaiClient:    &openaiClient,
		anthropicClient: &anthropicClient,
		model:           "gpt-4.1-mini",
		fallbackModel:   "claude-sonnet-4-20250514",
		cache:           resolverCache,
	}
}

var (
	domainLookupSchema   = GenerateSchema[DomainLookupResponse]()
	siteNameLookupSchema = GenerateSchema[SiteNameLookupResponse]()
)

// ResolveCompanyDomain maps a company name to its canonical primary domain.
// A nil result means the name could not be resolved; that outcome is cached
// too, so repeated unknowns cost nothing.
func (s *resolverService) ResolveCompanyDomain(ctx context.Context, companyName string) (*string, error) {
	key := "domain:" + cache.NormalizeKey(companyName)

	resolved, err := s.cache.Do(ctx, key, func(ctx context.Context) (*string, error) {
		return s.lookupDomain(ctx, companyName)
	})
	if err != nil {
		return nil, err
	}
	if resolved == nil {
		return nil, nil
	}

	canonical := models.CanonicalDomain(*resolved)
	if canonical == "" {
		return nil, nil
	}
	return &canonical, nil
}

// ResolveSiteName maps a citation URL to the human-readable name of the
// site behind it. Nil means unknown.
func (s *resolverService) ResolveSiteName(ctx context.Context, rawURL string) (*string, error) {
	domain := models.CanonicalDomain(rawURL)
	if domain == "" {
		return nil, nil
	}
	key := "sitename:" + cache.NormalizeKey(domain)

	return s.cache.Do(ctx, key, func(ctx context.Context) (*string, error) {
		return s.lookupSiteName(ctx, domain)
	})
}

func (s *resolverService) CacheStats() cache.Stats {
	return s.cache.Stats()
}

// lookupDomain asks OpenAI first; if that call fails, one best-effort
// Anthropic attempt. A miss on both is a nil result, not an error — the
// cache stores it as a negative entry.
func (s *resolverService) lookupDomain(ctx context.Context, companyName string) (*string, error) {
	prompt := fmt.Sprintf("What is the primary website domain of the company %q? Return just the registrable domain, e.g. \"example.com\". If you are not confident, return null.", companyName)

	result, err := s.openaiLookup(ctx, prompt, "domain_lookup", domainLookupSchema, func(content string) (*string, error) {
		var parsed DomainLookupResponse
		if err := json.Unmarshal([]byte(content), &parsed); err != nil {
			return nil, err
		}
		return parsed.Domain, nil
	})
	if err == nil {
		return result, nil
	}
	fmt.Printf("[ResolverService] Warning: primary domain lookup failed for %q, trying fallback: %v\n", companyName, err)

	result, err = s.anthropicLookup(ctx, prompt, func(content string) (*string, error) {
		var parsed DomainLookupResponse
		if err := json.Unmarshal([]byte(content), &parsed); err != nil {
			return nil, err
		}
		return parsed.Domain, nil
	})
	if err != nil {
		fmt.Printf("[ResolverService] Warning: fallback domain lookup failed for %q: %v\n", companyName, err)
		return nil, nil
	}
	return result, nil
}

func (s *resolverService) lookupSiteName(ctx context.Context, domain string) (*string, error) {
	prompt := fmt.Sprintf("What is the human-readable name of the website at the domain %q? For example, \"nytimes.com\" is \"The New York Times\". If you are not confident, return null.", domain)

	result, err := s.openaiLookup(ctx, prompt, "site_name_lookup", siteNameLookupSchema, func(content string) (*string, error) {
		var parsed SiteNameLookupResponse
		if err := json.Unmarshal([]byte(content), &parsed); err != nil {
			return nil, err
		}
		return parsed.SiteName, nil
	})
	if err == nil {
		return result, nil
	}
	fmt.Printf("[ResolverService] Warning: primary site name lookup failed for %q, trying fallback: %v\n", domain, err)

	result, err = s.anthropicLookup(ctx, prompt, func(content string) (*string, error) {
		var parsed SiteNameLookupResponse
		if err := json.Unmarshal([]byte(content), &parsed); err != nil {
			return nil, err
		}
		return parsed.SiteName, nil
	})
	if err != nil {
		fmt.Printf("[ResolverService] Warning: fallback site name lookup failed for %q: %v\n", domain, err)
		return nil, nil
	}
	return result, nil
}

func (s *resolverService) openaiLookup(ctx context.Context, prompt, schemaName string, schema interface{}, parse func(string) (*string, error)) (*string, error) {
	schemaParam := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:   schemaName,
		Schema: schema,
		Strict: openai.Bool(true),
	}

	response, err := s.openaiClient.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model: openai.ChatModel(s.model),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{JSONSchema: schemaParam},
		},
		Temperature: openai.Float(0),
		MaxTokens:   openai.Int(200),
	})
	if err != nil {
		return nil, fmt.Errorf("lookup failed: %w", err)
	}
	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("no response choices returned")
	}

	result, err := parse(response.Choices[0].Message.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse lookup response: %w", err)
	}
	return emptyToNil(result), nil
}

func (s *resolverService) anthropicLookup(ctx context.Context, prompt string, parse func(string) (*string, error)) (*string, error) {
	structuredPrompt := prompt + "\n\nRespond with ONLY a JSON object, no other text."

	messages := []anthropic.MessageParam{{
		Content: []anthropic.ContentBlockParamUnion{{
			OfText: &anthropic.TextBlockParam{Text: structuredPrompt},
		}},
		Role: anthropic.MessageParamRoleUser,
	}}

	response, err := s.anthropicClient.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(s.fallbackModel),
		MaxTokens:   200,
		Messages:    messages,
		Temperature: anthropic.Float(0),
	})
	if err != nil {
		return nil, fmt.Errorf("fallback lookup failed: %w", err)
	}

	var textParts []string
	for _, block := range response.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			textParts = append(textParts, variant.Text)
		}
	}

	result, err := parse(strings.TrimSpace(strings.Join(textParts, "")))
	if err != nil {
		return nil, fmt.Errorf("failed to parse fallback response: %w", err)
	}
	return emptyToNil(result), nil
}

func emptyToNil(v *string) *string {
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil
	}
	return v
}
