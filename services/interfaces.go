// services/interfaces.go
package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/invopop/jsonschema"

	"github.com/visibly-ai/visibly-workflows/internal/cache"
	"github.com/visibly-ai/visibly-workflows/internal/models"
)

// AIProvider is the adapter contract for a single generative AI backend.
// Answer returns the raw answer text plus any citation URLs the backend
// surfaced. Adapters never retry; failures come back as *ProviderError.
type AIProvider interface {
	Answer(ctx context.Context, promptText string) (*ProviderAnswer, error)
	GetProviderName() string
}

// ProviderAnswer contains the response from an AI provider
type ProviderAnswer struct {
	Text         string
	Sources      []string
	InputTokens  int
	OutputTokens int
	Cost         float64
}

// ExtractedCompany is a single company found in an answer
type ExtractedCompany struct {
	Name   string `json:"name" jsonschema_description:"Company name in English"`
	Domain string `json:"domain" jsonschema_description:"Primary website domain, e.g. example.com, or empty if unknown"`
}

// ScoredCompany pairs an extracted company with its sentiment score
type ScoredCompany struct {
	Name      string
	Domain    string
	Sentiment float64
}

// ExtractionService interface for parsing AI answers
type ExtractionService interface {
	ExtractMentions(ctx context.Context, promptText, answerText string) ([]ExtractedCompany, *ExtractionUsage, error)
	ScoreSentiment(ctx context.Context, answerText string, companies []ExtractedCompany) ([]ScoredCompany, *ExtractionUsage, error)
}

// ExtractionUsage carries token and cost accounting for one extraction call
type ExtractionUsage struct {
	InputTokens  int
	OutputTokens int
	Cost         float64
}

// ResolverService resolves company names to canonical domains and citation
// URLs to site names. All lookups go through the shared rate-limited cache;
// a lookup that cannot be resolved returns (nil, nil), never an error.
type ResolverService interface {
	ResolveCompanyDomain(ctx context.Context, companyName string) (*string, error)
	ResolveSiteName(ctx context.Context, rawURL string) (*string, error)
	CacheStats() cache.Stats
}

// IngestionService interface for the prompt ingestion pipeline
type IngestionService interface {
	GetCompanyDetails(ctx context.Context, companyID uuid.UUID) (*CompanyDetails, error)
	CalculateWorkItems(details *CompanyDetails) []*WorkItem
	ProcessWorkItem(ctx context.Context, item *WorkItem) (*WorkItemResult, error)
	RunCompanyIngestion(ctx context.Context, companyID uuid.UUID) (*IngestionSummary, error)
	RunAllCompanies(ctx context.Context) (*IngestionSummary, error)
}

// AnalyticsService interface for read-time analytics over stored runs
type AnalyticsService interface {
	VisibilityReport(ctx context.Context, companyID uuid.UUID, days int) (*models.VisibilityReport, error)
	SentimentReport(ctx context.Context, companyID uuid.UUID, days int) (*models.SentimentReport, error)
	CompetitorReport(ctx context.Context, companyID uuid.UUID, days int) (*models.CompetitorReport, error)
}

type CostService interface {
	CalculateCost(provider, model string, inputTokens, outputTokens int, webSearch bool) float64
}

// CompanyDetails contains complete company data from database
type CompanyDetails struct {
	Company        *models.Company
	Topics         []*models.Topic
	PromptsByTopic map[uuid.UUID][]*models.Prompt
	ProviderNames  []string
}

// WorkItem represents a single company×topic×prompt×provider combination to process
type WorkItem struct {
	CompanyID    uuid.UUID `json:"company_id"`
	CompanyName  string    `json:"company_name"`
	TopicID      uuid.UUID `json:"topic_id"`
	TopicName    string    `json:"topic_name"`
	PromptID     uuid.UUID `json:"prompt_id"`
	PromptText   string    `json:"prompt_text"`
	ProviderName string    `json:"provider_name"`
	JobIndex     int       `json:"job_index"`
	TotalJobs    int       `json:"total_jobs"`
}

// WorkItemResult represents the result of processing a single work item
type WorkItemResult struct {
	PromptRunID  uuid.UUID `json:"prompt_run_id"`
	JobIndex     int       `json:"job_index"`
	Status       string    `json:"status"` // "completed", "skipped" or "failed"
	MentionCount int       `json:"mention_count"`
	SourceCount  int       `json:"source_count"`
	TotalCost    float64   `json:"total_cost"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// IngestionSummary represents the summary of an ingestion pass
type IngestionSummary struct {
	TotalProcessed   int      `json:"total_processed"`
	TotalSkipped     int      `json:"total_skipped"`
	TotalFailed      int      `json:"total_failed"`
	TotalMentions    int      `json:"total_mentions"`
	TotalCost        float64  `json:"total_cost"`
	ProcessingErrors []string `json:"processing_errors"`
}

// Structured output types for AI extraction
type MentionsExtractionResponse struct {
	Companies []ExtractedCompany `json:"companies" jsonschema_description:"Every distinct company mentioned in the answer"`
}

type SentimentExtractionResponse struct {
	Companies []SentimentExtract `json:"companies"`
}

type SentimentExtract struct {
	Name      string  `json:"name"`
	Domain    string  `json:"domain"`
	Sentiment float64 `json:"sentiment" jsonschema_description:"Sentiment toward the company in the answer, from -1.0 (negative) to 1.0 (positive)"`
}

type DomainLookupResponse struct {
	Domain *string `json:"domain" jsonschema_description:"The company's primary website domain, e.g. example.com, or null if unknown"`
}

type SiteNameLookupResponse struct {
	SiteName *string `json:"site_name" jsonschema_description:"The human-readable name of the website, or null if unknown"`
}

// GenerateSchema generates a JSON schema for structured outputs
func GenerateSchema[T any]() interface{} {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}

	var zero T
	schema := reflector.Reflect(zero)

	// Convert to the format expected by OpenAI
	result := map[string]interface{}{
		"type":       "object",
		"properties": schema.Properties,
		"required":   schema.Required,
	}

	if schema.AdditionalProperties != nil {
		result["additionalProperties"] = false
	}

	return result
}
