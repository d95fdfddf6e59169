// workflows/company_processor.go
package workflows

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/inngest/inngestgo"
	"github.com/inngest/inngestgo/step"

	"github.com/visibly-ai/visibly-workflows/internal/config"
	"github.com/visibly-ai/visibly-workflows/services"
)

type CompanyProcessor struct {
	ingestionService services.IngestionService
	analyticsService services.AnalyticsService
	resolverService  services.ResolverService
	client           inngestgo.Client
	cfg              *config.Config
}

func NewCompanyProcessor(
	ingestionService services.IngestionService,
	analyticsService services.AnalyticsService,
	resolverService services.ResolverService,
	cfg *config.Config,
) *CompanyProcessor {
	return &CompanyProcessor{
		ingestionService: ingestionService,
		analyticsService: analyticsService,
		resolverService:  resolverService,
		cfg:              cfg,
	}
}

func (p *CompanyProcessor) SetClient(client inngestgo.Client) {
	p.client = client
}

// ProcessCompany ingests one company's full prompt matrix and then derives
// its visibility analytics from what landed.
func (p *CompanyProcessor) ProcessCompany() inngestgo.ServableFunction {
	fn, err := inngestgo.CreateFunction(
		p.client,
		inngestgo.FunctionOpts{
			ID:      "process-company",
			Name:    "Process Company - Visibility Ingestion Pipeline",
			Retries: inngestgo.IntPtr(3),
		},
		inngestgo.EventTrigger("company.ingest", nil),
		func(ctx context.Context, input inngestgo.Input[CompanyIngestEvent]) (any, error) {
			companyID, err := uuid.Parse(input.Event.Data.CompanyID)
			if err != nil {
				return nil, fmt.Errorf("invalid company ID %q: %w", input.Event.Data.CompanyID, err)
			}
			fmt.Printf("[ProcessCompany] Starting visibility pipeline for company: %s\n", companyID)

			// Step 1: Run the full ingestion matrix for this company
			summary, err := step.Run(ctx, "run-company-ingestion", func(ctx context.Context) (*services.IngestionSummary, error) {
				fmt.Printf("[ProcessCompany] Step 1: Running prompt ingestion\n")
				summary, err := p.ingestionService.RunCompanyIngestion(ctx, companyID)
				if err != nil {
					return summary, fmt.Errorf("failed to run company ingestion: %w", err)
				}

				fmt.Printf("[ProcessCompany] Ingestion done: %d processed, %d skipped, %d failed\n",
					summary.TotalProcessed, summary.TotalSkipped, summary.TotalFailed)
				return summary, nil
			})
			if err != nil {
				return nil, fmt.Errorf("step 1 failed: %w", err)
			}

			// Step 2: Derive the 30-day analytics from stored runs
			analytics, err := step.Run(ctx, "generate-visibility-analytics", func(ctx context.Context) (interface{}, error) {
				fmt.Printf("[ProcessCompany] Step 2: Generating analytics\n")

				visibility, err := p.analyticsService.VisibilityReport(ctx, companyID, 30)
				if err != nil {
					return nil, fmt.Errorf("failed to build visibility report: %w", err)
				}
				sentiment, err := p.analyticsService.SentimentReport(ctx, companyID, 30)
				if err != nil {
					return nil, fmt.Errorf("failed to build sentiment report: %w", err)
				}
				competitors, err := p.analyticsService.CompetitorReport(ctx, companyID, 30)
				if err != nil {
					return nil, fmt.Errorf("failed to build competitor report: %w", err)
				}

				fmt.Printf("[ProcessCompany] Visibility %.2f%% (%s), sentiment %.2f (%s), rank %d\n",
					visibility.CurrentVisibility, visibility.Trend,
					sentiment.CurrentSentiment, sentiment.Trend,
					competitors.TrackedPosition)

				return map[string]interface{}{
					"visibility":  visibility,
					"sentiment":   sentiment,
					"competitors": competitors,
				}, nil
			})
			if err != nil {
				return nil, fmt.Errorf("step 2 failed: %w", err)
			}

			stats := p.resolverService.CacheStats()
			fmt.Printf("[ProcessCompany] Resolver cache: %d/%d entries, %.1f%% hit rate\n",
				stats.Size, stats.Capacity, stats.HitRate*100)

			return map[string]interface{}{
				"company_id":   companyID.String(),
				"status":       "completed",
				"ingestion":    summary,
				"analytics":    analytics,
				"completed_at": time.Now().UTC(),
			}, nil
		},
	)
	if err != nil {
		panic(fmt.Errorf("failed to create ProcessCompany function: %w", err))
	}
	return fn
}

// Event types
type CompanyIngestEvent struct {
	CompanyID   string `json:"company_id"`
	TriggeredBy string `json:"triggered_by"`
	UserID      string `json:"user_id,omitempty"`
}
