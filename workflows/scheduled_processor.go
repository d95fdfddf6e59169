// workflows/scheduled_processor.go
package workflows

import (
	"context"
	"fmt"
	"time"

	"github.com/inngest/inngestgo"
	"github.com/inngest/inngestgo/step"

	"github.com/visibly-ai/visibly-workflows/internal/config"
	"github.com/visibly-ai/visibly-workflows/internal/models"
	"github.com/visibly-ai/visibly-workflows/internal/repositories"
)

type ScheduledProcessor struct {
	repos  *repositories.Manager
	cfg    *config.Config
	client inngestgo.Client
}

func NewScheduledProcessor(repos *repositories.Manager, cfg *config.Config) *ScheduledProcessor {
	return &ScheduledProcessor{
		repos: repos,
		cfg:   cfg,
	}
}

func (p *ScheduledProcessor) SetClient(client inngestgo.Client) {
	p.client = client
}

// DailyIngestionScheduler fans out one company.ingest event per tracked
// company every night. The per-company sends run as individual idempotent
// steps so a crashed scheduler only retries the sends that never completed;
// the day-stamped dedupe guard downstream absorbs any duplicates.
func (p *ScheduledProcessor) DailyIngestionScheduler() inngestgo.ServableFunction {
	fn, err := inngestgo.CreateFunction(
		p.client,
		inngestgo.FunctionOpts{
			ID:   "daily-ingestion-scheduler",
			Name: "Daily Visibility Ingestion Scheduler",
		},
		inngestgo.CronTrigger("0 2 * * *"), // Every day at 2 AM UTC
		func(ctx context.Context, input inngestgo.Input[any]) (any, error) {
			now := time.Now().UTC()

			// Step 1: Get every company that has at least one active prompt
			companies, err := step.Run(ctx, "get-active-companies", func(ctx context.Context) ([]*models.Company, error) {
				return p.repos.Companies.ListWithActivePrompts(ctx, p.cfg.Ingestion.MaxCompaniesPerRun)
			})
			if err != nil {
				return nil, fmt.Errorf("failed to list companies with active prompts: %w", err)
			}

			if len(companies) == 0 {
				return map[string]interface{}{
					"execution_date":        now.Format("2006-01-02"),
					"total_companies_found": 0,
					"message":               "No companies with active prompts",
				}, nil
			}

			// Step 2: Trigger an idempotent step-run per company
			for _, company := range companies {
				stepName := fmt.Sprintf("trigger-ingest-%s", company.CompanyID.String())

				_, err := step.Run(ctx, stepName, func(ctx context.Context) (interface{}, error) {
					evt := inngestgo.Event{
						Name: "company.ingest",
						Data: map[string]interface{}{
							"company_id":   company.CompanyID.String(),
							"triggered_by": "automatic_scheduler",
						},
					}
					return p.client.Send(ctx, evt)
				})
				if err != nil {
					// Log and keep going so one bad send cannot block the rest
					fmt.Printf("Warning: Failed to send event for company %s: %v\n", company.CompanyID.String(), err)
				}
			}

			return map[string]interface{}{
				"execution_date":        now.Format("2006-01-02"),
				"total_companies_found": len(companies),
				"message":               fmt.Sprintf("Triggered %d ingestion pipelines", len(companies)),
			}, nil
		},
	)

	if err != nil {
		fmt.Printf("Failed to create daily ingestion scheduler function: %v\n", err)
	}

	return fn
}
