// services/ingestion_service.go
package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/visibly-ai/visibly-workflows/internal/batch"
	"github.com/visibly-ai/visibly-workflows/internal/config"
	"github.com/visibly-ai/visibly-workflows/internal/models"
	"github.com/visibly-ai/visibly-workflows/internal/repositories"
)

type ingestionService struct {
	repos      *repositories.Manager
	extraction ExtractionService
	resolver   ResolverService
	cost       CostService
	cfg        *config.Config
	providers  map[string]AIProvider
}

// NewIngestionService wires the full prompt ingestion pipeline. Provider
// adapters are built once per configured provider; companies whose key is
// missing simply get no work items for that provider.
func NewIngestionService(repos *repositories.Manager, extraction ExtractionService, resolver ResolverService, cost CostService, cfg *config.Config) IngestionService {
	providers := make(map[string]AIProvider)
	for _, name := range configuredProviders(cfg) {
		provider, err := NewProvider(name, cfg, cost)
		if err != nil {
			fmt.Printf("[NewIngestionService] Warning: skipping provider %s: %v\n", name, err)
			continue
		}
		providers[name] = provider
	}

	return &ingestionService{
		repos:      repos,
		extraction: extraction,
		resolver:   resolver,
		cost:       cost,
		cfg:        cfg,
		providers:  providers,
	}
}

// configuredProviders returns the provider names that have credentials.
func configuredProviders(cfg *config.Config) []string {
	var names []string
	if cfg.OpenAIAPIKey != "" {
		names = append(names, "openai")
	}
	if cfg.AnthropicAPIKey != "" {
		names = append(names, "anthropic")
	}
	if cfg.PerplexityAPIKey != "" {
		names = append(names, "perplexity")
	}
	return names
}

// GetCompanyDetails loads everything an ingestion pass needs for one
// tracked company: the company row, its topics and each topic's active
// prompts.
func (s *ingestionService) GetCompanyDetails(ctx context.Context, companyID uuid.UUID) (*CompanyDetails, error) {
	company, err := s.repos.Companies.GetByID(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load company: %w", err)
	}
	if company == nil {
		return nil, fmt.Errorf("company %s not found", companyID)
	}

	topics, err := s.repos.Topics.ListByCompany(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load topics: %w", err)
	}

	promptsByTopic := make(map[uuid.UUID][]*models.Prompt, len(topics))
	for _, topic := range topics {
		prompts, err := s.repos.Prompts.ListActiveByTopic(ctx, topic.TopicID)
		if err != nil {
			return nil, fmt.Errorf("failed to load prompts for topic %s: %w", topic.TopicID, err)
		}
		promptsByTopic[topic.TopicID] = prompts
	}

	var providerNames []string
	for name := range s.providers {
		providerNames = append(providerNames, name)
	}
	sort.Strings(providerNames) // stable work item order across runs

	return &CompanyDetails{
		Company:        company,
		Topics:         topics,
		PromptsByTopic: promptsByTopic,
		ProviderNames:  providerNames,
	}, nil
}

// CalculateWorkItems expands company details into the full
// topic×prompt×provider matrix, in stable order.
func (s *ingestionService) CalculateWorkItems(details *CompanyDetails) []*WorkItem {
	var items []*WorkItem

	for _, topic := range details.Topics {
		for _, prompt := range details.PromptsByTopic[topic.TopicID] {
			for _, providerName := range details.ProviderNames {
				items = append(items, &WorkItem{
					CompanyID:    details.Company.CompanyID,
					CompanyName:  details.Company.Name,
					TopicID:      topic.TopicID,
					TopicName:    topic.Name,
					PromptID:     prompt.PromptID,
					PromptText:   prompt.Text,
					ProviderName: providerName,
				})
			}
		}
	}

	for i, item := range items {
		item.JobIndex = i + 1
		item.TotalJobs = len(items)
	}

	return items
}

// ProcessWorkItem runs one prompt against one provider end to end: answer,
// mention extraction, sentiment scoring, citation resolution, and a single
// transaction persisting the run with everything attached. A run that
// already exists for this (prompt, provider) on today's UTC date is
// skipped, which keeps re-delivered events idempotent.
func (s *ingestionService) ProcessWorkItem(ctx context.Context, item *WorkItem) (*WorkItemResult, error) {
	fmt.Printf("[ProcessWorkItem] Job %d/%d: prompt %s via %s\n", item.JobIndex, item.TotalJobs, item.PromptID, item.ProviderName)

	provider, ok := s.providers[item.ProviderName]
	if !ok {
		return nil, fmt.Errorf("no adapter configured for provider %s", item.ProviderName)
	}

	providerRow, err := s.repos.Providers.UpsertByName(ctx, item.ProviderName)
	if err != nil {
		return nil, err
	}

	exists, err := s.repos.Runs.ExistsForDay(ctx, item.PromptID, providerRow.AIProviderID, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if exists {
		fmt.Printf("[ProcessWorkItem] Run already exists today for prompt %s via %s, skipping\n", item.PromptID, item.ProviderName)
		return &WorkItemResult{JobIndex: item.JobIndex, Status: "skipped"}, nil
	}

	answer, err := provider.Answer(ctx, item.PromptText)
	if err != nil {
		return nil, err
	}
	totalCost := answer.Cost

	companies, usage, err := s.extraction.ExtractMentions(ctx, item.PromptText, answer.Text)
	if err != nil {
		return nil, err
	}
	totalCost += usage.Cost

	scored, usage, err := s.extraction.ScoreSentiment(ctx, answer.Text, companies)
	if err != nil {
		return nil, err
	}
	totalCost += usage.Cost

	resolved, err := s.resolveMentionedCompanies(ctx, item, scored)
	if err != nil {
		return nil, err
	}

	sources, err := s.resolveSources(ctx, answer.Sources)
	if err != nil {
		return nil, err
	}

	runID, err := s.persistRun(ctx, item, providerRow, answer, totalCost, resolved, sources)
	if err != nil {
		return nil, err
	}

	fmt.Printf("[ProcessWorkItem] Job %d/%d completed: run %s, %d mentions, %d sources, $%.4f\n",
		item.JobIndex, item.TotalJobs, runID, len(resolved), len(sources), totalCost)

	return &WorkItemResult{
		PromptRunID:  runID,
		JobIndex:     item.JobIndex,
		Status:       "completed",
		MentionCount: len(resolved),
		SourceCount:  len(sources),
		TotalCost:    totalCost,
	}, nil
}

// resolvedMention is a scored company whose domain is settled and usable as
// the companies upsert key.
type resolvedMention struct {
	Name      string
	Domain    string
	Sentiment float64
}

// resolveMentionedCompanies fills in missing domains through the resolver.
// Companies that cannot be resolved to any domain are dropped, except the
// tracked company itself, which falls back to its own stored domain.
func (s *ingestionService) resolveMentionedCompanies(ctx context.Context, item *WorkItem, scored []ScoredCompany) ([]resolvedMention, error) {
	company, err := s.repos.Companies.GetByID(ctx, item.CompanyID)
	if err != nil {
		return nil, err
	}

	var resolved []resolvedMention
	for _, sc := range scored {
		domain := sc.Domain
		if domain == "" {
			looked, err := s.resolver.ResolveCompanyDomain(ctx, sc.Name)
			if err != nil {
				return nil, err
			}
			if looked != nil {
				domain = *looked
			}
		}

		isTracked := company != nil && strings.EqualFold(sc.Name, company.Name)
		if domain == "" && isTracked {
			domain = company.Domain
		}
		if domain == "" {
			fmt.Printf("[ProcessWorkItem] Warning: no domain for mentioned company %q, dropping mention\n", sc.Name)
			continue
		}

		resolved = append(resolved, resolvedMention{Name: sc.Name, Domain: domain, Sentiment: sc.Sentiment})
	}

	return resolved, nil
}

// resolvedSource is one citation URL with its canonical domain, resolved
// site name and how many times the URL appeared in the answer.
type resolvedSource struct {
	URL      string
	Domain   string
	SiteName *string
	Count    int
}

// resolveSources runs citation URLs through the batch processor so the
// site-name lookups hit the resolver at a controlled pace. Duplicate URLs
// collapse into one entry carrying the occurrence count.
func (s *ingestionService) resolveSources(ctx context.Context, urls []string) ([]resolvedSource, error) {
	counts := make(map[string]int)
	var distinct []string
	for _, u := range urls {
		if models.CanonicalDomain(u) == "" {
			continue
		}
		if counts[u] == 0 {
			distinct = append(distinct, u)
		}
		counts[u]++
	}
	if len(distinct) == 0 {
		return nil, nil
	}

	interBatchDelay := time.Duration(s.cfg.Batch.InterBatchMs) * time.Millisecond
	results, err := batch.Run(ctx, distinct, func(ctx context.Context, u string) (resolvedSource, error) {
		siteName, err := s.resolver.ResolveSiteName(ctx, u)
		if err != nil {
			return resolvedSource{}, err
		}
		return resolvedSource{
			URL:      u,
			Domain:   models.CanonicalDomain(u),
			SiteName: siteName,
			Count:    counts[u],
		}, nil
	}, s.cfg.Batch.Size, interBatchDelay)
	if err != nil {
		return nil, err
	}

	return results, nil
}

// persistRun writes the run and everything attached to it in one
// transaction. Either the whole run lands or none of it does.
func (s *ingestionService) persistRun(ctx context.Context, item *WorkItem, providerRow *models.AIProvider, answer *ProviderAnswer, totalCost float64, mentions []resolvedMention, sources []resolvedSource) (uuid.UUID, error) {
	tx, err := s.repos.BeginTx(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	run := &models.PromptRun{
		PromptRunID:  uuid.New(),
		PromptID:     item.PromptID,
		AIProviderID: providerRow.AIProviderID,
		RawAnswer:    answer.Text,
		InputTokens:  &answer.InputTokens,
		OutputTokens: &answer.OutputTokens,
		TotalCost:    &totalCost,
		RunAt:        time.Now().UTC(),
	}
	if err := s.repos.Runs.CreateTx(ctx, tx, run); err != nil {
		return uuid.Nil, err
	}

	companyByDomain := make(map[string]uuid.UUID)
	var mentionRows []*models.CompanyMention
	for _, m := range mentions {
		company, err := s.repos.Companies.UpsertByDomainTx(ctx, tx, m.Name, m.Domain)
		if err != nil {
			return uuid.Nil, err
		}
		companyByDomain[company.Domain] = company.CompanyID

		mentionRows = append(mentionRows, &models.CompanyMention{
			CompanyMentionID: uuid.New(),
			PromptRunID:      run.PromptRunID,
			CompanyID:        company.CompanyID,
			Sentiment:        m.Sentiment,
			CreatedAt:        run.RunAt,
		})
	}
	if err := s.repos.Runs.BulkCreateMentionsTx(ctx, tx, mentionRows); err != nil {
		return uuid.Nil, err
	}

	var details []*models.MentionDetail
	for _, src := range sources {
		source, err := s.repos.Sources.UpsertSourceTx(ctx, tx, src.Domain, src.SiteName)
		if err != nil {
			return uuid.Nil, err
		}
		sourceURL, err := s.repos.Sources.UpsertSourceURLTx(ctx, tx, source.SourceID, src.URL)
		if err != nil {
			return uuid.Nil, err
		}

		// A citation belongs to a mentioned company when their canonical
		// domains agree.
		if companyID, ok := companyByDomain[src.Domain]; ok {
			details = append(details, &models.MentionDetail{
				PromptRunID: run.PromptRunID,
				CompanyID:   companyID,
				SourceURLID: sourceURL.SourceURLID,
				Count:       src.Count,
			})
		}
	}
	if err := s.repos.Sources.BulkCreateMentionDetailsTx(ctx, tx, details); err != nil {
		return uuid.Nil, err
	}

	if err := tx.Commit(); err != nil {
		return uuid.Nil, fmt.Errorf("failed to commit run: %w", err)
	}
	return run.PromptRunID, nil
}

// RunCompanyIngestion processes every work item for one company, strictly
// sequentially. Item failures are recorded in the summary and skipped
// unless StopOnFirstFailure is set.
func (s *ingestionService) RunCompanyIngestion(ctx context.Context, companyID uuid.UUID) (*IngestionSummary, error) {
	details, err := s.GetCompanyDetails(ctx, companyID)
	if err != nil {
		return nil, err
	}

	items := s.CalculateWorkItems(details)
	fmt.Printf("[RunCompanyIngestion] Company %s: %d work items\n", details.Company.Name, len(items))

	summary := &IngestionSummary{}
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		result, err := s.ProcessWorkItem(ctx, item)
		if err != nil {
			summary.TotalFailed++
			summary.ProcessingErrors = append(summary.ProcessingErrors,
				fmt.Sprintf("job %d/%d (prompt %s via %s): %v", item.JobIndex, item.TotalJobs, item.PromptID, item.ProviderName, err))
			fmt.Printf("[RunCompanyIngestion] Warning: job %d/%d failed: %v\n", item.JobIndex, item.TotalJobs, err)
			if s.cfg.Ingestion.StopOnFirstFailure {
				return summary, err
			}
			continue
		}

		switch result.Status {
		case "skipped":
			summary.TotalSkipped++
		default:
			summary.TotalProcessed++
			summary.TotalMentions += result.MentionCount
			summary.TotalCost += result.TotalCost
		}
	}

	fmt.Printf("[RunCompanyIngestion] Company %s done: %d processed, %d skipped, %d failed, $%.4f\n",
		details.Company.Name, summary.TotalProcessed, summary.TotalSkipped, summary.TotalFailed, summary.TotalCost)

	return summary, nil
}

// RunAllCompanies ingests every company with active prompts, one at a time.
func (s *ingestionService) RunAllCompanies(ctx context.Context) (*IngestionSummary, error) {
	companies, err := s.repos.Companies.ListWithActivePrompts(ctx, s.cfg.Ingestion.MaxCompaniesPerRun)
	if err != nil {
		return nil, err
	}

	fmt.Printf("[RunAllCompanies] Processing %d companies\n", len(companies))

	total := &IngestionSummary{}
	for _, company := range companies {
		summary, err := s.RunCompanyIngestion(ctx, company.CompanyID)
		if summary != nil {
			total.TotalProcessed += summary.TotalProcessed
			total.TotalSkipped += summary.TotalSkipped
			total.TotalFailed += summary.TotalFailed
			total.TotalMentions += summary.TotalMentions
			total.TotalCost += summary.TotalCost
			total.ProcessingErrors = append(total.ProcessingErrors, summary.ProcessingErrors...)
		}
		if err != nil {
			if s.cfg.Ingestion.StopOnFirstFailure || ctx.Err() != nil {
				return total, err
			}
			total.ProcessingErrors = append(total.ProcessingErrors,
				fmt.Sprintf("company %s: %v", company.CompanyID, err))
		}
	}

	return total, nil
}
