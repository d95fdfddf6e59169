// services/analytics_service.go
package services

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/visibly-ai/visibly-workflows/internal/models"
	"github.com/visibly-ai/visibly-workflows/internal/repositories"
)

// Trend thresholds: movement smaller than these between the first and last
// day of the window counts as static.
const (
	visibilityTrendThreshold = 1.0
	sentimentTrendThreshold  = 0.1
)

type analyticsService struct {
	repos *repositories.Manager
}

// NewAnalyticsService builds the read-time analytics aggregator. Nothing
// here is precomputed; every report derives from stored runs at call time.
func NewAnalyticsService(repos *repositories.Manager) AnalyticsService {
	return &analyticsService{repos: repos}
}

// windowBounds returns [start, end) covering the last `days` UTC calendar
// days including today.
func windowBounds(days int) (time.Time, time.Time) {
	if days < 1 {
		days = 1
	}
	now := time.Now().UTC()
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
	start := end.Add(-time.Duration(days) * 24 * time.Hour)
	return start, end
}

// VisibilityReport computes the tracked company's daily and windowed
// visibility: the share of runs whose answer mentioned it.
func (s *analyticsService) VisibilityReport(ctx context.Context, companyID uuid.UUID, days int) (*models.VisibilityReport, error) {
	start, end := windowBounds(days)
	rows, err := s.repos.Runs.ListRunsWithMentions(ctx, companyID, start, end)
	if err != nil {
		return nil, err
	}
	return buildVisibilityReport(rows, companyID), nil
}

func buildVisibilityReport(rows []*models.RunMention, companyID uuid.UUID) *models.VisibilityReport {
	type dayAgg struct {
		runs        map[uuid.UUID]bool
		mentionRuns map[uuid.UUID]bool
	}
	byDay := make(map[string]*dayAgg)
	var dayOrder []string

	for _, row := range rows {
		day := row.RunAt.UTC().Format("2006-01-02")
		agg, ok := byDay[day]
		if !ok {
			agg = &dayAgg{runs: make(map[uuid.UUID]bool), mentionRuns: make(map[uuid.UUID]bool)}
			byDay[day] = agg
			dayOrder = append(dayOrder, day)
		}
		agg.runs[row.PromptRunID] = true
		if row.CompanyID != nil && *row.CompanyID == companyID {
			agg.mentionRuns[row.PromptRunID] = true
		}
	}
	sort.Strings(dayOrder)

	report := &models.VisibilityReport{Trend: models.TrendStatic}
	totalRuns, totalMentionRuns := 0, 0
	for _, day := range dayOrder {
		agg := byDay[day]
		runs, mentionRuns := len(agg.runs), len(agg.mentionRuns)
		totalRuns += runs
		totalMentionRuns += mentionRuns

		visibility := 0.0
		if runs > 0 {
			visibility = round2(float64(mentionRuns) / float64(runs) * 100)
		}
		report.Series = append(report.Series, models.VisibilityPoint{
			Date:        day,
			TotalRuns:   runs,
			MentionRuns: mentionRuns,
			Visibility:  visibility,
		})
	}

	// The window figure is a ratio of sums, not a mean of days, so thin
	// days do not carry the same weight as busy ones.
	if totalRuns > 0 {
		report.CurrentVisibility = round2(float64(totalMentionRuns) / float64(totalRuns) * 100)
	}
	if len(report.Series) >= 2 {
		first := report.Series[0].Visibility
		last := report.Series[len(report.Series)-1].Visibility
		report.Trend = trendFor(last-first, visibilityTrendThreshold)
	}

	return report
}

// SentimentReport computes the daily and windowed average sentiment of the
// tracked company's mentions.
func (s *analyticsService) SentimentReport(ctx context.Context, companyID uuid.UUID, days int) (*models.SentimentReport, error) {
	start, end := windowBounds(days)
	rows, err := s.repos.Runs.ListRunsWithMentions(ctx, companyID, start, end)
	if err != nil {
		return nil, err
	}
	return buildSentimentReport(rows, companyID), nil
}

func buildSentimentReport(rows []*models.RunMention, companyID uuid.UUID) *models.SentimentReport {
	type dayAgg struct {
		sum   float64
		count int
	}
	byDay := make(map[string]*dayAgg)
	var dayOrder []string
	windowSum, windowCount := 0.0, 0

	for _, row := range rows {
		if row.CompanyID == nil || *row.CompanyID != companyID || row.Sentiment == nil {
			continue
		}
		day := row.RunAt.UTC().Format("2006-01-02")
		agg, ok := byDay[day]
		if !ok {
			agg = &dayAgg{}
			byDay[day] = agg
			dayOrder = append(dayOrder, day)
		}
		agg.sum += *row.Sentiment
		agg.count++
		windowSum += *row.Sentiment
		windowCount++
	}
	sort.Strings(dayOrder)

	report := &models.SentimentReport{Trend: models.TrendStatic}
	for _, day := range dayOrder {
		agg := byDay[day]
		report.Series = append(report.Series, models.SentimentPoint{
			Date:     day,
			Average:  round2(agg.sum / float64(agg.count)),
			Mentions: agg.count,
		})
	}

	if windowCount > 0 {
		report.CurrentSentiment = round2(windowSum / float64(windowCount))
	}
	if len(report.Series) >= 2 {
		first := report.Series[0].Average
		last := report.Series[len(report.Series)-1].Average
		report.Trend = trendFor(last-first, sentimentTrendThreshold)
	}

	return report
}

// CompetitorReport ranks every company mentioned across the tracked
// company's runs and returns the neighborhood around the tracked company's
// position.
func (s *analyticsService) CompetitorReport(ctx context.Context, companyID uuid.UUID, days int) (*models.CompetitorReport, error) {
	start, end := windowBounds(days)
	rows, err := s.repos.Runs.ListRunsWithMentions(ctx, companyID, start, end)
	if err != nil {
		return nil, err
	}

	trackedName, trackedDomain := "", ""
	tracked, err := s.repos.Companies.GetByID(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if tracked != nil {
		trackedName, trackedDomain = tracked.Name, tracked.Domain
	}

	return buildCompetitorReport(rows, companyID, trackedName, trackedDomain), nil
}

func buildCompetitorReport(rows []*models.RunMention, companyID uuid.UUID, trackedName, trackedDomain string) *models.CompetitorReport {
	type companyAgg struct {
		name         string
		domain       string
		runs         map[uuid.UUID]bool
		prompts      map[uuid.UUID]bool
		sentimentSum float64
		sentimentN   int
	}

	totalRuns := make(map[uuid.UUID]bool)
	byCompany := make(map[uuid.UUID]*companyAgg)

	for _, row := range rows {
		totalRuns[row.PromptRunID] = true
		if row.CompanyID == nil {
			continue
		}

		agg, ok := byCompany[*row.CompanyID]
		if !ok {
			agg = &companyAgg{runs: make(map[uuid.UUID]bool), prompts: make(map[uuid.UUID]bool)}
			if row.CompanyName != nil {
				agg.name = *row.CompanyName
			}
			if row.Domain != nil {
				agg.domain = *row.Domain
			}
			byCompany[*row.CompanyID] = agg
		}
		agg.runs[row.PromptRunID] = true
		agg.prompts[row.PromptID] = true
		if row.Sentiment != nil {
			agg.sentimentSum += *row.Sentiment
			agg.sentimentN++
		}
	}

	report := &models.CompetitorReport{TotalRuns: len(totalRuns)}
	if len(totalRuns) == 0 {
		return report
	}

	// The tracked company stays on the board even in a window where no
	// answer mentioned it at all.
	if _, ok := byCompany[companyID]; !ok {
		byCompany[companyID] = &companyAgg{
			name:    trackedName,
			domain:  trackedDomain,
			runs:    make(map[uuid.UUID]bool),
			prompts: make(map[uuid.UUID]bool),
		}
	}

	var ranking []models.CompetitorRank
	for id, agg := range byCompany {
		mentions := len(agg.runs)
		visibility := round2(float64(mentions) / float64(len(totalRuns)) * 100)
		avgSentiment := 0.0
		if agg.sentimentN > 0 {
			avgSentiment = round2(agg.sentimentSum / float64(agg.sentimentN))
		}

		isTracked := id == companyID
		// Low-visibility noise is dropped, but the tracked company always
		// keeps its place on the board.
		if visibility <= 5 && !isTracked {
			continue
		}

		ranking = append(ranking, models.CompetitorRank{
			CompanyID:        id,
			Name:             agg.name,
			Domain:           agg.domain,
			Mentions:         mentions,
			Visibility:       visibility,
			AverageSentiment: avgSentiment,
			PromptCount:      len(agg.prompts),
			IsTracked:        isTracked,
		})
	}

	sort.Slice(ranking, func(i, j int) bool {
		if ranking[i].Visibility != ranking[j].Visibility {
			return ranking[i].Visibility > ranking[j].Visibility
		}
		if ranking[i].Name != ranking[j].Name {
			return ranking[i].Name < ranking[j].Name
		}
		return ranking[i].CompanyID.String() < ranking[j].CompanyID.String()
	})

	trackedPosition := 0
	for i := range ranking {
		ranking[i].Position = i + 1
		if ranking[i].IsTracked {
			trackedPosition = i + 1
		}
	}
	report.TrackedPosition = trackedPosition
	report.Ranking = windowAround(ranking, trackedPosition)

	return report
}

// windowAround narrows the full leaderboard to the tracked company's
// neighborhood: its own position plus one rank either side, clamped at the
// edges so the window always holds min(3, N) entries. When the tracked
// company never appears, the top of the board is returned instead.
func windowAround(ranking []models.CompetitorRank, trackedPosition int) []models.CompetitorRank {
	n := len(ranking)
	if n == 0 {
		return nil
	}
	size := 3
	if n < size {
		size = n
	}

	lo := 0
	if trackedPosition > 0 {
		lo = trackedPosition - 2 // window starts one rank above
		if lo < 0 {
			lo = 0
		}
		if lo+size > n {
			lo = n - size
		}
	}

	return ranking[lo : lo+size]
}

func trendFor(delta, threshold float64) models.Trend {
	switch {
	case delta >= threshold:
		return models.TrendUp
	case delta <= -threshold:
		return models.TrendDown
	default:
		return models.TrendStatic
	}
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
