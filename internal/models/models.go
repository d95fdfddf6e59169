// internal/models/models.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Company is a tracked or discovered organization. Domain is canonical:
// lowercase, no scheme, no www, no trailing slash.
type Company struct {
	CompanyID uuid.UUID `db:"company_id" json:"company_id"`
	Name      string    `db:"name" json:"name"`
	Domain    string    `db:"domain" json:"domain"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Topic groups a company's prompts by theme.
type Topic struct {
	TopicID   uuid.UUID `db:"topic_id" json:"topic_id"`
	CompanyID uuid.UUID `db:"company_id" json:"company_id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Prompt is a tracked question asked on behalf of its owner company.
// Only active prompts are processed by the ingestion pipeline.
type Prompt struct {
	PromptID  uuid.UUID `db:"prompt_id" json:"prompt_id"`
	TopicID   uuid.UUID `db:"topic_id" json:"topic_id"`
	CompanyID uuid.UUID `db:"company_id" json:"company_id"`
	Text      string    `db:"text" json:"text"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	Tags      []string  `db:"-" json:"tags,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// AIProvider is upserted lazily the first time a provider key is used.
type AIProvider struct {
	AIProviderID uuid.UUID `db:"ai_provider_id" json:"ai_provider_id"`
	Name         string    `db:"name" json:"name"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// PromptRun is one execution of one prompt against one provider.
// Immutable once created; RunAt's UTC calendar date is the aggregation bucket.
type PromptRun struct {
	PromptRunID  uuid.UUID `db:"prompt_run_id" json:"prompt_run_id"`
	PromptID     uuid.UUID `db:"prompt_id" json:"prompt_id"`
	AIProviderID uuid.UUID `db:"ai_provider_id" json:"ai_provider_id"`
	RawAnswer    string    `db:"raw_answer" json:"raw_answer"`
	InputTokens  *int      `db:"input_tokens" json:"input_tokens,omitempty"`
	OutputTokens *int      `db:"output_tokens" json:"output_tokens,omitempty"`
	TotalCost    *float64  `db:"total_cost" json:"total_cost,omitempty"`
	RunAt        time.Time `db:"run_at" json:"run_at"`
}

// CompanyMention is a detected reference to a company within one answer.
// At most one row per (prompt_run_id, company_id).
type CompanyMention struct {
	CompanyMentionID uuid.UUID `db:"company_mention_id" json:"company_mention_id"`
	PromptRunID      uuid.UUID `db:"prompt_run_id" json:"prompt_run_id"`
	CompanyID        uuid.UUID `db:"company_id" json:"company_id"`
	Sentiment        float64   `db:"sentiment" json:"sentiment"` // [-1, 1]
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// Source is keyed by canonical domain.
type Source struct {
	SourceID  uuid.UUID `db:"source_id" json:"source_id"`
	Domain    string    `db:"domain" json:"domain"`
	SiteName  *string   `db:"site_name" json:"site_name,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// SourceURL is keyed by exact URL and references one Source.
type SourceURL struct {
	SourceURLID uuid.UUID `db:"source_url_id" json:"source_url_id"`
	SourceID    uuid.UUID `db:"source_id" json:"source_id"`
	URL         string    `db:"url" json:"url"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// MentionDetail links a company mention to a citation URL surfaced by that
// run. One row per (run, company, url) triple; Count tracks how many times
// the same URL was surfaced.
type MentionDetail struct {
	PromptRunID uuid.UUID `db:"prompt_run_id" json:"prompt_run_id"`
	CompanyID   uuid.UUID `db:"company_id" json:"company_id"`
	SourceURLID uuid.UUID `db:"source_url_id" json:"source_url_id"`
	Count       int       `db:"count" json:"count"`
}

// RunMention is a joined (run, mention) row used by the analytics reads.
// Mention fields are nil for runs without a mention of any company.
type RunMention struct {
	PromptRunID uuid.UUID  `db:"prompt_run_id"`
	PromptID    uuid.UUID  `db:"prompt_id"`
	RunAt       time.Time  `db:"run_at"`
	CompanyID   *uuid.UUID `db:"company_id"`
	CompanyName *string    `db:"company_name"`
	Domain      *string    `db:"company_domain"`
	Sentiment   *float64   `db:"sentiment"`
}

// Trend classifies the movement between the first and last point of a series.
type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStatic Trend = "static"
)

// VisibilityPoint is one UTC-day bucket of the visibility series.
type VisibilityPoint struct {
	Date        string  `json:"date"` // YYYY-MM-DD (UTC)
	TotalRuns   int     `json:"total_runs"`
	MentionRuns int     `json:"mention_runs"`
	Visibility  float64 `json:"visibility"` // percentage, 2 decimals
}

// VisibilityReport is the full visibility answer for one company and window.
type VisibilityReport struct {
	Series            []VisibilityPoint `json:"series"`
	CurrentVisibility float64           `json:"current_visibility"`
	Trend             Trend             `json:"trend"`
}

// SentimentPoint is one UTC-day bucket of the sentiment series.
type SentimentPoint struct {
	Date     string  `json:"date"`
	Average  float64 `json:"average"`
	Mentions int     `json:"mentions"`
}

// SentimentReport is the full sentiment answer for one company and window.
type SentimentReport struct {
	Series           []SentimentPoint `json:"series"`
	CurrentSentiment float64          `json:"current_sentiment"`
	Trend            Trend            `json:"trend"`
}

// CompetitorRank is one entry of the competitor leaderboard.
type CompetitorRank struct {
	CompanyID        uuid.UUID `json:"company_id"`
	Name             string    `json:"name"`
	Domain           string    `json:"domain"`
	Mentions         int       `json:"mentions"` // distinct runs, not mention rows
	Visibility       float64   `json:"visibility"`
	AverageSentiment float64   `json:"average_sentiment"`
	PromptCount      int       `json:"prompt_count"`
	Position         int       `json:"position"` // 1-based rank in the filtered list
	IsTracked        bool      `json:"is_tracked"`
}

// CompetitorReport holds the windowed neighborhood view around the tracked
// company, not the full leaderboard.
type CompetitorReport struct {
	Ranking         []CompetitorRank `json:"ranking"`
	TotalRuns       int              `json:"total_runs"`
	TrackedPosition int              `json:"tracked_position"` // 0 when the company never appears
}
