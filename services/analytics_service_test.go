// services/analytics_service_test.go
package services

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/visibly-ai/visibly-workflows/internal/models"
)

var (
	trackedID = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	rivalAID  = uuid.MustParse("22222222-2222-2222-2222-222222222222")
	rivalBID  = uuid.MustParse("33333333-3333-3333-3333-333333333333")
	rivalCID  = uuid.MustParse("44444444-4444-4444-4444-444444444444")
	rivalDID  = uuid.MustParse("55555555-5555-5555-5555-555555555555")
)

func day(d int) time.Time {
	return time.Date(2026, 8, d, 12, 0, 0, 0, time.UTC)
}

func runRow(runID, promptID uuid.UUID, runAt time.Time) *models.RunMention {
	return &models.RunMention{PromptRunID: runID, PromptID: promptID, RunAt: runAt}
}

func mentionRow(runID, promptID uuid.UUID, runAt time.Time, companyID uuid.UUID, name string, sentiment float64) *models.RunMention {
	return &models.RunMention{
		PromptRunID: runID,
		PromptID:    promptID,
		RunAt:       runAt,
		CompanyID:   &companyID,
		CompanyName: &name,
		Sentiment:   &sentiment,
	}
}

func TestVisibilityDailyRatio(t *testing.T) {
	promptID := uuid.New()
	var rows []*models.RunMention
	for i := 0; i < 10; i++ {
		runID := uuid.New()
		if i < 4 {
			rows = append(rows, mentionRow(runID, promptID, day(1), trackedID, "Tracked", 0.5))
		} else {
			rows = append(rows, runRow(runID, promptID, day(1)))
		}
	}

	report := buildVisibilityReport(rows, trackedID)

	if len(report.Series) != 1 {
		t.Fatalf("expected 1 day, got %d", len(report.Series))
	}
	if got := report.Series[0].Visibility; got != 40.00 {
		t.Errorf("daily visibility = %v, want 40.00", got)
	}
	if report.CurrentVisibility != 40.00 {
		t.Errorf("current visibility = %v, want 40.00", report.CurrentVisibility)
	}
	if report.Trend != models.TrendStatic {
		t.Errorf("trend = %v, want static with a single point", report.Trend)
	}
}

func TestVisibilityTrend(t *testing.T) {
	tests := []struct {
		name               string
		firstDay, lastDay  [2]int // mention runs, total runs
		want               models.Trend
	}{
		{"rising", [2]int{8, 20}, [2]int{11, 20}, models.TrendUp},       // 40 -> 55
		{"falling", [2]int{11, 20}, [2]int{8, 20}, models.TrendDown},    // 55 -> 40
		{"within threshold", [2]int{8, 20}, [2]int{8, 20}, models.TrendStatic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			promptID := uuid.New()
			var rows []*models.RunMention
			for d, counts := range map[int][2]int{1: tt.firstDay, 2: tt.lastDay} {
				for i := 0; i < counts[1]; i++ {
					runID := uuid.New()
					if i < counts[0] {
						rows = append(rows, mentionRow(runID, promptID, day(d), trackedID, "Tracked", 0))
					} else {
						rows = append(rows, runRow(runID, promptID, day(d)))
					}
				}
			}

			report := buildVisibilityReport(rows, trackedID)
			if report.Trend != tt.want {
				t.Errorf("trend = %v, want %v", report.Trend, tt.want)
			}
		})
	}
}

// A move of exactly one visibility point is already a trend, not noise:
// the static band is strictly inside (-1, +1).
func TestVisibilityTrendBoundary(t *testing.T) {
	buildDays := func(first, second [2]int) []*models.RunMention {
		promptID := uuid.New()
		var rows []*models.RunMention
		for d, counts := range map[int][2]int{1: first, 2: second} {
			for i := 0; i < counts[1]; i++ {
				runID := uuid.New()
				if i < counts[0] {
					rows = append(rows, mentionRow(runID, promptID, day(d), trackedID, "Tracked", 0))
				} else {
					rows = append(rows, runRow(runID, promptID, day(d)))
				}
			}
		}
		return rows
	}

	// 8/20 = 40.00, 41/100 = 41.00: delta is exactly +1.
	report := buildVisibilityReport(buildDays([2]int{8, 20}, [2]int{41, 100}), trackedID)
	if report.Trend != models.TrendUp {
		t.Errorf("trend = %v, want up for delta exactly +1", report.Trend)
	}

	report = buildVisibilityReport(buildDays([2]int{41, 100}, [2]int{8, 20}), trackedID)
	if report.Trend != models.TrendDown {
		t.Errorf("trend = %v, want down for delta exactly -1", report.Trend)
	}
}

// The window figure must be the ratio of sums, not the mean of the daily
// percentages: one run on a quiet day cannot outweigh nine on a busy one.
func TestVisibilityRatioOfSums(t *testing.T) {
	promptID := uuid.New()
	var rows []*models.RunMention

	// Day 1: 1 run, 1 mention (100%). Day 2: 9 runs, 1 mention (11.11%).
	rows = append(rows, mentionRow(uuid.New(), promptID, day(1), trackedID, "Tracked", 0))
	rows = append(rows, mentionRow(uuid.New(), promptID, day(2), trackedID, "Tracked", 0))
	for i := 0; i < 8; i++ {
		rows = append(rows, runRow(uuid.New(), promptID, day(2)))
	}

	report := buildVisibilityReport(rows, trackedID)

	// 2 mention runs over 10 total runs, not (100 + 11.11) / 2.
	if report.CurrentVisibility != 20.00 {
		t.Errorf("current visibility = %v, want 20.00", report.CurrentVisibility)
	}
}

func TestVisibilityEmptyWindow(t *testing.T) {
	report := buildVisibilityReport(nil, trackedID)

	if report.CurrentVisibility != 0 {
		t.Errorf("current visibility = %v, want 0", report.CurrentVisibility)
	}
	if report.Trend != models.TrendStatic {
		t.Errorf("trend = %v, want static", report.Trend)
	}
	if len(report.Series) != 0 {
		t.Errorf("series length = %d, want 0", len(report.Series))
	}
}

func TestSentimentAverage(t *testing.T) {
	promptID := uuid.New()
	rows := []*models.RunMention{
		mentionRow(uuid.New(), promptID, day(1), trackedID, "Tracked", 0.2),
		mentionRow(uuid.New(), promptID, day(1), trackedID, "Tracked", -0.1),
		mentionRow(uuid.New(), promptID, day(1), trackedID, "Tracked", 0.5),
		// Another company's sentiment must not leak into the average.
		mentionRow(uuid.New(), promptID, day(1), rivalAID, "Rival A", -1),
	}

	report := buildSentimentReport(rows, trackedID)

	if report.CurrentSentiment != 0.20 {
		t.Errorf("current sentiment = %v, want 0.20", report.CurrentSentiment)
	}
	if len(report.Series) != 1 || report.Series[0].Mentions != 3 {
		t.Fatalf("expected one day with 3 mentions, got %+v", report.Series)
	}
}

func TestSentimentTrend(t *testing.T) {
	tests := []struct {
		name        string
		first, last float64
		want        models.Trend
	}{
		{"improving", -0.5, 0.5, models.TrendUp},
		{"declining", 0.5, -0.5, models.TrendDown},
		{"within threshold", 0.2, 0.25, models.TrendStatic},
		{"delta exactly at threshold", -0.05, 0.05, models.TrendUp},
		{"delta exactly at negative threshold", 0.05, -0.05, models.TrendDown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			promptID := uuid.New()
			rows := []*models.RunMention{
				mentionRow(uuid.New(), promptID, day(1), trackedID, "Tracked", tt.first),
				mentionRow(uuid.New(), promptID, day(2), trackedID, "Tracked", tt.last),
			}

			report := buildSentimentReport(rows, trackedID)
			if report.Trend != tt.want {
				t.Errorf("trend = %v, want %v", report.Trend, tt.want)
			}
		})
	}
}

// leaderboardRows builds 25 runs with mention counts chosen so the filtered
// board reads A (80%), B (60%), C (44%), D (32%); E sits at 4%, below the
// visibility floor.
func leaderboardRows(t *testing.T) []*models.RunMention {
	t.Helper()
	promptID := uuid.New()

	counts := []struct {
		id   uuid.UUID
		name string
		runs int
	}{
		{rivalAID, "Rival A", 20},
		{rivalBID, "Rival B", 15},
		{rivalCID, "Rival C", 11},
		{rivalDID, "Rival D", 8},
		{trackedID, "Tracked", 1},
	}

	var rows []*models.RunMention
	runIDs := make([]uuid.UUID, 25)
	for i := range runIDs {
		runIDs[i] = uuid.New()
		rows = append(rows, runRow(runIDs[i], promptID, day(1)))
	}
	for _, c := range counts {
		for i := 0; i < c.runs; i++ {
			rows = append(rows, mentionRow(runIDs[i], promptID, day(1), c.id, c.name, 0.1))
		}
	}
	return rows
}

func TestCompetitorTrackedKeptBelowFloor(t *testing.T) {
	report := buildCompetitorReport(leaderboardRows(t), trackedID, "Tracked", "tracked.com")

	if report.TotalRuns != 25 {
		t.Fatalf("total runs = %d, want 25", report.TotalRuns)
	}
	// Tracked sits at 4%, below the 5% floor, but is never filtered out.
	if report.TrackedPosition != 5 {
		t.Errorf("tracked position = %d, want 5", report.TrackedPosition)
	}

	wantWindow := []string{"Rival C", "Rival D", "Tracked"}
	if len(report.Ranking) != len(wantWindow) {
		t.Fatalf("window size = %d, want %d", len(report.Ranking), len(wantWindow))
	}
	for i, want := range wantWindow {
		if report.Ranking[i].Name != want {
			t.Errorf("window[%d] = %s, want %s", i, report.Ranking[i].Name, want)
		}
	}
}

func TestCompetitorWindowAtTop(t *testing.T) {
	report := buildCompetitorReport(leaderboardRows(t), rivalAID, "Rival A", "rival-a.com")

	if report.TrackedPosition != 1 {
		t.Fatalf("tracked position = %d, want 1", report.TrackedPosition)
	}
	wantWindow := []string{"Rival A", "Rival B", "Rival C"}
	for i, want := range wantWindow {
		if report.Ranking[i].Name != want {
			t.Errorf("window[%d] = %s, want %s", i, report.Ranking[i].Name, want)
		}
	}
	if report.Ranking[0].Position != 1 || report.Ranking[2].Position != 3 {
		t.Errorf("positions = %d..%d, want 1..3", report.Ranking[0].Position, report.Ranking[2].Position)
	}
}

func TestCompetitorWindowInMiddle(t *testing.T) {
	report := buildCompetitorReport(leaderboardRows(t), rivalCID, "Rival C", "rival-c.com")

	if report.TrackedPosition != 3 {
		t.Fatalf("tracked position = %d, want 3", report.TrackedPosition)
	}
	wantWindow := []string{"Rival B", "Rival C", "Rival D"}
	for i, want := range wantWindow {
		if report.Ranking[i].Name != want {
			t.Errorf("window[%d] = %s, want %s", i, report.Ranking[i].Name, want)
		}
	}
}

func TestCompetitorMentionsCountDistinctRuns(t *testing.T) {
	promptID := uuid.New()
	runID := uuid.New()
	rows := []*models.RunMention{
		// Two mention rows in the same run must count as one mention run.
		mentionRow(runID, promptID, day(1), trackedID, "Tracked", 0.5),
		mentionRow(runID, promptID, day(1), trackedID, "Tracked", 0.3),
	}

	report := buildCompetitorReport(rows, trackedID, "Tracked", "tracked.com")

	if len(report.Ranking) != 1 {
		t.Fatalf("ranking size = %d, want 1", len(report.Ranking))
	}
	if report.Ranking[0].Mentions != 1 {
		t.Errorf("mentions = %d, want 1 distinct run", report.Ranking[0].Mentions)
	}
	if report.Ranking[0].Visibility != 100.00 {
		t.Errorf("visibility = %v, want 100.00", report.Ranking[0].Visibility)
	}
}

// A window where nothing mentioned the tracked company must still rank it,
// at zero visibility, rather than dropping it off the board.
func TestCompetitorTrackedWithZeroMentions(t *testing.T) {
	promptID := uuid.New()
	var rows []*models.RunMention
	for i := 0; i < 10; i++ {
		rows = append(rows, mentionRow(uuid.New(), promptID, day(1), rivalAID, "Rival A", 0.4))
	}

	report := buildCompetitorReport(rows, trackedID, "Tracked", "tracked.com")

	if report.TotalRuns != 10 {
		t.Fatalf("total runs = %d, want 10", report.TotalRuns)
	}
	if len(report.Ranking) != 2 {
		t.Fatalf("ranking size = %d, want 2 (rival + tracked)", len(report.Ranking))
	}
	if report.TrackedPosition != 2 {
		t.Errorf("tracked position = %d, want 2", report.TrackedPosition)
	}

	trackedEntry := report.Ranking[1]
	if !trackedEntry.IsTracked || trackedEntry.Name != "Tracked" || trackedEntry.Domain != "tracked.com" {
		t.Errorf("tracked entry = %+v, want tracked row with stored name and domain", trackedEntry)
	}
	if trackedEntry.Mentions != 0 || trackedEntry.Visibility != 0 {
		t.Errorf("tracked entry mentions/visibility = %d/%v, want 0/0", trackedEntry.Mentions, trackedEntry.Visibility)
	}
}

func TestWindowAroundSmallBoards(t *testing.T) {
	board := func(n int) []models.CompetitorRank {
		ranking := make([]models.CompetitorRank, n)
		for i := range ranking {
			ranking[i] = models.CompetitorRank{Position: i + 1}
		}
		return ranking
	}

	tests := []struct {
		name            string
		boardSize       int
		trackedPosition int
		wantPositions   []int
	}{
		{"single entry", 1, 1, []int{1}},
		{"two entries tracked last", 2, 2, []int{1, 2}},
		{"tracked absent returns top", 5, 0, []int{1, 2, 3}},
		{"tracked last of five", 5, 5, []int{3, 4, 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := windowAround(board(tt.boardSize), tt.trackedPosition)
			if len(got) != len(tt.wantPositions) {
				t.Fatalf("window size = %d, want %d", len(got), len(tt.wantPositions))
			}
			for i, want := range tt.wantPositions {
				if got[i].Position != want {
					t.Errorf("window[%d].Position = %d, want %d", i, got[i].Position, want)
				}
			}
		})
	}
}

func TestCompetitorTieBreakByName(t *testing.T) {
	promptID := uuid.New()
	runID := uuid.New()
	rows := []*models.RunMention{
		mentionRow(runID, promptID, day(1), rivalBID, "Beta", 0),
		mentionRow(runID, promptID, day(1), rivalAID, "Alpha", 0),
		mentionRow(runID, promptID, day(1), trackedID, "Tracked", 0),
	}

	report := buildCompetitorReport(rows, trackedID, "Tracked", "tracked.com")

	// All three share 100% visibility; order falls back to name.
	want := []string{"Alpha", "Beta", "Tracked"}
	for i, name := range want {
		if report.Ranking[i].Name != name {
			t.Errorf("ranking[%d] = %s, want %s", i, report.Ranking[i].Name, name)
		}
	}
}

func TestRound2(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{40.0 / 3.0 * 3.0, 40.00},
		{1.0 / 9.0 * 100, 11.11},
		{0.005 * 100, 0.5},
		{0.2, 0.2},
	}
	for _, tt := range tests {
		if got := round2(tt.in); got != tt.want {
			t.Errorf("round2(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
