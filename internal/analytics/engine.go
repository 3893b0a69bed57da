package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/pressroom/internal/costs"
	"github.com/p-blackswan/pressroom/internal/errors"
)

// Engine computes time-bucketed rollups, trends, and comparisons over the
// cost ledger. A nil project filter means every project in the ledger,
// including projects that have since been permanently deleted.
type Engine struct {
	ledger costs.Ledger
	logger zerolog.Logger
	now    func() time.Time
}

// NewEngine creates an analytics engine over the given ledger.
func NewEngine(ledger costs.Ledger, logger zerolog.Logger) *Engine {
	return &Engine{
		ledger: ledger,
		logger: logger.With().Str("component", "analytics").Logger(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WeeklyReport buckets entries into ISO calendar weeks (Monday start, UTC).
// The series covers weeksBack consecutive weeks ending with the current,
// possibly partial, week. Weeks with no entries appear with zero totals.
func (e *Engine) WeeklyReport(ctx context.Context, projectIDs []string, weeksBack int) (*Report, error) {
	return e.report(ctx, projectIDs, weeksBack, GranularityWeekly)
}

// MonthlyReport buckets entries into calendar months (UTC), monthsBack
// consecutive months ending with the current month.
func (e *Engine) MonthlyReport(ctx context.Context, projectIDs []string, monthsBack int) (*Report, error) {
	return e.report(ctx, projectIDs, monthsBack, GranularityMonthly)
}

func (e *Engine) report(ctx context.Context, projectIDs []string, periods int, g Granularity) (*Report, error) {
	if periods <= 0 {
		return nil, fmt.Errorf("%w: period count must be positive, got %d", errors.ErrInvalidInput, periods)
	}

	starts := bucketStarts(e.now(), periods, g)
	entries, err := e.ledger.Entries(ctx, projectIDs, starts[0], time.Time{})
	if err != nil {
		return nil, err
	}

	report := &Report{
		Granularity: g,
		GeneratedAt: e.now(),
		Buckets:     buildBuckets(starts, g, entries),
		Total:       costs.Summarize(entries),
	}
	return report, nil
}

// Trends produces numPeriods consecutive buckets ending at now, each reduced
// to its cost total, plus a least-squares linear forecast for the next
// period. A flat history of constant per-period cost c forecasts c.
func (e *Engine) Trends(ctx context.Context, projectIDs []string, numPeriods int, g Granularity) (*TrendReport, error) {
	if numPeriods <= 0 {
		return nil, fmt.Errorf("%w: period count must be positive, got %d", errors.ErrInvalidInput, numPeriods)
	}

	starts := bucketStarts(e.now(), numPeriods, g)
	entries, err := e.ledger.Entries(ctx, projectIDs, starts[0], time.Time{})
	if err != nil {
		return nil, err
	}

	buckets := buildBuckets(starts, g, entries)
	points := make([]TrendPoint, len(buckets))
	series := make([]float64, len(buckets))
	for i, b := range buckets {
		points[i] = TrendPoint{Label: b.Label, Start: b.Start, TotalCost: b.TotalCost}
		series[i] = b.TotalCost
	}

	return &TrendReport{
		Granularity: g,
		Points:      points,
		Forecast:    linearForecast(series),
	}, nil
}

// MultiProjectSummary aggregates the project set over an optional inclusive
// date range. Zero time bounds mean unfiltered on that side.
func (e *Engine) MultiProjectSummary(ctx context.Context, projectIDs []string, from, to time.Time) (*MultiSummary, error) {
	entries, err := e.ledger.Entries(ctx, projectIDs, from, to)
	if err != nil {
		return nil, err
	}

	byProject := map[string]float64{}
	for _, en := range entries {
		byProject[en.ProjectID] += en.Cost
	}
	ids := make([]string, 0, len(byProject))
	for id := range byProject {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return &MultiSummary{
		ProjectIDs:    ids,
		From:          from,
		To:            to,
		CostByProject: byProject,
		Summary:       costs.Summarize(entries),
	}, nil
}

// Compare ranks the given projects by total cost over an optional date
// range. At least one project ID is required.
func (e *Engine) Compare(ctx context.Context, projectIDs []string, from, to time.Time) (*ComparisonReport, error) {
	if len(projectIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one project id is required", errors.ErrInvalidInput)
	}

	entries, err := e.ledger.Entries(ctx, projectIDs, from, to)
	if err != nil {
		return nil, err
	}

	byProject := map[string][]costs.Entry{}
	for _, en := range entries {
		byProject[en.ProjectID] = append(byProject[en.ProjectID], en)
	}

	// Every requested project appears in the result, zero totals included.
	report := &ComparisonReport{From: from, To: to}
	for _, id := range projectIDs {
		report.Projects = append(report.Projects, ProjectComparison{
			ProjectID: id,
			Summary:   costs.Summarize(byProject[id]),
		})
	}
	sort.SliceStable(report.Projects, func(i, j int) bool {
		return report.Projects[i].TotalCost > report.Projects[j].TotalCost
	})
	for i := range report.Projects {
		report.Projects[i].Rank = i + 1
	}
	return report, nil
}

// bucketStarts returns n consecutive period starts ascending, the last being
// the period containing now.
func bucketStarts(now time.Time, n int, g Granularity) []time.Time {
	starts := make([]time.Time, n)
	cur := periodStart(now, g)
	for i := n - 1; i >= 0; i-- {
		starts[i] = cur
		cur = previousPeriod(cur, g)
	}
	return starts
}

func buildBuckets(starts []time.Time, g Granularity, entries []costs.Entry) []Bucket {
	buckets := make([]Bucket, len(starts))
	grouped := make([][]costs.Entry, len(starts))
	for i, start := range starts {
		buckets[i] = Bucket{
			Label: bucketLabel(start, g),
			Start: start,
			End:   nextPeriod(start, g),
		}
	}
	for _, e := range entries {
		for i := len(starts) - 1; i >= 0; i-- {
			if !e.Timestamp.Before(starts[i]) {
				if e.Timestamp.Before(buckets[i].End) {
					grouped[i] = append(grouped[i], e)
				}
				break
			}
		}
	}
	for i := range buckets {
		buckets[i].Summary = costs.Summarize(grouped[i])
	}
	return buckets
}

// periodStart truncates t (UTC) to the start of its period. Weeks follow the
// ISO convention and start on Monday.
func periodStart(t time.Time, g Granularity) time.Time {
	t = t.UTC()
	switch g {
	case GranularityDaily:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case GranularityWeekly:
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
		return day.AddDate(0, 0, -offset)
	case GranularityMonthly:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	case GranularityYearly:
		return time.Date(t.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return t
}

func nextPeriod(start time.Time, g Granularity) time.Time {
	switch g {
	case GranularityDaily:
		return start.AddDate(0, 0, 1)
	case GranularityWeekly:
		return start.AddDate(0, 0, 7)
	case GranularityMonthly:
		return start.AddDate(0, 1, 0)
	case GranularityYearly:
		return start.AddDate(1, 0, 0)
	}
	return start
}

func previousPeriod(start time.Time, g Granularity) time.Time {
	switch g {
	case GranularityDaily:
		return start.AddDate(0, 0, -1)
	case GranularityWeekly:
		return start.AddDate(0, 0, -7)
	case GranularityMonthly:
		return start.AddDate(0, -1, 0)
	case GranularityYearly:
		return start.AddDate(-1, 0, 0)
	}
	return start
}

func bucketLabel(start time.Time, g Granularity) string {
	switch g {
	case GranularityDaily:
		return start.Format("2006-01-02")
	case GranularityWeekly:
		year, week := start.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	case GranularityMonthly:
		return start.Format("2006-01")
	case GranularityYearly:
		return start.Format("2006")
	}
	return start.Format(time.RFC3339)
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// linearForecast extrapolates the next value of the series by a least
// squares linear fit, clamped to zero. For n < 2 it returns the last
// observed value.
func linearForecast(series []float64) float64 {
	n := len(series)
	switch n {
	case 0:
		return 0
	case 1:
		return series[0]
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, y := range series {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	fn := float64(n)
	denom := fn*sumXX - sumX*sumX
	if denom == 0 {
		return series[n-1]
	}
	slope := (fn*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / fn

	forecast := intercept + slope*fn
	if forecast < 0 {
		return 0
	}
	return forecast
}
