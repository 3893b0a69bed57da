package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-blackswan/pressroom/internal/costs"
	"github.com/p-blackswan/pressroom/internal/errors"
)

// memLedger is a fixed in-memory Ledger for deterministic report tests.
type memLedger struct {
	entries []costs.Entry
}

func (m *memLedger) Append(ctx context.Context, e costs.Entry) error {
	m.entries = append(m.entries, e)
	return nil
}

func (m *memLedger) Summary(ctx context.Context, projectID string) (costs.Summary, error) {
	var own []costs.Entry
	for _, e := range m.entries {
		if e.ProjectID == projectID {
			own = append(own, e)
		}
	}
	return costs.Summarize(own), nil
}

func (m *memLedger) Timeline(ctx context.Context, projectID string) ([]costs.TimelineEntry, error) {
	return costs.BuildTimeline(m.entries), nil
}

func (m *memLedger) Entries(ctx context.Context, projectIDs []string, from, to time.Time) ([]costs.Entry, error) {
	want := map[string]bool{}
	for _, id := range projectIDs {
		want[id] = true
	}
	var out []costs.Entry
	for _, e := range m.entries {
		if len(want) > 0 && !want[e.ProjectID] {
			continue
		}
		if !from.IsZero() && e.Timestamp.Before(from) {
			continue
		}
		if !to.IsZero() && e.Timestamp.After(to) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *memLedger) ProjectIDs(ctx context.Context) ([]string, error) {
	seen := map[string]bool{}
	var ids []string
	for _, e := range m.entries {
		if !seen[e.ProjectID] {
			seen[e.ProjectID] = true
			ids = append(ids, e.ProjectID)
		}
	}
	return ids, nil
}

func (m *memLedger) Close() error { return nil }

func newTestEngine(ledger costs.Ledger, now time.Time) *Engine {
	e := NewEngine(ledger, zerolog.Nop())
	e.now = func() time.Time { return now }
	return e
}

func entryAt(pid string, ts time.Time, cost float64) costs.Entry {
	return costs.Entry{ProjectID: pid, AgentName: "writer", Operation: "gen", Cost: cost, Timestamp: ts}
}

func TestParseGranularity(t *testing.T) {
	for _, ok := range []string{"daily", "weekly", "monthly", "yearly"} {
		g, err := ParseGranularity(ok)
		require.NoError(t, err)
		assert.Equal(t, Granularity(ok), g)
	}
	_, err := ParseGranularity("hourly")
	assert.True(t, errors.IsInvalidInput(err))
}

func TestPeriodStart_ISOWeekMonday(t *testing.T) {
	// 2026-03-04 is a Wednesday; its ISO week starts Monday 2026-03-02.
	wed := time.Date(2026, 3, 4, 15, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), periodStart(wed, GranularityWeekly))

	// A Monday is its own week start; a Sunday belongs to the prior Monday.
	mon := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, mon, periodStart(mon, GranularityWeekly))
	sun := time.Date(2026, 3, 8, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, mon, periodStart(sun, GranularityWeekly))
}

func TestWeeklyReport_EmptyWindowYieldsZeroBucket(t *testing.T) {
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	e := newTestEngine(&memLedger{}, now)

	report, err := e.WeeklyReport(context.Background(), []string{"p1"}, 1)
	require.NoError(t, err)
	require.Len(t, report.Buckets, 1)
	assert.Zero(t, report.Buckets[0].TotalCost)
	assert.Zero(t, report.Buckets[0].TotalCalls)
}

func TestWeeklyReport_BucketsEntries(t *testing.T) {
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC) // week of Mar 2
	ledger := &memLedger{entries: []costs.Entry{
		entryAt("p1", time.Date(2026, 2, 24, 9, 0, 0, 0, time.UTC), 0.10), // prior week
		entryAt("p1", time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC), 0.20),  // current week
		entryAt("p1", time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC), 0.05),  // current week
	}}
	e := newTestEngine(ledger, now)

	report, err := e.WeeklyReport(context.Background(), nil, 2)
	require.NoError(t, err)
	require.Len(t, report.Buckets, 2)

	assert.InDelta(t, 0.10, report.Buckets[0].TotalCost, 1e-9)
	assert.InDelta(t, 0.25, report.Buckets[1].TotalCost, 1e-9)
	assert.InDelta(t, 0.35, report.Total.TotalCost, 1e-9)
	assert.Equal(t, "2026-W09", report.Buckets[0].Label)
	assert.Equal(t, "2026-W10", report.Buckets[1].Label)
}

func TestMonthlyReport_CalendarMonths(t *testing.T) {
	now := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	ledger := &memLedger{entries: []costs.Entry{
		entryAt("p1", time.Date(2026, 1, 31, 23, 59, 0, 0, time.UTC), 1.0),
		entryAt("p1", time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), 2.0),
		entryAt("p1", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), 4.0),
	}}
	e := newTestEngine(ledger, now)

	report, err := e.MonthlyReport(context.Background(), nil, 3)
	require.NoError(t, err)
	require.Len(t, report.Buckets, 3)
	assert.InDelta(t, 1.0, report.Buckets[0].TotalCost, 1e-9)
	assert.InDelta(t, 2.0, report.Buckets[1].TotalCost, 1e-9)
	assert.InDelta(t, 4.0, report.Buckets[2].TotalCost, 1e-9)
	assert.Equal(t, "2026-01", report.Buckets[0].Label)
}

func TestReport_RejectsNonPositivePeriods(t *testing.T) {
	e := newTestEngine(&memLedger{}, time.Now().UTC())
	_, err := e.WeeklyReport(context.Background(), nil, 0)
	assert.True(t, errors.IsInvalidInput(err))
	_, err = e.Trends(context.Background(), nil, -1, GranularityDaily)
	assert.True(t, errors.IsInvalidInput(err))
}

// A perfectly flat history of constant per-period cost c must forecast c.
func TestTrends_FlatHistoryForecastsConstant(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	const c = 0.5

	var ledger memLedger
	for i := 0; i < 6; i++ {
		ledger.entries = append(ledger.entries,
			entryAt("p1", now.AddDate(0, 0, -i), c))
	}
	e := newTestEngine(&ledger, now)

	report, err := e.Trends(context.Background(), nil, 6, GranularityDaily)
	require.NoError(t, err)
	require.Len(t, report.Points, 6)
	for _, p := range report.Points {
		assert.InDelta(t, c, p.TotalCost, 1e-9)
	}
	assert.InDelta(t, c, report.Forecast, 1e-9)
}

func TestTrends_RisingHistoryExtrapolates(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	var ledger memLedger
	// Costs 1, 2, 3, 4 over four consecutive days ending today.
	for i := 0; i < 4; i++ {
		ledger.entries = append(ledger.entries,
			entryAt("p1", now.AddDate(0, 0, i-3), float64(i+1)))
	}
	e := newTestEngine(&ledger, now)

	report, err := e.Trends(context.Background(), nil, 4, GranularityDaily)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, report.Forecast, 1e-9)
}

func TestLinearForecast_ClampsAtZero(t *testing.T) {
	assert.Zero(t, linearForecast([]float64{3, 2, 1, 0}))
	assert.Zero(t, linearForecast(nil))
	assert.InDelta(t, 7.0, linearForecast([]float64{7}), 1e-9)
}

func TestMultiProjectSummary_DateBounds(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	ledger := &memLedger{entries: []costs.Entry{
		entryAt("p1", now.AddDate(0, 0, -10), 1.0),
		entryAt("p2", now.AddDate(0, 0, -5), 2.0),
		entryAt("p2", now.AddDate(0, 0, -1), 4.0),
	}}
	e := newTestEngine(ledger, now)

	all, err := e.MultiProjectSummary(context.Background(), nil, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.InDelta(t, 7.0, all.TotalCost, 1e-9)
	assert.Equal(t, []string{"p1", "p2"}, all.ProjectIDs)
	assert.InDelta(t, 6.0, all.CostByProject["p2"], 1e-9)

	recent, err := e.MultiProjectSummary(context.Background(), nil, now.AddDate(0, 0, -5), time.Time{})
	require.NoError(t, err)
	assert.InDelta(t, 6.0, recent.TotalCost, 1e-9)
}

func TestCompare_RanksByTotalCost(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	ledger := &memLedger{entries: []costs.Entry{
		entryAt("cheap", now, 0.1),
		entryAt("pricey", now, 5.0),
	}}
	e := newTestEngine(ledger, now)

	report, err := e.Compare(context.Background(), []string{"cheap", "pricey", "silent"}, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, report.Projects, 3)

	assert.Equal(t, "pricey", report.Projects[0].ProjectID)
	assert.Equal(t, 1, report.Projects[0].Rank)
	assert.Equal(t, "cheap", report.Projects[1].ProjectID)
	assert.Equal(t, "silent", report.Projects[2].ProjectID)
	assert.Zero(t, report.Projects[2].TotalCost, "unknown projects compare at zero, not error")
}

func TestCompare_RequiresProjects(t *testing.T) {
	e := newTestEngine(&memLedger{}, time.Now().UTC())
	_, err := e.Compare(context.Background(), nil, time.Time{}, time.Time{})
	assert.True(t, errors.IsInvalidInput(err))
}
