// Package analytics builds multi-project, time-bucketed cost reports from
// the ledger. All operations are read-only.
package analytics

import (
	"fmt"
	"time"

	"github.com/p-blackswan/pressroom/internal/costs"
	"github.com/p-blackswan/pressroom/internal/errors"
)

// Granularity selects the bucket width for trend reports.
type Granularity string

const (
	GranularityDaily   Granularity = "daily"
	GranularityWeekly  Granularity = "weekly"
	GranularityMonthly Granularity = "monthly"
	GranularityYearly  Granularity = "yearly"
)

// ParseGranularity is the canonical parse for granularity values; unknown
// values are rejected with ErrInvalidInput.
func ParseGranularity(s string) (Granularity, error) {
	switch Granularity(s) {
	case GranularityDaily, GranularityWeekly, GranularityMonthly, GranularityYearly:
		return Granularity(s), nil
	default:
		return "", fmt.Errorf("%w: unknown granularity %q", errors.ErrInvalidInput, s)
	}
}

// Bucket is one calendar window of aggregated ledger entries. End is
// exclusive.
type Bucket struct {
	Label string    `json:"label"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	costs.Summary
}

// Report is a sequence of consecutive buckets plus the overall fold.
type Report struct {
	Granularity Granularity   `json:"granularity"`
	GeneratedAt time.Time     `json:"generated_at"`
	Buckets     []Bucket      `json:"buckets"`
	Total       costs.Summary `json:"total"`
}

// TrendPoint is one bucket of a trend series, reduced to its cost total.
type TrendPoint struct {
	Label     string    `json:"label"`
	Start     time.Time `json:"start"`
	TotalCost float64   `json:"total_cost"`
}

// TrendReport is a trend series with a deterministic forecast for the
// period following the last observed bucket.
type TrendReport struct {
	Granularity Granularity  `json:"granularity"`
	Points      []TrendPoint `json:"points"`
	Forecast    float64      `json:"forecast"`
}

// MultiSummary aggregates a project set over an optional inclusive date
// range. Zero bounds mean unfiltered on that side.
type MultiSummary struct {
	ProjectIDs    []string           `json:"project_ids"`
	From          time.Time          `json:"from,omitzero"`
	To            time.Time          `json:"to,omitzero"`
	CostByProject map[string]float64 `json:"cost_by_project"`
	costs.Summary
}

// ProjectComparison is one project's totals with its position in the
// cost ranking (1 = most expensive).
type ProjectComparison struct {
	ProjectID string `json:"project_id"`
	Rank      int    `json:"rank"`
	costs.Summary
}

// ComparisonReport ranks the requested projects by total cost.
type ComparisonReport struct {
	From     time.Time           `json:"from,omitzero"`
	To       time.Time           `json:"to,omitzero"`
	Projects []ProjectComparison `json:"projects"`
}
