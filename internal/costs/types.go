// Package costs provides the append-only ledger of priced LLM operations and
// its per-project summary fold.
package costs

import (
	"fmt"
	"sort"
	"time"

	"github.com/p-blackswan/pressroom/internal/errors"
)

// Entry is one priced operation. Entries are immutable once written; the
// ledger supports no update or delete.
type Entry struct {
	ID              string         `json:"id"`
	ProjectID       string         `json:"project_id"`
	AgentName       string         `json:"agent_name"`
	Operation       string         `json:"operation"`
	InputTokens     int            `json:"input_tokens"`
	OutputTokens    int            `json:"output_tokens"`
	Cost            float64        `json:"cost"`
	ModelUsed       string         `json:"model_used,omitempty"`
	DurationSeconds float64        `json:"duration_seconds"`
	Timestamp       time.Time      `json:"timestamp"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// Validate checks entry invariants. Zero-cost entries are valid: pure
// metadata operations are recorded too.
func (e *Entry) Validate() error {
	if e.ProjectID == "" {
		return fmt.Errorf("%w: project_id is required", errors.ErrInvalidInput)
	}
	if e.AgentName == "" {
		return fmt.Errorf("%w: agent_name is required", errors.ErrInvalidInput)
	}
	if e.InputTokens < 0 || e.OutputTokens < 0 {
		return fmt.Errorf("%w: token counts must be non-negative", errors.ErrInvalidInput)
	}
	if e.Cost < 0 {
		return fmt.Errorf("%w: cost must be non-negative", errors.ErrInvalidInput)
	}
	if e.DurationSeconds < 0 {
		return fmt.Errorf("%w: duration must be non-negative", errors.ErrInvalidInput)
	}
	return nil
}

// Summary is the per-project rollup of all ledger entries.
type Summary struct {
	TotalCost         float64            `json:"total_cost"`
	TotalInputTokens  int                `json:"total_input_tokens"`
	TotalOutputTokens int                `json:"total_output_tokens"`
	TotalCalls        int                `json:"total_calls"`
	CostByAgent       map[string]float64 `json:"cost_by_agent"`
	CostByModel       map[string]float64 `json:"cost_by_model"`
}

// Summarize folds entries into a Summary. The fold is commutative and
// associative: the result is identical for any insertion or iteration order.
// Entries with no model are excluded from the per-model breakdown rather than
// bucketed under a placeholder.
func Summarize(entries []Entry) Summary {
	s := Summary{
		CostByAgent: map[string]float64{},
		CostByModel: map[string]float64{},
	}
	for _, e := range entries {
		s.TotalCost += e.Cost
		s.TotalInputTokens += e.InputTokens
		s.TotalOutputTokens += e.OutputTokens
		s.TotalCalls++
		s.CostByAgent[e.AgentName] += e.Cost
		if e.ModelUsed != "" {
			s.CostByModel[e.ModelUsed] += e.Cost
		}
	}
	return s
}

// TimelineEntry is a ledger entry annotated with the running cost total.
type TimelineEntry struct {
	Entry
	CumulativeCost float64 `json:"cumulative_cost"`
}

// BuildTimeline sorts entries ascending by timestamp and annotates each with
// the cumulative cost up to and including it.
func BuildTimeline(entries []Entry) []TimelineEntry {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	timeline := make([]TimelineEntry, len(sorted))
	var running float64
	for i, e := range sorted {
		running += e.Cost
		timeline[i] = TimelineEntry{Entry: e, CumulativeCost: running}
	}
	return timeline
}
