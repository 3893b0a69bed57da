// Package resume reconstructs a full workflow snapshot for a client
// reconnecting to a project: where it left off and what it has cost so far.
package resume

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/pressroom/internal/costs"
	"github.com/p-blackswan/pressroom/internal/errors"
	"github.com/p-blackswan/pressroom/internal/project"
)

// Progress is a coarse measure of how far the workflow has advanced. The
// percentage is completed milestones over the total milestone count, a
// linear approximation rather than a true work-completion measure.
type Progress struct {
	Percentage float64                        `json:"percentage"`
	Milestones map[project.MilestoneType]bool `json:"milestones"`
	Sections   project.SectionStats           `json:"sections"`
}

// Snapshot is everything a reconnecting client needs to continue a project.
type Snapshot struct {
	Project             *project.Project        `json:"project"`
	Progress            Progress                `json:"progress"`
	Costs               costs.Summary           `json:"costs"`
	CompletedMilestones []project.MilestoneType `json:"completed_milestones"`
	NextStep            project.Step            `json:"next_step"`
}

// Coordinator composes the project store and cost ledger into resume
// snapshots. It holds no state of its own.
type Coordinator struct {
	store  project.Store
	ledger costs.Ledger
	logger zerolog.Logger
}

// NewCoordinator creates a resume coordinator.
func NewCoordinator(store project.Store, ledger costs.Ledger, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		store:  store,
		ledger: ledger,
		logger: logger.With().Str("component", "resume").Logger(),
	}
}

// Resume builds a snapshot for the project. Every field is computed from the
// same read pass: section stats are recomputed fresh, never cached. Returns
// ErrNotFound when the project does not exist.
func (c *Coordinator) Resume(ctx context.Context, projectID string) (*Snapshot, error) {
	p, err := c.store.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: project %s", errors.ErrNotFound, projectID)
	}

	sections, err := c.store.LoadSections(ctx, projectID)
	if err != nil {
		return nil, err
	}

	summary, err := c.ledger.Summary(ctx, projectID)
	if err != nil {
		return nil, err
	}

	completed := p.CompletedSet()
	keys := make([]project.MilestoneType, 0, len(completed))
	for t := range completed {
		keys = append(keys, t)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	flags := make(map[project.MilestoneType]bool, len(project.MilestoneTypes))
	for _, t := range project.MilestoneTypes {
		flags[t] = completed[t]
	}

	snap := &Snapshot{
		Project: p,
		Progress: Progress{
			Percentage: float64(len(completed)) / float64(len(project.MilestoneTypes)) * 100,
			Milestones: flags,
			Sections:   project.ComputeSectionStats(sections),
		},
		Costs:               summary,
		CompletedMilestones: keys,
		NextStep:            project.NextStep(completed),
	}

	c.logger.Debug().
		Str("project_id", projectID).
		Str("next_step", string(snap.NextStep)).
		Float64("percentage", snap.Progress.Percentage).
		Msg("resume snapshot built")
	return snap, nil
}
