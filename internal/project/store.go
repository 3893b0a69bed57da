package project

import (
	"context"
	"encoding/json"
)

// TreeFile is one file of a project's storage tree, used for zip export.
// The file backend returns its on-disk files byte-for-byte; the SQLite
// backend renders the equivalent records.
type TreeFile struct {
	Path string
	Data []byte
}

// Store is the persistence contract for projects, milestones, and sections.
// Both backends (file and SQLite) implement identical semantics, validated by
// a shared contract test suite; in particular NextStep over the stored
// milestone set must be byte-identical across backends.
//
// Read operations return (nil, nil) when the record is absent. Write
// operations return an error wrapping errors.ErrNotFound when the target
// project does not exist.
type Store interface {
	// Create generates a fresh UUID and writes an initial active record.
	// Unlike other operations, storage failures surface to the caller since
	// no project ID exists to report against.
	Create(ctx context.Context, name string, metadata map[string]any) (*Project, error)

	Get(ctx context.Context, projectID string) (*Project, error)
	GetByName(ctx context.Context, name string) (*Project, error)

	// List returns summaries sorted by updated_at descending. An empty
	// status lists all projects.
	List(ctx context.Context, status ProjectStatus) ([]Summary, error)

	// UpdateMetadata merges the given keys into the project's metadata bag.
	UpdateMetadata(ctx context.Context, projectID string, metadata map[string]any) error

	// SaveMilestone writes the milestone record, then updates the project's
	// current_milestone and updated_at. The two writes are independently
	// atomic with no cross-record transaction in the file backend; a crash
	// between them leaves the milestone persisted and the project record
	// stale, which is an accepted risk.
	SaveMilestone(ctx context.Context, projectID string, typ MilestoneType, data json.RawMessage, metadata map[string]any) error

	LoadMilestone(ctx context.Context, projectID string, typ MilestoneType) (*Milestone, error)

	// LatestMilestone loads the milestone named by current_milestone.
	LatestMilestone(ctx context.Context, projectID string) (*Milestone, error)

	// SaveSections atomically replaces the project's entire section set.
	SaveSections(ctx context.Context, projectID string, sections []Section) error

	// LoadSections returns sections ordered by index ascending.
	LoadSections(ctx context.Context, projectID string) ([]Section, error)

	// UpdateSectionStatus updates one section's status and, when costDelta is
	// non-nil, its cost delta.
	UpdateSectionStatus(ctx context.Context, projectID string, index int, status SectionStatus, costDelta *float64) error

	// Archive marks the project archived and stamps archived_at.
	Archive(ctx context.Context, projectID string) error

	// Delete soft-deletes by default. A permanent delete removes the
	// project's entire storage tree and is irreversible; cost ledger entries
	// are deliberately retained for historical analytics.
	Delete(ctx context.Context, projectID string, permanent bool) error

	// Tree returns the project's storage tree for zip export.
	Tree(ctx context.Context, projectID string) ([]TreeFile, error)

	Close() error
}
