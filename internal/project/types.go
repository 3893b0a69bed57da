// Package project provides durable project and milestone persistence for the
// content-generation workflow, with interchangeable file and SQLite backends.
package project

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/p-blackswan/pressroom/internal/errors"
)

// ProjectStatus is the lifecycle state of a project.
type ProjectStatus string

const (
	StatusActive   ProjectStatus = "active"
	StatusArchived ProjectStatus = "archived"
	StatusDeleted  ProjectStatus = "deleted"
)

// ParseProjectStatus parses a status string, rejecting unknown values.
func ParseProjectStatus(s string) (ProjectStatus, error) {
	switch ProjectStatus(s) {
	case StatusActive, StatusArchived, StatusDeleted:
		return ProjectStatus(s), nil
	}
	return "", fmt.Errorf("%w: unknown project status %q", errors.ErrInvalidInput, s)
}

// MilestoneType identifies a workflow checkpoint.
type MilestoneType string

const (
	MilestoneFilesUploaded    MilestoneType = "files_uploaded"
	MilestoneOutlineGenerated MilestoneType = "outline_generated"
	MilestoneDraftCompleted   MilestoneType = "draft_completed"
	MilestoneBlogRefined      MilestoneType = "blog_refined"
	MilestoneSocialGenerated  MilestoneType = "social_generated"
)

// MilestoneTypes lists all milestone types in conventional workflow order.
// The order is a display convention only; milestones may be saved in any
// order and with gaps.
var MilestoneTypes = []MilestoneType{
	MilestoneFilesUploaded,
	MilestoneOutlineGenerated,
	MilestoneDraftCompleted,
	MilestoneBlogRefined,
	MilestoneSocialGenerated,
}

// ParseMilestoneType parses a milestone type string, rejecting unknown values.
func ParseMilestoneType(s string) (MilestoneType, error) {
	switch MilestoneType(s) {
	case MilestoneFilesUploaded, MilestoneOutlineGenerated, MilestoneDraftCompleted,
		MilestoneBlogRefined, MilestoneSocialGenerated:
		return MilestoneType(s), nil
	}
	return "", fmt.Errorf("%w: unknown milestone type %q", errors.ErrInvalidInput, s)
}

// SectionStatus is the generation state of a single draft section.
type SectionStatus string

const (
	SectionPending    SectionStatus = "pending"
	SectionGenerating SectionStatus = "generating"
	SectionCompleted  SectionStatus = "completed"
	SectionFailed     SectionStatus = "failed"
)

// ParseSectionStatus parses a section status string, rejecting unknown values.
func ParseSectionStatus(s string) (SectionStatus, error) {
	switch SectionStatus(s) {
	case SectionPending, SectionGenerating, SectionCompleted, SectionFailed:
		return SectionStatus(s), nil
	}
	return "", fmt.Errorf("%w: unknown section status %q", errors.ErrInvalidInput, s)
}

// MilestoneRef points at a stored milestone record from the project record.
type MilestoneRef struct {
	SavedAt time.Time `json:"saved_at"`
	File    string    `json:"file,omitempty"`
}

// Project is the top-level persisted unit owning milestones and sections.
type Project struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Status     ProjectStatus `json:"status"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
	ArchivedAt *time.Time    `json:"archived_at,omitempty"`

	// CurrentMilestone is the last milestone type written. It is a display
	// hint only; workflow position is derived from the set of completed
	// milestones via NextStep.
	CurrentMilestone MilestoneType `json:"current_milestone,omitempty"`

	Milestones map[MilestoneType]MilestoneRef `json:"milestones"`
	Metadata   map[string]any                 `json:"metadata"`
}

// CompletedSet returns the set of milestone types present on the project.
func (p *Project) CompletedSet() map[MilestoneType]bool {
	set := make(map[MilestoneType]bool, len(p.Milestones))
	for t := range p.Milestones {
		set[t] = true
	}
	return set
}

// Summary is a listing view of a project, excluding milestone payloads.
type Summary struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	Status           ProjectStatus `json:"status"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
	CurrentMilestone MilestoneType `json:"current_milestone,omitempty"`
}

// Milestone is a stored workflow checkpoint. Data is an opaque payload owned
// by the calling workflow step; the store round-trips it byte-identically.
type Milestone struct {
	Type      MilestoneType   `json:"type"`
	Data      json.RawMessage `json:"data"`
	Metadata  map[string]any  `json:"metadata"`
	CreatedAt time.Time       `json:"created_at"`
}

// Section is a draft section persisted alongside the project.
type Section struct {
	Index        int           `json:"section_index"`
	Title        string        `json:"title"`
	Content      string        `json:"content"`
	Status       SectionStatus `json:"status"`
	CostDelta    float64       `json:"cost_delta"`
	InputTokens  int           `json:"input_tokens"`
	OutputTokens int           `json:"output_tokens"`
}

// SectionStats summarizes per-status section counts for a project.
type SectionStats struct {
	Total      int     `json:"total"`
	Completed  int     `json:"completed"`
	Pending    int     `json:"pending"`
	Generating int     `json:"generating"`
	Failed     int     `json:"failed"`
	TotalCost  float64 `json:"total_cost"`
}

// ComputeSectionStats tallies section status counts.
func ComputeSectionStats(sections []Section) SectionStats {
	stats := SectionStats{Total: len(sections)}
	for _, s := range sections {
		switch s.Status {
		case SectionCompleted:
			stats.Completed++
		case SectionGenerating:
			stats.Generating++
		case SectionFailed:
			stats.Failed++
		default:
			stats.Pending++
		}
		stats.TotalCost += s.CostDelta
	}
	return stats
}
