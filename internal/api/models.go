package api

import (
	"encoding/json"

	"github.com/p-blackswan/pressroom/internal/project"
)

// CreateProjectRequest is the body for POST /api/v1/projects.
type CreateProjectRequest struct {
	Name     string         `json:"name"`
	Metadata map[string]any `json:"metadata"`
}

// UpdateMetadataRequest is the body for PATCH /api/v1/projects/:id/metadata.
type UpdateMetadataRequest struct {
	Metadata map[string]any `json:"metadata"`
}

// SaveMilestoneRequest is the body for POST /api/v1/projects/:id/milestones.
// Data is an opaque payload owned by the calling workflow step.
type SaveMilestoneRequest struct {
	Type     string          `json:"type"`
	Data     json.RawMessage `json:"data"`
	Metadata map[string]any  `json:"metadata"`
}

// SaveSectionsRequest is the body for PUT /api/v1/projects/:id/sections.
type SaveSectionsRequest struct {
	Sections []project.Section `json:"sections"`
}

// UpdateSectionStatusRequest is the body for
// PATCH /api/v1/projects/:id/sections/:index/status.
type UpdateSectionStatusRequest struct {
	Status    string   `json:"status"`
	CostDelta *float64 `json:"cost_delta"`
}

// TrackCostRequest is the body for POST /api/v1/projects/:id/costs.
type TrackCostRequest struct {
	AgentName       string         `json:"agent_name"`
	Operation       string         `json:"operation"`
	InputTokens     int            `json:"input_tokens"`
	OutputTokens    int            `json:"output_tokens"`
	Cost            float64        `json:"cost"`
	ModelUsed       string         `json:"model_used"`
	DurationSeconds float64        `json:"duration_seconds"`
	Metadata        map[string]any `json:"metadata"`
}

// ProjectListResponse is the body for GET /api/v1/projects.
type ProjectListResponse struct {
	Projects []project.Summary `json:"projects"`
	Total    int               `json:"total"`
}
