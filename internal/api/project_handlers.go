package api

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/p-blackswan/pressroom/internal/analytics"
	"github.com/p-blackswan/pressroom/internal/autosave"
	"github.com/p-blackswan/pressroom/internal/costs"
	"github.com/p-blackswan/pressroom/internal/export"
	"github.com/p-blackswan/pressroom/internal/metrics"
	"github.com/p-blackswan/pressroom/internal/project"
	"github.com/p-blackswan/pressroom/internal/resume"
)

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	store       project.Store
	ledger      costs.Ledger
	engine      *analytics.Engine
	coordinator *resume.Coordinator
	exporter    *export.Exporter
	metrics     *metrics.Metrics
	autosave    *autosave.Debouncer
	logger      zerolog.Logger
	startTime   time.Time
}

// SetAutosave registers a debouncer that is notified after every write
// to a project's milestones or sections.
func (h *Handlers) SetAutosave(d *autosave.Debouncer) {
	h.autosave = d
}

func (h *Handlers) notifySave(projectID string) {
	if h.autosave != nil {
		h.autosave.Notify(projectID)
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(
	store project.Store,
	ledger costs.Ledger,
	engine *analytics.Engine,
	coordinator *resume.Coordinator,
	exporter *export.Exporter,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *Handlers {
	return &Handlers{
		store:       store,
		ledger:      ledger,
		engine:      engine,
		coordinator: coordinator,
		exporter:    exporter,
		metrics:     m,
		logger:      logger.With().Str("component", "handlers").Logger(),
		startTime:   time.Now(),
	}
}

// CreateProject handles POST /api/v1/projects.
func (h *Handlers) CreateProject(c *fiber.Ctx) error {
	var req CreateProjectRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request",
			"Invalid request body: "+err.Error())
	}
	if strings.TrimSpace(req.Name) == "" {
		return problemResponse(c, fiber.StatusBadRequest,
			"missing_name", "Bad Request",
			"Project name is required")
	}

	p, err := h.store.Create(c.Context(), req.Name, req.Metadata)
	if err != nil {
		if h.metrics != nil {
			h.metrics.RecordError("project", "create")
		}
		return storeProblem(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(p)
}

// ListProjects handles GET /api/v1/projects.
func (h *Handlers) ListProjects(c *fiber.Ctx) error {
	var status project.ProjectStatus
	if q := c.Query("status"); q != "" {
		parsed, err := project.ParseProjectStatus(q)
		if err != nil {
			return storeProblem(c, err)
		}
		status = parsed
	}

	summaries, err := h.store.List(c.Context(), status)
	if err != nil {
		return storeProblem(c, err)
	}
	if summaries == nil {
		summaries = []project.Summary{}
	}
	return c.JSON(ProjectListResponse{Projects: summaries, Total: len(summaries)})
}

// GetProject handles GET /api/v1/projects/:id.
func (h *Handlers) GetProject(c *fiber.Ctx) error {
	id := c.Params("id")
	p, err := h.store.Get(c.Context(), id)
	if err != nil {
		return storeProblem(c, err)
	}
	if p == nil {
		return problemResponse(c, fiber.StatusNotFound,
			"project_not_found", "Not Found",
			"Project not found: "+id)
	}
	return c.JSON(p)
}

// GetProjectByName handles GET /api/v1/projects/by-name/:name.
func (h *Handlers) GetProjectByName(c *fiber.Ctx) error {
	name := c.Params("name")
	p, err := h.store.GetByName(c.Context(), name)
	if err != nil {
		return storeProblem(c, err)
	}
	if p == nil {
		return problemResponse(c, fiber.StatusNotFound,
			"project_not_found", "Not Found",
			"Project not found: "+name)
	}
	return c.JSON(p)
}

// DeleteProject handles DELETE /api/v1/projects/:id. A permanent delete
// removes the project's storage tree; cost entries are retained.
func (h *Handlers) DeleteProject(c *fiber.Ctx) error {
	id := c.Params("id")
	permanent := c.QueryBool("permanent", false)

	if err := h.store.Delete(c.Context(), id, permanent); err != nil {
		return storeProblem(c, err)
	}
	return c.JSON(fiber.Map{"deleted": true, "permanent": permanent})
}

// ArchiveProject handles POST /api/v1/projects/:id/archive.
func (h *Handlers) ArchiveProject(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.store.Archive(c.Context(), id); err != nil {
		return storeProblem(c, err)
	}
	return c.JSON(fiber.Map{"archived": true})
}

// UpdateMetadata handles PATCH /api/v1/projects/:id/metadata.
func (h *Handlers) UpdateMetadata(c *fiber.Ctx) error {
	var req UpdateMetadataRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request",
			"Invalid request body: "+err.Error())
	}

	id := c.Params("id")
	if err := h.store.UpdateMetadata(c.Context(), id, req.Metadata); err != nil {
		return storeProblem(c, err)
	}
	return c.JSON(fiber.Map{"updated": true})
}

// SaveMilestone handles POST /api/v1/projects/:id/milestones.
func (h *Handlers) SaveMilestone(c *fiber.Ctx) error {
	var req SaveMilestoneRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request",
			"Invalid request body: "+err.Error())
	}

	typ, err := project.ParseMilestoneType(req.Type)
	if err != nil {
		return storeProblem(c, err)
	}

	id := c.Params("id")
	if err := h.store.SaveMilestone(c.Context(), id, typ, req.Data, req.Metadata); err != nil {
		return storeProblem(c, err)
	}
	if h.metrics != nil {
		h.metrics.RecordMilestoneSave(string(typ))
	}
	h.notifySave(id)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"saved": true, "type": typ})
}

// LoadMilestone handles GET /api/v1/projects/:id/milestones/:type.
func (h *Handlers) LoadMilestone(c *fiber.Ctx) error {
	typ, err := project.ParseMilestoneType(c.Params("type"))
	if err != nil {
		return storeProblem(c, err)
	}

	id := c.Params("id")
	m, err := h.store.LoadMilestone(c.Context(), id, typ)
	if err != nil {
		return storeProblem(c, err)
	}
	if m == nil {
		return problemResponse(c, fiber.StatusNotFound,
			"milestone_not_found", "Not Found",
			"Milestone not found: "+string(typ))
	}
	return c.JSON(m)
}

// SaveSections handles PUT /api/v1/projects/:id/sections. The request
// replaces the project's entire section set.
func (h *Handlers) SaveSections(c *fiber.Ctx) error {
	var req SaveSectionsRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request",
			"Invalid request body: "+err.Error())
	}

	id := c.Params("id")
	if err := h.store.SaveSections(c.Context(), id, req.Sections); err != nil {
		return storeProblem(c, err)
	}
	h.notifySave(id)
	return c.JSON(fiber.Map{"saved": true, "count": len(req.Sections)})
}

// ListSections handles GET /api/v1/projects/:id/sections.
func (h *Handlers) ListSections(c *fiber.Ctx) error {
	id := c.Params("id")
	sections, err := h.store.LoadSections(c.Context(), id)
	if err != nil {
		return storeProblem(c, err)
	}
	if sections == nil {
		sections = []project.Section{}
	}
	return c.JSON(fiber.Map{
		"sections": sections,
		"stats":    project.ComputeSectionStats(sections),
	})
}

// UpdateSectionStatus handles PATCH /api/v1/projects/:id/sections/:index/status.
func (h *Handlers) UpdateSectionStatus(c *fiber.Ctx) error {
	var req UpdateSectionStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request",
			"Invalid request body: "+err.Error())
	}

	status, err := project.ParseSectionStatus(req.Status)
	if err != nil {
		return storeProblem(c, err)
	}

	index, err := c.ParamsInt("index")
	if err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_index", "Bad Request",
			"Section index must be an integer")
	}

	id := c.Params("id")
	if err := h.store.UpdateSectionStatus(c.Context(), id, index, status, req.CostDelta); err != nil {
		return storeProblem(c, err)
	}
	h.notifySave(id)
	return c.JSON(fiber.Map{"updated": true})
}

// Progress handles GET /api/v1/projects/:id/progress. It returns the
// progress slice of the resume snapshot.
func (h *Handlers) Progress(c *fiber.Ctx) error {
	snap, err := h.coordinator.Resume(c.Context(), c.Params("id"))
	if err != nil {
		return storeProblem(c, err)
	}
	return c.JSON(fiber.Map{
		"progress":             snap.Progress,
		"completed_milestones": snap.CompletedMilestones,
		"next_step":            snap.NextStep,
	})
}

// Resume handles POST /api/v1/projects/:id/resume.
func (h *Handlers) Resume(c *fiber.Ctx) error {
	snap, err := h.coordinator.Resume(c.Context(), c.Params("id"))
	if err != nil {
		return storeProblem(c, err)
	}
	return c.JSON(snap)
}

// Export handles GET /api/v1/projects/:id/export?format=json|markdown|zip.
func (h *Handlers) Export(c *fiber.Ctx) error {
	format, err := export.ParseFormat(c.Query("format", "json"))
	if err != nil {
		return storeProblem(c, err)
	}

	result, err := h.exporter.Export(c.Context(), c.Params("id"), format)
	if err != nil {
		return storeProblem(c, err)
	}

	c.Set("Content-Type", result.ContentType)
	c.Set("Content-Disposition", `attachment; filename="`+result.Filename+`"`)
	return c.Send(result.Data)
}
