package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/p-blackswan/pressroom/internal/analytics"
	"github.com/p-blackswan/pressroom/internal/costs"
	"github.com/p-blackswan/pressroom/internal/errors"
)

// TrackCost handles POST /api/v1/projects/:id/costs. Append failures on
// valid entries are logged and reported as accepted=false rather than an
// error status: cost tracking is best-effort relative to the operation
// whose cost is being recorded.
func (h *Handlers) TrackCost(c *fiber.Ctx) error {
	var req TrackCostRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request",
			"Invalid request body: "+err.Error())
	}

	entry := costs.Entry{
		ProjectID:       c.Params("id"),
		AgentName:       req.AgentName,
		Operation:       req.Operation,
		InputTokens:     req.InputTokens,
		OutputTokens:    req.OutputTokens,
		Cost:            req.Cost,
		ModelUsed:       req.ModelUsed,
		DurationSeconds: req.DurationSeconds,
		Metadata:        req.Metadata,
	}

	if err := h.ledger.Append(c.Context(), entry); err != nil {
		if errors.IsInvalidInput(err) {
			return storeProblem(c, err)
		}
		h.logger.Error().Err(err).
			Str("project_id", entry.ProjectID).
			Msg("cost append failed")
		if h.metrics != nil {
			h.metrics.RecordError("costs", "append")
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"accepted": false})
	}

	if h.metrics != nil {
		h.metrics.RecordCost(entry.Cost)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"accepted": true})
}

// CostSummary handles GET /api/v1/projects/:id/costs.
func (h *Handlers) CostSummary(c *fiber.Ctx) error {
	summary, err := h.ledger.Summary(c.Context(), c.Params("id"))
	if err != nil {
		return storeProblem(c, err)
	}
	return c.JSON(summary)
}

// CostAnalysis handles GET /api/v1/projects/:id/costs/analysis: the
// project's full cost timeline with running totals.
func (h *Handlers) CostAnalysis(c *fiber.Ctx) error {
	timeline, err := h.ledger.Timeline(c.Context(), c.Params("id"))
	if err != nil {
		return storeProblem(c, err)
	}
	if timeline == nil {
		timeline = []costs.TimelineEntry{}
	}
	return c.JSON(fiber.Map{"timeline": timeline, "total": len(timeline)})
}

// WeeklyReport handles GET /api/v1/analytics/weekly.
func (h *Handlers) WeeklyReport(c *fiber.Ctx) error {
	report, err := h.engine.WeeklyReport(c.Context(),
		projectFilter(c), c.QueryInt("weeks_back", 4))
	if err != nil {
		return storeProblem(c, err)
	}
	return sendReport(c, report)
}

// MonthlyReport handles GET /api/v1/analytics/monthly.
func (h *Handlers) MonthlyReport(c *fiber.Ctx) error {
	report, err := h.engine.MonthlyReport(c.Context(),
		projectFilter(c), c.QueryInt("months_back", 6))
	if err != nil {
		return storeProblem(c, err)
	}
	return sendReport(c, report)
}

// Trends handles GET /api/v1/analytics/trends.
func (h *Handlers) Trends(c *fiber.Ctx) error {
	granularity, err := analytics.ParseGranularity(c.Query("granularity", "weekly"))
	if err != nil {
		return storeProblem(c, err)
	}

	report, err := h.engine.Trends(c.Context(),
		projectFilter(c), c.QueryInt("periods", 8), granularity)
	if err != nil {
		return storeProblem(c, err)
	}
	return c.JSON(report)
}

// MultiSummary handles GET /api/v1/analytics/summary.
func (h *Handlers) MultiSummary(c *fiber.Ctx) error {
	from, to, err := dateBounds(c)
	if err != nil {
		return storeProblem(c, err)
	}

	summary, err := h.engine.MultiProjectSummary(c.Context(), projectFilter(c), from, to)
	if err != nil {
		return storeProblem(c, err)
	}
	return c.JSON(summary)
}

// Compare handles GET /api/v1/analytics/compare.
func (h *Handlers) Compare(c *fiber.Ctx) error {
	from, to, err := dateBounds(c)
	if err != nil {
		return storeProblem(c, err)
	}

	report, err := h.engine.Compare(c.Context(), projectFilter(c), from, to)
	if err != nil {
		return storeProblem(c, err)
	}
	return c.JSON(report)
}

// projectFilter parses the optional comma-delimited projects query
// parameter. Nil means all projects.
func projectFilter(c *fiber.Ctx) []string {
	raw := c.Query("projects")
	if raw == "" {
		return nil
	}
	var ids []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// dateBounds parses the optional ISO-8601 start and end query parameters.
// Bare dates are accepted alongside full timestamps.
func dateBounds(c *fiber.Ctx) (time.Time, time.Time, error) {
	from, err := parseDate(c.Query("start"))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := parseDate(c.Query("end"))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to, nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unparseable date %q", errors.ErrInvalidInput, s)
}

// sendReport renders a bucketed report as JSON, or as a spreadsheet when
// format=xlsx is requested.
func sendReport(c *fiber.Ctx, report *analytics.Report) error {
	if c.Query("format") != "xlsx" {
		return c.JSON(report)
	}

	c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set("Content-Disposition", `attachment; filename="cost_report.xlsx"`)
	if err := analytics.WriteXLSX(c.Response().BodyWriter(), report); err != nil {
		return storeProblem(c, err)
	}
	return nil
}
