// Package export renders a project as a portable artifact: a JSON bundle,
// a markdown document, or a zip of the project's storage tree.
package export

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/pressroom/internal/costs"
	"github.com/p-blackswan/pressroom/internal/errors"
	"github.com/p-blackswan/pressroom/internal/project"
)

// Format selects the export rendering.
type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatZip      Format = "zip"
)

// ParseFormat parses an export format string, rejecting unknown values.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatJSON, FormatMarkdown, FormatZip:
		return Format(s), nil
	}
	return "", fmt.Errorf("%w: unknown export format %q", errors.ErrInvalidInput, s)
}

// Result is a rendered export ready to hand to a client.
type Result struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Bundle is the JSON export shape: the project record plus every stored
// milestone exactly once, the section set, and the cost summary.
type Bundle struct {
	Project    *project.Project                               `json:"project"`
	Milestones map[project.MilestoneType]*project.Milestone   `json:"milestones"`
	Sections   []project.Section                              `json:"sections"`
	Costs      costs.Summary                                  `json:"costs"`
	ExportedAt time.Time                                      `json:"exported_at"`
}

// Exporter renders projects in the supported formats.
type Exporter struct {
	store  project.Store
	ledger costs.Ledger
	logger zerolog.Logger
}

// NewExporter creates an exporter over the given store and ledger.
func NewExporter(store project.Store, ledger costs.Ledger, logger zerolog.Logger) *Exporter {
	return &Exporter{
		store:  store,
		ledger: ledger,
		logger: logger.With().Str("component", "export").Logger(),
	}
}

// Export renders the project in the requested format. Returns ErrNotFound
// when the project does not exist.
func (e *Exporter) Export(ctx context.Context, projectID string, format Format) (*Result, error) {
	p, err := e.store.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: project %s", errors.ErrNotFound, projectID)
	}

	switch format {
	case FormatJSON:
		return e.exportJSON(ctx, p)
	case FormatMarkdown:
		return e.exportMarkdown(ctx, p)
	case FormatZip:
		return e.exportZip(ctx, p)
	}
	return nil, fmt.Errorf("%w: unknown export format %q", errors.ErrInvalidInput, format)
}

func (e *Exporter) exportJSON(ctx context.Context, p *project.Project) (*Result, error) {
	bundle := Bundle{
		Project:    p,
		Milestones: map[project.MilestoneType]*project.Milestone{},
		ExportedAt: time.Now().UTC(),
	}

	for typ := range p.Milestones {
		m, err := e.store.LoadMilestone(ctx, p.ID, typ)
		if err != nil {
			return nil, err
		}
		if m != nil {
			bundle.Milestones[typ] = m
		}
	}

	sections, err := e.store.LoadSections(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	bundle.Sections = sections

	summary, err := e.ledger.Summary(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	bundle.Costs = summary

	data, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling export bundle: %w", err)
	}
	return &Result{
		Filename:    exportName(p, "json"),
		ContentType: "application/json",
		Data:        data,
	}, nil
}

// exportMarkdown renders the refined blog content when present, falls back
// to the compiled draft, and emits an empty body when neither exists.
func (e *Exporter) exportMarkdown(ctx context.Context, p *project.Project) (*Result, error) {
	body, err := e.bestContent(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", p.Name)
	fmt.Fprintf(&b, "- Project: %s\n", p.ID)
	fmt.Fprintf(&b, "- Status: %s\n", p.Status)
	fmt.Fprintf(&b, "- Created: %s\n", p.CreatedAt.Format(time.RFC3339))
	if p.CurrentMilestone != "" {
		fmt.Fprintf(&b, "- Last milestone: %s\n", p.CurrentMilestone)
	}
	b.WriteString("\n---\n\n")
	b.WriteString(body)
	if body != "" && !strings.HasSuffix(body, "\n") {
		b.WriteString("\n")
	}

	return &Result{
		Filename:    exportName(p, "md"),
		ContentType: "text/markdown; charset=utf-8",
		Data:        []byte(b.String()),
	}, nil
}

// bestContent picks the most refined stored text: the refinement stage's
// refined_content, else the draft stage's compiled_blog, else empty.
func (e *Exporter) bestContent(ctx context.Context, projectID string) (string, error) {
	candidates := []struct {
		typ   project.MilestoneType
		field string
	}{
		{project.MilestoneBlogRefined, "refined_content"},
		{project.MilestoneDraftCompleted, "compiled_blog"},
	}

	for _, c := range candidates {
		m, err := e.store.LoadMilestone(ctx, projectID, c.typ)
		if err != nil {
			return "", err
		}
		if m == nil {
			continue
		}
		var payload map[string]any
		if err := json.Unmarshal(m.Data, &payload); err != nil {
			e.logger.Warn().Err(err).
				Str("project_id", projectID).
				Str("milestone", string(c.typ)).
				Msg("milestone payload is not an object, skipping for markdown export")
			continue
		}
		if s, ok := payload[c.field].(string); ok && s != "" {
			return s, nil
		}
	}
	return "", nil
}

// exportZip packs the project's storage tree byte-for-byte.
func (e *Exporter) exportZip(ctx context.Context, p *project.Project) (*Result, error) {
	files, err := e.store.Tree(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range files {
		w, err := zw.Create(f.Path)
		if err != nil {
			zw.Close()
			return nil, fmt.Errorf("adding %s to archive: %w", f.Path, err)
		}
		if _, err := w.Write(f.Data); err != nil {
			zw.Close()
			return nil, fmt.Errorf("writing %s to archive: %w", f.Path, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalizing archive: %w", err)
	}

	return &Result{
		Filename:    exportName(p, "zip"),
		ContentType: "application/zip",
		Data:        buf.Bytes(),
	}, nil
}

func exportName(p *project.Project, ext string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, p.Name)
	if name == "" {
		name = p.ID
	}
	return fmt.Sprintf("%s.%s", name, ext)
}
