package project

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/p-blackswan/pressroom/internal/errors"
	"github.com/p-blackswan/pressroom/internal/store"
)

// SQLStore is the SQLite-backed Store implementation.
type SQLStore struct {
	ds     *store.Store
	logger zerolog.Logger
}

// NewSQLStore creates a project store on top of the shared SQLite database.
func NewSQLStore(ds *store.Store, logger zerolog.Logger) *SQLStore {
	return &SQLStore{
		ds:     ds,
		logger: logger.With().Str("component", "project.sqlstore").Logger(),
	}
}

// now returns the current time truncated to millisecond precision, matching
// the resolution of the created_at/updated_at columns.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func marshalMetadata(m map[string]any) (string, error) {
	if m == nil {
		m = map[string]any{}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshaling metadata: %w", err)
	}
	return string(b), nil
}

func unmarshalMetadata(raw string) map[string]any {
	m := map[string]any{}
	if raw != "" {
		_ = json.Unmarshal([]byte(raw), &m)
	}
	return m
}

// Create generates a fresh UUID and inserts an active project record.
func (s *SQLStore) Create(ctx context.Context, name string, metadata map[string]any) (*Project, error) {
	meta, err := marshalMetadata(metadata)
	if err != nil {
		return nil, err
	}

	p := &Project{
		ID:         uuid.New().String(),
		Name:       name,
		Status:     StatusActive,
		CreatedAt:  now(),
		UpdatedAt:  now(),
		Milestones: map[MilestoneType]MilestoneRef{},
		Metadata:   unmarshalMetadata(meta),
	}

	_, err = s.ds.DB().ExecContext(ctx,
		`INSERT INTO projects (id, name, status, metadata, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, string(p.Status), meta, p.CreatedAt.UnixMilli(), p.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return nil, errors.NewStoreError("sqlite", "create", "", err)
	}
	s.logger.Info().Str("project_id", p.ID).Str("name", name).Msg("project created")
	return p, nil
}

const projectColumns = `id, name, status, current_milestone, metadata, created_at, updated_at, archived_at`

func (s *SQLStore) scanProject(ctx context.Context, query string, args ...any) (*Project, error) {
	p := &Project{}
	var currentMilestone sql.NullString
	var meta string
	var createdAt, updatedAt int64
	var archivedAt sql.NullInt64

	err := s.ds.DB().QueryRowContext(ctx, query, args...).Scan(
		&p.ID, &p.Name, (*string)(&p.Status), &currentMilestone,
		&meta, &createdAt, &updatedAt, &archivedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewStoreError("sqlite", "get", "", err)
	}

	p.CreatedAt = time.UnixMilli(createdAt).UTC()
	p.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	if archivedAt.Valid {
		t := time.UnixMilli(archivedAt.Int64).UTC()
		p.ArchivedAt = &t
	}
	if currentMilestone.Valid {
		p.CurrentMilestone = MilestoneType(currentMilestone.String)
	}
	p.Metadata = unmarshalMetadata(meta)

	p.Milestones = map[MilestoneType]MilestoneRef{}
	rows, err := s.ds.DB().QueryContext(ctx,
		`SELECT type, created_at FROM milestones WHERE project_id = ?`, p.ID)
	if err != nil {
		return nil, errors.NewStoreError("sqlite", "get", p.ID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var typ string
		var savedAt int64
		if err := rows.Scan(&typ, &savedAt); err != nil {
			return nil, errors.NewStoreError("sqlite", "get", p.ID, err)
		}
		p.Milestones[MilestoneType(typ)] = MilestoneRef{SavedAt: time.UnixMilli(savedAt).UTC()}
	}
	return p, rows.Err()
}

// Get retrieves a project by ID, returning (nil, nil) when absent.
func (s *SQLStore) Get(ctx context.Context, projectID string) (*Project, error) {
	return s.scanProject(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, projectID)
}

// GetByName retrieves the most recently updated project with the given name.
func (s *SQLStore) GetByName(ctx context.Context, name string) (*Project, error) {
	return s.scanProject(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE name = ? ORDER BY updated_at DESC LIMIT 1`, name)
}

// List returns project summaries, newest update first.
func (s *SQLStore) List(ctx context.Context, status ProjectStatus) ([]Summary, error) {
	query := `SELECT id, name, status, current_milestone, created_at, updated_at FROM projects`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY updated_at DESC`

	rows, err := s.ds.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewStoreError("sqlite", "list", "", err)
	}
	defer rows.Close()

	var summaries []Summary
	for rows.Next() {
		var sum Summary
		var currentMilestone sql.NullString
		var createdAt, updatedAt int64
		if err := rows.Scan(&sum.ID, &sum.Name, (*string)(&sum.Status), &currentMilestone, &createdAt, &updatedAt); err != nil {
			return nil, errors.NewStoreError("sqlite", "list", "", err)
		}
		sum.CreatedAt = time.UnixMilli(createdAt).UTC()
		sum.UpdatedAt = time.UnixMilli(updatedAt).UTC()
		if currentMilestone.Valid {
			sum.CurrentMilestone = MilestoneType(currentMilestone.String)
		}
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

// UpdateMetadata merges keys into the project's metadata bag.
func (s *SQLStore) UpdateMetadata(ctx context.Context, projectID string, metadata map[string]any) error {
	tx, err := s.ds.DB().BeginTx(ctx, nil)
	if err != nil {
		return errors.NewStoreError("sqlite", "update_metadata", projectID, err)
	}
	defer tx.Rollback()

	var raw string
	err = tx.QueryRowContext(ctx, `SELECT metadata FROM projects WHERE id = ?`, projectID).Scan(&raw)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: project %s", errors.ErrNotFound, projectID)
	}
	if err != nil {
		return errors.NewStoreError("sqlite", "update_metadata", projectID, err)
	}

	merged := unmarshalMetadata(raw)
	for k, v := range metadata {
		merged[k] = v
	}
	out, err := marshalMetadata(merged)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE projects SET metadata = ?, updated_at = ? WHERE id = ?`,
		out, now().UnixMilli(), projectID,
	); err != nil {
		return errors.NewStoreError("sqlite", "update_metadata", projectID, err)
	}
	return tx.Commit()
}

// SaveMilestone upserts the milestone record and updates the project's
// current_milestone hint.
func (s *SQLStore) SaveMilestone(ctx context.Context, projectID string, typ MilestoneType, data json.RawMessage, metadata map[string]any) error {
	meta, err := marshalMetadata(metadata)
	if err != nil {
		return err
	}
	if data == nil {
		data = json.RawMessage("null")
	}

	tx, err := s.ds.DB().BeginTx(ctx, nil)
	if err != nil {
		return errors.NewStoreError("sqlite", "save_milestone", projectID, err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM projects WHERE id = ?`, projectID).Scan(&exists)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: project %s", errors.ErrNotFound, projectID)
	}
	if err != nil {
		return errors.NewStoreError("sqlite", "save_milestone", projectID, err)
	}

	ts := now().UnixMilli()
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO milestones (project_id, type, data, metadata, created_at) VALUES (?, ?, ?, ?, ?)`,
		projectID, string(typ), string(data), meta, ts,
	); err != nil {
		return errors.NewStoreError("sqlite", "save_milestone", projectID, err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE projects SET current_milestone = ?, updated_at = ? WHERE id = ?`,
		string(typ), ts, projectID,
	); err != nil {
		return errors.NewStoreError("sqlite", "save_milestone", projectID, err)
	}

	if err := tx.Commit(); err != nil {
		return errors.NewStoreError("sqlite", "save_milestone", projectID, err)
	}
	s.logger.Info().Str("project_id", projectID).Str("milestone", string(typ)).Msg("milestone saved")
	return nil
}

// LoadMilestone retrieves one milestone, returning (nil, nil) when absent.
func (s *SQLStore) LoadMilestone(ctx context.Context, projectID string, typ MilestoneType) (*Milestone, error) {
	m := &Milestone{Type: typ}
	var data, meta string
	var createdAt int64

	err := s.ds.DB().QueryRowContext(ctx,
		`SELECT data, metadata, created_at FROM milestones WHERE project_id = ? AND type = ?`,
		projectID, string(typ),
	).Scan(&data, &meta, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewStoreError("sqlite", "load_milestone", projectID, err)
	}

	m.Data = json.RawMessage(data)
	m.Metadata = unmarshalMetadata(meta)
	m.CreatedAt = time.UnixMilli(createdAt).UTC()
	return m, nil
}

// LatestMilestone loads the milestone named by the project's
// current_milestone hint, or (nil, nil) when none has been saved.
func (s *SQLStore) LatestMilestone(ctx context.Context, projectID string) (*Milestone, error) {
	p, err := s.Get(ctx, projectID)
	if err != nil || p == nil {
		return nil, err
	}
	if p.CurrentMilestone == "" {
		return nil, nil
	}
	return s.LoadMilestone(ctx, projectID, p.CurrentMilestone)
}

// SaveSections atomically replaces the project's entire section set.
func (s *SQLStore) SaveSections(ctx context.Context, projectID string, sections []Section) error {
	tx, err := s.ds.DB().BeginTx(ctx, nil)
	if err != nil {
		return errors.NewStoreError("sqlite", "save_sections", projectID, err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM projects WHERE id = ?`, projectID).Scan(&exists)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: project %s", errors.ErrNotFound, projectID)
	}
	if err != nil {
		return errors.NewStoreError("sqlite", "save_sections", projectID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM sections WHERE project_id = ?`, projectID); err != nil {
		return errors.NewStoreError("sqlite", "save_sections", projectID, err)
	}
	for _, sec := range sections {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sections (project_id, section_index, title, content, status, cost_delta, input_tokens, output_tokens)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			projectID, sec.Index, sec.Title, sec.Content, string(normalizeSectionStatus(sec.Status)),
			sec.CostDelta, sec.InputTokens, sec.OutputTokens,
		); err != nil {
			return errors.NewStoreError("sqlite", "save_sections", projectID, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE projects SET updated_at = ? WHERE id = ?`, now().UnixMilli(), projectID,
	); err != nil {
		return errors.NewStoreError("sqlite", "save_sections", projectID, err)
	}
	return tx.Commit()
}

func normalizeSectionStatus(st SectionStatus) SectionStatus {
	if st == "" {
		return SectionPending
	}
	return st
}

// LoadSections returns sections ordered by index.
func (s *SQLStore) LoadSections(ctx context.Context, projectID string) ([]Section, error) {
	rows, err := s.ds.DB().QueryContext(ctx,
		`SELECT section_index, title, content, status, cost_delta, input_tokens, output_tokens
		 FROM sections WHERE project_id = ? ORDER BY section_index ASC`, projectID)
	if err != nil {
		return nil, errors.NewStoreError("sqlite", "load_sections", projectID, err)
	}
	defer rows.Close()

	var sections []Section
	for rows.Next() {
		var sec Section
		if err := rows.Scan(&sec.Index, &sec.Title, &sec.Content, (*string)(&sec.Status),
			&sec.CostDelta, &sec.InputTokens, &sec.OutputTokens); err != nil {
			return nil, errors.NewStoreError("sqlite", "load_sections", projectID, err)
		}
		sections = append(sections, sec)
	}
	return sections, rows.Err()
}

// UpdateSectionStatus updates one section's status and optional cost delta.
func (s *SQLStore) UpdateSectionStatus(ctx context.Context, projectID string, index int, status SectionStatus, costDelta *float64) error {
	var res sql.Result
	var err error
	if costDelta != nil {
		res, err = s.ds.DB().ExecContext(ctx,
			`UPDATE sections SET status = ?, cost_delta = ? WHERE project_id = ? AND section_index = ?`,
			string(status), *costDelta, projectID, index)
	} else {
		res, err = s.ds.DB().ExecContext(ctx,
			`UPDATE sections SET status = ? WHERE project_id = ? AND section_index = ?`,
			string(status), projectID, index)
	}
	if err != nil {
		return errors.NewStoreError("sqlite", "update_section_status", projectID, err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: section %d of project %s", errors.ErrNotFound, index, projectID)
	}
	return nil
}

// Archive marks the project archived and stamps archived_at.
func (s *SQLStore) Archive(ctx context.Context, projectID string) error {
	ts := now().UnixMilli()
	res, err := s.ds.DB().ExecContext(ctx,
		`UPDATE projects SET status = 'archived', archived_at = ?, updated_at = ? WHERE id = ?`,
		ts, ts, projectID)
	if err != nil {
		return errors.NewStoreError("sqlite", "archive", projectID, err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: project %s", errors.ErrNotFound, projectID)
	}
	s.logger.Info().Str("project_id", projectID).Msg("project archived")
	return nil
}

// Delete soft-deletes by default; a permanent delete removes the project row
// together with its milestones and sections. Cost entries are retained.
func (s *SQLStore) Delete(ctx context.Context, projectID string, permanent bool) error {
	if !permanent {
		res, err := s.ds.DB().ExecContext(ctx,
			`UPDATE projects SET status = 'deleted', updated_at = ? WHERE id = ?`,
			now().UnixMilli(), projectID)
		if err != nil {
			return errors.NewStoreError("sqlite", "delete", projectID, err)
		}
		rows, _ := res.RowsAffected()
		if rows == 0 {
			return fmt.Errorf("%w: project %s", errors.ErrNotFound, projectID)
		}
		return nil
	}

	tx, err := s.ds.DB().BeginTx(ctx, nil)
	if err != nil {
		return errors.NewStoreError("sqlite", "delete", projectID, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM milestones WHERE project_id = ?`, projectID); err != nil {
		return errors.NewStoreError("sqlite", "delete", projectID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sections WHERE project_id = ?`, projectID); err != nil {
		return errors.NewStoreError("sqlite", "delete", projectID, err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, projectID)
	if err != nil {
		return errors.NewStoreError("sqlite", "delete", projectID, err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: project %s", errors.ErrNotFound, projectID)
	}
	if err := tx.Commit(); err != nil {
		return errors.NewStoreError("sqlite", "delete", projectID, err)
	}
	s.logger.Info().Str("project_id", projectID).Msg("project permanently deleted")
	return nil
}

// Tree renders the project's records as the equivalent file tree used by the
// file backend, so zip exports are comparable across backends.
func (s *SQLStore) Tree(ctx context.Context, projectID string) ([]TreeFile, error) {
	p, err := s.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: project %s", errors.ErrNotFound, projectID)
	}

	var files []TreeFile
	record, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, errors.NewStoreError("sqlite", "tree", projectID, err)
	}
	files = append(files, TreeFile{Path: "project.json", Data: record})

	types := make([]MilestoneType, 0, len(p.Milestones))
	for t := range p.Milestones {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	for _, typ := range types {
		m, err := s.LoadMilestone(ctx, projectID, typ)
		if err != nil {
			return nil, err
		}
		if m == nil {
			continue
		}
		// Compact, matching how the file backend writes milestone records.
		b, err := json.Marshal(m)
		if err != nil {
			return nil, errors.NewStoreError("sqlite", "tree", projectID, err)
		}
		files = append(files, TreeFile{Path: string(typ) + ".json", Data: b})
	}

	sections, err := s.LoadSections(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if len(sections) > 0 {
		b, err := json.MarshalIndent(sections, "", "  ")
		if err != nil {
			return nil, errors.NewStoreError("sqlite", "tree", projectID, err)
		}
		files = append(files, TreeFile{Path: "sections.json", Data: b})
	}
	return files, nil
}

// Close is a no-op; the shared database is owned by the caller.
func (s *SQLStore) Close() error { return nil }
