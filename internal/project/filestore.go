package project

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/p-blackswan/pressroom/internal/errors"
)

const (
	projectRecordFile = "project.json"
	sectionsFile      = "sections.json"
)

// FileStore is the flat-file Store implementation: one directory per project
// under a base dir, holding project.json, one <type>.json per milestone, and
// sections.json. Every mutation uses the temp-file+rename discipline, so
// readers never observe a torn record. There is no per-project lock:
// concurrent writers to the same record resolve as last-write-wins at
// whole-record granularity.
type FileStore struct {
	baseDir string
	logger  zerolog.Logger
}

// NewFileStore creates the base directory if needed and returns the store.
func NewFileStore(baseDir string, logger zerolog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating base dir %s: %w", baseDir, err)
	}
	return &FileStore{
		baseDir: baseDir,
		logger:  logger.With().Str("component", "project.filestore").Logger(),
	}, nil
}

func (s *FileStore) projectDir(projectID string) string {
	return filepath.Join(s.baseDir, projectID)
}

// atomicWrite writes data to a temp file beside the target, syncs it, then
// renames it over the target. On failure the temp artifact is removed and the
// target is untouched.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp_*.json")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling record: %w", err)
	}
	return atomicWrite(path, data)
}

// readProject loads a project record. Absent or unreadable records both
// yield (nil, nil); the anomaly is logged.
func (s *FileStore) readProject(projectID string) (*Project, error) {
	path := filepath.Join(s.projectDir(projectID), projectRecordFile)
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("project_id", projectID).Msg("project record unreadable")
		return nil, nil
	}
	p := &Project{}
	if err := json.Unmarshal(raw, p); err != nil {
		s.logger.Warn().Err(err).Str("project_id", projectID).Msg("project record corrupt")
		return nil, nil
	}
	if p.Milestones == nil {
		p.Milestones = map[MilestoneType]MilestoneRef{}
	}
	if p.Metadata == nil {
		p.Metadata = map[string]any{}
	}
	return p, nil
}

func (s *FileStore) writeProject(p *Project) error {
	return writeJSON(filepath.Join(s.projectDir(p.ID), projectRecordFile), p)
}

// Create generates a fresh UUID, makes the project directory, and writes the
// initial record.
func (s *FileStore) Create(ctx context.Context, name string, metadata map[string]any) (*Project, error) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	p := &Project{
		ID:         uuid.New().String(),
		Name:       name,
		Status:     StatusActive,
		CreatedAt:  now(),
		UpdatedAt:  now(),
		Milestones: map[MilestoneType]MilestoneRef{},
		Metadata:   metadata,
	}

	if err := os.MkdirAll(s.projectDir(p.ID), 0o755); err != nil {
		return nil, errors.NewStoreError("file", "create", "", err)
	}
	if err := s.writeProject(p); err != nil {
		return nil, errors.NewStoreError("file", "create", "", err)
	}
	s.logger.Info().Str("project_id", p.ID).Str("name", name).Msg("project created")
	return p, nil
}

// Get retrieves a project by ID, returning (nil, nil) when absent.
func (s *FileStore) Get(ctx context.Context, projectID string) (*Project, error) {
	return s.readProject(projectID)
}

// GetByName retrieves the most recently updated project with the given name.
func (s *FileStore) GetByName(ctx context.Context, name string) (*Project, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, errors.NewStoreError("file", "get_by_name", "", err)
	}
	var best *Project
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		p, _ := s.readProject(e.Name())
		if p == nil || p.Name != name {
			continue
		}
		if best == nil || p.UpdatedAt.After(best.UpdatedAt) {
			best = p
		}
	}
	return best, nil
}

// List returns project summaries, newest update first. Unreadable project
// directories are skipped with a warning.
func (s *FileStore) List(ctx context.Context, status ProjectStatus) ([]Summary, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, errors.NewStoreError("file", "list", "", err)
	}

	var summaries []Summary
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		p, _ := s.readProject(e.Name())
		if p == nil {
			continue
		}
		if status != "" && p.Status != status {
			continue
		}
		summaries = append(summaries, Summary{
			ID:               p.ID,
			Name:             p.Name,
			Status:           p.Status,
			CreatedAt:        p.CreatedAt,
			UpdatedAt:        p.UpdatedAt,
			CurrentMilestone: p.CurrentMilestone,
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})
	return summaries, nil
}

// UpdateMetadata merges keys into the project's metadata bag.
func (s *FileStore) UpdateMetadata(ctx context.Context, projectID string, metadata map[string]any) error {
	p, err := s.readProject(projectID)
	if err != nil {
		return err
	}
	if p == nil {
		return fmt.Errorf("%w: project %s", errors.ErrNotFound, projectID)
	}
	for k, v := range metadata {
		p.Metadata[k] = v
	}
	p.UpdatedAt = now()
	if err := s.writeProject(p); err != nil {
		return errors.NewStoreError("file", "update_metadata", projectID, err)
	}
	return nil
}

// SaveMilestone writes the milestone record, then updates the project record.
// The two writes are individually atomic; there is deliberately no
// cross-file transaction, so a crash between them leaves the milestone
// persisted and the project record stale.
func (s *FileStore) SaveMilestone(ctx context.Context, projectID string, typ MilestoneType, data json.RawMessage, metadata map[string]any) error {
	p, err := s.readProject(projectID)
	if err != nil {
		return err
	}
	if p == nil {
		return fmt.Errorf("%w: project %s", errors.ErrNotFound, projectID)
	}

	if metadata == nil {
		metadata = map[string]any{}
	}
	if data == nil {
		data = json.RawMessage("null")
	}
	m := &Milestone{
		Type:      typ,
		Data:      data,
		Metadata:  metadata,
		CreatedAt: now(),
	}

	// Milestone records are written compact so the opaque payload bytes
	// round-trip unchanged.
	record, err := json.Marshal(m)
	if err != nil {
		return errors.NewStoreError("file", "save_milestone", projectID, err)
	}
	milestoneFile := string(typ) + ".json"
	if err := atomicWrite(filepath.Join(s.projectDir(projectID), milestoneFile), record); err != nil {
		return errors.NewStoreError("file", "save_milestone", projectID, err)
	}

	p.CurrentMilestone = typ
	p.UpdatedAt = now()
	p.Milestones[typ] = MilestoneRef{SavedAt: m.CreatedAt, File: milestoneFile}
	if err := s.writeProject(p); err != nil {
		return errors.NewStoreError("file", "save_milestone", projectID, err)
	}
	s.logger.Info().Str("project_id", projectID).Str("milestone", string(typ)).Msg("milestone saved")
	return nil
}

// LoadMilestone retrieves one milestone, returning (nil, nil) when absent.
func (s *FileStore) LoadMilestone(ctx context.Context, projectID string, typ MilestoneType) (*Milestone, error) {
	path := filepath.Join(s.projectDir(projectID), string(typ)+".json")
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("project_id", projectID).Str("milestone", string(typ)).Msg("milestone unreadable")
		return nil, nil
	}
	m := &Milestone{}
	if err := json.Unmarshal(raw, m); err != nil {
		s.logger.Warn().Err(err).Str("project_id", projectID).Str("milestone", string(typ)).Msg("milestone corrupt")
		return nil, nil
	}
	return m, nil
}

// LatestMilestone loads the milestone named by the project's
// current_milestone hint, or (nil, nil) when none has been saved.
func (s *FileStore) LatestMilestone(ctx context.Context, projectID string) (*Milestone, error) {
	p, err := s.readProject(projectID)
	if err != nil || p == nil {
		return nil, err
	}
	if p.CurrentMilestone == "" {
		return nil, nil
	}
	return s.LoadMilestone(ctx, projectID, p.CurrentMilestone)
}

// SaveSections atomically replaces the project's entire section set.
func (s *FileStore) SaveSections(ctx context.Context, projectID string, sections []Section) error {
	p, err := s.readProject(projectID)
	if err != nil {
		return err
	}
	if p == nil {
		return fmt.Errorf("%w: project %s", errors.ErrNotFound, projectID)
	}

	normalized := make([]Section, len(sections))
	for i, sec := range sections {
		sec.Status = normalizeSectionStatus(sec.Status)
		normalized[i] = sec
	}
	if err := writeJSON(filepath.Join(s.projectDir(projectID), sectionsFile), normalized); err != nil {
		return errors.NewStoreError("file", "save_sections", projectID, err)
	}

	p.UpdatedAt = now()
	if err := s.writeProject(p); err != nil {
		return errors.NewStoreError("file", "save_sections", projectID, err)
	}
	return nil
}

// LoadSections returns sections ordered by index.
func (s *FileStore) LoadSections(ctx context.Context, projectID string) ([]Section, error) {
	raw, err := os.ReadFile(filepath.Join(s.projectDir(projectID), sectionsFile))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewStoreError("file", "load_sections", projectID, err)
	}
	var sections []Section
	if err := json.Unmarshal(raw, &sections); err != nil {
		s.logger.Warn().Err(err).Str("project_id", projectID).Msg("sections record corrupt")
		return nil, nil
	}
	sort.Slice(sections, func(i, j int) bool { return sections[i].Index < sections[j].Index })
	return sections, nil
}

// UpdateSectionStatus updates one section's status and optional cost delta.
func (s *FileStore) UpdateSectionStatus(ctx context.Context, projectID string, index int, status SectionStatus, costDelta *float64) error {
	sections, err := s.LoadSections(ctx, projectID)
	if err != nil {
		return err
	}
	found := false
	for i := range sections {
		if sections[i].Index == index {
			sections[i].Status = status
			if costDelta != nil {
				sections[i].CostDelta = *costDelta
			}
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: section %d of project %s", errors.ErrNotFound, index, projectID)
	}
	return s.SaveSections(ctx, projectID, sections)
}

// Archive marks the project archived and stamps archived_at.
func (s *FileStore) Archive(ctx context.Context, projectID string) error {
	p, err := s.readProject(projectID)
	if err != nil {
		return err
	}
	if p == nil {
		return fmt.Errorf("%w: project %s", errors.ErrNotFound, projectID)
	}
	ts := now()
	p.Status = StatusArchived
	p.ArchivedAt = &ts
	p.UpdatedAt = ts
	if err := s.writeProject(p); err != nil {
		return errors.NewStoreError("file", "archive", projectID, err)
	}
	s.logger.Info().Str("project_id", projectID).Msg("project archived")
	return nil
}

// Delete soft-deletes by default; a permanent delete removes the project's
// entire directory. Cost ledger entries are retained either way.
func (s *FileStore) Delete(ctx context.Context, projectID string, permanent bool) error {
	if permanent {
		dir := s.projectDir(projectID)
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			return fmt.Errorf("%w: project %s", errors.ErrNotFound, projectID)
		}
		if err := os.RemoveAll(dir); err != nil {
			return errors.NewStoreError("file", "delete", projectID, err)
		}
		s.logger.Info().Str("project_id", projectID).Msg("project permanently deleted")
		return nil
	}

	p, err := s.readProject(projectID)
	if err != nil {
		return err
	}
	if p == nil {
		return fmt.Errorf("%w: project %s", errors.ErrNotFound, projectID)
	}
	p.Status = StatusDeleted
	p.UpdatedAt = now()
	if err := s.writeProject(p); err != nil {
		return errors.NewStoreError("file", "delete", projectID, err)
	}
	return nil
}

// Tree returns every file under the project directory byte-for-byte, with
// paths relative to the project root.
func (s *FileStore) Tree(ctx context.Context, projectID string) ([]TreeFile, error) {
	dir := s.projectDir(projectID)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: project %s", errors.ErrNotFound, projectID)
	}

	var files []TreeFile
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		files = append(files, TreeFile{Path: filepath.ToSlash(rel), Data: data})
		return nil
	})
	if err != nil {
		return nil, errors.NewStoreError("file", "tree", projectID, err)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// Close is a no-op for the file backend.
func (s *FileStore) Close() error { return nil }
