package costs

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/p-blackswan/pressroom/internal/errors"
)

// FileLedger stores one append-only JSON-lines stream per project under its
// own directory, outside the project storage tree so that entries survive a
// permanent project delete.
//
// Appends use O_APPEND writes of a single line. POSIX only guarantees
// atomicity of small appends from a single process, so the file backend's
// concurrency contract is narrower than the SQLite one: a single writer per
// project is recommended. The SQLite backend has no such restriction.
type FileLedger struct {
	dir    string
	logger zerolog.Logger
}

// NewFileLedger creates the ledger directory if needed.
func NewFileLedger(dir string, logger zerolog.Logger) (*FileLedger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating ledger dir %s: %w", dir, err)
	}
	return &FileLedger{
		dir:    dir,
		logger: logger.With().Str("component", "costs.fileledger").Logger(),
	}, nil
}

func (l *FileLedger) streamPath(projectID string) string {
	return filepath.Join(l.dir, projectID+".jsonl")
}

// Append writes one JSON line to the project's stream.
func (l *FileLedger) Append(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if err := e.Validate(); err != nil {
		return err
	}

	line, err := json.Marshal(e)
	if err != nil {
		return errors.NewStoreError("file", "append", e.ProjectID, err)
	}

	f, err := os.OpenFile(l.streamPath(e.ProjectID), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.NewStoreError("file", "append", e.ProjectID, err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return errors.NewStoreError("file", "append", e.ProjectID, err)
	}
	return nil
}

// readStream parses one project's stream, skipping corrupt lines with a
// warning. A missing stream yields no entries.
func (l *FileLedger) readStream(projectID string) ([]Entry, error) {
	f, err := os.Open(l.streamPath(projectID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewStoreError("file", "read", projectID, err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			l.logger.Warn().Err(err).Str("project_id", projectID).Msg("skipping corrupt ledger line")
			continue
		}
		entries = append(entries, e)
	}
	return entries, scanner.Err()
}

// Summary folds all entries for the project.
func (l *FileLedger) Summary(ctx context.Context, projectID string) (Summary, error) {
	entries, err := l.readStream(projectID)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(entries), nil
}

// Timeline returns the project's entries ascending with cumulative cost.
func (l *FileLedger) Timeline(ctx context.Context, projectID string) ([]TimelineEntry, error) {
	entries, err := l.readStream(projectID)
	if err != nil {
		return nil, err
	}
	return BuildTimeline(entries), nil
}

// Entries returns entries for the given projects filtered to the range.
func (l *FileLedger) Entries(ctx context.Context, projectIDs []string, from, to time.Time) ([]Entry, error) {
	ids := projectIDs
	if len(ids) == 0 {
		var err error
		ids, err = l.ProjectIDs(ctx)
		if err != nil {
			return nil, err
		}
	}

	var out []Entry
	for _, id := range ids {
		entries, err := l.readStream(id)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if inRange(e.Timestamp, from, to) {
				out = append(out, e)
			}
		}
	}
	return out, nil
}

// ProjectIDs lists the distinct projects with a ledger stream.
func (l *FileLedger) ProjectIDs(ctx context.Context) ([]string, error) {
	dirEntries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, errors.NewStoreError("file", "list", "", err)
	}
	var ids []string
	for _, de := range dirEntries {
		name := de.Name()
		if de.IsDir() || !strings.HasSuffix(name, ".jsonl") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".jsonl"))
	}
	sort.Strings(ids)
	return ids, nil
}

// Close is a no-op for the file backend.
func (l *FileLedger) Close() error { return nil }
