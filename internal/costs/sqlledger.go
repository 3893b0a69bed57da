package costs

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/p-blackswan/pressroom/internal/errors"
	"github.com/p-blackswan/pressroom/internal/store"
)

// SQLLedger is the SQLite-backed Ledger. Entries live in their own table
// with no foreign key on projects, so the history survives a permanent
// project delete.
type SQLLedger struct {
	ds     *store.Store
	logger zerolog.Logger
}

// NewSQLLedger creates a ledger on top of the shared SQLite database.
func NewSQLLedger(ds *store.Store, logger zerolog.Logger) *SQLLedger {
	return &SQLLedger{
		ds:     ds,
		logger: logger.With().Str("component", "costs.sqlledger").Logger(),
	}
}

// Append inserts one entry, filling in the ID and timestamp when missing.
func (l *SQLLedger) Append(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC().Truncate(time.Millisecond)
	}
	if err := e.Validate(); err != nil {
		return err
	}

	meta := "{}"
	if e.Metadata != nil {
		b, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("marshaling entry metadata: %w", err)
		}
		meta = string(b)
	}

	var model sql.NullString
	if e.ModelUsed != "" {
		model = sql.NullString{String: e.ModelUsed, Valid: true}
	}

	_, err := l.ds.DB().ExecContext(ctx,
		`INSERT INTO cost_entries
			(id, project_id, agent_name, operation, input_tokens, output_tokens, cost, model_used, duration_seconds, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ProjectID, e.AgentName, e.Operation,
		e.InputTokens, e.OutputTokens, e.Cost,
		model, e.DurationSeconds, meta, e.Timestamp.UnixMilli(),
	)
	if err != nil {
		return errors.NewStoreError("sqlite", "append_cost", e.ProjectID, err)
	}

	l.logger.Debug().
		Str("project_id", e.ProjectID).
		Str("agent", e.AgentName).
		Float64("cost", e.Cost).
		Msg("cost entry recorded")
	return nil
}

// Summary folds all entries for the project. Unknown projects yield a zero
// summary.
func (l *SQLLedger) Summary(ctx context.Context, projectID string) (Summary, error) {
	entries, err := l.Entries(ctx, []string{projectID}, time.Time{}, time.Time{})
	if err != nil {
		return Summary{}, err
	}
	return Summarize(entries), nil
}

// Timeline returns the project's entries ascending by timestamp with a
// running cost total.
func (l *SQLLedger) Timeline(ctx context.Context, projectID string) ([]TimelineEntry, error) {
	entries, err := l.Entries(ctx, []string{projectID}, time.Time{}, time.Time{})
	if err != nil {
		return nil, err
	}
	return BuildTimeline(entries), nil
}

// Entries returns entries for the given projects (nil means all), filtered
// to the inclusive [from, to] range.
func (l *SQLLedger) Entries(ctx context.Context, projectIDs []string, from, to time.Time) ([]Entry, error) {
	query := `SELECT id, project_id, agent_name, operation, input_tokens, output_tokens, cost, model_used, duration_seconds, metadata, created_at
		FROM cost_entries`

	var (
		clauses []string
		args    []any
	)
	if len(projectIDs) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(projectIDs)), ", ")
		clauses = append(clauses, fmt.Sprintf("project_id IN (%s)", placeholders))
		for _, id := range projectIDs {
			args = append(args, id)
		}
	}
	if !from.IsZero() {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, from.UnixMilli())
	}
	if !to.IsZero() {
		clauses = append(clauses, "created_at <= ?")
		args = append(args, to.UnixMilli())
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at ASC, id ASC"

	rows, err := l.ds.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewStoreError("sqlite", "list_costs", "", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e     Entry
			model sql.NullString
			meta  string
			ts    int64
		)
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.AgentName, &e.Operation,
			&e.InputTokens, &e.OutputTokens, &e.Cost,
			&model, &e.DurationSeconds, &meta, &ts); err != nil {
			return nil, errors.NewStoreError("sqlite", "list_costs", "", err)
		}
		if model.Valid {
			e.ModelUsed = model.String
		}
		if meta != "" && meta != "{}" {
			m := map[string]any{}
			if err := json.Unmarshal([]byte(meta), &m); err == nil {
				e.Metadata = m
			}
		}
		e.Timestamp = time.UnixMilli(ts).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStoreError("sqlite", "list_costs", "", err)
	}
	return entries, nil
}

// ProjectIDs returns the distinct project IDs present in the ledger.
func (l *SQLLedger) ProjectIDs(ctx context.Context) ([]string, error) {
	rows, err := l.ds.DB().QueryContext(ctx, `SELECT DISTINCT project_id FROM cost_entries ORDER BY project_id`)
	if err != nil {
		return nil, errors.NewStoreError("sqlite", "list_cost_projects", "", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.NewStoreError("sqlite", "list_cost_projects", "", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close is a no-op; the underlying database is owned by the caller.
func (l *SQLLedger) Close() error { return nil }
