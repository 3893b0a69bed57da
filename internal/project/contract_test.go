package project

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-blackswan/pressroom/internal/errors"
	"github.com/p-blackswan/pressroom/internal/store"
)

// Both backends must honor identical semantics; every test here runs against
// each of them.
func runBackends(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Helper()

	t.Run("file", func(t *testing.T) {
		fs, err := NewFileStore(t.TempDir(), zerolog.Nop())
		require.NoError(t, err)
		fn(t, fs)
	})

	t.Run("sqlite", func(t *testing.T) {
		db, err := store.New(filepath.Join(t.TempDir(), "test.db"), zerolog.Nop())
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
		fn(t, NewSQLStore(db, zerolog.Nop()))
	})
}

func TestStore_CreateAndGet(t *testing.T) {
	runBackends(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		created, err := s.Create(ctx, "Demo", map[string]any{"topic": "golang"})
		require.NoError(t, err)
		require.NotEmpty(t, created.ID)
		assert.Equal(t, StatusActive, created.Status)

		got, err := s.Get(ctx, created.ID)
		require.NoError(t, err)
		require.NotNil(t, got)

		assert.Equal(t, created.ID, got.ID)
		assert.Equal(t, "Demo", got.Name)
		assert.Equal(t, StatusActive, got.Status)
		assert.Equal(t, "golang", got.Metadata["topic"])
		assert.True(t, created.CreatedAt.Equal(got.CreatedAt))
		assert.True(t, created.UpdatedAt.Equal(got.UpdatedAt))
		assert.Empty(t, got.CurrentMilestone)
		assert.Empty(t, got.Milestones)
		assert.Nil(t, got.ArchivedAt)
	})
}

func TestStore_GetAbsent(t *testing.T) {
	runBackends(t, func(t *testing.T, s Store) {
		got, err := s.Get(context.Background(), "no-such-id")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestStore_GetByName(t *testing.T) {
	runBackends(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		_, err := s.Create(ctx, "alpha", nil)
		require.NoError(t, err)
		time.Sleep(10 * time.Millisecond)
		second, err := s.Create(ctx, "alpha", nil)
		require.NoError(t, err)

		got, err := s.GetByName(ctx, "alpha")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, second.ID, got.ID, "most recently updated wins")

		missing, err := s.GetByName(ctx, "beta")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})
}

func TestStore_ListOrderAndFilter(t *testing.T) {
	runBackends(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		first, err := s.Create(ctx, "first", nil)
		require.NoError(t, err)
		time.Sleep(10 * time.Millisecond)
		second, err := s.Create(ctx, "second", nil)
		require.NoError(t, err)

		require.NoError(t, s.Archive(ctx, first.ID))

		all, err := s.List(ctx, "")
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, first.ID, all[0].ID, "archive bumped updated_at")
		assert.Equal(t, second.ID, all[1].ID)

		archived, err := s.List(ctx, StatusArchived)
		require.NoError(t, err)
		require.Len(t, archived, 1)
		assert.Equal(t, first.ID, archived[0].ID)

		active, err := s.List(ctx, StatusActive)
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, second.ID, active[0].ID)
	})
}

func TestStore_MilestoneRoundTrip(t *testing.T) {
	runBackends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		p, err := s.Create(ctx, "Demo", nil)
		require.NoError(t, err)

		payload := json.RawMessage(`{"files":["a.md","b.md"],"count":2}`)
		err = s.SaveMilestone(ctx, p.ID, MilestoneFilesUploaded, payload, map[string]any{"source": "upload"})
		require.NoError(t, err)

		m, err := s.LoadMilestone(ctx, p.ID, MilestoneFilesUploaded)
		require.NoError(t, err)
		require.NotNil(t, m)
		assert.Equal(t, MilestoneFilesUploaded, m.Type)
		assert.Equal(t, []byte(payload), []byte(m.Data), "payload must round-trip byte-identically")
		assert.Equal(t, "upload", m.Metadata["source"])

		got, err := s.Get(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, MilestoneFilesUploaded, got.CurrentMilestone)
		assert.Contains(t, got.Milestones, MilestoneFilesUploaded)

		latest, err := s.LatestMilestone(ctx, p.ID)
		require.NoError(t, err)
		require.NotNil(t, latest)
		assert.Equal(t, MilestoneFilesUploaded, latest.Type)
	})
}

func TestStore_SaveMilestoneOverwrites(t *testing.T) {
	runBackends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		p, err := s.Create(ctx, "Demo", nil)
		require.NoError(t, err)

		require.NoError(t, s.SaveMilestone(ctx, p.ID, MilestoneOutlineGenerated, json.RawMessage(`{"v":1}`), nil))
		require.NoError(t, s.SaveMilestone(ctx, p.ID, MilestoneOutlineGenerated, json.RawMessage(`{"v":2}`), nil))

		m, err := s.LoadMilestone(ctx, p.ID, MilestoneOutlineGenerated)
		require.NoError(t, err)
		assert.JSONEq(t, `{"v":2}`, string(m.Data))

		got, err := s.Get(ctx, p.ID)
		require.NoError(t, err)
		assert.Len(t, got.Milestones, 1, "re-save must not duplicate")
	})
}

func TestStore_SaveMilestoneMissingProject(t *testing.T) {
	runBackends(t, func(t *testing.T, s Store) {
		err := s.SaveMilestone(context.Background(), "ghost", MilestoneFilesUploaded, nil, nil)
		require.Error(t, err)
		assert.True(t, errors.IsNotFound(err))
	})
}

// Milestones saved out of order or with gaps must yield the same NextStep
// as if saved sequentially, on every backend.
func TestStore_NextStepOrderInvariance(t *testing.T) {
	orders := [][]MilestoneType{
		{MilestoneFilesUploaded, MilestoneOutlineGenerated, MilestoneDraftCompleted},
		{MilestoneDraftCompleted, MilestoneFilesUploaded, MilestoneOutlineGenerated},
		{MilestoneOutlineGenerated, MilestoneDraftCompleted, MilestoneFilesUploaded},
	}

	for i, order := range orders {
		order := order
		t.Run(fmt.Sprintf("order_%d", i), func(t *testing.T) {
			runBackends(t, func(t *testing.T, s Store) {
				ctx := context.Background()
				p, err := s.Create(ctx, "Demo", nil)
				require.NoError(t, err)

				for _, typ := range order {
					require.NoError(t, s.SaveMilestone(ctx, p.ID, typ, json.RawMessage(`{}`), nil))
				}

				got, err := s.Get(ctx, p.ID)
				require.NoError(t, err)
				assert.Equal(t, StepRefineBlog, NextStep(got.CompletedSet()))
			})
		})
	}
}

func TestStore_ConcurrentDistinctMilestones(t *testing.T) {
	runBackends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		p, err := s.Create(ctx, "Demo", nil)
		require.NoError(t, err)

		types := []MilestoneType{MilestoneFilesUploaded, MilestoneOutlineGenerated, MilestoneDraftCompleted}
		var wg sync.WaitGroup
		for _, typ := range types {
			wg.Add(1)
			go func(typ MilestoneType) {
				defer wg.Done()
				_ = s.SaveMilestone(ctx, p.ID, typ, json.RawMessage(`{"t":"`+string(typ)+`"}`), nil)
			}(typ)
		}
		wg.Wait()

		// Every milestone record persists; the project record resolves as
		// last-write-wins, so only the milestone list may lag.
		for _, typ := range types {
			m, err := s.LoadMilestone(ctx, p.ID, typ)
			require.NoError(t, err)
			require.NotNil(t, m, "milestone %s must persist", typ)
		}
	})
}

func TestStore_Sections(t *testing.T) {
	runBackends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		p, err := s.Create(ctx, "Demo", nil)
		require.NoError(t, err)

		sections := []Section{
			{Index: 1, Title: "Middle", Status: SectionPending},
			{Index: 0, Title: "Intro", Status: SectionCompleted, CostDelta: 0.01},
			{Index: 2, Title: "End"},
		}
		require.NoError(t, s.SaveSections(ctx, p.ID, sections))

		got, err := s.LoadSections(ctx, p.ID)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "Intro", got[0].Title, "sections come back ordered by index")
		assert.Equal(t, "Middle", got[1].Title)
		assert.Equal(t, SectionPending, got[2].Status, "empty status normalizes to pending")

		delta := 0.05
		require.NoError(t, s.UpdateSectionStatus(ctx, p.ID, 1, SectionCompleted, &delta))

		got, err = s.LoadSections(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, SectionCompleted, got[1].Status)
		assert.InDelta(t, 0.05, got[1].CostDelta, 1e-9)

		err = s.UpdateSectionStatus(ctx, p.ID, 99, SectionFailed, nil)
		require.Error(t, err)
		assert.True(t, errors.IsNotFound(err))

		stats := ComputeSectionStats(got)
		assert.Equal(t, 3, stats.Total)
		assert.Equal(t, 2, stats.Completed)
		assert.Equal(t, 1, stats.Pending)
	})
}

func TestStore_SaveSectionsReplacesSet(t *testing.T) {
	runBackends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		p, err := s.Create(ctx, "Demo", nil)
		require.NoError(t, err)

		require.NoError(t, s.SaveSections(ctx, p.ID, []Section{{Index: 0}, {Index: 1}, {Index: 2}}))
		require.NoError(t, s.SaveSections(ctx, p.ID, []Section{{Index: 0, Title: "only"}}))

		got, err := s.LoadSections(ctx, p.ID)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "only", got[0].Title)
	})
}

func TestStore_UpdateMetadataMerges(t *testing.T) {
	runBackends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		p, err := s.Create(ctx, "Demo", map[string]any{"a": "1"})
		require.NoError(t, err)

		require.NoError(t, s.UpdateMetadata(ctx, p.ID, map[string]any{"b": "2"}))

		got, err := s.Get(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "1", got.Metadata["a"])
		assert.Equal(t, "2", got.Metadata["b"])
	})
}

func TestStore_ArchiveThenPermanentDelete(t *testing.T) {
	runBackends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		p, err := s.Create(ctx, "Demo", nil)
		require.NoError(t, err)
		require.NoError(t, s.SaveMilestone(ctx, p.ID, MilestoneFilesUploaded, json.RawMessage(`{}`), nil))

		require.NoError(t, s.Archive(ctx, p.ID))
		got, err := s.Get(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusArchived, got.Status)
		require.NotNil(t, got.ArchivedAt)

		require.NoError(t, s.Delete(ctx, p.ID, true))

		got, err = s.Get(ctx, p.ID)
		require.NoError(t, err)
		assert.Nil(t, got)

		_, err = s.Tree(ctx, p.ID)
		assert.True(t, errors.IsNotFound(err), "no storage tree may remain")

		m, err := s.LoadMilestone(ctx, p.ID, MilestoneFilesUploaded)
		require.NoError(t, err)
		assert.Nil(t, m)
	})
}

func TestStore_SoftDelete(t *testing.T) {
	runBackends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		p, err := s.Create(ctx, "Demo", nil)
		require.NoError(t, err)

		require.NoError(t, s.Delete(ctx, p.ID, false))

		got, err := s.Get(ctx, p.ID)
		require.NoError(t, err)
		require.NotNil(t, got, "soft delete keeps the record")
		assert.Equal(t, StatusDeleted, got.Status)
	})
}

func TestStore_TreeShape(t *testing.T) {
	runBackends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		p, err := s.Create(ctx, "Demo", nil)
		require.NoError(t, err)
		require.NoError(t, s.SaveMilestone(ctx, p.ID, MilestoneOutlineGenerated, json.RawMessage(`{"sections":3}`), nil))
		require.NoError(t, s.SaveSections(ctx, p.ID, []Section{{Index: 0, Title: "Intro"}}))

		files, err := s.Tree(ctx, p.ID)
		require.NoError(t, err)

		paths := make([]string, len(files))
		for i, f := range files {
			paths[i] = f.Path
		}
		assert.Contains(t, paths, "project.json")
		assert.Contains(t, paths, "outline_generated.json")
		assert.Contains(t, paths, "sections.json")

		for _, f := range files {
			assert.True(t, json.Valid(f.Data), "%s must hold valid JSON", f.Path)
		}
	})
}
