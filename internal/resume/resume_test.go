package resume

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-blackswan/pressroom/internal/costs"
	"github.com/p-blackswan/pressroom/internal/errors"
	"github.com/p-blackswan/pressroom/internal/project"
)

func setupCoordinator(t *testing.T) (*Coordinator, project.Store, costs.Ledger) {
	t.Helper()
	dir := t.TempDir()

	store, err := project.NewFileStore(filepath.Join(dir, "projects"), zerolog.Nop())
	require.NoError(t, err)
	ledger, err := costs.NewFileLedger(filepath.Join(dir, "costs"), zerolog.Nop())
	require.NoError(t, err)

	return NewCoordinator(store, ledger, zerolog.Nop()), store, ledger
}

func TestResume_FreshProject(t *testing.T) {
	c, store, _ := setupCoordinator(t)
	ctx := context.Background()

	p, err := store.Create(ctx, "Demo", nil)
	require.NoError(t, err)

	snap, err := c.Resume(ctx, p.ID)
	require.NoError(t, err)

	assert.Zero(t, snap.Progress.Percentage)
	assert.Empty(t, snap.CompletedMilestones)
	assert.Equal(t, project.StepUploadFiles, snap.NextStep)
	assert.Zero(t, snap.Costs.TotalCost)
	assert.Equal(t, p.ID, snap.Project.ID)
}

func TestResume_AfterFirstMilestone(t *testing.T) {
	c, store, _ := setupCoordinator(t)
	ctx := context.Background()

	p, err := store.Create(ctx, "Demo", nil)
	require.NoError(t, err)
	require.NoError(t, store.SaveMilestone(ctx, p.ID, project.MilestoneFilesUploaded,
		json.RawMessage(`{"files":["a.md"]}`), nil))

	snap, err := c.Resume(ctx, p.ID)
	require.NoError(t, err)

	assert.Equal(t, project.MilestoneFilesUploaded, snap.Project.CurrentMilestone)
	assert.Equal(t, project.StepGenerateOutline, snap.NextStep)
	assert.InDelta(t, 20.0, snap.Progress.Percentage, 1e-9)
	assert.Equal(t, []project.MilestoneType{project.MilestoneFilesUploaded}, snap.CompletedMilestones)
	assert.True(t, snap.Progress.Milestones[project.MilestoneFilesUploaded])
	assert.False(t, snap.Progress.Milestones[project.MilestoneOutlineGenerated])
}

// Saving only the final milestone must resolve to completed: the rule is
// presence-based, not sequence-based.
func TestResume_FinalMilestoneAloneCompletes(t *testing.T) {
	c, store, _ := setupCoordinator(t)
	ctx := context.Background()

	p, err := store.Create(ctx, "Demo", nil)
	require.NoError(t, err)
	require.NoError(t, store.SaveMilestone(ctx, p.ID, project.MilestoneSocialGenerated,
		json.RawMessage(`{"posts":[]}`), nil))

	snap, err := c.Resume(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, project.StepCompleted, snap.NextStep)
	assert.InDelta(t, 20.0, snap.Progress.Percentage, 1e-9)
}

func TestResume_IncludesCostsAndSections(t *testing.T) {
	c, store, ledger := setupCoordinator(t)
	ctx := context.Background()

	p, err := store.Create(ctx, "Demo", nil)
	require.NoError(t, err)
	require.NoError(t, store.SaveSections(ctx, p.ID, []project.Section{
		{Index: 0, Status: project.SectionCompleted, CostDelta: 0.01},
		{Index: 1, Status: project.SectionPending},
	}))
	require.NoError(t, ledger.Append(ctx, costs.Entry{
		ProjectID: p.ID, AgentName: "writer", Operation: "draft", Cost: 0.25,
	}))

	snap, err := c.Resume(ctx, p.ID)
	require.NoError(t, err)

	assert.Equal(t, 2, snap.Progress.Sections.Total)
	assert.Equal(t, 1, snap.Progress.Sections.Completed)
	assert.InDelta(t, 0.25, snap.Costs.TotalCost, 1e-9)
}

func TestResume_NotFound(t *testing.T) {
	c, _, _ := setupCoordinator(t)

	_, err := c.Resume(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}
