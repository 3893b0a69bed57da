package export

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-blackswan/pressroom/internal/costs"
	"github.com/p-blackswan/pressroom/internal/errors"
	"github.com/p-blackswan/pressroom/internal/project"
)

func setupExporter(t *testing.T) (*Exporter, project.Store, costs.Ledger) {
	t.Helper()
	dir := t.TempDir()

	store, err := project.NewFileStore(filepath.Join(dir, "projects"), zerolog.Nop())
	require.NoError(t, err)
	ledger, err := costs.NewFileLedger(filepath.Join(dir, "costs"), zerolog.Nop())
	require.NoError(t, err)

	return NewExporter(store, ledger, zerolog.Nop()), store, ledger
}

func TestParseFormat(t *testing.T) {
	for _, ok := range []string{"json", "markdown", "zip"} {
		f, err := ParseFormat(ok)
		require.NoError(t, err)
		assert.Equal(t, Format(ok), f)
	}
	_, err := ParseFormat("pdf")
	assert.True(t, errors.IsInvalidInput(err))
}

func TestExport_JSONIncludesEveryMilestoneOnce(t *testing.T) {
	e, store, ledger := setupExporter(t)
	ctx := context.Background()

	p, err := store.Create(ctx, "Demo", nil)
	require.NoError(t, err)

	saved := map[project.MilestoneType]string{
		project.MilestoneFilesUploaded:    `{"files":["a.md"]}`,
		project.MilestoneOutlineGenerated: `{"sections":2}`,
		project.MilestoneDraftCompleted:   `{"compiled_blog":"draft text"}`,
	}
	for typ, payload := range saved {
		require.NoError(t, store.SaveMilestone(ctx, p.ID, typ, json.RawMessage(payload), nil))
	}
	require.NoError(t, ledger.Append(ctx, costs.Entry{ProjectID: p.ID, AgentName: "writer", Operation: "gen", Cost: 0.1}))

	result, err := e.Export(ctx, p.ID, FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, "application/json", result.ContentType)

	var bundle Bundle
	require.NoError(t, json.Unmarshal(result.Data, &bundle))

	assert.Len(t, bundle.Milestones, len(saved), "every milestone exactly once")
	for typ, payload := range saved {
		require.Contains(t, bundle.Milestones, typ)
		assert.JSONEq(t, payload, string(bundle.Milestones[typ].Data))
	}
	assert.InDelta(t, 0.1, bundle.Costs.TotalCost, 1e-9)
	assert.Equal(t, p.ID, bundle.Project.ID)
}

func TestExport_MarkdownPrefersRefinedContent(t *testing.T) {
	e, store, _ := setupExporter(t)
	ctx := context.Background()

	p, err := store.Create(ctx, "My Post", nil)
	require.NoError(t, err)
	require.NoError(t, store.SaveMilestone(ctx, p.ID, project.MilestoneDraftCompleted,
		json.RawMessage(`{"compiled_blog":"the draft"}`), nil))
	require.NoError(t, store.SaveMilestone(ctx, p.ID, project.MilestoneBlogRefined,
		json.RawMessage(`{"refined_content":"the refined post"}`), nil))

	result, err := e.Export(ctx, p.ID, FormatMarkdown)
	require.NoError(t, err)

	body := string(result.Data)
	assert.Contains(t, body, "# My Post")
	assert.Contains(t, body, "the refined post")
	assert.NotContains(t, body, "the draft")
}

func TestExport_MarkdownFallsBackToDraft(t *testing.T) {
	e, store, _ := setupExporter(t)
	ctx := context.Background()

	p, err := store.Create(ctx, "Demo", nil)
	require.NoError(t, err)
	require.NoError(t, store.SaveMilestone(ctx, p.ID, project.MilestoneDraftCompleted,
		json.RawMessage(`{"compiled_blog":"the draft"}`), nil))

	result, err := e.Export(ctx, p.ID, FormatMarkdown)
	require.NoError(t, err)
	assert.Contains(t, string(result.Data), "the draft")
}

func TestExport_MarkdownEmptyBody(t *testing.T) {
	e, store, _ := setupExporter(t)
	ctx := context.Background()

	p, err := store.Create(ctx, "Demo", nil)
	require.NoError(t, err)

	result, err := e.Export(ctx, p.ID, FormatMarkdown)
	require.NoError(t, err)

	body := string(result.Data)
	assert.Contains(t, body, "# Demo")
	assert.True(t, strings.HasSuffix(strings.TrimRight(body, "\n"), "---"),
		"no content renders header block and empty body")
}

func TestExport_ZipPacksStorageTree(t *testing.T) {
	e, store, _ := setupExporter(t)
	ctx := context.Background()

	p, err := store.Create(ctx, "Demo", nil)
	require.NoError(t, err)
	require.NoError(t, store.SaveMilestone(ctx, p.ID, project.MilestoneFilesUploaded,
		json.RawMessage(`{"files":[]}`), nil))

	result, err := e.Export(ctx, p.ID, FormatZip)
	require.NoError(t, err)
	assert.Equal(t, "application/zip", result.ContentType)

	zr, err := zip.NewReader(bytes.NewReader(result.Data), int64(len(result.Data)))
	require.NoError(t, err)

	names := map[string][]byte{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		names[f.Name] = data
	}

	require.Contains(t, names, "project.json")
	require.Contains(t, names, "files_uploaded.json")

	tree, err := store.Tree(ctx, p.ID)
	require.NoError(t, err)
	for _, tf := range tree {
		assert.Equal(t, tf.Data, names[tf.Path], "%s must pack byte-for-byte", tf.Path)
	}
}

func TestExport_NotFound(t *testing.T) {
	e, _, _ := setupExporter(t)
	_, err := e.Export(context.Background(), "ghost", FormatJSON)
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}
