package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kakiii/kmatch/internal/adapters/bbolt"
	"github.com/kakiii/kmatch/internal/domain/changes"
	"github.com/kakiii/kmatch/internal/domain/dataset"
	"github.com/kakiii/kmatch/internal/ports"
)

type stubSource struct {
	name string
	rows []ports.Row
	raw  []byte
	err  error
}

func (s stubSource) Rows(context.Context) ([]ports.Row, []byte, error) {
	return s.rows, s.raw, s.err
}

func (s stubSource) Name() string { return s.name }

func sponsorRows() []ports.Row {
	return []ports.Row{
		{Organisation: "ASML Holding N.V.", Fields: map[string]string{"KvK number": "17085815"}},
		{Organisation: "Heineken N.V.", Fields: map[string]string{"KvK number": "33011433"}},
		{Organisation: "Koninklijke Philips N.V."},
	}
}

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	store, err := bbolt.NewStore(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return NewPipeline(store, dataset.NewWriter(t.TempDir(), nil), nil)
}

func TestPipeline_FirstRunPublishes(t *testing.T) {
	p := newTestPipeline(t)
	src := stubSource{name: "register", rows: sponsorRows(), raw: []byte("page v1")}

	res, err := p.Run(context.Background(), src)
	require.NoError(t, err)

	assert.True(t, res.Published())
	assert.True(t, res.Run.Published)
	assert.Equal(t, "register", res.Run.Source)
	assert.Equal(t, 3, res.Run.RowCount)
	assert.Equal(t, 3, res.Run.Added)
	assert.Zero(t, res.Run.Removed)
	assert.Zero(t, res.Run.Modified)
	assert.Equal(t, changes.HashRaw([]byte("page v1")), res.Run.SourceHash)
	assert.False(t, res.Run.FinishedAt.Before(res.Run.StartedAt))

	_, err = uuid.Parse(res.Run.ID)
	assert.NoError(t, err, "run id should be a uuid")

	require.NotNil(t, res.Write)
	assert.FileExists(t, res.Write.ArtifactPath)
	assert.FileExists(t, res.Write.ManifestPath)
	assert.FileExists(t, res.Write.LegacyPath)
	require.NotEmpty(t, res.Write.ShardPaths)
	for _, p := range res.Write.ShardPaths {
		assert.FileExists(t, p)
	}

	runs, err := p.Store.ListRuns(0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, res.Run.ID, runs[0].ID)
}

func TestPipeline_UnchangedInputSkipsPublish(t *testing.T) {
	p := newTestPipeline(t)
	src := stubSource{name: "register", rows: sponsorRows(), raw: []byte("page v1")}

	_, err := p.Run(context.Background(), src)
	require.NoError(t, err)

	res, err := p.Run(context.Background(), src)
	require.NoError(t, err)

	assert.False(t, res.Published())
	assert.Nil(t, res.Write)
	assert.False(t, res.Changes.HasChanges)
	assert.Zero(t, res.Run.Added+res.Run.Removed+res.Run.Modified)

	// Both runs land in the ledger, newest first.
	runs, err := p.Store.ListRuns(0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, res.Run.ID, runs[0].ID)
	assert.False(t, runs[0].Published)
	assert.True(t, runs[1].Published)
}

func TestPipeline_ForceRepublishesUnchanged(t *testing.T) {
	p := newTestPipeline(t)
	src := stubSource{name: "register", rows: sponsorRows(), raw: []byte("page v1")}

	_, err := p.Run(context.Background(), src)
	require.NoError(t, err)

	p.Force = true
	res, err := p.Run(context.Background(), src)
	require.NoError(t, err)

	assert.True(t, res.Published())
	assert.False(t, res.Changes.HasChanges)
	assert.NotEmpty(t, res.Write.BackupDir, "republish should back up the previous artifacts")
}

func TestPipeline_DetectsModifiedRow(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()

	_, err := p.Run(ctx, stubSource{name: "register", rows: sponsorRows(), raw: []byte("page v1")})
	require.NoError(t, err)

	rows := sponsorRows()
	rows[0].Fields["KvK number"] = "99999999"
	res, err := p.Run(ctx, stubSource{name: "register", rows: rows, raw: []byte("page v2")})
	require.NoError(t, err)

	assert.True(t, res.Published())
	assert.Equal(t, []string{"ASML Holding N.V."}, res.Changes.Modified)
	assert.Zero(t, res.Run.Added)
	assert.Zero(t, res.Run.Removed)
	assert.Equal(t, 1, res.Run.Modified)
}

func TestPipeline_DetectsRemovedRow(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()

	_, err := p.Run(ctx, stubSource{name: "register", rows: sponsorRows(), raw: []byte("page v1")})
	require.NoError(t, err)

	res, err := p.Run(ctx, stubSource{name: "register", rows: sponsorRows()[:2], raw: []byte("page v2")})
	require.NoError(t, err)

	assert.True(t, res.Published())
	assert.Equal(t, []string{"Koninklijke Philips N.V."}, res.Changes.Removed)
	assert.Equal(t, 1, res.Run.Removed)
}

func TestPipeline_FormattingChurnSkipsButAdvancesHash(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()

	_, err := p.Run(ctx, stubSource{name: "register", rows: sponsorRows(), raw: []byte("page v1")})
	require.NoError(t, err)

	// Same rows, different raw bytes: hash flips, content does not.
	reformatted := []byte("page v1 with whitespace churn")
	res, err := p.Run(ctx, stubSource{name: "register", rows: sponsorRows(), raw: reformatted})
	require.NoError(t, err)
	assert.False(t, res.Published())
	assert.False(t, res.Changes.HasChanges)

	// The new hash was snapshotted, so the next identical fetch takes
	// the cheap path.
	hash, _, ok, err := p.Store.LoadSnapshot("register")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, changes.HashRaw(reformatted), hash)
}

func TestPipeline_SourceErrorPropagates(t *testing.T) {
	p := newTestPipeline(t)

	_, err := p.Run(context.Background(), stubSource{name: "register", err: assert.AnError})
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)

	// Nothing was compared, so nothing was recorded.
	runs, err := p.Store.ListRuns(0)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestPipeline_AllRowsMalformedFails(t *testing.T) {
	p := newTestPipeline(t)
	rows := []ports.Row{{Organisation: "---"}, {Organisation: "  "}}

	_, err := p.Run(context.Background(), stubSource{name: "register", rows: rows, raw: []byte("junk")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no valid records")
}

func TestPipeline_WriteFailureLeavesSnapshotUnsaved(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()
	src := stubSource{name: "register", rows: sponsorRows(), raw: []byte("page v1")}

	// A plain file where the data dir should go makes every publish fail.
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))
	p.Writer = dataset.NewWriter(blocker, nil)

	_, err := p.Run(ctx, src)
	require.Error(t, err)

	_, _, ok, err := p.Store.LoadSnapshot("register")
	require.NoError(t, err)
	assert.False(t, ok, "failed publish must not advance the snapshot")
	runs, err := p.Store.ListRuns(0)
	require.NoError(t, err)
	assert.Empty(t, runs)

	// The next run retries from scratch and publishes everything.
	p.Writer = dataset.NewWriter(t.TempDir(), nil)
	res, err := p.Run(ctx, src)
	require.NoError(t, err)
	assert.True(t, res.Published())
	assert.Equal(t, 3, res.Run.Added)
}

func TestPipeline_SourcesAreIsolated(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()

	_, err := p.Run(ctx, stubSource{name: "register", rows: sponsorRows(), raw: []byte("page v1")})
	require.NoError(t, err)

	// The same rows under a different source name diff against that
	// source's own (empty) snapshot.
	res, err := p.Run(ctx, stubSource{name: "export:KMatch - 12_05_2025.xlsx", rows: sponsorRows(), raw: []byte("xlsx bytes")})
	require.NoError(t, err)
	assert.True(t, res.Published())
	assert.Equal(t, 3, res.Run.Added)
}
