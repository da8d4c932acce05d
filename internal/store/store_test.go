package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scuffcommander/pkg/action"
	"scuffcommander/pkg/plugin"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "actions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sceneChange(name string) action.Action {
	return action.Single{Command: plugin.OBSAction{Kind: plugin.OBSProgramSceneChange, Scene: name}}
}

func TestNew_CreatesDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "actions.db")
	s, err := New(path)
	require.NoError(t, err)
	defer s.Close()

	assert.FileExists(t, path)
	assert.Equal(t, path, s.Path())

	// reopening runs migrations again without error
	require.NoError(t, s.Close())
	s, err = New(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestActions_CRUD(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t).Actions()

	_, err := repo.Get(ctx, "brb")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.Put(ctx, "brb", sceneChange("BRB")))
	rec, err := repo.Get(ctx, "brb")
	require.NoError(t, err)
	assert.Equal(t, "brb", rec.ID)
	assert.Equal(t, sceneChange("BRB"), rec.Action)
	assert.False(t, rec.CreatedAt.IsZero())

	// put replaces and keeps created_at
	require.NoError(t, repo.Put(ctx, "brb", sceneChange("Be Right Back")))
	updated, err := repo.Get(ctx, "brb")
	require.NoError(t, err)
	assert.Equal(t, sceneChange("Be Right Back"), updated.Action)
	assert.Equal(t, rec.CreatedAt, updated.CreatedAt)

	require.NoError(t, repo.Put(ctx, "alpha", action.Chain{Steps: []action.Action{}}))
	records, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "alpha", records[0].ID)
	assert.Equal(t, "brb", records[1].ID)

	require.NoError(t, repo.Delete(ctx, "brb"))
	assert.ErrorIs(t, repo.Delete(ctx, "brb"), ErrNotFound)
	_, err = repo.Get(ctx, "brb")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestActions_PutRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t).Actions()

	assert.Error(t, repo.Put(ctx, "", sceneChange("BRB")))
	assert.Error(t, repo.Put(ctx, "bad", action.Single{Command: plugin.OBSAction{Kind: plugin.OBSProgramSceneChange}}))
	assert.Error(t, repo.Put(ctx, "nil", nil))
}

func TestActions_ImportExport(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t).Actions()

	doc := action.Document{Actions: map[string]action.Action{
		"brb": action.If{
			Cond: action.Condition{Query: plugin.OBSQuery{Kind: plugin.OBSCurrentProgramScene}, Target: "Live"},
			Then: sceneChange("BRB"),
		},
		"go-live": action.Chain{Steps: []action.Action{
			action.Single{Command: plugin.OBSAction{Kind: plugin.OBSStartStream}},
			sceneChange("Live"),
		}},
	}}

	n, err := repo.Import(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	exported, err := repo.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, doc, exported)
}

func TestActions_ImportIsAtomic(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t).Actions()

	_, err := repo.Import(ctx, action.Document{Actions: map[string]action.Action{
		"a-good": sceneChange("BRB"),
		"b-bad":  action.Single{Command: plugin.VTSAction{Kind: plugin.VTSLoadModel}},
	}})
	require.Error(t, err)

	records, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}
