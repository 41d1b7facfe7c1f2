package catalog

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/skelmerge/api"
	"github.com/agentic-research/skelmerge/internal/merge"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "db", "clothing.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

const (
	hashA = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa1"
	hashB = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa2"
	hashC = "cccccccccccccccccccccccccccccccc"
	hashD = "dddddddddddddddddddddddddddddddd"
)

func seed(t *testing.T, s *Store) {
	t.Helper()
	for _, it := range []Item{
		{Hash: hashA, FolderName: hashA, Type: "Tops", SourcePath: "/assets/" + hashA},
		{Hash: hashB, FolderName: "Coat", Type: "Tops", Label: "Coat", SourcePath: "/assets/" + hashB},
		{Hash: hashC, FolderName: hashC, Type: "BaseBody", SourcePath: "/assets/" + hashC, HasAnimation: true},
	} {
		added, err := s.AddItem(it)
		require.NoError(t, err)
		require.True(t, added)
	}
	require.NoError(t, s.AddAnimation(Animation{
		Hash: hashD, FolderName: hashD, ActionName: "idle", SourcePath: "/assets/" + hashD,
	}))
}

func TestAddItemSkipsKnownHash(t *testing.T) {
	s := openStore(t)
	seed(t, s)

	added, err := s.AddItem(Item{Hash: hashA, FolderName: "again", Type: "Pants"})
	require.NoError(t, err)
	assert.False(t, added)

	ok, err := s.ItemExists(hashA)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.AnimationExists(hashA)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestByTypeOrdersLabeledFirst(t *testing.T) {
	s := openStore(t)
	seed(t, s)

	types, err := s.Types()
	require.NoError(t, err)
	assert.Equal(t, []string{"BaseBody", "Tops"}, types)

	items, err := s.ByType("Tops")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, hashB, items[0].Hash)
	assert.Equal(t, "Coat", items[0].Label)
	assert.Equal(t, hashA, items[1].Hash)
	assert.Empty(t, items[1].Label)
	assert.NotEmpty(t, items[1].CreatedAt)

	all, err := s.Items()
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestByID(t *testing.T) {
	s := openStore(t)
	seed(t, s)

	it, err := s.ByID(hashC)
	require.NoError(t, err)
	assert.True(t, it.HasAnimation)

	it, err = s.ByID("ccc")
	require.NoError(t, err)
	assert.Equal(t, hashC, it.Hash)

	_, err = s.ByID("aaaa")
	assert.ErrorIs(t, err, ErrAmbiguous)

	_, err = s.ByID("ffff")
	assert.ErrorIs(t, err, ErrNotFound)

	it, err = s.ByID(hashA)
	require.NoError(t, err, "a full hash is never ambiguous")
	assert.Equal(t, hashA, it.Hash)
}

func TestResolveKeepsOrder(t *testing.T) {
	s := openStore(t)
	seed(t, s)

	frags, err := s.Resolve([]string{hashC, "ddd", hashB})
	require.NoError(t, err)
	assert.Equal(t, []api.Fragment{
		{ID: hashC, Kind: "BaseBody", Path: "/assets/" + hashC},
		{ID: hashD, Kind: api.KindAction, Path: "/assets/" + hashD, Label: "idle"},
		{ID: hashB, Kind: "Tops", Path: "/assets/" + hashB, Label: "Coat"},
	}, frags)

	_, err = s.Resolve([]string{"nope"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateLabelAndStats(t *testing.T) {
	s := openStore(t)
	seed(t, s)

	ok, err := s.UpdateLabel(hashA, "Shirt", "blue")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.UpdateLabel("missing", "x", "")
	require.NoError(t, err)
	assert.False(t, ok)

	it, err := s.ByID(hashA)
	require.NoError(t, err)
	assert.Equal(t, "Shirt", it.Label)
	assert.Equal(t, "blue", it.Description)

	st, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, 3, st.Items)
	assert.Equal(t, 1, st.Animations)
	assert.Equal(t, []TypeStat{
		{Type: "BaseBody", Count: 1, Labeled: 0},
		{Type: "Tops", Count: 2, Labeled: 2},
	}, st.Types)
}

func TestDeleteAndReset(t *testing.T) {
	s := openStore(t)
	seed(t, s)

	ok, err := s.Delete(hashD)
	require.NoError(t, err)
	assert.True(t, ok)
	anims, err := s.AllAnimations()
	require.NoError(t, err)
	assert.Empty(t, anims)

	ok, err = s.Delete(hashD)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Reset())
	st, err := s.Stats()
	require.NoError(t, err)
	assert.Zero(t, st.Items)
	assert.Empty(t, st.Types)
}

func TestRecordBuild(t *testing.T) {
	s := openStore(t)

	report := &merge.Report{
		BuildID:    "b-1",
		OutputPath: "output/hero/hero.json",
		Bones:      3, Slots: 2, Attachments: 4, Images: 5,
		Fragments: []merge.FragmentResult{
			{Fragment: api.Fragment{ID: hashA, Kind: "Tops", Label: "Red shirt"}, Status: merge.StatusApplied},
			{Fragment: api.Fragment{ID: hashB, Kind: "Tops"}, Status: merge.StatusSkipped},
			{Fragment: api.Fragment{Kind: api.KindBaseBody, Path: "assets/body", Label: "Body"}, Status: merge.StatusApplied},
		},
	}
	require.NoError(t, s.RecordBuild(report))

	builds, err := s.Builds(10)
	require.NoError(t, err)
	require.Len(t, builds, 1)
	assert.Equal(t, "b-1", builds[0].ID)
	assert.Equal(t, []string{hashA, "assets/body"}, builds[0].Fragments, "ids, or paths for loose fragments")
	assert.Equal(t, 4, builds[0].Attachments)

	st, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, st.Builds)
}
