package catalog

import (
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/skelmerge/api"
)

func TestImporterScan(t *testing.T) {
	const (
		tops   = "0123456789abcdef0123456789abcdef"
		action = "11111111111111111111111111111111"
		plain  = "22222222222222222222222222222222"
		empty  = "33333333333333333333333333333333"
		broken = "44444444444444444444444444444444"
	)
	fsys := memfs.New()
	for name, content := range map[string]string{
		"src/" + tops + "/dress.json":     `{"type": "Tops", "attachments": {}}`,
		"src/" + tops + "/meta.json":      `{"name": "Red shirt", "description": "cotton"}`,
		"src/" + tops + "/action_x.skel":  ``,
		"src/" + action + "/action.json":  `{"animations": {"wave": {}, "idle": {}}}`,
		"src/" + plain + "/dress.json":    `{"attachments": {}}`,
		"src/" + empty + "/readme.txt":    `nothing`,
		"src/" + broken + "/dress.json":   `{"type": `,
		"src/short/dress.json":            `{"type": "Tops"}`,
		"src/zzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz/dress.json": `{"type": "Tops"}`,
	} {
		require.NoError(t, util.WriteFile(fsys, name, []byte(content), 0o644))
	}

	store := openStore(t)
	im := &Importer{FS: fsys, Store: store}

	sum, err := im.Scan("src")
	require.NoError(t, err)
	assert.Equal(t, 5, sum.Total)
	assert.Equal(t, 3, sum.Success)
	assert.Equal(t, 1, sum.Skipped)
	assert.Equal(t, 1, sum.Failed)

	byHash := map[string]ImportResult{}
	for _, d := range sum.Details {
		byHash[d.Hash] = d
	}
	assert.Equal(t, ImportSuccess, byHash[tops].Status)
	assert.True(t, byHash[tops].HasAnimation)
	assert.True(t, byHash[tops].Labeled)
	assert.Equal(t, string(api.KindAction), byHash[action].Type)
	assert.Equal(t, "wave", byHash[action].ActionName)
	assert.Equal(t, UnknownType, byHash[plain].Type)
	assert.Equal(t, ImportSkipped, byHash[empty].Status)
	assert.Equal(t, ImportFailed, byHash[broken].Status)

	it, err := store.ByID(tops)
	require.NoError(t, err)
	assert.Equal(t, "Red shirt", it.Label)
	assert.Equal(t, "Red shirt", it.FolderName)
	assert.Equal(t, "cotton", it.Description)
	assert.Equal(t, fsys.Join("src", tops), it.SourcePath)

	t.Run("rescan skips known folders", func(t *testing.T) {
		again, err := im.Scan("src")
		require.NoError(t, err)
		assert.Equal(t, 0, again.Success)
		assert.Equal(t, 4, again.Skipped)
	})
}

func TestImporterMissingSource(t *testing.T) {
	im := &Importer{FS: memfs.New(), Store: openStore(t)}
	_, err := im.Scan("nowhere")
	assert.Error(t, err)
}
