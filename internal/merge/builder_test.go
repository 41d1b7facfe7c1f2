package merge

import (
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/skelmerge/api"
)

func TestBuildEndToEnd(t *testing.T) {
	fsys := memfs.New()
	writeFiles(t, fsys, map[string]string{
		"assets/role.json": `{"custom":{"keep":1},"bones":[{"name":"root"}],"slots":[]}`,
		"assets/tops/dress.json": `{"type":"Tops","bones":[{"name":"root"},{"name":"spine","parent":"root"}],
			"attachments":{"Tops_Front":{"body":{"type":"mesh","uvs":[0,0],"triangles":[0],"vertices":[1,2],"hull":1}}}}`,
		"assets/tops/body.png": "png",
	})

	report, err := NewBuilder(fsys, 0).Build(Request{
		BasePath:  "assets/role.json",
		OutputDir: "out/hero",
		Fragments: []api.Fragment{{ID: "0123", Kind: "Tops", Path: "assets/tops"}},
	})
	require.NoError(t, err)

	assert.Equal(t, fsys.Join("out/hero", "hero.json"), report.OutputPath)
	assert.Equal(t, 1, report.Images, spew.Sdump(report))
	assert.Equal(t, 1, report.Attachments)
	assert.Equal(t, 2, report.Bones)
	assert.Equal(t, 1, report.Slots)
	_, err = uuid.Parse(report.BuildID)
	assert.NoError(t, err)

	data, err := util.ReadFile(fsys, report.OutputPath)
	require.NoError(t, err)
	doc, err := api.ParseDocument(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"skeleton", "bones", "slots", "skins", "custom"}, doc.Keys())

	skeleton, err := doc.Skeleton()
	require.NoError(t, err)
	spine, _ := api.GetString(skeleton, "spine")
	assert.Equal(t, "4.2.0", spine)

	slots, err := doc.Slots()
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, "Tops_Front", slots[0].Name())
	assert.Equal(t, "spine", slots[0].Bone())

	img, err := util.ReadFile(fsys, "out/hero/body.png")
	require.NoError(t, err)
	assert.Equal(t, "png", string(img))
}

func TestBuildRebindsPlaceholderSlot(t *testing.T) {
	fsys := memfs.New()
	writeFiles(t, fsys, map[string]string{
		"role.json": `{"bones":[{"name":"root"},{"name":"spine","parent":"root"}],
			"slots":[{"name":"Tops_Front","bone":"root","attachment":null}],"animations":{}}`,
		"tops/dress.json": `{"type":"Tops","attachments":{"Tops_Front":{"body":{"type":"mesh"}}}}`,
	})

	report, err := NewBuilder(fsys, 0).Build(Request{
		BasePath:       "role.json",
		OutputDir:      "out/v2/",
		Fragments:      []api.Fragment{{Kind: "Tops", Path: "tops"}},
		RuntimeVersion: "4.1.20",
	})
	require.NoError(t, err)
	assert.Equal(t, fsys.Join("out/v2/", "v2.json"), report.OutputPath)

	data, err := util.ReadFile(fsys, report.OutputPath)
	require.NoError(t, err)
	doc, err := api.ParseDocument(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"skeleton", "bones", "slots", "skins", "animations"}, doc.Keys())

	slots, err := doc.Slots()
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, "spine", slots[0].Bone())

	skeleton, err := doc.Skeleton()
	require.NoError(t, err)
	spine, _ := api.GetString(skeleton, "spine")
	assert.Equal(t, "4.1.20", spine)
}

func TestBuildBaseErrors(t *testing.T) {
	fsys := memfs.New()
	writeFiles(t, fsys, map[string]string{
		"broken.json": `{"bones": [`,
		"list.json":   `[]`,
	})
	b := NewBuilder(fsys, 0)

	for _, base := range []string{"missing.json", "broken.json", "list.json"} {
		t.Run(base, func(t *testing.T) {
			report, err := b.Build(Request{BasePath: base, OutputDir: "out"})
			assert.ErrorIs(t, err, ErrBaseDocument)
			assert.Nil(t, report)
		})
	}
}

func TestOutputName(t *testing.T) {
	assert.Equal(t, "hero.json", OutputName("output/hero"))
	assert.Equal(t, "hero.json", OutputName("output/hero/"))
}
