package fragment

import (
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, fsys billy.Filesystem, files map[string]string) {
	t.Helper()
	for name, content := range files {
		require.NoError(t, util.WriteFile(fsys, name, []byte(content), 0o644))
	}
}

func TestLoadClothing(t *testing.T) {
	fsys := memfs.New()
	writeFiles(t, fsys, map[string]string{
		"tops/dress.json": `{"type":"Tops","bones":[{"name":"root"},{"name":"spine","parent":"root"}],
			"attachments":{"Tops_Front":{"shirt":{"type":"region"}},"Tops_Back":{}}}`,
	})

	c, err := LoadClothing(fsys, "tops")
	require.NoError(t, err)
	assert.Equal(t, "Tops", c.Type)
	require.Len(t, c.Bones, 2)
	assert.Equal(t, "spine", c.Bones[1].Name())

	var slots []string
	for p := c.Attachments.Oldest(); p != nil; p = p.Next() {
		slots = append(slots, p.Key)
	}
	assert.Equal(t, []string{"Tops_Front", "Tops_Back"}, slots)
}

func TestLoadClothingErrors(t *testing.T) {
	fsys := memfs.New()
	writeFiles(t, fsys, map[string]string{
		"broken/dress.json": `{"type": "Tops", "bones": [`,
		"empty/dress.json":  `{"type": "Belt"}`,
	})

	_, err := LoadClothing(fsys, "missing")
	assert.ErrorIs(t, err, ErrNoDocument)

	_, err = LoadClothing(fsys, "broken")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoDocument)

	c, err := LoadClothing(fsys, "empty")
	require.NoError(t, err)
	assert.Equal(t, 0, c.Attachments.Len())
}

func TestLoadAction(t *testing.T) {
	fsys := memfs.New()
	writeFiles(t, fsys, map[string]string{
		"idle/action_b.json": `{"animations":{"other":{}}}`,
		"idle/action_a.json": `{"bones":[{"name":"root"}],"slots":[{"name":"Weapon","bone":"root"}],
			"skins":{"default":{"Weapon":{"sword":{}}}},"animations":{"idle":{"bones":{}}}}`,
		"idle/sword.png": "png",
	})

	t.Run("directory picks the first action file", func(t *testing.T) {
		a, file, err := LoadAction(fsys, "idle")
		require.NoError(t, err)
		assert.Equal(t, fsys.Join("idle", "action_a.json"), file)
		assert.Len(t, a.Bones, 1)
		require.Len(t, a.Slots, 1)
		assert.Equal(t, "Weapon", a.Slots[0].Name())
		assert.NotNil(t, a.Skins.Get("default"))
		_, ok := a.Animations.Get("idle")
		assert.True(t, ok)
	})

	t.Run("file path", func(t *testing.T) {
		a, _, err := LoadAction(fsys, "idle/action_b.json")
		require.NoError(t, err)
		assert.Empty(t, a.Bones)
		assert.Empty(t, a.Skins.All())
	})

	t.Run("missing", func(t *testing.T) {
		_, _, err := LoadAction(fsys, "run")
		assert.ErrorIs(t, err, ErrNoDocument)

		require.NoError(t, fsys.MkdirAll("walk", 0o755))
		_, _, err = LoadAction(fsys, "walk")
		assert.ErrorIs(t, err, ErrNoDocument)
	})
}

func TestImages(t *testing.T) {
	fsys := memfs.New()
	writeFiles(t, fsys, map[string]string{
		"body/b.png":        "b",
		"body/a.png":        "a",
		"body/dress.json":   "{}",
		"body/notes.txt":    "",
		"body/nested/c.png": "c",
	})

	names, err := Images(fsys, "body")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.png", "b.png"}, names)

	names, err = Images(fsys, "nowhere")
	require.NoError(t, err)
	assert.Empty(t, names)

	assert.Equal(t, "Hand_Left", Stem("Hand_Left.png"))
}

func TestCopy(t *testing.T) {
	src, dst := memfs.New(), memfs.New()
	writeFiles(t, src, map[string]string{"a/x.png": "new"})
	writeFiles(t, dst, map[string]string{"x.png": "older and longer"})

	require.NoError(t, Copy(src, "a/x.png", dst, "x.png"))
	data, err := util.ReadFile(dst, "x.png")
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))

	assert.Error(t, Copy(src, "a/missing.png", dst, "y.png"))
}
