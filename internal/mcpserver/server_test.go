package mcpserver

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/skelmerge/internal/catalog"
	"github.com/agentic-research/skelmerge/internal/merge"
)

const topsHash = "0123456789abcdef0123456789abcdef"

func newCallToolRequest(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func newTestServer(t *testing.T) (*Server, *catalog.Store) {
	t.Helper()
	store, err := catalog.Open(filepath.Join(t.TempDir(), "clothing.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	_, err = store.AddItem(catalog.Item{Hash: topsHash, FolderName: "shirt", Type: "Tops", Label: "Shirt", SourcePath: "/w/tops"})
	require.NoError(t, err)
	require.NoError(t, store.AddAnimation(catalog.Animation{Hash: "dd", FolderName: "dd", ActionName: "idle", SourcePath: "/w/idle"}))

	fsys := memfs.New()
	for name, content := range map[string]string{
		"/w/role.json":       `{"bones":[{"name":"root"},{"name":"spine","parent":"root"}],"slots":[]}`,
		"/w/tops/dress.json": `{"type":"Tops","attachments":{"Tops_Front":{"body":{}}}}`,
		"/w/tops/body.png":   "png",
	} {
		require.NoError(t, util.WriteFile(fsys, name, []byte(content), 0o644))
	}
	return New(store, merge.NewBuilder(fsys, 0), "4.2.0"), store
}

func TestNewConfiguresServer(t *testing.T) {
	s, _ := newTestServer(t)
	require.NotNil(t, s.mcpServer)
}

func TestServeRequiresConfiguredServer(t *testing.T) {
	var s *Server
	assert.Error(t, s.Serve())
	assert.Error(t, (&Server{}).Serve())
}

func TestHandleList(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		name  string
		args  map[string]any
		check func(t *testing.T, r ListResult)
	}{
		{"types", nil, func(t *testing.T, r ListResult) {
			assert.Equal(t, []string{"Tops"}, r.Types)
		}},
		{"items of a type", map[string]any{"type": "Tops"}, func(t *testing.T, r ListResult) {
			require.Len(t, r.Items, 1)
			assert.Equal(t, "Shirt", r.Items[0].Label)
		}},
		{"animations", map[string]any{"type": "Action"}, func(t *testing.T, r ListResult) {
			require.Len(t, r.Animations, 1)
			assert.Equal(t, "idle", r.Animations[0].ActionName)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.handleList(context.Background(), newCallToolRequest("list_fragments", tt.args))
			require.NoError(t, err)
			require.False(t, res.IsError)
			result, ok := res.StructuredContent.(ListResult)
			require.True(t, ok)
			tt.check(t, result)
		})
	}
}

func TestHandleBuild(t *testing.T) {
	s, store := newTestServer(t)

	res, err := s.handleBuild(context.Background(), newCallToolRequest("build_character", map[string]any{
		"base":      "/w/role.json",
		"output":    "/w/out/hero",
		"fragments": []any{"0123"},
	}))
	require.NoError(t, err)
	require.False(t, res.IsError)

	report, ok := res.StructuredContent.(*merge.Report)
	require.True(t, ok)
	assert.Equal(t, "/w/out/hero/hero.json", report.OutputPath)
	assert.Equal(t, 1, report.Attachments)
	assert.Equal(t, 1, report.Images)

	builds, err := store.Builds(5)
	require.NoError(t, err)
	require.Len(t, builds, 1)
	assert.Equal(t, report.BuildID, builds[0].ID)
}

func TestHandleBuildErrors(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		name string
		args map[string]any
	}{
		{"missing output", map[string]any{"base": "/w/role.json"}},
		{"unknown fragment", map[string]any{"base": "/w/role.json", "output": "/w/out/x", "fragments": []any{"ffff"}}},
		{"animation is clothing", map[string]any{"base": "/w/role.json", "output": "/w/out/x", "animation": topsHash}},
		{"missing base", map[string]any{"base": "/w/none.json", "output": "/w/out/x"}},
		{"animation among fragments", map[string]any{"base": "/w/role.json", "output": "/w/out/x", "fragments": []any{"dd", "0123"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.handleBuild(context.Background(), newCallToolRequest("build_character", tt.args))
			require.NoError(t, err)
			assert.True(t, res.IsError)
		})
	}
}
