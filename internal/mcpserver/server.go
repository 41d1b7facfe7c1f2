// Package mcpserver exposes the catalog and the build over MCP on stdio.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/agentic-research/skelmerge/api"
	"github.com/agentic-research/skelmerge/internal/catalog"
	"github.com/agentic-research/skelmerge/internal/merge"
)

const (
	serverName    = "skelmerge"
	serverVersion = "0.1.0"
)

// Server hosts the MCP tools.
type Server struct {
	mcpServer      *server.MCPServer
	store          *catalog.Store
	builder        *merge.Builder
	runtimeVersion string
}

// ListInput is the list_fragments argument set.
type ListInput struct {
	Type string `json:"type"`
}

// ListResult is the list_fragments output.
type ListResult struct {
	Types      []string            `json:"types,omitempty"`
	Items      []catalog.Item      `json:"items,omitempty"`
	Animations []catalog.Animation `json:"animations,omitempty"`
}

// BuildInput is the build_character argument set.
type BuildInput struct {
	Base           string   `json:"base"`
	Output         string   `json:"output"`
	Fragments      []string `json:"fragments"`
	Animation      string   `json:"animation"`
	RuntimeVersion string   `json:"runtime_version"`
}

// New wires the tools to store and builder.
func New(store *catalog.Store, builder *merge.Builder, runtimeVersion string) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			serverName,
			serverVersion,
			server.WithToolCapabilities(false),
		),
		store:          store,
		builder:        builder,
		runtimeVersion: runtimeVersion,
	}
	s.mcpServer.AddTool(listTool(), s.handleList)
	s.mcpServer.AddTool(buildTool(), s.handleBuild)
	return s
}

// Serve runs the server on stdio until the client disconnects.
func (s *Server) Serve() error {
	if s == nil || s.mcpServer == nil {
		return fmt.Errorf("MCP server is not configured")
	}
	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("serve MCP: %w", err)
	}
	return nil
}

func listTool() mcp.Tool {
	return mcp.NewTool(
		"list_fragments",
		mcp.WithDescription("Lists catalog fragments. Without a type it lists the known clothing types; "+
			"with a type it lists that type's items; the type Action lists animations."),
		mcp.WithString("type",
			mcp.Description("Clothing type tag such as Tops or BaseBody, or Action"),
		),
	)
}

func buildTool() mcp.Tool {
	return mcp.NewTool(
		"build_character",
		mcp.WithDescription("Merges catalog fragments into a base skeleton and writes the character document and images"),
		mcp.WithString("base",
			mcp.Required(),
			mcp.Description("Path of the base skeleton document"),
		),
		mcp.WithString("output",
			mcp.Required(),
			mcp.Description("Output directory; the document is named after it"),
		),
		mcp.WithArray("fragments",
			mcp.Description("Catalog ids (or unique prefixes) of clothing fragments, applied in order"),
			mcp.WithStringItems(),
		),
		mcp.WithString("animation",
			mcp.Description("Catalog id of the animation fragment, applied last"),
		),
		mcp.WithString("runtime_version",
			mcp.Description("Runtime version stamped into the skeleton block"),
		),
	)
}

func (s *Server) handleList(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var input ListInput
	if err := request.BindArguments(&input); err != nil {
		return mcp.NewToolResultErrorFromErr("invalid list arguments", err), nil
	}

	var result ListResult
	var err error
	switch input.Type {
	case "":
		result.Types, err = s.store.Types()
	case string(api.KindAction):
		result.Animations, err = s.store.AllAnimations()
	default:
		result.Items, err = s.store.ByType(input.Type)
	}
	if err != nil {
		return mcp.NewToolResultErrorFromErr("catalog query failed", err), nil
	}
	return mcp.NewToolResultStructuredOnly(result), nil
}

func (s *Server) handleBuild(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var input BuildInput
	if err := request.BindArguments(&input); err != nil {
		return mcp.NewToolResultErrorFromErr("invalid build arguments", err), nil
	}
	if input.Base == "" || input.Output == "" {
		return mcp.NewToolResultError("base and output are required"), nil
	}

	ids := input.Fragments
	if input.Animation != "" {
		ids = append(append([]string(nil), ids...), input.Animation)
	}
	fragments, err := s.store.Resolve(ids)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("resolve fragments", err), nil
	}
	for i, f := range fragments[:len(input.Fragments)] {
		if f.IsAnimation() {
			return mcp.NewToolResultError(fmt.Sprintf("%s is an animation; pass it as animation", input.Fragments[i])), nil
		}
	}
	if input.Animation != "" && !fragments[len(fragments)-1].IsAnimation() {
		return mcp.NewToolResultError(fmt.Sprintf("%s is not an animation", input.Animation)), nil
	}

	base, err := filepath.Abs(input.Base)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("base path", err), nil
	}
	output, err := filepath.Abs(input.Output)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("output path", err), nil
	}
	version := input.RuntimeVersion
	if version == "" {
		version = s.runtimeVersion
	}

	report, err := s.builder.Build(merge.Request{
		BasePath:       base,
		OutputDir:      output,
		Fragments:      fragments,
		RuntimeVersion: version,
	})
	if err != nil {
		if errors.Is(err, merge.ErrBaseDocument) || report == nil {
			return mcp.NewToolResultErrorFromErr("build failed", err), nil
		}
		res := mcp.NewToolResultStructured(report, "build failed: "+err.Error())
		res.IsError = true
		return res, nil
	}
	if err := s.store.RecordBuild(report); err != nil {
		log.Printf("MCP: record build %s: %v", report.BuildID, err)
	}
	return mcp.NewToolResultStructuredOnly(report), nil
}
