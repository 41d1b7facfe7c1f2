package cmd

import (
	"log"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"

	"github.com/agentic-research/skelmerge/internal/mcpserver"
	"github.com/agentic-research/skelmerge/internal/merge"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve list_fragments and build_character over MCP on stdio",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openCatalog()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		builder := merge.NewBuilder(osfs.New("/"), cfg.WeightThreshold)
		log.Printf("MCP: serving catalog %s on stdio", cfg.Catalog)
		return mcpserver.New(store, builder, cfg.RuntimeVersion).Serve()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
