package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/agentic-research/skelmerge/internal/catalog"
	"github.com/agentic-research/skelmerge/internal/config"
)

var (
	catalogPath string
	cfg         *config.Config
)

func init() {
	rootCmd.PersistentFlags().StringVar(&catalogPath, "catalog", "", "Path to the catalog database (default $SKELMERGE_CATALOG or database/clothing.db)")
}

var rootCmd = &cobra.Command{
	Use:           "skelmerge",
	Short:         "skelmerge: assemble skeletal characters from clothing and animation fragments",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return err
		}
		if catalogPath != "" {
			c.Catalog = catalogPath
		}
		cfg = c
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func openCatalog() (*catalog.Store, error) {
	store, err := catalog.Open(cfg.Catalog)
	if err != nil {
		return nil, fmt.Errorf("open catalog %s: %w", cfg.Catalog, err)
	}
	return store, nil
}

// outputDir places a bare output name under the configured output root.
func outputDir(out string) string {
	if filepath.IsAbs(out) || filepath.Dir(out) != "." {
		return out
	}
	return filepath.Join(cfg.OutputRoot, out)
}
