package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"

	"github.com/agentic-research/skelmerge/api"
	"github.com/agentic-research/skelmerge/internal/catalog"
)

var (
	listJSON       bool
	statsJSON      bool
	statsBuilds    int
	labelDesc      string
	resetConfirmed bool
	importVerbose  bool
)

var importCmd = &cobra.Command{
	Use:   "import [source-dir]",
	Short: "Register hash-named asset folders in the catalog",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openCatalog()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		sum, err := runImport(store, osfs.New("/"), args[0])
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(w, "Imported %d of %d folders (%d skipped, %d failed)\n",
			sum.Success, sum.Total, sum.Skipped, sum.Failed)
		for _, d := range sum.Details {
			if importVerbose || d.Status == catalog.ImportFailed {
				_, _ = fmt.Fprintf(w, "  %s %s %s\n", d.Status, d.Hash, d.Reason)
			}
		}
		return nil
	},
}

func runImport(store *catalog.Store, fsys billy.Filesystem, dir string) (*catalog.ImportSummary, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("source path: %w", err)
	}
	im := &catalog.Importer{FS: fsys, Store: store}
	return im.Scan(abs)
}

var listCmd = &cobra.Command{
	Use:   "list [type]",
	Short: "List clothing types, the items of a type, or animations (type Action)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openCatalog()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		var kind string
		if len(args) == 1 {
			kind = args[0]
		}
		return runList(cmd.OutOrStdout(), store, kind, listJSON)
	},
}

func runList(w io.Writer, store *catalog.Store, kind string, asJSON bool) error {
	switch kind {
	case "":
		types, err := store.Types()
		if err != nil {
			return err
		}
		if asJSON {
			return writeJSON(w, types)
		}
		for _, t := range types {
			_, _ = fmt.Fprintln(w, t)
		}
	case string(api.KindAction):
		anims, err := store.AllAnimations()
		if err != nil {
			return err
		}
		if asJSON {
			return writeJSON(w, anims)
		}
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for _, a := range anims {
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", a.Hash, a.ActionName, a.SourcePath)
		}
		return tw.Flush()
	default:
		items, err := store.ByType(kind)
		if err != nil {
			return err
		}
		if asJSON {
			return writeJSON(w, items)
		}
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for _, it := range items {
			label := it.Label
			if label == "" {
				label = "-"
			}
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", it.Hash, label, it.SourcePath)
		}
		return tw.Flush()
	}
	return nil
}

var labelCmd = &cobra.Command{
	Use:   "label <id> <label>",
	Short: "Set the display label of a clothing item; an empty label clears it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openCatalog()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		it, err := store.ByID(args[0])
		if err != nil {
			return fmt.Errorf("resolve %s: %w", args[0], err)
		}
		if _, err := store.UpdateLabel(it.Hash, args[1], labelDesc); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Labeled %s\n", it.Hash)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Remove a clothing item or animation from the catalog",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openCatalog()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		f, err := store.Fragment(args[0])
		if err != nil {
			return fmt.Errorf("resolve %s: %w", args[0], err)
		}
		ok, err := store.Delete(f.ID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("delete %s: %w", f.ID, catalog.ErrNotFound)
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", f.ID)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show catalog totals, per-type counts and recent builds",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openCatalog()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		return runStats(cmd.OutOrStdout(), store, statsBuilds, statsJSON)
	},
}

func runStats(w io.Writer, store *catalog.Store, builds int, asJSON bool) error {
	st, err := store.Stats()
	if err != nil {
		return err
	}
	recent, err := store.Builds(builds)
	if err != nil {
		return err
	}
	if asJSON {
		return writeJSON(w, struct {
			*catalog.Stats
			Recent []catalog.Build `json:"recent_builds"`
		}{st, recent})
	}

	_, _ = fmt.Fprintf(w, "Items: %d  Animations: %d  Builds: %d\n", st.Items, st.Animations, st.Builds)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, ts := range st.Types {
		_, _ = fmt.Fprintf(tw, "  %s\t%d\t%d labeled\n", ts.Type, ts.Count, ts.Labeled)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, b := range recent {
		_, _ = fmt.Fprintf(w, "  %s %s %s (%d fragments)\n", b.CreatedAt, b.ID, b.OutputPath, len(b.Fragments))
	}
	return nil
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Empty every catalog table",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !resetConfirmed {
			return errors.New("reset deletes every catalog record; pass --yes to confirm")
		}
		store, err := openCatalog()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		if err := store.Reset(); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Catalog %s reset\n", cfg.Catalog)
		return nil
	},
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	importCmd.Flags().BoolVarP(&importVerbose, "verbose", "v", false, "Print every folder's outcome")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Print JSON")
	labelCmd.Flags().StringVar(&labelDesc, "description", "", "Description stored with the label")
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Print JSON")
	statsCmd.Flags().IntVar(&statsBuilds, "builds", 5, "Number of recent builds to show")
	resetCmd.Flags().BoolVarP(&resetConfirmed, "yes", "y", false, "Confirm the reset")

	rootCmd.AddCommand(importCmd, listCmd, labelCmd, deleteCmd, statsCmd, resetCmd)
}
