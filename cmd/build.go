package cmd

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"

	"github.com/agentic-research/skelmerge/api"
	"github.com/agentic-research/skelmerge/internal/catalog"
	"github.com/agentic-research/skelmerge/internal/merge"
	"github.com/agentic-research/skelmerge/internal/recipe"
)

var (
	buildBase           string
	buildOut            string
	buildFragments      []string
	buildAnimation      string
	buildAnimationPath  string
	buildRecipe         string
	buildRuntimeVersion string
	buildThreshold      float64
	buildNoRecord       bool
)

// buildOptions is everything one build needs besides the catalog.
type buildOptions struct {
	Base           string
	Output         string
	Fragments      []string
	Animation      string
	AnimationPath  string
	Recipe         string
	RuntimeVersion string
	Threshold      float64
	Record         bool
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Merge fragments into a base skeleton and write the character",
	Long: `Merge fragments into a base skeleton and write <out>/<basename(out)>.json
plus every image the fragments provide.

Fragments are applied in flag order. Each --fragment is a catalog id (or a
unique id prefix) or Kind=path for a fragment directory outside the
catalog. The animation, if any, is applied last.`,
	Example: `  skelmerge build --base assets/role.json --out hero -f 0123 -f BaseBody=assets/body
  skelmerge build --recipe hero.hcl`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := buildOptions{
			Base:           buildBase,
			Output:         buildOut,
			Fragments:      buildFragments,
			Animation:      buildAnimation,
			AnimationPath:  buildAnimationPath,
			Recipe:         buildRecipe,
			RuntimeVersion: buildRuntimeVersion,
			Threshold:      cfg.WeightThreshold,
			Record:         !buildNoRecord,
		}
		if cmd.Flags().Changed("weight-threshold") {
			opts.Threshold = buildThreshold
		}

		store, err := openCatalog()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		report, err := runBuild(store, osfs.New("/"), opts)
		if report != nil {
			printReport(cmd.OutOrStdout(), report)
		}
		return err
	},
}

func init() {
	buildCmd.Flags().StringVarP(&buildBase, "base", "b", "", "Base skeleton document")
	buildCmd.Flags().StringVarP(&buildOut, "out", "o", "", "Output directory; a bare name goes under $SKELMERGE_OUTPUT_ROOT")
	buildCmd.Flags().StringArrayVarP(&buildFragments, "fragment", "f", nil, "Catalog id or Kind=path (repeatable, applied in order)")
	buildCmd.Flags().StringVarP(&buildAnimation, "animation", "a", "", "Catalog id of the animation fragment")
	buildCmd.Flags().StringVar(&buildAnimationPath, "animation-path", "", "Animation document or directory outside the catalog")
	buildCmd.Flags().StringVarP(&buildRecipe, "recipe", "r", "", "HCL build recipe")
	buildCmd.Flags().StringVar(&buildRuntimeVersion, "runtime-version", "", "Runtime version stamped into the skeleton block")
	buildCmd.Flags().Float64Var(&buildThreshold, "weight-threshold", 0, "Largest first value still read as a weighted vertex bone count")
	buildCmd.Flags().BoolVar(&buildNoRecord, "no-record", false, "Do not record the build in the catalog")
	rootCmd.AddCommand(buildCmd)
}

// runBuild resolves opts into a merge request and runs it on fsys. Paths are
// made absolute, so fsys is expected to be rooted at "/".
func runBuild(store *catalog.Store, fsys billy.Filesystem, opts buildOptions) (*merge.Report, error) {
	if opts.Threshold <= 0 {
		return nil, fmt.Errorf("weight threshold must be positive, got %v", opts.Threshold)
	}

	req, err := buildRequest(store, opts)
	if err != nil {
		return nil, err
	}
	if req.BasePath, err = filepath.Abs(req.BasePath); err != nil {
		return nil, fmt.Errorf("base path: %w", err)
	}
	if req.OutputDir, err = filepath.Abs(req.OutputDir); err != nil {
		return nil, fmt.Errorf("output path: %w", err)
	}
	for i := range req.Fragments {
		if req.Fragments[i].Path, err = filepath.Abs(req.Fragments[i].Path); err != nil {
			return nil, fmt.Errorf("fragment path: %w", err)
		}
	}

	report, err := merge.NewBuilder(fsys, opts.Threshold).Build(req)
	if err != nil {
		return report, err
	}
	if opts.Record {
		if err := store.RecordBuild(report); err != nil {
			return report, err
		}
	}
	return report, nil
}

func buildRequest(store *catalog.Store, opts buildOptions) (merge.Request, error) {
	if opts.Recipe != "" {
		return recipeRequest(store, opts)
	}
	if opts.Base == "" || opts.Output == "" {
		return merge.Request{}, errors.New("--base and --out are required without --recipe")
	}
	if opts.Animation != "" && opts.AnimationPath != "" {
		return merge.Request{}, errors.New("--animation and --animation-path are mutually exclusive")
	}

	var frags []api.Fragment
	for _, v := range opts.Fragments {
		f, err := parseFragment(store, v)
		if err != nil {
			return merge.Request{}, err
		}
		if f.IsAnimation() {
			return merge.Request{}, fmt.Errorf("fragment %s is an animation; use --animation", v)
		}
		frags = append(frags, f)
	}
	switch {
	case opts.Animation != "":
		f, err := store.Fragment(opts.Animation)
		if err != nil {
			return merge.Request{}, fmt.Errorf("resolve %s: %w", opts.Animation, err)
		}
		if !f.IsAnimation() {
			return merge.Request{}, fmt.Errorf("%s is a %s fragment, not an animation", opts.Animation, f.Kind)
		}
		frags = append(frags, f)
	case opts.AnimationPath != "":
		frags = append(frags, api.Fragment{Kind: api.KindAction, Path: opts.AnimationPath})
	}

	return merge.Request{
		BasePath:       opts.Base,
		OutputDir:      outputDir(opts.Output),
		Fragments:      frags,
		RuntimeVersion: runtimeVersion(opts.RuntimeVersion, ""),
	}, nil
}

func recipeRequest(store *catalog.Store, opts buildOptions) (merge.Request, error) {
	if opts.Base != "" || opts.Output != "" || len(opts.Fragments) > 0 || opts.Animation != "" || opts.AnimationPath != "" {
		return merge.Request{}, errors.New("--recipe cannot be combined with --base, --out, --fragment or --animation")
	}
	r, err := recipe.Load(opts.Recipe)
	if err != nil {
		return merge.Request{}, err
	}
	frags, err := r.Resolve(store.Fragment)
	if err != nil {
		return merge.Request{}, err
	}
	return merge.Request{
		BasePath:       r.BasePath(),
		OutputDir:      r.OutputDir(),
		Fragments:      frags,
		RuntimeVersion: runtimeVersion(opts.RuntimeVersion, r.RuntimeVersion),
	}, nil
}

// parseFragment reads a --fragment value: Kind=path or a catalog id.
func parseFragment(store *catalog.Store, v string) (api.Fragment, error) {
	if kind, path, ok := strings.Cut(v, "="); ok {
		if kind == "" || path == "" {
			return api.Fragment{}, fmt.Errorf("fragment %q: want Kind=path", v)
		}
		return api.Fragment{Kind: api.FragmentKind(kind), Path: path}, nil
	}
	f, err := store.Fragment(v)
	if err != nil {
		return api.Fragment{}, fmt.Errorf("resolve %s: %w", v, err)
	}
	return f, nil
}

// runtimeVersion picks the flag, then the recipe, then the environment.
func runtimeVersion(flag, fromRecipe string) string {
	for _, v := range []string{flag, fromRecipe} {
		if v != "" {
			return v
		}
	}
	return cfg.RuntimeVersion
}

func printReport(w io.Writer, r *merge.Report) {
	_, _ = fmt.Fprintf(w, "Build %s\n", r.BuildID)
	if r.OutputPath != "" {
		_, _ = fmt.Fprintf(w, "  output:      %s\n", r.OutputPath)
	}
	_, _ = fmt.Fprintf(w, "  bones:       %d\n", r.Bones)
	_, _ = fmt.Fprintf(w, "  slots:       %d\n", r.Slots)
	_, _ = fmt.Fprintf(w, "  attachments: %d\n", r.Attachments)
	_, _ = fmt.Fprintf(w, "  images:      %d\n", r.Images)
	_, _ = fmt.Fprintf(w, "  fragments:   %d applied, %d skipped, %d failed\n",
		r.Count(merge.StatusApplied), r.Count(merge.StatusSkipped), r.Count(merge.StatusFailed))
	for _, f := range r.Fragments {
		if f.Status != merge.StatusApplied {
			_, _ = fmt.Fprintf(w, "  %s %s: %s\n", f.Status, f.Fragment, f.Reason)
		}
	}
	for _, e := range r.AttachmentErrors() {
		_, _ = fmt.Fprintf(w, "  dropped %s\n", e)
	}
}
