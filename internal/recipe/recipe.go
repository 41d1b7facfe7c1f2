// Package recipe decodes HCL build recipes: a declarative list of the base
// skeleton, the fragments to apply and where to write the result.
//
//	base            = "assets/role.json"
//	output          = "output/hero"
//	runtime_version = "4.2.0"
//
//	fragment "BaseBody" { path = "assets/body" }
//	fragment "Tops"     { id = "0123456789abcdef0123456789abcdef" }
//	animation           { path = "actions/idle/action.json" }
package recipe

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/agentic-research/skelmerge/api"
)

var ErrInvalid = errors.New("invalid recipe")

// Recipe is a decoded recipe file.
type Recipe struct {
	Base           string          `hcl:"base"`
	Output         string          `hcl:"output"`
	RuntimeVersion string          `hcl:"runtime_version,optional"`
	Fragments      []FragmentBlock `hcl:"fragment,block"`
	Animation      *AnimationBlock `hcl:"animation,block"`

	// Dir anchors relative paths; it is the recipe file's directory.
	Dir string
}

// FragmentBlock selects a clothing fragment by catalog id or by directory.
type FragmentBlock struct {
	Kind  string `hcl:"kind,label"`
	ID    string `hcl:"id,optional"`
	Path  string `hcl:"path,optional"`
	Label string `hcl:"label,optional"`
}

// AnimationBlock selects the animation fragment.
type AnimationBlock struct {
	ID   string `hcl:"id,optional"`
	Path string `hcl:"path,optional"`
}

// Parse decodes recipe source. filename is only used in diagnostics.
func Parse(src []byte, filename string) (*Recipe, error) {
	f, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parse %s: %w", filename, diags)
	}
	var r Recipe
	if diags := gohcl.DecodeBody(f.Body, nil, &r); diags.HasErrors() {
		return nil, fmt.Errorf("decode %s: %w", filename, diags)
	}
	if err := r.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return &r, nil
}

// Load reads and decodes the recipe at path.
func Load(path string) (*Recipe, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read recipe: %w", err)
	}
	r, err := Parse(src, path)
	if err != nil {
		return nil, err
	}
	r.Dir = filepath.Dir(path)
	return r, nil
}

func (r *Recipe) validate() error {
	if r.Base == "" || r.Output == "" {
		return fmt.Errorf("%w: base and output must not be empty", ErrInvalid)
	}
	for i, f := range r.Fragments {
		if (f.ID == "") == (f.Path == "") {
			return fmt.Errorf("%w: fragment %d (%s): exactly one of id or path is required", ErrInvalid, i, f.Kind)
		}
		if api.FragmentKind(f.Kind) == api.KindAction {
			return fmt.Errorf("%w: fragment %d: use an animation block for %s", ErrInvalid, i, f.Kind)
		}
	}
	if a := r.Animation; a != nil && (a.ID == "") == (a.Path == "") {
		return fmt.Errorf("%w: animation: exactly one of id or path is required", ErrInvalid)
	}
	return nil
}

// BasePath returns the base document path.
func (r *Recipe) BasePath() string {
	return r.path(r.Base)
}

// OutputDir returns the output directory.
func (r *Recipe) OutputDir() string {
	return r.path(r.Output)
}

// Lookup resolves a catalog id to a fragment.
type Lookup func(id string) (api.Fragment, error)

// Resolve returns the fragments in recipe order with the animation last.
// lookup may be nil when the recipe only uses paths.
func (r *Recipe) Resolve(lookup Lookup) ([]api.Fragment, error) {
	var out []api.Fragment
	for _, b := range r.Fragments {
		if b.ID == "" {
			out = append(out, api.Fragment{Kind: api.FragmentKind(b.Kind), Path: r.path(b.Path), Label: b.Label})
			continue
		}
		f, err := r.lookup(lookup, b.ID)
		if err != nil {
			return nil, err
		}
		if f.IsAnimation() {
			return nil, fmt.Errorf("%w: fragment %s is an animation; use the animation block", ErrInvalid, b.ID)
		}
		if b.Label != "" {
			f.Label = b.Label
		}
		out = append(out, f)
	}

	if a := r.Animation; a != nil {
		if a.ID == "" {
			out = append(out, api.Fragment{Kind: api.KindAction, Path: r.path(a.Path)})
		} else {
			f, err := r.lookup(lookup, a.ID)
			if err != nil {
				return nil, err
			}
			if !f.IsAnimation() {
				return nil, fmt.Errorf("%w: animation %s is a %s fragment", ErrInvalid, a.ID, f.Kind)
			}
			out = append(out, f)
		}
	}
	return out, nil
}

func (r *Recipe) lookup(lookup Lookup, id string) (api.Fragment, error) {
	if lookup == nil {
		return api.Fragment{}, fmt.Errorf("%w: fragment %s needs a catalog", ErrInvalid, id)
	}
	f, err := lookup(id)
	if err != nil {
		return api.Fragment{}, fmt.Errorf("resolve %s: %w", id, err)
	}
	return f, nil
}

func (r *Recipe) path(p string) string {
	if p == "" || filepath.IsAbs(p) || r.Dir == "" {
		return p
	}
	return filepath.Join(r.Dir, p)
}
