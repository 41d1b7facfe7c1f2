package api

import "path/filepath"

// FragmentKind is the type tag the catalog assigns to a fragment
// (e.g. "Tops", "Pants", "BaseBody"). The merge never derives it itself.
type FragmentKind string

const (
	// KindBaseBody marks the body-base fragment. Its pose-variant hand art
	// is pruned during the merge.
	KindBaseBody FragmentKind = "BaseBody"
	// KindAction marks an animation fragment.
	KindAction FragmentKind = "Action"
)

// Fragment describes one independently-authored input to a build.
type Fragment struct {
	// ID is the content-derived identifier (folder MD5). Empty for ad-hoc paths.
	ID string `json:"id,omitempty"`
	// Kind is the catalog type tag.
	Kind FragmentKind `json:"kind"`
	// Path is the fragment directory for clothing, and the action file
	// (or its directory) for animations.
	Path string `json:"path"`
	// Label is the display name chosen in the catalog (optional).
	Label string `json:"label,omitempty"`
}

// IsAnimation reports whether the fragment carries animations.
func (f Fragment) IsAnimation() bool {
	return f.Kind == KindAction
}

// String returns the most human-friendly identifier available.
func (f Fragment) String() string {
	switch {
	case f.Label != "":
		return f.Label
	case f.ID != "":
		return f.ID
	default:
		return filepath.Base(f.Path)
	}
}
