// Package bones binds slots to bones by name when a fragment does not say
// which bone a new slot belongs to.
package bones

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/agentic-research/skelmerge/api"
)

// RootName is the placeholder binding and the resolver's fallback.
const RootName = "root"

// Rule maps an anatomical keyword in a slot name to a substring of the bone
// that should carry it.
type Rule struct {
	Keyword string
	Target  string
}

// DefaultRules is evaluated top to bottom. Matching is by substring, so
// specific keywords must precede general ones ("HeadDress" before "Head"
// and "Hair"), otherwise head-dress slots bind to hair bones.
var DefaultRules = []Rule{
	{"HeadDress", "hairdresser"},
	{"Head", "head"},
	{"Eyeball", "eye"},
	{"Eyeliner", "eye"},
	{"Eyeskin", "eye"},
	{"White_Of_Eyes", "eye"},
	{"Eyebrow", "eyebrow"},
	{"Mouth", "mouth"},
	{"Nose", "nose"},
	{"Fringe", "head"},
	{"Hair", "head"},
	{"Tops", "spine"},
	{"Belt", "belt"},
	{"Calf", "calf"},
	{"Thigh", "thigh"},
	{"Foot", "foot"},
	{"Upperarm", "upperarm"},
	{"Forearm", "forearm"},
	{"Hand", "hand"},
	{"Shoes", "foot"},
	{"Pants", "pelvis"},
}

// DefaultPrefixes are clothing-type prefixes; at most one is stripped.
var DefaultPrefixes = []string{"BaseBody_", "Pants_", "Shoes_", "Tops_"}

// DefaultSuffixes are variant suffixes; at most one is stripped.
var DefaultSuffixes = []string{"_Front", "_Back", "_Left", "_Right"}

const (
	leftMarker  = "_Left"
	rightMarker = "_Right"
)

// Resolver picks a bone for a slot name. It is pure and deterministic.
type Resolver struct {
	Prefixes []string
	Suffixes []string
	Rules    []Rule
}

// NewResolver returns a resolver with the default tables.
func NewResolver() *Resolver {
	return &Resolver{
		Prefixes: DefaultPrefixes,
		Suffixes: DefaultSuffixes,
		Rules:    DefaultRules,
	}
}

// Resolve returns the name of the bone slotName should be bound to, or
// RootName when nothing plausible exists.
//
// Pass one compares the stripped base name to each rule keyword exactly;
// pass two looks for the keyword anywhere in the full slot name. Within a
// pass the first rule whose target substring names an existing bone wins.
func (r *Resolver) Resolve(slotName string, bones []api.Bone) string {
	fold := cases.Fold()
	base := fold.String(r.Base(slotName))
	full := fold.String(slotName)

	for _, rule := range r.Rules {
		if fold.String(rule.Keyword) != base {
			continue
		}
		if name, ok := rule.Match(slotName, bones); ok {
			return name
		}
	}

	for _, rule := range r.Rules {
		if !strings.Contains(full, fold.String(rule.Keyword)) {
			continue
		}
		if name, ok := rule.Match(slotName, bones); ok {
			return name
		}
	}

	return RootName
}

// Base strips one known prefix and then one known suffix from slotName.
func (r *Resolver) Base(slotName string) string {
	base := slotName
	for _, p := range r.Prefixes {
		if strings.HasPrefix(base, p) {
			base = base[len(p):]
			break
		}
	}
	for _, s := range r.Suffixes {
		if strings.HasSuffix(base, s) {
			base = base[:len(base)-len(s)]
			break
		}
	}
	return base
}

// Candidate returns the bone-name substring this rule searches for,
// specialised to the side marked in slotName.
func (rule Rule) Candidate(slotName string) string {
	switch {
	case strings.Contains(slotName, leftMarker):
		return rule.Target + "_left"
	case strings.Contains(slotName, rightMarker):
		return rule.Target + "_right"
	default:
		return rule.Target
	}
}

// Match returns the first bone whose name contains this rule's candidate
// for slotName, compared case-insensitively.
func (rule Rule) Match(slotName string, bones []api.Bone) (string, bool) {
	fold := cases.Fold()
	needle := fold.String(rule.Candidate(slotName))
	for _, b := range bones {
		if strings.Contains(fold.String(b.Name()), needle) {
			return b.Name(), true
		}
	}
	return "", false
}
