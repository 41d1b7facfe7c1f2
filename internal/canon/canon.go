// Package canon puts a merged document into the layout the runtime loader
// expects and writes it out.
package canon

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/agentic-research/skelmerge/api"
)

// DefaultRuntimeVersion is stamped into skeleton.spine.
const DefaultRuntimeVersion = "4.2.0"

// FieldOrder lists the top-level fields that lead the output, in order.
// Any other field follows in its original relative order.
var FieldOrder = []string{
	api.FieldSkeleton,
	api.FieldBones,
	api.FieldSlots,
	api.FieldIK,
	api.FieldTransform,
	api.FieldPath,
	api.FieldSkins,
	api.FieldAnimations,
}

// Finalize returns a copy of doc with the skeleton metadata stamped and the
// top-level fields reordered. The hash is cleared because the merged
// content no longer matches any authoring-tool hash.
func Finalize(doc *api.Document, runtimeVersion string) (*api.Document, error) {
	if runtimeVersion == "" {
		runtimeVersion = DefaultRuntimeVersion
	}

	skeleton, err := doc.Skeleton()
	if err != nil {
		return nil, err
	}
	if err := api.SetValue(skeleton, "spine", runtimeVersion); err != nil {
		return nil, err
	}
	if err := api.SetValue(skeleton, "hash", ""); err != nil {
		return nil, err
	}

	out := api.NewDocument()
	if err := out.Set(api.FieldSkeleton, skeleton); err != nil {
		return nil, err
	}
	for _, key := range FieldOrder[1:] {
		if raw, ok := doc.Raw(key); ok {
			out.SetRaw(key, raw)
		}
	}
	for _, key := range doc.Keys() {
		if !out.Has(key) {
			raw, _ := doc.Raw(key)
			out.SetRaw(key, raw)
		}
	}
	return out, nil
}

// Encode renders doc as two-space indented JSON followed by a newline.
// Non-ASCII text is written as is. Nested values are encoded by
// encoding/json, so <, > and & inside them come out as \u003c, \u003e and
// \u0026; the decoded value is unchanged.
func Encode(doc *api.Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return buf.Bytes(), nil
}

// Write encodes doc into name on fsys.
func Write(fsys billy.Filesystem, name string, doc *api.Document) error {
	data, err := Encode(doc)
	if err != nil {
		return err
	}
	if err := util.WriteFile(fsys, name, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
