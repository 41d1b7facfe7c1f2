// Package mesh rewrites legacy skinned-mesh attachments into the runtime's
// single mesh form.
package mesh

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/RoaringBitmap/roaring"

	"github.com/agentic-research/skelmerge/api"
)

const (
	TypeMesh        = "mesh"
	TypeSkinnedMesh = "skinnedmesh"

	// DefaultThreshold bounds the first vertex value of a weighted stream:
	// a plausible bone count is a positive integer below it.
	DefaultThreshold = 20

	// HintField, when present on an attachment, states the encoding
	// explicitly and overrides the first-value heuristic.
	HintField = "weighted"
)

// Encoding is the vertex encoding of a mesh attachment.
type Encoding int

const (
	EncodingNone Encoding = iota // not a legacy skinned mesh
	EncodingUnweighted
	EncodingWeighted
)

func (e Encoding) String() string {
	switch e {
	case EncodingUnweighted:
		return "unweighted"
	case EncodingWeighted:
		return "weighted"
	default:
		return "none"
	}
}

// Result is the outcome of normalizing one attachment.
type Result struct {
	Attachment api.Attachment
	Encoding   Encoding
	// BoneRefs holds the bone indices referenced by a weighted stream; nil otherwise.
	BoneRefs *roaring.Bitmap
}

// Normalizer converts skinnedmesh attachments. The zero value uses DefaultThreshold.
type Normalizer struct {
	Threshold float64
}

func NewNormalizer(threshold float64) *Normalizer {
	return &Normalizer{Threshold: threshold}
}

// Normalize returns att in canonical form. Attachments that are not
// skinned meshes are returned unchanged.
func (n *Normalizer) Normalize(att api.Attachment) (api.Attachment, error) {
	res, err := n.NormalizeDetailed(att)
	if err != nil {
		return api.Attachment{}, err
	}
	return res.Attachment, nil
}

// NormalizeDetailed is Normalize plus the detected encoding and bone references.
func (n *Normalizer) NormalizeDetailed(att api.Attachment) (Result, error) {
	if att.Type() != TypeSkinnedMesh {
		return Result{Attachment: att, Encoding: EncodingNone}, nil
	}

	values, err := vertexValues(att)
	if err != nil {
		return Result{}, err
	}

	enc, err := n.Classify(att, values)
	if err != nil {
		return Result{}, err
	}

	out := api.NewAttachment(TypeMesh)
	copyOr(&out, att, "uvs", "[]")
	copyOr(&out, att, "triangles", "[]")
	copyOr(&out, att, "vertices", "[]")
	copyOr(&out, att, "hull", "0")
	if enc == EncodingUnweighted {
		return Result{Attachment: out, Encoding: enc}, nil
	}

	vertices, err := ParseWeighted(values)
	if err != nil {
		return Result{}, err
	}
	for _, key := range []string{"edges", "width", "height"} {
		if raw, ok := att.Raw(key); ok {
			out.SetRaw(key, raw)
		}
	}
	return Result{Attachment: out, Encoding: enc, BoneRefs: BoneRefs(vertices)}, nil
}

// Classify decides how the vertices of a skinnedmesh are encoded. An explicit
// hint field wins; otherwise a first value that is a positive integer below
// the threshold marks a weighted stream.
func (n *Normalizer) Classify(att api.Attachment, values []json.Number) (Encoding, error) {
	if raw, ok := att.Raw(HintField); ok {
		var weighted bool
		if err := json.Unmarshal(raw, &weighted); err != nil {
			return EncodingNone, fmt.Errorf("%s hint: %w", HintField, err)
		}
		if weighted {
			return EncodingWeighted, nil
		}
		return EncodingUnweighted, nil
	}

	if len(values) == 0 {
		return EncodingUnweighted, nil
	}
	first, err := values[0].Float64()
	if err != nil {
		return EncodingUnweighted, nil
	}
	if first > 0 && first < n.threshold() && first == math.Trunc(first) {
		return EncodingWeighted, nil
	}
	return EncodingUnweighted, nil
}

func (n *Normalizer) threshold() float64 {
	if n == nil || n.Threshold <= 0 {
		return DefaultThreshold
	}
	return n.Threshold
}

func vertexValues(att api.Attachment) ([]json.Number, error) {
	raw, ok := att.Raw("vertices")
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var values []json.Number
	if err := dec.Decode(&values); err != nil {
		return nil, fmt.Errorf("vertices: %w", err)
	}
	return values, nil
}

func copyOr(dst *api.Attachment, src api.Attachment, key, fallback string) {
	if raw, ok := src.Raw(key); ok {
		dst.SetRaw(key, raw)
		return
	}
	dst.SetRaw(key, json.RawMessage(fallback))
}
