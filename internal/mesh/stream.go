package mesh

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/RoaringBitmap/roaring"
)

// Influence is one (boneIndex, x, y, weight) group of a weighted vertex.
// Coordinates keep their exact JSON text.
type Influence struct {
	Bone   int
	X      json.Number
	Y      json.Number
	Weight json.Number
}

// Vertex is one logical vertex of a weighted stream.
type Vertex struct {
	Influences []Influence
}

// StreamError reports a packed vertex stream that does not match its own
// per-vertex bone counts.
type StreamError struct {
	Offset int // index into the flat vertices array
	Reason string
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("weighted vertex stream: offset %d: %s", e.Offset, e.Reason)
}

// ParseWeighted decodes a packed stream: for each vertex a bone count n,
// then n groups of (boneIndex, x, y, weight). The stream must be consumed
// exactly; a trailing partial vertex is an error, never truncated.
func ParseWeighted(values []json.Number) ([]Vertex, error) {
	var vertices []Vertex
	for i := 0; i < len(values); {
		count, err := index(values[i])
		if err != nil {
			return nil, &StreamError{Offset: i, Reason: "bone count " + err.Error()}
		}
		if count == 0 {
			return nil, &StreamError{Offset: i, Reason: "bone count is zero"}
		}
		start := i
		i++
		if remaining := len(values) - i; remaining < count*4 {
			return nil, &StreamError{
				Offset: start,
				Reason: fmt.Sprintf("vertex declares %d bones but only %d values remain", count, remaining),
			}
		}
		v := Vertex{Influences: make([]Influence, 0, count)}
		for b := 0; b < count; b++ {
			bone, err := index(values[i])
			if err != nil {
				return nil, &StreamError{Offset: i, Reason: "bone index " + err.Error()}
			}
			for _, n := range values[i+1 : i+4] {
				if _, err := n.Float64(); err != nil {
					return nil, &StreamError{Offset: i, Reason: fmt.Sprintf("value %q is not a number", n)}
				}
			}
			v.Influences = append(v.Influences, Influence{
				Bone:   bone,
				X:      values[i+1],
				Y:      values[i+2],
				Weight: values[i+3],
			})
			i += 4
		}
		vertices = append(vertices, v)
	}
	return vertices, nil
}

// Pack re-encodes vertices into the flat stream form.
func Pack(vertices []Vertex) []json.Number {
	var out []json.Number
	for _, v := range vertices {
		out = append(out, json.Number(fmt.Sprint(len(v.Influences))))
		for _, in := range v.Influences {
			out = append(out, json.Number(fmt.Sprint(in.Bone)), in.X, in.Y, in.Weight)
		}
	}
	return out
}

// BoneRefs collects the distinct bone indices referenced by vertices.
func BoneRefs(vertices []Vertex) *roaring.Bitmap {
	refs := roaring.New()
	for _, v := range vertices {
		for _, in := range v.Influences {
			refs.Add(uint32(in.Bone))
		}
	}
	return refs
}

func index(n json.Number) (int, error) {
	f, err := n.Float64()
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", n)
	}
	if f < 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, fmt.Errorf("%q is not a non-negative integer", n)
	}
	return int(f), nil
}
