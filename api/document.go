package api

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Top-level document fields the merge understands.
const (
	FieldSkeleton   = "skeleton"
	FieldBones      = "bones"
	FieldSlots      = "slots"
	FieldIK         = "ik"
	FieldTransform  = "transform"
	FieldPath       = "path"
	FieldSkins      = "skins"
	FieldAnimations = "animations"
)

var ErrNotObject = errors.New("document is not a JSON object")

// Document is a skeleton document. Top-level keys keep their order and any
// field nobody interprets is carried through verbatim.
type Document struct {
	fields *Object
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{fields: NewObject()}
}

// ParseDocument decodes a skeleton document.
func ParseDocument(data []byte) (*Document, error) {
	d := &Document{}
	if err := d.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Document) MarshalJSON() ([]byte, error) {
	return marshalObject(d.fields)
}

func (d *Document) UnmarshalJSON(data []byte) error {
	if firstByte(data) != '{' {
		return ErrNotObject
	}
	o, err := unmarshalObject(data)
	if err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	d.fields = o
	return nil
}

// Clone returns a deep copy.
func (d *Document) Clone() *Document {
	return &Document{fields: CloneObject(d.fields)}
}

// Keys lists the top-level fields in order.
func (d *Document) Keys() []string {
	return Keys(d.fields)
}

func (d *Document) Has(key string) bool {
	_, ok := d.Raw(key)
	return ok
}

func (d *Document) Raw(key string) (json.RawMessage, bool) {
	if d.fields == nil {
		return nil, false
	}
	return d.fields.Get(key)
}

func (d *Document) SetRaw(key string, raw json.RawMessage) {
	d.ensure()
	d.fields.Set(key, raw)
}

// Set marshals v into the top-level field key, keeping its position if present.
func (d *Document) Set(key string, v any) error {
	d.ensure()
	if err := SetValue(d.fields, key, v); err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return nil
}

func (d *Document) Delete(key string) {
	if d.fields != nil {
		d.fields.Delete(key)
	}
}

// Bones decodes the bones array. A missing field yields nil.
func (d *Document) Bones() ([]Bone, error) {
	var bones []Bone
	if _, err := d.decode(FieldBones, &bones); err != nil {
		return nil, err
	}
	return bones, nil
}

// Slots decodes the slots array. A missing field yields nil.
func (d *Document) Slots() ([]*Slot, error) {
	var slots []*Slot
	if _, err := d.decode(FieldSlots, &slots); err != nil {
		return nil, err
	}
	return slots, nil
}

// Skins decodes the skins; a missing field yields an empty collection.
func (d *Document) Skins() (*Skins, error) {
	skins := NewSkins()
	if _, err := d.decode(FieldSkins, skins); err != nil {
		return nil, err
	}
	return skins, nil
}

// Animations decodes the animations map (name to opaque animation data).
func (d *Document) Animations() (*Object, error) {
	return d.object(FieldAnimations)
}

// Skeleton decodes the metadata block.
func (d *Document) Skeleton() (*Object, error) {
	return d.object(FieldSkeleton)
}

func (d *Document) object(key string) (*Object, error) {
	raw, ok := d.Raw(key)
	if !ok {
		return NewObject(), nil
	}
	if firstByte(raw) != '{' && !isNull(raw) {
		return nil, fmt.Errorf("decode %s: expected object", key)
	}
	o, err := unmarshalObject(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return o, nil
}

func (d *Document) decode(key string, v any) (bool, error) {
	raw, ok := d.Raw(key)
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (d *Document) ensure() {
	if d.fields == nil {
		d.fields = NewObject()
	}
}
