package api

import (
	"encoding/json"
	"fmt"
)

// DefaultAttachmentType is what the runtime assumes when an attachment has no "type".
const DefaultAttachmentType = "region"

// Bone is one entry of a document's bones array. Only the name and parent
// are interpreted; transform fields pass through unmodified.
type Bone struct {
	fields *Object
}

// NewBone builds a bone with the given name and optional parent.
func NewBone(name, parent string) Bone {
	o := NewObject()
	o.Set("name", stringRaw(name))
	if parent != "" {
		o.Set("parent", stringRaw(parent))
	}
	return Bone{fields: o}
}

func (b Bone) Name() string {
	s, _ := GetString(b.fields, "name")
	return s
}

func (b Bone) Parent() string {
	s, _ := GetString(b.fields, "parent")
	return s
}

// Raw returns the raw JSON of a bone field.
func (b Bone) Raw(key string) (json.RawMessage, bool) {
	if b.fields == nil {
		return nil, false
	}
	return b.fields.Get(key)
}

// Set stores an arbitrary field on the bone.
func (b *Bone) Set(key string, v any) error {
	if b.fields == nil {
		b.fields = NewObject()
	}
	return SetValue(b.fields, key, v)
}

func (b Bone) MarshalJSON() ([]byte, error) {
	return marshalObject(b.fields)
}

func (b *Bone) UnmarshalJSON(data []byte) error {
	o, err := unmarshalObject(data)
	if err != nil {
		return fmt.Errorf("decode bone: %w", err)
	}
	b.fields = o
	return nil
}

// Slot is one entry of a document's slots array.
type Slot struct {
	fields *Object
}

// NewSlot builds a slot bound to bone. A nil attachment is written as null.
func NewSlot(name, bone string, attachment *string) *Slot {
	s := &Slot{fields: NewObject()}
	s.fields.Set("name", stringRaw(name))
	s.fields.Set("bone", stringRaw(bone))
	s.SetAttachment(attachment)
	return s
}

func (s *Slot) Name() string {
	n, _ := GetString(s.fields, "name")
	return n
}

// Bone returns the name of the bone the slot is bound to.
func (s *Slot) Bone() string {
	n, _ := GetString(s.fields, "bone")
	return n
}

func (s *Slot) SetBone(name string) {
	s.ensure()
	s.fields.Set("bone", stringRaw(name))
}

// Attachment returns the currently visible attachment; false when null or absent.
func (s *Slot) Attachment() (string, bool) {
	return GetString(s.fields, "attachment")
}

func (s *Slot) SetAttachment(name *string) {
	s.ensure()
	if name == nil {
		s.fields.Set("attachment", json.RawMessage("null"))
		return
	}
	s.fields.Set("attachment", stringRaw(*name))
}

// Clone returns an independent copy of the slot.
func (s *Slot) Clone() *Slot {
	return &Slot{fields: CloneObject(s.fields)}
}

func (s *Slot) ensure() {
	if s.fields == nil {
		s.fields = NewObject()
	}
}

func (s *Slot) MarshalJSON() ([]byte, error) {
	return marshalObject(s.fields)
}

func (s *Slot) UnmarshalJSON(data []byte) error {
	o, err := unmarshalObject(data)
	if err != nil {
		return fmt.Errorf("decode slot: %w", err)
	}
	s.fields = o
	return nil
}

// Attachment is a tagged attachment record. Mesh-family attachments carry
// uvs, triangles, vertices and hull; every other tag is opaque.
type Attachment struct {
	fields *Object
}

// NewAttachment returns an attachment carrying only its type tag.
func NewAttachment(kind string) Attachment {
	o := NewObject()
	o.Set("type", stringRaw(kind))
	return Attachment{fields: o}
}

// Type returns the attachment tag, defaulting to "region" like the runtime.
func (a Attachment) Type() string {
	if t, ok := GetString(a.fields, "type"); ok {
		return t
	}
	return DefaultAttachmentType
}

func (a Attachment) Raw(key string) (json.RawMessage, bool) {
	if a.fields == nil {
		return nil, false
	}
	return a.fields.Get(key)
}

func (a Attachment) Has(key string) bool {
	_, ok := a.Raw(key)
	return ok
}

// Keys lists the attachment fields in order.
func (a Attachment) Keys() []string {
	return Keys(a.fields)
}

func (a *Attachment) Set(key string, v any) error {
	if a.fields == nil {
		a.fields = NewObject()
	}
	return SetValue(a.fields, key, v)
}

func (a *Attachment) SetRaw(key string, raw json.RawMessage) {
	if a.fields == nil {
		a.fields = NewObject()
	}
	a.fields.Set(key, raw)
}

func (a Attachment) MarshalJSON() ([]byte, error) {
	return marshalObject(a.fields)
}

func (a *Attachment) UnmarshalJSON(data []byte) error {
	if firstByte(data) != '{' {
		return fmt.Errorf("decode attachment: expected object")
	}
	o, err := unmarshalObject(data)
	if err != nil {
		return fmt.Errorf("decode attachment: %w", err)
	}
	a.fields = o
	return nil
}
