package api

import (
	"encoding/json"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// DefaultSkin is the skin every merge writes into.
const DefaultSkin = "default"

// AttachmentSet maps attachment name to attachment for one slot.
type AttachmentSet = orderedmap.OrderedMap[string, Attachment]

// SlotAttachments maps slot name to that slot's attachments.
type SlotAttachments = orderedmap.OrderedMap[string, *AttachmentSet]

func NewAttachmentSet() *AttachmentSet {
	return orderedmap.New[string, Attachment]()
}

func NewSlotAttachments() *SlotAttachments {
	return orderedmap.New[string, *AttachmentSet]()
}

// EnsureSlot returns the attachment set for slot, creating it at the end if needed.
func EnsureSlot(sa *SlotAttachments, slot string) *AttachmentSet {
	if set, ok := sa.Get(slot); ok && set != nil {
		return set
	}
	set := NewAttachmentSet()
	sa.Set(slot, set)
	return set
}

// CountAttachments sums attachments over all slots.
func CountAttachments(sa *SlotAttachments) int {
	if sa == nil {
		return 0
	}
	n := 0
	for p := sa.Oldest(); p != nil; p = p.Next() {
		if p.Value != nil {
			n += p.Value.Len()
		}
	}
	return n
}

// Skin is one visual variant of a skeleton.
type Skin struct {
	Name        string
	Attachments *SlotAttachments

	// fields holds the whole skin entry for the array encoding, so keys
	// besides name/attachments (bones, ik, ...) survive.
	fields *Object
}

// Skins holds every skin of a document. Two encodings exist in the wild:
// the legacy object form {"default": {slot: {...}}} and the array form
// [{"name": "default", "attachments": {...}}]. The form that was read is
// the form that is written back.
type Skins struct {
	list      []*Skin
	arrayForm bool
}

// NewSkins returns an empty skin collection in the object form.
func NewSkins() *Skins {
	return &Skins{}
}

// ArrayForm reports whether the skins were read in the array encoding.
func (s *Skins) ArrayForm() bool {
	return s.arrayForm
}

// All returns the skins in document order.
func (s *Skins) All() []*Skin {
	return s.list
}

// Get returns the named skin or nil.
func (s *Skins) Get(name string) *Skin {
	for _, sk := range s.list {
		if sk.Name == name {
			return sk
		}
	}
	return nil
}

// Ensure returns the named skin, appending an empty one if needed.
func (s *Skins) Ensure(name string) *Skin {
	if sk := s.Get(name); sk != nil {
		return sk
	}
	sk := &Skin{Name: name, Attachments: NewSlotAttachments()}
	s.list = append(s.list, sk)
	return sk
}

func (s *Skins) MarshalJSON() ([]byte, error) {
	if s.arrayForm {
		entries := make([]json.RawMessage, 0, len(s.list))
		for _, sk := range s.list {
			fields := sk.fields
			if fields == nil {
				fields = NewObject()
				fields.Set("name", stringRaw(sk.Name))
			}
			if err := SetValue(fields, "attachments", sk.attachments()); err != nil {
				return nil, fmt.Errorf("encode skin %s: %w", sk.Name, err)
			}
			raw, err := fields.MarshalJSON()
			if err != nil {
				return nil, err
			}
			entries = append(entries, raw)
		}
		return json.Marshal(entries)
	}

	o := NewObject()
	for _, sk := range s.list {
		if err := SetValue(o, sk.Name, sk.attachments()); err != nil {
			return nil, fmt.Errorf("encode skin %s: %w", sk.Name, err)
		}
	}
	return o.MarshalJSON()
}

func (s *Skins) UnmarshalJSON(data []byte) error {
	s.list = nil
	s.arrayForm = false

	switch firstByte(data) {
	case '[':
		s.arrayForm = true
		var entries []json.RawMessage
		if err := json.Unmarshal(data, &entries); err != nil {
			return fmt.Errorf("decode skins: %w", err)
		}
		for i, raw := range entries {
			fields, err := unmarshalObject(raw)
			if err != nil {
				return fmt.Errorf("decode skin %d: %w", i, err)
			}
			name, _ := GetString(fields, "name")
			sk := &Skin{Name: name, fields: fields, Attachments: NewSlotAttachments()}
			if rawAtt, ok := fields.Get("attachments"); ok && !isNull(rawAtt) {
				if err := json.Unmarshal(rawAtt, sk.Attachments); err != nil {
					return fmt.Errorf("decode skin %s: %w", name, err)
				}
			}
			s.list = append(s.list, sk)
		}
		return nil
	case '{':
		o, err := unmarshalObject(data)
		if err != nil {
			return fmt.Errorf("decode skins: %w", err)
		}
		for p := o.Oldest(); p != nil; p = p.Next() {
			sk := &Skin{Name: p.Key, Attachments: NewSlotAttachments()}
			if !isNull(p.Value) {
				if err := json.Unmarshal(p.Value, sk.Attachments); err != nil {
					return fmt.Errorf("decode skin %s: %w", p.Key, err)
				}
			}
			s.list = append(s.list, sk)
		}
		return nil
	case 'n':
		return nil
	default:
		return fmt.Errorf("decode skins: expected object or array")
	}
}

func (sk *Skin) attachments() *SlotAttachments {
	if sk.Attachments == nil {
		sk.Attachments = NewSlotAttachments()
	}
	return sk.Attachments
}
