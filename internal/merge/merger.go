// Package merge combines a base skeleton with clothing and animation
// fragments into one document.
package merge

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"

	"github.com/agentic-research/skelmerge/api"
	"github.com/agentic-research/skelmerge/internal/bones"
	"github.com/agentic-research/skelmerge/internal/fragment"
	"github.com/agentic-research/skelmerge/internal/mesh"
)

const (
	handPrefix = "Hand_"
	handLeft   = "Hand_Left"
	handRight  = "Hand_Right"
)

// Merger applies fragments to a base document in order. Later fragments
// win every overwrite conflict except bones, where the first definition
// is kept.
type Merger struct {
	// Source is where fragment documents and images are read from.
	Source billy.Filesystem
	// Output receives copied images. Nil skips image copying.
	Output billy.Filesystem

	Normalizer *mesh.Normalizer
	Resolver   *bones.Resolver
}

// NewMerger returns a merger with the default normalizer and resolver.
func NewMerger(source, output billy.Filesystem) *Merger {
	return &Merger{
		Source:     source,
		Output:     output,
		Normalizer: mesh.NewNormalizer(mesh.DefaultThreshold),
		Resolver:   bones.NewResolver(),
	}
}

// state is the accumulating document. base is never touched.
type state struct {
	doc *api.Document

	bones     []api.Bone
	boneNames map[string]bool

	slots     []*api.Slot
	slotIndex map[string]*api.Slot

	skins  *api.Skins
	target *api.Skin

	animations   *api.Object
	animationsOK bool
}

// Merge returns a new document built from base and fragments along with a
// report. A non-nil error with a non-nil report means a fragment failed
// fatally after earlier work was done.
func (m *Merger) Merge(base *api.Document, fragments []api.Fragment) (*api.Document, *Report, error) {
	st, err := newState(base)
	if err != nil {
		return nil, nil, err
	}

	report := &Report{}
	for _, f := range fragments {
		res, err := m.apply(st, f)
		report.Fragments = append(report.Fragments, res)
		report.Images += res.Images
		if err != nil {
			return nil, report, err
		}
	}

	if err := st.flush(); err != nil {
		return nil, report, err
	}
	report.Bones = len(st.bones)
	report.Slots = len(st.slots)
	report.Attachments = api.CountAttachments(st.target.Attachments)
	return st.doc, report, nil
}

func newState(base *api.Document) (*state, error) {
	if base == nil || !base.Has(api.FieldBones) {
		return nil, fmt.Errorf("%w: missing %s", ErrBaseDocument, api.FieldBones)
	}
	doc := base.Clone()
	st := &state{
		doc:       doc,
		boneNames: make(map[string]bool),
		slotIndex: make(map[string]*api.Slot),
	}

	var err error
	if st.bones, err = doc.Bones(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBaseDocument, err)
	}
	for _, b := range st.bones {
		st.boneNames[b.Name()] = true
	}
	if st.slots, err = doc.Slots(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBaseDocument, err)
	}
	for _, s := range st.slots {
		st.slotIndex[s.Name()] = s
	}
	if st.skins, err = doc.Skins(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBaseDocument, err)
	}
	st.target = st.skins.Ensure(api.DefaultSkin)
	st.animationsOK = doc.Has(api.FieldAnimations)
	if st.animations, err = doc.Animations(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBaseDocument, err)
	}
	return st, nil
}

// flush writes the accumulated collections back into the document. Fields
// already present keep their position.
func (st *state) flush() error {
	if st.bones == nil {
		st.bones = []api.Bone{}
	}
	if st.slots == nil {
		st.slots = []*api.Slot{}
	}
	if err := st.doc.Set(api.FieldBones, st.bones); err != nil {
		return err
	}
	if err := st.doc.Set(api.FieldSlots, st.slots); err != nil {
		return err
	}
	if err := st.doc.Set(api.FieldSkins, st.skins); err != nil {
		return err
	}
	if st.animationsOK {
		if err := st.doc.Set(api.FieldAnimations, st.animations); err != nil {
			return err
		}
	}
	return nil
}

func (st *state) addBones(list []api.Bone) int {
	added := 0
	for _, b := range list {
		if st.boneNames[b.Name()] {
			continue
		}
		st.boneNames[b.Name()] = true
		st.bones = append(st.bones, b)
		added++
	}
	return added
}

func (st *state) addSlot(s *api.Slot) {
	st.slots = append(st.slots, s)
	st.slotIndex[s.Name()] = s
}

func (m *Merger) apply(st *state, f api.Fragment) (FragmentResult, error) {
	if f.IsAnimation() {
		return m.applyAction(st, f)
	}
	return m.applyClothing(st, f)
}

func (m *Merger) applyClothing(st *state, f api.Fragment) (FragmentResult, error) {
	res := FragmentResult{Fragment: f}

	c, err := fragment.LoadClothing(m.Source, f.Path)
	if err != nil {
		return skipped(res, err), nil
	}

	res.Bones = st.addBones(c.Bones)

	attachments := c.Attachments
	if f.Kind == api.KindBaseBody {
		attachments = filterBody(attachments)
	}

	for p := attachments.Oldest(); p != nil; p = p.Next() {
		slotName, set := p.Key, p.Value
		if set == nil {
			set = api.NewAttachmentSet()
		}

		slot, exists := st.slotIndex[slotName]
		if !exists {
			slot = api.NewSlot(slotName, m.resolver().Resolve(slotName, st.bones), nil)
			st.addSlot(slot)
			res.Slots++
		} else if slot.Bone() == bones.RootName {
			slot.SetBone(m.resolver().Resolve(slotName, st.bones))
		}

		written := m.mergeAttachments(st, &res, slotName, set)
		res.Attachments += len(written)
		// A new slot shows the first attachment that made it into the skin.
		if !exists && len(written) > 0 {
			slot.SetAttachment(&written[0])
		}
	}

	if err := m.copyImages(&res, f.Path, f.Kind == api.KindBaseBody); err != nil {
		return res, err
	}
	res.Status = StatusApplied
	return res, nil
}

func (m *Merger) applyAction(st *state, f api.Fragment) (FragmentResult, error) {
	res := FragmentResult{Fragment: f}

	a, file, err := fragment.LoadAction(m.Source, f.Path)
	if err != nil {
		return skipped(res, err), nil
	}

	res.Bones = st.addBones(a.Bones)
	for _, s := range a.Slots {
		if _, ok := st.slotIndex[s.Name()]; ok {
			continue
		}
		st.addSlot(s.Clone())
		res.Slots++
	}

	for _, skin := range a.Skins.All() {
		for p := skin.Attachments.Oldest(); p != nil; p = p.Next() {
			if p.Value == nil {
				continue
			}
			res.Attachments += len(m.mergeAttachments(st, &res, p.Key, p.Value))
		}
	}

	for p := a.Animations.Oldest(); p != nil; p = p.Next() {
		st.animations.Set(p.Key, p.Value)
		res.Animations++
	}
	st.animationsOK = true

	if err := m.copyImages(&res, filepath.Dir(file), false); err != nil {
		return res, err
	}
	res.Status = StatusApplied
	return res, nil
}

// mergeAttachments normalizes set into the target skin under slotName and
// returns the names written, in set order.
func (m *Merger) mergeAttachments(st *state, res *FragmentResult, slotName string, set *api.AttachmentSet) []string {
	dst := api.EnsureSlot(st.target.Attachments, slotName)
	var written []string
	for p := set.Oldest(); p != nil; p = p.Next() {
		out, err := m.normalizer().NormalizeDetailed(p.Value)
		if err != nil {
			aerr := &AttachmentError{Fragment: res.Fragment.String(), Slot: slotName, Attachment: p.Key, Err: err}
			log.Printf("Merger: %v", aerr)
			res.Errors = append(res.Errors, aerr)
			continue
		}
		if out.BoneRefs != nil && !out.BoneRefs.IsEmpty() && int(out.BoneRefs.Maximum()) >= len(st.bones) {
			log.Printf("Merger: %s/%s/%s references bone %d but the skeleton has %d bones",
				res.Fragment, slotName, p.Key, out.BoneRefs.Maximum(), len(st.bones))
		}
		dst.Set(p.Key, out.Attachment)
		written = append(written, p.Key)
	}
	return written
}

func (m *Merger) copyImages(res *FragmentResult, dir string, bodyBase bool) error {
	if m.Output == nil {
		return nil
	}
	names, err := fragment.Images(m.Source, dir)
	if err != nil {
		res.Status = StatusFailed
		res.Reason = err.Error()
		return fmt.Errorf("fragment %s: %w", res.Fragment, err)
	}
	for _, name := range names {
		if bodyBase && !keepHand(fragment.Stem(name)) {
			continue
		}
		if err := fragment.Copy(m.Source, m.Source.Join(dir, name), m.Output, name); err != nil {
			res.Status = StatusFailed
			res.Reason = err.Error()
			return fmt.Errorf("fragment %s: %w", res.Fragment, err)
		}
		res.Images++
	}
	return nil
}

func (m *Merger) normalizer() *mesh.Normalizer {
	if m.Normalizer == nil {
		return mesh.NewNormalizer(mesh.DefaultThreshold)
	}
	return m.Normalizer
}

func (m *Merger) resolver() *bones.Resolver {
	if m.Resolver == nil {
		return bones.NewResolver()
	}
	return m.Resolver
}

func skipped(res FragmentResult, err error) FragmentResult {
	res.Status = StatusSkipped
	res.Reason = err.Error()
	if errors.Is(err, fragment.ErrNoDocument) {
		log.Printf("Merger: skipping %s: no document", res.Fragment)
	} else {
		log.Printf("Merger: skipping %s: %v", res.Fragment, err)
	}
	return res
}

// keepHand reports whether a body-base name survives the hand filter:
// pose-variant hand art is dropped, the two canonical hands are kept.
func keepHand(name string) bool {
	if !strings.HasPrefix(name, handPrefix) {
		return true
	}
	return name == handLeft || name == handRight
}

// filterBody prunes pose-variant hand slots and attachments. A slot that
// loses every attachment to the filter is dropped too.
func filterBody(in *api.SlotAttachments) *api.SlotAttachments {
	out := api.NewSlotAttachments()
	for p := in.Oldest(); p != nil; p = p.Next() {
		if !keepHand(p.Key) {
			continue
		}
		if p.Value == nil {
			out.Set(p.Key, p.Value)
			continue
		}
		kept := api.NewAttachmentSet()
		for a := p.Value.Oldest(); a != nil; a = a.Next() {
			if keepHand(a.Key) {
				kept.Set(a.Key, a.Value)
			}
		}
		if kept.Len() == 0 && p.Value.Len() > 0 {
			continue
		}
		out.Set(p.Key, kept)
	}
	return out
}
