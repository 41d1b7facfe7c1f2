package bones

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentic-research/skelmerge/api"
)

func skeleton(names ...string) []api.Bone {
	bones := make([]api.Bone, 0, len(names))
	for _, n := range names {
		bones = append(bones, api.NewBone(n, ""))
	}
	return bones
}

func TestResolve(t *testing.T) {
	r := NewResolver()
	bones := skeleton("root", "pelvis", "spine", "head", "head_left", "hairdresser",
		"eye_right", "hand_left", "hand_right", "foot_left", "thigh_right")

	tests := []struct {
		slot string
		want string
	}{
		{"Hair_Left", "head_left"},
		{"HeadDress_Front", "hairdresser"},
		{"Tops_Front", "spine"},
		{"BaseBody_Hand_Left", "hand_left"},
		{"Eyeball_Right", "eye_right"},
		{"Shoes_Left", "foot_left"},
		{"Pants_Thigh_Right", "thigh_right"},
		{"Pants_Front", "pelvis"},
		{"Fringe", "head"},
		{"Glove_Left", RootName},
		{"Mouth", RootName},
	}
	for _, tt := range tests {
		t.Run(tt.slot, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Resolve(tt.slot, bones))
		})
	}
}

func TestResolveIsTotal(t *testing.T) {
	r := NewResolver()
	assert.Equal(t, RootName, r.Resolve("Hair_Left", nil))
	assert.Equal(t, RootName, r.Resolve("", skeleton("root")))
}

func TestResolveFoldsBoneCase(t *testing.T) {
	r := NewResolver()
	assert.Equal(t, "Head_Left", r.Resolve("Hair_Left", skeleton("root", "Head_Left")))
}

func TestResolveExactPassBeatsContainment(t *testing.T) {
	// Containment would pick the earlier Tops rule.
	r := NewResolver()
	bones := skeleton("root", "spine", "hand")
	assert.Equal(t, "hand", r.Resolve("Tops_Hand", bones))
}

func TestBase(t *testing.T) {
	r := NewResolver()
	assert.Equal(t, "Hair", r.Base("Hair_Left"))
	assert.Equal(t, "Hand", r.Base("BaseBody_Hand_Right"))
	assert.Equal(t, "Front", r.Base("Tops_Front"))
	assert.Equal(t, "Thigh_Left", r.Base("Pants_Thigh_Left_Back"))
}

func TestRuleCandidate(t *testing.T) {
	rule := Rule{Keyword: "Hand", Target: "hand"}
	assert.Equal(t, "hand_left", rule.Candidate("Hand_Left"))
	assert.Equal(t, "hand_right", rule.Candidate("BaseBody_Hand_Right"))
	assert.Equal(t, "hand", rule.Candidate("Hand"))

	name, ok := rule.Match("Hand_Left", skeleton("root", "hand_left_ik", "hand_left"))
	assert.True(t, ok)
	assert.Equal(t, "hand_left_ik", name, "first bone containing the candidate wins")

	_, ok = rule.Match("Hand_Left", skeleton("root"))
	assert.False(t, ok)
}
