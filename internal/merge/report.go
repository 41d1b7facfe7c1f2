package merge

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/agentic-research/skelmerge/api"
)

// ErrBaseDocument is returned when the base skeleton cannot be used.
var ErrBaseDocument = errors.New("base document unusable")

// Status is the outcome of applying one fragment.
type Status string

const (
	StatusApplied Status = "applied"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// AttachmentError locates an attachment that could not be normalized.
// The attachment is left out of the merged skin.
type AttachmentError struct {
	Fragment   string
	Slot       string
	Attachment string
	Err        error
}

func (e *AttachmentError) Error() string {
	return fmt.Sprintf("fragment %s: slot %s: attachment %s: %v", e.Fragment, e.Slot, e.Attachment, e.Err)
}

func (e *AttachmentError) Unwrap() error {
	return e.Err
}

func (e *AttachmentError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Slot       string `json:"slot"`
		Attachment string `json:"attachment"`
		Error      string `json:"error"`
	}{e.Slot, e.Attachment, e.Err.Error()})
}

// FragmentResult reports what one fragment contributed.
type FragmentResult struct {
	Fragment api.Fragment `json:"fragment"`
	Status   Status       `json:"status"`
	Reason   string       `json:"reason,omitempty"`

	Bones       int `json:"bones_added"`
	Slots       int `json:"slots_added"`
	Attachments int `json:"attachments"`
	Animations  int `json:"animations,omitempty"`
	Images      int `json:"images"`

	Errors []*AttachmentError `json:"errors,omitempty"`
}

// Report summarizes a build.
type Report struct {
	BuildID    string `json:"build_id"`
	OutputPath string `json:"output_path"`

	Bones       int `json:"bones_count"`
	Slots       int `json:"slots_count"`
	Attachments int `json:"attachments_count"`
	Images      int `json:"total_images"`

	Fragments []FragmentResult `json:"fragments"`
}

// Count returns how many fragments ended with status s.
func (r *Report) Count(s Status) int {
	n := 0
	for _, f := range r.Fragments {
		if f.Status == s {
			n++
		}
	}
	return n
}

// AttachmentErrors collects every attachment error of the build.
func (r *Report) AttachmentErrors() []*AttachmentError {
	var out []*AttachmentError
	for _, f := range r.Fragments {
		out = append(out, f.Errors...)
	}
	return out
}
