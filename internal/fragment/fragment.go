// Package fragment reads fragment documents and their sibling images.
// Everything goes through a billy.Filesystem so builds run the same on
// disk and in memory.
package fragment

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/agentic-research/skelmerge/api"
)

const (
	// DressFile is the document of a clothing fragment directory.
	DressFile = "dress.json"
	// ActionPattern matches animation fragment documents.
	ActionPattern = "action*.json"
	// ImageExt is the extension of the images a fragment ships.
	ImageExt = ".png"
)

// ErrNoDocument is returned when a fragment has no document to load.
var ErrNoDocument = errors.New("fragment document not found")

// Clothing is the content of a dress.json.
type Clothing struct {
	Type        string               `json:"type"`
	Bones       []api.Bone           `json:"bones"`
	Attachments *api.SlotAttachments `json:"attachments"`
}

// LoadClothing reads dir/dress.json.
func LoadClothing(fsys billy.Filesystem, dir string) (*Clothing, error) {
	name := fsys.Join(dir, DressFile)
	data, err := util.ReadFile(fsys, name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", name, ErrNoDocument)
		}
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	var c Clothing
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	if c.Attachments == nil {
		c.Attachments = api.NewSlotAttachments()
	}
	return &c, nil
}

// Action is the content of an animation fragment document.
type Action struct {
	Bones      []api.Bone
	Slots      []*api.Slot
	Skins      *api.Skins
	Animations *api.Object
}

// LoadAction reads an animation fragment. p may name the document itself
// or the directory holding it.
func LoadAction(fsys billy.Filesystem, p string) (*Action, string, error) {
	file, err := ActionFile(fsys, p)
	if err != nil {
		return nil, "", err
	}
	data, err := util.ReadFile(fsys, file)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", fmt.Errorf("%s: %w", file, ErrNoDocument)
		}
		return nil, "", fmt.Errorf("read %s: %w", file, err)
	}

	doc, err := api.ParseDocument(data)
	if err != nil {
		return nil, "", fmt.Errorf("decode %s: %w", file, err)
	}
	a := &Action{}
	if a.Bones, err = doc.Bones(); err != nil {
		return nil, "", fmt.Errorf("%s: %w", file, err)
	}
	if a.Slots, err = doc.Slots(); err != nil {
		return nil, "", fmt.Errorf("%s: %w", file, err)
	}
	if a.Skins, err = doc.Skins(); err != nil {
		return nil, "", fmt.Errorf("%s: %w", file, err)
	}
	if a.Animations, err = doc.Animations(); err != nil {
		return nil, "", fmt.Errorf("%s: %w", file, err)
	}
	return a, file, nil
}

// ActionFile resolves p to an action document. A directory resolves to
// its first action*.json in name order.
func ActionFile(fsys billy.Filesystem, p string) (string, error) {
	info, err := fsys.Stat(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%s: %w", p, ErrNoDocument)
		}
		return "", fmt.Errorf("stat %s: %w", p, err)
	}
	if !info.IsDir() {
		return p, nil
	}

	matches, err := util.Glob(fsys, fsys.Join(p, ActionPattern))
	if err != nil {
		return "", fmt.Errorf("glob %s: %w", p, err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%s: no %s: %w", p, ActionPattern, ErrNoDocument)
	}
	sort.Strings(matches)
	return matches[0], nil
}

// Images lists the image file names directly inside dir, sorted. A missing
// directory has no images.
func Images(fsys billy.Filesystem, dir string) ([]string, error) {
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ImageExt {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Stem returns name without its extension.
func Stem(name string) string {
	return strings.TrimSuffix(name, path.Ext(name))
}

// Copy copies src on srcFS to dst on dstFS, replacing dst.
func Copy(srcFS billy.Filesystem, src string, dstFS billy.Filesystem, dst string) (err error) {
	in, err := srcFS.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()

	out, err := dstFS.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", dst, cerr)
		}
	}()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return nil
}
