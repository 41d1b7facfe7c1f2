package catalog

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"

	"github.com/agentic-research/skelmerge/api"
	"github.com/agentic-research/skelmerge/internal/fragment"
)

// MetaFile carries hand-written labels for a fragment folder.
const MetaFile = "meta.json"

// UnknownType tags clothing whose dress.json has no type.
const UnknownType = "Unknown"

var (
	namePath = jp.MustParseString("$.name")
	descPath = jp.MustParseString("$.description")
	typePath = jp.MustParseString("$.type")
)

// ImportStatus is the outcome of importing one folder.
type ImportStatus string

const (
	ImportSuccess ImportStatus = "success"
	ImportSkipped ImportStatus = "skipped"
	ImportFailed  ImportStatus = "failed"
)

// ImportResult describes one scanned folder.
type ImportResult struct {
	Hash         string       `json:"md5"`
	Status       ImportStatus `json:"status"`
	Reason       string       `json:"reason,omitempty"`
	Type         string       `json:"type,omitempty"`
	ActionName   string       `json:"action_name,omitempty"`
	HasAnimation bool         `json:"has_animation,omitempty"`
	Labeled      bool         `json:"labeled,omitempty"`
}

// ImportSummary aggregates a scan.
type ImportSummary struct {
	Total   int            `json:"total"`
	Success int            `json:"success"`
	Skipped int            `json:"skipped"`
	Failed  int            `json:"failed"`
	Details []ImportResult `json:"details"`
}

// Importer registers raw asset folders in the catalog. Folders are named
// by the MD5 of their content.
type Importer struct {
	FS    billy.Filesystem
	Store *Store
}

// Scan imports every hash-named folder directly inside dir, in name order.
func (im *Importer) Scan(dir string) (*ImportSummary, error) {
	entries, err := im.FS.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read source dir %s: %w", dir, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	sum := &ImportSummary{}
	for _, e := range entries {
		if !e.IsDir() || !isHash(e.Name()) {
			continue
		}
		res := im.ImportFolder(im.FS.Join(dir, e.Name()))
		sum.Total++
		switch res.Status {
		case ImportSuccess:
			sum.Success++
		case ImportSkipped:
			sum.Skipped++
		default:
			sum.Failed++
		}
		sum.Details = append(sum.Details, res)
	}
	log.Printf("Importer: %s: %d folders, %d imported, %d skipped, %d failed",
		dir, sum.Total, sum.Success, sum.Skipped, sum.Failed)
	return sum, nil
}

// ImportFolder imports one folder. A folder with action files is an
// animation, one with a dress.json is clothing; anything else is skipped.
func (im *Importer) ImportFolder(dir string) ImportResult {
	hash := filepath.Base(dir)
	res := ImportResult{Hash: hash}

	for _, check := range []func(string) (bool, error){im.Store.ItemExists, im.Store.AnimationExists} {
		known, err := check(hash)
		if err != nil {
			return failed(res, err)
		}
		if known {
			res.Status, res.Reason = ImportSkipped, "already imported"
			return res
		}
	}

	meta := im.readMeta(dir)
	name, _ := stringAt(meta, namePath)
	desc, _ := stringAt(meta, descPath)
	res.Labeled = meta != nil

	folderName := name
	if folderName == "" {
		folderName = hash
	}

	actions, err := util.Glob(im.FS, im.FS.Join(dir, fragment.ActionPattern))
	if err != nil {
		return failed(res, err)
	}
	if len(actions) > 0 {
		sort.Strings(actions)
		action := name
		if action == "" {
			action = im.firstAnimation(actions)
		}
		if err := im.Store.AddAnimation(Animation{
			Hash: hash, FolderName: folderName, ActionName: action, Description: desc, SourcePath: dir,
		}); err != nil {
			return failed(res, err)
		}
		res.Status, res.Type, res.ActionName = ImportSuccess, string(api.KindAction), action
		return res
	}

	data, err := util.ReadFile(im.FS, im.FS.Join(dir, fragment.DressFile))
	if errors.Is(err, os.ErrNotExist) {
		res.Status, res.Reason = ImportSkipped, "no dress.json or action file"
		return res
	}
	if err != nil {
		return failed(res, err)
	}
	dress, err := oj.Parse(data)
	if err != nil {
		return failed(res, fmt.Errorf("parse %s: %w", fragment.DressFile, err))
	}
	clothingType, ok := stringAt(dress, typePath)
	if !ok || clothingType == "" {
		clothingType = UnknownType
	}

	anyAction, err := util.Glob(im.FS, im.FS.Join(dir, "action*"))
	if err != nil {
		return failed(res, err)
	}

	it := Item{
		Hash:         hash,
		FolderName:   folderName,
		Type:         clothingType,
		Label:        name,
		Description:  desc,
		HasAnimation: len(anyAction) > 0,
		SourcePath:   dir,
	}
	added, err := im.Store.AddItem(it)
	if err != nil {
		return failed(res, err)
	}
	if !added {
		res.Status, res.Reason = ImportSkipped, "already imported"
		return res
	}
	res.Status, res.Type, res.HasAnimation = ImportSuccess, clothingType, it.HasAnimation
	return res
}

// readMeta returns the parsed meta.json or nil when absent or unreadable.
func (im *Importer) readMeta(dir string) any {
	p := im.FS.Join(dir, MetaFile)
	data, err := util.ReadFile(im.FS, p)
	if err != nil {
		return nil
	}
	meta, err := oj.Parse(data)
	if err != nil {
		log.Printf("Importer: ignoring %s: %v", p, err)
		return nil
	}
	return meta
}

// firstAnimation returns the first animation name of the first readable
// action file. Key order comes from the document itself.
func (im *Importer) firstAnimation(files []string) string {
	for _, f := range files {
		data, err := util.ReadFile(im.FS, f)
		if err != nil {
			continue
		}
		doc, err := api.ParseDocument(data)
		if err != nil {
			continue
		}
		anims, err := doc.Animations()
		if err != nil {
			continue
		}
		if keys := api.Keys(anims); len(keys) > 0 {
			return keys[0]
		}
		return ""
	}
	return ""
}

func stringAt(data any, x jp.Expr) (string, bool) {
	if data == nil {
		return "", false
	}
	s, ok := x.First(data).(string)
	return s, ok
}

func failed(res ImportResult, err error) ImportResult {
	res.Status, res.Reason = ImportFailed, err.Error()
	log.Printf("Importer: %s: %v", res.Hash, err)
	return res
}

func isHash(name string) bool {
	if len(name) != 32 {
		return false
	}
	_, err := hex.DecodeString(name)
	return err == nil
}
