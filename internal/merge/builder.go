package merge

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/google/uuid"

	"github.com/agentic-research/skelmerge/api"
	"github.com/agentic-research/skelmerge/internal/bones"
	"github.com/agentic-research/skelmerge/internal/canon"
	"github.com/agentic-research/skelmerge/internal/mesh"
)

// Request describes one build.
type Request struct {
	BasePath       string
	OutputDir      string
	Fragments      []api.Fragment
	RuntimeVersion string
}

// Builder runs a whole build: load the base, merge, finalize, write.
type Builder struct {
	FS         billy.Filesystem
	Normalizer *mesh.Normalizer
	Resolver   *bones.Resolver
}

// NewBuilder returns a builder over fsys with the given weight threshold.
func NewBuilder(fsys billy.Filesystem, threshold float64) *Builder {
	return &Builder{
		FS:         fsys,
		Normalizer: mesh.NewNormalizer(threshold),
		Resolver:   bones.NewResolver(),
	}
}

// OutputName is the document file name for an output directory.
func OutputName(outputDir string) string {
	return filepath.Base(filepath.Clean(outputDir)) + ".json"
}

// Build merges req.Fragments into the base and writes the result to
// req.OutputDir. The report is returned even when a fatal fragment error
// stops the build part way.
func (b *Builder) Build(req Request) (*Report, error) {
	base, err := b.loadBase(req.BasePath)
	if err != nil {
		return nil, err
	}

	if err := b.FS.MkdirAll(req.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	out, err := b.FS.Chroot(req.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("open output dir: %w", err)
	}

	merger := &Merger{Source: b.FS, Output: out, Normalizer: b.Normalizer, Resolver: b.Resolver}
	doc, report, err := merger.Merge(base, req.Fragments)
	if report != nil {
		report.BuildID = uuid.NewString()
	}
	if err != nil {
		return report, err
	}

	final, err := canon.Finalize(doc, req.RuntimeVersion)
	if err != nil {
		return report, err
	}
	name := OutputName(req.OutputDir)
	if err := canon.Write(out, name, final); err != nil {
		return report, err
	}
	report.OutputPath = b.FS.Join(req.OutputDir, name)

	log.Printf("Builder: wrote %s (%d bones, %d slots, %d attachments, %d images)",
		report.OutputPath, report.Bones, report.Slots, report.Attachments, report.Images)
	return report, nil
}

func (b *Builder) loadBase(p string) (*api.Document, error) {
	data, err := util.ReadFile(b.FS, p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s not found", ErrBaseDocument, p)
		}
		return nil, fmt.Errorf("%w: %v", ErrBaseDocument, err)
	}
	doc, err := api.ParseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrBaseDocument, p, err)
	}
	return doc, nil
}
