package overlay

import (
	"errors"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/modkit/cli/internal/catalog"
	oerrors "github.com/modkit/cli/internal/errors"
	"github.com/modkit/cli/internal/output"
	"github.com/modkit/cli/internal/selection"
)

// Copier runs the overlay passes for one build.
type Copier struct {
	Fs afero.Fs
	// Source is the source tree root.
	Source string
	// Tree is the extracted tree.
	Tree string
	// OverlayDir is the per-sub-package override directory name.
	OverlayDir string
	// SharedSuffixes select sub-packages copied whole for every module.
	SharedSuffixes []string
	// CustomLibrary is copied once, relative to both Source and Tree.
	CustomLibrary string
}

// Kind labels an overlay pass.
type Kind string

const (
	KindOverride Kind = "override"
	KindShared   Kind = "shared"
	KindLibrary  Kind = "library"
)

// Copy is one overlay that was applied.
type Copy struct {
	Kind   Kind
	Module string
	Source string
	Target string
	Files  int
}

// Report lists what Apply copied and what it skipped.
type Report struct {
	Copied  []Copy
	Skipped []string
}

// Files sums the files copied by every pass.
func (r Report) Files() int {
	n := 0
	for _, c := range r.Copied {
		n += c.Files
	}
	return n
}

// Apply copies, in order: each selected sub-package's override directory,
// the shared sub-packages of every selected module, and the customization
// library. Missing override directories and modules without a packages
// directory are skipped.
func (c *Copier) Apply(sel selection.Selection) (Report, error) {
	var report Report

	for _, module := range sel.Modules() {
		for _, pkg := range sel[module] {
			rel := filepath.Join(module, catalog.PackagesDir, pkg, c.OverlayDir)
			if err := c.copyOne(&report, KindOverride, module, rel, rel); err != nil {
				return report, err
			}
		}
	}

	for _, module := range sel.Modules() {
		pkgsDir := filepath.Join(c.Source, module, catalog.PackagesDir)
		entries, err := afero.ReadDir(c.Fs, pkgsDir)
		if errors.Is(err, fs.ErrNotExist) {
			output.Warn("module has no packages directory, skipping shared sub-packages", "module", module, "path", pkgsDir)
			report.Skipped = append(report.Skipped, filepath.ToSlash(filepath.Join(module, catalog.PackagesDir)))
			continue
		}
		if err != nil {
			return report, oerrors.NewExtractionError("cannot list sub-packages", pkgsDir, err)
		}

		for _, name := range c.sharedNames(entries) {
			rel := filepath.Join(module, catalog.PackagesDir, name)
			if err := c.copyOne(&report, KindShared, module, rel, rel); err != nil {
				return report, err
			}
		}
	}

	if c.CustomLibrary != "" {
		lib := filepath.FromSlash(c.CustomLibrary)
		module, _, _ := strings.Cut(filepath.ToSlash(c.CustomLibrary), "/")
		if err := c.copyOne(&report, KindLibrary, module, lib, lib); err != nil {
			return report, err
		}
	}

	return report, nil
}

func (c *Copier) sharedNames(entries []fs.FileInfo) []string {
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		for _, suffix := range c.SharedSuffixes {
			if suffix != "" && strings.HasSuffix(e.Name(), suffix) {
				names = append(names, e.Name())
				break
			}
		}
	}
	sort.Strings(names)
	return names
}

func (c *Copier) copyOne(report *Report, kind Kind, module, srcRel, dstRel string) error {
	src := filepath.Join(c.Source, srcRel)
	dst := filepath.Join(c.Tree, dstRel)

	info, err := c.Fs.Stat(src)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && !info.IsDir()) {
		output.Debug("no overlay to copy", "kind", kind, "path", src)
		report.Skipped = append(report.Skipped, filepath.ToSlash(srcRel))
		return nil
	}
	if err != nil {
		return oerrors.NewExtractionError("cannot inspect overlay", src, err)
	}

	files, err := CopyTree(c.Fs, src, dst)
	if err != nil {
		return oerrors.NewExtractionError("cannot copy overlay", src, err)
	}
	output.Debug("copied overlay", "kind", kind, "from", src, "to", dst, "files", files)
	report.Copied = append(report.Copied, Copy{Kind: kind, Module: module, Source: src, Target: dst, Files: files})
	return nil
}
