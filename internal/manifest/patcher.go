package manifest

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"

	oerrors "github.com/modkit/cli/internal/errors"
	"github.com/modkit/cli/internal/output"
	"github.com/modkit/cli/internal/selection"
)

// Patcher applies descriptor copies and route patches per module.
type Patcher struct {
	Fs afero.Fs
	// Source is the source tree root.
	Source string
	// Tree is the extracted tree.
	Tree string
	// Descriptors are copied verbatim from Source to Tree per module.
	Descriptors []string
	// Manifest is the route manifest file name.
	Manifest string
	// DryRun computes results without writing anything.
	DryRun bool
}

// Result describes the patch of one module.
type Result struct {
	Module string
	// ReadFrom is where the manifest was loaded from.
	ReadFrom string
	// Written lists every path the patched manifest was written to.
	Written []string
	// Descriptors lists the copied descriptor targets.
	Descriptors []string
	Before      []byte
	After       []byte
}

// Changed reports whether patching altered the manifest.
func (r Result) Changed() bool {
	return string(r.Before) != string(r.After)
}

// PatchAll patches every module of sel in name order and stops at the
// first failure.
func (p *Patcher) PatchAll(sel selection.Selection) ([]Result, error) {
	results := make([]Result, 0, len(sel))
	for _, module := range sel.Modules() {
		res, err := p.Patch(module, sel[module])
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// Patch copies module's descriptors into the tree, then rewrites its route
// manifest so routes holds exactly pkgs. The manifest is read from the
// source tree when present there, otherwise from the extracted tree, and is
// written back to where it was read and into the extracted tree.
func (p *Patcher) Patch(module string, pkgs []string) (Result, error) {
	res := Result{Module: module}

	for _, name := range p.Descriptors {
		src := filepath.Join(p.Source, module, name)
		dst := filepath.Join(p.Tree, module, name)
		if err := p.copyDescriptor(src, dst); err != nil {
			return res, err
		}
		res.Descriptors = append(res.Descriptors, dst)
	}

	readFrom, before, err := p.readManifest(module)
	if err != nil {
		return res, err
	}
	res.ReadFrom = readFrom
	res.Before = before

	after, err := PatchRoutes(before, sortStrings(append([]string(nil), pkgs...)))
	if err != nil {
		return res, oerrors.NewManifestError("manifest is not a valid JSON object", readFrom, err)
	}
	res.After = after

	targets := []string{readFrom}
	if extracted := filepath.Join(p.Tree, module, p.Manifest); extracted != readFrom {
		targets = append(targets, extracted)
	}
	for _, target := range targets {
		if !p.DryRun {
			if err := p.writeFile(target, after); err != nil {
				return res, oerrors.NewManifestError("cannot write manifest", target, err)
			}
		}
		res.Written = append(res.Written, target)
	}

	output.Debug("patched manifest", "module", module, "routes", len(pkgs), "read_from", readFrom)
	return res, nil
}

func (p *Patcher) copyDescriptor(src, dst string) error {
	data, err := afero.ReadFile(p.Fs, src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return oerrors.NewManifestError("build descriptor is missing", src, err)
		}
		return oerrors.NewManifestError("cannot read build descriptor", src, err)
	}
	if p.DryRun {
		return nil
	}
	if err := p.writeFile(dst, data); err != nil {
		return oerrors.NewManifestError("cannot copy build descriptor", dst, err)
	}
	return nil
}

func (p *Patcher) readManifest(module string) (string, []byte, error) {
	candidates := []string{
		filepath.Join(p.Source, module, p.Manifest),
		filepath.Join(p.Tree, module, p.Manifest),
	}
	for _, path := range candidates {
		data, err := afero.ReadFile(p.Fs, path)
		if err == nil {
			return path, data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", nil, oerrors.NewManifestError("cannot read manifest", path, err)
		}
	}
	return "", nil, oerrors.NewManifestError(
		fmt.Sprintf("%s not found for module %s", p.Manifest, module),
		candidates[0],
		fs.ErrNotExist,
	)
}

func (p *Patcher) writeFile(path string, data []byte) error {
	if err := p.Fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return afero.WriteFile(p.Fs, path, data, 0o644)
}

func sortStrings(s []string) []string {
	sort.Strings(s)
	return s
}
