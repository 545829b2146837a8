// Package catalog discovers the modules of a source tree and their
// selectable sub-packages.
package catalog

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"

	oerrors "github.com/modkit/cli/internal/errors"
)

// PackagesDir is the directory under a module that holds its sub-packages.
const PackagesDir = "packages"

// Catalog maps a top-level module folder to its sub-package names in
// ascending order.
type Catalog map[string][]string

// Read scans root one level deep for modules. A directory becomes a module
// when it contains a packages directory; every immediate subdirectory of
// packages is a sub-package. Other directories are omitted.
func Read(fs afero.Fs, root string) (Catalog, error) {
	info, err := fs.Stat(root)
	if err != nil {
		return nil, oerrors.NewReadError("cannot read source tree", root, err)
	}
	if !info.IsDir() {
		return nil, oerrors.NewReadError("source tree is not a directory", root, nil)
	}

	children, err := afero.ReadDir(fs, root)
	if err != nil {
		return nil, oerrors.NewReadError("cannot list source tree", root, err)
	}

	cat := make(Catalog)
	for _, child := range children {
		if !child.IsDir() {
			continue
		}
		pkgs, ok, err := subPackages(fs, filepath.Join(root, child.Name(), PackagesDir))
		if err != nil {
			return nil, oerrors.NewReadError("cannot list sub-packages", filepath.Join(root, child.Name()), err)
		}
		if ok {
			cat[child.Name()] = pkgs
		}
	}
	return cat, nil
}

func subPackages(fs afero.Fs, dir string) ([]string, bool, error) {
	info, err := fs.Stat(dir)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if !info.IsDir() {
		return nil, false, nil
	}

	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, false, err
	}
	pkgs := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			pkgs = append(pkgs, e.Name())
		}
	}
	sort.Strings(pkgs)
	return pkgs, true, nil
}

// Modules returns the module names in ascending order.
func (c Catalog) Modules() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether module exists, and when pkg is non-empty, whether it
// is one of the module's sub-packages.
func (c Catalog) Has(module, pkg string) bool {
	pkgs, ok := c[module]
	if !ok {
		return false
	}
	if pkg == "" {
		return true
	}
	i := sort.SearchStrings(pkgs, pkg)
	return i < len(pkgs) && pkgs[i] == pkg
}
