// Package selection models which modules and sub-packages the operator
// picked, and derives the set of top-level folders to extract.
package selection

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/modkit/cli/internal/catalog"
	oerrors "github.com/modkit/cli/internal/errors"
)

// Selection maps a module name to its chosen sub-packages.
type Selection map[string][]string

// Parse builds a Selection from --select arguments. "mod=pkg1,pkg2" picks
// the listed sub-packages; a bare "mod" picks every sub-package the catalog
// knows for mod. Repeated modules are merged.
func Parse(args []string, cat catalog.Catalog) (Selection, error) {
	sel := make(Selection)
	for _, arg := range args {
		module, pkgs, hasPkgs := strings.Cut(strings.TrimSpace(arg), "=")
		module = strings.TrimSpace(module)
		if module == "" {
			return nil, oerrors.NewSelectionError(
				fmt.Sprintf("malformed selection %q", arg),
				"Use --select module=pkg1,pkg2 or --select module.",
			)
		}

		if !hasPkgs {
			all, ok := cat[module]
			if !ok {
				return nil, unknownModules([]string{module})
			}
			sel.add(module, all...)
			continue
		}

		var names []string
		for _, p := range strings.Split(pkgs, ",") {
			if p = strings.TrimSpace(p); p != "" {
				names = append(names, p)
			}
		}
		if len(names) == 0 {
			return nil, oerrors.NewSelectionError(
				fmt.Sprintf("selection %q names no sub-packages", arg),
				"Drop the '=' to select every sub-package of the module.",
			)
		}
		sel.add(module, names...)
	}
	return sel, nil
}

// LoadFile reads a YAML or JSON document mapping module -> sub-package list.
func LoadFile(fs afero.Fs, path string) (Selection, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, oerrors.NewNotFoundError(
			fmt.Sprintf("cannot read selection file: %v", err),
			path,
			"Pass an existing YAML or JSON file to --selection-file.",
		)
	}

	raw := map[string][]string{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, oerrors.NewSelectionError(
			fmt.Sprintf("selection file %s is malformed: %v", path, err),
			"The file must map each module to a list of sub-packages.",
		)
	}

	sel := make(Selection, len(raw))
	for module, pkgs := range raw {
		sel.add(module, pkgs...)
	}
	return sel, nil
}

func (s Selection) add(module string, pkgs ...string) {
	merged := append(s[module], pkgs...)
	if merged == nil {
		merged = []string{}
	}
	sort.Strings(merged)
	s[module] = dedupSorted(merged)
}

func dedupSorted(in []string) []string {
	out := in[:0]
	for i, v := range in {
		if i > 0 && v == in[i-1] {
			continue
		}
		out = append(out, v)
	}
	return out
}

// Merge returns the union of s and other.
func (s Selection) Merge(other Selection) Selection {
	out := make(Selection, len(s)+len(other))
	for m, pkgs := range s {
		out.add(m, pkgs...)
	}
	for m, pkgs := range other {
		out.add(m, pkgs...)
	}
	return out
}

// Modules returns the selected module names in ascending order.
func (s Selection) Modules() []string {
	names := make([]string, 0, len(s))
	for m := range s {
		names = append(names, m)
	}
	sort.Strings(names)
	return names
}

// Validate checks that s is non-empty and names only modules and
// sub-packages present in cat.
func (s Selection) Validate(cat catalog.Catalog) error {
	if len(s) == 0 {
		return oerrors.NewSelectionError(
			"no modules selected",
			"Select at least one module with --select or --selection-file.",
		)
	}

	var missingModules, missingPkgs []string
	for _, m := range s.Modules() {
		if !cat.Has(m, "") {
			missingModules = append(missingModules, m)
			continue
		}
		for _, p := range s[m] {
			if !cat.Has(m, p) {
				missingPkgs = append(missingPkgs, m+"/"+p)
			}
		}
	}

	if len(missingModules) > 0 {
		return unknownModules(missingModules)
	}
	if len(missingPkgs) > 0 {
		return oerrors.NewSelectionError(
			"unknown sub-packages: "+strings.Join(missingPkgs, ", "),
			"Run 'modkit catalog' to list the sub-packages of each module.",
		)
	}
	return nil
}

func unknownModules(names []string) error {
	return oerrors.NewSelectionError(
		"unknown modules: "+strings.Join(names, ", "),
		"Run 'modkit catalog' to list the modules of the source tree.",
	)
}

// ExtractionSet returns alwaysInclude followed by the selected modules,
// without duplicates.
func (s Selection) ExtractionSet(alwaysInclude []string) []string {
	seen := make(map[string]bool, len(alwaysInclude)+len(s))
	set := make([]string, 0, len(alwaysInclude)+len(s))
	for _, name := range append(append([]string{}, alwaysInclude...), s.Modules()...) {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		set = append(set, name)
	}
	return set
}
