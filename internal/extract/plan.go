// Package extract reconciles the extracted tree against an extraction set
// and materializes the matching entries of an archive into it.
package extract

import (
	"fmt"
	"path"
	"sort"

	oerrors "github.com/modkit/cli/internal/errors"
)

// Node is one entry of a Snapshot.
type Node struct {
	Name  string
	IsDir bool
	// Children lists the immediate children of a directory node. Only the
	// top level of a snapshot carries children; deeper levels are not read.
	Children []Node
}

// Snapshot describes the top two levels of an existing extracted tree.
type Snapshot struct {
	Exists   bool
	Children []Node
}

// Plan is the outcome of reconciling a snapshot against an extraction set.
// Paths are slash-separated and relative to the extracted tree.
type Plan struct {
	// CreateRoot is set when the extracted tree does not exist yet.
	CreateRoot bool
	// Deletes are removed recursively, in order.
	Deletes []string
	// Preserved are cache directories left untouched.
	Preserved []string
	// Reused are extraction-set folders pruned in place rather than recreated.
	Reused []string
}

// PlanReconcile decides what to delete from an existing extracted tree so
// that only folders named in set remain at the top level, each emptied
// except for entries that preserve reports true for.
//
// A top-level file whose name is in set is an inconsistent tree and yields
// an extraction error; nothing is deleted in that case.
func PlanReconcile(snap Snapshot, set []string, preserve func(name string) bool) (Plan, error) {
	if len(set) == 0 {
		return Plan{}, oerrors.NewSelectionError("extraction set is empty", "Select at least one module.")
	}
	if !snap.Exists {
		return Plan{CreateRoot: true}, nil
	}

	wanted := make(map[string]bool, len(set))
	for _, name := range set {
		wanted[name] = true
	}

	children := sortedNodes(snap.Children)
	var plan Plan
	for _, child := range children {
		if !wanted[child.Name] {
			plan.Deletes = append(plan.Deletes, child.Name)
			continue
		}
		if !child.IsDir {
			return Plan{}, oerrors.NewExtractionError(
				fmt.Sprintf("%q is a file but must be a directory", child.Name),
				child.Name,
				nil,
			)
		}

		plan.Reused = append(plan.Reused, child.Name)
		for _, grandchild := range sortedNodes(child.Children) {
			p := path.Join(child.Name, grandchild.Name)
			if grandchild.IsDir && preserve != nil && preserve(grandchild.Name) {
				plan.Preserved = append(plan.Preserved, p)
				continue
			}
			plan.Deletes = append(plan.Deletes, p)
		}
	}
	return plan, nil
}

// PreserveName returns a predicate matching exactly name.
func PreserveName(name string) func(string) bool {
	return func(candidate string) bool {
		return name != "" && candidate == name
	}
}

func sortedNodes(nodes []Node) []Node {
	out := append([]Node(nil), nodes...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
