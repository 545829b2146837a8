package extract

import (
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	oerrors "github.com/modkit/cli/internal/errors"
	"github.com/modkit/cli/internal/output"
)

// TakeSnapshot reads the top two levels of root.
func TakeSnapshot(fs afero.Fs, root string) (Snapshot, error) {
	info, err := fs.Stat(root)
	if os.IsNotExist(err) {
		return Snapshot{}, nil
	}
	if err != nil {
		return Snapshot{}, oerrors.NewExtractionError("cannot inspect destination tree", root, err)
	}
	if !info.IsDir() {
		return Snapshot{}, oerrors.NewExtractionError("destination tree is not a directory", root, nil)
	}

	entries, err := afero.ReadDir(fs, root)
	if err != nil {
		return Snapshot{}, oerrors.NewExtractionError("cannot list destination tree", root, err)
	}

	snap := Snapshot{Exists: true}
	for _, e := range entries {
		node := Node{Name: e.Name(), IsDir: e.IsDir()}
		if node.IsDir {
			grandchildren, err := afero.ReadDir(fs, filepath.Join(root, e.Name()))
			if err != nil {
				return Snapshot{}, oerrors.NewExtractionError("cannot list destination folder", filepath.Join(root, e.Name()), err)
			}
			for _, g := range grandchildren {
				node.Children = append(node.Children, Node{Name: g.Name(), IsDir: g.IsDir()})
			}
		}
		snap.Children = append(snap.Children, node)
	}
	return snap, nil
}

// ApplyPlan performs the deletions of plan under root.
func ApplyPlan(fs afero.Fs, root string, plan Plan) error {
	if plan.CreateRoot {
		if err := fs.MkdirAll(root, 0o755); err != nil {
			return oerrors.NewExtractionError("cannot create destination tree", root, err)
		}
		return nil
	}

	for _, rel := range plan.Deletes {
		target := filepath.Join(root, filepath.FromSlash(rel))
		output.Debug("pruning", "path", target)
		if err := fs.RemoveAll(target); err != nil {
			return oerrors.NewExtractionError("cannot prune destination entry", target, err)
		}
	}
	for _, rel := range plan.Preserved {
		output.Debug("preserving cache", "path", filepath.Join(root, filepath.FromSlash(rel)))
	}
	return nil
}

// Reconcile snapshots root, plans against set and applies the plan.
func Reconcile(fs afero.Fs, root string, set []string, cacheDir string) (Plan, error) {
	snap, err := TakeSnapshot(fs, root)
	if err != nil {
		return Plan{}, err
	}
	plan, err := PlanReconcile(snap, set, PreserveName(cacheDir))
	if err != nil {
		return Plan{}, err
	}
	return plan, ApplyPlan(fs, root, plan)
}
