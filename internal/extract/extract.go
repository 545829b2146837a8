package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	oerrors "github.com/modkit/cli/internal/errors"
	"github.com/modkit/cli/internal/output"
)

// TreeName is the directory under the destination root that holds the
// reconciled tree.
const TreeName = "extracted"

// Stats counts archive entries by outcome.
type Stats struct {
	// Extracted entries were written to the tree.
	Extracted int
	// Skipped entries lie outside the extraction set.
	Skipped int
	// Unsupported entries matched the set but cannot be materialized on
	// the target filesystem: devices, hard links to entries that were not
	// extracted, and symlinks on a filesystem without link support.
	Unsupported int
}

// Result reports what ReconcileAndExtract did.
type Result struct {
	Tree   string
	Format Format
	Plan   Plan
	Stats  Stats
}

// Extractor reconciles a destination tree and extracts an archive into it.
type Extractor struct {
	// Fs is the destination filesystem.
	Fs afero.Fs
	// ArchiveFs holds local archives. Defaults to Fs.
	ArchiveFs afero.Fs
	// S3 configures s3:// archive references.
	S3 S3Options
	// CacheDir names the directories preserved across rebuilds.
	CacheDir string
}

// Tree returns the reconciled tree under destinationRoot.
func Tree(destinationRoot string) string {
	return filepath.Join(destinationRoot, TreeName)
}

// DryRun computes the reconciliation plan without touching disk.
func (x *Extractor) DryRun(destinationRoot string, set []string) (Plan, error) {
	snap, err := TakeSnapshot(x.Fs, Tree(destinationRoot))
	if err != nil {
		return Plan{}, err
	}
	return PlanReconcile(snap, set, PreserveName(x.CacheDir))
}

// ReconcileAndExtract prunes destinationRoot/extracted down to set,
// keeping cache directories, then extracts every archive entry whose
// first path segment is in set. It returns once the whole archive has been
// consumed.
//
// The archive is opened before anything is pruned so that a missing
// archive leaves the tree untouched.
func (x *Extractor) ReconcileAndExtract(ctx context.Context, archiveRef, destinationRoot string, set []string) (Result, error) {
	tree := Tree(destinationRoot)
	res := Result{Tree: tree}

	if len(set) == 0 {
		return res, oerrors.NewSelectionError("extraction set is empty", "Select at least one module.")
	}

	archiveFs := x.ArchiveFs
	if archiveFs == nil {
		archiveFs = x.Fs
	}
	archive, err := OpenArchive(ctx, archiveFs, archiveRef, x.S3)
	if err != nil {
		return res, err
	}
	defer archive.Close()
	res.Format = archive.Format

	plan, err := Reconcile(x.Fs, tree, set, x.CacheDir)
	res.Plan = plan
	if err != nil {
		return res, err
	}

	output.Debug("extracting archive", "archive", archiveRef, "format", archive.Format, "tree", tree)
	stats, err := ExtractArchive(archive, x.Fs, tree, set)
	res.Stats = stats
	return res, err
}

// NormalizeName converts an in-archive path to a clean slash-separated path
// relative to the tree. Either separator is accepted. It returns "" for the
// archive root and an error for paths that would escape the tree.
func NormalizeName(name string) (string, error) {
	n := strings.ReplaceAll(name, `\`, "/")
	if strings.HasPrefix(n, "/") || (len(n) >= 2 && n[1] == ':') {
		return "", fmt.Errorf("absolute path %q", name)
	}
	n = path.Clean(n)
	if n == "." {
		return "", nil
	}
	if n == ".." || strings.HasPrefix(n, "../") {
		return "", fmt.Errorf("path %q escapes the destination", name)
	}
	return n, nil
}

// FirstSegment returns the top-level folder of a normalized name.
func FirstSegment(name string) string {
	first, _, _ := strings.Cut(name, "/")
	return first
}

// ExtractArchive writes the entries of a whose first path segment is in set
// under root on fsys. Other entries are counted as skipped.
//
// Symlinks must resolve to a folder of set, and no entry is written through
// a symlink created earlier in the same archive.
func ExtractArchive(a *Archive, fsys afero.Fs, root string, set []string) (Stats, error) {
	w := &treeWriter{
		fs:     fsys,
		root:   root,
		wanted: make(map[string]bool, len(set)),
		links:  make(map[string]bool),
	}
	for _, name := range set {
		w.wanted[name] = true
	}

	var stats Stats
	err := a.Walk(func(e Entry, body io.Reader) error {
		name, err := NormalizeName(e.Name)
		if err != nil {
			return oerrors.NewExtractionError("unsafe archive entry", a.Ref, err)
		}
		if name == "" || !w.wanted[FirstSegment(name)] {
			stats.Skipped++
			return nil
		}
		if via, ok := w.throughLink(name); ok {
			return oerrors.NewExtractionError("unsafe archive entry", a.Ref,
				fmt.Errorf("%s is written through symlink %s", name, via))
		}

		written, err := w.materialize(name, e, body)
		if err != nil {
			return oerrors.NewExtractionError(fmt.Sprintf("cannot extract %s", name), w.path(name), err)
		}
		if written {
			stats.Extracted++
		} else {
			stats.Unsupported++
		}
		return nil
	})
	return stats, err
}

// treeWriter materializes entries under root and remembers the symlinks it
// created during the walk.
type treeWriter struct {
	fs     afero.Fs
	root   string
	wanted map[string]bool
	links  map[string]bool
}

func (w *treeWriter) path(name string) string {
	return filepath.Join(w.root, filepath.FromSlash(name))
}

// throughLink returns the first symlink of this walk that is a parent
// directory of name.
func (w *treeWriter) throughLink(name string) (string, bool) {
	for i := 0; i < len(name); i++ {
		if name[i] == '/' && w.links[name[:i]] {
			return name[:i], true
		}
	}
	return "", false
}

func (w *treeWriter) materialize(name string, e Entry, body io.Reader) (bool, error) {
	target := w.path(name)

	if e.Type != TypeSymlink && w.links[name] {
		if err := w.fs.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return false, err
		}
		delete(w.links, name)
	}

	switch e.Type {
	case TypeDir:
		return true, w.fs.MkdirAll(target, dirMode(e.Mode))

	case TypeFile:
		return true, w.writeFile(target, fileMode(e.Mode), body)

	case TypeSymlink:
		linker, ok := w.fs.(afero.Linker)
		if !ok {
			output.Debug("filesystem cannot hold symlinks, skipping", "entry", name)
			return false, nil
		}
		if err := w.checkLinkTarget(name, e.Linkname); err != nil {
			return false, err
		}
		if err := w.fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return false, err
		}
		if err := w.fs.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return false, err
		}
		if err := linker.SymlinkIfPossible(e.Linkname, target); err != nil {
			return false, err
		}
		w.links[name] = true
		return true, nil

	case TypeHardlink:
		return w.copyHardlink(name, target, e)

	default:
		output.Debug("unsupported archive entry type, skipping", "entry", name)
		return false, nil
	}
}

// copyHardlink materializes a hard link as a copy of an entry extracted
// earlier in the walk.
func (w *treeWriter) copyHardlink(name, target string, e Entry) (bool, error) {
	src, err := NormalizeName(e.Linkname)
	if err != nil || src == "" || src == name {
		return false, fmt.Errorf("hard link %q has unsafe target %q", name, e.Linkname)
	}
	if !w.wanted[FirstSegment(src)] {
		output.Debug("hard link target is not extracted, skipping", "entry", name, "target", src)
		return false, nil
	}
	if via, ok := w.throughLink(src); ok {
		return false, fmt.Errorf("hard link %q resolves through symlink %s", name, via)
	}

	in, err := w.fs.Open(w.path(src))
	if errors.Is(err, fs.ErrNotExist) {
		output.Debug("hard link target is missing, skipping", "entry", name, "target", src)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer in.Close()

	mode := e.Mode
	if mode == 0 {
		if info, err := in.Stat(); err == nil {
			mode = info.Mode().Perm()
		}
	}
	return true, w.writeFile(target, fileMode(mode), in)
}

func (w *treeWriter) writeFile(target string, mode fs.FileMode, r io.Reader) error {
	if err := w.fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	out, err := w.fs.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// checkLinkTarget walks link from the directory of name. The target must
// land inside a folder of the extraction set and must not step through
// another symlink of this walk.
func (w *treeWriter) checkLinkTarget(name, link string) error {
	l := strings.ReplaceAll(link, `\`, "/")
	if l == "" || strings.HasPrefix(l, "/") || (len(l) >= 2 && l[1] == ':') {
		return fmt.Errorf("symlink %q has unsafe target %q", name, link)
	}

	cur := parentDir(name)
	for _, seg := range strings.Split(l, "/") {
		if seg == "" || seg == "." {
			continue
		}
		if w.links[cur] {
			return fmt.Errorf("symlink %q resolves through symlink %s", name, cur)
		}
		if seg != ".." {
			cur = path.Join(cur, seg)
			continue
		}
		if cur == "" {
			return fmt.Errorf("symlink %q points outside the destination", name)
		}
		cur = parentDir(cur)
	}

	if cur == "" || !w.wanted[FirstSegment(cur)] {
		return fmt.Errorf("symlink %q points outside the extraction set", name)
	}
	return nil
}

func parentDir(name string) string {
	dir := path.Dir(name)
	if dir == "." {
		return ""
	}
	return dir
}

func dirMode(m fs.FileMode) fs.FileMode {
	if m == 0 {
		return 0o755
	}
	return m | 0o700
}

func fileMode(m fs.FileMode) fs.FileMode {
	if m == 0 {
		return 0o644
	}
	return m | 0o600
}
