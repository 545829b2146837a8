// Package overlay layers customization directories from the source tree
// onto the extracted tree.
package overlay

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// CopyTree copies src onto dst recursively. Directories are created as
// needed, existing files are overwritten and destination entries without a
// source counterpart are left alone. It returns the number of files copied.
// Entries that are neither regular files nor directories are ignored.
func CopyTree(fs afero.Fs, src, dst string) (int, error) {
	info, err := fs.Stat(src)
	if err != nil {
		return 0, err
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("%s is not a directory", src)
	}

	files := 0
	err = afero.Walk(fs, src, func(p string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		switch {
		case fi.IsDir():
			return fs.MkdirAll(target, fi.Mode().Perm()|0o700)
		case fi.Mode().IsRegular():
			if err := copyFile(fs, p, target, fi.Mode().Perm()); err != nil {
				return err
			}
			files++
		}
		return nil
	})
	return files, err
}

func copyFile(fs afero.Fs, src, dst string, perm os.FileMode) error {
	in, err := fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := fs.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm|0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
