// Package testutil provides fixtures for modkit tests: source trees and
// archives written either to disk or to an in-memory filesystem.
package testutil

import (
	"archive/tar"
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/spf13/afero"
)

// WriteFile creates a file with the given content in the specified directory.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("failed to create parent dirs for %s: %v", p, err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write file %s: %v", p, err)
	}
	return p
}

// WriteFiles writes every path -> content pair under root on fs.
// A path ending in "/" creates an empty directory.
func WriteFiles(t *testing.T, fs afero.Fs, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if name[len(name)-1] == '/' {
			if err := fs.MkdirAll(p, 0o755); err != nil {
				t.Fatalf("failed to create dir %s: %v", p, err)
			}
			continue
		}
		if err := fs.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("failed to create parent dirs for %s: %v", p, err)
		}
		if err := afero.WriteFile(fs, p, []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write file %s: %v", p, err)
		}
	}
}

// ReadFile returns the content of a file on fs, failing the test if absent.
func ReadFile(t *testing.T, fs afero.Fs, p string) string {
	t.Helper()
	data, err := afero.ReadFile(fs, p)
	if err != nil {
		t.Fatalf("failed to read %s: %v", p, err)
	}
	return string(data)
}

// Exists reports whether p exists on fs.
func Exists(fs afero.Fs, p string) bool {
	_, err := fs.Stat(p)
	return err == nil
}

// Entry is one archive record.
type Entry struct {
	// Name is the in-archive path. Backslashes are written verbatim.
	Name string
	// Body is the file content. Ignored for directories and links.
	Body string
	// Dir marks a directory entry.
	Dir bool
	// Link marks a symlink entry pointing at Link.
	Link string
	// Hardlink marks a hard link to the archive entry named Hardlink.
	Hardlink string
}

// Files turns a path -> content map into regular-file entries in name order.
func Files(files map[string]string) []Entry {
	names := make([]string, 0, len(files))
	for n := range files {
		names = append(names, n)
	}
	sort.Strings(names)

	entries := make([]Entry, 0, len(names))
	for _, n := range names {
		entries = append(entries, Entry{Name: n, Body: files[n]})
	}
	return entries
}

// Compression selects the outer stream format for TarBytes.
type Compression int

const (
	// None writes a plain tar stream.
	None Compression = iota
	// Gzip wraps the tar stream in gzip.
	Gzip
	// Zstd wraps the tar stream in zstandard.
	Zstd
)

// TarBytes builds a tar archive from entries.
func TarBytes(t *testing.T, entries []Entry, c Compression) []byte {
	t.Helper()

	var raw bytes.Buffer
	tw := tar.NewWriter(&raw)
	for _, e := range entries {
		hdr := &tar.Header{Name: e.Name, Mode: 0o644, Format: tar.FormatPAX}
		switch {
		case e.Dir:
			hdr.Typeflag = tar.TypeDir
			hdr.Mode = 0o755
		case e.Link != "":
			hdr.Typeflag = tar.TypeSymlink
			hdr.Linkname = e.Link
		case e.Hardlink != "":
			hdr.Typeflag = tar.TypeLink
			hdr.Linkname = e.Hardlink
		default:
			hdr.Typeflag = tar.TypeReg
			hdr.Size = int64(len(e.Body))
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("failed to write tar header %s: %v", e.Name, err)
		}
		if hdr.Typeflag == tar.TypeReg {
			if _, err := tw.Write([]byte(e.Body)); err != nil {
				t.Fatalf("failed to write tar body %s: %v", e.Name, err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("failed to close tar writer: %v", err)
	}

	switch c {
	case Gzip:
		var out bytes.Buffer
		gw := gzip.NewWriter(&out)
		if _, err := gw.Write(raw.Bytes()); err != nil {
			t.Fatalf("failed to gzip archive: %v", err)
		}
		if err := gw.Close(); err != nil {
			t.Fatalf("failed to close gzip writer: %v", err)
		}
		return out.Bytes()
	case Zstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			t.Fatalf("failed to create zstd encoder: %v", err)
		}
		defer enc.Close()
		return enc.EncodeAll(raw.Bytes(), nil)
	default:
		return raw.Bytes()
	}
}

// ZipBytes builds a zip archive from entries. Symlinks are not supported.
func ZipBytes(t *testing.T, entries []Entry) []byte {
	t.Helper()

	var out bytes.Buffer
	zw := zip.NewWriter(&out)
	for _, e := range entries {
		name := e.Name
		if e.Dir && !strings.HasSuffix(name, "/") {
			name += "/"
		}
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("failed to create zip entry %s: %v", e.Name, err)
		}
		if !e.Dir {
			if _, err := w.Write([]byte(e.Body)); err != nil {
				t.Fatalf("failed to write zip entry %s: %v", e.Name, err)
			}
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to close zip writer: %v", err)
	}
	return out.Bytes()
}

// WriteArchive writes archive bytes to dir/name on disk and returns the path.
func WriteArchive(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatalf("failed to write archive %s: %v", p, err)
	}
	return p
}
