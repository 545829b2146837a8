package extract

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/spf13/afero"

	oerrors "github.com/modkit/cli/internal/errors"
)

// Format is the detected container format of an archive.
type Format string

const (
	FormatTar     Format = "tar"
	FormatTarGzip Format = "tar+gzip"
	FormatTarZstd Format = "tar+zstd"
	FormatZip     Format = "zip"
)

var (
	magicGzip = []byte{0x1f, 0x8b}
	magicZstd = []byte{0x28, 0xb5, 0x2f, 0xfd}
	magicZip  = []byte("PK\x03\x04")
	// An empty zip archive starts with the end-of-central-directory record.
	magicZipEmpty = []byte("PK\x05\x06")
)

// blob is an opened archive payload with random access.
type blob interface {
	io.ReaderAt
	io.Closer
}

// Archive is an opened archive ready to be walked.
type Archive struct {
	Ref    string
	Format Format
	data   blob
	size   int64
}

// OpenArchive opens ref, which is either a path on archiveFs or an
// s3://bucket/key reference fetched with s3, and detects its format.
func OpenArchive(ctx context.Context, archiveFs afero.Fs, ref string, s3 S3Options) (*Archive, error) {
	var (
		data blob
		size int64
		err  error
	)
	if IsS3Ref(ref) {
		data, size, err = openS3(ctx, ref, s3)
	} else {
		data, size, err = openLocal(archiveFs, ref)
	}
	if err != nil {
		return nil, err
	}

	head := make([]byte, 4)
	n, err := data.ReadAt(head, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		data.Close()
		return nil, oerrors.NewExtractionError("cannot read archive header", ref, err)
	}

	return &Archive{Ref: ref, Format: detectFormat(head[:n]), data: data, size: size}, nil
}

func openLocal(archiveFs afero.Fs, p string) (blob, int64, error) {
	f, err := archiveFs.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, 0, oerrors.NewExtractionError("archive not found", p, errors.Join(oerrors.ErrNotFound, err))
		}
		return nil, 0, oerrors.NewExtractionError("cannot open archive", p, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, oerrors.NewExtractionError("cannot stat archive", p, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, 0, oerrors.NewExtractionError("archive path is a directory", p, nil)
	}
	return f, info.Size(), nil
}

func detectFormat(head []byte) Format {
	switch {
	case bytes.HasPrefix(head, magicGzip):
		return FormatTarGzip
	case bytes.HasPrefix(head, magicZstd):
		return FormatTarZstd
	case bytes.HasPrefix(head, magicZip), bytes.HasPrefix(head, magicZipEmpty):
		return FormatZip
	default:
		return FormatTar
	}
}

// Close releases the underlying archive payload.
func (a *Archive) Close() error {
	return a.data.Close()
}

// EntryType classifies an archive entry.
type EntryType int

const (
	TypeFile EntryType = iota
	TypeDir
	TypeSymlink
	// TypeHardlink entries copy an earlier entry named by Linkname.
	TypeHardlink
	// TypeOther covers devices and FIFOs, which are never materialized.
	TypeOther
)

// Entry is one record of an archive.
type Entry struct {
	Name     string
	Type     EntryType
	Mode     fs.FileMode
	Linkname string
}

// walkFunc receives each entry in archive order. body is only valid for
// TypeFile entries and only until walkFunc returns.
type walkFunc func(e Entry, body io.Reader) error

// Walk calls fn for every entry of the archive in order.
func (a *Archive) Walk(fn walkFunc) error {
	stream := io.NewSectionReader(a.data, 0, a.size)

	switch a.Format {
	case FormatZip:
		return a.walkZip(fn)
	case FormatTarGzip:
		zr, err := gzip.NewReader(stream)
		if err != nil {
			return a.formatError(err)
		}
		defer zr.Close()
		return a.walkTar(zr, fn)
	case FormatTarZstd:
		zr, err := zstd.NewReader(stream)
		if err != nil {
			return a.formatError(err)
		}
		defer zr.Close()
		return a.walkTar(zr, fn)
	default:
		return a.walkTar(stream, fn)
	}
}

func (a *Archive) walkTar(r io.Reader, fn walkFunc) error {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return a.formatError(err)
		}

		e := Entry{Name: hdr.Name, Mode: fs.FileMode(hdr.Mode).Perm(), Linkname: hdr.Linkname}
		switch hdr.Typeflag {
		case tar.TypeDir:
			e.Type = TypeDir
		case tar.TypeReg:
			e.Type = TypeFile
		case tar.TypeSymlink:
			e.Type = TypeSymlink
		case tar.TypeLink:
			e.Type = TypeHardlink
		default:
			e.Type = TypeOther
		}
		if err := fn(e, tr); err != nil {
			return err
		}
	}
}

func (a *Archive) walkZip(fn walkFunc) error {
	zr, err := zip.NewReader(a.data, a.size)
	if err != nil {
		return a.formatError(err)
	}

	for _, f := range zr.File {
		mode := f.Mode()
		e := Entry{Name: f.Name, Mode: mode.Perm()}
		switch {
		case mode.IsDir() || strings.HasSuffix(f.Name, "/"):
			e.Type = TypeDir
		case mode&fs.ModeSymlink != 0:
			e.Type = TypeSymlink
		case mode.IsRegular():
			e.Type = TypeFile
		default:
			e.Type = TypeOther
		}

		if err := a.visitZipFile(f, e, fn); err != nil {
			return err
		}
	}
	return nil
}

func (a *Archive) visitZipFile(f *zip.File, e Entry, fn walkFunc) error {
	if e.Type != TypeFile && e.Type != TypeSymlink {
		return fn(e, nil)
	}

	rc, err := f.Open()
	if err != nil {
		return a.formatError(fmt.Errorf("%s: %w", f.Name, err))
	}
	defer rc.Close()

	if e.Type == TypeSymlink {
		target, err := io.ReadAll(rc)
		if err != nil {
			return a.formatError(fmt.Errorf("%s: %w", f.Name, err))
		}
		e.Linkname = string(target)
		return fn(e, nil)
	}
	return fn(e, rc)
}

func (a *Archive) formatError(err error) error {
	return oerrors.NewExtractionError(fmt.Sprintf("cannot read %s archive", a.Format), a.Ref, err)
}
