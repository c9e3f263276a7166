// Package archive implements the destinations that a diff's modified files
// can be copied into: a plain directory tree or a single zip archive.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// CopyDestination is the interface the diff engine's copy step writes
// through, letting the same walk target either a directory tree or a zip
// archive.
type CopyDestination interface {
	// Create opens relativePath (using forward slashes) for writing within
	// the destination, recording modTime as the entry's modification time.
	Create(relativePath string, modTime time.Time) (io.WriteCloser, error)
}

// DefaultArchiveName returns the default zip file name for a save operation
// started at the given time: smoldiff_<DD.MM.YY>.zip.
func DefaultArchiveName(at time.Time) string {
	return fmt.Sprintf("smoldiff_%s.zip", at.Format("02.01.06"))
}

// Directory is a CopyDestination that writes real files under a root
// directory, preserving each file's modification time via os.Chtimes once
// its content has been written.
type Directory struct {
	Root string
}

// Create implements CopyDestination.
func (d Directory) Create(relativePath string, modTime time.Time) (io.WriteCloser, error) {
	full := filepath.Join(d.Root, filepath.FromSlash(relativePath))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, fmt.Errorf("unable to create directory for %s: %w", full, err)
	}
	file, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("unable to create %s: %w", full, err)
	}
	return &chtimesOnClose{file: file, path: full, modTime: modTime}, nil
}

// chtimesOnClose wraps a file so that closing it also sets its modification
// time, since os.Chtimes can't be applied until writing is finished.
type chtimesOnClose struct {
	file    *os.File
	path    string
	modTime time.Time
}

func (c *chtimesOnClose) Write(p []byte) (int, error) {
	return c.file.Write(p)
}

func (c *chtimesOnClose) Close() error {
	if err := c.file.Close(); err != nil {
		return err
	}
	return os.Chtimes(c.path, c.modTime, c.modTime)
}

// ZipWriter is a CopyDestination that writes every entry into a single zip
// archive, deflate-compressed. It is not safe for concurrent use, since
// archive/zip only permits one open entry writer at a time.
type ZipWriter struct {
	zw *zip.Writer
}

// NewZipWriter wraps an already-open archive/zip.Writer.
func NewZipWriter(zw *zip.Writer) *ZipWriter {
	return &ZipWriter{zw: zw}
}

// Create implements CopyDestination. The returned writer needs no Close
// beyond what io.Copy requires, since zip.Writer.Create entries are
// finalized by the next Create call or by closing the archive itself; the
// returned value still satisfies io.WriteCloser so callers can treat every
// CopyDestination uniformly.
func (z *ZipWriter) Create(relativePath string, modTime time.Time) (io.WriteCloser, error) {
	header := &zip.FileHeader{
		Name:     relativePath,
		Method:   zip.Deflate,
		Modified: modTime,
	}
	w, err := z.zw.CreateHeader(header)
	if err != nil {
		return nil, fmt.Errorf("unable to create zip entry %s: %w", relativePath, err)
	}
	return nopCloser{w}, nil
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// CopyFunc adapts a CopyDestination into the (sourceAbsolutePath,
// destRelativePath, modTime) error func shape that
// diffengine.FolderDiff.CopyModifiedTo drives its walk with.
func CopyFunc(dest CopyDestination) func(string, string, time.Time) error {
	return func(sourceAbsolutePath, destRelativePath string, modTime time.Time) error {
		src, err := os.Open(sourceAbsolutePath)
		if err != nil {
			return fmt.Errorf("unable to open %s: %w", sourceAbsolutePath, err)
		}
		defer src.Close()

		out, err := dest.Create(destRelativePath, modTime)
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, src); err != nil {
			out.Close()
			return fmt.Errorf("unable to copy %s to %s: %w", sourceAbsolutePath, destRelativePath, err)
		}
		return out.Close()
	}
}
