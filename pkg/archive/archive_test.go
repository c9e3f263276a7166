package archive

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDirectoryCreateWritesContentAndMtime(t *testing.T) {
	dir := t.TempDir()
	destination := Directory{Root: dir}
	mod := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)

	w, err := destination.Create("nested/file.txt", mod)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte("hello")); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	full := filepath.Join(dir, "nested", "file.txt")
	data, err := os.ReadFile(full)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello" {
		t.Fatalf("unexpected content: %q", data)
	}
	info, err := os.Stat(full)
	if err != nil {
		t.Fatal(err)
	}
	if !info.ModTime().Equal(mod) {
		t.Fatalf("mtime not preserved: got %v want %v", info.ModTime(), mod)
	}
}

func TestZipWriterCreatesDeflatedEntryWithModTime(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	destination := NewZipWriter(zw)
	mod := time.Date(2021, 6, 7, 8, 9, 10, 0, time.UTC)

	w, err := destination.Create("a/b.txt", mod)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte("zipped")); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	reader, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatal(err)
	}
	if len(reader.File) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(reader.File))
	}
	entry := reader.File[0]
	if entry.Name != "a/b.txt" {
		t.Fatalf("unexpected name: %s", entry.Name)
	}
	if entry.Method != zip.Deflate {
		t.Fatalf("expected deflate, got %v", entry.Method)
	}
	if !entry.Modified.Equal(mod) {
		t.Fatalf("mtime not preserved: got %v want %v", entry.Modified, mod)
	}

	rc, err := entry.Open()
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	content, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "zipped" {
		t.Fatalf("unexpected content: %q", content)
	}
}

func TestDefaultArchiveNameFormat(t *testing.T) {
	at := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	want := "smoldiff_30.07.26.zip"
	if got := DefaultArchiveName(at); got != want {
		t.Fatalf("got %s want %s", got, want)
	}
}

func TestCopyFuncCopiesSourceIntoDestination(t *testing.T) {
	srcDir := t.TempDir()
	srcPath := filepath.Join(srcDir, "source.txt")
	if err := os.WriteFile(srcPath, []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}

	destDir := t.TempDir()
	destination := Directory{Root: destDir}
	copyFn := CopyFunc(destination)

	if err := copyFn(srcPath, "renamed.txt", time.Now()); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(destDir, "renamed.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "payload" {
		t.Fatalf("unexpected content: %q", data)
	}
}
